package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/ocean-data-service/internal/adapter/http"
	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/pipeline"
	"github.com/couchcryptid/ocean-data-service/internal/source"
	"github.com/couchcryptid/ocean-data-service/internal/store"
	"github.com/couchcryptid/ocean-data-service/internal/tutorial"
)

const gulfCSV = `lat,lon,time,depth,temp,salinity,speed,direction
30.25,-88.0,2024-05-01T00:00:00Z,5,21.5,35.0,0.4,90
30.25,-88.0,2024-05-01T01:00:00Z,5,21.7,35.1,0.5,95
30.10,-88.2,2024-05-01T00:30:00Z,8,45.0,36.0,0.6,180
`

type fakeSource struct {
	res source.Result
	err error
}

func (f *fakeSource) Load(_ context.Context) (source.Result, error) { return f.res, f.err }

func gulfSource() *fakeSource {
	parsed := source.Parse("gulf.csv", []byte(gulfCSV))
	return &fakeSource{res: source.Result{
		Provider: "directory",
		Files:    []source.FileMeta{{Name: "gulf.csv", Provider: "directory", Rows: len(parsed.Rows)}},
		Dataset: domain.Dataset{
			Records: domain.NormalizeRows(parsed.Rows, "gulf.csv"),
			Columns: parsed.Columns,
		},
	}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv       *httpadapter.Server
	data      *pipeline.Pipeline
	animation *animation.Scheduler
}

func newTestEnv(t *testing.T, src pipeline.Source) testEnv {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	sch := animation.New(clockwork.NewFakeClock(), discardLogger())
	data := pipeline.New(src, pipeline.Options{Frames: sch}, discardLogger(), metrics)

	srv := httpadapter.NewServer(":0", httpadapter.Deps{
		Data:      data,
		Animation: sch,
		Tutorial:  tutorial.NewTracker(store.NewMemoryStore()),
		Settings: httpadapter.ClientSettings{
			StreamURL:       "wss://stream.example.com/ocean",
			TargetDepth:     5,
			SeriesMaxPoints: 48,
		},
		Metrics: metrics,
	}, discardLogger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return testEnv{srv: srv, data: data, animation: sch}
}

func loadedEnv(t *testing.T) testEnv {
	t.Helper()
	env := newTestEnv(t, gulfSource())
	_, err := env.data.Reload(context.Background())
	require.NoError(t, err)
	return env
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorResponse struct {
	Error     string `json:"error"`
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
}

type recordsPage struct {
	Total   int              `json:"total"`
	Records []map[string]any `json:"records"`
}

type stationsResponse struct {
	Success  bool             `json:"success"`
	Fallback bool             `json:"fallback"`
	Stations []domain.Station `json:"stations"`
}

type seriesResponse struct {
	Depth  float64              `json:"depth"`
	Points []domain.SeriesPoint `json:"points"`
}

type frameResponse struct {
	Animation animation.State `json:"animation"`
	Record    map[string]any  `json:"record"`
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.NotEmpty(t, body["error"])

	_, err := env.data.Reload(context.Background())
	require.NoError(t, err)

	rec = do(t, env.srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestReadyz_ChecksRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := store.NewRedisStore(context.Background(), mr.Addr(), "ocean:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	metrics := observability.NewMetricsForTesting()
	sch := animation.New(clockwork.NewFakeClock(), discardLogger())
	data := pipeline.New(gulfSource(), pipeline.Options{Frames: sch}, discardLogger(), metrics)
	_, err = data.Reload(context.Background())
	require.NoError(t, err)

	srv := httpadapter.NewServer(":0", httpadapter.Deps{
		Data:      data,
		Animation: sch,
		Tutorial:  tutorial.NewTracker(rs),
		Metrics:   metrics,
		Backends:  []httpadapter.ReadinessChecker{rs},
	}, discardLogger())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()

	rec = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", decode[map[string]string](t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- data ---

func TestConfigEndpoint(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	body := decode[map[string]any](t, do(t, env.srv, http.MethodGet, "/api/config", ""))

	assert.Equal(t, "wss://stream.example.com/ocean", body["stream_url"])
	assert.Equal(t, false, body["map_labelling"])
	assert.InDelta(t, 48, body["series_max_points"], 0)
}

func TestDataset(t *testing.T) {
	env := loadedEnv(t)

	rec := do(t, env.srv, http.MethodGet, "/api/dataset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, "directory", body["provider"])
	assert.InDelta(t, 3, body["records"], 0)
	assert.InDelta(t, 2, body["stations"], 0)
	assert.InDelta(t, 1, body["warnings"], 0)
	assert.NotEmpty(t, body["id"])
	assert.NotNil(t, body["loaded_at"])
}

func TestDataset_BeforeLoad(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	body := decode[map[string]any](t, do(t, env.srv, http.MethodGet, "/api/dataset", ""))

	assert.Equal(t, "loading", body["status"])
	assert.InDelta(t, 0, body["records"], 0)
	assert.Nil(t, body["loaded_at"])
	assert.Equal(t, []any{}, body["files"])
}

func TestRecords_Paging(t *testing.T) {
	env := loadedEnv(t)

	rec := do(t, env.srv, http.MethodGet, "/api/records?offset=1&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[recordsPage](t, rec)
	assert.Equal(t, 3, body.Total)
	require.Len(t, body.Records, 1)
	assert.Equal(t, "2024-05-01T01:00:00Z", body.Records[0]["time"])
	assert.Equal(t, "gulf.csv", body.Records[0][domain.MetaSource])
}

func TestRecords_OffsetPastEnd(t *testing.T) {
	env := loadedEnv(t)

	body := decode[map[string]any](t, do(t, env.srv, http.MethodGet, "/api/records?offset=50", ""))

	assert.Equal(t, []any{}, body["records"])
}

func TestRecords_InvalidParams(t *testing.T) {
	env := loadedEnv(t)

	tests := []struct {
		name   string
		target string
	}{
		{"negative offset", "/api/records?offset=-1"},
		{"zero limit", "/api/records?limit=0"},
		{"limit too large", "/api/records?limit=5000"},
		{"non-numeric", "/api/records?limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, env.srv, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			body := decode[errorResponse](t, rec)
			assert.Equal(t, "validation", body.Category)
			assert.False(t, body.Retryable)
		})
	}
}

func TestStations(t *testing.T) {
	env := loadedEnv(t)

	body := decode[stationsResponse](t, do(t, env.srv, http.MethodGet, "/api/stations", ""))

	assert.True(t, body.Success)
	assert.False(t, body.Fallback)
	require.Len(t, body.Stations, 2)
}

func TestTimeSeries(t *testing.T) {
	env := loadedEnv(t)

	body := decode[seriesResponse](t, do(t, env.srv, http.MethodGet, "/api/timeseries?max_points=1", ""))

	assert.InDelta(t, 5, body.Depth, 0)
	require.Len(t, body.Points, 1)
	assert.Equal(t, "01:00", body.Points[0].Time, "keeps the most recent point")
}

func TestTimeSeries_InvalidParams(t *testing.T) {
	env := loadedEnv(t)

	for _, target := range []string{"/api/timeseries?depth=deep", "/api/timeseries?max_points=0"} {
		rec := do(t, env.srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestExport(t *testing.T) {
	env := loadedEnv(t)

	tests := []struct {
		format      string
		contentType string
		contains    string
	}{
		{"csv", "text/csv", "gulf.csv"},
		{"json", "application/json", `"_source"`},
		{"geojson", "application/geo+json", "FeatureCollection"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(t, env.srv, http.MethodGet, "/api/export?format="+tt.format, "")

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			assert.Contains(t, rec.Header().Get("Content-Disposition"), "ocean-data."+tt.format)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestExport_Errors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		env := loadedEnv(t)
		rec := do(t, env.srv, http.MethodGet, "/api/export?format=xml", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nothing loaded", func(t *testing.T) {
		env := newTestEnv(t, gulfSource())
		rec := do(t, env.srv, http.MethodGet, "/api/export", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "no_data", decode[errorResponse](t, rec).Category)
	})
}

func TestWarningsAndQuality(t *testing.T) {
	env := loadedEnv(t)

	warnings := decode[map[string]any](t, do(t, env.srv, http.MethodGet, "/api/warnings", ""))
	assert.InDelta(t, 1, warnings["count"], 0)

	quality := decode[domain.QualitySummary](t, do(t, env.srv, http.MethodGet, "/api/quality", ""))
	assert.Equal(t, 3, quality.Total)
	assert.Equal(t, 3, quality.Excellent)
	assert.InDelta(t, 100, quality.Score, 0.001)
}

func TestReload(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodPost, "/api/reload", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]any](t, rec)["status"])
	assert.Equal(t, 3, env.animation.State().TotalFrames)
}

func TestReload_FailureCategories(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		category  string
		retryable bool
	}{
		{"no data", fmt.Errorf("%w: nothing found", domain.ErrNoData), http.StatusNotFound, "no_data", true},
		{"network", fmt.Errorf("%w: connection refused", domain.ErrNetwork), http.StatusBadGateway, "network", true},
		{"unparseable", fmt.Errorf("%w: 2 data files could not be parsed", domain.ErrCSV), http.StatusUnprocessableEntity, "csv", true},
		{"generic", errors.New("boom"), http.StatusInternalServerError, "generic", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeSource{err: tt.err})

			rec := do(t, env.srv, http.MethodPost, "/api/reload", "")

			assert.Equal(t, tt.status, rec.Code)
			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.category, body.Category)
			assert.Equal(t, tt.retryable, body.Retryable)
			assert.NotEmpty(t, body.Error)
		})
	}
}

// --- animation ---

func TestAnimationActions(t *testing.T) {
	env := loadedEnv(t)

	st := decode[animation.State](t, do(t, env.srv, http.MethodPost, "/api/animation/play", ""))
	assert.Equal(t, animation.Playing, st.Status)

	st = decode[animation.State](t, do(t, env.srv, http.MethodPost, "/api/animation/end", ""))
	assert.Equal(t, 2, st.Frame)

	st = decode[animation.State](t, do(t, env.srv, http.MethodPost, "/api/animation/step-backward", ""))
	assert.Equal(t, 1, st.Frame)

	st = decode[animation.State](t, do(t, env.srv, http.MethodPost, "/api/animation/toggle", ""))
	assert.Equal(t, animation.Stopped, st.Status)

	st = decode[animation.State](t, do(t, env.srv, http.MethodPost, "/api/animation/reset", ""))
	assert.Equal(t, 0, st.Frame)

	rec := do(t, env.srv, http.MethodPost, "/api/animation/rewind", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st = decode[animation.State](t, do(t, env.srv, http.MethodGet, "/api/animation", ""))
	assert.Equal(t, 3, st.TotalFrames)
}

func TestAnimationSetters(t *testing.T) {
	env := loadedEnv(t)

	st := decode[animation.State](t, do(t, env.srv, http.MethodPut, "/api/animation/frame", `{"frame": 99}`))
	assert.Equal(t, 2, st.Frame, "frame is clamped")

	st = decode[animation.State](t, do(t, env.srv, http.MethodPut, "/api/animation/speed", `{"speed": 50}`))
	assert.InDelta(t, animation.MaxSpeed, st.Speed, 0)

	st = decode[animation.State](t, do(t, env.srv, http.MethodPut, "/api/animation/loop", `{"loop": "ping-pong"}`))
	assert.Equal(t, animation.LoopPingPong, st.Loop)

	tests := []struct {
		target string
		body   string
	}{
		{"/api/animation/frame", `{}`},
		{"/api/animation/frame", `{"frame": "one"}`},
		{"/api/animation/speed", `{"speed": 1, "extra": true}`},
		{"/api/animation/loop", `{"loop": "sideways"}`},
	}
	for _, tt := range tests {
		rec := do(t, env.srv, http.MethodPut, tt.target, tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.body)
	}
}

func TestFrame(t *testing.T) {
	env := loadedEnv(t)
	env.animation.JumpToFrame(2)

	rec := do(t, env.srv, http.MethodGet, "/api/frame", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[frameResponse](t, rec)
	assert.Equal(t, 2, body.Animation.Frame)
	assert.InDelta(t, 30.10, body.Record["lat"], 0.0001)
}

func TestFrame_NoData(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodGet, "/api/frame", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- tutorial ---

func TestTutorialLifecycle(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	st := decode[tutorial.Status](t, do(t, env.srv, http.MethodGet, "/api/tutorial/alex", ""))
	assert.False(t, st.Completed)

	st = decode[tutorial.Status](t, do(t, env.srv, http.MethodPut, "/api/tutorial/alex", ""))
	assert.True(t, st.Completed)

	st = decode[tutorial.Status](t, do(t, env.srv, http.MethodGet, "/api/tutorial/alex", ""))
	assert.True(t, st.Completed)

	st = decode[tutorial.Status](t, do(t, env.srv, http.MethodDelete, "/api/tutorial/alex", ""))
	assert.False(t, st.Completed)
}

func TestTutorial_InvalidUser(t *testing.T) {
	env := newTestEnv(t, gulfSource())

	rec := do(t, env.srv, http.MethodGet, "/api/tutorial/"+strings.Repeat("u", 200), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- websocket ---

func dialStream(t *testing.T, env testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/animation"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type streamMessage struct {
	Type  string           `json:"type"`
	State *animation.State `json:"state"`
	Error string           `json:"error"`
}

func readStream(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestAnimationStream(t *testing.T) {
	env := loadedEnv(t)
	conn := dialStream(t, env)

	msg := readStream(t, conn)
	require.Equal(t, "state", msg.Type)
	assert.Equal(t, 3, msg.State.TotalFrames)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "speed", "speed": 2}))
	msg = readStream(t, conn)
	require.Equal(t, "state", msg.Type)
	assert.InDelta(t, 2, msg.State.Speed, 0)

	// REST changes are pushed to stream clients too.
	do(t, env.srv, http.MethodPost, "/api/animation/step-forward", "")
	msg = readStream(t, conn)
	assert.Equal(t, 1, msg.State.Frame)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "fly"}))
	msg = readStream(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "fly")
}

func TestAnimationStream_ClosedOnShutdown(t *testing.T) {
	env := loadedEnv(t)
	conn := dialStream(t, env)
	readStream(t, conn)

	require.NoError(t, env.srv.Shutdown(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure),
		"unexpected error: %v", err)
}
