package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/pipeline"
	"github.com/couchcryptid/ocean-data-service/internal/tutorial"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// DatasetService exposes the committed snapshot and on-demand reloads.
// *pipeline.Pipeline implements it.
type DatasetService interface {
	ReadinessChecker
	Current() *pipeline.Snapshot
	Reload(ctx context.Context) (*pipeline.Snapshot, error)
}

// ClientSettings are the non-secret settings a dashboard needs.
type ClientSettings struct {
	StreamURL       string  `json:"stream_url,omitempty"`
	MapLabelling    bool    `json:"map_labelling"`
	TargetDepth     float64 `json:"target_depth"`
	SeriesMaxPoints int     `json:"series_max_points"`
	RefreshSchedule string  `json:"refresh_schedule,omitempty"`
}

// Deps are the collaborators served over HTTP.
type Deps struct {
	Data      DatasetService
	Animation *animation.Scheduler
	Tutorial  *tutorial.Tracker
	Settings  ClientSettings
	Metrics   *observability.Metrics
	// Backends are extra readiness checks, such as the Redis store.
	Backends []ReadinessChecker
}

// Server exposes health, metrics, the data API and the animation stream.
type Server struct {
	httpServer  *http.Server
	deps        Deps
	hub         *Hub
	unsubscribe func()
	logger      *slog.Logger
}

// NewServer creates the HTTP server and subscribes the WebSocket hub to
// scheduler changes.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		hub:    NewHub(logger, deps.Metrics),
		logger: logger,
	}
	s.unsubscribe = deps.Animation.Subscribe(s.onAnimationChange)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(append([]ReadinessChecker{deps.Data}, deps.Backends...)))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/dataset", s.handleDataset)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("GET /api/stations", s.handleStations)
	mux.HandleFunc("GET /api/timeseries", s.handleTimeSeries)
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("GET /api/warnings", s.handleWarnings)
	mux.HandleFunc("GET /api/quality", s.handleQuality)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	mux.HandleFunc("GET /api/animation", s.handleAnimationState)
	mux.HandleFunc("POST /api/animation/{action}", s.handleAnimationAction)
	mux.HandleFunc("PUT /api/animation/frame", s.handleSetFrame)
	mux.HandleFunc("PUT /api/animation/speed", s.handleSetSpeed)
	mux.HandleFunc("PUT /api/animation/loop", s.handleSetLoop)
	mux.HandleFunc("GET /api/frame", s.handleFrame)

	mux.HandleFunc("GET /api/tutorial/{user}", s.handleTutorialGet)
	mux.HandleFunc("PUT /api/tutorial/{user}", s.handleTutorialComplete)
	mux.HandleFunc("DELETE /api/tutorial/{user}", s.handleTutorialReset)

	mux.HandleFunc("GET /ws/animation", s.handleAnimationStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown closes stream clients and drains connections within the given
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) onAnimationChange(st animation.State) {
	s.deps.Metrics.AnimationFrame.Set(float64(st.Frame))
	if st.Status == animation.Playing {
		s.deps.Metrics.AnimationPlaying.Set(1)
	} else {
		s.deps.Metrics.AnimationPlaying.Set(0)
	}
	s.hub.Broadcast(stateMessage(st))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports ready only when every checker passes.
func handleReady(checkers []ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, checker := range checkers {
			if err := checker.CheckReadiness(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not ready",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error     string          `json:"error"`
	Category  domain.Category `json:"category"`
	Retryable bool            `json:"retryable"`
}

func writeError(w http.ResponseWriter, err error) {
	category := domain.Classify(err)
	writeJSON(w, statusFor(category), errorBody{
		Error:     err.Error(),
		Category:  category,
		Retryable: category.Retryable(),
	})
}

func statusFor(c domain.Category) int {
	switch c {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryNoData:
		return http.StatusNotFound
	case domain.CategoryCSV:
		return http.StatusUnprocessableEntity
	case domain.CategoryNetwork, domain.CategoryAPI, domain.CategoryMapInit:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.Join(domain.ErrValidation, errors.New("request body too large"))
		}
		return errors.Join(domain.ErrValidation, err)
	}
	return nil
}
