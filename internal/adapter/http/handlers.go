package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/pipeline"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
)

type datasetResponse struct {
	ID        string                `json:"id"`
	LoadedAt  *time.Time            `json:"loaded_at"`
	Provider  string                `json:"provider"`
	Status    pipeline.Status       `json:"status"`
	Records   int                   `json:"records"`
	Columns   []string              `json:"columns"`
	Files     []source.FileMeta     `json:"files"`
	Errors    []domain.ParseError   `json:"errors"`
	Warnings  int                   `json:"warnings"`
	Stations  int                   `json:"stations"`
	Quality   domain.QualitySummary `json:"quality"`
	LoadError string                `json:"load_error,omitempty"`
	Category  domain.Category       `json:"category,omitempty"`
}

func newDatasetResponse(snap *pipeline.Snapshot) datasetResponse {
	resp := datasetResponse{
		ID:        snap.ID,
		Provider:  snap.Provider,
		Status:    snap.Status,
		Records:   snap.Dataset.Len(),
		Columns:   nonNil(snap.Dataset.Columns),
		Files:     nonNil(snap.Files),
		Errors:    nonNil(snap.Errors),
		Warnings:  len(snap.Warnings),
		Stations:  len(snap.DisplayStations()),
		Quality:   snap.Quality,
		LoadError: snap.LoadError,
		Category:  snap.Category,
	}
	if !snap.LoadedAt.IsZero() {
		t := snap.LoadedAt
		resp.LoadedAt = &t
	}
	return resp
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings)
}

func (s *Server) handleDataset(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newDatasetResponse(s.deps.Data.Current()))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultRecordLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	if offset < 0 || limit < 1 || limit > maxRecordLimit {
		writeError(w, fmt.Errorf("%w: offset must be >= 0 and limit in [1, %d]", domain.ErrValidation, maxRecordLimit))
		return
	}

	snap := s.deps.Data.Current()
	records := snap.Dataset.Records
	total := len(records)
	start := min(offset, total)
	end := min(start+limit, total)

	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap.ID,
		"offset":   offset,
		"limit":    limit,
		"total":    total,
		"records":  nonNil(records[start:end]),
	})
}

func (s *Server) handleStations(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Data.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  snap.Stations.Success,
		"error":    snap.Stations.Error,
		"fallback": !snap.Stations.Success && snap.Dataset.Len() > 0,
		"stations": snap.DisplayStations(),
	})
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	opts := domain.SeriesOptions{
		TargetDepth: s.deps.Settings.TargetDepth,
		MaxPoints:   s.deps.Settings.SeriesMaxPoints,
	}
	if v := r.URL.Query().Get("depth"); v != "" {
		depth, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, fmt.Errorf("%w: depth: %v", domain.ErrValidation, err))
			return
		}
		opts.TargetDepth = depth
	}
	maxPoints, err := queryInt(r, "max_points", opts.MaxPoints)
	if err != nil {
		writeError(w, err)
		return
	}
	if maxPoints < 1 {
		writeError(w, fmt.Errorf("%w: max_points must be positive", domain.ErrValidation))
		return
	}
	opts.MaxPoints = maxPoints

	writeJSON(w, http.StatusOK, map[string]any{
		"depth":  opts.TargetDepth,
		"points": nonNil(s.deps.Data.Current().TimeSeries(opts)),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(domain.FormatCSV)
	}
	format, err := domain.ParseFormat(name)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := s.deps.Data.Current()
	if snap.Dataset.Len() == 0 {
		writeError(w, fmt.Errorf("%w: nothing to export", domain.ErrNoData))
		return
	}

	// Buffer so an encoding failure can still produce an error response.
	var buf bytes.Buffer
	if err := domain.Export(&buf, snap.Dataset, format); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ocean-data.%s"`, format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client may have gone away
}

func (s *Server) handleWarnings(w http.ResponseWriter, _ *http.Request) {
	snap := s.deps.Data.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(snap.Warnings),
		"warnings": nonNil(snap.Warnings),
	})
}

func (s *Server) handleQuality(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Data.Current().Quality)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Data.Reload(r.Context())
	if err != nil {
		s.logger.Warn("manual reload failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDatasetResponse(snap))
}

// --- animation ---

func (s *Server) handleAnimationState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Animation.State())
}

func (s *Server) handleAnimationAction(w http.ResponseWriter, r *http.Request) {
	st, err := applyAction(s.deps.Animation, r.PathValue("action"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetFrame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Frame *int `json:"frame"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Frame == nil {
		writeError(w, fmt.Errorf("%w: frame is required", domain.ErrValidation))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Animation.JumpToFrame(*body.Frame))
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Speed *float64 `json:"speed"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.Speed == nil {
		writeError(w, fmt.Errorf("%w: speed is required", domain.ErrValidation))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Animation.SetSpeed(*body.Speed))
}

func (s *Server) handleSetLoop(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Loop string `json:"loop"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	mode, err := animation.ParseLoopMode(body.Loop)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Animation.SetLoopMode(mode))
}

// handleFrame returns the record selected by the current frame.
func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Animation.State()
	snap := s.deps.Data.Current()
	rec, ok := snap.Record(st.Frame)
	if !ok {
		writeError(w, fmt.Errorf("%w: no record at frame %d", domain.ErrNoData, st.Frame))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot":  snap.ID,
		"animation": st,
		"record":    rec,
	})
}

// applyAction runs a named scheduler action. It is shared by the REST and
// WebSocket surfaces.
func applyAction(sch *animation.Scheduler, action string) (animation.State, error) {
	switch action {
	case "play":
		return sch.Play(), nil
	case "pause":
		return sch.Pause(), nil
	case "toggle":
		return sch.Toggle(), nil
	case "reset":
		return sch.Reset(), nil
	case "step-forward":
		return sch.StepForward(), nil
	case "step-backward":
		return sch.StepBackward(), nil
	case "start":
		return sch.JumpToStart(), nil
	case "end":
		return sch.JumpToEnd(), nil
	default:
		return animation.State{}, fmt.Errorf("%w: unknown animation action %q", domain.ErrValidation, action)
	}
}

// --- tutorial ---

func (s *Server) handleTutorialGet(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Tutorial.Completed(r.Context(), r.PathValue("user"))
	s.writeTutorial(w, st, err)
}

func (s *Server) handleTutorialComplete(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Tutorial.Complete(r.Context(), r.PathValue("user"))
	s.writeTutorial(w, st, err)
}

func (s *Server) handleTutorialReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Tutorial.Reset(r.Context(), r.PathValue("user"))
	s.writeTutorial(w, st, err)
}

func (s *Server) writeTutorial(w http.ResponseWriter, st any, err error) {
	if err != nil {
		if !errors.Is(err, domain.ErrValidation) {
			s.logger.Error("tutorial store failed", "error", err)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrValidation, key, err)
	}
	return n, nil
}
