package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/ocean-data-service/internal/animation"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

// Source produces the raw dataset. *source.Loader implements it.
type Source interface {
	Load(ctx context.Context) (source.Result, error)
}

// Sink receives the records of every committed snapshot.
type Sink interface {
	Publish(ctx context.Context, records []domain.Record) error
}

// FrameTarget is told the record count of every committed snapshot.
// *animation.Scheduler implements it.
type FrameTarget interface {
	SetTotalFrames(n int) animation.State
}

// Options wires the optional collaborators of a Pipeline.
type Options struct {
	LoadTimeout time.Duration
	Geocoder    domain.ReverseGeocoder
	Sinks       []Sink
	Frames      FrameTarget
	Clock       clockwork.Clock
}

// Pipeline loads, parses and derives datasets, and publishes each result as
// an immutable Snapshot. Readers always see a complete snapshot.
type Pipeline struct {
	source  Source
	deriver *Deriver
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	current atomic.Pointer[Snapshot]
	ready   atomic.Bool
	loadMu  sync.Mutex
}

// New creates a Pipeline. Current returns a loading placeholder until the
// first Reload commits.
func New(src Source, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	p := &Pipeline{
		source:  src,
		deriver: NewDeriver(opts.Geocoder, logger),
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
	p.current.Store(&Snapshot{Status: StatusLoading, Stations: domain.StationResult{Stations: []domain.Station{}}})
	return p
}

// Current returns the latest committed snapshot. Never nil.
func (p *Pipeline) Current() *Snapshot {
	return p.current.Load()
}

// CheckReadiness returns nil once a load has committed records.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no dataset has been loaded yet")
	}
	return nil
}

// Reload runs one load and commits the result. Concurrent calls are
// serialized. When the load fails and a dataset is already committed, the
// previous snapshot stays current and is returned with the error.
func (p *Pipeline) Reload(ctx context.Context) (*Snapshot, error) {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if p.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.LoadTimeout)
		defer cancel()
	}

	start := p.clock.Now()
	res, err := p.source.Load(ctx)
	if err != nil {
		return p.commitFailure(res, err)
	}

	snap := p.deriver.Derive(ctx, res)
	snap.ID = uuid.NewString()
	snap.LoadedAt = p.clock.Now().UTC()
	p.commit(&snap)

	p.metrics.LoadsTotal.WithLabelValues("success").Inc()
	p.metrics.LoadDuration.Observe(p.clock.Since(start).Seconds())
	p.logger.Info("snapshot committed",
		"id", snap.ID,
		"provider", snap.Provider,
		"records", snap.Dataset.Len(),
		"stations", len(snap.Stations.Stations),
		"parse_errors", len(snap.Errors),
		"warnings", len(snap.Warnings),
	)

	p.publish(ctx, &snap)
	return &snap, nil
}

func (p *Pipeline) commitFailure(res source.Result, err error) (*Snapshot, error) {
	p.metrics.LoadsTotal.WithLabelValues("error").Inc()
	category := domain.Classify(err)

	if prev := p.Current(); prev.Status == StatusReady {
		p.logger.Warn("reload failed, keeping previous snapshot", "error", err, "category", category, "snapshot", prev.ID)
		return prev, err
	}

	status := StatusError
	if category == domain.CategoryNoData {
		status = StatusNoData
	}
	snap := &Snapshot{
		ID:        uuid.NewString(),
		LoadedAt:  p.clock.Now().UTC(),
		Status:    status,
		Errors:    res.Errors,
		Stations:  domain.StationResult{Stations: []domain.Station{}},
		LoadError: err.Error(),
		Category:  category,
	}
	p.commit(snap)
	p.logger.Error("load failed", "error", err, "category", category)
	return snap, err
}

func (p *Pipeline) commit(snap *Snapshot) {
	p.current.Store(snap)
	if snap.Status == StatusReady {
		p.ready.Store(true)
	}
	if p.opts.Frames != nil {
		st := p.opts.Frames.SetTotalFrames(snap.Dataset.Len())
		p.metrics.AnimationFrame.Set(float64(st.Frame))
	}
	p.metrics.DatasetRecords.Set(float64(snap.Dataset.Len()))
	p.metrics.Stations.Set(float64(len(snap.Stations.Stations)))
}

func (p *Pipeline) publish(ctx context.Context, snap *Snapshot) {
	for _, sink := range p.opts.Sinks {
		if err := sink.Publish(ctx, snap.Dataset.Records); err != nil {
			p.logger.Warn("publish snapshot failed", "snapshot", snap.ID, "error", err)
		}
	}
}

// Run performs the initial load, then reloads on every tick of the cron
// schedule until ctx is cancelled. An empty schedule disables refresh.
func (p *Pipeline) Run(ctx context.Context, schedule string) error {
	var sched cron.Schedule
	if schedule != "" {
		var err error
		if sched, err = cron.ParseStandard(schedule); err != nil {
			return fmt.Errorf("parse refresh schedule: %w", err)
		}
	}

	p.logger.Info("pipeline started", "refresh_schedule", schedule)
	if _, err := p.Reload(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("initial load failed", "error", err)
	}

	if sched == nil {
		<-ctx.Done()
		p.logger.Info("pipeline stopping", "reason", ctx.Err())
		return nil
	}

	for {
		now := p.clock.Now()
		timer := p.clock.NewTimer(sched.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
		}
		if _, err := p.Reload(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("scheduled reload failed", "error", err)
		}
	}
}
