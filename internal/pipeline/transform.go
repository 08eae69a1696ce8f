package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

// Deriver computes the derived views of a loaded dataset, with optional
// station labelling.
type Deriver struct {
	geocoder domain.ReverseGeocoder
	logger   *slog.Logger
}

// NewDeriver creates a Deriver. Pass a nil geocoder to disable station labelling.
func NewDeriver(geocoder domain.ReverseGeocoder, logger *slog.Logger) *Deriver {
	return &Deriver{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Derive fills a snapshot from a load result. Stations, warnings and the
// quality summary are always recomputed from res.Dataset.
func (d *Deriver) Derive(ctx context.Context, res source.Result) Snapshot {
	snap := Snapshot{
		Provider: res.Provider,
		Status:   StatusReady,
		Files:    res.Files,
		Dataset:  res.Dataset,
		Errors:   res.Errors,
	}
	snap.Warnings = domain.Validate(res.Dataset.Records)
	snap.Quality = domain.SummarizeQuality(res.Dataset.Records)

	snap.Stations = domain.BuildStations(res.Dataset.Records)
	if !snap.Stations.Success {
		d.logger.Warn("station aggregation failed, using fallback stations", "error", snap.Stations.Error)
		return snap
	}
	snap.Stations.Stations = domain.LabelStations(ctx, snap.Stations.Stations, d.geocoder, d.logger)
	return snap
}
