package pipeline

import (
	"time"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

// Status describes how a snapshot came to be.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusNoData  Status = "no_data"
	StatusError   Status = "error"
)

// Snapshot is one committed load. It is never mutated after commit.
type Snapshot struct {
	ID        string
	LoadedAt  time.Time
	Provider  string
	Status    Status
	Files     []source.FileMeta
	Dataset   domain.Dataset
	Errors    []domain.ParseError
	Warnings  []domain.Warning
	Stations  domain.StationResult
	Quality   domain.QualitySummary
	LoadError string
	Category  domain.Category
}

// Record returns the record at index i.
func (s *Snapshot) Record(i int) (domain.Record, bool) {
	if i < 0 || i >= len(s.Dataset.Records) {
		return domain.Record{}, false
	}
	return s.Dataset.Records[i], true
}

// DisplayStations returns the aggregated stations, or the fallback set when
// aggregation failed over a non-empty dataset.
func (s *Snapshot) DisplayStations() []domain.Station {
	if s.Stations.Success {
		return s.Stations.Stations
	}
	if s.Dataset.Len() > 0 {
		return domain.FallbackStations()
	}
	return []domain.Station{}
}

// TimeSeries builds the time-series view of the snapshot.
func (s *Snapshot) TimeSeries(opts domain.SeriesOptions) []domain.SeriesPoint {
	return domain.BuildTimeSeries(s.Dataset.Records, opts)
}
