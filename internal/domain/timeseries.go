package domain

import (
	"sort"
	"time"
)

const (
	// DefaultDepthTolerance is the half-width of the depth band around the
	// target depth, in the same units as the data.
	DefaultDepthTolerance = 10.0
	// DefaultSeriesPoints is the visualization window size.
	DefaultSeriesPoints = 48
)

// SeriesOptions controls BuildTimeSeries. Zero MaxPoints and Tolerance fall
// back to the defaults.
type SeriesOptions struct {
	TargetDepth float64
	MaxPoints   int
	Tolerance   float64
}

// SeriesPoint is one display-ready chart point. Required display fields
// default to 0; optional ones are null when absent.
type SeriesPoint struct {
	Time      string     `json:"time"` // HH:MM, UTC
	Timestamp *time.Time `json:"timestamp"`
	Depth     *float64   `json:"depth"`

	CurrentSpeed     float64 `json:"current_speed"`
	CurrentDirection float64 `json:"current_direction"`
	SeaSurfaceHeight float64 `json:"sea_surface_height"`

	Temperature   *float64 `json:"temperature"`
	Salinity      *float64 `json:"salinity"`
	Pressure      *float64 `json:"pressure"`
	WindSpeed     *float64 `json:"wind_speed"`
	WindDirection *float64 `json:"wind_direction"`
	SoundSpeed    *float64 `json:"sound_speed"`

	Source string `json:"source"`
}

// WithinDepth reports whether a record passes the depth filter. Records
// without depth always pass.
func WithinDepth(rec Record, target, tolerance float64) bool {
	if rec.Depth == nil {
		return true
	}
	d := *rec.Depth - target
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}

// BuildTimeSeries filters records to the depth band, sorts them by time and
// keeps the most recent MaxPoints. Records without a parseable time stay in
// their original positions; the timed records around them are sorted.
func BuildTimeSeries(records []Record, opts SeriesOptions) []SeriesPoint {
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultSeriesPoints
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultDepthTolerance
	}

	filtered := make([]Record, 0, len(records))
	for _, rec := range records {
		if WithinDepth(rec, opts.TargetDepth, opts.Tolerance) {
			filtered = append(filtered, rec)
		}
	}

	sortTimedInPlace(filtered)

	if len(filtered) > opts.MaxPoints {
		filtered = filtered[len(filtered)-opts.MaxPoints:]
	}

	points := make([]SeriesPoint, len(filtered))
	for i, rec := range filtered {
		points[i] = toSeriesPoint(rec)
	}
	return points
}

// sortTimedInPlace sorts the records with a timestamp among themselves,
// reusing their slots, and leaves untimed records where they are. Equal
// timestamps keep their order.
func sortTimedInPlace(records []Record) {
	slots := make([]int, 0, len(records))
	timed := make([]Record, 0, len(records))
	for i, rec := range records {
		if !rec.Timestamp.IsZero() {
			slots = append(slots, i)
			timed = append(timed, rec)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Timestamp.Before(timed[j].Timestamp)
	})
	for k, i := range slots {
		records[i] = timed[k]
	}
}

func toSeriesPoint(rec Record) SeriesPoint {
	p := SeriesPoint{
		Time:             "--:--",
		Depth:            rec.Depth,
		CurrentSpeed:     orZero(rec.CurrentSpeed),
		CurrentDirection: orZero(rec.CurrentDirection),
		SeaSurfaceHeight: orZero(rec.SeaSurfaceHeight),
		Temperature:      rec.Temperature,
		Salinity:         rec.Salinity,
		Pressure:         rec.Pressure,
		WindSpeed:        rec.WindSpeed,
		WindDirection:    rec.WindDirection,
		SoundSpeed:       rec.SoundSpeed,
		Source:           rec.Source,
	}
	if !rec.Timestamp.IsZero() {
		ts := rec.Timestamp.UTC()
		p.Time = ts.Format("15:04")
		p.Timestamp = &ts
	}
	return p
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
