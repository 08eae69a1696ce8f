package domain

import (
	"fmt"
	"math"
)

// Plausible ranges for validation warnings.
const (
	MinTemperature = -5.0 // °C
	MaxTemperature = 40.0
	MinSalinity    = 0.0 // PSU
	MaxSalinity    = 45.0
)

// Warning flags suspicious data that is still rendered.
type Warning struct {
	Source  string  `json:"source"`
	Row     int     `json:"row"` // 1-based index into the dataset
	Field   string  `json:"field"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// Validate checks coordinates, temperature and salinity against plausible
// ranges. It never rejects records.
func Validate(records []Record) []Warning {
	var warnings []Warning
	add := func(i int, rec Record, field string, v float64, format string, args ...any) {
		warnings = append(warnings, Warning{
			Source:  rec.Source,
			Row:     i + 1,
			Field:   field,
			Value:   v,
			Message: fmt.Sprintf(format, args...),
		})
	}

	for i, rec := range records {
		if rec.Latitude != nil && math.Abs(*rec.Latitude) > 90 {
			add(i, rec, FieldLatitude, *rec.Latitude, "latitude %.4f outside [-90, 90]", *rec.Latitude)
		}
		if rec.Longitude != nil && math.Abs(*rec.Longitude) > 180 {
			add(i, rec, FieldLongitude, *rec.Longitude, "longitude %.4f outside [-180, 180]", *rec.Longitude)
		}
		if rec.Temperature != nil && (*rec.Temperature < MinTemperature || *rec.Temperature > MaxTemperature) {
			add(i, rec, FieldTemperature, *rec.Temperature, "temperature %.2f outside [%g, %g]", *rec.Temperature, MinTemperature, MaxTemperature)
		}
		if rec.Salinity != nil && (*rec.Salinity < MinSalinity || *rec.Salinity > MaxSalinity) {
			add(i, rec, FieldSalinity, *rec.Salinity, "salinity %.2f outside [%g, %g]", *rec.Salinity, MinSalinity, MaxSalinity)
		}
	}
	return warnings
}

// QualitySummary counts quality tags over a dataset. Score is the mean of
// excellent=100, good=75, fair=50, poor=25; 0 for an empty dataset.
type QualitySummary struct {
	Total     int     `json:"total"`
	Excellent int     `json:"excellent"`
	Good      int     `json:"good"`
	Fair      int     `json:"fair"`
	Poor      int     `json:"poor"`
	Score     float64 `json:"score"`
}

// SummarizeQuality builds a QualitySummary.
func SummarizeQuality(records []Record) QualitySummary {
	var s QualitySummary
	var points float64
	for _, rec := range records {
		switch rec.Quality {
		case QualityExcellent:
			s.Excellent++
			points += 100
		case QualityGood:
			s.Good++
			points += 75
		case QualityFair:
			s.Fair++
			points += 50
		default:
			s.Poor++
			points += 25
		}
	}
	s.Total = len(records)
	if s.Total > 0 {
		s.Score = math.Round(points/float64(s.Total)*10) / 10
	}
	return s
}
