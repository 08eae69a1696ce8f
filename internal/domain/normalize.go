package domain

import (
	"math"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing record timestamps. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"01/02/2006",
}

// NormalizeRow resolves the typed fields of a parsed row and tags it with its
// source, ingestion time and quality.
func NormalizeRow(row Row, source string) Record {
	rec := Record{Fields: row}
	rec.Latitude = resolveNumber(row, FieldLatitude)
	rec.Longitude = resolveNumber(row, FieldLongitude)
	rec.Depth = resolveNumber(row, FieldDepth)
	rec.Temperature = resolveNumber(row, FieldTemperature)
	rec.Salinity = resolveNumber(row, FieldSalinity)
	rec.CurrentSpeed = resolveNumber(row, FieldCurrentSpeed)
	rec.CurrentDirection = resolveNumber(row, FieldCurrentDirection)
	rec.WindSpeed = resolveNumber(row, FieldWindSpeed)
	rec.WindDirection = resolveNumber(row, FieldWindDirection)
	rec.SeaSurfaceHeight = resolveNumber(row, FieldSeaSurfaceHeight)
	rec.Pressure = resolveNumber(row, FieldPressure)
	rec.SoundSpeed = resolveNumber(row, FieldSoundSpeed)

	if v, ok := resolve(row, FieldTime); ok {
		rec.Time = v.String()
		rec.Timestamp = ParseTimestamp(v)
	}
	return Tag(rec, source)
}

// NormalizeRows normalizes every row of one source file.
func NormalizeRows(rows []Row, source string) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = NormalizeRow(row, source)
	}
	return out
}

// Tag overwrites the source, ingestion timestamp and quality tag of a record.
// Applying it twice with the same clock yields the same record.
func Tag(rec Record, source string) Record {
	rec.Source = source
	rec.IngestedAt = clock.Now().UTC()
	rec.Quality = AssessQuality(rec)
	return rec
}

// AssessQuality scores a record by completeness. Missing latitude, longitude
// or time is poor; otherwise the count of populated optional measurements
// (speed, temperature, salinity, pressure) decides: 3+ excellent, 2 good,
// else fair.
func AssessQuality(rec Record) QualityTag {
	if rec.Latitude == nil || rec.Longitude == nil || rec.Time == "" {
		return QualityPoor
	}
	optional := 0
	for _, f := range []*float64{rec.CurrentSpeed, rec.Temperature, rec.Salinity, rec.Pressure} {
		if f != nil {
			optional++
		}
	}
	switch {
	case optional >= 3:
		return QualityExcellent
	case optional >= 2:
		return QualityGood
	default:
		return QualityFair
	}
}

// resolve returns the first non-null value among the aliases of field.
func resolve(row Row, field string) (Value, bool) {
	for _, name := range aliasNames(field) {
		if v, ok := row[name]; ok && !v.IsNull() {
			return v, true
		}
	}
	return Value{}, false
}

// resolveNumber is resolve restricted to numeric values.
func resolveNumber(row Row, field string) *float64 {
	for _, name := range aliasNames(field) {
		if f, ok := row[name].Float(); ok {
			return &f
		}
	}
	return nil
}

// ParseTimestamp parses a timestamp cell. Numbers are read as Unix epoch
// seconds, or milliseconds when too large to be seconds. Returns the zero time
// when nothing matches.
func ParseTimestamp(v Value) time.Time {
	if f, ok := v.Float(); ok {
		switch {
		case f > 1e12:
			return time.UnixMilli(int64(f)).UTC()
		case f > 1e8:
			sec, frac := math.Modf(f)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC()
		default:
			return time.Time{}
		}
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
