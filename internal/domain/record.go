package domain

import (
	"encoding/json"
	"math"
	"time"
)

// Row is one parsed line keyed by normalized column name.
type Row map[string]Value

// QualityTag is a coarse completeness score for a single record.
type QualityTag string

const (
	QualityPoor      QualityTag = "poor"
	QualityFair      QualityTag = "fair"
	QualityGood      QualityTag = "good"
	QualityExcellent QualityTag = "excellent"
)

// Metadata keys added to exported rows. Header normalization strips leading
// underscores, so these can never collide with a data column.
const (
	MetaSource     = "_source"
	MetaIngestedAt = "_ingested_at"
	MetaQuality    = "_quality"
)

// FieldAlias lists the column names a typed Record field is read from, in
// priority order.
type FieldAlias struct {
	Field string
	Names []string
}

// Typed field identifiers.
const (
	FieldLatitude         = "latitude"
	FieldLongitude        = "longitude"
	FieldTime             = "time"
	FieldDepth            = "depth"
	FieldTemperature      = "temperature"
	FieldSalinity         = "salinity"
	FieldCurrentSpeed     = "current_speed"
	FieldCurrentDirection = "current_direction"
	FieldWindSpeed        = "wind_speed"
	FieldWindDirection    = "wind_direction"
	FieldSeaSurfaceHeight = "sea_surface_height"
	FieldPressure         = "pressure"
	FieldSoundSpeed       = "sound_speed"
)

// FieldAliases is the alias-resolution table used by NormalizeRow.
var FieldAliases = []FieldAlias{
	{FieldLatitude, []string{"latitude", "lat"}},
	{FieldLongitude, []string{"longitude", "lon", "lng", "long"}},
	{FieldTime, []string{"time", "timestamp", "datetime", "date", "time_utc"}},
	{FieldDepth, []string{"depth", "depth_m", "nomdepth"}},
	{FieldTemperature, []string{"temperature", "temp", "water_temp", "temperature_c"}},
	{FieldSalinity, []string{"salinity", "sal", "salinity_psu"}},
	{FieldCurrentSpeed, []string{"speed", "current_speed", "currentspeed", "speed_ms"}},
	{FieldCurrentDirection, []string{"direction", "current_direction", "currentdirection", "heading"}},
	{FieldWindSpeed, []string{"wind_speed", "windspeed", "ws"}},
	{FieldWindDirection, []string{"wind_direction", "winddirection", "wd"}},
	{FieldSeaSurfaceHeight, []string{"ssh", "sea_surface_height", "wave_height"}},
	{FieldPressure, []string{"pressure", "pressure_dbars", "pres"}},
	{FieldSoundSpeed, []string{"sound_speed", "sound_speed_ms", "soundspeed"}},
}

func aliasNames(field string) []string {
	for _, a := range FieldAliases {
		if a.Field == field {
			return a.Names
		}
	}
	return nil
}

// Record is a normalized reading. Typed fields are resolved from Fields via
// FieldAliases; Fields keeps every parsed column for export and station
// parameter discovery.
type Record struct {
	Latitude  *float64
	Longitude *float64
	// Time is the raw timestamp text; Timestamp is its parsed UTC form and is
	// zero when the text could not be parsed.
	Time      string
	Timestamp time.Time
	Depth     *float64

	Temperature      *float64
	Salinity         *float64
	CurrentSpeed     *float64
	CurrentDirection *float64
	WindSpeed        *float64
	WindDirection    *float64
	SeaSurfaceHeight *float64
	Pressure         *float64
	SoundSpeed       *float64

	Fields Row

	Source     string
	IngestedAt time.Time
	Quality    QualityTag
}

// HasValidCoordinates reports whether the record can be placed on a map.
func (r Record) HasValidCoordinates() bool {
	if r.Latitude == nil || r.Longitude == nil {
		return false
	}
	lat, lon := *r.Latitude, *r.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

// Properties flattens the record into column → value pairs plus metadata.
func (r Record) Properties() map[string]any {
	props := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		props[k] = v.Interface()
	}
	props[MetaSource] = r.Source
	props[MetaQuality] = string(r.Quality)
	if !r.IngestedAt.IsZero() {
		props[MetaIngestedAt] = r.IngestedAt.UTC().Format(time.RFC3339)
	}
	return props
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Properties())
}

// Dataset is the flat, normalized output of a load. Columns is the union of
// all source columns in first-seen order.
type Dataset struct {
	Records []Record
	Columns []string
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.Records) }

// MergeColumns appends the columns of src not already in dst, preserving order.
func MergeColumns(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, c := range dst {
		seen[c] = struct{}{}
	}
	for _, c := range src {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		dst = append(dst, c)
	}
	return dst
}
