package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// StationPalette colors stations round-robin by insertion index.
var StationPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Station is a set of records sharing a coordinate rounded to 4 decimals.
type Station struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Count      int        `json:"count"`
	Sources    []string   `json:"sources"`
	FirstTime  *time.Time `json:"first_time"`
	LastTime   *time.Time `json:"last_time"`
	Parameters []string   `json:"parameters"`
	Quality    QualityTag `json:"quality"`
	Color      string     `json:"color"`

	// Place labelling, filled by LabelStations.
	PlaceName        string `json:"place_name,omitempty"`
	FormattedAddress string `json:"formatted_address,omitempty"`
	LabelSource      string `json:"label_source,omitempty"` // "reverse", "original", "failed"
}

// StationResult is the outcome of BuildStations. A failed result carries an
// explanation and no stations.
type StationResult struct {
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Stations []Station `json:"stations"`
}

// nonParameterFields are row keys that describe position or time rather than
// a measured parameter.
var nonParameterFields = func() map[string]struct{} {
	m := make(map[string]struct{})
	for _, field := range []string{FieldLatitude, FieldLongitude, FieldTime, FieldDepth} {
		for _, name := range aliasNames(field) {
			m[name] = struct{}{}
		}
	}
	return m
}()

// stationAcc accumulates one station while iterating records.
type stationAcc struct {
	station Station
	sources map[string]struct{}
	params  map[string]struct{}
	tags    []QualityTag
}

// RoundCoordinate rounds to 4 decimal places. Negative zero is folded into
// zero so both sides of the equator and prime meridian share a key.
func RoundCoordinate(v float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0
	}
	return r
}

// StationKey is the grouping key for a coordinate pair.
func StationKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", RoundCoordinate(lat), RoundCoordinate(lon))
}

// BuildStations groups records by rounded coordinate. Records without valid
// coordinates are skipped. It never panics: internal failures are reported as
// an unsuccessful result.
func BuildStations(records []Record) (result StationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = StationResult{
				Success:  false,
				Error:    fmt.Sprintf("station aggregation failed: %v", r),
				Stations: []Station{},
			}
		}
	}()

	index := make(map[string]int)
	var accs []*stationAcc

	for _, rec := range records {
		if !rec.HasValidCoordinates() {
			continue
		}
		lat, lon := RoundCoordinate(*rec.Latitude), RoundCoordinate(*rec.Longitude)
		key := StationKey(lat, lon)

		i, ok := index[key]
		if !ok {
			i = len(accs)
			index[key] = i
			accs = append(accs, &stationAcc{
				station: Station{ID: key, Latitude: lat, Longitude: lon, Sources: []string{}},
				sources: make(map[string]struct{}),
				params:  make(map[string]struct{}),
			})
		}
		accs[i].add(rec)
	}

	if len(accs) == 0 {
		return StationResult{
			Success:  false,
			Error:    fmt.Sprintf("no records with valid coordinates (%d records checked)", len(records)),
			Stations: []Station{},
		}
	}

	stations := make([]Station, len(accs))
	for i, acc := range accs {
		s := acc.station
		s.Name = stationName(i, s.Latitude)
		s.Color = StationPalette[i%len(StationPalette)]
		s.Quality = DominantQuality(acc.tags)
		s.Parameters = sortedKeys(acc.params)
		stations[i] = s
	}
	return StationResult{Success: true, Stations: stations}
}

func (a *stationAcc) add(rec Record) {
	s := &a.station
	s.Count++

	if rec.Source != "" {
		if _, ok := a.sources[rec.Source]; !ok {
			a.sources[rec.Source] = struct{}{}
			s.Sources = append(s.Sources, rec.Source)
		}
	}

	if !rec.Timestamp.IsZero() {
		t := rec.Timestamp
		if s.FirstTime == nil || t.Before(*s.FirstTime) {
			s.FirstTime = &t
		}
		if s.LastTime == nil || t.After(*s.LastTime) {
			s.LastTime = &t
		}
	}

	for k, v := range rec.Fields {
		if v.IsNull() {
			continue
		}
		if _, skip := nonParameterFields[k]; skip {
			continue
		}
		a.params[k] = struct{}{}
	}

	a.tags = append(a.tags, rec.Quality)
}

// stationName builds "Station 001 (12.3456°N)" from the insertion index.
func stationName(i int, lat float64) string {
	hemisphere := "N"
	if lat < 0 {
		hemisphere = "S"
	}
	return fmt.Sprintf("Station %03d (%.4f°%s)", i+1, math.Abs(lat), hemisphere)
}

// DominantQuality returns the most frequent tag. Ties go to the tag seen first
// in the list; an empty list yields fair.
func DominantQuality(tags []QualityTag) QualityTag {
	if len(tags) == 0 {
		return QualityFair
	}
	counts := make(map[QualityTag]int, 4)
	var order []QualityTag
	for _, t := range tags {
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t]++
	}
	best := order[0]
	for _, t := range order[1:] {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return best
}

// FallbackStations is the fixed placeholder set shown when aggregation fails.
func FallbackStations() []Station {
	placeholders := []struct {
		lat, lon float64
	}{
		{30.2500, -88.0000},
		{30.1000, -88.2000},
		{29.9500, -87.9000},
	}
	out := make([]Station, len(placeholders))
	for i, p := range placeholders {
		out[i] = Station{
			ID:         StationKey(p.lat, p.lon),
			Name:       stationName(i, p.lat),
			Latitude:   p.lat,
			Longitude:  p.lon,
			Sources:    []string{},
			Parameters: []string{},
			Quality:    QualityFair,
			Color:      StationPalette[i%len(StationPalette)],
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
