package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func stationRecord(lat, lon float64, ts string, source string, q QualityTag, fields map[string]string) Record {
	row := rowOf(fields)
	rec := Record{
		Latitude:  ptr(lat),
		Longitude: ptr(lon),
		Fields:    row,
		Source:    source,
		Quality:   q,
	}
	if ts != "" {
		rec.Time = ts
		rec.Timestamp = ParseTimestamp(Text(ts))
	}
	return rec
}

func TestBuildStations_GroupsByRoundedCoordinate(t *testing.T) {
	records := []Record{
		stationRecord(30.12344, -88.00001, "2024-05-01T02:00:00Z", "a.csv", QualityGood, map[string]string{"temperature": "20", "lat": "30.12344"}),
		stationRecord(30.12341, -88.00004, "2024-05-01T01:00:00Z", "b.csv", QualityGood, map[string]string{"salinity": "35", "speed": "nan"}),
		stationRecord(-12.5, 45.25, "2024-05-01T03:00:00Z", "a.csv", QualityFair, nil),
		stationRecord(30.12344, -88.00001, "2024-05-01T05:00:00Z", "a.csv", QualityExcellent, nil),
	}

	res := BuildStations(records)
	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	require.Len(t, res.Stations, 2)

	first := res.Stations[0]
	assert.Equal(t, "30.1234,-88.0000", first.ID)
	assert.Equal(t, 30.1234, first.Latitude)
	assert.Equal(t, -88.0, first.Longitude)
	assert.Equal(t, 3, first.Count)
	assert.Equal(t, []string{"a.csv", "b.csv"}, first.Sources)
	assert.Equal(t, time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC), *first.FirstTime)
	assert.Equal(t, time.Date(2024, 5, 1, 5, 0, 0, 0, time.UTC), *first.LastTime)
	assert.Equal(t, []string{"salinity", "temperature"}, first.Parameters, "coordinates and null values are not parameters")
	assert.Equal(t, QualityGood, first.Quality)
	assert.Equal(t, "Station 001 (30.1234°N)", first.Name)
	assert.Equal(t, StationPalette[0], first.Color)

	second := res.Stations[1]
	assert.Equal(t, "Station 002 (12.5000°S)", second.Name)
	assert.Equal(t, StationPalette[1], second.Color)
	assert.Equal(t, 1, second.Count)
	assert.Empty(t, second.Parameters)
}

func TestBuildStations_SkipsInvalidCoordinates(t *testing.T) {
	records := []Record{
		{Latitude: ptr(91), Longitude: ptr(10)},
		{Latitude: ptr(10), Longitude: ptr(-180.5)},
		{Latitude: nil, Longitude: ptr(10)},
		stationRecord(10, 10, "", "ok.csv", QualityPoor, nil),
	}
	res := BuildStations(records)
	require.True(t, res.Success)
	require.Len(t, res.Stations, 1)
	assert.Equal(t, 1, res.Stations[0].Count)
	assert.Nil(t, res.Stations[0].FirstTime)
}

func TestBuildStations_NoValidCoordinates(t *testing.T) {
	res := BuildStations([]Record{{Latitude: nil}, {Latitude: ptr(100), Longitude: ptr(0)}})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no records with valid coordinates")
	assert.Empty(t, res.Stations)
	assert.NotNil(t, res.Stations)
}

func TestBuildStations_PaletteWraps(t *testing.T) {
	var records []Record
	for i := 0; i < 12; i++ {
		records = append(records, stationRecord(float64(i), 0, "", "p.csv", QualityFair, nil))
	}
	res := BuildStations(records)
	require.Len(t, res.Stations, 12)
	assert.Equal(t, StationPalette[0], res.Stations[10].Color)
	assert.Equal(t, "Station 012 (11.0000°N)", res.Stations[11].Name)
}

func TestStationKey_RoundingBoundary(t *testing.T) {
	assert.Equal(t, StationKey(30.12344, -88.1), StationKey(30.12341, -88.1))
	assert.Equal(t, StationKey(30.123449, 0), StationKey(30.12336, 0))
	assert.NotEqual(t, StationKey(30.12344, 0), StationKey(30.12346, 0))
}

func TestBuildStations_SignedZeroSharesStation(t *testing.T) {
	records := []Record{
		stationRecord(10, 0.00001, "2024-05-01T00:00:00Z", "a.csv", QualityGood, nil),
		stationRecord(10, -0.00001, "2024-05-01T01:00:00Z", "a.csv", QualityGood, nil),
		stationRecord(-0.00002, 20, "2024-05-01T02:00:00Z", "a.csv", QualityGood, nil),
		stationRecord(0.00002, 20, "2024-05-01T03:00:00Z", "a.csv", QualityGood, nil),
	}

	res := BuildStations(records)
	require.True(t, res.Success)
	require.Len(t, res.Stations, 2)
	for _, s := range res.Stations {
		assert.Equal(t, 2, s.Count, s.ID)
		assert.NotContains(t, s.ID, "-0.0000")
	}
	assert.Equal(t, "10.0000,0.0000", StationKey(10, -0.00001))
	assert.Equal(t, "0.0000,20.0000", StationKey(-0.00002, 20))
}

func TestDominantQuality(t *testing.T) {
	tests := []struct {
		name string
		tags []QualityTag
		want QualityTag
	}{
		{"empty", nil, QualityFair},
		{"majority", []QualityTag{QualityPoor, QualityGood, QualityGood}, QualityGood},
		{"tie first seen wins", []QualityTag{QualityExcellent, QualityPoor, QualityPoor, QualityExcellent}, QualityExcellent},
		{"tie other order", []QualityTag{QualityPoor, QualityExcellent, QualityExcellent, QualityPoor}, QualityPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DominantQuality(tt.tags))
		})
	}
}

func TestFallbackStations(t *testing.T) {
	stations := FallbackStations()
	require.Len(t, stations, 3)
	for i, s := range stations {
		assert.Equal(t, StationPalette[i], s.Color)
		assert.Equal(t, QualityFair, s.Quality)
	}
	assert.Equal(t, "Station 001 (30.2500°N)", stations[0].Name)
}
