package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesRecord(ts string, depth *float64) Record {
	rec := Record{Depth: depth, Time: ts, Timestamp: ParseTimestamp(Text(ts))}
	return rec
}

func TestWithinDepth(t *testing.T) {
	tests := []struct {
		name  string
		depth *float64
		want  bool
	}{
		{"inside band upper", ptr(59), true},
		{"edge of band", ptr(60), true},
		{"outside band", ptr(61), false},
		{"inside band lower", ptr(41), true},
		{"below band", ptr(39.9), false},
		{"no depth passes", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinDepth(Record{Depth: tt.depth}, 50, DefaultDepthTolerance))
		})
	}
}

func TestBuildTimeSeries_DepthFilterAndOrder(t *testing.T) {
	records := []Record{
		seriesRecord("2024-05-01T03:00:00Z", ptr(59)),
		seriesRecord("2024-05-01T01:00:00Z", ptr(61)),
		seriesRecord("2024-05-01T02:00:00Z", nil),
		seriesRecord("2024-05-01T00:30:00Z", ptr(50)),
	}

	points := BuildTimeSeries(records, SeriesOptions{TargetDepth: 50})
	require.Len(t, points, 3)
	assert.Equal(t, "00:30", points[0].Time)
	assert.Equal(t, "02:00", points[1].Time)
	assert.Equal(t, "03:00", points[2].Time)
	assert.Nil(t, points[1].Depth)
}

func TestBuildTimeSeries_KeepsMostRecent(t *testing.T) {
	var records []Record
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 59; i >= 0; i-- {
		records = append(records, seriesRecord(base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339), nil))
	}

	points := BuildTimeSeries(records, SeriesOptions{})
	require.Len(t, points, DefaultSeriesPoints)
	assert.Equal(t, base.Add(12*time.Hour), *points[0].Timestamp)
	assert.Equal(t, base.Add(59*time.Hour), *points[len(points)-1].Timestamp)

	capped := BuildTimeSeries(records, SeriesOptions{MaxPoints: 5})
	require.Len(t, capped, 5)
	assert.Equal(t, "11:00", capped[4].Time)
}

func TestBuildTimeSeries_FewerThanWindow(t *testing.T) {
	points := BuildTimeSeries([]Record{seriesRecord("2024-05-01T10:15:00Z", nil)}, SeriesOptions{})
	require.Len(t, points, 1)
	assert.Equal(t, "10:15", points[0].Time)
}

func TestBuildTimeSeries_UnparseableTimesKeepOrder(t *testing.T) {
	var records []Record
	for i := 0; i < 3; i++ {
		rec := seriesRecord("", nil)
		rec.Source = fmt.Sprintf("r%d", i)
		records = append(records, rec)
	}
	points := BuildTimeSeries(records, SeriesOptions{})
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, fmt.Sprintf("r%d", i), p.Source)
		assert.Equal(t, "--:--", p.Time)
		assert.Nil(t, p.Timestamp)
	}
}

func TestBuildTimeSeries_UntimedRowDoesNotBlockSorting(t *testing.T) {
	records := []Record{
		seriesRecord("2024-05-01T03:00:00Z", nil),
		seriesRecord("not a time", nil),
		seriesRecord("2024-05-01T01:00:00Z", nil),
		seriesRecord("2024-05-01T02:00:00Z", nil),
	}

	points := BuildTimeSeries(records, SeriesOptions{})
	got := make([]string, len(points))
	for i, p := range points {
		got[i] = p.Time
	}
	assert.Equal(t, []string{"01:00", "--:--", "02:00", "03:00"}, got)
}

func TestBuildTimeSeries_FieldFallbacks(t *testing.T) {
	freezeClock(t)

	legacy := NormalizeRow(rowOf(map[string]string{
		"time":          "2024-05-01T06:45:00+02:00",
		"current_speed": "0.8",
		"temp":          "19.5",
	}), "legacy.csv")

	points := BuildTimeSeries([]Record{legacy}, SeriesOptions{})
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, "04:45", p.Time, "rendered in UTC")
	assert.Equal(t, 0.8, p.CurrentSpeed)
	assert.Equal(t, 0.0, p.CurrentDirection, "required display fields default to zero")
	assert.Equal(t, 0.0, p.SeaSurfaceHeight)
	require.NotNil(t, p.Temperature)
	assert.Equal(t, 19.5, *p.Temperature)
	assert.Nil(t, p.Salinity, "optional display fields stay null")
	assert.Nil(t, p.WindSpeed)
}
