package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result PlaceResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (PlaceResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStations() []Station {
	return []Station{
		{ID: "30.2500,-88.0000", Latitude: 30.25, Longitude: -88.0},
		{ID: "30.1000,-88.2000", Latitude: 30.1, Longitude: -88.2},
	}
}

// --- tests ---

func TestLabelStations_NilGeocoder(t *testing.T) {
	in := testStations()
	out := LabelStations(context.Background(), in, nil, discardLogger())
	assert.Equal(t, in, out)
}

func TestLabelStations_Reverse(t *testing.T) {
	geo := &mockGeocoder{result: PlaceResult{
		PlaceName:        "Dauphin Island",
		FormattedAddress: "Dauphin Island, Alabama, United States",
		Confidence:       0.9,
	}}

	out := LabelStations(context.Background(), testStations(), geo, discardLogger())
	require.Len(t, out, 2)
	assert.Equal(t, "Dauphin Island", out[0].PlaceName)
	assert.Equal(t, "Dauphin Island, Alabama, United States", out[0].FormattedAddress)
	assert.Equal(t, "reverse", out[0].LabelSource)
	assert.Equal(t, 2, geo.calls)
}

func TestLabelStations_ErrorKeepsStation(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("rate limited")}

	out := LabelStations(context.Background(), testStations(), geo, discardLogger())
	require.Len(t, out, 2)
	assert.Equal(t, "failed", out[0].LabelSource)
	assert.Empty(t, out[0].PlaceName)
	assert.Equal(t, 30.25, out[0].Latitude)
}

func TestLabelStations_EmptyResultOverOpenWater(t *testing.T) {
	geo := &mockGeocoder{}

	out := LabelStations(context.Background(), testStations(), geo, discardLogger())
	assert.Equal(t, "original", out[1].LabelSource)
}

func TestLabelStations_CancelledContextSkipsLookups(t *testing.T) {
	geo := &mockGeocoder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := LabelStations(ctx, testStations(), geo, discardLogger())
	assert.Equal(t, 0, geo.calls)
	assert.Equal(t, "original", out[0].LabelSource)
}
