package domain

import (
	"context"
	"log/slog"
)

// LabelStations attaches the nearest place name to each station. A nil
// geocoder leaves the stations untouched. Lookup failures are logged and
// marked "failed"; the station is kept either way.
func LabelStations(ctx context.Context, stations []Station, geocoder ReverseGeocoder, logger *slog.Logger) []Station {
	if geocoder == nil {
		return stations
	}
	out := make([]Station, len(stations))
	for i, s := range stations {
		out[i] = labelStation(ctx, s, geocoder, logger)
	}
	return out
}

func labelStation(ctx context.Context, s Station, geocoder ReverseGeocoder, logger *slog.Logger) Station {
	if ctx.Err() != nil {
		s.LabelSource = "original"
		return s
	}
	result, err := geocoder.ReverseGeocode(ctx, s.Latitude, s.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"station_id", s.ID,
			"lat", s.Latitude,
			"lon", s.Longitude,
			"error", err,
		)
		s.LabelSource = "failed"
		return s
	}
	if result.FormattedAddress == "" {
		s.LabelSource = "original"
		return s
	}
	s.PlaceName = result.PlaceName
	s.FormattedAddress = result.FormattedAddress
	s.LabelSource = "reverse"
	return s
}
