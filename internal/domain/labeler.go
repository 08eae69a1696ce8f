package domain

import "context"

// PlaceResult is what a reverse geocoder returns for a coordinate.
type PlaceResult struct {
	PlaceName        string
	FormattedAddress string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// ReverseGeocoder resolves coordinates to place details.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (PlaceResult, error)
}
