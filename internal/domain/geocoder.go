package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	Geohash          string  `json:"geohash,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	PlaceName        string  `json:"place_name,omitempty"`
	Confidence       float64 `json:"confidence"` // 0.0–1.0 provider confidence score
}

// Found reports whether the provider returned coordinates.
func (r GeocodingResult) Found() bool {
	return r.Lat != 0 || r.Lon != 0
}

// Geocoder resolves free-text place names for county search.
type Geocoder interface {
	// ForwardGeocode converts a place query to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
}
