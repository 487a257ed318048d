// Package geo reverse-geocodes report coordinates and formats locations.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crimson-sun/kartavya/internal/httpclient"
	"github.com/crimson-sun/kartavya/internal/model"
)

const (
	// DefaultEndpoint is the public Nominatim instance.
	DefaultEndpoint = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent identifies the service to Nominatim, which requires one.
	DefaultUserAgent = "Kartavya Civic App"

	earthRadiusKm = 6371.0
)

// ErrInvalidCoordinates is returned for latitudes outside [-90, 90] or
// longitudes outside [-180, 180].
var ErrInvalidCoordinates = errors.New("geo: coordinates out of range")

// Address is a reverse-geocoded address.
type Address struct {
	Formatted string
	Details   model.AddressDetails
}

// Geocoder resolves coordinates to addresses through the Nominatim API.
type Geocoder struct {
	client *httpclient.Client
}

// New creates a Geocoder for endpoint. Empty values use the defaults.
func New(endpoint, userAgent string, timeout time.Duration) *Geocoder {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	opts := []httpclient.Option{httpclient.WithUserAgent(userAgent)}
	if timeout > 0 {
		opts = append(opts, httpclient.WithTimeout(timeout))
	}
	return &Geocoder{client: httpclient.New(strings.TrimRight(endpoint, "/"), "", opts...)}
}

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		State         string `json:"state"`
		Country       string `json:"country"`
		Postcode      string `json:"postcode"`
	} `json:"address"`
}

// Reverse looks up the address at the given coordinates.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (Address, error) {
	if err := ValidateCoordinates(lat, lon); err != nil {
		return Address{}, err
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", "18")
	q.Set("addressdetails", "1")

	var resp nominatimResponse
	if err := g.client.GetJSON(ctx, "/reverse", q, &resp); err != nil {
		return Address{}, fmt.Errorf("geo: reverse geocode: %w", err)
	}
	if resp.Error != "" {
		return Address{}, fmt.Errorf("geo: reverse geocode: %s", resp.Error)
	}
	return resp.address(), nil
}

func (r nominatimResponse) address() Address {
	a := r.Address
	city := firstNonEmpty(a.City, a.Town, a.Village)

	var parts []string
	for _, p := range []string{a.Road, a.Suburb, city, a.State, a.Postcode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	formatted := strings.Join(parts, ", ")
	if formatted == "" {
		formatted = r.DisplayName
	}

	return Address{
		Formatted: formatted,
		Details: model.AddressDetails{
			Road:     a.Road,
			Area:     firstNonEmpty(a.Suburb, a.Neighbourhood),
			City:     city,
			State:    a.State,
			Country:  a.Country,
			Postcode: a.Postcode,
		},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ValidateCoordinates reports whether lat/lon are on the globe.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v, %v", ErrInvalidCoordinates, lat, lon)
	}
	return nil
}

// Distance returns the great-circle distance in kilometres.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// FormatDistance renders metres below 1 km and tenths of a kilometre above.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%dm", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1fkm", km)
}

// FormatCoordinates renders "12.971600°N, 77.594600°E".
func FormatCoordinates(lat, lon float64) string {
	latDir, lonDir := "N", "E"
	if lat < 0 {
		latDir = "S"
	}
	if lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.6f°%s, %.6f°%s", math.Abs(lat), latDir, math.Abs(lon), lonDir)
}

// GoogleMapsLink returns a Google Maps URL pinned at the coordinates.
func GoogleMapsLink(lat, lon float64) string {
	return "https://www.google.com/maps?q=" + ftoa(lat) + "," + ftoa(lon)
}

// OpenStreetMapLink returns an OpenStreetMap URL pinned at the coordinates.
func OpenStreetMapLink(lat, lon float64) string {
	return "https://www.openstreetmap.org/?mlat=" + ftoa(lat) + "&mlon=" + ftoa(lon) + "&zoom=18"
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
