package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/crimson-sun/kartavya/internal/feed"
	"github.com/crimson-sun/kartavya/internal/geo"
	"github.com/crimson-sun/kartavya/internal/model"
)

// reportView is a report as served: the stored fields plus display values
// derived per response.
type reportView struct {
	model.Report
	CategoryLabel string        `json:"category_label"`
	Location      *locationView `json:"location,omitempty"`
}

type locationView struct {
	model.Location
	Coordinates      string   `json:"coordinates"`
	GoogleMapsURL    string   `json:"google_maps_url"`
	OpenStreetMapURL string   `json:"openstreetmap_url"`
	DistanceKm       *float64 `json:"distance_km,omitempty"`
	Distance         string   `json:"distance,omitempty"`
}

// point is a reference position for distances, from the "near" query.
type point struct {
	lat, lon float64
}

func newReportView(r model.Report, from *point) reportView {
	v := reportView{Report: r, CategoryLabel: feed.DisplayCategory(r.Category)}
	if r.Location == nil {
		return v
	}
	loc := *r.Location
	v.Location = &locationView{
		Location:         loc,
		Coordinates:      geo.FormatCoordinates(loc.Latitude, loc.Longitude),
		GoogleMapsURL:    geo.GoogleMapsLink(loc.Latitude, loc.Longitude),
		OpenStreetMapURL: geo.OpenStreetMapLink(loc.Latitude, loc.Longitude),
	}
	if from != nil {
		km := geo.Distance(from.lat, from.lon, loc.Latitude, loc.Longitude)
		v.Location.DistanceKm = &km
		v.Location.Distance = geo.FormatDistance(km)
	}
	return v
}

func newReportViews(reports []model.Report, from *point) []reportView {
	out := make([]reportView, 0, len(reports))
	for _, r := range reports {
		out = append(out, newReportView(r, from))
	}
	return out
}

// parseNear reads "lat,lon". An empty value means no reference point.
func parseNear(s string) (*point, error) {
	if s == "" {
		return nil, nil
	}
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return nil, errors.New("near must be \"latitude,longitude\"")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return nil, errors.New("near latitude must be a number")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return nil, errors.New("near longitude must be a number")
	}
	if err := geo.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	return &point{lat: lat, lon: lon}, nil
}
