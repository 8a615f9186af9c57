package geomodel

import (
	"github.com/paulmach/orb"
)

// Confidence is a coarse precision bucket derived from which address
// components a provider returned.
type Confidence string

const (
	ConfidenceSubmeter Confidence = "submeter"
	ConfidenceMeter    Confidence = "meter"
	ConfidenceStreet   Confidence = "street"
	ConfidenceCity     Confidence = "city"
	ConfidenceRegion   Confidence = "region"
)

var confidenceRank = map[Confidence]int{
	ConfidenceSubmeter: 4,
	ConfidenceMeter:    3,
	ConfidenceStreet:   2,
	ConfidenceCity:     1,
	ConfidenceRegion:   0,
}

// Rank orders tiers best-first. Unknown tiers sort last.
func (c Confidence) Rank() int {
	return confidenceRank[c]
}

type Address struct {
	HouseNumber string `json:"house_number,omitempty"`
	Road        string `json:"road,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Candidate is a single geocoding result normalized to a common shape.
// Coordinates follow the orb convention: [longitude, latitude].
type Candidate struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	Coordinates orb.Point  `json:"coordinates"`
	Confidence  Confidence `json:"confidence"`
	Address     Address    `json:"address"`
	Source      string     `json:"source"`
	Importance  float64    `json:"importance,omitempty"`
}

// Profile selects a routing mode, affecting provider request parameters.
type Profile string

const (
	ProfileDriving Profile = "driving"
	ProfileWalking Profile = "walking"
	ProfileCycling Profile = "cycling"
)

// Target is a destination point the user selected for route calculation.
type Target struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Coordinates orb.Point `json:"coordinates"`
}

type Geometry struct {
	Type        string         `json:"type"`
	Coordinates orb.LineString `json:"coordinates"`
}

// LineGeometry builds a LineString geometry from an ordered point sequence.
func LineGeometry(points ...orb.Point) Geometry {
	return Geometry{Type: "LineString", Coordinates: orb.LineString(points)}
}

type RouteAlternative struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DistanceKm      float64  `json:"distance"`
	DurationMinutes int      `json:"duration"`
	Geometry        Geometry `json:"geometry"`
}

// RouteResult is one computed route to a single target. DistanceKm and
// DurationMinutes are already converted from provider units.
type RouteResult struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	DistanceKm      float64            `json:"distance"`
	DurationMinutes int                `json:"duration"`
	Geometry        Geometry           `json:"geometry"`
	Alternatives    []RouteAlternative `json:"alternatives,omitempty"`
	Provider        string             `json:"provider"`
	TrafficAware    bool               `json:"traffic_aware"`
}
