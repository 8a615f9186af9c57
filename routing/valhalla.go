package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"github.com/revierkompass/revierkompass/geomodel"
)

const valhallaShapePrecision = 6

// Valhalla queries a Valhalla route service. Its results incorporate
// live road conditions, which is why the aggregator prefers them.
type Valhalla struct {
	baseURL string
	client  *http.Client
}

func NewValhalla(baseURL string) *Valhalla {
	return &Valhalla{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *Valhalla) Name() string       { return "valhalla" }
func (v *Valhalla) TrafficAware() bool { return true }

func costing(profile geomodel.Profile) string {
	switch profile {
	case geomodel.ProfileWalking:
		return "pedestrian"
	case geomodel.ProfileCycling:
		return "bicycle"
	default:
		return "auto"
	}
}

type valhallaLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type valhallaRequest struct {
	Locations         []valhallaLocation `json:"locations"`
	Costing           string             `json:"costing"`
	DirectionsOptions struct {
		Units string `json:"units"`
	} `json:"directions_options"`
	Alternates int `json:"alternates"`
}

type valhallaTrip struct {
	Legs []struct {
		Shape string `json:"shape"`
	} `json:"legs"`
	Summary struct {
		Time   float64 `json:"time"`   // seconds
		Length float64 `json:"length"` // kilometers
	} `json:"summary"`
}

type valhallaResponse struct {
	Trip       *valhallaTrip  `json:"trip"`
	Alternates []valhallaTrip `json:"alternates"`
}

func (v *Valhalla) Route(ctx context.Context, start, end orb.Point, profile geomodel.Profile) (geomodel.RouteResult, error) {
	reqBody := valhallaRequest{
		Locations: []valhallaLocation{
			{Lat: start[1], Lon: start[0]},
			{Lat: end[1], Lon: end[0]},
		},
		Costing:    costing(profile),
		Alternates: maxAlternatives,
	}
	reqBody.DirectionsOptions.Units = "kilometers"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return geomodel.RouteResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/route", bytes.NewReader(payload))
	if err != nil {
		return geomodel.RouteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return geomodel.RouteResult{}, fmt.Errorf("valhalla request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geomodel.RouteResult{}, fmt.Errorf("valhalla: unexpected status %d", resp.StatusCode)
	}

	var body valhallaResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geomodel.RouteResult{}, fmt.Errorf("valhalla response: %w", err)
	}
	if body.Trip == nil {
		return geomodel.RouteResult{}, errors.New("valhalla: no trip returned")
	}

	result := geomodel.RouteResult{
		Name:            "Valhalla Route",
		DistanceKm:      body.Trip.Summary.Length,
		DurationMinutes: int(math.Round(body.Trip.Summary.Time / 60)),
		Geometry:        geomodel.Geometry{Type: "LineString", Coordinates: tripShape(*body.Trip)},
		Provider:        v.Name(),
		TrafficAware:    true,
	}
	for i, alt := range body.Alternates {
		if i >= maxAlternatives {
			break
		}
		result.Alternatives = append(result.Alternatives, geomodel.RouteAlternative{
			ID:              fmt.Sprintf("valhalla-alt-%d", i),
			Name:            fmt.Sprintf("Alternative %d", i+1),
			DistanceKm:      alt.Summary.Length,
			DurationMinutes: int(math.Round(alt.Summary.Time / 60)),
			Geometry:        geomodel.Geometry{Type: "LineString", Coordinates: tripShape(alt)},
		})
	}
	return result, nil
}

func tripShape(trip valhallaTrip) orb.LineString {
	if len(trip.Legs) == 0 {
		return orb.LineString{}
	}
	return DecodePolyline(trip.Legs[0].Shape, valhallaShapePrecision)
}
