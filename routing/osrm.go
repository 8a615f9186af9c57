package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/revierkompass/revierkompass/geomodel"
)

// OSRM queries the OSRM route service. Several public endpoints exist
// with varying availability, so the client walks its endpoint list and
// uses the first one that answers.
type OSRM struct {
	endpoints []string
	userAgent string
	client    *http.Client
}

func NewOSRM(endpoints []string, userAgent string) *OSRM {
	return &OSRM{
		endpoints: endpoints,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *OSRM) Name() string       { return "osrm" }
func (o *OSRM) TrafficAware() bool { return false }

type osrmRoute struct {
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
	Geometry struct {
		Coordinates orb.LineString `json:"coordinates"`
	} `json:"geometry"`
}

type osrmResponse struct {
	Code   string      `json:"code"`
	Routes []osrmRoute `json:"routes"`
}

func (o *OSRM) Route(ctx context.Context, start, end orb.Point, profile geomodel.Profile) (geomodel.RouteResult, error) {
	params := url.Values{
		"overview":     {"full"},
		"geometries":   {"geojson"},
		"alternatives": {strconv.Itoa(maxAlternatives)},
		"steps":        {"false"},
	}
	path := fmt.Sprintf("/route/v1/%s/%s;%s?%s", profile, formatPoint(start), formatPoint(end), params.Encode())

	var lastErr error
	for _, endpoint := range o.endpoints {
		result, err := o.route(ctx, endpoint+path)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no osrm endpoints configured")
	}
	return geomodel.RouteResult{}, fmt.Errorf("osrm: %w", lastErr)
}

func (o *OSRM) route(ctx context.Context, url string) (geomodel.RouteResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return geomodel.RouteResult{}, err
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return geomodel.RouteResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geomodel.RouteResult{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geomodel.RouteResult{}, err
	}
	if body.Code != "Ok" || len(body.Routes) == 0 {
		return geomodel.RouteResult{}, fmt.Errorf("routing failed: code %q", body.Code)
	}

	best := body.Routes[0]
	result := geomodel.RouteResult{
		Name:            "OSRM Route",
		DistanceKm:      best.Distance / 1000,
		DurationMinutes: int(math.Round(best.Duration / 60)),
		Geometry:        geomodel.Geometry{Type: "LineString", Coordinates: best.Geometry.Coordinates},
		Provider:        o.Name(),
		TrafficAware:    false,
	}
	for i, alt := range body.Routes[1:] {
		if i >= maxAlternatives {
			break
		}
		result.Alternatives = append(result.Alternatives, geomodel.RouteAlternative{
			ID:              fmt.Sprintf("osrm-alt-%d", i),
			Name:            fmt.Sprintf("Alternative %d", i+1),
			DistanceKm:      alt.Distance / 1000,
			DurationMinutes: int(math.Round(alt.Duration / 60)),
			Geometry:        geomodel.Geometry{Type: "LineString", Coordinates: alt.Geometry.Coordinates},
		})
	}
	return result, nil
}

func formatPoint(p orb.Point) string {
	return strconv.FormatFloat(p[0], 'f', -1, 64) + "," + strconv.FormatFloat(p[1], 'f', -1, 64)
}
