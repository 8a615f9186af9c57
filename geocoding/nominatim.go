package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/time/rate"

	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
)

// Nominatim is the OSM Nominatim search client. The public instance asks
// for at most one request per second, so every call waits on a limiter.
type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	bounds    geodist.Bounds
}

func NewNominatim(baseURL, userAgent string, bounds geodist.Bounds) *Nominatim {
	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		bounds:    bounds,
	}
}

func (n *Nominatim) Name() string { return "nominatim" }

type nominatimAddress struct {
	HouseNumber string `json:"house_number"`
	Road        string `json:"road"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

type nominatimPlace struct {
	PlaceID     int64            `json:"place_id"`
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Importance  float64          `json:"importance"`
	Address     nominatimAddress `json:"address"`
}

func (n *Nominatim) Search(ctx context.Context, query string) ([]geomodel.Candidate, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"addressdetails": {"1"},
		"limit":          {"5"},
		"countrycodes":   {"de"},
		"bounded":        {"1"},
		"viewbox":        {n.bounds.String()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim: unexpected status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("nominatim response: %w", err)
	}

	candidates := make([]geomodel.Candidate, 0, len(places))
	for _, place := range places {
		lat, err := strconv.ParseFloat(place.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim latitude %q: %w", place.Lat, err)
		}
		lon, err := strconv.ParseFloat(place.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("nominatim longitude %q: %w", place.Lon, err)
		}

		candidates = append(candidates, geomodel.Candidate{
			ID:          fmt.Sprintf("nominatim-%d", place.PlaceID),
			DisplayName: place.DisplayName,
			Coordinates: orb.Point{lon, lat},
			Confidence:  confidenceFromAddress(place.Address.HouseNumber, place.Address.Road, cityOf(place.Address)),
			Address: geomodel.Address{
				HouseNumber: place.Address.HouseNumber,
				Road:        place.Address.Road,
				Postcode:    place.Address.Postcode,
				City:        cityOf(place.Address),
				State:       place.Address.State,
				Country:     place.Address.Country,
			},
			Source:     n.Name(),
			Importance: place.Importance,
		})
	}
	return candidates, nil
}

// Nominatim fills exactly one of city, town or village depending on the
// place size.
func cityOf(a nominatimAddress) string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

func confidenceFromAddress(houseNumber, road, city string) geomodel.Confidence {
	switch {
	case houseNumber != "":
		return geomodel.ConfidenceSubmeter
	case road != "":
		return geomodel.ConfidenceStreet
	case city != "":
		return geomodel.ConfidenceCity
	default:
		return geomodel.ConfidenceRegion
	}
}
