package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
)

// Photon is the komoot Photon search client. Responses are GeoJSON-like
// feature collections with flat property fields.
type Photon struct {
	baseURL string
	client  *http.Client
	bounds  geodist.Bounds
}

func NewPhoton(baseURL string, bounds geodist.Bounds) *Photon {
	return &Photon{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		bounds:  bounds,
	}
}

func (p *Photon) Name() string { return "photon" }

type photonFeature struct {
	Geometry struct {
		Coordinates orb.Point `json:"coordinates"`
	} `json:"geometry"`
	Properties struct {
		Name        string `json:"name"`
		Street      string `json:"street"`
		HouseNumber string `json:"housenumber"`
		Postcode    string `json:"postcode"`
		City        string `json:"city"`
		State       string `json:"state"`
		Country     string `json:"country"`
		OSMID       int64  `json:"osm_id"`
	} `json:"properties"`
}

type photonResponse struct {
	Features []photonFeature `json:"features"`
}

func (p *Photon) Search(ctx context.Context, query string) ([]geomodel.Candidate, error) {
	params := url.Values{
		"q":     {query},
		"limit": {"5"},
		"bbox":  {p.bounds.String()},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photon: unexpected status %d", resp.StatusCode)
	}

	var body photonResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("photon response: %w", err)
	}

	candidates := make([]geomodel.Candidate, 0, len(body.Features))
	for i, feature := range body.Features {
		props := feature.Properties

		id := fmt.Sprintf("photon-%d", props.OSMID)
		if props.OSMID == 0 {
			id = fmt.Sprintf("photon-i%d", i)
		}

		candidates = append(candidates, geomodel.Candidate{
			ID:          id,
			DisplayName: photonDisplayName(props.Name, props.Street, props.HouseNumber, props.Postcode, props.City),
			Coordinates: feature.Geometry.Coordinates,
			Confidence:  confidenceFromAddress(props.HouseNumber, props.Street, props.City),
			Address: geomodel.Address{
				HouseNumber: props.HouseNumber,
				Road:        props.Street,
				Postcode:    props.Postcode,
				City:        props.City,
				State:       props.State,
				Country:     props.Country,
			},
			Source: p.Name(),
		})
	}
	return candidates, nil
}

// Photon has no display_name field, so one is assembled from the parts
// it does return.
func photonDisplayName(parts ...string) string {
	filled := parts[:0:0]
	for _, part := range parts {
		if part != "" {
			filled = append(filled, part)
		}
	}
	return strings.Join(filled, ", ")
}
