package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/valyala/fasthttp"

	"github.com/revierkompass/revierkompass/geocoding"
	"github.com/revierkompass/revierkompass/geomodel"
	"github.com/revierkompass/revierkompass/stations"
	"github.com/revierkompass/revierkompass/wizard"
)

type fakeGeocoder struct {
	candidates []geomodel.Candidate
	err        error
}

func (g *fakeGeocoder) Geocode(ctx context.Context, query string) ([]geomodel.Candidate, error) {
	return g.candidates, g.err
}

type fakeRoutes struct {
	results []geomodel.RouteResult
}

func (r *fakeRoutes) CalculateRoutes(ctx context.Context, start orb.Point, targets []geomodel.Target) []geomodel.RouteResult {
	return r.results
}

func newTestServer(t *testing.T, deps Deps) *server {
	t.Helper()

	geocodeCalls, err := meter.Int64Counter("test_geocode_calls")
	if err != nil {
		t.Fatal(err)
	}
	routeCalls, err := meter.Int64Counter("test_route_calls")
	if err != nil {
		t.Fatal(err)
	}
	targetsRouted, err := meter.Int64Counter("test_targets_routed")
	if err != nil {
		t.Fatal(err)
	}

	if deps.Sessions == nil {
		deps.Sessions = wizard.NewStore(30 * time.Minute)
	}

	return &server{
		deps:    deps,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		started: time.Now(),

		metricGeocodeCalls:  geocodeCalls,
		metricRouteCalls:    routeCalls,
		metricTargetsRouted: targetsRouted,
	}
}

func requestCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	return ctx
}

func TestGeocodeHandler(t *testing.T) {
	s := newTestServer(t, Deps{Geocoder: &fakeGeocoder{candidates: []geomodel.Candidate{
		{ID: "nominatim-1", DisplayName: "Schlossplatz 1, Stuttgart"},
	}}})

	ctx := requestCtx(`{"query": "Schlossplatz 1"}`)
	s.GeocodeHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
	var candidates []geomodel.Candidate
	if err := json.Unmarshal(ctx.Response.Body(), &candidates); err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].ID != "nominatim-1" {
		t.Fatalf("unexpected candidates %v", candidates)
	}
}

func TestGeocodeHandlerEmptyResult(t *testing.T) {
	s := newTestServer(t, Deps{Geocoder: &fakeGeocoder{candidates: []geomodel.Candidate{}}})

	ctx := requestCtx(`{"query": "ab"}`)
	s.GeocodeHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200 for empty result, got %d", ctx.Response.StatusCode())
	}
	if string(ctx.Response.Body()) != "[]" {
		t.Fatalf("expected empty json array, got %s", ctx.Response.Body())
	}
}

func TestGeocodeHandlerAllProvidersFailed(t *testing.T) {
	s := newTestServer(t, Deps{Geocoder: &fakeGeocoder{err: geocoding.ErrAllProvidersFailed}})

	ctx := requestCtx(`{"query": "Schlossplatz 1"}`)
	s.GeocodeHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", ctx.Response.StatusCode())
	}
}

func TestGeocodeHandlerBadBody(t *testing.T) {
	s := newTestServer(t, Deps{Geocoder: &fakeGeocoder{}})

	ctx := requestCtx(`{not json`)
	s.GeocodeHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
}

func TestRoutesHandler(t *testing.T) {
	results := []geomodel.RouteResult{{ID: "revier-1", DistanceKm: 2.4, Provider: "osrm"}}
	s := newTestServer(t, Deps{Routes: &fakeRoutes{results: results}})

	ctx := requestCtx(`{"start": [9.18, 48.78], "targets": [{"id": "revier-1", "name": "Stuttgart-Mitte", "coordinates": [9.177, 48.776]}]}`)
	s.RoutesHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var got []geomodel.RouteResult
	if err := json.Unmarshal(ctx.Response.Body(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "revier-1" {
		t.Fatalf("unexpected results %v", got)
	}
}

func TestRoutesHandlerInvalidStart(t *testing.T) {
	s := newTestServer(t, Deps{Routes: &fakeRoutes{}})

	ctx := requestCtx(`{"start": [200, 95], "targets": []}`)
	s.RoutesHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
}

func TestRoutesHandlerInvalidTarget(t *testing.T) {
	s := newTestServer(t, Deps{Routes: &fakeRoutes{}})

	ctx := requestCtx(`{"start": [9.18, 48.78], "targets": [{"id": "", "coordinates": [9.177, 48.776]}]}`)
	s.RoutesHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", ctx.Response.StatusCode())
	}
}

func TestRoutesHandlerAttachesToSession(t *testing.T) {
	sessions := wizard.NewStore(30 * time.Minute)
	id := sessions.Create().ID
	_, err := sessions.SetStart(id, wizard.StartAddress{Address: "x", Coordinates: orb.Point{9.18, 48.78}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = sessions.SelectTargets(id, []string{"revier-1"})
	if err != nil {
		t.Fatal(err)
	}

	results := []geomodel.RouteResult{{ID: "revier-1"}}
	s := newTestServer(t, Deps{Routes: &fakeRoutes{results: results}, Sessions: sessions})

	ctx := requestCtx(`{"start": [9.18, 48.78], "targets": [{"id": "revier-1", "coordinates": [9.177, 48.776]}], "session_id": "` + id + `"}`)
	s.RoutesHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
	session, _ := sessions.Get(id)
	if len(session.Routes) != 1 {
		t.Fatalf("expected routes attached to session, got %d", len(session.Routes))
	}
}

func stationsStore() *stations.Store {
	return stations.NewStore(stations.Dataset{
		Praesidien: []stations.Praesidium{
			{ID: "praesidium-stuttgart", Name: "Polizeipräsidium Stuttgart", ChildReviere: []string{"revier-1"}},
		},
		Reviere: []stations.Revier{
			{ID: "revier-1", Name: "Polizeirevier Stuttgart-Mitte", PraesidiumID: "praesidium-stuttgart"},
		},
	})
}

func TestPraesidienHandler(t *testing.T) {
	s := newTestServer(t, Deps{Stations: stationsStore()})

	ctx := requestCtx("")
	ctx.QueryArgs().Set("q", "stuttgart")
	s.PraesidienHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
	var praesidien []stations.Praesidium
	if err := json.Unmarshal(ctx.Response.Body(), &praesidien); err != nil {
		t.Fatal(err)
	}
	if len(praesidien) != 1 {
		t.Fatalf("expected 1 praesidium, got %d", len(praesidien))
	}
}

func TestReviereHandlerUnknownID(t *testing.T) {
	s := newTestServer(t, Deps{Stations: stationsStore()})

	ctx := requestCtx("")
	ctx.SetUserValue("id", "praesidium-unknown")
	s.ReviereHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t, Deps{})

	ctx := requestCtx("")
	s.SessionCreateHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusCreated {
		t.Fatalf("expected 201, got %d", ctx.Response.StatusCode())
	}
	var session wizard.Session
	if err := json.Unmarshal(ctx.Response.Body(), &session); err != nil {
		t.Fatal(err)
	}

	ctx = requestCtx(`{"address": "Schlossplatz 1", "coordinates": [9.18, 48.78], "confidence": "submeter"}`)
	ctx.SetUserValue("id", session.ID)
	s.SessionStartHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}

	ctx = requestCtx(`{"target_ids": ["revier-1"]}`)
	ctx.SetUserValue("id", session.ID)
	s.SessionTargetsHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", ctx.Response.StatusCode(), ctx.Response.Body())
	}
	var updated wizard.Session
	if err := json.Unmarshal(ctx.Response.Body(), &updated); err != nil {
		t.Fatal(err)
	}
	if updated.Step != wizard.StepRoutesResults {
		t.Fatalf("expected routes-results step, got %s", updated.Step)
	}

	ctx = requestCtx("")
	ctx.SetUserValue("id", session.ID)
	s.SessionResetHandler(ctx)
	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
}

func TestSessionTargetsWithoutStart(t *testing.T) {
	s := newTestServer(t, Deps{})
	id := s.deps.Sessions.Create().ID

	ctx := requestCtx(`{"target_ids": ["revier-1"]}`)
	ctx.SetUserValue("id", id)
	s.SessionTargetsHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", ctx.Response.StatusCode())
	}
}

func TestSessionGetUnknown(t *testing.T) {
	s := newTestServer(t, Deps{})

	ctx := requestCtx("")
	ctx.SetUserValue("id", "unknown")
	s.SessionGetHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", ctx.Response.StatusCode())
	}
}

func TestStatusHandler(t *testing.T) {
	s := newTestServer(t, Deps{Stations: stationsStore()})

	ctx := requestCtx("")
	s.StatusHandler(ctx)

	if ctx.Response.StatusCode() != http.StatusOK {
		t.Fatalf("expected 200, got %d", ctx.Response.StatusCode())
	}
	var status struct {
		Status     string `json:"status"`
		Praesidien int    `json:"praesidien"`
		Reviere    int    `json:"reviere"`
	}
	if err := json.Unmarshal(ctx.Response.Body(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" || status.Praesidien != 1 || status.Reviere != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}
