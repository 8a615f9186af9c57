package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/valyala/fasthttp"

	"github.com/revierkompass/revierkompass/geocoding"
	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
	"github.com/revierkompass/revierkompass/wizard"
)

type geocodeRequest struct {
	Query string `json:"query"`
}

// GeocodeHandler resolves a free-text address. An empty candidate list
// is a normal 200 response; only the failure of every upstream provider
// becomes a 502.
func (s *server) GeocodeHandler(ctx *fasthttp.RequestCtx) {
	s.metricGeocodeCalls.Add(ctx, 1)

	var req geocodeRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		badRequest(ctx, "failed to parse request: "+err.Error())
		return
	}

	candidates, err := s.deps.Geocoder.Geocode(ctx, req.Query)
	if err != nil {
		if errors.Is(err, geocoding.ErrAllProvidersFailed) {
			writeError(ctx, http.StatusBadGateway, "geocoding unavailable")
			return
		}
		s.log.Error("geocoding failed", "error", err)
		writeError(ctx, http.StatusInternalServerError, "geocoding failed")
		return
	}

	writeJSON(ctx, http.StatusOK, candidates)
}

type routesRequest struct {
	Start     orb.Point         `json:"start"`
	Targets   []geomodel.Target `json:"targets"`
	SessionID string            `json:"session_id,omitempty"`
}

// RoutesHandler computes routes from a start coordinate to each target.
// Per-target provider failures degrade to estimates inside the
// aggregator, so this handler only fails on malformed input.
func (s *server) RoutesHandler(ctx *fasthttp.RequestCtx) {
	s.metricRouteCalls.Add(ctx, 1)

	var req routesRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		badRequest(ctx, "failed to parse request: "+err.Error())
		return
	}
	if !geodist.Valid(req.Start) {
		badRequest(ctx, "start is not a valid lon/lat coordinate")
		return
	}
	for _, target := range req.Targets {
		if target.ID == "" || !geodist.Valid(target.Coordinates) {
			badRequest(ctx, "target "+target.ID+" is invalid")
			return
		}
	}

	s.metricTargetsRouted.Add(ctx, int64(len(req.Targets)))
	results := s.deps.Routes.CalculateRoutes(ctx, req.Start, req.Targets)

	if req.SessionID != "" && s.deps.Sessions != nil {
		if _, err := s.deps.Sessions.SetRoutes(req.SessionID, results); err != nil {
			s.log.Warn("could not attach routes to session", "session", req.SessionID, "error", err)
		}
	}

	writeJSON(ctx, http.StatusOK, results)
}

func (s *server) PraesidienHandler(ctx *fasthttp.RequestCtx) {
	query := string(ctx.QueryArgs().Peek("q"))
	writeJSON(ctx, http.StatusOK, s.deps.Stations.SearchPraesidien(query))
}

func (s *server) ReviereHandler(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)
	if _, ok := s.deps.Stations.Praesidium(id); !ok {
		writeError(ctx, http.StatusNotFound, "unknown praesidium")
		return
	}
	writeJSON(ctx, http.StatusOK, s.deps.Stations.ReviereOf(id))
}

func (s *server) SessionCreateHandler(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, http.StatusCreated, s.deps.Sessions.Create())
}

func (s *server) SessionGetHandler(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)
	session, ok := s.deps.Sessions.Get(id)
	if !ok {
		writeError(ctx, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(ctx, http.StatusOK, session)
}

func (s *server) SessionStartHandler(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	var start wizard.StartAddress
	if err := json.Unmarshal(ctx.Request.Body(), &start); err != nil {
		badRequest(ctx, "failed to parse request: "+err.Error())
		return
	}
	if !geodist.Valid(start.Coordinates) {
		badRequest(ctx, "start is not a valid lon/lat coordinate")
		return
	}

	session, err := s.deps.Sessions.SetStart(id, start)
	if err != nil {
		writeSessionError(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, session)
}

type targetsRequest struct {
	TargetIDs []string `json:"target_ids"`
}

func (s *server) SessionTargetsHandler(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	var req targetsRequest
	if err := json.Unmarshal(ctx.Request.Body(), &req); err != nil {
		badRequest(ctx, "failed to parse request: "+err.Error())
		return
	}

	session, err := s.deps.Sessions.SelectTargets(id, req.TargetIDs)
	if err != nil {
		writeSessionError(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, session)
}

func (s *server) SessionResetHandler(ctx *fasthttp.RequestCtx) {
	id := ctx.UserValue("id").(string)

	session, err := s.deps.Sessions.Reset(id)
	if err != nil {
		writeSessionError(ctx, err)
		return
	}
	writeJSON(ctx, http.StatusOK, session)
}

func writeSessionError(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, wizard.ErrNotFound):
		writeError(ctx, http.StatusNotFound, "unknown session")
	case errors.Is(err, wizard.ErrNoStartAddress), errors.Is(err, wizard.ErrNoTargets):
		writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(ctx, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		ctx.Response.SetStatusCode(http.StatusInternalServerError)
		ctx.Response.SetBodyString("failed to marshal response")
		return
	}
	ctx.Response.Header.SetContentType("application/json")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyString(message)
}

func badRequest(ctx *fasthttp.RequestCtx, message string) {
	writeError(ctx, http.StatusBadRequest, message)
}
