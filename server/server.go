package server

import (
	"context"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"time"

	"github.com/fasthttp/router"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/revierkompass/revierkompass/geomodel"
	"github.com/revierkompass/revierkompass/stations"
	"github.com/revierkompass/revierkompass/wizard"
)

const MaxBodySize = 4 * 1000 * 1000 // 4MB

var meter = otel.Meter("github.com/revierkompass/revierkompass/server")

// Geocoder and RouteCalculator are the aggregator surfaces the handlers
// use, kept as interfaces so tests can substitute fakes.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]geomodel.Candidate, error)
}

type RouteCalculator interface {
	CalculateRoutes(ctx context.Context, start orb.Point, targets []geomodel.Target) []geomodel.RouteResult
}

type Deps struct {
	Geocoder Geocoder
	Routes   RouteCalculator
	Stations *stations.Store
	Sessions *wizard.Store
}

func Run(ctx context.Context, address string, deps Deps) error {
	if err := setupTelemetry(ctx); err != nil {
		return fmt.Errorf("failed to initialize otel metrics: %w", err)
	}

	log := slog.Default()

	metricGeocodeCalls, err := meter.Int64Counter("http_geocode_call_total")
	if err != nil {
		return err
	}
	metricRouteCalls, err := meter.Int64Counter("http_routes_call_total")
	if err != nil {
		return err
	}
	metricTargetsRouted, err := meter.Int64Counter("targets_routed_total")
	if err != nil {
		return err
	}

	s := &server{
		deps:    deps,
		log:     log,
		started: time.Now(),

		metricGeocodeCalls:  metricGeocodeCalls,
		metricRouteCalls:    metricRouteCalls,
		metricTargetsRouted: metricTargetsRouted,
	}

	r := router.New()
	r.POST("/api/geocode", s.GeocodeHandler)
	r.POST("/api/routes", s.RoutesHandler)
	r.GET("/api/stations/praesidien", s.PraesidienHandler)
	r.GET("/api/stations/praesidien/{id}/reviere", s.ReviereHandler)
	r.POST("/api/wizard/sessions", s.SessionCreateHandler)
	r.GET("/api/wizard/sessions/{id}", s.SessionGetHandler)
	r.POST("/api/wizard/sessions/{id}/start", s.SessionStartHandler)
	r.POST("/api/wizard/sessions/{id}/targets", s.SessionTargetsHandler)
	r.POST("/api/wizard/sessions/{id}/reset", s.SessionResetHandler)
	r.GET("/status", s.StatusHandler)
	r.Handle(http.MethodGet, "/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))

	server := &fasthttp.Server{
		ReadTimeout:        time.Second * 5,
		MaxRequestBodySize: MaxBodySize,
		Handler:            r.Handler,
	}

	go func() {
		log.Info("Server listening", "address", address)
		if err := server.ListenAndServe(address); err != http.ErrServerClosed {
			stdlog.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Info("Server started")

	// wait cancel
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return server.ShutdownWithContext(shutdownCtx)
}

type server struct {
	deps    Deps
	log     *slog.Logger
	started time.Time

	metricGeocodeCalls  metric.Int64Counter
	metricRouteCalls    metric.Int64Counter
	metricTargetsRouted metric.Int64Counter
}
