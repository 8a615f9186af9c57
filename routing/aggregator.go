// Package routing computes driving routes to a batch of targets by
// querying multiple route providers per target, preferring traffic-aware
// results and degrading to a straight-line estimate when every provider
// fails.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/revierkompass/revierkompass/cache"
	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
)

// FallbackProvider tags synthetic straight-line results so consumers can
// visually distinguish estimated routes from calculated ones.
const FallbackProvider = "fallback"

const (
	maxAlternatives  = 3
	fallbackSpeedKmh = 50
	providerTimeout  = 10 * time.Second
)

var meter = otel.Meter("github.com/revierkompass/revierkompass/routing")

var (
	metricRoutesCalculated = mustCounter("route_calculated_total", "count of per-target route calculations")
	metricCacheHits        = mustCounter("route_cache_hit_total", "count of route cache hits")
	metricProviderErrors   = mustCounter("route_provider_error_total", "count of failed provider calls")
	metricFallbacks        = mustCounter("route_fallback_total", "count of straight-line fallback results")
)

func mustCounter(name, help string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(help))
	if err != nil {
		panic(err)
	}
	return c
}

// Provider is a single external routing service.
type Provider interface {
	Name() string
	TrafficAware() bool
	Route(ctx context.Context, start, end orb.Point, profile geomodel.Profile) (geomodel.RouteResult, error)
}

type Aggregator struct {
	providers []Provider
	cache     cache.Store[string, geomodel.RouteResult]
	log       *slog.Logger
	timeout   time.Duration
}

func NewAggregator(providers []Provider, store cache.Store[string, geomodel.RouteResult], log *slog.Logger) *Aggregator {
	return &Aggregator{
		providers: providers,
		cache:     store,
		log:       log,
		timeout:   providerTimeout,
	}
}

// CacheKey rounds both endpoints to 4 decimal places (~11 m) before
// joining them with the profile, so nearby starts and ends share one
// cached route. The collision is intentional.
func CacheKey(start, end orb.Point, profile geomodel.Profile) string {
	return fmt.Sprintf("%.4f,%.4f-%.4f,%.4f-%s", start[0], start[1], end[0], end[1], profile)
}

// CalculateRoutes resolves a driving route for every target concurrently
// and returns the results sorted by distance ascending. A target whose
// providers all fail degrades to a straight-line estimate; the batch
// itself never fails.
func (a *Aggregator) CalculateRoutes(ctx context.Context, start orb.Point, targets []geomodel.Target) []geomodel.RouteResult {
	p := pool.NewWithResults[geomodel.RouteResult]()
	for _, target := range targets {
		p.Go(func() geomodel.RouteResult {
			return a.routeTarget(ctx, start, target)
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})
	return results
}

func (a *Aggregator) routeTarget(ctx context.Context, start orb.Point, target geomodel.Target) geomodel.RouteResult {
	metricRoutesCalculated.Add(ctx, 1)

	key := CacheKey(start, target.Coordinates, geomodel.ProfileDriving)
	if cached, ok := a.cache.Get(key); ok {
		metricCacheHits.Add(ctx, 1)
		return relabel(cached, target)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type outcome struct {
		provider string
		result   geomodel.RouteResult
		err      error
	}

	p := pool.NewWithResults[outcome]()
	for _, provider := range a.providers {
		p.Go(func() outcome {
			result, err := provider.Route(ctx, start, target.Coordinates, geomodel.ProfileDriving)
			return outcome{provider: provider.Name(), result: result, err: err}
		})
	}
	outcomes := p.Wait()

	var chosen *geomodel.RouteResult
	for _, o := range outcomes {
		if o.err != nil {
			metricProviderErrors.Add(ctx, 1)
			a.log.Warn("routing provider failed", "provider", o.provider, "target", target.ID, "error", o.err)
			continue
		}
		result := o.result
		if chosen == nil || (result.TrafficAware && !chosen.TrafficAware) {
			chosen = &result
		}
	}

	if chosen == nil {
		metricFallbacks.Add(ctx, 1)
		return fallbackRoute(start, target)
	}

	// Only genuine provider results are cached, never the fallback.
	a.cache.Set(key, *chosen)
	return relabel(*chosen, target)
}

func relabel(result geomodel.RouteResult, target geomodel.Target) geomodel.RouteResult {
	result.ID = target.ID
	result.Name = target.Name
	return result
}

func fallbackRoute(start orb.Point, target geomodel.Target) geomodel.RouteResult {
	distance := geodist.Haversine(start, target.Coordinates)
	return geomodel.RouteResult{
		ID:              target.ID,
		Name:            target.Name,
		DistanceKm:      distance,
		DurationMinutes: int(math.Round(distance / fallbackSpeedKmh * 60)),
		Geometry:        geomodel.LineGeometry(start, target.Coordinates),
		Provider:        FallbackProvider,
		TrafficAware:    false,
	}
}
