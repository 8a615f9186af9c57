// Package geocoding turns free-text address queries into ranked
// candidate lists by fanning out to multiple providers, normalizing
// their responses and reconciling the results.
package geocoding

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/revierkompass/revierkompass/cache"
	"github.com/revierkompass/revierkompass/geodist"
	"github.com/revierkompass/revierkompass/geomodel"
)

// ErrAllProvidersFailed is returned when no provider produced a
// response at all. An empty candidate list is not an error.
var ErrAllProvidersFailed = errors.New("all geocoding providers failed")

const (
	minQueryRunes  = 3
	maxCandidates  = 5
	dedupeRadiusKm = 0.1
)

var meter = otel.Meter("github.com/revierkompass/revierkompass/geocoding")

var (
	metricLookups        = mustCounter("geocode_lookup_total", "count of geocode operations")
	metricCacheHits      = mustCounter("geocode_cache_hit_total", "count of geocode cache hits")
	metricProviderErrors = mustCounter("geocode_provider_error_total", "count of failed provider calls")
)

func mustCounter(name, help string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(help))
	if err != nil {
		panic(err)
	}
	return c
}

// Provider is a single external geocoding service.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]geomodel.Candidate, error)
}

// Aggregator queries all providers concurrently and merges their
// candidates into one ranked, deduplicated, region-filtered list.
type Aggregator struct {
	providers []Provider
	cache     cache.Store[string, []geomodel.Candidate]
	region    []string
	log       *slog.Logger
}

// NewAggregator builds an aggregator filtering to the given
// administrative region, e.g. "Baden-Württemberg". The cache keeps
// whole result lists keyed by the normalized query.
func NewAggregator(providers []Provider, store cache.Store[string, []geomodel.Candidate], region string, log *slog.Logger) *Aggregator {
	return &Aggregator{
		providers: providers,
		cache:     store,
		region:    regionTerms(region),
		log:       log,
	}
}

// regionTerms returns the lowercase match terms for a region name,
// including an ASCII-folded variant so "Baden-Wurttemberg" spellings in
// provider output still match.
func regionTerms(region string) []string {
	region = strings.ToLower(strings.TrimSpace(region))
	if region == "" {
		return nil
	}
	terms := []string{region}
	if folded := asciiFold(region); folded != region {
		terms = append(terms, folded)
	}
	return terms
}

var umlauts = strings.NewReplacer("ä", "a", "ö", "o", "ü", "u", "ß", "ss")

func asciiFold(s string) string {
	return umlauts.Replace(s)
}

// Geocode resolves query to at most five candidates, best first.
//
// Queries shorter than three characters return an empty list without any
// network call. Cached lists are returned as-is. Otherwise every provider
// is asked concurrently; individual failures are tolerated and logged,
// and only the failure of every provider is surfaced as an error.
func (a *Aggregator) Geocode(ctx context.Context, query string) ([]geomodel.Candidate, error) {
	metricLookups.Add(ctx, 1)

	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryRunes {
		return []geomodel.Candidate{}, nil
	}

	key := strings.ToLower(query)
	if cached, ok := a.cache.Get(key); ok {
		metricCacheHits.Add(ctx, 1)
		return cached, nil
	}

	type outcome struct {
		provider   string
		candidates []geomodel.Candidate
		err        error
	}

	p := pool.NewWithResults[outcome]()
	for _, provider := range a.providers {
		p.Go(func() outcome {
			candidates, err := provider.Search(ctx, query)
			return outcome{provider: provider.Name(), candidates: candidates, err: err}
		})
	}
	outcomes := p.Wait()

	var all []geomodel.Candidate
	failures := 0
	for _, o := range outcomes {
		if o.err != nil {
			failures++
			metricProviderErrors.Add(ctx, 1)
			a.log.Warn("geocoding provider failed", "provider", o.provider, "error", o.err)
			continue
		}
		all = append(all, o.candidates...)
	}
	if failures == len(a.providers) {
		return nil, ErrAllProvidersFailed
	}

	result := a.rank(a.filterRegion(all))
	a.cache.Set(key, result)
	return result, nil
}

// filterRegion keeps candidates whose address state or display name
// contains the target region, case-insensitively. Candidates outside the
// region are discarded even if otherwise valid.
func (a *Aggregator) filterRegion(candidates []geomodel.Candidate) []geomodel.Candidate {
	if len(a.region) == 0 {
		return candidates
	}
	kept := candidates[:0:0]
	for _, c := range candidates {
		state := strings.ToLower(c.Address.State)
		display := strings.ToLower(c.DisplayName)
		for _, term := range a.region {
			if strings.Contains(state, term) || strings.Contains(display, term) {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}

// rank sorts by confidence tier then provider importance, drops
// candidates within dedupeRadiusKm of a better-ranked one and truncates
// to maxCandidates.
func (a *Aggregator) rank(candidates []geomodel.Candidate) []geomodel.Candidate {
	sortCandidates(candidates)

	deduplicated := make([]geomodel.Candidate, 0, len(candidates))
	for _, c := range candidates {
		duplicate := false
		for _, kept := range deduplicated {
			if geodist.Haversine(c.Coordinates, kept.Coordinates) < dedupeRadiusKm {
				duplicate = true
				break
			}
		}
		if !duplicate {
			deduplicated = append(deduplicated, c)
		}
	}

	if len(deduplicated) > maxCandidates {
		deduplicated = deduplicated[:maxCandidates]
	}
	return deduplicated
}

func sortCandidates(candidates []geomodel.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].Confidence.Rank(), candidates[j].Confidence.Rank()
		if ri != rj {
			return ri > rj
		}
		return candidates[i].Importance > candidates[j].Importance
	})
}
