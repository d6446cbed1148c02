// Package pipeline orchestrates the multi-source venue discovery run:
// geo-tag search, inline reverse-geocode backfill, place search, and the
// business registry, normalized and merged into one confidence-scored list.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/wom-group/openings-cli/internal/geospatial"
	"github.com/wom-group/openings-cli/internal/model"
	"github.com/wom-group/openings-cli/pkg/nominatim"
	"github.com/wom-group/openings-cli/pkg/overpass"
	"github.com/wom-group/openings-cli/pkg/places"
	"github.com/wom-group/openings-cli/pkg/registry"
)

// QueryContext is the immutable per-run query. It is constructed once by
// the caller and read-only to every adapter.
type QueryContext struct {
	City              string
	Cutoff            time.Time
	Amenities         []string
	RegisteredOffice  string
	BusinessLineCodes []string
	PageSize          int
	MaxResults        int

	UseNewerProxy     bool
	ReverseGeocode    bool
	UsePlaceSearch    bool
	UseRegistry       bool
	StrictRestaurants bool
}

// CityCenter is a known city-center point with an acceptance radius for
// place-search candidates. Cities without a configured center fall back
// to the textual address check alone.
type CityCenter struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
}

// DefaultCityCenters covers the cities the tool was built for.
var DefaultCityCenters = map[string]CityCenter{
	"helsinki": {Lat: 60.1699, Lon: 24.9384, RadiusKM: 30},
}

// placeQueryTemplates are the canned free-text place searches issued per
// city.
var placeQueryTemplates = []string{
	"restaurant in %s",
	"cafe in %s",
	"street food in %s",
	"new restaurant in %s",
	"bistro in %s",
	"food stall in %s",
	"food court in %s",
}

// ReverseCache is an optional persistent cache for reverse-geocode
// results, keyed by coordinates. Lookups and stores are best effort.
type ReverseCache interface {
	Lookup(ctx context.Context, lat, lon float64) (string, bool)
	Store(ctx context.Context, lat, lon float64, address string) error
}

// Result is the aggregated outcome of one discovery run.
type Result struct {
	Records      []*model.Record
	SourceCounts map[model.Source]int
	// SkippedSources lists sources that contributed nothing because of a
	// total source-level failure (e.g. registry endpoint resolution).
	SkippedSources []model.Source
}

// Pipeline sequences the source adapters and owns the shared dedup state.
// Execution is strictly sequential; no adapter runs concurrently.
type Pipeline struct {
	overpass  overpass.Client
	nominatim nominatim.Client
	places    places.Client
	resolver  *registry.Resolver

	// registryEndpoint, when set, bypasses endpoint resolution entirely.
	registryEndpoint *registry.Endpoint
	newRegistry      func(registry.Endpoint) registry.Client

	cityCenters map[string]CityCenter
	cache       ReverseCache
}

// PipelineOption configures the pipeline.
type PipelineOption func(*Pipeline)

// WithNominatim enables reverse-geocode backfill.
func WithNominatim(c nominatim.Client) PipelineOption {
	return func(p *Pipeline) { p.nominatim = c }
}

// WithPlaces enables the place-search source.
func WithPlaces(c places.Client) PipelineOption {
	return func(p *Pipeline) { p.places = c }
}

// WithRegistryResolver enables the registry source via endpoint discovery.
func WithRegistryResolver(r *registry.Resolver) PipelineOption {
	return func(p *Pipeline) { p.resolver = r }
}

// WithRegistryEndpoint pins the registry endpoint, bypassing discovery.
func WithRegistryEndpoint(ep registry.Endpoint) PipelineOption {
	return func(p *Pipeline) { p.registryEndpoint = &ep }
}

// WithCityCenters overrides the known city-center table.
func WithCityCenters(centers map[string]CityCenter) PipelineOption {
	return func(p *Pipeline) { p.cityCenters = centers }
}

// WithReverseCache attaches a persistent reverse-geocode cache.
func WithReverseCache(c ReverseCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

// New creates a discovery pipeline. The geo-tag client is mandatory;
// every other source is optional.
func New(overpassClient overpass.Client, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		overpass:    overpassClient,
		newRegistry: func(ep registry.Endpoint) registry.Client { return registry.NewClient(ep) },
		cityCenters: DefaultCityCenters,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run executes the discovery pipeline for the query context. Sources run
// in fixed order: geo-tag, place search, registry. A failure in an
// optional source never aborts the run; only total geo-tag failure does.
func (p *Pipeline) Run(ctx context.Context, qc QueryContext) (*Result, error) {
	amenities := qc.Amenities
	if qc.StrictRestaurants {
		amenities = []string{"restaurant"}
	}

	dedup := NewDeduper()
	result := &Result{SourceCounts: make(map[model.Source]int)}

	if err := p.runGeoTag(ctx, qc, amenities, dedup, result); err != nil {
		return nil, err
	}

	if qc.UsePlaceSearch && p.places != nil {
		p.runPlaceSearch(ctx, qc, dedup, result)
	}

	if qc.UseRegistry {
		p.runRegistry(ctx, qc, dedup, result)
	}

	result.Records = dedup.Records()
	return result, nil
}

// runGeoTag queries the mandatory primary source. Total mirror failure is
// the only condition fatal to the run.
func (p *Pipeline) runGeoTag(ctx context.Context, qc QueryContext, amenities []string, dedup *Deduper, result *Result) error {
	pattern, err := amenityPattern(amenities)
	if err != nil {
		return eris.Wrap(err, "pipeline: compile amenity filter")
	}

	resp, err := p.overpass.Fetch(ctx, overpass.Query{
		City:          qc.City,
		Cutoff:        qc.Cutoff,
		Amenities:     amenities,
		UseNewerProxy: qc.UseNewerProxy,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: geo-tag source failed")
	}

	for _, el := range resp.Elements {
		if len(el.Tags) == 0 || !pattern.MatchString(el.Tags["amenity"]) {
			continue
		}

		rec := NormalizeElement(el, qc.Cutoff, qc.UseNewerProxy)
		if rec == nil {
			continue
		}

		if rec.Address == "" && qc.ReverseGeocode && p.nominatim != nil {
			rec.Address = p.backfillAddress(ctx, el)
		}

		if dedup.Add(rec) {
			result.SourceCounts[model.SourceOpenStreetMap]++
		}
	}

	return nil
}

// backfillAddress resolves an element's coordinates to a display address.
// Best effort: any failure yields an empty address, never an aborted
// record.
func (p *Pipeline) backfillAddress(ctx context.Context, el overpass.Element) string {
	lat, lon, ok := el.Coordinates()
	if !ok {
		return ""
	}

	if p.cache != nil {
		if addr, hit := p.cache.Lookup(ctx, lat, lon); hit {
			return addr
		}
	}

	addr, err := p.nominatim.Reverse(ctx, lat, lon)
	if err != nil {
		zap.L().Warn("reverse geocode failed, leaving address empty",
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err),
		)
		return ""
	}

	if p.cache != nil && addr != "" {
		if err := p.cache.Store(ctx, lat, lon, addr); err != nil {
			zap.L().Debug("reverse geocode cache store failed", zap.Error(err))
		}
	}
	return addr
}

// runPlaceSearch issues the canned text queries and filters candidates by
// place type and city membership.
func (p *Pipeline) runPlaceSearch(ctx context.Context, qc QueryContext, dedup *Deduper, result *Result) {
	allowed := map[string]struct{}{"restaurant": {}, "cafe": {}, "fast_food": {}}
	excluded := map[string]struct{}{
		"bar": {}, "pub": {}, "night_club": {}, "casino": {}, "lodging": {}, "gas_station": {},
	}
	if qc.StrictRestaurants {
		allowed = map[string]struct{}{"restaurant": {}}
		excluded["cafe"] = struct{}{}
		excluded["fast_food"] = struct{}{}
	}

	center, hasCenter := p.cityCenters[strings.ToLower(qc.City)]

	var bias *places.LocationBias
	if hasCenter {
		bias = &places.LocationBias{
			Circle: places.Circle{
				Center: places.LatLng{Latitude: center.Lat, Longitude: center.Lon},
				Radius: center.RadiusKM * 1000,
			},
		}
	}

	for _, tmpl := range placeQueryTemplates {
		query := fmt.Sprintf(tmpl, qc.City)

		resp, err := p.places.TextSearch(ctx, places.TextSearchRequest{
			TextQuery:    query,
			LanguageCode: "en",
			PageSize:     20,
			LocationBias: bias,
		})
		if err != nil {
			zap.L().Warn("place search query failed",
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}

		for _, place := range resp.Places {
			if !placeAcceptable(place, allowed, excluded) {
				continue
			}
			if !p.placeInCity(place, qc.City, center, hasCenter) {
				continue
			}
			if dedup.Add(NormalizePlace(place)) {
				result.SourceCounts[model.SourceGooglePlaces]++
			}
		}
	}
}

// placeAcceptable applies the allow/exclude type lists. Exclusion wins
// when a candidate matches both.
func placeAcceptable(place places.Place, allowed, excluded map[string]struct{}) bool {
	types := place.TypeSet()
	for t := range types {
		if _, bad := excluded[t]; bad {
			return false
		}
	}
	for t := range types {
		if _, ok := allowed[t]; ok {
			return true
		}
	}
	return false
}

// placeInCity accepts a candidate whose formatted address mentions the
// city, or whose coordinates lie within the configured center radius.
// The radius check is only available for cities with a configured center.
func (p *Pipeline) placeInCity(place places.Place, city string, center CityCenter, hasCenter bool) bool {
	if place.FormattedAddress != "" &&
		strings.Contains(strings.ToLower(place.FormattedAddress), strings.ToLower(city)) {
		return true
	}
	if hasCenter && place.Location != nil {
		return geospatial.WithinRadiusKM(
			place.Location.Latitude, place.Location.Longitude,
			center.Lat, center.Lon, center.RadiusKM,
		)
	}
	return false
}

// runRegistry resolves the registry endpoint (unless pinned), then pages
// through registrations per business-line filter with one detail lookup
// per hit. Endpoint-resolution exhaustion skips the source with a warning.
func (p *Pipeline) runRegistry(ctx context.Context, qc QueryContext, dedup *Deduper, result *Result) {
	endpoint, err := p.resolveRegistryEndpoint(ctx, qc)
	if err != nil {
		zap.L().Warn("registry endpoint unresolvable, skipping source", zap.Error(err))
		result.SkippedSources = append(result.SkippedSources, model.SourceRegistry)
		return
	}

	client := p.newRegistry(endpoint)

	codes := qc.BusinessLineCodes
	if len(codes) == 0 {
		codes = []string{""}
	}

	pageSize := qc.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	collected := 0
	for _, code := range codes {
		offset := 0
		for {
			if qc.MaxResults > 0 && collected >= qc.MaxResults {
				return
			}

			page, err := client.Search(ctx, registry.SearchQuery{
				DateStart:        qc.Cutoff,
				DateEnd:          time.Now().UTC(),
				RegisteredOffice: qc.RegisteredOffice,
				BusinessLineCode: code,
				PageSize:         pageSize,
				Offset:           offset,
			})
			if err != nil {
				zap.L().Warn("registry search page failed",
					zap.String("business_line_code", code),
					zap.Int("offset", offset),
					zap.Error(err),
				)
				break
			}

			for _, stub := range page.Results {
				if qc.MaxResults > 0 && collected >= qc.MaxResults {
					return
				}
				collected++

				detail, err := client.Detail(ctx, stub.BusinessID)
				if err != nil {
					zap.L().Warn("registry detail lookup failed, emitting bare hit",
						zap.String("business_id", stub.BusinessID),
						zap.Error(err),
					)
					detail = nil
				}

				if dedup.Add(NormalizeRegistryHit(stub, detail)) {
					result.SourceCounts[model.SourceRegistry]++
				}
			}

			if len(page.Results) < pageSize {
				break
			}
			offset += len(page.Results)
		}
	}
}

func (p *Pipeline) resolveRegistryEndpoint(ctx context.Context, qc QueryContext) (registry.Endpoint, error) {
	if p.registryEndpoint != nil {
		return *p.registryEndpoint, nil
	}
	if p.resolver == nil {
		return registry.Endpoint{}, eris.New("pipeline: no registry resolver configured")
	}
	return p.resolver.Resolve(ctx, registry.ProbeQuery{
		DateStart:        qc.Cutoff,
		DateEnd:          time.Now().UTC(),
		RegisteredOffice: qc.RegisteredOffice,
	})
}
