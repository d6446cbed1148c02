package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrResolutionExhausted is returned when neither specification discovery
// nor brute-force probing yields a usable endpoint. The caller is expected
// to skip the registry source for the run.
var ErrResolutionExhausted = eris.New("registry: endpoint resolution exhausted")

// DefaultDocPortals lists documentation pages known to embed a
// machine-readable API specification URL.
var DefaultDocPortals = []string{
	"https://avoindata.prh.fi/en/index.html",
	"https://avoindata.prh.fi/opendata-ytj-api/swagger-ui/index.html",
	"https://avoindata.prh.fi/ytj_en.html",
}

// DefaultCandidateBases and DefaultPathSuffixes drive the brute-force
// fallback: every base×suffix combination is probed in order.
var (
	DefaultCandidateBases = []string{
		"https://avoindata.prh.fi/opendata-ytj-api/v3/companies",
		"https://avoindata.prh.fi/opendata-ytj-api/v3",
		"https://avoindata.prh.fi/bis/v1",
	}
	DefaultPathSuffixes = []string{"", "/companies", "/search"}
)

// Spec-URL embedding patterns found on the documentation portals: a direct
// url assignment inside swagger bootstrap JS, and a urls array.
var (
	specURLAssignRE = regexp.MustCompile(`url:\s*["']([^"']+)["']`)
	specURLArrayRE  = regexp.MustCompile(`"urls"\s*:\s*\[\s*\{\s*"url"\s*:\s*"([^"]+)"`)
)

// Parameter names identifying the registration-date-range search operation
// inside a discovered API specification.
const (
	paramDateStart = "registrationDateStart"
	paramDateEnd   = "registrationDateEnd"
)

// ProbeQuery is the minimal, cheap query used to test candidate endpoints.
type ProbeQuery struct {
	DateStart        time.Time
	DateEnd          time.Time
	RegisteredOffice string
}

// Values renders the probe as query parameters, capped to one result.
func (p ProbeQuery) Values() url.Values {
	v := url.Values{
		"registrationDateStart": {p.DateStart.Format("2006-01-02")},
		"registrationDateEnd":   {p.DateEnd.Format("2006-01-02")},
		"maxResults":            {"1"},
	}
	if p.RegisteredOffice != "" {
		v.Set("registeredOffice", p.RegisteredOffice)
	}
	return v
}

// Resolver discovers the live registry endpoint. Resolution runs at most
// once; the descriptor is cached for the remainder of the run.
type Resolver struct {
	portals  []string
	bases    []string
	suffixes []string
	http     *http.Client

	resolved *Endpoint
}

// ResolverOption configures the resolver.
type ResolverOption func(*Resolver)

// WithDocPortals overrides the documentation portal list.
func WithDocPortals(portals []string) ResolverOption {
	return func(r *Resolver) {
		r.portals = portals
	}
}

// WithCandidates overrides the brute-force base URLs and path suffixes.
func WithCandidates(bases, suffixes []string) ResolverOption {
	return func(r *Resolver) {
		r.bases = bases
		r.suffixes = suffixes
	}
}

// WithResolverHTTPClient overrides the default http.Client.
func WithResolverHTTPClient(hc *http.Client) ResolverOption {
	return func(r *Resolver) {
		r.http = hc
	}
}

// NewResolver creates an endpoint resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		portals:  DefaultDocPortals,
		bases:    DefaultCandidateBases,
		suffixes: DefaultPathSuffixes,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the registry endpoint, discovering it on first call.
// Specification discovery is tried first; brute-force probing with the
// given query is the fallback. Returns ErrResolutionExhausted when both
// strategies run out.
func (r *Resolver) Resolve(ctx context.Context, probe ProbeQuery) (Endpoint, error) {
	if r.resolved != nil {
		return *r.resolved, nil
	}

	if ep, ok := r.discoverFromSpec(ctx); ok {
		r.resolved = &ep
		zap.L().Info("registry endpoint resolved via API specification",
			zap.String("base_url", ep.BaseURL),
			zap.String("search_path", ep.SearchPath),
		)
		return ep, nil
	}

	if ep, ok := r.bruteForce(ctx, probe); ok {
		r.resolved = &ep
		zap.L().Info("registry endpoint resolved via brute-force probing",
			zap.String("base_url", ep.BaseURL),
			zap.String("search_path", ep.SearchPath),
		)
		return ep, nil
	}

	return Endpoint{}, ErrResolutionExhausted
}

// discoverFromSpec scans each documentation portal for an embedded API
// specification URL, fetches the specification, and extracts the base URL
// plus the search operation matching the registration-date-range filters.
// Best effort: any failure moves on to the next portal.
func (r *Resolver) discoverFromSpec(ctx context.Context) (Endpoint, bool) {
	for _, portal := range r.portals {
		page, err := r.fetchText(ctx, portal)
		if err != nil {
			zap.L().Debug("registry: portal fetch failed",
				zap.String("portal", portal),
				zap.Error(err),
			)
			continue
		}

		specURL := findSpecURL(page)
		if specURL == "" {
			continue
		}
		specURL = resolveAgainst(portal, specURL)

		specBody, err := r.fetchText(ctx, specURL)
		if err != nil {
			zap.L().Debug("registry: spec fetch failed",
				zap.String("spec_url", specURL),
				zap.Error(err),
			)
			continue
		}

		ep, ok := parseSpec(specBody, specURL)
		if ok {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// findSpecURL scans portal text for an embedded specification URL using
// the two known embedding patterns.
func findSpecURL(page string) string {
	if m := specURLAssignRE.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	if m := specURLArrayRE.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	return ""
}

// apiSpec is the subset of an OpenAPI document the resolver cares about.
type apiSpec struct {
	Servers []struct {
		URL string `json:"url"`
	} `json:"servers"`
	Paths map[string]map[string]specOperation `json:"paths"`
}

type specOperation struct {
	Parameters []struct {
		Name string `json:"name"`
		In   string `json:"in"`
	} `json:"parameters"`
}

// parseSpec extracts the endpoint descriptor from a specification body.
// The search path is the operation whose parameters carry the
// registration-date-range filter names; the detail path is any path with
// an identifier placeholder, guessed from the search path when absent.
func parseSpec(body, specURL string) (Endpoint, bool) {
	var spec apiSpec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return Endpoint{}, false
	}
	if len(spec.Servers) == 0 {
		return Endpoint{}, false
	}

	base := strings.TrimRight(resolveAgainst(specURL, spec.Servers[0].URL), "/")

	var searchPath, detailPath string
	for path, ops := range spec.Paths {
		if strings.Contains(path, "{") && detailPath == "" {
			detailPath = normalizePlaceholder(path)
		}
		for _, op := range ops {
			if hasParams(op, paramDateStart, paramDateEnd) {
				searchPath = path
			}
		}
	}
	if searchPath == "" {
		return Endpoint{}, false
	}
	if detailPath == "" {
		detailPath = strings.TrimRight(searchPath, "/") + "/" + DetailPlaceholder
	}

	return Endpoint{BaseURL: base, SearchPath: searchPath, DetailPath: detailPath}, true
}

func hasParams(op specOperation, names ...string) bool {
	have := make(map[string]bool, len(op.Parameters))
	for _, p := range op.Parameters {
		if p.In == "" || p.In == "query" {
			have[p.Name] = true
		}
	}
	for _, n := range names {
		if !have[n] {
			return false
		}
	}
	return true
}

// normalizePlaceholder rewrites whatever identifier placeholder the spec
// declares to the canonical one.
func normalizePlaceholder(path string) string {
	open := strings.IndexByte(path, '{')
	end := strings.IndexByte(path, '}')
	if open < 0 || end < open {
		return path
	}
	return path[:open] + DetailPlaceholder + path[end+1:]
}

// bruteForce probes every base×suffix combination with the probe query.
// A "not found" response moves on to the next candidate; any other
// outcome — success or otherwise — accepts the combination, since the path
// may exist but reject this particular query shape.
func (r *Resolver) bruteForce(ctx context.Context, probe ProbeQuery) (Endpoint, bool) {
	params := probe.Values().Encode()

	for _, base := range r.bases {
		base = strings.TrimRight(base, "/")
		for _, suffix := range r.suffixes {
			probeURL := base + suffix + "?" + params

			status, err := r.probe(ctx, probeURL)
			if err == nil && status == http.StatusNotFound {
				continue
			}
			if err != nil {
				zap.L().Debug("registry: probe errored, accepting candidate",
					zap.String("url", probeURL),
					zap.Error(err),
				)
			}
			return Endpoint{
				BaseURL:    base,
				SearchPath: suffix,
				DetailPath: suffix + "/" + DetailPlaceholder,
			}, true
		}
	}
	return Endpoint{}, false
}

func (r *Resolver) probe(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "registry: create probe request")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return 0, eris.Wrap(err, "registry: probe request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (r *Resolver) fetchText(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "registry: create request")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "registry: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("registry: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "registry: read body")
	}
	return string(body), nil
}

// resolveAgainst resolves ref relative to base when ref is not absolute.
func resolveAgainst(base, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if refURL.IsAbs() {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
