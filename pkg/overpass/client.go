// Package overpass queries the OpenStreetMap Overpass API for food-service
// venues inside a city's administrative boundary.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultMirrors is the ordered list of public Overpass endpoints. They all
// speak the same query language; the first one to answer wins.
var DefaultMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://overpass.nchc.org.tw/api/interpreter",
}

// Query describes one venue search.
type Query struct {
	City          string
	Cutoff        time.Time
	Amenities     []string
	UseNewerProxy bool
}

// Response is the Overpass JSON payload.
type Response struct {
	Elements []Element `json:"elements"`
}

// Element is one OSM node/way/relation hit. Ways and relations carry their
// coordinates in Center rather than Lat/Lon.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *LatLon           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

// LatLon is a coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates returns the element's position, preferring the direct
// lat/lon over the computed center.
func (e *Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Client performs Overpass API queries.
type Client interface {
	Fetch(ctx context.Context, q Query) (*Response, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithMirrors overrides the default mirror list.
func WithMirrors(mirrors []string) Option {
	return func(c *httpClient) {
		c.mirrors = mirrors
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	mirrors []string
	http    *http.Client
}

// NewClient creates an Overpass client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		mirrors: DefaultMirrors,
		http: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch runs the query against each mirror in order and returns the first
// successful response. It fails only when every mirror fails.
func (c *httpClient) Fetch(ctx context.Context, q Query) (*Response, error) {
	form := url.Values{"data": {BuildQL(q)}}
	body := form.Encode()

	var lastErr error
	for _, mirror := range c.mirrors {
		resp, err := c.post(ctx, mirror, body)
		if err != nil {
			lastErr = err
			zap.L().Warn("overpass mirror failed, trying next",
				zap.String("mirror", mirror),
				zap.Error(err),
			)
			continue
		}
		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "overpass: all mirrors failed")
}

func (c *httpClient) post(ctx context.Context, mirror, body string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, mirror, strings.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("overpass: unexpected status %d from %s", resp.StatusCode, mirror)
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "overpass: unmarshal response")
	}

	return &result, nil
}

// AmenityRegex builds the amenity alternation for the query, escaping each
// value. Falls back to "restaurant" when the list is empty.
func AmenityRegex(amenities []string) string {
	safe := make([]string, 0, len(amenities))
	for _, a := range amenities {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		safe = append(safe, regexp.QuoteMeta(a))
	}
	if len(safe) == 0 {
		return "restaurant"
	}
	return strings.Join(safe, "|")
}

// BuildQL renders the Overpass QL for a query: venues within the city's
// administrative boundary carrying an explicit opening/start date, plus an
// optional recently-edited clause as a lower-confidence recency proxy.
func BuildQL(q Query) string {
	amenityRE := AmenityRegex(q.Amenities)

	parts := []string{
		fmt.Sprintf(`nwr["amenity"~"^(%s)$"]["opening_date"](area.searchArea);`, amenityRE),
		fmt.Sprintf(`nwr["amenity"~"^(%s)$"]["start_date"](area.searchArea);`, amenityRE),
	}
	if q.UseNewerProxy {
		parts = append(parts, fmt.Sprintf(
			`nwr["amenity"~"^(%s)$"](newer:"%sT00:00:00Z")(area.searchArea);`,
			amenityRE, q.Cutoff.Format("2006-01-02"),
		))
	}

	return fmt.Sprintf(`
[out:json][timeout:180];
area["name"=%q]["boundary"="administrative"]["admin_level"="8"]->.searchArea;
(
  %s
);
out center tags;
`, q.City, strings.Join(parts, "\n  "))
}
