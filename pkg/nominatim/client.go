// Package nominatim reverse-geocodes coordinates into free-text addresses
// via the OpenStreetMap Nominatim service.
//
// Nominatim's usage policy requires an identifying User-Agent and at most
// one request per second; the client enforces both. The delay is a
// correctness requirement, not a convenience: the service degrades or
// blocks callers that exceed it.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client resolves coordinates to display addresses.
type Client interface {
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the courtesy limiter. Tests use a high rate to
// avoid real sleeps.
func WithRateLimit(limit rate.Limit) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(limit, 1)
	}
}

type httpClient struct {
	userAgent string
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Nominatim client. userAgent identifies the caller
// per the service's usage policy and must not be empty.
func NewClient(userAgent string, opts ...Option) Client {
	c := &httpClient{
		userAgent: userAgent,
		baseURL:   defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Reverse resolves lat/lon to a display address. Blocks on the courtesy
// limiter before each call.
func (c *httpClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "nominatim: rate limiter wait")
	}

	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', -1, 64)},
		"format": {"jsonv2"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", eris.Wrap(err, "nominatim: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "nominatim: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "nominatim: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("nominatim: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result reverseResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", eris.Wrap(err, "nominatim: unmarshal response")
	}

	return result.DisplayName, nil
}
