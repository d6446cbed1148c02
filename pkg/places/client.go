// Package places wraps the Google Places (New) Text Search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const fieldMask = "places.displayName,places.formattedAddress," +
	"places.primaryType,places.types,places.businessStatus,places.location"

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, req TextSearchRequest) (*TextSearchResponse, error)
}

// TextSearchRequest is the Places Text Search request body.
type TextSearchRequest struct {
	TextQuery           string        `json:"textQuery"`
	LanguageCode        string        `json:"languageCode,omitempty"`
	PageSize            int           `json:"pageSize,omitempty"`
	IncludedType        string        `json:"includedType,omitempty"`
	StrictTypeFiltering bool          `json:"strictTypeFiltering,omitempty"`
	LocationBias        *LocationBias `json:"locationBias,omitempty"`
}

// LocationBias biases results toward a circular area.
type LocationBias struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point with a radius in meters.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	DisplayName      DisplayName `json:"displayName"`
	FormattedAddress string      `json:"formattedAddress"`
	PrimaryType      string      `json:"primaryType"`
	Types            []string    `json:"types"`
	BusinessStatus   string      `json:"businessStatus"`
	Location         *LatLng     `json:"location"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// TypeSet returns the place's types plus its primary type as a set.
func (p *Place) TypeSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Types)+1)
	for _, t := range p.Types {
		set[t] = struct{}{}
	}
	if p.PrimaryType != "" {
		set[p.PrimaryType] = struct{}{}
	}
	return set
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) TextSearch(ctx context.Context, searchReq TextSearchRequest) (*TextSearchResponse, error) {
	if searchReq.PageSize == 0 {
		searchReq.PageSize = 20
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}

	return &result, nil
}
