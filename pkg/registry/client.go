package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client performs registry search and detail lookups against a resolved
// endpoint.
type Client interface {
	Search(ctx context.Context, q SearchQuery) (*SearchResponse, error)
	Detail(ctx context.Context, businessID string) (*CompanyDetail, error)
}

// SearchQuery filters registrations by date range, registered office, and
// business line, with offset paging.
type SearchQuery struct {
	DateStart        time.Time
	DateEnd          time.Time
	RegisteredOffice string
	BusinessLineCode string
	PageSize         int
	Offset           int
}

// SearchResponse is one page of registration hits.
type SearchResponse struct {
	TotalResults int           `json:"totalResults"`
	Results      []CompanyStub `json:"results"`
}

// CompanyStub is the minimal per-company search hit.
type CompanyStub struct {
	BusinessID       string `json:"businessId"`
	Name             string `json:"name"`
	RegistrationDate string `json:"registrationDate"`
	LastModified     string `json:"lastModified,omitempty"`
}

// CompanyDetail is the supplementary detail payload for one company.
// Addresses and business lines are language-tagged.
type CompanyDetail struct {
	BusinessID    string             `json:"businessId"`
	Name          string             `json:"name"`
	Addresses     []LocalizedAddress `json:"addresses"`
	BusinessLines []LocalizedText    `json:"businessLines"`
}

// LocalizedAddress is one registered address variant.
type LocalizedAddress struct {
	Street   string `json:"street"`
	PostCode string `json:"postCode"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Language string `json:"language"`
}

// LocalizedText is a language-tagged code/text pair.
type LocalizedText struct {
	Code     string `json:"code"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

// languagePreference orders detail variants: English first, then the local
// language, then whatever is available.
var languagePreference = []string{"en", "fi"}

// PickAddress selects the preferred-language address, or the zero value
// when none exist.
func PickAddress(addrs []LocalizedAddress) LocalizedAddress {
	for _, lang := range languagePreference {
		for _, a := range addrs {
			if a.Language == lang {
				return a
			}
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return LocalizedAddress{}
}

// PickText selects the preferred-language text entry, or the zero value
// when none exist.
func PickText(entries []LocalizedText) LocalizedText {
	for _, lang := range languagePreference {
		for _, e := range entries {
			if e.Language == lang {
				return e
			}
		}
	}
	if len(entries) > 0 {
		return entries[0]
	}
	return LocalizedText{}
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	endpoint Endpoint
	http     *http.Client
}

// NewClient creates a registry client bound to a resolved endpoint.
func NewClient(endpoint Endpoint, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, q SearchQuery) (*SearchResponse, error) {
	params := url.Values{
		"registrationDateStart": {q.DateStart.Format("2006-01-02")},
		"registrationDateEnd":   {q.DateEnd.Format("2006-01-02")},
		"maxResults":            {strconv.Itoa(q.PageSize)},
		"resultsFrom":           {strconv.Itoa(q.Offset)},
	}
	if q.RegisteredOffice != "" {
		params.Set("registeredOffice", q.RegisteredOffice)
	}
	if q.BusinessLineCode != "" {
		params.Set("businessLineCode", q.BusinessLineCode)
	}

	body, err := c.get(ctx, c.endpoint.SearchURL()+"?"+params.Encode())
	if err != nil {
		return nil, eris.Wrap(err, "registry: search")
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) Detail(ctx context.Context, businessID string) (*CompanyDetail, error) {
	body, err := c.get(ctx, c.endpoint.DetailURL(businessID))
	if err != nil {
		return nil, eris.Wrapf(err, "registry: detail %s", businessID)
	}

	var result CompanyDetail
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrapf(err, "registry: unmarshal detail %s", businessID)
	}
	return &result, nil
}

func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return body, nil
}
