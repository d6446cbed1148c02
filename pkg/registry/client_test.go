package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_BuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/companies", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2025-02-01", q.Get("registrationDateStart"))
		assert.Equal(t, "2025-08-01", q.Get("registrationDateEnd"))
		assert.Equal(t, "Helsinki", q.Get("registeredOffice"))
		assert.Equal(t, "56101", q.Get("businessLineCode"))
		assert.Equal(t, "100", q.Get("maxResults"))
		assert.Equal(t, "200", q.Get("resultsFrom"))

		_ = json.NewEncoder(w).Encode(SearchResponse{
			TotalResults: 1,
			Results: []CompanyStub{
				{BusinessID: "1234567-8", Name: "Foo Oy", RegistrationDate: "2025-03-15"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Endpoint{
		BaseURL:    srv.URL + "/v3",
		SearchPath: "/companies",
		DetailPath: "/companies/" + DetailPlaceholder,
	})

	resp, err := client.Search(context.Background(), SearchQuery{
		DateStart:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:          time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		RegisteredOffice: "Helsinki",
		BusinessLineCode: "56101",
		PageSize:         100,
		Offset:           200,
	})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Foo Oy", resp.Results[0].Name)
	assert.Equal(t, "1234567-8", resp.Results[0].BusinessID)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(Endpoint{BaseURL: srv.URL, SearchPath: "/companies"})
	_, err := client.Search(context.Background(), SearchQuery{PageSize: 10})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDetail_LanguageTaggedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/1234567-8", r.URL.Path)
		fmt.Fprint(w, `{
			"businessId": "1234567-8",
			"name": "Foo Oy",
			"addresses": [
				{"street": "Esimerkkikatu 5", "postCode": "00100", "city": "Helsinki", "language": "fi"},
				{"street": "Example Street 5", "postCode": "00100", "city": "Helsinki", "language": "en"}
			],
			"businessLines": [
				{"code": "56101", "text": "Ravintolat", "language": "fi"},
				{"code": "56101", "text": "Restaurants", "language": "en"}
			]
		}`)
	}))
	defer srv.Close()

	client := NewClient(Endpoint{
		BaseURL:    srv.URL,
		SearchPath: "/companies",
		DetailPath: "/companies/" + DetailPlaceholder,
	})

	detail, err := client.Detail(context.Background(), "1234567-8")
	require.NoError(t, err)

	assert.Equal(t, "Example Street 5", PickAddress(detail.Addresses).Street)
	assert.Equal(t, "Restaurants", PickText(detail.BusinessLines).Text)
}

func TestPick_LanguagePreferenceOrder(t *testing.T) {
	// English preferred.
	assert.Equal(t, "en text", PickText([]LocalizedText{
		{Text: "fi text", Language: "fi"},
		{Text: "en text", Language: "en"},
	}).Text)

	// Local language next.
	assert.Equal(t, "fi text", PickText([]LocalizedText{
		{Text: "sv text", Language: "sv"},
		{Text: "fi text", Language: "fi"},
	}).Text)

	// Any available last.
	assert.Equal(t, "sv text", PickText([]LocalizedText{
		{Text: "sv text", Language: "sv"},
	}).Text)

	// Nothing available.
	assert.Empty(t, PickText(nil).Text)
	assert.Empty(t, PickAddress(nil).Street)
}

func TestDetail_MalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `not json at all`)
	}))
	defer srv.Close()

	client := NewClient(Endpoint{BaseURL: srv.URL, DetailPath: "/" + DetailPlaceholder})
	_, err := client.Detail(context.Background(), "1234567-8")
	assert.Error(t, err)
}
