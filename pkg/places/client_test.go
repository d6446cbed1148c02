package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.formattedAddress")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.location")

		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "restaurant in Helsinki", body.TextQuery)
		assert.Equal(t, "en", body.LanguageCode)
		assert.Equal(t, 20, body.PageSize)
		require.NotNil(t, body.LocationBias)
		assert.InDelta(t, 60.1699, body.LocationBias.Circle.Center.Latitude, 0.001)
		assert.InDelta(t, 30000, body.LocationBias.Circle.Radius, 0.1)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{
			Places: []Place{
				{
					DisplayName:      DisplayName{Text: "Ravintola Meri"},
					FormattedAddress: "Bulevardi 12, 00120 Helsinki, Finland",
					PrimaryType:      "restaurant",
					Types:            []string{"restaurant", "food"},
					Location:         &LatLng{Latitude: 60.164, Longitude: 24.938},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{
		TextQuery:    "restaurant in Helsinki",
		LanguageCode: "en",
		LocationBias: &LocationBias{
			Circle: Circle{Center: LatLng{Latitude: 60.1699, Longitude: 24.9384}, Radius: 30000},
		},
	})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Ravintola Meri", resp.Places[0].DisplayName.Text)
	assert.Equal(t, "restaurant", resp.Places[0].PrimaryType)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "invalid API key"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "test"})

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "403")
}

func TestTextSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TextSearchResponse{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "nothing here"})

	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestTypeSet_IncludesPrimaryType(t *testing.T) {
	p := Place{PrimaryType: "cafe", Types: []string{"restaurant", "food"}}
	set := p.TypeSet()

	assert.Len(t, set, 3)
	_, hasCafe := set["cafe"]
	assert.True(t, hasCafe)
}
