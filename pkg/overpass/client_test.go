package overpass

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(f float64) *float64 { return &f }

func TestFetch_FirstMirrorWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		ql := r.Form.Get("data")
		assert.Contains(t, ql, `area["name"="Helsinki"]`)
		assert.Contains(t, ql, `["opening_date"]`)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{
			Elements: []Element{
				{
					Type: "node",
					ID:   1,
					Lat:  float(60.17),
					Lon:  float(24.94),
					Tags: map[string]string{"amenity": "restaurant", "name": "Cafe X"},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(WithMirrors([]string{srv.URL}))
	resp, err := client.Fetch(context.Background(), Query{City: "Helsinki", Amenities: []string{"restaurant"}})

	require.NoError(t, err)
	require.Len(t, resp.Elements, 1)
	assert.Equal(t, "Cafe X", resp.Elements[0].Tags["name"])
}

func TestFetch_FallsBackToNextMirror(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Response{Elements: []Element{{Type: "node", ID: 2, Tags: map[string]string{"name": "Backup"}}}})
	}))
	defer good.Close()

	client := NewClient(WithMirrors([]string{bad.URL, good.URL}))
	resp, err := client.Fetch(context.Background(), Query{City: "Helsinki"})

	require.NoError(t, err)
	require.Len(t, resp.Elements, 1)
	assert.Equal(t, "Backup", resp.Elements[0].Tags["name"])
}

func TestFetch_AllMirrorsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	client := NewClient(WithMirrors([]string{bad.URL, bad.URL}))
	resp, err := client.Fetch(context.Background(), Query{City: "Helsinki"})

	assert.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "all mirrors failed")
}

func TestBuildQL_NewerProxyClause(t *testing.T) {
	cutoff := time.Date(2025, 2, 23, 0, 0, 0, 0, time.UTC)

	without := BuildQL(Query{City: "Helsinki", Cutoff: cutoff})
	assert.NotContains(t, without, "newer:")

	with := BuildQL(Query{City: "Helsinki", Cutoff: cutoff, UseNewerProxy: true})
	assert.Contains(t, with, `(newer:"2025-02-23T00:00:00Z")`)
}

func TestAmenityRegex(t *testing.T) {
	assert.Equal(t, "restaurant", AmenityRegex(nil))
	assert.Equal(t, "restaurant", AmenityRegex([]string{" ", ""}))
	assert.Equal(t, "restaurant|cafe|fast_food", AmenityRegex([]string{"restaurant", "cafe", "fast_food"}))
	// Metacharacters are escaped, not interpreted.
	assert.Equal(t, `fast\.food`, AmenityRegex([]string{"fast.food"}))
}

func TestCoordinates(t *testing.T) {
	node := Element{Lat: float(60.1), Lon: float(24.9)}
	lat, lon, ok := node.Coordinates()
	assert.True(t, ok)
	assert.Equal(t, 60.1, lat)
	assert.Equal(t, 24.9, lon)

	way := Element{Center: &LatLon{Lat: 60.2, Lon: 24.8}}
	lat, lon, ok = way.Coordinates()
	assert.True(t, ok)
	assert.Equal(t, 60.2, lat)
	assert.Equal(t, 24.8, lon)

	var bare Element
	_, _, ok = bare.Coordinates()
	assert.False(t, ok)
}
