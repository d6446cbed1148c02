package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wom-group/openings-cli/internal/model"
	"github.com/wom-group/openings-cli/pkg/overpass"
	"github.com/wom-group/openings-cli/pkg/places"
	"github.com/wom-group/openings-cli/pkg/registry"
)

var testCutoff = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

func TestBuildAddress(t *testing.T) {
	tests := []struct {
		name string
		tags map[string]string
		want string
	}{
		{
			"explicit full address wins",
			map[string]string{"addr:full": " Mannerheimintie 1, Helsinki ", "addr:street": "Ignored"},
			"Mannerheimintie 1, Helsinki",
		},
		{
			"assembled from fragments",
			map[string]string{
				"addr:street":      "Bulevardi",
				"addr:housenumber": "12",
				"addr:postcode":    "00120",
				"addr:city":        "Helsinki",
				"addr:country":     "FI",
			},
			"Bulevardi 12, 00120 Helsinki, FI",
		},
		{"street only", map[string]string{"addr:street": "Bulevardi"}, "Bulevardi"},
		{"city only", map[string]string{"addr:city": "Helsinki"}, "Helsinki"},
		{"nothing", map[string]string{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildAddress(tt.tags))
		})
	}
}

func TestBuildTags(t *testing.T) {
	tags := map[string]string{
		"amenity":         "restaurant",
		"cuisine":         "thai;sushi, ramen_noodles",
		"outdoor_seating": "yes",
		"delivery":        "no",
		"takeaway":        "maybe", // not an explicit yes/no, dropped
		"diet:vegan":      "yes",
		"name":            "Cafe X",
	}

	set := BuildTags(tags)

	assert.True(t, set.Contains("restaurant"))
	assert.True(t, set.Contains("cuisine:thai"))
	assert.True(t, set.Contains("cuisine:sushi"))
	assert.True(t, set.Contains("cuisine:ramen"))
	assert.True(t, set.Contains("cuisine:noodles"))
	assert.True(t, set.Contains("outdoor_seating:yes"))
	assert.True(t, set.Contains("delivery:no"))
	assert.True(t, set.Contains("diet:vegan:yes"))
	assert.False(t, set.Contains("takeaway:maybe"))
	assert.False(t, set.Contains("name:Cafe X"))
}

func TestFormatDescription(t *testing.T) {
	assert.Equal(t, "A cozy place",
		FormatDescription(map[string]string{"description": "A cozy place", "cuisine": "thai"}))
	assert.Equal(t, "From note",
		FormatDescription(map[string]string{"note": "From note"}))
	assert.Equal(t, "thai, sushi cuisine",
		FormatDescription(map[string]string{"cuisine": "thai;sushi"}))
	assert.Empty(t, FormatDescription(map[string]string{}))
}

// Scenario: a geo-tag element with an explicit opening date and no address
// fields yields a high-confidence record with an empty address.
func TestNormalizeElement_ExplicitDate(t *testing.T) {
	el := overpass.Element{
		Type: "node",
		Tags: map[string]string{
			"amenity":      "restaurant",
			"name":         "Cafe X",
			"opening_date": "2025-03-01",
		},
	}

	rec := NormalizeElement(el, testCutoff, false)

	require.NotNil(t, rec)
	assert.Equal(t, "Cafe X", rec.Name)
	assert.Empty(t, rec.Address)
	assert.Equal(t, "2025-03-01", rec.OpeningDateISO())
	assert.True(t, rec.Tags.Contains("restaurant"))
	assert.Equal(t, model.ConfidenceHigh, rec.Confidence)
	assert.Equal(t, model.SourceOpenStreetMap, rec.Source)
}

func TestNormalizeElement_DatePolicy(t *testing.T) {
	noDate := overpass.Element{Tags: map[string]string{"amenity": "cafe", "name": "No Date"}}

	// Without the recency proxy, a dateless element is dropped.
	assert.Nil(t, NormalizeElement(noDate, testCutoff, false))

	// With the recency proxy it is kept at medium confidence.
	rec := NormalizeElement(noDate, testCutoff, true)
	require.NotNil(t, rec)
	assert.Equal(t, model.ConfidenceMedium, rec.Confidence)
	assert.Nil(t, rec.OpeningDate)

	// A date before the cutoff is dropped either way.
	old := overpass.Element{Tags: map[string]string{"amenity": "cafe", "opening_date": "2024-01-01"}}
	assert.Nil(t, NormalizeElement(old, testCutoff, false))
	assert.Nil(t, NormalizeElement(old, testCutoff, true))
}

func TestNormalizeElement_StartDateFallback(t *testing.T) {
	el := overpass.Element{
		Tags: map[string]string{"amenity": "restaurant", "start_date": "2025-04"},
	}
	rec := NormalizeElement(el, testCutoff, false)
	require.NotNil(t, rec)
	assert.Equal(t, "2025-04-01", rec.OpeningDateISO())
}

func TestNormalizePlace(t *testing.T) {
	rec := NormalizePlace(places.Place{
		DisplayName:      places.DisplayName{Text: "Ravintola Meri"},
		FormattedAddress: "Bulevardi 12, 00120 Helsinki, Finland",
		PrimaryType:      "restaurant",
		Types:            []string{"restaurant", "food"},
	})

	assert.Equal(t, "Ravintola Meri", rec.Name)
	assert.Nil(t, rec.OpeningDate)
	assert.Equal(t, model.ConfidenceLow, rec.Confidence)
	assert.Equal(t, model.SourceGooglePlaces, rec.Source)
	assert.True(t, rec.Tags.Contains("type:restaurant"))
	assert.True(t, rec.Tags.Contains("type:food"))
	assert.True(t, rec.Tags.Contains("source:google_places"))
}

func TestNormalizeRegistryHit_WithDetail(t *testing.T) {
	stub := registry.CompanyStub{
		BusinessID:       "1234567-8",
		Name:             "Foo Oy",
		RegistrationDate: "2025-03-15",
		LastModified:     "2025-04-01T10:00:00Z",
	}
	detail := &registry.CompanyDetail{
		Addresses: []registry.LocalizedAddress{
			{Street: "Esimerkkikatu 5", PostCode: "00100", City: "Helsinki", Language: "fi"},
		},
		BusinessLines: []registry.LocalizedText{
			{Code: "56101", Text: "Restaurants", Language: "en"},
		},
	}

	rec := NormalizeRegistryHit(stub, detail)

	assert.Equal(t, "Foo Oy", rec.Name)
	assert.Equal(t, "Esimerkkikatu 5, 00100 Helsinki", rec.Address)
	assert.Equal(t, "Restaurants", rec.Description)
	assert.Equal(t, "2025-03-15", rec.OpeningDateISO())
	assert.Equal(t, model.ConfidenceMedium, rec.Confidence)
	assert.True(t, rec.Tags.Contains("business_line:56101"))
	assert.Equal(t, "2025-04-01T10:00:00Z", rec.LastEdited)
}

// Scenario: a failed detail lookup yields empty supplementary fields; the
// base hit is still recorded.
func TestNormalizeRegistryHit_NilDetail(t *testing.T) {
	rec := NormalizeRegistryHit(registry.CompanyStub{
		BusinessID:       "1234567-8",
		Name:             "Foo Oy",
		RegistrationDate: "2025-03-15",
	}, nil)

	require.NotNil(t, rec)
	assert.Equal(t, "Foo Oy", rec.Name)
	assert.Empty(t, rec.Address)
	assert.Empty(t, rec.Description)
	for _, tag := range rec.Tags.Sorted() {
		assert.NotContains(t, tag, "business_line:")
	}
}
