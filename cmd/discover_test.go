package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wom-group/openings-cli/internal/config"
	"github.com/wom-group/openings-cli/internal/model"
	"github.com/wom-group/openings-cli/internal/pipeline"
)

func discoverConfig() *config.Config {
	return &config.Config{
		Discover: config.DiscoverConfig{
			City:       "Helsinki",
			MonthsBack: 6,
			Amenities:  []string{"restaurant", "cafe"},
			PageSize:   100,
		},
		Nominatim: config.NominatimConfig{UserAgent: "openings-cli test", RPS: 1},
		Places:    config.PlacesConfig{Key: "test-key"},
		Export:    config.ExportConfig{Format: "csv"},
	}
}

func TestBuildQueryContext_Defaults(t *testing.T) {
	cmd := discoverCmd
	c := discoverConfig()

	qc, err := buildQueryContext(cmd, c)
	require.NoError(t, err)

	assert.Equal(t, "Helsinki", qc.City)
	assert.Equal(t, "Helsinki", qc.RegisteredOffice)
	assert.Equal(t, []string{"restaurant", "cafe"}, qc.Amenities)
	assert.Equal(t, 100, qc.PageSize)
	assert.False(t, qc.UsePlaceSearch)
	assert.False(t, qc.UseRegistry)

	// Cutoff lands about six months back.
	expected := time.Now().UTC().AddDate(0, -6, 0)
	assert.WithinDuration(t, expected, qc.Cutoff, 72*time.Hour)
}

func TestBuildQueryContext_ReverseGeocodeNeedsUserAgent(t *testing.T) {
	cmd := discoverCmd
	require.NoError(t, cmd.Flags().Set("reverse-geocode", "true"))
	t.Cleanup(func() { _ = cmd.Flags().Set("reverse-geocode", "false") })

	c := discoverConfig()
	c.Nominatim.UserAgent = ""

	_, err := buildQueryContext(cmd, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nominatim.user_agent")
}

func TestBuildQueryContext_PlacesNeedsKey(t *testing.T) {
	cmd := discoverCmd
	require.NoError(t, cmd.Flags().Set("places", "true"))
	t.Cleanup(func() { _ = cmd.Flags().Set("places", "false") })

	c := discoverConfig()
	c.Places.Key = ""

	_, err := buildQueryContext(cmd, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "places.key")
}

func TestMonthsBetween(t *testing.T) {
	jan := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 6, monthsBetween(jan, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, monthsBetween(jan, time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, monthsBetween(jan, jan))
	assert.Equal(t, 0, monthsBetween(jan, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &model.Run{ID: "run-1"}, &pipeline.Result{
		Records: []*model.Record{{Name: "Cafe X"}},
		SourceCounts: map[model.Source]int{
			model.SourceOpenStreetMap: 1,
		},
		SkippedSources: []model.Source{model.SourceRegistry},
	})

	out := buf.String()
	assert.Contains(t, out, "Run run-1 complete.")
	assert.Contains(t, out, "Records: 1")
	assert.Contains(t, out, "OpenStreetMap: 1")
	assert.Contains(t, out, "Business Registry: skipped")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "12345678", truncateID("12345678-abcd-efgh"))
	assert.Equal(t, "short", truncateID("short"))
}
