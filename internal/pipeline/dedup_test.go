package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wom-group/openings-cli/internal/model"
)

func rec(name, address string, source model.Source, conf model.Confidence) *model.Record {
	return &model.Record{Name: name, Address: address, Source: source, Confidence: conf}
}

func TestDeduper_FirstSeenWins(t *testing.T) {
	d := NewDeduper()

	first := rec("Cafe X", "", model.SourceOpenStreetMap, model.ConfidenceHigh)
	assert.True(t, d.Add(first))

	// Same venue from a later source, with a fuller payload. Still dropped.
	later := rec("Cafe X", "", model.SourceRegistry, model.ConfidenceMedium)
	later.Description = "Restaurants"
	assert.False(t, d.Add(later))

	assert.Equal(t, []*model.Record{first}, d.Records())
}

func TestDeduper_KeyNormalization(t *testing.T) {
	d := NewDeduper()

	assert.True(t, d.Add(rec("Cafe  X", "Main St 1", model.SourceOpenStreetMap, model.ConfidenceHigh)))
	assert.False(t, d.Add(rec("  cafe x ", "main st 1", model.SourceGooglePlaces, model.ConfidenceLow)))
	assert.Len(t, d.Records(), 1)
}

func TestDeduper_EmptyKeyAlwaysKept(t *testing.T) {
	d := NewDeduper()

	assert.True(t, d.Add(rec("", "", model.SourceOpenStreetMap, model.ConfidenceMedium)))
	assert.True(t, d.Add(rec("", "", model.SourceRegistry, model.ConfidenceMedium)))
	assert.Len(t, d.Records(), 2)
	assert.False(t, d.Seen(""))
}

func TestDeduper_Idempotent(t *testing.T) {
	d := NewDeduper()
	r := rec("Foo Oy", "Esimerkkikatu 5", model.SourceRegistry, model.ConfidenceMedium)

	assert.True(t, d.Add(r))
	for i := 0; i < 3; i++ {
		assert.False(t, d.Add(r))
	}
	assert.Len(t, d.Records(), 1)
}

func TestNewSeededDeduper(t *testing.T) {
	r := rec("Cafe X", "Main St 1", model.SourceOpenStreetMap, model.ConfidenceHigh)
	d := NewSeededDeduper(r.DedupKey(), "")

	assert.False(t, d.Add(r))
	assert.Empty(t, d.Records())
	assert.False(t, d.Seen(""))
}
