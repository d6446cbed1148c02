package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := NormalizeKey("Cafe  X", "Mannerheimintie 1,  Helsinki")
	b := NormalizeKey("cafe x", "mannerheimintie 1, helsinki")
	assert.Equal(t, a, b)
}

func TestNormalizeKey_PaddingAroundSeparator(t *testing.T) {
	// Leading/trailing space in either part must not leak into the key
	// next to the separator.
	padded := NormalizeKey("  cafe x ", " main st 1 ")
	tight := NormalizeKey("Cafe  X", "Main St 1")
	assert.Equal(t, "cafe x|main st 1", padded)
	assert.Equal(t, tight, padded)
}

func TestNormalizeKey_EmptyIdentity(t *testing.T) {
	assert.Empty(t, NormalizeKey("", ""))
	assert.Empty(t, NormalizeKey("  ", "\t"))
	assert.NotEmpty(t, NormalizeKey("Cafe X", ""))
	assert.NotEmpty(t, NormalizeKey("", "Mannerheimintie 1"))
}

func TestDedupKey_PureFunctionOfNameAndAddress(t *testing.T) {
	r1 := &Record{Name: "Cafe X", Address: "Mannerheimintie 1", Source: SourceOpenStreetMap}
	r2 := &Record{Name: "CAFE X", Address: "mannerheimintie  1", Source: SourceRegistry, Confidence: ConfidenceMedium}
	assert.Equal(t, r1.DedupKey(), r2.DedupKey())
}

func TestTagSet_UnionAndSorted(t *testing.T) {
	s := NewTagSet("restaurant", "cuisine:thai", "")
	s.Add("cuisine:thai") // duplicate
	s.Union(NewTagSet("takeaway:yes"))

	assert.Equal(t, []string{"cuisine:thai", "restaurant", "takeaway:yes"}, s.Sorted())
	assert.True(t, s.Contains("restaurant"))
	assert.False(t, s.Contains("bar"))
}

func TestOpeningDateISO(t *testing.T) {
	var r Record
	assert.Empty(t, r.OpeningDateISO())

	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r.OpeningDate = &d
	assert.Equal(t, "2025-03-01", r.OpeningDateISO())
}
