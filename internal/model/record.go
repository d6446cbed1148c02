package model

import (
	"sort"
	"strings"
	"time"
)

// Source identifies which adapter produced a record.
type Source string

const (
	SourceOpenStreetMap Source = "OpenStreetMap"
	SourceGooglePlaces  Source = "Google Places (Text Search)"
	SourceRegistry      Source = "Business Registry"
)

// Confidence is the coarse trust tier attached to a record at
// normalization time. It is never revised during merge.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TagSet is a set of venue tags. Each tag is either a bare category token
// ("restaurant") or a key:value token ("cuisine:thai").
type TagSet map[string]struct{}

// NewTagSet builds a set from the given tags, dropping empty strings.
func NewTagSet(tags ...string) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts a tag. Empty tags are ignored.
func (s TagSet) Add(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	s[tag] = struct{}{}
}

// Union merges other into s.
func (s TagSet) Union(other TagSet) {
	for t := range other {
		s[t] = struct{}{}
	}
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether the set holds tag.
func (s TagSet) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Record is the canonical venue record every source is normalized into
// before deduplication. Instances are immutable once built.
type Record struct {
	Name        string     `json:"name"`
	Address     string     `json:"full_address"`
	Description string     `json:"description"`
	Tags        TagSet     `json:"-"`
	OpeningDate *time.Time `json:"-"`
	Source      Source     `json:"source"`
	Confidence  Confidence `json:"confidence"`

	// LastEdited carries the registry's last-modification timestamp where
	// the source exposes one. Empty for all other sources.
	LastEdited string `json:"last_edit,omitempty"`
}

// OpeningDateISO returns the opening date as an ISO calendar date, or ""
// when no date is known.
func (r *Record) OpeningDateISO() string {
	if r.OpeningDate == nil {
		return ""
	}
	return r.OpeningDate.Format("2006-01-02")
}

// DedupKey derives the run-scoped identity key for the record:
// lowercase, whitespace-collapsed name|address. Identical keys are treated
// as the same real-world venue regardless of source.
func (r *Record) DedupKey() string {
	return NormalizeKey(r.Name, r.Address)
}

// NormalizeKey builds a dedup key from a name and address pair. Each part
// is lowercased and whitespace-collapsed independently, so padding around
// either side of the separator never distinguishes two keys. A record with
// neither name nor address has no identity and yields the empty key; the
// Deduper never merges such records.
func NormalizeKey(name, address string) string {
	n := collapse(name)
	a := collapse(address)
	if n == "" && a == "" {
		return ""
	}
	return n + "|" + a
}

func collapse(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
