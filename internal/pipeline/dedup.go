package pipeline

import "github.com/wom-group/openings-cli/internal/model"

// Deduper folds records into a single ordered result list under the
// run-scoped name|address identity key. First-seen-wins unconditionally:
// a later record with the same key is discarded even when it carries more
// complete information (a geo-tag hit with no address can permanently
// suppress a richer registry hit for the same venue). That asymmetry is a
// deliberate policy carried over from the source pipelines, not an
// oversight.
type Deduper struct {
	seen    map[string]struct{}
	records []*model.Record
}

// NewDeduper creates an empty deduplication context.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// NewSeededDeduper creates a context pre-seeded with keys that should be
// treated as already seen.
func NewSeededDeduper(keys ...string) *Deduper {
	d := NewDeduper()
	for _, k := range keys {
		if k != "" {
			d.seen[k] = struct{}{}
		}
	}
	return d
}

// Add offers a record to the result list. Returns true when the record
// survives. Records with an empty identity key are always kept and never
// recorded against later arrivals.
func (d *Deduper) Add(r *model.Record) bool {
	key := r.DedupKey()
	if key == "" {
		d.records = append(d.records, r)
		return true
	}
	if _, dup := d.seen[key]; dup {
		return false
	}
	d.seen[key] = struct{}{}
	d.records = append(d.records, r)
	return true
}

// Seen reports whether a key has already been recorded.
func (d *Deduper) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Records returns the surviving records in insertion order.
func (d *Deduper) Records() []*model.Record {
	return d.records
}
