package quality

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wom-group/openings-cli/internal/model"
)

// Decision is the quality verdict for one row.
type Decision string

const (
	DecisionKeep         Decision = "Keep"
	DecisionRemove       Decision = "Remove"
	DecisionNeedsInfo    Decision = "Needs more information"
	DecisionNeedsEditing Decision = "Needs editing"
)

// Field synonym lists checked in order when extracting from loosely-shaped
// input rows.
var (
	nameKeys        = []string{"name", "title", "restaurant_name", "venue_name", "place_name"}
	descriptionKeys = []string{"description", "summary", "about", "notes", "why"}
	addressKeys     = []string{"full_address", "address", "location"}
	tagKeys         = []string{"tags", "tag", "cuisine", "category", "categories"}
)

var tagSplitRE = regexp.MustCompile(`[;,]`)

// Record is the normalized view of one input row used for classification.
// Raw keeps the original row untouched for pass-through output.
type Record struct {
	Raw         map[string]string
	Name        string
	Description string
	Address     string
	Tags        string
	Source      string
	Key         string
}

// BuildRecord extracts the classification fields from a loosely-shaped
// row, trying each field's synonyms in order.
func BuildRecord(row map[string]string) Record {
	name := extractField(row, nameKeys)
	address := extractField(row, addressKeys)

	return Record{
		Raw:         row,
		Name:        name,
		Description: extractField(row, descriptionKeys),
		Address:     address,
		Tags:        extractField(row, tagKeys),
		Source:      extractField(row, []string{"source"}),
		Key:         model.NormalizeKey(name, address),
	}
}

func extractField(row map[string]string, keys []string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(row[key]); val != "" {
			return val
		}
	}
	return ""
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Assessment is the classifier's verdict for one record.
type Assessment struct {
	Decision   Decision
	Reasons    []string
	Confidence string
	Score      int
}

// Classifier applies the rule set to a stream of records, tracking seen
// identity keys for duplicate detection. Not safe for concurrent use.
type Classifier struct {
	rules Rules
	seen  map[string]struct{}
}

// NewClassifier creates a classifier with an empty seen-set.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules, seen: make(map[string]struct{})}
}

// Classify assesses one record. Rows are scored 100 minus 25 per remove
// reason, 15 per info reason, and 10 per edit reason, floored at zero.
func (c *Classifier) Classify(rec Record) Assessment {
	var removeReasons, infoReasons, editReasons []string

	nameNorm := normalizeText(rec.Name)
	descNorm := normalizeText(rec.Description)
	tagsNorm := normalizeText(rec.Tags)

	if c.rules.Dedupe && rec.Key != "" {
		if _, dup := c.seen[rec.Key]; dup {
			removeReasons = append(removeReasons, "duplicate_name_address")
		} else {
			c.seen[rec.Key] = struct{}{}
		}
	}

	// Chains and other non-fits. First match wins.
	for _, kw := range c.rules.RemoveKeywords {
		kwNorm := normalizeText(kw)
		if kwNorm == "" {
			continue
		}
		if strings.Contains(nameNorm, kwNorm) || strings.Contains(descNorm, kwNorm) || strings.Contains(tagsNorm, kwNorm) {
			removeReasons = append(removeReasons, "keyword:"+kwNorm)
			break
		}
	}

	for _, kw := range c.rules.ProfanityKeywords {
		kwNorm := normalizeText(kw)
		if kwNorm == "" {
			continue
		}
		if strings.Contains(nameNorm, kwNorm) || strings.Contains(descNorm, kwNorm) {
			removeReasons = append(removeReasons, "profanity:"+kwNorm)
			break
		}
	}

	if rec.Name == "" {
		infoReasons = append(infoReasons, "missing_name")
	}
	if rec.Address == "" {
		infoReasons = append(infoReasons, "missing_address")
	}

	if rec.Description != "" && len(strings.TrimSpace(rec.Description)) < c.rules.MinDescriptionLength {
		editReasons = append(editReasons, "description_too_short")
	}
	if rec.Description == "" {
		editReasons = append(editReasons, "missing_description")
	}
	if countTags(rec.Tags) < c.rules.MinTagsCount {
		editReasons = append(editReasons, "missing_tags")
	}

	var decision Decision
	switch {
	case len(removeReasons) > 0:
		decision = DecisionRemove
	case len(infoReasons) > 0:
		decision = DecisionNeedsInfo
	case len(editReasons) > 0:
		decision = DecisionNeedsEditing
	default:
		decision = DecisionKeep
	}

	var confidence string
	switch decision {
	case DecisionRemove:
		confidence = "High"
	case DecisionKeep:
		confidence = "Medium"
	default:
		confidence = "Low"
	}

	score := 100 - 25*len(removeReasons) - 15*len(infoReasons) - 10*len(editReasons)
	if score < 0 {
		score = 0
	}

	reasons := make([]string, 0, len(removeReasons)+len(infoReasons)+len(editReasons))
	reasons = append(reasons, removeReasons...)
	reasons = append(reasons, infoReasons...)
	reasons = append(reasons, editReasons...)

	return Assessment{
		Decision:   decision,
		Reasons:    reasons,
		Confidence: confidence,
		Score:      score,
	}
}

func countTags(tags string) int {
	if tags == "" {
		return 0
	}
	n := 0
	for _, t := range tagSplitRE.Split(tags, -1) {
		if strings.TrimSpace(t) != "" {
			n++
		}
	}
	return n
}

// Annotate returns a copy of the record's raw row with the assessment
// columns appended.
func Annotate(rec Record, a Assessment) map[string]string {
	out := make(map[string]string, len(rec.Raw)+4)
	for k, v := range rec.Raw {
		out[k] = v
	}
	out["decision"] = string(a.Decision)
	out["reasons"] = strings.Join(a.Reasons, ";")
	out["confidence"] = a.Confidence
	out["quality_score"] = strconv.Itoa(a.Score)
	return out
}
