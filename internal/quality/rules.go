// Package quality applies rule-based quality decisions to exported venue
// datasets: Keep, Remove, Needs more information, or Needs editing, with a
// transparent numeric score per row.
package quality

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules configures the classifier. Zero values are never used directly;
// start from DefaultRules and override via YAML.
type Rules struct {
	MinDescriptionLength int      `yaml:"min_description_length"`
	MinTagsCount         int      `yaml:"min_tags_count"`
	RemoveKeywords       []string `yaml:"remove_keywords"`
	ProfanityKeywords    []string `yaml:"profanity_keywords"`
	Dedupe               bool     `yaml:"dedupe"`
}

// DefaultRules returns the built-in rule set: big fast-food chains are
// removed, short or missing descriptions need editing, rows without a name
// or address need more information.
func DefaultRules() Rules {
	return Rules{
		MinDescriptionLength: 40,
		MinTagsCount:         1,
		RemoveKeywords: []string{
			"mcdonalds",
			"burger king",
			"hesburger",
			"kfc",
			"subway",
			"starbucks",
			"taco bell",
			"domino",
			"domino's",
			"pizza hut",
			"quick service",
		},
		ProfanityKeywords: []string{
			"fuck",
			"shit",
			"bitch",
			"cunt",
			"asshole",
		},
		Dedupe: true,
	}
}

// LoadRules reads a YAML override file on top of the defaults. An empty
// path returns the defaults unchanged. Keys present in the file replace
// the corresponding default wholesale.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "quality: read rules %s", path)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, eris.Wrapf(err, "quality: parse rules %s", path)
	}
	return rules, nil
}
