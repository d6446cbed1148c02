package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wom-group/openings-cli/internal/dates"
	"github.com/wom-group/openings-cli/internal/model"
	"github.com/wom-group/openings-cli/pkg/overpass"
	"github.com/wom-group/openings-cli/pkg/places"
	"github.com/wom-group/openings-cli/pkg/registry"
)

// descriptionKeys are the OSM tag synonyms checked, in order, for an
// explicit description.
var descriptionKeys = []string{"description", "description:en", "short_description", "note"}

// booleanAmenityKeys are emitted as key:value tags only when explicitly
// answered yes or no.
var booleanAmenityKeys = []string{"outdoor_seating", "delivery", "takeaway", "vegetarian", "vegan"}

var cuisineSplitRE = regexp.MustCompile(`[;,_]`)

// BuildAddress assembles a display address from OSM addr:* tags. An
// explicit addr:full wins; otherwise street+housenumber, postcode+city,
// and country fragments are joined with commas, skipping absent pieces.
func BuildAddress(tags map[string]string) string {
	if full := strings.TrimSpace(tags["addr:full"]); full != "" {
		return full
	}

	var parts []string
	street := tags["addr:street"]
	houseNumber := tags["addr:housenumber"]
	switch {
	case street != "" && houseNumber != "":
		parts = append(parts, street+" "+houseNumber)
	case street != "":
		parts = append(parts, street)
	}

	postcode := tags["addr:postcode"]
	city := tags["addr:city"]
	switch {
	case postcode != "" && city != "":
		parts = append(parts, postcode+" "+city)
	case city != "":
		parts = append(parts, city)
	}

	if country := tags["addr:country"]; country != "" {
		parts = append(parts, country)
	}

	return strings.Join(parts, ", ")
}

// BuildTags derives the canonical tag set from OSM tags: the amenity value
// as a bare tag, cuisine entries split into cuisine:<item>, explicit
// yes/no amenity attributes, and diet:* attributes passed through.
func BuildTags(tags map[string]string) model.TagSet {
	set := model.NewTagSet()

	if amenity := tags["amenity"]; amenity != "" {
		set.Add(amenity)
	}

	if cuisine := tags["cuisine"]; cuisine != "" {
		for _, item := range cuisineSplitRE.Split(cuisine, -1) {
			item = strings.TrimSpace(item)
			if item != "" {
				set.Add("cuisine:" + item)
			}
		}
	}

	for _, key := range booleanAmenityKeys {
		if val := tags[key]; val == "yes" || val == "no" {
			set.Add(key + ":" + val)
		}
	}

	for k, v := range tags {
		if strings.HasPrefix(k, "diet:") && v != "" {
			set.Add(k + ":" + v)
		}
	}

	return set
}

// FormatDescription prefers an explicit description-like tag, then falls
// back to a one-line descriptor synthesized from the cuisine field.
func FormatDescription(tags map[string]string) string {
	for _, key := range descriptionKeys {
		if val := strings.TrimSpace(tags[key]); val != "" {
			return val
		}
	}
	if cuisine := tags["cuisine"]; cuisine != "" {
		return strings.ReplaceAll(cuisine, ";", ", ") + " cuisine"
	}
	return ""
}

// NormalizeElement maps one geo-tag element to a canonical record.
// Returns nil when the record must be dropped: no parseable date without
// the recency proxy, or a date older than the cutoff. Confidence is high
// with an explicit date, medium when only the recency proxy vouches.
func NormalizeElement(el overpass.Element, cutoff time.Time, useNewerProxy bool) *model.Record {
	tags := el.Tags

	openingRaw := tags["opening_date"]
	if openingRaw == "" {
		openingRaw = tags["start_date"]
	}
	openingDate := dates.ParseOpeningDate(openingRaw)

	if openingDate == nil && !useNewerProxy {
		return nil
	}
	if openingDate != nil && openingDate.Before(cutoff) {
		return nil
	}

	confidence := model.ConfidenceHigh
	if openingDate == nil {
		confidence = model.ConfidenceMedium
	}

	return &model.Record{
		Name:        tags["name"],
		Address:     BuildAddress(tags),
		Description: FormatDescription(tags),
		Tags:        BuildTags(tags),
		OpeningDate: openingDate,
		Source:      model.SourceOpenStreetMap,
		Confidence:  confidence,
	}
}

// NormalizePlace maps one place-search candidate to a canonical record.
// This source cannot express venue age, so the record carries no opening
// date and a low confidence seed.
func NormalizePlace(p places.Place) *model.Record {
	set := model.NewTagSet("source:google_places")
	if p.PrimaryType != "" {
		set.Add("type:" + p.PrimaryType)
	}
	for _, t := range p.Types {
		set.Add("type:" + t)
	}

	return &model.Record{
		Name:        p.DisplayName.Text,
		Address:     p.FormattedAddress,
		Description: "Google Places candidate (no opening_date provided)",
		Tags:        set,
		Source:      model.SourceGooglePlaces,
		Confidence:  model.ConfidenceLow,
	}
}

// NormalizeRegistryHit maps one registry search hit plus its optional
// detail payload to a canonical record. The registration date stands in
// for the opening date. A nil detail (failed or malformed lookup) yields
// empty supplementary fields rather than dropping the hit.
func NormalizeRegistryHit(stub registry.CompanyStub, detail *registry.CompanyDetail) *model.Record {
	set := model.NewTagSet("source:business_registry")

	var address, description string
	if detail != nil {
		addr := registry.PickAddress(detail.Addresses)
		address = formatRegistryAddress(addr)

		line := registry.PickText(detail.BusinessLines)
		if line.Code != "" {
			set.Add("business_line:" + line.Code)
		}
		description = line.Text
	}

	return &model.Record{
		Name:        stub.Name,
		Address:     address,
		Description: description,
		Tags:        set,
		OpeningDate: dates.ParseOpeningDate(stub.RegistrationDate),
		Source:      model.SourceRegistry,
		Confidence:  model.ConfidenceMedium,
		LastEdited:  stub.LastModified,
	}
}

func formatRegistryAddress(addr registry.LocalizedAddress) string {
	var parts []string
	if addr.Street != "" {
		parts = append(parts, addr.Street)
	}
	switch {
	case addr.PostCode != "" && addr.City != "":
		parts = append(parts, addr.PostCode+" "+addr.City)
	case addr.City != "":
		parts = append(parts, addr.City)
	}
	if addr.Country != "" {
		parts = append(parts, addr.Country)
	}
	return strings.Join(parts, ", ")
}

// amenityPattern compiles the case-insensitive exact-match filter applied
// to geo-tag results.
func amenityPattern(amenities []string) (*regexp.Regexp, error) {
	return regexp.Compile(fmt.Sprintf("(?i)^(%s)$", overpass.AmenityRegex(amenities)))
}
