package ingestion

import (
	"strings"

	"github.com/poiesic/geosearch/core"
)

var settlementKinds = map[string]bool{
	"city":          true,
	"town":          true,
	"village":       true,
	"hamlet":        true,
	"suburb":        true,
	"neighbourhood": true,
	"locality":      true,
}

// placeKind derives the structural type of a feature, or "" when no typing
// tag is present.
func placeKind(tags map[string]string) string {
	if v := tags["place"]; settlementKinds[v] {
		return v
	}
	if v := tags["amenity"]; v != "" {
		return v
	}
	if v := tags["shop"]; v != "" {
		return "shop_" + v
	}
	if v := tags["tourism"]; v != "" {
		return v
	}
	if tags["addr:street"] != "" && tags["addr:housenumber"] != "" {
		switch b := tags["building"]; b {
		case "":
			return "address"
		case "yes":
			return "building"
		default:
			return "building_" + b
		}
	}
	if v := tags["leisure"]; v != "" {
		return v
	}
	if v := tags["office"]; v != "" {
		return "office_" + v
	}
	if v := tags["aeroway"]; v != "" {
		return v
	}
	if v := tags["railway"]; v != "" {
		return v
	}
	if tags["name"] != "" {
		return tags["landuse"]
	}
	return ""
}

// displayName joins the name and address parts of a feature.
func displayName(tags map[string]string, name, regionName string) string {
	var parts []string
	if name != "" {
		parts = append(parts, name)
	}
	street, number := tags["addr:street"], tags["addr:housenumber"]
	switch {
	case street != "" && number != "":
		parts = append(parts, number+" "+street)
	case street != "" && name == "":
		parts = append(parts, street)
	}
	for _, key := range []string{"addr:city", "addr:state", "addr:country", "addr:postcode"} {
		if v := tags[key]; v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return regionName
	}
	return strings.Join(parts, ", ")
}

// fallbackKindKeys name the tags whose value becomes the kind of a feature
// that placeKind cannot type.
var fallbackKindKeys = []string{"highway", "natural", "landuse", "building", "man_made", "historic", "waterway"}

// fallbackKind returns the first fallback tag value, or "place".
func fallbackKind(tags map[string]string) string {
	for _, k := range fallbackKindKeys {
		if v := tags[k]; v != "" && v != "yes" {
			return v
		}
	}
	return "place"
}

// addressFragment returns the non-empty addr:* value with the smallest key,
// or "" when the feature carries none.
func addressFragment(tags map[string]string) string {
	var key, value string
	for k, v := range tags {
		v = strings.TrimSpace(v)
		if !strings.HasPrefix(k, "addr:") || v == "" {
			continue
		}
		if key == "" || k < key {
			key, value = k, v
		}
	}
	return value
}

// extractPlace builds a place from a feature, or returns nil when the feature
// has neither a name nor any address fragment. A classified feature without a
// structural kind takes its category as kind; others fall back to
// fallbackKind.
func extractPlace(f Feature, regionName string, category core.Category, classified bool) *core.Place {
	tags := f.Tags
	name := strings.TrimSpace(tags["name"])
	street := strings.TrimSpace(tags["addr:street"])
	number := strings.TrimSpace(tags["addr:housenumber"])
	fragment := addressFragment(tags)
	if name == "" && fragment == "" {
		return nil
	}

	kind := placeKind(tags)
	switch {
	case kind != "":
	case classified:
		kind = strings.ToLower(category.String())
	default:
		kind = fallbackKind(tags)
	}

	state := tags["addr:state"]
	if state == "" {
		state = regionName
	}
	address := core.Address{
		Street:      street,
		HouseNumber: number,
		City:        tags["addr:city"],
		Postcode:    tags["addr:postcode"],
		State:       state,
		Country:     tags["addr:country"],
	}

	short := name
	switch {
	case short != "":
	case street != "":
		short = strings.TrimSpace(number + " " + street)
	default:
		short = address.Line()
	}
	if short == "" {
		short = fragment
	}

	return &core.Place{
		ID:          f.ID,
		Coordinate:  f.Coordinate,
		Name:        short,
		DisplayName: displayName(tags, name, regionName),
		Kind:        kind,
		Address:     address,
	}
}

// extractPOI attaches category and contact details to a place.
func extractPOI(place *core.Place, tags map[string]string, category core.Category) *core.POI {
	return &core.POI{
		Place:        *place,
		Category:     category,
		Phone:        firstTag(tags, "phone", "contact:phone"),
		Website:      firstTag(tags, "website", "contact:website"),
		OpeningHours: tags["opening_hours"],
	}
}

func firstTag(tags map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := tags[k]; v != "" {
			return v
		}
	}
	return ""
}
