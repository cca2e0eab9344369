// Package buildings implements the viewport-driven building loading
// engine: conversion of raw upstream elements into validated polygon
// features, and the loader that composes caching, de-duplication and
// merging.
package buildings

// StructuralTagKeys lists the tag keys that mark an element as a built
// structure. Kept in sync with the keys the upstream query requests.
var StructuralTagKeys = []string{
	"building",
	"building:part",
	"landuse",
	"man_made",
	"amenity",
	"leisure",
	"shop",
	"office",
	"tourism",
	"historic",
	"aeroway",
	"railway",
	"public_transport",
	"craft",
	"industrial",
}

// GenericBuildingLabel is the display-label fallback for structures whose
// tags carry no more specific classification.
const GenericBuildingLabel = "Gebäude"

// genericTypeCode is the type-code fallback.
const genericTypeCode = "structure"

// tagRule pairs a tag key with a producer turning its value into a label
// or code. Rules are evaluated in slice order; the first key present wins.
type tagRule struct {
	key     string
	produce func(value string) string
}

// buildingValueLabels maps common building tag values to display labels.
var buildingValueLabels = map[string]string{
	"apartments":    "Wohnhaus",
	"house":         "Einfamilienhaus",
	"residential":   "Wohngebäude",
	"commercial":    "Geschäftsgebäude",
	"retail":        "Geschäftsgebäude",
	"industrial":    "Industriegebäude",
	"office":        "Bürogebäude",
	"church":        "Kirche",
	"cathedral":     "Dom",
	"chapel":        "Kapelle",
	"school":        "Schule",
	"university":    "Universität",
	"hospital":      "Krankenhaus",
	"hotel":         "Hotel",
	"museum":        "Museum",
	"train_station": "Bahnhof",
	"garage":        "Garage",
	"garages":       "Garagen",
}

func buildingLabel(value string) string {
	if label, ok := buildingValueLabels[value]; ok {
		return label
	}
	return GenericBuildingLabel
}

func prefixed(prefix string) func(string) string {
	return func(value string) string {
		if value == "" || value == "yes" {
			return prefix
		}
		return prefix + ": " + value
	}
}

// labelPolicy is the precedence list producing the display label
// (BAUWEISE). It is intentionally a separate, independently tunable table
// from typeCodePolicy: label text and coarse type code follow different
// precedence orders.
var labelPolicy = []tagRule{
	{"building", buildingLabel},
	{"building:part", func(string) string { return "Gebäudeteil" }},
	{"landuse", prefixed("Nutzung")},
	{"man_made", prefixed("Bauwerk")},
	{"amenity", prefixed("Einrichtung")},
	{"leisure", prefixed("Freizeit")},
	{"shop", prefixed("Geschäft")},
	{"office", prefixed("Büro")},
}

// typeCodePolicy is the precedence list producing the short type keyword
// (TYP). Note the deliberately different ordering from labelPolicy.
var typeCodePolicy = []tagRule{
	{"building", func(value string) string {
		if value == "" || value == "yes" {
			return "building"
		}
		return value
	}},
	{"building:part", func(string) string { return "building_part" }},
	{"amenity", func(value string) string { return value }},
	{"shop", func(string) string { return "shop" }},
	{"leisure", func(value string) string { return value }},
	{"landuse", func(value string) string { return value }},
	{"man_made", func(value string) string { return value }},
	{"office", func(string) string { return "office" }},
}

// applyPolicy evaluates an ordered rule table against a tag bag.
func applyPolicy(rules []tagRule, tags map[string]string, fallback string) string {
	for _, rule := range rules {
		if value, ok := tags[rule.key]; ok {
			return rule.produce(value)
		}
	}
	return fallback
}

// DisplayLabel derives the BAUWEISE label for a tag bag.
func DisplayLabel(tags map[string]string) string {
	return applyPolicy(labelPolicy, tags, GenericBuildingLabel)
}

// TypeCode derives the short TYP keyword for a tag bag.
func TypeCode(tags map[string]string) string {
	return applyPolicy(typeCodePolicy, tags, genericTypeCode)
}

// hasStructuralTag reports whether the tag bag carries at least one
// recognized structural key.
func hasStructuralTag(tags map[string]string) bool {
	for _, key := range StructuralTagKeys {
		if _, ok := tags[key]; ok {
			return true
		}
	}
	return false
}
