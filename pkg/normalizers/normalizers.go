// Package normalizers provides title normalization for listing reconciliation
package normalizers

import (
	"regexp"
	"strings"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("strip_parenthetical_qualifiers", StripParentheticalQualifiers)
	Register("strip_marketing_noise", StripMarketingNoise)
	Register("strip_category_suffixes", StripCategorySuffixes)
	Register("dashes_to_spaces", DashesToSpaces)
	Register("alphanumeric_space", AlphanumericSpace)
	Register("collapse_spaces", CollapseSpaces)
	Register("title", Title)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

var (
	parentheticalRe   *regexp.Regexp
	marketingNoiseRe  *regexp.Regexp
	categorySuffixRe  *regexp.Regexp
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9 ]`)
	multiSpaceRe      = regexp.MustCompile(`\s{2,}`)
	dashRe            = regexp.MustCompile("[-–—]")
)

func init() {
	parentheticalRe = regexp.MustCompile(`\(\s*(?:` + alternation(ParentheticalQualifiers) + `)\s*\)`)
	marketingNoiseRe = regexp.MustCompile(`\b(?:` + alternation(MarketingNoiseWords) + `)\b`)
	categorySuffixRe = regexp.MustCompile(`\b(?:` + alternation(CategorySuffixes) + `)\b`)
}

// alternation builds a regex alternation over the terms. Hyphens and spaces
// inside a term match any run of dashes or spaces, so "in-ear monitor" also
// covers "in ear monitor", "in–ear monitor" and "in-ear  monitor". En and em
// dashes must be in the separator class: DashesToSpaces runs after these
// strips, so a term split by one would otherwise survive the first pass and
// only be stripped on a second.
func alternation(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		fields := strings.FieldsFunc(term, func(r rune) bool {
			return r == '-' || r == ' '
		})
		for i, f := range fields {
			fields[i] = regexp.QuoteMeta(f)
		}
		parts = append(parts, strings.Join(fields, `[-–—\s]+`))
	}
	return strings.Join(parts, "|")
}

// Title canonicalizes a raw listing title for matching. It is total and
// idempotent; the step order is fixed because suffix stripping must see the
// title before punctuation is removed.
func Title(s string) string {
	s = Lowercase(s)
	s = StripParentheticalQualifiers(s)
	s = StripMarketingNoise(s)
	s = StripCategorySuffixes(s)
	s = DashesToSpaces(s)
	s = AlphanumericSpace(s)
	s = CollapseSpaces(s)
	return s
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// StripParentheticalQualifiers removes parentheticals that contain only a
// known non-semantic qualifier. Expects lowercase input.
func StripParentheticalQualifiers(s string) string {
	return parentheticalRe.ReplaceAllString(s, " ")
}

// StripMarketingNoise removes retail filler terms at word boundaries.
// Expects lowercase input.
func StripMarketingNoise(s string) string {
	return replaceUntilStable(marketingNoiseRe, s)
}

// StripCategorySuffixes removes category terms at word boundaries. Expects
// lowercase input.
func StripCategorySuffixes(s string) string {
	return replaceUntilStable(categorySuffixRe, s)
}

// replaceUntilStable reapplies the replacement until a fixpoint. Removing a
// term can make two surviving words adjacent and form a new term, so a single
// pass is not idempotent.
func replaceUntilStable(re *regexp.Regexp, s string) string {
	for {
		out := re.ReplaceAllString(s, " ")
		if out == s {
			return out
		}
		s = out
	}
}

// DashesToSpaces replaces hyphen, en-dash and em-dash with spaces
func DashesToSpaces(s string) string {
	return dashRe.ReplaceAllString(s, " ")
}

// AlphanumericSpace keeps only lowercase letters, digits and spaces
func AlphanumericSpace(s string) string {
	return nonAlphanumericRe.ReplaceAllString(s, "")
}

// CollapseSpaces collapses runs of whitespace into single spaces and trims
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}
