package quality

import "regexp"

// RuleCategory labels why a rule fires
type RuleCategory string

const (
	RuleCategoryCounterfeit RuleCategory = "counterfeit"
	RuleCategoryAccessory   RuleCategory = "accessory"
	RuleCategoryWholesale   RuleCategory = "wholesale"
	RuleCategorySpam        RuleCategory = "spam"
	RuleCategoryOffCategory RuleCategory = "off_category"
)

// Rule is one junk signal. Except carves out legitimate uses of an otherwise
// suspicious term; the rule fires only when Pattern matches and Except does
// not. Patterns are word-boundary anchored and scoped narrowly because a
// false positive rejects a real product, which costs more than junk slipping
// through.
type Rule struct {
	Name     string
	Category RuleCategory
	Pattern  *regexp.Regexp
	Except   *regexp.Regexp
}

// DefaultRules is the curated denylist applied to raw listing titles.
var DefaultRules = []Rule{
	// counterfeit and replica indicators
	{
		Name:     "replica",
		Category: RuleCategoryCounterfeit,
		Pattern:  regexp.MustCompile(`(?i)\b(?:replica|counterfeit|fake|knock[\s-]?off|copy version|1:1)\b`),
	},
	{
		Name:     "clone",
		Category: RuleCategoryCounterfeit,
		Pattern:  regexp.MustCompile(`(?i)\bclone\b`),
	},
	{
		// OEM parts are legitimate in this domain; only bare OEM branding is junk
		Name:     "oem",
		Category: RuleCategoryCounterfeit,
		Pattern:  regexp.MustCompile(`(?i)\boem\b`),
		Except:   regexp.MustCompile(`(?i)\boem\s+(?:driver|drivers|diaphragm|diaphragms)\b`),
	},

	// accessory-only listings
	{
		Name:     "case_only",
		Category: RuleCategoryAccessory,
		Pattern:  regexp.MustCompile(`(?i)\b(?:case|cover|pouch|bag)\s+only\b`),
	},
	{
		Name:     "accessory_for",
		Category: RuleCategoryAccessory,
		Pattern:  regexp.MustCompile(`(?i)\b(?:case|cover|skin|pouch|stand|holder|protector|tips|eartips|ear\s+tips)\s+(?:for|fits?|compatible with)\b`),
	},
	{
		Name:     "replacement_part",
		Category: RuleCategoryAccessory,
		Pattern:  regexp.MustCompile(`(?i)\breplacement\s+(?:cable|cord|pads|earpads|ear\s+pads|cushions|tips)\b`),
	},
	{
		Name:     "charging_accessory",
		Category: RuleCategoryAccessory,
		Pattern:  regexp.MustCompile(`(?i)\b(?:charging\s+(?:case|cable|dock)|charger)\s+(?:for|only)\b`),
	},

	// wholesale and bulk lots
	{
		Name:     "wholesale",
		Category: RuleCategoryWholesale,
		Pattern:  regexp.MustCompile(`(?i)\b(?:wholesale|bulk|job\s?lot)\b`),
	},
	{
		Name:     "lot_of_n",
		Category: RuleCategoryWholesale,
		Pattern:  regexp.MustCompile(`(?i)\blot\s+of\s+\d+\b`),
	},
	{
		Name:     "pieces",
		Category: RuleCategoryWholesale,
		Pattern:  regexp.MustCompile(`(?i)\b\d+\s*(?:pcs|pieces|units)\b`),
	},

	// spam and marketing-superlative patterns
	{
		Name:     "superlative_spam",
		Category: RuleCategorySpam,
		Pattern:  regexp.MustCompile(`(?i)\b(?:best\s+quality\s+guaranteed|lowest\s+price\s+ever|limited\s+time\s+offer|click\s+now|buy\s+now\s+pay\s+later)\b`),
	},
	{
		Name:     "emoji_bait",
		Category: RuleCategorySpam,
		Pattern:  regexp.MustCompile(`[\x{1F525}\x{1F4A5}\x{2B50}\x{1F381}]`),
	},

	// non-audio products that slip through keyword search
	{
		Name:     "smartwatch",
		Category: RuleCategoryOffCategory,
		Pattern:  regexp.MustCompile(`(?i)\bsmart\s?watch\b`),
	},
	{
		Name:     "karaoke",
		Category: RuleCategoryOffCategory,
		Pattern:  regexp.MustCompile(`(?i)\bkaraoke\s+(?:machine|microphone|system)\b`),
	},
	{
		Name:     "translator",
		Category: RuleCategoryOffCategory,
		Pattern:  regexp.MustCompile(`(?i)\b(?:language\s+)?translator\s+(?:device|earbuds?)\b`),
	},
	{
		Name:     "hearing_aid",
		Category: RuleCategoryOffCategory,
		Pattern:  regexp.MustCompile(`(?i)\bhearing\s+(?:aid|amplifier)s?\b`),
	},
}
