package normalizers

// Vocabularies are data, not code: tuning what gets stripped must never
// require touching the pipeline itself. All terms are lowercase; hyphenated
// terms also match their space-separated and glued spellings.

// ParentheticalQualifiers are non-semantic qualifiers stripped only when they
// appear alone inside parentheses. Other parentheticals are kept because they
// often carry variant information, e.g. "(MK2)".
var ParentheticalQualifiers = []string{
	"pre-production",
	"pre-release",
	"custom",
	"demo",
	"demo unit",
	"review unit",
	"review sample",
	"prototype",
	"engineering sample",
}

// MarketingNoiseWords are retail filler terms stripped anywhere in the title
// at word boundaries.
var MarketingNoiseWords = []string{
	"official",
	"authentic",
	"genuine",
	"original",
	"free shipping",
	"fast shipping",
	"hot sale",
	"hot sales",
	"big sale",
	"new arrival",
	"brand new",
	"in stock",
	"best price",
	"wholesale price",
	"100% new",
}

// CategorySuffixes are product-category terms that carry no identity. Longer
// terms come first so alternation prefers them over their prefixes.
var CategorySuffixes = []string{
	"in-ear monitors",
	"in-ear monitor",
	"in-ear earphones",
	"in-ear earphone",
	"iems",
	"iem",
	"headphones",
	"headphone",
	"headsets",
	"headset",
	"earphones",
	"earphone",
	"earbuds",
	"earbud",
	"over-ear",
	"on-ear",
	"in-ear",
	"closed-back",
	"open-back",
	"wired",
	"wireless",
}
