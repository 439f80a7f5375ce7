package matching

import "strings"

// Scorer provides the string similarity primitives used for title matching
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Dice calculates the character-bigram Dice coefficient between two strings.
// Returns a value between 0.0 (no overlap) and 1.0 (exact match).
func (s *Scorer) Dice(a, b string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return diceFromSets(BigramSet(a), BigramSet(b))
}

// TokenDice calculates the Dice coefficient over whitespace-delimited token
// sets. Duplicate tokens collapse; set semantics, not multiset.
func (s *Scorer) TokenDice(a, b string) float64 {
	return diceFromSets(TokenSet(a), TokenSet(b))
}

// Similarity is the score used for matching: the maximum of the bigram and
// token Dice coefficients over both the full and brand-stripped forms. No
// single strategy dominates across retailers, so we take the best.
func (s *Scorer) Similarity(a, b string) float64 {
	score := s.Dice(a, b)
	if ts := s.TokenDice(a, b); ts > score {
		score = ts
	}

	sa, sb := StripBrand(a), StripBrand(b)
	if ds := s.Dice(sa, sb); ds > score {
		score = ds
	}
	if ts := s.TokenDice(sa, sb); ts > score {
		score = ts
	}

	return score
}

// diceFromSets computes 2|A∩B| / (|A|+|B|). Empty sets score 0.
func diceFromSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for k := range small {
		if _, ok := large[k]; ok {
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(a)+len(b))
}

// BigramSet returns the set of contiguous two-character substrings of s.
func BigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

// TokenSet returns the set of whitespace-delimited tokens of s.
func TokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(s) {
		set[token] = struct{}{}
	}
	return set
}

// StripBrand drops the first whitespace-delimited token, treating it as a
// brand prefix. A string with no space is returned unchanged.
func StripBrand(s string) string {
	idx := strings.IndexByte(s, ' ')
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}
