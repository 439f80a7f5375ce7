// Package quality filters obviously invalid listings before they reach the
// matcher. The rule set is a denylist, not a classifier: junk slipping
// through is acceptable, rejecting a real product is not.
package quality

// Gate evaluates a title against a tagged rule list.
type Gate struct {
	rules []Rule
}

// NewGate creates a gate over the given rules. Pass DefaultRules for the
// curated set.
func NewGate(rules []Rule) *Gate {
	return &Gate{rules: rules}
}

// IsJunk reports whether any rule fires for the raw title. Evaluated before
// normalization so patterns see the original punctuation and casing.
func (g *Gate) IsJunk(title string) bool {
	_, junk := g.Inspect(title)
	return junk
}

// Inspect returns the first rule that fires, for audit trails and per-rule
// metrics. The second return is false when the title is clean.
func (g *Gate) Inspect(title string) (*Rule, bool) {
	for i := range g.rules {
		rule := &g.rules[i]
		if !rule.Pattern.MatchString(title) {
			continue
		}
		if rule.Except != nil && rule.Except.MatchString(title) {
			continue
		}
		return rule, true
	}
	return nil, false
}
