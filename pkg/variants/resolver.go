// Package variants selects the single best member of each product family
// from external quality scores.
package variants

import (
	"sort"

	"github.com/AudioList/clover/pkg/models"
)

// Diff is the minimal set of flag changes needed to make the stored flags
// agree with the computed winners. Running the resolver twice over the same
// data yields an empty diff the second time.
type Diff struct {
	ToMarkBest    []string `json:"to_mark_best"`
	ToMarkNotBest []string `json:"to_mark_not_best"`
}

// Empty reports whether the diff contains no changes.
func (d Diff) Empty() bool {
	return len(d.ToMarkBest) == 0 && len(d.ToMarkNotBest) == 0
}

// ResolveBestVariants picks one winner per family by quality score. Members
// with a null score never win but are never forced inactive. Families where
// every member has a null score are skipped entirely so existing flags
// survive. Ties go to the first member encountered. Family iteration is
// sorted by key so output order is stable across runs.
func ResolveBestVariants(families map[string][]models.FamilyMember) Diff {
	var diff Diff

	keys := make([]string, 0, len(families))
	for k := range families {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		members := families[key]

		winner := -1
		for i, m := range members {
			if m.QualityScore == nil {
				continue
			}
			if winner == -1 || *m.QualityScore > *members[winner].QualityScore {
				winner = i
			}
		}
		if winner == -1 {
			// no scored members, leave the family untouched
			continue
		}

		for i, m := range members {
			shouldBeBest := i == winner
			if m.IsBestVariant == shouldBeBest {
				continue
			}
			if shouldBeBest {
				diff.ToMarkBest = append(diff.ToMarkBest, m.ID)
			} else {
				diff.ToMarkNotBest = append(diff.ToMarkNotBest, m.ID)
			}
		}
	}

	return diff
}

// Apply rewrites the members' flags as the diff prescribes. Used by callers
// that want the post-resolution view without re-reading storage.
func Apply(families map[string][]models.FamilyMember, diff Diff) {
	best := make(map[string]struct{}, len(diff.ToMarkBest))
	for _, id := range diff.ToMarkBest {
		best[id] = struct{}{}
	}
	notBest := make(map[string]struct{}, len(diff.ToMarkNotBest))
	for _, id := range diff.ToMarkNotBest {
		notBest[id] = struct{}{}
	}

	for _, members := range families {
		for i := range members {
			if _, ok := best[members[i].ID]; ok {
				members[i].IsBestVariant = true
			}
			if _, ok := notBest[members[i].ID]; ok {
				members[i].IsBestVariant = false
			}
		}
	}
}
