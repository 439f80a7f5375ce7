package variants

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AudioList/clover/pkg/models"
)

func score(v float64) *float64 {
	return &v
}

func TestResolveBestVariants(t *testing.T) {
	t.Run("highest score wins and only changed flags are emitted", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"fam1": {
				{ID: "A", FamilyID: "fam1", QualityScore: score(80), IsBestVariant: false},
				{ID: "B", FamilyID: "fam1", QualityScore: score(92), IsBestVariant: false},
			},
		}

		diff := ResolveBestVariants(families)
		assert.Equal(t, []string{"B"}, diff.ToMarkBest)
		assert.Empty(t, diff.ToMarkNotBest) // A is already correctly false
	})

	t.Run("demotes a stale winner", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"fam1": {
				{ID: "A", FamilyID: "fam1", QualityScore: score(95), IsBestVariant: false},
				{ID: "B", FamilyID: "fam1", QualityScore: score(92), IsBestVariant: true},
			},
		}

		diff := ResolveBestVariants(families)
		assert.Equal(t, []string{"A"}, diff.ToMarkBest)
		assert.Equal(t, []string{"B"}, diff.ToMarkNotBest)
	})

	t.Run("null scores never win but are not demoted by a skip", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"unscored": {
				{ID: "A", FamilyID: "unscored", QualityScore: nil, IsBestVariant: true},
				{ID: "B", FamilyID: "unscored", QualityScore: nil, IsBestVariant: false},
			},
		}

		diff := ResolveBestVariants(families)
		assert.True(t, diff.Empty(), "all-null family must be left untouched")
	})

	t.Run("null-score member holding the flag is demoted when a scored sibling exists", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"fam1": {
				{ID: "A", FamilyID: "fam1", QualityScore: nil, IsBestVariant: true},
				{ID: "B", FamilyID: "fam1", QualityScore: score(70), IsBestVariant: false},
			},
		}

		diff := ResolveBestVariants(families)
		assert.Equal(t, []string{"B"}, diff.ToMarkBest)
		assert.Equal(t, []string{"A"}, diff.ToMarkNotBest)
	})

	t.Run("ties go to the first member encountered", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"fam1": {
				{ID: "A", FamilyID: "fam1", QualityScore: score(90), IsBestVariant: false},
				{ID: "B", FamilyID: "fam1", QualityScore: score(90), IsBestVariant: false},
			},
		}

		diff := ResolveBestVariants(families)
		assert.Equal(t, []string{"A"}, diff.ToMarkBest)
		assert.Empty(t, diff.ToMarkNotBest)
	})

	t.Run("families resolve independently with stable output order", func(t *testing.T) {
		families := map[string][]models.FamilyMember{
			"zeta": {
				{ID: "Z1", FamilyID: "zeta", QualityScore: score(50), IsBestVariant: false},
			},
			"alpha": {
				{ID: "A1", FamilyID: "alpha", QualityScore: score(60), IsBestVariant: false},
				{ID: "A2", FamilyID: "alpha", QualityScore: score(88), IsBestVariant: false},
			},
		}

		diff := ResolveBestVariants(families)
		assert.Equal(t, []string{"A2", "Z1"}, diff.ToMarkBest)
	})

	t.Run("empty input yields empty diff", func(t *testing.T) {
		assert.True(t, ResolveBestVariants(nil).Empty())
		assert.True(t, ResolveBestVariants(map[string][]models.FamilyMember{}).Empty())
	})
}

func TestResolveBestVariantsIdempotent(t *testing.T) {
	families := map[string][]models.FamilyMember{
		"fam1": {
			{ID: "A", FamilyID: "fam1", QualityScore: score(80), IsBestVariant: false},
			{ID: "B", FamilyID: "fam1", QualityScore: score(92), IsBestVariant: true},
			{ID: "C", FamilyID: "fam1", QualityScore: nil, IsBestVariant: false},
		},
		"fam2": {
			{ID: "D", FamilyID: "fam2", QualityScore: score(40), IsBestVariant: true},
			{ID: "E", FamilyID: "fam2", QualityScore: score(75), IsBestVariant: false},
		},
	}

	first := ResolveBestVariants(families)
	Apply(families, first)

	second := ResolveBestVariants(families)
	assert.True(t, second.Empty(), "second run over applied flags must be a no-op")
}
