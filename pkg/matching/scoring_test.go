package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDice(t *testing.T) {
	scorer := NewScorer()

	t.Run("identical strings score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.Dice("moondrop aria", "moondrop aria"))
	})

	t.Run("identical single character scores 1", func(t *testing.T) {
		// no bigrams exist, but the strings are equal
		assert.Equal(t, 1.0, scorer.Dice("a", "a"))
	})

	t.Run("empty input scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Dice("moondrop", ""))
		assert.Equal(t, 0.0, scorer.Dice("", "moondrop"))
		assert.Equal(t, 0.0, scorer.Dice("", ""))
	})

	t.Run("differing single characters score 0", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Dice("a", "b"))
	})

	t.Run("symmetric", func(t *testing.T) {
		pairs := [][2]string{
			{"moondrop aria", "moondrop aria 2"},
			{"kz zs10 pro", "kz zs10"},
			{"7hz timeless", "7hz salnotes zero"},
		}
		for _, p := range pairs {
			assert.Equal(t, scorer.Dice(p[0], p[1]), scorer.Dice(p[1], p[0]))
		}
	})

	t.Run("no overlap scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Dice("abc", "xyz"))
	})

	t.Run("partial overlap is between 0 and 1", func(t *testing.T) {
		score := scorer.Dice("moondrop aria", "moondrop aria snow")
		assert.Greater(t, score, 0.0)
		assert.Less(t, score, 1.0)
	})
}

func TestTokenDice(t *testing.T) {
	scorer := NewScorer()

	t.Run("identical token sets score 1", func(t *testing.T) {
		assert.Equal(t, 1.0, scorer.TokenDice("kz zs10 pro", "kz zs10 pro"))
	})

	t.Run("duplicate tokens collapse", func(t *testing.T) {
		// set semantics: {kz, zs10} vs {kz, zs10}
		assert.Equal(t, 1.0, scorer.TokenDice("kz kz zs10", "kz zs10 zs10"))
	})

	t.Run("empty token set scores 0", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.TokenDice("kz zs10", ""))
		assert.Equal(t, 0.0, scorer.TokenDice("", ""))
	})

	t.Run("half overlap", func(t *testing.T) {
		// {a, b} vs {b, c} -> 2*1/4
		assert.Equal(t, 0.5, scorer.TokenDice("a b", "b c"))
	})
}

func TestStripBrand(t *testing.T) {
	assert.Equal(t, "aria", StripBrand("moondrop aria"))
	assert.Equal(t, "audio u12t", StripBrand("64 audio u12t"))
	assert.Equal(t, "u12t", StripBrand("u12t"))
	assert.Equal(t, "", StripBrand(""))
}

func TestSimilarity(t *testing.T) {
	scorer := NewScorer()

	t.Run("brand stripping lifts brand-omitted candidates", func(t *testing.T) {
		full := scorer.Dice("moondrop aria", "aria")
		combined := scorer.Similarity("moondrop aria", "aria")
		assert.Equal(t, 1.0, combined)
		assert.Greater(t, combined, full)
	})

	t.Run("takes the best of all strategies", func(t *testing.T) {
		a := "64 audio u12t"
		b := "u12t"
		combined := scorer.Similarity(a, b)
		assert.GreaterOrEqual(t, combined, scorer.Dice(a, b))
		assert.GreaterOrEqual(t, combined, scorer.TokenDice(a, b))
		assert.GreaterOrEqual(t, combined, scorer.Dice(StripBrand(a), StripBrand(b)))
		assert.GreaterOrEqual(t, combined, scorer.TokenDice(StripBrand(a), StripBrand(b)))
	})
}
