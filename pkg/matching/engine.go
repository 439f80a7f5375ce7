// Package matching resolves noisy listing titles to canonical catalog
// products using multi-strategy Dice similarity.
package matching

import (
	"fmt"

	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/normalizers"
)

// Engine finds the best catalog candidate for a listing title. It is
// stateless and safe for concurrent use against read-only indexes.
type Engine struct {
	scorer *Scorer
}

// NewEngine creates a new matching engine
func NewEngine() *Engine {
	return &Engine{scorer: NewScorer()}
}

// querySets holds the query-side artifacts, computed once per title.
type querySets struct {
	normalized    string
	stripped      string
	bigrams       map[string]struct{}
	strippedBi    map[string]struct{}
	tokens        map[string]struct{}
	strippedToken map[string]struct{}
}

func newQuerySets(title string) querySets {
	normalized := normalizers.Title(title)
	stripped := StripBrand(normalized)
	return querySets{
		normalized:    normalized,
		stripped:      stripped,
		bigrams:       BigramSet(normalized),
		strippedBi:    BigramSet(stripped),
		tokens:        TokenSet(normalized),
		strippedToken: TokenSet(stripped),
	}
}

// FindBestMatch scores the title against every indexed candidate and returns
// the best. Returns nil when the index is empty; the caller treats that as
// "no candidates in category", not an error. Ties go to the first candidate
// encountered, so results are deterministic for a fixed candidate order.
func (e *Engine) FindBestMatch(title string, index []IndexedCandidate) *models.MatchResult {
	if len(index) == 0 {
		return nil
	}

	q := newQuerySets(title)

	var best *models.MatchResult
	for i := range index {
		score := e.scoreAgainst(q, &index[i])
		if best == nil || score > best.Score {
			best = &models.MatchResult{
				CandidateID:   index[i].ID,
				CandidateName: index[i].Name,
				Score:         score,
			}
		}
	}

	return best
}

// Similarity scores a single (title, candidate name) pair without an index.
// Equivalent to FindBestMatch over a one-candidate index.
func (e *Engine) Similarity(title, candidateName string) float64 {
	a := normalizers.Title(title)
	b := normalizers.Title(candidateName)
	return e.scorer.Similarity(a, b)
}

// scoreAgainst computes the four strategy scores reusing the candidate's
// cached sets and takes the maximum.
func (e *Engine) scoreAgainst(q querySets, c *IndexedCandidate) float64 {
	score := dicePair(q.normalized, c.Normalized, q.bigrams, c.BigramSet)
	if ts := diceFromSets(q.tokens, c.TokenSet); ts > score {
		score = ts
	}
	if ds := dicePair(q.stripped, c.BrandStripped, q.strippedBi, c.BrandStrippedBigramSet); ds > score {
		score = ds
	}
	if ts := diceFromSets(q.strippedToken, c.BrandStrippedTokenSet); ts > score {
		score = ts
	}
	return score
}

// dicePair applies the bigram Dice edge cases on the raw strings before
// falling through to the precomputed sets.
func dicePair(a, b string, aSet, bSet map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return diceFromSets(aSet, bSet)
}

// Policy maps a similarity score onto a reconciliation decision. Thresholds
// are caller-supplied configuration, not engine constants.
type Policy struct {
	AutoApproveThreshold   float64
	PendingReviewThreshold float64
}

// Validate checks the threshold ordering and range.
func (p Policy) Validate() error {
	if p.AutoApproveThreshold < 0 || p.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto approve threshold %f is out of range [0,1]", p.AutoApproveThreshold)
	}
	if p.PendingReviewThreshold < 0 || p.PendingReviewThreshold > 1 {
		return fmt.Errorf("pending review threshold %f is out of range [0,1]", p.PendingReviewThreshold)
	}
	if p.AutoApproveThreshold < p.PendingReviewThreshold {
		return fmt.Errorf("auto approve threshold %f is below pending review threshold %f",
			p.AutoApproveThreshold, p.PendingReviewThreshold)
	}
	return nil
}

// Classify maps a score to a decision band. The thresholds may be equal,
// collapsing the pending band to width zero.
func (p Policy) Classify(score float64) models.Decision {
	switch {
	case score >= p.AutoApproveThreshold:
		return models.DecisionAutoApprove
	case score >= p.PendingReviewThreshold:
		return models.DecisionPendingReview
	default:
		return models.DecisionReject
	}
}
