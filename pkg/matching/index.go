package matching

import (
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/normalizers"
)

// IndexedCandidate is a candidate with its normalized forms and similarity
// fingerprints precomputed. Built once per category batch and treated as
// read-only afterwards.
type IndexedCandidate struct {
	ID   string
	Name string

	Normalized    string
	BrandStripped string

	BigramSet              map[string]struct{}
	BrandStrippedBigramSet map[string]struct{}
	TokenSet               map[string]struct{}
	BrandStrippedTokenSet  map[string]struct{}
}

// BuildIndex precomputes the matching artifacts for a candidate pool. A batch
// run scores many listing titles against the same candidates, so the
// candidate-side work is paid once here.
func BuildIndex(candidates []models.Candidate) []IndexedCandidate {
	index := make([]IndexedCandidate, 0, len(candidates))
	for _, c := range candidates {
		normalized := normalizers.Title(c.Name)
		stripped := StripBrand(normalized)

		index = append(index, IndexedCandidate{
			ID:                     c.ID,
			Name:                   c.Name,
			Normalized:             normalized,
			BrandStripped:          stripped,
			BigramSet:              BigramSet(normalized),
			BrandStrippedBigramSet: BigramSet(stripped),
			TokenSet:               TokenSet(normalized),
			BrandStrippedTokenSet:  TokenSet(stripped),
		})
	}
	return index
}
