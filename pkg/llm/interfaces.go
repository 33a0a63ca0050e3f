// Package llm holds the two AI collaborators of the catalog engine: the
// embedding generator and the relevance judge. Both are optional at runtime;
// callers must tolerate a nil vector and must fail open when the judge is
// unreachable.
package llm

import (
	"context"

	"github.com/hapdco/catalog-engine/pkg/models"
)

// Embedder turns text into a fixed-dimensionality vector.
// Use this interface for dependency injection to enable mocking in tests.
type Embedder interface {
	// Embed returns the embedding for input. Implementations return an error
	// on failure; callers treat a failure as "no vector" and continue.
	Embed(ctx context.Context, input string) ([]float32, error)
}

// JudgeVerdict is the outcome of one relevance-judge pass.
type JudgeVerdict struct {
	// None is true when the judge explicitly ruled every candidate
	// irrelevant, which is different from a failed call.
	None bool
	// SelectedIndices are 0-based positions into the candidate list that the
	// judge kept. Out-of-range indices have already been dropped.
	SelectedIndices []int
}

// RelevanceJudge narrows a candidate list to the subset that is actually
// on-topic for the query.
type RelevanceJudge interface {
	Judge(ctx context.Context, query string, candidates []models.ProductCandidate) (*JudgeVerdict, error)
}
