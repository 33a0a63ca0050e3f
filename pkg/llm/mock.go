package llm

import (
	"context"

	"github.com/hapdco/catalog-engine/pkg/models"
)

// MockEmbedder is a configurable mock for testing embedding consumers.
// Set the function field to control behavior in tests.
type MockEmbedder struct {
	// EmbedFunc is called when Embed is invoked.
	// If nil, returns a zero vector of models.EmbeddingDim and nil error.
	EmbedFunc func(ctx context.Context, input string) ([]float32, error)

	// Call tracking for verification
	EmbedCalls int
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, input)
	}
	return make([]float32, models.EmbeddingDim), nil
}

var _ Embedder = (*MockEmbedder)(nil)

// MockJudge is a configurable mock for testing judge consumers.
type MockJudge struct {
	// JudgeFunc is called when Judge is invoked.
	// If nil, keeps every candidate.
	JudgeFunc func(ctx context.Context, query string, candidates []models.ProductCandidate) (*JudgeVerdict, error)

	JudgeCalls int
}

// Judge implements RelevanceJudge.
func (m *MockJudge) Judge(ctx context.Context, query string, candidates []models.ProductCandidate) (*JudgeVerdict, error) {
	m.JudgeCalls++
	if m.JudgeFunc != nil {
		return m.JudgeFunc(ctx, query, candidates)
	}
	indices := make([]int, len(candidates))
	for i := range candidates {
		indices[i] = i
	}
	return &JudgeVerdict{SelectedIndices: indices}, nil
}

var _ RelevanceJudge = (*MockJudge)(nil)
