package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEmbedder generates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// EmbedderConfig holds configuration for creating an embedder.
type EmbedderConfig struct {
	APIKey string
	Model  string // e.g. "text-embedding-ada-002"
}

// NewOpenAIEmbedder creates an embedder backed by the OpenAI API.
func NewOpenAIEmbedder(cfg *EmbedderConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AdaEmbeddingV2)
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
		logger: logger.Named("embedder"),
	}, nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// Embed returns the embedding vector for input. Newlines are collapsed the
// way the embeddings endpoint expects.
func (e *OpenAIEmbedder) Embed(ctx context.Context, input string) ([]float32, error) {
	input = strings.TrimSpace(strings.ReplaceAll(input, "\n", " "))
	if input == "" {
		return nil, fmt.Errorf("empty input")
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{input},
	})
	if err != nil {
		e.logger.Warn("embedding request failed", zap.Error(err))
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
