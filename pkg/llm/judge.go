package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/models"
)

// maxJudgedCandidates caps how many candidates are presented to the judge in
// one call.
const maxJudgedCandidates = 20

const judgeSystemPrompt = `Eres un filtro de relevancia para un catálogo de insumos gastronómicos.
Recibes la consulta de un comprador y una lista numerada de productos candidatos.
Responde ÚNICAMENTE con JSON: {"relevant": [índices]} con los índices (base 0)
de los productos que realmente corresponden a lo buscado, o {"relevant": []}
si ninguno corresponde. Sin explicaciones.`

// AnthropicJudge narrows candidate lists through the Anthropic messages API.
type AnthropicJudge struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// JudgeConfig holds configuration for creating a relevance judge.
type JudgeConfig struct {
	APIKey string
	Model  string // e.g. "claude-3-5-haiku-latest"
}

// NewAnthropicJudge creates a relevance judge backed by the Anthropic API.
func NewAnthropicJudge(cfg *JudgeConfig, logger *zap.Logger) (*AnthropicJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("judge model is required")
	}
	return &AnthropicJudge{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("relevance-judge"),
	}, nil
}

var _ RelevanceJudge = (*AnthropicJudge)(nil)

// Judge presents up to 20 candidates (name plus category labels) and returns
// the judged-relevant subset. Errors are returned to the caller, which fails
// open; indices out of range are dropped here with a warning.
func (j *AnthropicJudge) Judge(ctx context.Context, query string, candidates []models.ProductCandidate) (*JudgeVerdict, error) {
	if len(candidates) > maxJudgedCandidates {
		candidates = candidates[:maxJudgedCandidates]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Consulta: %q\n\nCandidatos:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. %s", i, c.Name)
		if len(c.Categories) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(c.Categories, ", "))
		}
		sb.WriteByte('\n')
	}
	prompt := sb.String()

	resp, err := j.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(j.model),
		System:    judgeSystemPrompt,
		MaxTokens: 256,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("judge request: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty judge response")
	}

	return j.parseVerdict(text, len(candidates))
}

// parseVerdict extracts {"relevant": [...]} from the response, tolerating
// fenced code blocks and surrounding prose.
func (j *AnthropicJudge) parseVerdict(text string, n int) (*JudgeVerdict, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in judge response")
	}

	var payload struct {
		Relevant []int `json:"relevant"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("parse judge response: %w", err)
	}

	if len(payload.Relevant) == 0 {
		return &JudgeVerdict{None: true}, nil
	}

	verdict := &JudgeVerdict{}
	seen := make(map[int]struct{}, len(payload.Relevant))
	for _, idx := range payload.Relevant {
		if idx < 0 || idx >= n {
			j.logger.Warn("judge returned out-of-range index",
				zap.Int("index", idx), zap.Int("candidates", n))
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		verdict.SelectedIndices = append(verdict.SelectedIndices, idx)
	}
	if len(verdict.SelectedIndices) == 0 {
		// Every index was garbage; treat as a malformed response so the
		// caller fails open instead of wiping the tier.
		return nil, fmt.Errorf("judge response contained only invalid indices")
	}
	return verdict, nil
}
