package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cortexai/text2sql/internal/observability"
)

const defaultAnthropicModel = "claude-sonnet-4-6"

// Anthropic is a single-turn Completer backed by the Messages API.
type Anthropic struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewAnthropic creates a completer for Anthropic Claude or a compatible proxy.
func NewAnthropic(apiKey, model, baseURL string, maxTokens int, temperature float64) *Anthropic {
	if model == "" {
		model = defaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client:      anthropic.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(a.model)),
		MaxTokens:   anthropic.F(int64(a.maxTokens)),
		Temperature: anthropic.F(a.temperature),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		}),
	}
	if system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(system),
		})
	}

	resp, err := a.client.Messages.New(ctx, params)
	observability.ObserveLLMCall("anthropic", "complete", err)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
