package llm

import (
	"context"
	"fmt"

	"github.com/cortexai/text2sql/internal/observability"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI serves both completion and embeddings through one client.
type OpenAI struct {
	client         *openai.Client
	model          string
	embeddingModel string
	dimensions     int
	maxTokens      int
	temperature    float32
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Dimensions     int
	MaxTokens      int
	Temperature    float64
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		dimensions:     cfg.Dimensions,
		maxTokens:      cfg.MaxTokens,
		temperature:    float32(cfg.Temperature),
	}
}

func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	observability.ObserveLLMCall("openai", "complete", err)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed returns one vector per text, reordered by the response index. Every
// input slot must be filled exactly once.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	observability.ObserveLLMCall("openai", "embed", err)
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingMismatch, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrEmbeddingMismatch, d.Index)
		}
		if out[d.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", ErrEmbeddingMismatch, d.Index)
		}
		if o.dimensions > 0 && len(d.Embedding) != o.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrEmbeddingDimension, len(d.Embedding), o.dimensions)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ErrEmbeddingMismatch, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
