// Package llm adapts hosted language model APIs to the two capabilities the
// service needs: single-turn text completion and text embedding.
package llm

import (
	"context"
	"errors"
	"time"
)

var (
	ErrEmptyResponse      = errors.New("llm returned no text")
	ErrEmbeddingMismatch  = errors.New("embedding count does not match input count")
	ErrEmbeddingDimension = errors.New("embedding has unexpected dimension")
)

// Completer turns a system and user prompt into the model's text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Embedder turns texts into fixed-length vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, ErrEmbeddingMismatch
	}
	return vecs[0], nil
}

// WithTimeout bounds every Complete call of c by d. d <= 0 returns c.
func WithTimeout(c Completer, d time.Duration) Completer {
	if d <= 0 {
		return c
	}
	return timeoutCompleter{next: c, timeout: d}
}

type timeoutCompleter struct {
	next    Completer
	timeout time.Duration
}

func (t timeoutCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, system, user)
}
