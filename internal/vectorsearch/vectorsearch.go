// Package vectorsearch ranks stored documents by embedding distance to a
// query text. Ranking is delegated entirely to the backing store's distance
// operator; nothing is re-ranked locally.
package vectorsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cortexai/text2sql/internal/llm"
	"github.com/cortexai/text2sql/internal/observability"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTopK = errors.New("top_k must be positive")
	ErrEmptyQuery  = errors.New("query cannot be empty")
)

// Match is one ranked document. Distance is the store's cosine distance
// (0 = identical); Similarity is 1 - Distance.
type Match struct {
	SourceTable string         `json:"source_table"`
	SourceID    int64          `json:"source_id"`
	Name        string         `json:"name,omitempty"`
	Content     string         `json:"content"`
	Distance    float64        `json:"distance"`
	Similarity  float64        `json:"similarity"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Query is a similarity search request. K == 0 means the service default;
// an empty Source searches every source.
type Query struct {
	Text   string
	K      int
	Source string
}

// Index is a store that can rank its documents against a vector.
type Index interface {
	Search(ctx context.Context, vector []float32, k int, source string) ([]Match, error)
	Backend() string
}

// Service embeds the query text and asks the index for the K nearest.
type Service struct {
	embedder llm.Embedder
	index    Index
	defaultK int
	maxK     int
}

// NewService builds a search service. K above maxK is clamped; maxK <= 0
// disables the clamp.
func NewService(embedder llm.Embedder, index Index, defaultK, maxK int) *Service {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Service{embedder: embedder, index: index, defaultK: defaultK, maxK: maxK}
}

// ResolveK applies the default and the upper bound to a requested K.
func (s *Service) ResolveK(k int) (int, error) {
	switch {
	case k == 0:
		return s.defaultK, nil
	case k < 0:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidTopK, k)
	case s.maxK > 0 && k > s.maxK:
		return s.maxK, nil
	}
	return k, nil
}

func (s *Service) Search(ctx context.Context, q Query) ([]Match, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	k, err := s.ResolveK(q.K)
	if err != nil {
		return nil, err
	}

	vec, err := llm.EmbedOne(ctx, s.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.index.Search(ctx, vec, k, q.Source)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.index.Backend(), err)
	}
	observability.ObserveVectorSearch(s.index.Backend(), q.Source)
	log.Debug().
		Str("backend", s.index.Backend()).
		Str("source", q.Source).
		Int("k", k).
		Int("matches", len(matches)).
		Msg("vector search")

	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}
