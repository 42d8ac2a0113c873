package models

import (
	"errors"
	"strings"
)

var (
	ErrEmptyQuestion = errors.New("question cannot be empty")
	ErrEmptyQuery    = errors.New("query cannot be empty")
	ErrNegativeTopK  = errors.New("top_k must be positive")
)

// QueryRequest for POST /query
type QueryRequest struct {
	Question string `json:"question"`
	Language string `json:"language,omitempty"`
}

func (r *QueryRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	return nil
}

// HybridQueryRequest for POST /hybrid-query. UseVectorContext defaults to
// true when omitted.
type HybridQueryRequest struct {
	Question         string `json:"question"`
	Language         string `json:"language,omitempty"`
	UseVectorContext *bool  `json:"use_vector_context,omitempty"`
	TopK             int    `json:"top_k,omitempty"`
}

func (r *HybridQueryRequest) SetDefaults() {
	if r.UseVectorContext == nil {
		v := true
		r.UseVectorContext = &v
	}
}

func (r *HybridQueryRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return ErrEmptyQuestion
	}
	if r.TopK < 0 {
		return ErrNegativeTopK
	}
	return nil
}

// VectorSearchRequest for POST /vector-search and its per-source variants.
type VectorSearchRequest struct {
	Query        string `json:"query"`
	TopK         int    `json:"top_k,omitempty"`
	SourceFilter string `json:"source_filter,omitempty"`
}

func (r *VectorSearchRequest) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return ErrEmptyQuery
	}
	if r.TopK < 0 {
		return ErrNegativeTopK
	}
	return nil
}
