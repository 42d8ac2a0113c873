package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

// Searcher ranks stored content against a text query.
type Searcher interface {
	Search(ctx context.Context, q vectorsearch.Query) ([]vectorsearch.Match, error)
}

// VectorHandler serves the /vector-search routes.
type VectorHandler struct {
	search Searcher
}

func NewVectorHandler(search Searcher) *VectorHandler {
	return &VectorHandler{search: search}
}

// Search handles POST /vector-search
func (h *VectorHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.VectorSearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	source := req.SourceFilter
	if alias, ok := vectorsearch.SourceForRoute(source); ok {
		source = alias
	}
	h.respond(w, r, req, source)
}

// SearchSource handles POST /vector-search/{source}, where source is one of
// films, actors, customers or categories.
func (h *VectorHandler) SearchSource(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "source")
	source, ok := vectorsearch.SourceForRoute(segment)
	if !ok {
		models.WriteError(w, http.StatusNotFound,
			"unknown source "+segment+"; expected one of "+strings.Join(vectorsearch.RouteNames(), ", "))
		return
	}

	var req models.VectorSearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.respond(w, r, req, source)
}

func (h *VectorHandler) respond(w http.ResponseWriter, r *http.Request, req models.VectorSearchRequest, source string) {
	if err := req.Validate(); err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.search.Search(r.Context(), vectorsearch.Query{Text: req.Query, K: req.TopK, Source: source})
	if err != nil {
		if errors.Is(err, vectorsearch.ErrEmptyQuery) || errors.Is(err, vectorsearch.ErrInvalidTopK) {
			models.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("source", source).Msg("vector search failed")
		models.WriteError(w, http.StatusInternalServerError, "Vector search failed: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, models.VectorSearchResponse{Results: matches, Count: len(matches)})
}
