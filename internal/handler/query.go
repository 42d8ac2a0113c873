package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/middleware"
	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/pipeline"
	"github.com/cortexai/text2sql/internal/security"
)

// Runner answers one question end to end.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*models.QueryResponse, error)
}

// QueryHandler serves POST /query and POST /hybrid-query.
type QueryHandler struct {
	runner    Runner
	validator *security.PromptValidator
	audit     *security.AuditLogger
}

// NewQueryHandler wires a handler. A nil validator only rejects empty questions.
func NewQueryHandler(runner Runner, validator *security.PromptValidator, audit *security.AuditLogger) *QueryHandler {
	return &QueryHandler{runner: runner, validator: validator, audit: audit}
}

// Query handles POST /query
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		models.WriteError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}
	h.run(w, r, pipeline.Request{Question: req.Question, Language: req.Language})
}

// HybridQuery handles POST /hybrid-query
func (h *QueryHandler) HybridQuery(w http.ResponseWriter, r *http.Request) {
	var req models.HybridQueryRequest
	if err := decodeBody(w, r, &req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults()
	if err := req.Validate(); err != nil {
		msg := err.Error()
		if errors.Is(err, models.ErrEmptyQuestion) {
			msg = "Question cannot be empty"
		}
		models.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	h.run(w, r, pipeline.Request{
		Question:         req.Question,
		Language:         req.Language,
		UseVectorContext: *req.UseVectorContext,
		TopK:             req.TopK,
	})
}

func (h *QueryHandler) run(w http.ResponseWriter, r *http.Request, req pipeline.Request) {
	req.RequestID = middleware.GetRequestID(r.Context())

	if h.validator != nil {
		if err := h.validator.Validate(req.Question); err != nil {
			h.audit.LogRejected(req.RequestID, req.Question, err)
			models.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp, err := h.runner.Run(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			models.WriteError(w, http.StatusBadRequest, "Question cannot be empty")
			return
		}
		log.Error().Err(err).Str("request_id", req.RequestID).Msg("query pipeline failed")
		models.WriteError(w, http.StatusInternalServerError, "Failed to process query: "+err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, resp)
}
