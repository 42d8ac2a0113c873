package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/models"
	"github.com/cortexai/text2sql/internal/schemadoc"
)

// SchemaInitializer populates the schema document store.
type SchemaInitializer interface {
	Run(ctx context.Context) (schemadoc.Report, error)
}

// AdminHandler serves maintenance endpoints.
type AdminHandler struct {
	initializer SchemaInitializer
}

func NewAdminHandler(initializer SchemaInitializer) *AdminHandler {
	return &AdminHandler{initializer: initializer}
}

// InitTableDocs handles POST /admin/init-table-docs
func (h *AdminHandler) InitTableDocs(w http.ResponseWriter, r *http.Request) {
	rep, err := h.initializer.Run(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("table_docs initialization failed")
		models.WriteError(w, http.StatusInternalServerError, "Failed to initialize table docs: "+err.Error())
		return
	}
	status := "ok"
	if len(rep.Failed) > 0 {
		status = "partial"
	}
	models.WriteJSON(w, http.StatusOK, models.InitReportResponse{Status: status, Report: rep})
}
