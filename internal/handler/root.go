package handler

import (
	"net/http"

	"github.com/cortexai/text2sql/internal/models"
)

// Root handles GET /
func Root(w http.ResponseWriter, _ *http.Request) {
	models.WriteJSON(w, http.StatusOK, models.WelcomeResponse{Message: "Welcome to the Text-to-SQL API!"})
}
