package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
	Code   int    `json:"code,omitempty"`
}

func WriteError(w http.ResponseWriter, code int, detail string) {
	WriteJSON(w, code, ErrorResponse{
		Status: "error",
		Detail: detail,
		Code:   code,
	})
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
