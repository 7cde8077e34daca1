package utils

import (
	"encoding/json"
	"net/http"

	"github.com/KromaEnergia/api-guias/internal/apperr"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error renders err as {"error": msg} with the status of its apperr kind.
// Internal causes never reach the client.
func Error(w http.ResponseWriter, err error) {
	JSON(w, apperr.Status(err), ErrorResponse{Error: apperr.Message(err)})
}

func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, map[string]string{"message": msg})
}
