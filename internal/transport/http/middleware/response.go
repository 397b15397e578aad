package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hd-notes/notes-api/internal/domain"
)

// writeJSONError writes a JSON-encoded error response with the correct Content-Type.
func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}

func writeUnauthorized(w http.ResponseWriter, e *domain.Error) {
	writeJSONError(w, http.StatusUnauthorized, e.Code, e.Message)
}
