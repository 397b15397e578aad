package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/validate"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// ErrorEnvelope is the single error shape every endpoint returns.
type ErrorEnvelope struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// RegisterEnvelope wraps the register response.
type RegisterEnvelope struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// LoginEnvelope tells the client a code was sent and must be submitted next.
type LoginEnvelope struct {
	Message     string `json:"message"`
	RequiresOTP bool   `json:"requiresOTP"`
}

// TokenEnvelope wraps a successful code verification.
type TokenEnvelope struct {
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token"`
	User    domain.Identity `json:"user"`
}

// ProfileEnvelope is the authenticated user's own profile.
type ProfileEnvelope struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProfile(u *domain.User) ProfileEnvelope {
	return ProfileEnvelope{UserID: u.ID, Email: u.Email, Name: u.Name, Verified: u.Verified, CreatedAt: u.CreatedAt}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status once, at the boundary. Anything that is
// not a *domain.Error is reported as a generic 500 and logged.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Error("unhandled error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorEnvelope{Error: "Internal server error", Code: "internal_error"})
		return
	}
	status := statusFor(de.Kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", de.Code), zap.Error(err))
	}
	writeJSON(w, status, ErrorEnvelope{Error: de.Message, Code: de.Code, Details: de.Hint})
}

func statusFor(k domain.Kind) int {
	switch k {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Validation("Request body is required")
		}
		return domain.Validation("Invalid request body")
	}
	return validate.Struct(dst)
}

var (
	errUnauthenticated = domain.NewError(domain.KindUnauthenticated, "unauthorized", "Unauthorized")
	errUnknownAction   = domain.Validation("unknown action")
)
