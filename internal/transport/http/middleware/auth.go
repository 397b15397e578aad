package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hd-notes/notes-api/internal/domain"
	jwtinfra "github.com/hd-notes/notes-api/internal/infrastructure/jwt"
	"go.uber.org/zap"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// UserLookup resolves the user a token was minted for.
type UserLookup interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// Auth returns middleware that validates the Bearer JWT, confirms the user still
// exists and injects its identity into context. A deleted user is reported as an
// invalid token so account existence is not disclosed.
func Auth(tokens TokenVerifier, users UserLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, domain.ErrAuthHeaderMissing)
				return
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			tokenStr = strings.TrimSpace(tokenStr)
			if !ok || scheme != "Bearer" || tokenStr == "" {
				writeUnauthorized(w, domain.ErrAuthHeaderMalformed)
				return
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				log.Debug("rejected bearer token", zap.Error(err))
				writeUnauthorized(w, domain.ErrInvalidToken)
				return
			}

			u, err := users.Get(r.Context(), claims.UserID)
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					log.Error("auth user lookup failed", zap.String("user_id", claims.UserID), zap.Error(err))
				}
				writeUnauthorized(w, domain.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, u.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext extracts the authenticated identity from the request context.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(domain.Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id, as Auth would.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}
