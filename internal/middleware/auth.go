package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"courtmatch/internal/auth"
)

type contextKey string

const (
	ActorContextKey contextKey = "actor"
)

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.AccessTokenClaims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth validates the bearer token and stores the actor id in the
// request context. Browsers cannot set headers on a websocket upgrade, so
// upgrades may pass the token as ?token= instead.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Authorization header required")
			return
		}

		claims, err := m.validator.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				writeUnauthorized(w, "Token has expired")
				return
			}
			writeUnauthorized(w, "Invalid token")
			return
		}

		actorID := claims.ActorID()
		ctx := context.WithValue(r.Context(), ActorContextKey, actorID)
		logger := zerolog.Ctx(ctx).With().Str("actor_id", actorID).Logger()
		ctx = logger.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, true
		}
	}
	return "", false
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="courtmatch"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", message)
}

// ActorFromContext returns the authenticated actor id.
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorContextKey).(string)
	return actor, ok && actor != ""
}

// WithActor stores an actor id the way RequireAuth does. Used by tests and
// internal callers.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorContextKey, actorID)
}
