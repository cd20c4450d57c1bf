package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const (
	userKey   contextKey = "auth_user"
	accessKey contextKey = "auth_access"
)

// Verifier is what the middleware needs from the auth client.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*UserInfo, error)
	VerifyAccess(ctx context.Context, token, moduleCode, submoduleCode string) (*Access, error)
}

// Middleware authenticates staff requests against the auth service and
// attaches the user and granted permissions to the request context. Public
// chatbot routes are simply not mounted behind it.
type Middleware struct {
	verifier   Verifier
	moduleCode string
}

func NewMiddleware(verifier Verifier, moduleCode string) *Middleware {
	return &Middleware{
		verifier:   verifier,
		moduleCode: moduleCode,
	}
}

func (m *Middleware) reject(w http.ResponseWriter, status int, code, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"details": details,
	})
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			m.reject(w, http.StatusUnauthorized, "missing_token", "a bearer token is required")
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.reject(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
			return
		}

		access, err := m.verifier.VerifyAccess(r.Context(), token, m.moduleCode, "")
		if err != nil || !access.HasAccess {
			m.reject(w, http.StatusForbidden, "module_access_denied", "no access to the clinics module")
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, accessKey, access)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessFrom returns the permissions attached by RequireAuth, if any.
func AccessFrom(ctx context.Context) (*Access, bool) {
	access, ok := ctx.Value(accessKey).(*Access)
	return access, ok
}

// UserFrom returns the authenticated user attached by RequireAuth, if any.
func UserFrom(ctx context.Context) (*UserInfo, bool) {
	user, ok := ctx.Value(userKey).(*UserInfo)
	return user, ok
}
