package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
)

const APIKeyHeader = "X-API-Key"

// Authenticator resolves request credentials to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, c services.Credentials, mode services.AuthMode) (services.Principal, error)
}

func credentials(r *http.Request) services.Credentials {
	c := services.Credentials{APIKey: strings.TrimSpace(r.Header.Get(APIKeyHeader))}
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			c.BearerToken = strings.TrimSpace(token)
		}
	}
	return c
}

// Authenticate rejects requests without acceptable credentials and stores
// the principal in the request context.
func Authenticate(auth Authenticator, mode services.AuthMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := stateFrom(r.Context())

			p, err := auth.Authenticate(r.Context(), credentials(r), mode)
			if err != nil {
				var authErr *services.AuthError
				if errors.As(err, &authErr) && state != nil {
					state.attempt = authErr
				}
				if services.KindOf(err) == services.KindForbidden {
					slog.WarnContext(r.Context(), "api key refused", "path", r.URL.Path)
				}
				httpx.Error(w, r, err)
				return
			}

			if state != nil {
				state.principal = p
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFrom(r.Context())
		if p == nil || p.Role() != models.RoleAdmin {
			httpx.Error(w, r, &services.Error{Kind: services.KindForbidden, Message: "Admin access required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
