package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/httpx"
)

// QuotaReserver takes one unit of a user's allowance before a request runs.
type QuotaReserver interface {
	Reserve(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Quota must run after Authenticate and inside Record. A taken unit is
// marked on the request state so the recorder can settle it.
func Quota(q QuotaReserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFrom(r.Context())
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}

			reserved, err := q.Reserve(r.Context(), p.UserID())
			if err != nil {
				httpx.Error(w, r, err)
				return
			}
			if state := stateFrom(r.Context()); state != nil {
				state.reserved = reserved
			}
			next.ServeHTTP(w, r)
		})
	}
}
