package middleware

import (
	"context"

	"github.com/gamevault/api-gateway/internal/services"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	stateKey     contextKey = "request_state"
)

// requestState is shared between the recorder, which creates it, and the
// middleware further down the chain, which fill it in.
type requestState struct {
	principal services.Principal
	attempt   *services.AuthError
	reserved  bool
}

func stateFrom(ctx context.Context) *requestState {
	s, _ := ctx.Value(stateKey).(*requestState)
	return s
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) services.Principal {
	p, _ := ctx.Value(principalKey).(services.Principal)
	return p
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p services.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
