package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/middleware"
	"github.com/gamevault/api-gateway/internal/services"
)

// pathID parses a UUID route parameter. Malformed ids cannot name any row,
// so they are reported as missing.
func pathID(r *http.Request, name, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, &services.Error{Kind: services.KindNotFound, Message: what + " not found"}
	}
	return id, nil
}

// queryInt returns 0 when the parameter is absent or not a number.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// caller returns the authenticated user. Routes using it are always behind
// Authenticate.
func caller(r *http.Request) services.Principal {
	return middleware.PrincipalFrom(r.Context())
}
