// Package openapi describes the HTTP API as an OpenAPI 3.1 document.
package openapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// access says which credentials an operation accepts.
type access int

const (
	public access = iota
	session
	flexible
	admin
)

type route struct {
	method  string
	path    string
	tag     string
	summary string
	access  access
	status  string
	body    string // component schema of the request body, if any
	result  string // component schema of the success response, if any
}

var routes = []route{
	{http.MethodPost, "/api/auth/register", "auth", "Register a user", public, "201", "RegisterRequest", ""},
	{http.MethodPost, "/api/auth/login", "auth", "Log in and receive a session token", public, "200", "LoginRequest", ""},

	{http.MethodGet, "/api/games", "games", "List games, optionally filtered by ?search", flexible, "200", "", "GameList"},
	{http.MethodPost, "/api/games", "games", "Create a game", flexible, "201", "GameInput", ""},
	{http.MethodGet, "/api/games/{id}", "games", "Get a game", flexible, "200", "", "Game"},
	{http.MethodPut, "/api/games/{id}", "games", "Replace a game", flexible, "200", "GameInput", ""},
	{http.MethodDelete, "/api/games/{id}", "games", "Delete a game", flexible, "200", "", ""},

	{http.MethodGet, "/api/user/dashboard", "user", "Caller dashboard", session, "200", "", ""},
	{http.MethodGet, "/api/user/usage", "user", "Usage chart and recent requests, filtered by ?date and ?status", session, "200", "", ""},
	{http.MethodGet, "/api/user/logs", "user", "Paged request log, ?page and ?limit", session, "200", "", ""},
	{http.MethodGet, "/api/user/explore", "user", "Games that expose an API", session, "200", "", ""},
	{http.MethodGet, "/api/user/api-keys", "api-keys", "List the caller's API keys", session, "200", "", ""},
	{http.MethodPost, "/api/user/api-keys/generate", "api-keys", "Generate an API key; the raw key is shown once", session, "201", "", ""},
	{http.MethodPatch, "/api/user/api-keys/{id}", "api-keys", "Enable or disable an API key", session, "200", "KeyStatusRequest", ""},
	{http.MethodDelete, "/api/user/api-keys/{id}", "api-keys", "Revoke an API key", session, "200", "", ""},
	{http.MethodPut, "/api/user/api-keys/{id}/revoke", "api-keys", "Revoke an API key", session, "200", "", ""},
	{http.MethodDelete, "/api/user/api-keys/{id}/revoke", "api-keys", "Revoke an API key", session, "200", "", ""},
	{http.MethodPost, "/api/user/api-keys/{id}/regenerate", "api-keys", "Replace an API key's secret", session, "200", "", ""},

	{http.MethodGet, "/api/usage/summary", "usage", "Totals, success rate and quota", session, "200", "", ""},
	{http.MethodGet, "/api/usage/daily", "usage", "Most recent days", session, "200", "", ""},
	{http.MethodGet, "/api/usage/trend", "usage", "Daily request counts", session, "200", "", ""},
	{http.MethodGet, "/api/usage/history", "usage", "Daily counts over a trailing ?days window", session, "200", "", ""},

	{http.MethodGet, "/api/admin/dashboard", "admin", "Platform totals and charts", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/users", "admin", "List users", admin, "200", "", ""},
	{http.MethodPatch, "/api/admin/users/{id}/status", "admin", "Suspend or reactivate a user", admin, "200", "UserStatusRequest", ""},
	{http.MethodPut, "/api/admin/users/{id}", "admin", "Update a user's email, role and status", admin, "200", "UserUpdateRequest", ""},
	{http.MethodPut, "/api/admin/users/{id}/quota", "admin", "Set a user's monthly limit", admin, "200", "QuotaRequest", ""},
	{http.MethodGet, "/api/admin/games", "admin", "List all games", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/api-keys", "admin", "List all API keys", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/logs", "admin", "Most recent requests", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/logs/stats", "admin", "Request log counters", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/monitoring/stats", "admin", "Throughput, latency and rates", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/monitoring/distribution", "admin", "Status code distribution", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/monitoring/top-endpoints", "admin", "Busiest endpoints over 24 hours", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/monitoring/volume", "admin", "Hourly request volume", admin, "200", "", ""},
	{http.MethodGet, "/api/admin/monitoring/response-time", "admin", "Hourly average latency", admin, "200", "", ""},

	{http.MethodGet, "/health", "system", "Database and cache health", public, "200", "", ""},
}

// Generate builds the document for the gateway served at baseURL.
func Generate(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "GameVault API",
			Description: "Game catalog API with API-key and session authentication, usage metering and monthly quotas.",
			Version:     "1.0.0",
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = schemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"apiKey": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{Type: "apiKey", In: "header", Name: "X-API-Key"},
		},
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		},
	}
	doc.Components = &components

	doc.Paths = openapi3.NewPaths()
	for _, rt := range routes {
		item := doc.Paths.Value(rt.path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(rt.path, item)
		}
		item.SetOperation(rt.method, operation(rt))
	}
	return doc
}

func operation(rt route) *openapi3.Operation {
	op := &openapi3.Operation{
		Tags:        []string{rt.tag},
		Summary:     rt.summary,
		OperationID: operationID(rt),
		Responses:   newResponses(rt),
	}

	switch rt.access {
	case public:
		op.Security = &openapi3.SecurityRequirements{}
	case session, admin:
		op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
	case flexible:
		op.Security = &openapi3.SecurityRequirements{{"apiKey": {}}, {"bearerAuth": {}}}
	}

	if strings.Contains(rt.path, "{id}") {
		op.Parameters = openapi3.Parameters{{
			Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewUUIDSchema()),
		}}
	}
	if rt.body != "" {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/"+rt.body, nil)),
		}
	}
	return op
}

func operationID(rt route) string {
	p := strings.NewReplacer("/api/", "", "/", "_", "{", "", "}", "", "-", "_").Replace(rt.path)
	return strings.ToLower(rt.method) + "_" + strings.Trim(p, "_")
}

func newResponses(rt route) *openapi3.Responses {
	responses := openapi3.NewResponses()

	var success *openapi3.SchemaRef
	if rt.result != "" {
		success = openapi3.NewSchemaRef("#/components/schemas/"+rt.result, nil)
	} else {
		success = openapi3.NewObjectSchema().NewRef()
	}
	desc := http.StatusText(statusCode(rt.status))
	responses.Set(rt.status, &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &desc, Content: openapi3.NewContentWithJSONSchemaRef(success)},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	codes := []string{"400", "500"}
	switch rt.access {
	case session:
		codes = append(codes, "401")
	case flexible:
		codes = append(codes, "401", "403", "429")
	case admin:
		codes = append(codes, "401", "403")
	}
	if strings.Contains(rt.path, "{id}") {
		codes = append(codes, "404")
	}
	for _, code := range codes {
		d := http.StatusText(statusCode(code))
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{Description: &d, Content: openapi3.NewContentWithJSONSchemaRef(errorRef)},
		})
	}
	return responses
}

func statusCode(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func schemas() openapi3.Schemas {
	str := openapi3.NewStringSchema
	obj := func(props map[string]*openapi3.Schema, required ...string) *openapi3.SchemaRef {
		s := openapi3.NewObjectSchema()
		for name, p := range props {
			s.WithProperty(name, p)
		}
		s.Required = required
		return s.NewRef()
	}

	game := obj(map[string]*openapi3.Schema{
		"id":           openapi3.NewUUIDSchema(),
		"title":        str(),
		"genre":        str(),
		"platform":     str(),
		"rating":       openapi3.NewFloat64Schema(),
		"icon":         str(),
		"description":  str(),
		"apiAvailable": openapi3.NewBoolSchema(),
		"apiEndpoint":  str(),
	})

	return openapi3.Schemas{
		"ErrorResponse": obj(map[string]*openapi3.Schema{
			"error": openapi3.NewObjectSchema().
				WithProperty("code", str()).
				WithProperty("message", str()),
		}),
		"RegisterRequest": obj(map[string]*openapi3.Schema{
			"name": str(), "email": str().WithFormat("email"), "password": str(),
		}, "name", "email", "password"),
		"LoginRequest": obj(map[string]*openapi3.Schema{
			"email": str().WithFormat("email"), "password": str(),
		}, "email", "password"),
		"Game": game,
		"GameList": &openapi3.SchemaRef{Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef("#/components/schemas/Game", nil),
		}},
		"GameInput": obj(map[string]*openapi3.Schema{
			"title":        str(),
			"genre":        str(),
			"platform":     str(),
			"rating":       openapi3.NewFloat64Schema(),
			"api_endpoint": str(),
			"status":       str().WithEnum("available", "unavailable"),
		}, "title", "genre", "platform"),
		"KeyStatusRequest": obj(map[string]*openapi3.Schema{
			"status": str().WithEnum("active", "disabled"),
		}, "status"),
		"UserStatusRequest": obj(map[string]*openapi3.Schema{
			"status": str().WithEnum("active", "suspended"),
		}, "status"),
		"UserUpdateRequest": obj(map[string]*openapi3.Schema{
			"email":  str().WithFormat("email"),
			"role":   str().WithEnum("user", "admin"),
			"status": str().WithEnum("active", "suspended"),
		}, "email", "role", "status"),
		"QuotaRequest": obj(map[string]*openapi3.Schema{
			"monthly_limit": openapi3.NewInt64Schema().WithMin(0),
		}, "monthly_limit"),
	}
}
