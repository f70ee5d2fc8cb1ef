package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/middleware"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
	"github.com/gamevault/api-gateway/internal/testutil"
)

func asUser(r *http.Request, id uuid.UUID) *http.Request {
	p := services.SessionPrincipal{ID: id, UserRole: models.RoleUser}
	return r.WithContext(middleware.WithPrincipal(r.Context(), p))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorDetail {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func gameRouter(store *testutil.MockStore) http.Handler {
	h := NewGameHandler(services.NewGameService(store, nil))
	r := chi.NewRouter()
	r.Get("/api/games", h.List)
	r.Post("/api/games", h.Create)
	r.Get("/api/games/{id}", h.Get)
	r.Put("/api/games/{id}", h.Update)
	r.Delete("/api/games/{id}", h.Delete)
	return r
}

func TestGameGetNotFound(t *testing.T) {
	store := new(testutil.MockStore)
	id := uuid.New()
	store.On("GetGame", id).Return(nil, database.ErrNotFound)

	rec := httptest.NewRecorder()
	gameRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games/"+id.String(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Game not found", errorBody(t, rec).Message)
}

func TestGameMalformedIDIsNotFound(t *testing.T) {
	store := new(testutil.MockStore)

	rec := httptest.NewRecorder()
	gameRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/games/not-a-uuid", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	store.AssertNotCalled(t, "DeleteGame", mock.Anything)
}

func TestGameCreate(t *testing.T) {
	store := new(testutil.MockStore)
	created := uuid.New()
	store.On("CreateGame", mock.AnythingOfType("*models.Game")).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Game).ID = created
	}).Return(nil)

	body := `{"title":"Celeste","genre":"Platformer","platform":"PC","rating":4.9}`
	rec := httptest.NewRecorder()
	gameRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp createGameResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, created, resp.GameID)
	assert.Equal(t, "Game created successfully", resp.Message)
}

func TestGameCreateValidation(t *testing.T) {
	store := new(testutil.MockStore)

	rec := httptest.NewRecorder()
	gameRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(`{"title":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title, genre, and platform are required", errorBody(t, rec).Message)

	rec = httptest.NewRecorder()
	gameRouter(store).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", errorBody(t, rec).Message)
}

func TestUpdateKeyStatusMessages(t *testing.T) {
	store := new(testutil.MockStore)
	user, key := uuid.New(), uuid.New()
	store.On("SetAPIKeyStatus", key, user, models.KeyDisabled).Return(nil)
	store.On("SetAPIKeyStatus", key, user, models.KeyActive).Return(nil)

	h := NewUserHandler(services.NewKeyService(store), nil)
	r := chi.NewRouter()
	r.Patch("/api/user/api-keys/{id}", h.UpdateKeyStatus)

	for status, want := range map[string]string{
		"disabled": "API key disabled successfully",
		"active":   "API key enabled successfully",
	} {
		req := httptest.NewRequest(http.MethodPatch, "/api/user/api-keys/"+key.String(), strings.NewReader(`{"status":"`+status+`"}`))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, asUser(req, user))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"message":"`+want+`"}`, rec.Body.String())
	}
}

func TestRevokeUnknownKey(t *testing.T) {
	store := new(testutil.MockStore)
	user, key := uuid.New(), uuid.New()
	store.On("RevokeAPIKey", key, user).Return(database.ErrNotFound)

	h := NewUserHandler(services.NewKeyService(store), nil)
	r := chi.NewRouter()
	r.Delete("/api/user/api-keys/{id}", h.RevokeKey)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodDelete, "/api/user/api-keys/"+key.String(), nil), user))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsageRejectsBadDate(t *testing.T) {
	h := NewUserHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Usage(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/user/usage?date=10-03-2026", nil), uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date must be YYYY-MM-DD", errorBody(t, rec).Message)
}

func TestSetQuotaRequiresLimit(t *testing.T) {
	h := NewAdminHandler(nil, nil, nil)
	r := chi.NewRouter()
	r.Put("/api/admin/users/{id}/quota", h.SetQuota)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/quota", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "monthly_limit is required", errorBody(t, rec).Message)
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)
	assert.Equal(t, 3, queryInt(r, "page"))
	assert.Equal(t, 0, queryInt(r, "limit"))
	assert.Equal(t, 0, queryInt(r, "days"))
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	reg := prometheus.NewRegistry()

	rec := httptest.NewRecorder()
	NewMetricsHandler(reg, fakePinger{}, nil).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "disabled", health.Services["redis"])

	rec = httptest.NewRecorder()
	NewMetricsHandler(reg, fakePinger{}, fakePinger{err: assert.AnError}).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Services["redis"], "unhealthy")
}
