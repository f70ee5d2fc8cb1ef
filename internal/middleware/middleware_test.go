package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
)

type recordedOutcomes struct {
	mu  sync.Mutex
	all []services.Outcome
}

func (r *recordedOutcomes) Record(_ context.Context, o services.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, o)
}

type authFunc func(c services.Credentials, mode services.AuthMode) (services.Principal, error)

func (f authFunc) Authenticate(_ context.Context, c services.Credentials, mode services.AuthMode) (services.Principal, error) {
	return f(c, mode)
}

type reserveFunc func(userID uuid.UUID) (bool, error)

func (f reserveFunc) Reserve(_ context.Context, userID uuid.UUID) (bool, error) {
	return f(userID)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"ok": "yes"})
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorDetail {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("x-api-key", " gv_live_abc ")
	r.Header.Set("Authorization", "bearer tok")
	c := credentials(r)
	assert.Equal(t, "gv_live_abc", c.APIKey)
	assert.Equal(t, "tok", c.BearerToken)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic dXNlcg==")
	assert.Empty(t, credentials(r).BearerToken)
}

func TestRecordCapturesPrincipalAndStatus(t *testing.T) {
	userID := uuid.New()
	outcomes := &recordedOutcomes{}
	auth := authFunc(func(services.Credentials, services.AuthMode) (services.Principal, error) {
		return services.SessionPrincipal{ID: userID, UserRole: models.RoleUser}, nil
	})
	h := Record(outcomes)(Authenticate(auth, services.ModeFlexible)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userID, PrincipalFrom(r.Context()).UserID())
		w.WriteHeader(http.StatusCreated)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/games", nil))

	require.Len(t, outcomes.all, 1)
	o := outcomes.all[0]
	assert.Equal(t, http.StatusCreated, o.Status)
	assert.Equal(t, "POST", o.Method)
	assert.Equal(t, "/api/games", o.Endpoint)
	assert.Equal(t, userID, o.Principal.UserID())
	assert.Nil(t, o.Attempt)
}

func TestRecordCapturesRejection(t *testing.T) {
	owner := uuid.New()
	outcomes := &recordedOutcomes{}
	auth := authFunc(func(services.Credentials, services.AuthMode) (services.Principal, error) {
		return nil, &services.AuthError{
			Err:   &services.Error{Kind: services.KindForbidden, Message: "Invalid or inactive API key"},
			Owner: &owner,
		}
	})
	h := Record(outcomes)(Authenticate(auth, services.ModeFlexible)(okHandler))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid or inactive API key", decodeError(t, rec).Message)
	require.Len(t, outcomes.all, 1)
	assert.Equal(t, http.StatusForbidden, outcomes.all[0].Status)
	assert.Nil(t, outcomes.all[0].Principal)
	assert.Equal(t, owner, *outcomes.all[0].Attempt.Owner)
}

func TestRecordSeesRecoveredPanic(t *testing.T) {
	outcomes := &recordedOutcomes{}
	h := Record(outcomes)(chimw.Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/games", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, outcomes.all, 1)
	assert.Equal(t, http.StatusInternalServerError, outcomes.all[0].Status)
}

func TestRecordDefaultsToOK(t *testing.T) {
	outcomes := &recordedOutcomes{}
	h := Record(outcomes)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/games", nil))
	require.Len(t, outcomes.all, 1)
	assert.Equal(t, http.StatusOK, outcomes.all[0].Status)
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(okHandler)

	for role, want := range map[models.Role]int{models.RoleUser: http.StatusForbidden, models.RoleAdmin: http.StatusOK} {
		r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		r = r.WithContext(WithPrincipal(r.Context(), services.SessionPrincipal{ID: uuid.New(), UserRole: role}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		assert.Equal(t, want, rec.Code, role)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", decodeError(t, rec).Message)
}

func TestQuotaMarksReservation(t *testing.T) {
	userID := uuid.New()
	outcomes := &recordedOutcomes{}
	auth := authFunc(func(services.Credentials, services.AuthMode) (services.Principal, error) {
		return services.SessionPrincipal{ID: userID, UserRole: models.RoleUser}, nil
	})
	reserve := reserveFunc(func(id uuid.UUID) (bool, error) {
		assert.Equal(t, userID, id)
		return true, nil
	})
	h := Record(outcomes)(Authenticate(auth, services.ModeFlexible)(Quota(reserve)(okHandler)))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/games", nil))

	require.Len(t, outcomes.all, 1)
	assert.True(t, outcomes.all[0].Reserved)
}

func TestQuotaExceeded(t *testing.T) {
	reserve := reserveFunc(func(uuid.UUID) (bool, error) {
		return false, &services.Error{Kind: services.KindQuotaExceeded, Message: "Monthly quota exceeded"}
	})
	r := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	r = r.WithContext(WithPrincipal(r.Context(), services.SessionPrincipal{ID: uuid.New()}))
	rec := httptest.NewRecorder()
	Quota(reserve)(okHandler).ServeHTTP(rec, r)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Monthly quota exceeded", decodeError(t, rec).Message)
}

func TestCacheMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	calls := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		httpx.JSON(w, http.StatusOK, []string{"zelda"})
	})
	metrics := services.NewMetricsCollector(prometheus.NewRegistry())
	h := NewCacheMiddleware(services.NewCacheService(client, time.Minute), time.Minute, metrics).Middleware(handler)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/games?search=z", nil))
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/games?search=z", nil))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	post := httptest.NewRecorder()
	h.ServeHTTP(post, httptest.NewRequest(http.MethodPost, "/api/games?search=z", nil))
	assert.Empty(t, post.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestRateLimit(t *testing.T) {
	metrics := services.NewMetricsCollector(prometheus.NewRegistry())
	h := RateLimit(2, metrics)(okHandler)
	codes := make([]int, 0, 3)
	for range 3 {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "abc", seen)
}
