package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gamevault/api-gateway/internal/services"
)

// ResponseCache stores whole GET responses.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*services.CachedResponse, error)
	Set(ctx context.Context, key string, response *services.CachedResponse, ttl time.Duration) error
	GenerateCacheKey(method, path, query string) string
}

// CacheMiddleware caches successful GET responses. Cache failures never
// fail the request.
type CacheMiddleware struct {
	cache   ResponseCache
	ttl     time.Duration
	metrics *services.MetricsCollector
}

func NewCacheMiddleware(cache ResponseCache, ttl time.Duration, metrics *services.MetricsCollector) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, ttl: ttl, metrics: metrics}
}

func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := m.cache.GenerateCacheKey(r.Method, r.URL.Path, r.URL.RawQuery)
		cached, err := m.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "cache get failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if cached != nil {
			if m.metrics != nil {
				m.metrics.RecordCacheHit()
			}
			w.Header().Set("X-Cache", "HIT")
			if cached.ContentType != "" {
				w.Header().Set("Content-Type", cached.ContentType)
			}
			w.WriteHeader(cached.StatusCode)
			w.Write(cached.Body)
			return
		}

		if m.metrics != nil {
			m.metrics.RecordCacheMiss()
		}
		w.Header().Set("X-Cache", "MISS")

		var body bytes.Buffer
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&body)
		next.ServeHTTP(ww, r)

		if ww.Status() != http.StatusOK || body.Len() == 0 {
			return
		}
		resp := &services.CachedResponse{
			StatusCode:  http.StatusOK,
			ContentType: ww.Header().Get("Content-Type"),
			Body:        body.Bytes(),
		}
		if err := m.cache.Set(context.WithoutCancel(ctx), key, resp, m.ttl); err != nil {
			slog.WarnContext(ctx, "cache set failed", "error", err)
		}
	})
}
