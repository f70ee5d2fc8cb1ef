package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/services"
)

// RateLimit limits requests per client IP within a one minute window. The
// counters live in this process only.
func RateLimit(perMinute int, metrics *services.MetricsCollector) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if metrics != nil {
				metrics.RecordRateLimitHit()
			}
			httpx.JSON(w, http.StatusTooManyRequests, httpx.ErrorBody{Error: httpx.ErrorDetail{
				Code:    "rate_limited",
				Message: "Too many requests. Try again later.",
			}})
		}),
	)
}
