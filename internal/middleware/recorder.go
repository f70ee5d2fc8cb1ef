package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gamevault/api-gateway/internal/services"
)

// Recorder is the single point where metered requests are accounted for.
type Recorder interface {
	Record(ctx context.Context, o services.Outcome)
}

// Record wraps the metered surface. It must run outside panic recovery so
// that recovered 500s are recorded too.
func Record(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			state := &requestState{}
			ctx := context.WithValue(r.Context(), stateKey, state)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			rec.Record(ctx, services.Outcome{
				Principal: state.principal,
				Attempt:   state.attempt,
				Endpoint:  r.URL.Path,
				Method:    r.Method,
				Status:    status,
				Latency:   time.Since(start),
				Reserved:  state.reserved,
			})
		})
	}
}
