package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gamevault/api-gateway/internal/httpx"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsHandler serves health and prometheus metrics.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
	db       Pinger
	cache    Pinger
}

// NewMetricsHandler creates a metrics handler. cache may be nil when the
// response cache is disabled.
func NewMetricsHandler(gatherer prometheus.Gatherer, db Pinger, cache Pinger) *MetricsHandler {
	return &MetricsHandler{
		gatherer: gatherer,
		db:       db,
		cache:    cache,
	}
}

// Metrics exposes the registry in the prometheus text format.
func (h *MetricsHandler) Metrics() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck checks the health of the system and its dependencies
func (h *MetricsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	check := func(name string, p Pinger) {
		if err := p.Ping(ctx); err != nil {
			health.Services[name] = "unhealthy: " + err.Error()
			health.Status = "degraded"
			slog.WarnContext(ctx, "health check failed", "service", name, "error", err)
			return
		}
		health.Services[name] = "healthy"
	}

	check("database", h.db)
	if h.cache != nil {
		check("redis", h.cache)
	} else {
		health.Services["redis"] = "disabled"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	httpx.JSON(w, statusCode, health)
}

// Root answers the unversioned liveness probe.
func Root(w http.ResponseWriter, r *http.Request) {
	httpx.Message(w, http.StatusOK, "API running")
}
