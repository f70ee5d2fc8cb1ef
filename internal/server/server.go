// Package server assembles the HTTP router and owns the listener lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/gamevault/api-gateway/internal/config"
	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/handlers"
	"github.com/gamevault/api-gateway/internal/middleware"
	"github.com/gamevault/api-gateway/internal/openapi"
	"github.com/gamevault/api-gateway/internal/services"
)

const shutdownTimeout = 15 * time.Second

// Server is the assembled gateway.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	handler http.Handler
	quota   *services.QuotaEnforcer
}

// New wires every service, middleware and handler. rdb may be nil, which
// disables the response cache.
func New(cfg *config.Config, db *database.DB, rdb *redis.Client, logger *slog.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.Pool(), db.Driver()),
	)
	metrics := services.NewMetricsCollector(registry)

	var (
		invalidator services.CacheInvalidator
		cachePinger handlers.Pinger
		cacheMW     func(http.Handler) http.Handler
	)
	if rdb != nil {
		cache := services.NewCacheService(rdb, cfg.CacheTTL)
		invalidator = cache
		cachePinger = cache
		cacheMW = middleware.NewCacheMiddleware(cache, cfg.CacheTTL, metrics).Middleware
	}

	auth := services.NewAuthService(db, cfg.JWTSecret, cfg.TokenTTL, cfg.DefaultMonthlyLimit)
	keys := services.NewKeyService(db)
	usage := services.NewAggregator(db)
	games := services.NewGameService(db, invalidator)
	admin := services.NewAdminService(db)
	quota := services.NewQuotaEnforcer(db, cfg.QuotaEnforce, metrics)
	recorder := services.NewRecorder(db, metrics, logger)

	authH := handlers.NewAuthHandler(auth)
	userH := handlers.NewUserHandler(keys, usage)
	usageH := handlers.NewUsageHandler(usage)
	gameH := handlers.NewGameHandler(games)
	adminH := handlers.NewAdminHandler(admin, usage, games)
	metricsH := handlers.NewMetricsHandler(registry, db, cachePinger)

	catalogMode := services.ModeFlexible
	if cfg.CatalogAuthMode == config.CatalogAuthAPIKey {
		catalogMode = services.ModeAPIKey
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "X-Cache"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Catalog requests are metered: Record sits outside Recoverer so that a
	// panic is still logged as a 500.
	r.Route("/api/games", func(r chi.Router) {
		r.Use(middleware.Record(recorder))
		r.Use(chimw.Recoverer)
		r.Use(middleware.Authenticate(auth, catalogMode))
		r.Use(middleware.Quota(quota))
		if cacheMW != nil {
			r.Use(cacheMW)
		}

		r.Get("/", gameH.List)
		r.Post("/", gameH.Create)
		r.Get("/{id}", gameH.Get)
		r.Put("/{id}", gameH.Update)
		r.Delete("/{id}", gameH.Delete)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Recoverer)

		r.Get("/", handlers.Root)
		r.Get("/health", metricsH.HealthCheck)
		r.Method(http.MethodGet, "/metrics", metricsH.Metrics())
		r.Get("/openapi.json", openapi.Handler(""))

		r.Route("/api/auth", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.AuthRateLimit, metrics))
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
		})

		r.Route("/api/user", func(r chi.Router) {
			r.Use(middleware.Authenticate(auth, services.ModeSession))
			r.Get("/dashboard", userH.Dashboard)
			r.Get("/usage", userH.Usage)
			r.Get("/logs", userH.Logs)
			r.Get("/explore", userH.Explore)

			r.Get("/api-keys", userH.ListKeys)
			r.Post("/api-keys/generate", userH.GenerateKey)
			r.Patch("/api-keys/{id}", userH.UpdateKeyStatus)
			r.Delete("/api-keys/{id}", userH.RevokeKey)
			r.Put("/api-keys/{id}/revoke", userH.RevokeKey)
			r.Delete("/api-keys/{id}/revoke", userH.RevokeKey)
			r.Post("/api-keys/{id}/regenerate", userH.RegenerateKey)
		})

		r.Route("/api/usage", func(r chi.Router) {
			r.Use(middleware.Authenticate(auth, services.ModeSession))
			r.Get("/summary", usageH.Summary)
			r.Get("/daily", usageH.Daily)
			r.Get("/trend", usageH.Trend)
			r.Get("/history", usageH.History)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.Authenticate(auth, services.ModeSession))
			r.Use(middleware.RequireAdmin)
			r.Get("/dashboard", adminH.Dashboard)
			r.Get("/users", adminH.ListUsers)
			r.Patch("/users/{id}/status", adminH.UpdateUserStatus)
			r.Put("/users/{id}", adminH.UpdateUser)
			r.Put("/users/{id}/quota", adminH.SetQuota)
			r.Get("/games", adminH.ListGames)
			r.Get("/api-keys", adminH.ListAPIKeys)
			r.Get("/logs", adminH.Logs)
			r.Get("/logs/stats", adminH.LogStats)
			r.Get("/monitoring/stats", adminH.MonitoringStats)
			r.Get("/monitoring/distribution", adminH.StatusDistribution)
			r.Get("/monitoring/top-endpoints", adminH.TopEndpoints)
			r.Get("/monitoring/volume", adminH.Volume)
			r.Get("/monitoring/response-time", adminH.ResponseTime)
		})
	})

	return &Server{cfg: cfg, logger: logger, handler: r, quota: quota}
}

// QuotaEnforced reports whether metered requests are refused up front once
// the monthly limit is spent.
func (s *Server) QuotaEnforced() bool { return s.quota.Enabled() }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
