package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/gamevault/api-gateway/internal/logging"
	"github.com/gamevault/api-gateway/internal/server"
	"github.com/gamevault/api-gateway/internal/services"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long:  "Migrate the database, connect to redis when REDIS_URL is set, and serve until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
}

func (a *app) runServe(ctx context.Context) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	logger := logging.Install(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if cfg.GeneratedSecret {
		logger.Warn("JWT_SECRET not set; using a random secret, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database ready", "driver", db.Driver())
	if n, err := db.CountAdmins(ctx); err == nil && n == 0 {
		logger.Warn("no admin user exists; create one with 'gamevault admin create'")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("redis connected; response cache enabled")
	}

	logger.Info("starting",
		"port", cfg.Port,
		"catalog_auth", cfg.CatalogAuthMode,
	)
	srv := server.New(cfg, db, rdb, logger)
	if srv.QuotaEnforced() {
		logger.Info("monthly quotas are enforced before the handler runs")
	} else {
		logger.Info("monthly quotas are advisory")
	}
	return srv.Run(ctx)
}
