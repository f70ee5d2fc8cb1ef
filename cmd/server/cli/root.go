// Package cli implements the gamevault command tree.
package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gamevault/api-gateway/internal/config"
	"github.com/gamevault/api-gateway/internal/database"
)

// Execute builds the command tree and runs it.
func Execute(version, commit string) error {
	return newRootCmd(version, commit).Execute()
}

// app carries state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd(version, commit string) *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "gamevault",
		Short: "GameVault API gateway",
		Long: `GameVault serves a game catalog behind API-key and session authentication,
meters every catalog request and enforces monthly quotas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newAdminCmd(a))
	cmd.AddCommand(newKeyCmd(a))
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gamevault %s (%s, %s)\n", version, commit, runtime.Version())
		},
	})

	return cmd
}

// config reads the optional config file, then the environment.
func (a *app) config() (*config.Config, error) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", a.cfgFile, err)
		}
	}
	return config.Load(a.v)
}

// openStore connects and brings the schema up to date.
func openStore(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Connect(ctx, database.Options{
		Driver:          cfg.DBDriver,
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
