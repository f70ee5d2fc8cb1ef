package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Catalog authentication modes.
const (
	CatalogAuthFlexible = "flexible"
	CatalogAuthAPIKey   = "api_key"
)

// Config holds all configuration for the application
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DBDriver          string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisURL string
	CacheTTL time.Duration

	JWTSecret string
	TokenTTL  time.Duration
	// GeneratedSecret is set when no JWT secret was configured and a random
	// one was created for this process.
	GeneratedSecret bool

	DefaultMonthlyLimit int64
	QuotaEnforce        bool
	CatalogAuthMode     string

	AuthRateLimit int
	CORSOrigins   []string
}

// SetDefaults registers every key with its default so that AutomaticEnv can
// resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open_conns", 25)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis_url", "")
	v.SetDefault("cache_ttl", 30*time.Second)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", 24*time.Hour)
	v.SetDefault("default_monthly_limit", 1000)
	v.SetDefault("quota_enforce", false)
	v.SetDefault("catalog_auth_mode", CatalogAuthFlexible)
	v.SetDefault("auth_rate_limit", 10)
	v.SetDefault("cors_origins", "*")
}

// Load reads configuration from a .env file (if present), the environment
// and an optional config file already registered on v.
func Load(v *viper.Viper) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:                v.GetString("port"),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
		DBDriver:            strings.ToLower(v.GetString("db_driver")),
		DatabaseURL:         v.GetString("database_url"),
		DBMaxOpenConns:      v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:      v.GetInt("db_max_idle_conns"),
		DBConnMaxLifetime:   v.GetDuration("db_conn_max_lifetime"),
		RedisURL:            v.GetString("redis_url"),
		CacheTTL:            v.GetDuration("cache_ttl"),
		JWTSecret:           v.GetString("jwt_secret"),
		TokenTTL:            v.GetDuration("token_ttl"),
		DefaultMonthlyLimit: v.GetInt64("default_monthly_limit"),
		QuotaEnforce:        v.GetBool("quota_enforce"),
		CatalogAuthMode:     strings.ToLower(v.GetString("catalog_auth_mode")),
		AuthRateLimit:       v.GetInt("auth_rate_limit"),
		CORSOrigins:         splitList(v.GetString("cors_origins")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CatalogAuthMode {
	case CatalogAuthFlexible, CatalogAuthAPIKey:
	default:
		return fmt.Errorf("invalid CATALOG_AUTH_MODE %q (want %s or %s)", c.CatalogAuthMode, CatalogAuthFlexible, CatalogAuthAPIKey)
	}
	if c.DBDriver != "sqlite" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for driver %q", c.DBDriver)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.DefaultMonthlyLimit < 0 {
		return fmt.Errorf("DEFAULT_MONTHLY_LIMIT must not be negative")
	}

	if c.JWTSecret == "" {
		if c.DBDriver != "sqlite" {
			return fmt.Errorf("JWT_SECRET is required")
		}
		secret, err := randomSecret()
		if err != nil {
			return err
		}
		c.JWTSecret = secret
		c.GeneratedSecret = true
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
