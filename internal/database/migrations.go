package database

import (
	"context"
	"fmt"
	"strings"
)

// Migrate creates the schema. Every statement is idempotent, so it is safe to
// run on each start.
func (db *DB) Migrate(ctx context.Context) error {
	ts := db.dialect.timestampType()

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'user',
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS user_quotas (
			user_id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			monthly_limit BIGINT NOT NULL DEFAULT 1000,
			current_usage BIGINT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key_hash VARCHAR(64) NOT NULL UNIQUE,
			key_prefix VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at {{ts}} NOT NULL,
			last_used {{ts}} NULL
		)`,

		`CREATE TABLE IF NOT EXISTS request_logs (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NULL REFERENCES users(id) ON DELETE SET NULL,
			api_key_id VARCHAR(36) NULL REFERENCES api_keys(id) ON DELETE SET NULL,
			endpoint VARCHAR(512) NOT NULL,
			method VARCHAR(16) NOT NULL,
			status_code INTEGER NOT NULL,
			response_time_ms BIGINT NOT NULL,
			created_at {{ts}} NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS games (
			id VARCHAR(36) PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			genre VARCHAR(100) NOT NULL,
			platform VARCHAR(255) NOT NULL,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			api_endpoint VARCHAR(512) NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'available',
			created_at {{ts}} NOT NULL
		)`,

		`CREATE INDEX idx_api_keys_user ON api_keys(user_id)`,
		`CREATE INDEX idx_request_logs_user_created ON request_logs(user_id, created_at)`,
		`CREATE INDEX idx_request_logs_created ON request_logs(created_at)`,
		`CREATE INDEX idx_request_logs_key ON request_logs(api_key_id)`,
	}

	for _, m := range migrations {
		stmt := strings.ReplaceAll(m, "{{ts}}", ts)
		if strings.HasPrefix(stmt, "CREATE INDEX") && db.dialect.kind != kindMySQL {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			if isDuplicateIndex(err) {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
