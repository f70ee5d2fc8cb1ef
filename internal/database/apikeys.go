package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

const apiKeyColumns = `id, user_id, key_hash, key_prefix, status, created_at, last_used`

// CreateAPIKey inserts a key record. KeyHash and KeyPrefix must be set.
func (db *DB) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	if key.Status == "" {
		key.Status = models.KeyActive
	}
	key.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Status, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert api key: %w", classify(err))
	}
	return nil
}

// GetAPIKeyByHash looks up a key by the SHA-256 hash of its raw value,
// whatever its status.
func (db *DB) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	var key models.APIKey
	err := db.conn.GetContext(ctx, &key, db.rebind(`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`), hash)
	if err != nil {
		return nil, fmt.Errorf("get api key by hash: %w", classify(err))
	}
	return &key, nil
}

// GetUserAPIKey returns a key only if it belongs to userID.
func (db *DB) GetUserAPIKey(ctx context.Context, id, userID uuid.UUID) (*models.APIKey, error) {
	var key models.APIKey
	err := db.conn.GetContext(ctx, &key, db.rebind(`
		SELECT `+apiKeyColumns+` FROM api_keys WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", classify(err))
	}
	return &key, nil
}

// KeyUsage is a key with the number of requests made with it.
type KeyUsage struct {
	models.APIKey
	RequestCount int64 `db:"request_count" json:"request_count"`
}

// ListUserAPIKeys returns the keys owned by userID, newest first.
func (db *DB) ListUserAPIKeys(ctx context.Context, userID uuid.UUID) ([]KeyUsage, error) {
	keys := []KeyUsage{}
	err := db.conn.SelectContext(ctx, &keys, db.rebind(`
		SELECT k.id, k.user_id, k.key_hash, k.key_prefix, k.status, k.created_at, k.last_used,
			(SELECT COUNT(*) FROM request_logs l WHERE l.api_key_id = k.id) AS request_count
		FROM api_keys k
		WHERE k.user_id = ?
		ORDER BY k.created_at DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// KeyOwner is a key joined with its owner's email for the admin view.
type KeyOwner struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	KeyPrefix string           `db:"key_prefix" json:"key_prefix"`
	Status    models.KeyStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	LastUsed  *time.Time       `db:"last_used" json:"last_used"`
	Email     string           `db:"email" json:"email"`
}

func (db *DB) ListAllAPIKeys(ctx context.Context) ([]KeyOwner, error) {
	keys := []KeyOwner{}
	err := db.conn.SelectContext(ctx, &keys, `
		SELECT k.id, k.key_prefix, k.status, k.created_at, k.last_used, u.email
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		ORDER BY k.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all api keys: %w", err)
	}
	return keys, nil
}

// SetAPIKeyStatus changes the status of a key owned by userID. Revoked keys
// are left untouched and reported as ErrConflict.
func (db *DB) SetAPIKeyStatus(ctx context.Context, id, userID uuid.UUID, status models.KeyStatus) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE api_keys SET status = ? WHERE id = ? AND user_id = ? AND status <> ?`),
		status, id, userID, models.KeyRevoked)
	if err != nil {
		return fmt.Errorf("set api key status: %w", err)
	}
	return db.checkKeyWrite(ctx, result, id, userID, "set api key status")
}

// RevokeAPIKey flips a key to revoked. Rows are never deleted so that usage
// history keeps its reference. Revoking twice is not an error.
func (db *DB) RevokeAPIKey(ctx context.Context, id, userID uuid.UUID) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE api_keys SET status = ? WHERE id = ? AND user_id = ?`),
		models.KeyRevoked, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return expectOne(result, "revoke api key")
}

// ReplaceAPIKeyHash swaps the key material in place, keeping id, owner,
// status and history.
func (db *DB) ReplaceAPIKeyHash(ctx context.Context, id, userID uuid.UUID, hash, prefix string) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE api_keys SET key_hash = ?, key_prefix = ? WHERE id = ? AND user_id = ? AND status <> ?`),
		hash, prefix, id, userID, models.KeyRevoked)
	if err != nil {
		return fmt.Errorf("replace api key: %w", classify(err))
	}
	return db.checkKeyWrite(ctx, result, id, userID, "replace api key")
}

// checkKeyWrite distinguishes a missing key from a revoked one after a guarded
// update matched nothing.
func (db *DB) checkKeyWrite(ctx context.Context, result sql.Result, id, userID uuid.UUID, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.GetUserAPIKey(ctx, id, userID); err != nil {
		return err
	}
	return ErrConflict
}

// TouchAPIKey records the last time a key was used.
func (db *DB) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`UPDATE api_keys SET last_used = ? WHERE id = ?`), at.UTC(), id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// CountActiveAPIKeys counts active keys, for one user or for everyone when
// userID is nil.
func (db *DB) CountActiveAPIKeys(ctx context.Context, userID *uuid.UUID) (int64, error) {
	q := `SELECT COUNT(*) FROM api_keys WHERE status = ?`
	args := []any{models.KeyActive}
	if userID != nil {
		q += ` AND user_id = ?`
		args = append(args, *userID)
	}
	var n int64
	if err := db.conn.GetContext(ctx, &n, db.rebind(q), args...); err != nil {
		return 0, fmt.Errorf("count active api keys: %w", err)
	}
	return n, nil
}
