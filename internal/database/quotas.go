package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// ---------------------------------------------------------------------------
// Quotas
// ---------------------------------------------------------------------------

func (db *DB) GetQuota(ctx context.Context, userID uuid.UUID) (*models.Quota, error) {
	var q models.Quota
	err := db.conn.GetContext(ctx, &q, db.rebind(`
		SELECT user_id, monthly_limit, current_usage FROM user_quotas WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", classify(err))
	}
	return &q, nil
}

// IncrementUsage adds one successful request to a user's counter. The
// increment happens in the database so concurrent requests never lose an
// update.
func (db *DB) IncrementUsage(ctx context.Context, userID uuid.UUID) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE user_quotas SET current_usage = current_usage + 1 WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return expectOne(result, "increment usage")
}

// ReserveUsage increments the counter only while it is below the limit and
// reports whether a unit was taken. The check and the write are one statement.
func (db *DB) ReserveUsage(ctx context.Context, userID uuid.UUID) (bool, error) {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE user_quotas SET current_usage = current_usage + 1
		WHERE user_id = ? AND current_usage < monthly_limit`), userID)
	if err != nil {
		return false, fmt.Errorf("reserve usage: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve usage rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseUsage hands back a reserved unit.
func (db *DB) ReleaseUsage(ctx context.Context, userID uuid.UUID) error {
	_, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE user_quotas SET current_usage = current_usage - 1
		WHERE user_id = ? AND current_usage > 0`), userID)
	if err != nil {
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}

// SetMonthlyLimit changes a user's allowance.
func (db *DB) SetMonthlyLimit(ctx context.Context, userID uuid.UUID, limit int64) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE user_quotas SET monthly_limit = ? WHERE user_id = ?`), limit, userID)
	if err != nil {
		return fmt.Errorf("set monthly limit: %w", err)
	}
	return expectOne(result, "set monthly limit")
}
