package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// CreateUser inserts a user together with its quota row in one transaction.
// ID and CreatedAt are populated when unset.
func (db *DB) CreateUser(ctx context.Context, user *models.User, monthlyLimit int64) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO users (id, name, email, password_hash, role, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Status, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", classify(err))
	}

	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO user_quotas (user_id, monthly_limit, current_usage) VALUES (?, ?, 0)`),
		user.ID, monthlyLimit)
	if err != nil {
		return fmt.Errorf("insert quota: %w", classify(err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

const userColumns = `id, name, email, password_hash, role, status, created_at`

func (db *DB) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := db.conn.GetContext(ctx, &u, db.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", classify(err))
	}
	return &u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.conn.GetContext(ctx, &u, db.rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", classify(err))
	}
	return &u, nil
}

// UserOverview is a user row with its key and request counts, used by the
// admin user list.
type UserOverview struct {
	ID            uuid.UUID         `db:"id" json:"user_id"`
	Name          string            `db:"name" json:"name"`
	Email         string            `db:"email" json:"email"`
	Role          models.Role       `db:"role" json:"role"`
	Status        models.UserStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	ActiveKeys    int64             `db:"api_keys" json:"api_keys"`
	TotalRequests int64             `db:"total_requests" json:"total_requests"`
}

// ListUsers returns every user, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]UserOverview, error) {
	users := []UserOverview{}
	err := db.conn.SelectContext(ctx, &users, `
		SELECT u.id, u.name, u.email, u.role, u.status, u.created_at,
			(SELECT COUNT(*) FROM api_keys k WHERE k.user_id = u.id AND k.status = 'active') AS api_keys,
			(SELECT COUNT(*) FROM request_logs l WHERE l.user_id = u.id) AS total_requests
		FROM users u
		ORDER BY u.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (db *DB) UpdateUserStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`UPDATE users SET status = ? WHERE id = ?`), status, id)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return expectOne(result, "update user status")
}

// UpdateUser replaces the admin-mutable fields of a user.
func (db *DB) UpdateUser(ctx context.Context, id uuid.UUID, email string, role models.Role, status models.UserStatus) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE users SET email = ?, role = ?, status = ? WHERE id = ?`),
		email, role, status, id)
	if err != nil {
		return fmt.Errorf("update user: %w", classify(err))
	}
	return expectOne(result, "update user")
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// CountAdmins lets serve warn about a fresh install with no admin.
func (db *DB) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.GetContext(ctx, &n, db.rebind(`SELECT COUNT(*) FROM users WHERE role = ?`), models.RoleAdmin); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}
