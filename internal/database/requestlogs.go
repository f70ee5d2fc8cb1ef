package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// ---------------------------------------------------------------------------
// Request log
// ---------------------------------------------------------------------------

// LogRequest appends one entry to the request log. Entries are never updated.
func (db *DB) LogRequest(ctx context.Context, entry *models.RequestLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO request_logs (id, user_id, api_key_id, endpoint, method, status_code, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.UserID, entry.APIKeyID, entry.Endpoint, entry.Method,
		entry.StatusCode, entry.ResponseTimeMs, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("couldn't log request: %w", err)
	}
	return nil
}

const logColumns = `id, user_id, api_key_id, endpoint, method, status_code, response_time_ms, created_at`

// ListUserLogs pages through a user's log, newest first.
func (db *DB) ListUserLogs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.RequestLog, error) {
	logs := []models.RequestLog{}
	err := db.conn.SelectContext(ctx, &logs, db.rebind(`
		SELECT `+logColumns+` FROM request_logs
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`), userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list user logs: %w", err)
	}
	return logs, nil
}

// LogQuery selects log entries for the usage view.
type LogQuery struct {
	UserID uuid.UUID
	From   time.Time // inclusive, ignored when zero
	To     time.Time // exclusive, ignored when zero
	Status int       // ignored when zero
	Limit  int
}

func (db *DB) QueryUserLogs(ctx context.Context, q LogQuery) ([]models.RequestLog, error) {
	query := `SELECT ` + logColumns + ` FROM request_logs WHERE user_id = ?`
	args := []any{q.UserID}
	if !q.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, q.To.UTC())
	}
	if q.Status != 0 {
		query += ` AND status_code = ?`
		args = append(args, q.Status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, q.Limit)

	logs := []models.RequestLog{}
	if err := db.conn.SelectContext(ctx, &logs, db.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query user logs: %w", err)
	}
	return logs, nil
}

// DistinctStatusCodes lists the status codes a user has seen, ascending.
func (db *DB) DistinctStatusCodes(ctx context.Context, userID uuid.UUID) ([]int, error) {
	codes := []int{}
	err := db.conn.SelectContext(ctx, &codes, db.rebind(`
		SELECT DISTINCT status_code FROM request_logs WHERE user_id = ? ORDER BY status_code ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("distinct status codes: %w", err)
	}
	return codes, nil
}

// LogWithEmail is a log entry joined with the caller's email, empty for
// anonymous attempts.
type LogWithEmail struct {
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
	Email          *string   `db:"email" json:"email"`
	Endpoint       string    `db:"endpoint" json:"endpoint"`
	Method         string    `db:"method" json:"method"`
	StatusCode     int       `db:"status_code" json:"status_code"`
	ResponseTimeMs int64     `db:"response_time_ms" json:"response_time_ms"`
}

// RecentLogs returns the newest entries across all users.
func (db *DB) RecentLogs(ctx context.Context, limit int) ([]LogWithEmail, error) {
	logs := []LogWithEmail{}
	err := db.conn.SelectContext(ctx, &logs, db.rebind(`
		SELECT l.created_at, u.email, l.endpoint, l.method, l.status_code, l.response_time_ms
		FROM request_logs l
		LEFT JOIN users u ON u.id = l.user_id
		ORDER BY l.created_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	return logs, nil
}
