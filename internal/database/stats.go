package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Aggregates over request_logs
//
// The store returns raw counts and sums; rounding, percentages and
// zero-division guards belong to the caller. Time buckets are rendered by the
// database from UTC timestamps, cut-offs are computed by the caller.
// ---------------------------------------------------------------------------

// LogFilter narrows an aggregate. The zero value selects every entry.
type LogFilter struct {
	UserID *uuid.UUID
	Since  time.Time
}

func (f LogFilter) where() (string, []any) {
	var conds []string
	var args []any
	if f.UserID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// LogTotals are the counters every summary view is derived from.
type LogTotals struct {
	Requests     int64   `db:"requests"`
	Successes    int64   `db:"successes"`
	Redirects    int64   `db:"redirects"`
	Errors       int64   `db:"errors"`
	AvgLatencyMs float64 `db:"avg_latency"`
}

const totalsSelect = `
	SELECT COUNT(*) AS requests,
		COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END), 0) AS successes,
		COALESCE(SUM(CASE WHEN status_code BETWEEN 300 AND 399 THEN 1 ELSE 0 END), 0) AS redirects,
		COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0) AS errors,
		COALESCE(AVG(response_time_ms), 0) AS avg_latency
	FROM request_logs`

func (db *DB) LogTotals(ctx context.Context, f LogFilter) (LogTotals, error) {
	where, args := f.where()
	var t LogTotals
	if err := db.conn.GetContext(ctx, &t, db.rebind(totalsSelect+where), args...); err != nil {
		return LogTotals{}, fmt.Errorf("log totals: %w", err)
	}
	return t, nil
}

// CountLogs counts entries matching f.
func (db *DB) CountLogs(ctx context.Context, f LogFilter) (int64, error) {
	where, args := f.where()
	var n int64
	if err := db.conn.GetContext(ctx, &n, db.rebind(`SELECT COUNT(*) FROM request_logs`+where), args...); err != nil {
		return 0, fmt.Errorf("count logs: %w", err)
	}
	return n, nil
}

// Bucket is one time bucket of the request log.
type Bucket struct {
	Bucket       string  `db:"bucket"`
	Requests     int64   `db:"requests"`
	Successes    int64   `db:"successes"`
	AvgLatencyMs float64 `db:"avg_latency"`
}

// Order of bucket results.
type Order string

const (
	Ascending  Order = "ASC"
	Descending Order = "DESC"
)

// DailyBuckets groups entries matching f by UTC calendar day. A limit of zero
// returns every day.
func (db *DB) DailyBuckets(ctx context.Context, f LogFilter, order Order, limit int) ([]Bucket, error) {
	return db.buckets(ctx, db.dialect.dayBucket("created_at"), f, order, limit)
}

// HourlyBuckets groups entries matching f by UTC hour.
func (db *DB) HourlyBuckets(ctx context.Context, f LogFilter, order Order, limit int) ([]Bucket, error) {
	return db.buckets(ctx, db.dialect.hourBucket("created_at"), f, order, limit)
}

func (db *DB) buckets(ctx context.Context, expr string, f LogFilter, order Order, limit int) ([]Bucket, error) {
	if order != Descending {
		order = Ascending
	}
	where, args := f.where()
	query := fmt.Sprintf(`
		SELECT %s AS bucket,
			COUNT(*) AS requests,
			COALESCE(SUM(CASE WHEN status_code BETWEEN 200 AND 299 THEN 1 ELSE 0 END), 0) AS successes,
			COALESCE(AVG(response_time_ms), 0) AS avg_latency
		FROM request_logs%s
		GROUP BY %s
		ORDER BY bucket %s`, expr, where, expr, order)
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	out := []Bucket{}
	if err := db.conn.SelectContext(ctx, &out, db.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("bucket request logs: %w", err)
	}
	return out, nil
}

// StatusCount is the number of entries with one status code.
type StatusCount struct {
	StatusCode int   `db:"status_code"`
	Count      int64 `db:"requests"`
}

func (db *DB) StatusCounts(ctx context.Context, f LogFilter) ([]StatusCount, error) {
	where, args := f.where()
	out := []StatusCount{}
	err := db.conn.SelectContext(ctx, &out, db.rebind(`
		SELECT status_code, COUNT(*) AS requests FROM request_logs`+where+`
		GROUP BY status_code`), args...)
	if err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}
	return out, nil
}

// EndpointCount is the number of entries for one method and endpoint.
type EndpointCount struct {
	Method   string `db:"method" json:"method"`
	Endpoint string `db:"endpoint" json:"endpoint"`
	Count    int64  `db:"requests" json:"count"`
}

// TopEndpoints ranks (method, endpoint) pairs by request count.
func (db *DB) TopEndpoints(ctx context.Context, f LogFilter, limit int) ([]EndpointCount, error) {
	where, args := f.where()
	args = append(args, limit)
	out := []EndpointCount{}
	err := db.conn.SelectContext(ctx, &out, db.rebind(`
		SELECT method, endpoint, COUNT(*) AS requests FROM request_logs`+where+`
		GROUP BY method, endpoint
		ORDER BY requests DESC, method ASC, endpoint ASC
		LIMIT ?`), args...)
	if err != nil {
		return nil, fmt.Errorf("top endpoints: %w", err)
	}
	return out, nil
}

// WeeklySignups counts users created since the cut-off, grouped by week.
func (db *DB) WeeklySignups(ctx context.Context, since time.Time) ([]Bucket, error) {
	expr := db.dialect.weekBucket("created_at")
	query := fmt.Sprintf(`
		SELECT %s AS bucket, COUNT(*) AS requests
		FROM users
		WHERE created_at >= ?
		GROUP BY %s
		ORDER BY bucket ASC`, expr, expr)

	out := []Bucket{}
	if err := db.conn.SelectContext(ctx, &out, db.rebind(query), since.UTC()); err != nil {
		return nil, fmt.Errorf("weekly signups: %w", err)
	}
	return out, nil
}
