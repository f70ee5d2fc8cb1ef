package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Options configures the connection pool.
type Options struct {
	Driver          string // postgres, pgx, mysql or sqlite
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB is the credential and usage store. It owns the connection pool; callers
// acquire it with Connect and release it with Close.
type DB struct {
	conn    *sqlx.DB
	dialect dialect
}

// Connect opens the pool, verifies the database is reachable and applies the
// pool limits.
func Connect(ctx context.Context, opts Options) (*DB, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(d.driver, d.dsn(opts.URL))
	if err != nil {
		return nil, fmt.Errorf("couldn't open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	if d.kind == kindSQLite {
		// One connection keeps an in-memory database alive and serializes writes.
		conn.SetMaxOpenConns(1)
		conn.SetMaxIdleConns(1)
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
		conn.SetMaxIdleConns(opts.MaxIdleConns)
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return &DB{conn: conn, dialect: d}, nil
}

// New wraps an already open pool. driver selects the SQL dialect.
func New(conn *sqlx.DB, driver string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{conn: conn, dialect: d}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Pool exposes the underlying pool for instrumentation.
func (db *DB) Pool() *sql.DB {
	return db.conn.DB
}

// Driver returns the configured driver name.
func (db *DB) Driver() string {
	return db.dialect.name
}

func (db *DB) rebind(query string) string {
	return db.conn.Rebind(query)
}

// ---------------------------------------------------------------------------
// Dialects
// ---------------------------------------------------------------------------

type dialectKind int

const (
	kindPostgres dialectKind = iota
	kindMySQL
	kindSQLite
)

type dialect struct {
	name   string
	driver string
	kind   dialectKind
}

func dialectFor(name string) (dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return dialect{name: "postgres", driver: "postgres", kind: kindPostgres}, nil
	case "pgx":
		return dialect{name: "pgx", driver: "pgx", kind: kindPostgres}, nil
	case "mysql":
		return dialect{name: "mysql", driver: "mysql", kind: kindMySQL}, nil
	case "sqlite", "sqlite3", "":
		return dialect{name: "sqlite", driver: "sqlite", kind: kindSQLite}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
}

// dsn adds the connection parameters the store relies on: UTC time parsing
// for MySQL and a sortable text time format for SQLite.
func (d dialect) dsn(url string) string {
	switch d.kind {
	case kindMySQL:
		return withParams(url, "parseTime=true", "loc=UTC", "clientFoundRows=true")
	case kindSQLite:
		if url == "" {
			url = ":memory:"
		}
		return withParams(url, "_pragma=busy_timeout(5000)", "_time_format=sqlite")
	default:
		return url
	}
}

func withParams(url string, params ...string) string {
	var missing []string
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if !strings.Contains(url, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + strings.Join(missing, "&")
}

func (d dialect) timestampType() string {
	switch d.kind {
	case kindMySQL:
		return "DATETIME(3)"
	case kindSQLite:
		return "DATETIME"
	default:
		return "TIMESTAMP"
	}
}

// dayBucket formats a timestamp column as YYYY-MM-DD.
func (d dialect) dayBucket(col string) string {
	switch d.kind {
	case kindMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", col)
	case kindSQLite:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", col)
	default:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD')", col)
	}
}

// hourBucket formats a timestamp column as YYYY-MM-DD HH:00:00.
func (d dialect) hourBucket(col string) string {
	switch d.kind {
	case kindMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00')", col)
	case kindSQLite:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00:00', %s)", col)
	default:
		return fmt.Sprintf("to_char(%s, 'YYYY-MM-DD HH24:00:00')", col)
	}
}

// weekBucket formats a timestamp column as "Week NN" using ISO 8601 week
// numbers on every dialect.
func (d dialect) weekBucket(col string) string {
	switch d.kind {
	case kindMySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, 'Week %%v')", col)
	case kindSQLite:
		return fmt.Sprintf("'Week ' || strftime('%%V', %s)", col)
	default:
		return fmt.Sprintf(`to_char(%s, '"Week "IW')`, col)
	}
}
