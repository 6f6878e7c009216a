package queryengine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"
)

// Engine wraps the single embedded DuckDB connection and the process-wide
// mutex that serializes every call into it (§5). There is exactly one Engine
// per process; it carries no package-level state of its own.
type Engine struct {
	db  *sql.DB
	cfg DuckDBConfig
	mu  sync.Mutex
}

// NewEngine opens the embedded DuckDB connection per cfg and loads the
// configured/standard extensions. Extension load failures are logged and
// otherwise tolerated, matching the teacher's best-effort bootstrap.
func NewEngine(cfg DuckDBConfig) (*Engine, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("duckdb disabled in config")
	}

	dsn := cfg.DBPath
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	db.SetMaxOpenConns(1)
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	for _, ext := range cfg.Extensions {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s;", ext)); err != nil {
			zap.S().Warnw("duckdb: install extension failed", "extension", ext, "err", err)
			continue
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD %s;", ext)); err != nil {
			zap.S().Warnw("duckdb: load extension failed", "extension", ext, "err", err)
		}
	}

	if cfg.EnableS3 {
		loadExtension(ctx, db, "httpfs")
		for pragma, value := range map[string]string{
			"s3_access_key": cfg.S3AccessKey,
			"s3_secret_key": cfg.S3SecretKey,
			"s3_region":     cfg.S3Region,
			"s3_endpoint":   cfg.S3Endpoint,
		} {
			if value == "" {
				continue
			}
			if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s='%s';", pragma, value)); err != nil {
				zap.S().Warnw("duckdb: set pragma failed", "pragma", pragma, "err", err)
			}
		}
	}

	if cfg.EnableParquet {
		loadExtension(ctx, db, "parquet")
	}
	loadExtension(ctx, db, "sqlite_scanner")

	return &Engine{db: db, cfg: cfg}, nil
}

func loadExtension(ctx context.Context, db *sql.DB, name string) {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("INSTALL %s;", name)); err != nil {
		zap.S().Warnw("duckdb: install extension failed", "extension", name, "err", err)
		return
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("LOAD %s;", name)); err != nil {
		zap.S().Warnw("duckdb: load extension failed", "extension", name, "err", err)
	}
}

// Close closes the underlying connection.
func (e *Engine) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// HealthCheck validates the connection is alive.
func (e *Engine) HealthCheck(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := e.db.QueryRowContext(ctx, "SELECT 1;")
	var v int
	if err := row.Scan(&v); err != nil {
		return NewInternalError("duckdb health query failed", err)
	}
	if v != 1 {
		return NewInternalError(fmt.Sprintf("unexpected duckdb health result: %d", v), nil)
	}
	return nil
}

// Exec runs a non-query statement under the engine lock.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.ExecContext(ctx, query, args...)
}

// Rows is a materialized result set: column names plus row values, freed
// from the lock's scope before the caller does any further work.
type Rows struct {
	Columns []string
	Values  [][]any
}

// Query runs a query under the engine lock and fully materializes the
// result before releasing it, so the lock is never held across client I/O.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queryLocked(ctx, query, args...)
}

func (e *Engine) queryLocked(ctx context.Context, query string, args ...any) (*Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Rows{Columns: cols}
	for rows.Next() {
		scanDest := make([]any, len(cols))
		scanPtrs := make([]any, len(cols))
		for i := range scanDest {
			scanPtrs[i] = &scanDest[i]
		}
		if err := rows.Scan(scanPtrs...); err != nil {
			return nil, err
		}
		result.Values = append(result.Values, scanDest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// QueryRowScalar runs a single-row, single-column query under the engine
// lock and returns its value.
func (e *Engine) QueryRowScalar(ctx context.Context, query string, args ...any) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var v any
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// RunQuery executes arbitrary user SQL against one dataset by binding a
// temporary view named "data" to the target table for the duration of the
// call (§5): the view is created, the query executed, and the view dropped,
// all while the engine lock is held, so no concurrent caller can ever
// observe "data" bound to a different table.
func (e *Engine) RunQuery(ctx context.Context, tableName, sql string) (*Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf("CREATE OR REPLACE TEMP VIEW data AS SELECT * FROM %s", Quote(tableName))); err != nil {
		return nil, NewInternalError("failed to bind query view", err)
	}
	defer func() {
		if _, err := e.db.ExecContext(ctx, "DROP VIEW IF EXISTS data"); err != nil {
			zap.S().Warnw("duckdb: failed to drop temp view", "err", err)
		}
	}()

	return e.queryLocked(ctx, sql)
}
