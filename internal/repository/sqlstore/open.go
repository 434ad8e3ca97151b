package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Open connects to the database behind dsn and returns a Store plus the raw
// handle, which migrations need. The Store owns the handle.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, *sql.DB, error) {
	switch dialect {
	case Postgres:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		db := stdlib.OpenDBFromPool(pool)
		s := New(db, Postgres)
		s.closers = append(s.closers, func() error { pool.Close(); return nil }, db.Close)
		return s, db, nil
	case SQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		// A single connection keeps ":memory:" databases coherent and serialises writers.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys=ON;`); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("configure sqlite: %w", err)
		}
		s := New(db, SQLite)
		s.closers = append(s.closers, db.Close)
		return s, db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
}
