package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/repository"
)

// Dialect selects placeholder syntax and error mapping.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

const pgUniqueViolation = "23505"

// DBTX is the subset of database/sql used by the store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements repository.Store on a SQL database.
type Store struct {
	db      DBTX
	dialect Dialect
	ping    func(context.Context) error
	closers []func() error
}

var placeholder = regexp.MustCompile(`\$\d+`)

// ensure Store satisfies interfaces.
var (
	_ repository.Store = (*Store)(nil)
)

// New constructs a Store over db. Queries are written with $N placeholders and
// rebound for dialects that use '?'.
func New(db DBTX, dialect Dialect) *Store {
	s := &Store{db: db, dialect: dialect}
	if pinger, ok := db.(interface{ PingContext(context.Context) error }); ok {
		s.ping = pinger.PingContext
	}
	return s
}

func (s *Store) rebind(query string) string {
	if s.dialect == SQLite {
		return placeholder.ReplaceAllString(query, "?")
	}
	return query
}

// CreateUser inserts a user.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, string(user.Role), user.CreatedAt.UnixMilli())
	if err != nil {
		return s.mapError("insert user", err)
	}
	return nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, first_name, last_name, role, created_at FROM users WHERE email = $1`
	row := s.db.QueryRowContext(ctx, s.rebind(query), email)
	var (
		u       domain.User
		role    string
		created int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.Role = domain.Role(role)
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

// CreateItem inserts an item.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	const query = `INSERT INTO items (id, owner, title, description, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, s.rebind(query),
		item.ID, item.Owner, item.Title, item.Description, item.IsPublic, item.CreatedAt.UnixMilli())
	if err != nil {
		return s.mapError("insert item", err)
	}
	return nil
}

// GetItemByID fetches an item.
func (s *Store) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	const query = `SELECT id, owner, title, description, is_public, created_at FROM items WHERE id = $1`
	item, err := scanItem(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select item: %w", err)
	}
	return item, nil
}

// UpdateItem overwrites the mutable columns of an item.
func (s *Store) UpdateItem(ctx context.Context, item *domain.Item) error {
	const query = `UPDATE items SET title = $1, description = $2, is_public = $3 WHERE id = $4`
	res, err := s.db.ExecContext(ctx, s.rebind(query), item.Title, item.Description, item.IsPublic, item.ID)
	if err != nil {
		return s.mapError("update item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item and returns the removed row.
func (s *Store) DeleteItem(ctx context.Context, id string) (*domain.Item, error) {
	const query = `DELETE FROM items WHERE id = $1
		RETURNING id, owner, title, description, is_public, created_at`
	item, err := scanItem(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("delete item: %w", err)
	}
	return item, nil
}

// ListItemsByOwner returns the owner's items, oldest first.
func (s *Store) ListItemsByOwner(ctx context.Context, owner string) ([]domain.Item, error) {
	const query = `SELECT id, owner, title, description, is_public, created_at
		FROM items WHERE owner = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), owner)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Ping checks connectivity when the underlying handle supports it.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the database handles in reverse order of acquisition.
func (s *Store) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*domain.Item, error) {
	var (
		item    domain.Item
		created int64
	)
	if err := row.Scan(&item.ID, &item.Owner, &item.Title, &item.Description, &item.IsPublic, &created); err != nil {
		return nil, err
	}
	item.CreatedAt = time.UnixMilli(created).UTC()
	return &item, nil
}

func (s *Store) mapError(op string, err error) error {
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
