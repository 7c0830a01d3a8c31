// Package postgres implements gradebook.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/gradebook/internal/gradebook"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

var (
	_ gradebook.Store = (*Store)(nil)
	_ gradebook.Tx    = (*Tx)(nil)
)

// Store is a gradebook.Store backed by a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Begin starts a read-committed transaction.
func (s *Store) Begin(ctx context.Context) (gradebook.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) EnsureTenant(ctx context.Context, t gradebook.Tenant) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Name)
	return mapError(err)
}

func (s *Store) GetTenant(ctx context.Context, id string) (*gradebook.Tenant, error) {
	var t gradebook.Tenant
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM tenants WHERE id = $1`, id).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

// mapError translates driver errors into gradebook sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return gradebook.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", gradebook.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", gradebook.ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}
