// Package postgres implements the CounterStore on PostgreSQL through pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrSnakeDoc/visits/internal/domain"
)

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS visits (
			id             BIGSERIAL PRIMARY KEY,
			client_address TEXT        NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	insertVisitSQL = `INSERT INTO visits (client_address) VALUES ($1)`
	countVisitsSQL = `SELECT COUNT(*) FROM visits`
	listVisitsSQL  = `SELECT id, client_address, created_at FROM visits ORDER BY id DESC LIMIT $1`
)

// querier is the subset of *pgxpool.Pool the store needs.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store implements domain.CounterStore for PostgreSQL.
type Store struct {
	db querier
}

var (
	_ domain.CounterStore = (*Store)(nil)
	_ domain.VisitLister  = (*Store)(nil)
)

// NewStore wraps a pgx pool (or anything exposing the same methods).
func NewStore(db querier) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the visits table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("%w: failed to create visits table: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Insert appends one visit. The row either exists afterwards or it does not.
func (s *Store) Insert(ctx context.Context, clientAddress string) error {
	tag, err := s.db.Exec(ctx, insertVisitSQL, clientAddress)
	if err != nil {
		return fmt.Errorf("%w: failed to insert visit: %w", domain.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: insert visit affected %d rows", domain.ErrStoreUnavailable, tag.RowsAffected())
	}
	return nil
}

// Count returns the total number of visits.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, countVisitsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: failed to count visits: %w", domain.ErrStoreUnavailable, err)
	}
	return count, nil
}

// List returns the most recent visits, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Visit, error) {
	rows, err := s.db.Query(ctx, listVisitsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list visits: %w", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	visits := make([]domain.Visit, 0, limit)
	for rows.Next() {
		var v domain.Visit
		if err := rows.Scan(&v.ID, &v.ClientAddress, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan visit: %w", domain.ErrStoreUnavailable, err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to list visits: %w", domain.ErrStoreUnavailable, err)
	}
	return visits, nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}
