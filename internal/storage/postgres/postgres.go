// Package postgres implements ports.TripStore on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripsplit/internal/core"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations creates the schema when missing.
func (s *Store) RunMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trips (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			currency   TEXT NOT NULL DEFAULT 'EUR',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS trip_members (
			id      BIGSERIAL PRIMARY KEY,
			trip_id UUID NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			name    TEXT NOT NULL,
			UNIQUE (trip_id, name)
		);
		CREATE TABLE IF NOT EXISTS expenses (
			id           BIGSERIAL PRIMARY KEY,
			trip_id      UUID NOT NULL REFERENCES trips(id) ON DELETE CASCADE,
			payer_name   TEXT NOT NULL,
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			note         TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_expenses_trip_created ON expenses(trip_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}
	return nil
}

func (s *Store) CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error) {
	if err := t.Validate(); err != nil {
		return core.Trip{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency.Code
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`INSERT INTO trips (id, name, currency) VALUES ($1, $2, $3) RETURNING created_at`,
			t.ID, t.Name, t.Currency,
		).Scan(&t.CreatedAt); err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
		for _, m := range t.Members {
			if _, err := tx.Exec(ctx,
				`INSERT INTO trip_members (trip_id, name) VALUES ($1, $2)`, t.ID, m); err != nil {
				return fmt.Errorf("insert member %q: %w", m, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Trip{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func (s *Store) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Trip{}, core.ErrTripNotFound
	}
	var t core.Trip
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, name, currency, created_at FROM trips WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Currency, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Trip{}, core.ErrTripNotFound
	}
	if err != nil {
		return core.Trip{}, fmt.Errorf("get trip: %w", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.Members, err = s.members(ctx, id)
	if err != nil {
		return core.Trip{}, err
	}
	return t, nil
}

func (s *Store) ListTrips(ctx context.Context) ([]core.Trip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, currency, created_at FROM trips ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	trips, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Trip, error) {
		var t core.Trip
		err := row.Scan(&t.ID, &t.Name, &t.Currency, &t.CreatedAt)
		t.CreatedAt = t.CreatedAt.UTC()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan trips: %w", err)
	}
	for i := range trips {
		if trips[i].Members, err = s.members(ctx, trips[i].ID); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func (s *Store) UpdateCurrency(ctx context.Context, id, currency string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrTripNotFound
	}
	ct, err := s.pool.Exec(ctx, `UPDATE trips SET currency = $2 WHERE id = $1`, id, currency)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrTripNotFound
	}
	return nil
}

func (s *Store) DeleteTrip(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrTripNotFound
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrTripNotFound
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, tripID, name string) error {
	if err := s.tripExists(ctx, tripID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO trip_members (trip_id, name) VALUES ($1, $2)`, tripID, name)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrMemberExists
	}
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, tripID, name string) error {
	if err := s.tripExists(ctx, tripID); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM trip_members WHERE trip_id = $1 AND name = $2`, tripID, name)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrMemberNotFound
	}
	return nil
}

func (s *Store) ListMembers(ctx context.Context, tripID string) ([]string, error) {
	if err := s.tripExists(ctx, tripID); err != nil {
		return nil, err
	}
	return s.members(ctx, tripID)
}

func (s *Store) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.tripExists(ctx, e.TripID); err != nil {
		return core.Expense{}, err
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO expenses (trip_id, payer_name, amount_cents, note)
         VALUES ($1, $2, $3, $4)
         RETURNING id, created_at`,
		e.TripID, e.PayerName, e.Amount.Cents, e.Note,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	if err := s.tripExists(ctx, tripID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, trip_id::text, payer_name, amount_cents, note, created_at
           FROM expenses WHERE trip_id = $1 ORDER BY created_at DESC, id DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Expense, error) {
		var (
			e       core.Expense
			created time.Time
		)
		err := row.Scan(&e.ID, &e.TripID, &e.PayerName, &e.Amount.Cents, &e.Note, &created)
		e.CreatedAt = created.UTC()
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expenses: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteExpense(ctx context.Context, tripID string, id int64) error {
	if err := s.tripExists(ctx, tripID); err != nil {
		return err
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE trip_id = $1 AND id = $2`, tripID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func (s *Store) ClearExpenses(ctx context.Context, tripID string) (int64, error) {
	if err := s.tripExists(ctx, tripID); err != nil {
		return 0, err
	}
	ct, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE trip_id = $1`, tripID)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (s *Store) members(ctx context.Context, tripID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM trip_members WHERE trip_id = $1 ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	return names, nil
}

// tripExists maps malformed ids to ErrTripNotFound so they never reach the
// uuid column as a cast error.
func (s *Store) tripExists(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrTripNotFound
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check trip: %w", err)
	}
	if !exists {
		return core.ErrTripNotFound
	}
	return nil
}
