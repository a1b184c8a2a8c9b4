package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tripsplit/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// CreateTrip implements ports.TripStore
func (r *SQLiteRepository) CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error) {
	if err := t.Validate(); err != nil {
		return core.Trip{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency.Code
	}
	t.CreatedAt = r.now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trips (id, name, currency, created_at) VALUES (?, ?, ?, ?)`,
			t.ID, t.Name, t.Currency, t.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
		for _, m := range t.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trip_members (trip_id, name) VALUES (?, ?)`, t.ID, m); err != nil {
				return fmt.Errorf("insert member %q: %w", m, err)
			}
		}
		return nil
	})
	if err != nil {
		return core.Trip{}, err
	}

	slog.InfoContext(ctx, "Trip saved to SQLite", "trip_id", t.ID, "members", len(t.Members))
	return t, nil
}

// GetTrip implements ports.TripStore
func (r *SQLiteRepository) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	var (
		t       core.Trip
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, currency, created_at FROM trips WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Currency, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Trip{}, core.ErrTripNotFound
	}
	if err != nil {
		return core.Trip{}, fmt.Errorf("get trip: %w", err)
	}
	t.CreatedAt = time.Unix(0, created).UTC()

	members, err := r.members(ctx, r.db, id)
	if err != nil {
		return core.Trip{}, err
	}
	t.Members = members
	return t, nil
}

// ListTrips implements ports.TripStore. Trips come back newest first.
func (r *SQLiteRepository) ListTrips(ctx context.Context) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, currency, created_at FROM trips ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var trips []core.Trip
	for rows.Next() {
		var (
			t       core.Trip
			created int64
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.Currency, &created); err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		t.CreatedAt = time.Unix(0, created).UTC()
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}

	for i := range trips {
		members, err := r.members(ctx, r.db, trips[i].ID)
		if err != nil {
			return nil, err
		}
		trips[i].Members = members
	}
	return trips, nil
}

// UpdateCurrency implements ports.TripStore
func (r *SQLiteRepository) UpdateCurrency(ctx context.Context, id, currency string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE trips SET currency = ? WHERE id = ?`, currency, id)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	return requireAffected(res, core.ErrTripNotFound)
}

// DeleteTrip implements ports.TripStore. Members and expenses go with it.
func (r *SQLiteRepository) DeleteTrip(ctx context.Context, id string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE trip_id = ?`, id); err != nil {
			return fmt.Errorf("delete trip expenses: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM trip_members WHERE trip_id = ?`, id); err != nil {
			return fmt.Errorf("delete trip members: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete trip: %w", err)
		}
		return requireAffected(res, core.ErrTripNotFound)
	})
}

// AddMember implements ports.TripStore
func (r *SQLiteRepository) AddMember(ctx context.Context, tripID, name string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := tripExists(ctx, tx, tripID); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM trip_members WHERE trip_id = ? AND name = ?`, tripID, name).Scan(&n); err != nil {
			return fmt.Errorf("check member: %w", err)
		}
		if n > 0 {
			return core.ErrMemberExists
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trip_members (trip_id, name) VALUES (?, ?)`, tripID, name); err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
		return nil
	})
}

// RemoveMember implements ports.TripStore
func (r *SQLiteRepository) RemoveMember(ctx context.Context, tripID, name string) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := tripExists(ctx, tx, tripID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM trip_members WHERE trip_id = ? AND name = ?`, tripID, name)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		return requireAffected(res, core.ErrMemberNotFound)
	})
}

// ListMembers implements ports.TripStore. Members keep the order they joined.
func (r *SQLiteRepository) ListMembers(ctx context.Context, tripID string) ([]string, error) {
	if err := tripExists(ctx, r.db, tripID); err != nil {
		return nil, err
	}
	return r.members(ctx, r.db, tripID)
}

// AddExpense implements ports.TripStore
func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.CreatedAt = r.now()

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := tripExists(ctx, tx, e.TripID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (trip_id, payer_name, amount_cents, note, created_at) VALUES (?, ?, ?, ?, ?)`,
			e.TripID, e.PayerName, e.Amount.Cents, e.Note, e.CreatedAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		e.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"trip_id", e.TripID,
		"payer", e.PayerName,
		"amount_cents", e.Amount.Cents)
	return e, nil
}

// ListExpenses implements ports.TripStore
func (r *SQLiteRepository) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	if err := tripExists(ctx, r.db, tripID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, trip_id, payer_name, amount_cents, note, created_at
		   FROM expenses WHERE trip_id = ? ORDER BY created_at DESC, id DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			created int64
		)
		if err := rows.Scan(&e.ID, &e.TripID, &e.PayerName, &e.Amount.Cents, &e.Note, &created); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// DeleteExpense implements ports.TripStore
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, tripID string, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE trip_id = ? AND id = ?`, tripID, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if err := requireAffected(res, core.ErrExpenseNotFound); err != nil {
		if terr := tripExists(ctx, r.db, tripID); terr != nil {
			return terr
		}
		return err
	}
	return nil
}

// ClearExpenses implements ports.TripStore
func (r *SQLiteRepository) ClearExpenses(ctx context.Context, tripID string) (int64, error) {
	if err := tripExists(ctx, r.db, tripID); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE trip_id = ?`, tripID)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	slog.InfoContext(ctx, "Expenses cleared", "trip_id", tripID, "count", n)
	return n, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) members(ctx context.Context, q querier, tripID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM trip_members WHERE trip_id = ? ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

func tripExists(ctx context.Context, q querier, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("check trip: %w", err)
	}
	if n == 0 {
		return core.ErrTripNotFound
	}
	return nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
