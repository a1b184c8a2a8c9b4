// Package memory is an in-process TripStore used for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tripsplit/internal/core"
	"tripsplit/internal/settle"
)

type trip struct {
	core.Trip
	expenses []core.Expense
}

type Store struct {
	mu     sync.Mutex
	trips  map[string]*trip
	nextID int64
	now    func() time.Time
}

func New() *Store {
	return &Store{trips: map[string]*trip{}, now: func() time.Time { return time.Now().UTC() }}
}

type seedExpense struct {
	settle.Expense
	Note string
}

func (e *seedExpense) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Expense); err != nil {
		return err
	}
	var extra struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal(data, &extra); err != nil {
		return err
	}
	e.Note = extra.Note
	return nil
}

type seedTrip struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Currency string        `json:"currency"`
	Members  []string      `json:"members"`
	Expenses []seedExpense `json:"expenses"`
}

// NewFromFiles loads seed_trips.json from base when present. A missing or
// malformed file yields an empty store.
func NewFromFiles(base string) *Store {
	s := New()
	data, err := os.ReadFile(filepath.Join(base, "seed_trips.json"))
	if err != nil {
		return s
	}
	var seeds []seedTrip
	if err := json.Unmarshal(data, &seeds); err != nil {
		return s
	}
	ctx := context.Background()
	for _, st := range seeds {
		t, err := s.CreateTrip(ctx, core.Trip{ID: st.ID, Name: st.Name, Currency: st.Currency, Members: st.Members})
		if err != nil {
			continue
		}
		for _, e := range st.Expenses {
			_, _ = s.AddExpense(ctx, core.Expense{TripID: t.ID, PayerName: e.PayerName, Amount: e.Amount, Note: e.Note})
		}
	}
	return s
}

func (s *Store) CreateTrip(_ context.Context, t core.Trip) (core.Trip, error) {
	if err := t.Validate(); err != nil {
		return core.Trip{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Currency == "" {
		t.Currency = core.DefaultCurrency.Code
	}
	t.Members = append([]string(nil), t.Members...)

	s.mu.Lock()
	defer s.mu.Unlock()
	t.CreatedAt = s.now()
	s.trips[t.ID] = &trip{Trip: t}
	return cloneTrip(t), nil
}

func (s *Store) GetTrip(_ context.Context, id string) (core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return core.Trip{}, core.ErrTripNotFound
	}
	return cloneTrip(t.Trip), nil
}

// ListTrips returns trips newest first.
func (s *Store) ListTrips(_ context.Context) ([]core.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Trip, 0, len(s.trips))
	for _, t := range s.trips {
		out = append(out, cloneTrip(t.Trip))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCurrency(_ context.Context, id, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return core.ErrTripNotFound
	}
	t.Currency = currency
	return nil
}

func (s *Store) DeleteTrip(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[id]; !ok {
		return core.ErrTripNotFound
	}
	delete(s.trips, id)
	return nil
}

func (s *Store) AddMember(_ context.Context, tripID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return core.ErrTripNotFound
	}
	if t.HasMember(name) {
		return core.ErrMemberExists
	}
	t.Members = append(t.Members, name)
	return nil
}

func (s *Store) RemoveMember(_ context.Context, tripID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return core.ErrTripNotFound
	}
	for i, m := range t.Members {
		if m == name {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			return nil
		}
	}
	return core.ErrMemberNotFound
}

func (s *Store) ListMembers(_ context.Context, tripID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return nil, core.ErrTripNotFound
	}
	return append([]string(nil), t.Members...), nil
}

func (s *Store) AddExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[e.TripID]
	if !ok {
		return core.Expense{}, core.ErrTripNotFound
	}
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = s.now()
	t.expenses = append(t.expenses, e)
	return e, nil
}

// ListExpenses returns expenses newest first; insertion order breaks ties.
func (s *Store) ListExpenses(_ context.Context, tripID string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return nil, core.ErrTripNotFound
	}
	out := make([]core.Expense, 0, len(t.expenses))
	for i := len(t.expenses) - 1; i >= 0; i-- {
		out = append(out, t.expenses[i])
	}
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, tripID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return core.ErrTripNotFound
	}
	for i, e := range t.expenses {
		if e.ID == id {
			t.expenses = append(t.expenses[:i], t.expenses[i+1:]...)
			return nil
		}
	}
	return core.ErrExpenseNotFound
}

func (s *Store) ClearExpenses(_ context.Context, tripID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return 0, core.ErrTripNotFound
	}
	n := int64(len(t.expenses))
	t.expenses = nil
	return n, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func cloneTrip(t core.Trip) core.Trip {
	t.Members = append([]string(nil), t.Members...)
	return t
}
