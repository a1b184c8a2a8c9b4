package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tripsplit/internal/amqp"
	"tripsplit/internal/cache"
	"tripsplit/internal/core"
	"tripsplit/internal/log"
	"tripsplit/internal/ports"
	"tripsplit/internal/settle"
)

// Summary is the settlement view of a trip.
type Summary struct {
	Trip        core.Trip
	Currency    core.Currency
	Expenses    []core.Expense
	Balances    []settle.Balance
	Settlements []settle.Settlement
	Sentences   []string
	Total       core.Money
	Share       core.Money
	Ignored     []string
	ComputedAt  time.Time
}

type Options struct {
	// Publisher is optional; without it changes are not announced.
	Publisher  ports.EventPublisher
	Cache      cache.Cache[Summary]
	Calculator settle.Calculator
	Logger     *log.Logger
}

// TripService orchestrates trip operations across storage, the summary
// cache and the change feed.
type TripService struct {
	store     ports.TripStore
	publisher ports.EventPublisher
	summaries cache.Cache[Summary]
	calc      settle.Calculator
	logger    *log.Logger
	now       func() time.Time

	// generations counts changes per trip. A summary computed before a
	// change is not cached after it.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewTripService(store ports.TripStore, opts Options) *TripService {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TripService{
		store:     store,
		publisher: opts.Publisher,
		summaries: opts.Cache,
		calc:      opts.Calculator,
		logger:    logger.WithComponent(log.ComponentTrip),
		now:       func() time.Time { return time.Now().UTC() },

		generations: map[string]uint64{},
	}
}

// CreateTrip normalises and validates the trip before storing it. An empty
// currency means EUR.
func (s *TripService) CreateTrip(ctx context.Context, name, currency string, members []string) (core.Trip, error) {
	t := core.Trip{Name: strings.TrimSpace(name)}
	if currency != "" {
		c, ok := core.LookupCurrency(currency)
		if !ok {
			return core.Trip{}, core.ErrUnknownCurrency
		}
		t.Currency = c.Code
	}
	for _, m := range members {
		t.Members = append(t.Members, core.NormalizeName(m))
	}
	if err := t.Validate(); err != nil {
		return core.Trip{}, err
	}

	created, err := s.store.CreateTrip(ctx, t)
	if err != nil {
		return core.Trip{}, fmt.Errorf("create trip: %w", err)
	}
	s.logger.InfoContext(ctx, "Trip created", log.FieldTripID, created.ID, "members", len(created.Members))
	s.changed(ctx, created.ID, amqp.ReasonTripCreated)
	return created, nil
}

func (s *TripService) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	t, err := s.store.GetTrip(ctx, id)
	if err != nil {
		return core.Trip{}, fmt.Errorf("get trip: %w", err)
	}
	return t, nil
}

func (s *TripService) ListTrips(ctx context.Context) ([]core.Trip, error) {
	trips, err := s.store.ListTrips(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	return trips, nil
}

// UpdateCurrency switches the display currency. Amounts are not converted.
func (s *TripService) UpdateCurrency(ctx context.Context, id, code string) (core.Currency, error) {
	c, ok := core.LookupCurrency(code)
	if !ok {
		return core.Currency{}, core.ErrUnknownCurrency
	}
	if err := s.store.UpdateCurrency(ctx, id, c.Code); err != nil {
		return core.Currency{}, fmt.Errorf("update currency: %w", err)
	}
	s.changed(ctx, id, amqp.ReasonCurrencyChanged)
	return c, nil
}

func (s *TripService) DeleteTrip(ctx context.Context, id string) error {
	if err := s.store.DeleteTrip(ctx, id); err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	s.changed(ctx, id, amqp.ReasonTripDeleted)
	return nil
}

// AddMember returns the stored (normalised) name.
func (s *TripService) AddMember(ctx context.Context, tripID, name string) (string, error) {
	name = core.NormalizeName(name)
	if err := core.ValidateMemberName(name); err != nil {
		return "", err
	}
	if err := s.store.AddMember(ctx, tripID, name); err != nil {
		return "", fmt.Errorf("add member: %w", err)
	}
	s.changed(ctx, tripID, amqp.ReasonMemberAdded)
	return name, nil
}

// RemoveMember drops name from the roster. Expenses they paid stay on the
// trip and are reported as ignored by Summary.
func (s *TripService) RemoveMember(ctx context.Context, tripID, name string) error {
	if err := s.store.RemoveMember(ctx, tripID, core.NormalizeName(name)); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.changed(ctx, tripID, amqp.ReasonMemberRemoved)
	return nil
}

func (s *TripService) ListMembers(ctx context.Context, tripID string) ([]string, error) {
	members, err := s.store.ListMembers(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// AddExpense records a payment by a current member of the trip.
func (s *TripService) AddExpense(ctx context.Context, tripID, payer string, amount core.Money, note string) (core.Expense, error) {
	e := core.Expense{
		TripID:    tripID,
		PayerName: core.NormalizeName(payer),
		Amount:    amount,
		Note:      strings.TrimSpace(note),
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	members, err := s.store.ListMembers(ctx, tripID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	if !(core.Trip{Members: members}).HasMember(e.PayerName) {
		return core.Expense{}, core.ErrPayerNotMember
	}

	saved, err := s.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	log.NewStructuredLogger(s.logger).LogExpenseAdded(ctx, tripID, saved.ID, saved.PayerName, saved.Amount.Cents)
	s.changed(ctx, tripID, amqp.ReasonExpenseAdded)
	return saved, nil
}

func (s *TripService) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *TripService) DeleteExpense(ctx context.Context, tripID string, id int64) error {
	if err := s.store.DeleteExpense(ctx, tripID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.changed(ctx, tripID, amqp.ReasonExpenseDeleted)
	return nil
}

// ClearExpenses deletes every expense of the trip and returns how many.
func (s *TripService) ClearExpenses(ctx context.Context, tripID string) (int64, error) {
	n, err := s.store.ClearExpenses(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("clear expenses: %w", err)
	}
	s.changed(ctx, tripID, amqp.ReasonExpensesCleared)
	return n, nil
}

// ClearAll empties the trip: every expense and every member goes. The
// trip itself and its currency are kept.
func (s *TripService) ClearAll(ctx context.Context, tripID string) error {
	members, err := s.store.ListMembers(ctx, tripID)
	if err != nil {
		return fmt.Errorf("clear trip: %w", err)
	}
	if _, err := s.store.ClearExpenses(ctx, tripID); err != nil {
		return fmt.Errorf("clear trip expenses: %w", err)
	}
	for _, m := range members {
		if err := s.store.RemoveMember(ctx, tripID, m); err != nil && !errors.Is(err, core.ErrMemberNotFound) {
			return fmt.Errorf("clear trip member %q: %w", m, err)
		}
	}
	s.logger.InfoContext(ctx, "Trip data cleared", log.FieldTripID, tripID, "members", len(members))
	s.changed(ctx, tripID, amqp.ReasonDataCleared)
	return nil
}

// Summary returns balances and settlements for the trip, from cache when
// nothing changed since the last computation.
func (s *TripService) Summary(ctx context.Context, tripID string) (Summary, error) {
	if s.summaries != nil {
		if sum, ok := s.summaries.Get(tripID); ok {
			return sum, nil
		}
	}
	return s.load(ctx, tripID)
}

// FreshSummary recomputes the summary from storage, skipping the cache.
// Consumers reacting to changes made by another process use it, since
// only this process's writes invalidate the cache.
func (s *TripService) FreshSummary(ctx context.Context, tripID string) (Summary, error) {
	return s.load(ctx, tripID)
}

func (s *TripService) load(ctx context.Context, tripID string) (Summary, error) {
	gen := s.generation(tripID)

	var (
		trip     core.Trip
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trip, err = s.store.GetTrip(gctx, tripID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListExpenses(gctx, tripID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("load trip: %w", err)
	}

	sum := s.compute(trip, expenses)
	if len(sum.Ignored) > 0 {
		s.logger.WarnContext(ctx, "Expenses by non-members ignored",
			log.FieldTripID, tripID, "payers", sum.Ignored)
	}
	s.cacheSummary(tripID, gen, sum)
	return sum, nil
}

func (s *TripService) generation(tripID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[tripID]
}

// cacheSummary stores sum unless the trip changed after gen was read.
func (s *TripService) cacheSummary(tripID string, gen uint64, sum Summary) {
	if s.summaries == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[tripID] == gen {
		s.summaries.Set(tripID, sum)
	}
}

func (s *TripService) compute(trip core.Trip, expenses []core.Expense) Summary {
	currency, _ := core.LookupCurrency(trip.Currency)
	r := s.calc.Compute(settle.FromCore(expenses), trip.Members)
	return Summary{
		Trip:        trip,
		Currency:    currency,
		Expenses:    expenses,
		Balances:    r.Balances,
		Settlements: r.Settlements,
		Sentences:   settle.FormatAll(r.Settlements, currency),
		Total:       r.Total,
		Share:       r.Share,
		Ignored:     r.Ignored,
		ComputedAt:  s.now(),
	}
}

// Calculate runs the calculator on ad-hoc input without touching storage.
func (s *TripService) Calculate(expenses []settle.Expense, members []string) settle.Result {
	return s.calc.Compute(expenses, members)
}

// changed drops the cached summary and announces the change. Publishing
// failures are logged only; the write already succeeded.
func (s *TripService) changed(ctx context.Context, tripID, reason string) {
	s.genMu.Lock()
	s.generations[tripID]++
	s.genMu.Unlock()
	if s.summaries != nil {
		s.summaries.Delete(tripID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTripChanged(ctx, tripID, reason); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish trip change",
			log.FieldTripID, tripID, log.FieldReason, reason, log.FieldError, err)
	}
}

// Ping reports storage readiness when the store supports it.
func (s *TripService) Ping(ctx context.Context) error {
	if p, ok := s.store.(ports.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the store and publisher when they hold connections.
func (s *TripService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
