package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsplit/internal/amqp"
	"tripsplit/internal/cache"
	"tripsplit/internal/core"
	"tripsplit/internal/log"
	"tripsplit/internal/settle"
	"tripsplit/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) PublishTripChanged(_ context.Context, tripID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, reason)
	return p.err
}

func (p *recordingPublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// countingStore counts ListExpenses calls to observe cache hits.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	lists int
}

func (c *countingStore) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	c.mu.Lock()
	c.lists++
	c.mu.Unlock()
	return c.Store.ListExpenses(ctx, tripID)
}

// pausingStore holds the first ListExpenses result after reading it until
// release is closed, so a write can land between load and cache.
type pausingStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error) {
	expenses, err := p.Store.ListExpenses(ctx, tripID)
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return expenses, err
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: &bytes.Buffer{}})
}

func newTestService(t *testing.T) (*TripService, *countingStore, *recordingPublisher) {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	pub := &recordingPublisher{}
	svc := NewTripService(store, Options{
		Publisher:  pub,
		Cache:      cache.NewLRUCache[Summary](16, time.Minute),
		Calculator: settle.DefaultCalculator,
		Logger:     quietLogger(),
	})
	return svc, store, pub
}

func TestTripService_CreateTripNormalises(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	trip, err := svc.CreateTrip(ctx, "  Split 2025 ", "usd", []string{" Ana ", "Marko  Polo"})
	require.NoError(t, err)
	assert.Equal(t, "Split 2025", trip.Name)
	assert.Equal(t, "USD", trip.Currency)
	assert.Equal(t, []string{"Ana", "Marko Polo"}, trip.Members)
	assert.Equal(t, []string{amqp.ReasonTripCreated}, pub.reasons())

	_, err = svc.CreateTrip(ctx, "x", "XYZ", nil)
	assert.ErrorIs(t, err, core.ErrUnknownCurrency)
	_, err = svc.CreateTrip(ctx, "  ", "", nil)
	assert.ErrorIs(t, err, core.ErrEmptyTripName)
	_, err = svc.CreateTrip(ctx, "dup", "", []string{"Ana", " Ana"})
	assert.ErrorIs(t, err, core.ErrMemberExists)
}

func TestTripService_SummaryMatchesCalculator(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	trip, err := svc.CreateTrip(ctx, "Split", "", []string{"A", "B", "C"})
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, trip.ID, "A", core.Money{Cents: 9000}, "Apartment")
	require.NoError(t, err)
	_, err = svc.AddExpense(ctx, trip.ID, "B", core.Money{Cents: 3000}, "")
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 12000}, sum.Total)
	assert.Equal(t, core.Money{Cents: 4000}, sum.Share)
	assert.Equal(t, "EUR", sum.Currency.Code)
	assert.Equal(t, []string{"C owes A €40.00", "B owes A €10.00"}, sum.Sentences)
	assert.Len(t, sum.Expenses, 2)
}

func TestTripService_SummaryCacheInvalidation(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	trip, _ := svc.CreateTrip(ctx, "Split", "", []string{"A", "B"})
	_, err := svc.AddExpense(ctx, trip.ID, "A", core.Money{Cents: 1000}, "")
	require.NoError(t, err)

	first, err := svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	_, err = svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists, "second summary should come from cache")

	_, err = svc.AddExpense(ctx, trip.ID, "B", core.Money{Cents: 3000}, "")
	require.NoError(t, err)
	second, err := svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists)
	assert.NotEqual(t, first.Total, second.Total)
	assert.Equal(t, []settle.Settlement{{From: "A", To: "B", Amount: core.Money{Cents: 1000}}}, second.Settlements)
}

func TestTripService_SummaryDoesNotCacheAcrossConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	seed := memory.New()
	plain := NewTripService(seed, Options{Calculator: settle.DefaultCalculator, Logger: quietLogger()})
	trip, err := plain.CreateTrip(ctx, "Split", "", []string{"Ana", "Marko"})
	require.NoError(t, err)
	_, err = plain.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 10_00}, "")
	require.NoError(t, err)

	store := &pausingStore{Store: seed, entered: make(chan struct{}), release: make(chan struct{})}
	svc := NewTripService(store, Options{
		Cache:      cache.NewLRUCache[Summary](16, time.Hour),
		Calculator: settle.DefaultCalculator,
		Logger:     quietLogger(),
	})

	stale := make(chan Summary, 1)
	go func() {
		sum, err := svc.Summary(ctx, trip.ID)
		assert.NoError(t, err)
		stale <- sum
	}()

	<-store.entered
	_, err = svc.AddExpense(ctx, trip.ID, "Marko", core.Money{Cents: 30_00}, "")
	require.NoError(t, err)
	close(store.release)
	assert.Equal(t, core.Money{Cents: 10_00}, (<-stale).Total)

	sum, err := svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 40_00}, sum.Total)
	assert.Equal(t, []string{"Ana owes Marko €10.00"}, sum.Sentences)
}

func TestTripService_FreshSummarySkipsCache(t *testing.T) {
	ctx := context.Background()
	shared := memory.New()
	writer := NewTripService(shared, Options{Calculator: settle.DefaultCalculator, Logger: quietLogger()})
	reader := NewTripService(shared, Options{
		Cache:      cache.NewLRUCache[Summary](16, time.Hour),
		Calculator: settle.DefaultCalculator,
		Logger:     quietLogger(),
	})

	trip, _ := writer.CreateTrip(ctx, "Split", "", []string{"Ana", "Marko"})
	_, err := reader.Summary(ctx, trip.ID)
	require.NoError(t, err)
	_, err = writer.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 10_00}, "")
	require.NoError(t, err)

	cached, _ := reader.Summary(ctx, trip.ID)
	assert.Zero(t, cached.Total.Cents, "another service's write cannot invalidate this cache")

	fresh, err := reader.FreshSummary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money{Cents: 10_00}, fresh.Total)
}

func TestTripService_AddExpenseValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	trip, _ := svc.CreateTrip(ctx, "Split", "", []string{"Ana"})

	tests := []struct {
		name   string
		payer  string
		amount int64
		want   error
	}{
		{"empty payer", " ", 100, core.ErrEmptyPayer},
		{"zero amount", "Ana", 0, core.ErrInvalidAmount},
		{"not a member", "Ghost", 100, core.ErrPayerNotMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddExpense(ctx, trip.ID, tt.payer, core.Money{Cents: tt.amount}, "")
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, core.IsValidation(err))
		})
	}

	_, err := svc.AddExpense(ctx, "missing", "Ana", core.Money{Cents: 100}, "")
	assert.ErrorIs(t, err, core.ErrTripNotFound)
}

func TestTripService_RemovedMemberExpensesAreIgnored(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	trip, _ := svc.CreateTrip(ctx, "Split", "", []string{"Ana", "Marko", "Luka"})
	_, _ = svc.AddExpense(ctx, trip.ID, "Luka", core.Money{Cents: 5000}, "")
	_, _ = svc.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 2000}, "")

	require.NoError(t, svc.RemoveMember(ctx, trip.ID, "Luka"))
	sum, err := svc.Summary(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Luka"}, sum.Ignored)
	assert.Equal(t, core.Money{Cents: 2000}, sum.Total)
	assert.Equal(t, []string{"Marko owes Ana €10.00"}, sum.Sentences)
}

func TestTripService_ClearAll(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()
	trip, _ := svc.CreateTrip(ctx, "Split", "GBP", []string{"Ana", "Marko"})
	_, _ = svc.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 100}, "")

	require.NoError(t, svc.ClearAll(ctx, trip.ID))

	members, _ := svc.ListMembers(ctx, trip.ID)
	assert.Empty(t, members)
	expenses, _ := svc.ListExpenses(ctx, trip.ID)
	assert.Empty(t, expenses)
	got, _ := svc.GetTrip(ctx, trip.ID)
	assert.Equal(t, "GBP", got.Currency)
	assert.Equal(t, amqp.ReasonDataCleared, pub.reasons()[len(pub.reasons())-1])

	assert.ErrorIs(t, svc.ClearAll(ctx, "missing"), core.ErrTripNotFound)
}

func TestTripService_PublishFailureDoesNotFailWrite(t *testing.T) {
	store := memory.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewTripService(store, Options{Publisher: pub, Logger: quietLogger()})

	trip, err := svc.CreateTrip(context.Background(), "Split", "", []string{"Ana"})
	require.NoError(t, err)
	_, err = svc.AddMember(context.Background(), trip.ID, "Marko")
	require.NoError(t, err)
	assert.Len(t, pub.reasons(), 2)
}

func TestTripService_MembersAndCurrency(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	trip, _ := svc.CreateTrip(ctx, "Split", "", nil)

	name, err := svc.AddMember(ctx, trip.ID, "  Ana   Maria ")
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", name)

	_, err = svc.AddMember(ctx, trip.ID, "Ana Maria")
	assert.ErrorIs(t, err, core.ErrMemberExists)
	_, err = svc.AddMember(ctx, trip.ID, "")
	assert.ErrorIs(t, err, core.ErrEmptyMember)
	assert.ErrorIs(t, svc.RemoveMember(ctx, trip.ID, "Nobody"), core.ErrMemberNotFound)

	c, err := svc.UpdateCurrency(ctx, trip.ID, "jpy")
	require.NoError(t, err)
	assert.Equal(t, "¥", c.Symbol)
	_, err = svc.UpdateCurrency(ctx, trip.ID, "ABC")
	assert.ErrorIs(t, err, core.ErrUnknownCurrency)
	_, err = svc.UpdateCurrency(ctx, "missing", "EUR")
	assert.ErrorIs(t, err, core.ErrTripNotFound)
}

func TestTripService_DeleteExpenseAndTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	trip, _ := svc.CreateTrip(ctx, "Split", "", []string{"Ana"})
	e, err := svc.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 100}, "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteExpense(ctx, trip.ID, e.ID))
	assert.ErrorIs(t, svc.DeleteExpense(ctx, trip.ID, e.ID), core.ErrExpenseNotFound)

	_, _ = svc.AddExpense(ctx, trip.ID, "Ana", core.Money{Cents: 100}, "")
	n, err := svc.ClearExpenses(ctx, trip.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, svc.DeleteTrip(ctx, trip.ID))
	_, err = svc.Summary(ctx, trip.ID)
	assert.ErrorIs(t, err, core.ErrTripNotFound)
}

func TestTripService_Close(t *testing.T) {
	svc := NewTripService(memory.New(), Options{Logger: quietLogger()})
	assert.NoError(t, svc.Close())
	assert.NoError(t, svc.Ping(context.Background()))
}
