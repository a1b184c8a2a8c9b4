package ports

import (
	"context"

	"tripsplit/internal/core"
)

// Ports for outbound adapters.
type (
	// TripStore persists trips, their rosters and expenses.
	//
	// Methods that address a trip return core.ErrTripNotFound when it does
	// not exist. Member names are stored as given; callers normalise them.
	TripStore interface {
		CreateTrip(ctx context.Context, t core.Trip) (core.Trip, error)
		GetTrip(ctx context.Context, id string) (core.Trip, error)
		ListTrips(ctx context.Context) ([]core.Trip, error)
		UpdateCurrency(ctx context.Context, id, currency string) error
		DeleteTrip(ctx context.Context, id string) error

		// AddMember returns core.ErrMemberExists for a duplicate name.
		AddMember(ctx context.Context, tripID, name string) error
		// RemoveMember returns core.ErrMemberNotFound for an unknown name.
		// Expenses paid by the member are kept.
		RemoveMember(ctx context.Context, tripID, name string) error
		ListMembers(ctx context.Context, tripID string) ([]string, error)

		AddExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// ListExpenses returns the trip's expenses, newest first.
		ListExpenses(ctx context.Context, tripID string) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, tripID string, id int64) error
		// ClearExpenses removes every expense of the trip and reports how
		// many were deleted.
		ClearExpenses(ctx context.Context, tripID string) (int64, error)
	}

	// Pinger is implemented by stores that can report readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// EventPublisher announces that a trip's data changed.
	EventPublisher interface {
		PublishTripChanged(ctx context.Context, tripID, reason string) error
	}
)
