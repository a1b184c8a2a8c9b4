package sheets

import (
	"context"
	"time"

	"tripsplit/internal/core"
	"tripsplit/internal/settle"
)

// TripReport is the exported view of one trip.
type TripReport struct {
	TripID      string
	Name        string
	Currency    core.Currency
	Total       core.Money
	Share       core.Money
	Balances    []settle.Balance
	Settlements []settle.Settlement
	Expenses    []core.Expense
	Ignored     []string
	GeneratedAt time.Time
}

// Ports for outbound adapters.
type (
	// ReportWriter replaces the tab for r.TripID with a fresh rendering.
	ReportWriter interface {
		WriteReport(ctx context.Context, r TripReport) error
	}
)
