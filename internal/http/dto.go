package http

import (
	"time"

	"tripsplit/internal/core"
	"tripsplit/internal/services"
	"tripsplit/internal/settle"
)

type currencyDTO struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type tripDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type expenseDTO struct {
	ID          int64     `json:"id"`
	TripID      string    `json:"trip_id"`
	PayerName   string    `json:"payer_name"`
	Amount      float64   `json:"amount"`
	AmountCents int64     `json:"amount_cents"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// resultDTO is the settlement view shared by the stateless calculator and
// the per-trip endpoint.
type resultDTO struct {
	Total       float64             `json:"total"`
	Share       float64             `json:"share"`
	Balances    []settle.Balance    `json:"balances"`
	Settlements []settle.Settlement `json:"settlements"`
	Sentences   []string            `json:"sentences"`
	Ignored     []string            `json:"ignored,omitempty"`
}

type summaryDTO struct {
	Trip       tripDTO      `json:"trip"`
	Currency   currencyDTO  `json:"currency"`
	Expenses   []expenseDTO `json:"expenses"`
	ComputedAt time.Time    `json:"computed_at"`
	resultDTO
}

func toCurrencyDTO(c core.Currency) currencyDTO {
	return currencyDTO{Code: c.Code, Symbol: c.Symbol, Name: c.Name}
}

func toTripDTO(t core.Trip) tripDTO {
	members := t.Members
	if members == nil {
		members = []string{}
	}
	return tripDTO{ID: t.ID, Name: t.Name, Currency: t.Currency, Members: members, CreatedAt: t.CreatedAt}
}

func toExpenseDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		ID:          e.ID,
		TripID:      e.TripID,
		PayerName:   e.PayerName,
		Amount:      e.Amount.Float(),
		AmountCents: e.Amount.Cents,
		Note:        e.Note,
		CreatedAt:   e.CreatedAt,
	}
}

func toExpenseDTOs(in []core.Expense) []expenseDTO {
	out := make([]expenseDTO, len(in))
	for i, e := range in {
		out[i] = toExpenseDTO(e)
	}
	return out
}

func toResultDTO(r settle.Result, c core.Currency) resultDTO {
	return resultDTO{
		Total:       r.Total.Float(),
		Share:       r.Share.Float(),
		Balances:    nonNil(r.Balances),
		Settlements: nonNil(r.Settlements),
		Sentences:   nonNil(settle.FormatAll(r.Settlements, c)),
		Ignored:     r.Ignored,
	}
}

func toSummaryDTO(s services.Summary) summaryDTO {
	return summaryDTO{
		Trip:       toTripDTO(s.Trip),
		Currency:   toCurrencyDTO(s.Currency),
		Expenses:   toExpenseDTOs(s.Expenses),
		ComputedAt: s.ComputedAt,
		resultDTO: resultDTO{
			Total:       s.Total.Float(),
			Share:       s.Share.Float(),
			Balances:    nonNil(s.Balances),
			Settlements: nonNil(s.Settlements),
			Sentences:   nonNil(s.Sentences),
			Ignored:     s.Ignored,
		},
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
