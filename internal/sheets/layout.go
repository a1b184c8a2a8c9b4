package sheets

import (
	"strings"
	"unicode/utf8"

	"tripsplit/internal/settle"
)

const maxTitleLen = 90

// SheetTitle names the tab for a trip: the trip name plus a short id so two
// trips with the same name never share a tab.
func SheetTitle(r TripReport) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '*', '?', '/', '\\', ':', '\'':
			return -1
		}
		return r
	}, strings.TrimSpace(r.Name))
	name = strings.Join(strings.Fields(name), " ")
	for utf8.RuneCountInString(name) > maxTitleLen {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}

	short := r.TripID
	if len(short) > 8 {
		short = short[:8]
	}
	if name == "" {
		return short
	}
	return name + " " + short
}

// Rows renders the report as sheet rows: a header block, the settlement
// sentences, the balance table and the expense log.
func Rows(r TripReport) [][]any {
	sym := r.Currency.Symbol
	rows := [][]any{
		{"Trip", r.Name},
		{"Currency", r.Currency.Code},
		{"Total", r.Total.Float()},
		{"Per person", r.Share.Float()},
		{"Updated", r.GeneratedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Settlements"},
	}
	if len(r.Settlements) == 0 {
		rows = append(rows, []any{"All settled up"})
	}
	for _, s := range r.Settlements {
		rows = append(rows, []any{settle.FormatSettlementIn(s, r.Currency), s.From, s.To, s.Amount.Float()})
	}

	rows = append(rows, []any{}, []any{"Member", "Balance (" + sym + ")"})
	for _, b := range r.Balances {
		rows = append(rows, []any{b.Member, b.Amount.Float()})
	}

	rows = append(rows, []any{}, []any{"Date", "Payer", "Amount (" + sym + ")", "Note"})
	for _, e := range r.Expenses {
		rows = append(rows, []any{e.CreatedAt.Format("2006-01-02 15:04"), e.PayerName, e.Amount.Float(), e.Note})
	}

	if len(r.Ignored) > 0 {
		rows = append(rows, []any{}, []any{"Ignored payers", strings.Join(r.Ignored, ", ")})
	}
	return rows
}
