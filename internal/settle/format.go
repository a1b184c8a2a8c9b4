package settle

import "tripsplit/internal/core"

// FormatSettlement renders s as "<from> owes <to> €<amount>", e.g.
// "Ana owes Marko €12.50".
func FormatSettlement(s Settlement) string {
	return FormatSettlementIn(s, core.DefaultCurrency)
}

// FormatSettlementIn renders s using the symbol of currency c.
func FormatSettlementIn(s Settlement, c core.Currency) string {
	return s.From + " owes " + s.To + " " + c.Symbol + s.Amount.String()
}

// FormatAll renders every settlement in order.
func FormatAll(ss []Settlement, c core.Currency) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = FormatSettlementIn(s, c)
	}
	return out
}
