// Package settle computes who owes whom on a shared trip.
//
// Every member's fair share is the trip total divided evenly across the
// roster, regardless of who paid. Members who spent less than their share
// are debtors, members who spent more are creditors, and a greedy pairing of
// the largest debts with the largest credits yields a short list of
// peer-to-peer payments that brings everyone back to zero.
//
// All arithmetic runs on integer cents, so balances sum to exactly zero and
// the output is identical for identical input.
package settle

import (
	"sort"

	"tripsplit/internal/core"
)

// DefaultTolerance is zero: integer cents carry no drift, so any non-zero
// balance is settled, including a single-cent remainder. A float epsilon of
// 0.01 would drop those; Calculator{Tolerance: 1} reproduces that.
const DefaultTolerance int64 = 0

// DefaultCalculator is the calculator used by CalculateDebts.
var DefaultCalculator = Calculator{Tolerance: DefaultTolerance}

// Calculator runs the settlement algorithm.
type Calculator struct {
	// Tolerance in cents. A balance whose magnitude does not exceed it is
	// neither a debt nor a credit.
	Tolerance int64
}

// Result is the full outcome of a settlement run.
type Result struct {
	Balances    []Balance
	Settlements []Settlement
	Total       core.Money
	Share       core.Money
	// Ignored lists payer names that are not on the roster; their
	// payments do not count towards the total.
	Ignored []string
}

// CalculateDebts returns the payments that equalise per-person net spend.
// It returns nil when there are no expenses or no members.
func CalculateDebts(expenses []Expense, members []string) []Settlement {
	return DefaultCalculator.Compute(expenses, members).Settlements
}

// ComputeBalances returns each member's signed balance (positive is owed
// money) in name order, plus the payers ignored for not being members.
func ComputeBalances(expenses []Expense, members []string) ([]Balance, []string) {
	r := DefaultCalculator.Compute(expenses, members)
	return r.Balances, r.Ignored
}

// Compute runs the whole pipeline: spend per member, equal share, balances
// and greedy matching. A negative Tolerance is treated as zero. Amounts are
// assumed to pass CheckExpenses.
func (c Calculator) Compute(expenses []Expense, members []string) Result {
	c.Tolerance = max(c.Tolerance, 0)
	roster := uniqueMembers(members)
	if len(expenses) == 0 || len(roster) == 0 {
		return Result{}
	}

	spent := make(map[string]int64, len(roster))
	for _, m := range roster {
		spent[m] = 0
	}
	var ignored []string
	seenIgnored := map[string]struct{}{}
	var total int64
	for _, e := range expenses {
		if _, ok := spent[e.PayerName]; !ok {
			if _, dup := seenIgnored[e.PayerName]; !dup {
				seenIgnored[e.PayerName] = struct{}{}
				ignored = append(ignored, e.PayerName)
			}
			continue
		}
		spent[e.PayerName] += e.Amount.Cents
		total += e.Amount.Cents
	}
	sort.Strings(ignored)

	shares := splitEvenly(total, roster)
	balances := make([]Balance, len(roster))
	for i, m := range roster {
		balances[i] = Balance{Member: m, Amount: core.Money{Cents: spent[m] - shares[i]}}
	}
	sort.SliceStable(balances, func(i, j int) bool { return balances[i].Member < balances[j].Member })

	return Result{
		Balances:    balances,
		Settlements: c.match(balances),
		Total:       core.Money{Cents: total},
		Share:       core.Money{Cents: floorDiv(total, int64(len(roster)))},
		Ignored:     ignored,
	}
}

// match pairs debtors with creditors greedily. Debtors are visited most
// indebted first and creditors most owed first; equal balances fall back to
// member name so pairing is reproducible.
func (c Calculator) match(balances []Balance) []Settlement {
	type entry struct {
		name string
		left int64
	}
	var debtors, creditors []entry
	for _, b := range balances {
		switch {
		case b.Amount.Cents < -c.Tolerance:
			debtors = append(debtors, entry{b.Member, b.Amount.Cents})
		case b.Amount.Cents > c.Tolerance:
			creditors = append(creditors, entry{b.Member, b.Amount.Cents})
		}
	}
	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].left != debtors[j].left {
			return debtors[i].left < debtors[j].left
		}
		return debtors[i].name < debtors[j].name
	})
	sort.SliceStable(creditors, func(i, j int) bool {
		if creditors[i].left != creditors[j].left {
			return creditors[i].left > creditors[j].left
		}
		return creditors[i].name < creditors[j].name
	})

	var out []Settlement
	di, ci := 0, 0
	for di < len(debtors) && ci < len(creditors) {
		d, cr := &debtors[di], &creditors[ci]
		amount := min(-d.left, cr.left)
		out = append(out, Settlement{From: d.name, To: cr.name, Amount: core.Money{Cents: amount}})
		d.left += amount
		cr.left -= amount
		if abs(d.left) <= c.Tolerance {
			di++
		}
		if abs(cr.left) <= c.Tolerance {
			ci++
		}
	}
	return out
}

// splitEvenly divides total across members. Leftover cents go one each to
// members in name order, so shares always sum back to total.
func splitEvenly(total int64, members []string) []int64 {
	n := int64(len(members))
	base := floorDiv(total, n)
	rem := total - base*n

	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return members[order[a]] < members[order[b]] })

	shares := make([]int64, len(members))
	for i := range shares {
		shares[i] = base
	}
	for k := int64(0); k < rem; k++ {
		shares[order[k]]++
	}
	return shares
}

// uniqueMembers drops blanks and duplicate names, keeping first-seen order.
func uniqueMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
