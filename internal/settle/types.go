package settle

import (
	"encoding/json"
	"fmt"

	"tripsplit/internal/core"
)

// Expense is one payment as seen by the calculator: who paid and how much.
type Expense struct {
	PayerName string
	Amount    core.Money
}

// Settlement is one directed payment instruction.
type Settlement struct {
	From   string
	To     string
	Amount core.Money
}

// Balance is a member's net position: positive is owed, negative owes.
type Balance struct {
	Member string
	Amount core.Money
}

type expenseJSON struct {
	PayerName string   `json:"payer_name"`
	Amount    *float64 `json:"amount"`
	AmountEUR *float64 `json:"amount_eur"`
}

// UnmarshalJSON accepts {"payer_name", "amount"} as well as rows that carry
// the older "amount_eur" column. A non-zero "amount" wins; a missing amount
// decodes as zero.
func (e *Expense) UnmarshalJSON(data []byte) error {
	var raw expenseJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode expense: %w", err)
	}
	cents, err := pickAmount(raw.Amount, raw.AmountEUR)
	if err != nil {
		return fmt.Errorf("decode expense: %w", err)
	}
	e.PayerName = raw.PayerName
	e.Amount = core.Money{Cents: cents}
	return nil
}

// MarshalJSON writes the current field names only.
func (e Expense) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PayerName string  `json:"payer_name"`
		Amount    float64 `json:"amount"`
	}{e.PayerName, e.Amount.Float()})
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML input files.
func (e *Expense) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		PayerName string   `yaml:"payer_name"`
		Amount    *float64 `yaml:"amount"`
		AmountEUR *float64 `yaml:"amount_eur"`
	}
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("decode expense: %w", err)
	}
	cents, err := pickAmount(raw.Amount, raw.AmountEUR)
	if err != nil {
		return fmt.Errorf("decode expense: %w", err)
	}
	e.PayerName = raw.PayerName
	e.Amount = core.Money{Cents: cents}
	return nil
}

func pickAmount(amount, legacy *float64) (int64, error) {
	if amount != nil && *amount != 0 {
		return core.AmountFromFloat(*amount)
	}
	if legacy != nil {
		return core.AmountFromFloat(*legacy)
	}
	return 0, nil
}

// MaxTotalCents bounds the sum of a calculator run.
const MaxTotalCents int64 = 1_000 * core.MaxAmountCents

// CheckExpenses rejects input the calculator cannot settle exactly:
// negative amounts, amounts above core.MaxAmountCents, or a sum above
// MaxTotalCents. Stored expenses always pass; ad-hoc input should be
// checked before Compute.
func CheckExpenses(expenses []Expense) error {
	var total int64
	for i, e := range expenses {
		switch {
		case e.Amount.Cents < 0:
			return fmt.Errorf("expense %d: %w", i+1, core.ErrInvalidAmount)
		case e.Amount.Cents > core.MaxAmountCents:
			return fmt.Errorf("expense %d: %w", i+1, core.ErrAmountTooLarge)
		}
		total += e.Amount.Cents
		if total > MaxTotalCents {
			return fmt.Errorf("expenses total: %w", core.ErrAmountTooLarge)
		}
	}
	return nil
}

func (s Settlement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		From   string  `json:"from"`
		To     string  `json:"to"`
		Amount float64 `json:"amount"`
	}{s.From, s.To, s.Amount.Float()})
}

func (s *Settlement) UnmarshalJSON(data []byte) error {
	var raw struct {
		From   string  `json:"from"`
		To     string  `json:"to"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode settlement: %w", err)
	}
	*s = Settlement{From: raw.From, To: raw.To, Amount: core.Money{Cents: core.CentsFromFloat(raw.Amount)}}
	return nil
}

func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Member string  `json:"member"`
		Amount float64 `json:"amount"`
	}{b.Member, b.Amount.Float()})
}

func (b *Balance) UnmarshalJSON(data []byte) error {
	var raw struct {
		Member string  `json:"member"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode balance: %w", err)
	}
	*b = Balance{Member: raw.Member, Amount: core.Money{Cents: core.CentsFromFloat(raw.Amount)}}
	return nil
}

// FromCore converts stored expenses to calculator input.
func FromCore(in []core.Expense) []Expense {
	out := make([]Expense, len(in))
	for i, e := range in {
		out[i] = Expense{PayerName: e.PayerName, Amount: e.Amount}
	}
	return out
}
