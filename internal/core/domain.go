package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxTripNameLen   = 100
	MaxMemberNameLen = 50
	MaxNoteLen       = 200
)

type (
	Money struct {
		Cents int64
	}

	// Trip groups the members who split costs and the currency used to
	// display amounts.
	Trip struct {
		ID        string
		Name      string
		Currency  string
		Members   []string
		CreatedAt time.Time
	}

	// Expense is a single payment made by one trip member.
	Expense struct {
		ID        int64
		TripID    string
		PayerName string
		Amount    Money
		Note      string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTripName   = errors.New("empty trip name")
	ErrTripNameLong    = errors.New("trip name too long (max 100 characters)")
	ErrEmptyMember     = errors.New("empty member name")
	ErrMemberNameLong  = errors.New("member name too long (max 50 characters)")
	ErrEmptyPayer      = errors.New("empty payer name")
	ErrNoteTooLong     = errors.New("note too long (max 200 characters)")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrPayerNotMember  = errors.New("payer is not a trip member")
	ErrAmountTooLarge  = errors.New("amount too large")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents {
		return ErrAmountTooLarge
	}
	return nil
}

// NormalizeName trims surrounding whitespace and collapses inner runs of
// whitespace so "  Ana   Maria " and "Ana Maria" name the same member.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func ValidateMemberName(name string) error {
	if name == "" {
		return ErrEmptyMember
	}
	if utf8.RuneCountInString(name) > MaxMemberNameLen {
		return ErrMemberNameLong
	}
	return nil
}

func (t Trip) Validate() error {
	name := strings.TrimSpace(t.Name)
	if name == "" {
		return ErrEmptyTripName
	}
	if utf8.RuneCountInString(name) > MaxTripNameLen {
		return ErrTripNameLong
	}
	if t.Currency != "" {
		if _, ok := LookupCurrency(t.Currency); !ok {
			return ErrUnknownCurrency
		}
	}
	seen := make(map[string]struct{}, len(t.Members))
	for _, m := range t.Members {
		if err := ValidateMemberName(m); err != nil {
			return err
		}
		if _, dup := seen[m]; dup {
			return ErrMemberExists
		}
		seen[m] = struct{}{}
	}
	return nil
}

// HasMember reports whether name is on the trip roster.
func (t Trip) HasMember(name string) bool {
	for _, m := range t.Members {
		if m == name {
			return true
		}
	}
	return false
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.PayerName) == "" {
		return ErrEmptyPayer
	}
	if utf8.RuneCountInString(e.PayerName) > MaxMemberNameLen {
		return ErrMemberNameLong
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if utf8.RuneCountInString(e.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}
