package core

import (
	"fmt"
	"strings"
	"testing"
)

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Cents: -5}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestTripValidate(t *testing.T) {
	good := Trip{Name: "Split 2025", Currency: "eur", Members: []string{"Ana", "Marko"}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Trip{
		{Name: "  "},
		{Name: strings.Repeat("x", MaxTripNameLen+1)},
		{Name: "ok", Currency: "XXX"},
		{Name: "ok", Members: []string{""}},
		{Name: "ok", Members: []string{strings.Repeat("m", MaxMemberNameLen+1)}},
		{Name: "ok", Members: []string{"Ana", "Ana"}},
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{PayerName: "Ana", Amount: Money{Cents: 100}, Note: "ferry"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{PayerName: "", Amount: Money{Cents: 1}},
		{PayerName: "  ", Amount: Money{Cents: 1}},
		{PayerName: "Ana", Amount: Money{Cents: 0}},
		{PayerName: "Ana", Amount: Money{Cents: 1}, Note: strings.Repeat("n", MaxNoteLen+1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Ana":             "Ana",
		"  Ana   Maria  ": "Ana Maria",
		"\tMarko\n":       "Marko",
		"":                "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLookupCurrency(t *testing.T) {
	c, ok := LookupCurrency("usd")
	if !ok || c.Symbol != "$" {
		t.Fatalf("expected USD, got %+v ok=%v", c, ok)
	}
	c, ok = LookupCurrency("nope")
	if ok || c.Code != "EUR" {
		t.Fatalf("expected EUR fallback, got %+v ok=%v", c, ok)
	}
	if n := len(Currencies()); n != 10 {
		t.Fatalf("expected 10 currencies, got %d", n)
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(fmt.Errorf("add expense: %w", ErrNoteTooLong)) {
		t.Fatalf("wrapped validation error not recognised")
	}
	if IsValidation(ErrTripNotFound) || IsValidation(nil) {
		t.Fatalf("lookup errors are not validation errors")
	}
}
