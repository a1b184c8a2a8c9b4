package core

import "strings"

// Currency is a display currency selectable per trip. Amounts are never
// converted; the currency only changes the symbol used in sentences.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// DefaultCurrency is used when a trip has no currency or an unknown one.
var DefaultCurrency = Currency{Code: "EUR", Symbol: "€", Name: "Euro"}

var currencies = []Currency{
	DefaultCurrency,
	{Code: "USD", Symbol: "$", Name: "US Dollar"},
	{Code: "GBP", Symbol: "£", Name: "British Pound"},
	{Code: "JPY", Symbol: "¥", Name: "Japanese Yen"},
	{Code: "CNY", Symbol: "¥", Name: "Chinese Yuan"},
	{Code: "AUD", Symbol: "A$", Name: "Australian Dollar"},
	{Code: "CAD", Symbol: "C$", Name: "Canadian Dollar"},
	{Code: "CHF", Symbol: "Fr", Name: "Swiss Franc"},
	{Code: "HKD", Symbol: "HK$", Name: "Hong Kong Dollar"},
	{Code: "INR", Symbol: "₹", Name: "Indian Rupee"},
}

// Currencies returns the supported currencies in display order.
func Currencies() []Currency {
	return append([]Currency(nil), currencies...)
}

// LookupCurrency finds a currency by ISO code, case-insensitively.
// The second return value is false, and EUR is returned, for unknown codes.
func LookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return DefaultCurrency, false
}
