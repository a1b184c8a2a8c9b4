package core

import "errors"

// Lookup and uniqueness failures reported by every TripStore backend.
var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrExpenseNotFound = errors.New("expense not found")
	ErrMemberExists    = errors.New("member already added")
	ErrMemberNotFound  = errors.New("member not found")
)

var validationErrors = []error{
	ErrInvalidAmount,
	ErrEmptyTripName,
	ErrTripNameLong,
	ErrEmptyMember,
	ErrMemberNameLong,
	ErrEmptyPayer,
	ErrNoteTooLong,
	ErrUnknownCurrency,
	ErrPayerNotMember,
	ErrAmountTooLarge,
}

// IsValidation reports whether err stems from rejected user input.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
