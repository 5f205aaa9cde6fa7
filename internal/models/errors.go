package models

import "errors"

// Ledger error taxonomy. Every rejected operation maps to exactly one of
// these so the HTTP layer can render a specific problem type.
var (
	// Validation errors, detected before any lock is taken.
	ErrInvalidAmount   = errors.New("amount must be a positive number of micros")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrSameCurrency    = errors.New("source and target currency must differ")
	ErrSelfTransfer    = errors.New("cannot transfer to the sending account")

	// State errors, detected inside the atomic unit against current truth.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")

	// Dependency errors. Transient; nothing was mutated and the caller may retry.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrBusy            = errors.New("account is busy, try again")

	// Generation errors.
	ErrExhaustedRetries = errors.New("exhausted account number generation attempts")

	// Auth surface.
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
