package domain

import "errors"

// Validation errors are rejected synchronously by the aggregate and never
// partially applied. Derivation errors are attached as warnings to projection
// results; the projection still returns a best-effort value.
var (
	// ErrDuplicateInvestment signals an InvestmentAdded for an ID already held.
	ErrDuplicateInvestment = errors.New("duplicate investment")

	// ErrUnknownInvestment signals an InvestmentRemoved for an ID not held.
	ErrUnknownInvestment = errors.New("unknown investment")

	// ErrInsufficientQuantity signals a disposal that would leave a negative
	// holding quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")

	// ErrOutOfOrderEvent signals an event whose sequence number is at or below
	// the portfolio's current watermark.
	ErrOutOfOrderEvent = errors.New("out-of-order event")

	// ErrPortfolioDeleted signals an event applied to a tombstoned portfolio.
	ErrPortfolioDeleted = errors.New("portfolio deleted")

	// ErrCurrencyMismatch signals arithmetic on money values of different
	// currencies. Callers must convert explicitly via a rate table.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrMissingExchangeRate signals that a rate table has no entry for a
	// required currency pair.
	ErrMissingExchangeRate = errors.New("missing exchange rate")
)
