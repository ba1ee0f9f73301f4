package domain

import (
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value: an arbitrary-precision amount plus an
// ISO-4217 currency code. Arithmetic across differing currencies is rejected
// with ErrCurrencyMismatch; callers convert explicitly via a RateTable.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// NewMoney creates a Money value, validating the currency code against the
// go-money currency registry.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if gomoney.GetCurrency(currency) == nil {
		return Money{}, fmt.Errorf("unknown currency code %q", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// MustMoney is NewMoney that panics on an invalid currency code. Intended for
// literals in tests and wiring code.
func MustMoney(amount decimal.Decimal, currency string) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Add returns m+n, or ErrCurrencyMismatch if the currencies differ.
func (m Money) Add(n Money) (Money, error) {
	if m.Currency != n.Currency {
		return Money{}, fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.Currency, n.Currency)
	}
	return Money{Amount: m.Amount.Add(n.Amount), Currency: m.Currency}, nil
}

// Sub returns m-n, or ErrCurrencyMismatch if the currencies differ.
func (m Money) Sub(n Money) (Money, error) {
	if m.Currency != n.Currency {
		return Money{}, fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, m.Currency, n.Currency)
	}
	return Money{Amount: m.Amount.Sub(n.Amount), Currency: m.Currency}, nil
}

// MulQuantity scales the amount by a unitless quantity.
func (m Money) MulQuantity(q decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(q), Currency: m.Currency}
}

// DivQuantity divides the amount by a unitless quantity.
func (m Money) DivQuantity(q decimal.Decimal) Money {
	return Money{Amount: m.Amount.Div(q), Currency: m.Currency}
}

// Neg returns the negated amount in the same currency.
func (m Money) Neg() Money { return Money{Amount: m.Amount.Neg(), Currency: m.Currency} }

// Equal reports value equality: same currency and numerically equal amount.
func (m Money) Equal(n Money) bool {
	return m.Currency == n.Currency && m.Amount.Equal(n.Amount)
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// String returns a plain "amount CUR" form suitable for logs.
func (m Money) String() string {
	return m.Amount.String() + " " + m.Currency
}

// Display formats the amount with the currency's conventional symbol and
// fraction digits.
func (m Money) Display() string {
	cur := gomoney.GetCurrency(m.Currency)
	if cur == nil {
		return m.String()
	}
	minor := m.Amount.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// RateTable supplies exchange rates keyed by six-letter currency pair, the
// base currency followed by the quote currency ("USDEUR" prices 1 USD in
// EUR). The core never converts implicitly; every conversion goes through an
// externally supplied table.
type RateTable map[string]decimal.Decimal

// Convert rephrases m in the target currency. Identity when the currencies
// already match. ErrMissingExchangeRate when the table has no entry for the
// pair.
func (t RateTable) Convert(m Money, currency string) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if m.Currency == currency {
		return m, nil
	}
	rate, ok := t[m.Currency+currency]
	if !ok {
		return Money{}, fmt.Errorf("%w: %s%s", ErrMissingExchangeRate, m.Currency, currency)
	}
	return Money{Amount: m.Amount.Mul(rate), Currency: currency}, nil
}
