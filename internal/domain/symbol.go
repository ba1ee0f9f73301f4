package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Symbol identifies a security as a ticker listed on an exchange. Both parts
// are upper-cased at construction so that equality is case-insensitive.
// The canonical string form is "TICKER.EXCHANGE".
type Symbol struct {
	ticker   string
	exchange string
}

// NewSymbol creates a Symbol from a ticker and an exchange code.
func NewSymbol(ticker, exchange string) (Symbol, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	exchange = strings.ToUpper(strings.TrimSpace(exchange))
	if ticker == "" {
		return Symbol{}, errors.New("symbol ticker cannot be empty")
	}
	if exchange == "" {
		return Symbol{}, errors.New("symbol exchange cannot be empty")
	}
	return Symbol{ticker: ticker, exchange: exchange}, nil
}

// ParseSymbol parses the canonical "TICKER.EXCHANGE" form.
func ParseSymbol(s string) (Symbol, error) {
	ticker, exchange, ok := strings.Cut(s, ".")
	if !ok {
		return Symbol{}, fmt.Errorf("invalid symbol %q: expected TICKER.EXCHANGE", s)
	}
	return NewSymbol(ticker, exchange)
}

// Ticker returns the ticker part of the symbol.
func (s Symbol) Ticker() string { return s.ticker }

// Exchange returns the exchange code part of the symbol.
func (s Symbol) Exchange() string { return s.exchange }

// String returns the canonical "TICKER.EXCHANGE" form.
func (s Symbol) String() string { return s.ticker + "." + s.exchange }

// IsZero reports whether the symbol is the zero value.
func (s Symbol) IsZero() bool { return s.ticker == "" && s.exchange == "" }

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (s Symbol) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbol) UnmarshalText(b []byte) error {
	parsed, err := ParseSymbol(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
