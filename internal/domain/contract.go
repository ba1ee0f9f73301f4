package domain

import (
	"context"
	"time"
)

// EventLog defines the append-only storage contract for domain events,
// keyed by (portfolio, sequence). The exact storage technology is the
// collaborator's concern.
type EventLog interface {
	// Append durably stores an event. Appending a sequence number already
	// present for the portfolio fails with ErrOutOfOrderEvent.
	Append(ctx context.Context, ev Event) error

	// LoadFrom returns the portfolio's events with sequence strictly greater
	// than after, in sequence order. after=0 loads the full stream.
	LoadFrom(ctx context.Context, id PortfolioID, after int64) ([]Event, error)

	// LastSequence returns the highest appended sequence number for the
	// portfolio, zero when the stream is empty.
	LastSequence(ctx context.Context, id PortfolioID) (int64, error)
}

// PricePoint is one observation from the market-data provider.
type PricePoint struct {
	Symbol     Symbol
	Price      Money
	ObservedAt time.Time
	Source     string
}

// SecurityInfo describes one security returned by a search.
type SecurityInfo struct {
	Symbol   Symbol
	Name     string
	Type     string
	Currency string
}

// MarketDataProvider is the read-only contract with the external market-data
// service. Calls may block; they honor the passed context's deadline and
// cancellation.
type MarketDataProvider interface {
	GetLatestPrice(ctx context.Context, symbol Symbol) (PricePoint, error)
	GetHistoricalPrices(ctx context.Context, symbol Symbol, from, to time.Time) ([]PricePoint, error)
	SearchSecurities(ctx context.Context, query string) ([]SecurityInfo, error)
}

// Notifier is the fire-and-forget contract with the external notification
// channel. Delivery failures are the collaborator's concern; the core only
// logs them.
type Notifier interface {
	NotifyPortfolioUpdate(ctx context.Context, id PortfolioID, message string) error
	NotifyPriceUpdate(ctx context.Context, symbol Symbol, price Money) error
}
