package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind tags the concrete variant of a domain event.
type EventKind string

const (
	EventKindInvestmentAdded   EventKind = "INVESTMENT_ADDED"
	EventKindInvestmentRemoved EventKind = "INVESTMENT_REMOVED"
	EventKindPriceObserved     EventKind = "PRICE_OBSERVED"
	EventKindIncomeRecorded    EventKind = "INCOME_RECORDED"
	EventKindPortfolioDeleted  EventKind = "PORTFOLIO_DELETED"
)

// IncomeKind distinguishes the two income flavours carried by IncomeRecorded.
type IncomeKind string

const (
	IncomeKindDividend IncomeKind = "DIVIDEND"
	IncomeKindInterest IncomeKind = "INTEREST"
)

// Event is an immutable fact describing a state change. Events are appended
// to a per-portfolio log keyed by (portfolio, sequence) and are the source of
// truth; aggregate state is rebuilt by folding them in order.
type Event interface {
	// Kind returns the variant tag used for dispatch routing.
	Kind() EventKind

	// Portfolio returns the owning portfolio. Zero for market-scoped events
	// (a PriceObserved emitted by a price feed).
	Portfolio() PortfolioID

	// Sequence returns the per-portfolio monotonically increasing sequence
	// number. Zero for market-scoped events that were never appended.
	Sequence() int64

	// Time returns the event's creation timestamp.
	Time() time.Time
}

// Envelope carries the identity every event shares. Embedded by each variant.
type Envelope struct {
	PortfolioID PortfolioID `json:"portfolio_id"`
	Seq         int64       `json:"sequence"`
	RecordedAt  time.Time   `json:"recorded_at"`
}

func (e Envelope) Portfolio() PortfolioID { return e.PortfolioID }
func (e Envelope) Sequence() int64        { return e.Seq }
func (e Envelope) Time() time.Time        { return e.RecordedAt }

// InvestmentAdded records the purchase of a new investment.
type InvestmentAdded struct {
	Envelope
	InvestmentID  InvestmentID    `json:"investment_id"`
	Symbol        Symbol          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice Money           `json:"purchase_price"` // per unit
	PurchaseDate  time.Time       `json:"purchase_date"`
}

func (InvestmentAdded) Kind() EventKind { return EventKindInvestmentAdded }

// InvestmentRemoved records a disposal. A zero Quantity disposes of the whole
// holding; a positive Quantity reduces it, and the reduction must not leave a
// negative remainder.
type InvestmentRemoved struct {
	Envelope
	InvestmentID InvestmentID    `json:"investment_id"`
	Quantity     decimal.Decimal `json:"quantity,omitempty"`
	Date         time.Time       `json:"date"`
}

func (InvestmentRemoved) Kind() EventKind { return EventKindInvestmentRemoved }

// PriceObserved records a market price for a symbol. Observations are
// last-writer-wins by ObservedAt: an older observation arriving after a newer
// one is discarded by consumers.
type PriceObserved struct {
	Envelope
	Symbol     Symbol    `json:"symbol"`
	Price      Money     `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
	Source     string    `json:"source"`
}

func (PriceObserved) Kind() EventKind { return EventKindPriceObserved }

// IncomeRecorded records a dividend or interest payment attributed to a
// symbol on a given date. The Date drives calendar grouping in income
// summaries, not the processing time.
type IncomeRecorded struct {
	Envelope
	Symbol Symbol     `json:"symbol"`
	Income IncomeKind `json:"income_kind"`
	Amount Money      `json:"amount"`
	Date   time.Time  `json:"date"`
}

func (IncomeRecorded) Kind() EventKind { return EventKindIncomeRecorded }

// PortfolioDeleted tombstones a portfolio. Projections drop their derived
// state for it; later events on the log are rejected by the aggregate.
type PortfolioDeleted struct {
	Envelope
	Date time.Time `json:"date"`
}

func (PortfolioDeleted) Kind() EventKind { return EventKindPortfolioDeleted }
