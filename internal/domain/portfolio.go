package domain

import (
	"fmt"
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is a portfolio's position in one security: quantity, total cost
// basis, and the most recently observed market price. Until a PriceObserved
// arrives for the symbol, LatestPrice falls back to the average purchase
// price.
type Holding struct {
	InvestmentID InvestmentID
	Symbol       Symbol
	Quantity     decimal.Decimal
	CostBasis    Money // total amount paid
	Acquired     time.Time
	LatestPrice  Money // per unit
	PriceSeenAt  time.Time
}

// AverageCost returns the per-unit cost basis.
func (h Holding) AverageCost() Money {
	if h.Quantity.IsZero() {
		return Money{Amount: decimal.Zero, Currency: h.CostBasis.Currency}
	}
	return h.CostBasis.DivQuantity(h.Quantity)
}

// MarketValue returns quantity times the latest known price.
func (h Holding) MarketValue() Money {
	return h.LatestPrice.MulQuantity(h.Quantity)
}

// Portfolio is the aggregate state reconstructed by folding the event log.
// It is never mutated in place: Apply returns a new state and leaves its
// input untouched, so replaying the full ordered event sequence from the
// empty state deterministically reproduces any reachable state.
type Portfolio struct {
	ID           PortfolioID
	Owner        string // opaque owner reference, not resolved here
	Holdings     map[InvestmentID]Holding
	LastSequence int64
	Deleted      bool
}

// NewPortfolio returns the empty state for a portfolio: zero holdings, a
// valid initial (and terminal) state.
func NewPortfolio(id PortfolioID) Portfolio {
	return Portfolio{ID: id, Holdings: make(map[InvestmentID]Holding)}
}

// Holding looks up a position by investment ID.
func (p Portfolio) Holding(id InvestmentID) (Holding, bool) {
	h, ok := p.Holdings[id]
	return h, ok
}

// HoldingsOf returns the positions held in a symbol.
func (p Portfolio) HoldingsOf(symbol Symbol) []Holding {
	var out []Holding
	for _, h := range p.Holdings {
		if h.Symbol == symbol {
			out = append(out, h)
		}
	}
	return out
}

// Apply folds one event into the state, returning the new state. Pure: no
// side effects, no I/O, and the input state is never modified. Rejected
// events leave the returned state identical to the input.
//
// Rules:
//   - the event's sequence must be strictly greater than LastSequence,
//     otherwise ErrOutOfOrderEvent (replay-safety guard)
//   - InvestmentAdded for an existing InvestmentID: ErrDuplicateInvestment
//   - InvestmentRemoved for an unknown InvestmentID: ErrUnknownInvestment
//   - a reduction below zero quantity: ErrInsufficientQuantity
//   - any event after a PortfolioDeleted: ErrPortfolioDeleted
func Apply(state Portfolio, ev Event) (Portfolio, error) {
	if ev.Sequence() <= state.LastSequence {
		return state, fmt.Errorf("%w: sequence %d at or below watermark %d",
			ErrOutOfOrderEvent, ev.Sequence(), state.LastSequence)
	}
	if state.Deleted {
		return state, fmt.Errorf("%w: %s", ErrPortfolioDeleted, state.ID)
	}

	next := state
	next.Holdings = maps.Clone(state.Holdings)
	if next.Holdings == nil {
		next.Holdings = make(map[InvestmentID]Holding)
	}

	switch e := ev.(type) {
	case InvestmentAdded:
		if _, exists := next.Holdings[e.InvestmentID]; exists {
			return state, fmt.Errorf("%w: %s", ErrDuplicateInvestment, e.InvestmentID)
		}
		if !e.Quantity.IsPositive() {
			return state, fmt.Errorf("%w: quantity %s", ErrInsufficientQuantity, e.Quantity)
		}
		next.Holdings[e.InvestmentID] = Holding{
			InvestmentID: e.InvestmentID,
			Symbol:       e.Symbol,
			Quantity:     e.Quantity,
			CostBasis:    e.PurchasePrice.MulQuantity(e.Quantity),
			Acquired:     e.PurchaseDate,
			LatestPrice:  e.PurchasePrice,
			PriceSeenAt:  e.PurchaseDate,
		}

	case InvestmentRemoved:
		h, exists := next.Holdings[e.InvestmentID]
		if !exists {
			return state, fmt.Errorf("%w: %s", ErrUnknownInvestment, e.InvestmentID)
		}
		switch {
		case e.Quantity.IsZero():
			// Full disposal.
			delete(next.Holdings, e.InvestmentID)
		case e.Quantity.IsNegative():
			return state, fmt.Errorf("%w: negative disposal %s", ErrInsufficientQuantity, e.Quantity)
		default:
			remaining := h.Quantity.Sub(e.Quantity)
			if remaining.IsNegative() {
				return state, fmt.Errorf("%w: holding %s has %s, disposal of %s",
					ErrInsufficientQuantity, e.InvestmentID, h.Quantity, e.Quantity)
			}
			if remaining.IsZero() {
				delete(next.Holdings, e.InvestmentID)
				break
			}
			// Reduce cost basis proportionally (average cost method).
			h.CostBasis = h.AverageCost().MulQuantity(remaining)
			h.Quantity = remaining
			next.Holdings[e.InvestmentID] = h
		}

	case PriceObserved:
		for id, h := range next.Holdings {
			if h.Symbol != e.Symbol {
				continue
			}
			// Last-writer-wins by observation time.
			if e.ObservedAt.Before(h.PriceSeenAt) {
				continue
			}
			h.LatestPrice = e.Price
			h.PriceSeenAt = e.ObservedAt
			next.Holdings[id] = h
		}

	case IncomeRecorded:
		// Income is folded by the income projection; the aggregate only
		// advances its watermark.

	case PortfolioDeleted:
		next.Deleted = true

	default:
		return state, fmt.Errorf("unhandled event kind %q", ev.Kind())
	}

	next.LastSequence = ev.Sequence()
	return next, nil
}

// Load folds an ordered event stream into a portfolio state, starting from
// the empty state. An empty stream yields a portfolio with zero holdings.
func Load(id PortfolioID, events []Event) (Portfolio, error) {
	state := NewPortfolio(id)
	for _, ev := range events {
		var err error
		state, err = Apply(state, ev)
		if err != nil {
			return state, fmt.Errorf("load %s at sequence %d: %w", id, ev.Sequence(), err)
		}
	}
	return state, nil
}
