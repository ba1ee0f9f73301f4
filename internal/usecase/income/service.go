package income

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// Breakdown accumulates dividend and interest totals per currency. Amounts of
// different currencies are never merged; the caller normalizes beforehand if
// a single-currency figure is wanted.
type Breakdown struct {
	Dividends map[string]decimal.Decimal
	Interest  map[string]decimal.Decimal
}

func newBreakdown() Breakdown {
	return Breakdown{
		Dividends: make(map[string]decimal.Decimal),
		Interest:  make(map[string]decimal.Decimal),
	}
}

func (b Breakdown) add(kind domain.IncomeKind, amount domain.Money) {
	switch kind {
	case domain.IncomeKindDividend:
		b.Dividends[amount.Currency] = b.Dividends[amount.Currency].Add(amount.Amount)
	case domain.IncomeKindInterest:
		b.Interest[amount.Currency] = b.Interest[amount.Currency].Add(amount.Amount)
	}
}

// Total returns dividends plus interest per currency. Derived from the two
// parts by construction, never tracked separately.
func (b Breakdown) Total() map[string]decimal.Decimal {
	total := make(map[string]decimal.Decimal, len(b.Dividends)+len(b.Interest))
	for cur, amt := range b.Dividends {
		total[cur] = total[cur].Add(amt)
	}
	for cur, amt := range b.Interest {
		total[cur] = total[cur].Add(amt)
	}
	return total
}

// MonthKey groups income by the calendar month of the recorded date.
type MonthKey struct {
	Year  int
	Month time.Month
}

func (k MonthKey) String() string { return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month)) }

// Summary is the income report over a time window: overall totals plus
// groupings by symbol and by calendar month. Always a pure fold over
// IncomeRecorded events; no hidden state.
type Summary struct {
	From, To time.Time
	Overall  Breakdown
	BySymbol map[domain.Symbol]Breakdown
	ByMonth  map[MonthKey]Breakdown
}

// Summarize folds IncomeRecorded events whose recorded Date falls inside
// [from, to] into a Summary. Grouping uses the event's Date, not wall-clock
// processing time. All other event kinds are ignored.
func Summarize(events []domain.Event, from, to time.Time) Summary {
	s := Summary{
		From:     from,
		To:       to,
		Overall:  newBreakdown(),
		BySymbol: make(map[domain.Symbol]Breakdown),
		ByMonth:  make(map[MonthKey]Breakdown),
	}

	for _, ev := range events {
		rec, ok := ev.(domain.IncomeRecorded)
		if !ok {
			continue
		}
		if rec.Date.Before(from) || rec.Date.After(to) {
			continue
		}

		s.Overall.add(rec.Income, rec.Amount)

		bySym, ok := s.BySymbol[rec.Symbol]
		if !ok {
			bySym = newBreakdown()
			s.BySymbol[rec.Symbol] = bySym
		}
		bySym.add(rec.Income, rec.Amount)

		key := MonthKey{Year: rec.Date.Year(), Month: rec.Date.Month()}
		byMonth, ok := s.ByMonth[key]
		if !ok {
			byMonth = newBreakdown()
			s.ByMonth[key] = byMonth
		}
		byMonth.add(rec.Income, rec.Amount)
	}
	return s
}

// IncomeService computes income summaries from the persisted event log. It
// runs independently of real-time dispatch and performs no external calls
// beyond reading the log.
type IncomeService struct {
	EventLog domain.EventLog
}

// NewIncomeService creates a new IncomeService instance.
func NewIncomeService(eventLog domain.EventLog) *IncomeService {
	return &IncomeService{EventLog: eventLog}
}

// Summary reads the portfolio's full event stream and folds the income events
// inside the window.
func (s *IncomeService) Summary(ctx context.Context, id domain.PortfolioID, from, to time.Time) (Summary, error) {
	events, err := s.EventLog.LoadFrom(ctx, id, 0)
	if err != nil {
		return Summary{}, fmt.Errorf("load events for %s: %w", id, err)
	}
	return Summarize(events, from, to), nil
}
