package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/dispatch"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// TransactionType classifies an imported transaction row.
type TransactionType string

const (
	TransactionTypeBuy      TransactionType = "BUY"
	TransactionTypeSell     TransactionType = "SELL"
	TransactionTypeDividend TransactionType = "DIVIDEND"
	TransactionTypeInterest TransactionType = "INTEREST"
)

// TransactionToImport is one already-validated transaction record, as
// produced by the CSV importer or any other command source. Row-level
// validation (parsing, field presence) happened upstream; this service only
// enforces domain rules.
type TransactionToImport struct {
	Date     time.Time
	Type     TransactionType
	Symbol   domain.Symbol
	Currency string
	Quantity decimal.Decimal
	Price    decimal.Decimal // per unit for BUY/SELL, total amount for income rows
	Notes    string
}

// RowError reports one rejected row. The row is skipped; the import
// continues.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// ImportResult reports the outcome of an import batch.
type ImportResult struct {
	Imported  int
	RowErrors []RowError
}

// IngestService turns validated transaction records into domain events: it
// allocates the next sequence number from the log, validates each event by
// applying it to the current fold, appends it, and publishes it on the
// dispatcher so projections react.
type IngestService struct {
	EventLog   domain.EventLog
	Dispatcher *dispatch.Dispatcher

	logger *logrus.Logger
}

// NewIngestService creates a new IngestService instance.
func NewIngestService(eventLog domain.EventLog, dispatcher *dispatch.Dispatcher, logger *logrus.Logger) *IngestService {
	return &IngestService{EventLog: eventLog, Dispatcher: dispatcher, logger: logger}
}

// Import appends events for the given rows in order. A row that violates a
// domain rule is collected in the result and skipped; rows after it still
// import. Log or lookup failures abort the batch.
func (s *IngestService) Import(ctx context.Context, id domain.PortfolioID, rows []TransactionToImport) (ImportResult, error) {
	events, err := s.EventLog.LoadFrom(ctx, id, 0)
	if err != nil {
		return ImportResult{}, fmt.Errorf("load portfolio %s: %w", id, err)
	}
	state, err := domain.Load(id, events)
	if err != nil {
		return ImportResult{}, fmt.Errorf("fold portfolio %s: %w", id, err)
	}

	var result ImportResult
	for i, row := range rows {
		ev, err := s.toEvent(id, state, row)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: i, Err: err})
			continue
		}

		next, err := domain.Apply(state, ev)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: i, Err: err})
			continue
		}

		if err := s.EventLog.Append(ctx, ev); err != nil {
			return result, fmt.Errorf("append event at sequence %d: %w", ev.Sequence(), err)
		}
		state = next
		result.Imported++

		if failures := s.Dispatcher.Publish(ctx, ev); len(failures) > 0 {
			// The event is durably appended; subscriber failures are already
			// logged by the dispatcher and do not fail the import.
			s.logger.WithFields(logrus.Fields{
				"portfolio": id,
				"sequence":  ev.Sequence(),
				"failures":  len(failures),
			}).Warn("event published with subscriber failures")
		}
	}
	return result, nil
}

// RecordRemoval appends an InvestmentRemoved for an explicit disposal. A zero
// quantity disposes of the entire holding.
func (s *IngestService) RecordRemoval(ctx context.Context, id domain.PortfolioID, investmentID domain.InvestmentID, quantity decimal.Decimal, date time.Time) error {
	events, err := s.EventLog.LoadFrom(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("load portfolio %s: %w", id, err)
	}
	state, err := domain.Load(id, events)
	if err != nil {
		return fmt.Errorf("fold portfolio %s: %w", id, err)
	}

	ev := domain.InvestmentRemoved{
		Envelope: domain.Envelope{
			PortfolioID: id,
			Seq:         state.LastSequence + 1,
			RecordedAt:  time.Now(),
		},
		InvestmentID: investmentID,
		Quantity:     quantity,
		Date:         date,
	}
	if _, err := domain.Apply(state, ev); err != nil {
		return err
	}
	if err := s.EventLog.Append(ctx, ev); err != nil {
		return fmt.Errorf("append removal: %w", err)
	}
	s.Dispatcher.Publish(ctx, ev)
	return nil
}

// toEvent maps one row onto its domain event, allocating the next sequence
// number from the current fold.
func (s *IngestService) toEvent(id domain.PortfolioID, state domain.Portfolio, row TransactionToImport) (domain.Event, error) {
	env := domain.Envelope{
		PortfolioID: id,
		Seq:         state.LastSequence + 1,
		RecordedAt:  time.Now(),
	}

	switch row.Type {
	case TransactionTypeBuy:
		price, err := domain.NewMoney(row.Price, row.Currency)
		if err != nil {
			return nil, err
		}
		return domain.InvestmentAdded{
			Envelope:      env,
			InvestmentID:  domain.NewInvestmentID(),
			Symbol:        row.Symbol,
			Quantity:      row.Quantity,
			PurchasePrice: price,
			PurchaseDate:  row.Date,
		}, nil

	case TransactionTypeSell:
		// A sell reduces the oldest holding in the symbol. Average-cost
		// reduction happens in the aggregate.
		target, err := oldestHolding(state, row.Symbol)
		if err != nil {
			return nil, err
		}
		return domain.InvestmentRemoved{
			Envelope:     env,
			InvestmentID: target.InvestmentID,
			Quantity:     row.Quantity,
			Date:         row.Date,
		}, nil

	case TransactionTypeDividend, TransactionTypeInterest:
		amount, err := domain.NewMoney(row.Price, row.Currency)
		if err != nil {
			return nil, err
		}
		kind := domain.IncomeKindDividend
		if row.Type == TransactionTypeInterest {
			kind = domain.IncomeKindInterest
		}
		return domain.IncomeRecorded{
			Envelope: env,
			Symbol:   row.Symbol,
			Income:   kind,
			Amount:   amount,
			Date:     row.Date,
		}, nil

	default:
		return nil, fmt.Errorf("unknown transaction type %q", row.Type)
	}
}

// oldestHolding picks the earliest acquired holding in a symbol, so sells
// consume lots first-in first-out when several exist.
func oldestHolding(state domain.Portfolio, symbol domain.Symbol) (domain.Holding, error) {
	holdings := state.HoldingsOf(symbol)
	if len(holdings) == 0 {
		return domain.Holding{}, fmt.Errorf("%w: no holding in %s", domain.ErrUnknownInvestment, symbol)
	}
	oldest := holdings[0]
	for _, h := range holdings[1:] {
		if h.Acquired.Before(oldest.Acquired) {
			oldest = h
		}
	}
	return oldest, nil
}

// ErrEmptyBatch is returned by ImportAll when no rows are supplied.
var ErrEmptyBatch = errors.New("empty import batch")

// ImportAll is Import that fails when the batch is empty.
func (s *IngestService) ImportAll(ctx context.Context, id domain.PortfolioID, rows []TransactionToImport) (ImportResult, error) {
	if len(rows) == 0 {
		return ImportResult{}, ErrEmptyBatch
	}
	return s.Import(ctx, id, rows)
}
