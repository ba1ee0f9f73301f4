package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for a unique-key conflict.
const uniqueViolation = "23505"

// eventLog implements domain.EventLog on a table keyed by
// (portfolio_id, sequence), with the variant payload stored as JSON.
type eventLog struct {
	db *DB
}

// NewEventLog creates a new postgres-backed event log.
func NewEventLog(db *DB) domain.EventLog {
	return &eventLog{db: db}
}

// Append inserts the event. The primary key on (portfolio_id, sequence) makes
// the append-only discipline a database guarantee: a duplicate sequence
// surfaces as ErrOutOfOrderEvent.
func (l *eventLog) Append(ctx context.Context, ev domain.Event) error {
	payload, err := marshalEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	query := `
		INSERT INTO portfolio_events (portfolio_id, sequence, kind, payload, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = l.db.ExecContext(ctx, query,
		ev.Portfolio().String(),
		ev.Sequence(),
		string(ev.Kind()),
		payload,
		ev.Time(),
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("%w: sequence %d already appended for %s",
				domain.ErrOutOfOrderEvent, ev.Sequence(), ev.Portfolio())
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// LoadFrom reads the portfolio's events with sequence > after, in order.
func (l *eventLog) LoadFrom(ctx context.Context, id domain.PortfolioID, after int64) ([]domain.Event, error) {
	query := `
		SELECT kind, payload
		FROM portfolio_events
		WHERE portfolio_id = $1 AND sequence > $2
		ORDER BY sequence ASC
	`
	rows, err := l.db.QueryContext(ctx, query, id.String(), after)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev, err := unmarshalEvent(domain.EventKind(kind), payload)
		if err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// LastSequence returns the highest appended sequence, zero for an empty
// stream.
func (l *eventLog) LastSequence(ctx context.Context, id domain.PortfolioID) (int64, error) {
	query := `SELECT COALESCE(MAX(sequence), 0) FROM portfolio_events WHERE portfolio_id = $1`

	var seq int64
	err := l.db.QueryRowContext(ctx, query, id.String()).Scan(&seq)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to query last sequence: %w", err)
	}
	return seq, nil
}

// marshalEvent encodes the concrete variant as JSON.
func marshalEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(ev)
}

// unmarshalEvent decodes a stored payload back into its concrete variant by
// kind tag.
func unmarshalEvent(kind domain.EventKind, payload []byte) (domain.Event, error) {
	switch kind {
	case domain.EventKindInvestmentAdded:
		var ev domain.InvestmentAdded
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventKindInvestmentRemoved:
		var ev domain.InvestmentRemoved
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventKindPriceObserved:
		var ev domain.PriceObserved
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventKindIncomeRecorded:
		var ev domain.IncomeRecorded
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case domain.EventKindPortfolioDeleted:
		var ev domain.PortfolioDeleted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// Schema is the DDL for the event log table, applied by deployment tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolio_events (
	portfolio_id UUID        NOT NULL,
	sequence     BIGINT      NOT NULL,
	kind         TEXT        NOT NULL,
	payload      JSONB       NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (portfolio_id, sequence)
);
`
