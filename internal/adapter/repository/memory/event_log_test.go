package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

func mustSymbol(ticker, exchange string) domain.Symbol {
	s, err := domain.NewSymbol(ticker, exchange)
	if err != nil {
		panic(err)
	}
	return s
}

func addedEvent(id domain.PortfolioID, seq int64) domain.InvestmentAdded {
	return domain.InvestmentAdded{
		Envelope:      domain.Envelope{PortfolioID: id, Seq: seq, RecordedAt: time.Now()},
		InvestmentID:  domain.NewInvestmentID(),
		Symbol:        mustSymbol("AAPL", "XNAS"),
		Quantity:      decimal.NewFromInt(10),
		PurchasePrice: domain.MustMoney(decimal.NewFromInt(150), "USD"),
		PurchaseDate:  time.Now(),
	}
}

func TestAppend_KeepsSequenceOrder(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	id := domain.NewPortfolioID()

	require.NoError(t, log.Append(ctx, addedEvent(id, 1)))
	require.NoError(t, log.Append(ctx, addedEvent(id, 2)))

	events, err := log.LoadFrom(ctx, id, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Sequence())
	assert.Equal(t, int64(2), events[1].Sequence())
}

func TestAppend_DuplicateSequenceRejected(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	id := domain.NewPortfolioID()

	require.NoError(t, log.Append(ctx, addedEvent(id, 1)))
	err := log.Append(ctx, addedEvent(id, 1))

	assert.True(t, errors.Is(err, domain.ErrOutOfOrderEvent))
}

func TestAppend_BackwardsSequenceRejected(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	id := domain.NewPortfolioID()

	require.NoError(t, log.Append(ctx, addedEvent(id, 2)))
	err := log.Append(ctx, addedEvent(id, 1))

	assert.True(t, errors.Is(err, domain.ErrOutOfOrderEvent))
}

func TestLoadFrom_SkipsEventsAtOrBelowAfter(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	id := domain.NewPortfolioID()

	for seq := int64(1); seq <= 3; seq++ {
		require.NoError(t, log.Append(ctx, addedEvent(id, seq)))
	}

	events, err := log.LoadFrom(ctx, id, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].Sequence())
}

func TestLoadFrom_StreamsAreIsolated(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	a := domain.NewPortfolioID()
	b := domain.NewPortfolioID()

	require.NoError(t, log.Append(ctx, addedEvent(a, 1)))
	require.NoError(t, log.Append(ctx, addedEvent(b, 1)))

	events, err := log.LoadFrom(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, a, events[0].Portfolio())
}

func TestLastSequence(t *testing.T) {
	ctx := context.Background()
	log := NewEventLog()
	id := domain.NewPortfolioID()

	seq, err := log.LastSequence(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, log.Append(ctx, addedEvent(id, 1)))
	require.NoError(t, log.Append(ctx, addedEvent(id, 2)))

	seq, err = log.LastSequence(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)
}
