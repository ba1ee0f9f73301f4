package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

func testEvent(seq int64) domain.Event {
	symbol, _ := domain.NewSymbol("AAPL", "XNAS")
	return domain.PriceObserved{
		Envelope:   domain.Envelope{PortfolioID: domain.NewPortfolioID(), Seq: seq, RecordedAt: time.Now()},
		Symbol:     symbol,
		Price:      domain.MustMoney(decimal.NewFromInt(150), "USD"),
		ObservedAt: time.Now(),
		Source:     "test",
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestPublish_FanOutToAllSubscribers(t *testing.T) {
	d := New(quietLogger())

	var first, second int
	d.Subscribe(domain.EventKindPriceObserved, "first", func(ctx context.Context, ev domain.Event) error {
		first++
		return nil
	})
	d.Subscribe(domain.EventKindPriceObserved, "second", func(ctx context.Context, ev domain.Event) error {
		second++
		return nil
	})

	failures := d.Publish(context.Background(), testEvent(1))

	assert.Empty(t, failures)
	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

func TestPublish_OnlyMatchingKind(t *testing.T) {
	d := New(quietLogger())

	var called bool
	d.Subscribe(domain.EventKindInvestmentAdded, "other", func(ctx context.Context, ev domain.Event) error {
		called = true
		return nil
	})

	failures := d.Publish(context.Background(), testEvent(1))

	assert.Empty(t, failures)
	assert.False(t, called)
}

func TestPublish_FailingSubscriberIsIsolated(t *testing.T) {
	d := New(quietLogger())

	boom := errors.New("projection unavailable")
	var delivered int
	d.Subscribe(domain.EventKindPriceObserved, "broken", func(ctx context.Context, ev domain.Event) error {
		return boom
	})
	d.Subscribe(domain.EventKindPriceObserved, "healthy", func(ctx context.Context, ev domain.Event) error {
		delivered++
		return nil
	})

	failures := d.Publish(context.Background(), testEvent(1))

	// The broken subscriber is reported; the healthy one still ran.
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Subscriber)
	assert.ErrorIs(t, failures[0], boom)
	assert.Equal(t, 1, delivered)
}

func TestPublish_PanickingSubscriberIsRecovered(t *testing.T) {
	d := New(quietLogger())

	var delivered int
	d.Subscribe(domain.EventKindPriceObserved, "panicky", func(ctx context.Context, ev domain.Event) error {
		panic("boom")
	})
	d.Subscribe(domain.EventKindPriceObserved, "healthy", func(ctx context.Context, ev domain.Event) error {
		delivered++
		return nil
	})

	failures := d.Publish(context.Background(), testEvent(1))

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), "panic")
	assert.Equal(t, 1, delivered)
}

func TestPublish_PreservesPublicationOrderPerSubscriber(t *testing.T) {
	d := New(quietLogger())

	var seen []int64
	d.Subscribe(domain.EventKindPriceObserved, "order", func(ctx context.Context, ev domain.Event) error {
		seen = append(seen, ev.Sequence())
		return nil
	})

	for seq := int64(1); seq <= 5; seq++ {
		d.Publish(context.Background(), testEvent(seq))
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}
