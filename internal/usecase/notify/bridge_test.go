package notify

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/foliotrack/foliotrack-backend/internal/adapter/repository/memory"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/valuation"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyPortfolioUpdate(ctx context.Context, id domain.PortfolioID, message string) error {
	args := m.Called(ctx, id, message)
	return args.Error(0)
}

func (m *MockNotifier) NotifyPriceUpdate(ctx context.Context, symbol domain.Symbol, price domain.Money) error {
	args := m.Called(ctx, symbol, price)
	return args.Error(0)
}

type MockMarketDataProvider struct {
	mock.Mock
}

func (m *MockMarketDataProvider) GetLatestPrice(ctx context.Context, symbol domain.Symbol) (domain.PricePoint, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(domain.PricePoint), args.Error(1)
}

func (m *MockMarketDataProvider) GetHistoricalPrices(ctx context.Context, symbol domain.Symbol, from, to time.Time) ([]domain.PricePoint, error) {
	args := m.Called(ctx, symbol, from, to)
	return args.Get(0).([]domain.PricePoint), args.Error(1)
}

func (m *MockMarketDataProvider) SearchSecurities(ctx context.Context, query string) ([]domain.SecurityInfo, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]domain.SecurityInfo), args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mustSymbol(ticker, exchange string) domain.Symbol {
	s, err := domain.NewSymbol(ticker, exchange)
	if err != nil {
		panic(err)
	}
	return s
}

func usd(v int64) domain.Money {
	return domain.MustMoney(decimal.NewFromInt(v), "USD")
}

func addedEvent(id domain.PortfolioID, seq int64, sym domain.Symbol) domain.InvestmentAdded {
	return domain.InvestmentAdded{
		Envelope:      domain.Envelope{PortfolioID: id, Seq: seq, RecordedAt: time.Now()},
		InvestmentID:  domain.NewInvestmentID(),
		Symbol:        sym,
		Quantity:      decimal.NewFromInt(10),
		PurchasePrice: usd(150),
		PurchaseDate:  time.Now(),
	}
}

func newBridge(notifier domain.Notifier, log domain.EventLog, provider domain.MarketDataProvider) *NotificationBridge {
	val := valuation.NewValuationService(provider, log, quietLogger(), valuation.Config{
		MaxPriceAge: time.Minute,
	})
	return NewNotificationBridge(notifier, val, quietLogger(), "USD", nil)
}

func TestHandleEvent_InvestmentAddedNotifiesWithTotal(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")
	ev := addedEvent(id, 1, aapl)

	log := memory.NewEventLog()
	require.NoError(t, log.Append(context.Background(), ev))

	provider := new(MockMarketDataProvider)
	provider.On("GetLatestPrice", mock.Anything, aapl).Return(domain.PricePoint{
		Symbol:     aapl,
		Price:      usd(160),
		ObservedAt: time.Now(),
		Source:     "test",
	}, nil)

	notifier := new(MockNotifier)
	notifier.On("NotifyPortfolioUpdate", mock.Anything, id, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "investment added") && strings.Contains(msg, "total value")
	})).Return(nil)

	bridge := newBridge(notifier, log, provider)
	err := bridge.HandleEvent(context.Background(), ev)

	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestHandleEvent_ValuationFailureStillNotifies(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")
	ev := addedEvent(id, 1, aapl)

	notifier := new(MockNotifier)
	notifier.On("NotifyPortfolioUpdate", mock.Anything, id, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "investment added") && !strings.Contains(msg, "total value")
	})).Return(nil)

	// Log read fails, so the valuation cannot bootstrap; the message degrades
	// to the change description without a total.
	bridge := newBridge(notifier, failingLog{}, new(MockMarketDataProvider))
	err := bridge.HandleEvent(context.Background(), ev)

	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestHandleEvent_PriceObservedNotifiesPrice(t *testing.T) {
	aapl := mustSymbol("AAPL", "XNAS")
	price := usd(160)

	notifier := new(MockNotifier)
	notifier.On("NotifyPriceUpdate", mock.Anything, aapl, price).Return(nil)

	bridge := newBridge(notifier, memory.NewEventLog(), new(MockMarketDataProvider))
	err := bridge.HandleEvent(context.Background(), domain.PriceObserved{
		Symbol:     aapl,
		Price:      price,
		ObservedAt: time.Now(),
		Source:     "feed",
	})

	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestHandleEvent_RedeliveryNotifiesOnce(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")
	ev := addedEvent(id, 1, aapl)

	log := memory.NewEventLog()
	require.NoError(t, log.Append(context.Background(), ev))

	provider := new(MockMarketDataProvider)
	provider.On("GetLatestPrice", mock.Anything, aapl).Return(domain.PricePoint{
		Symbol:     aapl,
		Price:      usd(160),
		ObservedAt: time.Now(),
		Source:     "test",
	}, nil)

	notifier := new(MockNotifier)
	notifier.On("NotifyPortfolioUpdate", mock.Anything, id, mock.Anything).Return(nil)

	bridge := newBridge(notifier, log, provider)
	require.NoError(t, bridge.HandleEvent(context.Background(), ev))
	require.NoError(t, bridge.HandleEvent(context.Background(), ev))

	notifier.AssertNumberOfCalls(t, "NotifyPortfolioUpdate", 1)
}

func TestHandleEvent_PortfolioDeletedResetsWatermark(t *testing.T) {
	id := domain.NewPortfolioID()
	aapl := mustSymbol("AAPL", "XNAS")

	log := memory.NewEventLog()
	added := addedEvent(id, 1, aapl)
	require.NoError(t, log.Append(context.Background(), added))

	provider := new(MockMarketDataProvider)
	provider.On("GetLatestPrice", mock.Anything, aapl).Return(domain.PricePoint{
		Symbol:     aapl,
		Price:      usd(160),
		ObservedAt: time.Now(),
		Source:     "test",
	}, nil)

	notifier := new(MockNotifier)
	notifier.On("NotifyPortfolioUpdate", mock.Anything, id, mock.Anything).Return(nil)

	bridge := newBridge(notifier, log, provider)
	require.NoError(t, bridge.HandleEvent(context.Background(), added))
	require.NoError(t, bridge.HandleEvent(context.Background(), domain.PortfolioDeleted{
		Envelope: domain.Envelope{PortfolioID: id, Seq: 2, RecordedAt: time.Now()},
		Date:     time.Now(),
	}))

	notifier.AssertCalled(t, "NotifyPortfolioUpdate", mock.Anything, id, "portfolio deleted")
}

func TestHandleEvent_NotifierFailurePropagates(t *testing.T) {
	aapl := mustSymbol("AAPL", "XNAS")
	wantErr := errors.New("channel down")

	notifier := new(MockNotifier)
	notifier.On("NotifyPriceUpdate", mock.Anything, aapl, mock.Anything).Return(wantErr)

	bridge := newBridge(notifier, memory.NewEventLog(), new(MockMarketDataProvider))
	err := bridge.HandleEvent(context.Background(), domain.PriceObserved{
		Symbol:     aapl,
		Price:      usd(160),
		ObservedAt: time.Now(),
	})

	assert.ErrorIs(t, err, wantErr)
}

type failingLog struct{}

func (failingLog) Append(ctx context.Context, ev domain.Event) error { return errors.New("log down") }

func (failingLog) LoadFrom(ctx context.Context, id domain.PortfolioID, after int64) ([]domain.Event, error) {
	return nil, errors.New("log down")
}

func (failingLog) LastSequence(ctx context.Context, id domain.PortfolioID) (int64, error) {
	return 0, errors.New("log down")
}
