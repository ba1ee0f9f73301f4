package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/dispatch"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
	"github.com/foliotrack/foliotrack-backend/internal/usecase/valuation"
)

// NotificationBridge turns projection results into calls on the external
// notification contract. It is a thin adapter: holding changes trigger a
// portfolio-update notification with the recomputed total, price observations
// trigger a price-update notification. Delivery failures are the channel's
// concern; the bridge only reports them to the dispatcher, which logs them.
type NotificationBridge struct {
	Notifier  domain.Notifier
	Valuation *valuation.ValuationService

	logger   *logrus.Logger
	currency string
	rates    domain.RateTable

	mu         sync.Mutex
	watermarks map[domain.PortfolioID]int64
}

// NewNotificationBridge creates a new NotificationBridge instance. Totals in
// the portfolio-update message are expressed in the given currency using the
// given rate table.
func NewNotificationBridge(notifier domain.Notifier, val *valuation.ValuationService, logger *logrus.Logger, currency string, rates domain.RateTable) *NotificationBridge {
	return &NotificationBridge{
		Notifier:   notifier,
		Valuation:  val,
		logger:     logger,
		currency:   currency,
		rates:      rates,
		watermarks: make(map[domain.PortfolioID]int64),
	}
}

// Register subscribes the bridge to the event kinds it reacts to.
func (b *NotificationBridge) Register(d *dispatch.Dispatcher) {
	d.Subscribe(domain.EventKindInvestmentAdded, "notify", b.HandleEvent)
	d.Subscribe(domain.EventKindInvestmentRemoved, "notify", b.HandleEvent)
	d.Subscribe(domain.EventKindPriceObserved, "notify", b.HandleEvent)
	d.Subscribe(domain.EventKindPortfolioDeleted, "notify", b.HandleEvent)
}

// HandleEvent reacts to one published event. Idempotent via a per-portfolio
// watermark: a redelivered portfolio event is skipped.
func (b *NotificationBridge) HandleEvent(ctx context.Context, ev domain.Event) error {
	if !ev.Portfolio().IsZero() && !b.advance(ev.Portfolio(), ev.Sequence()) {
		return nil // already notified for this event
	}

	switch e := ev.(type) {
	case domain.InvestmentAdded:
		return b.notifyPortfolio(ctx, e.Portfolio(),
			fmt.Sprintf("investment added: %s x%s", e.Symbol, e.Quantity))
	case domain.InvestmentRemoved:
		return b.notifyPortfolio(ctx, e.Portfolio(),
			fmt.Sprintf("investment removed: %s", e.InvestmentID))
	case domain.PriceObserved:
		return b.Notifier.NotifyPriceUpdate(ctx, e.Symbol, e.Price)
	case domain.PortfolioDeleted:
		b.mu.Lock()
		delete(b.watermarks, e.Portfolio())
		b.mu.Unlock()
		return b.Notifier.NotifyPortfolioUpdate(ctx, e.Portfolio(), "portfolio deleted")
	}
	return nil
}

// notifyPortfolio recomputes the valuation and sends a portfolio update. A
// valuation failure degrades to a message without a total rather than
// dropping the notification.
func (b *NotificationBridge) notifyPortfolio(ctx context.Context, id domain.PortfolioID, change string) error {
	message := change
	res, err := b.Valuation.Valuate(ctx, id, b.currency, b.rates)
	if err != nil {
		b.logger.WithField("portfolio", id).WithError(err).Warn("valuation unavailable for notification")
	} else {
		message = fmt.Sprintf("%s; total value %s", change, res.Total)
	}
	return b.Notifier.NotifyPortfolioUpdate(ctx, id, message)
}

// advance moves the watermark forward. Returns false when the sequence was
// already processed.
func (b *NotificationBridge) advance(id domain.PortfolioID, seq int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if seq <= b.watermarks[id] {
		return false
	}
	b.watermarks[id] = seq
	return true
}
