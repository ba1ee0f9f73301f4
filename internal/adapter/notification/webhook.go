// Package notification adapts the core's notification contract to an HTTP
// webhook. Delivery is fire-and-forget from the core's viewpoint; failures
// are logged, never retried here.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// WebhookNotifier implements domain.Notifier by POSTing JSON payloads to a
// configured endpoint.
type WebhookNotifier struct {
	url    string
	http   *http.Client
	logger *logrus.Logger
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(url string, timeout time.Duration, logger *logrus.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// NotifyPortfolioUpdate posts a portfolio-update payload.
func (n *WebhookNotifier) NotifyPortfolioUpdate(ctx context.Context, id domain.PortfolioID, message string) error {
	return n.post(ctx, map[string]any{
		"type":      "portfolio_update",
		"portfolio": id.String(),
		"message":   message,
	})
}

// NotifyPriceUpdate posts a price-update payload.
func (n *WebhookNotifier) NotifyPriceUpdate(ctx context.Context, symbol domain.Symbol, price domain.Money) error {
	return n.post(ctx, map[string]any{
		"type":     "price_update",
		"symbol":   symbol.String(),
		"price":    price.Amount,
		"currency": price.Currency,
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.logger.WithError(err).Warn("notification delivery failed")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		err := fmt.Errorf("notification endpoint returned %s", resp.Status)
		n.logger.WithField("status", resp.Status).Warn("notification rejected")
		return err
	}
	return nil
}
