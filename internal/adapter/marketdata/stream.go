package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/dispatch"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// StreamConfig holds the websocket feed settings.
type StreamConfig struct {
	// URL is the websocket endpoint of the price feed.
	URL string

	// Symbols are the subscriptions sent after connecting.
	Symbols []string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration

	// ReconnectDelay is the initial backoff after a dropped connection; it
	// doubles up to ReconnectMax.
	ReconnectDelay time.Duration
	ReconnectMax   time.Duration

	// Source labels the PriceObserved events emitted from this feed.
	Source string
}

// Stream consumes a live price feed and publishes market-scoped
// PriceObserved events on the dispatcher, where the valuation projection's
// price cache picks them up.
type Stream struct {
	cfg        StreamConfig
	dispatcher *dispatch.Dispatcher
	logger     *logrus.Logger
}

// NewStream creates a new price-feed stream.
func NewStream(cfg StreamConfig, dispatcher *dispatch.Dispatcher, logger *logrus.Logger) *Stream {
	return &Stream{cfg: cfg, dispatcher: dispatcher, logger: logger}
}

// tick is the wire form of one feed message.
type tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Timestamp int64           `json:"timestamp"` // unix millis
}

// Run consumes the feed until the context is cancelled, reconnecting with
// exponential backoff on connection loss.
func (s *Stream) Run(ctx context.Context) error {
	delay := s.cfg.ReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.consume(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.WithError(err).WithField("retry_in", delay).Warn("price feed disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > s.cfg.ReconnectMax {
			delay = s.cfg.ReconnectMax
		}
	}
}

// consume runs one connection: dial, subscribe, then read ticks until the
// connection drops or the context is cancelled.
func (s *Stream) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{"action": "subscribe", "symbols": s.cfg.Symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.logger.WithField("symbols", len(s.cfg.Symbols)).Info("price feed connected")

	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(ctx, message)
	}
}

// handleMessage translates one tick into a market-scoped PriceObserved. A
// malformed tick is logged and dropped; it never stops the feed.
func (s *Stream) handleMessage(ctx context.Context, message []byte) {
	var t tick
	if err := json.Unmarshal(message, &t); err != nil {
		s.logger.WithError(err).Debug("dropping malformed tick")
		return
	}

	symbol, err := domain.ParseSymbol(t.Symbol)
	if err != nil {
		s.logger.WithField("symbol", t.Symbol).WithError(err).Debug("dropping tick with unknown symbol")
		return
	}
	price, err := domain.NewMoney(t.Price, t.Currency)
	if err != nil {
		s.logger.WithField("symbol", t.Symbol).WithError(err).Debug("dropping tick with bad currency")
		return
	}

	ev := domain.PriceObserved{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.UnixMilli(t.Timestamp).UTC(),
		Source:     s.cfg.Source,
	}
	s.dispatcher.Publish(ctx, ev)
}
