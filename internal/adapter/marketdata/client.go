// Package marketdata adapts an external quote HTTP API to the core's
// market-data contract, and streams live prices over a websocket feed.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// ClientConfig holds the HTTP client settings.
type ClientConfig struct {
	// BaseURL is the root of the quote API, e.g. "https://quotes.example.com".
	BaseURL string

	// APIKey is sent as the api_token query parameter.
	APIKey string

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64

	// Timeout bounds each HTTP request in addition to the caller's context.
	Timeout time.Duration
}

// Client implements domain.MarketDataProvider against a JSON quote API. All
// calls are read-only and honor the passed context.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewClient creates a new market-data client.
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// quoteResponse is the wire form of a latest-price lookup.
type quoteResponse struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Timestamp int64           `json:"timestamp"` // unix seconds
	Source    string          `json:"source"`
}

// GetLatestPrice fetches the most recent quote for a symbol.
func (c *Client) GetLatestPrice(ctx context.Context, symbol domain.Symbol) (domain.PricePoint, error) {
	var resp quoteResponse
	path := "/v1/quote/" + url.PathEscape(symbol.String())
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return domain.PricePoint{}, err
	}

	price, err := domain.NewMoney(resp.Price, resp.Currency)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	return domain.PricePoint{
		Symbol:     symbol,
		Price:      price,
		ObservedAt: time.Unix(resp.Timestamp, 0).UTC(),
		Source:     resp.Source,
	}, nil
}

// GetHistoricalPrices fetches daily quotes between from and to inclusive.
func (c *Client) GetHistoricalPrices(ctx context.Context, symbol domain.Symbol, from, to time.Time) ([]domain.PricePoint, error) {
	var resp []quoteResponse
	path := "/v1/history/" + url.PathEscape(symbol.String())
	params := url.Values{
		"from": {from.Format("2006-01-02")},
		"to":   {to.Format("2006-01-02")},
	}
	if err := c.getJSON(ctx, path, params, &resp); err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(resp))
	for _, q := range resp {
		price, err := domain.NewMoney(q.Price, q.Currency)
		if err != nil {
			return nil, fmt.Errorf("history for %s: %w", symbol, err)
		}
		points = append(points, domain.PricePoint{
			Symbol:     symbol,
			Price:      price,
			ObservedAt: time.Unix(q.Timestamp, 0).UTC(),
			Source:     q.Source,
		})
	}
	return points, nil
}

// securityResponse is the wire form of one search hit.
type securityResponse struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// SearchSecurities looks up securities matching a free-text query.
func (c *Client) SearchSecurities(ctx context.Context, query string) ([]domain.SecurityInfo, error) {
	var resp []securityResponse
	params := url.Values{"q": {query}}
	if err := c.getJSON(ctx, "/v1/search", params, &resp); err != nil {
		return nil, err
	}

	infos := make([]domain.SecurityInfo, 0, len(resp))
	for _, hit := range resp {
		symbol, err := domain.NewSymbol(hit.Symbol, hit.Exchange)
		if err != nil {
			c.logger.WithField("symbol", hit.Symbol).WithError(err).Debug("skipping malformed search hit")
			continue
		}
		infos = append(infos, domain.SecurityInfo{
			Symbol:   symbol,
			Name:     hit.Name,
			Type:     hit.Type,
			Currency: hit.Currency,
		})
	}
	return infos, nil
}

// getJSON performs a throttled GET and unmarshals the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	if c.cfg.APIKey != "" {
		params.Set("api_token", c.cfg.APIKey)
	}
	addr := c.cfg.BaseURL + path
	if len(params) > 0 {
		addr += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %s%s: %s", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
