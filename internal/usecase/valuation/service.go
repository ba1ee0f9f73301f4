package valuation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/dispatch"
	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// Config controls price freshness and external-call bounds.
type Config struct {
	// MaxPriceAge is how old a cached observation may be before the provider
	// is consulted again.
	MaxPriceAge time.Duration

	// LookupTimeout bounds each call into the market-data provider.
	LookupTimeout time.Duration
}

// HoldingValue is the valuation of a single position.
type HoldingValue struct {
	InvestmentID domain.InvestmentID
	Symbol       domain.Symbol
	Quantity     decimal.Decimal
	Price        domain.Money // per unit, in the price's native currency
	Value        domain.Money // in the requested currency when Converted
	Converted    bool
	PriceAsOf    time.Time
}

// Result is a derived valuation. Never persisted as a source fact: always
// recomputable from aggregate state plus latest prices. Warnings carry
// derivation problems (stale price, missing rate); the result is still a
// best-effort value.
type Result struct {
	PortfolioID domain.PortfolioID
	Holdings    []HoldingValue
	Total       domain.Money
	AsOf        time.Time
	Warnings    []string
}

// ValuationService maintains derived, eventually-consistent valuations. It
// subscribes to portfolio events, keeps a per-portfolio replica of aggregate
// state folded with domain.Apply, and owns the shared symbol price cache.
type ValuationService struct {
	MarketData domain.MarketDataProvider
	EventLog   domain.EventLog
	Cache      *PriceCache

	logger *logrus.Logger
	cfg    Config

	mu       sync.RWMutex
	replicas map[domain.PortfolioID]domain.Portfolio
	results  map[domain.PortfolioID]Result
}

// NewValuationService creates a new ValuationService instance. The event log
// is used only to bootstrap a replica the first time a portfolio is seen.
func NewValuationService(marketData domain.MarketDataProvider, eventLog domain.EventLog, logger *logrus.Logger, cfg Config) *ValuationService {
	return &ValuationService{
		MarketData: marketData,
		EventLog:   eventLog,
		Cache:      NewPriceCache(),
		logger:     logger,
		cfg:        cfg,
		replicas:   make(map[domain.PortfolioID]domain.Portfolio),
		results:    make(map[domain.PortfolioID]Result),
	}
}

// Register subscribes the service to every event kind it projects.
func (s *ValuationService) Register(d *dispatch.Dispatcher) {
	for _, kind := range []domain.EventKind{
		domain.EventKindInvestmentAdded,
		domain.EventKindInvestmentRemoved,
		domain.EventKindPriceObserved,
		domain.EventKindPortfolioDeleted,
	} {
		d.Subscribe(kind, "valuation", s.HandleEvent)
	}
}

// HandleEvent folds one published event into the projection's state.
// Idempotent: the replica's last applied sequence is the watermark, and an
// event at or below it is skipped, so redelivery is a no-op.
func (s *ValuationService) HandleEvent(ctx context.Context, ev domain.Event) error {
	if po, ok := ev.(domain.PriceObserved); ok {
		s.observePrice(po)
		if po.Portfolio().IsZero() {
			// Market-scoped observation: no portfolio log entry to fold.
			return nil
		}
	}

	id := ev.Portfolio()

	s.mu.Lock()
	defer s.mu.Unlock()

	replica, ok := s.replicas[id]
	if !ok {
		loaded, err := s.bootstrap(ctx, id)
		if err != nil {
			return err
		}
		replica = loaded
	}

	if ev.Sequence() <= replica.LastSequence {
		return nil // already processed
	}

	next, err := domain.Apply(replica, ev)
	if err != nil {
		return fmt.Errorf("valuation projection: %w", err)
	}

	if next.Deleted {
		// Tombstone: drop derived state. The price cache survives, it is
		// market-scoped.
		delete(s.replicas, id)
		delete(s.results, id)
		return nil
	}

	s.replicas[id] = next
	return nil
}

// observePrice records the observation in the shared cache, last-writer-wins
// by observation time.
func (s *ValuationService) observePrice(po domain.PriceObserved) {
	accepted := s.Cache.Put(domain.PricePoint{
		Symbol:     po.Symbol,
		Price:      po.Price,
		ObservedAt: po.ObservedAt,
		Source:     po.Source,
	})
	if !accepted {
		s.logger.WithFields(logrus.Fields{
			"symbol":      po.Symbol,
			"observed_at": po.ObservedAt,
		}).Debug("discarded stale price observation")
	}
}

// bootstrap rebuilds a replica from the event log. Caller holds s.mu.
func (s *ValuationService) bootstrap(ctx context.Context, id domain.PortfolioID) (domain.Portfolio, error) {
	events, err := s.EventLog.LoadFrom(ctx, id, 0)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("bootstrap portfolio %s: %w", id, err)
	}
	replica, err := domain.Load(id, events)
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("bootstrap portfolio %s: %w", id, err)
	}
	s.replicas[id] = replica
	return replica, nil
}

// Valuate computes the portfolio's current value in the requested currency.
// Cross-currency totals use the supplied rate table; a missing pair is
// reported as a warning and the holding stays unconverted, excluded from the
// total. Market-data failures degrade to the last known price with a
// warning. Cancellation of ctx returns ctx.Err() with cached state untouched.
//
// Aggregate state is snapshotted before any external call; no lock is held
// while a lookup is in flight. After the calls the watermark is re-checked:
// on conflict the valuation is recomputed once more, then returned even if
// momentarily stale.
func (s *ValuationService) Valuate(ctx context.Context, id domain.PortfolioID, currency string, rates domain.RateTable) (Result, error) {
	snap, version, err := s.snapshot(ctx, id)
	if err != nil {
		return Result{}, err
	}

	res, err := s.compute(ctx, snap, currency, rates)
	if err != nil {
		return Result{}, err
	}

	// Optimistic concurrency: recompute once if a newer event arrived while
	// lookups were in flight.
	if current, changed := s.version(id, version); changed {
		snap = current
		res, err = s.compute(ctx, snap, currency, rates)
		if err != nil {
			return Result{}, err
		}
	}

	s.mu.Lock()
	s.results[id] = res
	s.mu.Unlock()
	return res, nil
}

// Latest returns the most recently computed valuation for a portfolio.
func (s *ValuationService) Latest(id domain.PortfolioID) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[id]
	return res, ok
}

// snapshot reads the replica, bootstrapping it on first access.
func (s *ValuationService) snapshot(ctx context.Context, id domain.PortfolioID) (domain.Portfolio, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replica, ok := s.replicas[id]
	if !ok {
		loaded, err := s.bootstrap(ctx, id)
		if err != nil {
			return domain.Portfolio{}, 0, err
		}
		replica = loaded
	}
	return replica, replica.LastSequence, nil
}

// version re-reads the replica and reports whether it moved past the given
// watermark.
func (s *ValuationService) version(id domain.PortfolioID, seen int64) (domain.Portfolio, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	replica, ok := s.replicas[id]
	if !ok {
		return domain.Portfolio{}, false
	}
	return replica, replica.LastSequence != seen
}

// compute values every holding in the snapshot. Pure over the snapshot aside
// from price-cache reads/refreshes; it never touches replica state.
func (s *ValuationService) compute(ctx context.Context, snap domain.Portfolio, currency string, rates domain.RateTable) (Result, error) {
	now := time.Now()
	res := Result{
		PortfolioID: snap.ID,
		Total:       domain.Money{Amount: decimal.Zero, Currency: currency},
		AsOf:        now,
	}

	holdings := make([]domain.Holding, 0, len(snap.Holdings))
	for _, h := range snap.Holdings {
		holdings = append(holdings, h)
	}
	sort.Slice(holdings, func(i, j int) bool {
		if holdings[i].Symbol != holdings[j].Symbol {
			return holdings[i].Symbol.String() < holdings[j].Symbol.String()
		}
		return holdings[i].InvestmentID.String() < holdings[j].InvestmentID.String()
	})

	for _, h := range holdings {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		price, asOf, warn := s.resolvePrice(ctx, h, now)
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}
		// Cancellation is never degraded; the caller asked to stop.
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		hv := HoldingValue{
			InvestmentID: h.InvestmentID,
			Symbol:       h.Symbol,
			Quantity:     h.Quantity,
			Price:        price,
			Value:        price.MulQuantity(h.Quantity),
			PriceAsOf:    asOf,
		}

		converted, err := rates.Convert(hv.Value, currency)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", h.Symbol, err))
		} else {
			hv.Value = converted
			hv.Converted = true
			total, err := res.Total.Add(converted)
			if err != nil {
				return Result{}, err
			}
			res.Total = total
		}
		res.Holdings = append(res.Holdings, hv)
	}
	return res, nil
}

// resolvePrice picks the price for a holding: fresh cache entry first, then a
// bounded provider lookup, then last known price (cached stale entry or the
// holding's own latest price, which defaults to cost until observed).
func (s *ValuationService) resolvePrice(ctx context.Context, h domain.Holding, now time.Time) (domain.Money, time.Time, string) {
	cached, fresh := s.Cache.Fresh(h.Symbol, s.cfg.MaxPriceAge, now)
	if fresh {
		return cached.Price, cached.ObservedAt, ""
	}

	lookupCtx := ctx
	if s.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, s.cfg.LookupTimeout)
		defer cancel()
	}

	point, err := s.MarketData.GetLatestPrice(lookupCtx, h.Symbol)
	if err == nil {
		s.Cache.Put(point)
		return point.Price, point.ObservedAt, ""
	}
	if ctx.Err() != nil {
		// Parent cancelled: compute will surface ctx.Err(); no warning needed.
		return h.LatestPrice, h.PriceSeenAt, ""
	}

	s.logger.WithFields(logrus.Fields{
		"investment": h.InvestmentID,
		"symbol":     h.Symbol,
	}).WithError(err).Warn("market data lookup failed, falling back to last known price")

	if !cached.Price.IsZero() || !cached.ObservedAt.IsZero() {
		return cached.Price, cached.ObservedAt,
			fmt.Sprintf("%s: stale price as of %s: %v", h.Symbol, cached.ObservedAt.Format(time.RFC3339), err)
	}
	return h.LatestPrice, h.PriceSeenAt,
		fmt.Sprintf("%s: no observed price, using cost basis: %v", h.Symbol, err)
}
