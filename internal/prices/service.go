package prices

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/registry"
	"metalpulse/internal/store"
	"metalpulse/internal/util"
)

// DetailDays is the price history length of the instrument detail view.
const DetailDays = 30

// NewProvider builds the provider named in cfg.
func NewProvider(cfg config.MarketData, log *slog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "", "yahoo":
		return NewYahooProvider(cfg, log), nil
	case "alpaca":
		return NewAlpacaProvider(cfg.Alpaca, log), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.Provider)
	}
}

// Service fetches market data for registry instruments and writes it
// through to the price cache document.
type Service struct {
	provider   Provider
	reg        *registry.Registry
	cache      store.PriceStore
	quoteDelay time.Duration
	log        *slog.Logger
	now        func() time.Time

	// mu serializes load-modify-save cycles of the price cache.
	mu sync.Mutex
}

// NewService creates a Service. cache may be nil to disable write-through.
func NewService(p Provider, reg *registry.Registry, cache store.PriceStore, quoteDelay time.Duration, log *slog.Logger) *Service {
	return &Service{
		provider:   p,
		reg:        reg,
		cache:      cache,
		quoteDelay: quoteDelay,
		log:        util.OrDiscard(log).With("component", "prices"),
		now:        time.Now,
	}
}

// Quotes fetches the latest quote of every instrument sequentially, pausing
// between requests. Instruments whose quote failed are absent from the map.
func (s *Service) Quotes(ctx context.Context) map[string]*domain.StockQuote {
	out := make(map[string]*domain.StockQuote, s.reg.Len())
	pacer := util.NewPacer(s.quoteDelay)

	for _, inst := range s.reg.All() {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		if q := s.provider.Quote(ctx, inst); q != nil {
			out[inst.Symbol] = q
			s.log.Debug("quote", "symbol", inst.Symbol, "price", q.CurrentPrice)
		}
	}

	s.update(ctx, func(c *domain.PriceCache) {
		for sym, q := range out {
			entryFor(c, sym).CurrentQuote = q
		}
	})
	return out
}

// Detail fetches the quote and the DetailDays history of inst concurrently.
func (s *Service) Detail(ctx context.Context, inst domain.Instrument) (*domain.StockQuote, []domain.PriceBar) {
	var (
		quote *domain.StockQuote
		bars  []domain.PriceBar
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quote = s.provider.Quote(gctx, inst)
		return nil
	})
	g.Go(func() error {
		bars = s.provider.History(gctx, inst, DetailDays)
		return nil
	})
	_ = g.Wait()

	s.update(ctx, func(c *domain.PriceCache) {
		e := entryFor(c, inst.Symbol)
		if quote != nil {
			e.CurrentQuote = quote
		}
		if len(bars) > 0 {
			e.History = bars
		}
	})
	return quote, bars
}

// History returns the last days bars of inst without caching them.
func (s *Service) History(ctx context.Context, inst domain.Instrument, days int) []domain.PriceBar {
	return s.provider.History(ctx, inst, days)
}

// Cached returns the price cache document.
func (s *Service) Cached(ctx context.Context) (*domain.PriceCache, error) {
	if s.cache == nil {
		return domain.NewPriceCache(s.now()), nil
	}
	return s.cache.LoadPrices(ctx)
}

// update applies fn to the cached document and saves it. Failures are
// logged; the live response does not depend on the cache.
func (s *Service) update(ctx context.Context, fn func(*domain.PriceCache)) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.cache.LoadPrices(ctx)
	if err != nil {
		s.log.Warn("load price cache", "error", err)
		return
	}
	fn(c)
	c.LastUpdated = s.now().UTC()
	if err := s.cache.SavePrices(ctx, c); err != nil {
		s.log.Warn("save price cache", "error", err)
	}
}

func entryFor(c *domain.PriceCache, symbol string) *domain.StockPrices {
	e := c.Stocks[symbol]
	if e == nil {
		e = &domain.StockPrices{History: []domain.PriceBar{}}
		c.Stocks[symbol] = e
	}
	return e
}
