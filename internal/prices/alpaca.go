package prices

import (
	"context"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// alpacaAPI is the subset of the Alpaca market data client used here.
type alpacaAPI interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
	GetSnapshot(symbol string, req marketdata.GetSnapshotRequest) (*marketdata.Snapshot, error)
}

// AlpacaProvider serves quotes and daily bars from the Alpaca market data
// API. Instruments are looked up by their market symbol.
type AlpacaProvider struct {
	client alpacaAPI
	log    *slog.Logger
	now    func() time.Time
}

var _ Provider = (*AlpacaProvider)(nil)

// NewAlpacaProvider creates an AlpacaProvider with the configured
// credentials.
func NewAlpacaProvider(cfg config.Alpaca, log *slog.Logger) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return &AlpacaProvider{
		client: marketdata.NewClient(opts),
		log:    util.OrDiscard(log).With("component", "prices", "provider", "alpaca"),
		now:    time.Now,
	}
}

// Quote implements Provider using the latest trade and the daily bars of
// the snapshot.
func (p *AlpacaProvider) Quote(ctx context.Context, inst domain.Instrument) *domain.StockQuote {
	if ctx.Err() != nil {
		return nil
	}
	snap, err := p.client.GetSnapshot(inst.MarketSymbol, marketdata.GetSnapshotRequest{})
	if err != nil || snap == nil {
		p.log.Warn("snapshot failed", "symbol", inst.MarketSymbol, "error", err)
		return nil
	}

	q := &domain.StockQuote{Symbol: inst.MarketSymbol, Timestamp: p.now().UTC()}
	if snap.DailyBar != nil {
		q.CurrentPrice = snap.DailyBar.Close
		q.DayHigh = snap.DailyBar.High
		q.DayLow = snap.DailyBar.Low
		q.Volume = int64(snap.DailyBar.Volume)
	}
	if snap.LatestTrade != nil && snap.LatestTrade.Price > 0 {
		q.CurrentPrice = snap.LatestTrade.Price
	}
	if snap.PrevDailyBar != nil {
		q.PreviousClose = snap.PrevDailyBar.Close
	}
	if q.CurrentPrice == 0 {
		p.log.Warn("snapshot has no price", "symbol", inst.MarketSymbol)
		return nil
	}
	q.ChangePercent = percentChange(q.CurrentPrice, q.PreviousClose)
	return q
}

// History implements Provider. The lookback is widened to the same coarse
// window the chart provider uses so weekends and holidays are covered.
func (p *AlpacaProvider) History(ctx context.Context, inst domain.Instrument, days int) []domain.PriceBar {
	if days <= 0 || ctx.Err() != nil {
		return []domain.PriceBar{}
	}
	end := p.now().UTC()
	start := end.AddDate(0, 0, -lookbackDays(RangeFor(days)))

	bars, err := p.client.GetBars(inst.MarketSymbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		p.log.Warn("bars failed", "symbol", inst.MarketSymbol, "error", err)
		return []domain.PriceBar{}
	}

	rows := make([]ohlcv, len(bars))
	for i, b := range bars {
		c := b.Close
		rows[i] = ohlcv{
			unixSec: b.Timestamp.Unix(),
			open:    b.Open,
			high:    b.High,
			low:     b.Low,
			close:   &c,
			volume:  int64(b.Volume),
		}
	}
	return buildBars(inst.MarketSymbol, rows, days)
}

// lookbackDays converts a coarse range to calendar days.
func lookbackDays(rng string) int {
	switch rng {
	case "5d":
		return 7
	case "1mo":
		return 31
	default:
		return 92
	}
}
