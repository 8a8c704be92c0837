// Package prices fetches quotes and daily bars from a market-data provider.
// Providers never return errors: any failure degrades to a nil quote or an
// empty series so that detail and correlation views can render "no data".
package prices

import (
	"context"

	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// Provider retrieves market data for one instrument.
type Provider interface {
	// Quote returns the latest quote, or nil on any failure.
	Quote(ctx context.Context, inst domain.Instrument) *domain.StockQuote

	// History returns exactly the last days daily bars (fewer if the
	// provider has fewer), oldest first, or an empty slice on any failure.
	History(ctx context.Context, inst domain.Instrument, days int) []domain.PriceBar
}

// RangeFor picks the coarse lookback window for a requested day count.
func RangeFor(days int) string {
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	default:
		return "3mo"
	}
}

// ohlcv is one provider row before change-percent computation. A nil Close
// marks a row with no trading data.
type ohlcv struct {
	unixSec int64
	open    float64
	high    float64
	low     float64
	close   *float64
	volume  int64
}

// buildBars converts rows to bars, skipping rows without a close. Each bar's
// change percent is measured against the previous row's close, or against
// its own open when there is no usable previous close. The result is trimmed
// to the last days bars.
func buildBars(symbol string, rows []ohlcv, days int) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, len(rows))
	for i, r := range rows {
		if r.close == nil {
			continue
		}
		prev := r.open
		if i > 0 && rows[i-1].close != nil {
			prev = *rows[i-1].close
		}
		var change float64
		if prev != 0 {
			change = (*r.close - prev) / prev * 100
		}
		bars = append(bars, domain.PriceBar{
			Symbol:        symbol,
			Date:          util.DateKey(unixTime(r.unixSec)),
			Open:          r.open,
			High:          r.high,
			Low:           r.low,
			Close:         *r.close,
			Volume:        r.volume,
			ChangePercent: change,
		})
	}
	if days > 0 && len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	return bars
}

func percentChange(price, prev float64) float64 {
	if prev == 0 {
		return 0
	}
	return (price - prev) / prev * 100
}
