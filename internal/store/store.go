// Package store persists the sentiment history, news cache and price cache
// documents, and archives scored news by publish date.
package store

import (
	"context"
	"sort"
	"time"

	"metalpulse/internal/domain"
)

// HistoryStore persists the rolling sentiment history.
type HistoryStore interface {
	// LoadHistory returns the whole document. A store with no data yet
	// returns an empty, well-formed document.
	LoadHistory(ctx context.Context) (*domain.SentimentHistory, error)

	// SaveHistory overwrites the whole document.
	SaveHistory(ctx context.Context, h *domain.SentimentHistory) error

	// AppendDataPoint sets dp as the symbol's current sentiment and inserts
	// or replaces the entry for dp.Date in its history.
	AppendDataPoint(ctx context.Context, symbol string, dp domain.SentimentDataPoint) error
}

// NewsStore persists the per-symbol scored news cache.
type NewsStore interface {
	LoadNews(ctx context.Context) (*domain.NewsCache, error)
	SaveNews(ctx context.Context, c *domain.NewsCache) error
}

// PriceStore persists the per-symbol price cache.
type PriceStore interface {
	LoadPrices(ctx context.Context) (*domain.PriceCache, error)
	SavePrices(ctx context.Context, c *domain.PriceCache) error
}

// ApplyDataPoint applies the append-or-replace rule to h in memory: the
// symbol's entry is created if needed, current is replaced, the history entry
// for the same date is replaced or a new one inserted, the history is kept in
// date order and trimmed to the maxEntries most recent dates.
func ApplyDataPoint(h *domain.SentimentHistory, symbol string, dp domain.SentimentDataPoint, maxEntries int, now time.Time) {
	if h.Stocks == nil {
		h.Stocks = make(map[string]*domain.StockSentiment)
	}
	entry := h.Stocks[symbol]
	if entry == nil {
		entry = &domain.StockSentiment{History: []domain.SentimentDataPoint{}}
		h.Stocks[symbol] = entry
	}
	entry.CurrentSentiment = dp

	replaced := false
	for i := range entry.History {
		if entry.History[i].Date == dp.Date {
			entry.History[i] = dp
			replaced = true
			break
		}
	}
	if !replaced {
		entry.History = append(entry.History, dp)
		sort.SliceStable(entry.History, func(i, j int) bool {
			return entry.History[i].Date < entry.History[j].Date
		})
	}

	if maxEntries > 0 && len(entry.History) > maxEntries {
		entry.History = append([]domain.SentimentDataPoint(nil), entry.History[len(entry.History)-maxEntries:]...)
	}
	h.LastUpdated = now
}
