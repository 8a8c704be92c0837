// Package news fetches per-instrument headlines from the Google News RSS
// search endpoint and normalises them into domain.NewsItem values.
package news

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// Source yields recent news for a set of instruments.
type Source interface {
	FetchAll(ctx context.Context, instruments []domain.Instrument) map[string][]domain.NewsItem
}

// Fetcher queries the RSS search endpoint one search term at a time.
type Fetcher struct {
	cfg    config.News
	client *http.Client
	log    *slog.Logger
	now    func() time.Time
}

var _ Source = (*Fetcher)(nil)

// NewFetcher creates a Fetcher. A nil logger discards output.
func NewFetcher(cfg config.News, log *slog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    util.OrDiscard(log).With("component", "news"),
		now:    time.Now,
	}
}

// feedURL builds the search URL for one term.
func (f *Fetcher) feedURL(term string) string {
	q := url.Values{}
	query := term
	if f.cfg.QuerySuffix != "" {
		query += " " + f.cfg.QuerySuffix
	}
	q.Set("q", query)
	if f.cfg.Language != "" {
		q.Set("hl", f.cfg.Language)
	}
	if f.cfg.Region != "" {
		q.Set("gl", f.cfg.Region)
	}
	if f.cfg.Edition != "" {
		q.Set("ceid", f.cfg.Edition)
	}
	return f.cfg.BaseURL + "?" + q.Encode()
}

// fetchTerm downloads and parses the feed for a single search term.
func (f *Fetcher) fetchTerm(ctx context.Context, inst domain.Instrument, term string) ([]domain.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL(term), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status: %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.NewsItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, f.normalize(inst, it))
	}
	return items, nil
}

func (f *Fetcher) normalize(inst domain.Instrument, it *gofeed.Item) domain.NewsItem {
	pub := f.now().UTC()
	if it.PublishedParsed != nil {
		pub = it.PublishedParsed.UTC()
	}
	desc := it.Description
	if desc == "" {
		desc = it.Content
	}
	title, source := splitSource(it.Title)
	return domain.NewsItem{
		ID:          newsID(it.Link, it.Published),
		Title:       title,
		Description: cleanDescription(desc),
		Link:        it.Link,
		PubDate:     pub,
		Source:      source,
		StockSymbol: inst.Symbol,
	}
}

// FetchForInstrument queries every search term of inst sequentially with the
// configured inter-term delay. A failing term is logged and skipped. The
// result is deduplicated by id and sorted newest first. The only error
// returned is context cancellation.
func (f *Fetcher) FetchForInstrument(ctx context.Context, inst domain.Instrument) ([]domain.NewsItem, error) {
	pacer := util.NewPacer(f.cfg.TermDelay)

	var all []domain.NewsItem
	for _, term := range inst.SearchTerms {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		items, err := f.fetchTerm(ctx, inst, term)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn("search term failed", "symbol", inst.Symbol, "term", term, "error", err)
			continue
		}
		all = append(all, items...)
	}

	return dedupeAndSort(all), nil
}

// FetchAll fetches news for each instrument in order, pausing between
// instruments. An instrument whose fetch fails maps to an empty list.
func (f *Fetcher) FetchAll(ctx context.Context, instruments []domain.Instrument) map[string][]domain.NewsItem {
	out := make(map[string][]domain.NewsItem, len(instruments))
	pacer := util.NewPacer(f.cfg.InstrumentDelay)

	for i, inst := range instruments {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		f.log.Info("fetching news", "symbol", inst.Symbol, "n", i+1, "of", len(instruments))

		items, err := f.FetchForInstrument(ctx, inst)
		if err != nil {
			f.log.Error("fetch failed", "symbol", inst.Symbol, "error", err)
			out[inst.Symbol] = []domain.NewsItem{}
			continue
		}
		f.log.Info("fetched news", "symbol", inst.Symbol, "items", len(items))
		out[inst.Symbol] = items
	}
	return out
}

// FilterRecent keeps items published within the last days days of now.
func FilterRecent(items []domain.NewsItem, days int, now time.Time) []domain.NewsItem {
	cutoff := util.DaysBefore(now, days)
	out := make([]domain.NewsItem, 0, len(items))
	for _, it := range items {
		if !it.PubDate.Before(cutoff) {
			out = append(out, it)
		}
	}
	return out
}

// dedupeAndSort collapses items sharing an id (the last one seen replaces
// earlier ones in place) and sorts newest first.
func dedupeAndSort(items []domain.NewsItem) []domain.NewsItem {
	pos := make(map[string]int, len(items))
	out := make([]domain.NewsItem, 0, len(items))
	for _, it := range items {
		if i, ok := pos[it.ID]; ok {
			out[i] = it
			continue
		}
		pos[it.ID] = len(out)
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PubDate.After(out[j].PubDate)
	})
	return out
}

// newsID is the md5 of the link concatenated with the raw publish date.
func newsID(link, pubDate string) string {
	sum := md5.Sum([]byte(link + pubDate))
	return hex.EncodeToString(sum[:])
}
