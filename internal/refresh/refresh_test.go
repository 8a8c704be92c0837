package refresh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metalpulse/internal/domain"
	"metalpulse/internal/registry"
	"metalpulse/internal/sentiment"
	"metalpulse/internal/store"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	news    map[string][]domain.NewsItem
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSource) FetchAll(ctx context.Context, _ []domain.Instrument) map[string][]domain.NewsItem {
	if f.block != nil {
		close(f.entered)
		<-f.block
	}
	return f.news
}

// fakeScorer marks titles starting with "up" positive and "down" negative,
// spending one quota unit per item.
type fakeScorer struct {
	quota *sentiment.Quota
	mu    sync.Mutex
	calls int
}

func (f *fakeScorer) ScoreBatch(_ context.Context, items []domain.NewsItem) []domain.ScoredNews {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ScoredNews, len(items))
	for i, it := range items {
		f.calls++
		f.quota.Record()
		res := domain.Neutral()
		switch {
		case strings.HasPrefix(it.Title, "up"):
			res = domain.SentimentResult{Label: domain.LabelPositive, Score: 0.9, Confidence: 0.9}
		case strings.HasPrefix(it.Title, "down"):
			res = domain.SentimentResult{Label: domain.LabelNegative, Score: -0.8, Confidence: 0.8}
		}
		out[i] = domain.ScoredNews{NewsItem: it, Sentiment: res}
	}
	return out
}

type fakeArchive struct {
	written []domain.ScoredNews
}

func (f *fakeArchive) Write(_ context.Context, items []domain.ScoredNews) error {
	f.written = append(f.written, items...)
	return nil
}

type recordingObserver struct {
	started  []string
	finished []Summary
}

func (r *recordingObserver) RefreshStarted(id string)            { r.started = append(r.started, id) }
func (r *recordingObserver) RefreshFinished(id string, s Summary) { r.finished = append(r.finished, s) }

// failingHistory fails appends for one symbol.
type failingHistory struct {
	store.HistoryStore
	symbol string
}

func (f *failingHistory) AppendDataPoint(ctx context.Context, symbol string, dp domain.SentimentDataPoint) error {
	if symbol == f.symbol {
		return errors.New("disk full")
	}
	return f.HistoryStore.AppendDataPoint(ctx, symbol, dp)
}

func item(symbol, title string, at time.Time) domain.NewsItem {
	return domain.NewsItem{ID: fmt.Sprintf("%s-%s-%d", symbol, title, at.Unix()), Title: title, StockSymbol: symbol, PubDate: at}
}

func testOptions() Options {
	return Options{APIKey: "hf_test", MaxRequests: 500, RecentDays: 7, PerDateItems: 5, DisplayItems: 15, CacheItems: 20}
}

type harness struct {
	orch     *Orchestrator
	json     *store.JSONStore
	scorer   *fakeScorer
	archive  *fakeArchive
	observer *recordingObserver
}

func newHarness(t *testing.T, src *fakeSource, history store.HistoryStore, reg *registry.Registry) *harness {
	t.Helper()
	js := store.NewJSONStore(t.TempDir(), 30, nil)
	if history == nil {
		history = js
	}
	h := &harness{json: js, archive: &fakeArchive{}, observer: &recordingObserver{}}
	h.orch = New(Deps{
		Registry: reg,
		Source:   src,
		History:  history,
		News:     js,
		Archive:  h.archive,
		NewScorer: func(q *sentiment.Quota) sentiment.Scorer {
			h.scorer = &fakeScorer{quota: q}
			return h.scorer
		},
		Observers: []Observer{h.observer},
	}, testOptions(), nil)
	h.orch.now = func() time.Time { return now }
	return h
}

func twoStocks() *registry.Registry {
	return registry.New([]domain.Instrument{
		{Symbol: "SAIL", Name: "SAIL"},
		{Symbol: "NMDC", Name: "NMDC"},
	})
}

func TestRunMissingAPIKey(t *testing.T) {
	h := newHarness(t, &fakeSource{}, nil, twoStocks())
	h.orch.opts.APIKey = ""

	_, err := h.orch.Run(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
	require.Empty(t, h.observer.started)
}

func TestRunPipeline(t *testing.T) {
	today := now.Add(-time.Hour)
	yesterday := now.AddDate(0, 0, -1)
	threeDays := now.AddDate(0, 0, -3)
	stale := now.AddDate(0, 0, -10)

	sail := []domain.NewsItem{
		item("SAIL", "up today", today),
		item("SAIL", "down today", today.Add(-time.Minute)),
		item("SAIL", "yesterday", yesterday),
	}
	for i := 0; i < 6; i++ {
		sail = append(sail, item("SAIL", fmt.Sprintf("up %d", i), threeDays.Add(-time.Duration(i)*time.Minute)))
	}
	sail = append(sail, item("SAIL", "stale", stale))

	src := &fakeSource{news: map[string][]domain.NewsItem{"SAIL": sail, "NMDC": {item("NMDC", "old", stale)}}}
	h := newHarness(t, src, nil, twoStocks())
	ctx := context.Background()

	// Yesterday is already known and must be skipped.
	yesterdayKey := yesterday.Format("2006-01-02")
	require.NoError(t, h.json.AppendDataPoint(ctx, "SAIL", domain.SentimentDataPoint{Date: yesterdayKey, StockSymbol: "SAIL", AverageSentiment: 0.42}))

	sum, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, sum.RunID)
	require.Equal(t, []string{"SAIL"}, sum.Processed)
	require.Equal(t, 2, sum.DatesProcessed)
	require.Equal(t, 1, sum.DatesSkipped)
	require.Empty(t, sum.Errors)

	// 2 (today) + 5 (capped three-days-ago) + 9 display items.
	require.Equal(t, 16, h.scorer.calls)
	require.Equal(t, 16, sum.RequestsUsed)
	require.Equal(t, 16, h.orch.RequestCount())

	hist, err := h.json.LoadHistory(ctx)
	require.NoError(t, err)
	entry := hist.Stocks["SAIL"]
	require.Len(t, entry.History, 3)
	require.Equal(t, threeDays.Format("2006-01-02"), entry.History[0].Date)
	require.Equal(t, 5, entry.History[0].NewsCount)
	require.Equal(t, domain.Bullish, entry.History[0].SentimentLabel)
	require.InDelta(t, 0.42, entry.History[1].AverageSentiment, 1e-9, "skipped date untouched")
	require.Equal(t, "2024-06-15", entry.CurrentSentiment.Date, "current ends on the newest date")
	require.Nil(t, hist.Stocks["NMDC"])

	cache, err := h.json.LoadNews(ctx)
	require.NoError(t, err)
	require.Len(t, cache.Stocks["SAIL"].News, 9)
	require.Equal(t, domain.LabelPositive, cache.Stocks["SAIL"].News[0].Sentiment.Label)
	require.Nil(t, cache.Stocks["NMDC"])
	require.True(t, cache.LastUpdated.Equal(now))

	require.Len(t, h.archive.written, 9)
	require.Len(t, h.observer.started, 1)
	require.Len(t, h.observer.finished, 1)
	require.Equal(t, sum.RunID, h.observer.finished[0].RunID)
	require.False(t, h.orch.Running())
}

func TestRunReprocessesToday(t *testing.T) {
	src := &fakeSource{news: map[string][]domain.NewsItem{
		"SAIL": {item("SAIL", "down again", now.Add(-time.Hour))},
	}}
	h := newHarness(t, src, nil, twoStocks())
	ctx := context.Background()
	require.NoError(t, h.json.AppendDataPoint(ctx, "SAIL", domain.SentimentDataPoint{Date: "2024-06-15", StockSymbol: "SAIL", AverageSentiment: 0.5}))

	sum, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sum.DatesProcessed)
	require.Equal(t, 0, sum.DatesSkipped)

	hist, _ := h.json.LoadHistory(ctx)
	require.Len(t, hist.Stocks["SAIL"].History, 1)
	require.Equal(t, domain.Bearish, hist.Stocks["SAIL"].History[0].SentimentLabel)
}

func TestRunCachesUnscoredTailAsNeutral(t *testing.T) {
	var items []domain.NewsItem
	for i := 0; i < 25; i++ {
		items = append(items, item("SAIL", fmt.Sprintf("up %02d", i), now.Add(-time.Duration(i)*time.Minute)))
	}
	h := newHarness(t, &fakeSource{news: map[string][]domain.NewsItem{"SAIL": items}}, nil, twoStocks())

	_, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	cache, _ := h.json.LoadNews(context.Background())
	cached := cache.Stocks["SAIL"].News
	require.Len(t, cached, 20)
	for i, n := range cached {
		if i < 15 {
			require.Equal(t, domain.LabelPositive, n.Sentiment.Label, "item %d", i)
		} else {
			require.Equal(t, domain.Neutral(), n.Sentiment, "item %d", i)
		}
	}
}

func TestRunCollectsInstrumentErrors(t *testing.T) {
	src := &fakeSource{news: map[string][]domain.NewsItem{
		"SAIL": {item("SAIL", "up", now.Add(-time.Hour))},
		"NMDC": {item("NMDC", "up", now.Add(-time.Hour))},
	}}
	js := store.NewJSONStore(t.TempDir(), 30, nil)
	h := newHarness(t, src, &failingHistory{HistoryStore: js, symbol: "SAIL"}, twoStocks())

	sum, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"NMDC"}, sum.Processed)
	require.Len(t, sum.Errors, 1)
	require.Equal(t, "SAIL", sum.Errors[0].Symbol)
	require.Contains(t, sum.Errors[0].Message, "disk full")
}

func TestRunRejectsConcurrentRefresh(t *testing.T) {
	src := &fakeSource{
		news:    map[string][]domain.NewsItem{},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}
	h := newHarness(t, src, nil, twoStocks())

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(context.Background())
		done <- err
	}()

	<-src.entered
	require.True(t, h.orch.Running())
	_, err := h.orch.Run(context.Background())
	require.ErrorIs(t, err, ErrInProgress)

	close(src.block)
	require.NoError(t, <-done)
	require.False(t, h.orch.Running())
}
