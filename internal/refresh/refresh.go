// Package refresh runs the news → sentiment → history pipeline for every
// tracked instrument.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"metalpulse/internal/aggregate"
	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/news"
	"metalpulse/internal/registry"
	"metalpulse/internal/sentiment"
	"metalpulse/internal/store"
	"metalpulse/internal/util"
)

var (
	// ErrMissingAPIKey is returned when no classifier credential is set.
	ErrMissingAPIKey = errors.New("HuggingFace API key not configured")

	// ErrInProgress is returned when a refresh is already running.
	ErrInProgress = errors.New("refresh already in progress")
)

// ScorerFactory builds the scorer of one refresh, spending from quota.
type ScorerFactory func(quota *sentiment.Quota) sentiment.Scorer

// Archiver stores scored display news beyond the rolling cache.
type Archiver interface {
	Write(ctx context.Context, items []domain.ScoredNews) error
}

// Observer is notified when a refresh starts and finishes.
type Observer interface {
	RefreshStarted(runID string)
	RefreshFinished(runID string, s Summary)
}

// InstrumentError records a failed instrument.
type InstrumentError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// Summary reports one refresh.
type Summary struct {
	RunID          string            `json:"runId"`
	Processed      []string          `json:"processed"`
	DatesProcessed int               `json:"datesProcessed"`
	DatesSkipped   int               `json:"datesSkipped"`
	Errors         []InstrumentError `json:"errors,omitempty"`
	RequestsUsed   int               `json:"apiRequestsUsed"`
	StartedAt      time.Time         `json:"startedAt"`
	FinishedAt     time.Time         `json:"finishedAt"`
}

// Options holds the pipeline limits.
type Options struct {
	APIKey       string
	MaxRequests  int
	RecentDays   int
	PerDateItems int
	DisplayItems int
	CacheItems   int
}

// OptionsFromConfig extracts Options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		APIKey:       cfg.Sentiment.APIKey,
		MaxRequests:  cfg.Sentiment.MaxRequests,
		RecentDays:   cfg.News.RecentDays,
		PerDateItems: cfg.Sentiment.PerDateItems,
		DisplayItems: cfg.Sentiment.DisplayItems,
		CacheItems:   cfg.Sentiment.CacheItems,
	}
}

// Deps are the collaborators of an Orchestrator. Archive and Observers are
// optional.
type Deps struct {
	Registry  *registry.Registry
	Source    news.Source
	History   store.HistoryStore
	News      store.NewsStore
	Archive   Archiver
	NewScorer ScorerFactory
	Observers []Observer
}

// Orchestrator runs refreshes. At most one refresh runs at a time.
type Orchestrator struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time

	running atomic.Bool
	quota   atomic.Pointer[sentiment.Quota]
}

// New creates an Orchestrator.
func New(deps Deps, opts Options, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		opts: opts,
		log:  util.OrDiscard(log).With("component", "refresh"),
		now:  time.Now,
	}
}

// Running reports whether a refresh is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// RequestCount returns the classifier requests of the current refresh, or of
// the last one when idle.
func (o *Orchestrator) RequestCount() int {
	if q := o.quota.Load(); q != nil {
		return q.Used()
	}
	return 0
}

// Run performs one refresh. It fails fast with ErrMissingAPIKey or
// ErrInProgress; per-instrument failures are reported in the summary.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	if o.opts.APIKey == "" {
		return Summary{}, ErrMissingAPIKey
	}
	if !o.running.CompareAndSwap(false, true) {
		return Summary{}, ErrInProgress
	}
	defer o.running.Store(false)

	sum := Summary{
		RunID:     uuid.NewString(),
		Processed: []string{},
		StartedAt: o.now().UTC(),
	}
	log := o.log.With("run", sum.RunID)
	for _, obs := range o.deps.Observers {
		obs.RefreshStarted(sum.RunID)
	}

	err := o.run(ctx, log, &sum)

	sum.FinishedAt = o.now().UTC()
	for _, obs := range o.deps.Observers {
		obs.RefreshFinished(sum.RunID, sum)
	}
	if err != nil {
		log.Error("refresh failed", "error", err)
		return sum, err
	}
	log.Info("refresh complete",
		"processed", len(sum.Processed),
		"dates", sum.DatesProcessed,
		"skipped", sum.DatesSkipped,
		"errors", len(sum.Errors),
		"requests", sum.RequestsUsed,
		"elapsed", sum.FinishedAt.Sub(sum.StartedAt).Round(time.Second),
	)
	return sum, nil
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, sum *Summary) error {
	quota := sentiment.NewQuota(o.opts.MaxRequests)
	o.quota.Store(quota)
	defer func() { sum.RequestsUsed = quota.Used() }()

	scorer := o.deps.NewScorer(quota)
	agg := &aggregate.Aggregator{Scorer: scorer, PerDate: o.opts.PerDateItems}

	instruments := o.deps.Registry.All()
	log.Info("refresh started", "instruments", len(instruments))
	allNews := o.deps.Source.FetchAll(ctx, instruments)

	cache, err := o.deps.News.LoadNews(ctx)
	if err != nil {
		return fmt.Errorf("load news cache: %w", err)
	}
	existing, err := o.deps.History.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	for _, inst := range instruments {
		if ctx.Err() != nil {
			break
		}
		ok, err := o.processInstrument(ctx, log, inst, allNews[inst.Symbol], existing, cache, agg, scorer, sum)
		if err != nil {
			log.Error("instrument failed", "symbol", inst.Symbol, "error", err)
			sum.Errors = append(sum.Errors, InstrumentError{Symbol: inst.Symbol, Message: err.Error()})
			continue
		}
		if ok {
			sum.Processed = append(sum.Processed, inst.Symbol)
		}
	}

	cache.LastUpdated = o.now().UTC()
	if err := o.deps.News.SaveNews(ctx, cache); err != nil {
		return fmt.Errorf("save news cache: %w", err)
	}
	return ctx.Err()
}

// processInstrument updates history and the news cache for one instrument.
// It reports false when the instrument had no recent news.
func (o *Orchestrator) processInstrument(
	ctx context.Context,
	log *slog.Logger,
	inst domain.Instrument,
	items []domain.NewsItem,
	existing *domain.SentimentHistory,
	cache *domain.NewsCache,
	agg *aggregate.Aggregator,
	scorer sentiment.Scorer,
	sum *Summary,
) (bool, error) {
	now := o.now()
	recent := news.FilterRecent(items, o.opts.RecentDays, now)
	if len(recent) == 0 {
		log.Info("no recent news", "symbol", inst.Symbol)
		return false, nil
	}

	groups, dates := aggregate.GroupByDate(recent)
	seen := make(map[string]bool)
	if entry := existing.Stocks[inst.Symbol]; entry != nil {
		for _, dp := range entry.History {
			seen[dp.Date] = true
		}
	}
	log.Info("grouped news", "symbol", inst.Symbol, "dates", len(dates), "known", len(seen))

	// Today is always reprocessed to pick up intra-day news.
	today := util.DateKey(now)
	for _, date := range dates {
		if seen[date] && date != today {
			sum.DatesSkipped++
			continue
		}
		dp := agg.Process(ctx, date, inst.Symbol, groups[date])
		if err := o.deps.History.AppendDataPoint(ctx, inst.Symbol, dp); err != nil {
			return false, fmt.Errorf("append %s: %w", date, err)
		}
		sum.DatesProcessed++
		log.Info("date processed", "symbol", inst.Symbol, "date", date,
			"label", dp.SentimentLabel, "score", fmt.Sprintf("%.3f", dp.AverageSentiment), "news", dp.NewsCount)
	}

	display := scorer.ScoreBatch(ctx, head(recent, o.opts.DisplayItems))
	cached := head(recent, o.opts.CacheItems)
	entries := make([]domain.ScoredNews, len(cached))
	for i, it := range cached {
		entries[i] = domain.ScoredNews{NewsItem: it, Sentiment: domain.Neutral()}
		if i < len(display) {
			entries[i].Sentiment = display[i].Sentiment
		}
	}
	cache.Stocks[inst.Symbol] = &domain.StockNews{News: entries}

	if o.deps.Archive != nil {
		if err := o.deps.Archive.Write(ctx, display); err != nil {
			log.Warn("archive news", "symbol", inst.Symbol, "error", err)
		}
	}
	return true, nil
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
