// Package aggregate turns scored news into one sentiment data point per
// instrument and calendar date.
package aggregate

import (
	"context"
	"sort"

	"metalpulse/internal/domain"
	"metalpulse/internal/sentiment"
	"metalpulse/internal/util"
)

// Label thresholds. Values exactly on a threshold are neutral.
const (
	BullishThreshold = 0.15
	BearishThreshold = -0.15

	topHeadlines = 3
)

// LabelFor buckets an averaged score.
func LabelFor(avg float64) domain.MarketLabel {
	switch {
	case avg > BullishThreshold:
		return domain.Bullish
	case avg < BearishThreshold:
		return domain.Bearish
	default:
		return domain.Flat
	}
}

// GroupByDate partitions items by the UTC calendar date of their publish
// time. Items keep their relative order within a date; dates are returned in
// ascending order.
func GroupByDate(items []domain.NewsItem) (map[string][]domain.NewsItem, []string) {
	groups := make(map[string][]domain.NewsItem)
	for _, it := range items {
		key := util.DateKey(it.PubDate)
		groups[key] = append(groups[key], it)
	}
	dates := make([]string, 0, len(groups))
	for d := range groups {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return groups, dates
}

// Summarize computes the data point for one symbol and date from already
// scored items.
func Summarize(date, symbol string, scored []domain.ScoredNews) domain.SentimentDataPoint {
	dp := domain.SentimentDataPoint{
		Date:            date,
		StockSymbol:     symbol,
		SentimentLabel:  domain.Flat,
		NewsCount:       len(scored),
		TopPositiveNews: []string{},
		TopNegativeNews: []string{},
	}
	if len(scored) == 0 {
		return dp
	}

	var sum float64
	for _, s := range scored {
		sum += s.Sentiment.Score
		switch s.Sentiment.Label {
		case domain.LabelPositive:
			dp.PositiveCount++
		case domain.LabelNegative:
			dp.NegativeCount++
		default:
			dp.NeutralCount++
		}
	}
	dp.AverageSentiment = sum / float64(len(scored))
	dp.SentimentLabel = LabelFor(dp.AverageSentiment)
	dp.TopPositiveNews = topTitles(scored, domain.LabelPositive)
	dp.TopNegativeNews = topTitles(scored, domain.LabelNegative)
	return dp
}

// topTitles returns up to three titles with the given label, highest
// confidence first.
func topTitles(scored []domain.ScoredNews, label domain.SentimentLabel) []string {
	var matched []domain.ScoredNews
	for _, s := range scored {
		if s.Sentiment.Label == label {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Sentiment.Confidence > matched[j].Sentiment.Confidence
	})
	if len(matched) > topHeadlines {
		matched = matched[:topHeadlines]
	}
	titles := make([]string, len(matched))
	for i, m := range matched {
		titles[i] = m.Title
	}
	return titles
}

// Aggregator scores a capped subset of a date's items and summarizes them.
type Aggregator struct {
	Scorer  sentiment.Scorer
	PerDate int // items scored per date; <= 0 scores every item
}

// Process scores up to PerDate of items and returns the date's data point.
func (a *Aggregator) Process(ctx context.Context, date, symbol string, items []domain.NewsItem) domain.SentimentDataPoint {
	if a.PerDate > 0 && len(items) > a.PerDate {
		items = items[:a.PerDate]
	}
	scored := a.Scorer.ScoreBatch(ctx, items)
	return Summarize(date, symbol, scored)
}
