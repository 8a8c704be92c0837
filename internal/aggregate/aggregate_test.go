package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"metalpulse/internal/domain"
)

func scoredItem(title string, label domain.SentimentLabel, score, conf float64) domain.ScoredNews {
	return domain.ScoredNews{
		NewsItem:  domain.NewsItem{Title: title},
		Sentiment: domain.SentimentResult{Label: label, Score: score, Confidence: conf},
	}
}

func TestLabelForBoundaries(t *testing.T) {
	require.Equal(t, domain.Flat, LabelFor(0.15))
	require.Equal(t, domain.Flat, LabelFor(-0.15))
	require.Equal(t, domain.Flat, LabelFor(0))
	require.Equal(t, domain.Bullish, LabelFor(0.1501))
	require.Equal(t, domain.Bearish, LabelFor(-0.1501))
}

func TestSummarizeSevenScores(t *testing.T) {
	scores := []float64{0.8, 0.3, -0.2, 0, -0.9, 0.5, -0.1}
	var scored []domain.ScoredNews
	for i, s := range scores {
		label := domain.LabelNeutral
		switch {
		case s > 0:
			label = domain.LabelPositive
		case s < 0:
			label = domain.LabelNegative
		}
		conf := s
		if conf < 0 {
			conf = -conf
		}
		scored = append(scored, scoredItem(fmt.Sprintf("n%d", i), label, s, conf))
	}

	dp := Summarize("2024-06-10", "SAIL", scored)
	require.InDelta(t, 0.4/7, dp.AverageSentiment, 1e-9)
	require.InDelta(t, 0.0571, dp.AverageSentiment, 1e-4)
	require.Equal(t, domain.Flat, dp.SentimentLabel)
	require.Equal(t, 7, dp.NewsCount)
	require.Equal(t, 3, dp.PositiveCount)
	require.Equal(t, 3, dp.NegativeCount)
	require.Equal(t, 1, dp.NeutralCount)
	require.Equal(t, []string{"n0", "n5", "n1"}, dp.TopPositiveNews)
	require.Equal(t, []string{"n4", "n2", "n6"}, dp.TopNegativeNews)
}

func TestSummarizeEmpty(t *testing.T) {
	dp := Summarize("2024-06-10", "SAIL", nil)
	require.Equal(t, 0.0, dp.AverageSentiment)
	require.Equal(t, domain.Flat, dp.SentimentLabel)
	require.NotNil(t, dp.TopPositiveNews)
	require.NotNil(t, dp.TopNegativeNews)
}

func TestGroupByDateUsesUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	items := []domain.NewsItem{
		{ID: "a", PubDate: time.Date(2024, 6, 11, 3, 0, 0, 0, ist)}, // 10th in UTC
		{ID: "b", PubDate: time.Date(2024, 6, 11, 12, 0, 0, 0, time.UTC)},
		{ID: "c", PubDate: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)},
	}

	groups, dates := GroupByDate(items)
	require.Equal(t, []string{"2024-06-10", "2024-06-11"}, dates)
	require.Len(t, groups["2024-06-10"], 2)
	require.Equal(t, "a", groups["2024-06-10"][0].ID)
	require.Equal(t, "c", groups["2024-06-10"][1].ID)
	require.Len(t, groups["2024-06-11"], 1)
}

type fakeScorer struct {
	seen int
}

func (f *fakeScorer) ScoreBatch(_ context.Context, items []domain.NewsItem) []domain.ScoredNews {
	f.seen += len(items)
	out := make([]domain.ScoredNews, len(items))
	for i, it := range items {
		out[i] = domain.ScoredNews{
			NewsItem:  it,
			Sentiment: domain.SentimentResult{Label: domain.LabelPositive, Score: 0.5, Confidence: 0.5},
		}
	}
	return out
}

func TestAggregatorCapsPerDate(t *testing.T) {
	items := make([]domain.NewsItem, 8)
	for i := range items {
		items[i] = domain.NewsItem{Title: fmt.Sprintf("t%d", i)}
	}

	scorer := &fakeScorer{}
	agg := &Aggregator{Scorer: scorer, PerDate: 5}
	dp := agg.Process(context.Background(), "2024-06-10", "NMDC", items)

	require.Equal(t, 5, scorer.seen)
	require.Equal(t, 5, dp.NewsCount)
	require.Equal(t, domain.Bullish, dp.SentimentLabel)
	require.Len(t, dp.TopPositiveNews, 3)
	require.Equal(t, "NMDC", dp.StockSymbol)
}
