package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	item := NewsItem{}
	if item.ID != "" || item.Title != "" {
		t.Error("expected empty ID/Title for zero-value NewsItem")
	}
	if !item.PubDate.IsZero() {
		t.Error("expected zero PubDate for zero-value NewsItem")
	}

	n := Neutral()
	if n.Label != LabelNeutral || n.Score != 0 || n.Confidence != 0 {
		t.Errorf("Neutral() = %+v, want neutral/0/0", n)
	}

	if Bullish != "bullish" || Bearish != "bearish" || Flat != "neutral" {
		t.Error("MarketLabel constants have unexpected values")
	}
	if SectorSteel != "steel" || SectorCoal != "coal" {
		t.Error("Sector constants have unexpected values")
	}
}

func TestEmptyDocuments(t *testing.T) {
	now := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

	h := NewSentimentHistory(now)
	if h.Stocks == nil || len(h.Stocks) != 0 {
		t.Errorf("NewSentimentHistory stocks = %v, want empty map", h.Stocks)
	}
	if !h.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", h.LastUpdated, now)
	}
	if NewNewsCache(now).Stocks == nil {
		t.Error("NewNewsCache stocks is nil")
	}
	if NewPriceCache(now).Stocks == nil {
		t.Error("NewPriceCache stocks is nil")
	}
}

func TestDocumentJSONLayout(t *testing.T) {
	h := NewSentimentHistory(time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC))
	h.Stocks["SAIL"] = &StockSentiment{
		CurrentSentiment: SentimentDataPoint{Date: "2024-06-15", StockSymbol: "SAIL", SentimentLabel: Bullish},
		History:          []SentimentDataPoint{{Date: "2024-06-15", StockSymbol: "SAIL"}},
	}

	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"lastUpdated"`, `"stocks"`, `"currentSentiment"`, `"history"`, `"averageSentiment"`, `"sentimentLabel":"bullish"`} {
		if !strings.Contains(s, key) {
			t.Errorf("encoded history missing %s: %s", key, s)
		}
	}

	scored := ScoredNews{NewsItem: NewsItem{ID: "abc", Title: "t"}, Sentiment: Neutral()}
	data, err = json.Marshal(scored)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// The embedded news item is flattened next to the sentiment.
	if !strings.Contains(string(data), `"id":"abc"`) || !strings.Contains(string(data), `"sentiment":{`) {
		t.Errorf("unexpected ScoredNews encoding: %s", data)
	}
}
