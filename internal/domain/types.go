// Package domain defines the core types shared across metalpulse: tracked
// instruments, news items, sentiment results, aggregated data points, price
// bars and the persisted documents built from them.
package domain

import "time"

// Sector groups instruments by the metal they mine or produce.
type Sector string

const (
	SectorSteel    Sector = "steel"
	SectorAluminum Sector = "aluminum"
	SectorMining   Sector = "mining"
	SectorCoal     Sector = "coal"
)

// Instrument is a tracked equity.
type Instrument struct {
	Symbol       string   `json:"symbol" yaml:"symbol"`
	Name         string   `json:"name" yaml:"name"`
	ShortName    string   `json:"shortName" yaml:"short_name"`
	MarketSymbol string   `json:"marketSymbol" yaml:"market_symbol"` // symbol used by the market-data endpoint, e.g. "TATASTEEL.NS"
	SearchTerms  []string `json:"searchTerms" yaml:"search_terms"`
	Sector       Sector   `json:"sector" yaml:"sector"`
}

// NewsItem is a single article returned by the news feed.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	Source      string    `json:"source"`
	StockSymbol string    `json:"stockSymbol"`
}

// SentimentLabel is the classifier's per-text label.
type SentimentLabel string

const (
	LabelPositive SentimentLabel = "positive"
	LabelNegative SentimentLabel = "negative"
	LabelNeutral  SentimentLabel = "neutral"
)

// SentimentResult is the signed outcome of scoring one text.
type SentimentResult struct {
	Label      SentimentLabel `json:"label"`
	Score      float64        `json:"score"`      // -1..+1
	Confidence float64        `json:"confidence"` // 0..1
}

// Neutral is the result used whenever scoring fails or is skipped.
func Neutral() SentimentResult {
	return SentimentResult{Label: LabelNeutral}
}

// ScoredNews pairs a news item with its sentiment.
type ScoredNews struct {
	NewsItem
	Sentiment SentimentResult `json:"sentiment"`
}

// MarketLabel is the coarse bucket of an averaged sentiment score.
type MarketLabel string

const (
	Bullish MarketLabel = "bullish"
	Bearish MarketLabel = "bearish"
	Flat    MarketLabel = "neutral"
)

// SentimentDataPoint is the aggregated sentiment for one symbol on one
// calendar date.
type SentimentDataPoint struct {
	Date             string      `json:"date"` // YYYY-MM-DD (UTC)
	StockSymbol      string      `json:"stockSymbol"`
	AverageSentiment float64     `json:"averageSentiment"`
	SentimentLabel   MarketLabel `json:"sentimentLabel"`
	NewsCount        int         `json:"newsCount"`
	PositiveCount    int         `json:"positiveCount"`
	NegativeCount    int         `json:"negativeCount"`
	NeutralCount     int         `json:"neutralCount"`
	TopPositiveNews  []string    `json:"topPositiveNews"`
	TopNegativeNews  []string    `json:"topNegativeNews"`
}

// StockQuote is the latest quote for an instrument.
type StockQuote struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	ChangePercent float64   `json:"changePercent"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// PriceBar is one daily OHLCV bar.
type PriceBar struct {
	Symbol        string  `json:"symbol"`
	Date          string  `json:"date"` // YYYY-MM-DD (UTC)
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"changePercent"`
}

// ---------------------------------------------------------------------------
// Persisted documents
// ---------------------------------------------------------------------------

// StockSentiment is the per-symbol entry of SentimentHistory.
type StockSentiment struct {
	CurrentSentiment SentimentDataPoint   `json:"currentSentiment"`
	History          []SentimentDataPoint `json:"history"`
}

// SentimentHistory is the rolling sentiment history document.
type SentimentHistory struct {
	LastUpdated time.Time                  `json:"lastUpdated"`
	Stocks      map[string]*StockSentiment `json:"stocks"`
}

// NewSentimentHistory returns an empty, well-formed history document.
func NewSentimentHistory(now time.Time) *SentimentHistory {
	return &SentimentHistory{LastUpdated: now, Stocks: make(map[string]*StockSentiment)}
}

// StockNews is the per-symbol entry of NewsCache.
type StockNews struct {
	News []ScoredNews `json:"news"`
}

// NewsCache holds the most recent scored news per symbol.
type NewsCache struct {
	LastUpdated time.Time             `json:"lastUpdated"`
	Stocks      map[string]*StockNews `json:"stocks"`
}

// NewNewsCache returns an empty, well-formed news cache document.
func NewNewsCache(now time.Time) *NewsCache {
	return &NewsCache{LastUpdated: now, Stocks: make(map[string]*StockNews)}
}

// StockPrices is the per-symbol entry of PriceCache.
type StockPrices struct {
	CurrentQuote *StockQuote `json:"currentQuote"`
	History      []PriceBar  `json:"history"`
}

// PriceCache holds the most recently fetched quotes and price history.
type PriceCache struct {
	LastUpdated time.Time               `json:"lastUpdated"`
	Stocks      map[string]*StockPrices `json:"stocks"`
}

// NewPriceCache returns an empty, well-formed price cache document.
func NewPriceCache(now time.Time) *PriceCache {
	return &PriceCache{LastUpdated: now, Stocks: make(map[string]*StockPrices)}
}
