package metalpulse

import "time"

// Health is the service health report.
type Health struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// DataPoint is the aggregated sentiment of one symbol on one date.
type DataPoint struct {
	Date             string   `json:"date"`
	StockSymbol      string   `json:"stockSymbol"`
	AverageSentiment float64  `json:"averageSentiment"`
	SentimentLabel   string   `json:"sentimentLabel"`
	NewsCount        int      `json:"newsCount"`
	PositiveCount    int      `json:"positiveCount"`
	NegativeCount    int      `json:"negativeCount"`
	NeutralCount     int      `json:"neutralCount"`
	TopPositiveNews  []string `json:"topPositiveNews"`
	TopNegativeNews  []string `json:"topNegativeNews"`
}

// Overview is one row of the sentiment overview.
type Overview struct {
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name"`
	Sector      string     `json:"sector"`
	Sentiment   *DataPoint `json:"sentiment"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// Score is a single classifier result.
type Score struct {
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// News is a scored news article.
type News struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	Source      string    `json:"source"`
	StockSymbol string    `json:"stockSymbol"`
	Sentiment   Score     `json:"sentiment"`
}

// SentimentDetail is the full sentiment view of one symbol.
type SentimentDetail struct {
	Symbol           string      `json:"symbol"`
	CurrentSentiment *DataPoint  `json:"currentSentiment"`
	History          []DataPoint `json:"history"`
	RecentNews       []News      `json:"recentNews"`
}

// RefreshError is a per-instrument refresh failure.
type RefreshError struct {
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// RefreshResult summarises a completed refresh.
type RefreshResult struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Timestamp       time.Time      `json:"timestamp"`
	RunID           string         `json:"runId"`
	Processed       []string       `json:"processed"`
	DatesProcessed  int            `json:"datesProcessed"`
	DatesSkipped    int            `json:"datesSkipped"`
	Errors          []RefreshError `json:"errors"`
	APIRequestsUsed int            `json:"apiRequestsUsed"`
}

// Status is the pipeline status.
type Status struct {
	StocksTracked          int       `json:"stocksTracked"`
	StocksWithData         int       `json:"stocksWithData"`
	LastUpdated            time.Time `json:"lastUpdated"`
	APIRequestsThisSession int       `json:"apiRequestsThisSession"`
	RefreshInProgress      bool      `json:"refreshInProgress"`
}

// Symbol is a tracked instrument.
type Symbol struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

// Quote is the latest market quote.
type Quote struct {
	Symbol        string    `json:"symbol"`
	CurrentPrice  float64   `json:"currentPrice"`
	PreviousClose float64   `json:"previousClose"`
	ChangePercent float64   `json:"changePercent"`
	DayHigh       float64   `json:"dayHigh"`
	DayLow        float64   `json:"dayLow"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Symbol        string  `json:"symbol"`
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	ChangePercent float64 `json:"changePercent"`
}

// Stock is one row of the stock list.
type Stock struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Sector   string `json:"sector"`
	Quote    *Quote `json:"quote"`
}

// StockDetail is one instrument with its quote and price history.
type StockDetail struct {
	Symbol       string `json:"symbol"`
	Name         string `json:"name"`
	ShortName    string `json:"shortName"`
	Sector       string `json:"sector"`
	MarketSymbol string `json:"marketSymbol"`
	Quote        *Quote `json:"quote"`
	PriceHistory []Bar  `json:"priceHistory"`
}

// Correlation relates sentiment and price change. Correlation is nil when
// there is not enough data; Message then says why.
type Correlation struct {
	Symbol              string      `json:"symbol"`
	Period              string      `json:"period"`
	Correlation         *float64    `json:"correlation"`
	CorrelationStrength string      `json:"correlationStrength"`
	DataPointsUsed      int         `json:"dataPointsUsed"`
	Message             string      `json:"message"`
	SentimentData       []DataPoint `json:"sentimentData"`
	PriceData           []Bar       `json:"priceData"`
}

// ArchivedNews is the archived news of one symbol on one date.
type ArchivedNews struct {
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
	News   []News `json:"news"`
}
