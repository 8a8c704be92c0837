// Package httpapi serves the sentiment, stock and correlation REST API
// consumed by the dashboard.
package httpapi

import (
	"time"

	"metalpulse/internal/domain"
	"metalpulse/internal/refresh"
)

// Service identity reported by the health endpoint.
const (
	ServiceName = "metal-sentiment-api"
	Version     = "1.0.0"
)

// Error codes of ErrorResponse.
const (
	CodeNotFound   = "not_found"
	CodeBadRequest = "bad_request"
	CodeConfig     = "config_error"
	CodeConflict   = "conflict"
	CodeInternal   = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
}

// IndexResponse is the body of GET / in development.
type IndexResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// SentimentOverview is one element of GET /api/sentiment.
type SentimentOverview struct {
	Symbol      string                     `json:"symbol"`
	Name        string                     `json:"name"`
	Sector      domain.Sector              `json:"sector"`
	Sentiment   *domain.SentimentDataPoint `json:"sentiment"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// SentimentDetail is the body of GET /api/sentiment/{symbol}.
type SentimentDetail struct {
	Symbol           string                      `json:"symbol"`
	CurrentSentiment *domain.SentimentDataPoint  `json:"currentSentiment"`
	History          []domain.SentimentDataPoint `json:"history"`
	RecentNews       []domain.ScoredNews         `json:"recentNews"`
}

// HistoryResponse is the body of GET /api/sentiment/{symbol}/history.
type HistoryResponse struct {
	Symbol  string                      `json:"symbol"`
	History []domain.SentimentDataPoint `json:"history"`
}

// RefreshResponse is the body of a successful POST /api/sentiment/refresh.
type RefreshResponse struct {
	Success         bool                      `json:"success"`
	Message         string                    `json:"message"`
	Timestamp       time.Time                 `json:"timestamp"`
	RunID           string                    `json:"runId"`
	Processed       []string                  `json:"processed"`
	DatesProcessed  int                       `json:"datesProcessed"`
	DatesSkipped    int                       `json:"datesSkipped"`
	Errors          []refresh.InstrumentError `json:"errors,omitempty"`
	APIRequestsUsed int                       `json:"apiRequestsUsed"`
}

// StatusResponse is the body of GET /api/sentiment/status/info.
type StatusResponse struct {
	StocksTracked          int       `json:"stocksTracked"`
	StocksWithData         int       `json:"stocksWithData"`
	LastUpdated            time.Time `json:"lastUpdated"`
	APIRequestsThisSession int       `json:"apiRequestsThisSession"`
	RefreshInProgress      bool      `json:"refreshInProgress"`
}

// StockSummary is one element of GET /api/stocks.
type StockSummary struct {
	Symbol   string             `json:"symbol"`
	Name     string             `json:"name"`
	FullName string             `json:"fullName"`
	Sector   domain.Sector      `json:"sector"`
	Quote    *domain.StockQuote `json:"quote"`
}

// StockDetail is the body of GET /api/stocks/{symbol}.
type StockDetail struct {
	Symbol       string             `json:"symbol"`
	Name         string             `json:"name"`
	ShortName    string             `json:"shortName"`
	Sector       domain.Sector      `json:"sector"`
	MarketSymbol string             `json:"marketSymbol"`
	Quote        *domain.StockQuote `json:"quote"`
	PriceHistory []domain.PriceBar  `json:"priceHistory"`
}

// SymbolInfo is one element of GET /api/stocks/list/symbols.
type SymbolInfo struct {
	Symbol string        `json:"symbol"`
	Name   string        `json:"name"`
	Sector domain.Sector `json:"sector"`
}

// ArchiveResponse is the body of GET /api/news/{symbol}.
type ArchiveResponse struct {
	Symbol string              `json:"symbol"`
	Date   string              `json:"date"`
	News   []domain.ScoredNews `json:"news"`
}
