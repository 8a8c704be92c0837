// Package metalpulse is a Go client for the metalpulse REST API.
package metalpulse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("metalpulse: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("metalpulse: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client provides a Go SDK for interacting with the metalpulse API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new metalpulse API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health retrieves the service health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	return &out, c.get(ctx, "/api/health", nil, &out)
}

// Overview retrieves the current sentiment of every tracked stock.
func (c *Client) Overview(ctx context.Context) ([]Overview, error) {
	var out []Overview
	return out, c.get(ctx, "/api/sentiment", nil, &out)
}

// Sentiment retrieves the sentiment detail of one stock.
func (c *Client) Sentiment(ctx context.Context, symbol string) (*SentimentDetail, error) {
	var out SentimentDetail
	return &out, c.get(ctx, "/api/sentiment/"+url.PathEscape(symbol), nil, &out)
}

// History retrieves the last days of sentiment history; days <= 0 uses the
// server default.
func (c *Client) History(ctx context.Context, symbol string, days int) ([]DataPoint, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out struct {
		History []DataPoint `json:"history"`
	}
	err := c.get(ctx, "/api/sentiment/"+url.PathEscape(symbol)+"/history", q, &out)
	return out.History, err
}

// Refresh triggers a refresh and waits for it to finish. Refreshes can run
// for minutes, so only ctx bounds the call.
func (c *Client) Refresh(ctx context.Context) (*RefreshResult, error) {
	long := &http.Client{Transport: c.httpClient.Transport}
	var out RefreshResult
	return &out, c.do(ctx, long, http.MethodPost, "/api/sentiment/refresh", nil, &out)
}

// Status retrieves the pipeline status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	return &out, c.get(ctx, "/api/sentiment/status/info", nil, &out)
}

// Stocks retrieves every tracked stock with its latest quote.
func (c *Client) Stocks(ctx context.Context) ([]Stock, error) {
	var out []Stock
	return out, c.get(ctx, "/api/stocks", nil, &out)
}

// Symbols lists the tracked symbols.
func (c *Client) Symbols(ctx context.Context) ([]Symbol, error) {
	var out []Symbol
	return out, c.get(ctx, "/api/stocks/list/symbols", nil, &out)
}

// Stock retrieves one stock with its quote and recent price history.
func (c *Client) Stock(ctx context.Context, symbol string) (*StockDetail, error) {
	var out StockDetail
	return &out, c.get(ctx, "/api/stocks/"+url.PathEscape(symbol), nil, &out)
}

// Correlation retrieves the sentiment/price correlation over period days;
// period <= 0 uses the server default.
func (c *Client) Correlation(ctx context.Context, symbol string, period int) (*Correlation, error) {
	q := url.Values{}
	if period > 0 {
		q.Set("period", strconv.Itoa(period))
	}
	var out Correlation
	return &out, c.get(ctx, "/api/stocks/"+url.PathEscape(symbol)+"/correlation", q, &out)
}

// News retrieves archived news for a symbol on date (YYYY-MM-DD); an empty
// date means today.
func (c *Client) News(ctx context.Context, symbol, date string) (*ArchivedNews, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	var out ArchivedNews
	return &out, c.get(ctx, "/api/news/"+url.PathEscape(symbol), q, &out)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(ctx, c.httpClient, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
