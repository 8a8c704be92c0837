package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// YahooProvider reads the public v8 chart endpoint.
type YahooProvider struct {
	baseURL   string
	userAgent string
	client    *http.Client
	log       *slog.Logger
	now       func() time.Time
}

var _ Provider = (*YahooProvider)(nil)

// NewYahooProvider creates a YahooProvider from the market data config.
func NewYahooProvider(cfg config.MarketData, log *slog.Logger) *YahooProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YahooProvider{
		baseURL:   cfg.YahooURL,
		userAgent: cfg.UserAgent,
		client:    &http.Client{Timeout: timeout},
		log:       util.OrDiscard(log).With("component", "prices", "provider", "yahoo"),
		now:       time.Now,
	}
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		PreviousClose        float64 `json:"previousClose"`
		ChartPreviousClose   float64 `json:"chartPreviousClose"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		RegularMarketVolume  float64 `json:"regularMarketVolume"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// chart fetches one chart result for symbol over rng.
func (p *YahooProvider) chart(ctx context.Context, symbol, rng string) (*chartResult, error) {
	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", p.baseURL, url.PathEscape(symbol), rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart API status %d", resp.StatusCode)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode chart: %w", err)
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, errors.New("no chart data returned")
	}
	return &body.Chart.Result[0], nil
}

// Quote implements Provider.
func (p *YahooProvider) Quote(ctx context.Context, inst domain.Instrument) *domain.StockQuote {
	res, err := p.chart(ctx, inst.MarketSymbol, "1d")
	if err != nil {
		p.log.Warn("quote failed", "symbol", inst.MarketSymbol, "error", err)
		return nil
	}
	m := res.Meta
	prev := m.PreviousClose
	if prev == 0 {
		prev = m.ChartPreviousClose
	}
	return &domain.StockQuote{
		Symbol:        inst.MarketSymbol,
		CurrentPrice:  m.RegularMarketPrice,
		PreviousClose: prev,
		ChangePercent: percentChange(m.RegularMarketPrice, prev),
		DayHigh:       m.RegularMarketDayHigh,
		DayLow:        m.RegularMarketDayLow,
		Volume:        int64(m.RegularMarketVolume),
		Timestamp:     p.now().UTC(),
	}
}

// History implements Provider.
func (p *YahooProvider) History(ctx context.Context, inst domain.Instrument, days int) []domain.PriceBar {
	if days <= 0 {
		return []domain.PriceBar{}
	}
	res, err := p.chart(ctx, inst.MarketSymbol, RangeFor(days))
	if err != nil {
		p.log.Warn("history failed", "symbol", inst.MarketSymbol, "error", err)
		return []domain.PriceBar{}
	}
	if len(res.Indicators.Quote) == 0 {
		return []domain.PriceBar{}
	}
	q := res.Indicators.Quote[0]

	rows := make([]ohlcv, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		rows[i] = ohlcv{
			unixSec: ts,
			open:    at(q.Open, i),
			high:    at(q.High, i),
			low:     at(q.Low, i),
			volume:  int64(at(q.Volume, i)),
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c := *q.Close[i]
			rows[i].close = &c
		}
	}
	return buildBars(inst.MarketSymbol, rows, days)
}

// at returns s[i], or 0 when absent or null.
func at(s []*float64, i int) float64 {
	if i >= len(s) || s[i] == nil {
		return 0
	}
	return *s[i]
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
