// Package sentiment scores financial text with a hosted FinBERT classifier.
// Scoring never fails: quota exhaustion, transport errors and exhausted
// warm-up retries all degrade to a neutral result.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"metalpulse/internal/config"
	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// ErrModelLoading is returned by a single classification attempt when the
// model endpoint answers 503 while it warms up.
var ErrModelLoading = errors.New("sentiment model is loading")

// Scorer scores news items sequentially.
type Scorer interface {
	ScoreBatch(ctx context.Context, items []domain.NewsItem) []domain.ScoredNews
}

// Client talks to the inference endpoint. Each Client is bound to one Quota.
type Client struct {
	url         string
	apiKey      string
	http        *http.Client
	quota       *Quota
	maxInput    int
	itemDelay   time.Duration
	warmupDelay time.Duration
	maxWarmup   int
	log         *slog.Logger
}

var _ Scorer = (*Client)(nil)

// NewClient creates a Client spending from quota.
func NewClient(cfg config.Sentiment, quota *Quota, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxInput := cfg.MaxInput
	if maxInput <= 0 {
		maxInput = 512
	}
	return &Client{
		url:         cfg.APIURL,
		apiKey:      cfg.APIKey,
		http:        &http.Client{Timeout: timeout},
		quota:       quota,
		maxInput:    maxInput,
		itemDelay:   cfg.ItemDelay,
		warmupDelay: cfg.WarmupDelay,
		maxWarmup:   cfg.MaxWarmupAttempts,
		log:         util.OrDiscard(log).With("component", "sentiment"),
	}
}

// Quota returns the budget this client spends from.
func (c *Client) Quota() *Quota { return c.quota }

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type inferenceRequest struct {
	Inputs  string           `json:"inputs"`
	Options inferenceOptions `json:"options"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Score classifies text. The warm-up status is retried on a fixed cooldown up
// to the configured number of attempts; every other failure returns neutral.
func (c *Client) Score(ctx context.Context, text string) domain.SentimentResult {
	if !c.quota.Allow() {
		c.log.Warn("skipping request", "error", ErrQuotaExhausted, "used", c.quota.Used())
		return domain.Neutral()
	}

	input := truncateRunes(text, c.maxInput)

	var res domain.SentimentResult
	policy := util.RetryPolicy{MaxAttempts: c.maxWarmup, Delay: c.warmupDelay}
	err := util.Retry(ctx, policy, func() error {
		r, err := c.classify(ctx, input)
		if errors.Is(err, ErrModelLoading) {
			c.log.Info("model is loading, waiting", "delay", c.warmupDelay)
			return err
		}
		if err != nil {
			return util.Permanent(err)
		}
		res = r
		return nil
	})
	if err != nil {
		c.log.Warn("sentiment analysis failed", "error", err)
		return domain.Neutral()
	}

	c.quota.Record()
	return res
}

// classify performs a single inference request.
func (c *Client) classify(ctx context.Context, text string) (domain.SentimentResult, error) {
	body, err := json.Marshal(inferenceRequest{
		Inputs:  text,
		Options: inferenceOptions{WaitForModel: true},
	})
	if err != nil {
		return domain.SentimentResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		io.Copy(io.Discard, resp.Body)
		return domain.SentimentResult{}, ErrModelLoading
	}
	if resp.StatusCode != http.StatusOK {
		return domain.SentimentResult{}, fmt.Errorf("inference API error: %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("read response: %w", err)
	}
	scores, err := decodeScores(raw)
	if err != nil {
		return domain.SentimentResult{}, err
	}
	return topResult(scores), nil
}

// decodeScores accepts both the nested [[{label,score}]] shape and a flat
// [{label,score}] list.
func decodeScores(raw []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) > 0 && len(nested[0]) > 0 {
			return nested[0], nil
		}
		return nil, errors.New("invalid response: empty label list")
	}

	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(flat) == 0 {
		return nil, errors.New("invalid response: empty label list")
	}
	return flat, nil
}

func topResult(scores []labelScore) domain.SentimentResult {
	top := scores[0]
	for _, s := range scores[1:] {
		if s.Score > top.Score {
			top = s
		}
	}
	label := normalizeLabel(top.Label)
	return domain.SentimentResult{
		Label:      label,
		Score:      MapScore(label, top.Score),
		Confidence: top.Score,
	}
}

func normalizeLabel(s string) domain.SentimentLabel {
	switch domain.SentimentLabel(strings.ToLower(strings.TrimSpace(s))) {
	case domain.LabelPositive:
		return domain.LabelPositive
	case domain.LabelNegative:
		return domain.LabelNegative
	default:
		return domain.LabelNeutral
	}
}

// MapScore converts a top label and its confidence to a signed score:
// positive is +c, negative is -c, anything else is 0.
func MapScore(label domain.SentimentLabel, confidence float64) float64 {
	switch label {
	case domain.LabelPositive:
		return confidence
	case domain.LabelNegative:
		return -confidence
	default:
		return 0
	}
}

// ScoreBatch scores items in order with the configured inter-item delay. Each
// item is scored on "<title>. <description>". Items left over after ctx is
// cancelled are neutral.
func (c *Client) ScoreBatch(ctx context.Context, items []domain.NewsItem) []domain.ScoredNews {
	out := make([]domain.ScoredNews, len(items))
	pacer := util.NewPacer(c.itemDelay)

	for i, item := range items {
		out[i] = domain.ScoredNews{NewsItem: item, Sentiment: domain.Neutral()}
		if err := pacer.Wait(ctx); err != nil {
			continue
		}
		out[i].Sentiment = c.Score(ctx, Text(item))
	}
	return out
}

// Text is the string submitted for a news item.
func Text(item domain.NewsItem) string {
	return item.Title + ". " + item.Description
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
