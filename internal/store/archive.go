package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// NewsRecord is the Parquet schema for archived scored news.
type NewsRecord struct {
	ID          string  `parquet:"id"`
	Symbol      string  `parquet:"symbol"`
	Title       string  `parquet:"title"`
	Description string  `parquet:"description"`
	Link        string  `parquet:"link"`
	Source      string  `parquet:"source"`
	PubDate     int64   `parquet:"pub_date,timestamp(millisecond)"` // Unix ms
	Label       string  `parquet:"label"`
	Score       float64 `parquet:"score"`
	Confidence  float64 `parquet:"confidence"`
}

// NewsArchive keeps every scored news item ever displayed, one Parquet file
// per UTC publish date:
//
//	<DataDir>/news/<YYYY-MM-DD>.parquet
type NewsArchive struct {
	DataDir string

	mu sync.Mutex
}

// NewNewsArchive creates a NewsArchive rooted at the given data directory.
func NewNewsArchive(dataDir string) *NewsArchive {
	return &NewsArchive{DataDir: dataDir}
}

func (a *NewsArchive) path(date string) string {
	return filepath.Join(a.DataDir, "news", date+".parquet")
}

// Write merges items into the files of their publish dates. Items already
// archived (same symbol and id) are replaced.
func (a *NewsArchive) Write(_ context.Context, items []domain.ScoredNews) error {
	if len(items) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	groups := make(map[string][]NewsRecord)
	for _, it := range items {
		date := util.DateKey(it.PubDate)
		groups[date] = append(groups[date], toRecord(it))
	}

	for date, records := range groups {
		path := a.path(date)
		existing, err := readParquetFile[NewsRecord](path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("reading archive %s: %w", date, err)
		}
		merged := mergeNewsRecords(existing, records)
		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing archive %s: %w", date, err)
		}
	}
	return nil
}

// Read returns the archived items for symbol published on date, newest
// first. A date with no archive yields an empty slice.
func (a *NewsArchive) Read(_ context.Context, symbol, date string) ([]domain.ScoredNews, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	records, err := readParquetFile[NewsRecord](a.path(date))
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.ScoredNews{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", date, err)
	}

	symbol = strings.ToUpper(symbol)
	out := make([]domain.ScoredNews, 0, len(records))
	for _, r := range records {
		if r.Symbol == symbol {
			out = append(out, fromRecord(r))
		}
	}
	return out, nil
}

// Dates lists archived dates in ascending order.
func (a *NewsArchive) Dates(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.DataDir, "news"))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		dates = append(dates, strings.TrimSuffix(name, ".parquet"))
	}
	sort.Strings(dates)
	return dates, nil
}

func toRecord(n domain.ScoredNews) NewsRecord {
	return NewsRecord{
		ID:          n.ID,
		Symbol:      n.StockSymbol,
		Title:       n.Title,
		Description: n.Description,
		Link:        n.Link,
		Source:      n.Source,
		PubDate:     n.PubDate.UnixMilli(),
		Label:       string(n.Sentiment.Label),
		Score:       n.Sentiment.Score,
		Confidence:  n.Sentiment.Confidence,
	}
}

func fromRecord(r NewsRecord) domain.ScoredNews {
	return domain.ScoredNews{
		NewsItem: domain.NewsItem{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Link:        r.Link,
			PubDate:     time.UnixMilli(r.PubDate).UTC(),
			Source:      r.Source,
			StockSymbol: r.Symbol,
		},
		Sentiment: domain.SentimentResult{
			Label:      domain.SentimentLabel(r.Label),
			Score:      r.Score,
			Confidence: r.Confidence,
		},
	}
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeNewsRecords deduplicates records by (symbol, id), preferring incoming
// records over existing ones. Results are sorted newest first.
func mergeNewsRecords(existing, incoming []NewsRecord) []NewsRecord {
	type key struct {
		symbol string
		id     string
	}
	seen := make(map[key]NewsRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.ID}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.ID}] = r
	}

	merged := make([]NewsRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].PubDate != merged[j].PubDate {
			return merged[i].PubDate > merged[j].PubDate
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
