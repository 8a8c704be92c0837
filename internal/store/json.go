package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"metalpulse/internal/domain"
	"metalpulse/internal/util"
)

// Document file names under the data directory.
const (
	HistoryFile = "sentiment-history.json"
	NewsFile    = "news-cache.json"
	PricesFile  = "stock-prices.json"
)

// Compile-time interface checks.
var _ HistoryStore = (*JSONStore)(nil)
var _ NewsStore = (*JSONStore)(nil)
var _ PriceStore = (*JSONStore)(nil)

// JSONStore keeps each document in its own JSON file. A missing or corrupt
// file loads as an empty document. Saves replace the whole file atomically.
type JSONStore struct {
	dir        string
	maxHistory int
	log        *slog.Logger
	now        func() time.Time

	// mu serializes load-modify-save cycles within this process.
	mu sync.Mutex
}

// NewJSONStore creates a JSONStore rooted at dir.
func NewJSONStore(dir string, maxHistory int, log *slog.Logger) *JSONStore {
	return &JSONStore{
		dir:        dir,
		maxHistory: maxHistory,
		log:        util.OrDiscard(log).With("component", "store"),
		now:        time.Now,
	}
}

// Dir returns the data directory.
func (s *JSONStore) Dir() string { return s.dir }

// ---------------------------------------------------------------------------
// Sentiment history
// ---------------------------------------------------------------------------

// LoadHistory implements HistoryStore.
func (s *JSONStore) LoadHistory(_ context.Context) (*domain.SentimentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHistory(), nil
}

func (s *JSONStore) loadHistory() *domain.SentimentHistory {
	h := domain.NewSentimentHistory(s.now())
	if !s.read(HistoryFile, h) || h.Stocks == nil {
		return domain.NewSentimentHistory(s.now())
	}
	for sym, entry := range h.Stocks {
		if entry == nil {
			delete(h.Stocks, sym)
			continue
		}
		if entry.History == nil {
			entry.History = []domain.SentimentDataPoint{}
		}
	}
	return h
}

// SaveHistory implements HistoryStore.
func (s *JSONStore) SaveHistory(_ context.Context, h *domain.SentimentHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(HistoryFile, h)
}

// AppendDataPoint implements HistoryStore.
func (s *JSONStore) AppendDataPoint(_ context.Context, symbol string, dp domain.SentimentDataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.loadHistory()
	ApplyDataPoint(h, symbol, dp, s.maxHistory, s.now())
	return s.write(HistoryFile, h)
}

// ---------------------------------------------------------------------------
// News cache
// ---------------------------------------------------------------------------

// LoadNews implements NewsStore.
func (s *JSONStore) LoadNews(_ context.Context) (*domain.NewsCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.NewNewsCache(s.now())
	if !s.read(NewsFile, c) || c.Stocks == nil {
		return domain.NewNewsCache(s.now()), nil
	}
	return c, nil
}

// SaveNews implements NewsStore.
func (s *JSONStore) SaveNews(_ context.Context, c *domain.NewsCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(NewsFile, c)
}

// ---------------------------------------------------------------------------
// Price cache
// ---------------------------------------------------------------------------

// LoadPrices implements PriceStore.
func (s *JSONStore) LoadPrices(_ context.Context) (*domain.PriceCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.NewPriceCache(s.now())
	if !s.read(PricesFile, c) || c.Stocks == nil {
		return domain.NewPriceCache(s.now()), nil
	}
	return c, nil
}

// SavePrices implements PriceStore.
func (s *JSONStore) SavePrices(_ context.Context, c *domain.PriceCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(PricesFile, c)
}

// ---------------------------------------------------------------------------
// File helpers
// ---------------------------------------------------------------------------

// read decodes name into v. It reports false when the file is absent or
// cannot be decoded; v may then be partially filled.
func (s *JSONStore) read(name string, v any) bool {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("read document", "path", path, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("decode document, starting empty", "path", path, "error", err)
		return false
	}
	return true
}

// write encodes v to a temp file and renames it over name.
func (s *JSONStore) write(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
