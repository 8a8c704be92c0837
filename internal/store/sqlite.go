package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"metalpulse/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ HistoryStore = (*SQLiteHistory)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sentiment_points (
	symbol         TEXT    NOT NULL,
	date           TEXT    NOT NULL,
	average        REAL    NOT NULL,
	label          TEXT    NOT NULL,
	news_count     INTEGER NOT NULL,
	positive_count INTEGER NOT NULL,
	negative_count INTEGER NOT NULL,
	neutral_count  INTEGER NOT NULL,
	top_positive   TEXT    NOT NULL,
	top_negative   TEXT    NOT NULL,
	PRIMARY KEY (symbol, date)
);
CREATE TABLE IF NOT EXISTS sentiment_current (
	symbol  TEXT PRIMARY KEY,
	date    TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLiteHistory implements HistoryStore with one row per (symbol, date).
// The document view returned by LoadHistory matches the JSON store.
type SQLiteHistory struct {
	db         *sql.DB
	maxHistory int
	now        func() time.Time
}

// NewSQLiteHistory opens (or creates) a SQLite database at dbPath and
// applies the schema.
func NewSQLiteHistory(dbPath string, maxHistory int) (*SQLiteHistory, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteHistory{db: db, maxHistory: maxHistory, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// LoadHistory implements HistoryStore.
func (s *SQLiteHistory) LoadHistory(ctx context.Context) (*domain.SentimentHistory, error) {
	h := domain.NewSentimentHistory(s.now())

	var updated string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'last_updated'`).Scan(&updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("read last_updated: %w", err)
	default:
		if t, perr := time.Parse(time.RFC3339Nano, updated); perr == nil {
			h.LastUpdated = t
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT symbol, payload FROM sentiment_current`)
	if err != nil {
		return nil, fmt.Errorf("query current: %w", err)
	}
	for rows.Next() {
		var symbol, payload string
		if err := rows.Scan(&symbol, &payload); err != nil {
			rows.Close()
			return nil, err
		}
		var dp domain.SentimentDataPoint
		if err := json.Unmarshal([]byte(payload), &dp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode current %s: %w", symbol, err)
		}
		h.Stocks[symbol] = &domain.StockSentiment{CurrentSentiment: dp, History: []domain.SentimentDataPoint{}}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT symbol, date, average, label, news_count, positive_count,
		       negative_count, neutral_count, top_positive, top_negative
		FROM sentiment_points ORDER BY symbol, date`)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	// Symbols with points but no current row take their latest point.
	orphan := make(map[string]bool)
	for rows.Next() {
		var (
			dp       domain.SentimentDataPoint
			label    string
			pos, neg string
		)
		if err := rows.Scan(&dp.StockSymbol, &dp.Date, &dp.AverageSentiment, &label, &dp.NewsCount,
			&dp.PositiveCount, &dp.NegativeCount, &dp.NeutralCount, &pos, &neg); err != nil {
			return nil, err
		}
		dp.SentimentLabel = domain.MarketLabel(label)
		if err := json.Unmarshal([]byte(pos), &dp.TopPositiveNews); err != nil {
			return nil, fmt.Errorf("decode headlines: %w", err)
		}
		if err := json.Unmarshal([]byte(neg), &dp.TopNegativeNews); err != nil {
			return nil, fmt.Errorf("decode headlines: %w", err)
		}

		entry := h.Stocks[dp.StockSymbol]
		if entry == nil {
			entry = &domain.StockSentiment{History: []domain.SentimentDataPoint{}}
			h.Stocks[dp.StockSymbol] = entry
			orphan[dp.StockSymbol] = true
		}
		if orphan[dp.StockSymbol] {
			entry.CurrentSentiment = dp
		}
		entry.History = append(entry.History, dp)
	}
	return h, rows.Err()
}

// SaveHistory implements HistoryStore by replacing every row.
func (s *SQLiteHistory) SaveHistory(ctx context.Context, h *domain.SentimentHistory) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM sentiment_points`, `DELETE FROM sentiment_current`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	for symbol, entry := range h.Stocks {
		if entry == nil {
			continue
		}
		for _, dp := range entry.History {
			dp.StockSymbol = symbol
			if err := upsertPoint(ctx, tx, dp); err != nil {
				return err
			}
		}
		if err := upsertCurrent(ctx, tx, symbol, entry.CurrentSentiment); err != nil {
			return err
		}
	}
	if err := setLastUpdated(ctx, tx, h.LastUpdated); err != nil {
		return err
	}
	return tx.Commit()
}

// AppendDataPoint implements HistoryStore.
func (s *SQLiteHistory) AppendDataPoint(ctx context.Context, symbol string, dp domain.SentimentDataPoint) error {
	dp.StockSymbol = symbol

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := upsertPoint(ctx, tx, dp); err != nil {
		return err
	}
	if s.maxHistory > 0 {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM sentiment_points
			WHERE symbol = ? AND date NOT IN (
				SELECT date FROM sentiment_points WHERE symbol = ? ORDER BY date DESC LIMIT ?
			)`, symbol, symbol, s.maxHistory)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	if err := upsertCurrent(ctx, tx, symbol, dp); err != nil {
		return err
	}
	if err := setLastUpdated(ctx, tx, s.now()); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertPoint(ctx context.Context, tx *sql.Tx, dp domain.SentimentDataPoint) error {
	pos, err := json.Marshal(nonNil(dp.TopPositiveNews))
	if err != nil {
		return err
	}
	neg, err := json.Marshal(nonNil(dp.TopNegativeNews))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sentiment_points (symbol, date, average, label, news_count,
			positive_count, negative_count, neutral_count, top_positive, top_negative)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET
			average = excluded.average,
			label = excluded.label,
			news_count = excluded.news_count,
			positive_count = excluded.positive_count,
			negative_count = excluded.negative_count,
			neutral_count = excluded.neutral_count,
			top_positive = excluded.top_positive,
			top_negative = excluded.top_negative`,
		dp.StockSymbol, dp.Date, dp.AverageSentiment, string(dp.SentimentLabel), dp.NewsCount,
		dp.PositiveCount, dp.NegativeCount, dp.NeutralCount, string(pos), string(neg))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", dp.StockSymbol, dp.Date, err)
	}
	return nil
}

func upsertCurrent(ctx context.Context, tx *sql.Tx, symbol string, dp domain.SentimentDataPoint) error {
	payload, err := json.Marshal(dp)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sentiment_current (symbol, date, payload) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET date = excluded.date, payload = excluded.payload`,
		symbol, dp.Date, string(payload))
	if err != nil {
		return fmt.Errorf("upsert current %s: %w", symbol, err)
	}
	return nil
}

func setLastUpdated(ctx context.Context, tx *sql.Tx, t time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('last_updated', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		t.UTC().Format(time.RFC3339Nano))
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
