// Package app wires configuration into the running components shared by
// the metalpulse binaries.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"metalpulse/internal/api"
	"metalpulse/internal/config"
	"metalpulse/internal/httpapi"
	"metalpulse/internal/news"
	"metalpulse/internal/prices"
	"metalpulse/internal/refresh"
	"metalpulse/internal/registry"
	"metalpulse/internal/sentiment"
	"metalpulse/internal/store"
	"metalpulse/internal/util"
)

// App holds the wired components.
type App struct {
	Config    *config.Config
	Log       *slog.Logger
	Registry  *registry.Registry
	Docs      *store.JSONStore
	History   store.HistoryStore
	Archive   *store.NewsArchive
	Prices    *prices.Service
	Refresher *refresh.Orchestrator
	Health    *api.HealthServer

	closers []io.Closer
}

// New builds an App from cfg. The sentiment history lives in the backend
// named by cfg.Storage.Backend; the news and price caches are always JSON.
func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	log = util.OrDiscard(log)
	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: registry.New(cfg.Instruments),
		Docs:     store.NewJSONStore(cfg.Storage.DataDir, cfg.History.MaxEntries, log),
		Archive:  store.NewNewsArchive(cfg.Storage.DataDir),
		Health:   api.NewHealthServer(log),
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		db, err := store.NewSQLiteHistory(cfg.Storage.SQLitePath, cfg.History.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite history: %w", err)
		}
		a.History = db
		a.closers = append(a.closers, db)
	default:
		a.History = a.Docs
	}

	provider, err := prices.NewProvider(cfg.MarketData, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Prices = prices.NewService(provider, a.Registry, a.Docs, cfg.MarketData.QuoteDelay, log)

	a.Refresher = refresh.New(refresh.Deps{
		Registry: a.Registry,
		Source:   news.NewFetcher(cfg.News, log),
		History:  a.History,
		News:     a.Docs,
		Archive:  a.Archive,
		NewScorer: func(q *sentiment.Quota) sentiment.Scorer {
			return sentiment.NewClient(cfg.Sentiment, q, log)
		},
		Observers: []refresh.Observer{a.Health},
	}, refresh.OptionsFromConfig(cfg), log)

	log.Info("components ready",
		"instruments", a.Registry.Len(),
		"backend", cfg.Storage.Backend,
		"provider", cfg.MarketData.Provider,
		"data_dir", cfg.Storage.DataDir,
	)
	return a, nil
}

// HTTPServer returns the REST API server.
func (a *App) HTTPServer() *httpapi.Server {
	return httpapi.NewServer(httpapi.Deps{
		Registry:  a.Registry,
		History:   a.History,
		News:      a.Docs,
		Archive:   a.Archive,
		Prices:    a.Prices,
		Refresher: a.Refresher,
	}, httpapi.Options{
		Env:            a.Config.Env,
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	}, a.Log)
}

// Close releases open stores.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenLogFile opens <data_dir>/log/<name>-<date>.log for appending.
func OpenLogFile(cfg *config.Config, name string, now time.Time) (*os.File, error) {
	dir := filepath.Join(cfg.Storage.DataDir, "log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", name, util.DateKey(now)))
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Logger builds the process logger from cfg, teeing to a dated file when
// cfg.Logging.File is set. The returned close func is never nil.
func Logger(cfg *config.Config, name string) (*slog.Logger, func() error, error) {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if cfg.Logging.File {
		f, err := OpenLogFile(cfg, name, time.Now())
		if err != nil {
			return nil, closeFn, err
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	return util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, w), closeFn, nil
}
