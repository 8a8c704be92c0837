package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"metalpulse/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for metalpulse.
type Config struct {
	Env         string              `yaml:"env"`
	Storage     Storage             `yaml:"storage"`
	Server      Server              `yaml:"server"`
	Logging     Logging             `yaml:"logging"`
	News        News                `yaml:"news"`
	Sentiment   Sentiment           `yaml:"sentiment"`
	MarketData  MarketData          `yaml:"market_data"`
	History     History             `yaml:"history"`
	Instruments []domain.Instrument `yaml:"instruments"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	Backend    string `yaml:"backend"` // "json" or "sqlite" (sentiment history only)
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	GRPCPort       int      `yaml:"grpc_port"` // 0 disables the gRPC health listener
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   bool   `yaml:"file"` // also write to <data_dir>/log/<date>.log
}

// News configures the Google News RSS fetcher.
type News struct {
	BaseURL         string        `yaml:"base_url"`
	QuerySuffix     string        `yaml:"query_suffix"`
	Language        string        `yaml:"language"`
	Region          string        `yaml:"region"`
	Edition         string        `yaml:"edition"`
	TermDelay       time.Duration `yaml:"term_delay"`
	InstrumentDelay time.Duration `yaml:"instrument_delay"`
	RecentDays      int           `yaml:"recent_days"`
	Timeout         time.Duration `yaml:"timeout"`
}

// Sentiment configures the hosted classifier and its per-refresh budget.
type Sentiment struct {
	APIURL            string        `yaml:"api_url"`
	APIKey            string        `yaml:"api_key"`
	MaxRequests       int           `yaml:"max_requests"`
	ItemDelay         time.Duration `yaml:"item_delay"`
	WarmupDelay       time.Duration `yaml:"warmup_delay"`
	MaxWarmupAttempts int           `yaml:"max_warmup_attempts"`
	MaxInput          int           `yaml:"max_input"`
	PerDateItems      int           `yaml:"per_date_items"`
	DisplayItems      int           `yaml:"display_items"`
	CacheItems        int           `yaml:"cache_items"`
	Timeout           time.Duration `yaml:"timeout"`
}

// MarketData selects and configures the price provider.
type MarketData struct {
	Provider   string        `yaml:"provider"` // "yahoo" or "alpaca"
	YahooURL   string        `yaml:"yahoo_url"`
	UserAgent  string        `yaml:"user_agent"`
	QuoteDelay time.Duration `yaml:"quote_delay"`
	Timeout    time.Duration `yaml:"timeout"`
	Alpaca     Alpaca        `yaml:"alpaca"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// History bounds the rolling sentiment history.
type History struct {
	MaxEntries int `yaml:"max_entries"`
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		Storage: Storage{
			DataDir:    "data",
			Backend:    "json",
			SQLitePath: "data/metalpulse.db",
		},
		Server: Server{
			Host:           "0.0.0.0",
			Port:           3001,
			GRPCPort:       9091,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Logging: Logging{Level: "info", Format: "text"},
		News: News{
			BaseURL:         "https://news.google.com/rss/search",
			QuerySuffix:     "stock India",
			Language:        "en-IN",
			Region:          "IN",
			Edition:         "IN:en",
			TermDelay:       300 * time.Millisecond,
			InstrumentDelay: 500 * time.Millisecond,
			RecentDays:      7,
			Timeout:         15 * time.Second,
		},
		Sentiment: Sentiment{
			APIURL:            "https://router.huggingface.co/hf-inference/models/ProsusAI/finbert",
			MaxRequests:       500,
			ItemDelay:         time.Second,
			WarmupDelay:       20 * time.Second,
			MaxWarmupAttempts: 3,
			MaxInput:          512,
			PerDateItems:      5,
			DisplayItems:      15,
			CacheItems:        20,
			Timeout:           30 * time.Second,
		},
		MarketData: MarketData{
			Provider:   "yahoo",
			YahooURL:   "https://query1.finance.yahoo.com/v8/finance/chart",
			UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			QuoteDelay: 200 * time.Millisecond,
			Timeout:    15 * time.Second,
			Alpaca:     Alpaca{DataURL: "https://data.alpaca.markets"},
		},
		History: History{MaxEntries: 30},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over the built-in
// defaults and then applies environment variable overrides. An empty path or
// a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("storage.backend: unsupported %q", c.Storage.Backend)
	}
	switch c.MarketData.Provider {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("market_data.provider: unsupported %q", c.MarketData.Provider)
	}
	if c.History.MaxEntries <= 0 {
		return errors.New("history.max_entries must be positive")
	}
	if c.Sentiment.PerDateItems <= 0 || c.Sentiment.DisplayItems <= 0 || c.Sentiment.CacheItems <= 0 {
		return errors.New("sentiment item caps must be positive")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, err := strconv.Atoi(os.Getenv("PORT")); err == nil && v > 0 {
		cfg.Server.Port = v
	}
	if v, err := strconv.Atoi(os.Getenv("GRPC_PORT")); err == nil && v >= 0 {
		cfg.Server.GRPCPort = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.Server.AllowedOrigins = []string{v}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("HUGGINGFACE_API_KEY"); v != "" {
		cfg.Sentiment.APIKey = v
	}
	if v := os.Getenv("HUGGINGFACE_API_URL"); v != "" {
		cfg.Sentiment.APIURL = v
	}

	if v := os.Getenv("MARKET_DATA_PROVIDER"); v != "" {
		cfg.MarketData.Provider = v
	}
	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.MarketData.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.MarketData.Alpaca.APISecret = v
	}
}
