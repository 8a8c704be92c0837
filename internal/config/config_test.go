package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var overrideVars = []string{
	"APP_ENV", "DATA_DIR", "STORAGE_BACKEND", "SQLITE_PATH", "HOST", "PORT",
	"GRPC_PORT", "FRONTEND_URL", "LOG_LEVEL", "LOG_FORMAT",
	"HUGGINGFACE_API_KEY", "HUGGINGFACE_API_URL", "MARKET_DATA_PROVIDER",
	"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
}

// clearEnv blanks every override variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideVars {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3001)
	}
	if cfg.Storage.Backend != "json" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "json")
	}
	if cfg.News.TermDelay != 300*time.Millisecond {
		t.Errorf("News.TermDelay = %v, want 300ms", cfg.News.TermDelay)
	}
	if cfg.News.InstrumentDelay != 500*time.Millisecond {
		t.Errorf("News.InstrumentDelay = %v, want 500ms", cfg.News.InstrumentDelay)
	}
	if cfg.News.RecentDays != 7 {
		t.Errorf("News.RecentDays = %d, want 7", cfg.News.RecentDays)
	}
	if cfg.Sentiment.MaxRequests != 500 {
		t.Errorf("Sentiment.MaxRequests = %d, want 500", cfg.Sentiment.MaxRequests)
	}
	if cfg.Sentiment.WarmupDelay != 20*time.Second || cfg.Sentiment.MaxWarmupAttempts != 3 {
		t.Errorf("warm-up = %v x %d, want 20s x 3", cfg.Sentiment.WarmupDelay, cfg.Sentiment.MaxWarmupAttempts)
	}
	if cfg.Sentiment.PerDateItems != 5 || cfg.Sentiment.DisplayItems != 15 || cfg.Sentiment.CacheItems != 20 {
		t.Errorf("item caps = %d/%d/%d, want 5/15/20",
			cfg.Sentiment.PerDateItems, cfg.Sentiment.DisplayItems, cfg.Sentiment.CacheItems)
	}
	if cfg.History.MaxEntries != 30 {
		t.Errorf("History.MaxEntries = %d, want 30", cfg.History.MaxEntries)
	}
	if cfg.MarketData.QuoteDelay != 200*time.Millisecond {
		t.Errorf("MarketData.QuoteDelay = %v, want 200ms", cfg.MarketData.QuoteDelay)
	}
	if cfg.IsProduction() {
		t.Error("default env should not be production")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	yamlContent := []byte(`
env: production
storage:
  data_dir: "/tmp/metalpulse/data"
  backend: sqlite
  sqlite_path: "/tmp/metalpulse/metalpulse.db"
server:
  host: "127.0.0.1"
  port: 8080
  grpc_port: 0
  allowed_origins: ["https://metals.example.com"]
logging:
  level: "debug"
  format: "json"
news:
  term_delay: 1s
sentiment:
  api_key: "hf_test"
  max_requests: 50
  warmup_delay: 5s
market_data:
  provider: alpaca
  alpaca:
    api_key: "k"
    api_secret: "s"
instruments:
  - symbol: AAPL
    name: Apple Inc.
    search_terms: ["Apple"]
`)

	path := filepath.Join(t.TempDir(), "metalpulse.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/metalpulse/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/metalpulse/data")
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}

	// -- Server --
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", cfg.Addr(), "127.0.0.1:8080")
	}
	if cfg.Server.GRPCPort != 0 {
		t.Errorf("Server.GRPCPort = %d, want 0", cfg.Server.GRPCPort)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://metals.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}

	// -- Durations decode from strings; unset fields keep defaults --
	if cfg.News.TermDelay != time.Second {
		t.Errorf("News.TermDelay = %v, want 1s", cfg.News.TermDelay)
	}
	if cfg.News.InstrumentDelay != 500*time.Millisecond {
		t.Errorf("News.InstrumentDelay = %v, want 500ms", cfg.News.InstrumentDelay)
	}
	if cfg.Sentiment.WarmupDelay != 5*time.Second {
		t.Errorf("Sentiment.WarmupDelay = %v, want 5s", cfg.Sentiment.WarmupDelay)
	}
	if cfg.Sentiment.MaxRequests != 50 {
		t.Errorf("Sentiment.MaxRequests = %d, want 50", cfg.Sentiment.MaxRequests)
	}

	// -- Market data --
	if cfg.MarketData.Provider != "alpaca" || cfg.MarketData.Alpaca.APIKey != "k" {
		t.Errorf("MarketData = %+v", cfg.MarketData)
	}

	// -- Instruments --
	if len(cfg.Instruments) != 1 || cfg.Instruments[0].Symbol != "AAPL" {
		t.Fatalf("Instruments = %+v", cfg.Instruments)
	}
	if cfg.Instruments[0].SearchTerms[0] != "Apple" {
		t.Errorf("SearchTerms = %v", cfg.Instruments[0].SearchTerms)
	}

	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
}

func TestLoadInvalidBackend(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() should reject an unknown storage backend")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATA_DIR", "/override/data")
	t.Setenv("PORT", "4000")
	t.Setenv("HUGGINGFACE_API_KEY", "hf_env")
	t.Setenv("FRONTEND_URL", "https://app.example.com")
	t.Setenv("APCA_API_KEY_ID", "apca-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "production" {
		t.Errorf("Env = %q, want %q", cfg.Env, "production")
	}
	if cfg.Storage.DataDir != "/override/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/override/data")
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Sentiment.APIKey != "hf_env" {
		t.Errorf("Sentiment.APIKey = %q, want %q", cfg.Sentiment.APIKey, "hf_env")
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("Server.AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.MarketData.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.MarketData.Alpaca.APIKey, "apca-key")
	}
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("METALPULSE_DOTENV_PROBE=loaded\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ENV_FILE", path)
	t.Setenv("NO_DOTENV", "")
	os.Unsetenv("METALPULSE_DOTENV_PROBE")
	t.Cleanup(func() { os.Unsetenv("METALPULSE_DOTENV_PROBE") })

	LoadDotenv()

	if got := os.Getenv("METALPULSE_DOTENV_PROBE"); got != "loaded" {
		t.Errorf("METALPULSE_DOTENV_PROBE = %q, want %q", got, "loaded")
	}
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join("..", "..", "config", "metalpulse.yaml"))
	if err != nil {
		t.Fatalf("Load(sample) returned error: %v", err)
	}
	def := Default()

	if cfg.Sentiment.WarmupDelay != def.Sentiment.WarmupDelay {
		t.Errorf("WarmupDelay = %v, want %v", cfg.Sentiment.WarmupDelay, def.Sentiment.WarmupDelay)
	}
	if cfg.News.InstrumentDelay != def.News.InstrumentDelay {
		t.Errorf("InstrumentDelay = %v, want %v", cfg.News.InstrumentDelay, def.News.InstrumentDelay)
	}
	if cfg.Sentiment.APIURL != def.Sentiment.APIURL {
		t.Errorf("APIURL = %q, want %q", cfg.Sentiment.APIURL, def.Sentiment.APIURL)
	}
	if cfg.MarketData.QuoteDelay != def.MarketData.QuoteDelay {
		t.Errorf("QuoteDelay = %v, want %v", cfg.MarketData.QuoteDelay, def.MarketData.QuoteDelay)
	}
	if !cfg.Logging.File {
		t.Error("Logging.File = false, want true")
	}
}
