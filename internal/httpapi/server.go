package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"metalpulse/internal/correlate"
	"metalpulse/internal/domain"
	"metalpulse/internal/refresh"
	"metalpulse/internal/registry"
	"metalpulse/internal/store"
	"metalpulse/internal/util"
)

const (
	defaultHistoryDays = 30
	defaultPeriod      = 30
	maxDays            = 365
	detailNewsItems    = 15
)

// PriceSource supplies live market data.
type PriceSource interface {
	Quotes(ctx context.Context) map[string]*domain.StockQuote
	Detail(ctx context.Context, inst domain.Instrument) (*domain.StockQuote, []domain.PriceBar)
	History(ctx context.Context, inst domain.Instrument, days int) []domain.PriceBar
}

// Refresher runs the refresh pipeline.
type Refresher interface {
	Run(ctx context.Context) (refresh.Summary, error)
	RequestCount() int
	Running() bool
}

// NewsArchive reads archived scored news.
type NewsArchive interface {
	Read(ctx context.Context, symbol, date string) ([]domain.ScoredNews, error)
}

// Deps are the collaborators of a Server. Archive is optional.
type Deps struct {
	Registry  *registry.Registry
	History   store.HistoryStore
	News      store.NewsStore
	Archive   NewsArchive
	Prices    PriceSource
	Refresher Refresher
}

// Options tune the HTTP surface.
type Options struct {
	Env            string   // "production" hides internal error text and the index
	AllowedOrigins []string // CORS origins honoured in production
}

// Server serves the REST API.
type Server struct {
	deps Deps
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// NewServer creates a Server.
func NewServer(deps Deps, opts Options, log *slog.Logger) *Server {
	return &Server{
		deps: deps,
		opts: opts,
		log:  util.OrDiscard(log).With("component", "httpapi"),
		now:  time.Now,
	}
}

func (s *Server) production() bool {
	return strings.EqualFold(s.opts.Env, "production")
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if !s.production() {
		mux.HandleFunc("GET /{$}", s.handleIndex)
	}
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/sentiment", s.handleOverview)
	mux.HandleFunc("GET /api/sentiment/{symbol}", s.handleSentimentDetail)
	mux.HandleFunc("GET /api/sentiment/{symbol}/history", s.handleHistory)
	mux.HandleFunc("POST /api/sentiment/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/sentiment/status/info", s.handleStatus)

	mux.HandleFunc("GET /api/stocks", s.handleStocks)
	mux.HandleFunc("GET /api/stocks/list/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStockDetail)
	mux.HandleFunc("GET /api/stocks/{symbol}/correlation", s.handleCorrelation)

	mux.HandleFunc("GET /api/news/{symbol}", s.handleArchive)
}

// Handler returns an http.Handler with CORS and, outside production,
// request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var h http.Handler = mux
	if !s.production() {
		h = s.logMiddleware(h)
	}
	return s.corsMiddleware(h)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case !s.production():
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.opts.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSONStatus(w, status, ErrorResponse{Error: code, Message: msg})
}

// internalError logs err and writes a 500. In production the message is
// replaced by public.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, public string) {
	s.log.Error("request failed", "path", r.URL.Path, "error", err)
	msg := err.Error()
	if s.production() {
		msg = public
	}
	writeError(w, http.StatusInternalServerError, CodeInternal, msg)
}

// lookup resolves the {symbol} path value or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Instrument, bool) {
	inst, err := s.deps.Registry.Lookup(r.PathValue("symbol"))
	if errors.Is(err, registry.ErrUnknownSymbol) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Stock not found")
		return domain.Instrument{}, false
	}
	return inst, true
}

// intParam parses a positive integer query parameter, falling back to def
// when absent.
func intParam(r *http.Request, name string, def int) (int, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxDays {
		return 0, false
	}
	return n, true
}

func lastN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, IndexResponse{
		Name:    ServiceName,
		Version: Version,
		Endpoints: []string{
			"GET /api/health",
			"GET /api/sentiment",
			"GET /api/sentiment/{symbol}",
			"GET /api/sentiment/{symbol}/history?days=30",
			"POST /api/sentiment/refresh",
			"GET /api/sentiment/status/info",
			"GET /api/stocks",
			"GET /api/stocks/list/symbols",
			"GET /api/stocks/{symbol}",
			"GET /api/stocks/{symbol}/correlation?period=30",
			"GET /api/news/{symbol}?date=YYYY-MM-DD",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	env := s.opts.Env
	if env == "" {
		env = "development"
	}
	writeJSON(w, HealthResponse{
		Status:      "ok",
		Service:     ServiceName,
		Version:     Version,
		Timestamp:   s.now().UTC(),
		Environment: env,
	})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	h, err := s.deps.History.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to fetch sentiment data")
		return
	}

	resp := make([]SentimentOverview, 0, s.deps.Registry.Len())
	for _, inst := range s.deps.Registry.All() {
		o := SentimentOverview{
			Symbol:      inst.Symbol,
			Name:        inst.ShortName,
			Sector:      inst.Sector,
			LastUpdated: h.LastUpdated,
		}
		if entry := h.Stocks[inst.Symbol]; entry != nil {
			cur := entry.CurrentSentiment
			o.Sentiment = &cur
		}
		resp = append(resp, o)
	}
	writeJSON(w, resp)
}

func (s *Server) handleSentimentDetail(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	h, err := s.deps.History.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to fetch stock sentiment")
		return
	}
	cache, err := s.deps.News.LoadNews(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to fetch stock sentiment")
		return
	}

	resp := SentimentDetail{
		Symbol:     inst.Symbol,
		History:    []domain.SentimentDataPoint{},
		RecentNews: []domain.ScoredNews{},
	}
	if entry := h.Stocks[inst.Symbol]; entry != nil {
		cur := entry.CurrentSentiment
		resp.CurrentSentiment = &cur
		if entry.History != nil {
			resp.History = entry.History
		}
	}
	if n := cache.Stocks[inst.Symbol]; n != nil && len(n.News) > 0 {
		resp.RecentNews = n.News[:min(len(n.News), detailNewsItems)]
	}
	writeJSON(w, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	days, ok := intParam(r, "days", defaultHistoryDays)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "days must be an integer between 1 and 365")
		return
	}
	h, err := s.deps.History.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to fetch history")
		return
	}

	resp := HistoryResponse{Symbol: inst.Symbol, History: []domain.SentimentDataPoint{}}
	if entry := h.Stocks[inst.Symbol]; entry != nil && entry.History != nil {
		resp.History = lastN(entry.History, days)
	}
	writeJSON(w, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// The refresh outlives a disconnecting client.
	sum, err := s.deps.Refresher.Run(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, refresh.ErrMissingAPIKey):
		writeError(w, http.StatusInternalServerError, CodeConfig,
			"HuggingFace API key not configured. Please set HUGGINGFACE_API_KEY environment variable")
		return
	case errors.Is(err, refresh.ErrInProgress):
		writeError(w, http.StatusConflict, CodeConflict, "A refresh is already in progress")
		return
	case err != nil:
		s.internalError(w, r, err, "Failed to refresh sentiment data")
		return
	}

	writeJSON(w, RefreshResponse{
		Success:         true,
		Message:         "Sentiment data refreshed with historical backfill",
		Timestamp:       s.now().UTC(),
		RunID:           sum.RunID,
		Processed:       sum.Processed,
		DatesProcessed:  sum.DatesProcessed,
		DatesSkipped:    sum.DatesSkipped,
		Errors:          sum.Errors,
		APIRequestsUsed: sum.RequestsUsed,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	h, err := s.deps.History.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to fetch status")
		return
	}
	writeJSON(w, StatusResponse{
		StocksTracked:          s.deps.Registry.Len(),
		StocksWithData:         len(h.Stocks),
		LastUpdated:            h.LastUpdated,
		APIRequestsThisSession: s.deps.Refresher.RequestCount(),
		RefreshInProgress:      s.deps.Refresher.Running(),
	})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	quotes := s.deps.Prices.Quotes(r.Context())

	resp := make([]StockSummary, 0, s.deps.Registry.Len())
	for _, inst := range s.deps.Registry.All() {
		resp = append(resp, StockSummary{
			Symbol:   inst.Symbol,
			Name:     inst.ShortName,
			FullName: inst.Name,
			Sector:   inst.Sector,
			Quote:    quotes[inst.Symbol],
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleSymbols(w http.ResponseWriter, _ *http.Request) {
	resp := make([]SymbolInfo, 0, s.deps.Registry.Len())
	for _, inst := range s.deps.Registry.All() {
		resp = append(resp, SymbolInfo{Symbol: inst.Symbol, Name: inst.ShortName, Sector: inst.Sector})
	}
	writeJSON(w, resp)
}

func (s *Server) handleStockDetail(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	quote, bars := s.deps.Prices.Detail(r.Context(), inst)
	if bars == nil {
		bars = []domain.PriceBar{}
	}
	writeJSON(w, StockDetail{
		Symbol:       inst.Symbol,
		Name:         inst.Name,
		ShortName:    inst.ShortName,
		Sector:       inst.Sector,
		MarketSymbol: inst.MarketSymbol,
		Quote:        quote,
		PriceHistory: bars,
	})
}

func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	period, ok := intParam(r, "period", defaultPeriod)
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "period must be an integer between 1 and 365")
		return
	}
	h, err := s.deps.History.LoadHistory(r.Context())
	if err != nil {
		s.internalError(w, r, err, "Failed to calculate correlation")
		return
	}

	var history []domain.SentimentDataPoint
	if entry := h.Stocks[inst.Symbol]; entry != nil {
		history = entry.History
	}
	bars := s.deps.Prices.History(r.Context(), inst, period)
	writeJSON(w, correlate.Analyze(inst.Symbol, period, history, bars))
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.lookup(w, r)
	if !ok {
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = util.DateKey(s.now())
	}
	if _, err := util.ParseDateKey(date); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	resp := ArchiveResponse{Symbol: inst.Symbol, Date: date, News: []domain.ScoredNews{}}
	if s.deps.Archive != nil {
		items, err := s.deps.Archive.Read(r.Context(), inst.Symbol, date)
		if err != nil {
			s.internalError(w, r, err, "Failed to read news archive")
			return
		}
		resp.News = items
	}
	writeJSON(w, resp)
}
