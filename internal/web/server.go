package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/autocompounder/internal/clock"
	"github.com/elys-network/autocompounder/internal/fees"
	"github.com/elys-network/autocompounder/internal/keeper"
	"github.com/elys-network/autocompounder/internal/logger"
	"github.com/elys-network/autocompounder/internal/state"
	"github.com/elys-network/autocompounder/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultHarvestLimit = 20
	maxHarvestLimit     = 1000
	defaultAPRWindow    = keeper.DefaultAPRWindow
)

// VaultView is the read side of the share vault.
type VaultView interface {
	ID() string
	Name() string
	Symbol() string
	Snapshot(ctx context.Context) (types.VaultSnapshot, error)
	BalanceOf(account types.Account) sdkmath.Int
	PricePerShare(ctx context.Context) (sdkmath.LegacyDec, error)
}

// StrategyView is the read side of the strategy.
type StrategyView interface {
	Snapshot(ctx context.Context) (types.StrategySnapshot, error)
	Fees() fees.FeeConfig
	SecurityFeeBps() uint32
	AverageAPRAcrossLastNHarvests(n int) (sdkmath.Int, error)
	HarvestLog() []types.HarvestEntry
	HarvestDue(now int64) bool
}

// CycleView exposes the keeper's most recent cycle.
type CycleView interface {
	LastCycle() (keeper.CycleResult, bool)
}

// HistoryView exposes persisted harvest history.
type HistoryView interface {
	Summary(ctx context.Context) (*state.HarvestSummary, error)
}

// Config holds the dependencies of the status server. Keeper, History, Metrics and
// DBCheck are optional.
type Config struct {
	Port     string
	Vault    VaultView
	Strategy StrategyView
	Clock    clock.Clock
	Keeper   CycleView
	History  HistoryView
	Metrics  http.Handler
	DBCheck  func(ctx context.Context) error
}

// WebServer serves the read-only status API.
type WebServer struct {
	router    *mux.Router
	port      string
	vault     VaultView
	strategy  StrategyView
	clock     clock.Clock
	keeper    CycleView
	history   HistoryView
	dbCheck   func(ctx context.Context) error
	startedAt time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Vault == nil || cfg.Strategy == nil {
		return nil, errors.New("web server needs a vault and a strategy")
	}
	if cfg.Clock == nil {
		return nil, errors.New("web server needs a clock")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	server := &WebServer{
		router:    mux.NewRouter(),
		port:      cfg.Port,
		vault:     cfg.Vault,
		strategy:  cfg.Strategy,
		clock:     cfg.Clock,
		keeper:    cfg.Keeper,
		history:   cfg.History,
		dbCheck:   cfg.DBCheck,
		startedAt: time.Now(),
	}
	server.setupRoutes(cfg.Metrics)
	return server, nil
}

// Handler returns the router, for tests and embedding.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes(metrics http.Handler) {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if metrics != nil {
		ws.router.Handle("/metrics", metrics).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vault", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vault/balances/{account}", ws.handleGetBalance).Methods("GET")
	api.HandleFunc("/strategy", ws.handleGetStrategy).Methods("GET")
	api.HandleFunc("/harvests", ws.handleGetHarvests).Methods("GET")
	api.HandleFunc("/harvests/summary", ws.handleGetHarvestSummary).Methods("GET")
	api.HandleFunc("/keeper/last", ws.handleGetLastCycle).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	webLogger.Info().Msg("Shutting down web server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth returns server health, degraded when the database is unreachable or the
// last keeper cycle failed.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	dbStatus := "disabled"
	if ws.dbCheck != nil {
		dbStatus = "healthy"
		if err := ws.dbCheck(r.Context()); err != nil {
			dbStatus = "unreachable"
			hasErrors = true
		}
	}

	cycleInfo := map[string]interface{}{
		"current_cycle":     0,
		"last_cycle_time":   nil,
		"last_cycle_status": "unknown",
	}
	if ws.keeper != nil {
		if last, ok := ws.keeper.LastCycle(); ok {
			status := "completed"
			if last.Error != "" {
				status = "failed"
				hasErrors = true
			}
			cycleInfo = map[string]interface{}{
				"current_cycle":     last.CycleNumber,
				"last_cycle_time":   last.StartedAt,
				"last_cycle_status": status,
				"harvested":         last.Harvested,
			}
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":  "autocompounder",
			"vault": ws.vault.ID(),
		},
		"keeper_status": map[string]interface{}{
			"database":   dbStatus,
			"cycle_info": cycleInfo,
		},
	}
	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVault returns the vault snapshot
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	snap, err := ws.vault.Snapshot(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to snapshot vault")
		ws.writeErrorResponse(w, viewErrorStatus(err), "Failed to retrieve vault")
		return
	}

	response := map[string]interface{}{
		"vault_id": ws.vault.ID(),
		"name":     ws.vault.Name(),
		"symbol":   ws.vault.Symbol(),
		"snapshot": snap,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBalance returns one account's shares and their value in want
func (ws *WebServer) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	account := types.Account(mux.Vars(r)["account"])
	if account.IsZero() {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid account")
		return
	}

	price, err := ws.vault.PricePerShare(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to read price per share")
		ws.writeErrorResponse(w, viewErrorStatus(err), "Failed to retrieve price per share")
		return
	}
	shares := ws.vault.BalanceOf(account)

	response := map[string]interface{}{
		"account":         account,
		"shares":          shares,
		"price_per_share": price,
		"value":           price.MulInt(shares).TruncateInt(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetStrategy returns the strategy snapshot, fee settings and average APR
func (ws *WebServer) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	window := parseLimit(r, "window", defaultAPRWindow, maxHarvestLimit)

	snap, err := ws.strategy.Snapshot(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to snapshot strategy")
		ws.writeErrorResponse(w, viewErrorStatus(err), "Failed to retrieve strategy")
		return
	}

	var apr interface{}
	switch v, err := ws.strategy.AverageAPRAcrossLastNHarvests(window); {
	case errors.Is(err, types.ErrInsufficientHistory):
		apr = nil
	case err != nil:
		webLogger.Error().Err(err).Msg("Failed to compute average APR")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute APR")
		return
	default:
		apr = v
	}

	// The snapshot's log is served by /api/harvests.
	snap.HarvestLog = nil

	response := map[string]interface{}{
		"strategy":         snap,
		"fees":             ws.strategy.Fees(),
		"security_fee_bps": ws.strategy.SecurityFeeBps(),
		"apr_bps":          apr,
		"apr_window":       window,
		"harvest_due":      ws.strategy.HarvestDue(ws.clock.Now()),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHarvests returns the most recent in-memory harvest log entries, oldest first
func (ws *WebServer) handleGetHarvests(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, "limit", defaultHarvestLimit, maxHarvestLimit)

	entries := ws.strategy.HarvestLog()
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if entries == nil {
		entries = []types.HarvestEntry{}
	}

	response := map[string]interface{}{
		"harvests": entries,
		"count":    len(entries),
		"limit":    limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetHarvestSummary returns the persisted harvest aggregates
func (ws *WebServer) handleGetHarvestSummary(w http.ResponseWriter, r *http.Request) {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}
	summary, err := ws.history.Summary(r.Context())
	if errors.Is(err, state.ErrPersistenceDisabled) {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Persistence disabled")
		return
	}
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get harvest summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve harvest summary")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetLastCycle returns the result of the keeper's most recent cycle
func (ws *WebServer) handleGetLastCycle(w http.ResponseWriter, r *http.Request) {
	if ws.keeper == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Keeper not running")
		return
	}
	last, ok := ws.keeper.LastCycle()
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles yet")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, last)
}

func parseLimit(r *http.Request, key string, fallback, ceiling int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	if parsed > ceiling {
		return ceiling
	}
	return parsed
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// viewErrorStatus maps a failed vault or strategy read to a status code. A read that
// arrives while a harvest is calling out to the liquidity source is refused and can be retried.
func viewErrorStatus(err error) int {
	if errors.Is(err, types.ErrReentrantCall) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
