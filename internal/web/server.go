package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/poolworks/navengine/internal/guard"
	"github.com/poolworks/navengine/internal/ledger"
	"github.com/poolworks/navengine/internal/logger"
	"github.com/poolworks/navengine/internal/state"
	"github.com/poolworks/navengine/internal/types"
	"github.com/poolworks/navengine/internal/valuation"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the pool accounting engine over HTTP.
type WebServer struct {
	router *mux.Router
	port   string

	store  state.Store
	engine *valuation.Engine
	ledger *ledger.Ledger

	// healthCheck probes the backing database; nil means no probe.
	healthCheck func() error
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, store state.Store, engine *valuation.Engine, l *ledger.Ledger, healthCheck func() error) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:      mux.NewRouter(),
		port:        port,
		store:       store,
		engine:      engine,
		ledger:      l,
		healthCheck: healthCheck,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleCreatePool).Methods("POST")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/valuation", ws.handleGetValuation).Methods("GET")
	api.HandleFunc("/pools/{id}/registry", ws.handleGetRegistry).Methods("GET")
	api.HandleFunc("/pools/{id}/holders/{holder}", ws.handleGetHolder).Methods("GET")
	api.HandleFunc("/pools/{id}/prices", ws.handleGetPriceHistory).Methods("GET")
	api.HandleFunc("/pools/{id}/issue", ws.handleIssue).Methods("POST")
	api.HandleFunc("/pools/{id}/redeem", ws.handleRedeem).Methods("POST")
	api.HandleFunc("/pools/{id}/refresh", ws.handleRefresh).Methods("POST")
	api.HandleFunc("/pools/{id}/sweep", ws.handleSweep).Methods("POST")
	api.HandleFunc("/pools/{id}/transfers/out", ws.handleTransferOut).Methods("POST")
	api.HandleFunc("/pools/{id}/transfers/in", ws.handleTransferIn).Methods("POST")
	api.HandleFunc("/pools/{id}/virtual-supply", ws.handleAdjustVirtualSupply).Methods("POST")
	api.HandleFunc("/pools/{id}/params", ws.handleSetParams).Methods("POST")
	api.HandleFunc("/pools/{id}/eligible-inputs", ws.handleSetEligibleInput).Methods("POST")
	api.HandleFunc("/pools/{id}/operators", ws.handleSetOperator).Methods("POST")
	api.HandleFunc("/pools/{id}/allow-list", ws.handleSetAllowed).Methods("POST")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// poolID extracts and parses the {id} path variable.
func poolID(r *http.Request) (types.PoolID, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return types.PoolID(id), true
}

// parseAmount parses a decimal string into an Int.
func parseAmount(raw string) (sdkmath.Int, bool) {
	return sdkmath.NewIntFromString(raw)
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, state.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrPoolExists):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrOperationInProgress):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrValuationUnavailable),
		errors.Is(err, ledger.ErrNoPrice):
		return http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrInvalidParams),
		errors.Is(err, ledger.ErrDepositTooSmall),
		errors.Is(err, ledger.ErrIneligibleInput),
		errors.Is(err, ledger.ErrZeroShares),
		errors.Is(err, ledger.ErrSlippage),
		errors.Is(err, ledger.ErrZeroOutput),
		errors.Is(err, ledger.ErrLockupActive),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrInsufficientHolding),
		errors.Is(err, ledger.ErrNotAllowed),
		errors.Is(err, ledger.ErrNotOperator),
		errors.Is(err, ledger.ErrAssetInactive),
		errors.Is(err, guard.ErrImpactExceeded),
		errors.Is(err, guard.ErrSupplyFloor),
		errors.Is(err, guard.ErrInvalidAmount),
		errors.Is(err, guard.ErrInvalidTolerance):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth returns server and database health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if ws.healthCheck != nil {
		if err := ws.healthCheck(); err != nil {
			dbHealthy = false
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
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
		},
		"component": map[string]interface{}{
			"name":    "navengine",
			"version": "1.0.0",
		},
		"database_healthy": dbHealthy,
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPool returns one pool's durable record.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}

	pool, err := ws.store.GetPool(r.Context(), id)
	if err != nil {
		webLogger.Error().Err(err).Uint64("poolId", uint64(id)).Msg("Failed to get pool")
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve pool")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, pool)
}

// handleGetValuation returns a live valuation alongside the stored one. An
// unavailable live valuation is flagged, not an error.
func (ws *WebServer) handleGetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}

	pool, err := ws.store.GetPool(r.Context(), id)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve pool")
		return
	}

	result, err := ws.engine.Compute(r.Context(), pool)
	if err != nil {
		webLogger.Error().Err(err).Uint64("poolId", uint64(id)).Msg("Valuation failed")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Valuation failed")
		return
	}

	response := map[string]interface{}{
		"pool_id":     id,
		"live":        result,
		"unavailable": result.Unavailable(),
		"stored": map[string]interface{}{
			"per_share_value": pool.StoredPerShareValue,
			"total_value":     pool.StoredTotalValue,
			"timestamp":       pool.StoredValueAt,
		},
		"share_supply":     pool.ShareSupply,
		"virtual_supply":   pool.VirtualSupply,
		"effective_supply": pool.EffectiveSupply(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRegistry returns the pool's active assets, eligible inputs and
// venue flags.
func (ws *WebServer) handleGetRegistry(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}

	assets, err := ws.store.GetActiveAssets(r.Context(), id)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve active assets")
		return
	}
	inputs, err := ws.store.GetEligibleInputs(r.Context(), id)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve eligible inputs")
		return
	}
	venues, err := ws.store.GetActiveVenues(r.Context(), id)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve active venues")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id":         id,
		"active_assets":   assets,
		"eligible_inputs": inputs,
		"active_venues":   venues,
	})
}

// handleGetHolder returns one holder's account.
func (ws *WebServer) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}
	holder := mux.Vars(r)["holder"]

	account, err := ws.store.GetHolder(r.Context(), id, holder)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve holder")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, account)
}

// handleGetPriceHistory returns recent stored price points, newest first.
func (ws *WebServer) handleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := poolID(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 1000 {
			limit = parsedLimit
		}
	}

	points, err := ws.store.PriceHistory(r.Context(), id, limit)
	if err != nil {
		ws.writeErrorResponse(w, statusForError(err), "Failed to retrieve price history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool_id": id,
		"prices":  points,
		"count":   len(points),
	})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
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

// writeOperationError logs and maps a failed operation onto an HTTP error.
func (ws *WebServer) writeOperationError(w http.ResponseWriter, err error, operation string) {
	webLogger.Error().Err(err).Str("operation", operation).Msg("Operation failed")
	ws.writeErrorResponse(w, statusForError(err), err.Error())
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
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

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
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
