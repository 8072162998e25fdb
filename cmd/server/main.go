// Package main provides the unified metadata API server that runs all
// components together:
// - HTTP API: on-demand metadata resolution
// - Refresher (scheduled): staleness sweeps over stored records
// - Watcher (continuous): WebSocket push updates for watched accounts
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sumitgautam0101/solana-token-metadata-api/internal/domain"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/metaplex"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/observability"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/resolver"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/solana"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage"
	chstore "github.com/sumitgautam0101/solana-token-metadata-api/internal/storage/clickhouse"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage/memory"
	"github.com/sumitgautam0101/solana-token-metadata-api/internal/storage/migrations"
	pgstore "github.com/sumitgautam0101/solana-token-metadata-api/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	wsEndpoint      string
	listenAddr      string
	refreshInterval time.Duration
	refreshLimit    int
	refreshRPS      int
	syncInterval    time.Duration
	maxWatched      int

	// Stores
	stores *allStores

	// Components
	resolver *resolver.Resolver
	logger   *log.Logger

	// State
	mu      sync.Mutex
	watcher *resolver.Watcher
	started time.Time
}

// allStores holds all storage implementations.
type allStores struct {
	records     storage.TokenRecordStore
	resolutions storage.ResolutionLogStore // nil when no analytics backend is configured

	recordBackend string
	logBackend    string
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (empty disables account watching)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (empty disables the resolution log)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	listenAddr := flag.String("listen-addr", ":8080", "HTTP listen address")
	ttl := flag.Duration("ttl", resolver.DefaultTTL, "Record freshness TTL before a refetch")
	refreshInterval := flag.Duration("refresh-interval", 1*time.Minute, "Staleness sweep interval")
	refreshLimit := flag.Int("refresh-limit", 100, "Maximum records refreshed per sweep")
	refreshRPS := flag.Int("refresh-rps", 5, "RPC calls per second during a sweep")
	syncInterval := flag.Duration("sync-interval", 30*time.Second, "Watcher subscription sync interval")
	maxWatched := flag.Int("max-watched", 1000, "Maximum accounts watched over WebSocket")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()
	logger.Printf("Using %s record store, %s resolution log", stores.recordBackend, stores.logBackend)

	// Create RPC client and resolver
	rpc := solana.NewHTTPClient(*rpcEndpoint)
	res := resolver.NewResolver(resolver.Options{
		RPC:         rpc,
		Records:     stores.records,
		Resolutions: stores.resolutions,
		TTL:         *ttl,
		Logger:      log.New(os.Stdout, "[resolver] ", log.LstdFlags|log.Lshortfile),
	})

	// Create server
	server := &Server{
		wsEndpoint:      *wsEndpoint,
		listenAddr:      *listenAddr,
		refreshInterval: *refreshInterval,
		refreshLimit:    *refreshLimit,
		refreshRPS:      *refreshRPS,
		syncInterval:    *syncInterval,
		maxWatched:      *maxWatched,
		stores:          stores,
		resolver:        res,
		logger:          logger,
		started:         time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the record store and the optional resolution log.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			records:       memory.NewTokenRecordStore(),
			resolutions:   memory.NewResolutionLogStore(),
			recordBackend: "memory",
			logBackend:    "memory",
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	stores := &allStores{
		records:       pgstore.NewTokenRecordStore(pool),
		recordBackend: "postgres",
		logBackend:    "none",
	}

	cleanup := func() { pool.Close() }

	// ClickHouse resolution log is optional
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.resolutions = chstore.NewResolutionLogStore(conn)
		stores.logBackend = "clickhouse"
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	}

	return stores, cleanup, nil
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting metadata API server...")

	// Create error channel for goroutines
	errCh := make(chan error, 3)

	httpServer := &http.Server{
		Addr:    s.listenAddr,
		Handler: s.routes(),
	}

	// Start HTTP server in background
	go func() {
		s.logger.Printf("HTTP server listening on %s", s.listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start refresher in background
	go func() {
		err := s.runRefresher(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("refresher: %w", err)
		}
	}()

	// Start watcher in background when a WebSocket endpoint is configured
	if s.wsEndpoint != "" {
		go func() {
			err := s.runWatcher(ctx)
			if err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("watcher: %w", err)
			}
		}()
	} else {
		s.logger.Println("No WebSocket endpoint configured, account watching disabled")
	}

	go s.trackUptime(ctx)

	// Wait for context cancellation or error
	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	// Drain in-flight requests before returning
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Printf("HTTP server shutdown error: %v", err)
	}

	return runErr
}

// runRefresher runs the scheduled staleness sweep.
func (s *Server) runRefresher(ctx context.Context) error {
	refresher := resolver.NewRefresher(resolver.RefresherOptions{
		Resolver:   s.resolver,
		Records:    s.stores.records,
		Interval:   s.refreshInterval,
		BatchLimit: s.refreshLimit,
		RPS:        s.refreshRPS,
		Logger:     log.New(os.Stdout, "[refresher] ", log.LstdFlags|log.Lshortfile),
	})

	return refresher.Run(ctx)
}

// runWatcher runs the WebSocket account watcher.
func (s *Server) runWatcher(ctx context.Context) error {
	ws, err := solana.NewWSClient(ctx, s.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	watcher := resolver.NewWatcher(resolver.WatcherOptions{
		WS:           ws,
		Records:      s.stores.records,
		Resolutions:  s.stores.resolutions,
		SyncInterval: s.syncInterval,
		MaxWatched:   s.maxWatched,
		Logger:       log.New(os.Stdout, "[watcher] ", log.LstdFlags|log.Lshortfile),
	})

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	return watcher.Run(ctx)
}

// trackUptime feeds the uptime counter once a second.
func (s *Server) trackUptime(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.DefaultMetrics.UptimeSeconds.Inc()
		}
	}
}

// routes builds the HTTP handler for all endpoints.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// Metadata API
	mux.HandleFunc("GET /api/v1/metadata/{mint}", s.handleMetadata)

	return mux
}

// MetadataResponse is the JSON response for /api/v1/metadata/{mint}.
type MetadataResponse struct {
	Mint                 string            `json:"mint"`
	MetadataAddress      string            `json:"metadata_address"`
	UpdateAuthority      string            `json:"update_authority"`
	Name                 string            `json:"name"`
	Symbol               string            `json:"symbol"`
	URI                  string            `json:"uri"`
	SellerFeeBasisPoints int16             `json:"seller_fee_basis_points"`
	Creators             []CreatorResponse `json:"creators,omitempty"`
	PrimarySaleHappened  bool              `json:"primary_sale_happened"`
	IsMutable            bool              `json:"is_mutable"`
	Version              uint8             `json:"version"`
	Bump                 uint8             `json:"bump"`
	Slot                 int64             `json:"slot"`
	FetchedAt            int64             `json:"fetched_at"`
	UpdatedAt            int64             `json:"updated_at"`
}

// CreatorResponse is one creator entry in a MetadataResponse.
type CreatorResponse struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

// ErrorResponse is the JSON body for error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleMetadata resolves one mint and returns its token record.
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	mint := r.PathValue("mint")
	force := r.URL.Query().Get("refresh") == "1"

	var (
		record *domain.TokenRecord
		err    error
	)
	if force {
		record, err = s.resolver.Refresh(r.Context(), mint)
	} else {
		record, err = s.resolver.Resolve(r.Context(), mint)
	}
	if err != nil {
		s.writeResolveError(w, mint, err)
		return
	}

	writeJSON(w, http.StatusOK, toMetadataResponse(record))
}

// writeResolveError maps resolver failures to HTTP statuses.
func (s *Server) writeResolveError(w http.ResponseWriter, mint string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid mint address %q", mint)})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("no metadata account for mint %s", mint)})
	case metaplex.IsDecodeError(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Printf("Resolve %s failed: %v", mint, err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream fetch failed"})
	}
}

func toMetadataResponse(r *domain.TokenRecord) MetadataResponse {
	resp := MetadataResponse{
		Mint:                 r.Mint,
		MetadataAddress:      r.MetadataAddress,
		UpdateAuthority:      r.UpdateAuthority,
		Name:                 r.Name,
		Symbol:               r.Symbol,
		URI:                  r.URI,
		SellerFeeBasisPoints: r.SellerFeeBasisPoints,
		PrimarySaleHappened:  r.PrimarySaleHappened,
		IsMutable:            r.IsMutable,
		Version:              r.Version,
		Bump:                 r.Bump,
		Slot:                 r.Slot,
		FetchedAt:            r.FetchedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	for _, c := range r.Creators {
		resp.Creators = append(resp.Creators, CreatorResponse{
			Address:  c.Address,
			Verified: c.Verified,
			Share:    c.Share,
		})
	}
	return resp
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string           `json:"status"`
	Uptime          string           `json:"uptime"`
	Started         time.Time        `json:"started"`
	RecordBackend   string           `json:"record_backend"`
	LogBackend      string           `json:"log_backend"`
	Records         int64            `json:"records"`
	Resolutions     map[string]int64 `json:"resolutions,omitempty"`
	WatchedAccounts int              `json:"watched_accounts"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s.mu.Lock()
	watcher := s.watcher
	started := s.started
	s.mu.Unlock()

	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(started).String(),
		Started:       started,
		RecordBackend: s.stores.recordBackend,
		LogBackend:    s.stores.logBackend,
	}

	start := time.Now()
	count, err := s.stores.records.CountAll(ctx)
	observability.RecordDBQuery(s.stores.recordBackend, "count_all", time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Printf("Error counting records: %v", err)
	}
	resp.Records = count

	if s.stores.resolutions != nil {
		start = time.Now()
		byStatus, err := s.stores.resolutions.CountByStatus(ctx)
		observability.RecordDBQuery(s.stores.logBackend, "count_by_status", time.Since(start).Seconds(), err)
		if err != nil {
			s.logger.Printf("Error counting resolutions: %v", err)
		} else {
			resp.Resolutions = make(map[string]int64, len(byStatus))
			for status, n := range byStatus {
				resp.Resolutions[status.String()] = n
			}
		}
	}

	if watcher != nil {
		resp.WatchedAccounts = watcher.WatchedCount()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
