// Package main serves a read-only HTTP API over the trading stores:
// health, metrics, status, day summaries and trade records.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krx-scalp-lab/internal/config"
	"krx-scalp-lab/internal/domain"
	"krx-scalp-lab/internal/observability"
	"krx-scalp-lab/internal/storage"
	"krx-scalp-lab/internal/storage/memory"
	"krx-scalp-lab/internal/storage/migrations"
	pgstore "krx-scalp-lab/internal/storage/postgres"
)

// Server exposes the stores over HTTP. No mutation endpoints.
type Server struct {
	summaryStore storage.DaySummaryStore
	tradeStore   storage.TradeRecordStore
	logger       *log.Logger
	started      time.Time
}

func main() {
	envPath := flag.String("env", "", "Path to .env file (default: ./.env if present)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.Parse()

	logger := log.New(os.Stderr, "[server] ", log.LstdFlags)

	cfg, err := config.Load(*envPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if !*useMemory && cfg.PostgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var summaryStore storage.DaySummaryStore = memory.NewDaySummaryStore()
	var tradeStore storage.TradeRecordStore = memory.NewTradeRecordStore()
	if !*useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to apply postgres migrations: %v", err)
		}
		summaryStore = pgstore.NewDaySummaryStore(pool)
		tradeStore = pgstore.NewTradeRecordStore(pool)
	}

	server := &Server{
		summaryStore: summaryStore,
		tradeStore:   tradeStore,
		logger:       logger,
		started:      time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/summaries", server.handleSummaries)
	mux.HandleFunc("/trades", server.handleTrades)

	httpServer := &http.Server{Addr: cfg.ServerAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		cancel()
	}()

	logger.Printf("Starting status server on %s", cfg.ServerAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("HTTP server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status      string             `json:"status"`
	Uptime      string             `json:"uptime"`
	LastSummary *domain.DaySummary `json:"last_summary,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status: "running",
		Uptime: time.Since(s.started).String(),
	}

	summary, err := s.summaryStore.GetLatest(r.Context())
	switch {
	case err == nil:
		resp.LastSummary = summary
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.logger.Printf("Failed to load latest summary: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, resp)
}

// handleSummaries serves /summaries?from=YYYYMMDD&to=YYYYMMDD.
func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		http.Error(w, "from and to query parameters are required", http.StatusBadRequest)
		return
	}

	summaries, err := s.summaryStore.GetByDateRange(r.Context(), from, to)
	if err != nil {
		s.logger.Printf("Failed to load summaries: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

// handleTrades serves /trades?date=YYYYMMDD.
func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required", http.StatusBadRequest)
		return
	}

	trades, err := s.tradeStore.GetByDate(r.Context(), date)
	if err != nil {
		s.logger.Printf("Failed to load trades: %v", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, trades)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if v == nil {
		v = []struct{}{}
	}
	json.NewEncoder(w).Encode(v)
}
