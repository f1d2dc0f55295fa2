/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server: configuration, dependency
  injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env supported)
  2. Parse command-line flags (flags override environment)
  3. Open and migrate the SQLite store
  4. Construct repository, balance cache, and service
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default from APP_PORT)
  -db      SQLite database path (default from DATABASE_PATH)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the database connection

SEE ALSO:
  - config/config.go: Environment configuration
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbook/ledger-engine/api"
	"github.com/pocketbook/ledger-engine/config"
	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/store/sqlite"
)

func main() {
	cfg := config.Load()

	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()

	setupLogger(cfg.LogFormat)

	store, err := sqlite.New(*dbPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	repo := ledger.NewRepository(store)
	cache := ledger.NewBalanceCache(cfg.CacheCapacity, cfg.CacheTTL)
	service := ledger.NewService(repo, cache, slog.Default())
	handler := api.NewHandler(service, slog.Default())

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, *port),
		Handler: api.NewRouter(handler, cfg.RequestTimeout),
	}

	go func() {
		slog.Info("ledger engine listening", "addr", server.Addr, "db", *dbPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func setupLogger(format string) {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, nil)
	default:
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	slog.SetDefault(slog.New(handler))
}
