package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"filekv/internal/api"
	"filekv/internal/config"
	"filekv/internal/metrics"
	"filekv/internal/persist"
	"filekv/internal/store"
	"filekv/internal/ttl"
)

func main() {
	// Config
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	// Root context, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stderr)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// run wires the server and blocks until ctx is cancelled or the listener
// fails. Everything it opens is closed before it returns.
func run(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Logger
	logger := cfg.NewLogger().WithOutput(logOut)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Persistence
	backend, err := persist.Open(ctx, cfg.PersistOptions())
	if err != nil {
		return err
	}
	defer backend.Close()

	// Store
	kvStore, err := store.NewStore(backend, metricsRegistry, logger)
	if err != nil {
		return err
	}
	logger.Infof("store ready: %d keys, backend %s at %s, limit %s",
		kvStore.Len(), cfg.Backend, cfg.DataPath(), humanize.IBytes(uint64(cfg.MaxFileSize)))

	// TTL sweeper
	var wg sync.WaitGroup
	sweeper := ttl.NewSweeper(kvStore, cfg.SweepInterval, logger, metricsRegistry)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	// API
	handler := api.NewHandler(kvStore, metricsRegistry, logger)
	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("http shutdown: %v", err)
		}
	}()

	logger.Infof("server started on %s", cfg.Listen)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
