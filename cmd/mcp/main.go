// Command mcp serves the store over MCP on stdio. Logs go to stderr so they
// never interleave with protocol frames on stdout.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"filekv/internal/config"
	"filekv/internal/mcptools"
	"filekv/internal/metrics"
	"filekv/internal/persist"
	"filekv/internal/store"
	"filekv/internal/ttl"
)

const version = "0.1.0"

func main() {
	log.SetOutput(os.Stderr)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stderr, func(s *server.MCPServer) error {
		return server.ServeStdio(s)
	})
	stop()
	if err != nil {
		log.Fatal(err)
	}
}

// run wires the store and hands the MCP server to serve. The backend is
// closed and the sweeper stopped before it returns.
func run(ctx context.Context, cfg config.Config, logOut io.Writer, serve func(*server.MCPServer) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.NewLogger().WithOutput(logOut)
	metricsRegistry := metrics.NewRegistry()

	backend, err := persist.Open(ctx, cfg.PersistOptions())
	if err != nil {
		return err
	}
	defer backend.Close()

	kvStore, err := store.NewStore(backend, metricsRegistry, logger)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	sweeper := ttl.NewSweeper(kvStore, cfg.SweepInterval, logger, metricsRegistry)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Start(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	s := server.NewMCPServer("filekv", version,
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	mcptools.Register(s, kvStore)

	logger.Infof("mcp server ready: %d keys", kvStore.Len())
	return serve(s)
}
