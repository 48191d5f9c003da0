package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"surveys/internal/config"
)

// ServeMCP runs the survey runtime as an MCP server on stdin/stdout.
// It initializes storage, services, and runs the MCP server until interrupted.
func ServeMCP() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	a := New(cfg)
	if err := a.Startup(ctx); err != nil {
		a.Shutdown(context.Background())
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Shutdown(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- a.MCP().ServeStdio() }()

	select {
	case <-ctx.Done():
		log.Println("[MCP] Shutting down...")
	case err := <-errCh:
		if err != nil {
			log.Printf("MCP server error: %v", err)
		}
	}
}
