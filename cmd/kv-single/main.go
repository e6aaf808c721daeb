package main

import (
	"net/http"
	"os"

	"github.com/heysubinoy/pyazac/internal/node"
	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/config"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := node.NewLogger("kv-single", getenv("LOG_LEVEL", "info"))

	// Create the in-memory store
	memStore := store.NewMemStore()

	services := node.NewServices(memStore, nil, config.DefaultAutocomplete(), logger)

	// Start gRPC server in a goroutine
	go func() {
		if err := services.ServeGRPC(getenv("GRPC_ADDR", ":9090"), logger); err != nil {
			logger.Error("failed to serve gRPC", "error", err)
			os.Exit(1)
		}
	}()

	// Start the HTTP server
	httpAddr := getenv("HTTP_ADDR", ":8080")
	logger.Info("HTTP server listening", "addr", httpAddr)

	if err := http.ListenAndServe(httpAddr, services.Mux); err != nil {
		logger.Error("HTTP server stopped", "error", err)
		os.Exit(1)
	}
}
