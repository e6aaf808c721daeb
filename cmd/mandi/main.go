package main

import (
	"context"
	"net/http"
	"os"

	"github.com/heysubinoy/pyazac/internal/node"
	"github.com/heysubinoy/pyazac/pkg/discovery"
)

func main() {
	addr := ":7000"
	if v := os.Getenv("MANDI_ADDR"); v != "" {
		addr = v
	}
	logger := node.NewLogger("mandi", os.Getenv("LOG_LEVEL"))

	registry := discovery.NewRegistry()
	go registry.CleanupLoop(context.Background())

	logger.Info("mandi listening", "addr", addr)
	if err := http.ListenAndServe(addr, registry.Handler()); err != nil {
		logger.Error("mandi stopped", "error", err)
		os.Exit(1)
	}
}
