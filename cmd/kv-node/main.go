package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/heysubinoy/pyazac/internal/node"
	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/config"
	"github.com/heysubinoy/pyazac/pkg/discovery"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		node.NewLogger("kv-node", "error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := node.NewLogger("kv-node", cfg.LogLevel).With("node_id", cfg.NodeID)

	fsm := store.NewRaftStore(store.NewMemStore())
	r, err := node.OpenRaft(cfg, fsm, logger)
	if err != nil {
		logger.Error("failed to start raft", "error", err)
		os.Exit(1)
	}
	fsm.SetRaft(r)

	disc := discovery.NewClient(cfg.MandiAddr)
	services := node.NewServices(fsm, r, cfg.Autocomplete, logger)
	services.HTTP.LeaderHTTPAddr = disc.LeaderHTTPAddr

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: services.Mux,
	}

	wg := &sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		node.ClusterLoop(ctx, r, disc, discovery.LeaderInfo{
			ID:       cfg.NodeID,
			Addr:     cfg.RaftAddr,
			HTTPAddr: cfg.HTTPAddr,
			GRPCAddr: cfg.GRPCAddr,
		}, logger)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := services.ServeGRPC(cfg.GRPCAddr, logger); err != nil {
			logger.Error("gRPC server stopped", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server stopped", "error", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	sig := <-signalChan
	logger.Info("signal received, shutting down", "signal", sig.String())

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpServer.Shutdown(shutdownCtx)
	services.GRPC.GracefulStop()
	if err := r.Shutdown().Error(); err != nil {
		logger.Error("raft shutdown failed", "error", err)
	}

	wg.Wait()
}
