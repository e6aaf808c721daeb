// Package node wires the pieces shared by the kv-node and kv-single binaries.
package node

import (
	"net"
	"net/http"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/heysubinoy/pyazac/api/proto"
	"github.com/heysubinoy/pyazac/internal/api"
	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/autocomplete"
	"github.com/heysubinoy/pyazac/pkg/config"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

func NewLogger(name, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.LevelFromString(level),
		Output: os.Stderr,
	})
}

// RetryPolicy builds the index retry policy from configuration.
func RetryPolicy(cfg config.Autocomplete) autocomplete.RetryPolicy {
	policy := autocomplete.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.RetryAttempts()
	policy.Backoff = backoff.Config{
		BaseDelay:  cfg.BaseDelay,
		Multiplier: policy.Backoff.Multiplier,
		Jitter:     policy.Backoff.Jitter,
		MaxDelay:   cfg.MaxDelay,
	}
	return policy
}

// Services are the servers of one process, built around a single store.
type Services struct {
	Store    *store.InstrumentedStore
	Registry *prometheus.Registry
	GRPC     *grpc.Server
	HTTP     *api.Server
	Mux      *http.ServeMux
}

// NewServices instruments backend and exposes it over gRPC, plus the
// autocomplete and metrics endpoints over HTTP. raftNode may be nil.
func NewServices(backend kv.Store, raftNode *raft.Raft, cfg config.Autocomplete, logger hclog.Logger) *Services {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	instrumented := store.NewInstrumentedStore(backend, store.NewMetrics(reg))

	grpcServer := grpc.NewServer()
	proto.RegisterStoreServer(grpcServer, api.NewGRPCServer(instrumented))

	members := autocomplete.NewPrefixRangeIndex(instrumented,
		autocomplete.WithLogger(logger),
		autocomplete.WithRetryPolicy(RetryPolicy(cfg)),
	)
	recent := autocomplete.NewRecentIndex(instrumented,
		autocomplete.WithLogger(logger),
		autocomplete.WithSize(cfg.RecentSize),
	)
	httpServer := api.NewServer(members, recent, raftNode, logger)

	mux := http.NewServeMux()
	httpServer.RegisterRoutes(mux)
	mux.Handle("/metrics", api.MetricsHandler(reg))

	return &Services{
		Store:    instrumented,
		Registry: reg,
		GRPC:     grpcServer,
		HTTP:     httpServer,
		Mux:      mux,
	}
}

// ServeGRPC listens on addr and blocks serving the store.
func (s *Services) ServeGRPC(addr string, logger hclog.Logger) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.Info("gRPC server listening", "addr", addr)
	return s.GRPC.Serve(lis)
}
