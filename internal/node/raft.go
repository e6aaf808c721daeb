package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/heysubinoy/pyazac/pkg/config"
	"github.com/heysubinoy/pyazac/pkg/discovery"
)

const (
	raftTimeout       = 10 * time.Second
	snapshotsRetained = 2
	clusterTick       = 3 * time.Second
)

// OpenRaft starts the raft node described by cfg around fsm. Logs and stable
// state live in a bolt file under RaftData, snapshots next to it.
// A node configured as leader bootstraps a single-server cluster on first start.
func OpenRaft(cfg *config.Config, fsm raft.FSM, logger hclog.Logger) (*raft.Raft, error) {
	rc := raft.DefaultConfig()
	rc.LocalID = raft.ServerID(cfg.NodeID)
	rc.Logger = logger.Named("raft")

	if err := os.MkdirAll(cfg.RaftData, 0o755); err != nil {
		return nil, fmt.Errorf("create raft dir: %w", err)
	}

	advertise, err := net.ResolveTCPAddr("tcp", cfg.RaftAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve raft addr: %w", err)
	}
	transport, err := raft.NewTCPTransportWithLogger(cfg.RaftAddr, advertise, 3, raftTimeout, logger.Named("raft-transport"))
	if err != nil {
		return nil, fmt.Errorf("raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStoreWithLogger(cfg.RaftData, snapshotsRetained, logger.Named("raft-snapshots"))
	if err != nil {
		return nil, fmt.Errorf("raft snapshot store: %w", err)
	}

	boltStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.RaftData, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("raft bolt store: %w", err)
	}

	r, err := raft.NewRaft(rc, fsm, boltStore, boltStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("new raft: %w", err)
	}

	if cfg.RaftLeader {
		hasState, err := raft.HasExistingState(boltStore, boltStore, snapshots)
		if err != nil {
			return nil, err
		}
		if !hasState {
			f := r.BootstrapCluster(raft.Configuration{
				Servers: []raft.Server{{ID: rc.LocalID, Address: transport.LocalAddr()}},
			})
			if err := f.Error(); err != nil && !errors.Is(err, raft.ErrCantBootstrap) {
				return nil, fmt.Errorf("bootstrap cluster: %w", err)
			}
		}
	}

	return r, nil
}

// ClusterLoop keeps the discovery service in sync with this node until ctx is
// done: while leader it announces itself and admits pending joiners as voters,
// otherwise it posts a join request until a leader is known.
func ClusterLoop(ctx context.Context, r *raft.Raft, disc *discovery.Client, self discovery.LeaderInfo, logger hclog.Logger) {
	logger = logger.Named("cluster")
	ticker := time.NewTicker(clusterTick)
	defer ticker.Stop()

	for {
		if r.State() == raft.Leader {
			announce(ctx, r, disc, self, logger)
		} else if r.Leader() == "" {
			if err := disc.RequestJoin(ctx, self.ID, self.Addr); err != nil {
				logger.Warn("join request failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func announce(ctx context.Context, r *raft.Raft, disc *discovery.Client, self discovery.LeaderInfo, logger hclog.Logger) {
	self.Term, _ = strconv.ParseUint(r.Stats()["term"], 10, 64)
	if err := disc.AnnounceLeader(ctx, self); err != nil {
		logger.Warn("leader announce failed", "error", err)
		return
	}

	requests, err := disc.JoinRequests(ctx)
	if err != nil {
		logger.Warn("list join requests failed", "error", err)
		return
	}
	for _, jr := range requests {
		if jr.ID == self.ID {
			continue
		}
		f := r.AddVoter(raft.ServerID(jr.ID), raft.ServerAddress(jr.Addr), 0, raftTimeout)
		if err := f.Error(); err != nil {
			logger.Warn("add voter failed", "id", jr.ID, "addr", jr.Addr, "error", err)
			continue
		}
		logger.Info("admitted voter", "id", jr.ID, "addr", jr.Addr)
		if err := disc.DeleteJoinRequest(ctx, jr.ID); err != nil {
			logger.Warn("delete join request failed", "id", jr.ID, "error", err)
		}
	}
}
