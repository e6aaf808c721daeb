package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/raft"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

const defaultApplyTimeout = 5 * time.Second

// GetRaft returns the underlying raft.Raft pointer (for API layer leader checks)
func (rs *RaftStore) GetRaft() *raft.Raft {
	return rs.raft
}

// RaftCommand is a batch of ops to be applied via Raft. A plain write is a
// batch of one without watches.
type RaftCommand struct {
	Watch map[string]uint64 `json:"watch,omitempty"`
	Ops   []kv.Op           `json:"ops"`
}

// applyResponse is what the FSM hands back through the apply future.
type applyResponse struct {
	results []kv.Result
	err     error
}

// RaftStore wraps a MemStore and applies changes via Raft consensus.
// Reads are served from the local replica.
type RaftStore struct {
	store   *MemStore
	raft    *raft.Raft
	timeout time.Duration
}

// Compile-time checks.
var (
	_ kv.Store = (*RaftStore)(nil)
	_ raft.FSM = (*RaftStore)(nil)
)

// NewRaftStore returns the FSM. The raft node is attached later with SetRaft,
// because raft.NewRaft needs the FSM first.
func NewRaftStore(store *MemStore) *RaftStore {
	return &RaftStore{store: store, timeout: defaultApplyTimeout}
}

func (rs *RaftStore) SetRaft(r *raft.Raft) {
	rs.raft = r
}

// Apply applies a Raft log entry to the local store.
func (rs *RaftStore) Apply(log *raft.Log) interface{} {
	var cmd RaftCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return &applyResponse{err: fmt.Errorf("decode raft command: %w", err)}
	}
	results, err := rs.store.Exec(context.Background(), cmd.Watch, cmd.Ops)
	return &applyResponse{results: results, err: err}
}

// Snapshot captures the whole store as JSON.
func (rs *RaftStore) Snapshot() (raft.FSMSnapshot, error) {
	return &fsmSnapshot{snap: rs.store.Dump()}, nil
}

func (rs *RaftStore) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	snap := &Snapshot{}
	if err := json.NewDecoder(rc).Decode(snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	rs.store.Load(snap)
	return nil
}

type fsmSnapshot struct {
	snap *Snapshot
}

func (f *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	if err := json.NewEncoder(sink).Encode(f.snap); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (f *fsmSnapshot) Release() {}

// submit replicates cmd and returns the FSM results.
func (rs *RaftStore) submit(ctx context.Context, cmd RaftCommand) ([]kv.Result, error) {
	for _, op := range cmd.Ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}
	if rs.raft == nil {
		return nil, fmt.Errorf("%w: raft not started", kv.ErrStoreUnavailable)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode raft command: %w", err)
	}

	timeout := rs.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, ctx.Err()
		}
	}

	f := rs.raft.Apply(data, timeout)
	if err := f.Error(); err != nil {
		if errors.Is(err, raft.ErrNotLeader) || errors.Is(err, raft.ErrLeadershipLost) ||
			errors.Is(err, raft.ErrRaftShutdown) || errors.Is(err, raft.ErrEnqueueTimeout) {
			return nil, fmt.Errorf("%w: %s", kv.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	resp, ok := f.Response().(*applyResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected raft response %T", f.Response())
	}
	return resp.results, resp.err
}

func (rs *RaftStore) writeOne(ctx context.Context, op kv.Op) (kv.Result, error) {
	results, err := rs.submit(ctx, RaftCommand{Ops: []kv.Op{op}})
	if err != nil {
		return kv.Result{}, err
	}
	return results[0], nil
}

// ZAdd submits a zadd command to Raft.
func (rs *RaftStore) ZAdd(ctx context.Context, key string, members ...kv.Member) (int64, error) {
	res, err := rs.writeOne(ctx, kv.ZAddOp(key, members...))
	return res.N, err
}

// ZRem submits a zrem command to Raft.
func (rs *RaftStore) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	res, err := rs.writeOne(ctx, kv.ZRemOp(key, members...))
	return res.N, err
}

func (rs *RaftStore) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	res, err := rs.writeOne(ctx, kv.LPushOp(key, values...))
	return res.N, err
}

func (rs *RaftStore) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	res, err := rs.writeOne(ctx, kv.LRemOp(key, count, value))
	return res.N, err
}

func (rs *RaftStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	_, err := rs.writeOne(ctx, kv.LTrimOp(key, start, stop))
	return err
}

// Exec replicates the whole batch; the watch check happens inside the FSM so
// every replica takes the same decision.
func (rs *RaftStore) Exec(ctx context.Context, watch map[string]uint64, ops []kv.Op) ([]kv.Result, error) {
	return rs.submit(ctx, RaftCommand{Watch: watch, Ops: ops})
}

// ZRank reads directly from the local store.
func (rs *RaftStore) ZRank(ctx context.Context, key, member string) (int64, error) {
	return rs.store.ZRank(ctx, key, member)
}

func (rs *RaftStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return rs.store.ZRange(ctx, key, start, stop)
}

func (rs *RaftStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return rs.store.LRange(ctx, key, start, stop)
}

func (rs *RaftStore) Version(ctx context.Context, key string) (uint64, error) {
	return rs.store.Version(ctx, key)
}
