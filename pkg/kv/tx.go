package kv

import (
	"context"
	"errors"
)

var errTxDone = errors.New("transaction already executed")

// Tx is the client side of an optimistic WATCH/MULTI/EXEC exchange.
//
// Watch snapshots key versions, reads go straight to the store, and queued
// commands are sent together by Exec, which fails with ErrTxConflict if any
// watched key changed in between. A Tx is single use.
type Tx struct {
	store Store
	watch map[string]uint64
	ops   []Op
	done  bool
}

func NewTx(store Store) *Tx {
	return &Tx{
		store: store,
		watch: make(map[string]uint64),
		ops:   make([]Op, 0),
	}
}

// Watch records the current version of each key.
func (tx *Tx) Watch(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		version, err := tx.store.Version(ctx, key)
		if err != nil {
			return err
		}
		tx.watch[key] = version
	}
	return nil
}

func (tx *Tx) ZRank(ctx context.Context, key, member string) (int64, error) {
	return tx.store.ZRank(ctx, key, member)
}

func (tx *Tx) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return tx.store.ZRange(ctx, key, start, stop)
}

func (tx *Tx) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return tx.store.LRange(ctx, key, start, stop)
}

// Queue appends op to the batch and returns its index in the Exec results.
func (tx *Tx) Queue(op Op) int {
	tx.ops = append(tx.ops, op)
	return len(tx.ops) - 1
}

// Exec sends the queued ops. Executing an empty batch still validates the watches.
func (tx *Tx) Exec(ctx context.Context) ([]Result, error) {
	if tx.done {
		return nil, errTxDone
	}
	tx.done = true

	return tx.store.Exec(ctx, tx.watch, tx.ops)
}
