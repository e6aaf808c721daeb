package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

func TestTxCommitsWhenUntouched(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()
	_, err := s.ZAdd(ctx, "z", kv.Member{Member: "a"}, kv.Member{Member: "b"})
	require.NoError(t, err)

	tx := kv.NewTx(s)
	require.NoError(t, tx.Watch(ctx, "z"))

	rank, err := tx.ZRank(ctx, "z", "b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rank)

	tx.Queue(kv.ZRemOp("z", "a"))
	read := tx.Queue(kv.ZRangeOp("z", 0, -1))

	results, err := tx.Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, results[read].Values)

	_, err = tx.Exec(ctx)
	assert.Error(t, err)
}

func TestTxAbortsOnConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemStore()

	tx := kv.NewTx(s)
	require.NoError(t, tx.Watch(ctx, "z"))
	tx.Queue(kv.ZAddOp("z", kv.Member{Member: "mine"}))

	_, err := s.ZAdd(ctx, "z", kv.Member{Member: "theirs"})
	require.NoError(t, err)

	_, err = tx.Exec(ctx)
	assert.ErrorIs(t, err, kv.ErrTxConflict)

	all, err := s.ZRange(ctx, "z", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"theirs"}, all)
}

func TestOpValidate(t *testing.T) {
	assert.NoError(t, kv.ZRangeOp("z", 0, -1).Validate())
	assert.ErrorIs(t, kv.ZRangeOp("", 0, -1).Validate(), kv.ErrInvalidArgument)
	assert.ErrorIs(t, kv.ZAddOp("z").Validate(), kv.ErrInvalidArgument)
	assert.ErrorIs(t, kv.Op{Kind: "hset", Key: "z"}.Validate(), kv.ErrInvalidArgument)
}
