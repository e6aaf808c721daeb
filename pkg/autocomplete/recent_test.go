package autocomplete

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

func TestRecentIndexMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	ix := NewRecentIndex(store.NewMemStore())

	for _, v := range []string{"wind", "windy", "winding", "apple"} {
		require.NoError(t, ix.Add(ctx, "allen", v))
	}

	got, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"winding", "windy", "wind"}, got)

	// Re-adding moves a value to the front without duplicating it.
	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	got, err = ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "winding", "windy"}, got)

	require.NoError(t, ix.Remove(ctx, "allen", "winding"))
	got, err = ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "windy"}, got)
}

func TestRecentIndexIgnoresCase(t *testing.T) {
	ctx := context.Background()
	ix := NewRecentIndex(store.NewMemStore())

	require.NoError(t, ix.Add(ctx, "allen", "Windsor"))
	require.NoError(t, ix.Add(ctx, "allen", "window"))

	got, err := ix.FindPrefix(ctx, "allen", "WIN")
	require.NoError(t, err)
	assert.Equal(t, []string{"window", "Windsor"}, got)
}

func TestRecentIndexIsBounded(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	ix := NewRecentIndex(mem, WithSize(2))

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, ix.Add(ctx, "allen", v))
	}

	all, err := mem.LRange(ctx, recentPrefix+"allen", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, all)
}

func TestRecentIndexValidation(t *testing.T) {
	ctx := context.Background()
	ix := NewRecentIndex(store.NewMemStore())

	assert.ErrorIs(t, ix.Add(ctx, "allen", "x{"), ErrInvalidMember)
	assert.ErrorIs(t, ix.Add(ctx, "", "wind"), kv.ErrInvalidArgument)
	_, err := ix.FindPrefix(ctx, "", "w")
	assert.ErrorIs(t, err, kv.ErrInvalidArgument)

	got, err := ix.FindPrefix(ctx, "nobody", "w")
	require.NoError(t, err)
	assert.Empty(t, got)
}
