package autocomplete

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazac/internal/store"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

// noisyStore modifies the watched set right before the first conflicts
// transactional batches, so they fail the way a concurrent writer would make them.
type noisyStore struct {
	*store.MemStore
	mu        sync.Mutex
	conflicts int
	noise     int
}

func (s *noisyStore) Exec(ctx context.Context, watch map[string]uint64, ops []kv.Op) ([]kv.Result, error) {
	s.mu.Lock()
	if len(watch) > 0 && s.conflicts != 0 {
		if s.conflicts > 0 {
			s.conflicts--
		}
		s.noise++
		for key := range watch {
			if _, err := s.MemStore.ZAdd(ctx, key, kv.Member{Member: fmt.Sprintf("noise%d", s.noise)}); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
	}
	s.mu.Unlock()
	return s.MemStore.Exec(ctx, watch, ops)
}

func fastRetry(attempts int) Option {
	return WithRetryPolicy(RetryPolicy{MaxAttempts: attempts})
}

func assertNoSentinels(t *testing.T, s kv.Store, key string) {
	t.Helper()
	all, err := s.ZRange(context.Background(), membersPrefix+key, 0, -1)
	require.NoError(t, err)
	for _, m := range all {
		assert.NotContains(t, m, string(Terminator))
	}
}

func TestPrefixRangeIndexFindPrefix(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem)

	for _, v := range []string{"wind", "windy", "winding", "win", "wine", "winc", "allen", "zebra"} {
		require.NoError(t, ix.Add(ctx, "allen", v))
	}

	got, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "winding", "windy"}, got)

	require.NoError(t, ix.Remove(ctx, "allen", "winding"))
	got, err = ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "windy"}, got)

	got, err = ix.FindPrefix(ctx, "allen", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"allen"}, got)

	got, err = ix.FindPrefix(ctx, "allen", "z")
	require.NoError(t, err)
	assert.Equal(t, []string{"zebra"}, got)

	got, err = ix.FindPrefix(ctx, "allen", "q")
	require.NoError(t, err)
	assert.Empty(t, got)

	assertNoSentinels(t, mem, "allen")
}

func TestPrefixRangeIndexEmptyCollection(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem)

	got, err := ix.FindPrefix(ctx, "nobody", "wind")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assertNoSentinels(t, mem, "nobody")
}

func TestPrefixRangeIndexAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix := NewPrefixRangeIndex(store.NewMemStore())

	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	require.NoError(t, ix.Remove(ctx, "allen", "never-added"))

	got, err := ix.FindPrefix(ctx, "allen", "wi")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind"}, got)
}

func TestPrefixRangeIndexCollectionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	ix := NewPrefixRangeIndex(store.NewMemStore())

	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	require.NoError(t, ix.Add(ctx, "bob", "window"))

	got, err := ix.FindPrefix(ctx, "bob", "win")
	require.NoError(t, err)
	assert.Equal(t, []string{"window"}, got)
}

func TestPrefixRangeIndexValidation(t *testing.T) {
	ctx := context.Background()
	ix := NewPrefixRangeIndex(store.NewMemStore())

	assert.ErrorIs(t, ix.Add(ctx, "allen", "a{b"), ErrInvalidMember)
	assert.ErrorIs(t, ix.Add(ctx, "allen", ""), ErrInvalidMember)
	assert.ErrorIs(t, ix.Add(ctx, "", "wind"), kv.ErrInvalidArgument)
	assert.ErrorIs(t, ix.Remove(ctx, "", "wind"), kv.ErrInvalidArgument)

	_, err := ix.FindPrefix(ctx, "allen", "")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
	_, err = ix.FindPrefix(ctx, "allen", "Wind")
	assert.ErrorIs(t, err, ErrInvalidPrefix)
	_, err = ix.FindPrefix(ctx, "", "wind")
	assert.ErrorIs(t, err, kv.ErrInvalidArgument)
}

func TestPrefixRangeIndexUsesTokenSource(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	var tokens []string
	ix := NewPrefixRangeIndex(mem, WithTokenSource(func() string {
		tok := fmt.Sprintf("tok%d", len(tokens))
		tokens = append(tokens, tok)
		return tok
	}))

	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	_, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	_, err = ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)

	assert.Equal(t, []string{"tok0", "tok1"}, tokens)
}

func TestPrefixRangeIndexRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	noisy := &noisyStore{MemStore: store.NewMemStore(), conflicts: 3}
	ix := NewPrefixRangeIndex(noisy, fastRetry(5))

	for _, v := range []string{"wind", "windy", "winding"} {
		require.NoError(t, ix.Add(ctx, "allen", v))
	}

	got, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "winding", "windy"}, got)
	assert.Equal(t, 0, noisy.conflicts)
	assertNoSentinels(t, noisy, "allen")
}

func TestPrefixRangeIndexTooManyConflicts(t *testing.T) {
	ctx := context.Background()
	noisy := &noisyStore{MemStore: store.NewMemStore(), conflicts: -1}
	ix := NewPrefixRangeIndex(noisy, fastRetry(3))

	require.NoError(t, ix.Add(ctx, "allen", "wind"))

	_, err := ix.FindPrefix(ctx, "allen", "wind")
	assert.ErrorIs(t, err, ErrTooManyConflicts)
	assert.Equal(t, 3, noisy.noise)
	assertNoSentinels(t, noisy, "allen")
}

func TestPrefixRangeIndexCancelledContext(t *testing.T) {
	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem)
	require.NoError(t, ix.Add(context.Background(), "allen", "wind"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ix.FindPrefix(ctx, "allen", "wind")
	assert.ErrorIs(t, err, context.Canceled)
	assertNoSentinels(t, mem, "allen")
}

func TestPrefixRangeIndexConcurrentQueries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem, WithRetryPolicy(RetryPolicy{MaxAttempts: 0}))
	for _, v := range []string{"wind", "windy", "winding", "wine", "winc", "window"} {
		require.NoError(t, ix.Add(ctx, "allen", v))
	}

	prefixes := []string{"wind", "win", "wi", "wine", "w"}
	wg := &sync.WaitGroup{}
	errs := make(chan error, 64)

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				prefix := prefixes[(g+i)%len(prefixes)]
				if err := ix.Add(ctx, "allen", fmt.Sprintf("wild%c", 'a'+rune(g))); err != nil {
					errs <- err
					return
				}
				got, err := ix.FindPrefix(ctx, "allen", prefix)
				if err != nil {
					errs <- err
					return
				}
				for _, m := range got {
					if !strings.HasPrefix(m, prefix) || strings.ContainsRune(m, Terminator) {
						errs <- fmt.Errorf("prefix %q returned %q", prefix, m)
						return
					}
				}
				if prefix == "wind" && len(got) != 4 {
					errs <- fmt.Errorf("prefix wind returned %v", got)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assertNoSentinels(t, mem, "allen")
}

// lossyStore applies sentinel inserts and then reports them as failed, like a
// leader that commits an entry and loses leadership before answering.
type lossyStore struct {
	*store.MemStore
}

func (s lossyStore) ZAdd(ctx context.Context, key string, members ...kv.Member) (int64, error) {
	n, err := s.MemStore.ZAdd(ctx, key, members...)
	if err == nil && len(members) > 0 && isSentinel(members[0].Member) {
		return n, fmt.Errorf("%w: leadership lost", kv.ErrStoreUnavailable)
	}
	return n, err
}

func TestPrefixRangeIndexDropsSentinelsWhenInsertFails(t *testing.T) {
	ctx := context.Background()
	lossy := lossyStore{MemStore: store.NewMemStore()}
	ix := NewPrefixRangeIndex(lossy)
	require.NoError(t, ix.Add(ctx, "allen", "wind"))

	_, err := ix.FindPrefix(ctx, "allen", "wind")
	assert.ErrorIs(t, err, kv.ErrStoreUnavailable)

	all, err := lossy.ZRange(ctx, membersPrefix+"allen", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"wind"}, all)
}

func TestPrefixRangeIndexRejectsValuesSortingAfterTerminator(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem)

	require.NoError(t, ix.Add(ctx, "allen", "wind"))
	require.NoError(t, ix.Add(ctx, "allen", "wind!"))
	require.NoError(t, ix.Add(ctx, "allen", "winDy"))
	for _, v := range []string{"wind|gust", "windé", "winc|x", "winc~", "wind}", "wind\x7f"} {
		assert.ErrorIs(t, ix.Add(ctx, "allen", v), ErrInvalidMember, "value %q", v)
	}

	got, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind", "wind!"}, got)
}

func TestPrefixRangeIndexFiltersForeignValues(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemStore()
	ix := NewPrefixRangeIndex(mem)

	// Written around the index, e.g. by an older client.
	_, err := mem.ZAdd(ctx, membersPrefix+"allen", kv.Member{Member: "winc|x"}, kv.Member{Member: "winc~"}, kv.Member{Member: "wind"})
	require.NoError(t, err)

	got, err := ix.FindPrefix(ctx, "allen", "wind")
	require.NoError(t, err)
	assert.Equal(t, []string{"wind"}, got)
}

func orderable(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] >= Terminator {
			return false
		}
	}
	return value != ""
}

func TestPrefixRangeIndexMatchesModel(t *testing.T) {
	ctx := context.Background()
	ix := NewPrefixRangeIndex(store.NewMemStore())
	rng := rand.New(rand.NewSource(7))

	pieces := []string{"w", "i", "n", "d", "a", "z", "`", "A", "!", "0", "|", "~", "}", "é", "\x7f"}
	randomValue := func() string {
		var b strings.Builder
		for n := 1 + rng.Intn(5); n > 0; n-- {
			b.WriteString(pieces[rng.Intn(len(pieces))])
		}
		return b.String()
	}
	const letters = "windaz"
	randomPrefix := func() string {
		b := make([]byte, 1+rng.Intn(3))
		for i := range b {
			b[i] = letters[rng.Intn(len(letters))]
		}
		return string(b)
	}

	model := make(map[string]bool)
	var added []string

	for step := 0; step < 600; step++ {
		switch rng.Intn(3) {
		case 0:
			v := randomValue()
			err := ix.Add(ctx, "allen", v)
			if !orderable(v) {
				require.ErrorIs(t, err, ErrInvalidMember, "value %q", v)
				continue
			}
			require.NoError(t, err, "value %q", v)
			model[v] = true
			added = append(added, v)

		case 1:
			if len(added) == 0 {
				continue
			}
			v := added[rng.Intn(len(added))]
			require.NoError(t, ix.Remove(ctx, "allen", v))
			delete(model, v)

		case 2:
			prefix := randomPrefix()
			want := make([]string, 0)
			for v := range model {
				if strings.HasPrefix(v, prefix) {
					want = append(want, v)
				}
			}
			sort.Strings(want)

			got, err := ix.FindPrefix(ctx, "allen", prefix)
			require.NoError(t, err)
			require.Equal(t, want, got, "step %d prefix %q", step, prefix)
		}
	}
}
