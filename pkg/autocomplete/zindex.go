package autocomplete

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

const sentinelCleanupTimeout = 5 * time.Second

// PrefixRangeIndex answers prefix queries with a range read over an ordered set.
type PrefixRangeIndex struct {
	store    kv.Store
	logger   hclog.Logger
	retry    RetryPolicy
	newToken func() string
}

// NewPrefixRangeIndex creates an index storing each collection as an ordered set in store.
func NewPrefixRangeIndex(store kv.Store, opts ...Option) *PrefixRangeIndex {
	o := newOptions(opts...)
	return &PrefixRangeIndex{
		store:    store,
		logger:   o.logger.Named("prefix-index"),
		retry:    o.retry,
		newToken: o.newToken,
	}
}

// Add inserts value into the collection. Adding an existing value is a no-op.
// Values must not contain bytes sorting at or after the terminator, or they
// would fall outside the ranges FindPrefix reads.
func (ix *PrefixRangeIndex) Add(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateOrderedMember(value); err != nil {
		return err
	}
	_, err := ix.store.ZAdd(ctx, membersPrefix+key, kv.Member{Member: value})
	return err
}

// Remove deletes value from the collection. Absent values are ignored.
func (ix *PrefixRangeIndex) Remove(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := ix.store.ZRem(ctx, membersPrefix+key, value)
	return err
}

// FindPrefix returns the members of the collection starting with prefix, in
// lexicographic order.
//
// Two sentinels bracketing the prefix range are inserted first. Then, under a
// watch on the collection, their ranks are read and a single batch removes
// them and reads everything in between. A conflicting writer aborts the batch
// and the watch is retried with the same sentinels.
func (ix *PrefixRangeIndex) FindPrefix(ctx context.Context, key, prefix string) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	low, high, err := PrefixRange(prefix)
	if err != nil {
		return nil, err
	}

	token := ix.newToken()
	start, end := low+token, high+token
	setKey := membersPrefix + key

	_, err = ix.store.ZAdd(ctx, setKey, kv.Member{Member: start}, kv.Member{Member: end})
	if err != nil {
		// The write may have been applied before the error surfaced.
		ix.dropSentinels(setKey, start, end)
		return nil, fmt.Errorf("insert prefix sentinels: %w", err)
	}

	var items []string
	err = ix.retry.Do(ctx, func() error {
		var err error
		items, err = ix.rangeBetween(ctx, setKey, start, end)
		return err
	}, func(attempt int) {
		ix.logger.Debug("watched key modified, retrying", "key", setKey, "prefix", prefix, "attempt", attempt)
	})
	if err != nil {
		ix.dropSentinels(setKey, start, end)
		return nil, err
	}

	matches := make([]string, 0, len(items))
	for _, item := range items {
		if isSentinel(item) || !strings.HasPrefix(item, prefix) {
			continue
		}
		matches = append(matches, item)
	}
	return matches, nil
}

// rangeBetween is one watch/multi/exec round.
func (ix *PrefixRangeIndex) rangeBetween(ctx context.Context, setKey, start, end string) ([]string, error) {
	tx := kv.NewTx(ix.store)
	if err := tx.Watch(ctx, setKey); err != nil {
		return nil, err
	}

	startRank, err := tx.ZRank(ctx, setKey, start)
	if err != nil {
		return nil, fmt.Errorf("rank of lower sentinel: %w", err)
	}
	endRank, err := tx.ZRank(ctx, setKey, end)
	if err != nil {
		return nil, fmt.Errorf("rank of upper sentinel: %w", err)
	}

	tx.Queue(kv.ZRemOp(setKey, start, end))

	// Once both sentinels are gone the members between them sit at
	// startRank..endRank-2.
	read := -1
	if endRank-2 >= startRank {
		read = tx.Queue(kv.ZRangeOp(setKey, startRank, endRank-2))
	}

	results, err := tx.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if read < 0 {
		return []string{}, nil
	}
	return results[read].Values, nil
}

// dropSentinels removes the markers of a failed query so they do not outlive it.
func (ix *PrefixRangeIndex) dropSentinels(setKey, start, end string) {
	ctx, cancel := context.WithTimeout(context.Background(), sentinelCleanupTimeout)
	defer cancel()

	if _, err := ix.store.ZRem(ctx, setKey, start, end); err != nil {
		ix.logger.Warn("failed to remove prefix sentinels", "key", setKey, "error", err)
	}
}
