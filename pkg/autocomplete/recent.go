package autocomplete

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

const DefaultRecentSize = 100

// RecentIndex keeps the most recently added values of a collection in a
// bounded list and matches prefixes by scanning it. It suits small
// collections, e.g. a user's recent contacts.
type RecentIndex struct {
	store  kv.Store
	logger hclog.Logger
	size   int
}

// NewRecentIndex creates an index storing each collection as a bounded list in store.
func NewRecentIndex(store kv.Store, opts ...Option) *RecentIndex {
	o := newOptions(opts...)
	if o.size <= 0 {
		o.size = DefaultRecentSize
	}
	return &RecentIndex{
		store:  store,
		logger: o.logger.Named("recent-index"),
		size:   o.size,
	}
}

// Add moves value to the front of the list, trimming it to the configured size.
func (ix *RecentIndex) Add(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateMember(value); err != nil {
		return err
	}

	listKey := recentPrefix + key
	_, err := ix.store.Exec(ctx, nil, []kv.Op{
		kv.LRemOp(listKey, 0, value),
		kv.LPushOp(listKey, value),
		kv.LTrimOp(listKey, 0, int64(ix.size-1)),
	})
	return err
}

func (ix *RecentIndex) Remove(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	_, err := ix.store.LRem(ctx, recentPrefix+key, 0, value)
	return err
}

// FindPrefix returns matching values most recent first. Matching ignores case.
func (ix *RecentIndex) FindPrefix(ctx context.Context, key, prefix string) ([]string, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	candidates, err := ix.store.LRange(ctx, recentPrefix+key, 0, -1)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	matches := make([]string, 0)
	for _, candidate := range candidates {
		if strings.HasPrefix(strings.ToLower(candidate), prefix) {
			matches = append(matches, candidate)
		}
	}
	ix.logger.Trace("recent prefix scan", "key", key, "candidates", len(candidates), "matches", len(matches))
	return matches, nil
}
