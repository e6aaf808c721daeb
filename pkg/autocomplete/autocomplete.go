// Package autocomplete serves prefix suggestions out of a kv.Store.
//
// PrefixRangeIndex keeps one ordered set per collection with every member at
// score 0, so ordering is purely lexicographic, and answers a prefix query with
// a rank range read between two sentinel members under a watched transaction.
// RecentIndex keeps a bounded most-recent-first list and filters it client side.
package autocomplete

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

// Index is implemented by both variants.
type Index interface {
	Add(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key, value string) error
	FindPrefix(ctx context.Context, key, prefix string) ([]string, error)
}

var (
	_ Index = (*PrefixRangeIndex)(nil)
	_ Index = (*RecentIndex)(nil)
)

const (
	membersPrefix = "members:"
	recentPrefix  = "recent:"
)

type options struct {
	logger   hclog.Logger
	retry    RetryPolicy
	newToken func() string
	size     int
}

// Option configures an index.
type Option func(*options)

// WithLogger sets the parent logger; indexes log under a named sub-logger.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRetryPolicy bounds the optimistic transaction loop of PrefixRangeIndex.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(o *options) {
		o.retry = policy
	}
}

// WithTokenSource replaces the generator of sentinel suffixes (uuid v4 by default).
func WithTokenSource(f func() string) Option {
	return func(o *options) {
		o.newToken = f
	}
}

// WithSize bounds the RecentIndex list length.
func WithSize(size int) Option {
	return func(o *options) {
		o.size = size
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:   hclog.NewNullLogger(),
		retry:    DefaultRetryPolicy(),
		newToken: uuid.NewString,
		size:     DefaultRecentSize,
	}
	for _, f := range opts {
		f(o)
	}
	return o
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty collection key", kv.ErrInvalidArgument)
	}
	return nil
}

func validateMember(value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMember)
	}
	if strings.IndexByte(value, Terminator) >= 0 {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidMember, value, Terminator)
	}
	return nil
}

// validateOrderedMember additionally rejects bytes at or above the terminator,
// including every byte of a multi-byte UTF-8 sequence.
func validateOrderedMember(value string) error {
	if err := validateMember(value); err != nil {
		return err
	}
	for i := 0; i < len(value); i++ {
		if value[i] >= Terminator {
			return fmt.Errorf("%w: %q has byte %#x outside the ordered range", ErrInvalidMember, value, value[i])
		}
	}
	return nil
}
