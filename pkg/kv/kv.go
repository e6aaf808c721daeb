package kv

import (
	"context"
	"errors"
)

var (
	// ErrTxConflict is returned by Exec when a watched key changed after it was watched.
	ErrTxConflict = errors.New("transaction aborted: watched key modified")

	// ErrMemberNotFound is returned by ZRank when the member is not in the set.
	ErrMemberNotFound = errors.New("member not found")

	// ErrStoreUnavailable is returned when the store cannot serve the request,
	// e.g. the remote endpoint is down or the raft node is not the leader.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidArgument is returned for malformed requests such as an empty key.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Member is an ordered-set entry. Sets are ordered by Score, then by Member bytewise.
type Member struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// Store defines the interface for a key-value store holding ordered sets and lists.
// Implementations of this interface can be swapped out,
// allowing for different storage backends (e.g., in-memory, Raft-replicated, remote).
//
// Index arguments (start, stop) are inclusive; negative values count from the end
// of the collection, so -1 is the last element.
type Store interface {
	// ZAdd inserts or updates members of the ordered set at key.
	// Returns the number of members that were newly added.
	ZAdd(ctx context.Context, key string, members ...Member) (int64, error)

	// ZRem removes members from the ordered set at key. Absent members are ignored.
	ZRem(ctx context.Context, key string, members ...string) (int64, error)

	// ZRank returns the 0-based ascending position of member, or ErrMemberNotFound.
	ZRank(ctx context.Context, key, member string) (int64, error)

	// ZRange returns the members between the two ranks.
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// LPush prepends values to the list at key and returns the new length.
	LPush(ctx context.Context, key string, values ...string) (int64, error)

	// LRem removes occurrences of value: count > 0 from the head, count < 0 from
	// the tail, count == 0 all of them. Returns the number removed.
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)

	// LTrim keeps only the elements between start and stop.
	LTrim(ctx context.Context, key string, start, stop int64) error

	// LRange returns the list elements between start and stop.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// Version returns the modification revision of key. It changes whenever the
	// contents of key change and is 0 for keys that were never written.
	Version(ctx context.Context, key string) (uint64, error)

	// Exec applies ops atomically. When any key in watch no longer has the given
	// version nothing is applied and ErrTxConflict is returned.
	Exec(ctx context.Context, watch map[string]uint64, ops []Op) ([]Result, error)
}
