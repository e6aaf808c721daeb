package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

const btreeDegree = 32

// MemStore is an in-memory implementation of the kv.Store interface.
// Ordered sets are B-trees sorted by (score, member); lists are slices.
// Every effective mutation stamps the key with a new global revision, which is
// what Exec compares watched versions against.
type MemStore struct {
	mu       sync.RWMutex
	zsets    map[string]*zset
	lists    map[string][]string
	versions map[string]uint64 // kept after deletion so versions are never reused
	revision uint64
}

// Compile-time check to ensure MemStore implements kv.Store.
var _ kv.Store = (*MemStore)(nil)

// NewMemStore creates and returns a new MemStore instance.
func NewMemStore() *MemStore {
	return &MemStore{
		zsets:    make(map[string]*zset),
		lists:    make(map[string][]string),
		versions: make(map[string]uint64),
	}
}

type zset struct {
	scores map[string]float64
	tree   *btree.BTreeG[kv.Member]
}

func lessMember(a, b kv.Member) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

func newZSet() *zset {
	return &zset{
		scores: make(map[string]float64),
		tree:   btree.NewG(btreeDegree, lessMember),
	}
}

func (z *zset) add(m kv.Member) (added, changed bool) {
	old, exists := z.scores[m.Member]
	if exists {
		if old == m.Score {
			return false, false
		}
		z.tree.Delete(kv.Member{Member: m.Member, Score: old})
	}
	z.scores[m.Member] = m.Score
	z.tree.ReplaceOrInsert(m)
	return !exists, true
}

func (z *zset) remove(member string) bool {
	score, exists := z.scores[member]
	if !exists {
		return false
	}
	delete(z.scores, member)
	z.tree.Delete(kv.Member{Member: member, Score: score})
	return true
}

// rank counts the members ordered before member. O(rank).
func (z *zset) rank(member string) (int64, bool) {
	score, exists := z.scores[member]
	if !exists {
		return -1, false
	}
	var n int64
	z.tree.AscendLessThan(kv.Member{Member: member, Score: score}, func(kv.Member) bool {
		n++
		return true
	})
	return n, true
}

func (z *zset) rangeByRank(start, stop int64) []string {
	start, stop, ok := normalizeRange(start, stop, int64(z.tree.Len()))
	if !ok {
		return []string{}
	}
	result := make([]string, 0, stop-start+1)
	var i int64
	z.tree.Ascend(func(m kv.Member) bool {
		if i > stop {
			return false
		}
		if i >= start {
			result = append(result, m.Member)
		}
		i++
		return true
	})
	return result
}

// normalizeRange resolves negative indexes against n and clamps to [0, n-1].
func normalizeRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

func (s *MemStore) touch(key string) {
	s.revision++
	s.versions[key] = s.revision
}

func (s *MemStore) checkType(op kv.Op) error {
	_, isList := s.lists[op.Key]
	_, isZSet := s.zsets[op.Key]
	switch op.Kind {
	case kv.OpZAdd, kv.OpZRem, kv.OpZRank, kv.OpZRange:
		if isList {
			return fmt.Errorf("%w: key %q holds a list", kv.ErrInvalidArgument, op.Key)
		}
	default:
		if isZSet {
			return fmt.Errorf("%w: key %q holds an ordered set", kv.ErrInvalidArgument, op.Key)
		}
	}
	return nil
}

func isListOp(kind kv.OpKind) bool {
	switch kind {
	case kv.OpLPush, kv.OpLRem, kv.OpLTrim, kv.OpLRange:
		return true
	}
	return false
}

// checkBatchTypes runs checkType over ops, also tracking keys that earlier
// ops of the same batch would create.
func (s *MemStore) checkBatchTypes(ops []kv.Op) error {
	created := make(map[string]bool)
	for _, op := range ops {
		if err := s.checkType(op); err != nil {
			return err
		}
		list, seen := created[op.Key]
		if seen && list != isListOp(op.Kind) {
			return fmt.Errorf("%w: key %q changes type inside the batch", kv.ErrInvalidArgument, op.Key)
		}
		if op.Kind == kv.OpZAdd || op.Kind == kv.OpLPush {
			created[op.Key] = isListOp(op.Kind)
		}
	}
	return nil
}

// apply runs one op. The caller holds the write lock for mutations.
// Inside a batch ZRank reports absent members as N = -1.
func (s *MemStore) apply(op kv.Op) (kv.Result, error) {
	if err := s.checkType(op); err != nil {
		return kv.Result{}, err
	}

	switch op.Kind {
	case kv.OpZAdd:
		z, ok := s.zsets[op.Key]
		if !ok {
			z = newZSet()
			s.zsets[op.Key] = z
		}
		var added int64
		changed := false
		for _, m := range op.Members {
			a, c := z.add(m)
			if a {
				added++
			}
			changed = changed || c
		}
		if changed {
			s.touch(op.Key)
		}
		return kv.Result{N: added}, nil

	case kv.OpZRem:
		z, ok := s.zsets[op.Key]
		if !ok {
			return kv.Result{}, nil
		}
		var removed int64
		for _, member := range op.Values {
			if z.remove(member) {
				removed++
			}
		}
		if z.tree.Len() == 0 {
			delete(s.zsets, op.Key)
		}
		if removed > 0 {
			s.touch(op.Key)
		}
		return kv.Result{N: removed}, nil

	case kv.OpZRank:
		z, ok := s.zsets[op.Key]
		if !ok {
			return kv.Result{N: -1}, nil
		}
		rank, _ := z.rank(op.Values[0])
		return kv.Result{N: rank}, nil

	case kv.OpZRange:
		z, ok := s.zsets[op.Key]
		if !ok {
			return kv.Result{Values: []string{}}, nil
		}
		return kv.Result{Values: z.rangeByRank(op.Start, op.Stop)}, nil

	case kv.OpLPush:
		list := s.lists[op.Key]
		pushed := make([]string, 0, len(list)+len(op.Values))
		for i := len(op.Values) - 1; i >= 0; i-- {
			pushed = append(pushed, op.Values[i])
		}
		pushed = append(pushed, list...)
		s.lists[op.Key] = pushed
		s.touch(op.Key)
		return kv.Result{N: int64(len(pushed))}, nil

	case kv.OpLRem:
		list, ok := s.lists[op.Key]
		if !ok {
			return kv.Result{}, nil
		}
		kept, removed := removeFromList(list, op.Values[0], op.Count)
		if removed == 0 {
			return kv.Result{}, nil
		}
		s.storeList(op.Key, kept)
		s.touch(op.Key)
		return kv.Result{N: removed}, nil

	case kv.OpLTrim:
		list, ok := s.lists[op.Key]
		if !ok {
			return kv.Result{}, nil
		}
		start, stop, ok := normalizeRange(op.Start, op.Stop, int64(len(list)))
		var kept []string
		if ok {
			kept = append([]string{}, list[start:stop+1]...)
		}
		if len(kept) != len(list) {
			s.storeList(op.Key, kept)
			s.touch(op.Key)
		}
		return kv.Result{N: int64(len(kept))}, nil

	case kv.OpLRange:
		list := s.lists[op.Key]
		start, stop, ok := normalizeRange(op.Start, op.Stop, int64(len(list)))
		if !ok {
			return kv.Result{Values: []string{}}, nil
		}
		return kv.Result{Values: append([]string{}, list[start:stop+1]...)}, nil
	}

	return kv.Result{}, fmt.Errorf("%w: unknown op %q", kv.ErrInvalidArgument, op.Kind)
}

func (s *MemStore) storeList(key string, list []string) {
	if len(list) == 0 {
		delete(s.lists, key)
		return
	}
	s.lists[key] = list
}

func removeFromList(list []string, value string, count int64) ([]string, int64) {
	limit := count
	if limit < 0 {
		limit = -limit
	}
	var removed int64
	drop := make([]bool, len(list))
	mark := func(i int) bool {
		if list[i] != value {
			return true
		}
		drop[i] = true
		removed++
		return limit == 0 || removed < limit
	}
	if count < 0 {
		for i := len(list) - 1; i >= 0 && mark(i); i-- {
		}
	} else {
		for i := 0; i < len(list) && mark(i); i++ {
		}
	}

	kept := make([]string, 0, len(list)-int(removed))
	for i, v := range list {
		if !drop[i] {
			kept = append(kept, v)
		}
	}
	return kept, removed
}

func (s *MemStore) write(op kv.Op) (kv.Result, error) {
	if err := op.Validate(); err != nil {
		return kv.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.apply(op)
}

func (s *MemStore) read(op kv.Op) (kv.Result, error) {
	if err := op.Validate(); err != nil {
		return kv.Result{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.apply(op)
}

// ZAdd inserts or updates members.
func (s *MemStore) ZAdd(_ context.Context, key string, members ...kv.Member) (int64, error) {
	res, err := s.write(kv.ZAddOp(key, members...))
	return res.N, err
}

// ZRem removes members. Absent members are ignored.
func (s *MemStore) ZRem(_ context.Context, key string, members ...string) (int64, error) {
	res, err := s.write(kv.ZRemOp(key, members...))
	return res.N, err
}

// ZRank returns the rank of member or kv.ErrMemberNotFound.
func (s *MemStore) ZRank(_ context.Context, key, member string) (int64, error) {
	res, err := s.read(kv.ZRankOp(key, member))
	if err != nil {
		return 0, err
	}
	if res.N < 0 {
		return 0, kv.ErrMemberNotFound
	}
	return res.N, nil
}

func (s *MemStore) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	res, err := s.read(kv.ZRangeOp(key, start, stop))
	return res.Values, err
}

func (s *MemStore) LPush(_ context.Context, key string, values ...string) (int64, error) {
	res, err := s.write(kv.LPushOp(key, values...))
	return res.N, err
}

func (s *MemStore) LRem(_ context.Context, key string, count int64, value string) (int64, error) {
	res, err := s.write(kv.LRemOp(key, count, value))
	return res.N, err
}

func (s *MemStore) LTrim(_ context.Context, key string, start, stop int64) error {
	_, err := s.write(kv.LTrimOp(key, start, stop))
	return err
}

func (s *MemStore) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	res, err := s.read(kv.LRangeOp(key, start, stop))
	return res.Values, err
}

// Version returns the revision that last modified key.
func (s *MemStore) Version(_ context.Context, key string) (uint64, error) {
	if key == "" {
		return 0, fmt.Errorf("%w: empty key", kv.ErrInvalidArgument)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.versions[key], nil
}

// Exec applies ops under a single write lock after checking the watched versions.
// Type errors are detected before anything is applied.
func (s *MemStore) Exec(_ context.Context, watch map[string]uint64, ops []kv.Op) ([]kv.Result, error) {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, version := range watch {
		if s.versions[key] != version {
			return nil, kv.ErrTxConflict
		}
	}
	if err := s.checkBatchTypes(ops); err != nil {
		return nil, err
	}

	results := make([]kv.Result, 0, len(ops))
	for _, op := range ops {
		res, err := s.apply(op)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Snapshot is a serializable copy of the whole store.
type Snapshot struct {
	Revision uint64                 `json:"revision"`
	Versions map[string]uint64      `json:"versions"`
	ZSets    map[string][]kv.Member `json:"zsets"`
	Lists    map[string][]string    `json:"lists"`
}

// Dump copies the store contents.
func (s *MemStore) Dump() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Revision: s.revision,
		Versions: make(map[string]uint64, len(s.versions)),
		ZSets:    make(map[string][]kv.Member, len(s.zsets)),
		Lists:    make(map[string][]string, len(s.lists)),
	}
	for key, version := range s.versions {
		snap.Versions[key] = version
	}
	for key, z := range s.zsets {
		members := make([]kv.Member, 0, z.tree.Len())
		z.tree.Ascend(func(m kv.Member) bool {
			members = append(members, m)
			return true
		})
		snap.ZSets[key] = members
	}
	for key, list := range s.lists {
		snap.Lists[key] = append([]string{}, list...)
	}
	return snap
}

// Load replaces the store contents with snap.
func (s *MemStore) Load(snap *Snapshot) {
	zsets := make(map[string]*zset, len(snap.ZSets))
	for key, members := range snap.ZSets {
		z := newZSet()
		for _, m := range members {
			z.add(m)
		}
		zsets[key] = z
	}
	lists := make(map[string][]string, len(snap.Lists))
	for key, list := range snap.Lists {
		lists[key] = append([]string{}, list...)
	}
	versions := make(map[string]uint64, len(snap.Versions))
	for key, version := range snap.Versions {
		versions[key] = version
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.zsets = zsets
	s.lists = lists
	s.versions = versions
	s.revision = snap.Revision
}
