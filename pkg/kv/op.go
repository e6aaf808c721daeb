package kv

import "fmt"

type OpKind string

const (
	OpZAdd   OpKind = "zadd"
	OpZRem   OpKind = "zrem"
	OpZRank  OpKind = "zrank"
	OpZRange OpKind = "zrange"
	OpLPush  OpKind = "lpush"
	OpLRem   OpKind = "lrem"
	OpLTrim  OpKind = "ltrim"
	OpLRange OpKind = "lrange"
)

// Op is a single command queued inside a transaction.
type Op struct {
	Kind    OpKind   `json:"kind"`
	Key     string   `json:"key"`
	Members []Member `json:"members,omitempty"`
	Values  []string `json:"values,omitempty"`
	Start   int64    `json:"start,omitempty"`
	Stop    int64    `json:"stop,omitempty"`
	Count   int64    `json:"count,omitempty"`
}

// Result is the reply of one Op. Reads fill Values, writes fill N.
type Result struct {
	Values []string `json:"values,omitempty"`
	N      int64    `json:"n"`
}

// Validate reports malformed ops before they reach a store.
func (op Op) Validate() error {
	if op.Key == "" {
		return fmt.Errorf("%w: %s without key", ErrInvalidArgument, op.Kind)
	}
	switch op.Kind {
	case OpZAdd:
		if len(op.Members) == 0 {
			return fmt.Errorf("%w: zadd without members", ErrInvalidArgument)
		}
	case OpZRem, OpLPush, OpZRank:
		if len(op.Values) == 0 {
			return fmt.Errorf("%w: %s without values", ErrInvalidArgument, op.Kind)
		}
	case OpLRem:
		if len(op.Values) != 1 {
			return fmt.Errorf("%w: lrem takes exactly one value", ErrInvalidArgument)
		}
	case OpZRange, OpLTrim, OpLRange:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidArgument, op.Kind)
	}
	return nil
}

func ZAddOp(key string, members ...Member) Op {
	return Op{Kind: OpZAdd, Key: key, Members: members}
}

func ZRemOp(key string, members ...string) Op {
	return Op{Kind: OpZRem, Key: key, Values: members}
}

func ZRankOp(key, member string) Op {
	return Op{Kind: OpZRank, Key: key, Values: []string{member}}
}

func ZRangeOp(key string, start, stop int64) Op {
	return Op{Kind: OpZRange, Key: key, Start: start, Stop: stop}
}

func LPushOp(key string, values ...string) Op {
	return Op{Kind: OpLPush, Key: key, Values: values}
}

func LRemOp(key string, count int64, value string) Op {
	return Op{Kind: OpLRem, Key: key, Count: count, Values: []string{value}}
}

func LTrimOp(key string, start, stop int64) Op {
	return Op{Kind: OpLTrim, Key: key, Start: start, Stop: stop}
}

func LRangeOp(key string, start, stop int64) Op {
	return Op{Kind: OpLRange, Key: key, Start: start, Stop: stop}
}
