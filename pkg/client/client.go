// Package client is a remote kv.Store handle speaking the pyaz.Store gRPC service.
package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/heysubinoy/pyazac/api/proto"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

// Client implements kv.Store against a remote node. It owns its connection
// and must be closed.
type Client struct {
	conn *grpc.ClientConn
	rpc  *proto.StoreClient
}

var _ kv.Store = (*Client)(nil)

// Dial connects to addr. Extra dial options are appended to the defaults
// (insecure transport, JSON codec), which lets tests inject a dialer.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)

	// passthrough resolver for direct address connection
	conn, err := grpc.NewClient("passthrough:///"+addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial store %s: %w", addr, err)
	}

	return &Client{
		conn: conn,
		rpc:  proto.NewStoreClient(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// fromStatus maps gRPC codes back onto kv errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Aborted:
		return kv.ErrTxConflict
	case codes.NotFound:
		return kv.ErrMemberNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", kv.ErrInvalidArgument, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", kv.ErrStoreUnavailable, st.Message())
	case codes.Canceled:
		return context.Canceled
	}
	return fmt.Errorf("store: %s", st.Message())
}

func (c *Client) ZAdd(ctx context.Context, key string, members ...kv.Member) (int64, error) {
	resp, err := c.rpc.ZAdd(ctx, &proto.ZAddRequest{Key: key, Members: members})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.N, nil
}

func (c *Client) ZRem(ctx context.Context, key string, members ...string) (int64, error) {
	resp, err := c.rpc.ZRem(ctx, &proto.ZRemRequest{Key: key, Members: members})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.N, nil
}

func (c *Client) ZRank(ctx context.Context, key, member string) (int64, error) {
	resp, err := c.rpc.ZRank(ctx, &proto.ZRankRequest{Key: key, Member: member})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.N, nil
}

func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	resp, err := c.rpc.ZRange(ctx, &proto.RangeRequest{Key: key, Start: start, Stop: stop})
	if err != nil {
		return nil, fromStatus(err)
	}
	return resp.Values, nil
}

func (c *Client) LPush(ctx context.Context, key string, values ...string) (int64, error) {
	resp, err := c.rpc.LPush(ctx, &proto.LPushRequest{Key: key, Values: values})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.N, nil
}

func (c *Client) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	resp, err := c.rpc.LRem(ctx, &proto.LRemRequest{Key: key, Count: count, Value: value})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.N, nil
}

func (c *Client) LTrim(ctx context.Context, key string, start, stop int64) error {
	_, err := c.rpc.LTrim(ctx, &proto.RangeRequest{Key: key, Start: start, Stop: stop})
	return fromStatus(err)
}

func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	resp, err := c.rpc.LRange(ctx, &proto.RangeRequest{Key: key, Start: start, Stop: stop})
	if err != nil {
		return nil, fromStatus(err)
	}
	return resp.Values, nil
}

func (c *Client) Version(ctx context.Context, key string) (uint64, error) {
	resp, err := c.rpc.Version(ctx, &proto.VersionRequest{Key: key})
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.Version, nil
}

func (c *Client) Exec(ctx context.Context, watch map[string]uint64, ops []kv.Op) ([]kv.Result, error) {
	resp, err := c.rpc.Exec(ctx, &proto.ExecRequest{Watch: watch, Ops: ops})
	if err != nil {
		return nil, fromStatus(err)
	}
	return resp.Results, nil
}
