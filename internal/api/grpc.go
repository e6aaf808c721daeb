package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/heysubinoy/pyazac/api/proto"
	"github.com/heysubinoy/pyazac/pkg/kv"
)

// GRPCServer implements the proto.StoreServer interface.
// It wraps a kv.Store and exposes it over gRPC.
type GRPCServer struct {
	Store kv.Store
}

var _ proto.StoreServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given store.
func NewGRPCServer(store kv.Store) *GRPCServer {
	return &GRPCServer{
		Store: store,
	}
}

// toStatus maps store errors onto gRPC codes; pkg/client maps them back.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, kv.ErrTxConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, kv.ErrMemberNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, kv.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, kv.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func requireKey(key string) error {
	if key == "" {
		return status.Error(codes.InvalidArgument, "key is required")
	}
	return nil
}

func (s *GRPCServer) ZAdd(ctx context.Context, req *proto.ZAddRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	n, err := s.Store.ZAdd(ctx, req.Key, req.Members...)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{N: n}, nil
}

func (s *GRPCServer) ZRem(ctx context.Context, req *proto.ZRemRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	n, err := s.Store.ZRem(ctx, req.Key, req.Members...)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{N: n}, nil
}

func (s *GRPCServer) ZRank(ctx context.Context, req *proto.ZRankRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	rank, err := s.Store.ZRank(ctx, req.Key, req.Member)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{N: rank}, nil
}

func (s *GRPCServer) ZRange(ctx context.Context, req *proto.RangeRequest) (*proto.ValuesResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	values, err := s.Store.ZRange(ctx, req.Key, req.Start, req.Stop)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.ValuesResponse{Values: values}, nil
}

func (s *GRPCServer) LPush(ctx context.Context, req *proto.LPushRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	n, err := s.Store.LPush(ctx, req.Key, req.Values...)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{N: n}, nil
}

func (s *GRPCServer) LRem(ctx context.Context, req *proto.LRemRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	n, err := s.Store.LRem(ctx, req.Key, req.Count, req.Value)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{N: n}, nil
}

func (s *GRPCServer) LTrim(ctx context.Context, req *proto.RangeRequest) (*proto.CountResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	if err := s.Store.LTrim(ctx, req.Key, req.Start, req.Stop); err != nil {
		return nil, toStatus(err)
	}
	return &proto.CountResponse{}, nil
}

func (s *GRPCServer) LRange(ctx context.Context, req *proto.RangeRequest) (*proto.ValuesResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	values, err := s.Store.LRange(ctx, req.Key, req.Start, req.Stop)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.ValuesResponse{Values: values}, nil
}

func (s *GRPCServer) Version(ctx context.Context, req *proto.VersionRequest) (*proto.VersionResponse, error) {
	if err := requireKey(req.Key); err != nil {
		return nil, err
	}
	version, err := s.Store.Version(ctx, req.Key)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.VersionResponse{Version: version}, nil
}

// Exec runs a watched batch. A conflict comes back as codes.Aborted.
func (s *GRPCServer) Exec(ctx context.Context, req *proto.ExecRequest) (*proto.ExecResponse, error) {
	results, err := s.Store.Exec(ctx, req.Watch, req.Ops)
	if err != nil {
		return nil, toStatus(err)
	}
	return &proto.ExecResponse{Results: results}, nil
}
