// Package proto defines the wire contract of the pyaz.Store gRPC service.
//
// Messages travel as JSON through a codec registered under the "json"
// content-subtype, so the service is described by hand instead of by protoc.
package proto

import (
	"context"

	"google.golang.org/grpc"

	"github.com/heysubinoy/pyazac/pkg/kv"
)

const ServiceName = "pyaz.Store"

type ZAddRequest struct {
	Key     string      `json:"key"`
	Members []kv.Member `json:"members"`
}

type ZRemRequest struct {
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

type ZRankRequest struct {
	Key    string `json:"key"`
	Member string `json:"member"`
}

type RangeRequest struct {
	Key   string `json:"key"`
	Start int64  `json:"start"`
	Stop  int64  `json:"stop"`
}

type LPushRequest struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

type LRemRequest struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
	Value string `json:"value"`
}

type VersionRequest struct {
	Key string `json:"key"`
}

type ExecRequest struct {
	Watch map[string]uint64 `json:"watch,omitempty"`
	Ops   []kv.Op           `json:"ops"`
}

type CountResponse struct {
	N int64 `json:"n"`
}

type ValuesResponse struct {
	Values []string `json:"values"`
}

type VersionResponse struct {
	Version uint64 `json:"version"`
}

type ExecResponse struct {
	Results []kv.Result `json:"results"`
}

// StoreServer is the server API for the pyaz.Store service.
type StoreServer interface {
	ZAdd(context.Context, *ZAddRequest) (*CountResponse, error)
	ZRem(context.Context, *ZRemRequest) (*CountResponse, error)
	ZRank(context.Context, *ZRankRequest) (*CountResponse, error)
	ZRange(context.Context, *RangeRequest) (*ValuesResponse, error)
	LPush(context.Context, *LPushRequest) (*CountResponse, error)
	LRem(context.Context, *LRemRequest) (*CountResponse, error)
	LTrim(context.Context, *RangeRequest) (*CountResponse, error)
	LRange(context.Context, *RangeRequest) (*ValuesResponse, error)
	Version(context.Context, *VersionRequest) (*VersionResponse, error)
	Exec(context.Context, *ExecRequest) (*ExecResponse, error)
}

func unary[Req, Resp any](name string, call func(StoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StoreServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(StoreServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var storeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ZAdd", StoreServer.ZAdd),
		unary("ZRem", StoreServer.ZRem),
		unary("ZRank", StoreServer.ZRank),
		unary("ZRange", StoreServer.ZRange),
		unary("LPush", StoreServer.LPush),
		unary("LRem", StoreServer.LRem),
		unary("LTrim", StoreServer.LTrim),
		unary("LRange", StoreServer.LRange),
		unary("Version", StoreServer.Version),
		unary("Exec", StoreServer.Exec),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pyaz/store",
}

func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&storeServiceDesc, srv)
}

// StoreClient is the client API for the pyaz.Store service.
type StoreClient struct {
	cc grpc.ClientConnInterface
}

func NewStoreClient(cc grpc.ClientConnInterface) *StoreClient {
	return &StoreClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StoreClient) ZAdd(ctx context.Context, in *ZAddRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "ZAdd", in, opts...)
}

func (c *StoreClient) ZRem(ctx context.Context, in *ZRemRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "ZRem", in, opts...)
}

func (c *StoreClient) ZRank(ctx context.Context, in *ZRankRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "ZRank", in, opts...)
}

func (c *StoreClient) ZRange(ctx context.Context, in *RangeRequest, opts ...grpc.CallOption) (*ValuesResponse, error) {
	return invoke[ValuesResponse](ctx, c.cc, "ZRange", in, opts...)
}

func (c *StoreClient) LPush(ctx context.Context, in *LPushRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "LPush", in, opts...)
}

func (c *StoreClient) LRem(ctx context.Context, in *LRemRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "LRem", in, opts...)
}

func (c *StoreClient) LTrim(ctx context.Context, in *RangeRequest, opts ...grpc.CallOption) (*CountResponse, error) {
	return invoke[CountResponse](ctx, c.cc, "LTrim", in, opts...)
}

func (c *StoreClient) LRange(ctx context.Context, in *RangeRequest, opts ...grpc.CallOption) (*ValuesResponse, error) {
	return invoke[ValuesResponse](ctx, c.cc, "LRange", in, opts...)
}

func (c *StoreClient) Version(ctx context.Context, in *VersionRequest, opts ...grpc.CallOption) (*VersionResponse, error) {
	return invoke[VersionResponse](ctx, c.cc, "Version", in, opts...)
}

func (c *StoreClient) Exec(ctx context.Context, in *ExecRequest, opts ...grpc.CallOption) (*ExecResponse, error) {
	return invoke[ExecResponse](ctx, c.cc, "Exec", in, opts...)
}
