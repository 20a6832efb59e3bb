package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tpattern.v1.PatternService"

// Full method names.
const (
	DetectMethod   = "/" + ServiceName + "/Detect"
	ListRunsMethod = "/" + ServiceName + "/ListRuns"
)

// PatternServer is the server API for the pattern service. Requests and
// responses are google.protobuf.Struct messages.
type PatternServer interface {
	Detect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the pattern service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PatternServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Detect", Handler: detectHandler},
		{MethodName: "ListRuns", Handler: listRunsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tpattern/v1/pattern_service.proto",
}

// RegisterPatternServer registers srv with s.
func RegisterPatternServer(s grpc.ServiceRegistrar, srv PatternServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func detectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PatternServer).Detect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: DetectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PatternServer).Detect(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listRunsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PatternServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListRunsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PatternServer).ListRuns(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the pattern service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Detect runs detection on the server.
func (c *Client) Detect(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DetectMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListRuns lists stored runs.
func (c *Client) ListRuns(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListRunsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
