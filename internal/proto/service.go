// Package proto describes the callshield.v1.ReputationService gRPC API.
//
// Payloads are zstd-compressed JSON documents from internal/domain carried in
// protobuf well-known wrapper messages, so the service needs no generated
// message types. The descriptor and stubs below follow the layout that
// protoc-gen-go-grpc produces.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "callshield.v1.ReputationService"

const (
	ReputationService_Ping_FullMethodName            = "/" + ServiceName + "/Ping"
	ReputationService_Transmit_FullMethodName        = "/" + ServiceName + "/Transmit"
	ReputationService_FetchReputation_FullMethodName = "/" + ServiceName + "/FetchReputation"
	ReputationService_PushReputation_FullMethodName  = "/" + ServiceName + "/PushReputation"
	ReputationService_FetchCommunity_FullMethodName  = "/" + ServiceName + "/FetchCommunity"
)

// PingOK is the status string a healthy server answers Ping with.
const PingOK = "OK"

// ReputationServiceClient is the client API for ReputationService.
//
// Transmit takes a compressed domain.Batch and returns a compressed
// domain.BatchResult. FetchReputation and FetchCommunity take a phone hash
// and return a compressed domain.ReputationData or domain.CommunityDataEntry.
// PushReputation stores a compressed domain.ReputationData.
type ReputationServiceClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Transmit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	FetchReputation(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	PushReputation(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	FetchCommunity(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type reputationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewReputationServiceClient(cc grpc.ClientConnInterface) ReputationServiceClient {
	return &reputationServiceClient{cc}
}

func (c *reputationServiceClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, ReputationService_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reputationServiceClient) Transmit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ReputationService_Transmit_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reputationServiceClient) FetchReputation(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ReputationService_FetchReputation_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reputationServiceClient) PushReputation(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ReputationService_PushReputation_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *reputationServiceClient) FetchCommunity(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ReputationService_FetchCommunity_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ReputationServiceServer is the server API for ReputationService.
// Implementations must embed UnimplementedReputationServiceServer.
type ReputationServiceServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Transmit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	FetchReputation(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	PushReputation(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	FetchCommunity(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	mustEmbedUnimplementedReputationServiceServer()
}

type UnimplementedReputationServiceServer struct{}

func (UnimplementedReputationServiceServer) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedReputationServiceServer) Transmit(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Transmit not implemented")
}
func (UnimplementedReputationServiceServer) FetchReputation(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FetchReputation not implemented")
}
func (UnimplementedReputationServiceServer) PushReputation(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PushReputation not implemented")
}
func (UnimplementedReputationServiceServer) FetchCommunity(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FetchCommunity not implemented")
}
func (UnimplementedReputationServiceServer) mustEmbedUnimplementedReputationServiceServer() {}

func RegisterReputationServiceServer(s grpc.ServiceRegistrar, srv ReputationServiceServer) {
	s.RegisterService(&ReputationService_ServiceDesc, srv)
}

func _ReputationService_Ping_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReputationService_Ping_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReputationServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReputationService_Transmit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServiceServer).Transmit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReputationService_Transmit_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReputationServiceServer).Transmit(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReputationService_FetchReputation_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServiceServer).FetchReputation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReputationService_FetchReputation_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReputationServiceServer).FetchReputation(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReputationService_PushReputation_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServiceServer).PushReputation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReputationService_PushReputation_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReputationServiceServer).PushReputation(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _ReputationService_FetchCommunity_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReputationServiceServer).FetchCommunity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ReputationService_FetchCommunity_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReputationServiceServer).FetchCommunity(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ReputationService_ServiceDesc is the grpc.ServiceDesc for ReputationService.
var ReputationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReputationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: _ReputationService_Ping_Handler},
		{MethodName: "Transmit", Handler: _ReputationService_Transmit_Handler},
		{MethodName: "FetchReputation", Handler: _ReputationService_FetchReputation_Handler},
		{MethodName: "PushReputation", Handler: _ReputationService_PushReputation_Handler},
		{MethodName: "FetchCommunity", Handler: _ReputationService_FetchCommunity_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "callshield/v1/reputation.proto",
}
