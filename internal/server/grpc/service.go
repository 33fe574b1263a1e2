package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "authsession.v1.SessionService"

// Full method names, as seen by interceptors and clients.
const (
	LoginMethod   = "/" + ServiceName + "/Login"
	RefreshMethod = "/" + ServiceName + "/Refresh"
	SignOutMethod = "/" + ServiceName + "/SignOut"
	PingMethod    = "/" + ServiceName + "/Ping"
)

// Field names of the Login request and of session responses.
const (
	FieldEmail         = "email"
	FieldPassword      = "password"
	FieldAccessToken   = "access_token"
	FieldAccessExpiry  = "access_expiry"
	FieldRefreshToken  = "refresh_token"
	FieldRefreshExpiry = "refresh_expiry"
)

// SessionServiceServer is the server API of the session service. Messages
// are protobuf well-known types:
//
//	Login(Struct{email, password}) -> Struct{access_token, access_expiry, refresh_token, refresh_expiry}
//	Refresh(StringValue{refresh token}) -> Struct (as Login)
//	SignOut(StringValue{refresh token}) -> Empty, access token in "access_token" metadata
//	Ping(Empty) -> StringValue{"OK"}
type SessionServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SignOut(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
}

// SessionServiceDesc describes the service for grpc.Server.RegisterService.
var SessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SessionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: loginHandler},
		{MethodName: "Refresh", Handler: refreshHandler},
		{MethodName: "SignOut", Handler: signOutHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authsession/v1/session.proto",
}

// RegisterSessionServiceServer registers srv with s.
func RegisterSessionServiceServer(s grpc.ServiceRegistrar, srv SessionServiceServer) {
	s.RegisterService(&SessionServiceDesc, srv)
}

func loginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LoginMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).Login(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func refreshHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Refresh(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RefreshMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).Refresh(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func signOutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).SignOut(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SignOutMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).SignOut(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SessionServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SessionServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
