package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "matchlog.v1.MatchLogger"

// Method names
const (
	MethodGetCatalog   = "GetCatalog"
	MethodStartSession = "StartSession"
	MethodGetSession   = "GetSession"
	MethodHandleEvent  = "HandleEvent"
	MethodListMatches  = "ListMatches"
	MethodWatchEvents  = "WatchEvents"
)

// FullMethod returns the wire path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// MatchLoggerServer is the service contract. Messages are JSON shaped
// structpb.Struct values mirroring the HTTP API bodies.
type MatchLoggerServer interface {
	GetCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HandleEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryMethod func(MatchLoggerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchLoggerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(MatchLoggerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MatchLoggerServer).WatchEvents(in, stream)
}

// ServiceDesc describes MatchLogger for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchLoggerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetCatalog, Handler: unaryHandler(MethodGetCatalog, MatchLoggerServer.GetCatalog)},
		{MethodName: MethodStartSession, Handler: unaryHandler(MethodStartSession, MatchLoggerServer.StartSession)},
		{MethodName: MethodGetSession, Handler: unaryHandler(MethodGetSession, MatchLoggerServer.GetSession)},
		{MethodName: MethodHandleEvent, Handler: unaryHandler(MethodHandleEvent, MatchLoggerServer.HandleEvent)},
		{MethodName: MethodListMatches, Handler: unaryHandler(MethodListMatches, MatchLoggerServer.ListMatches)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "matchlog/v1/matchlog.proto",
}

// RegisterMatchLoggerServer registers srv on s
func RegisterMatchLoggerServer(s grpc.ServiceRegistrar, srv MatchLoggerServer) {
	s.RegisterService(&ServiceDesc, srv)
}
