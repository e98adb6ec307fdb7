package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name of the bridge.
const ServiceName = "meshbroker.bridge.v1.Bridge"

// forwardMethod is the full method name of the unary Forward call.
const forwardMethod = "/" + ServiceName + "/Forward"

// bridgeServer is implemented by the receiver.
type bridgeServer interface {
	Forward(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
}

func forwardHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bridgeServer).Forward(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: forwardMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(bridgeServer).Forward(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// serviceDesc describes the bridge service. Requests are a message
// encoded with ToStruct.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*bridgeServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Forward",
			Handler:    forwardHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meshbroker/bridge/v1/bridge.proto",
}

// forward calls Forward on conn.
func forward(ctx context.Context, conn grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) error {
	out := new(emptypb.Empty)
	return conn.Invoke(ctx, forwardMethod, req, out, opts...)
}
