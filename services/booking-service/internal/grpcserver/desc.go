package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type bookingServer interface {
	GetAvailability(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transition(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(bookingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(bookingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(bookingServer), ctx, req.(*structpb.Struct))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*bookingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAvailability", Handler: handler("GetAvailability", bookingServer.GetAvailability)},
		{MethodName: "CreateBooking", Handler: handler("CreateBooking", bookingServer.CreateBooking)},
		{MethodName: "Transition", Handler: handler("Transition", bookingServer.Transition)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agendafacil/booking/v1/booking.proto",
}

// Client calls BookingService on conn with Struct messages.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client { return &Client{conn: conn} }

func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
