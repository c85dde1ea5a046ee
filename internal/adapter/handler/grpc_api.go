package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// The order service is declared by hand and carried with a JSON codec, so
// clients select it with the "json" content-subtype.

const (
	jsonCodecName    = "json"
	orderServiceName = "ecommerce.v1.OrderService"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type ListProductsRequest struct {
	Search string `json:"search,omitempty"`
	Page   int    `json:"page"`
	Size   int    `json:"size"`
}

type PlaceOrderReply struct {
	Order    OrderResponse `json:"order"`
	Replayed bool          `json:"replayed"`
}

type OrderServiceServer interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderReply, error)
	GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error)
	ListProducts(ctx context.Context, req *ListProductsRequest) (*ProductPageResponse, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: unaryHandler("PlaceOrder", OrderServiceServer.PlaceOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler("GetOrder", OrderServiceServer.GetOrder)},
		{MethodName: "ListProducts", Handler: unaryHandler("ListProducts", OrderServiceServer.ListProducts)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler[Req, Resp any](method string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + orderServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(OrderServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(OrderServiceServer), ctx, req.(*Req))
		})
	}
}

// OrderServiceClient calls the order service over an existing connection.
type OrderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) *OrderServiceClient {
	return &OrderServiceClient{cc: cc}
}

func (c *OrderServiceClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderReply, error) {
	out := new(PlaceOrderReply)
	return out, c.invoke(ctx, "PlaceOrder", in, out, opts)
}

func (c *OrderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*OrderResponse, error) {
	out := new(OrderResponse)
	return out, c.invoke(ctx, "GetOrder", in, out, opts)
}

func (c *OrderServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ProductPageResponse, error) {
	out := new(ProductPageResponse)
	return out, c.invoke(ctx, "ListProducts", in, out, opts)
}

func (c *OrderServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+orderServiceName+"/"+method, in, out, opts...)
}
