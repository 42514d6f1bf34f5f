// Package remote exposes a liquidity.Source over gRPC and consumes one from a remote adapter.
//
// The service is autocompounder.liquidity.v1.Liquidity with five unary methods.
// Messages are JSON encoded and amounts travel as base-10 strings.
package remote

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "autocompounder.liquidity.v1.Liquidity"

const (
	methodDeploy   = "Deploy"
	methodWithdraw = "Withdraw"
	methodClaim    = "Claim"
	methodPending  = "Pending"
	methodBalance  = "Balance"
)

// AmountRequest carries a want amount in base units.
type AmountRequest struct {
	Amount string `json:"amount"`
}

// AmountResponse carries a want amount in base units.
type AmountResponse struct {
	Amount string `json:"amount"`
}

// Empty is the request or response of methods without payload.
type Empty struct{}

// liquidityServer is the handler set the service descriptor dispatches to.
type liquidityServer interface {
	Deploy(context.Context, *AmountRequest) (*Empty, error)
	Withdraw(context.Context, *AmountRequest) (*AmountResponse, error)
	Claim(context.Context, *Empty) (*AmountResponse, error)
	Pending(context.Context, *Empty) (*AmountResponse, error)
	Balance(context.Context, *Empty) (*AmountResponse, error)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler adapts a typed handler to grpc.MethodDesc.
func unaryHandler[Req any, Resp any](method string, call func(liquidityServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(liquidityServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*liquidityServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(methodDeploy, liquidityServer.Deploy),
		unaryHandler(methodWithdraw, liquidityServer.Withdraw),
		unaryHandler(methodClaim, liquidityServer.Claim),
		unaryHandler(methodPending, liquidityServer.Pending),
		unaryHandler(methodBalance, liquidityServer.Balance),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "autocompounder/liquidity/v1/liquidity.json",
}
