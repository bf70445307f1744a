package middleware

import (
	"context"
	"time"

	"connectrpc.com/connect"
)

// RPCObserver records one completed RPC.
type RPCObserver interface {
	ObserveRPC(procedure, code string, d time.Duration)
}

// MetricsInterceptor reports every unary call to obs with its result code.
func MetricsInterceptor(obs RPCObserver) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				code = connect.CodeOf(err).String()
			}
			obs.ObserveRPC(req.Spec().Procedure, code, time.Since(start))
			return resp, err
		}
	}
}
