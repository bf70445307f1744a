package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

// tripScoped is implemented by request messages addressed to one trip.
type tripScoped interface {
	GetTripID() string
}

func tripIDOf(req connect.AnyRequest) string {
	if msg, ok := req.Any().(tripScoped); ok {
		return msg.GetTripID()
	}
	return ""
}

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// It logs the procedure name, trip ID, duration, and any error codes/messages.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			tripID := tripIDOf(req)

			resp, err := next(ctx, req)

			duration := time.Since(start).Milliseconds()
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"trip_id", tripID,
						"duration_ms", duration,
					)
				} else {
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"trip_id", tripID,
						"duration_ms", duration,
					)
				}
			} else {
				slog.Info("RPC ok",
					"procedure", procedure,
					"trip_id", tripID,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
