// Package robohost holds the pieces shared by both sides of the capability boundary.
package robohost

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/reglet-dev/robohost/abi"
)

// ByteHandler handles one encoded boundary request and returns the encoded response.
type ByteHandler func(ctx context.Context, payload []byte) ([]byte, error)

// Middleware is a function that wraps a ByteHandler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
//
// Example usage:
//
//	timing := func(next ByteHandler) ByteHandler {
//	    return func(ctx context.Context, payload []byte) ([]byte, error) {
//	        start := time.Now()
//	        defer func() { metrics.Observe(time.Since(start)) }()
//	        return next(ctx, payload)
//	    }
//	}
type Middleware func(next ByteHandler) ByteHandler

// Chain wraps h with mw so that mw[0] is outermost.
func Chain(h ByteHandler, mw ...Middleware) ByteHandler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// PanicRecoveryMiddleware returns a middleware that catches panics and converts
// them to a structured error Response instead of crashing the caller.
func PanicRecoveryMiddleware() Middleware {
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp = abi.NewPanicError(r).ToJSON()
					err = nil // Return JSON error, not Go error
				}
			}()
			return next(ctx, payload)
		}
	}
}

// LoggingMiddleware returns a middleware that logs every boundary call at debug level
// and failed calls at warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next ByteHandler) ByteHandler {
		return func(ctx context.Context, payload []byte) ([]byte, error) {
			var req struct {
				Handle uint64 `json:"handle"`
				Method string `json:"method"`
			}
			_ = json.Unmarshal(payload, &req)

			start := time.Now()
			resp, err := next(ctx, payload)
			elapsed := time.Since(start)

			if err != nil {
				logger.WarnContext(ctx, "boundary call failed",
					"method", req.Method, "handle", req.Handle, "duration", elapsed, "error", err)
				return resp, err
			}

			var status struct {
				Error *abi.Error `json:"error"`
			}
			if json.Unmarshal(resp, &status) == nil && status.Error != nil {
				logger.DebugContext(ctx, "boundary call returned error",
					"method", req.Method, "handle", req.Handle, "duration", elapsed, "error", status.Error)
				return resp, nil
			}

			logger.DebugContext(ctx, "boundary call",
				"method", req.Method, "handle", req.Handle, "duration", elapsed)
			return resp, nil
		}
	}
}
