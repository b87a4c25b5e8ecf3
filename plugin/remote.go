package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
)

// remote addresses one implementation behind a transport.
type remote struct {
	transport abi.Transport
	handle    uint64
	plugin    string
	kind      capability.Kind
	poll      time.Duration
	logger    *slog.Logger
}

func (r *remote) call(ctx context.Context, op, method string, in, out any) error {
	if err := abi.Call(ctx, r.transport, r.handle, method, in, out); err != nil {
		return &capability.Error{Kind: r.kind, Plugin: r.plugin, Op: op, Err: err}
	}
	return nil
}

func (r *remote) pollMillis() uint32 {
	ms := r.poll / time.Millisecond
	if ms < 1 {
		return 1
	}
	//nolint:gosec // poll intervals are small
	return uint32(ms)
}

// callFuture calls a method returning a future handle and wraps the handle.
func (r *remote) callFuture(ctx context.Context, op, method string, in any) (capability.WaitFuture, error) {
	var res abi.FutureResult
	if err := r.call(ctx, op, method, in, &res); err != nil {
		return capability.WaitFuture{}, err
	}
	return r.await(op, res.Future), nil
}

// await polls future.wait on h until it completes. The outcome is remembered, so Wait
// may be called again after completion; an interrupted Wait can be resumed. One
// waiter polls at a time, the others wait for it or for their own ctx.
func (r *remote) await(op string, h uint64) capability.WaitFuture {
	var (
		turn   = make(chan struct{}, 1)
		done   = make(chan struct{})
		result error
	)
	turn <- struct{}{}
	return capability.NewWaitFuture(func(ctx context.Context) error {
		select {
		case <-done:
			return result
		case <-ctx.Done():
			return ctx.Err()
		case <-turn:
		}
		defer func() { turn <- struct{}{} }()

		select {
		case <-done:
			return result
		default:
		}
		for {
			var wr abi.WaitResult
			err := abi.Call(ctx, r.transport, h, abi.MethodFutureWait, abi.WaitArgs{TimeoutMillis: r.pollMillis()}, &wr)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				result = &capability.Error{Kind: r.kind, Plugin: r.plugin, Op: op, Err: err}
				close(done)
				return result
			}
			if wr.Done {
				close(done)
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	})
}
