package capability

import "context"

// WaitFuture represents completion of an asynchronous capability action.
// The zero value is already complete.
type WaitFuture struct {
	wait func(ctx context.Context) error
}

// NewWaitFuture wraps a wait function. wait must return once the action completes or
// ctx is done.
func NewWaitFuture(wait func(ctx context.Context) error) WaitFuture {
	return WaitFuture{wait: wait}
}

// Ready returns a future that is already complete.
func Ready() WaitFuture {
	return WaitFuture{}
}

// Failed returns a future that completes with err.
func Failed(err error) WaitFuture {
	return WaitFuture{wait: func(context.Context) error { return err }}
}

// FromChannel returns a future that completes when done is closed or receives a value.
// A received non-nil error is returned from Wait.
func FromChannel(done <-chan error) WaitFuture {
	return WaitFuture{wait: func(ctx context.Context) error {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}}
}

// Wait blocks until the action completes or ctx is done.
func (f WaitFuture) Wait(ctx context.Context) error {
	if f.wait == nil {
		return nil
	}
	return f.wait(ctx)
}
