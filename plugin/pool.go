package plugin

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize is the number of blocking reads that may be in flight at once.
const DefaultPoolSize = 16

var (
	// ErrPoolExhausted is returned when every worker slot is busy.
	ErrPoolExhausted = errors.New("blocking pool exhausted")
	// ErrWorkerPanic is returned when the submitted function panics.
	ErrWorkerPanic = errors.New("blocking pool worker panicked")
)

// BlockingPool runs blocking plugin calls off the caller's goroutine with a bound on
// how many run at once.
type BlockingPool struct {
	sem *semaphore.Weighted
}

// NewBlockingPool creates a pool with size slots. size < 1 selects DefaultPoolSize.
func NewBlockingPool(size int) *BlockingPool {
	if size < 1 {
		size = DefaultPoolSize
	}
	return &BlockingPool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit runs fn on a pool worker and waits for its result or for ctx to end. A slot
// stays occupied until fn returns, even after Submit has given up waiting.
func Submit[T any](ctx context.Context, p *BlockingPool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !p.sem.TryAcquire(1) {
		return zero, ErrPoolExhausted
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrWorkerPanic, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

var defaultPool = NewBlockingPool(DefaultPoolSize)
