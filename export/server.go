package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/reglet-dev/robohost"
	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/capability"
)

// Server owns the implementation objects behind handles and dispatches boundary
// requests to them. It implements abi.Transport for in-process use.
type Server struct {
	handler    robohost.ByteHandler
	middleware []robohost.Middleware
	logger     *slog.Logger

	mu      sync.Mutex
	next    uint64
	objects map[uint64]any
}

// Option configures a Server.
type Option func(*Server)

// WithMiddleware wraps request dispatch with mw, first outermost.
func WithMiddleware(mw ...robohost.Middleware) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a server whose root handle addresses root. root may be nil for a
// server that only serves implementations registered with Register.
func NewServer(root Plugin, opts ...Option) *Server {
	s := &Server{
		next:    abi.RootHandle + 1,
		objects: make(map[uint64]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if root != nil {
		s.objects[abi.RootHandle] = root
	}
	s.handler = robohost.Chain(s.dispatch, s.middleware...)
	return s
}

// Register stores an implementation and returns its handle. A capability.WaitFuture is
// registered as a pending completion.
func (s *Server) Register(obj any) uint64 {
	if f, ok := obj.(capability.WaitFuture); ok {
		obj = startFuture(f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.next
	s.next++
	s.objects[h] = obj
	return h
}

// Release drops a handle. Releasing an unknown handle is a no-op.
func (s *Server) Release(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, h)
}

// Len returns the number of live handles, the root included.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *Server) lookup(h uint64) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[h]
	return obj, ok
}

// Invoke implements abi.Transport.
func (s *Server) Invoke(ctx context.Context, request []byte) ([]byte, error) {
	return s.handler(ctx, request)
}

func (s *Server) dispatch(ctx context.Context, data []byte) ([]byte, error) {
	req, err := abi.DecodeRequest(data)
	if err != nil {
		return abi.AsError(err).ToJSON(), nil
	}

	obj, ok := s.lookup(req.Handle)
	if !ok {
		return (&abi.Error{Code: abi.CodeUnknownHandle, Message: fmt.Sprintf("handle %d", req.Handle)}).ToJSON(), nil
	}

	m, ok := methods[req.Method]
	if !ok {
		return (&abi.Error{Code: abi.CodeUnknownMethod, Message: req.Method}).ToJSON(), nil
	}

	result, err := m(ctx, s, obj, req)
	if err != nil {
		return abi.AsError(err).ToJSON(), nil
	}

	resp, err := abi.EncodeResult(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", req.Method, err)
	}
	return resp, nil
}

// pendingFuture is a WaitFuture being awaited on the implementation side.
type pendingFuture struct {
	done chan struct{}
	err  error
}

func startFuture(f capability.WaitFuture) *pendingFuture {
	p := &pendingFuture{done: make(chan struct{})}
	go func() {
		p.err = f.Wait(context.Background())
		close(p.done)
	}()
	return p
}

// futureResult registers f and returns its handle as a result payload.
func (s *Server) futureResult(f capability.WaitFuture, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return abi.FutureResult{Future: s.Register(f)}, nil
}

var errNotSupportedByHandle = errors.New("method not supported by handle")
