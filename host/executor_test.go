package host_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/reglet-dev/robohost/abi"
	"github.com/reglet-dev/robohost/host"
	"github.com/reglet-dev/robohost/internal/wasmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newExecutor(t *testing.T, opts ...host.Option) *host.Executor {
	t.Helper()
	ctx := context.Background()
	e, err := host.NewExecutor(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })
	return e
}

func TestExecutor_LoadAndInvoke(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	e := newExecutor(t, host.WithLogger(logger))
	ctx := context.Background()

	bin := wasmtest.Current(wasmtest.Options{
		InitLog: `{"level":"INFO","message":"guest ready","attrs":[{"key":"joints","value":"6","type":"int64"}]}`,
	})
	m, err := e.Load(ctx, "fixture", bin)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	assert.Equal(t, abi.CurrentHeader(), m.Header())
	assert.Contains(t, logs.String(), "guest ready")
	assert.Contains(t, logs.String(), "joints=6")
	assert.Contains(t, logs.String(), "plugin=fixture")

	require.NoError(t, m.Construct(ctx))
	require.NoError(t, m.Construct(ctx))

	var name abi.NameResult
	require.NoError(t, abi.Call(ctx, m, abi.RootHandle, abi.MethodPluginName, nil, &name))
	assert.Equal(t, "fixture", name.Name)
}

func TestExecutor_LoadRejects(t *testing.T) {
	t.Parallel()

	wrongMajor := abi.CurrentHeader()
	wrongMajor.Major++

	wrongLayout := abi.CurrentHeader()
	wrongLayout.Layout[0] ^= 0xff

	tests := []struct {
		name    string
		bin     []byte
		wantErr error
	}{
		{"not wasm", []byte("definitely not wasm"), host.ErrInvalidModule},
		{"no header", wasmtest.Module(wasmtest.Options{}), abi.ErrIncompatible},
		{"major mismatch", wasmtest.Stamped(wasmtest.Options{}, wrongMajor), abi.ErrIncompatible},
		{"layout mismatch", wasmtest.Stamped(wasmtest.Options{}, wrongLayout), abi.ErrIncompatible},
		{"missing invoke", wasmtest.Current(wasmtest.Options{OmitExports: []string{"rrp_invoke"}}), host.ErrMissingExport},
		{"missing memory", wasmtest.Current(wasmtest.Options{OmitExports: []string{"memory"}}), host.ErrMissingExport},
	}

	e := newExecutor(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := e.Load(context.Background(), tt.name, tt.bin)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExecutor_HeaderCheckedBeforeGuestRuns(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	e := newExecutor(t, host.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	bad := abi.CurrentHeader()
	bad.Major++
	_, err := e.Load(context.Background(), "stale", wasmtest.Stamped(wasmtest.Options{
		InitLog: `{"level":"INFO","message":"must not run"}`,
	}, bad))
	require.ErrorIs(t, err, abi.ErrIncompatible)
	assert.NotContains(t, logs.String(), "must not run")
}

func TestExecutor_ConstructTrap(t *testing.T) {
	t.Parallel()

	e := newExecutor(t)
	ctx := context.Background()

	m, err := e.Load(ctx, "trap", wasmtest.Current(wasmtest.Options{TrapOnConstruct: true}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(ctx) })

	assert.ErrorIs(t, m.Construct(ctx), host.ErrInstantiate)
}
