// Package host provides the WASM host runtime for robohost plugins.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/reglet-dev/robohost/abi"
	hostfn "github.com/reglet-dev/robohost/wazero"
	t_wazero "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Guest exports.
const (
	ExportMemory     = "memory"
	ExportAlloc      = "rrp_alloc"
	ExportInvoke     = "rrp_invoke"
	ExportPluginNew  = "rrp_plugin_new"
	ExportInitialize = "_initialize"
)

var (
	// ErrInvalidModule is returned when the binary is not a valid wasm module.
	ErrInvalidModule = errors.New("invalid wasm module")
	// ErrMissingExport is returned when a required export is absent or has the wrong signature.
	ErrMissingExport = errors.New("missing export")
	// ErrInstantiate is returned when instantiation, initialization or construction fails.
	ErrInstantiate = errors.New("instantiate failed")
	// ErrTrap is returned when a guest call traps.
	ErrTrap = errors.New("guest trapped")
)

type exportSig struct {
	params  []api.ValueType
	results []api.ValueType
}

var requiredExports = map[string]exportSig{
	ExportAlloc:     {params: []api.ValueType{api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI32}},
	ExportInvoke:    {params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI64}},
	ExportPluginNew: {results: []api.ValueType{api.ValueTypeI64}},
}

// Executor compiles and instantiates plugin modules in one wazero runtime.
type Executor struct {
	runtime          t_wazero.Runtime
	logger           *slog.Logger
	cache            t_wazero.CompilationCache
	memoryLimitPages uint32
	stdout, stderr   io.Writer
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(ctx context.Context, opts ...Option) (*Executor, error) {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	cfg := t_wazero.NewRuntimeConfig().WithCustomSections(true)
	if e.cache != nil {
		cfg = cfg.WithCompilationCache(e.cache)
	}
	if e.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(e.memoryLimitPages)
	}

	rt := t_wazero.NewRuntimeWithConfig(ctx, cfg)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)
	e.runtime = rt

	if err := e.registerHostFunctions(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("failed to register host functions: %w", err)
	}

	return e, nil
}

func (e *Executor) registerHostFunctions(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(hostfn.HostModuleName).
		NewFunctionBuilder().
		WithGoModuleFunction(hostfn.LogMessage(e.logger), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export(hostfn.LogMessageFunc).
		Instantiate(ctx)
	return err
}

// Close releases the runtime and every module loaded by it.
func (e *Executor) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Load compiles a plugin binary, verifies its header and instantiates it. The header is
// checked before any guest code runs; a module without one is reported as
// abi.ErrIncompatible. name is used only for log attribution.
func (e *Executor) Load(ctx context.Context, name string, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModule, err)
	}

	header, err := HeaderOf(compiled)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	if err := checkExports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	cfg := t_wazero.NewModuleConfig().
		WithName(uuid.NewString()).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep()
	if e.stdout != nil {
		cfg = cfg.WithStdout(e.stdout)
	}
	if e.stderr != nil {
		cfg = cfg.WithStderr(e.stderr)
	}

	logCtx := hostfn.WithPlugin(ctx, name)
	mod, err := e.runtime.InstantiateModule(logCtx, compiled, cfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("%w: %w", ErrInstantiate, err)
	}

	if init := mod.ExportedFunction(ExportInitialize); init != nil {
		if _, err := init.Call(logCtx); err != nil {
			_ = mod.Close(ctx)
			return nil, fmt.Errorf("%w: %s: %w", ErrInstantiate, ExportInitialize, err)
		}
	}

	e.logger.DebugContext(ctx, "host: loaded plugin module", "plugin", name, "abi", header.SemVer().String())

	return &Module{
		name:      name,
		header:    header,
		module:    mod,
		compiled:  compiled,
		alloc:     mod.ExportedFunction(ExportAlloc),
		invoke:    mod.ExportedFunction(ExportInvoke),
		pluginNew: mod.ExportedFunction(ExportPluginNew),
	}, nil
}

// HeaderOf decodes and checks the header section of a compiled module.
func HeaderOf(compiled t_wazero.CompiledModule) (abi.Header, error) {
	var h abi.Header
	for _, section := range compiled.CustomSections() {
		if section.Name() != abi.HeaderSectionName {
			continue
		}
		if err := h.UnmarshalBinary(section.Data()); err != nil {
			return abi.Header{}, err
		}
		if err := abi.CheckHeader(h); err != nil {
			return abi.Header{}, err
		}
		return h, nil
	}
	return abi.Header{}, fmt.Errorf("%w: no %s section", abi.ErrIncompatible, abi.HeaderSectionName)
}

func checkExports(compiled t_wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingExport, ExportMemory)
	}

	fns := compiled.ExportedFunctions()
	for name, sig := range requiredExports {
		def, ok := fns[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
		if !sameTypes(def.ParamTypes(), sig.params) || !sameTypes(def.ResultTypes(), sig.results) {
			return fmt.Errorf("%w: %s has signature (%s) -> (%s)", ErrMissingExport, name,
				typeNames(def.ParamTypes()), typeNames(def.ResultTypes()))
		}
	}
	return nil
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeNames(types []api.ValueType) string {
	var out string
	for i, t := range types {
		if i > 0 {
			out += ", "
		}
		out += api.ValueTypeName(t)
	}
	return out
}

// Module is an instantiated plugin module. Guest instances are single-threaded, so
// calls are serialized.
type Module struct {
	name     string
	header   abi.Header
	module   api.Module
	compiled t_wazero.CompiledModule

	alloc, invoke, pluginNew api.Function

	mu          sync.Mutex
	constructed bool
}

// Name returns the name the module was loaded under.
func (m *Module) Name() string { return m.name }

// Header returns the verified module header.
func (m *Module) Header() abi.Header { return m.header }

// Construct calls the guest plugin constructor. It runs at most once; later calls
// return nil without entering the guest.
func (m *Module) Construct(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.constructed {
		return nil
	}
	m.constructed = true

	res, err := m.pluginNew.Call(hostfn.WithPlugin(ctx, m.name))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInstantiate, ExportPluginNew, err)
	}
	if len(res) != 1 || res[0] != abi.RootHandle {
		return fmt.Errorf("%w: %s returned unexpected root", ErrInstantiate, ExportPluginNew)
	}
	return nil
}

// Invoke implements abi.Transport by copying the request into guest memory and the
// response out of it.
func (m *Module) Invoke(ctx context.Context, request []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx = hostfn.WithPlugin(ctx, m.name)

	var ptr uint32
	if len(request) > 0 {
		res, err := m.alloc.Call(ctx, uint64(len(request)))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTrap, ExportAlloc, err)
		}
		//nolint:gosec // WASM pointers are 32-bit
		ptr = uint32(res[0])
		if !m.module.Memory().Write(ptr, request) {
			return nil, fmt.Errorf("failed to write request to guest memory at %d", ptr)
		}
	}

	//nolint:gosec // request sizes are bounded by guest memory
	res, err := m.invoke.Call(ctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTrap, ExportInvoke, err)
	}

	outPtr, outLen := hostfn.UnpackPtrLen(res[0])
	if outLen == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrTrap)
	}
	data, ok := m.module.Memory().Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("failed to read response from guest memory at %d+%d", outPtr, outLen)
	}

	// Read aliases guest memory, which the next call may overwrite.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Close closes the instance and its compiled code.
func (m *Module) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return errors.Join(m.module.Close(ctx), m.compiled.Close(ctx))
}
