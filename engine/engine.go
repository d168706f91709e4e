package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/realm"
	"github.com/wippyai/realms/source"
)

// WASIModule is the import module name of WASI preview1.
const WASIModule = wasi_snapshot_preview1.ModuleName

// Config holds configuration for engine creation
type Config struct {
	// Stdout and Stderr receive guest output. Nil discards it.
	Stdout io.Writer
	Stderr io.Writer

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	EnableThreads bool
}

// HostBuilder adds functions to a host module.
type HostBuilder func(b wazero.HostModuleBuilder) wazero.HostModuleBuilder

// WazeroEngine compiles realm symbols and runs their entry points.
//
// Every Invoke gets its own wazero runtime, so module instance names never
// collide between launches. Compiled code is shared through a compilation
// cache.
//
// Thread-safe.
type WazeroEngine struct {
	cfg     Config
	cache   wazero.CompilationCache
	runtime wazero.Runtime // compiles for Definer
	hosts   map[string]HostBuilder
	hostsMu sync.RWMutex
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	e := &WazeroEngine{
		cache: wazero.NewCompilationCache(),
		hosts: make(map[string]HostBuilder),
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.runtime = wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	return e, nil
}

func (e *WazeroEngine) runtimeConfig() wazero.RuntimeConfig {
	rc := wazero.NewRuntimeConfig().WithCompilationCache(e.cache)
	if e.cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(e.cfg.MemoryLimitPages)
	}
	if e.cfg.EnableThreads {
		rc = rc.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
	}
	return rc
}

// Close releases the compilation cache and the compile runtime.
// Modules defined by this engine must not be invoked afterwards.
func (e *WazeroEngine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// RegisterHost makes a host module available to every invocation. Guest
// imports from name are satisfied by it instead of the realm graph.
func (e *WazeroEngine) RegisterHost(name string, build HostBuilder) {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()
	e.hosts[name] = build
}

func (e *WazeroEngine) hostSnapshot() map[string]HostBuilder {
	e.hostsMu.RLock()
	defer e.hostsMu.RUnlock()
	out := make(map[string]HostBuilder, len(e.hosts))
	for k, v := range e.hosts {
		out[k] = v
	}
	return out
}

// Definer returns a realm.Definer that compiles .wasm resources into
// *Module values.
func (e *WazeroEngine) Definer() realm.Definer {
	return realm.DefinerFunc(func(ctx context.Context, r *realm.Realm, name string, res *source.Resource) (any, error) {
		data, err := res.Bytes()
		if err != nil {
			return nil, err
		}
		compiled, err := e.runtime.CompileModule(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", res.URL, err)
		}
		Logger().Debug("module compiled",
			zap.String("realm", r.ID()),
			zap.String("symbol", name),
			zap.Int("bytes", len(data)))
		return &Module{
			Name:     name,
			Realm:    r.ID(),
			URL:      res.URL,
			compiled: compiled,
			bytes:    data,
		}, nil
	})
}

// Module is a compiled symbol.
type Module struct {
	compiled wazero.CompiledModule
	Name     string
	Realm    string
	URL      string
	bytes    []byte
}

// ImportModules returns the distinct module names the module imports from,
// sorted.
func (m *Module) ImportModules() []string {
	seen := make(map[string]bool)
	for _, def := range m.compiled.ImportedFunctions() {
		if mod, _, ok := def.Import(); ok {
			seen[mod] = true
		}
	}
	for _, def := range m.compiled.ImportedMemories() {
		if mod, _, ok := def.Import(); ok {
			seen[mod] = true
		}
	}
	out := make([]string, 0, len(seen))
	for mod := range seen {
		out = append(out, mod)
	}
	sort.Strings(out)
	return out
}

// Exports returns the exported function names, sorted.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	out := make([]string, 0, len(defs))
	for name := range defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// HasEntry reports whether the module exports main or _start.
func (m *Module) HasEntry() bool {
	defs := m.compiled.ExportedFunctions()
	_, hasMain := defs[ExportMain]
	_, hasStart := defs[ExportStart]
	return hasMain || hasStart
}

// AsModule extracts the compiled module from a symbol.
func AsModule(sym *realm.Symbol) (*Module, error) {
	m, ok := sym.Value.(*Module)
	if !ok {
		return nil, errors.New(errors.PhaseLaunch, errors.KindInvalidData).
			Realm(sym.Realm).
			Name(sym.Name).
			Detail("symbol value is %T, not a compiled module", sym.Value).
			Build()
	}
	return m, nil
}

// adapterFuncs are preview1 extras expected by modules built through the
// component adapter.
var adapterFuncs = []struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}{
	{
		name: "reset_adapter_state",
		fn:   func(context.Context, api.Module, []uint64) {},
	},
	{
		name:    "adapter_close_badfd",
		fn:      func(_ context.Context, _ api.Module, stack []uint64) { stack[0] = 8 }, // EBADF
		params:  []api.ValueType{api.ValueTypeI32},
		results: []api.ValueType{api.ValueTypeI32},
	},
	{
		name:    "adapter_open_badfd",
		fn:      func(_ context.Context, _ api.Module, stack []uint64) { stack[0] = 0xFFFFFFFF }, // -1
		params:  []api.ValueType{api.ValueTypeI32},
		results: []api.ValueType{api.ValueTypeI32},
	},
}

func instantiateWASI(ctx context.Context, rt wazero.Runtime) error {
	builder := rt.NewHostModuleBuilder(WASIModule)
	wasi_snapshot_preview1.NewFunctionExporter().ExportFunctions(builder)
	for _, f := range adapterFuncs {
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(f.fn, f.params, f.results).
			Export(f.name)
	}
	_, err := builder.Instantiate(ctx)
	return err
}
