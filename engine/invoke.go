package engine

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/realm"
)

// Entry point exports, tried in this order.
const (
	ExportMain  = "main"
	ExportStart = "_start"
)

// Invoke runs the entry point of sym on behalf of requester and returns the
// exit status.
//
// Modules imported by sym are resolved as symbols through the realm that
// defined the importer, so a module only links against what its realm can
// see. WASI preview1 and registered host modules satisfy imports of their
// names. The entry is the export main, returning i32 or nothing, else _start,
// whose WASI exit code is honored.
func (e *WazeroEngine) Invoke(ctx context.Context, requester *realm.Realm, sym *realm.Symbol, args []string) (int, error) {
	entry, err := AsModule(sym)
	if err != nil {
		return 0, err
	}

	rt := wazero.NewRuntimeWithConfig(ctx, e.runtimeConfig())
	defer rt.Close(ctx)

	l := &linker{
		engine:    e,
		rt:        rt,
		requester: requester,
		args:      append([]string{sym.Name}, args...),
		linked:    make(map[string]*realm.Symbol),
		active:    make(map[string]bool),
		hosts:     e.hostSnapshot(),
	}
	if err := l.prepare(ctx); err != nil {
		return 0, err
	}

	mod, err := l.instantiate(ctx, sym, entry, true)
	if err != nil {
		return 0, err
	}
	return call(ctx, sym.Name, mod)
}

func call(ctx context.Context, name string, mod api.Module) (int, error) {
	if fn := mod.ExportedFunction(ExportMain); fn != nil {
		if n := len(fn.Definition().ParamTypes()); n != 0 {
			return 0, errors.Invocation(name, ExportMain,
				fmt.Errorf("entry takes %d parameters, want none", n))
		}
		results, err := fn.Call(ctx)
		if err != nil {
			return exitStatus(name, ExportMain, err)
		}
		if len(results) == 0 {
			return 0, nil
		}
		return int(api.DecodeI32(results[0])), nil
	}

	if fn := mod.ExportedFunction(ExportStart); fn != nil {
		_, err := fn.Call(ctx)
		if err != nil {
			return exitStatus(name, ExportStart, err)
		}
		return 0, nil
	}

	return 0, errors.New(errors.PhaseLaunch, errors.KindNotFound).
		Name(name).
		Detail("module exports neither %s nor %s", ExportMain, ExportStart).
		Build()
}

func exitStatus(name, export string, err error) (int, error) {
	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return int(exit.ExitCode()), nil
	}
	return 0, errors.Invocation(name, export, err)
}

// linker instantiates one import graph into a private runtime.
type linker struct {
	engine    *WazeroEngine
	rt        wazero.Runtime
	requester *realm.Realm
	linked    map[string]*realm.Symbol
	active    map[string]bool
	hosts     map[string]HostBuilder
	args      []string
}

func (l *linker) prepare(ctx context.Context) error {
	if err := instantiateWASI(ctx, l.rt); err != nil {
		return errors.Instantiation(WASIModule, err)
	}
	for name, build := range l.hosts {
		if _, err := build(l.rt.NewHostModuleBuilder(name)).Instantiate(ctx); err != nil {
			return errors.Instantiation(name, err)
		}
	}
	return nil
}

func (l *linker) provided(name string) bool {
	if name == WASIModule {
		return true
	}
	_, ok := l.hosts[name]
	return ok
}

// owner is the realm whose view resolves the imports of sym.
func (l *linker) owner(sym *realm.Symbol) *realm.Realm {
	if sym.Realm == "" {
		return l.requester
	}
	if r, ok := l.requester.World().Lookup(sym.Realm); ok {
		return r
	}
	return l.requester
}

func (l *linker) instantiate(ctx context.Context, sym *realm.Symbol, m *Module, entry bool) (api.Module, error) {
	l.active[sym.Name] = true
	defer delete(l.active, sym.Name)

	from := l.owner(sym)
	for _, dep := range m.ImportModules() {
		if l.provided(dep) {
			continue
		}
		if err := l.link(ctx, from, dep); err != nil {
			return nil, err
		}
	}

	compiled, err := l.rt.CompileModule(ctx, m.bytes)
	if err != nil {
		return nil, errors.Instantiation(sym.Name, err)
	}

	cfg := wazero.NewModuleConfig().
		WithName(sym.Name).
		WithArgs(l.args...)
	if w := l.engine.cfg.Stdout; w != nil {
		cfg = cfg.WithStdout(w)
	}
	if w := l.engine.cfg.Stderr; w != nil {
		cfg = cfg.WithStderr(w)
	}
	if entry {
		cfg = cfg.WithStartFunctions()
	} else {
		cfg = cfg.WithStartFunctions("_initialize")
	}

	mod, err := l.rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(sym.Name, err)
	}
	l.linked[sym.Name] = sym
	Logger().Debug("module instantiated",
		zap.String("symbol", sym.Name),
		zap.String("realm", sym.Realm),
		zap.Bool("entry", entry))
	return mod, nil
}

// link makes the module called name available, resolving it through from.
func (l *linker) link(ctx context.Context, from *realm.Realm, name string) error {
	if l.active[name] {
		return errors.Instantiation(name, fmt.Errorf("import cycle through %s", name))
	}

	dep, err := from.LoadSymbol(ctx, name)
	if err != nil {
		return errors.Instantiation(name, err)
	}

	if prev, ok := l.linked[name]; ok {
		if prev != dep {
			return errors.Instantiation(name, fmt.Errorf(
				"%s resolves to different modules from realms %q and %q", name, prev.Realm, dep.Realm))
		}
		return nil
	}

	m, err := AsModule(dep)
	if err != nil {
		return err
	}
	_, err = l.instantiate(ctx, dep, m, false)
	return err
}
