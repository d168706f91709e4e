package engine

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/internal/testwasm"
	"github.com/wippyai/realms/realm"
	"github.com/wippyai/realms/source"
)

func newEngine(t *testing.T) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	e, err := NewWazeroEngine(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close(ctx) })
	return e
}

// addModules adds an in-memory source holding the given symbols.
func addModules(t *testing.T, r *realm.Realm, modules map[string][]byte) {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, bin := range modules {
		fsys[realm.SymbolResource(name, realm.DefaultSymbolSuffix)] = &fstest.MapFile{Data: bin}
	}
	require.NoError(t, r.AddSourceValue(source.NewFS(r.ID(), fsys)))
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{EnableThreads: true}, "threads"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			if e.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
			if err := e.Close(ctx); err != nil {
				t.Errorf("Close failed: %v", err)
			}
		})
	}
}

func TestDefiner(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	w := realm.NewWorld(realm.WithDefiner(e.Definer()))
	r, err := w.NewRealm("app")
	require.NoError(t, err)
	addModules(t, r, map[string][]byte{
		"acme.Main":   testwasm.Forward("acme.lib", "answer"),
		"acme.Broken": []byte("not wasm"),
	})

	sym, err := r.LoadSymbol(ctx, "acme.Main")
	require.NoError(t, err)
	m, err := AsModule(sym)
	require.NoError(t, err)
	assert.Equal(t, "acme.Main", m.Name)
	assert.Equal(t, "app", m.Realm)
	assert.Equal(t, []string{"acme.lib"}, m.ImportModules())
	assert.Equal(t, []string{"main"}, m.Exports())
	assert.True(t, m.HasEntry())

	_, err = r.LoadSymbol(ctx, "acme.Broken")
	require.Error(t, err)
	assert.False(t, errors.IsNotFound(err))
}

func TestInvoke_EntryPoints(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	w := realm.NewWorld(realm.WithDefiner(e.Definer()))
	r, err := w.NewRealm("app")
	require.NoError(t, err)
	addModules(t, r, map[string][]byte{
		"m.Answer": testwasm.Main(42),
		"m.Void":   testwasm.VoidMain(),
		"m.Exit":   testwasm.Exit(3),
		"m.Clean":  testwasm.Exit(0),
		"m.None":   testwasm.NoEntry(),
	})

	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{name: "m.Answer", want: 42},
		{name: "m.Void", want: 0},
		{name: "m.Exit", want: 3},
		{name: "m.Clean", want: 0},
		{name: "m.None", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, err := r.LoadSymbol(ctx, tt.name)
			require.NoError(t, err)
			code, err := e.Invoke(ctx, r, sym, []string{"--flag"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestInvoke_LinksThroughDefiningRealm(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	w := realm.NewWorld(realm.WithDefiner(e.Definer()))

	lib, err := w.NewRealm("lib")
	require.NoError(t, err)
	addModules(t, lib, map[string][]byte{
		"acme.lib": testwasm.Const("answer", 7),
	})

	plugin, err := w.NewRealm("plugin")
	require.NoError(t, err)
	addModules(t, plugin, map[string][]byte{
		"acme.Main": testwasm.Forward("acme.lib", "answer"),
	})
	require.NoError(t, plugin.ImportFrom("lib", "acme.lib"))

	// host imports the entry only; acme.lib stays invisible to it.
	host, err := w.NewRealm("host")
	require.NoError(t, err)
	require.NoError(t, host.ImportFrom("plugin", "acme.Main"))
	_, err = host.LoadSymbol(ctx, "acme.lib")
	require.True(t, errors.IsNotFound(err))

	sym, err := host.LoadSymbol(ctx, "acme.Main")
	require.NoError(t, err)
	code, err := e.Invoke(ctx, host, sym, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, code)
}

func TestInvoke_MissingImport(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	w := realm.NewWorld(realm.WithDefiner(e.Definer()))
	r, err := w.NewRealm("app")
	require.NoError(t, err)
	addModules(t, r, map[string][]byte{
		"acme.Main": testwasm.Forward("acme.gone", "answer"),
	})

	sym, err := r.LoadSymbol(ctx, "acme.Main")
	require.NoError(t, err)
	_, err = e.Invoke(ctx, r, sym, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLaunch, Kind: errors.KindInstantiation})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestInvoke_ImportCycle(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	w := realm.NewWorld(realm.WithDefiner(e.Definer()))
	r, err := w.NewRealm("app")
	require.NoError(t, err)
	addModules(t, r, map[string][]byte{
		"c.A": testwasm.Reexport("f", "c.B", "f"),
		"c.B": testwasm.Reexport("f", "c.A", "f"),
		"c.M": testwasm.Forward("c.A", "f"),
	})

	sym, err := r.LoadSymbol(ctx, "c.M")
	require.NoError(t, err)
	_, err = e.Invoke(ctx, r, sym, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle")
}

func TestInvoke_HostModule(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	e.RegisterHost("host", func(b wazero.HostModuleBuilder) wazero.HostModuleBuilder {
		return b.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
				stack[0] = api.EncodeI32(9)
			}), nil, []api.ValueType{api.ValueTypeI32}).
			Export("answer")
	})

	w := realm.NewWorld(realm.WithDefiner(e.Definer()))
	r, err := w.NewRealm("app")
	require.NoError(t, err)
	addModules(t, r, map[string][]byte{
		"acme.Main": testwasm.Forward("host", "answer"),
	})

	sym, err := r.LoadSymbol(ctx, "acme.Main")
	require.NoError(t, err)
	code, err := e.Invoke(ctx, r, sym, nil)
	require.NoError(t, err)
	assert.Equal(t, 9, code)
}

func TestAsModule_RejectsOtherValues(t *testing.T) {
	_, err := AsModule(&realm.Symbol{Name: "x", Value: []byte("raw")})
	require.Error(t, err)
}
