package realm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/source"
)

// memSource builds an in-memory source whose files contain "<source>:<file>".
func memSource(name string, files ...string) source.Source {
	m := fstest.MapFS{}
	for _, f := range files {
		m[f] = &fstest.MapFile{Data: []byte(name + ":" + f)}
	}
	return source.NewFS(name, m)
}

func mustRealm(t *testing.T, w *World, id string, srcs ...source.Source) *Realm {
	t.Helper()
	r, err := w.NewRealm(id)
	require.NoError(t, err)
	for _, src := range srcs {
		require.NoError(t, r.AddSourceValue(src))
	}
	return r
}

func urls(rs []*source.Resource) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.URL
	}
	return out
}

func TestLoadSymbol_OwnSources(t *testing.T) {
	w := NewWorld()
	r := mustRealm(t, w, "core", memSource("core", "acme/Tool.wasm"))

	sym, err := r.LoadSymbol(context.Background(), "acme.Tool")
	require.NoError(t, err)
	assert.Equal(t, "acme.Tool", sym.Name)
	assert.Equal(t, "core", sym.Realm)
	assert.Equal(t, []byte("core:acme/Tool.wasm"), sym.Value)
	assert.Equal(t, "fs:core!/acme/Tool.wasm", sym.Resource.URL)

	_, err = r.LoadSymbol(context.Background(), "acme.Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrNotFound))
	var nf *rerrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "core", nf.Realm)
	assert.Equal(t, "acme.Missing", nf.Name)
}

func TestLoadSymbol_SourceOrder(t *testing.T) {
	w := NewWorld()
	r := mustRealm(t, w, "core",
		memSource("first", "a/A.wasm"),
		memSource("second", "a/A.wasm", "a/B.wasm"))

	sym, err := r.LoadSymbol(context.Background(), "a.A")
	require.NoError(t, err)
	assert.Equal(t, "first", sym.Resource.Origin)

	sym, err = r.LoadSymbol(context.Background(), "a.B")
	require.NoError(t, err)
	assert.Equal(t, "second", sym.Resource.Origin)
}

func TestLoadSymbol_ImportMatchesSelfOnlyLookup(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	b := mustRealm(t, w, "b", memSource("b", "shared/S.wasm", "private/P.wasm"))
	a := mustRealm(t, w, "a", memSource("a", "private/P.wasm"))
	require.NoError(t, a.ImportFrom("b", "shared"))

	viaImport, err := a.LoadSymbol(ctx, "shared.S")
	require.NoError(t, err)
	direct, err := b.LoadSymbolFromSelf(ctx, "shared.S")
	require.NoError(t, err)
	assert.Same(t, direct, viaImport)
	assert.Equal(t, "b", viaImport.Realm)

	// Not in scope: served by a's own copy, never by b.
	own, err := a.LoadSymbol(ctx, "private.P")
	require.NoError(t, err)
	assert.Equal(t, "a", own.Realm)

	assert.Same(t, b, a.ImportRealmFor("shared.S"))
	assert.Same(t, b, a.ImportRealmFor("shared/S.wasm"))
	assert.Nil(t, a.ImportRealmFor("private.P"))
}

func TestLoadSymbol_FileScopeImportsSymbol(t *testing.T) {
	ctx := context.Background()
	w := NewWorld(WithSymbolSuffix(".mod"))
	mustRealm(t, w, "lib", memSource("lib", "pkg/X.mod", "pkg/Y.mod"))
	app := mustRealm(t, w, "app")
	require.NoError(t, app.ImportFrom("lib", "pkg/X.mod"))

	sym, err := app.LoadSymbol(ctx, "pkg.X")
	require.NoError(t, err)
	assert.Equal(t, "lib", sym.Realm)

	_, err = app.LoadSymbol(ctx, "pkg.Y")
	assert.True(t, rerrors.IsNotFound(err))
}

func TestLoadSymbol_ImportDoesNotWalkTargetImports(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "c", memSource("c", "deep/D.wasm"))
	b := mustRealm(t, w, "b")
	require.NoError(t, b.ImportFrom("c", "deep"))
	a := mustRealm(t, w, "a")
	require.NoError(t, a.ImportFrom("b", "deep"))

	_, err := b.LoadSymbol(ctx, "deep.D")
	require.NoError(t, err)

	_, err = a.LoadSymbol(ctx, "deep.D")
	assert.True(t, rerrors.IsNotFound(err), "imports are not transitive: %v", err)
}

func TestLoadSymbol_ImportReachesTargetParent(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "base", memSource("base", "lib/L.wasm"))
	_, err := w.CreateRealm("plugin", "base")
	require.NoError(t, err)
	host := mustRealm(t, w, "host")
	require.NoError(t, host.ImportFrom("plugin", "lib"))

	sym, err := host.LoadSymbol(ctx, "lib.L")
	require.NoError(t, err)
	assert.Equal(t, "base", sym.Realm)
}

func TestLoadSymbol_ImportsInDeclarationOrder(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "one", memSource("one", "x/y/Z.wasm"))
	mustRealm(t, w, "two", memSource("two", "x/y/Z.wasm"))
	a := mustRealm(t, w, "a")
	require.NoError(t, a.ImportFrom("one", "x"))
	require.NoError(t, a.ImportFrom("two", "x.y"))
	require.NoError(t, a.ImportFrom("two", "x"), "equal scope is ignored, not an error")

	sym, err := a.LoadSymbol(ctx, "x.y.Z")
	require.NoError(t, err)
	assert.Equal(t, "one", sym.Realm)
	assert.Len(t, a.Imports(), 2)
}

func TestLoadSymbol_ImportsBeforeSelf(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "api", memSource("api", "api/Svc.wasm"))
	a := mustRealm(t, w, "a", memSource("a", "api/Svc.wasm"))
	require.NoError(t, a.ImportFrom("api", "api.*"))

	sym, err := a.LoadSymbol(ctx, "api.Svc")
	require.NoError(t, err)
	assert.Equal(t, "api", sym.Realm)
}

func TestLoadSymbol_ParentDelegation(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "parent", memSource("parent", "p/P.wasm", "q/Q.wasm"))
	child, err := w.CreateRealm("child", "parent")
	require.NoError(t, err)
	require.NoError(t, child.AddSourceValue(memSource("child", "c/C.wasm")))

	sym, err := child.LoadSymbol(ctx, "p.P")
	require.NoError(t, err)
	assert.Equal(t, "parent", sym.Realm)

	require.NoError(t, child.ImportFromParent("p"))
	_, err = child.LoadSymbol(ctx, "p.P")
	require.NoError(t, err)
	_, err = child.LoadSymbol(ctx, "q.Q")
	assert.True(t, rerrors.IsNotFound(err), "q is not admitted to the parent")

	_, err = child.LoadSymbolFromSelf(ctx, "p.P")
	assert.True(t, rerrors.IsNotFound(err))
}

func TestLoadSymbol_CyclesTerminate(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	a := mustRealm(t, w, "a")
	b := mustRealm(t, w, "b")
	require.NoError(t, a.SetParent("b"))
	require.NoError(t, b.SetParent("a"))
	require.NoError(t, a.ImportFrom("b", ""))
	require.NoError(t, b.ImportFrom("a", ""))

	_, err := a.LoadSymbol(ctx, "no.Such")
	assert.True(t, rerrors.IsNotFound(err))
	assert.Empty(t, a.ListResources("no/Such.wasm", SelfFirst))
	assert.Empty(t, b.ListResources("no/Such.wasm", ParentFirst))
}

func TestLoadSymbol_CachedIdentity(t *testing.T) {
	var defines atomic.Int32
	w := NewWorld(WithDefiner(DefinerFunc(func(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error) {
		defines.Add(1)
		return res.Bytes()
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	first, err := r.LoadSymbol(context.Background(), "a.A")
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		sym, err := r.LoadSymbol(context.Background(), "a.A")
		require.NoError(t, err)
		require.Same(t, first, sym)
	}
	assert.EqualValues(t, 1, defines.Load())
}

func TestLoadSymbol_DefinitionFailureIsRemembered(t *testing.T) {
	var defines atomic.Int32
	boom := errors.New("bad module")
	w := NewWorld(WithDefiner(DefinerFunc(func(context.Context, *Realm, string, *source.Resource) (any, error) {
		defines.Add(1)
		return nil, boom
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	for i := 0; i < 3; i++ {
		_, err := r.LoadSymbol(context.Background(), "a.A")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.False(t, rerrors.IsNotFound(err), "a broken symbol is not a miss")
	}
	assert.EqualValues(t, 1, defines.Load())
}

func TestLoadSymbol_DefinerPanicReleasesWaiters(t *testing.T) {
	var defines atomic.Int32
	release := make(chan struct{})
	w := NewWorld(WithDefiner(DefinerFunc(func(context.Context, *Realm, string, *source.Resource) (any, error) {
		defines.Add(1)
		<-release
		panic("corrupt module")
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	errs := make(chan error, 2)
	load := func() {
		_, err := r.LoadSymbol(context.Background(), "a.A")
		errs <- err
	}
	go load()
	require.Eventually(t, func() bool { return defines.Load() == 1 }, 5*time.Second, time.Millisecond)
	go load()
	close(release)

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "corrupt module")
		case <-time.After(5 * time.Second):
			t.Fatal("load still blocked after the definer panicked")
		}
	}

	_, err := r.LoadSymbol(context.Background(), "a.A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt module")
	assert.EqualValues(t, 1, defines.Load())
}

func TestLoadSymbol_CancelledDefinitionIsNotRemembered(t *testing.T) {
	var defines atomic.Int32
	w := NewWorld(WithDefiner(DefinerFunc(func(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error) {
		defines.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.Bytes()
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.LoadSymbol(ctx, "a.A")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	sym, err := r.LoadSymbol(context.Background(), "a.A")
	require.NoError(t, err)
	assert.Equal(t, []byte("core:a/A.wasm"), sym.Value)
	assert.EqualValues(t, 2, defines.Load())

	again, err := r.LoadSymbol(context.Background(), "a.A")
	require.NoError(t, err)
	assert.Same(t, sym, again)
	assert.EqualValues(t, 2, defines.Load())
}

func TestLoadSymbol_WaiterRetriesAfterCancelledDefinition(t *testing.T) {
	var defines atomic.Int32
	started := make(chan struct{})
	w := NewWorld(WithDefiner(DefinerFunc(func(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error) {
		if defines.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return res.Bytes()
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.LoadSymbol(ctx, "a.A")
		first <- err
	}()
	<-started

	second := make(chan *Symbol, 1)
	go func() {
		sym, err := r.LoadSymbol(context.Background(), "a.A")
		assert.NoError(t, err)
		second <- sym
	}()
	cancel()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled load did not return")
	}
	select {
	case sym := <-second:
		require.NotNil(t, sym)
		assert.Equal(t, []byte("core:a/A.wasm"), sym.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting load did not retry")
	}
	assert.EqualValues(t, 2, defines.Load())
}

func TestLoadSymbol_SelfReferentialDefinitionFails(t *testing.T) {
	w := NewWorld(WithDefiner(DefinerFunc(func(ctx context.Context, r *Realm, name string, res *source.Resource) (any, error) {
		if _, err := r.LoadSymbol(ctx, name); err != nil {
			return nil, err
		}
		return nil, nil
	})))
	r := mustRealm(t, w, "core", memSource("core", "a/A.wasm"))

	_, err := r.LoadSymbol(context.Background(), "a.A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "depends on itself")
}

func TestForeignResolver(t *testing.T) {
	ctx := context.Background()
	builtins := NewBuiltins()
	host := builtins.Register("host.Log", "log-fn")

	w := NewWorld(WithForeign(builtins))
	r := mustRealm(t, w, "core", memSource("core", "host/Log.wasm"))

	sym, err := r.LoadSymbol(ctx, "host.Log")
	require.NoError(t, err)
	assert.Same(t, host, sym, "foreign symbols win over own sources")
	assert.Equal(t, "host.Log (host)", sym.String())

	other := mustRealm(t, w, "other")
	sym2, err := other.LoadSymbol(ctx, "host.Log")
	require.NoError(t, err)
	assert.Same(t, host, sym2)

	// A realm level resolver replaces the world default.
	other.SetForeign(NewBuiltins())
	_, err = other.LoadSymbol(ctx, "host.Log")
	assert.True(t, rerrors.IsNotFound(err))
	assert.Equal(t, []string{"host.Log"}, builtins.Names())
}

func TestImportFrom_UnknownRealm(t *testing.T) {
	w := NewWorld()
	a := mustRealm(t, w, "a")
	err := a.ImportFrom("ghost", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, rerrors.ErrUnknownNamespace)

	err = a.SetParent("ghost")
	assert.ErrorIs(t, err, rerrors.ErrUnknownNamespace)
}

func TestAddSource_MalformedLocator(t *testing.T) {
	w := NewWorld()
	a := mustRealm(t, w, "a")

	_, err := a.AddSource("ftp://example.com/lib.zip")
	assert.ErrorIs(t, err, rerrors.ErrMalformedLocator)

	// Missing stores are accepted and only miss at lookup time.
	src, err := a.AddSource(t.TempDir() + "/missing.wapk")
	require.NoError(t, err)
	assert.Len(t, a.Sources(), 1)
	_, err = a.LoadSymbol(context.Background(), "x.Y")
	assert.True(t, rerrors.IsNotFound(err))
	assert.Error(t, src.Err())
}

func TestListResources_Orders(t *testing.T) {
	w := NewWorld()
	mustRealm(t, w, "parent", memSource("parent", "META/plugin.yaml"))
	child, err := w.CreateRealm("child", "parent")
	require.NoError(t, err)
	require.NoError(t, child.AddSourceValue(memSource("child", "META/plugin.yaml")))

	selfFirst := []string{"fs:child!/META/plugin.yaml", "fs:parent!/META/plugin.yaml"}
	parentFirst := []string{"fs:parent!/META/plugin.yaml", "fs:child!/META/plugin.yaml"}

	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(selfFirst, urls(child.ListResources("META/plugin.yaml", SelfFirst))); diff != "" {
			t.Errorf("SelfFirst mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(parentFirst, urls(child.ListResources("/META/plugin.yaml", ParentFirst))); diff != "" {
			t.Errorf("ParentFirst mismatch (-want +got):\n%s", diff)
		}
	}

	res, ok := child.ResolveResource("META/plugin.yaml")
	require.True(t, ok)
	assert.Equal(t, "fs:child!/META/plugin.yaml", res.URL)
}

func TestListResources_IncludesImportsOnce(t *testing.T) {
	w := NewWorld()
	shared := memSource("shared", "cfg/app.yaml")
	mustRealm(t, w, "lib", shared)
	mustRealm(t, w, "parent", memSource("parent", "cfg/app.yaml"))
	app, err := w.CreateRealm("app", "parent")
	require.NoError(t, err)
	require.NoError(t, app.AddSourceValue(memSource("app", "cfg/app.yaml")))
	require.NoError(t, app.ImportFrom("lib", "cfg"))
	require.NoError(t, app.ImportFrom("lib", "cfg.*"))

	got := urls(app.ListResources("cfg/app.yaml", SelfFirst))
	want := []string{"fs:shared!/cfg/app.yaml", "fs:app!/cfg/app.yaml", "fs:parent!/cfg/app.yaml"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFilteredRealm(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	b := mustRealm(t, w, "b", memSource("b", "api/A.wasm", "impl/I.wasm", "impl/notes.txt"))
	b.SetFilter(PatternFilter("api/**"))
	assert.True(t, b.Filtered())

	_, ok := b.ResolveResource("impl/notes.txt")
	assert.False(t, ok)
	assert.Empty(t, b.ListResources("impl/notes.txt", SelfFirst))
	_, ok = b.FindLocalResource("impl/notes.txt")
	assert.False(t, ok)
	_, err := b.LoadSymbol(ctx, "impl.I")
	assert.True(t, rerrors.IsNotFound(err))

	_, err = b.LoadSymbol(ctx, "api.A")
	require.NoError(t, err)

	// An unfiltered sibling importing the hidden scope still reaches it.
	a := mustRealm(t, w, "a")
	require.NoError(t, a.ImportFrom("b", "impl"))
	res, ok := a.ResolveResource("impl/notes.txt")
	require.True(t, ok)
	assert.Equal(t, "fs:b!/impl/notes.txt", res.URL)
	assert.Len(t, a.ListResources("impl/notes.txt", ParentFirst), 1)
	sym, err := a.LoadSymbol(ctx, "impl.I")
	require.NoError(t, err)
	assert.Equal(t, "b", sym.Realm)
}

func TestImportFilter(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	mustRealm(t, w, "lib", memSource("lib", "lib/Public.wasm", "lib/Internal.wasm"))
	a := mustRealm(t, w, "a")
	require.NoError(t, a.ImportFrom("lib", "lib", WithImportFilter(ScopeFilter("lib.Public"))))

	_, err := a.LoadSymbol(ctx, "lib.Public")
	require.NoError(t, err)
	_, err = a.LoadSymbol(ctx, "lib.Internal")
	assert.True(t, rerrors.IsNotFound(err))
}

func TestDisposedImportTargetMisses(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	b := mustRealm(t, w, "b", memSource("b", "b/X.wasm"))
	a := mustRealm(t, w, "a")
	require.NoError(t, a.ImportFrom("b", "b"))

	_, err := a.LoadSymbol(ctx, "b.X")
	require.NoError(t, err)

	require.NoError(t, w.DisposeRealm("b"))
	assert.True(t, b.Disposed())

	_, err = a.LoadSymbol(ctx, "b.X")
	require.Error(t, err)
	assert.True(t, rerrors.IsNotFound(err))
	_, ok := a.ResolveResource("b/X.wasm")
	assert.False(t, ok)
	assert.Empty(t, a.ImportRealms())

	_, err = b.LoadSymbol(ctx, "b.X")
	assert.True(t, rerrors.IsNotFound(err), "a disposed realm resolves nothing")
	assert.Error(t, b.AddSourceValue(memSource("late")))
}

func TestDisplay(t *testing.T) {
	w := NewWorld()
	mustRealm(t, w, "lib")
	parent := mustRealm(t, w, "parent", memSource("parent-src"))
	child, err := parent.CreateChildRealm("child")
	require.NoError(t, err)
	require.NoError(t, child.ImportFrom("lib", "acme.*"))

	var buf bytes.Buffer
	require.NoError(t, child.Display(&buf))
	out := buf.String()
	for _, want := range []string{"realm:    child", "parent:   parent", `import "acme.*" from lib`, "realm:    parent", "source[0] = parent-src"} {
		assert.True(t, strings.Contains(out, want), fmt.Sprintf("missing %q in\n%s", want, out))
	}
}
