// Package engine runs realm symbols as WebAssembly modules.
//
// It wraps wazero in two roles. The Definer compiles the bytes of a symbol
// resource when a realm first materializes it, so broken modules fail at
// lookup time and the symbol value is a *Module. Invoke then executes a
// module's entry point:
//
//	eng, _ := engine.NewWazeroEngine(ctx)
//	world := realm.NewWorld(realm.WithDefiner(eng.Definer()))
//	...
//	sym, _ := app.LoadSymbol(ctx, "acme.Main")
//	code, err := eng.Invoke(ctx, app, sym, os.Args[1:])
//
// # Linking
//
// A guest import names a module. Each name is resolved as a symbol through
// the realm that defined the importing module, recursively, and instantiated
// under that name. Imports of wasi_snapshot_preview1 and of host modules
// added with RegisterHost never reach the realm graph. Two realms resolving
// the same import name to different modules within one invocation is an
// instantiation error, as is an import cycle.
//
// # Entry points
//
// The export main is preferred; it takes no parameters and returns an i32
// exit status or nothing (status 0). Otherwise _start is called and a WASI
// proc_exit code becomes the status.
//
// # Thread Safety
//
// WazeroEngine is safe for concurrent use. Every Invoke instantiates into a
// fresh wazero runtime; compiled code is shared through a compilation cache.
package engine
