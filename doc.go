// Package realms provides isolated, composable module namespaces for a
// WebAssembly host.
//
// A host that runs third-party modules needs their symbols kept apart from
// each other and from the host, while still letting them share what they
// explicitly agree on. Realms do that: every realm has its own ordered list
// of content sources, an optional parent, import directives that route
// matching names to other realms, and an optional visibility filter.
//
// # Architecture Overview
//
//	realms/
//	├── realm/       World registry, realms, scope matching, resolution
//	├── source/      Content sources: directories, zip archives, single files
//	├── engine/      wazero integration: compiles symbols, links and runs them
//	├── launcher/    Bootstrap driver: graph descriptions and entry point launch
//	├── errors/      Structured error types
//	└── cmd/realms/  Command line host
//
// # Quick Start
//
// Build a graph by hand and resolve a symbol:
//
//	w := realm.NewWorld()
//	defer w.Close()
//
//	core, _ := w.NewRealm("core")
//	core.AddSource("lib/core.wapk")
//
//	app, _ := w.NewRealm("app")
//	app.AddSource("plugins/app")
//	app.ImportFrom("core", "acme.api")
//
//	sym, err := app.LoadSymbol(ctx, "acme.api.Greeter")
//	// sym.Realm == "core"
//
// Or describe it in a configuration file and run its entry point:
//
//	main is acme.Main from app
//
//	[core]
//	  load ${basedir}/lib/*.wapk
//	[app]
//	  import acme.api from core
//	  load ${basedir}/plugins/app
//
//	l, _ := launcher.New(ctx, launcher.Options{})
//	defer l.Close(ctx)
//	if err := l.ConfigureFile("app.conf", launcher.FormatAuto); err != nil {
//	    log.Fatal(err)
//	}
//	code, err := l.Launch(ctx, os.Args[1:])
//	os.Exit(launcher.ExitStatus(code, err))
//
// # Resolution
//
// A symbol name "a.b.C" is looked up as the resource "a/b/C.wasm". From a
// realm, a lookup tries the foreign resolver, the filter, the imports in
// declaration order, the realm's own sources and then its parent. A symbol
// is materialized once per defining realm, no matter which realm asked for
// it, and concurrent requests share the same definition.
//
// # Thread Safety
//
// Worlds and realms are safe for concurrent use. Lookups never hold a realm
// lock while calling into another realm, so cyclic import graphs neither
// deadlock nor loop.
package realms
