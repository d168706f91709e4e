// Package realm implements isolated namespaces ("realms") for code units
// loaded from content sources, and the world that registers them.
//
// A realm owns an ordered list of content sources, an optional parent, a
// list of imports from other realms and an optional filter. Resolving a
// symbol walks, first hit wins:
//
//  1. the foreign resolver (the realm's own, else the world default)
//  2. the filter, which may reject the name outright
//  3. imports whose scope matches, in declaration order; each delegates to
//     the target's own sources and parent only
//  4. the realm's own sources
//  5. the parent, for names admitted by ImportFromParent scopes if any
//
// A name found nowhere yields *errors.NotFoundError. Import and parent edges
// are stored by realm id and looked up in the world each time, so graphs may
// be cyclic and disposing a realm simply turns lookups through it into
// misses.
//
// Basic usage:
//
//	w := realm.NewWorld(realm.WithDefiner(eng.Definer()))
//	core, _ := w.NewRealm("core")
//	core.AddSource("lib/core.wapk")
//	app, _ := w.CreateRealm("app", "")
//	app.ImportFrom("core", "acme.api")
//	sym, err := app.LoadSymbol(ctx, "acme.api.Greeter")
//
// Symbols are materialized once per (defining realm, name) by the world's
// Definer. Concurrent callers wait for the first definition and share its
// result, whichever realm they started from. No realm lock is held while
// another realm is consulted, which keeps mutually importing realms free of
// lock cycles.
package realm
