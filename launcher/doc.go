// Package launcher builds a realm world from a declarative graph
// description and runs its entry point.
//
// Two syntaxes describe the same directives. The line format:
//
//	main is acme.Main from app
//	set plugins.dir using ${basedir}/launch.properties default plugins
//
//	[core]
//	  load ${basedir}/lib/*.wapk
//
//	[app]
//	  import acme.api from core
//	  optionally ${plugins.dir}/**/*.wasm
//
// and YAML (see ParseYAML). Directives are applied in order. ${name}
// references are expanded right before a directive is applied, so a set
// directive affects everything after it; basedir defaults to the
// configuration file's directory, else the working directory.
//
// load accepts a path, a doublestar glob or a file:/jar: URL. A missing path
// or glob base directory aborts the configuration unless the directive is
// optionally. After the last directive, realms are linked to parents by
// their dotted names ("app.web" becomes a child of "app").
//
// Any configuration failure is a *errors.ConfigSyntaxError with the line
// and text of the offending directive, and maps to ExitConfigError.
// Failures of the entry point itself map to ExitLaunchFailure.
package launcher
