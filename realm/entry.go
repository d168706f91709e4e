package realm

import (
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Entry is an import scope bound to the realm it imports from.
//
// Scopes:
//   - "" or "*" matches every name
//   - "pkg.*" matches names directly inside pkg ("pkg.X", not "pkg.sub.X")
//   - "pkg" matches "pkg" itself and everything below it
//   - "pkg.X" matches that symbol and its resource file "pkg/X.wasm"
//   - "pkg/X.wasm" matches that file and the symbol "pkg.X"
//
// Names containing '/' are resource names; the scope is compared in its
// slash form. Two entries are equal when their scopes are equal, whatever
// realm they point at.
type Entry struct {
	realm string
	scope string
}

// NewEntry creates an entry importing scope from the realm named realmID.
func NewEntry(realmID, scope string) Entry {
	return Entry{realm: realmID, scope: scope}
}

// Realm returns the id of the realm the entry imports from.
func (e Entry) Realm() string { return e.realm }

// Scope returns the scope string.
func (e Entry) Scope() string { return e.scope }

// Equal reports whether both entries declare the same scope.
func (e Entry) Equal(o Entry) bool {
	return e.scope == o.scope
}

// Hash is consistent with Equal.
func (e Entry) Hash() uint64 {
	return xxhash.Sum64String(e.scope)
}

func (e Entry) String() string {
	return "Entry[import " + e.scope + " from realm " + e.realm + "]"
}

// Matches reports whether name falls within the entry's scope, taking
// symbol files to end in DefaultSymbolSuffix.
func (e Entry) Matches(name string) bool {
	return e.matches(name, DefaultSymbolSuffix)
}

func (e Entry) matches(name, suffix string) bool {
	scope := e.scope
	if scope == "" || scope == "*" {
		return true
	}

	if strings.Contains(name, "/") {
		return matchResource(scope, name)
	}

	if strings.Contains(scope, "/") {
		if file, ok := strings.CutSuffix(strings.TrimPrefix(scope, "/"), suffix); ok && suffix != "" {
			if strings.ReplaceAll(file, "/", ".") == name {
				return true
			}
		}
		scope = strings.ReplaceAll(scope, "/", ".")
	}
	if pkg, ok := cutWildcard(scope, "."); ok {
		return dottedPackage(name) == pkg
	}
	return name == scope || strings.HasPrefix(name, scope+".")
}

func matchResource(scope, name string) bool {
	name = strings.TrimPrefix(name, "/")

	p := scope
	if !strings.Contains(p, "/") {
		if pkg, ok := cutWildcard(p, "."); ok {
			return resourcePackage(name) == strings.ReplaceAll(pkg, ".", "/")
		}
		p = strings.ReplaceAll(p, ".", "/")
	} else if pkg, ok := cutWildcard(p, "/"); ok {
		return resourcePackage(name) == strings.TrimPrefix(pkg, "/")
	}
	p = strings.TrimPrefix(p, "/")

	if name == p || strings.HasPrefix(name, p+"/") {
		return true
	}
	// a symbol scope also covers the symbol's own file
	if rest, ok := strings.CutPrefix(name, p+"."); ok {
		return !strings.Contains(rest, "/")
	}
	return false
}

func cutWildcard(scope, sep string) (string, bool) {
	return strings.CutSuffix(scope, sep+"*")
}

func dottedPackage(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

func resourcePackage(name string) string {
	d := path.Dir(name)
	if d == "." {
		return ""
	}
	return d
}
