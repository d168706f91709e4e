package realm

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a resource name is visible. Symbol names reach
// filters in resource form, so "a.B" is checked as "a/B.wasm".
type Filter func(resource string) bool

// PatternFilter admits resource names matching any of the glob patterns.
// Patterns use doublestar syntax: "acme/api/*.wasm", "acme/**".
// Malformed patterns match nothing.
func PatternFilter(patterns ...string) Filter {
	ps := append([]string(nil), patterns...)
	return func(resource string) bool {
		for _, p := range ps {
			if ok, err := doublestar.Match(p, resource); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// ScopeFilter admits names matching any of the import scopes.
func ScopeFilter(scopes ...string) Filter {
	entries := make([]Entry, len(scopes))
	for i, s := range scopes {
		entries[i] = NewEntry("", s)
	}
	return func(resource string) bool {
		for _, e := range entries {
			if e.Matches(resource) {
				return true
			}
		}
		return false
	}
}

// ImportOption configures a single import.
type ImportOption func(*importEntry)

// WithImportFilter restricts what the import exposes beyond its scope.
func WithImportFilter(f Filter) ImportOption {
	return func(e *importEntry) {
		e.filter = f
	}
}

type importEntry struct {
	filter Filter
	entry  Entry
}

func (e importEntry) admits(name, resource, suffix string) bool {
	if !e.entry.matches(name, suffix) {
		return false
	}
	return e.filter == nil || e.filter(resource)
}
