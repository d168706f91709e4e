// Package source provides content sources: the places a realm searches for
// symbol bytes and named resources.
//
// A source is created from a locator, which may be a filesystem path, a
// file: URL, or a jar:file:...!/ URL:
//
//	src, err := source.Parse("plugins/acme.wapk")
//	res, ok := src.Find("acme/Tool.wasm")
//
// Parsing never touches the filesystem. The backing store is opened on first
// access and the result is memoized, error included. A directory is served
// as is, a zip archive (any extension) is read through archive/zip, and a
// plain file is exposed as a single resource under its base name. A source
// whose store is missing behaves as empty and reports the reason via Err.
//
// NewFS wraps an fs.FS, which is how embedded and in-memory trees are added.
//
// Resource names are slash separated and never start with '/'.
package source
