package source

import (
	"io"
	"io/fs"

	"github.com/wippyai/realms/errors"
)

// Resource is a named blob found in a content source.
// Handles are cached per source, so repeated lookups of the same name return
// the same pointer.
type Resource struct {
	fsys fs.FS

	// Name is the slash separated resource name within its source.
	Name string
	// URL locates the resource: file:///dir/name for directories and
	// jar:file:///archive!/name for archives.
	URL string
	// Origin is the locator of the owning source.
	Origin string
}

// Open returns a reader over the resource bytes.
func (r *Resource) Open() (io.ReadCloser, error) {
	f, err := r.fsys.Open(r.Name)
	if err != nil {
		return nil, errors.IO("open "+r.URL, err)
	}
	return f, nil
}

// Bytes reads the whole resource.
func (r *Resource) Bytes() ([]byte, error) {
	b, err := fs.ReadFile(r.fsys, r.Name)
	if err != nil {
		return nil, errors.IO("read "+r.URL, err)
	}
	return b, nil
}

func (r *Resource) String() string {
	return r.URL
}
