package source

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
)

// Source is an ordered search location for resources.
// Implementations are safe for concurrent use.
type Source interface {
	// Locator returns the string the source was created from.
	Locator() string
	// Open opens the backing store. It is called implicitly by the lookup
	// methods and only does work once.
	Open() error
	// Find returns the resource with the given name, if present.
	Find(name string) (*Resource, bool)
	// List returns every resource in the source sorted by name.
	List() []*Resource
	// Err reports why the backing store could not be opened, if it could not.
	Err() error
	// Close releases the backing store. Lookups on a closed source miss.
	Close() error
}

type backend int

const (
	backendNone backend = iota
	backendDir
	backendArchive
	backendFile
	backendFS
)

func (b backend) String() string {
	switch b {
	case backendDir:
		return "dir"
	case backendArchive:
		return "archive"
	case backendFile:
		return "file"
	case backendFS:
		return "fs"
	default:
		return "none"
	}
}

var zipMagic = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"), // empty archive
}

// schemeRe recognizes a URL scheme. A single letter is a Windows drive, not a scheme.
var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]+:`)

// store is the lazily opened content source shared by all backends.
type store struct {
	fsys    fs.FS
	openErr error
	closer  io.Closer
	cache   map[string]*Resource
	locator string
	path    string
	only    string // single-file backend: the one visible name
	urlBase string
	kind    backend
	mu      sync.Mutex
	opened  bool
	closed  bool
}

// Parse creates a source from a locator without touching the filesystem.
// Empty locators and URL schemes other than file: and jar:file: fail with a
// MalformedLocatorError.
func Parse(locator string) (Source, error) {
	p, err := localPath(locator)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return &store{
		locator: locator,
		path:    p,
		cache:   make(map[string]*Resource),
	}, nil
}

// MustParse is like Parse but panics on a malformed locator.
func MustParse(locator string) Source {
	s, err := Parse(locator)
	if err != nil {
		panic(err)
	}
	return s
}

// NewFS creates a source over fsys. The name identifies the source in
// locators and resource URLs.
func NewFS(name string, fsys fs.FS) Source {
	return &store{
		locator: name,
		fsys:    fsys,
		kind:    backendFS,
		opened:  true,
		urlBase: "fs:" + name + "!/",
		cache:   make(map[string]*Resource),
	}
}

// localPath turns a locator into a filesystem path.
func localPath(locator string) (string, error) {
	s := strings.TrimSpace(locator)
	if s == "" {
		return "", errors.MalformedLocator(locator, "empty locator", nil)
	}

	if strings.HasPrefix(s, "jar:") {
		s = strings.TrimPrefix(s, "jar:")
		if i := strings.Index(s, "!/"); i >= 0 {
			s = s[:i]
		} else {
			s = strings.TrimSuffix(s, "!")
		}
		if !strings.HasPrefix(s, "file:") {
			return "", errors.MalformedLocator(locator, "jar URL must wrap a file URL", nil)
		}
	}

	if strings.HasPrefix(s, "file:") {
		u, err := url.Parse(s)
		if err != nil {
			return "", errors.MalformedLocator(locator, "invalid file URL", err)
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return "", errors.MalformedLocator(locator, "file URL has no path", nil)
		}
		return filepath.FromSlash(p), nil
	}

	if schemeRe.MatchString(s) {
		scheme := s[:strings.IndexByte(s, ':')]
		return "", errors.MalformedLocator(locator, "unsupported scheme "+scheme, nil)
	}

	return s, nil
}

func (s *store) Locator() string {
	return s.locator
}

func (s *store) String() string {
	return s.locator
}

func (s *store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openErr
}

func (s *store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *store) openLocked() error {
	if s.opened {
		return s.openErr
	}
	s.opened = true

	err := s.attach()
	if err != nil {
		s.openErr = err
		Logger().Warn("content source unavailable",
			zap.String("locator", s.locator),
			zap.Error(err))
		return err
	}

	Logger().Debug("content source opened",
		zap.String("locator", s.locator),
		zap.Stringer("backend", s.kind))
	return nil
}

func (s *store) attach() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return errors.IO("stat "+s.path, err)
	}

	if info.IsDir() {
		s.fsys = os.DirFS(s.path)
		s.kind = backendDir
		s.urlBase = fileURL(s.path) + "/"
		return nil
	}

	isZip, err := sniffZip(s.path)
	if err != nil {
		return errors.IO("read "+s.path, err)
	}
	if isZip {
		zr, err := zip.OpenReader(s.path)
		if err != nil {
			return errors.IO("open archive "+s.path, err)
		}
		s.fsys = zr
		s.closer = zr
		s.kind = backendArchive
		s.urlBase = "jar:" + fileURL(s.path) + "!/"
		return nil
	}

	s.fsys = os.DirFS(filepath.Dir(s.path))
	s.only = filepath.Base(s.path)
	s.kind = backendFile
	s.urlBase = fileURL(filepath.Dir(s.path)) + "/"
	return nil
}

func sniffZip(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, 4)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	for _, m := range zipMagic {
		if n == len(m) && bytes.Equal(head, m) {
			return true, nil
		}
	}
	return false, nil
}

func fileURL(p string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}

// normalize cleans a resource name. It returns false for names that can
// never exist in a source.
func normalize(name string) (string, bool) {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", false
	}
	name = path.Clean(name)
	return name, fs.ValidPath(name)
}

func (s *store) Find(name string) (*Resource, bool) {
	name, ok := normalize(name)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.openLocked() != nil {
		return nil, false
	}
	if r, ok := s.cache[name]; ok {
		return r, true
	}
	if s.only != "" && name != s.only {
		return nil, false
	}

	info, err := fs.Stat(s.fsys, name)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return s.resourceLocked(name), true
}

func (s *store) resourceLocked(name string) *Resource {
	if r, ok := s.cache[name]; ok {
		return r
	}
	r := &Resource{
		Name:   name,
		URL:    s.urlBase + name,
		Origin: s.locator,
		fsys:   s.fsys,
	}
	s.cache[name] = r
	return r
}

func (s *store) List() []*Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.openLocked() != nil {
		return nil
	}

	if s.only != "" {
		if _, err := fs.Stat(s.fsys, s.only); err != nil {
			return nil
		}
		return []*Resource{s.resourceLocked(s.only)}
	}

	var out []*Resource
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			out = append(out, s.resourceLocked(p))
		}
		return nil
	})
	if err != nil {
		Logger().Warn("listing content source failed",
			zap.String("locator", s.locator),
			zap.Error(err))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cache = nil
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
