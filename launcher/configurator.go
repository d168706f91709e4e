package launcher

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/realm"
)

// Configurator applies directives to a world.
type Configurator struct {
	world   *realm.World
	props   *Properties
	main    *MainDirective
	parents map[string]string
}

// NewConfigurator creates a configurator building into w.
func NewConfigurator(w *realm.World, props *Properties) *Configurator {
	if props == nil {
		props = NewProperties(nil)
	}
	return &Configurator{world: w, props: props, parents: make(map[string]string)}
}

// Main returns the expanded main directive, if one was applied.
func (c *Configurator) Main() (MainDirective, bool) {
	if c.main == nil {
		return MainDirective{}, false
	}
	return *c.main, true
}

// Configure applies ds in order, associates realms by naming, and checks
// that the main realm exists. A parent named in a realm directive is kept
// over the one implied by naming. The first failure aborts with a
// *errors.ConfigSyntaxError pointing at the offending directive.
func (c *Configurator) Configure(ds []Directive) error {
	for _, d := range ds {
		if err := c.apply(d); err != nil {
			return err
		}
	}

	c.world.AssociateByNaming()
	for id, parent := range c.parents {
		r, ok := c.world.Lookup(id)
		if !ok {
			continue
		}
		if err := r.SetParent(parent); err != nil {
			Logger().Debug("explicit parent not restored",
				zap.String("realm", id),
				zap.String("parent", parent),
				zap.Error(err))
		}
	}

	if c.main != nil {
		if _, ok := c.world.Lookup(c.main.Realm); !ok {
			return wrapAt("No such realm: "+c.main.Realm, c.main.Position, errors.UnknownNamespace(c.main.Realm))
		}
	}
	return nil
}

// wrapAt binds a structural error to a directive. Configuration errors keep
// their kind through the cause chain.
func wrapAt(msg string, pos Position, cause error) error {
	var cfg *errors.ConfigSyntaxError
	if stderrors.As(cause, &cfg) {
		return cause
	}
	return &errors.ConfigSyntaxError{Msg: msg, Line: pos.Line, Text: pos.Text, Cause: cause}
}

func (c *Configurator) apply(d Directive) error {
	switch d := d.(type) {
	case MainDirective:
		return c.applyMain(d)
	case SetDirective:
		return c.applySet(d)
	case RealmDirective:
		return c.applyRealm(d)
	case ImportDirective:
		return c.applyImport(d)
	case LoadDirective:
		return c.applyLoad(d)
	default:
		return errors.ConfigSyntax(fmt.Sprintf("%s: %T", msgUnhandled, d), d.Pos().Line, d.Pos().Text)
	}
}

func (c *Configurator) expand(pos Position, fields ...*string) error {
	for _, f := range fields {
		v, err := c.props.Expand(*f, pos)
		if err != nil {
			return err
		}
		*f = v
	}
	return nil
}

func (c *Configurator) applyMain(d MainDirective) error {
	if c.main != nil {
		return errors.ConfigSyntax(msgDuplicateMain, d.Line, d.Text)
	}
	if err := c.expand(d.Position, &d.Symbol, &d.Realm); err != nil {
		return err
	}
	c.main = &d
	return nil
}

func (c *Configurator) applySet(d SetDirective) error {
	if err := c.expand(d.Position, &d.Property, &d.Using, &d.Default); err != nil {
		return err
	}
	if _, ok := c.props.Get(d.Property); ok {
		Logger().Debug("property already set", zap.String("property", d.Property))
		return nil
	}

	if d.Using != "" {
		file, err := readPropertyFile(d.Using)
		switch {
		case err == nil:
			if v, ok := file.lookup(d.Property); ok {
				c.props.Set(d.Property, v)
				return nil
			}
		case stderrors.Is(err, fs.ErrNotExist):
			Logger().Debug("property file missing", zap.String("file", d.Using))
		default:
			if d.Default == "" {
				return wrapAt("Cannot read property file "+d.Using, d.Position, err)
			}
			Logger().Warn("property file unreadable",
				zap.String("file", d.Using),
				zap.Error(err))
		}
	}

	if d.Default != "" {
		c.props.Set(d.Property, d.Default)
	}
	return nil
}

func (c *Configurator) applyRealm(d RealmDirective) error {
	if err := c.expand(d.Position, &d.ID, &d.Parent); err != nil {
		return err
	}
	if _, err := c.world.CreateRealm(d.ID, d.Parent); err != nil {
		return wrapAt("Cannot create realm "+d.ID, d.Position, err)
	}
	if d.Parent != "" {
		c.parents[d.ID] = d.Parent
	}
	return nil
}

func (c *Configurator) realm(id string, pos Position) (*realm.Realm, error) {
	r, err := c.world.Realm(id)
	if err != nil {
		return nil, wrapAt("No such realm: "+id, pos, err)
	}
	return r, nil
}

func (c *Configurator) applyImport(d ImportDirective) error {
	if err := c.expand(d.Position, &d.Scope, &d.From); err != nil {
		return err
	}
	r, err := c.realm(d.Realm, d.Position)
	if err != nil {
		return err
	}
	if err := r.ImportFrom(d.From, d.Scope); err != nil {
		return wrapAt("No such realm: "+d.From, d.Position, err)
	}
	return nil
}

func (c *Configurator) applyLoad(d LoadDirective) error {
	if err := c.expand(d.Position, &d.Path); err != nil {
		return err
	}
	r, err := c.realm(d.Realm, d.Position)
	if err != nil {
		return err
	}

	if isURL(d.Path) {
		if _, err := r.AddSource(d.Path); err != nil {
			return wrapAt("Malformed location "+d.Path, d.Position, err)
		}
		return nil
	}

	paths, err := c.match(d)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := r.AddSource(p); err != nil {
			return wrapAt("Malformed location "+p, d.Position, err)
		}
	}
	return nil
}

// match expands a load path into existing files. A missing literal path or
// glob base directory is an error unless the directive is optional.
func (c *Configurator) match(d LoadDirective) ([]string, error) {
	if !strings.ContainsAny(d.Path, "*?[{") {
		if _, err := os.Stat(d.Path); err != nil {
			if d.Optional {
				Logger().Debug("optional source missing", zap.String("path", d.Path))
				return nil, nil
			}
			return nil, wrapAt("File does not exist: "+d.Path, d.Position, err)
		}
		return []string{d.Path}, nil
	}

	base, _ := doublestar.SplitPattern(filepath.ToSlash(d.Path))
	if info, err := os.Stat(filepath.FromSlash(base)); err != nil || !info.IsDir() {
		if d.Optional {
			Logger().Debug("optional glob base missing", zap.String("path", d.Path))
			return nil, nil
		}
		return nil, errors.ConfigSyntax("No such directory: "+base, d.Line, d.Text)
	}

	matches, err := doublestar.FilepathGlob(d.Path, doublestar.WithFilesOnly())
	if err != nil {
		return nil, wrapAt("Invalid pattern "+d.Path, d.Position, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func isURL(p string) bool {
	return strings.HasPrefix(p, "file:") || strings.HasPrefix(p, "jar:") || strings.Contains(p, "://")
}
