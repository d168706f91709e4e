package launcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/realms/engine"
	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/realm"
)

// Exit statuses reported for failures. A successful launch reports the
// entry point's own status.
const (
	ExitOK            = 0
	ExitConfigError   = 2
	ExitLaunchFailure = 100
)

// Format selects a configuration syntax.
type Format int

const (
	// FormatAuto picks YAML for .yaml and .yml files and lines otherwise.
	FormatAuto Format = iota
	FormatLines
	FormatYAML
)

// Options configures a Launcher.
type Options struct {
	// Engine runs entry points. When nil the launcher creates and owns one.
	Engine *engine.WazeroEngine
	// Properties seeds ${name} expansion.
	Properties map[string]string
	// RealmOptions are passed to the world. The engine definer is added
	// automatically.
	RealmOptions []realm.Option
	Stdout       io.Writer
	Stderr       io.Writer
}

// Launcher builds a world from a graph description and runs its entry point.
type Launcher struct {
	engine     *engine.WazeroEngine
	world      *realm.World
	props      *Properties
	conf       *Configurator
	ownsEngine bool
}

// New creates a launcher with an empty world.
func New(ctx context.Context, opts Options) (*Launcher, error) {
	l := &Launcher{
		engine: opts.Engine,
		props:  NewProperties(opts.Properties),
	}
	if l.engine == nil {
		eng, err := engine.NewWazeroEngineWithConfig(ctx, &engine.Config{
			Stdout: opts.Stdout,
			Stderr: opts.Stderr,
		})
		if err != nil {
			return nil, err
		}
		l.engine = eng
		l.ownsEngine = true
	}

	ropts := append([]realm.Option{realm.WithDefiner(l.engine.Definer())}, opts.RealmOptions...)
	l.world = realm.NewWorld(ropts...)
	l.conf = NewConfigurator(l.world, l.props)
	return l, nil
}

// World returns the launcher's world.
func (l *Launcher) World() *realm.World { return l.world }

// Engine returns the engine used for launching.
func (l *Launcher) Engine() *engine.WazeroEngine { return l.engine }

// Properties returns the expansion variables.
func (l *Launcher) Properties() *Properties { return l.props }

// Configure applies directives.
func (l *Launcher) Configure(ds []Directive) error {
	return l.conf.Configure(ds)
}

// ConfigureReader parses r in the given format and applies it.
func (l *Launcher) ConfigureReader(r io.Reader, format Format) error {
	var (
		ds  []Directive
		err error
	)
	if format == FormatYAML {
		data, rerr := io.ReadAll(r)
		if rerr != nil {
			return errors.IO("read configuration", rerr)
		}
		ds, err = ParseYAML(data)
	} else {
		ds, err = Parse(r)
	}
	if err != nil {
		return err
	}
	return l.Configure(ds)
}

// ConfigureFile reads and applies the configuration at path. The basedir
// property defaults to the file's directory.
func (l *Launcher) ConfigureFile(path string, format Format) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &errors.ConfigSyntaxError{Msg: "Cannot read configuration " + path, Cause: err}
	}
	if abs, err := filepath.Abs(path); err == nil {
		l.props.SetDefault(BasedirProperty, filepath.Dir(abs))
	}
	if format == FormatAuto {
		format = FormatLines
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = FormatYAML
		}
	}
	Logger().Info("configuring",
		zap.String("file", path),
		zap.Bool("yaml", format == FormatYAML))
	return l.ConfigureReader(bytes.NewReader(data), format)
}

// Main returns the configured entry point.
func (l *Launcher) Main() (MainDirective, bool) {
	return l.conf.Main()
}

// MainRealm returns the realm the entry point is resolved in.
func (l *Launcher) MainRealm() (*realm.Realm, error) {
	m, ok := l.conf.Main()
	if !ok {
		return nil, errors.ConfigSyntax("No main configuration", 0, "")
	}
	r, err := l.world.Realm(m.Realm)
	if err != nil {
		return nil, wrapAt("No such realm: "+m.Realm, m.Position, err)
	}
	return r, nil
}

// Launch resolves the entry point symbol in the main realm and runs it.
// The returned status is the entry point's own unless err is non-nil; use
// ExitStatus to map errors to a process exit status.
func (l *Launcher) Launch(ctx context.Context, args []string) (int, error) {
	r, err := l.MainRealm()
	if err != nil {
		return ExitConfigError, err
	}
	m, _ := l.conf.Main()

	sym, err := r.LoadSymbol(ctx, m.Symbol)
	if err != nil {
		if errors.IsNotFound(err) {
			return ExitConfigError, wrapAt("Cannot find main symbol "+m.Symbol, m.Position, err)
		}
		return ExitLaunchFailure, err
	}

	Logger().Info("launching",
		zap.String("symbol", m.Symbol),
		zap.String("realm", m.Realm),
		zap.String("defined_in", sym.Realm))

	code, err := l.engine.Invoke(ctx, r, sym, args)
	if err != nil {
		return ExitLaunchFailure, err
	}
	return code, nil
}

// Close disposes the world and, if the launcher created it, the engine.
func (l *Launcher) Close(ctx context.Context) error {
	err := l.world.Close()
	if l.ownsEngine {
		if cerr := l.engine.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}

// ExitStatus maps a launch outcome to a process exit status.
func ExitStatus(code int, err error) int {
	switch {
	case err == nil:
		return code
	case errors.IsConfig(err):
		return ExitConfigError
	default:
		return ExitLaunchFailure
	}
}
