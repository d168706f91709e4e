package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/realms/engine"
	"github.com/wippyai/realms/errors"
	"github.com/wippyai/realms/launcher"
	"github.com/wippyai/realms/realm"
	"github.com/wippyai/realms/source"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "REALMS"

// exitNotFound is returned when resolve finds nothing.
const exitNotFound = 1

// Configuration keys. Each is also read from REALMS_<KEY>.
const (
	keyConf     = "conf"
	keyFormat   = "format"
	keyLogLevel = "log_level"
)

// app carries what the commands share.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	logger *zap.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return &app{v: v, stdout: stdout, stderr: stderr, logger: zap.NewNop()}
}

// exitError carries a guest exit status through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// usageError marks bad command lines.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCommand(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	_ = a.logger.Sync()
	return a.exitCode(err)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "realms",
		Short:         "Build isolated realm graphs and run their entry points",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setupLogging(a.v.GetString(keyLogLevel))
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := cmd.PersistentFlags()
	pf.StringP("conf", "c", "", "Graph description (line format, or YAML for .yaml/.yml)")
	pf.String("format", "auto", "Configuration format: auto, lines or yaml")
	pf.String("log-level", "warn", "Log level: debug, info, warn or error")
	pf.StringToStringP("define", "D", nil, "Expansion property name=value (repeatable)")
	_ = a.v.BindPFlag(keyConf, pf.Lookup("conf"))
	_ = a.v.BindPFlag(keyFormat, pf.Lookup("format"))
	_ = a.v.BindPFlag(keyLogLevel, pf.Lookup("log-level"))

	cmd.AddCommand(newLaunchCommand(a))
	cmd.AddCommand(newInspectCommand(a))
	cmd.AddCommand(newResolveCommand(a))
	cmd.AddCommand(newInteractiveCommand(a))
	return cmd
}

// setupLogging builds the zap logger for level and hands it to every
// package. debug uses the development encoder.
func (a *app) setupLogging(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return &usageError{err: fmt.Errorf("invalid log level %q", level)}
	}

	encCfg := zap.NewProductionEncoderConfig()
	if lvl == zapcore.DebugLevel {
		encCfg = zap.NewDevelopmentEncoderConfig()
	}
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(a.stderr), lvl)
	a.logger = zap.New(core).Named("realms")

	realm.SetLogger(a.logger.Named("realm"))
	source.SetLogger(a.logger.Named("source"))
	engine.SetLogger(a.logger.Named("engine"))
	launcher.SetLogger(a.logger.Named("launcher"))
	return nil
}

func parseFormat(s string) (launcher.Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return launcher.FormatAuto, nil
	case "lines", "conf":
		return launcher.FormatLines, nil
	case "yaml", "yml":
		return launcher.FormatYAML, nil
	default:
		return 0, &usageError{err: fmt.Errorf("unknown format %q", s)}
	}
}

// launcher builds a configured launcher from the conf flag or REALMS_CONF.
func (a *app) launcher(cmd *cobra.Command) (*launcher.Launcher, error) {
	conf := a.v.GetString(keyConf)
	if conf == "" {
		return nil, &usageError{err: stderrors.New("no configuration: pass --conf or set REALMS_CONF")}
	}
	format, err := parseFormat(a.v.GetString(keyFormat))
	if err != nil {
		return nil, err
	}
	props, err := cmd.Flags().GetStringToString("define")
	if err != nil {
		return nil, &usageError{err: err}
	}

	l, err := launcher.New(cmd.Context(), launcher.Options{
		Properties: props,
		Stdout:     a.stdout,
		Stderr:     a.stderr,
	})
	if err != nil {
		return nil, err
	}
	if err := l.ConfigureFile(conf, format); err != nil {
		_ = l.Close(cmd.Context())
		return nil, err
	}
	return l, nil
}

// exitCode reports err and maps it to a process exit status.
func (a *app) exitCode(err error) int {
	if err == nil {
		return launcher.ExitOK
	}
	var exit *exitError
	if stderrors.As(err, &exit) {
		return exit.code
	}

	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	var usage *usageError
	switch {
	case stderrors.As(err, &usage), errors.IsConfig(err):
		return launcher.ExitConfigError
	case errors.IsNotFound(err):
		return exitNotFound
	default:
		return launcher.ExitStatus(0, err)
	}
}
