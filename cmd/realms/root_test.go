package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/realms/internal/testwasm"
	"github.com/wippyai/realms/launcher"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// project writes a two realm application and returns its configuration.
func project(t *testing.T, main string) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "core", "acme", "lib.wasm"), testwasm.Const("answer", 7))
	writeFile(t, filepath.Join(dir, "app", "acme", "Main.wasm"), testwasm.Forward("acme.lib", "answer"))
	writeFile(t, filepath.Join(dir, "app", "acme", "Ok.wasm"), testwasm.VoidMain())

	conf := filepath.Join(dir, "app.conf")
	writeFile(t, conf, []byte(`main is `+main+` from app
[core]
  load ${basedir}/core
[app]
  import acme.lib from core
  load ${basedir}/app
`))
	return conf
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand(newApp(nil, nil))
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"launch", "inspect", "resolve", "interactive"} {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
	assert.Equal(t, "dev", root.Version)
}

func TestRootCommandFlags(t *testing.T) {
	root := newRootCommand(newApp(nil, nil))
	for _, name := range []string{"conf", "format", "log-level", "define"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}

	resolve := newResolveCommand(newApp(nil, nil))
	for _, name := range []string{"realm", "resource", "all", "parent-first"} {
		assert.NotNil(t, resolve.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    launcher.Format
		wantErr bool
	}{
		{in: "", want: launcher.FormatAuto},
		{in: "auto", want: launcher.FormatAuto},
		{in: "lines", want: launcher.FormatLines},
		{in: "YAML", want: launcher.FormatYAML},
		{in: "yml", want: launcher.FormatYAML},
		{in: "xml", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseFormat(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLaunch(t *testing.T) {
	tests := []struct {
		name string
		main string
		want int
	}{
		{"entry status", "acme.Main", 7},
		{"void entry", "acme.Ok", 0},
		{"missing symbol", "acme.Missing", launcher.ExitConfigError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, _ := run(t, "launch", "--conf", project(t, tc.main))
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestLaunch_ConfFromEnvironment(t *testing.T) {
	t.Setenv("REALMS_CONF", project(t, "acme.Main"))
	code, _, stderr := run(t, "launch")
	assert.Equal(t, 7, code, stderr)
}

func TestLaunch_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.conf")
	writeFile(t, bad, []byte("[app]\nfrobnicate\n"))

	tests := []struct {
		name   string
		args   []string
		stderr string
	}{
		{"no configuration", []string{"launch"}, "no configuration"},
		{"syntax error", []string{"launch", "--conf", bad}, "Unhandled configuration (2): frobnicate"},
		{"bad log level", []string{"launch", "--log-level", "loud"}, "invalid log level"},
		{"unknown flag", []string{"launch", "--nope"}, "unknown flag"},
		{"bad format", []string{"launch", "--conf", bad, "--format", "xml"}, "unknown format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, _, stderr := run(t, tc.args...)
			assert.Equal(t, launcher.ExitConfigError, code)
			assert.Contains(t, stderr, tc.stderr)
		})
	}
}

func TestInspect(t *testing.T) {
	conf := project(t, "acme.Main")

	code, stdout, stderr := run(t, "inspect", "--conf", conf)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "main acme.Main from app")
	assert.Contains(t, stdout, "core\n")
	assert.Contains(t, stdout, "import acme.lib from core")

	code, stdout, stderr = run(t, "inspect", "--conf", conf, "app")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "realm:    app")

	code, _, _ = run(t, "inspect", "--conf", conf, "nope")
	assert.Equal(t, launcher.ExitConfigError, code)
}

func TestResolve(t *testing.T) {
	conf := project(t, "acme.Main")

	tests := []struct {
		name string
		args []string
		code int
		out  []string
	}{
		{
			name: "symbol from main realm",
			args: []string{"acme.Main"},
			out:  []string{"acme.Main -> realm app", "acme/Main.wasm"},
		},
		{
			name: "imported symbol",
			args: []string{"acme.lib"},
			out:  []string{"acme.lib -> realm core", "via import from core"},
		},
		{
			name: "from another realm",
			args: []string{"acme.lib", "--realm", "core"},
			out:  []string{"acme.lib -> realm core"},
		},
		{
			name: "resource",
			args: []string{"acme/Main.wasm", "--resource"},
			out:  []string{"acme/Main.wasm -> file://"},
		},
		{
			name: "all",
			args: []string{"acme.lib", "--all"},
			out:  []string{"core/acme/lib.wasm"},
		},
		{
			name: "missing",
			args: []string{"acme.Missing"},
			code: exitNotFound,
		},
		{
			name: "unknown realm",
			args: []string{"acme.Main", "--realm", "nope"},
			code: launcher.ExitConfigError,
		},
		{
			name: "no name",
			args: []string{},
			code: launcher.ExitConfigError,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"resolve", "--conf", conf}, tc.args...)
			code, stdout, stderr := run(t, args...)
			require.Equal(t, tc.code, code, stderr)
			for _, want := range tc.out {
				assert.Contains(t, stdout, want)
			}
		})
	}
}
