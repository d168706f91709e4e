package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseDefine,
				Kind:   KindInvalidData,
				Realm:  "plugins",
				Name:   "acme.Tool",
				Detail: "bad magic",
			},
			contains: []string{"[define]", "invalid_data", `"plugins"`, `"acme.Tool"`, "bad magic"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseRegistry,
				Kind:  KindInvalidInput,
			},
			contains: []string{"[registry]", "invalid_input"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseSource,
				Kind:   KindIO,
				Detail: "open archive",
				Cause:  errors.New("permission denied"),
			},
			contains: []string{"[source]", "io", "open archive", "caused by", "permission denied"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseDefine,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseResolve,
		Kind:  KindNotFound,
		Name:  "foo",
	}

	tests := []struct {
		target *Error
		name   string
		want   bool
	}{
		{name: "same phase and kind", target: &Error{Phase: PhaseResolve, Kind: KindNotFound}, want: true},
		{name: "kind only", target: &Error{Kind: KindNotFound}, want: true},
		{name: "different phase", target: &Error{Phase: PhaseSource, Kind: KindNotFound}, want: false},
		{name: "different kind", target: &Error{Phase: PhaseResolve, Kind: KindIO}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("truncated")
	err := New(PhaseDefine, KindInvalidData).
		Realm("core").
		Name("a.b.C").
		Detail("read %d of %d bytes", 3, 8).
		Cause(cause).
		Build()

	if err.Phase != PhaseDefine {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDefine)
	}
	if err.Kind != KindInvalidData {
		t.Errorf("Kind = %v, want %v", err.Kind, KindInvalidData)
	}
	if err.Realm != "core" || err.Name != "a.b.C" {
		t.Errorf("Realm/Name = %q/%q", err.Realm, err.Name)
	}
	if err.Detail != "read 3 of 8 bytes" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not in chain")
	}
}

func TestTypedErrors_Is(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
		name     string
	}{
		{name: "duplicate", err: DuplicateName("core"), sentinel: ErrDuplicateName},
		{name: "unknown", err: UnknownNamespace("ghost"), sentinel: ErrUnknownNamespace},
		{name: "not found", err: NotFound("core", "a.A"), sentinel: ErrNotFound},
		{name: "locator", err: MalformedLocator("ftp://x", "unsupported scheme", nil), sentinel: ErrMalformedLocator},
		{name: "config", err: ConfigSyntax("Unhandled configuration", 3, "bogus"), sentinel: ErrConfigSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Error("wrapped error lost its kind")
			}
			if errors.Is(tt.err, &Error{Kind: KindIO}) {
				t.Error("matched unrelated kind")
			}
		})
	}
}

func TestConfigSyntaxError_Message(t *testing.T) {
	tests := []struct {
		err  *ConfigSyntaxError
		name string
		want string
	}{
		{
			name: "with line",
			err:  ConfigSyntax("Missing from clause", 4, "import org.foo"),
			want: "Missing from clause (4): import org.foo",
		},
		{
			name: "without line",
			err:  ConfigSyntax("No main configuration", 0, ""),
			want: "No main configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifiers(t *testing.T) {
	if !IsNotFound(fmt.Errorf("x: %w", NotFound("r", "n"))) {
		t.Error("IsNotFound missed wrapped miss")
	}
	if IsNotFound(Define("r", "n", errors.New("boom"))) {
		t.Error("IsNotFound accepted a definition failure")
	}

	for _, err := range []error{
		ConfigSyntax("Unhandled configuration", 1, "x"),
		UnknownNamespace("x"),
		DuplicateName("x"),
		MalformedLocator("", "empty locator", nil),
	} {
		if !IsConfig(err) {
			t.Errorf("IsConfig(%v) = false", err)
		}
	}
	if IsConfig(Invocation("m", "main", errors.New("trap"))) {
		t.Error("IsConfig accepted an invocation failure")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		err   *Error
		name  string
		phase Phase
		kind  Kind
	}{
		{name: "InvalidInput", err: InvalidInput(PhaseRegistry, "empty id"), phase: PhaseRegistry, kind: KindInvalidInput},
		{name: "Define", err: Define("r", "n", cause), phase: PhaseDefine, kind: KindInvalidData},
		{name: "IO", err: IO("read", cause), phase: PhaseSource, kind: KindIO},
		{name: "Instantiation", err: Instantiation("m", cause), phase: PhaseLaunch, kind: KindInstantiation},
		{name: "Invocation", err: Invocation("m", "main", cause), phase: PhaseLaunch, kind: KindInvocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
		})
	}
}
