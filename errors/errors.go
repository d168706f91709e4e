package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRegistry Phase = "registry" // world bookkeeping
	PhaseResolve  Phase = "resolve"  // symbol and resource lookup
	PhaseSource   Phase = "source"   // content source access
	PhaseDefine   Phase = "define"   // symbol materialization
	PhaseConfig   Phase = "config"   // bootstrap directives
	PhaseLaunch   Phase = "launch"   // entry point invocation
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateName    Kind = "duplicate_name"
	KindUnknownNamespace Kind = "unknown_namespace"
	KindNotFound         Kind = "not_found"
	KindMalformedLocator Kind = "malformed_locator"
	KindConfigSyntax     Kind = "config_syntax"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindIO               Kind = "io"
	KindInstantiation    Kind = "instantiation"
	KindInvocation       Kind = "invocation"
)

// Sentinels for errors.Is. They carry no phase, so they match any phase.
var (
	ErrDuplicateName    = &Error{Kind: KindDuplicateName}
	ErrUnknownNamespace = &Error{Kind: KindUnknownNamespace}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrMalformedLocator = &Error{Kind: KindMalformedLocator}
	ErrConfigSyntax     = &Error{Kind: KindConfigSyntax}
	ErrIO               = &Error{Kind: KindIO}
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Realm  string
	Name   string
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Realm != "" {
		b.WriteString(" in realm ")
		b.WriteString(strconv.Quote(e.Realm))
	}

	if e.Name != "" {
		b.WriteString(" for ")
		b.WriteString(strconv.Quote(e.Name))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a phase matches on kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(e.Phase, e.Kind, t)
	}
	return false
}

func matches(phase Phase, kind Kind, t *Error) bool {
	if t.Kind != kind {
		return false
	}
	return t.Phase == "" || t.Phase == phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Realm sets the realm the error relates to
func (b *Builder) Realm(id string) *Builder {
	b.err.Realm = id
	return b
}

// Name sets the symbol or resource name
func (b *Builder) Name(name string) *Builder {
	b.err.Name = name
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// DuplicateNameError is returned when a realm id is already registered.
type DuplicateNameError struct {
	ID string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("[registry] duplicate_name: realm %q already exists", e.ID)
}

// Is reports whether target matches this error type
func (e *DuplicateNameError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(PhaseRegistry, KindDuplicateName, t)
	}
	return false
}

// UnknownNamespaceError is returned when a realm id does not name a
// registered realm, for example in an import or a parent link.
type UnknownNamespaceError struct {
	ID string
}

func (e *UnknownNamespaceError) Error() string {
	return fmt.Sprintf("[registry] unknown_namespace: no realm %q", e.ID)
}

// Is reports whether target matches this error type
func (e *UnknownNamespaceError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(PhaseRegistry, KindUnknownNamespace, t)
	}
	return false
}

// NotFoundError reports a normal miss: the name is absent after the whole
// resolution walk. It never wraps a failure.
type NotFoundError struct {
	Realm string
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("[resolve] not_found: %q in realm %q", e.Name, e.Realm)
}

// Is reports whether target matches this error type
func (e *NotFoundError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(PhaseResolve, KindNotFound, t)
	}
	return false
}

// MalformedLocatorError is returned for a content source path or URL that
// cannot be interpreted.
type MalformedLocatorError struct {
	Cause   error
	Locator string
	Reason  string
}

func (e *MalformedLocatorError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[source] malformed_locator: %q", e.Locator)
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *MalformedLocatorError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type
func (e *MalformedLocatorError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(PhaseSource, KindMalformedLocator, t)
	}
	return false
}

// ConfigSyntaxError reports a malformed or unresolvable bootstrap directive.
// The message keeps the form "<message> (<line>): <text>".
type ConfigSyntaxError struct {
	Cause error
	Msg   string
	Text  string
	Line  int
}

func (e *ConfigSyntaxError) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (%d): %s", e.Line, e.Text)
	} else if e.Text != "" {
		b.WriteString(": ")
		b.WriteString(e.Text)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *ConfigSyntaxError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type
func (e *ConfigSyntaxError) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return matches(PhaseConfig, KindConfigSyntax, t)
	}
	return false
}

// Convenience constructors

// DuplicateName creates a duplicate realm error
func DuplicateName(id string) *DuplicateNameError {
	return &DuplicateNameError{ID: id}
}

// UnknownNamespace creates an unknown realm error
func UnknownNamespace(id string) *UnknownNamespaceError {
	return &UnknownNamespaceError{ID: id}
}

// NotFound creates a not-found error
func NotFound(realm, name string) *NotFoundError {
	return &NotFoundError{Realm: realm, Name: name}
}

// MalformedLocator creates a malformed locator error
func MalformedLocator(locator, reason string, cause error) *MalformedLocatorError {
	return &MalformedLocatorError{Locator: locator, Reason: reason, Cause: cause}
}

// ConfigSyntax creates a configuration error bound to a directive line
func ConfigSyntax(msg string, line int, text string) *ConfigSyntaxError {
	return &ConfigSyntaxError{Msg: msg, Line: line, Text: text}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Define creates a symbol materialization error
func Define(realm, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseDefine,
		Kind:   KindInvalidData,
		Realm:  realm,
		Name:   name,
		Detail: "define symbol",
		Cause:  cause,
	}
}

// IO creates a content source I/O error
func IO(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseSource,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Instantiation creates an instantiation error
func Instantiation(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindInstantiation,
		Name:   name,
		Detail: "instantiate module",
		Cause:  cause,
	}
}

// Invocation creates an entry point failure
func Invocation(name, export string, cause error) *Error {
	return &Error{
		Phase:  PhaseLaunch,
		Kind:   KindInvocation,
		Name:   name,
		Detail: fmt.Sprintf("call %s", export),
		Cause:  cause,
	}
}

// IsNotFound reports whether err is a resolution miss
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// IsConfig reports whether err is a configuration or reference error:
// bad syntax, unknown realms, duplicate realms or malformed locators.
func IsConfig(err error) bool {
	return stderrors.Is(err, ErrConfigSyntax) ||
		stderrors.Is(err, ErrUnknownNamespace) ||
		stderrors.Is(err, ErrDuplicateName) ||
		stderrors.Is(err, ErrMalformedLocator)
}
