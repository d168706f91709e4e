// Package errors provides structured error types for the realms library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the realm id, the symbol or resource name, a detail
// message and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDefine, errors.KindInvalidData).
//		Realm("plugins").
//		Name("acme.Tool").
//		Detail("definer rejected %d bytes", n).
//		Build()
//
// The namespace failures have dedicated types that callers match with
// errors.As, or with errors.Is against the sentinels:
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
//	var cfg *errors.ConfigSyntaxError
//	if errors.As(err, &cfg) { fmt.Println(cfg.Line) }
//
// A resolution miss is always a *NotFoundError. Anything else coming out of a
// lookup is a real failure.
package errors
