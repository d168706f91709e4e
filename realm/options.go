package realm

import "go.uber.org/zap"

// Option configures a World.
type Option func(*World)

// WithLogger sets the world's logger. Defaults to the package Logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDefiner sets how located symbol bytes become symbol values.
// Defaults to RawDefiner.
func WithDefiner(d Definer) Option {
	return func(w *World) {
		if d != nil {
			w.definer = d
		}
	}
}

// WithForeign sets the world default foreign resolver, consulted by realms
// that have none of their own.
func WithForeign(f ForeignResolver) Option {
	return func(w *World) {
		w.foreign = f
	}
}

// WithSymbolSuffix sets the resource suffix of symbol files.
// Defaults to DefaultSymbolSuffix.
func WithSymbolSuffix(suffix string) Option {
	return func(w *World) {
		w.suffix = suffix
	}
}
