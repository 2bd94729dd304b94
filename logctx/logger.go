// Package logctx is the logging contract the rest of the runtime
// depends on. The core subsystems only need to emit a handful of
// leveled, prefixed lines (connection opened/closed, negotiation
// failures, health-check flips, route registration conflicts) — the
// same shape of logging the rest of this codebase already does with
// log.Printf, so this package stays a thin wrapper around the
// standard logger rather than pulling in a structured-logging
// framework. Metric emission is a separate, equally thin contract in
// the observability package.
package logctx

import (
	"log"
	"os"
)

// Logger is the minimal leveled-logging contract every subsystem
// depends on. A concrete implementation wraps *log.Logger; tests can
// substitute a no-op or a recording implementation.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Std adapts the standard library's *log.Logger to Logger, prefixing
// each line the way the rest of this codebase already does.
type Std struct {
	l       *log.Logger
	debug   bool
}

// New creates a Std logger writing to os.Stderr with the given name
// as part of its prefix.
func New(name string) *Std {
	return &Std{l: log.New(os.Stderr, "["+name+"] ", log.LstdFlags)}
}

// WithDebug enables Debugf output on this logger and returns it.
func (s *Std) WithDebug(enabled bool) *Std {
	s.debug = enabled
	return s
}

func (s *Std) Debugf(format string, args ...any) {
	if s.debug {
		s.l.Printf("DEBUG "+format, args...)
	}
}

func (s *Std) Infof(format string, args ...any) { s.l.Printf("INFO "+format, args...) }
func (s *Std) Warnf(format string, args ...any) { s.l.Printf("WARN "+format, args...) }
func (s *Std) Errorf(format string, args ...any) { s.l.Printf("ERROR "+format, args...) }

// Noop discards everything. Useful for tests and for library
// embedders who bring their own logging.
type Noop struct{}

func (Noop) Debugf(string, ...any) {}
func (Noop) Infof(string, ...any)  {}
func (Noop) Warnf(string, ...any)  {}
func (Noop) Errorf(string, ...any) {}

// Default is the package-level logger used when a component isn't
// given one explicitly, mirroring the teacher's reliance on the log
// package's default logger in core/engine.go and app/app.go.
var Default Logger = New("meridian")
