// error.go - the traced error value. Constructors live in construct.go and
// wrap.go.
package ertrace

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Error is an error value that owns an error return trace.
//
// The zero value is not useful; build errors with New, Wrap and Forward.
// An *Error is safe to read from many goroutines, but Forward and Wrap take
// ownership of the trace and must be called by the error's single owner.
type Error struct {
	kind  Kind
	msg   string
	cause error
	trace *Trace
}

// Error returns "kind", "kind: msg", or those followed by ": cause".
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.kind))
	if e.msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.msg)
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

// Unwrap returns the error this one was built from, if any.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the error's kind tag.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the optional message given at construction.
func (e *Error) Message() string { return e.msg }

// Trace returns the error's trace. The trace is empty once it has been moved
// into a wrapping error or released. The returned Trace stays valid while e
// is reachable.
func (e *Error) Trace() *Trace {
	if e == nil {
		return nil
	}
	return e.trace
}

// Release returns the trace's nodes to the pool now instead of waiting for
// the error to become unreachable. Using the trace afterwards yields nothing.
func (e *Error) Release() {
	if e == nil {
		return
	}
	e.trace.Release()
}

// attach installs t as e's trace and, when autoRelease is set, arranges for
// t to be released once e is garbage.
func (e *Error) attach(t *Trace, autoRelease bool) {
	e.trace = t
	if autoRelease {
		runtime.AddCleanup(e, func(t *Trace) { t.Release() }, t)
	}
}

// Format implements fmt.Formatter.
//
//	%v, %s  Error()
//	%+v     Error() followed by the rendered trace
//	%q      quoted Error()
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, e.Error())
			_, _ = io.WriteString(s, "\n")
			_ = Render(s, e.trace)
			runtime.KeepAlive(e)
			return
		}
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	default:
		_, _ = io.WriteString(s, e.Error())
	}
}

var (
	_ error         = (*Error)(nil)
	_ fmt.Formatter = (*Error)(nil)
)
