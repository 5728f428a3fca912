// construct.go - creating traced errors.
//
// Every exported constructor resolves its caller's Location itself, so the
// recorded site is always the user's call, never an ertrace helper.
//
// Tracer binds a pool to construction. The package-level functions use the
// tracer of the process-wide default pool.
package ertrace

import (
	"fmt"
)

// Tracer creates traced errors whose nodes come from one pool.
type Tracer struct {
	pool        Pool
	autoRelease bool
}

// NewTracer returns a Tracer drawing nodes from p. With autoRelease set,
// each error releases its trace once it becomes unreachable; otherwise the
// owner calls (*Error).Release.
func NewTracer(p Pool, autoRelease bool) *Tracer {
	return &Tracer{pool: p, autoRelease: autoRelease}
}

// Pool returns the tracer's pool.
func (tr *Tracer) Pool() Pool { return tr.pool }

// DefaultTracer returns a tracer over the process-wide pool.
func DefaultTracer() *Tracer {
	return current().tracer
}

// New creates an error of the given kind whose trace starts at the caller.
func (tr *Tracer) New(kind Kind) *Error {
	kind = kind.orDefault()
	return tr.originate(HereSkip(string(kind), 1), kind, "")
}

// Newf is like New with a formatted message.
func (tr *Tracer) Newf(kind Kind, format string, args ...any) *Error {
	kind = kind.orDefault()
	return tr.originate(HereSkip(string(kind), 1), kind, fmt.Sprintf(format, args...))
}

func (tr *Tracer) originate(loc *Location, kind Kind, msg string) *Error {
	e := &Error{kind: kind, msg: msg}
	e.attach(NewTrace(tr.pool, loc), tr.autoRelease)
	return e
}

// New creates an error of the given kind whose trace starts at the caller,
// using the default pool.
func New(kind Kind) *Error {
	kind = kind.orDefault()
	return DefaultTracer().originate(HereSkip(string(kind), 1), kind, "")
}

// Newf is like New with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	kind = kind.orDefault()
	return DefaultTracer().originate(HereSkip(string(kind), 1), kind, fmt.Sprintf(format, args...))
}
