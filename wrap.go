// wrap.go - extending traces as errors cross function boundaries.
//
//   - Wrap re-tags an error as a new kind. If the error (or anything it
//     wraps) carries a live trace, the new error takes that trace over and
//     appends the caller; otherwise a fresh trace starts at the caller.
//   - Forward records that an error passed through the caller unchanged.
//
// Both keep errors.Is/As working: the wrapped error is the new error's
// Unwrap target.
package ertrace

import (
	"errors"
	"fmt"
)

// Wrap returns an error of the given kind caused by err, or nil if err is nil.
func (tr *Tracer) Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	kind = kind.orDefault()
	return tr.wrapAt(HereSkip(string(kind), 1), err, kind, "")
}

// Wrapf is like Wrap with a formatted message.
func (tr *Tracer) Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind = kind.orDefault()
	return tr.wrapAt(HereSkip(string(kind), 1), err, kind, fmt.Sprintf(format, args...))
}

// Forward appends a propagation event ("=>") for the caller to err's trace
// and returns err itself. An err without a live trace is wrapped in a
// KindForward error whose trace starts here.
func (tr *Tracer) Forward(err error) error {
	if err == nil {
		return nil
	}
	return tr.forwardAt(HereSkip(string(KindForward), 1), err)
}

func (tr *Tracer) wrapAt(loc *Location, err error, kind Kind, msg string) error {
	e := &Error{kind: kind, msg: msg, cause: err}
	if t := liveTrace(err); t != nil {
		// FromCause leaves the inner error's trace empty, so its own cleanup
		// becomes a no-op and the nodes have exactly one owner again.
		moved := FromCause(t, loc)
		e.attach(moved, tr.autoRelease)
		return e
	}
	e.attach(NewTrace(tr.pool, loc), tr.autoRelease)
	return e
}

func (tr *Tracer) forwardAt(loc *Location, err error) error {
	if t := liveTrace(err); t != nil {
		t.Extend(loc)
		return err
	}
	e := &Error{kind: KindForward, cause: err}
	e.attach(NewTrace(tr.pool, loc), tr.autoRelease)
	return e
}

// liveTrace returns the trace of the outermost traced error in err's chain,
// or nil if none holds nodes.
func liveTrace(err error) *Trace {
	var te *Error
	if errors.As(err, &te) && te != nil && !te.trace.Released() {
		return te.trace
	}
	return nil
}

// Wrap returns an error of the given kind caused by err, or nil if err is
// nil, using the default pool for fresh traces.
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	kind = kind.orDefault()
	return DefaultTracer().wrapAt(HereSkip(string(kind), 1), err, kind, "")
}

// Wrapf is like Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	kind = kind.orDefault()
	return DefaultTracer().wrapAt(HereSkip(string(kind), 1), err, kind, fmt.Sprintf(format, args...))
}

// Forward appends a propagation event for the caller to err's trace and
// returns err, or wraps err when it carries no live trace.
func Forward(err error) error {
	if err == nil {
		return nil
	}
	return DefaultTracer().forwardAt(HereSkip(string(KindForward), 1), err)
}
