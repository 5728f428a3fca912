// predicates.go - stdlib-aligned queries over traced errors.
//
// All helpers go through errors.As, so they see traced errors behind
// fmt.Errorf("%w") wrappers and errors.Join trees.
package ertrace

import (
	"errors"
)

// KindOf returns the kind of the outermost traced error in err's chain, or
// "" if there is none.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) && te != nil {
		return te.kind
	}
	return ""
}

// HasKind reports whether any traced error in err's unwrap graph has kind.
func HasKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, kindTarget(kind))
}

// kindTarget matches any *Error of the same kind under errors.Is.
type kindTarget Kind

func (k kindTarget) Error() string { return string(k) }

// Is lets errors.Is(err, kindTarget(k)) match traced errors by kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(kindTarget)
	return ok && e.kind == Kind(k)
}

// TraceOf returns the live trace carried by err's chain, or nil. After Wrap,
// only the outermost traced error holds the nodes, so this is the trace that
// Render should print.
//
// The returned Trace is only valid while err is reachable: with auto-release
// the nodes go back to the pool once err is collected. Keep err alive (for
// example with runtime.KeepAlive) until you are done with the Trace, or use
// Fprint, which does so.
func TraceOf(err error) *Trace {
	return liveTrace(err)
}
