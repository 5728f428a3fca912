// walk.go - traversal of error graphs.
//
// errors.Unwrap only follows Unwrap() error, while errors.Join produces
// Unwrap() []error. Chain follows both, so kinds behind a join are still
// found. Nodes are visited once: comparable errors are tracked by value,
// other pointer errors by address, and anything else is bounded by depth.
package ertrace

import (
	"iter"
	"reflect"
)

type singleUnwrapper interface{ Unwrap() error }
type multiUnwrapper interface{ Unwrap() []error }

const maxWalkDepth = 1 << 12

// seenSet guards traversal against cycles without using non-comparable
// errors as map keys (which would panic).
type seenSet struct {
	byValue map[error]struct{}
	byPtr   map[uintptr]struct{}
}

func newSeenSet() seenSet {
	return seenSet{
		byValue: make(map[error]struct{}, 8),
		byPtr:   make(map[uintptr]struct{}, 8),
	}
}

// mark reports whether err is new.
func (s seenSet) mark(err error) bool {
	if _, ok := err.(*Error); ok {
		// Fast path for the common case.
		if _, dup := s.byValue[err]; dup {
			return false
		}
		s.byValue[err] = struct{}{}
		return true
	}
	if reflect.TypeOf(err).Comparable() {
		if _, dup := s.byValue[err]; dup {
			return false
		}
		s.byValue[err] = struct{}{}
		return true
	}
	if rv := reflect.ValueOf(err); rv.Kind() == reflect.Pointer && !rv.IsNil() {
		id := rv.Pointer()
		if _, dup := s.byPtr[id]; dup {
			return false
		}
		s.byPtr[id] = struct{}{}
	}
	return true
}

// Chain yields every distinct error in err's unwrap graph, depth first and
// pre-order: a wrapper comes before what it wraps, and joined errors left to
// right.
func Chain(err error) iter.Seq[error] {
	return func(yield func(error) bool) {
		if err == nil {
			return
		}
		seen := newSeenSet()
		seen.mark(err)
		stack := make([]error, 1, 8)
		stack[0] = err

		for len(stack) > 0 && len(stack) < maxWalkDepth {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(cur) {
				return
			}
			switch u := cur.(type) {
			case multiUnwrapper:
				kids := u.Unwrap()
				for i := len(kids) - 1; i >= 0; i-- {
					if kids[i] != nil && seen.mark(kids[i]) {
						stack = append(stack, kids[i])
					}
				}
			case singleUnwrapper:
				if next := u.Unwrap(); next != nil && seen.mark(next) {
					stack = append(stack, next)
				}
			}
		}
	}
}

// Kinds returns the kind of every traced error in err's graph, outermost
// first. Forwarding wrappers are skipped.
func Kinds(err error) []Kind {
	var out []Kind
	for e := range Chain(err) {
		if te, ok := e.(*Error); ok && te != nil && !te.kind.IsForward() {
			out = append(out, te.kind)
		}
	}
	return out
}

// Root returns the innermost error along the first path of err's graph: the
// fault every wrapper was built around. Root(nil) is nil.
func Root(err error) error {
	var last error
	for e := range Chain(err) {
		last = e
		switch u := e.(type) {
		case multiUnwrapper:
			if len(u.Unwrap()) > 0 {
				continue
			}
		case singleUnwrapper:
			if u.Unwrap() != nil {
				continue
			}
		}
		return e
	}
	return last
}
