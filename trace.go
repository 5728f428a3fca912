// trace.go - the error return trace chain.
//
// A Trace is a forward-linked run of pool nodes, head (origin) to tail
// (newest). It tracks the tail directly so Extend is O(1), and it records its
// length so traversal terminates even if an arena overwrote a link.
//
// Ownership: a Trace owns its nodes until Release, or until FromCause moves
// them into a new Trace. head and tail live in one atomic word so a release
// racing with a move (e.g. a GC cleanup of the old owner) sees either the
// full span or nothing.
package ertrace

import (
	"fmt"
	"iter"
	"strings"
	"sync/atomic"
)

// Trace is the ordered record of an error's propagation path.
//
// A Trace is owned by one logical flow of control; Extend and FromCause must
// not be called concurrently on the same Trace.
type Trace struct {
	pool Pool
	span atomic.Uint64 // head<<32 | tail; 0 once released or moved
	n    atomic.Int64
}

func packSpan(head, tail Ref) uint64 { return uint64(head)<<32 | uint64(tail) }

func unpackSpan(w uint64) (head, tail Ref) { return Ref(uint32(w >> 32)), Ref(uint32(w)) }

// NewTrace starts a trace whose only event is loc.
func NewTrace(p Pool, loc *Location) *Trace {
	r := p.Acquire(loc)
	t := &Trace{pool: p}
	t.span.Store(packSpan(r, r))
	t.n.Store(1)
	return t
}

// Extend appends loc as the newest event. It panics if the trace was
// released or moved.
func (t *Trace) Extend(loc *Location) {
	head, tail := unpackSpan(t.span.Load())
	if head.IsZero() {
		panic("ertrace: extend of a released trace")
	}
	r := t.pool.Acquire(loc)
	t.pool.node(tail).next.Store(uint32(r))
	t.span.Store(packSpan(head, r))
	t.n.Add(1)
}

// FromCause takes ownership of cause's events and appends loc. cause is left
// empty. A nil or empty cause yields a fresh trace in the default pool.
func FromCause(cause *Trace, loc *Location) *Trace {
	if cause == nil {
		return NewTrace(Default(), loc)
	}
	t := cause.take()
	if t == nil {
		return NewTrace(cause.pool, loc)
	}
	t.Extend(loc)
	return t
}

// take moves the span into a new Trace and empties t. It returns nil if t
// holds nothing.
func (t *Trace) take() *Trace {
	w := t.span.Swap(0)
	if w == 0 {
		return nil
	}
	moved := &Trace{pool: t.pool}
	moved.span.Store(w)
	moved.n.Store(t.n.Swap(0))
	return moved
}

// Release hands every node back to the pool in one operation. Releasing an
// empty or already released trace does nothing.
func (t *Trace) Release() {
	if t == nil {
		return
	}
	w := t.span.Swap(0)
	if w == 0 {
		return
	}
	head, tail := unpackSpan(w)
	t.pool.Release(head, tail, int(t.n.Swap(0)))
}

// Released reports whether the trace no longer owns any nodes.
func (t *Trace) Released() bool { return t == nil || t.span.Load() == 0 }

// Len returns the number of recorded events.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return int(t.n.Load())
}

// Pool returns the pool the trace allocates from.
func (t *Trace) Pool() Pool { return t.pool }

// Head returns the node of the originating event.
func (t *Trace) Head() Ref {
	head, _ := unpackSpan(t.span.Load())
	return head
}

// Tail returns the node of the newest event.
func (t *Trace) Tail() Ref {
	_, tail := unpackSpan(t.span.Load())
	return tail
}

// All yields (index, location) pairs oldest first. Each call restarts from
// the head; iteration never mutates the trace.
func (t *Trace) All() iter.Seq2[int, *Location] {
	return func(yield func(int, *Location) bool) {
		if t == nil {
			return
		}
		head, tail := unpackSpan(t.span.Load())
		n := int(t.n.Load())
		r := head
		for i := 0; i < n && !r.IsZero(); i++ {
			nd := t.pool.node(r)
			if !yield(i, nd.loc.Load()) {
				return
			}
			if r == tail {
				return
			}
			r = Ref(nd.next.Load())
		}
	}
}

// Locations returns the recorded locations oldest first.
func (t *Trace) Locations() []*Location {
	out := make([]*Location, 0, t.Len())
	for _, loc := range t.All() {
		out = append(out, loc)
	}
	return out
}

// String renders the trace as Render does.
func (t *Trace) String() string {
	var sb strings.Builder
	_ = Render(&sb, t)
	return sb.String()
}

// Format implements fmt.Formatter.
//
//	%v, %s  rendered block (see Render)
//	%+v     same as %v
//	%d      number of events
//	%q      quoted rendered block
func (t *Trace) Format(s fmt.State, verb rune) {
	switch verb {
	case 'd':
		_, _ = fmt.Fprintf(s, "%d", t.Len())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", t.String())
	default:
		_ = Render(s, t)
	}
}

var (
	_ fmt.Stringer  = (*Trace)(nil)
	_ fmt.Formatter = (*Trace)(nil)
)
