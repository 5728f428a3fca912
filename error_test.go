// error_test.go - traced errors: construction, re-tagging, forwarding and
// interop with the errors package.
package ertrace

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

// newTestTracer returns a tracer with explicit release so tests never depend
// on garbage collection timing.
func newTestTracer() (*Tracer, *FreeListPool) {
	p := NewFreeListPool()
	return NewTracer(p, false), p
}

func tags(t *Trace) []string {
	var out []string
	for _, loc := range t.All() {
		out = append(out, loc.Tag)
	}
	return out
}

func TestNew_RecordsCaller(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	err := tr.New("NotFound")
	_, file, line, _ := runtime.Caller(0)
	defer err.Release()

	locs := err.Trace().Locations()
	if len(locs) != 1 {
		t.Fatalf("events=%d", len(locs))
	}
	if locs[0].Tag != "NotFound" || locs[0].File != file || locs[0].Line != line-1 {
		t.Fatalf("location=%v", locs[0])
	}
	if err.Kind() != "NotFound" || err.Error() != "NotFound" {
		t.Fatalf("kind=%q error=%q", err.Kind(), err.Error())
	}
}

func TestNew_EmptyKind(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	err := tr.Newf("", "disk %d failed", 3)
	defer err.Release()
	if err.Kind() != KindError || err.Error() != "Error: disk 3 failed" {
		t.Fatalf("kind=%q error=%q", err.Kind(), err.Error())
	}
	if err.Message() != "disk 3 failed" {
		t.Fatalf("message=%q", err.Message())
	}
}

func readLayer(tr *Tracer) error  { return tr.New("Read") }
func parseLayer(tr *Tracer) error { return tr.Wrap(readLayer(tr), "Parse") }
func loadLayer(tr *Tracer) error  { return tr.Wrapf(parseLayer(tr), "Load", "file %s", "a.toml") }

func TestWrap_TakesOverTrace(t *testing.T) {
	t.Parallel()
	tr, p := newTestTracer()
	err := loadLayer(tr)
	te := err.(*Error)
	defer te.Release()

	if got := strings.Join(tags(te.Trace()), ","); got != "Read,Parse,Load" {
		t.Fatalf("tags=%s", got)
	}
	if err.Error() != "Load: file a.toml: Parse: Read" {
		t.Fatalf("Error()=%q", err.Error())
	}

	// Inner errors no longer own nodes.
	inner := errors.Unwrap(err).(*Error)
	if !inner.Trace().Released() {
		t.Fatal("inner error still owns its trace")
	}
	if s := p.Stats(); s.Live() != 3 {
		t.Fatalf("live=%d want 3", s.Live())
	}
	te.Release()
	if s := p.Stats(); s.Live() != 0 {
		t.Fatalf("live=%d after release", s.Live())
	}
}

func TestWrap_Nil(t *testing.T) {
	t.Parallel()
	tr, p := newTestTracer()
	if err := tr.Wrap(nil, "X"); err != nil {
		t.Fatalf("Wrap(nil)=%v", err)
	}
	if err := tr.Wrapf(nil, "X", "m"); err != nil {
		t.Fatalf("Wrapf(nil)=%v", err)
	}
	if err := tr.Forward(nil); err != nil {
		t.Fatalf("Forward(nil)=%v", err)
	}
	if p.Stats().Acquired != 0 {
		t.Fatal("nil wrap acquired nodes")
	}
}

func TestWrap_PlainErrorStartsTrace(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	err := tr.Wrap(fs.ErrNotExist, "OpenConfig")
	defer err.(*Error).Release()

	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("errors.Is lost the cause")
	}
	if got := tags(TraceOf(err)); len(got) != 1 || got[0] != "OpenConfig" {
		t.Fatalf("tags=%v", got)
	}
}

func TestForward_AppendsMarker(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	origin := tr.New("Timeout")
	defer origin.Release()

	err := tr.Forward(origin)
	if err != error(origin) {
		t.Fatalf("Forward returned a new error %T", err)
	}
	err = tr.Forward(err)
	if got := strings.Join(tags(origin.Trace()), ","); got != "Timeout,=>,=>" {
		t.Fatalf("tags=%s", got)
	}
	if KindOf(err) != "Timeout" {
		t.Fatalf("kind changed to %q", KindOf(err))
	}
}

func TestForward_PlainError(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	plain := errors.New("boom")
	err := tr.Forward(plain)
	defer err.(*Error).Release()

	if KindOf(err) != KindForward || !KindForward.IsForward() {
		t.Fatalf("kind=%q", KindOf(err))
	}
	if !errors.Is(err, plain) {
		t.Fatal("cause lost")
	}
	if err.Error() != "=>: boom" {
		t.Fatalf("Error()=%q", err.Error())
	}
}

func TestTraceOf_ThroughStdlibWrapping(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	origin := tr.New("Denied")
	defer origin.Release()

	wrapped := fmt.Errorf("handler: %w", origin)
	joined := errors.Join(errors.New("other"), wrapped)

	if TraceOf(joined) != origin.Trace() {
		t.Fatal("TraceOf did not find the traced error")
	}
	if !HasKind(joined, "Denied") || HasKind(joined, "Allowed") {
		t.Fatal("HasKind mismatch")
	}
	if KindOf(wrapped) != "Denied" {
		t.Fatalf("KindOf=%q", KindOf(wrapped))
	}

	// Wrapping through the stdlib layer still moves the trace.
	outer := tr.Wrap(wrapped, "Request")
	defer outer.(*Error).Release()
	if got := strings.Join(tags(TraceOf(outer)), ","); got != "Denied,Request" {
		t.Fatalf("tags=%s", got)
	}
	if TraceOf(wrapped) != nil {
		t.Fatal("inner chain still reports a live trace")
	}
}

func TestPredicates_NoTrace(t *testing.T) {
	t.Parallel()
	plain := errors.New("x")
	if KindOf(plain) != "" || HasKind(plain, "x") || TraceOf(plain) != nil {
		t.Fatal("plain error matched a traced predicate")
	}
	if KindOf(nil) != "" || HasKind(nil, KindError) || TraceOf(nil) != nil {
		t.Fatal("nil matched a traced predicate")
	}
}

func TestHasKind_InnerKinds(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	err := parseLayer(tr)
	defer err.(*Error).Release()
	if !HasKind(err, "Read") || !HasKind(err, "Parse") {
		t.Fatal("HasKind must see every kind in the chain")
	}
}

func TestError_Format(t *testing.T) {
	t.Parallel()
	tr, _ := newTestTracer()
	err := tr.Wrap(readLayer(tr), "Parse")
	defer err.(*Error).Release()

	if got := fmt.Sprintf("%v", err); got != "Parse: Read" {
		t.Fatalf("%%v=%q", got)
	}
	if got := fmt.Sprintf("%q", err); got != `"Parse: Read"` {
		t.Fatalf("%%q=%s", got)
	}
	plus := fmt.Sprintf("%+v", err)
	if !strings.HasPrefix(plus, "Parse: Read\n"+Header+"\n0: Read at ") {
		t.Fatalf("%%+v=%q", plus)
	}
	if !strings.Contains(plus, "\n1: Parse at ") {
		t.Fatalf("%%+v=%q", plus)
	}
}

func TestError_NilSafety(t *testing.T) {
	t.Parallel()
	var e *Error
	if e.Trace() != nil {
		t.Fatal("nil error has a trace")
	}
	e.Release()
}

func TestPackageLevel_UsesDefault(t *testing.T) {
	t.Parallel()
	err := Newf("Pkg", "level %d", 1)
	defer err.Release()
	if err.Trace().Pool() != Default() {
		t.Fatal("package-level New ignored the default pool")
	}
	wrapped := Wrapf(err, "Outer", "x")
	defer wrapped.(*Error).Release()
	fwd := Forward(Wrap(wrapped, "Top"))
	defer fwd.(*Error).Release()
	if got := strings.Join(tags(TraceOf(fwd)), ","); got != "Pkg,Outer,Top,=>" {
		t.Fatalf("tags=%s", got)
	}
	if New("Bare").Error() != "Bare" {
		t.Fatal("New")
	}
}
