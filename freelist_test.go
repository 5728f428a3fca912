// freelist_test.go - reclaiming pool: conservation, recycling and the
// concurrent no-aliasing property.
package ertrace

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

var testLoc = NewLocation("Test", "pool_test.go", 1, 1, "ertrace/test")

func checkConservation(t *testing.T, p *FreeListPool) {
	t.Helper()
	s := p.Stats()
	free := uint64(p.FreeLen())
	if free+s.Live() != s.Allocated {
		t.Fatalf("free(%d) + live(%d) != allocated(%d)", free, s.Live(), s.Allocated)
	}
	if s.Free() != free {
		t.Fatalf("Stats.Free()=%d, walked free list=%d", s.Free(), free)
	}
}

func TestFreeList_Conservation(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	checkConservation(t, p)

	var traces []*Trace
	for i := range 10 {
		tr := NewTrace(p, testLoc)
		for range i {
			tr.Extend(testLoc)
		}
		traces = append(traces, tr)
		checkConservation(t, p)
	}
	for i, tr := range traces {
		if i%2 == 0 {
			tr.Release()
			checkConservation(t, p)
		}
	}
	for _, tr := range traces {
		tr.Release()
	}
	checkConservation(t, p)
	if s := p.Stats(); s.Live() != 0 || s.Allocated != 55 {
		t.Fatalf("after full release: live=%d allocated=%d, want 0 and 55", s.Live(), s.Allocated)
	}
}

func TestFreeList_ReleaseThenAcquireRecycles(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	refs := make([]Ref, 5)
	for i := range refs {
		refs[i] = p.Acquire(testLoc)
	}
	for _, r := range refs {
		p.Release(r, r, 1)
	}
	before := p.Stats().Allocated

	for range 5 {
		p.Acquire(testLoc)
	}
	s := p.Stats()
	if s.Allocated != before {
		t.Fatalf("allocated grew from %d to %d; released nodes were not reused", before, s.Allocated)
	}
	if s.Recycled != 5 {
		t.Fatalf("recycled=%d want 5", s.Recycled)
	}
}

func TestFreeList_ReleaseChainThenAcquireRecycles(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	tr := NewTrace(p, testLoc)
	for range 4 {
		tr.Extend(testLoc)
	}
	if tr.Len() != 5 {
		t.Fatalf("chain length=%d", tr.Len())
	}
	tr.Release()
	before := p.Stats().Allocated

	for range 5 {
		p.Acquire(testLoc)
	}
	s := p.Stats()
	if s.Allocated != before {
		t.Fatalf("allocated grew from %d to %d after releasing a 5-node chain", before, s.Allocated)
	}
	if s.Recycled != 5 {
		t.Fatalf("recycled=%d want 5", s.Recycled)
	}
	checkConservation(t, p)
}

func TestFreeList_ReleaseSplicesWholeChain(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	tr := NewTrace(p, testLoc)
	for range 7 {
		tr.Extend(testLoc)
	}
	other := NewTrace(p, testLoc)
	other.Release()
	if got := p.FreeLen(); got != 1 {
		t.Fatalf("free list length=%d want 1", got)
	}
	tr.Release()
	if got := p.FreeLen(); got != 9 {
		t.Fatalf("free list length=%d want 9", got)
	}
	// The chain is pushed as one run: its head is now the top of the list.
	_, top := unpackHead(p.head.Load())
	if top != Ref(1) {
		t.Fatalf("top=%d want the released chain's head (1)", top)
	}
}

func TestFreeList_AcquireResetsLink(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	tr := NewTrace(p, testLoc)
	tr.Extend(testLoc)
	tr.Release()

	r := p.Acquire(testLoc)
	if next := p.node(r).next.Load(); next != 0 {
		t.Fatalf("recycled node kept next=%d", next)
	}
}

func TestFreeList_ReleaseZeroIsNoop(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	p.Release(0, 0, 3)
	if s := p.Stats(); s.Released != 0 || p.FreeLen() != 0 {
		t.Fatalf("released=%d free=%d", s.Released, p.FreeLen())
	}
}

func TestFreeList_Exhausted(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	p.mem.top.Store(maxSlabNodes)

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrPoolExhausted) {
			t.Fatalf("recover()=%v, want ErrPoolExhausted", r)
		}
		if got := p.mem.top.Load(); got != maxSlabNodes+1 {
			t.Fatalf("top=%d, want pinned at %d", got, maxSlabNodes+1)
		}
	}()
	p.Acquire(testLoc)
}

func TestFreeList_GrowsSegments(t *testing.T) {
	t.Parallel()
	p := NewFreeListPool()
	n := segmentSize + 10
	for range n {
		p.Acquire(testLoc)
	}
	if got := p.Stats().Allocated; got != uint64(n) {
		t.Fatalf("allocated=%d want %d", got, n)
	}
	if p.mem.segs[1].Load() == nil {
		t.Fatal("second segment not installed")
	}
}

func TestFreeList_Logging(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zapcore.DebugLevel)
	p := NewFreeListPool(WithLogger(zap.New(core)))

	for range segmentSize {
		p.Acquire(testLoc)
	}
	if n := logs.FilterMessage("ertrace: node pool created").Len(); n != 1 {
		t.Fatalf("creation logged %d times", n)
	}
	// Index 0 is the sentinel, so the segmentSize-th acquire lands in segment 1.
	if n := logs.FilterMessage("ertrace: node pool grew").Len(); n != 2 {
		t.Fatalf("growth logged %d times, want 2", n)
	}
}

// TestFreeList_ConcurrentNoAliasing builds, verifies and releases chains from
// many goroutines. A node handed to two live traces shows up as a foreign
// location in one of them.
func TestFreeList_ConcurrentNoAliasing(t *testing.T) {
	t.Parallel()
	const (
		workers    = 16
		iterations = 2000
		depth      = 6
	)
	p := NewFreeListPool()

	var g errgroup.Group
	for w := range workers {
		locs := make([]*Location, depth)
		for d := range locs {
			locs[d] = NewLocation(fmt.Sprintf("W%dD%d", w, d), "stress.go", d, w, "ertrace/test")
		}
		g.Go(func() error {
			for i := range iterations {
				tr := NewTrace(p, locs[0])
				for _, loc := range locs[1:] {
					tr.Extend(loc)
				}
				got := tr.Locations()
				if len(got) != depth {
					return fmt.Errorf("worker %d iter %d: len=%d", w, i, len(got))
				}
				for d, loc := range got {
					if loc != locs[d] {
						return fmt.Errorf("worker %d iter %d: event %d is %v", w, i, d, loc)
					}
				}
				tr.Release()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	s := p.Stats()
	if s.Live() != 0 {
		t.Fatalf("live=%d after all releases", s.Live())
	}
	if s.Acquired != workers*iterations*depth {
		t.Fatalf("acquired=%d", s.Acquired)
	}
	if s.Allocated > workers*depth*4 {
		t.Fatalf("allocated=%d; recycling is not keeping up", s.Allocated)
	}
	checkConservation(t, p)
}

func TestPackHead_RoundTrip(t *testing.T) {
	t.Parallel()
	gen, r := unpackHead(packHead(0xdeadbeef, 42))
	if gen != 0xdeadbeef || r != 42 {
		t.Fatalf("gen=%x r=%d", gen, r)
	}
}
