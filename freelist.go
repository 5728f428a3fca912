// freelist.go - reclaiming node pool over a lock-free free list.
//
// The free list is a Treiber stack of node indices. Its head word packs a
// generation tag with the top index:
//
//	head = generation<<32 | Ref
//
// Every successful push or pop bumps the generation, so a CAS that raced
// with a pop/push/pop of the same node fails instead of installing a stale
// link (the classic ABA hazard of untagged free lists).
//
// Release splices an entire chain in one CAS: the chain tail donates the
// current free list as its own next link, then the head word is swung to the
// chain head. Destroying a trace of any length costs one CAS loop.
package ertrace

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// FreeListPool is the reclaiming Pool strategy. The zero value is not
// usable; construct with NewFreeListPool.
type FreeListPool struct {
	head atomic.Uint64
	mem  slab

	acquired atomic.Uint64
	released atomic.Uint64
	recycled atomic.Uint64

	log *zap.Logger
}

var _ Pool = (*FreeListPool)(nil)

// NewFreeListPool creates an empty pool. Nodes are created on demand and
// recycled once released.
func NewFreeListPool(opts ...Option) *FreeListPool {
	o := buildOptions(opts)
	p := &FreeListPool{log: o.logger}
	p.log.Info("ertrace: node pool created",
		zap.Stringer("strategy", StrategyFreeList),
		zap.Int("max_nodes", maxSlabNodes),
	)
	return p
}

func packHead(gen uint32, r Ref) uint64 { return uint64(gen)<<32 | uint64(r) }

func unpackHead(w uint64) (gen uint32, r Ref) { return uint32(w >> 32), Ref(uint32(w)) }

// Acquire pops a node off the free list, or creates a fresh one when the
// list is empty. It panics with ErrPoolExhausted when no node can be created.
func (p *FreeListPool) Acquire(loc *Location) Ref {
	r, ok := p.pop()
	if ok {
		p.recycled.Add(1)
	} else {
		r = p.fresh()
	}
	n := p.mem.at(r)
	n.reset(loc)
	p.acquired.Add(1)
	return r
}

// pop removes the top of the free list. It reports false when the list is
// empty.
func (p *FreeListPool) pop() (Ref, bool) {
	for {
		old := p.head.Load()
		gen, top := unpackHead(old)
		if top.IsZero() {
			return 0, false
		}
		// top may be popped and relinked by another goroutine between the
		// load above and the CAS below; the generation tag rejects that case.
		next := Ref(p.mem.at(top).next.Load())
		if p.head.CompareAndSwap(old, packHead(gen+1, next)) {
			p.mem.at(top).next.Store(0)
			return top, true
		}
	}
}

// fresh reserves a never-used node slot.
func (p *FreeListPool) fresh() Ref {
	r, newSeg, ok := p.mem.grow()
	if !ok {
		p.log.Error("ertrace: node pool exhausted", zap.Int("max_nodes", maxSlabNodes))
		panic(fmt.Errorf("%w: %d nodes in use", ErrPoolExhausted, maxSlabNodes))
	}
	if newSeg && p.log.Core().Enabled(zap.DebugLevel) {
		p.log.Debug("ertrace: node pool grew",
			zap.Uint32("segment", uint32(r)>>segmentShift),
			zap.Uint64("allocated", p.mem.allocated()),
		)
	}
	return r
}

// Release pushes the chain head..tail onto the free list with one CAS loop.
// n is the chain length and only feeds the statistics.
func (p *FreeListPool) Release(head, tail Ref, n int) {
	if head.IsZero() || tail.IsZero() {
		return
	}
	last := p.mem.at(tail)
	for {
		old := p.head.Load()
		gen, top := unpackHead(old)
		// The link must be visible before the CAS publishes head.
		last.next.Store(uint32(top))
		if p.head.CompareAndSwap(old, packHead(gen+1, head)) {
			break
		}
	}
	if n > 0 {
		p.released.Add(uint64(n))
	}
}

// Strategy returns StrategyFreeList.
func (p *FreeListPool) Strategy() Strategy { return StrategyFreeList }

// Stats returns a snapshot of the pool counters.
func (p *FreeListPool) Stats() Stats {
	// Released before Acquired keeps Live from underflowing under contention.
	released := p.released.Load()
	recycled := p.recycled.Load()
	acquired := p.acquired.Load()
	return Stats{
		Strategy:  StrategyFreeList,
		Acquired:  acquired,
		Released:  released,
		Allocated: p.mem.allocated(),
		Recycled:  recycled,
	}
}

// FreeLen walks the free list and counts its nodes. It is O(n) and only
// meaningful while no other goroutine uses the pool.
func (p *FreeListPool) FreeLen() int {
	_, r := unpackHead(p.head.Load())
	count := 0
	limit := p.mem.allocated()
	for !r.IsZero() && uint64(count) <= limit {
		count++
		r = Ref(p.mem.at(r).next.Load())
	}
	return count
}

func (p *FreeListPool) node(r Ref) *node { return p.mem.at(r) }
