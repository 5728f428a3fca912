// arena.go - non-reclaiming ring-buffer node pool.
//
// Allocation is one atomic add on a wrapping counter masked by capacity-1.
// Capacity must be a power of two so the mask stays in bounds across counter
// overflow. Nothing is reclaimed: once the ring wraps, the oldest slot is
// overwritten in place even if a trace still references it. Traces bound
// their traversal by length, so an overwritten link can garble a rendering
// but never loop it.
package ertrace

import (
	"fmt"
	"math/bits"
	"sync/atomic"

	"fortio.org/safecast"
	"go.uber.org/zap"
)

// MaxArenaCapacity is the largest ring an ArenaPool accepts. It keeps every
// Ref (slot+1) inside 32 bits and the capacity inside a 32-bit int.
const MaxArenaCapacity = 1 << 30

// ArenaPool is the bounded-memory Pool strategy.
type ArenaPool struct {
	nodes   []node
	mask    uint64
	counter atomic.Uint64 // slots handed out, wraps at 2^64

	released atomic.Uint64
}

var _ Pool = (*ArenaPool)(nil)

// NewArenaPool allocates a ring of capacity nodes. capacity must be a
// positive power of two no larger than MaxArenaCapacity.
func NewArenaPool(capacity int, opts ...Option) (*ArenaPool, error) {
	if !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("%w: got %d", ErrCapacityNotPowerOfTwo, capacity)
	}
	if capacity > MaxArenaCapacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrCapacityTooLarge, capacity, MaxArenaCapacity)
	}
	mask, err := safecast.Conv[uint64](capacity - 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapacityTooLarge, err)
	}

	o := buildOptions(opts)
	p := &ArenaPool{
		nodes: make([]node, capacity),
		mask:  mask,
	}
	o.logger.Info("ertrace: node pool created",
		zap.Stringer("strategy", StrategyArena),
		zap.Int("capacity", capacity),
		zap.Int("capacity_log2", bits.TrailingZeros64(mask+1)),
	)
	return p, nil
}

// MustArenaPool is like NewArenaPool but panics on misconfiguration.
func MustArenaPool(capacity int, opts ...Option) *ArenaPool {
	p, err := NewArenaPool(capacity, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Capacity returns the number of slots in the ring.
func (p *ArenaPool) Capacity() int { return len(p.nodes) }

// Acquire claims the next slot of the ring, overwriting whatever it held.
// It is wait-free and never fails.
func (p *ArenaPool) Acquire(loc *Location) Ref {
	slot := (p.counter.Add(1) - 1) & p.mask
	p.nodes[slot].reset(loc)
	return Ref(slot + 1)
}

// Release only counts the nodes; arena slots are reused by wrapping.
func (p *ArenaPool) Release(head, tail Ref, n int) {
	if head.IsZero() || n <= 0 {
		return
	}
	p.released.Add(uint64(n))
}

// Strategy returns StrategyArena.
func (p *ArenaPool) Strategy() Strategy { return StrategyArena }

// Stats returns a snapshot of the pool counters.
func (p *ArenaPool) Stats() Stats {
	released := p.released.Load()
	handed := p.counter.Load()
	capacity := p.mask + 1
	return Stats{
		Strategy:  StrategyArena,
		Acquired:  handed,
		Released:  released,
		Allocated: capacity,
		Wraps:     handed / capacity,
	}
}

// Slot returns the ring offset of r, in [0, Capacity).
func (p *ArenaPool) Slot(r Ref) int { return int(r) - 1 }

func (p *ArenaPool) node(r Ref) *node { return &p.nodes[uint32(r)-1] }
