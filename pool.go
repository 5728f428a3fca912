// pool.go - node pool contract shared by the free-list and arena strategies.
//
// Nodes are addressed by Ref (slot index + 1) rather than by pointer. A Ref of
// zero is the "no node" sentinel and terminates every cause chain.
//
// A node is either free (free-list pools only) or owned by exactly one Trace.
// Trace is the owning token: it acquires nodes on create/extend and hands the
// whole range back with a single Release.
package ertrace

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// Ref identifies a node inside a Pool. The zero Ref means "none".
type Ref uint32

// IsZero reports whether r is the sentinel.
func (r Ref) IsZero() bool { return r == 0 }

// Pool allocates trace nodes. Implementations are safe for concurrent use.
//
// The interface is sealed: only the pools in this package implement it,
// because Trace reads and links nodes through the unexported methods.
type Pool interface {
	// Acquire returns a node holding loc with an empty cause link.
	Acquire(loc *Location) Ref
	// Release hands the chain head..tail (n nodes) back to the pool in O(1).
	// The caller must not touch any of those nodes afterwards.
	Release(head, tail Ref, n int)
	// Strategy reports which allocation strategy backs the pool.
	Strategy() Strategy
	// Stats returns a point-in-time snapshot of the pool counters.
	Stats() Stats

	node(r Ref) *node
}

// node is the pooled storage unit. Both fields are accessed atomically: the
// arena may overwrite a node that a stale trace is still reading.
type node struct {
	loc  atomic.Pointer[Location]
	next atomic.Uint32 // Ref of the next-newer node; 0 at the tail
}

func (n *node) reset(loc *Location) {
	n.next.Store(0)
	n.loc.Store(loc)
}

// Strategy selects a node allocation strategy.
type Strategy uint8

const (
	// StrategyFreeList reclaims released chains onto a lock-free free list.
	StrategyFreeList Strategy = iota + 1
	// StrategyArena hands out slots of a fixed ring and never reclaims.
	StrategyArena
)

// String returns the config spelling of s.
func (s Strategy) String() string {
	switch s {
	case StrategyFreeList:
		return "freelist"
	case StrategyArena:
		return "arena"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "freelist", "free-list", "free_list", "":
		return StrategyFreeList, nil
	case "arena", "ring":
		return StrategyArena, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected: freelist|arena)", ErrUnknownStrategy, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s != StrategyFreeList && s != StrategyArena {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which envconfig and the
// TOML/YAML decoders all honour.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Stats is a snapshot of pool counters. Counters are monotonic except Live.
type Stats struct {
	Strategy  Strategy
	Acquired  uint64 // nodes handed out by Acquire
	Released  uint64 // nodes handed back by Release
	Allocated uint64 // fresh node slots created (free list) or ring capacity (arena)
	Recycled  uint64 // acquisitions served from the free list
	Wraps     uint64 // completed trips around the ring (arena only)
}

// Live is the number of nodes currently owned by traces.
func (s Stats) Live() uint64 { return s.Acquired - s.Released }

// Free is the number of nodes available without fresh allocation. For the
// arena every slot is always available, so Free equals Allocated.
func (s Stats) Free() uint64 {
	if s.Strategy == StrategyArena {
		return s.Allocated
	}
	return s.Allocated - s.Live()
}

// Sentinel errors.
var (
	ErrCapacityNotPowerOfTwo = errors.New("ertrace: arena capacity must be a positive power of two")
	ErrCapacityTooLarge      = errors.New("ertrace: arena capacity too large")
	ErrAlreadyInitialized    = errors.New("ertrace: default pool already initialized")
	ErrUnknownStrategy       = errors.New("ertrace: unknown pool strategy")
	ErrPoolExhausted         = errors.New("ertrace: node pool exhausted")
)

// Option configures a pool at construction.
type Option func(*poolOptions)

type poolOptions struct {
	logger *zap.Logger
}

// WithLogger makes the pool log lifecycle events (construction, growth,
// exhaustion) to l. Acquire and Release never log on their fast paths.
func WithLogger(l *zap.Logger) Option {
	return func(o *poolOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) poolOptions {
	o := poolOptions{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
