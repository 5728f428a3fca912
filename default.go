// default.go - the process-wide pool handle.
//
// The handle is installed at most once. Init installs an explicitly
// configured pool; Default installs one from the environment on first use if
// Init never ran. Both race through a single CAS, so a second install is
// impossible rather than merely detected: the loser gets
// ErrAlreadyInitialized (Init) or the winner's pool (Default).
package ertrace

import (
	"fmt"
	"sync/atomic"
)

type installed struct {
	pool   Pool
	cfg    Config
	tracer *Tracer
}

func install(p Pool, cfg Config) *installed {
	return &installed{pool: p, cfg: cfg, tracer: NewTracer(p, cfg.AutoRelease)}
}

var global atomic.Pointer[installed]

// Init builds the pool described by cfg and installs it as the process-wide
// default. It fails with ErrAlreadyInitialized if a default is already in
// place, including one Default installed lazily.
func Init(cfg Config, opts ...Option) error {
	if global.Load() != nil {
		return ErrAlreadyInitialized
	}
	p, err := cfg.NewPool(opts...)
	if err != nil {
		return err
	}
	if !global.CompareAndSwap(nil, install(p, cfg)) {
		return ErrAlreadyInitialized
	}
	buildOptions(opts).logger.Info("ertrace: default pool installed", cfg.Fields()...)
	return nil
}

// InitArena installs an arena pool of capacity nodes as the default.
func InitArena(capacity int, opts ...Option) error {
	cfg := DefaultConfig()
	cfg.Strategy = StrategyArena
	cfg.ArenaCapacity = capacity
	return Init(cfg, opts...)
}

// MustInit is like Init but panics on error.
func MustInit(cfg Config, opts ...Option) {
	if err := Init(cfg, opts...); err != nil {
		panic(fmt.Errorf("ertrace: init: %w", err))
	}
}

// Default returns the process-wide pool. On first use without Init it
// installs a pool from ERTRACE_* environment variables, falling back to a
// free-list pool when they are invalid.
func Default() Pool {
	return current().pool
}

// DefaultConfigInUse returns the configuration of the installed default.
func DefaultConfigInUse() Config {
	return current().cfg
}

func current() *installed {
	if in := global.Load(); in != nil {
		return in
	}
	cfg, err := LoadConfig()
	if err != nil {
		cfg = DefaultConfig()
	}
	p, err := cfg.NewPool()
	if err != nil {
		cfg = DefaultConfig()
		p = NewFreeListPool()
	}
	global.CompareAndSwap(nil, install(p, cfg))
	return global.Load()
}

// resetDefault clears the installed default. Tests only.
func resetDefault() {
	global.Store(nil)
}
