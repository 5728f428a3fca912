package ertrace

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of every environment variable Config reads.
const EnvPrefix = "ERTRACE"

// DefaultArenaCapacity is the ring size used when none is configured.
const DefaultArenaCapacity = 4096

// Config selects and sizes the process-wide pool.
type Config struct {
	// Strategy is freelist (default) or arena.
	Strategy Strategy `envconfig:"POOL" default:"freelist" toml:"strategy" yaml:"strategy"`
	// ArenaCapacity is the ring size in nodes; it must be a power of two.
	ArenaCapacity int `envconfig:"ARENA_CAPACITY" default:"4096" toml:"arena_capacity" yaml:"arena_capacity"`
	// AutoRelease returns a traced error's nodes to the pool once the error
	// becomes unreachable.
	AutoRelease bool `envconfig:"AUTO_RELEASE" default:"true" toml:"auto_release" yaml:"auto_release"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Strategy:      StrategyFreeList,
		ArenaCapacity: DefaultArenaCapacity,
		AutoRelease:   true,
	}
}

// LoadConfig reads Config from ERTRACE_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("ertrace: load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration misuse.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFreeList:
		return nil
	case StrategyArena:
		if !isPowerOfTwo(c.ArenaCapacity) {
			return fmt.Errorf("%w: got %d", ErrCapacityNotPowerOfTwo, c.ArenaCapacity)
		}
		if c.ArenaCapacity > MaxArenaCapacity {
			return fmt.Errorf("%w: %d > %d", ErrCapacityTooLarge, c.ArenaCapacity, MaxArenaCapacity)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownStrategy, c.Strategy)
	}
}

// NewPool builds the pool c describes.
func (c Config) NewPool(opts ...Option) (Pool, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Strategy == StrategyArena {
		return NewArenaPool(c.ArenaCapacity, opts...)
	}
	return NewFreeListPool(opts...), nil
}

// Fields returns c as zap fields for structured logging.
func (c Config) Fields() []zap.Field {
	return []zap.Field{
		zap.Stringer("strategy", c.Strategy),
		zap.Int("arena_capacity", c.ArenaCapacity),
		zap.Bool("auto_release", c.AutoRelease),
	}
}
