// Package config loads the ertrace CLI configuration.
//
// Precedence, lowest first: built-in defaults, the config file (TOML or YAML,
// chosen by extension), ERTRACE_* environment variables.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/xgx-io/ertrace"
	"github.com/xgx-io/ertrace/internal/logging"
)

// File is the full CLI configuration.
type File struct {
	Pool   ertrace.Config `toml:"pool" yaml:"pool"`
	Log    logging.Config `toml:"log" yaml:"log"`
	Stress StressConfig   `toml:"stress" yaml:"stress"`
}

// StressConfig sizes the stress command.
type StressConfig struct {
	Workers    int `toml:"workers" yaml:"workers"`
	Iterations int `toml:"iterations" yaml:"iterations"`
	Depth      int `toml:"depth" yaml:"depth"`
}

// envOverlay mirrors the settable environment. Pointer fields stay nil when
// the variable is unset, so only explicit settings override the file.
//
// Pool is a plain string: envconfig would call UnmarshalText on a nil
// *ertrace.Strategy before allocating it.
type envOverlay struct {
	Pool          *string `envconfig:"POOL"`
	ArenaCapacity *int    `envconfig:"ARENA_CAPACITY"`
	AutoRelease   *bool   `envconfig:"AUTO_RELEASE"`
	LogLevel      *string `envconfig:"LOG_LEVEL"`
	LogDev        *bool   `envconfig:"LOG_DEV"`
	Workers       *int    `envconfig:"STRESS_WORKERS"`
	Iterations    *int    `envconfig:"STRESS_ITERATIONS"`
	Depth         *int    `envconfig:"STRESS_DEPTH"`
}

// Default returns the built-in configuration.
func Default() File {
	return File{
		Pool: ertrace.DefaultConfig(),
		Log:  logging.DefaultConfig(),
		Stress: StressConfig{
			Workers:    8,
			Iterations: 10000,
			Depth:      5,
		},
	}
}

// Load builds the configuration from defaults, the optional file at path,
// and the environment.
func Load(path string) (File, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return File{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return File{}, err
	}
	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// Validate checks the pool and stress settings.
func (f File) Validate() error {
	if err := f.Pool.Validate(); err != nil {
		return err
	}
	if f.Stress.Workers <= 0 || f.Stress.Iterations <= 0 || f.Stress.Depth <= 0 {
		return fmt.Errorf("config: stress workers, iterations and depth must be positive (got %d, %d, %d)",
			f.Stress.Workers, f.Stress.Iterations, f.Stress.Depth)
	}
	if _, err := logging.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	return nil
}

// EncodeTOML renders f as TOML.
func (f File) EncodeTOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(f); err != nil {
		return "", fmt.Errorf("config: encode: %w", err)
	}
	return buf.String(), nil
}

func decodeFile(path string, cfg *File) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("config: parse %q: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %q: %w", path, err)
		}
	default:
		return fmt.Errorf("config: unsupported file type %q (expected .toml, .yaml or .yml)", ext)
	}
	return nil
}

func applyEnv(cfg *File) error {
	var env envOverlay
	if err := envconfig.Process(ertrace.EnvPrefix, &env); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	if env.Pool != nil {
		s, err := ertrace.ParseStrategy(*env.Pool)
		if err != nil {
			return fmt.Errorf("config: environment: %s_POOL: %w", ertrace.EnvPrefix, err)
		}
		cfg.Pool.Strategy = s
	}
	if env.ArenaCapacity != nil {
		cfg.Pool.ArenaCapacity = *env.ArenaCapacity
	}
	if env.AutoRelease != nil {
		cfg.Pool.AutoRelease = *env.AutoRelease
	}
	if env.LogLevel != nil {
		cfg.Log.Level = *env.LogLevel
	}
	if env.LogDev != nil {
		cfg.Log.Development = *env.LogDev
	}
	if env.Workers != nil {
		cfg.Stress.Workers = *env.Workers
	}
	if env.Iterations != nil {
		cfg.Stress.Iterations = *env.Iterations
	}
	if env.Depth != nil {
		cfg.Stress.Depth = *env.Depth
	}
	return nil
}
