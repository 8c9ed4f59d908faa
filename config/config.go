// Package config handles amalgraph.toml engine configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config carries engine-wide defaults.
type Config struct {
	Engine      Engine      `toml:"engine"`
	Constraints Constraints `toml:"constraints"`
	Asset       Asset       `toml:"asset"`

	// Dir is the directory containing the amalgraph.toml file (set at
	// load time).
	Dir string `toml:"-"`
}

// Engine configures the evaluator.
type Engine struct {
	// ThreadPoolSize bounds opcode-level fan-out; 0 disables parallel
	// evaluation entirely.
	ThreadPoolSize int `toml:"thread-pool-size"`

	// GCHighWater is validated but not read by the engine: each Node
	// Manager starts from its own fixed initial watermark.
	GCHighWater int `toml:"gc-high-water"`

	// ContentCachePath names a file for the durable content-addressed
	// cache. It is validated but not read by the engine, which opens no
	// cache from the configuration.
	ContentCachePath string `toml:"content-cache-path"`

	// ContentCacheMaxAgeMinutes bounds how long unused cache entries
	// survive.
	ContentCacheMaxAgeMinutes int `toml:"content-cache-max-age-minutes"`
}

// Constraints sets the default performance-constraint block installed
// for top-level evaluations; zero values mean unconstrained.
type Constraints struct {
	MaxExecutionSteps       int64 `toml:"max-execution-steps"`
	MaxAllocatedNodes       int64 `toml:"max-allocated-nodes"`
	MaxOpcodeDepth          int64 `toml:"max-opcode-depth"`
	MaxContainedEntities    int64 `toml:"max-contained-entities"`
	MaxContainedEntityDepth int64 `toml:"max-contained-entity-depth"`
	MaxEntityIDLength       int64 `toml:"max-entity-id-length"`
}

// Asset configures the persistence layer.
type Asset struct {
	// DefaultExtension is validated but not read by the engine; entity
	// paths without a format are not completed with it.
	DefaultExtension string `toml:"default-extension"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Engine: Engine{
			ThreadPoolSize:            4,
			GCHighWater:               1024,
			ContentCacheMaxAgeMinutes: 60,
		},
		Asset: Asset{DefaultExtension: ".amlg"},
	}
}

// Load parses an amalgraph.toml file from the given directory and
// validates it.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "amalgraph.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find an amalgraph.toml file.
// Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, "amalgraph.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
