// Package config holds the engine configuration: package-level defaults and
// the optional tyunify.yaml file.
//
// A minimal file:
//
//	max_iterations: 100
//	parallelism: 4
//	lattice:
//	  unsigned_to_signed: true
//	signatures:
//	  files: [stdlib.yaml]
//	  database: typeshed.db
//	  target_version: 1.4.0
package config

import (
	"fmt"
	"os"
	"path/filepath"

	semver "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level tyunify.yaml configuration.
type Config struct {
	// MaxIterations is the fixpoint ceiling. Zero means DefaultMaxIterations.
	MaxIterations int `yaml:"max_iterations,omitempty"`

	// Parallelism is how many functions the extractor walks concurrently.
	// Zero means DefaultParallelism.
	Parallelism int `yaml:"parallelism,omitempty"`

	Lattice LatticeConfig `yaml:"lattice,omitempty"`

	Signatures SignaturesConfig `yaml:"signatures,omitempty"`
}

// LatticeConfig toggles the optional edges of the numeric coercion lattice.
type LatticeConfig struct {
	// UnsignedToSigned admits uN ⊑ i2N joins. Off by default: mixing
	// signedness is a conflict.
	UnsignedToSigned bool `yaml:"unsigned_to_signed,omitempty"`

	// LossyIntToFloat admits i64/u64 ⊑ f64 joins even though the float
	// cannot represent every value.
	LossyIntToFloat bool `yaml:"lossy_int_to_float,omitempty"`
}

// SignaturesConfig lists the library signature sources merged on top of the
// built-in table. Later sources override earlier ones.
type SignaturesConfig struct {
	// Files are YAML signature files, relative to the config file.
	Files []string `yaml:"files,omitempty"`

	// Database is an sqlite signature store, relative to the config file.
	Database string `yaml:"database,omitempty"`

	// TargetVersion filters entries whose `requires` constraint it does not
	// satisfy. Empty keeps every entry.
	TargetVersion string `yaml:"target_version,omitempty"`

	// NoBuiltins drops the built-in table.
	NoBuiltins bool `yaml:"no_builtins,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig reads and parses a tyunify.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data, path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// ParseConfig parses tyunify.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for tyunify.yaml starting from dir and walking up
// to parent directories.
// Returns the path to the config file and nil error if found,
// or empty string and nil error if not found.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("%s: max_iterations must not be negative (got %d)", path, c.MaxIterations)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("%s: parallelism must not be negative (got %d)", path, c.Parallelism)
	}
	if v := c.Signatures.TargetVersion; v != "" {
		if _, err := semver.NewVersion(v); err != nil {
			return fmt.Errorf("%s: signatures.target_version %q: %w", path, v, err)
		}
	}
	seen := make(map[string]bool)
	for i, f := range c.Signatures.Files {
		if f == "" {
			return fmt.Errorf("%s: signatures.files[%d]: empty path", path, i)
		}
		if seen[f] {
			return fmt.Errorf("%s: signatures.files[%d]: %q listed twice", path, i, f)
		}
		seen[f] = true
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Parallelism == 0 {
		c.Parallelism = DefaultParallelism
	}
}

func (c *Config) resolvePaths(dir string) {
	for i, f := range c.Signatures.Files {
		if !filepath.IsAbs(f) {
			c.Signatures.Files[i] = filepath.Join(dir, f)
		}
	}
	if db := c.Signatures.Database; db != "" && !filepath.IsAbs(db) {
		c.Signatures.Database = filepath.Join(dir, db)
	}
}
