package modred

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults used when a field is left at its zero value.
const (
	// DefaultMaxVecsPerNode is the number of vectors a node may hold in
	// memory at once.
	DefaultMaxVecsPerNode = 10000

	// DefaultAtol drops singular values and eigenvalues at the level of
	// machine precision.
	DefaultAtol = 1e-13

	// DefaultRtol disables relative truncation.
	DefaultRtol = 0.
)

// Inner product weight kinds understood by the configuration.
const (
	WeightsNone     = "none"
	WeightsDiagonal = "diagonal"
	WeightsFull     = "full"
)

// Storage backends understood by the configuration.
const (
	StorageText   = "text"
	StorageSQLite = "sqlite"
)

// Config is the run configuration read by the command line tool.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// MaxVecsPerNode bounds the vectors resident in memory per node.
	MaxVecsPerNode int `yaml:"max_vecs_per_node"`
	// Workers is the number of goroutines used per rank, 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// IndexFrom is the number of the first mode in file names.
	IndexFrom int `yaml:"index_from"`
	// Tolerance controls truncation of small singular values.
	Tolerance ToleranceConfig `yaml:"tolerance"`
	// InnerProduct selects the inner product weighting.
	InnerProduct InnerProductConfig `yaml:"inner_product"`
	// Storage selects where vectors and matrices are read and written.
	Storage StorageConfig `yaml:"storage"`
}

// ToleranceConfig holds the absolute and relative truncation tolerances.
type ToleranceConfig struct {
	Atol float64 `yaml:"atol"`
	Rtol float64 `yaml:"rtol"`
}

// InnerProductConfig selects the weighting of the inner product. For
// diagonal and full weights the weights are loaded from WeightsPath.
type InnerProductConfig struct {
	Weights     string `yaml:"weights"`
	WeightsPath string `yaml:"weights_path"`
}

// StorageConfig selects the storage backend. For sqlite, Path is the
// database file. For text, paths are used as given.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		MaxVecsPerNode: DefaultMaxVecsPerNode,
		Tolerance:      ToleranceConfig{Atol: DefaultAtol, Rtol: DefaultRtol},
		InnerProduct:   InnerProductConfig{Weights: WeightsNone},
		Storage:        StorageConfig{Backend: StorageText},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("modred: parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values no component can work with.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.MaxVecsPerNode < 2 {
		errs = append(errs, fmt.Errorf("%w: max_vecs_per_node = %d, need at least 2", ErrBudget, cfg.MaxVecsPerNode))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("modred: workers = %d must not be negative", cfg.Workers))
	}
	if err := CheckTolerance(cfg.Tolerance.Atol, cfg.Tolerance.Rtol); err != nil {
		errs = append(errs, err)
	}
	switch cfg.InnerProduct.Weights {
	case "", WeightsNone:
	case WeightsDiagonal, WeightsFull:
		if cfg.InnerProduct.WeightsPath == "" {
			errs = append(errs, fmt.Errorf("modred: %s weights need weights_path", cfg.InnerProduct.Weights))
		}
	default:
		errs = append(errs, fmt.Errorf("modred: unknown inner product weights %q", cfg.InnerProduct.Weights))
	}
	switch cfg.Storage.Backend {
	case "", StorageText:
	case StorageSQLite:
		if cfg.Storage.Path == "" {
			errs = append(errs, errors.New("modred: sqlite storage needs a path"))
		}
	default:
		errs = append(errs, fmt.Errorf("modred: unknown storage backend %q", cfg.Storage.Backend))
	}
	return errors.Join(errs...)
}

// CheckTolerance validates a pair of truncation tolerances.
func CheckTolerance(atol, rtol float64) error {
	if math.IsNaN(atol) || atol < 0 {
		return fmt.Errorf("%w: atol = %v", ErrTolerance, atol)
	}
	if math.IsNaN(rtol) || rtol < 0 || rtol > 1 {
		return fmt.Errorf("%w: rtol = %v must be in [0, 1]", ErrTolerance, rtol)
	}
	return nil
}
