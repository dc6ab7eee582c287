// Package latency provides the timing configuration for cycle-accurate
// simulation: memory wait states, cache parameters, and branch predictor
// sizing, loadable from JSON.
package latency

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/arm7sim/timing/cache"
	"github.com/sarchlab/arm7sim/timing/pipeline"
)

// CacheConfig holds the JSON-facing parameters of one L1 cache.
type CacheConfig struct {
	// Enabled turns the cache on. Disabled caches leave the baseline
	// single-cycle memory model in place.
	Enabled bool `json:"enabled"`

	// Size in bytes. Must be a multiple of Associativity*BlockSize.
	Size int `json:"size"`

	// Associativity is the number of ways.
	Associativity int `json:"associativity"`

	// BlockSize is the cache line size in bytes.
	BlockSize int `json:"block_size"`

	// HitLatency in cycles.
	HitLatency uint64 `json:"hit_latency"`

	// MissLatency in cycles, including the backing memory access.
	MissLatency uint64 `json:"miss_latency"`
}

// toCache converts the JSON-facing form into the cache package's Config.
func (c CacheConfig) toCache() cache.Config {
	return cache.Config{
		Size:          c.Size,
		Associativity: c.Associativity,
		BlockSize:     c.BlockSize,
		HitLatency:    c.HitLatency,
		MissLatency:   c.MissLatency,
	}
}

func (c CacheConfig) validate(name string) error {
	if !c.Enabled {
		return nil
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("%s: associativity must be > 0", name)
	}
	if c.BlockSize < 4 {
		return fmt.Errorf("%s: block_size must be >= 4", name)
	}
	if c.Size <= 0 || c.Size%(c.Associativity*c.BlockSize) != 0 {
		return fmt.Errorf(
			"%s: size must be a positive multiple of associativity*block_size", name)
	}
	if c.HitLatency == 0 {
		return fmt.Errorf("%s: hit_latency must be > 0", name)
	}
	if c.MissLatency < c.HitLatency {
		return fmt.Errorf("%s: miss_latency must be >= hit_latency", name)
	}
	return nil
}

// PredictorConfig holds the JSON-facing branch predictor parameters.
type PredictorConfig struct {
	// Enabled turns speculative fetch on. Disabled means every taken
	// branch pays the architectural two-cycle flush.
	Enabled bool `json:"enabled"`

	// BHTSize is the number of direction counters. Must be a power of 2.
	BHTSize uint32 `json:"bht_size"`

	// BTBSize is the number of target buffer entries. Must be a power
	// of 2.
	BTBSize uint32 `json:"btb_size"`
}

// TimingConfig holds all timing parameters of the simulated machine. The
// zero value is the baseline model: single-cycle memory, no caches, no
// prediction.
type TimingConfig struct {
	// MemoryWaitStates is the number of cycles a data access takes on the
	// bus. Zero or one means the baseline single-cycle bus. Ignored when
	// the data cache is enabled.
	MemoryWaitStates uint64 `json:"memory_wait_states"`

	// ICache configures the L1 instruction cache.
	ICache CacheConfig `json:"icache"`

	// DCache configures the L1 data cache.
	DCache CacheConfig `json:"dcache"`

	// Predictor configures the branch predictor.
	Predictor PredictorConfig `json:"predictor"`
}

// DefaultTimingConfig returns the baseline configuration.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{}
}

// LoadConfig loads a TimingConfig from a JSON file and validates it.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks internal consistency of the configuration.
func (c *TimingConfig) Validate() error {
	if err := c.ICache.validate("icache"); err != nil {
		return err
	}
	if err := c.DCache.validate("dcache"); err != nil {
		return err
	}

	p := c.Predictor
	if p.Enabled {
		if p.BHTSize == 0 || p.BHTSize&(p.BHTSize-1) != 0 {
			return fmt.Errorf("predictor: bht_size must be a power of 2")
		}
		if p.BTBSize == 0 || p.BTBSize&(p.BTBSize-1) != 0 {
			return fmt.Errorf("predictor: btb_size must be a power of 2")
		}
	}

	return nil
}

// PipelineOptions translates the configuration into pipeline options.
func (c *TimingConfig) PipelineOptions() []pipeline.PipelineOption {
	var opts []pipeline.PipelineOption

	if c.ICache.Enabled {
		opts = append(opts, pipeline.WithICache(c.ICache.toCache()))
	}

	if c.DCache.Enabled {
		opts = append(opts, pipeline.WithDCache(c.DCache.toCache()))
	} else if c.MemoryWaitStates > 1 {
		opts = append(opts, pipeline.WithMemoryLatency(c.MemoryWaitStates))
	}

	if c.Predictor.Enabled {
		opts = append(opts, pipeline.WithBranchPredictor(
			pipeline.BranchPredictorConfig{
				BHTSize: c.Predictor.BHTSize,
				BTBSize: c.Predictor.BTBSize,
			}))
	}

	return opts
}
