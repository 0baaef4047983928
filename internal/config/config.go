// Package config collects the recognized engine options with their
// defaults. Options can be overlaid from a TOML file and overridden by CLI
// flags.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML files can spell timeouts as "2s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Options holds every tunable the engines recognize.
type Options struct {
	// NumConsecutiveMutations is the number of mutants derived from one
	// seed per round.
	NumConsecutiveMutations int `toml:"num_consecutive_mutations"`
	// NumConsecutiveJenerations is the template-based generation budget of
	// the jeneration sister engine.
	NumConsecutiveJenerations int `toml:"num_consecutive_jenerations"`

	// Hybrid engine weights.
	WeightMutation    int `toml:"weight_mutation"`
	WeightJeneration  int `toml:"weight_jeneration"`
	WeightJoNMutation int `toml:"weight_jon_mutation"`

	// DefaultMaxLoopTripCountInJIT is the trip count of inserted warmup
	// loops.
	DefaultMaxLoopTripCountInJIT int64 `toml:"max_loop_trip_count_in_jit"`
	// DefaultSmallCodeBlockSize is the instruction count of fresh snippets.
	DefaultSmallCodeBlockSize int `toml:"small_code_block_size"`
	// MaxNumberOfUpdatesPerSubrt caps checksum updates per subroutine key.
	MaxNumberOfUpdatesPerSubrt int `toml:"max_updates_per_subroutine"`
	// ChecksumProbability is the per-site checksum insertion probability.
	ChecksumProbability float64 `toml:"checksum_probability"`

	// DeterminismRuns is the number of identical executions the
	// determinism gate requires.
	DeterminismRuns int `toml:"determinism_runs"`
	// MaxAttempts bounds mutation retries per iteration.
	MaxAttempts int `toml:"max_attempts"`
	// ExecTimeout bounds each program execution.
	ExecTimeout Duration `toml:"exec_timeout"`

	// Workers is the number of independent fuzzing loops.
	Workers int `toml:"workers"`
	// RandomSeed seeds the per-worker PRNGs reproducibly; worker i uses
	// RandomSeed + i.
	RandomSeed int64 `toml:"random_seed"`
}

// Default returns the standard options.
func Default() Options {
	return Options{
		NumConsecutiveMutations:      5,
		NumConsecutiveJenerations:    3,
		WeightMutation:               6,
		WeightJeneration:             2,
		WeightJoNMutation:            2,
		DefaultMaxLoopTripCountInJIT: 921,
		DefaultSmallCodeBlockSize:    10,
		MaxNumberOfUpdatesPerSubrt:   50,
		ChecksumProbability:          0.2,
		DeterminismRuns:              3,
		MaxAttempts:                  5,
		ExecTimeout:                  Duration(5 * time.Second),
		Workers:                      1,
		RandomSeed:                   1,
	}
}

// Load overlays the TOML file at path onto the defaults.
func Load(path string) (Options, error) {
	opts := Default()
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	return opts, nil
}
