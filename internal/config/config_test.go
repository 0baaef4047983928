package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	opts := Default()
	assert.Equal(t, 5, opts.NumConsecutiveMutations)
	assert.Equal(t, 6, opts.WeightMutation)
	assert.Equal(t, 2, opts.WeightJeneration)
	assert.Equal(t, 2, opts.WeightJoNMutation)
	assert.Equal(t, int64(921), opts.DefaultMaxLoopTripCountInJIT)
	assert.Equal(t, 10, opts.DefaultSmallCodeBlockSize)
	assert.Equal(t, 50, opts.MaxNumberOfUpdatesPerSubrt)
	assert.Equal(t, 0.2, opts.ChecksumProbability)
	assert.Equal(t, 3, opts.DeterminismRuns)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jolt.toml")
	content := `
num_consecutive_mutations = 9
weight_jon_mutation = 4
exec_timeout = "2s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, opts.NumConsecutiveMutations)
	assert.Equal(t, 4, opts.WeightJoNMutation)
	assert.Equal(t, 2*time.Second, opts.ExecTimeout.Std())
	assert.Equal(t, 6, opts.WeightMutation, "unset keys keep their defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
