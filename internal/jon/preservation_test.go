package jon

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/checksum"
	"jolt/internal/il"
	"jolt/internal/lift"
	"jolt/internal/runner"
)

// run lifts and executes the program on the reference engine.
func run(t *testing.T, p *il.Program) runner.Execution {
	t.Helper()
	script, err := lift.Lift(p)
	require.NoError(t, err)
	r := runner.NewGojaRunner()
	exec := r.Run(context.Background(), script, 10*time.Second, runner.PurposeFuzzing)
	require.Equal(t, runner.Succeeded, exec.Outcome, "stderr: %s\nscript:\n%s", exec.Stderr, script)
	return exec
}

// prepared instruments the seed without checksum updates, so the expected
// output stays easy to state.
func prepared(t *testing.T, seed *il.Program) *il.Program {
	t.Helper()
	opts := checksum.DefaultOptions()
	opts.Probability = -1
	out, err := checksum.Preprocess(seed, rand.New(rand.NewSource(7)), opts)
	require.NoError(t, err)
	return out
}

func TestPreservingMutatorsKeepStdout(t *testing.T) {
	for _, tc := range []struct {
		name string
		seed func(*testing.T) *il.Program
	}{
		{"straight-line call", functionSeed},
		{"call in loop", loopCallSeed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			seed := prepared(t, tc.seed(t))
			referee := run(t, seed)

			for _, m := range PreservingMutators(fastTunables()) {
				rng := rand.New(rand.NewSource(11))
				mutant := m.Mutate(seed, rng)
				if mutant == nil {
					// Not every mutator applies to every seed shape.
					continue
				}
				mutant, err := checksum.Postprocess(mutant)
				require.NoError(t, err)
				exec := run(t, mutant)
				assert.Equal(t, referee.Stdout, exec.Stdout,
					"%s changed the observable output", m.Name())
			}
		})
	}
}

func TestInstrumentedSeedPrintsChecksumLine(t *testing.T) {
	seed := prepared(t, functionSeed(t))
	exec := run(t, seed)
	assert.Equal(t, "2\nChecksum: 11206928\n", exec.Stdout)
}
