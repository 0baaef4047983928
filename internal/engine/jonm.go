package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/tliron/commonlog"

	"jolt/internal/analysis"
	"jolt/internal/checksum"
	"jolt/internal/config"
	"jolt/internal/corpus"
	"jolt/internal/il"
	"jolt/internal/jon"
	"jolt/internal/mutation"
	"jolt/internal/runner"
)

// JoNM is the differential engine. One round instruments a seed, gates it
// for determinism, records its output as the referee, and derives several
// mutants from the same instrumented seed, flagging every succeeded mutant
// whose stdout diverges from the referee as a candidate miscompilation.
type JoNM struct {
	corpus    *corpus.Corpus
	exec      *executor
	rng       *rand.Rand
	opts      config.Options
	mutators  []mutation.Mutator
	fallbacks []mutation.Mutator
	exclude   []string
	callbacks Callbacks
	log       commonlog.Logger
}

// NewJoNM assembles the engine. The mutator registry is built from the
// options' tunables.
func NewJoNM(c *corpus.Corpus, r runner.Runner, rng *rand.Rand, opts config.Options, callbacks Callbacks) *JoNM {
	t := jon.Tunables{
		MaxLoopTripCount:   opts.DefaultMaxLoopTripCountInJIT,
		SmallCodeBlockSize: opts.DefaultSmallCodeBlockSize,
	}
	return &JoNM{
		corpus:   c,
		exec:     newExecutor(r, opts.ExecTimeout.Std()),
		rng:      rng,
		opts:     opts,
		mutators: jon.PreservingMutators(t),
		fallbacks: []mutation.Mutator{
			jon.NewSubroutineLoop(t),
			jon.NewWrapInFunctionLoop(t),
		},
		exclude:   jon.PreservingMutatorNames(),
		callbacks: callbacks,
		log:       commonlog.GetLogger("jolt.jonm"),
	}
}

// Name implements FuzzerEngine.
func (e *JoNM) Name() string { return "jonm" }

// Mutators exposes the registry, for statistics reporting.
func (e *JoNM) Mutators() []mutation.Mutator {
	return append(append([]mutation.Mutator(nil), e.mutators...), e.fallbacks...)
}

// RunRound implements FuzzerEngine.
func (e *JoNM) RunRound(ctx context.Context) error {
	// Seeds that already carry a JoN contributor would amplify themselves;
	// keep them out of the pool.
	seed := e.corpus.RandomSeed(e.rng, e.exclude)
	if seed == nil {
		e.log.Info("no eligible seed in corpus")
		return nil
	}

	prepared, err := checksum.Preprocess(seed, e.rng, checksum.Options{
		Policy:                  checksum.Modest,
		Probability:             e.opts.ChecksumProbability,
		MaxUpdatesPerSubroutine: e.opts.MaxNumberOfUpdatesPerSubrt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChecksumInjection, err)
	}
	defer e.exec.forget(prepared)

	if analysis.MayRecurse(prepared) {
		e.log.Debug("seed rejected: recursion heuristic")
		return nil
	}

	deterministic, referee, err := e.exec.mayBeDeterministic(ctx, prepared, e.opts.DeterminismRuns)
	if err != nil {
		return err
	}
	if !deterministic {
		e.log.Debug("seed rejected: determinism gate")
		return nil
	}

	for i := 0; i < e.opts.NumConsecutiveMutations; i++ {
		// All consecutive mutations derive from the same instrumented seed;
		// the seed does not advance within a round.
		mutant, m := e.mutateWithRetries(prepared)
		if mutant == nil {
			continue
		}
		mutant, err := checksum.Postprocess(mutant)
		if err != nil {
			return err
		}
		if mutant == prepared {
			return ErrMutantAliasesSeed
		}
		m.Stats().RecordAddedInstructions(mutant.Size() - prepared.Size())

		exec, err := e.exec.execute(ctx, mutant, runner.PurposeFuzzing)
		e.exec.forget(mutant)
		if err != nil {
			return err
		}
		switch exec.Outcome {
		case runner.Crashed:
			if e.callbacks.OnCrash != nil {
				e.callbacks.OnCrash(mutant, exec)
			}
		case runner.Succeeded:
			if exec.Stdout != referee.Stdout && e.callbacks.OnMiscompilation != nil {
				e.callbacks.OnMiscompilation(Miscompilation{
					Mutant:       mutant,
					MutantStdout: exec.Stdout,
					Seed:         prepared,
					SeedStdout:   referee.Stdout,
					ExecTime:     exec.ExecTime,
					Origin:       "local",
				})
			}
		default:
			// Runtime failures and timeouts are not miscompilations under
			// this oracle.
		}
	}
	return nil
}

// mutateWithRetries samples JoN mutators until one produces a mutant, for
// at most MaxAttempts attempts. The final attempt falls back to a
// non-preserving warmup mutator so that hard seeds still produce something.
func (e *JoNM) mutateWithRetries(seed *il.Program) (*il.Program, mutation.Mutator) {
	for attempt := 0; attempt < e.opts.MaxAttempts; attempt++ {
		var m mutation.Mutator
		if attempt == e.opts.MaxAttempts-1 {
			m = e.fallbacks[e.rng.Intn(len(e.fallbacks))]
		} else {
			m = e.mutators[e.rng.Intn(len(e.mutators))]
		}
		out := m.Mutate(seed, e.rng)
		if out == nil {
			m.Stats().FailedToGenerate()
			continue
		}
		return out, m
	}
	return nil, nil
}
