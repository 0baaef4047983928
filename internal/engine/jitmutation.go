package engine

import (
	"context"
	"math/rand"

	"github.com/tliron/commonlog"

	"jolt/internal/checksum"
	"jolt/internal/config"
	"jolt/internal/corpus"
	"jolt/internal/jon"
	"jolt/internal/mutation"
	"jolt/internal/runner"
)

// JITMutation is the sister engine built on the non-preserving warmup
// mutators. Unlike JoNM it walks forward within a round: each successfully
// executed mutant becomes the seed of the next iteration.
type JITMutation struct {
	corpus    *corpus.Corpus
	exec      *executor
	rng       *rand.Rand
	opts      config.Options
	mutators  []mutation.Mutator
	callbacks Callbacks
	log       commonlog.Logger
}

// NewJITMutation assembles the engine.
func NewJITMutation(c *corpus.Corpus, r runner.Runner, rng *rand.Rand, opts config.Options, callbacks Callbacks) *JITMutation {
	t := jon.Tunables{
		MaxLoopTripCount:   opts.DefaultMaxLoopTripCountInJIT,
		SmallCodeBlockSize: opts.DefaultSmallCodeBlockSize,
	}
	return &JITMutation{
		corpus:    c,
		exec:      newExecutor(r, opts.ExecTimeout.Std()),
		rng:       rng,
		opts:      opts,
		mutators:  jon.WarmupMutators(t),
		callbacks: callbacks,
		log:       commonlog.GetLogger("jolt.jit"),
	}
}

// Name implements FuzzerEngine.
func (e *JITMutation) Name() string { return "mutation" }

// Mutators exposes the registry, for statistics reporting.
func (e *JITMutation) Mutators() []mutation.Mutator { return e.mutators }

// RunRound implements FuzzerEngine.
func (e *JITMutation) RunRound(ctx context.Context) error {
	seed := e.corpus.RandomSeed(e.rng, nil)
	if seed == nil {
		e.log.Info("no seed in corpus")
		return nil
	}
	current, err := checksum.Preprocess(seed, e.rng, checksum.Options{
		Policy:                  checksum.Modest,
		Probability:             e.opts.ChecksumProbability,
		MaxUpdatesPerSubroutine: e.opts.MaxNumberOfUpdatesPerSubrt,
	})
	if err != nil {
		return err
	}

	for i := 0; i < e.opts.NumConsecutiveMutations; i++ {
		m := e.mutators[e.rng.Intn(len(e.mutators))]
		mutant := m.Mutate(current, e.rng)
		if mutant == nil {
			m.Stats().FailedToGenerate()
			continue
		}
		mutant, err := checksum.Postprocess(mutant)
		if err != nil {
			return err
		}
		m.Stats().RecordAddedInstructions(mutant.Size() - current.Size())

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
			// Walk forward on success.
			e.exec.forget(current)
			current = mutant
		}
	}
	e.exec.forget(current)
	return nil
}
