package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"jolt/internal/config"
	"jolt/internal/corpus"
	"jolt/internal/runner"
)

// NewWorker wires one complete fuzzing loop: a hybrid driver over the JoNM
// and JIT mutation engines, with its own PRNG and runner. Workers share the
// corpus (which synchronizes internally) and the callbacks; everything else
// is per-worker.
func NewWorker(workerID int, c *corpus.Corpus, newRunner func() runner.Runner, opts config.Options, callbacks Callbacks) *Hybrid {
	rng := newRNG(opts, workerID)
	r := newRunner()
	h := NewHybrid(rng)
	h.AddChild(NewJITMutation(c, r, rng, opts, callbacks), opts.WeightMutation)
	h.AddChild(NewJoNM(c, r, rng, opts, callbacks), opts.WeightJoNMutation)
	return h
}

// RunWorkers runs opts.Workers independent fuzzing loops until the context
// is cancelled or one of them fails.
func RunWorkers(ctx context.Context, c *corpus.Corpus, newRunner func() runner.Runner, opts config.Options, callbacks Callbacks) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Workers; i++ {
		h := NewWorker(i, c, newRunner, opts, callbacks)
		g.Go(func() error {
			return Loop(ctx, h)
		})
	}
	return g.Wait()
}
