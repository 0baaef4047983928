// Package engine contains the fuzzing loops: the JoNM differential engine,
// the JIT mutation sister engine, and the hybrid driver that interleaves
// them.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/tliron/commonlog"

	"jolt/internal/config"
	"jolt/internal/il"
	"jolt/internal/lift"
	"jolt/internal/runner"
)

// ErrMutantAliasesSeed signals the invariant breach where a mutator
// returned its input program instead of a new one. It indicates a bug in a
// mutator, not in the target engine, and aborts the round.
var ErrMutantAliasesSeed = errors.New("mutant aliases its seed")

// ErrChecksumInjection signals that the checksum instrumentation could not
// be applied to a seed. Fatal for the round.
var ErrChecksumInjection = errors.New("checksum injection failed")

// Miscompilation is the user-visible report of one output divergence.
type Miscompilation struct {
	Mutant       *il.Program
	MutantStdout string
	Seed         *il.Program
	SeedStdout   string
	ExecTime     time.Duration
	Origin       string
}

// Callbacks connects the engines to their collaborators. Nil members are
// allowed and ignored.
type Callbacks struct {
	// OnMiscompilation is invoked for every succeeded mutant whose stdout
	// differs from the referee's.
	OnMiscompilation func(Miscompilation)
	// OnCrash is invoked when an execution crashed the target engine.
	OnCrash func(p *il.Program, exec runner.Execution)
}

// FuzzerEngine is one fuzzing loop; the hybrid driver schedules rounds
// across several of them.
type FuzzerEngine interface {
	Name() string
	// RunRound performs one complete fuzzing round. It must honor ctx only
	// between rounds; cancellation mid-round is not supported.
	RunRound(ctx context.Context) error
}

// executor lifts and runs programs with a per-program cache. Each engine
// owns one; there is no sharing between workers.
type executor struct {
	runner  runner.Runner
	cache   *runner.Cache
	timeout time.Duration
	log     commonlog.Logger
}

func newExecutor(r runner.Runner, timeout time.Duration) *executor {
	return &executor{
		runner:  r,
		cache:   runner.NewCache(),
		timeout: timeout,
		log:     commonlog.GetLogger("jolt.engine"),
	}
}

// execute runs the program, consulting and filling the cache.
func (e *executor) execute(ctx context.Context, p *il.Program, purpose runner.Purpose) (runner.Execution, error) {
	if exec, ok := e.cache.Get(p.ID()); ok {
		return exec, nil
	}
	script, err := lift.Lift(p)
	if err != nil {
		return runner.Execution{}, err
	}
	exec := e.runner.Run(ctx, script, e.timeout, purpose)
	e.cache.Put(p.ID(), exec)
	return exec, nil
}

// forget releases the cache entry for a program that is no longer needed.
func (e *executor) forget(p *il.Program) {
	e.cache.Forget(p.ID())
}

// mayBeDeterministic executes the program n times and reports whether every
// run succeeded with identical stdout. The cache is bypassed for the
// repeated runs; only the final execution is retained.
func (e *executor) mayBeDeterministic(ctx context.Context, p *il.Program, n int) (bool, runner.Execution, error) {
	script, err := lift.Lift(p)
	if err != nil {
		return false, runner.Execution{}, err
	}
	var last runner.Execution
	for i := 0; i < n; i++ {
		exec := e.runner.Run(ctx, script, e.timeout, runner.PurposeDeterminism)
		if exec.Outcome != runner.Succeeded {
			return false, exec, nil
		}
		if i > 0 && exec.Stdout != last.Stdout {
			e.log.Infof("non-deterministic seed:\n%s", cmp.Diff(last.Stdout, exec.Stdout))
			return false, exec, nil
		}
		last = exec
	}
	e.cache.Put(p.ID(), last)
	return true, last, nil
}

// newRNG returns the reproducibly seeded PRNG for one worker.
func newRNG(opts config.Options, workerID int) *rand.Rand {
	return rand.New(rand.NewSource(opts.RandomSeed + int64(workerID)))
}
