package engine

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/config"
	"jolt/internal/corpus"
	"jolt/internal/il"
	"jolt/internal/runner"
)

// fakeRunner returns scripted executions and counts calls.
type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	result func(call int) runner.Execution
}

func (f *fakeRunner) Run(ctx context.Context, script string, timeout time.Duration, purpose runner.Purpose) runner.Execution {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result(f.calls)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func succeeded(stdout string) runner.Execution {
	return runner.Execution{Outcome: runner.Succeeded, Stdout: stdout, ExecTime: time.Millisecond}
}

func testOptions() config.Options {
	opts := config.Default()
	opts.NumConsecutiveMutations = 3
	opts.MaxAttempts = 10
	opts.DefaultMaxLoopTripCountInJIT = 20
	opts.DefaultSmallCodeBlockSize = 5
	return opts
}

// functionCorpus returns a corpus with one seed defining and calling a
// plain function, so every preserving mutator has candidates.
func functionCorpus(t *testing.T) *corpus.Corpus {
	t.Helper()
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(1, func(b *il.Builder, params []il.Variable) {
		one := b.LoadInt(1)
		sum := b.Binary(params[0], one, il.Add)
		b.Return(sum)
	})
	arg := b.LoadInt(41)
	ret := b.CallFunction(fn, arg)
	pr := b.LoadBuiltin("print")
	b.CallFunction(pr, ret)
	p, err := b.Finalize()
	require.NoError(t, err)

	c := corpus.New()
	c.Add(p)
	return c
}

func TestJoNMReportsDivergence(t *testing.T) {
	opts := testOptions()
	referee := "42\nChecksum: 11206928\n"
	fake := &fakeRunner{result: func(call int) runner.Execution {
		if call <= opts.DeterminismRuns {
			return succeeded(referee)
		}
		return succeeded("43\nChecksum: 11206928\n")
	}}

	var reports []Miscompilation
	e := NewJoNM(functionCorpus(t), fake, rand.New(rand.NewSource(3)), opts, Callbacks{
		OnMiscompilation: func(m Miscompilation) { reports = append(reports, m) },
	})

	require.NoError(t, e.RunRound(context.Background()))
	require.NotEmpty(t, reports, "every divergent mutant must be reported")
	for _, m := range reports {
		assert.Equal(t, referee, m.SeedStdout)
		assert.Equal(t, "43\nChecksum: 11206928\n", m.MutantStdout)
		assert.Equal(t, "local", m.Origin)
		assert.NotSame(t, m.Seed, m.Mutant)
	}
}

func TestJoNMQuietWhenOutputsMatch(t *testing.T) {
	opts := testOptions()
	fake := &fakeRunner{result: func(call int) runner.Execution {
		return succeeded("42\n")
	}}

	reported := false
	e := NewJoNM(functionCorpus(t), fake, rand.New(rand.NewSource(3)), opts, Callbacks{
		OnMiscompilation: func(m Miscompilation) { reported = true },
	})
	require.NoError(t, e.RunRound(context.Background()))
	assert.False(t, reported)
	assert.Greater(t, fake.callCount(), opts.DeterminismRuns, "mutants were executed")
}

func TestJoNMRejectsRecursiveSeeds(t *testing.T) {
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		f := b.LoadNamedVariable("f")
		b.CallFunction(f)
	})
	b.DefineNamedVariable("f", fn)
	p, err := b.Finalize()
	require.NoError(t, err)
	c := corpus.New()
	c.Add(p)

	fake := &fakeRunner{result: func(call int) runner.Execution { return succeeded("x") }}
	e := NewJoNM(c, fake, rand.New(rand.NewSource(1)), testOptions(), Callbacks{})

	require.NoError(t, e.RunRound(context.Background()))
	assert.Equal(t, 0, fake.callCount(), "recursive seeds never reach the runner")
}

func TestJoNMDeterminismGateRejectsFlakySeeds(t *testing.T) {
	outputs := []string{"a\n", "b\n", "c\n"}
	fake := &fakeRunner{result: func(call int) runner.Execution {
		return succeeded(outputs[(call-1)%len(outputs)])
	}}
	e := NewJoNM(functionCorpus(t), fake, rand.New(rand.NewSource(1)), testOptions(), Callbacks{})

	require.NoError(t, e.RunRound(context.Background()))
	assert.Equal(t, 2, fake.callCount(), "gate stops at the first mismatch")
}

func TestJoNMDeterminismGateRejectsTimeouts(t *testing.T) {
	fake := &fakeRunner{result: func(call int) runner.Execution {
		return runner.Execution{Outcome: runner.TimedOut}
	}}
	e := NewJoNM(functionCorpus(t), fake, rand.New(rand.NewSource(1)), testOptions(), Callbacks{})

	require.NoError(t, e.RunRound(context.Background()))
	assert.Equal(t, 1, fake.callCount())
}

func TestJoNMRoutesCrashes(t *testing.T) {
	opts := testOptions()
	crashes := 0
	fake := &fakeRunner{result: func(call int) runner.Execution {
		if call <= opts.DeterminismRuns {
			return succeeded("ok\n")
		}
		return runner.Execution{Outcome: runner.Crashed, Signal: 11}
	}}
	reported := false
	e := NewJoNM(functionCorpus(t), fake, rand.New(rand.NewSource(3)), opts, Callbacks{
		OnMiscompilation: func(m Miscompilation) { reported = true },
		OnCrash:          func(p *il.Program, exec runner.Execution) { crashes++ },
	})

	require.NoError(t, e.RunRound(context.Background()))
	assert.Greater(t, crashes, 0)
	assert.False(t, reported, "crashes are not miscompilations")
}

func TestJoNMNoEligibleSeed(t *testing.T) {
	fake := &fakeRunner{result: func(call int) runner.Execution { return succeeded("x") }}
	e := NewJoNM(corpus.New(), fake, rand.New(rand.NewSource(1)), testOptions(), Callbacks{})
	require.NoError(t, e.RunRound(context.Background()))
	assert.Equal(t, 0, fake.callCount())
}

func TestJoNMExcludesOwnTaint(t *testing.T) {
	b := il.NewBuilder()
	b.LoadInt(1)
	p, err := b.Finalize()
	require.NoError(t, err)
	p.Contributors.Add("JoNNeutralLoop")
	c := corpus.New()
	c.Add(p)

	fake := &fakeRunner{result: func(call int) runner.Execution { return succeeded("x") }}
	e := NewJoNM(c, fake, rand.New(rand.NewSource(1)), testOptions(), Callbacks{})
	require.NoError(t, e.RunRound(context.Background()))
	assert.Equal(t, 0, fake.callCount(), "tainted seeds are never picked")
}

type countingEngine struct {
	name   string
	rounds int
}

func (c *countingEngine) Name() string                        { return c.name }
func (c *countingEngine) RunRound(ctx context.Context) error { c.rounds++; return nil }

func TestHybridDelegatesByWeight(t *testing.T) {
	a := &countingEngine{name: "a"}
	z := &countingEngine{name: "z"}
	h := NewHybrid(rand.New(rand.NewSource(1)))
	h.AddChild(a, 1)
	h.AddChild(z, 1)
	h.AddChild(&countingEngine{name: "ignored"}, 0)

	for i := 0; i < 100; i++ {
		require.NoError(t, h.RunRound(context.Background()))
	}
	assert.Greater(t, a.rounds, 0)
	assert.Greater(t, z.rounds, 0)
	assert.Equal(t, 100, a.rounds+z.rounds)
}

func TestLoopStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &countingEngine{name: "e"}
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	require.NoError(t, Loop(ctx, e))
	assert.Greater(t, e.rounds, 0)
}

func TestJITMutationExecutesMutants(t *testing.T) {
	opts := testOptions()
	fake := &fakeRunner{result: func(call int) runner.Execution { return succeeded("x\n") }}
	e := NewJITMutation(functionCorpus(t), fake, rand.New(rand.NewSource(2)), opts, Callbacks{})
	require.NoError(t, e.RunRound(context.Background()))
	assert.Greater(t, fake.callCount(), 0)
}
