package jon

import (
	"math/rand"

	"jolt/internal/gen"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// The warmup mutators below do not preserve program semantics. They feed
// the JIT mutation engine, and the differential engine falls back to them
// when every semantic-preserving mutator fails on a seed.

// SubroutineLoop prepends a warmup loop to the body of an outmost
// subroutine.
type SubroutineLoop struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewSubroutineLoop returns the mutator with the given tunables.
func NewSubroutineLoop(t Tunables) *SubroutineLoop {
	return &SubroutineLoop{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *SubroutineLoop) Name() string { return "JITSubroutineLoop" }

// Stats implements mutation.Mutator.
func (m *SubroutineLoop) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *SubroutineLoop) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateSubroutines(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, head, i int, instr il.Instruction) bool {
			return i == head && siteOK(ctx)
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			b.Adopt(body[0])
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				gen.NeutralSnippet(b, rng, m.tunables.SmallCodeBlockSize)
			})
			for _, instr := range body[1:] {
				b.Adopt(instr)
			}
		})
}

// callSite vets candidate call instructions for the call-wrapping warmup
// mutators.
func callSite(ctx *mutation.SiteContext, instr il.Instruction) bool {
	return instr.Op == il.OpCallFunction && !instr.Guarded && instr.NumInputs() > 0 && siteOK(ctx)
}

// replicateCall re-emits the call with adopted inputs and hidden fresh
// outputs.
func replicateCall(b *il.Builder, instr il.Instruction) {
	in := make([]il.Variable, len(instr.In))
	for k, v := range instr.In {
		in[k] = b.AdoptVariable(v)
	}
	emitted := b.Replicate(il.Instruction{Op: instr.Op, In: in, Out: instr.Out, Aux: instr.Aux})
	for _, out := range emitted.Out {
		b.Hide(out)
	}
}

// CallInLoop wraps an existing call instruction in a warmup loop; the
// original call then executes once more to bind its outputs.
type CallInLoop struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewCallInLoop returns the mutator with the given tunables.
func NewCallInLoop(t Tunables) *CallInLoop {
	return &CallInLoop{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *CallInLoop) Name() string { return "JITCallInLoop" }

// Stats implements mutation.Mutator.
func (m *CallInLoop) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *CallInLoop) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateInstructions(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, i int, instr il.Instruction) bool {
			return callSite(ctx, instr)
		},
		func(b *il.Builder, instr il.Instruction) {
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				replicateCall(b, instr)
			})
			b.Adopt(instr)
		})
}

// CallDeopt wraps a call in a warmup loop and follows up with a call whose
// argument types diverge from the original's, deoptimizing the compiled
// path before the original call runs.
type CallDeopt struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewCallDeopt returns the mutator with the given tunables.
func NewCallDeopt(t Tunables) *CallDeopt {
	return &CallDeopt{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *CallDeopt) Name() string { return "JITCallDeopt" }

// Stats implements mutation.Mutator.
func (m *CallDeopt) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *CallDeopt) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateInstructions(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, i int, instr il.Instruction) bool {
			return callSite(ctx, instr)
		},
		func(b *il.Builder, instr il.Instruction) {
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				replicateCall(b, instr)
			})
			emitDivergentCall(b, rng, p, instr)
			b.Adopt(instr)
		})
}

// CallDeoptRecompile additionally wraps a second matching-type call in a
// second warmup loop after the de-optimizing call, giving the engine a
// chance to recompile before the original call runs.
type CallDeoptRecompile struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewCallDeoptRecompile returns the mutator with the given tunables.
func NewCallDeoptRecompile(t Tunables) *CallDeoptRecompile {
	return &CallDeoptRecompile{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *CallDeoptRecompile) Name() string { return "JITCallDeoptRecompile" }

// Stats implements mutation.Mutator.
func (m *CallDeoptRecompile) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *CallDeoptRecompile) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateInstructions(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, i int, instr il.Instruction) bool {
			return callSite(ctx, instr)
		},
		func(b *il.Builder, instr il.Instruction) {
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				replicateCall(b, instr)
			})
			emitDivergentCall(b, rng, p, instr)
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				replicateCall(b, instr)
			})
			b.Adopt(instr)
		})
}

// emitDivergentCall calls the instruction's callee with arguments whose
// types differ from the original call's.
func emitDivergentCall(b *il.Builder, rng *rand.Rand, p *il.Program, instr il.Instruction) {
	fn := b.AdoptVariable(instr.Input(0))
	types := gen.DivergentTypes(gen.InferArgTypes(p, instr))
	args := gen.ValuesOfTypes(b, rng, types)
	ret := b.CallFunction(fn, args...)
	for _, a := range args {
		b.Hide(a)
	}
	b.Hide(ret)
}

// WrapInFunctionLoop wraps the whole program in a plain function and calls
// it in a warmup loop. It stands in for the other mutators when none of
// them finds a candidate, most often on programs without subroutines.
type WrapInFunctionLoop struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewWrapInFunctionLoop returns the mutator with the given tunables.
func NewWrapInFunctionLoop(t Tunables) *WrapInFunctionLoop {
	return &WrapInFunctionLoop{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *WrapInFunctionLoop) Name() string { return "JITWrapFunction" }

// Stats implements mutation.Mutator.
func (m *WrapInFunctionLoop) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *WrapInFunctionLoop) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	if p.Size() == 0 {
		return nil
	}
	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	b.AddContributor(m.Name())
	b.Adopting(p, func() {
		start := 0
		if p.Code[0].Op == il.OpLoadChecksumContainer {
			// The container load stays at index 0, outside the wrapper.
			b.Adopt(p.Code[0])
			start = 1
		}
		fn := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
			for _, instr := range p.Code[start:] {
				b.Adopt(instr)
			}
		})
		b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
			ret := b.CallFunction(fn)
			b.Hide(ret)
		})
	})
	out, err := b.Finalize()
	if err != nil {
		return nil
	}
	return out
}
