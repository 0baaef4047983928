package jon

import (
	"math/rand"

	"jolt/internal/gen"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// SingleExecution wraps one interior instruction of a subroutine in a warmup
// loop such that the instruction still executes exactly once:
//
//	flag = false; saved = null
//	try { for (trip) { snippet; if (!flag) { saved = <instr>; flag = true } } }
//	catch {}
//	finally { if (!flag) { flag = true; saved = <instr> } }
//
// Later uses of the instruction's output read saved instead. Setting the
// flag before the re-execution in finally prevents a double execution when
// the re-executed instruction throws.
type SingleExecution struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewSingleExecution returns the mutator with the given tunables.
func NewSingleExecution(t Tunables) *SingleExecution {
	return &SingleExecution{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *SingleExecution) Name() string { return "JoNSingleExecution" }

// Stats implements mutation.Mutator.
func (m *SingleExecution) Stats() *mutation.Stats { return &m.stats }

// wrappable vets the instructions eligible for wrapping: straight-line
// value computations with at most one output. Calls, jumps, block
// boundaries, guarded instructions, named-variable accesses, builtin loads
// and property configuration are all excluded.
func wrappable(instr il.Instruction) bool {
	op := instr.Op
	if op.IsJump() || op.IsBlockStart() || op.IsBlockEnd() || op.IsCall() {
		return false
	}
	if instr.Guarded {
		return false
	}
	if op == il.OpAwait || op == il.OpYield {
		return false
	}
	if op.IsNamedVariableOp() || op == il.OpLoadBuiltin || op == il.OpLoadChecksumContainer {
		return false
	}
	if op.IsConfigureOp() {
		return false
	}
	return instr.NumOutputs() <= 1
}

// Mutate implements mutation.Mutator.
func (m *SingleExecution) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateSubroutines(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, head, i int, instr il.Instruction) bool {
			return interiorSite(ctx, head, i) && wrappable(instr)
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			at := pickMasked(rng, mask)
			for i, instr := range body {
				if i == at {
					m.wrap(b, rng, instr)
				} else {
					b.Adopt(instr)
				}
			}
		})
}

func (m *SingleExecution) wrap(b *il.Builder, rng *rand.Rand, instr il.Instruction) {
	flag := b.FreshName("__jolt_flag_")
	saved := b.FreshName("__jolt_saved_")

	f := b.LoadBool(false)
	b.DefineNamedVariable(flag, f)
	n := b.LoadNull()
	b.DefineNamedVariable(saved, n)
	b.Hide(f)
	b.Hide(n)

	execute := func(b *il.Builder) {
		in := make([]il.Variable, len(instr.In))
		for k, v := range instr.In {
			in[k] = b.AdoptVariable(v)
		}
		emitted := b.Replicate(il.Instruction{Op: instr.Op, In: in, Out: instr.Out, Aux: instr.Aux})
		if out := emitted.Output(); out != il.InvalidVariable {
			b.StoreNamedVariable(saved, out)
			b.Hide(out)
		}
		t := b.LoadBool(true)
		b.StoreNamedVariable(flag, t)
		b.Hide(t)
	}

	b.BuildTryCatchFinally(
		func(b *il.Builder) {
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				gen.NeutralSnippet(b, rng, m.tunables.SmallCodeBlockSize)
				fl := b.LoadNamedVariable(flag)
				cold := b.Unary(fl, il.LogicalNot)
				b.BuildIf(cold, execute)
				b.Hide(fl)
				b.Hide(cold)
			})
		},
		func(b *il.Builder, e il.Variable) {},
		func(b *il.Builder) {
			fl := b.LoadNamedVariable(flag)
			cold := b.Unary(fl, il.LogicalNot)
			b.BuildIf(cold, func(b *il.Builder) {
				// Flag first: a throw out of the retry must not allow yet
				// another execution.
				t := b.LoadBool(true)
				b.StoreNamedVariable(flag, t)
				b.Hide(t)
				in := make([]il.Variable, len(instr.In))
				for k, v := range instr.In {
					in[k] = b.AdoptVariable(v)
				}
				emitted := b.Replicate(il.Instruction{Op: instr.Op, In: in, Out: instr.Out, Aux: instr.Aux})
				if out := emitted.Output(); out != il.InvalidVariable {
					b.StoreNamedVariable(saved, out)
					b.Hide(out)
				}
			})
			b.Hide(fl)
			b.Hide(cold)
		})

	if instr.NumOutputs() == 1 {
		result := b.LoadNamedVariable(saved)
		b.BindAdoption(instr.Output(), result)
	}
}
