package jon

import (
	"math/rand"

	"jolt/internal/analysis"
	"jolt/internal/gen"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// WarmupPreCall attaches a flag-guarded prologue to a plain or arrow
// function and, right after the definition and before the program's first
// call to it, runs a warmup loop calling the function with arguments shaped
// like the program's own first call. The JIT specializes on the same shape;
// the prologue fires only while the flag is set, which is strictly confined
// to the warmup loop, so the observable behavior is unchanged.
type WarmupPreCall struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewWarmupPreCall returns the mutator with the given tunables.
func NewWarmupPreCall(t Tunables) *WarmupPreCall {
	return &WarmupPreCall{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *WarmupPreCall) Name() string { return "JoNWarmupPreCall" }

// Stats implements mutation.Mutator.
func (m *WarmupPreCall) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *WarmupPreCall) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateSubroutines(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, head, i int, instr il.Instruction) bool {
			if i != head {
				return false
			}
			op := instr.Op
			if !op.HasFamily(il.FamilyPlainFunction) && !op.HasFamily(il.FamilyArrowFunction) {
				return false
			}
			return siteOK(ctx)
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			argTypes := firstCallArgTypes(p, body[0].Output())
			emitPreCall(b, rng, m.tunables, body, argTypes, false)
		})
}

// DeoptPreCall is the inverse of WarmupPreCall: for functions already called
// inside a loop it attaches the same flag-guarded prologue, but the injected
// call uses arguments whose types deliberately differ from the existing
// call's argument types, and fires only once the loop counter passes the
// midpoint. A previously compiled code path deoptimizes; the subsequent
// normal call may trigger recompilation.
type DeoptPreCall struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewDeoptPreCall returns the mutator with the given tunables.
func NewDeoptPreCall(t Tunables) *DeoptPreCall {
	return &DeoptPreCall{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *DeoptPreCall) Name() string { return "JoNDeoptPreCall" }

// Stats implements mutation.Mutator.
func (m *DeoptPreCall) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *DeoptPreCall) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	inLoop := calleesCalledInLoops(p)
	return mutation.MutateSubroutines(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, head, i int, instr il.Instruction) bool {
			if i != head {
				return false
			}
			op := instr.Op
			if !op.HasFamily(il.FamilyPlainFunction) && !op.HasFamily(il.FamilyArrowFunction) {
				return false
			}
			return inLoop[instr.Output()] && siteOK(ctx)
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			argTypes := gen.DivergentTypes(firstCallArgTypes(p, body[0].Output()))
			emitPreCall(b, rng, m.tunables, body, argTypes, true)
		})
}

// firstCallArgTypes infers argument types from the program's first direct
// call to fn, or returns nil when the function is never called directly.
func firstCallArgTypes(p *il.Program, fn il.Variable) []gen.ValueType {
	for _, instr := range p.Code {
		if instr.Op == il.OpCallFunction && instr.NumInputs() > 0 && instr.Input(0) == fn {
			return gen.InferArgTypes(p, instr)
		}
	}
	return nil
}

// calleesCalledInLoops returns the set of callee variables invoked from
// inside a loop somewhere in the program.
func calleesCalledInLoops(p *il.Program) map[il.Variable]bool {
	ctx := analysis.NewContextAnalyzer()
	called := make(map[il.Variable]bool)
	for _, instr := range p.Code {
		if instr.Op == il.OpCallFunction && instr.NumInputs() > 0 &&
			ctx.Context().Has(analysis.ContextLoop) {
			called[instr.Input(0)] = true
		}
		ctx.Analyze(instr)
	}
	return called
}

// emitPreCall re-emits the function with the prologue and appends the
// warmup loop after the definition. With deopt set, the injected call fires
// only past the loop midpoint.
func emitPreCall(b *il.Builder, rng *rand.Rand, t Tunables, body []il.Instruction, argTypes []gen.ValueType, deopt bool) {
	head := body[0]
	flag := b.FreshName("__jolt_warmup_")

	f := b.LoadBool(false)
	b.DefineNamedVariable(flag, f)
	b.Hide(f)

	b.Adopt(head)
	fl := b.LoadNamedVariable(flag)
	b.BuildIf(fl, func(b *il.Builder) {
		gen.NeutralSnippet(b, rng, t.SmallCodeBlockSize)
		n := b.LoadNull()
		b.Return(n)
		b.Hide(n)
	})
	b.Hide(fl)
	for _, instr := range body[1:] {
		b.Adopt(instr)
	}

	fn := b.AdoptVariable(head.Output())
	on := b.LoadBool(true)
	b.StoreNamedVariable(flag, on)
	b.Hide(on)
	b.BuildTryCatchFinally(
		func(b *il.Builder) {
			b.BuildRepeatLoop(t.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				gen.NeutralSnippet(b, rng, t.SmallCodeBlockSize)
				call := func(b *il.Builder) {
					args := gen.ValuesOfTypes(b, rng, argTypes)
					ret := b.CallFunction(fn, args...)
					for _, a := range args {
						b.Hide(a)
					}
					b.Hide(ret)
				}
				if deopt {
					mid := b.LoadInt(t.MaxLoopTripCount / 2)
					past := b.Compare(i, mid, il.GreaterThanOrEqual)
					b.BuildIf(past, call)
					b.Hide(mid)
					b.Hide(past)
				} else {
					call(b)
				}
			})
		},
		func(b *il.Builder, e il.Variable) {},
		func(b *il.Builder) {
			off := b.LoadBool(false)
			b.StoreNamedVariable(flag, off)
			b.Hide(off)
		})
}
