package jon

import (
	"math/rand"

	"jolt/internal/gen"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// NeutralLoop inserts, at a mutable position inside a subroutine, a fresh
// unrelated snippet running in a bounded loop wrapped in try/catch. The loop
// provokes on-stack-replacement compilation of the enclosing subroutine
// without altering any state visible to the outer program.
type NeutralLoop struct {
	tunables Tunables
	stats    mutation.Stats
}

// NewNeutralLoop returns the mutator with the given tunables.
func NewNeutralLoop(t Tunables) *NeutralLoop {
	return &NeutralLoop{tunables: t.withDefaults()}
}

// Name implements mutation.Mutator.
func (m *NeutralLoop) Name() string { return "JoNNeutralLoop" }

// Stats implements mutation.Mutator.
func (m *NeutralLoop) Stats() *mutation.Stats { return &m.stats }

// Mutate implements mutation.Mutator.
func (m *NeutralLoop) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	return mutation.MutateSubroutines(p, rng, m.Name(), m.tunables.MaxSimultaneousMutations,
		func(ctx *mutation.SiteContext, head, i int, instr il.Instruction) bool {
			return interiorSite(ctx, head, i)
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			at := pickMasked(rng, mask)
			for i, instr := range body {
				b.Adopt(instr)
				if i == at {
					m.insertLoop(b, rng)
				}
			}
		})
}

// insertLoop emits try { for (trip) { snippet } } catch {}.
func (m *NeutralLoop) insertLoop(b *il.Builder, rng *rand.Rand) {
	b.BuildTryCatchFinally(
		func(b *il.Builder) {
			b.BuildRepeatLoop(m.tunables.MaxLoopTripCount, func(b *il.Builder, i il.Variable) {
				gen.NeutralSnippet(b, rng, m.tunables.SmallCodeBlockSize)
			})
		},
		func(b *il.Builder, e il.Variable) {},
		nil)
}
