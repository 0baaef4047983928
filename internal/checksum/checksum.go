// Package checksum implements the instrumentation that gives every program
// a stable observable output: a running integer checksum held in a two-slot
// container defined by the wire preamble, updated at random program points
// and printed on program exit even when control flow aborts.
package checksum

import (
	"fmt"
	"math/rand"

	"jolt/internal/il"
)

// Seed is the initial checksum value, as placed into slot 0 of the
// container by the wire preamble.
const Seed = 0xAB0110

// ContainerName is the name of the checksum container in lifted programs.
// It is a fixed string literal; the lifter must not mangle it.
const ContainerName = "__compat_checksum__"

// OutputName is the name of the resolved print function in lifted programs.
const OutputName = "__compat_out__"

// scrubContainerLoads adopts the program into b, replacing every checksum
// container load with a freshly constructed local two-slot array [0, {}].
// Corpus splicing can reintroduce stale loads that would otherwise alias the
// real container.
func scrubContainerLoads(b *il.Builder, p *il.Program) {
	b.Adopting(p, func() {
		for _, instr := range p.Code {
			if instr.Op == il.OpLoadChecksumContainer {
				replaceWithFreshContainer(b, instr)
			} else {
				b.Adopt(instr)
			}
		}
	})
}

// replaceWithFreshContainer emits a local [0, {}] array and rebinds the
// stale load's output to it. Must run inside an Adopting scope.
func replaceWithFreshContainer(b *il.Builder, load il.Instruction) {
	zero := b.LoadInt(0)
	counts := b.CreateObject()
	arr := b.CreateArray(zero, counts)
	b.BindAdoption(load.Output(), arr)
	b.Hide(zero)
	b.Hide(counts)
	b.Hide(arr)
}

// Preprocess normalizes and instruments a program: stale container loads are
// rewritten to fresh locals, then a single container load is injected at
// instruction index 0 and checksum updates are inserted according to the
// given policy. The result is a new program.
func Preprocess(p *il.Program, rng *rand.Rand, opts Options) (*il.Program, error) {
	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	scrubContainerLoads(b, p)
	scrubbed, err := b.Finalize()
	if err != nil {
		return nil, fmt.Errorf("checksum preprocess: %w", err)
	}

	m := NewInsertOps(opts)
	out := m.Mutate(scrubbed, rng)
	if out == nil {
		return nil, fmt.Errorf("checksum preprocess: failed to instrument program")
	}
	return out, nil
}

// Postprocess re-normalizes a program after a downstream mutator ran: only
// the very first container load, at index 0, is kept; any additional load is
// rewritten to a fresh local array. If the program is not instrumented (no
// load at index 0), Postprocess does nothing.
func Postprocess(p *il.Program) (*il.Program, error) {
	if len(p.Code) == 0 || p.Code[0].Op != il.OpLoadChecksumContainer {
		return p, nil
	}
	extra := 0
	for _, instr := range p.Code[1:] {
		if instr.Op == il.OpLoadChecksumContainer {
			extra++
		}
	}
	if extra == 0 {
		return p, nil
	}

	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	b.Adopting(p, func() {
		for i, instr := range p.Code {
			if i > 0 && instr.Op == il.OpLoadChecksumContainer {
				replaceWithFreshContainer(b, instr)
			} else {
				b.Adopt(instr)
			}
		}
	})
	out, err := b.Finalize()
	if err != nil {
		return nil, fmt.Errorf("checksum postprocess: %w", err)
	}
	return out, nil
}

// CountContainerLoads returns the number of container load instructions in
// the program.
func CountContainerLoads(p *il.Program) int {
	n := 0
	for _, instr := range p.Code {
		if instr.Op == il.OpLoadChecksumContainer {
			n++
		}
	}
	return n
}
