// Package mutation provides the framework the concrete mutators are built
// on: per-mutator statistics, the Mutator interface, and the two candidate
// samplers (per-instruction and per-outmost-subroutine) that locate sites,
// sample them, and splice mutated fragments back into a fresh program.
package mutation

import (
	"math/rand"
	"sync/atomic"

	"jolt/internal/analysis"
	"jolt/internal/il"
)

// Stats records per-mutator counters. Mutators may be shared between
// workers, so the counters are atomic.
type Stats struct {
	failedToGenerate  atomic.Int64
	addedInstructions atomic.Int64
}

// FailedToGenerate records one failed mutation attempt.
func (s *Stats) FailedToGenerate() { s.failedToGenerate.Add(1) }

// RecordAddedInstructions accumulates the size delta of a successful
// mutation.
func (s *Stats) RecordAddedInstructions(n int) { s.addedInstructions.Add(int64(n)) }

// Failures returns the number of failed attempts so far.
func (s *Stats) Failures() int64 { return s.failedToGenerate.Load() }

// AddedInstructions returns the accumulated size delta.
func (s *Stats) AddedInstructions() int64 { return s.addedInstructions.Load() }

// Mutator is implemented by every program mutator. Mutate returns nil when
// no candidate site exists; otherwise the result is a new program whose
// contributor set is the input's plus the mutator's identity.
type Mutator interface {
	Name() string
	Mutate(p *il.Program, rng *rand.Rand) *il.Program
	Stats() *Stats
}

// SiteContext bundles the analyzer state visible to canMutate predicates.
// The analyzers are advanced by the sampler; predicates only read them.
type SiteContext struct {
	Program *il.Program
	Context *analysis.ContextAnalyzer
	Dead    *analysis.DeadCodeAnalyzer
	DefUse  *analysis.DefUse
}

func newSiteContext(p *il.Program) *SiteContext {
	return &SiteContext{
		Program: p,
		Context: analysis.NewContextAnalyzer(),
		Dead:    analysis.NewDeadCodeAnalyzer(),
		DefUse:  analysis.NewDefUse(p),
	}
}

func (ctx *SiteContext) advance(instr il.Instruction) {
	ctx.Context.Analyze(instr)
	ctx.Dead.Analyze(instr)
}

// sampleIndices draws at most max distinct elements from candidates,
// uniformly, preserving no particular order.
func sampleIndices(rng *rand.Rand, candidates []int, max int) map[int]bool {
	chosen := make(map[int]bool)
	if len(candidates) == 0 {
		return chosen
	}
	if len(candidates) <= max {
		for _, c := range candidates {
			chosen[c] = true
		}
		return chosen
	}
	perm := rng.Perm(len(candidates))
	for _, i := range perm[:max] {
		chosen[candidates[i]] = true
	}
	return chosen
}

// MutateInstructions runs the per-instruction pattern: collect every
// instruction for which canMutate holds, sample at most maxSites of them,
// and re-emit the program with mutate called at the chosen sites. The
// mutate callback consumes the instruction and emits zero or more
// replacements through the builder; unchanged instructions are adopted
// verbatim. Returns nil iff no candidate exists.
func MutateInstructions(p *il.Program, rng *rand.Rand, name string, maxSites int,
	canMutate func(ctx *SiteContext, index int, instr il.Instruction) bool,
	mutate func(b *il.Builder, instr il.Instruction)) *il.Program {

	ctx := newSiteContext(p)
	var candidates []int
	for i, instr := range p.Code {
		if canMutate(ctx, i, instr) {
			candidates = append(candidates, i)
		}
		ctx.advance(instr)
	}
	if len(candidates) == 0 {
		return nil
	}
	chosen := sampleIndices(rng, candidates, maxSites)

	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	b.AddContributor(name)
	b.Adopting(p, func() {
		for i, instr := range p.Code {
			if chosen[i] {
				mutate(b, instr)
			} else {
				b.Adopt(instr)
			}
		}
	})
	out, err := b.Finalize()
	if err != nil {
		return nil
	}
	return out
}

// MutateSubroutines runs the per-subroutine pattern. A candidate is an
// outmost subroutine block whose interior contains at least one instruction
// for which canMutate holds. Whole blocks are sampled; for each chosen block
// the mutate callback receives the block's instructions (head and tail
// included) and a mask whose entry k tells whether code may be inserted
// after instruction k. Returns nil iff no candidate exists.
func MutateSubroutines(p *il.Program, rng *rand.Rand, name string, maxSites int,
	canMutate func(ctx *SiteContext, head int, index int, instr il.Instruction) bool,
	mutate func(b *il.Builder, body []il.Instruction, mask []bool)) *il.Program {

	subrts := il.FindAllSubroutines(p.Code, 0)
	if len(subrts) == 0 {
		return nil
	}

	ctx := newSiteContext(p)
	masks := make(map[int][]bool)
	var candidates []int
	cursor := 0
	for _, sub := range subrts {
		for ; cursor < sub.Head; cursor++ {
			ctx.advance(p.Code[cursor])
		}
		mask := make([]bool, sub.Tail-sub.Head+1)
		any := false
		for ; cursor <= sub.Tail; cursor++ {
			instr := p.Code[cursor]
			ctx.advance(instr)
			// Insertion happens after the instruction, so the predicate sees
			// the analyzers advanced past it.
			if ok := canMutate(ctx, sub.Head, cursor, instr); ok {
				mask[cursor-sub.Head] = true
				any = true
			}
		}
		if any {
			candidates = append(candidates, sub.Head)
			masks[sub.Head] = mask
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	chosen := sampleIndices(rng, candidates, maxSites)

	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	b.AddContributor(name)
	b.Adopting(p, func() {
		for i := 0; i < len(p.Code); i++ {
			instr := p.Code[i]
			if instr.Op.HasFamily(il.FamilyAnySubroutine) && instr.Op.IsBlockStart() && chosen[i] {
				tail := il.FindBlockEnd(p.Code, i)
				mutate(b, p.Code[i:tail+1], masks[i])
				i = tail
			} else {
				b.Adopt(instr)
			}
		}
	})
	out, err := b.Finalize()
	if err != nil {
		return nil
	}
	return out
}
