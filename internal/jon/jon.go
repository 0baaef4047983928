// Package jon implements the JIT on/off mutators: four semantic-preserving
// transforms used by the differential engine, and the non-preserving JIT
// warmup mutators used by the sister engine and as fallbacks. All of them
// build on the samplers in internal/mutation.
package jon

import (
	"math/rand"

	"jolt/internal/analysis"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// Tunables shared by the mutators in this package. The trip count is chosen
// to exceed the typical on-stack-replacement threshold of current JITs.
type Tunables struct {
	// MaxLoopTripCount is the iteration count of inserted warmup loops.
	MaxLoopTripCount int64
	// SmallCodeBlockSize is the instruction count of fresh neutral snippets.
	SmallCodeBlockSize int
	// MaxSimultaneousMutations bounds how many sites one mutation touches.
	MaxSimultaneousMutations int
}

// DefaultTunables returns the standard settings.
func DefaultTunables() Tunables {
	return Tunables{
		MaxLoopTripCount:         921,
		SmallCodeBlockSize:       10,
		MaxSimultaneousMutations: 3,
	}
}

func (t Tunables) withDefaults() Tunables {
	d := DefaultTunables()
	if t.MaxLoopTripCount == 0 {
		t.MaxLoopTripCount = d.MaxLoopTripCount
	}
	if t.SmallCodeBlockSize == 0 {
		t.SmallCodeBlockSize = d.SmallCodeBlockSize
	}
	if t.MaxSimultaneousMutations == 0 {
		t.MaxSimultaneousMutations = d.MaxSimultaneousMutations
	}
	return t
}

// siteOK is the common veto set of the JoN mutators: the position must be a
// plain javascript statement position, not in dead code, and not anywhere
// under a loop or a code string. The aggregate context is consulted for the
// latter two so that subroutines defined inside loops are vetoed as well.
func siteOK(ctx *mutation.SiteContext) bool {
	c := ctx.Context.Context()
	agg := ctx.Context.Aggregate()
	if !c.Has(analysis.ContextJavaScript) {
		return false
	}
	if ctx.Dead.IsDead() {
		return false
	}
	if agg.Has(analysis.ContextLoop) || agg.Has(analysis.ContextCodeString) {
		return false
	}
	return true
}

// interiorSite reports whether index i is a valid insertion point strictly
// inside the subroutine starting at head: after an interior instruction,
// never directly after the head or at the tail. An empty body therefore has
// no insertion points at all.
func interiorSite(ctx *mutation.SiteContext, head, i int) bool {
	tail := il.FindBlockEnd(ctx.Program.Code, head)
	return i > head && i < tail && siteOK(ctx)
}

// pickMasked returns a uniformly chosen index with mask[i] == true, or -1.
func pickMasked(rng *rand.Rand, mask []bool) int {
	var sites []int
	for i, ok := range mask {
		if ok {
			sites = append(sites, i)
		}
	}
	if len(sites) == 0 {
		return -1
	}
	return sites[rng.Intn(len(sites))]
}

// PreservingMutators returns the four semantic-preserving JoN mutators.
func PreservingMutators(t Tunables) []mutation.Mutator {
	return []mutation.Mutator{
		NewNeutralLoop(t),
		NewSingleExecution(t),
		NewWarmupPreCall(t),
		NewDeoptPreCall(t),
	}
}

// PreservingMutatorNames returns the identities of the semantic-preserving
// mutators, used by the engine to keep its own output out of its seed pool.
func PreservingMutatorNames() []string {
	t := DefaultTunables()
	var names []string
	for _, m := range PreservingMutators(t) {
		names = append(names, m.Name())
	}
	return names
}

// WarmupMutators returns the non-preserving JIT warmup mutators.
func WarmupMutators(t Tunables) []mutation.Mutator {
	return []mutation.Mutator{
		NewSubroutineLoop(t),
		NewCallInLoop(t),
		NewCallDeopt(t),
		NewCallDeoptRecompile(t),
	}
}
