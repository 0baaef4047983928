package engine

import (
	"context"
	"math/rand"

	"github.com/tliron/commonlog"
)

// Hybrid interleaves several child engines. One round draws one child with
// probability proportional to its weight and delegates; there is no
// inter-engine state.
type Hybrid struct {
	children []weightedChild
	total    int
	rng      *rand.Rand
	log      commonlog.Logger
}

type weightedChild struct {
	engine FuzzerEngine
	weight int
}

// NewHybrid returns a driver with no children.
func NewHybrid(rng *rand.Rand) *Hybrid {
	return &Hybrid{
		rng: rng,
		log: commonlog.GetLogger("jolt.hybrid"),
	}
}

// AddChild registers an engine. Children with weight <= 0 are ignored.
func (h *Hybrid) AddChild(e FuzzerEngine, weight int) {
	if weight <= 0 {
		return
	}
	h.children = append(h.children, weightedChild{engine: e, weight: weight})
	h.total += weight
}

// Name implements FuzzerEngine.
func (h *Hybrid) Name() string { return "hybrid" }

// RunRound implements FuzzerEngine.
func (h *Hybrid) RunRound(ctx context.Context) error {
	if h.total == 0 {
		return nil
	}
	pick := h.rng.Intn(h.total)
	for _, c := range h.children {
		pick -= c.weight
		if pick < 0 {
			h.log.Debugf("round delegated to %s", c.engine.Name())
			return c.engine.RunRound(ctx)
		}
	}
	return nil
}

// Loop runs rounds until the context is cancelled. A shutdown signal is
// honored between rounds, never within one.
func Loop(ctx context.Context, e FuzzerEngine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := e.RunRound(ctx); err != nil {
			return err
		}
	}
}
