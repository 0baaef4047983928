package checksum

import (
	"fmt"
	"math/rand"

	"jolt/internal/analysis"
	"jolt/internal/il"
	"jolt/internal/mutation"
)

// Policy selects where checksum updates may be emitted.
type Policy uint8

const (
	// Aggressive updates anywhere inside a javascript context. Update counts
	// can then depend on engine stack limits, so this policy is only suited
	// to engines compared against themselves.
	Aggressive Policy = iota
	// Conservative updates only outside any subroutine.
	Conservative
	// Modest updates freely outside subroutines and routes updates inside
	// subroutines through a per-subroutine counter bounded by
	// MaxUpdatesPerSubroutine. This is the default.
	Modest
)

func (p Policy) String() string {
	switch p {
	case Aggressive:
		return "aggressive"
	case Conservative:
		return "conservative"
	default:
		return "modest"
	}
}

// Options configures the insert-checksum-ops mutator.
type Options struct {
	Policy                  Policy
	Probability             float64
	MaxUpdatesPerSubroutine int
}

// DefaultOptions returns the Modest policy with the standard probability and
// update cap.
func DefaultOptions() Options {
	return Options{
		Policy:                  Modest,
		Probability:             0.2,
		MaxUpdatesPerSubroutine: 50,
	}
}

// updateOperators are the commutative or at least order-tolerant operators
// used for checksum updates. Division and modulo are excluded.
var updateOperators = []il.BinaryOperator{
	il.Add, il.Sub, il.Mul, il.BitAnd, il.BitOr, il.Xor,
	il.LogicOr, il.LogicAnd, il.LShift, il.RShift, il.UnsignedRShift,
}

// InsertOps walks a program and, after each instruction, emits a checksum
// update with the configured probability, subject to the policy.
type InsertOps struct {
	opts  Options
	stats mutation.Stats
}

// NewInsertOps returns the mutator for the given options.
func NewInsertOps(opts Options) *InsertOps {
	if opts.Probability == 0 {
		opts.Probability = 0.2
	}
	if opts.MaxUpdatesPerSubroutine == 0 {
		opts.MaxUpdatesPerSubroutine = 50
	}
	return &InsertOps{opts: opts}
}

// Name implements mutation.Mutator.
func (m *InsertOps) Name() string { return "InsertChecksumOps" }

// Stats implements mutation.Mutator.
func (m *InsertOps) Stats() *mutation.Stats { return &m.stats }

// subroutineKey describes how updates inside one subroutine are routed.
type subroutineKey struct {
	key      string
	excluded bool
}

// Mutate injects a container load at index 0 and update operations after
// random instructions. The input is expected to be free of container loads
// (see Preprocess); the output always carries exactly one load at index 0.
func (m *InsertOps) Mutate(p *il.Program, rng *rand.Rand) *il.Program {
	defuse := analysis.NewDefUse(p)
	ctx := analysis.NewContextAnalyzer()
	dead := analysis.NewDeadCodeAnalyzer()

	b := il.NewBuilder()
	b.AddContributors(p.Contributors)
	b.AddContributor(m.Name())

	var keys []subroutineKey
	b.Adopting(p, func() {
		container := b.LoadChecksumContainer()
		b.Hide(container)
		for i, instr := range p.Code {
			b.Adopt(instr)
			ctx.Analyze(instr)
			dead.Analyze(instr)

			op := instr.Op
			if op.HasFamily(il.FamilyAnySubroutine) {
				if op.IsBlockStart() {
					keys = append(keys, m.classify(p, defuse, i, instr))
				} else if op.IsBlockEnd() && len(keys) > 0 {
					keys = keys[:len(keys)-1]
				}
			}

			if rng.Float64() >= m.opts.Probability {
				continue
			}
			if !m.allowedHere(ctx, dead) {
				continue
			}
			oper := updateOperators[rng.Intn(len(updateOperators))]
			literal := 1 + rng.Int63n(0xFFFF)
			switch m.opts.Policy {
			case Aggressive, Conservative:
				m.emitPlainUpdate(b, container, oper, literal)
			default:
				if !ctx.Context().Has(analysis.ContextSubroutine) {
					m.emitPlainUpdate(b, container, oper, literal)
				} else if len(keys) > 0 && !keys[len(keys)-1].excluded {
					m.emitKeyedUpdate(b, container, keys[len(keys)-1].key, oper, literal)
				}
			}
		}
	})

	out, err := b.Finalize()
	if err != nil {
		return nil
	}
	return out
}

// allowedHere applies the context vetoes common to all policies.
func (m *InsertOps) allowedHere(ctx *analysis.ContextAnalyzer, dead *analysis.DeadCodeAnalyzer) bool {
	c := ctx.Context()
	if !c.Has(analysis.ContextJavaScript) {
		return false
	}
	if dead.IsDead() {
		return false
	}
	if c.Has(analysis.ContextCodeString) && m.opts.Policy != Aggressive {
		return false
	}
	if m.opts.Policy == Conservative && c.Has(analysis.ContextSubroutine) {
		return false
	}
	return true
}

// classify decides, for the subroutine starting at head, whether updates in
// its body are keyed or suppressed.
func (m *InsertOps) classify(p *il.Program, defuse *analysis.DefUse, head int, instr il.Instruction) subroutineKey {
	op := instr.Op
	key := fmt.Sprintf("s%d", head)

	// Accessors and static initializers run a statically known number of
	// times per access, so they are always keyed.
	if op.HasFamily(il.FamilyObjectLiteralGetter | il.FamilyObjectLiteralSetter |
		il.FamilyClassGetter | il.FamilyClassSetter | il.FamilyClassStaticInitializer) {
		return subroutineKey{key: key}
	}

	// Invocation counts of async bodies, computed methods and class
	// constructors vary between engines; suppress updates entirely.
	if op.HasFamily(il.FamilyAsyncFunction) ||
		op == il.OpBeginObjectLiteralComputedMethod ||
		op == il.OpBeginClassConstructor {
		return subroutineKey{excluded: true}
	}

	// toString and valueOf are invoked implicitly by coercions.
	if aux, ok := instr.Aux.(il.MethodAux); ok {
		if aux == "toString" || aux == "valueOf" {
			return subroutineKey{excluded: true}
		}
	}

	// Plain, arrow and generator functions passed to another call are
	// invoked at the callee's discretion; their counts are engine-dependent.
	if op.HasFamily(il.FamilyPlainFunction | il.FamilyArrowFunction | il.FamilyGeneratorFunction | il.FamilyConstructor) {
		if defuse.IsUsedAsCallArgument(p, instr.Output()) {
			return subroutineKey{excluded: true}
		}
	}
	return subroutineKey{key: key}
}

// emitPlainUpdate emits container[0] op= literal.
func (m *InsertOps) emitPlainUpdate(b *il.Builder, container il.Variable, op il.BinaryOperator, literal int64) {
	v := b.LoadInt(literal)
	b.UpdateElement(container, 0, op, v)
	b.Hide(v)
}

// emitKeyedUpdate emits the bounded update sequence for one subroutine key:
//
//	counts = container[1]
//	if counts[key] === undefined { counts[key] = 0 }
//	if counts[key] < cap { container[0] op= literal; counts[key] += 1 }
func (m *InsertOps) emitKeyedUpdate(b *il.Builder, container il.Variable, key string, op il.BinaryOperator, literal int64) {
	counts := b.GetElement(container, 1)
	k := b.LoadString(key)
	current := b.GetComputedProperty(counts, k)
	undef := b.LoadUndefined()
	missing := b.Compare(current, undef, il.StrictEqual)
	b.BuildIf(missing, func(b *il.Builder) {
		zero := b.LoadInt(0)
		b.SetComputedProperty(counts, k, zero)
		b.Hide(zero)
	})
	count := b.GetComputedProperty(counts, k)
	limit := b.LoadInt(int64(m.opts.MaxUpdatesPerSubroutine))
	below := b.Compare(count, limit, il.LessThan)
	b.BuildIf(below, func(b *il.Builder) {
		v := b.LoadInt(literal)
		b.UpdateElement(container, 0, op, v)
		one := b.LoadInt(1)
		next := b.Binary(count, one, il.Add)
		b.SetComputedProperty(counts, k, next)
		b.Hide(v)
		b.Hide(one)
		b.Hide(next)
	})
	for _, v := range []il.Variable{counts, k, current, undef, missing, count, limit, below} {
		b.Hide(v)
	}
}
