// Package analysis provides the static analyzers the mutation engine
// consults: context tracking, dead code tracking, def-use information and
// the unbounded recursion heuristic. Analyzers are value state machines
// rebuilt for every program; none of them is shared between programs.
package analysis

import "jolt/internal/il"

// Context is a bitset describing where in a program the traversal cursor
// currently sits.
type Context uint16

const (
	// ContextJavaScript marks positions where plain statements are legal.
	ContextJavaScript Context = 1 << iota
	// ContextLoop marks positions inside a loop body.
	ContextLoop
	// ContextSubroutine marks positions inside any subroutine body.
	ContextSubroutine
	// ContextObjectLiteral marks positions between BeginObjectLiteral and
	// its end, where only property definitions are legal.
	ContextObjectLiteral
	// ContextCodeString marks positions inside a code string.
	ContextCodeString
	// ContextAsyncFunction marks positions inside an async function body.
	ContextAsyncFunction
	// ContextGeneratorFunction marks positions inside a generator body.
	ContextGeneratorFunction
	// ContextClassDefinition marks positions between BeginClassDefinition
	// and its end, where only member definitions are legal.
	ContextClassDefinition
	// ContextMethod marks positions inside a method or accessor body.
	ContextMethod
)

// Has reports whether every bit of other is set.
func (c Context) Has(other Context) bool { return c&other == other }

type contextFrame struct {
	current   Context
	aggregate Context
}

// ContextAnalyzer tracks the current and aggregate context while sweeping a
// program in instruction order. The current context is restored when a block
// closes; the aggregate context is monotonic within a block and never
// un-sets a bit until the block exits.
type ContextAnalyzer struct {
	stack []contextFrame
}

// NewContextAnalyzer returns an analyzer positioned before the first
// instruction of a program.
func NewContextAnalyzer() *ContextAnalyzer {
	return &ContextAnalyzer{
		stack: []contextFrame{{current: ContextJavaScript, aggregate: ContextJavaScript}},
	}
}

// Context returns the context at the cursor.
func (a *ContextAnalyzer) Context() Context {
	return a.stack[len(a.stack)-1].current
}

// Aggregate returns the monotonic context at the cursor.
func (a *ContextAnalyzer) Aggregate() Context {
	return a.stack[len(a.stack)-1].aggregate
}

// Analyze advances the cursor past the given instruction.
func (a *ContextAnalyzer) Analyze(instr il.Instruction) {
	op := instr.Op
	if op.IsBlockEnd() {
		a.stack = a.stack[:len(a.stack)-1]
	}
	if op.IsBlockStart() {
		parent := a.stack[len(a.stack)-1]
		opened := openedContext(op, parent.current)
		a.stack = append(a.stack, contextFrame{
			current:   opened,
			aggregate: parent.aggregate | opened,
		})
	}
}

// openedContext computes the current context of the block opened by op,
// given the surrounding context. Subroutine bodies replace the surrounding
// context entirely; loops and code strings extend it.
func openedContext(op il.Opcode, surrounding Context) Context {
	switch {
	case op.HasFamily(il.FamilyAnySubroutine):
		ctx := ContextJavaScript | ContextSubroutine
		if op.HasFamily(il.FamilyAsyncFunction) {
			ctx |= ContextAsyncFunction
		}
		if op.HasFamily(il.FamilyGeneratorFunction) {
			ctx |= ContextGeneratorFunction
		}
		if op.HasFamily(il.FamilyObjectLiteralMethod | il.FamilyObjectLiteralGetter | il.FamilyObjectLiteralSetter |
			il.FamilyClassMethod | il.FamilyClassGetter | il.FamilyClassSetter) {
			ctx |= ContextMethod
		}
		// Code-string membership survives into subroutines defined inside
		// the string: the whole body still ends up inside an eval payload.
		ctx |= surrounding & ContextCodeString
		return ctx
	case op.HasFamily(il.FamilyLoop):
		return surrounding | ContextLoop
	case op == il.OpBeginObjectLiteral:
		return ContextObjectLiteral | (surrounding & ContextCodeString)
	case op == il.OpBeginClassDefinition:
		return ContextClassDefinition | (surrounding & ContextCodeString)
	case op == il.OpBeginCodeString:
		return ContextJavaScript | ContextCodeString
	default:
		// If arms, try/catch/finally arms: plain statement positions.
		return surrounding
	}
}
