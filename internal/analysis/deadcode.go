package analysis

import "jolt/internal/il"

// DeadCodeAnalyzer tracks whether the traversal cursor sits past an
// unconditional jump or return within the current block. Mutators use it to
// veto insertion points that could never execute.
type DeadCodeAnalyzer struct {
	// One entry per open block; the entry is true once a jump has been seen
	// in that block.
	stack []bool
}

// NewDeadCodeAnalyzer returns an analyzer positioned before the first
// instruction of a program.
func NewDeadCodeAnalyzer() *DeadCodeAnalyzer {
	return &DeadCodeAnalyzer{stack: []bool{false}}
}

// IsDead reports whether the cursor sits in dead code.
func (a *DeadCodeAnalyzer) IsDead() bool {
	return a.stack[len(a.stack)-1]
}

// Analyze advances the cursor past the given instruction.
func (a *DeadCodeAnalyzer) Analyze(instr il.Instruction) {
	op := instr.Op
	if op.IsBlockEnd() {
		a.stack = a.stack[:len(a.stack)-1]
	}
	if op.IsBlockStart() {
		a.stack = append(a.stack, false)
	} else if op.IsJump() {
		a.stack[len(a.stack)-1] = true
	}
}
