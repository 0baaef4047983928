package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildNestedProgram returns a program with an if/else at the top level and
// a function containing a try/catch/finally.
func buildNestedProgram(t *testing.T) *Program {
	t.Helper()
	b := NewBuilder()
	cond := b.LoadBool(true)
	b.BuildIfElse(cond,
		func(b *Builder) { b.LoadInt(1) },
		func(b *Builder) { b.LoadInt(2) })
	b.BuildPlainFunction(1, func(b *Builder, params []Variable) {
		b.BuildTryCatchFinally(
			func(b *Builder) { b.LoadInt(3) },
			func(b *Builder, e Variable) {},
			func(b *Builder) { b.LoadInt(4) })
		b.Return(params[0])
	})
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

func TestFindBlockEndSkipsArmBoundaries(t *testing.T) {
	p := buildNestedProgram(t)

	// Instruction 1 is BeginIf; its end must be the EndIf, not the
	// intermediate BeginElse.
	assert.Equal(t, OpBeginIf, p.Code[1].Op)
	end := FindBlockEnd(p.Code, 1)
	assert.Equal(t, OpEndIf, p.Code[end].Op)
}

func TestFindBlockEndOverNestedArmBoundaries(t *testing.T) {
	p := buildNestedProgram(t)

	// The function body contains a try/catch/finally; its arm separators
	// must not be mistaken for the function end.
	var fnHead int
	for i, instr := range p.Code {
		if instr.Op == OpBeginPlainFunction {
			fnHead = i
		}
	}
	end := FindBlockEnd(p.Code, fnHead)
	assert.Equal(t, OpEndPlainFunction, p.Code[end].Op)
}

func TestFindBlockGroupCollectsArms(t *testing.T) {
	p := buildNestedProgram(t)

	g := FindBlockGroup(p.Code, 1)
	require.Len(t, g.BlockStarts, 2, "if/else group has two arms")
	assert.Equal(t, OpBeginIf, p.Code[g.BlockStarts[0]].Op)
	assert.Equal(t, OpBeginElse, p.Code[g.BlockStarts[1]].Op)

	// The try/catch/finally inside the function has three arms.
	var tryHead int
	for i, instr := range p.Code {
		if instr.Op == OpBeginTry {
			tryHead = i
		}
	}
	g = FindBlockGroup(p.Code, tryHead)
	require.Len(t, g.BlockStarts, 3)
	assert.Equal(t, OpBeginCatch, p.Code[g.BlockStarts[1]].Op)
	assert.Equal(t, OpBeginFinally, p.Code[g.BlockStarts[2]].Op)
	assert.Equal(t, OpEndTryCatchFinally, p.Code[g.Tail].Op)
}

func TestFindAllBlockGroupsAtDepth(t *testing.T) {
	p := buildNestedProgram(t)

	top := FindAllBlockGroups(p.Code, 0)
	require.Len(t, top, 2, "if group and function group at the top level")

	all := FindAllBlockGroups(p.Code, -1)
	assert.Len(t, all, 3, "if, function and try groups in total")
}

func TestFindAllSubroutines(t *testing.T) {
	b := NewBuilder()
	b.BuildPlainFunction(0, func(b *Builder, params []Variable) {
		b.BuildArrowFunction(0, func(b *Builder, params []Variable) {
			b.LoadInt(1)
		})
	})
	p, err := b.Finalize()
	require.NoError(t, err)

	outmost := FindAllSubroutines(p.Code, 0)
	require.Len(t, outmost, 1)
	assert.Equal(t, OpBeginPlainFunction, p.Code[outmost[0].Head].Op)

	all := FindAllSubroutines(p.Code, -1)
	assert.Len(t, all, 2)
}

func TestCheckWellFormed(t *testing.T) {
	p := buildNestedProgram(t)
	assert.NoError(t, CheckWellFormed(p.Code))

	unbalanced := []Instruction{
		{Op: OpBeginTry},
		{Op: OpLoadInt, Out: []Variable{0}, Aux: IntAux(1)},
	}
	assert.Error(t, CheckWellFormed(unbalanced))

	stray := []Instruction{{Op: OpEndIf}}
	assert.Error(t, CheckWellFormed(stray))
}
