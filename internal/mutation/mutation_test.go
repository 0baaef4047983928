package mutation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/il"
)

func testRNG() *rand.Rand { return rand.New(rand.NewSource(1)) }

func intProgram(t *testing.T, values ...int64) *il.Program {
	t.Helper()
	b := il.NewBuilder()
	for _, v := range values {
		b.LoadInt(v)
	}
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

func TestMutateInstructionsReplacesSampledSites(t *testing.T) {
	p := intProgram(t, 1, 2, 3)
	p.Contributors.Add("origin")

	out := MutateInstructions(p, testRNG(), "doubler", 3,
		func(ctx *SiteContext, i int, instr il.Instruction) bool {
			return instr.Op == il.OpLoadInt
		},
		func(b *il.Builder, instr il.Instruction) {
			v := b.AdoptAndDefine(instr.Output())
			b.Emit(il.Instruction{Op: il.OpLoadInt, Out: []il.Variable{v}, Aux: il.IntAux(int64(instr.Aux.(il.IntAux)) * 2)})
		})

	require.NotNil(t, out)
	assert.NotSame(t, p, out)
	for i, want := range []int64{2, 4, 6} {
		assert.Equal(t, il.IntAux(want), out.Code[i].Aux)
	}
	assert.ElementsMatch(t, []string{"origin", "doubler"}, out.Contributors.Names())
}

func TestMutateInstructionsNilWithoutCandidates(t *testing.T) {
	p := intProgram(t, 1)
	out := MutateInstructions(p, testRNG(), "m", 3,
		func(ctx *SiteContext, i int, instr il.Instruction) bool { return false },
		func(b *il.Builder, instr il.Instruction) {})
	assert.Nil(t, out)
}

func TestMutateInstructionsBoundsSimultaneousSites(t *testing.T) {
	p := intProgram(t, 1, 1, 1, 1, 1, 1)
	mutated := 0
	out := MutateInstructions(p, testRNG(), "m", 2,
		func(ctx *SiteContext, i int, instr il.Instruction) bool { return true },
		func(b *il.Builder, instr il.Instruction) {
			mutated++
			b.Adopt(instr)
		})
	require.NotNil(t, out)
	assert.Equal(t, 2, mutated)
	assert.Equal(t, p.Size(), out.Size())
}

func subroutineProgram(t *testing.T) *il.Program {
	t.Helper()
	b := il.NewBuilder()
	b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		b.LoadInt(1)
		b.LoadInt(2)
	})
	b.LoadInt(3)
	p, err := b.Finalize()
	require.NoError(t, err)
	return p
}

func TestMutateSubroutinesPassesBodyAndMask(t *testing.T) {
	p := subroutineProgram(t)

	var gotBody []il.Instruction
	var gotMask []bool
	out := MutateSubroutines(p, testRNG(), "m", 1,
		func(ctx *SiteContext, head, i int, instr il.Instruction) bool {
			return instr.Op == il.OpLoadInt
		},
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			gotBody = body
			gotMask = mask
			for _, instr := range body {
				b.Adopt(instr)
			}
		})

	require.NotNil(t, out)
	require.Len(t, gotBody, 4, "begin, two loads, end")
	require.Len(t, gotMask, 4)
	assert.False(t, gotMask[0])
	assert.True(t, gotMask[1])
	assert.True(t, gotMask[2])
	assert.False(t, gotMask[3])
	assert.True(t, out.Contributors.Contains("m"))
}

func TestMutateSubroutinesNilWithoutSubroutines(t *testing.T) {
	p := intProgram(t, 1, 2)
	out := MutateSubroutines(p, testRNG(), "m", 1,
		func(ctx *SiteContext, head, i int, instr il.Instruction) bool { return true },
		func(b *il.Builder, body []il.Instruction, mask []bool) {})
	assert.Nil(t, out)
}

func TestMutateSubroutinesSamplesOutmostOnly(t *testing.T) {
	b := il.NewBuilder()
	b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		b.BuildArrowFunction(0, func(b *il.Builder, params []il.Variable) {
			b.LoadInt(1)
		})
	})
	p, err := b.Finalize()
	require.NoError(t, err)

	var heads []il.Opcode
	out := MutateSubroutines(p, testRNG(), "m", 4,
		func(ctx *SiteContext, head, i int, instr il.Instruction) bool { return true },
		func(b *il.Builder, body []il.Instruction, mask []bool) {
			heads = append(heads, body[0].Op)
			for _, instr := range body {
				b.Adopt(instr)
			}
		})
	require.NotNil(t, out)
	assert.Equal(t, []il.Opcode{il.OpBeginPlainFunction}, heads,
		"nested subroutines belong to their outmost block")
}

func TestStatsAccumulate(t *testing.T) {
	var s Stats
	s.FailedToGenerate()
	s.FailedToGenerate()
	s.RecordAddedInstructions(5)
	s.RecordAddedInstructions(7)
	assert.Equal(t, int64(2), s.Failures())
	assert.Equal(t, int64(12), s.AddedInstructions())
}
