package iltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/il"
)

const sampleSource = `# seed: print a computed value
v0 <- LoadInt '41'
v1 <- LoadInt '1'
v2 <- Binary '+' v0 v1
v3 <- LoadBuiltin 'print'
v4 <- CallFunction v3 v2
`

func TestParseSample(t *testing.T) {
	p, err := Parse(sampleSource)
	require.NoError(t, err)
	require.Equal(t, 5, p.Size())

	assert.Equal(t, il.OpLoadInt, p.Code[0].Op)
	assert.Equal(t, il.IntAux(41), p.Code[0].Aux)
	assert.Equal(t, il.BinOpAux(il.Add), p.Code[2].Aux)
	assert.Equal(t, []il.Variable{0, 1}, p.Code[2].In)
	assert.Equal(t, []il.Variable{4}, p.Code[4].Out)
}

func TestParseBlocksAndMultiOutput(t *testing.T) {
	source := `v0, v1 <- BeginPlainFunction
v2 <- LoadInt '1'
v3 <- Binary '+' v1 v2
Return v3
EndPlainFunction
`
	p, err := Parse(source)
	require.NoError(t, err)
	assert.Equal(t, []il.Variable{0, 1}, p.Code[0].Out)
	assert.Equal(t, il.OpReturn, p.Code[3].Op)

	subrts := il.FindAllSubroutines(p.Code, 0)
	require.Len(t, subrts, 1)
}

func TestParseRejectsUnknownOpcode(t *testing.T) {
	_, err := Parse("v0 <- Frobnicate '1'\n")
	assert.Error(t, err)
}

func TestParseRejectsUnbalancedBlocks(t *testing.T) {
	_, err := Parse("BeginTry\n")
	assert.Error(t, err)
}

func TestParseRejectsBadPayload(t *testing.T) {
	_, err := Parse("v0 <- LoadInt 'abc'\n")
	assert.Error(t, err)
	_, err = Parse("v0 <- LoadNull 'x'\n")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	b := il.NewBuilder()
	c := b.LoadChecksumContainer()
	v := b.LoadInt(7)
	b.UpdateElement(c, 0, il.Xor, v)
	s := b.LoadString("hi")
	arr := b.CreateIntArray([]int64{1, 2, 3})
	b.CreateArray(s, arr)
	cond := b.LoadBool(true)
	b.BuildIf(cond, func(b *il.Builder) {
		b.Unary(cond, il.LogicalNot)
	})
	p, err := b.Finalize()
	require.NoError(t, err)

	text := Print(p)
	back, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, p.Size(), back.Size())
	for i := range p.Code {
		assert.Equal(t, p.Code[i].Op, back.Code[i].Op, "instruction %d", i)
		assert.Equal(t, p.Code[i].In, back.Code[i].In, "instruction %d", i)
		assert.Equal(t, p.Code[i].Out, back.Code[i].Out, "instruction %d", i)
		assert.Equal(t, p.Code[i].Aux, back.Code[i].Aux, "instruction %d", i)
	}
}
