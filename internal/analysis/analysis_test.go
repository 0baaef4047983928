package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/il"
)

// contextAt sweeps the program and returns the current and aggregate
// contexts right after instruction index i.
func contextAt(p *il.Program, i int) (Context, Context) {
	a := NewContextAnalyzer()
	for n := 0; n <= i; n++ {
		a.Analyze(p.Code[n])
	}
	return a.Context(), a.Aggregate()
}

func TestContextTracksLoopsAndSubroutines(t *testing.T) {
	b := il.NewBuilder()
	b.BuildRepeatLoop(10, func(b *il.Builder, i il.Variable) {
		b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
			b.LoadInt(1)
		})
	})
	p, err := b.Finalize()
	require.NoError(t, err)

	// Inside the loop, before the function.
	cur, agg := contextAt(p, 0)
	assert.True(t, cur.Has(ContextJavaScript|ContextLoop))
	assert.True(t, agg.Has(ContextLoop))

	// Inside the function body: the current context resets the loop bit,
	// the aggregate keeps it.
	cur, agg = contextAt(p, 1)
	assert.True(t, cur.Has(ContextJavaScript|ContextSubroutine))
	assert.False(t, cur.Has(ContextLoop))
	assert.True(t, agg.Has(ContextLoop))

	// After the loop everything is restored.
	cur, _ = contextAt(p, p.Size()-1)
	assert.Equal(t, ContextJavaScript, cur)
}

func TestContextObjectLiteralAndMethods(t *testing.T) {
	code := []il.Instruction{
		{Op: il.OpBeginObjectLiteral, Out: []il.Variable{0}},
		{Op: il.OpBeginObjectLiteralMethod, Out: []il.Variable{1}, Aux: il.MethodAux("m")},
		{Op: il.OpLoadInt, Out: []il.Variable{2}, Aux: il.IntAux(1)},
		{Op: il.OpEndObjectLiteralMethod},
		{Op: il.OpEndObjectLiteral},
	}
	p := il.NewProgram(code)

	cur, _ := contextAt(p, 0)
	assert.True(t, cur.Has(ContextObjectLiteral))
	assert.False(t, cur.Has(ContextJavaScript), "literal bodies are not statement positions")

	cur, _ = contextAt(p, 1)
	assert.True(t, cur.Has(ContextJavaScript|ContextSubroutine|ContextMethod))
}

func TestDeadCodeAfterReturn(t *testing.T) {
	b := il.NewBuilder()
	b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		v := b.LoadInt(1)
		b.Return(v)
		b.LoadInt(2)
	})
	p, err := b.Finalize()
	require.NoError(t, err)

	a := NewDeadCodeAnalyzer()
	var deadAt []bool
	for _, instr := range p.Code {
		a.Analyze(instr)
		deadAt = append(deadAt, a.IsDead())
	}
	assert.False(t, deadAt[1], "before the return")
	assert.True(t, deadAt[2], "after the return")
	assert.True(t, deadAt[3], "still dead at the trailing load")
	assert.False(t, deadAt[4], "restored after the block closes")
}

func TestDefUseHigherOrderDetection(t *testing.T) {
	b := il.NewBuilder()
	direct := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {})
	passed := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {})
	b.CallFunction(direct, passed)
	p, err := b.Finalize()
	require.NoError(t, err)

	du := NewDefUse(p)
	assert.False(t, du.IsUsedAsCallArgument(p, direct), "callee position is not an argument")
	assert.True(t, du.IsUsedAsCallArgument(p, passed))
}

func TestDefUseUsers(t *testing.T) {
	b := il.NewBuilder()
	x := b.LoadInt(1)
	y := b.LoadInt(2)
	b.Binary(x, y, il.Add)
	b.Unary(x, il.Minus)
	p, err := b.Finalize()
	require.NoError(t, err)

	du := NewDefUse(p)
	assert.ElementsMatch(t, []int{2, 3}, du.Users(0))
	assert.ElementsMatch(t, []int{2}, du.Users(1))
	assert.Equal(t, 0, du.DefiningInstruction(x))
	assert.Equal(t, -1, du.DefiningInstruction(il.Variable(99)))
}

func TestMayRecurseDirectSelfCall(t *testing.T) {
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		f := b.LoadNamedVariable("f")
		b.CallFunction(f)
	})
	b.DefineNamedVariable("f", fn)
	p, err := b.Finalize()
	require.NoError(t, err)

	assert.True(t, MayRecurse(p))
}

func TestMayRecurseReturnBeforeCall(t *testing.T) {
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		v := b.LoadInt(1)
		b.Return(v)
		f := b.LoadNamedVariable("f")
		b.CallFunction(f)
	})
	b.DefineNamedVariable("f", fn)
	p, err := b.Finalize()
	require.NoError(t, err)

	assert.False(t, MayRecurse(p), "a return before the self-call clears the heuristic")
}

func TestMayRecurseSkipsNestedSubroutines(t *testing.T) {
	b := il.NewBuilder()
	outer := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
		// The nested function calls the outer one; neither body invokes its
		// own identity, so the heuristic stays quiet.
		inner := b.BuildPlainFunction(0, func(b *il.Builder, params []il.Variable) {
			f := b.LoadNamedVariable("outer")
			b.CallFunction(f)
		})
		b.Hide(inner)
		v := b.LoadInt(1)
		b.Return(v)
	})
	b.DefineNamedVariable("outer", outer)
	p, err := b.Finalize()
	require.NoError(t, err)

	assert.False(t, MayRecurse(p), "mutual recursion is outside the heuristic")
}

func TestMayRecurseMethodByName(t *testing.T) {
	code := []il.Instruction{
		{Op: il.OpBeginObjectLiteral, Out: []il.Variable{0}},
		{Op: il.OpBeginObjectLiteralMethod, Out: []il.Variable{1, 2}, Aux: il.MethodAux("spin")},
		{Op: il.OpCallMethod, In: []il.Variable{2}, Out: []il.Variable{3}, Aux: il.NameAux("spin")},
		{Op: il.OpEndObjectLiteralMethod},
		{Op: il.OpEndObjectLiteral},
	}
	p := il.NewProgram(code)
	assert.True(t, MayRecurse(p))
}

func TestMayRecurseCleanProgram(t *testing.T) {
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(1, func(b *il.Builder, params []il.Variable) {
		one := b.LoadInt(1)
		sum := b.Binary(params[0], one, il.Add)
		b.Return(sum)
	})
	arg := b.LoadInt(1)
	b.CallFunction(fn, arg)
	p, err := b.Finalize()
	require.NoError(t, err)

	assert.False(t, MayRecurse(p))
}
