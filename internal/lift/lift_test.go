package lift

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jolt/internal/il"
)

func TestLiftWrapsInWirePreamble(t *testing.T) {
	b := il.NewBuilder()
	a := b.LoadInt(1)
	p := b.LoadBuiltin("print")
	b.CallFunction(p, a)
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(script, "(function(__compat_global__){\n"))
	assert.Contains(t, script,
		"const __compat_out__ = ((__compat_global__)['console'] && (__compat_global__)['console'].log) || (__compat_global__)['print'];")
	assert.Contains(t, script, "const __compat_checksum__ = [0xAB0110, {}];")
	assert.Contains(t, script, `__compat_out__("Checksum: " + __compat_checksum__[0]);`)
	assert.True(t, strings.HasSuffix(script, "})(globalThis || global);\n"))
	assert.NotContains(t, script, "`", "no template strings in the frame")

	assert.Contains(t, script, "v0 = 1;")
	assert.Contains(t, script, "v1 = __compat_out__;")
	assert.Contains(t, script, "v2 = v1(v0);")
}

func TestLiftDeclaresNonBinderVariables(t *testing.T) {
	b := il.NewBuilder()
	cond := b.LoadBool(true)
	b.BuildIf(cond, func(b *il.Builder) {
		b.LoadInt(7)
	})
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)
	assert.Contains(t, script, "let v0, v1;",
		"definitions inside blocks must stay visible afterwards")
}

func TestLiftControlFlow(t *testing.T) {
	b := il.NewBuilder()
	fn := b.BuildPlainFunction(1, func(b *il.Builder, params []il.Variable) {
		b.BuildTryCatchFinally(
			func(b *il.Builder) {
				one := b.LoadInt(1)
				sum := b.Binary(params[0], one, il.Add)
				b.Return(sum)
			},
			func(b *il.Builder, e il.Variable) {},
			func(b *il.Builder) { b.LoadInt(0) })
	})
	arg := b.LoadInt(41)
	b.CallFunction(fn, arg)
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)
	assert.Contains(t, script, "v0 = function(v1) {")
	assert.Contains(t, script, "try {")
	assert.Contains(t, script, "} catch (")
	assert.Contains(t, script, "} finally {")
	assert.Contains(t, script, "return v3;")
}

func TestLiftRepeatLoopBindsCounter(t *testing.T) {
	b := il.NewBuilder()
	b.BuildRepeatLoop(921, func(b *il.Builder, i il.Variable) {
		one := b.LoadInt(1)
		b.Binary(i, one, il.Add)
	})
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)
	assert.Contains(t, script, "for (let v0 = 0; v0 < 921; v0++) {")
	assert.NotContains(t, script, "let v0,", "the loop counter is not pre-declared")
}

func TestLiftChecksumContainerAndUpdates(t *testing.T) {
	b := il.NewBuilder()
	c := b.LoadChecksumContainer()
	v := b.LoadInt(3)
	b.UpdateElement(c, 0, il.Xor, v)
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)
	assert.Contains(t, script, "v0 = __compat_checksum__;")
	assert.Contains(t, script, "v0[0] ^= v1;")
}

func TestLiftPropertyAccessForms(t *testing.T) {
	b := il.NewBuilder()
	obj := b.CreateObject()
	val := b.LoadInt(1)
	b.SetProperty(obj, "x", val)
	b.GetProperty(obj, "weird key")
	prog, err := b.Finalize()
	require.NoError(t, err)

	script, err := Lift(prog)
	require.NoError(t, err)
	assert.Contains(t, script, "v0.x = v1;")
	assert.Contains(t, script, `v0["weird key"]`)
}

func TestLiftRejectsMalformedPrograms(t *testing.T) {
	prog := il.NewProgram([]il.Instruction{{Op: il.OpBeginTry}})
	_, err := Lift(prog)
	assert.Error(t, err)
}
