// Package gen produces small fresh code fragments for the mutators: neutral
// snippets with no externally observable effect, and argument values whose
// types either match or deliberately diverge from an existing call.
package gen

import (
	"math/rand"

	"jolt/internal/il"
)

// ValueType is the coarse runtime type the generators reason about when
// shaping call arguments.
type ValueType uint8

const (
	TypeInt ValueType = iota
	TypeBool
	TypeString
	TypeArray
	TypeObject
	TypeNull
	TypeUndefined
)

// NeutralSnippet emits roughly size instructions of computation on fresh
// variables only. Every defined variable is hidden so later emission cannot
// pick up a data dependency, and no instruction touches named state; the
// snippet is observably a no-op.
func NeutralSnippet(b *il.Builder, rng *rand.Rand, size int) {
	vars := []il.Variable{
		b.LoadInt(rng.Int63n(1 << 16)),
		b.LoadInt(rng.Int63n(1 << 16)),
	}
	for i := 2; i < size; i++ {
		var v il.Variable
		switch rng.Intn(5) {
		case 0:
			v = b.LoadInt(rng.Int63n(1 << 16))
		case 1:
			lhs := vars[rng.Intn(len(vars))]
			rhs := vars[rng.Intn(len(vars))]
			v = b.Binary(lhs, rhs, neutralBinaryOperator(rng))
		case 2:
			lhs := vars[rng.Intn(len(vars))]
			rhs := vars[rng.Intn(len(vars))]
			v = b.Compare(lhs, rhs, il.Comparator(rng.Intn(8)))
		case 3:
			v = b.Unary(vars[rng.Intn(len(vars))], il.LogicalNot)
		default:
			v = b.CreateArray(vars[rng.Intn(len(vars))])
		}
		vars = append(vars, v)
	}
	for _, v := range vars {
		b.Hide(v)
	}
}

// neutralBinaryOperator avoids division and modulo so the snippet cannot
// throw on its own.
func neutralBinaryOperator(rng *rand.Rand) il.BinaryOperator {
	ops := []il.BinaryOperator{il.Add, il.Sub, il.Mul, il.BitAnd, il.BitOr, il.Xor, il.LShift, il.RShift}
	return ops[rng.Intn(len(ops))]
}

// Value emits one value of the given type and returns its variable.
func Value(b *il.Builder, rng *rand.Rand, t ValueType) il.Variable {
	switch t {
	case TypeInt:
		return b.LoadInt(rng.Int63n(1 << 16))
	case TypeBool:
		return b.LoadBool(rng.Intn(2) == 0)
	case TypeString:
		return b.LoadString(randomString(rng))
	case TypeArray:
		return b.CreateIntArray([]int64{rng.Int63n(100), rng.Int63n(100), rng.Int63n(100)})
	case TypeObject:
		return b.CreateObject()
	case TypeNull:
		return b.LoadNull()
	default:
		return b.LoadUndefined()
	}
}

// Values emits n values of random simple types.
func Values(b *il.Builder, rng *rand.Rand, n int) []il.Variable {
	vs := make([]il.Variable, n)
	for i := range vs {
		vs[i] = Value(b, rng, ValueType(rng.Intn(4)))
	}
	return vs
}

// InferArgTypes infers the coarse type of each argument of a call
// instruction from the defining instructions in the program. Arguments with
// no recognizable definition default to TypeInt.
func InferArgTypes(p *il.Program, call il.Instruction) []ValueType {
	defs := make(map[il.Variable]il.Opcode)
	for _, instr := range p.Code {
		for _, out := range instr.Out {
			defs[out] = instr.Op
		}
	}
	args := call.In[1:]
	types := make([]ValueType, len(args))
	for i, arg := range args {
		switch defs[arg] {
		case il.OpLoadBool:
			types[i] = TypeBool
		case il.OpLoadString:
			types[i] = TypeString
		case il.OpCreateArray, il.OpCreateIntArray:
			types[i] = TypeArray
		case il.OpCreateObject:
			types[i] = TypeObject
		case il.OpLoadNull:
			types[i] = TypeNull
		case il.OpLoadUndefined:
			types[i] = TypeUndefined
		default:
			types[i] = TypeInt
		}
	}
	return types
}

// ValuesOfTypes emits one value per entry of types.
func ValuesOfTypes(b *il.Builder, rng *rand.Rand, types []ValueType) []il.Variable {
	vs := make([]il.Variable, len(types))
	for i, t := range types {
		vs[i] = Value(b, rng, t)
	}
	return vs
}

// DivergentTypes maps every type to a different one, for the
// de-optimization mutators that need arguments the JIT did not specialize
// on.
func DivergentTypes(types []ValueType) []ValueType {
	out := make([]ValueType, len(types))
	for i, t := range types {
		switch t {
		case TypeInt:
			out[i] = TypeString
		case TypeString:
			out[i] = TypeArray
		case TypeBool:
			out[i] = TypeObject
		case TypeArray:
			out[i] = TypeInt
		case TypeObject:
			out[i] = TypeString
		default:
			out[i] = TypeInt
		}
	}
	return out
}

func randomString(rng *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	n := 3 + rng.Intn(6)
	s := make([]byte, n)
	for i := range s {
		s[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(s)
}
