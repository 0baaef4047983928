package il

import "fmt"

// Variable identifies a value defined by an instruction. Variables are scoped
// to a single program; the builder hands them out in definition order.
type Variable int

// InvalidVariable is returned by lookups that found nothing.
const InvalidVariable Variable = -1

func (v Variable) String() string { return fmt.Sprintf("v%d", int(v)) }

// Aux is the optional attribute payload of an instruction. The concrete type
// depends on the opcode: LoadInt carries an IntAux, property accesses carry a
// NameAux, Binary carries a BinOpAux, and so on.
type Aux interface {
	auxString() string
}

// IntAux carries an integer literal or element index.
type IntAux int64

// BoolAux carries a boolean literal.
type BoolAux bool

// StringAux carries a string literal.
type StringAux string

// NameAux carries a property, builtin or named-variable name.
type NameAux string

// BinOpAux carries the operator of Binary instructions.
type BinOpAux BinaryOperator

// CmpOpAux carries the operator of Compare instructions.
type CmpOpAux Comparator

// UnOpAux carries the operator of Unary instructions.
type UnOpAux UnaryOperator

// ElemAux carries the element index and operator of UpdateElement.
type ElemAux struct {
	Index int64
	Op    BinaryOperator
}

// MethodAux carries the method or accessor name of subroutine definitions
// attached to object literals and classes.
type MethodAux string

// IntsAux carries the literal elements of CreateIntArray.
type IntsAux []int64

func (a IntAux) auxString() string    { return fmt.Sprintf("%d", int64(a)) }
func (a BoolAux) auxString() string   { return fmt.Sprintf("%t", bool(a)) }
func (a StringAux) auxString() string { return fmt.Sprintf("%q", string(a)) }
func (a NameAux) auxString() string   { return string(a) }
func (a BinOpAux) auxString() string  { return BinaryOperator(a).Token() }
func (a CmpOpAux) auxString() string  { return Comparator(a).Token() }
func (a UnOpAux) auxString() string   { return UnaryOperator(a).Token() }
func (a ElemAux) auxString() string   { return fmt.Sprintf("[%d] %s=", a.Index, a.Op.Token()) }
func (a MethodAux) auxString() string { return string(a) }
func (a IntsAux) auxString() string {
	s := "["
	for i, v := range a {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%d", v)
	}
	return s + "]"
}

// Instruction is one IL operation: an opcode, ordered inputs, ordered
// outputs, and an optional attribute payload. Instructions are value types;
// cloning one via Clone yields independent operand slices.
type Instruction struct {
	Op      Opcode
	In      []Variable
	Out     []Variable
	Aux     Aux
	Guarded bool
}

// NewInstruction assembles an instruction from its parts.
func NewInstruction(op Opcode, in, out []Variable, aux Aux) Instruction {
	return Instruction{Op: op, In: in, Out: out, Aux: aux}
}

// Input returns the n-th input variable.
func (i Instruction) Input(n int) Variable { return i.In[n] }

// Output returns the first output variable, or InvalidVariable when the
// instruction defines nothing.
func (i Instruction) Output() Variable {
	if len(i.Out) == 0 {
		return InvalidVariable
	}
	return i.Out[0]
}

// NumInputs returns the number of input operands.
func (i Instruction) NumInputs() int { return len(i.In) }

// NumOutputs returns the number of output operands.
func (i Instruction) NumOutputs() int { return len(i.Out) }

// Clone returns a copy with independent operand slices.
func (i Instruction) Clone() Instruction {
	c := i
	c.In = append([]Variable(nil), i.In...)
	c.Out = append([]Variable(nil), i.Out...)
	return c
}

// Uses reports whether v appears among the inputs.
func (i Instruction) Uses(v Variable) bool {
	for _, in := range i.In {
		if in == v {
			return true
		}
	}
	return false
}

// Defines reports whether v appears among the outputs.
func (i Instruction) Defines(v Variable) bool {
	for _, out := range i.Out {
		if out == v {
			return true
		}
	}
	return false
}

func (i Instruction) String() string {
	s := ""
	for n, out := range i.Out {
		if n > 0 {
			s += ", "
		}
		s += out.String()
	}
	if len(i.Out) > 0 {
		s += " <- "
	}
	s += i.Op.String()
	if i.Aux != nil {
		s += " '" + i.Aux.auxString() + "'"
	}
	for _, in := range i.In {
		s += " " + in.String()
	}
	if i.Guarded {
		s += " (guarded)"
	}
	return s
}
