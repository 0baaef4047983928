package il

import (
	"fmt"
)

// Builder assembles programs instruction by instruction. It owns variable
// numbering, adoption of code from other programs, and the structured
// emission helpers for blocks. Body callbacks receive the builder explicitly
// so that nested emission never relies on captured mutable state.
type Builder struct {
	code         []Instruction
	numVariables int
	nameCounter  int
	contributors ContributorSet
	hidden       map[Variable]struct{}
	adoptions    []map[Variable]Variable
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		contributors: make(ContributorSet),
		hidden:       make(map[Variable]struct{}),
	}
}

func (b *Builder) nextVariable() Variable {
	v := Variable(b.numVariables)
	b.numVariables++
	return v
}

// FreshName returns a program-unique name with the given prefix, for named
// variables introduced by instrumentation.
func (b *Builder) FreshName(prefix string) string {
	n := fmt.Sprintf("%s%d", prefix, b.nameCounter)
	b.nameCounter++
	return n
}

// AddContributor records a mutator identity on the program being built.
func (b *Builder) AddContributor(name string) { b.contributors.Add(name) }

// AddContributors records every member of the given set.
func (b *Builder) AddContributors(s ContributorSet) {
	for n := range s {
		b.contributors.Add(n)
	}
}

// NumInstructions returns the number of instructions emitted so far.
func (b *Builder) NumInstructions() int { return len(b.code) }

// Emit appends an instruction whose operands are already builder variables.
func (b *Builder) Emit(instr Instruction) Instruction {
	b.code = append(b.code, instr)
	return instr
}

func (b *Builder) emit(op Opcode, in []Variable, numOutputs int, aux Aux) Instruction {
	var out []Variable
	for i := 0; i < numOutputs; i++ {
		out = append(out, b.nextVariable())
	}
	return b.Emit(Instruction{Op: op, In: in, Out: out, Aux: aux})
}

// Hide removes a variable from the set reported by VisibleVariables. Neutral
// code inserted by mutators hides its variables so later emission cannot
// create data dependencies on it.
func (b *Builder) Hide(v Variable) { b.hidden[v] = struct{}{} }

// VisibleVariables returns every defined variable that has not been hidden.
func (b *Builder) VisibleVariables() []Variable {
	var vs []Variable
	for i := 0; i < b.numVariables; i++ {
		if _, ok := b.hidden[Variable(i)]; !ok {
			vs = append(vs, Variable(i))
		}
	}
	return vs
}

// Adopting opens an adoption scope for code originating in the given
// program. Within the scope, Adopt translates that program's variables into
// builder variables, allocating fresh ones on first sight.
func (b *Builder) Adopting(from *Program, body func()) {
	b.adoptions = append(b.adoptions, make(map[Variable]Variable))
	body()
	b.adoptions = b.adoptions[:len(b.adoptions)-1]
}

func (b *Builder) currentAdoption() map[Variable]Variable {
	if len(b.adoptions) == 0 {
		panic("adopt outside of an Adopting scope")
	}
	return b.adoptions[len(b.adoptions)-1]
}

// AdoptVariable translates a source-program variable into the corresponding
// builder variable, allocating one if the variable has not been seen yet.
func (b *Builder) AdoptVariable(v Variable) Variable {
	m := b.currentAdoption()
	if mapped, ok := m[v]; ok {
		return mapped
	}
	mapped := b.nextVariable()
	m[v] = mapped
	return mapped
}

// AdoptAndDefine allocates a fresh builder variable and registers it as the
// adoption of the given source variable. Later adopted uses of v resolve to
// the returned variable.
func (b *Builder) AdoptAndDefine(v Variable) Variable {
	mapped := b.nextVariable()
	b.currentAdoption()[v] = mapped
	return mapped
}

// BindAdoption redirects the adoption of a source variable to an existing
// builder variable. Used when a mutator rebinds an instruction's output.
func (b *Builder) BindAdoption(src, dst Variable) {
	b.currentAdoption()[src] = dst
}

// Adopt translates the given source-program instruction into builder
// coordinates and appends it.
func (b *Builder) Adopt(instr Instruction) Instruction {
	var in, out []Variable
	for _, v := range instr.In {
		in = append(in, b.AdoptVariable(v))
	}
	for _, v := range instr.Out {
		out = append(out, b.AdoptVariable(v))
	}
	return b.Emit(Instruction{Op: instr.Op, In: in, Out: out, Aux: instr.Aux, Guarded: instr.Guarded})
}

// Append adopts an entire program.
func (b *Builder) Append(p *Program) {
	b.Adopting(p, func() {
		for _, instr := range p.Code {
			b.Adopt(instr)
		}
	})
}

// Replicate re-emits an instruction already in builder coordinates with
// fresh output variables, and returns the emitted copy.
func (b *Builder) Replicate(instr Instruction) Instruction {
	var out []Variable
	for i := 0; i < len(instr.Out); i++ {
		out = append(out, b.nextVariable())
	}
	return b.Emit(Instruction{
		Op:      instr.Op,
		In:      append([]Variable(nil), instr.In...),
		Out:     out,
		Aux:     instr.Aux,
		Guarded: instr.Guarded,
	})
}

// Finalize validates block nesting and returns the built program. The
// builder must not be reused afterwards.
func (b *Builder) Finalize() (*Program, error) {
	if err := CheckWellFormed(b.code); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	p := NewProgram(b.code)
	p.Contributors = b.contributors.Clone()
	b.code = nil
	return p, nil
}

// Value loads

func (b *Builder) LoadInt(value int64) Variable {
	return b.emit(OpLoadInt, nil, 1, IntAux(value)).Output()
}

func (b *Builder) LoadBool(value bool) Variable {
	return b.emit(OpLoadBool, nil, 1, BoolAux(value)).Output()
}

func (b *Builder) LoadString(value string) Variable {
	return b.emit(OpLoadString, nil, 1, StringAux(value)).Output()
}

func (b *Builder) LoadNull() Variable {
	return b.emit(OpLoadNull, nil, 1, nil).Output()
}

func (b *Builder) LoadUndefined() Variable {
	return b.emit(OpLoadUndefined, nil, 1, nil).Output()
}

func (b *Builder) LoadBuiltin(name string) Variable {
	return b.emit(OpLoadBuiltin, nil, 1, NameAux(name)).Output()
}

// LoadChecksumContainer loads the checksum container defined by the wire
// preamble. At most one such load may survive at instruction index 0; the
// checksum passes enforce that.
func (b *Builder) LoadChecksumContainer() Variable {
	return b.emit(OpLoadChecksumContainer, nil, 1, nil).Output()
}

// Object and array construction

func (b *Builder) CreateArray(elements ...Variable) Variable {
	return b.emit(OpCreateArray, elements, 1, nil).Output()
}

func (b *Builder) CreateIntArray(values []int64) Variable {
	return b.emit(OpCreateIntArray, nil, 1, IntsAux(values)).Output()
}

func (b *Builder) CreateObject() Variable {
	return b.emit(OpCreateObject, nil, 1, nil).Output()
}

// Element and property access

func (b *Builder) GetElement(obj Variable, index int64) Variable {
	return b.emit(OpGetElement, []Variable{obj}, 1, IntAux(index)).Output()
}

func (b *Builder) SetElement(obj Variable, index int64, value Variable) {
	b.emit(OpSetElement, []Variable{obj, value}, 0, IntAux(index))
}

// UpdateElement performs obj[index] op= value.
func (b *Builder) UpdateElement(obj Variable, index int64, op BinaryOperator, value Variable) {
	b.emit(OpUpdateElement, []Variable{obj, value}, 0, ElemAux{Index: index, Op: op})
}

func (b *Builder) GetProperty(obj Variable, name string) Variable {
	return b.emit(OpGetProperty, []Variable{obj}, 1, NameAux(name)).Output()
}

func (b *Builder) SetProperty(obj Variable, name string, value Variable) {
	b.emit(OpSetProperty, []Variable{obj, value}, 0, NameAux(name))
}

func (b *Builder) GetComputedProperty(obj, key Variable) Variable {
	return b.emit(OpGetComputedProperty, []Variable{obj, key}, 1, nil).Output()
}

func (b *Builder) SetComputedProperty(obj, key, value Variable) {
	b.emit(OpSetComputedProperty, []Variable{obj, key, value}, 0, nil)
}

func (b *Builder) ConfigureProperty(obj Variable, name string, value Variable) {
	b.emit(OpConfigureProperty, []Variable{obj, value}, 0, NameAux(name))
}

func (b *Builder) ConfigureElement(obj Variable, index int64, value Variable) {
	b.emit(OpConfigureElement, []Variable{obj, value}, 0, IntAux(index))
}

func (b *Builder) ConfigureComputedProperty(obj, key, value Variable) {
	b.emit(OpConfigureComputedProperty, []Variable{obj, key, value}, 0, nil)
}

// Operations

func (b *Builder) Binary(lhs, rhs Variable, op BinaryOperator) Variable {
	return b.emit(OpBinary, []Variable{lhs, rhs}, 1, BinOpAux(op)).Output()
}

func (b *Builder) Compare(lhs, rhs Variable, op Comparator) Variable {
	return b.emit(OpCompare, []Variable{lhs, rhs}, 1, CmpOpAux(op)).Output()
}

func (b *Builder) Unary(v Variable, op UnaryOperator) Variable {
	return b.emit(OpUnary, []Variable{v}, 1, UnOpAux(op)).Output()
}

// Calls

func (b *Builder) CallFunction(f Variable, args ...Variable) Variable {
	return b.emit(OpCallFunction, append([]Variable{f}, args...), 1, nil).Output()
}

func (b *Builder) CallMethod(obj Variable, name string, args ...Variable) Variable {
	return b.emit(OpCallMethod, append([]Variable{obj}, args...), 1, NameAux(name)).Output()
}

func (b *Builder) Construct(f Variable, args ...Variable) Variable {
	return b.emit(OpConstruct, append([]Variable{f}, args...), 1, nil).Output()
}

func (b *Builder) Eval(code Variable) Variable {
	return b.emit(OpEval, []Variable{code}, 1, nil).Output()
}

// Named variables

func (b *Builder) LoadNamedVariable(name string) Variable {
	return b.emit(OpLoadNamedVariable, nil, 1, NameAux(name)).Output()
}

func (b *Builder) StoreNamedVariable(name string, value Variable) {
	b.emit(OpStoreNamedVariable, []Variable{value}, 0, NameAux(name))
}

func (b *Builder) DefineNamedVariable(name string, value Variable) {
	b.emit(OpDefineNamedVariable, []Variable{value}, 0, NameAux(name))
}

// Control transfer

// Return emits a return, with at most one returned value.
func (b *Builder) Return(values ...Variable) {
	b.emit(OpReturn, values, 0, nil)
}

func (b *Builder) ThrowException(v Variable) {
	b.emit(OpThrowException, []Variable{v}, 0, nil)
}

func (b *Builder) Await(v Variable) Variable {
	return b.emit(OpAwait, []Variable{v}, 1, nil).Output()
}

func (b *Builder) Yield(v Variable) Variable {
	return b.emit(OpYield, []Variable{v}, 1, nil).Output()
}

// Structured blocks

// BuildIf emits if (cond) { body }.
func (b *Builder) BuildIf(cond Variable, body func(b *Builder)) {
	b.emit(OpBeginIf, []Variable{cond}, 0, nil)
	body(b)
	b.emit(OpEndIf, nil, 0, nil)
}

// BuildIfElse emits if (cond) { then } else { els }.
func (b *Builder) BuildIfElse(cond Variable, then, els func(b *Builder)) {
	b.emit(OpBeginIf, []Variable{cond}, 0, nil)
	then(b)
	b.emit(OpBeginElse, nil, 0, nil)
	els(b)
	b.emit(OpEndIf, nil, 0, nil)
}

// BuildTryCatchFinally emits a try block with optional catch and finally
// arms. At least one of the two must be present. The catch callback receives
// the caught exception.
func (b *Builder) BuildTryCatchFinally(try func(b *Builder), catch func(b *Builder, e Variable), finally func(b *Builder)) {
	if catch == nil && finally == nil {
		panic("try requires a catch or finally arm")
	}
	b.emit(OpBeginTry, nil, 0, nil)
	try(b)
	if catch != nil {
		instr := b.emit(OpBeginCatch, nil, 1, nil)
		catch(b, instr.Output())
	}
	if finally != nil {
		b.emit(OpBeginFinally, nil, 0, nil)
		finally(b)
	}
	b.emit(OpEndTryCatchFinally, nil, 0, nil)
}

// BuildRepeatLoop emits for (let i = 0; i < n; i++) { body }. The callback
// receives the loop counter.
func (b *Builder) BuildRepeatLoop(n int64, body func(b *Builder, i Variable)) {
	instr := b.emit(OpBeginRepeatLoop, nil, 1, IntAux(n))
	body(b, instr.Output())
	b.emit(OpEndRepeatLoop, nil, 0, nil)
}

// BuildWhileLoop emits while (cond) { body }.
func (b *Builder) BuildWhileLoop(cond Variable, body func(b *Builder)) {
	b.emit(OpBeginWhileLoop, []Variable{cond}, 0, nil)
	body(b)
	b.emit(OpEndWhileLoop, nil, 0, nil)
}

func (b *Builder) buildSubroutine(begin, end Opcode, params int, aux Aux, body func(b *Builder, params []Variable)) Variable {
	instr := b.emit(begin, nil, 1+params, aux)
	body(b, instr.Out[1:])
	b.emit(end, nil, 0, nil)
	return instr.Output()
}

// BuildPlainFunction emits a plain function definition with the given number
// of parameters and returns the function value. The body callback receives
// the parameter variables.
func (b *Builder) BuildPlainFunction(params int, body func(b *Builder, params []Variable)) Variable {
	return b.buildSubroutine(OpBeginPlainFunction, OpEndPlainFunction, params, nil, body)
}

// BuildArrowFunction emits an arrow function definition.
func (b *Builder) BuildArrowFunction(params int, body func(b *Builder, params []Variable)) Variable {
	return b.buildSubroutine(OpBeginArrowFunction, OpEndArrowFunction, params, nil, body)
}

// BuildGeneratorFunction emits a generator function definition.
func (b *Builder) BuildGeneratorFunction(params int, body func(b *Builder, params []Variable)) Variable {
	return b.buildSubroutine(OpBeginGeneratorFunction, OpEndGeneratorFunction, params, nil, body)
}

// BuildAsyncFunction emits an async function definition.
func (b *Builder) BuildAsyncFunction(params int, body func(b *Builder, params []Variable)) Variable {
	return b.buildSubroutine(OpBeginAsyncFunction, OpEndAsyncFunction, params, nil, body)
}
