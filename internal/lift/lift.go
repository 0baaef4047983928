// Package lift renders IL programs as JavaScript source wrapped in the wire
// preamble. The preamble resolves a print fallback, defines the checksum
// container, and prints the final checksum from a finally arm so that the
// output is observable even when control flow aborts.
package lift

import (
	"fmt"
	"strconv"
	"strings"

	"jolt/internal/il"
)

// The preamble frame around every lifted program. The names are fixed
// string literals and must not be mangled; the suffix avoids template
// strings for target engine compatibility.
const (
	preamblePrefix = `(function(__compat_global__){
  const __compat_out__ = ((__compat_global__)['console'] && (__compat_global__)['console'].log) || (__compat_global__)['print'];
  const __compat_checksum__ = [0xAB0110, {}];
  try {
`
	preambleSuffix = `  } finally {
    __compat_out__("Checksum: " + __compat_checksum__[0]);
  }
})(globalThis || global);
`
)

// Lift renders the program as JavaScript wrapped in the wire preamble.
func Lift(p *il.Program) (string, error) {
	if err := il.CheckWellFormed(p.Code); err != nil {
		return "", fmt.Errorf("lift: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(preamblePrefix)
	l := &lifter{sb: &sb, indent: 2}
	if err := l.liftRegion(p.Code); err != nil {
		return "", fmt.Errorf("lift: %w", err)
	}
	sb.WriteString(preambleSuffix)
	return sb.String(), nil
}

type lifter struct {
	sb     *strings.Builder
	indent int
}

func (l *lifter) line(format string, args ...any) {
	for i := 0; i < l.indent; i++ {
		l.sb.WriteString("  ")
	}
	fmt.Fprintf(l.sb, format, args...)
	l.sb.WriteByte('\n')
}

// liftRegion renders one instruction region. Variables that are not binders
// (parameters, loop counters, caught exceptions) are pre-declared with let
// so that definitions inside nested blocks stay visible afterwards.
func (l *lifter) liftRegion(code []il.Instruction) error {
	l.declare(code)
	for i := 0; i < len(code); i++ {
		instr := code[i]
		if instr.Op == il.OpBeginCodeString {
			end := il.FindBlockEnd(code, i)
			if err := l.liftCodeString(code, i, end); err != nil {
				return err
			}
			i = end
			continue
		}
		if err := l.liftInstruction(instr); err != nil {
			return err
		}
	}
	return nil
}

// declare emits let declarations for every variable defined in the region
// that is not a binder.
func (l *lifter) declare(code []il.Instruction) {
	binders := make(map[il.Variable]bool)
	var vars []il.Variable
	for i := 0; i < len(code); i++ {
		instr := code[i]
		op := instr.Op
		if op == il.OpBeginCodeString {
			// Code-string interiors declare their own variables.
			i = il.FindBlockEnd(code, i)
			vars = append(vars, instr.Output())
			continue
		}
		switch {
		case op.HasFamily(il.FamilyAnySubroutine) && op.IsBlockStart():
			// Parameters bind inside the body; the function value itself is
			// assigned in the surrounding scope.
			for _, p := range instr.Out[1:] {
				binders[p] = true
			}
		case op == il.OpBeginRepeatLoop, op == il.OpBeginCatch:
			for _, p := range instr.Out {
				binders[p] = true
			}
		}
		for _, out := range instr.Out {
			if !binders[out] {
				vars = append(vars, out)
			}
		}
	}
	for i := 0; i < len(vars); i += 16 {
		end := i + 16
		if end > len(vars) {
			end = len(vars)
		}
		names := make([]string, 0, 16)
		for _, v := range vars[i:end] {
			names = append(names, v.String())
		}
		l.line("let %s;", strings.Join(names, ", "))
	}
}

// liftCodeString lifts the interior of a code-string block with a fresh
// sub-lifter and assigns the resulting source text as a string literal.
func (l *lifter) liftCodeString(code []il.Instruction, head, tail int) error {
	var sb strings.Builder
	inner := &lifter{sb: &sb, indent: 0}
	if err := inner.liftRegion(code[head+1 : tail]); err != nil {
		return err
	}
	l.line("%s = %s;", code[head].Output(), strconv.Quote(sb.String()))
	return nil
}

func propertyAccess(obj il.Variable, name string) string {
	if isIdentifier(name) {
		return fmt.Sprintf("%s.%s", obj, name)
	}
	return fmt.Sprintf("%s[%s]", obj, strconv.Quote(name))
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		alpha := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !alpha && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func paramList(params []il.Variable) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}

func argList(args []il.Variable) string {
	return paramList(args)
}

func (l *lifter) liftInstruction(instr il.Instruction) error {
	out := instr.Output()
	switch instr.Op {
	case il.OpNop:
	case il.OpLoadInt:
		l.line("%s = %d;", out, int64(instr.Aux.(il.IntAux)))
	case il.OpLoadBool:
		l.line("%s = %t;", out, bool(instr.Aux.(il.BoolAux)))
	case il.OpLoadString:
		l.line("%s = %s;", out, strconv.Quote(string(instr.Aux.(il.StringAux))))
	case il.OpLoadNull:
		l.line("%s = null;", out)
	case il.OpLoadUndefined:
		l.line("%s = undefined;", out)
	case il.OpLoadBuiltin:
		name := string(instr.Aux.(il.NameAux))
		if name == "print" {
			name = "__compat_out__"
		}
		l.line("%s = %s;", out, name)
	case il.OpLoadChecksumContainer:
		l.line("%s = __compat_checksum__;", out)
	case il.OpCreateArray:
		l.line("%s = [%s];", out, argList(instr.In))
	case il.OpCreateIntArray:
		elems := instr.Aux.(il.IntsAux)
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = strconv.FormatInt(e, 10)
		}
		l.line("%s = [%s];", out, strings.Join(parts, ", "))
	case il.OpCreateObject:
		l.line("%s = {};", out)
	case il.OpGetElement:
		l.line("%s = %s[%d];", out, instr.Input(0), int64(instr.Aux.(il.IntAux)))
	case il.OpSetElement:
		l.line("%s[%d] = %s;", instr.Input(0), int64(instr.Aux.(il.IntAux)), instr.Input(1))
	case il.OpUpdateElement:
		aux := instr.Aux.(il.ElemAux)
		l.line("%s[%d] %s= %s;", instr.Input(0), aux.Index, aux.Op.Token(), instr.Input(1))
	case il.OpGetProperty:
		l.line("%s = %s;", out, propertyAccess(instr.Input(0), string(instr.Aux.(il.NameAux))))
	case il.OpSetProperty:
		l.line("%s = %s;", propertyAccess(instr.Input(0), string(instr.Aux.(il.NameAux))), instr.Input(1))
	case il.OpGetComputedProperty:
		l.line("%s = %s[%s];", out, instr.Input(0), instr.Input(1))
	case il.OpSetComputedProperty:
		l.line("%s[%s] = %s;", instr.Input(0), instr.Input(1), instr.Input(2))
	case il.OpConfigureProperty:
		l.line("Object.defineProperty(%s, %s, { configurable: true, enumerable: true, writable: true, value: %s });",
			instr.Input(0), strconv.Quote(string(instr.Aux.(il.NameAux))), instr.Input(1))
	case il.OpConfigureElement:
		l.line("Object.defineProperty(%s, %d, { configurable: true, enumerable: true, writable: true, value: %s });",
			instr.Input(0), int64(instr.Aux.(il.IntAux)), instr.Input(1))
	case il.OpConfigureComputedProperty:
		l.line("Object.defineProperty(%s, %s, { configurable: true, enumerable: true, writable: true, value: %s });",
			instr.Input(0), instr.Input(1), instr.Input(2))
	case il.OpBinary:
		l.line("%s = %s %s %s;", out, instr.Input(0), il.BinaryOperator(instr.Aux.(il.BinOpAux)).Token(), instr.Input(1))
	case il.OpCompare:
		l.line("%s = %s %s %s;", out, instr.Input(0), il.Comparator(instr.Aux.(il.CmpOpAux)).Token(), instr.Input(1))
	case il.OpUnary:
		l.line("%s = %s%s;", out, il.UnaryOperator(instr.Aux.(il.UnOpAux)).Token(), instr.Input(0))
	case il.OpCallFunction:
		l.line("%s = %s(%s);", out, instr.Input(0), argList(instr.In[1:]))
	case il.OpCallMethod:
		l.line("%s = %s(%s);", out, propertyAccess(instr.Input(0), string(instr.Aux.(il.NameAux))), argList(instr.In[1:]))
	case il.OpConstruct:
		l.line("%s = new %s(%s);", out, instr.Input(0), argList(instr.In[1:]))
	case il.OpEval:
		l.line("%s = eval(%s);", out, instr.Input(0))
	case il.OpLoadNamedVariable:
		l.line("%s = %s;", out, string(instr.Aux.(il.NameAux)))
	case il.OpStoreNamedVariable:
		l.line("%s = %s;", string(instr.Aux.(il.NameAux)), instr.Input(0))
	case il.OpDefineNamedVariable:
		l.line("let %s = %s;", string(instr.Aux.(il.NameAux)), instr.Input(0))
	case il.OpReturn:
		if instr.NumInputs() > 0 {
			l.line("return %s;", instr.Input(0))
		} else {
			l.line("return;")
		}
	case il.OpThrowException:
		l.line("throw %s;", instr.Input(0))
	case il.OpBreak:
		l.line("break;")
	case il.OpContinue:
		l.line("continue;")
	case il.OpAwait:
		l.line("%s = await %s;", out, instr.Input(0))
	case il.OpYield:
		l.line("%s = yield %s;", out, instr.Input(0))

	case il.OpBeginPlainFunction:
		l.line("%s = function(%s) {", out, paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginArrowFunction:
		l.line("%s = (%s) => {", out, paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginGeneratorFunction:
		l.line("%s = function*(%s) {", out, paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginAsyncFunction:
		l.line("%s = async function(%s) {", out, paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginConstructor:
		l.line("%s = function(%s) {", out, paramList(instr.Out[1:]))
		l.indent++
	case il.OpEndPlainFunction, il.OpEndArrowFunction, il.OpEndGeneratorFunction,
		il.OpEndAsyncFunction, il.OpEndConstructor:
		l.indent--
		l.line("};")

	case il.OpBeginObjectLiteral:
		l.line("%s = {", out)
		l.indent++
	case il.OpEndObjectLiteral:
		l.indent--
		l.line("};")
	case il.OpBeginObjectLiteralMethod:
		l.line("%s(%s) {", string(instr.Aux.(il.MethodAux)), paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginObjectLiteralComputedMethod:
		l.line("[%s](%s) {", instr.Input(0), paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginObjectLiteralGetter:
		l.line("get %s() {", string(instr.Aux.(il.MethodAux)))
		l.indent++
	case il.OpBeginObjectLiteralSetter:
		l.line("set %s(%s) {", string(instr.Aux.(il.MethodAux)), paramList(instr.Out[1:]))
		l.indent++
	case il.OpEndObjectLiteralMethod, il.OpEndObjectLiteralComputedMethod,
		il.OpEndObjectLiteralGetter, il.OpEndObjectLiteralSetter:
		l.indent--
		l.line("},")

	case il.OpBeginClassDefinition:
		l.line("%s = class {", out)
		l.indent++
	case il.OpEndClassDefinition:
		l.indent--
		l.line("};")
	case il.OpBeginClassConstructor:
		l.line("constructor(%s) {", paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginClassMethod:
		l.line("%s(%s) {", string(instr.Aux.(il.MethodAux)), paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginClassGetter:
		l.line("get %s() {", string(instr.Aux.(il.MethodAux)))
		l.indent++
	case il.OpBeginClassSetter:
		l.line("set %s(%s) {", string(instr.Aux.(il.MethodAux)), paramList(instr.Out[1:]))
		l.indent++
	case il.OpBeginClassStaticInitializer:
		l.line("static {")
		l.indent++
	case il.OpEndClassConstructor, il.OpEndClassMethod, il.OpEndClassGetter,
		il.OpEndClassSetter, il.OpEndClassStaticInitializer:
		l.indent--
		l.line("}")

	case il.OpBeginRepeatLoop:
		i := instr.Output()
		l.line("for (let %s = 0; %s < %d; %s++) {", i, i, int64(instr.Aux.(il.IntAux)), i)
		l.indent++
	case il.OpEndRepeatLoop:
		l.indent--
		l.line("}")
	case il.OpBeginWhileLoop:
		l.line("while (%s) {", instr.Input(0))
		l.indent++
	case il.OpEndWhileLoop:
		l.indent--
		l.line("}")

	case il.OpBeginIf:
		l.line("if (%s) {", instr.Input(0))
		l.indent++
	case il.OpBeginElse:
		l.indent--
		l.line("} else {")
		l.indent++
	case il.OpEndIf:
		l.indent--
		l.line("}")

	case il.OpBeginTry:
		l.line("try {")
		l.indent++
	case il.OpBeginCatch:
		l.indent--
		l.line("} catch (%s) {", instr.Output())
		l.indent++
	case il.OpBeginFinally:
		l.indent--
		l.line("} finally {")
		l.indent++
	case il.OpEndTryCatchFinally:
		l.indent--
		l.line("}")

	default:
		return fmt.Errorf("cannot lift opcode %s", instr.Op)
	}
	return nil
}
