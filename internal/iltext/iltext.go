// Package iltext reads and writes the textual IL form used for corpus files
// and debugging dumps. One instruction per line:
//
//	v0 <- LoadInt '42'
//	v1 <- LoadBuiltin 'print'
//	v2 <- CallFunction v1 v0
//
// Outputs precede the arrow, the attribute payload sits in single quotes
// after the opcode name, inputs follow.
package iltext

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"jolt/internal/il"
)

var ilLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "EOL", Pattern: `\n`},
	{Name: "Var", Pattern: `v[0-9]+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Aux", Pattern: `'[^']*'`},
	{Name: "Arrow", Pattern: `<-`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
})

type textFile struct {
	Lines []*textLine `(@@? EOL)* @@?`
}

type textLine struct {
	Outs []string `(@Var (Comma @Var)* Arrow)?`
	Op   string   `@Ident`
	Aux  *string  `@Aux?`
	Ins  []string `@Var*`
}

var parser = participle.MustBuild[textFile](
	participle.Lexer(ilLexer),
	participle.Elide("Whitespace", "Comment"),
)

// Parse decodes a textual IL document into a program.
func Parse(source string) (*il.Program, error) {
	file, err := parser.ParseString("", source)
	if err != nil {
		return nil, fmt.Errorf("iltext: %w", err)
	}
	var code []il.Instruction
	for n, line := range file.Lines {
		instr, err := decodeLine(line)
		if err != nil {
			return nil, fmt.Errorf("iltext: line %d: %w", n+1, err)
		}
		code = append(code, instr)
	}
	if err := il.CheckWellFormed(code); err != nil {
		return nil, fmt.Errorf("iltext: %w", err)
	}
	return il.NewProgram(code), nil
}

func decodeLine(line *textLine) (il.Instruction, error) {
	op, ok := il.OpcodeByName(line.Op)
	if !ok {
		return il.Instruction{}, fmt.Errorf("unknown opcode %q", line.Op)
	}
	out, err := decodeVars(line.Outs)
	if err != nil {
		return il.Instruction{}, err
	}
	in, err := decodeVars(line.Ins)
	if err != nil {
		return il.Instruction{}, err
	}
	var auxText string
	if line.Aux != nil {
		auxText = strings.Trim(*line.Aux, "'")
	}
	aux, err := decodeAux(op, line.Aux != nil, auxText)
	if err != nil {
		return il.Instruction{}, err
	}
	return il.Instruction{Op: op, In: in, Out: out, Aux: aux}, nil
}

func decodeVars(names []string) ([]il.Variable, error) {
	if len(names) == 0 {
		return nil, nil
	}
	vars := make([]il.Variable, len(names))
	for i, name := range names {
		n, err := strconv.Atoi(name[1:])
		if err != nil {
			return nil, fmt.Errorf("bad variable %q", name)
		}
		vars[i] = il.Variable(n)
	}
	return vars, nil
}

func decodeAux(op il.Opcode, present bool, text string) (il.Aux, error) {
	switch op {
	case il.OpLoadInt, il.OpGetElement, il.OpSetElement, il.OpConfigureElement, il.OpBeginRepeatLoop:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s needs an integer payload: %w", op, err)
		}
		return il.IntAux(n), nil
	case il.OpLoadBool:
		switch text {
		case "true":
			return il.BoolAux(true), nil
		case "false":
			return il.BoolAux(false), nil
		}
		return nil, fmt.Errorf("%s needs 'true' or 'false'", op)
	case il.OpLoadString:
		return il.StringAux(text), nil
	case il.OpLoadBuiltin, il.OpGetProperty, il.OpSetProperty, il.OpConfigureProperty,
		il.OpCallMethod, il.OpLoadNamedVariable, il.OpStoreNamedVariable, il.OpDefineNamedVariable:
		return il.NameAux(text), nil
	case il.OpBeginObjectLiteralMethod, il.OpBeginObjectLiteralGetter, il.OpBeginObjectLiteralSetter,
		il.OpBeginClassMethod, il.OpBeginClassGetter, il.OpBeginClassSetter:
		return il.MethodAux(text), nil
	case il.OpBinary:
		b, err := binaryOperatorFromToken(text)
		if err != nil {
			return nil, err
		}
		return il.BinOpAux(b), nil
	case il.OpCompare:
		c, err := comparatorFromToken(text)
		if err != nil {
			return nil, err
		}
		return il.CmpOpAux(c), nil
	case il.OpUnary:
		u, err := unaryOperatorFromToken(text)
		if err != nil {
			return nil, err
		}
		return il.UnOpAux(u), nil
	case il.OpUpdateElement:
		// Payload form: 'index op', e.g. '0 +'.
		parts := strings.Fields(text)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s needs 'index operator'", op)
		}
		idx, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s index: %w", op, err)
		}
		b, err := binaryOperatorFromToken(parts[1])
		if err != nil {
			return nil, err
		}
		return il.ElemAux{Index: idx, Op: b}, nil
	case il.OpCreateIntArray:
		var elems []int64
		for _, part := range strings.Split(text, ",") {
			n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s element: %w", op, err)
			}
			elems = append(elems, n)
		}
		return il.IntsAux(elems), nil
	default:
		if present {
			return nil, fmt.Errorf("%s takes no payload", op)
		}
		return nil, nil
	}
}

var allBinaryOperators = []il.BinaryOperator{
	il.Add, il.Sub, il.Mul, il.Div, il.Mod, il.BitAnd, il.BitOr, il.Xor,
	il.LogicAnd, il.LogicOr, il.LShift, il.RShift, il.UnsignedRShift,
}

func binaryOperatorFromToken(tok string) (il.BinaryOperator, error) {
	for _, op := range allBinaryOperators {
		if op.Token() == tok {
			return op, nil
		}
	}
	return il.Add, fmt.Errorf("unknown binary operator %q", tok)
}

var allComparators = []il.Comparator{
	il.Equal, il.StrictEqual, il.NotEqual, il.StrictNotEqual,
	il.LessThan, il.LessThanOrEqual, il.GreaterThan, il.GreaterThanOrEqual,
}

func comparatorFromToken(tok string) (il.Comparator, error) {
	for _, op := range allComparators {
		if op.Token() == tok {
			return op, nil
		}
	}
	return il.Equal, fmt.Errorf("unknown comparator %q", tok)
}

var allUnaryOperators = []il.UnaryOperator{il.LogicalNot, il.Minus, il.TypeOf}

func unaryOperatorFromToken(tok string) (il.UnaryOperator, error) {
	for _, op := range allUnaryOperators {
		if strings.TrimSpace(op.Token()) == tok {
			return op, nil
		}
	}
	return il.LogicalNot, fmt.Errorf("unknown unary operator %q", tok)
}

// Print encodes a program in the textual IL form accepted by Parse.
func Print(p *il.Program) string {
	var sb strings.Builder
	for _, instr := range p.Code {
		printLine(&sb, instr)
	}
	return sb.String()
}

func printLine(sb *strings.Builder, instr il.Instruction) {
	for i, out := range instr.Out {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(out.String())
	}
	if len(instr.Out) > 0 {
		sb.WriteString(" <- ")
	}
	sb.WriteString(instr.Op.String())
	if aux := encodeAux(instr); aux != "" {
		fmt.Fprintf(sb, " '%s'", aux)
	}
	for _, in := range instr.In {
		sb.WriteByte(' ')
		sb.WriteString(in.String())
	}
	sb.WriteByte('\n')
}

func encodeAux(instr il.Instruction) string {
	switch aux := instr.Aux.(type) {
	case nil:
		return ""
	case il.IntAux:
		return strconv.FormatInt(int64(aux), 10)
	case il.BoolAux:
		return strconv.FormatBool(bool(aux))
	case il.StringAux:
		return string(aux)
	case il.NameAux:
		return string(aux)
	case il.MethodAux:
		return string(aux)
	case il.BinOpAux:
		return il.BinaryOperator(aux).Token()
	case il.CmpOpAux:
		return il.Comparator(aux).Token()
	case il.UnOpAux:
		return strings.TrimSpace(il.UnaryOperator(aux).Token())
	case il.ElemAux:
		return fmt.Sprintf("%d %s", aux.Index, aux.Op.Token())
	case il.IntsAux:
		parts := make([]string, len(aux))
		for i, n := range aux {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}
