package analysis

import "jolt/internal/il"

// MayRecurse is the unbounded-recursion heuristic. For every subroutine
// definition it scans the body linearly, skipping nested subroutines; a
// self-invocation encountered before any return flags the program as
// potentially non-terminating. The heuristic deliberately over-approximates
// and is used only as a determinism pre-filter.
func MayRecurse(p *il.Program) bool {
	defs := make(map[il.Variable]int)
	for i, instr := range p.Code {
		for _, out := range instr.Out {
			defs[out] = i
		}
	}

	// Names bound to each variable via named-variable definitions or stores,
	// so that f = function(){...}; f() style self-calls are recognized.
	boundNames := make(map[il.Variable][]string)
	for _, instr := range p.Code {
		if instr.Op == il.OpDefineNamedVariable || instr.Op == il.OpStoreNamedVariable {
			name := string(instr.Aux.(il.NameAux))
			v := instr.Input(0)
			boundNames[v] = append(boundNames[v], name)
		}
	}

	for _, sub := range il.FindAllSubroutines(p.Code, -1) {
		if mayRecurseIn(p, sub, defs, boundNames) {
			return true
		}
	}
	return false
}

func mayRecurseIn(p *il.Program, sub il.Block, defs map[il.Variable]int, boundNames map[il.Variable][]string) bool {
	head := p.Code[sub.Head]
	fnVar := head.Output()

	methodName := ""
	if aux, ok := head.Aux.(il.MethodAux); ok {
		methodName = string(aux)
	}
	names := boundNames[fnVar]

	isGetter := head.Op.HasFamily(il.FamilyObjectLiteralGetter | il.FamilyClassGetter)
	isSetter := head.Op.HasFamily(il.FamilyObjectLiteralSetter | il.FamilyClassSetter)

	from, to := sub.Body()
	for i := from; i < to; i++ {
		instr := p.Code[i]
		op := instr.Op

		// Nested subroutines terminate at their own pace; skip them.
		if op.HasFamily(il.FamilyAnySubroutine) && op.IsBlockStart() {
			i = il.FindBlockEnd(p.Code, i)
			continue
		}

		if op == il.OpReturn {
			return false
		}

		if op.IsCall() && instr.NumInputs() > 0 {
			callee := instr.Input(0)
			if callee == fnVar {
				return true
			}
			if op == il.OpCallMethod && methodName != "" {
				if string(instr.Aux.(il.NameAux)) == methodName {
					return true
				}
			}
			if def, ok := defs[callee]; ok && p.Code[def].Op == il.OpLoadNamedVariable {
				loaded := string(p.Code[def].Aux.(il.NameAux))
				for _, n := range names {
					if n == loaded {
						return true
					}
				}
			}
		}

		// Accessors recurse through property access rather than calls.
		if isGetter && op == il.OpGetProperty && string(instr.Aux.(il.NameAux)) == methodName {
			return true
		}
		if isSetter && op == il.OpSetProperty && string(instr.Aux.(il.NameAux)) == methodName {
			return true
		}
	}
	return false
}
