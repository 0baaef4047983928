package il

import (
	"sort"

	"github.com/google/uuid"
)

// ContributorSet records the identities of the mutators that produced a
// program. The engine uses it to keep self-feedback loops out of the corpus.
type ContributorSet map[string]struct{}

// NewContributorSet builds a set from the given names.
func NewContributorSet(names ...string) ContributorSet {
	s := make(ContributorSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts a contributor name.
func (s ContributorSet) Add(name string) { s[name] = struct{}{} }

// Contains reports whether name is in the set.
func (s ContributorSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// ContainsAny reports whether any of the given names is in the set.
func (s ContributorSet) ContainsAny(names []string) bool {
	for _, n := range names {
		if s.Contains(n) {
			return true
		}
	}
	return false
}

// Union returns a new set holding both operands' members.
func (s ContributorSet) Union(other ContributorSet) ContributorSet {
	u := make(ContributorSet, len(s)+len(other))
	for n := range s {
		u[n] = struct{}{}
	}
	for n := range other {
		u[n] = struct{}{}
	}
	return u
}

// Clone returns an independent copy.
func (s ContributorSet) Clone() ContributorSet {
	return s.Union(nil)
}

// Names returns the members in sorted order.
func (s ContributorSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Program is an immutable ordered instruction sequence plus provenance
// metadata. Mutators never modify a program in place; they build a new one.
type Program struct {
	Code         []Instruction
	Contributors ContributorSet

	id uuid.UUID
}

// NewProgram wraps the given code in a fresh program with its own identity.
func NewProgram(code []Instruction) *Program {
	return &Program{
		Code:         code,
		Contributors: make(ContributorSet),
		id:           uuid.New(),
	}
}

// ID returns the program's identity, used as the execution cache key.
func (p *Program) ID() uuid.UUID { return p.id }

// Size returns the number of instructions.
func (p *Program) Size() int { return len(p.Code) }

func (p *Program) String() string {
	s := ""
	indent := 0
	for _, instr := range p.Code {
		if instr.Op.IsBlockEnd() && indent > 0 {
			indent--
		}
		for n := 0; n < indent; n++ {
			s += "    "
		}
		s += instr.String() + "\n"
		if instr.Op.IsBlockStart() {
			indent++
		}
	}
	return s
}
