package il

// The opcode universe is closed: every instruction the engine manipulates is
// one of the opcodes below. Structural predicates (block start/end, call,
// jump) and family membership are table-driven so mutators can classify
// instructions without switching on individual opcodes.

type Opcode uint8

const (
	OpNop Opcode = iota

	// Value loads
	OpLoadInt
	OpLoadBool
	OpLoadString
	OpLoadNull
	OpLoadUndefined
	OpLoadBuiltin
	OpLoadChecksumContainer

	// Object and array construction
	OpCreateArray
	OpCreateIntArray
	OpCreateObject

	// Element and property access
	OpGetElement
	OpSetElement
	OpUpdateElement
	OpGetProperty
	OpSetProperty
	OpGetComputedProperty
	OpSetComputedProperty
	OpConfigureProperty
	OpConfigureElement
	OpConfigureComputedProperty

	// Operations
	OpBinary
	OpCompare
	OpUnary

	// Calls
	OpCallFunction
	OpCallMethod
	OpConstruct
	OpEval

	// Named variables
	OpLoadNamedVariable
	OpStoreNamedVariable
	OpDefineNamedVariable

	// Control transfer inside blocks
	OpReturn
	OpThrowException
	OpBreak
	OpContinue
	OpAwait
	OpYield

	// Subroutine definitions
	OpBeginPlainFunction
	OpEndPlainFunction
	OpBeginArrowFunction
	OpEndArrowFunction
	OpBeginGeneratorFunction
	OpEndGeneratorFunction
	OpBeginAsyncFunction
	OpEndAsyncFunction
	OpBeginConstructor
	OpEndConstructor

	// Object literals
	OpBeginObjectLiteral
	OpEndObjectLiteral
	OpBeginObjectLiteralMethod
	OpEndObjectLiteralMethod
	OpBeginObjectLiteralComputedMethod
	OpEndObjectLiteralComputedMethod
	OpBeginObjectLiteralGetter
	OpEndObjectLiteralGetter
	OpBeginObjectLiteralSetter
	OpEndObjectLiteralSetter

	// Class definitions
	OpBeginClassDefinition
	OpEndClassDefinition
	OpBeginClassConstructor
	OpEndClassConstructor
	OpBeginClassMethod
	OpEndClassMethod
	OpBeginClassGetter
	OpEndClassGetter
	OpBeginClassSetter
	OpEndClassSetter
	OpBeginClassStaticInitializer
	OpEndClassStaticInitializer

	// Loops
	OpBeginRepeatLoop
	OpEndRepeatLoop
	OpBeginWhileLoop
	OpEndWhileLoop

	// Conditionals
	OpBeginIf
	OpBeginElse
	OpEndIf

	// Exception handling
	OpBeginTry
	OpBeginCatch
	OpBeginFinally
	OpEndTryCatchFinally

	// Code strings (eval payloads)
	OpBeginCodeString
	OpEndCodeString

	numOpcodes
)

// Family identifies groups of related opcodes that mutators treat uniformly.
// An opcode can belong to several families.
type Family uint32

const (
	FamilyAnySubroutine Family = 1 << iota
	FamilyPlainFunction
	FamilyArrowFunction
	FamilyGeneratorFunction
	FamilyAsyncFunction
	FamilyConstructor
	FamilyObjectLiteralMethod
	FamilyObjectLiteralGetter
	FamilyObjectLiteralSetter
	FamilyClassConstructor
	FamilyClassMethod
	FamilyClassGetter
	FamilyClassSetter
	FamilyClassStaticInitializer
	FamilyLoop
	FamilyTryCatch
)

type opFlags uint8

const (
	flagBlockStart opFlags = 1 << iota
	flagBlockEnd
	flagCall
	flagJump
)

type opInfo struct {
	name     string
	flags    opFlags
	families Family
}

const anySubrt = FamilyAnySubroutine

var opInfos = [numOpcodes]opInfo{
	OpNop:                       {name: "Nop"},
	OpLoadInt:                   {name: "LoadInt"},
	OpLoadBool:                  {name: "LoadBool"},
	OpLoadString:                {name: "LoadString"},
	OpLoadNull:                  {name: "LoadNull"},
	OpLoadUndefined:             {name: "LoadUndefined"},
	OpLoadBuiltin:               {name: "LoadBuiltin"},
	OpLoadChecksumContainer:     {name: "LoadChecksumContainer"},
	OpCreateArray:               {name: "CreateArray"},
	OpCreateIntArray:            {name: "CreateIntArray"},
	OpCreateObject:              {name: "CreateObject"},
	OpGetElement:                {name: "GetElement"},
	OpSetElement:                {name: "SetElement"},
	OpUpdateElement:             {name: "UpdateElement"},
	OpGetProperty:               {name: "GetProperty"},
	OpSetProperty:               {name: "SetProperty"},
	OpGetComputedProperty:       {name: "GetComputedProperty"},
	OpSetComputedProperty:       {name: "SetComputedProperty"},
	OpConfigureProperty:         {name: "ConfigureProperty"},
	OpConfigureElement:          {name: "ConfigureElement"},
	OpConfigureComputedProperty: {name: "ConfigureComputedProperty"},
	OpBinary:                    {name: "Binary"},
	OpCompare:                   {name: "Compare"},
	OpUnary:                     {name: "Unary"},
	OpCallFunction:              {name: "CallFunction", flags: flagCall},
	OpCallMethod:                {name: "CallMethod", flags: flagCall},
	OpConstruct:                 {name: "Construct", flags: flagCall},
	OpEval:                      {name: "Eval", flags: flagCall},
	OpLoadNamedVariable:         {name: "LoadNamedVariable"},
	OpStoreNamedVariable:        {name: "StoreNamedVariable"},
	OpDefineNamedVariable:       {name: "DefineNamedVariable"},
	OpReturn:                    {name: "Return", flags: flagJump},
	OpThrowException:            {name: "ThrowException", flags: flagJump},
	OpBreak:                     {name: "Break", flags: flagJump},
	OpContinue:                  {name: "Continue", flags: flagJump},
	OpAwait:                     {name: "Await"},
	OpYield:                     {name: "Yield"},

	OpBeginPlainFunction:     {name: "BeginPlainFunction", flags: flagBlockStart, families: anySubrt | FamilyPlainFunction},
	OpEndPlainFunction:       {name: "EndPlainFunction", flags: flagBlockEnd, families: anySubrt | FamilyPlainFunction},
	OpBeginArrowFunction:     {name: "BeginArrowFunction", flags: flagBlockStart, families: anySubrt | FamilyArrowFunction},
	OpEndArrowFunction:       {name: "EndArrowFunction", flags: flagBlockEnd, families: anySubrt | FamilyArrowFunction},
	OpBeginGeneratorFunction: {name: "BeginGeneratorFunction", flags: flagBlockStart, families: anySubrt | FamilyGeneratorFunction},
	OpEndGeneratorFunction:   {name: "EndGeneratorFunction", flags: flagBlockEnd, families: anySubrt | FamilyGeneratorFunction},
	OpBeginAsyncFunction:     {name: "BeginAsyncFunction", flags: flagBlockStart, families: anySubrt | FamilyAsyncFunction},
	OpEndAsyncFunction:       {name: "EndAsyncFunction", flags: flagBlockEnd, families: anySubrt | FamilyAsyncFunction},
	OpBeginConstructor:       {name: "BeginConstructor", flags: flagBlockStart, families: anySubrt | FamilyConstructor},
	OpEndConstructor:         {name: "EndConstructor", flags: flagBlockEnd, families: anySubrt | FamilyConstructor},

	OpBeginObjectLiteral:               {name: "BeginObjectLiteral", flags: flagBlockStart},
	OpEndObjectLiteral:                 {name: "EndObjectLiteral", flags: flagBlockEnd},
	OpBeginObjectLiteralMethod:         {name: "BeginObjectLiteralMethod", flags: flagBlockStart, families: anySubrt | FamilyObjectLiteralMethod},
	OpEndObjectLiteralMethod:           {name: "EndObjectLiteralMethod", flags: flagBlockEnd, families: anySubrt | FamilyObjectLiteralMethod},
	OpBeginObjectLiteralComputedMethod: {name: "BeginObjectLiteralComputedMethod", flags: flagBlockStart, families: anySubrt | FamilyObjectLiteralMethod},
	OpEndObjectLiteralComputedMethod:   {name: "EndObjectLiteralComputedMethod", flags: flagBlockEnd, families: anySubrt | FamilyObjectLiteralMethod},
	OpBeginObjectLiteralGetter:         {name: "BeginObjectLiteralGetter", flags: flagBlockStart, families: anySubrt | FamilyObjectLiteralGetter},
	OpEndObjectLiteralGetter:           {name: "EndObjectLiteralGetter", flags: flagBlockEnd, families: anySubrt | FamilyObjectLiteralGetter},
	OpBeginObjectLiteralSetter:         {name: "BeginObjectLiteralSetter", flags: flagBlockStart, families: anySubrt | FamilyObjectLiteralSetter},
	OpEndObjectLiteralSetter:           {name: "EndObjectLiteralSetter", flags: flagBlockEnd, families: anySubrt | FamilyObjectLiteralSetter},

	OpBeginClassDefinition:        {name: "BeginClassDefinition", flags: flagBlockStart},
	OpEndClassDefinition:          {name: "EndClassDefinition", flags: flagBlockEnd},
	OpBeginClassConstructor:       {name: "BeginClassConstructor", flags: flagBlockStart, families: anySubrt | FamilyClassConstructor},
	OpEndClassConstructor:         {name: "EndClassConstructor", flags: flagBlockEnd, families: anySubrt | FamilyClassConstructor},
	OpBeginClassMethod:            {name: "BeginClassMethod", flags: flagBlockStart, families: anySubrt | FamilyClassMethod},
	OpEndClassMethod:              {name: "EndClassMethod", flags: flagBlockEnd, families: anySubrt | FamilyClassMethod},
	OpBeginClassGetter:            {name: "BeginClassGetter", flags: flagBlockStart, families: anySubrt | FamilyClassGetter},
	OpEndClassGetter:              {name: "EndClassGetter", flags: flagBlockEnd, families: anySubrt | FamilyClassGetter},
	OpBeginClassSetter:            {name: "BeginClassSetter", flags: flagBlockStart, families: anySubrt | FamilyClassSetter},
	OpEndClassSetter:              {name: "EndClassSetter", flags: flagBlockEnd, families: anySubrt | FamilyClassSetter},
	OpBeginClassStaticInitializer: {name: "BeginClassStaticInitializer", flags: flagBlockStart, families: anySubrt | FamilyClassStaticInitializer},
	OpEndClassStaticInitializer:   {name: "EndClassStaticInitializer", flags: flagBlockEnd, families: anySubrt | FamilyClassStaticInitializer},

	OpBeginRepeatLoop: {name: "BeginRepeatLoop", flags: flagBlockStart, families: FamilyLoop},
	OpEndRepeatLoop:   {name: "EndRepeatLoop", flags: flagBlockEnd, families: FamilyLoop},
	OpBeginWhileLoop:  {name: "BeginWhileLoop", flags: flagBlockStart, families: FamilyLoop},
	OpEndWhileLoop:    {name: "EndWhileLoop", flags: flagBlockEnd, families: FamilyLoop},

	OpBeginIf:   {name: "BeginIf", flags: flagBlockStart},
	OpBeginElse: {name: "BeginElse", flags: flagBlockStart | flagBlockEnd},
	OpEndIf:     {name: "EndIf", flags: flagBlockEnd},

	OpBeginTry:           {name: "BeginTry", flags: flagBlockStart, families: FamilyTryCatch},
	OpBeginCatch:         {name: "BeginCatch", flags: flagBlockStart | flagBlockEnd, families: FamilyTryCatch},
	OpBeginFinally:       {name: "BeginFinally", flags: flagBlockStart | flagBlockEnd, families: FamilyTryCatch},
	OpEndTryCatchFinally: {name: "EndTryCatchFinally", flags: flagBlockEnd, families: FamilyTryCatch},

	OpBeginCodeString: {name: "BeginCodeString", flags: flagBlockStart},
	OpEndCodeString:   {name: "EndCodeString", flags: flagBlockEnd},
}

func (op Opcode) String() string {
	if op >= numOpcodes {
		return "InvalidOpcode"
	}
	return opInfos[op].name
}

// OpcodeByName resolves an opcode from its name, as used by the textual IL
// reader.
func OpcodeByName(name string) (Opcode, bool) {
	for op := Opcode(0); op < numOpcodes; op++ {
		if opInfos[op].name == name {
			return op, true
		}
	}
	return OpNop, false
}

// IsBlockStart reports whether the opcode opens a block. Arm separators such
// as BeginElse and BeginCatch both close the previous arm and open the next,
// so they report true for IsBlockStart and IsBlockEnd.
func (op Opcode) IsBlockStart() bool { return opInfos[op].flags&flagBlockStart != 0 }

// IsBlockEnd reports whether the opcode closes a block.
func (op Opcode) IsBlockEnd() bool { return opInfos[op].flags&flagBlockEnd != 0 }

// IsCall reports whether the opcode invokes a callee.
func (op Opcode) IsCall() bool { return opInfos[op].flags&flagCall != 0 }

// IsJump reports whether the opcode unconditionally transfers control out of
// the current straight-line region.
func (op Opcode) IsJump() bool { return opInfos[op].flags&flagJump != 0 }

// HasFamily reports membership in the given family.
func (op Opcode) HasFamily(f Family) bool { return opInfos[op].families&f != 0 }

// IsNamedVariableOp reports whether the opcode reads, writes or defines a
// named (non-SSA) variable.
func (op Opcode) IsNamedVariableOp() bool {
	return op == OpLoadNamedVariable || op == OpStoreNamedVariable || op == OpDefineNamedVariable
}

// IsConfigureOp reports whether the opcode installs a property descriptor.
func (op Opcode) IsConfigureOp() bool {
	return op == OpConfigureProperty || op == OpConfigureElement || op == OpConfigureComputedProperty
}

// BinaryOperator enumerates the binary operators available to Binary and
// UpdateElement instructions.
type BinaryOperator uint8

const (
	Add BinaryOperator = iota
	Sub
	Mul
	Div
	Mod
	BitAnd
	BitOr
	Xor
	LogicAnd
	LogicOr
	LShift
	RShift
	UnsignedRShift
)

var binaryOperatorTokens = [...]string{
	Add:            "+",
	Sub:            "-",
	Mul:            "*",
	Div:            "/",
	Mod:            "%",
	BitAnd:         "&",
	BitOr:          "|",
	Xor:            "^",
	LogicAnd:       "&&",
	LogicOr:        "||",
	LShift:         "<<",
	RShift:         ">>",
	UnsignedRShift: ">>>",
}

func (op BinaryOperator) Token() string { return binaryOperatorTokens[op] }

// Comparator enumerates comparison operators for Compare instructions.
type Comparator uint8

const (
	Equal Comparator = iota
	StrictEqual
	NotEqual
	StrictNotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

var comparatorTokens = [...]string{
	Equal:              "==",
	StrictEqual:        "===",
	NotEqual:           "!=",
	StrictNotEqual:     "!==",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
}

func (op Comparator) Token() string { return comparatorTokens[op] }

// UnaryOperator enumerates unary operators for Unary instructions.
type UnaryOperator uint8

const (
	LogicalNot UnaryOperator = iota
	Minus
	TypeOf
)

var unaryOperatorTokens = [...]string{
	LogicalNot: "!",
	Minus:      "-",
	TypeOf:     "typeof ",
}

func (op UnaryOperator) Token() string { return unaryOperatorTokens[op] }
