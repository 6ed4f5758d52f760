package ast

import "strings"

// Attribute is one (* name = value *) annotation captured by the parser.
type Attribute struct {
	Name  string
	Value ConstantValue
}

// Symbol is the closed set of named design elements the elaborator visits.
type Symbol interface {
	Name() string
	Parent() Symbol
	SetParent(Symbol)
	Source() SourceRange
	Attributes() []Attribute
}

// symbolBase carries the bookkeeping shared by every symbol kind.
type symbolBase struct {
	name   string
	parent Symbol
	src    SourceRange
	attrs  []Attribute
}

func (s *symbolBase) Name() string            { return s.name }
func (s *symbolBase) Parent() Symbol          { return s.parent }
func (s *symbolBase) SetParent(p Symbol)      { s.parent = p }
func (s *symbolBase) Source() SourceRange     { return s.src }
func (s *symbolBase) Attributes() []Attribute { return s.attrs }
func (s *symbolBase) SetSource(r SourceRange) { s.src = r }
func (s *symbolBase) AddAttribute(a Attribute) {
	s.attrs = append(s.attrs, a)
}

// HierarchicalPath renders the dotted path of sym from the design root,
// skipping unnamed scopes.
func HierarchicalPath(sym Symbol) string {
	var parts []string
	for s := sym; s != nil; s = s.Parent() {
		if _, isRoot := s.(*RootSymbol); isRoot {
			break
		}
		// A body is addressed by its instance's name, not its definition name.
		if _, isBody := s.(*InstanceBodySymbol); isBody {
			continue
		}
		if name := s.Name(); name != "" {
			parts = append(parts, name)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// ValueSymbol is implemented by symbols that denote a run-time value:
// nets, variables, parameters and subroutine formal arguments.
type ValueSymbol interface {
	Symbol
	ValueType() *Type
	Initializer() Expression
}

// RootSymbol is the design root holding the top-level instances.
type RootSymbol struct {
	symbolBase
	Members []Symbol
}

// InstanceSymbol is one module instantiation.
type InstanceSymbol struct {
	symbolBase
	Body            *InstanceBodySymbol
	PortConnections []*PortConnection
}

// IsModule reports whether the instance refers to a module (as opposed to
// an interface or program, which the elaborator rejects).
func (s *InstanceSymbol) IsModule() bool { return s.Body != nil }

// PortConnection binds one port of an instance to an argument expression.
// Output-shaped arguments arrive as an Assignment expression with an empty
// right-hand side, mirroring the upstream library.
type PortConnection struct {
	Port *PortSymbol
	Expr Expression
}

// InstanceBodySymbol is the elaborated body of one instance; its name is
// the definition name while its hierarchical path names the netlist module.
type InstanceBodySymbol struct {
	symbolBase
	Members []Symbol
}

// NewInstance wires an instance and its body together under a parent scope.
func NewInstance(name string, body *InstanceBodySymbol) *InstanceSymbol {
	inst := &InstanceSymbol{Body: body}
	inst.name = name
	body.SetParent(inst)
	return inst
}

type ArgumentDirection int

const (
	DirIn ArgumentDirection = iota
	DirOut
	DirInOut
	DirRef
)

// PortSymbol maps a module port onto its internal net or variable.
type PortSymbol struct {
	symbolBase
	Direction      ArgumentDirection
	InternalSymbol ValueSymbol
}

// NetSymbol is a net declaration, optionally with an initializer that
// lowers to a continuous connection.
type NetSymbol struct {
	symbolBase
	Type *Type
	Init Expression
}

func (s *NetSymbol) ValueType() *Type        { return s.Type }
func (s *NetSymbol) Initializer() Expression { return s.Init }

// VariableSymbol is a variable declaration; a constant initializer becomes
// the wire's init attribute.
type VariableSymbol struct {
	symbolBase
	Type *Type
	Init Expression
}

func (s *VariableSymbol) ValueType() *Type        { return s.Type }
func (s *VariableSymbol) Initializer() Expression { return s.Init }

// ParameterSymbol is an elaboration-time constant.
type ParameterSymbol struct {
	symbolBase
	Type *Type
	Init Expression
}

func (s *ParameterSymbol) ValueType() *Type        { return s.Type }
func (s *ParameterSymbol) Initializer() Expression { return s.Init }

// FormalArgumentSymbol is a subroutine input argument.
type FormalArgumentSymbol struct {
	symbolBase
	Type      *Type
	Direction ArgumentDirection
}

func (s *FormalArgumentSymbol) ValueType() *Type        { return s.Type }
func (s *FormalArgumentSymbol) Initializer() Expression { return nil }

// FieldSymbol is a packed struct member.
type FieldSymbol struct {
	symbolBase
	Type      *Type
	BitOffset int
	RandMode  RandMode
}

type RandMode int

const (
	RandNone RandMode = iota
	Rand
	RandC
)

// ContinuousAssignSymbol wraps one continuous assignment.
type ContinuousAssignSymbol struct {
	symbolBase
	Assignment *AssignmentExpr
}

type ProceduralBlockKind int

const (
	BlockAlways ProceduralBlockKind = iota
	BlockAlwaysComb
	BlockAlwaysLatch
	BlockAlwaysFF
	BlockInitial
	BlockFinal
)

// ProceduralBlockSymbol is one always/initial/final block.
type ProceduralBlockSymbol struct {
	symbolBase
	Kind ProceduralBlockKind
	Body Statement
}

// GenerateBlockSymbol is an (possibly uninstantiated) generate scope.
type GenerateBlockSymbol struct {
	symbolBase
	Uninstantiated bool
	Members        []Symbol
}

// StatementBlockSymbol is the scope a named begin/end block introduces.
type StatementBlockSymbol struct {
	symbolBase
	Members []Symbol
}

type SubroutineKind int

const (
	SubroutineFunction SubroutineKind = iota
	SubroutineTask
)

// SubroutineSymbol is a function or task declaration. Functions carry an
// implicit return-value variable the inliner stages through.
type SubroutineSymbol struct {
	symbolBase
	Kind         SubroutineKind
	Args         []*FormalArgumentSymbol
	Body         Statement
	ReturnValVar *VariableSymbol
}

// TransparentMemberSymbol re-exports an enum member or similar into an
// enclosing scope; it never lowers to anything.
type TransparentMemberSymbol struct {
	symbolBase
	Wrapped Symbol
}

// TypeAliasSymbol is a typedef; no netlist footprint.
type TypeAliasSymbol struct {
	symbolBase
	Target *Type
}

// NetTypeSymbol is a user-defined nettype declaration; no netlist footprint.
type NetTypeSymbol struct {
	symbolBase
}

// AddMember appends a child symbol to a body scope and sets its parent.
func (s *InstanceBodySymbol) AddMember(m Symbol) {
	m.SetParent(s)
	s.Members = append(s.Members, m)
}

func (s *RootSymbol) AddMember(m Symbol) {
	m.SetParent(s)
	s.Members = append(s.Members, m)
}

func (s *GenerateBlockSymbol) AddMember(m Symbol) {
	m.SetParent(s)
	s.Members = append(s.Members, m)
}

func (s *StatementBlockSymbol) AddMember(m Symbol) {
	m.SetParent(s)
	s.Members = append(s.Members, m)
}

// Constructors used by the driver's AST loader and by tests. The parser
// library these mirror builds the same shapes.

func NewRoot() *RootSymbol { return &RootSymbol{} }

func NewBody(defName string) *InstanceBodySymbol {
	b := &InstanceBodySymbol{}
	b.name = defName
	return b
}

func NewNet(name string, typ *Type) *NetSymbol {
	n := &NetSymbol{Type: typ}
	n.name = name
	return n
}

func NewVariable(name string, typ *Type) *VariableSymbol {
	v := &VariableSymbol{Type: typ}
	v.name = name
	return v
}

func NewParameter(name string, typ *Type, init Expression) *ParameterSymbol {
	p := &ParameterSymbol{Type: typ, Init: init}
	p.name = name
	return p
}

func NewFormalArgument(name string, typ *Type) *FormalArgumentSymbol {
	a := &FormalArgumentSymbol{Type: typ}
	a.name = name
	return a
}

func NewPort(name string, dir ArgumentDirection, internal ValueSymbol) *PortSymbol {
	p := &PortSymbol{Direction: dir, InternalSymbol: internal}
	p.name = name
	return p
}

func NewField(name string, typ *Type, bitOffset int) *FieldSymbol {
	f := &FieldSymbol{Type: typ, BitOffset: bitOffset}
	f.name = name
	return f
}

func NewContinuousAssign(assign *AssignmentExpr) *ContinuousAssignSymbol {
	return &ContinuousAssignSymbol{Assignment: assign}
}

func NewProceduralBlock(kind ProceduralBlockKind, body Statement) *ProceduralBlockSymbol {
	return &ProceduralBlockSymbol{Kind: kind, Body: body}
}

func NewSubroutine(name string, kind SubroutineKind, args []*FormalArgumentSymbol,
	body Statement, returnVar *VariableSymbol) *SubroutineSymbol {
	s := &SubroutineSymbol{Kind: kind, Args: args, Body: body, ReturnValVar: returnVar}
	s.name = name
	if returnVar != nil {
		returnVar.SetParent(s)
	}
	return s
}

func NewGenerateBlock(name string, uninstantiated bool) *GenerateBlockSymbol {
	g := &GenerateBlockSymbol{Uninstantiated: uninstantiated}
	g.name = name
	return g
}

func NewStatementBlock(name string) *StatementBlockSymbol {
	b := &StatementBlockSymbol{}
	b.name = name
	return b
}
