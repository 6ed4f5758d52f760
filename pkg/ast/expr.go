package ast

// Expression is the closed sum of expression shapes the elaborator lowers.
// Every node carries its resolved type and source range; the external type
// checker guarantees both before the tree reaches us.
type Expression interface {
	Type() *Type
	Source() SourceRange
	exprNode()
}

type exprBase struct {
	typ   *Type
	src   SourceRange
	attrs []Attribute
}

func (e *exprBase) Type() *Type            { return e.typ }
func (e *exprBase) Source() SourceRange    { return e.src }
func (e *exprBase) Attributes() []Attribute { return e.attrs }
func (e *exprBase) SetSource(r SourceRange) { e.src = r }
func (e *exprBase) exprNode()              {}

// NamedValueExpr references a net, variable, parameter or formal argument.
type NamedValueExpr struct {
	exprBase
	Symbol ValueSymbol
}

// IntegerLiteral is a sized four-valued literal.
type IntegerLiteral struct {
	exprBase
	Value SVInt
}

// StringLiteral appears in $display argument lists.
type StringLiteral struct {
	exprBase
	Value string
}

type UnaryOperator int

const (
	UnaryPlus UnaryOperator = iota
	UnaryMinus
	UnaryBitwiseNot
	UnaryLogicalNot
	UnaryBitwiseAnd
	UnaryBitwiseOr
	UnaryBitwiseXor
	UnaryBitwiseNand
	UnaryBitwiseNor
	UnaryBitwiseXnor
)

type UnaryExpr struct {
	exprBase
	Op      UnaryOperator
	Operand Expression
}

type BinaryOperator int

const (
	BinaryAdd BinaryOperator = iota
	BinarySubtract
	BinaryMultiply
	BinaryDivide
	BinaryMod
	BinaryAnd
	BinaryOr
	BinaryXor
	BinaryXnor
	BinaryEquality
	BinaryInequality
	BinaryCaseEquality
	BinaryCaseInequality
	BinaryWildcardEquality
	BinaryWildcardInequality
	BinaryGreaterThanEqual
	BinaryGreaterThan
	BinaryLessThanEqual
	BinaryLessThan
	BinaryLogicalAnd
	BinaryLogicalOr
	BinaryLogicalImplication
	BinaryLogicalEquivalence
	BinaryLogicalShiftLeft
	BinaryLogicalShiftRight
	BinaryArithmeticShiftLeft
	BinaryArithmeticShiftRight
	BinaryPower
)

type BinaryExpr struct {
	exprBase
	Op    BinaryOperator
	Left  Expression
	Right Expression
}

// ConversionExpr adjusts width and signedness between integral types.
type ConversionExpr struct {
	exprBase
	Operand Expression
}

type RangeSelectionKind int

const (
	RangeSimple RangeSelectionKind = iota
	RangeIndexedUp
	RangeIndexedDown
)

// RangeSelectExpr selects value[left:right].
type RangeSelectExpr struct {
	exprBase
	SelectionKind RangeSelectionKind
	Value         Expression
	Left          Expression
	Right         Expression
}

// ElementSelectExpr selects value[selector].
type ElementSelectExpr struct {
	exprBase
	Value    Expression
	Selector Expression
}

// ConcatExpr concatenates operands, first operand most significant.
type ConcatExpr struct {
	exprBase
	Operands []Expression
}

// ReplicationExpr repeats a concatenation a constant number of times.
type ReplicationExpr struct {
	exprBase
	Count  Expression
	Concat Expression
}

// Condition is one guard of a conditional expression or statement; Pattern
// is non-nil only for pattern matching, which the elaborator rejects.
type Condition struct {
	Expr    Expression
	Pattern any
}

// ConditionalExpr is the ternary operator.
type ConditionalExpr struct {
	exprBase
	Conditions []Condition
	Left       Expression // value when the condition holds
	Right      Expression // value otherwise
}

// MemberAccessExpr reads a struct field.
type MemberAccessExpr struct {
	exprBase
	Value  Expression
	Member Symbol
}

// CallExpr covers both system calls ($signed, $display, ...) and user
// subroutine calls.
type CallExpr struct {
	exprBase
	System     bool
	Name       string
	Subroutine *SubroutineSymbol
	Arguments  []Expression
}

// SubroutineName is the callee name: the system-call name (with $) or the
// user subroutine's declared name.
func (e *CallExpr) SubroutineName() string {
	if e.System || e.Subroutine == nil {
		return e.Name
	}
	return e.Subroutine.Name()
}

// AssignmentExpr appears inside expression statements, continuous assigns
// and output-port binding shapes.
type AssignmentExpr struct {
	exprBase
	NonBlocking bool
	Left        Expression
	Right       Expression
}

func (e *AssignmentExpr) IsNonBlocking() bool { return e.NonBlocking }

// EmptyArgumentExpr marks the hollow right-hand side of an output port
// binding assignment.
type EmptyArgumentExpr struct {
	exprBase
}

// Constructors. The type argument is the checker-resolved result type.

func exprAt(typ *Type) exprBase { return exprBase{typ: typ} }

func NewNamedValue(sym ValueSymbol) *NamedValueExpr {
	return &NamedValueExpr{exprBase: exprAt(sym.ValueType()), Symbol: sym}
}

func NewIntegerLiteral(v SVInt) *IntegerLiteral {
	return &IntegerLiteral{exprBase: exprAt(LogicType(v.Width(), v.Signed)), Value: v}
}

func NewStringLiteral(s string) *StringLiteral {
	return &StringLiteral{exprBase: exprAt(&Type{Kind: TypeString}), Value: s}
}

func NewUnary(op UnaryOperator, operand Expression, typ *Type) *UnaryExpr {
	return &UnaryExpr{exprBase: exprAt(typ), Op: op, Operand: operand}
}

func NewBinary(op BinaryOperator, left, right Expression, typ *Type) *BinaryExpr {
	return &BinaryExpr{exprBase: exprAt(typ), Op: op, Left: left, Right: right}
}

func NewConversion(operand Expression, typ *Type) *ConversionExpr {
	return &ConversionExpr{exprBase: exprAt(typ), Operand: operand}
}

func NewRangeSelect(value, left, right Expression, typ *Type) *RangeSelectExpr {
	return &RangeSelectExpr{exprBase: exprAt(typ), SelectionKind: RangeSimple,
		Value: value, Left: left, Right: right}
}

func NewElementSelect(value, selector Expression, typ *Type) *ElementSelectExpr {
	return &ElementSelectExpr{exprBase: exprAt(typ), Value: value, Selector: selector}
}

func NewConcat(operands []Expression, typ *Type) *ConcatExpr {
	return &ConcatExpr{exprBase: exprAt(typ), Operands: operands}
}

func NewReplication(count, concat Expression, typ *Type) *ReplicationExpr {
	return &ReplicationExpr{exprBase: exprAt(typ), Count: count, Concat: concat}
}

func NewConditional(cond Expression, left, right Expression, typ *Type) *ConditionalExpr {
	return &ConditionalExpr{exprBase: exprAt(typ),
		Conditions: []Condition{{Expr: cond}}, Left: left, Right: right}
}

func NewMemberAccess(value Expression, member Symbol, typ *Type) *MemberAccessExpr {
	return &MemberAccessExpr{exprBase: exprAt(typ), Value: value, Member: member}
}

func NewSystemCall(name string, args []Expression, typ *Type) *CallExpr {
	return &CallExpr{exprBase: exprAt(typ), System: true, Name: name, Arguments: args}
}

func NewUserCall(subr *SubroutineSymbol, args []Expression) *CallExpr {
	var typ *Type
	if subr.ReturnValVar != nil {
		typ = subr.ReturnValVar.ValueType()
	}
	return &CallExpr{exprBase: exprAt(typ), Subroutine: subr, Arguments: args}
}

func NewAssignment(nonBlocking bool, left, right Expression) *AssignmentExpr {
	return &AssignmentExpr{exprBase: exprAt(left.Type()), NonBlocking: nonBlocking,
		Left: left, Right: right}
}

func NewEmptyArgument() *EmptyArgumentExpr {
	return &EmptyArgumentExpr{exprBase: exprAt(&Type{Kind: TypeVoid})}
}
