package elaborate

import (
	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/builder"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

// ProcedureContext is the per-procedure mutable state threaded through
// r-value evaluation: blocking-assignment shadows and bound function
// arguments.
type ProcedureContext struct {
	// RValueSubs shadows wire bits by the temporaries blocking
	// assignments produced earlier in the same procedure.
	RValueSubs map[rtlil.SigBit]rtlil.SigBit

	// Args binds subroutine formal arguments during function inlining.
	Args map[ast.ValueSymbol]rtlil.SigSpec
}

func NewProcedureContext() *ProcedureContext {
	return &ProcedureContext{
		RValueSubs: make(map[rtlil.SigBit]rtlil.SigBit),
		Args:       make(map[ast.ValueSymbol]rtlil.SigSpec),
	}
}

// Evaluator lowers expressions onto one module.
type Evaluator struct {
	ctx *Context
	mod *rtlil.Module
	b   *builder.Builder
}

func NewEvaluator(ctx *Context, mod *rtlil.Module) *Evaluator {
	return &Evaluator{ctx: ctx, mod: mod, b: builder.New(mod)}
}

func (e *Evaluator) sm() *ast.SourceManager { return e.ctx.sm() }

// attachCellAttrs transfers a node's attributes onto every cell emitted
// since the recorded mark; folded results emit none.
func (e *Evaluator) attachCellAttrs(mark int, node any) {
	for _, cell := range e.mod.Cells[mark:] {
		e.ctx.transferAttrs(node, cell)
	}
}

// EvaluateLHS resolves an assignment target to existing wire bits. It
// never emits logic; every expression here must denote storage.
func (e *Evaluator) EvaluateLHS(expr ast.Expression) rtlil.SigSpec {
	var ret rtlil.SigSpec

	switch ex := expr.(type) {
	case *ast.NamedValueExpr:
		wire := e.mod.Wire(netID(ex.Symbol))
		if wire == nil {
			util.Error(e.sm(), expr.Source(), "no wire for symbol %s", ast.HierarchicalPath(ex.Symbol))
		}
		ret = rtlil.FromWire(wire)

	case *ast.RangeSelectExpr:
		util.Require(e.sm(), expr, expr.Source(), ex.SelectionKind == ast.RangeSimple, "simple range selection")
		left, lok := constIndex(ex.Left)
		right, rok := constIndex(ex.Right)
		util.Require(e.sm(), expr, expr.Source(), lok && rok, "range bounds are constant")
		inner := ex.Value.Type().Canonical()
		util.Require(e.sm(), expr, expr.Source(), inner.HasFixedRange(), "selected value has fixed range")
		rng := inner.FixedRange()
		rawLeft := rng.TranslateIndex(left)
		rawRight := rng.TranslateIndex(right)
		if inner.BitstreamWidth()%rng.Width() != 0 {
			util.Error(e.sm(), expr.Source(), "range width does not divide value width")
		}
		stride := inner.BitstreamWidth() / rng.Width()
		ret = e.EvaluateLHS(ex.Value).Extract(rawRight*stride, stride*(rawLeft-rawRight+1))

	case *ast.ConcatExpr:
		for _, op := range ex.Operands {
			ret = rtlil.S(e.EvaluateLHS(op), ret)
		}

	case *ast.ElementSelectExpr:
		idx, ok := constIndex(ex.Selector)
		util.Require(e.sm(), expr, expr.Source(), ok, "element selector is constant")
		inner := ex.Value.Type().Canonical()
		util.Require(e.sm(), expr, expr.Source(), inner.IsArray() && inner.HasFixedRange(), "fixed-range array")
		stride := expr.Type().BitstreamWidth()
		raw := inner.FixedRange().TranslateIndex(idx)
		ret = e.EvaluateLHS(ex.Value).Extract(stride*raw, stride)

	case *ast.MemberAccessExpr:
		field, ok := ex.Member.(*ast.FieldSymbol)
		util.Require(e.sm(), expr, expr.Source(), ok, "member is a struct field")
		util.Require(e.sm(), expr, expr.Source(), field.RandMode == ast.RandNone, "member is not randomized")
		return e.EvaluateLHS(ex.Value).Extract(field.BitOffset, expr.Type().BitstreamWidth())

	default:
		util.Unsupported(e.sm(), expr, expr.Source(), "")
	}

	if !expr.Type().IsFixedSize() || ret.Size() != expr.Type().BitstreamWidth() {
		util.Error(e.sm(), expr.Source(), "lvalue width %d does not match type width %d",
			ret.Size(), expr.Type().BitstreamWidth())
	}
	return ret
}

// constIndex folds an index expression to a machine integer.
func constIndex(expr ast.Expression) (int, bool) {
	cv, ok := ast.TryEval(expr)
	if !ok || !cv.IsInteger() {
		return 0, false
	}
	v, ok := cv.Integer().AsInt64()
	return int(v), ok
}

// translateIndex lowers a dynamic element-select index: the result is the
// zero-based slot number as an unsigned ceil-log2 value plus a validity
// bit covering the declared bounds.
func (e *Evaluator) translateIndex(idxExpr ast.Expression, rng ast.ConstantRange,
	pctx *ProcedureContext) (rtlil.SigSpec, rtlil.SigSpec) {

	idx := e.EvaluateRHS(idxExpr, pctx)
	idxSigned := idxExpr.Type().IsSigned()
	if !idxSigned {
		idx = idx.Append(rtlil.S(rtlil.S0))
		idxSigned = true
	}

	width := idx.Size()
	valid := e.b.LogicAnd(
		e.b.Le(idx, rtlil.FromConst(rtlil.NewConst(int64(rng.Upper()), width)), true),
		e.b.Ge(idx, rtlil.FromConst(rtlil.NewConst(int64(rng.Lower()), width)), true),
	)

	var rawIdx rtlil.SigSpec
	if rng.Left > rng.Right {
		rawIdx = e.b.Sub(idx, rtlil.FromConst(rtlil.NewConst(int64(rng.Right), width)), true)
	} else {
		rawIdx = e.b.Sub(rtlil.FromConst(rtlil.NewConst(int64(rng.Right), width)), idx, true)
	}
	rawIdx = rawIdx.ExtendU0(ceilLog2(rng.Width()), false)
	return rawIdx, valid
}

var binaryOpcodes = map[ast.BinaryOperator]string{
	ast.BinaryAdd:                  "add",
	ast.BinarySubtract:             "sub",
	ast.BinaryMultiply:             "mul",
	ast.BinaryDivide:               "divfloor",
	ast.BinaryMod:                  "mod",
	ast.BinaryAnd:                  "and",
	ast.BinaryOr:                   "or",
	ast.BinaryXor:                  "xor",
	ast.BinaryXnor:                 "xnor",
	ast.BinaryEquality:             "eq",
	ast.BinaryInequality:           "ne",
	ast.BinaryGreaterThanEqual:     "ge",
	ast.BinaryGreaterThan:          "gt",
	ast.BinaryLessThanEqual:        "le",
	ast.BinaryLessThan:             "lt",
	ast.BinaryLogicalAnd:           "logic_and",
	ast.BinaryLogicalOr:            "logic_or",
	ast.BinaryLogicalShiftLeft:     "sshl",
	ast.BinaryLogicalShiftRight:    "sshr",
	ast.BinaryArithmeticShiftLeft:  "shl",
	ast.BinaryArithmeticShiftRight: "shr",
	ast.BinaryPower:                "pow",
}

// EvaluateRHS lowers an expression to a bit vector, emitting cells as
// needed. Constant expressions fold through the AST evaluator first and
// cost nothing.
func (e *Evaluator) EvaluateRHS(expr ast.Expression, pctx *ProcedureContext) rtlil.SigSpec {
	var ret rtlil.SigSpec

	if cv, ok := ast.TryEval(expr); ok && cv.IsInteger() {
		ret = rtlil.FromConst(svintConst(cv.Integer()))
		return e.checkWidth(expr, ret)
	}

	switch ex := expr.(type) {
	case *ast.NamedValueExpr:
		switch sym := ex.Symbol.(type) {
		case *ast.NetSymbol, *ast.VariableSymbol:
			wire := e.mod.Wire(netID(sym))
			if wire == nil {
				util.Error(e.sm(), expr.Source(), "no wire for symbol %s", ast.HierarchicalPath(sym))
			}
			ret = rtlil.FromWire(wire)
			if pctx != nil {
				ret = ret.Replace(pctx.RValueSubs)
			}
		case *ast.ParameterSymbol:
			util.Require(e.sm(), expr, expr.Source(), sym.Init != nil, "parameter has initializer")
			cv, ok := ast.TryEval(sym.Init)
			util.Require(e.sm(), expr, expr.Source(), ok && cv.IsInteger(), "parameter folds to integer")
			ret = rtlil.FromConst(svintConst(cv.Integer().Extend(sym.Type.BitstreamWidth(), sym.Type.IsSigned())))
		case *ast.FormalArgumentSymbol:
			util.Require(e.sm(), expr, expr.Source(), pctx != nil, "formal argument inside procedure")
			bound, ok := pctx.Args[sym]
			util.Require(e.sm(), expr, expr.Source(), ok, "formal argument is bound")
			ret = bound
		default:
			util.Unsupported(e.sm(), expr, expr.Source(), "")
		}

	case *ast.UnaryExpr:
		ret = e.evaluateUnary(ex, pctx)

	case *ast.BinaryExpr:
		ret = e.evaluateBinary(ex, pctx)

	case *ast.ConversionExpr:
		from := ex.Operand.Type().Canonical()
		to := expr.Type().Canonical()
		util.Require(e.sm(), expr, expr.Source(), from.IsIntegral(), "conversion source is integral")
		util.Require(e.sm(), expr, expr.Source(), to.IsIntegral(), "conversion target is integral")
		util.Require(e.sm(), expr, expr.Source(),
			from.IsSigned() == to.IsSigned() || to.BitWidth() <= from.BitWidth(),
			"conversion keeps signedness or narrows")
		ret = e.EvaluateRHS(ex.Operand, pctx).ExtendU0(to.BitWidth(), to.IsSigned())

	case *ast.IntegerLiteral:
		ret = rtlil.FromConst(svintConst(ex.Value))

	case *ast.RangeSelectExpr:
		util.Require(e.sm(), expr, expr.Source(), ex.SelectionKind == ast.RangeSimple, "simple range selection")
		left, lok := constIndex(ex.Left)
		right, rok := constIndex(ex.Right)
		util.Require(e.sm(), expr, expr.Source(), lok && rok, "range bounds are constant")
		inner := ex.Value.Type().Canonical()
		util.Require(e.sm(), expr, expr.Source(), inner.HasFixedRange(), "selected value has fixed range")
		rng := inner.FixedRange()
		rawLeft := rng.TranslateIndex(left)
		rawRight := rng.TranslateIndex(right)
		if inner.BitstreamWidth()%rng.Width() != 0 {
			util.Error(e.sm(), expr.Source(), "range width does not divide value width")
		}
		stride := inner.BitstreamWidth() / rng.Width()
		ret = e.EvaluateRHS(ex.Value, pctx).Extract(rawRight*stride, stride*(rawLeft-rawRight+1))

	case *ast.ElementSelectExpr:
		inner := ex.Value.Type().Canonical()
		util.Require(e.sm(), expr, expr.Source(), inner.IsArray() && inner.HasFixedRange(), "fixed-range array")
		stride := expr.Type().BitstreamWidth()
		base := e.EvaluateRHS(ex.Value, pctx)
		if base.Size()%stride != 0 {
			util.Error(e.sm(), expr.Source(), "array width %d not divisible by element width %d",
				base.Size(), stride)
		}
		rawIdx, valid := e.translateIndex(ex.Selector, inner.FixedRange(), pctx)
		footprint := stride * (1 << rawIdx.Size())
		if footprint < base.Size() {
			util.Error(e.sm(), expr.Source(), "select footprint narrower than array")
		}
		base = base.Append(rtlil.FromConst(rtlil.RepeatState(rtlil.Sx, footprint-base.Size())))
		// Out-of-range reads produce X, guarded by the validity bit.
		ret = e.b.Mux(rtlil.FromConst(rtlil.RepeatState(rtlil.Sx, stride)),
			e.b.Bmux(base, rawIdx), valid)

	case *ast.ConcatExpr:
		for _, op := range ex.Operands {
			ret = rtlil.S(e.EvaluateRHS(op, pctx), ret)
		}

	case *ast.ConditionalExpr:
		util.Require(e.sm(), expr, expr.Source(), len(ex.Conditions) == 1, "single condition")
		util.Require(e.sm(), expr, expr.Source(), ex.Conditions[0].Pattern == nil, "no pattern matching")
		ret = e.b.Mux(
			e.EvaluateRHS(ex.Right, pctx),
			e.EvaluateRHS(ex.Left, pctx),
			e.b.ReduceBool(e.EvaluateRHS(ex.Conditions[0].Expr, pctx)),
		)

	case *ast.ReplicationExpr:
		count, ok := constIndex(ex.Count)
		util.Require(e.sm(), expr, expr.Source(), ok, "replication count is constant")
		concat := e.EvaluateRHS(ex.Concat, pctx)
		for i := 0; i < count; i++ {
			ret = ret.Append(concat)
		}

	case *ast.MemberAccessExpr:
		field, ok := ex.Member.(*ast.FieldSymbol)
		util.Require(e.sm(), expr, expr.Source(), ok, "member is a struct field")
		util.Require(e.sm(), expr, expr.Source(), field.RandMode == ast.RandNone, "member is not randomized")
		return e.EvaluateRHS(ex.Value, pctx).Extract(field.BitOffset, expr.Type().BitstreamWidth())

	case *ast.CallExpr:
		if ex.System {
			util.Require(e.sm(), expr, expr.Source(),
				ex.Name == "$signed" || ex.Name == "$unsigned", "supported system function")
			util.Require(e.sm(), expr, expr.Source(), len(ex.Arguments) == 1, "single argument")
			ret = e.EvaluateRHS(ex.Arguments[0], pctx)
		} else {
			subr := ex.Subroutine
			util.Require(e.sm(), expr, expr.Source(),
				subr != nil && subr.Kind == ast.SubroutineFunction, "callee is a function")
			return e.checkWidth(expr, e.evaluateFunction(ex, pctx))
		}

	default:
		util.Unsupported(e.sm(), expr, expr.Source(), "")
	}

	return e.checkWidth(expr, ret)
}

// checkWidth enforces the core width invariant: every result is exactly
// as wide as the expression's bitstream type.
func (e *Evaluator) checkWidth(expr ast.Expression, ret rtlil.SigSpec) rtlil.SigSpec {
	if !expr.Type().IsFixedSize() || ret.Size() != expr.Type().BitstreamWidth() {
		util.Error(e.sm(), expr.Source(), "expression lowered to %d bits, type says %d",
			ret.Size(), expr.Type().BitstreamWidth())
	}
	return ret
}

func (e *Evaluator) evaluateUnary(ex *ast.UnaryExpr, pctx *ProcedureContext) rtlil.SigSpec {
	operand := e.EvaluateRHS(ex.Operand, pctx)
	signed := ex.Operand.Type().IsSigned()
	width := ex.Type().BitstreamWidth()
	invert := false

	var op string
	switch ex.Op {
	case ast.UnaryLogicalNot:
		op = "logic_not"
	case ast.UnaryBitwiseNot:
		op = "not"
	case ast.UnaryPlus:
		op = "pos"
	case ast.UnaryMinus:
		op = "neg"
	case ast.UnaryBitwiseOr:
		op = "reduce_or"
	case ast.UnaryBitwiseAnd:
		op = "reduce_and"
	case ast.UnaryBitwiseXor:
		op = "reduce_xor"
	case ast.UnaryBitwiseXnor:
		op = "reduce_xnor"
	case ast.UnaryBitwiseNand:
		op, invert = "reduce_and", true
	case ast.UnaryBitwiseNor:
		op, invert = "reduce_or", true
	default:
		util.Unsupported(e.sm(), ex, ex.Source(), "")
	}

	mark := len(e.mod.Cells)
	ret := e.b.Unop(op, operand, signed, width)
	if invert {
		ret = e.b.Unop("logic_not", ret, false, width)
	}
	e.attachCellAttrs(mark, ex)
	return ret
}

func (e *Evaluator) evaluateBinary(ex *ast.BinaryExpr, pctx *ProcedureContext) rtlil.SigSpec {
	left := e.EvaluateRHS(ex.Left, pctx)
	right := e.EvaluateRHS(ex.Right, pctx)

	op, ok := binaryOpcodes[ex.Op]
	if !ok {
		util.Unsupported(e.sm(), ex, ex.Source(), "")
	}

	aSigned := ex.Left.Type().IsSigned()
	bSigned := ex.Right.Type().IsSigned()

	// The IR's shift cells want specific sign flags regardless of the
	// operand types.
	switch op {
	case "shr":
		bSigned = false
	case "sshr", "sshl":
		aSigned, bSigned = false, false
	}

	mark := len(e.mod.Cells)
	ret := e.b.Biop(op, left, right, aSigned, bSigned, ex.Type().BitstreamWidth())
	e.attachCellAttrs(mark, ex)
	return ret
}
