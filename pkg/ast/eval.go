package ast

import "math/big"

// TryEval attempts compile-time evaluation of an expression. It returns
// ok=false whenever the expression depends on a run-time value or on
// undefined bits that the evaluator does not model; callers then fall back
// to emitting logic. Operands of arithmetic nodes are assumed pre-widened
// by the type checker (it inserts explicit conversions), so both sides of
// a binary node share the node's own width.
func TryEval(expr Expression) (ConstantValue, bool) {
	switch e := expr.(type) {
	case *IntegerLiteral:
		return IntegerValue(e.Value), true

	case *StringLiteral:
		return StringValue(e.Value), true

	case *NamedValueExpr:
		if p, ok := e.Symbol.(*ParameterSymbol); ok && p.Init != nil {
			cv, ok := TryEval(p.Init)
			if !ok || !cv.IsInteger() {
				return ConstantValue{}, false
			}
			return IntegerValue(cv.Integer().Extend(p.Type.BitstreamWidth(), p.Type.IsSigned())), true
		}
		return ConstantValue{}, false

	case *UnaryExpr:
		return evalUnary(e)

	case *BinaryExpr:
		return evalBinary(e)

	case *ConversionExpr:
		cv, ok := TryEval(e.Operand)
		if !ok || !cv.IsInteger() {
			return ConstantValue{}, false
		}
		to := e.Type().Canonical()
		return IntegerValue(cv.Integer().Extend(to.BitWidth(), to.IsSigned())), true

	case *ConcatExpr:
		var bits []Logic
		for i := len(e.Operands) - 1; i >= 0; i-- {
			cv, ok := TryEval(e.Operands[i])
			if !ok || !cv.IsInteger() {
				return ConstantValue{}, false
			}
			bits = append(bits, cv.Integer().Bits...)
		}
		return IntegerValue(SVInt{Bits: bits}), true

	case *ReplicationExpr:
		countv, ok := TryEval(e.Count)
		if !ok || !countv.IsInteger() {
			return ConstantValue{}, false
		}
		count, ok := countv.Integer().AsInt64()
		if !ok || count < 0 {
			return ConstantValue{}, false
		}
		inner, ok := TryEval(e.Concat)
		if !ok || !inner.IsInteger() {
			return ConstantValue{}, false
		}
		var bits []Logic
		for i := int64(0); i < count; i++ {
			bits = append(bits, inner.Integer().Bits...)
		}
		return IntegerValue(SVInt{Bits: bits}), true

	case *RangeSelectExpr:
		return evalRangeSelect(e)

	case *ElementSelectExpr:
		return evalElementSelect(e)

	case *ConditionalExpr:
		if len(e.Conditions) != 1 || e.Conditions[0].Pattern != nil {
			return ConstantValue{}, false
		}
		cond, ok := TryEval(e.Conditions[0].Expr)
		if !ok || !cond.IsInteger() {
			return ConstantValue{}, false
		}
		truth, known := reduceBool(cond.Integer())
		if !known {
			return ConstantValue{}, false
		}
		if truth {
			return TryEval(e.Left)
		}
		return TryEval(e.Right)

	case *MemberAccessExpr:
		field, ok := e.Member.(*FieldSymbol)
		if !ok {
			return ConstantValue{}, false
		}
		cv, ok := TryEval(e.Value)
		if !ok || !cv.IsInteger() {
			return ConstantValue{}, false
		}
		bits := cv.Integer().Bits
		w := e.Type().BitstreamWidth()
		if field.BitOffset+w > len(bits) {
			return ConstantValue{}, false
		}
		return IntegerValue(SVInt{Bits: bits[field.BitOffset : field.BitOffset+w]}), true

	case *CallExpr:
		if e.System && (e.Name == "$signed" || e.Name == "$unsigned") && len(e.Arguments) == 1 {
			cv, ok := TryEval(e.Arguments[0])
			if !ok || !cv.IsInteger() {
				return ConstantValue{}, false
			}
			v := cv.Integer()
			v.Signed = e.Name == "$signed"
			return IntegerValue(v), true
		}
		return ConstantValue{}, false
	}
	return ConstantValue{}, false
}

// reduceBool collapses a value to a truth bit; known=false when undefined
// bits leave the truth value open.
func reduceBool(v SVInt) (truth, known bool) {
	sawUndef := false
	for _, b := range v.Bits {
		switch b {
		case L1:
			return true, true
		case LX, LZ:
			sawUndef = true
		}
	}
	return false, !sawUndef
}

func evalUnary(e *UnaryExpr) (ConstantValue, bool) {
	cv, ok := TryEval(e.Operand)
	if !ok || !cv.IsInteger() {
		return ConstantValue{}, false
	}
	v := cv.Integer()
	width := e.Type().BitWidth()

	switch e.Op {
	case UnaryBitwiseNot:
		if !v.IsFullyDefined() {
			return IntegerValue(MakeAllX(width).Extend(width, false)), true
		}
		bits := make([]Logic, len(v.Bits))
		for i, b := range v.Bits {
			if b == L0 {
				bits[i] = L1
			}
		}
		return IntegerValue(SVInt{Bits: bits, Signed: v.Signed}.Extend(width, v.Signed)), true
	case UnaryPlus, UnaryMinus:
		b, defined := v.AsBig()
		if !defined {
			return IntegerValue(MakeAllX(width)), true
		}
		if e.Op == UnaryMinus {
			b.Neg(b)
		}
		return IntegerValue(FromBig(b, width, v.Signed)), true
	case UnaryLogicalNot:
		truth, known := reduceBool(v)
		if !known {
			return IntegerValue(MakeAllX(width)), true
		}
		return IntegerValue(boolConst(!truth, width)), true
	case UnaryBitwiseAnd, UnaryBitwiseOr, UnaryBitwiseXor, UnaryBitwiseNand,
		UnaryBitwiseNor, UnaryBitwiseXnor:
		if !v.IsFullyDefined() {
			return IntegerValue(MakeAllX(width)), true
		}
		ones := 0
		for _, b := range v.Bits {
			if b == L1 {
				ones++
			}
		}
		var res bool
		switch e.Op {
		case UnaryBitwiseAnd:
			res = ones == len(v.Bits)
		case UnaryBitwiseNand:
			res = ones != len(v.Bits)
		case UnaryBitwiseOr:
			res = ones > 0
		case UnaryBitwiseNor:
			res = ones == 0
		case UnaryBitwiseXor:
			res = ones%2 == 1
		case UnaryBitwiseXnor:
			res = ones%2 == 0
		}
		return IntegerValue(boolConst(res, width)), true
	}
	return ConstantValue{}, false
}

func boolConst(b bool, width int) SVInt {
	var v int64
	if b {
		v = 1
	}
	return MakeSVInt(width, v, false)
}

func evalBinary(e *BinaryExpr) (ConstantValue, bool) {
	lv, ok := TryEval(e.Left)
	if !ok || !lv.IsInteger() {
		return ConstantValue{}, false
	}
	rv, ok := TryEval(e.Right)
	if !ok || !rv.IsInteger() {
		return ConstantValue{}, false
	}
	l, r := lv.Integer(), rv.Integer()
	width := e.Type().BitWidth()

	lb, lok := l.AsBig()
	rb, rok := r.AsBig()
	if !lok || !rok {
		// Undefined operands poison the result; the netlist builder's own
		// folding handles the bitwise cases that survive X inputs.
		return IntegerValue(MakeAllX(width)), true
	}

	out := new(big.Int)
	switch e.Op {
	case BinaryAdd:
		out.Add(lb, rb)
	case BinarySubtract:
		out.Sub(lb, rb)
	case BinaryMultiply:
		out.Mul(lb, rb)
	case BinaryDivide:
		if rb.Sign() == 0 {
			return IntegerValue(MakeAllX(width)), true
		}
		out.Quo(lb, rb)
	case BinaryMod:
		if rb.Sign() == 0 {
			return IntegerValue(MakeAllX(width)), true
		}
		out.Rem(lb, rb)
	case BinaryAnd:
		out.And(normBig(lb, l), normBig(rb, r))
	case BinaryOr:
		out.Or(normBig(lb, l), normBig(rb, r))
	case BinaryXor:
		out.Xor(normBig(lb, l), normBig(rb, r))
	case BinaryXnor:
		out.Xor(normBig(lb, l), normBig(rb, r))
		out.Not(out)
	case BinaryEquality:
		return IntegerValue(boolConst(lb.Cmp(rb) == 0, width)), true
	case BinaryInequality:
		return IntegerValue(boolConst(lb.Cmp(rb) != 0, width)), true
	case BinaryLessThan:
		return IntegerValue(boolConst(lb.Cmp(rb) < 0, width)), true
	case BinaryLessThanEqual:
		return IntegerValue(boolConst(lb.Cmp(rb) <= 0, width)), true
	case BinaryGreaterThan:
		return IntegerValue(boolConst(lb.Cmp(rb) > 0, width)), true
	case BinaryGreaterThanEqual:
		return IntegerValue(boolConst(lb.Cmp(rb) >= 0, width)), true
	case BinaryLogicalAnd:
		return IntegerValue(boolConst(lb.Sign() != 0 && rb.Sign() != 0, width)), true
	case BinaryLogicalOr:
		return IntegerValue(boolConst(lb.Sign() != 0 || rb.Sign() != 0, width)), true
	case BinaryLogicalShiftLeft, BinaryArithmeticShiftLeft:
		sh, ok := shiftAmount(rb)
		if !ok {
			return IntegerValue(MakeAllX(width)), true
		}
		out.Lsh(lb, sh)
	case BinaryLogicalShiftRight:
		sh, ok := shiftAmount(rb)
		if !ok {
			return IntegerValue(MakeAllX(width)), true
		}
		out.Rsh(normBig(lb, l), sh)
	case BinaryArithmeticShiftRight:
		sh, ok := shiftAmount(rb)
		if !ok {
			return IntegerValue(MakeAllX(width)), true
		}
		if l.Signed {
			out.Rsh(lb, sh)
		} else {
			out.Rsh(normBig(lb, l), sh)
		}
	case BinaryPower:
		if rb.Sign() < 0 || !rb.IsInt64() || rb.Int64() > 1<<20 {
			return ConstantValue{}, false
		}
		out.Exp(lb, rb, nil)
	default:
		return ConstantValue{}, false
	}
	return IntegerValue(FromBig(out, width, l.Signed && r.Signed)), true
}

// normBig reinterprets a signed big value as its unsigned bit pattern so
// bitwise operators work on well-defined non-negative integers.
func normBig(b *big.Int, v SVInt) *big.Int {
	if b.Sign() >= 0 {
		return b
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(v.Width()))
	return new(big.Int).Add(b, mod)
}

func shiftAmount(b *big.Int) (uint, bool) {
	if b.Sign() < 0 || !b.IsInt64() || b.Int64() > 1<<24 {
		return 0, false
	}
	return uint(b.Int64()), true
}

func evalRangeSelect(e *RangeSelectExpr) (ConstantValue, bool) {
	if e.SelectionKind != RangeSimple {
		return ConstantValue{}, false
	}
	leftv, lok := evalToInt(e.Left)
	rightv, rok := evalToInt(e.Right)
	if !lok || !rok {
		return ConstantValue{}, false
	}
	inner := e.Value.Type().Canonical()
	if !inner.HasFixedRange() {
		return ConstantValue{}, false
	}
	cv, ok := TryEval(e.Value)
	if !ok {
		return ConstantValue{}, false
	}
	cv = cv.ConvertToInt()
	if !cv.IsInteger() {
		return ConstantValue{}, false
	}
	rng := inner.FixedRange()
	rawLeft := rng.TranslateIndex(int(leftv))
	rawRight := rng.TranslateIndex(int(rightv))
	stride := inner.BitstreamWidth() / rng.Width()
	bits := cv.Integer().Bits
	lo, hi := rawRight*stride, (rawLeft+1)*stride
	if lo < 0 || hi > len(bits) || lo > hi {
		return ConstantValue{}, false
	}
	return IntegerValue(SVInt{Bits: bits[lo:hi]}), true
}

func evalElementSelect(e *ElementSelectExpr) (ConstantValue, bool) {
	idx, ok := evalToInt(e.Selector)
	if !ok {
		return ConstantValue{}, false
	}
	inner := e.Value.Type().Canonical()
	if !inner.HasFixedRange() {
		return ConstantValue{}, false
	}
	cv, ok := TryEval(e.Value)
	if !ok || !cv.IsInteger() {
		return ConstantValue{}, false
	}
	rng := inner.FixedRange()
	stride := e.Type().BitstreamWidth()
	if !rng.ContainsIndex(int(idx)) {
		return IntegerValue(MakeAllX(stride)), true
	}
	raw := rng.TranslateIndex(int(idx))
	bits := cv.Integer().Bits
	lo := raw * stride
	if lo+stride > len(bits) {
		return ConstantValue{}, false
	}
	return IntegerValue(SVInt{Bits: bits[lo : lo+stride]}), true
}

// evalToInt folds an expression to a defined machine integer.
func evalToInt(expr Expression) (int64, bool) {
	cv, ok := TryEval(expr)
	if !ok || !cv.IsInteger() {
		return 0, false
	}
	return cv.Integer().AsInt64()
}
