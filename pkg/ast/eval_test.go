package ast

import "testing"

func lit(width int, value int64) *IntegerLiteral {
	return NewIntegerLiteral(MakeSVInt(width, value, false))
}

func slit(width int, value int64) *IntegerLiteral {
	return NewIntegerLiteral(MakeSVInt(width, value, true))
}

func evalInt(t *testing.T, expr Expression) int64 {
	t.Helper()
	cv, ok := TryEval(expr)
	if !ok || !cv.IsInteger() {
		t.Fatalf("expression did not fold to an integer")
	}
	v, ok := cv.Integer().AsInt64()
	if !ok {
		t.Fatalf("folded value has undefined bits: %s", cv.Integer())
	}
	return v
}

func TestEvalBinaryArithmetic(t *testing.T) {
	ty := LogicType(8, false)
	if got := evalInt(t, NewBinary(BinaryAdd, lit(8, 200), lit(8, 100), ty)); got != 44 {
		t.Errorf("200+100 (mod 256) = %d, want 44", got)
	}
	if got := evalInt(t, NewBinary(BinaryMultiply, lit(8, 12), lit(8, 5), ty)); got != 60 {
		t.Errorf("12*5 = %d", got)
	}
	sty := LogicType(8, true)
	if got := evalInt(t, NewBinary(BinarySubtract, slit(8, 3), slit(8, 5), sty)); got != -2 {
		t.Errorf("3-5 signed = %d, want -2", got)
	}
}

func TestEvalDivByZeroIsX(t *testing.T) {
	ty := LogicType(8, false)
	cv, ok := TryEval(NewBinary(BinaryDivide, lit(8, 7), lit(8, 0), ty))
	if !ok {
		t.Fatal("division should still fold")
	}
	if cv.Integer().IsFullyDefined() {
		t.Error("division by zero should be all-x")
	}
}

func TestEvalComparisonsAndLogic(t *testing.T) {
	bit := LogicType(1, false)
	if got := evalInt(t, NewBinary(BinaryLessThan, lit(4, 3), lit(4, 9), bit)); got != 1 {
		t.Errorf("3<9 = %d", got)
	}
	if got := evalInt(t, NewBinary(BinaryLogicalAnd, lit(4, 3), lit(4, 0), bit)); got != 0 {
		t.Errorf("3&&0 = %d", got)
	}
	if got := evalInt(t, NewUnary(UnaryLogicalNot, lit(4, 0), bit)); got != 1 {
		t.Errorf("!0 = %d", got)
	}
	if got := evalInt(t, NewUnary(UnaryBitwiseXor, lit(4, 7), bit)); got != 1 {
		t.Errorf("^7 = %d", got)
	}
}

func TestEvalConditional(t *testing.T) {
	ty := LogicType(4, false)
	expr := NewConditional(lit(1, 1), lit(4, 10), lit(4, 5), ty)
	if got := evalInt(t, expr); got != 10 {
		t.Errorf("1 ? 10 : 5 = %d", got)
	}
	expr = NewConditional(lit(1, 0), lit(4, 10), lit(4, 5), ty)
	if got := evalInt(t, expr); got != 5 {
		t.Errorf("0 ? 10 : 5 = %d", got)
	}
	undef := NewIntegerLiteral(MakeAllX(1))
	if _, ok := TryEval(NewConditional(undef, lit(4, 10), lit(4, 5), ty)); ok {
		t.Error("x-condition should not fold")
	}
}

func TestEvalConcatReplication(t *testing.T) {
	ty4 := LogicType(4, false)
	// {2'b10, 2'b01} = 4'b1001
	expr := NewConcat([]Expression{lit(2, 2), lit(2, 1)}, ty4)
	if got := evalInt(t, expr); got != 9 {
		t.Errorf("concat = %d, want 9", got)
	}
	// {2{2'b01}} = 4'b0101
	repl := NewReplication(lit(8, 2), lit(2, 1), ty4)
	if got := evalInt(t, repl); got != 5 {
		t.Errorf("replication = %d, want 5", got)
	}
}

func TestEvalSelects(t *testing.T) {
	val := lit(8, 0xA5) // 1010_0101
	sel := NewRangeSelect(val, lit(8, 7), lit(8, 4), LogicType(4, false))
	if got := evalInt(t, sel); got != 0xA {
		t.Errorf("[7:4] = %#x, want 0xA", got)
	}

	parm := NewParameter("P", LogicType(8, false), lit(8, 0x5A))
	ref := NewNamedValue(parm)
	if got := evalInt(t, ref); got != 0x5A {
		t.Errorf("parameter = %#x", got)
	}
}

func TestEvalShifts(t *testing.T) {
	ty := LogicType(8, false)
	if got := evalInt(t, NewBinary(BinaryLogicalShiftLeft, lit(8, 3), lit(8, 2), ty)); got != 12 {
		t.Errorf("3<<2 = %d", got)
	}
	sty := LogicType(8, true)
	shr := NewBinary(BinaryArithmeticShiftRight, slit(8, -8), lit(8, 1), sty)
	if got := evalInt(t, shr); got != 0xFC {
		t.Errorf("-8>>>1 as bits = %#x, want 0xFC", got)
	}
}

func TestEvalRuntimeValuesDoNotFold(t *testing.T) {
	net := NewNet("n", LogicType(4, false))
	if _, ok := TryEval(NewNamedValue(net)); ok {
		t.Error("net reference must not fold")
	}
	expr := NewBinary(BinaryAdd, NewNamedValue(net), lit(4, 1), LogicType(4, false))
	if _, ok := TryEval(expr); ok {
		t.Error("expression over a net must not fold")
	}
}
