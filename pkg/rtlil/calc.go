package rtlil

import "math/big"

// Constant evaluation for every primitive cell function. The semantics
// follow the netlist IR's reference evaluator: undefined inputs poison
// arithmetic entirely, while bitwise and reduction operators propagate
// X per bit.

func (c Const) extendU0(width int, signed bool) Const {
	bits := make([]State, width)
	var fill State
	if signed && len(c.Bits) > 0 {
		fill = c.Bits[len(c.Bits)-1]
	}
	for i := 0; i < width; i++ {
		if i < len(c.Bits) {
			bits[i] = c.Bits[i]
		} else {
			bits[i] = fill
		}
	}
	return Const{Bits: bits}
}

// asBig converts a fully-defined constant into a big integer.
func (c Const) asBig(signed bool) (*big.Int, bool) {
	if !c.IsFullyDef() {
		return nil, false
	}
	v := new(big.Int)
	for i := len(c.Bits) - 1; i >= 0; i-- {
		v.Lsh(v, 1)
		if c.Bits[i] == S1 {
			v.Or(v, big.NewInt(1))
		}
	}
	if signed && len(c.Bits) > 0 && c.Bits[len(c.Bits)-1] == S1 {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(c.Bits)))
		v.Sub(v, mod)
	}
	return v, true
}

func bigConst(v *big.Int, width int) Const {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(width))
	norm := new(big.Int).Mod(v, mod)
	if norm.Sign() < 0 {
		norm.Add(norm, mod)
	}
	bits := make([]State, width)
	for i := 0; i < width; i++ {
		if norm.Bit(i) == 1 {
			bits[i] = S1
		}
	}
	return Const{Bits: bits}
}

func defWidth(a, b Const) int {
	if len(a.Bits) > len(b.Bits) {
		return len(a.Bits)
	}
	return len(b.Bits)
}

type arithFunc func(a, b *big.Int) (*big.Int, bool)

func constArith(a, b Const, aSigned, bSigned bool, resultLen int, f arithFunc) Const {
	av, aok := a.asBig(aSigned)
	bv, bok := b.asBig(bSigned)
	if !aok || !bok {
		return RepeatState(Sx, resultLen)
	}
	res, ok := f(av, bv)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return bigConst(res, resultLen)
}

func ConstAdd(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		return new(big.Int).Add(x, y), true
	})
}

func ConstSub(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		return new(big.Int).Sub(x, y), true
	})
}

func ConstMul(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		return new(big.Int).Mul(x, y), true
	})
}

// ConstDiv is truncating division; division by zero is all-X.
func ConstDiv(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		if y.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Quo(x, y), true
	})
}

// ConstDivfloor rounds the quotient toward negative infinity.
func ConstDivfloor(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		if y.Sign() == 0 {
			return nil, false
		}
		q, r := new(big.Int).QuoRem(x, y, new(big.Int))
		if r.Sign() != 0 && (r.Sign() < 0) != (y.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return q, true
	})
}

// ConstMod keeps the dividend's sign (truncated modulo).
func ConstMod(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		if y.Sign() == 0 {
			return nil, false
		}
		return new(big.Int).Rem(x, y), true
	})
}

func ConstPow(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constArith(a, b, aSigned, bSigned, resultLen, func(x, y *big.Int) (*big.Int, bool) {
		if y.Sign() < 0 {
			switch {
			case x.CmpAbs(big.NewInt(1)) != 0:
				return big.NewInt(0), true
			case x.Sign() > 0:
				return big.NewInt(1), true
			default:
				// (-1)^-n alternates
				if new(big.Int).Abs(y).Bit(0) == 0 {
					return big.NewInt(1), true
				}
				return big.NewInt(-1), true
			}
		}
		if !y.IsInt64() || y.Int64() > 1<<20 {
			return nil, false
		}
		return new(big.Int).Exp(x, y, nil), true
	})
}

func andBit(x, y State) State {
	switch {
	case x == S0 || y == S0:
		return S0
	case x == S1 && y == S1:
		return S1
	default:
		return Sx
	}
}

func orBit(x, y State) State {
	switch {
	case x == S1 || y == S1:
		return S1
	case x == S0 && y == S0:
		return S0
	default:
		return Sx
	}
}

func xorBit(x, y State) State {
	if (x == S0 || x == S1) && (y == S0 || y == S1) {
		if x != y {
			return S1
		}
		return S0
	}
	return Sx
}

func notBit(x State) State {
	switch x {
	case S0:
		return S1
	case S1:
		return S0
	default:
		return Sx
	}
}

func constBitwise(a, b Const, aSigned, bSigned bool, resultLen int, f func(x, y State) State) Const {
	width := defWidth(a, b)
	ae := a.extendU0(width, aSigned)
	be := b.extendU0(width, bSigned)
	bits := make([]State, width)
	for i := 0; i < width; i++ {
		bits[i] = f(ae.Bits[i], be.Bits[i])
	}
	return Const{Bits: bits}.extendU0(resultLen, aSigned && bSigned)
}

func ConstAnd(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constBitwise(a, b, aSigned, bSigned, resultLen, andBit)
}

func ConstOr(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constBitwise(a, b, aSigned, bSigned, resultLen, orBit)
}

func ConstXor(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constBitwise(a, b, aSigned, bSigned, resultLen, xorBit)
}

func ConstXnor(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return constBitwise(a, b, aSigned, bSigned, resultLen, func(x, y State) State {
		return notBit(xorBit(x, y))
	})
}

func ConstNot(a Const, aSigned bool, resultLen int) Const {
	if resultLen < 0 {
		resultLen = len(a.Bits)
	}
	ae := a.extendU0(resultLen, aSigned)
	bits := make([]State, resultLen)
	for i := range bits {
		bits[i] = notBit(ae.Bits[i])
	}
	return Const{Bits: bits}
}

func ConstPos(a Const, aSigned bool, resultLen int) Const {
	return a.extendU0(resultLen, aSigned)
}

func ConstNeg(a Const, aSigned bool, resultLen int) Const {
	v, ok := a.asBig(aSigned)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return bigConst(new(big.Int).Neg(v), resultLen)
}

// boolState collapses a constant to its truth state.
func (c Const) boolState() State {
	sawUndef := false
	for _, b := range c.Bits {
		switch b {
		case S1:
			return S1
		case Sx, Sz:
			sawUndef = true
		}
	}
	if sawUndef {
		return Sx
	}
	return S0
}

func oneBit(s State, resultLen int) Const {
	out := RepeatState(S0, resultLen)
	if resultLen > 0 {
		out.Bits[0] = s
	}
	return out
}

func ConstReduceAnd(a Const, resultLen int) Const {
	res := S1
	for _, b := range a.Bits {
		res = andBit(res, b)
	}
	return oneBit(res, resultLen)
}

func ConstReduceOr(a Const, resultLen int) Const {
	res := S0
	for _, b := range a.Bits {
		res = orBit(res, b)
	}
	return oneBit(res, resultLen)
}

func ConstReduceXor(a Const, resultLen int) Const {
	res := S0
	for _, b := range a.Bits {
		res = xorBit(res, b)
	}
	return oneBit(res, resultLen)
}

func ConstReduceXnor(a Const, resultLen int) Const {
	res := ConstReduceXor(a, 1)
	return oneBit(notBit(res.Bits[0]), resultLen)
}

func ConstReduceBool(a Const, resultLen int) Const {
	return oneBit(a.boolState(), resultLen)
}

func ConstLogicNot(a Const, resultLen int) Const {
	if resultLen < 0 {
		resultLen = 1
	}
	return oneBit(notBit(a.boolState()), resultLen)
}

func ConstLogicAnd(a, b Const, resultLen int) Const {
	return oneBit(andBit(a.boolState(), b.boolState()), resultLen)
}

func ConstLogicOr(a, b Const, resultLen int) Const {
	return oneBit(orBit(a.boolState(), b.boolState()), resultLen)
}

// ConstEq yields 0 on any defined mismatch, X when undecided by undefined
// bits, 1 otherwise.
func ConstEq(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	width := defWidth(a, b)
	ae := a.extendU0(width, aSigned)
	be := b.extendU0(width, bSigned)
	res := S1
	for i := 0; i < width; i++ {
		res = andBit(res, notBit(xorBit(ae.Bits[i], be.Bits[i])))
	}
	return oneBit(res, resultLen)
}

func ConstNe(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	eq := ConstEq(a, b, aSigned, bSigned, 1)
	return oneBit(notBit(eq.Bits[0]), resultLen)
}

// ConstEqx is case equality: X and Z compare literally and the result is
// always defined.
func ConstEqx(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	width := defWidth(a, b)
	ae := a.extendU0(width, aSigned)
	be := b.extendU0(width, bSigned)
	for i := 0; i < width; i++ {
		if ae.Bits[i] != be.Bits[i] {
			return oneBit(S0, resultLen)
		}
	}
	return oneBit(S1, resultLen)
}

func ConstNex(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	eqx := ConstEqx(a, b, aSigned, bSigned, 1)
	return oneBit(notBit(eqx.Bits[0]), resultLen)
}

func constCompare(a, b Const, aSigned, bSigned bool) (int, bool) {
	signed := aSigned && bSigned
	av, aok := a.asBig(signed)
	bv, bok := b.asBig(signed)
	if !aok || !bok {
		return 0, false
	}
	return av.Cmp(bv), true
}

func ConstLt(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	cmp, ok := constCompare(a, b, aSigned, bSigned)
	if !ok {
		return oneBit(Sx, resultLen)
	}
	return oneBit(boolState(cmp < 0), resultLen)
}

func ConstLe(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	cmp, ok := constCompare(a, b, aSigned, bSigned)
	if !ok {
		return oneBit(Sx, resultLen)
	}
	return oneBit(boolState(cmp <= 0), resultLen)
}

func ConstGt(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	cmp, ok := constCompare(a, b, aSigned, bSigned)
	if !ok {
		return oneBit(Sx, resultLen)
	}
	return oneBit(boolState(cmp > 0), resultLen)
}

func ConstGe(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	cmp, ok := constCompare(a, b, aSigned, bSigned)
	if !ok {
		return oneBit(Sx, resultLen)
	}
	return oneBit(boolState(cmp >= 0), resultLen)
}

func boolState(b bool) State {
	if b {
		return S1
	}
	return S0
}

func constShiftWorker(a Const, aSigned bool, shift int, extendX bool, resultLen int) Const {
	bits := make([]State, resultLen)
	for i := 0; i < resultLen; i++ {
		j := i + shift
		switch {
		case j >= 0 && j < len(a.Bits):
			bits[i] = a.Bits[j]
		case j >= len(a.Bits) && aSigned:
			bits[i] = a.Bits[len(a.Bits)-1]
		case extendX:
			bits[i] = Sx
		default:
			bits[i] = S0
		}
	}
	return Const{Bits: bits}
}

func shiftCount(b Const, bSigned bool) (int, bool) {
	if !b.IsFullyDef() {
		return 0, false
	}
	v, ok := b.asBig(bSigned)
	if !ok || !v.IsInt64() {
		return 0, false
	}
	n := v.Int64()
	if n > 1<<24 || n < -(1<<24) {
		return 0, false
	}
	return int(n), true
}

// ConstShl shifts left; the shift count reads as unsigned.
func ConstShl(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	n, ok := shiftCount(b, false)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return constShiftWorker(a.extendU0(resultLen, aSigned), false, -n, false, resultLen)
}

// ConstShr shifts right filling with zeros.
func ConstShr(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	n, ok := shiftCount(b, false)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return constShiftWorker(a, false, n, false, resultLen)
}

func ConstSshl(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	return ConstShl(a, b, aSigned, bSigned, resultLen)
}

// ConstSshr shifts right preserving the sign bit when a is signed.
func ConstSshr(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	n, ok := shiftCount(b, false)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return constShiftWorker(a, aSigned, n, false, resultLen)
}

// ConstShift implements the bidirectional shifter: a negative (signed)
// count shifts left, a positive one right.
func ConstShift(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	n, ok := shiftCount(b, bSigned)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return constShiftWorker(a, aSigned, n, false, resultLen)
}

// ConstShiftx is like ConstShift but shifts in X instead of zeros.
func ConstShiftx(a, b Const, aSigned, bSigned bool, resultLen int) Const {
	n, ok := shiftCount(b, bSigned)
	if !ok {
		return RepeatState(Sx, resultLen)
	}
	return constShiftWorker(a, false, n, true, resultLen)
}

// binaryConstOps dispatches a cell opcode to its evaluation function.
var binaryConstOps = map[string]func(a, b Const, aSigned, bSigned bool, resultLen int) Const{
	"add":       ConstAdd,
	"sub":       ConstSub,
	"mul":       ConstMul,
	"div":       ConstDiv,
	"divfloor":  ConstDivfloor,
	"mod":       ConstMod,
	"pow":       ConstPow,
	"and":       ConstAnd,
	"or":        ConstOr,
	"xor":       ConstXor,
	"xnor":      ConstXnor,
	"eq":        ConstEq,
	"ne":        ConstNe,
	"eqx":       ConstEqx,
	"nex":       ConstNex,
	"lt":        ConstLt,
	"le":        ConstLe,
	"gt":        ConstGt,
	"ge":        ConstGe,
	"shl":       ConstShl,
	"shr":       ConstShr,
	"sshl":      ConstSshl,
	"sshr":      ConstSshr,
	"shift":     ConstShift,
	"shiftx":    ConstShiftx,
	"logic_and": func(a, b Const, _, _ bool, w int) Const { return ConstLogicAnd(a, b, w) },
	"logic_or":  func(a, b Const, _, _ bool, w int) Const { return ConstLogicOr(a, b, w) },
}

// EvalBinary evaluates a binary cell function on constants; ok=false for
// unknown opcodes.
func EvalBinary(op string, a, b Const, aSigned, bSigned bool, resultLen int) (Const, bool) {
	f, ok := binaryConstOps[op]
	if !ok {
		return Const{}, false
	}
	return f(a, b, aSigned, bSigned, resultLen), true
}

var unaryConstOps = map[string]func(a Const, aSigned bool, resultLen int) Const{
	"not":         ConstNot,
	"pos":         ConstPos,
	"neg":         ConstNeg,
	"logic_not":   func(a Const, _ bool, w int) Const { return ConstLogicNot(a, w) },
	"reduce_and":  func(a Const, _ bool, w int) Const { return ConstReduceAnd(a, w) },
	"reduce_or":   func(a Const, _ bool, w int) Const { return ConstReduceOr(a, w) },
	"reduce_xor":  func(a Const, _ bool, w int) Const { return ConstReduceXor(a, w) },
	"reduce_xnor": func(a Const, _ bool, w int) Const { return ConstReduceXnor(a, w) },
	"reduce_bool": func(a Const, _ bool, w int) Const { return ConstReduceBool(a, w) },
}

// EvalUnary evaluates a unary cell function on a constant.
func EvalUnary(op string, a Const, aSigned bool, resultLen int) (Const, bool) {
	f, ok := unaryConstOps[op]
	if !ok {
		return Const{}, false
	}
	return f(a, aSigned, resultLen), true
}
