// Package builder is a typed factory over a netlist module. Every
// constructor folds to a constant when its inputs allow, so downstream
// passes never see cells that a peephole evaluation could have removed.
package builder

import (
	"fmt"

	"github.com/xplshn/svrtl/pkg/rtlil"
)

// Builder emits cells onto its canvas module.
type Builder struct {
	Canvas *rtlil.Module
}

func New(canvas *rtlil.Module) *Builder { return &Builder{Canvas: canvas} }

func (b *Builder) freshWire(width int) rtlil.SigSpec {
	w := b.Canvas.AddWire(b.Canvas.NewID(""), width)
	return rtlil.FromWire(w)
}

// Biop emits a binary cell, unless the result is already decided: both
// operands constant, a comparison decided by three-valued carry analysis,
// or a logical and/or with a known-deciding operand.
func (b *Builder) Biop(op string, a, bb rtlil.SigSpec, aSigned, bSigned bool, yWidth int) rtlil.SigSpec {
	if a.IsFullyConst() && bb.IsFullyConst() {
		if res, ok := rtlil.EvalBinary(op, a.AsConst(), bb.AsConst(), aSigned, bSigned, yWidth); ok {
			return rtlil.FromConst(res)
		}
	}

	switch op {
	case "le", "lt", "gt", "ge":
		if !a.Empty() && !bb.Empty() {
			if res, ok := threeValuedCompare(op, a, bb, aSigned, bSigned); ok {
				if res {
					return rtlil.S(rtlil.S1).ExtendU0(yWidth, false)
				}
				return rtlil.FromConst(rtlil.RepeatState(rtlil.S0, yWidth))
			}
		}
	case "logic_and":
		if a.IsFullyZero() || bb.IsFullyZero() {
			return rtlil.FromConst(rtlil.RepeatState(rtlil.S0, yWidth))
		}
	case "logic_or":
		if (a.IsFullyConst() && a.AsBool()) || (bb.IsFullyConst() && bb.AsBool()) {
			return rtlil.S(rtlil.S1).ExtendU0(yWidth, false)
		}
	}

	cell := b.Canvas.AddCell("", op)
	cell.SetPort("A", a)
	cell.SetPort("B", bb)
	cell.SetParamInt("A_WIDTH", a.Size())
	cell.SetParamInt("B_WIDTH", bb.Size())
	cell.SetParamBool("A_SIGNED", aSigned)
	cell.SetParamBool("B_SIGNED", bSigned)
	cell.SetParamInt("Y_WIDTH", yWidth)
	y := b.freshWire(yWidth)
	cell.SetPort("Y", y)
	return y
}

// threeValued is the {-1, 0, +1} domain: -1 known false, +1 known true,
// 0 unknown.
func tvAnd(a, b int) int {
	if a < 0 || b < 0 {
		return -1
	}
	if a > 0 && b > 0 {
		return 1
	}
	return 0
}

func tvNot(a int) int { return -a }

func tvOr(a, b int) int { return tvNot(tvAnd(tvNot(a), tvNot(b))) }

func tvXor(a, b int) int { return tvOr(tvAnd(a, tvNot(b)), tvAnd(tvNot(a), b)) }

func tvXnor(a, b int) int { return tvNot(tvXor(a, b)) }

func tvCarry(a, b, c int) int {
	if c > 0 {
		return tvOr(a, b)
	}
	if c < 0 {
		return tvAnd(a, b)
	}
	return tvOr(tvAnd(a, b), tvAnd(c, tvOr(a, b)))
}

func tvConvert(bit rtlil.SigBit) int {
	if bit.Wire != nil {
		return 0
	}
	switch bit.Data {
	case rtlil.S1:
		return 1
	case rtlil.S0:
		return -1
	default:
		return 0
	}
}

// threeValuedCompare runs a ripple comparison over the three-valued domain.
// A decided result needs no cell even when some input bits are symbolic.
func threeValuedCompare(op string, a, b rtlil.SigSpec, aSigned, bSigned bool) (result, ok bool) {
	carry := 1
	if op == "le" || op == "ge" {
		carry = -1
	}
	width := a.Size()
	if b.Size() > width {
		width = b.Size()
	}
	var al, bl int
	for i := 0; i < width; i++ {
		abit := rtlil.StateBit(rtlil.S0)
		if i < a.Size() {
			abit = a.Bit(i)
		} else if aSigned {
			abit = a.MSB()
		}
		bbit := rtlil.StateBit(rtlil.S0)
		if i < b.Size() {
			bbit = b.Bit(i)
		} else if bSigned {
			bbit = b.MSB()
		}
		al = tvConvert(abit)
		bl = tvConvert(bbit)
		if op == "gt" || op == "ge" {
			al, bl = bl, al
		}
		if i != width-1 {
			carry = tvCarry(al, tvNot(bl), carry)
		}
	}
	res := tvXor(carry, tvXnor(al, bl))
	if res < 0 {
		return false, true
	}
	if res > 0 {
		return true, true
	}
	return false, false
}

// Unop emits a unary cell, folding constant inputs.
func (b *Builder) Unop(op string, a rtlil.SigSpec, aSigned bool, yWidth int) rtlil.SigSpec {
	if a.IsFullyConst() {
		if res, ok := rtlil.EvalUnary(op, a.AsConst(), aSigned, yWidth); ok {
			return rtlil.FromConst(res)
		}
	}
	cell := b.Canvas.AddCell("", op)
	cell.SetPort("A", a)
	cell.SetParamInt("A_WIDTH", a.Size())
	cell.SetParamBool("A_SIGNED", aSigned)
	cell.SetParamInt("Y_WIDTH", yWidth)
	y := b.freshWire(yWidth)
	cell.SetPort("Y", y)
	return y
}

func (b *Builder) ReduceBool(a rtlil.SigSpec) rtlil.SigSpec {
	if a.IsFullyConst() {
		return rtlil.FromConst(rtlil.ConstReduceBool(a.AsConst(), 1))
	}
	return b.Unop("reduce_bool", a, false, 1)
}

func (b *Builder) LogicNot(a rtlil.SigSpec) rtlil.SigSpec {
	if a.IsFullyConst() {
		return rtlil.FromConst(rtlil.ConstLogicNot(a.AsConst(), 1))
	}
	return b.Unop("logic_not", a, false, 1)
}

func (b *Builder) Not(a rtlil.SigSpec) rtlil.SigSpec {
	return b.Unop("not", a, false, a.Size())
}

// Neg negates with one bit of headroom, matching the reference builder.
func (b *Builder) Neg(a rtlil.SigSpec, signed bool) rtlil.SigSpec {
	if a.IsFullyConst() {
		return rtlil.FromConst(rtlil.ConstNeg(a.AsConst(), signed, a.Size()+1))
	}
	return b.Unop("neg", a, signed, a.Size()+1)
}

// Sub special-cases an all-ones subtrahend: a - (-1) appears in index
// normalization and must not cost a cell.
func (b *Builder) Sub(a, bb rtlil.SigSpec, signed bool) rtlil.SigSpec {
	if bb.IsFullyOnes() {
		return a
	}
	width := a.Size()
	if bb.Size() > width {
		width = bb.Size()
	}
	return b.Biop("sub", a, bb, signed, signed, width+1)
}

func (b *Builder) Le(a, bb rtlil.SigSpec, signed bool) rtlil.SigSpec {
	return b.Biop("le", a, bb, signed, signed, 1)
}

func (b *Builder) Ge(a, bb rtlil.SigSpec, signed bool) rtlil.SigSpec {
	return b.Biop("ge", a, bb, signed, signed, 1)
}

func (b *Builder) Lt(a, bb rtlil.SigSpec, signed bool) rtlil.SigSpec {
	return b.Biop("lt", a, bb, signed, signed, 1)
}

func (b *Builder) Eq(a, bb rtlil.SigSpec) rtlil.SigSpec {
	return b.Biop("eq", a, bb, false, false, 1)
}

// EqWildcard drops positions where the (constant) b operand is X or Z and
// compares the rest. No elaborator pass calls it; casez/casex
// statements are rejected before case lowering.
func (b *Builder) EqWildcard(a, bb rtlil.SigSpec) rtlil.SigSpec {
	if a.Size() != bb.Size() {
		panic("builder: EqWildcard operand size mismatch")
	}
	if !bb.IsFullyConst() {
		panic("builder: EqWildcard pattern must be constant")
	}
	for i := a.Size() - 1; i >= 0; i-- {
		s := bb.Bit(i).Data
		if s == rtlil.Sx || s == rtlil.Sz {
			a = a.Remove(i, 1)
			bb = bb.Remove(i, 1)
		}
	}
	return b.Eq(a, bb)
}

func (b *Builder) LogicAnd(a, bb rtlil.SigSpec) rtlil.SigSpec {
	if a.IsFullyZero() || bb.IsFullyZero() {
		return rtlil.FromConst(rtlil.NewConst(0, 1))
	}
	if a.IsFullyDef() && bb.Size() == 1 {
		return bb
	}
	if bb.IsFullyDef() && a.Size() == 1 {
		return a
	}
	return b.Biop("logic_and", a, bb, false, false, 1)
}

func (b *Builder) LogicOr(a, bb rtlil.SigSpec) rtlil.SigSpec {
	if a.IsFullyOnes() || bb.IsFullyOnes() {
		return rtlil.FromConst(rtlil.NewConst(1, 1))
	}
	if a.IsFullyZero() && bb.IsFullyZero() {
		return rtlil.FromConst(rtlil.NewConst(0, 1))
	}
	return b.Biop("logic_or", a, bb, false, false, 1)
}

// Mux selects a when s is 0 and bb when s is 1.
func (b *Builder) Mux(a, bb, s rtlil.SigSpec) rtlil.SigSpec {
	if a.Size() != bb.Size() {
		panic("builder: Mux data size mismatch")
	}
	if s.Size() != 1 {
		panic("builder: Mux select must be one bit")
	}
	if s.Bit(0).IsConst() {
		switch s.Bit(0).Data {
		case rtlil.S0:
			return a
		case rtlil.S1:
			return bb
		}
	}
	cell := b.Canvas.AddCell("", "mux")
	cell.SetPort("A", a)
	cell.SetPort("B", bb)
	cell.SetPort("S", s)
	cell.SetParamInt("WIDTH", a.Size())
	y := b.freshWire(a.Size())
	cell.SetPort("Y", y)
	return y
}

// Bwmux selects per bit: a[i] when s[i] is 0, bb[i] when 1.
func (b *Builder) Bwmux(a, bb, s rtlil.SigSpec) rtlil.SigSpec {
	if a.Size() != bb.Size() || a.Size() != s.Size() {
		panic("builder: Bwmux operand size mismatch")
	}
	if s.IsFullyConst() {
		out := make([]rtlil.SigBit, 0, a.Size())
		for i := 0; i < a.Size(); i++ {
			switch s.Bit(i).Data {
			case rtlil.S0:
				out = append(out, a.Bit(i))
			case rtlil.S1:
				out = append(out, bb.Bit(i))
			default:
				out = append(out, rtlil.StateBit(rtlil.Sx))
			}
		}
		res := rtlil.S()
		for _, bit := range out {
			res = res.Append(rtlil.S(bit))
		}
		return res
	}
	cell := b.Canvas.AddCell("", "bwmux")
	cell.SetPort("A", a)
	cell.SetPort("B", bb)
	cell.SetPort("S", s)
	cell.SetParamInt("WIDTH", a.Size())
	y := b.freshWire(a.Size())
	cell.SetPort("Y", y)
	return y
}

// Bmux extracts the stride-wide slice selected by s out of a.
func (b *Builder) Bmux(a, s rtlil.SigSpec) rtlil.SigSpec {
	if a.Size()%(1<<s.Size()) != 0 || a.Size() < 1<<s.Size() {
		panic(fmt.Sprintf("builder: Bmux width %d not divisible by 2^%d", a.Size(), s.Size()))
	}
	stride := a.Size() >> s.Size()
	if s.IsFullyDef() {
		return a.Extract(int(s.AsInt(false))*stride, stride)
	}
	cell := b.Canvas.AddCell("", "bmux")
	cell.SetPort("A", a)
	cell.SetPort("S", s)
	cell.SetParamInt("WIDTH", stride)
	cell.SetParamInt("S_WIDTH", s.Size())
	y := b.freshWire(stride)
	cell.SetPort("Y", y)
	return y
}

// Demux positions a at slot s of a 2^|s| * |a| wide output, zeros
// elsewhere.
func (b *Builder) Demux(a, s rtlil.SigSpec) rtlil.SigSpec {
	if s.Size() >= 24 {
		panic("builder: Demux select too wide")
	}
	zeropad := rtlil.FromConst(rtlil.RepeatState(rtlil.S0, a.Size()))
	if s.IsFullyConst() {
		idx := int(s.AsInt(false))
		return rtlil.S(zeropad.Repeat(idx), a, zeropad.Repeat((1<<s.Size())-1-idx))
	}
	cell := b.Canvas.AddCell("", "demux")
	cell.SetPort("A", a)
	cell.SetPort("S", s)
	cell.SetParamInt("WIDTH", a.Size())
	cell.SetParamInt("S_WIDTH", s.Size())
	y := b.freshWire(a.Size() << s.Size())
	cell.SetPort("Y", y)
	return y
}

// Shift emits the bidirectional shifter. With a constant count the result
// is a plain recombination of input bits and costs nothing.
func (b *Builder) Shift(a rtlil.SigSpec, aSigned bool, s rtlil.SigSpec, sSigned bool, resultWidth int) rtlil.SigSpec {
	if a.IsFullyConst() && s.IsFullyConst() {
		return rtlil.FromConst(rtlil.ConstShift(a.AsConst(), s.AsConst(), aSigned, sSigned, resultWidth))
	}

	if s.IsFullyConst() && s.Size() < 24 {
		if a.Empty() {
			panic("builder: Shift of empty signal")
		}
		amount := int(s.AsInt(sSigned))
		out := rtlil.S()
		for i, j := amount, 0; j < resultWidth; i, j = i+1, j+1 {
			switch {
			case aSigned && i >= a.Size():
				out = out.Append(rtlil.S(a.MSB()))
			case i >= a.Size() || i < 0:
				out = out.Append(rtlil.S(rtlil.S0))
			default:
				out = out.Append(rtlil.S(a.Bit(i)))
			}
		}
		return out
	}

	cell := b.Canvas.AddCell("", "shift")
	cell.SetPort("A", a)
	cell.SetPort("B", s)
	cell.SetParamBool("A_SIGNED", aSigned)
	cell.SetParamBool("B_SIGNED", sSigned)
	cell.SetParamInt("A_WIDTH", a.Size())
	cell.SetParamInt("B_WIDTH", s.Size())
	cell.SetParamInt("Y_WIDTH", resultWidth)
	y := b.freshWire(resultWidth)
	cell.SetPort("Y", y)
	return y
}

// Shiftx is the X-filling shifter used for out-of-range reads.
func (b *Builder) Shiftx(a, s rtlil.SigSpec, sSigned bool, resultWidth int) rtlil.SigSpec {
	if a.IsFullyConst() && s.IsFullyConst() {
		return rtlil.FromConst(rtlil.ConstShiftx(a.AsConst(), s.AsConst(), false, sSigned, resultWidth))
	}
	cell := b.Canvas.AddCell("", "shiftx")
	cell.SetPort("A", a)
	cell.SetPort("B", s)
	cell.SetParamBool("A_SIGNED", false)
	cell.SetParamBool("B_SIGNED", sSigned)
	cell.SetParamInt("A_WIDTH", a.Size())
	cell.SetParamInt("B_WIDTH", s.Size())
	cell.SetParamInt("Y_WIDTH", resultWidth)
	y := b.freshWire(resultWidth)
	cell.SetPort("Y", y)
	return y
}
