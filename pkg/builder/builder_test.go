package builder

import (
	"testing"

	"github.com/xplshn/svrtl/pkg/rtlil"
)

func newCanvas() (*rtlil.Module, *Builder) {
	m := rtlil.NewModule("\\canvas")
	return m, New(m)
}

func constSpec(value int64, width int) rtlil.SigSpec {
	return rtlil.FromConst(rtlil.NewConst(value, width))
}

func wireSpec(m *rtlil.Module, name string, width int) rtlil.SigSpec {
	return rtlil.FromWire(m.AddWire(name, width))
}

// Folding must agree with the constant evaluation kernel on every opcode.
func TestBiopFoldingSoundness(t *testing.T) {
	ops := []string{"add", "sub", "mul", "divfloor", "mod", "and", "or", "xor", "xnor",
		"eq", "ne", "lt", "le", "gt", "ge", "shl", "shr", "sshl", "sshr", "pow",
		"logic_and", "logic_or"}
	inputs := []struct{ a, b int64 }{{0, 0}, {1, 0}, {5, 3}, {13, 2}, {7, 7}, {15, 1}}

	for _, op := range ops {
		for _, in := range inputs {
			m, b := newCanvas()
			a := rtlil.NewConst(in.a, 4)
			bb := rtlil.NewConst(in.b, 4)
			got := b.Biop(op, rtlil.FromConst(a), rtlil.FromConst(bb), false, false, 4)
			if len(m.Cells) != 0 {
				t.Fatalf("%s(%d, %d): emitted %d cells for constant inputs", op, in.a, in.b, len(m.Cells))
			}
			want, ok := rtlil.EvalBinary(op, a, bb, false, false, 4)
			if !ok {
				t.Fatalf("%s: no constant evaluation", op)
			}
			if got.String() != rtlil.FromConst(want).String() {
				t.Errorf("%s(%d, %d) = %s, want %s", op, in.a, in.b, got, rtlil.FromConst(want))
			}
		}
	}
}

func TestBiopEmitsCellForSymbolic(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	y := b.Biop("add", a, constSpec(1, 4), false, false, 4)
	if len(m.Cells) != 1 {
		t.Fatalf("expected one cell, got %d", len(m.Cells))
	}
	cell := m.Cells[0]
	if cell.Type != "add" {
		t.Errorf("cell type = %s", cell.Type)
	}
	if cell.Parameters["A_WIDTH"].AsInt(false) != 4 || cell.Parameters["Y_WIDTH"].AsInt(false) != 4 {
		t.Error("width parameters not set")
	}
	if y.Size() != 4 {
		t.Errorf("result width = %d", y.Size())
	}
}

// A comparison decided by the three-valued carry analysis needs no cell
// even when operand bits are symbolic.
func TestThreeValuedComparisonShortcut(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 3)
	// A 3-bit unsigned value extended against 8: always less.
	got := b.Biop("lt", a, constSpec(8, 4), false, false, 1)
	if len(m.Cells) != 0 {
		t.Fatalf("lt decided by analysis still emitted a cell")
	}
	if got.String() != "1" {
		t.Errorf("lt = %s, want 1", got)
	}

	got = b.Biop("ge", a, constSpec(8, 4), false, false, 1)
	if len(m.Cells) != 0 || got.String() != "0" {
		t.Errorf("ge = %s with %d cells, want constant 0", got, len(m.Cells))
	}

	// Undecidable: same widths, overlapping ranges.
	got = b.Biop("lt", a, constSpec(3, 3), false, false, 1)
	if len(m.Cells) != 1 {
		t.Errorf("undecidable comparison should emit a cell")
	}
	_ = got
}

func TestLogicShortcuts(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 2)
	if got := b.Biop("logic_and", a, constSpec(0, 2), false, false, 1); got.String() != "0" {
		t.Errorf("logic_and with zero = %s", got)
	}
	if got := b.Biop("logic_or", a, constSpec(2, 2), false, false, 1); got.String() != "1" {
		t.Errorf("logic_or with truthy = %s", got)
	}
	if len(m.Cells) != 0 {
		t.Errorf("shortcuts emitted %d cells", len(m.Cells))
	}
}

func TestUnopFolding(t *testing.T) {
	m, b := newCanvas()
	if got := b.Unop("not", constSpec(5, 4), false, 4); got.String() != "1010" {
		t.Errorf("not = %s", got)
	}
	if got := b.Unop("reduce_bool", constSpec(2, 4), false, 1); got.String() != "1" {
		t.Errorf("reduce_bool = %s", got)
	}
	if len(m.Cells) != 0 {
		t.Error("constant unop emitted cells")
	}
	a := wireSpec(m, "\\a", 4)
	b.Unop("reduce_xor", a, false, 1)
	if len(m.Cells) != 1 || m.Cells[0].Type != "reduce_xor" {
		t.Error("symbolic unop did not emit its cell")
	}
}

func TestMuxConstantSelect(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	bb := wireSpec(m, "\\b", 4)
	if got := b.Mux(a, bb, constSpec(0, 1)); got.String() != a.String() {
		t.Errorf("mux(s=0) = %s, want %s", got, a)
	}
	if got := b.Mux(a, bb, constSpec(1, 1)); got.String() != bb.String() {
		t.Errorf("mux(s=1) = %s, want %s", got, bb)
	}
	if len(m.Cells) != 0 {
		t.Error("constant-select mux emitted cells")
	}
	s := wireSpec(m, "\\s", 1)
	b.Mux(a, bb, s)
	if len(m.Cells) != 1 || m.Cells[0].Type != "mux" {
		t.Error("symbolic mux did not emit its cell")
	}
}

func TestBwmuxConstantSelect(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	bb := wireSpec(m, "\\b", 4)
	s := rtlil.S(rtlil.S0, rtlil.S1, rtlil.Sx, rtlil.S0)
	got := b.Bwmux(a, bb, s)
	if len(m.Cells) != 0 {
		t.Fatal("constant-select bwmux emitted cells")
	}
	if got.Bit(0) != a.Bit(0) || got.Bit(1) != bb.Bit(1) || got.Bit(3) != a.Bit(3) {
		t.Errorf("bwmux picked wrong sides: %s", got)
	}
	if bit := got.Bit(2); bit.Wire != nil || bit.Data != rtlil.Sx {
		t.Errorf("bwmux x-select bit = %v, want x", bit)
	}
}

func TestBmuxConstantSelect(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 8)
	got := b.Bmux(a, constSpec(1, 1))
	if len(m.Cells) != 0 {
		t.Fatal("constant-select bmux emitted cells")
	}
	if got.String() != "\\a[7:4]" {
		t.Errorf("bmux slice = %s", got)
	}
	s := wireSpec(m, "\\s", 1)
	y := b.Bmux(a, s)
	if len(m.Cells) != 1 || m.Cells[0].Type != "bmux" {
		t.Error("symbolic bmux did not emit its cell")
	}
	if y.Size() != 4 {
		t.Errorf("bmux width = %d", y.Size())
	}
}

func TestDemuxConstantSelect(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 2)
	got := b.Demux(a, constSpec(2, 2))
	if len(m.Cells) != 0 {
		t.Fatal("constant-select demux emitted cells")
	}
	if got.Size() != 8 {
		t.Fatalf("demux width = %d, want 8", got.Size())
	}
	if got.Extract(0, 4).String() != "0000" {
		t.Errorf("demux low slots = %s", got.Extract(0, 4))
	}
	if got.Extract(4, 2).String() != a.String() {
		t.Errorf("demux selected slot = %s", got.Extract(4, 2))
	}
	if got.Extract(6, 2).String() != "00" {
		t.Errorf("demux high slot = %s", got.Extract(6, 2))
	}
}

func TestShiftConstantCount(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	got := b.Shift(a, false, constSpec(1, 2), false, 4)
	if len(m.Cells) != 0 {
		t.Fatal("constant-count shift emitted cells")
	}
	if got.Bit(0) != a.Bit(1) || got.Bit(2) != a.Bit(3) {
		t.Errorf("shift recombination wrong: %s", got)
	}
	if bit := got.Bit(3); bit.Wire != nil || bit.Data != rtlil.S0 {
		t.Errorf("shift fill = %v, want 0", bit)
	}

	// Signed input fills with the sign bit.
	got = b.Shift(a, true, constSpec(2, 3), false, 4)
	if got.Bit(2) != a.Bit(3) || got.Bit(3) != a.Bit(3) {
		t.Errorf("signed shift fill = %s", got)
	}

	s := wireSpec(m, "\\s", 2)
	b.Shift(a, false, s, false, 4)
	if len(m.Cells) != 1 || m.Cells[0].Type != "shift" {
		t.Error("symbolic shift did not emit its cell")
	}
}

func TestSubAllOnesCollapses(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	got := b.Sub(a, rtlil.FromConst(rtlil.RepeatState(rtlil.S1, 4)), true)
	if len(m.Cells) != 0 {
		t.Fatal("sub of all-ones emitted cells")
	}
	if got.String() != a.String() {
		t.Errorf("sub(a, -1) = %s, want %s", got, a)
	}
}

func TestEqWildcard(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	pattern := rtlil.S(rtlil.S1, rtlil.Sx, rtlil.S0, rtlil.Sz)
	b.EqWildcard(a, pattern)
	if len(m.Cells) != 1 {
		t.Fatalf("expected one eq cell, got %d", len(m.Cells))
	}
	cell := m.Cells[0]
	if cell.Type != "eq" {
		t.Errorf("cell type = %s", cell.Type)
	}
	// The x and z positions drop out of both operands.
	if cell.Ports["A"].Size() != 2 || cell.Ports["B"].Size() != 2 {
		t.Errorf("wildcard positions kept: A=%d B=%d bits",
			cell.Ports["A"].Size(), cell.Ports["B"].Size())
	}
}

func TestNegHeadroom(t *testing.T) {
	m, b := newCanvas()
	a := wireSpec(m, "\\a", 4)
	y := b.Neg(a, true)
	if y.Size() != 5 {
		t.Errorf("neg width = %d, want 5", y.Size())
	}
	if len(m.Cells) != 1 || m.Cells[0].Type != "neg" {
		t.Error("neg did not emit its cell")
	}
}
