package rtlil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConstRoundTrip(t *testing.T) {
	c := NewConst(13, 6)
	if got := c.String(); got != "001101" {
		t.Errorf("NewConst(13, 6) = %s, want 001101", got)
	}
	if got := c.AsInt(false); got != 13 {
		t.Errorf("AsInt = %d, want 13", got)
	}
	if got := NewConst(-1, 4).AsInt(true); got != -1 {
		t.Errorf("signed AsInt = %d, want -1", got)
	}
}

func TestSigSpecExtractAppendRepeat(t *testing.T) {
	w := &Wire{Name: "\\a", Width: 8}
	s := FromWire(w)
	if s.Size() != 8 {
		t.Fatalf("size = %d, want 8", s.Size())
	}
	sub := s.Extract(2, 4)
	if got := sub.String(); got != "\\a[5:2]" {
		t.Errorf("extract = %s", got)
	}
	cat := sub.Append(FromConst(NewConst(1, 2)))
	if cat.Size() != 6 {
		t.Errorf("append size = %d, want 6", cat.Size())
	}
	if got := cat.Repeat(2).Size(); got != 12 {
		t.Errorf("repeat size = %d, want 12", got)
	}
}

func TestSigSpecExtendU0(t *testing.T) {
	w := &Wire{Name: "\\a", Width: 2}
	s := FromWire(w)
	zext := s.ExtendU0(4, false)
	if got := zext.String(); got != "{00 \\a}" {
		t.Errorf("zero extend = %s", got)
	}
	sext := s.ExtendU0(4, true)
	if got := sext.Bit(3); got != (SigBit{Wire: w, Offset: 1}) {
		t.Errorf("sign extend top bit = %v", got)
	}
	trunc := s.ExtendU0(1, true)
	if trunc.Size() != 1 {
		t.Errorf("truncate size = %d, want 1", trunc.Size())
	}
}

func TestSigSpecReplace(t *testing.T) {
	a := &Wire{Name: "\\a", Width: 2}
	b := &Wire{Name: "\\b", Width: 2}
	s := FromWire(a)
	subs := map[SigBit]SigBit{
		{Wire: a, Offset: 0}: {Wire: b, Offset: 1},
	}
	got := s.Replace(subs)
	if got.Bit(0) != (SigBit{Wire: b, Offset: 1}) {
		t.Errorf("replace bit 0 = %v", got.Bit(0))
	}
	if got.Bit(1) != (SigBit{Wire: a, Offset: 1}) {
		t.Errorf("replace left bit 1 alone, got %v", got.Bit(1))
	}
	// The receiver must be untouched.
	if s.Bit(0) != (SigBit{Wire: a, Offset: 0}) {
		t.Error("Replace mutated its receiver")
	}
}

func TestSortAndUnify(t *testing.T) {
	a := &Wire{Name: "\\a", Width: 4}
	b := &Wire{Name: "\\b", Width: 4}
	s := S(SigBit{Wire: b, Offset: 1}, SigBit{Wire: a, Offset: 2},
		SigBit{Wire: a, Offset: 2}, SigBit{Wire: a, Offset: 0})
	got := s.SortAndUnify()
	want := []SigBit{{Wire: a, Offset: 0}, {Wire: a, Offset: 2}, {Wire: b, Offset: 1}}
	if diff := cmp.Diff(want, got.Bits(), cmp.Comparer(func(x, y SigBit) bool { return x == y })); diff != "" {
		t.Errorf("SortAndUnify mismatch (-want +got):\n%s", diff)
	}
}

func TestChunks(t *testing.T) {
	a := &Wire{Name: "\\a", Width: 4}
	s := S(SigBit{Wire: a, Offset: 0}, SigBit{Wire: a, Offset: 1},
		StateBit(S1), StateBit(S0), SigBit{Wire: a, Offset: 3})
	chunks := s.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if chunks[0].Wire != a || chunks[0].Offset != 0 || chunks[0].Width != 2 {
		t.Errorf("chunk 0 = %+v", chunks[0])
	}
	if chunks[1].Wire != nil || chunks[1].Width != 2 {
		t.Errorf("chunk 1 = %+v", chunks[1])
	}
	if chunks[2].Offset != 3 || chunks[2].Width != 1 {
		t.Errorf("chunk 2 = %+v", chunks[2])
	}
}

func TestFullnessPredicates(t *testing.T) {
	if !FromConst(NewConst(0, 3)).IsFullyZero() {
		t.Error("000 should be fully zero")
	}
	if !FromConst(NewConst(7, 3)).IsFullyOnes() {
		t.Error("111 should be fully ones")
	}
	if FromConst(RepeatState(Sx, 2)).IsFullyDef() {
		t.Error("xx should not be fully defined")
	}
	w := &Wire{Name: "\\w", Width: 1}
	if FromWire(w).IsFullyConst() {
		t.Error("wire bits are not constant")
	}
}

func TestModuleCheck(t *testing.T) {
	m := NewModule("\\top")
	a := m.AddWire("\\a", 4)
	y := m.AddWire("\\y", 4)
	cell := m.AddCell("", "not")
	cell.SetPort("A", FromWire(a))
	cell.SetPort("Y", FromWire(y))
	cell.SetParamInt("A_WIDTH", 4)
	cell.SetParamInt("Y_WIDTH", 4)
	if err := m.Check(); err != nil {
		t.Errorf("check on valid module: %v", err)
	}

	cell.SetParamInt("Y_WIDTH", 5)
	if err := m.Check(); err == nil {
		t.Error("check missed a width mismatch")
	}
}

func TestFixupPorts(t *testing.T) {
	m := NewModule("\\top")
	b := m.AddWire("\\b", 1)
	a := m.AddWire("\\a", 1)
	m.AddWire("\\internal", 1)
	a.PortInput = true
	b.PortOutput = true
	m.FixupPorts()
	ports := m.Ports()
	if len(ports) != 2 || ports[0] != a || ports[1] != b {
		t.Errorf("ports not ordered by name: %v", ports)
	}
	if a.PortID != 1 || b.PortID != 2 {
		t.Errorf("port ids = %d, %d", a.PortID, b.PortID)
	}
}
