package ast

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// buildSampleDesign covers one of each serializable construct.
func buildSampleDesign() *Compilation {
	body := NewBody("adder")

	bitT := LogicType(1, false)
	byteT := LogicType(8, false)

	clk := NewNet("clk", bitT)
	a := NewNet("a", byteT)
	bnet := NewNet("b", byteT)
	y := NewVariable("y", byteT)
	body.AddMember(clk)
	body.AddMember(a)
	body.AddMember(bnet)
	body.AddMember(y)
	body.AddMember(NewPort("clk", DirIn, clk))
	body.AddMember(NewPort("a", DirIn, a))
	body.AddMember(NewPort("b", DirIn, bnet))
	body.AddMember(NewPort("y", DirOut, y))

	sum := NewBinary(BinaryAdd, NewNamedValue(a), NewNamedValue(bnet), byteT)
	always := NewProceduralBlock(BlockAlwaysFF, NewTimedStatement(
		NewSignalEvent(NewNamedValue(clk), EdgePos),
		NewExpressionStatement(NewAssignment(true, NewNamedValue(y), sum)),
	))
	body.AddMember(always)

	root := NewRoot()
	root.AddMember(NewInstance("top", body))
	return NewCompilation(root, nil)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	comp := buildSampleDesign()

	var first bytes.Buffer
	if err := DumpJSON(&first, comp); err != nil {
		t.Fatalf("dump: %v", err)
	}

	loaded, err := LoadJSON(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var second bytes.Buffer
	if err := DumpJSON(&second, loaded); err != nil {
		t.Fatalf("re-dump: %v", err)
	}

	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("round trip not stable (-first +second):\n%s", diff)
	}
}

func TestLoadResolvesReferences(t *testing.T) {
	comp := buildSampleDesign()
	var buf bytes.Buffer
	if err := DumpJSON(&buf, comp); err != nil {
		t.Fatalf("dump: %v", err)
	}
	loaded, err := LoadJSON(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	insts := loaded.TopInstances()
	if len(insts) != 1 || insts[0].Name() != "top" {
		t.Fatalf("top instances = %v", insts)
	}
	body := insts[0].Body

	var always *ProceduralBlockSymbol
	var yVar *VariableSymbol
	for _, m := range body.Members {
		switch sym := m.(type) {
		case *ProceduralBlockSymbol:
			always = sym
		case *VariableSymbol:
			yVar = sym
		}
	}
	if always == nil || yVar == nil {
		t.Fatal("members missing after load")
	}

	timed, ok := always.Body.(*TimedStatement)
	if !ok {
		t.Fatalf("always body = %T", always.Body)
	}
	assignStmt, ok := timed.Stmt.(*ExpressionStatement)
	if !ok {
		t.Fatalf("guarded statement = %T", timed.Stmt)
	}
	assign := assignStmt.Expr.(*AssignmentExpr)
	lhs, ok := assign.Left.(*NamedValueExpr)
	if !ok {
		t.Fatalf("assignment target = %T", assign.Left)
	}
	// The reference must resolve to the loaded variable symbol itself.
	if lhs.Symbol != yVar {
		t.Error("assignment target does not alias the declared variable")
	}
	if !assign.NonBlocking {
		t.Error("non-blocking flag lost in round trip")
	}
}

func TestLoadRejectsUnknownSymbol(t *testing.T) {
	design := `{
	  "kind": "Root",
	  "members": [{
	    "kind": "Instance",
	    "name": "top",
	    "body": {
	      "kind": "InstanceBody",
	      "name": "top",
	      "members": [{
	        "kind": "ContinuousAssign",
	        "assignment": {
	          "kind": "assignment",
	          "left": {"kind": "named", "symbol": "ghost"},
	          "right": {"kind": "literal", "bits": "0"}
	        }
	      }]
	    }
	  }]
	}`
	if _, err := LoadJSON(bytes.NewReader([]byte(design))); err == nil {
		t.Error("reference to an undeclared symbol should fail to load")
	}
}

func TestHierarchicalPath(t *testing.T) {
	comp := buildSampleDesign()
	body := comp.TopInstances()[0].Body
	for _, m := range body.Members {
		if net, ok := m.(*NetSymbol); ok && net.Name() == "clk" {
			if got := HierarchicalPath(net); got != "top.clk" {
				t.Errorf("path = %s, want top.clk", got)
			}
			return
		}
	}
	t.Fatal("clk not found")
}
