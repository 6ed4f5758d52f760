package elaborate

import (
	"strings"
	"testing"

	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

func elaborateTop(t *testing.T, body *ast.InstanceBodySymbol) *rtlil.Module {
	t.Helper()
	root := ast.NewRoot()
	root.AddMember(ast.NewInstance("top", body))
	comp := ast.NewCompilation(root, nil)
	design := Elaborate(comp, config.NewConfig())
	if len(design.ModuleOrder) == 0 {
		t.Fatal("no module elaborated")
	}
	return design.ModuleOrder[0]
}

func findCells(m *rtlil.Module, typ string) []*rtlil.Cell {
	var out []*rtlil.Cell
	for _, c := range m.Cells {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

func isStagingWire(s rtlil.SigSpec) bool {
	for _, b := range s.Bits() {
		if b.Wire == nil || !strings.HasSuffix(b.Wire.Name, "staging") {
			return false
		}
	}
	return !s.Empty()
}

// entryCase is the case the procedural visitor starts in: the single arm
// of the top switch nested under the process root.
func entryCase(t *testing.T, proc *rtlil.Process) *rtlil.CaseRule {
	t.Helper()
	if len(proc.RootCase.Switches) == 0 || len(proc.RootCase.Switches[0].Cases) != 1 {
		t.Fatal("process has no entry case")
	}
	return proc.RootCase.Switches[0].Cases[0]
}

// stagingFor finds the staging wire the root case defaults from the given
// original wire.
func stagingFor(t *testing.T, proc *rtlil.Process, orig *rtlil.Wire) rtlil.SigSpec {
	t.Helper()
	for _, act := range proc.RootCase.Actions {
		if act.Second.String() == rtlil.FromWire(orig).String() && isStagingWire(act.First) {
			return act.First
		}
	}
	t.Fatalf("no staging default for %s", orig.Name)
	return rtlil.SigSpec{}
}

func bit1(typ bool) *ast.Type { return ast.LogicType(1, typ) }

// always @(posedge clk) begin a <= b; b <= a; end must read pre-write
// values on both sides.
func TestNonBlockingSwap(t *testing.T) {
	body := ast.NewBody("swap")
	clk := ast.NewNet("clk", bit1(false))
	a := ast.NewVariable("a", bit1(false))
	b := ast.NewVariable("b", bit1(false))
	body.AddMember(clk)
	body.AddMember(a)
	body.AddMember(b)
	body.AddMember(ast.NewPort("clk", ast.DirIn, clk))

	swap := ast.NewStatementList(
		ast.NewExpressionStatement(ast.NewAssignment(true, ast.NewNamedValue(a), ast.NewNamedValue(b))),
		ast.NewExpressionStatement(ast.NewAssignment(true, ast.NewNamedValue(b), ast.NewNamedValue(a))),
	)
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlways,
		ast.NewTimedStatement(ast.NewSignalEvent(ast.NewNamedValue(clk), ast.EdgePos),
			ast.NewBlockStatement(ast.BlockSequential, swap))))

	mod := elaborateTop(t, body)
	if len(mod.Processes) != 1 {
		t.Fatalf("processes = %d, want 1", len(mod.Processes))
	}
	proc := mod.Processes[0]

	if len(proc.Syncs) != 1 || proc.Syncs[0].Type != rtlil.SyncPosedge {
		t.Fatalf("sync = %+v, want one posedge", proc.Syncs)
	}
	if got := proc.Syncs[0].Signal.String(); got != "\\top.clk" {
		t.Errorf("sync signal = %s", got)
	}

	aWire := mod.Wire("\\top.a")
	bWire := mod.Wire("\\top.b")
	aStage := stagingFor(t, proc, aWire)
	bStage := stagingFor(t, proc, bWire)
	if aStage.String() == bStage.String() {
		t.Fatal("a and b share a staging wire")
	}

	// The stage for a must read the original b, not its updated value.
	entry := entryCase(t, proc)
	if len(entry.Actions) != 2 {
		t.Fatalf("entry actions = %d, want 2", len(entry.Actions))
	}
	if entry.Actions[0].First.String() != aStage.String() ||
		entry.Actions[0].Second.String() != "\\top.b" {
		t.Errorf("first action = %s <- %s", entry.Actions[0].First, entry.Actions[0].Second)
	}
	if entry.Actions[1].First.String() != bStage.String() ||
		entry.Actions[1].Second.String() != "\\top.a" {
		t.Errorf("second action = %s <- %s", entry.Actions[1].First, entry.Actions[1].Second)
	}

	// The sync rule commits original <- stage for both bits.
	commits := proc.Syncs[0].Actions
	if len(commits) != 2 {
		t.Fatalf("sync commits = %d, want 2", len(commits))
	}
	for _, commit := range commits {
		if isStagingWire(commit.First) || !isStagingWire(commit.Second) {
			t.Errorf("commit direction wrong: %s <- %s", commit.First, commit.Second)
		}
	}
}

// always_comb begin y = 0; if (s) y = a; else y = b; end
func TestIfElsePriority(t *testing.T) {
	body := ast.NewBody("ifelse")
	s := ast.NewNet("s", bit1(false))
	a := ast.NewNet("a", bit1(false))
	b := ast.NewNet("b", bit1(false))
	y := ast.NewVariable("y", bit1(false))
	for _, sym := range []ast.Symbol{s, a, b, y} {
		body.AddMember(sym)
	}

	stmts := ast.NewStatementList(
		ast.NewExpressionStatement(ast.NewAssignment(false, ast.NewNamedValue(y),
			ast.NewIntegerLiteral(ast.MakeSVInt(1, 0, false)))),
		ast.NewConditionalStatement(ast.NewNamedValue(s),
			ast.NewExpressionStatement(ast.NewAssignment(false, ast.NewNamedValue(y), ast.NewNamedValue(a))),
			ast.NewExpressionStatement(ast.NewAssignment(false, ast.NewNamedValue(y), ast.NewNamedValue(b)))),
	)
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlwaysComb,
		ast.NewBlockStatement(ast.BlockSequential, stmts)))

	mod := elaborateTop(t, body)
	proc := mod.Processes[0]
	if len(proc.Syncs) != 1 || proc.Syncs[0].Type != rtlil.SyncAlways {
		t.Fatalf("sync = %+v, want level-sensitive", proc.Syncs)
	}

	yStage := stagingFor(t, proc, mod.Wire("\\top.y"))
	entry := entryCase(t, proc)

	// The unconditional write lands first, on the staging wire.
	if entry.Actions[0].First.String() != yStage.String() ||
		entry.Actions[0].Second.String() != "0" {
		t.Errorf("first action = %s <- %s, want %s <- 0",
			entry.Actions[0].First, entry.Actions[0].Second, yStage)
	}

	// One real switch, one empty dummy switch after it.
	if len(entry.Switches) != 2 {
		t.Fatalf("switches = %d, want 2", len(entry.Switches))
	}
	sw := entry.Switches[0]
	reduces := findCells(mod, "reduce_bool")
	if len(reduces) != 1 {
		t.Fatalf("reduce_bool cells = %d, want 1", len(reduces))
	}
	if sw.Signal.String() != reduces[0].Ports["Y"].String() {
		t.Errorf("switch dispatches on %s, want the reduce_bool output", sw.Signal)
	}

	if len(sw.Cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(sw.Cases))
	}
	then := sw.Cases[0]
	if len(then.Compare) != 1 || then.Compare[0].String() != "1" {
		t.Errorf("then compare = %v", then.Compare)
	}
	if then.Actions[0].First.String() != yStage.String() ||
		then.Actions[0].Second.String() != "\\top.a" {
		t.Errorf("then action = %s <- %s", then.Actions[0].First, then.Actions[0].Second)
	}
	els := sw.Cases[1]
	if len(els.Compare) != 0 {
		t.Errorf("else compare = %v, want default", els.Compare)
	}
	if els.Actions[0].Second.String() != "\\top.b" {
		t.Errorf("else action source = %s", els.Actions[0].Second)
	}

	dummy := entry.Switches[1]
	if !dummy.Signal.Empty() || len(dummy.Cases) != 1 ||
		len(dummy.Cases[0].Actions) != 0 || len(dummy.Cases[0].Switches) != 0 {
		t.Error("dummy switch after the if is not empty")
	}
}

// case (sel) 2'b00: y=a; 2'b01: y=b; default: y=c; endcase
func TestCaseWithDefault(t *testing.T) {
	body := ast.NewBody("casestmt")
	sel := ast.NewNet("sel", ast.LogicType(2, false))
	a := ast.NewNet("a", bit1(false))
	b := ast.NewNet("b", bit1(false))
	c := ast.NewNet("c", bit1(false))
	y := ast.NewVariable("y", bit1(false))
	for _, sym := range []ast.Symbol{sel, a, b, c, y} {
		body.AddMember(sym)
	}

	assignTo := func(src ast.ValueSymbol) ast.Statement {
		return ast.NewExpressionStatement(ast.NewAssignment(false,
			ast.NewNamedValue(y), ast.NewNamedValue(src)))
	}
	caseStmt := ast.NewCaseStatement(ast.NewNamedValue(sel), []ast.CaseItem{
		{Expressions: []ast.Expression{ast.NewIntegerLiteral(ast.MakeSVInt(2, 0, false))}, Stmt: assignTo(a)},
		{Expressions: []ast.Expression{ast.NewIntegerLiteral(ast.MakeSVInt(2, 1, false))}, Stmt: assignTo(b)},
	}, assignTo(c))
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlwaysComb, caseStmt))

	mod := elaborateTop(t, body)
	entry := entryCase(t, mod.Processes[0])
	sw := entry.Switches[0]
	if sw.Signal.String() != "\\top.sel" {
		t.Errorf("dispatch = %s", sw.Signal)
	}
	if len(sw.Cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(sw.Cases))
	}
	if sw.Cases[0].Compare[0].String() != "00" {
		t.Errorf("case 0 compare = %s", sw.Cases[0].Compare[0])
	}
	if sw.Cases[1].Compare[0].String() != "01" {
		t.Errorf("case 1 compare = %s", sw.Cases[1].Compare[0])
	}
	if len(sw.Cases[2].Compare) != 0 {
		t.Errorf("default compare = %v, want empty", sw.Cases[2].Compare)
	}
}

// assign y = mem[idx] with a 3-bit index over mem[0:3]: a bounds check
// must return X out of range.
func TestOutOfRangeElementSelect(t *testing.T) {
	body := ast.NewBody("memread")
	elemT := ast.LogicType(4, false)
	memT := ast.ArrayType(elemT, ast.ConstantRange{Left: 0, Right: 3})
	mem := ast.NewNet("mem", memT)
	idx := ast.NewNet("idx", ast.LogicType(3, false))
	y := ast.NewNet("y", elemT)
	for _, sym := range []ast.Symbol{mem, idx, y} {
		body.AddMember(sym)
	}

	selExpr := ast.NewElementSelect(ast.NewNamedValue(mem), ast.NewNamedValue(idx), elemT)
	body.AddMember(ast.NewContinuousAssign(
		ast.NewAssignment(false, ast.NewNamedValue(y), selExpr)))

	mod := elaborateTop(t, body)

	bmuxes := findCells(mod, "bmux")
	if len(bmuxes) != 1 {
		t.Fatalf("bmux cells = %d, want 1", len(bmuxes))
	}
	if got := bmuxes[0].Ports["A"].Size(); got != 16 {
		t.Errorf("bmux footprint = %d bits, want 16", got)
	}

	muxes := findCells(mod, "mux")
	if len(muxes) != 1 {
		t.Fatalf("mux cells = %d, want 1", len(muxes))
	}
	mux := muxes[0]
	if mux.Ports["A"].String() != "xxxx" {
		t.Errorf("mux A = %s, want xxxx", mux.Ports["A"])
	}
	if mux.Ports["B"].String() != bmuxes[0].Ports["Y"].String() {
		t.Errorf("mux B is not the bmux output")
	}

	// The validity bit comes from the upper-bound comparison; the lower
	// bound against zero folds away for a zero-extended index.
	les := findCells(mod, "le")
	if len(les) != 1 {
		t.Fatalf("le cells = %d, want 1", len(les))
	}
	if mux.Ports["S"].String() != les[0].Ports["Y"].String() {
		t.Errorf("mux select is not the bounds check")
	}
	if len(findCells(mod, "ge")) != 0 {
		t.Error("lower-bound check should fold for an unsigned index")
	}

	if len(mod.Connections) != 1 || mod.Connections[0].First.String() != "\\top.y" {
		t.Fatalf("missing y connection")
	}
	if mod.Connections[0].Second.String() != mux.Ports["Y"].String() {
		t.Error("y is not driven by the guarded mux")
	}
}

// function [7:0] f(input [7:0] x); f = x + 1; endfunction, called from a
// continuous assign.
func TestFunctionInlining(t *testing.T) {
	body := ast.NewBody("funcs")
	byteT := ast.LogicType(8, false)

	x := ast.NewFormalArgument("x", byteT)
	retVar := ast.NewVariable("f", byteT)
	fnBody := ast.NewExpressionStatement(ast.NewAssignment(false,
		ast.NewNamedValue(retVar),
		ast.NewBinary(ast.BinaryAdd, ast.NewNamedValue(x),
			ast.NewIntegerLiteral(ast.MakeSVInt(8, 1, false)), byteT)))
	fn := ast.NewSubroutine("f", ast.SubroutineFunction,
		[]*ast.FormalArgumentSymbol{x}, fnBody, retVar)
	body.AddMember(fn)

	z := ast.NewNet("z", byteT)
	y := ast.NewNet("y", byteT)
	body.AddMember(z)
	body.AddMember(y)
	body.AddMember(ast.NewContinuousAssign(ast.NewAssignment(false,
		ast.NewNamedValue(y), ast.NewUserCall(fn, []ast.Expression{ast.NewNamedValue(z)}))))

	mod := elaborateTop(t, body)

	if len(mod.Processes) != 1 {
		t.Fatalf("processes = %d, want the inlined function process", len(mod.Processes))
	}
	proc := mod.Processes[0]
	if len(proc.Syncs) != 0 {
		t.Errorf("function process has %d sync rules, want none", len(proc.Syncs))
	}

	adds := findCells(mod, "add")
	if len(adds) != 1 {
		t.Fatalf("add cells = %d, want 1", len(adds))
	}
	// The formal argument binds to the actual argument's wire.
	if adds[0].Ports["A"].String() != "\\top.z" {
		t.Errorf("add A = %s, want the call argument", adds[0].Ports["A"])
	}

	entry := entryCase(t, proc)
	if len(entry.Actions) != 1 || !isStagingWire(entry.Actions[0].First) {
		t.Fatal("function body does not stage its return value")
	}
	if entry.Actions[0].Second.String() != adds[0].Ports["Y"].String() {
		t.Error("staged value is not the adder output")
	}

	// The call site consumes the staged return bits.
	if len(mod.Connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(mod.Connections))
	}
	if !isStagingWire(mod.Connections[0].Second) {
		t.Errorf("y <- %s, want the staged return", mod.Connections[0].Second)
	}
}

// always @(posedge clk) if (en) $display("x=%d", x);
func TestDisplayLowering(t *testing.T) {
	body := ast.NewBody("printer")
	clk := ast.NewNet("clk", bit1(false))
	en := ast.NewNet("en", bit1(false))
	x := ast.NewNet("x", ast.LogicType(8, false))
	for _, sym := range []ast.Symbol{clk, en, x} {
		body.AddMember(sym)
	}

	display := ast.NewExpressionStatement(ast.NewSystemCall("$display", []ast.Expression{
		ast.NewStringLiteral("x=%d"),
		ast.NewNamedValue(x),
	}, &ast.Type{Kind: ast.TypeVoid}))
	guarded := ast.NewConditionalStatement(ast.NewNamedValue(en), display, nil)
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlways,
		ast.NewTimedStatement(ast.NewSignalEvent(ast.NewNamedValue(clk), ast.EdgePos), guarded)))

	mod := elaborateTop(t, body)

	prints := findCells(mod, "print")
	if len(prints) != 1 {
		t.Fatalf("print cells = %d, want 1", len(prints))
	}
	cell := prints[0]

	if cell.Ports["TRG"].String() != "\\top.clk" {
		t.Errorf("trigger = %s, want clk", cell.Ports["TRG"])
	}
	if cell.Parameters["TRG_POLARITY"].String() != "1" {
		t.Errorf("polarity = %s, want 1", cell.Parameters["TRG_POLARITY"])
	}
	if cell.Parameters["TRG_ENABLE"].AsInt(false) != 1 {
		t.Error("TRG_ENABLE not set for an edge-triggered print")
	}
	if got := cell.Parameters["FORMAT"].AsString(); got != "x={8:du}\n" {
		t.Errorf("format = %q, want %q", got, "x={8:du}\n")
	}
	if cell.Ports["ARGS"].String() != "\\top.x" {
		t.Errorf("args = %s, want x", cell.Ports["ARGS"])
	}

	// The enable is 0 by default and 1 only in the taken branch.
	proc := mod.Processes[0]
	enSig := cell.Ports["EN"]
	foundDefault := false
	for _, act := range proc.RootCase.Actions {
		if act.First.String() == enSig.String() && act.Second.String() == "0" {
			foundDefault = true
		}
	}
	if !foundDefault {
		t.Error("enable has no 0 default in the root case")
	}

	entry := entryCase(t, proc)
	then := entry.Switches[0].Cases[0]
	foundSet := false
	for _, act := range then.Actions {
		if act.First.String() == enSig.String() && act.Second.String() == "1" {
			foundSet = true
		}
	}
	if !foundSet {
		t.Error("enable is not set to 1 in the taken branch")
	}
}

// A constant continuous assign folds to a single connect with no cells.
func TestConstantFoldRoundTrip(t *testing.T) {
	body := ast.NewBody("constfold")
	byteT := ast.LogicType(8, false)
	y := ast.NewNet("y", byteT)
	body.AddMember(y)
	expr := ast.NewBinary(ast.BinaryAdd,
		ast.NewIntegerLiteral(ast.MakeSVInt(8, 5, false)),
		ast.NewIntegerLiteral(ast.MakeSVInt(8, 10, false)), byteT)
	body.AddMember(ast.NewContinuousAssign(ast.NewAssignment(false, ast.NewNamedValue(y), expr)))

	mod := elaborateTop(t, body)
	if len(mod.Cells) != 0 {
		t.Errorf("constant assign emitted %d cells", len(mod.Cells))
	}
	if len(mod.Connections) != 1 {
		t.Fatalf("connections = %d, want 1", len(mod.Connections))
	}
	conn := mod.Connections[0]
	if !conn.Second.IsFullyConst() || conn.Second.AsInt(false) != 15 {
		t.Errorf("y <- %s, want constant 15", conn.Second)
	}
}

// Mixing blocking and non-blocking writes to one bit is fatal.
func TestBlockingNonBlockingMixIsFatal(t *testing.T) {
	body := ast.NewBody("mix")
	clk := ast.NewNet("clk", bit1(false))
	a := ast.NewVariable("a", bit1(false))
	b := ast.NewNet("b", bit1(false))
	for _, sym := range []ast.Symbol{clk, a, b} {
		body.AddMember(sym)
	}
	stmts := ast.NewStatementList(
		ast.NewExpressionStatement(ast.NewAssignment(false, ast.NewNamedValue(a), ast.NewNamedValue(b))),
		ast.NewExpressionStatement(ast.NewAssignment(true, ast.NewNamedValue(a), ast.NewNamedValue(b))),
	)
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlways,
		ast.NewTimedStatement(ast.NewSignalEvent(ast.NewNamedValue(clk), ast.EdgePos), stmts)))

	exitCalled := false
	prevExit := util.ExitFunc
	util.ExitFunc = func(int) { exitCalled = true; panic("fatal diagnostic") }
	defer func() {
		util.ExitFunc = prevExit
		if r := recover(); r == nil || !exitCalled {
			t.Error("blocking/non-blocking mix did not abort")
		}
	}()

	elaborateTop(t, body)
}

// Ports propagate directions onto their internal wires and the module
// check accepts the result.
func TestPortDirectionsAndInit(t *testing.T) {
	body := ast.NewBody("ports")
	din := ast.NewNet("din", ast.LogicType(4, false))
	dout := ast.NewVariable("dout", ast.LogicType(4, false))
	dout.Init = ast.NewIntegerLiteral(ast.MakeSVInt(4, 9, false))
	bidir := ast.NewNet("bidir", bit1(false))
	body.AddMember(din)
	body.AddMember(dout)
	body.AddMember(bidir)
	body.AddMember(ast.NewPort("din", ast.DirIn, din))
	body.AddMember(ast.NewPort("dout", ast.DirOut, dout))
	body.AddMember(ast.NewPort("bidir", ast.DirInOut, bidir))

	mod := elaborateTop(t, body)

	dinW := mod.Wire("\\top.din")
	if !dinW.PortInput || dinW.PortOutput {
		t.Error("din direction wrong")
	}
	doutW := mod.Wire("\\top.dout")
	if doutW.PortInput || !doutW.PortOutput {
		t.Error("dout direction wrong")
	}
	bidirW := mod.Wire("\\top.bidir")
	if !bidirW.PortInput || !bidirW.PortOutput {
		t.Error("bidir direction wrong")
	}

	if got := doutW.Attributes["init"].String(); got != "1001" {
		t.Errorf("init attribute = %s, want 1001", got)
	}

	ports := mod.Ports()
	if len(ports) != 3 {
		t.Fatalf("ports = %d, want 3", len(ports))
	}
	// Ordered by name after fixup.
	if ports[0] != bidirW || ports[1] != dinW || ports[2] != doutW {
		t.Error("port order not name-sorted")
	}
}

// A child instance becomes a cell typed by the child's hierarchical
// module name, with its own module elaborated alongside.
func TestChildInstance(t *testing.T) {
	childBody := ast.NewBody("leaf")
	cin := ast.NewNet("i", bit1(false))
	cout := ast.NewVariable("o", bit1(false))
	childBody.AddMember(cin)
	childBody.AddMember(cout)
	inPort := ast.NewPort("i", ast.DirIn, cin)
	outPort := ast.NewPort("o", ast.DirOut, cout)
	childBody.AddMember(inPort)
	childBody.AddMember(outPort)

	child := ast.NewInstance("u0", childBody)

	top := ast.NewBody("parent")
	src := ast.NewNet("src", bit1(false))
	dst := ast.NewNet("dst", bit1(false))
	top.AddMember(src)
	top.AddMember(dst)
	child.PortConnections = []*ast.PortConnection{
		{Port: inPort, Expr: ast.NewNamedValue(src)},
		{Port: outPort, Expr: ast.NewAssignment(false, ast.NewNamedValue(dst), ast.NewEmptyArgument())},
	}
	top.AddMember(child)

	root := ast.NewRoot()
	root.AddMember(ast.NewInstance("top", top))
	design := Elaborate(ast.NewCompilation(root, nil), config.NewConfig())

	if len(design.ModuleOrder) != 2 {
		t.Fatalf("modules = %d, want parent and child", len(design.ModuleOrder))
	}
	parent := design.Module("\\top")
	childMod := design.Module("\\top.u0")
	if parent == nil || childMod == nil {
		t.Fatal("expected modules named \\top and \\top.u0")
	}

	if len(parent.Cells) != 1 {
		t.Fatalf("parent cells = %d, want 1", len(parent.Cells))
	}
	cell := parent.Cells[0]
	if cell.Type != "\\top.u0" {
		t.Errorf("cell type = %s", cell.Type)
	}
	if cell.Ports["\\top.u0.i"].String() != "\\top.src" {
		t.Errorf("input binding = %s", cell.Ports["\\top.u0.i"])
	}
	if cell.Ports["\\top.u0.o"].String() != "\\top.dst" {
		t.Errorf("output binding = %s", cell.Ports["\\top.u0.o"])
	}

	if childMod.Wire("\\top.u0.i") == nil || !childMod.Wire("\\top.u0.i").PortInput {
		t.Error("child input port wire missing or undirected")
	}
}

// Part-select assignment writes only the selected bits and keeps the
// rest of the destination via its pre-assignment value.
func TestPartSelectAssignment(t *testing.T) {
	body := ast.NewBody("partsel")
	word := ast.NewVariable("w", ast.LogicType(8, false))
	nib := ast.NewNet("n", ast.LogicType(4, false))
	body.AddMember(word)
	body.AddMember(nib)

	target := ast.NewRangeSelect(ast.NewNamedValue(word),
		ast.NewIntegerLiteral(ast.MakeSVInt(8, 7, false)),
		ast.NewIntegerLiteral(ast.MakeSVInt(8, 4, false)),
		ast.LogicType(4, false))
	body.AddMember(ast.NewProceduralBlock(ast.BlockAlwaysComb,
		ast.NewExpressionStatement(ast.NewAssignment(false, target, ast.NewNamedValue(nib)))))

	mod := elaborateTop(t, body)
	proc := mod.Processes[0]
	entry := entryCase(t, proc)

	// Only the four selected bits are staged and written.
	if len(entry.Actions) != 1 {
		t.Fatalf("actions = %d, want 1", len(entry.Actions))
	}
	act := entry.Actions[0]
	if act.First.Size() != 4 || !isStagingWire(act.First) {
		t.Errorf("selected write target = %s", act.First)
	}
	if act.Second.String() != "\\top.n" {
		t.Errorf("selected write source = %s", act.Second)
	}

	// The root case defaults only those four staging bits.
	if len(proc.RootCase.Actions) != 1 {
		t.Fatalf("root defaults = %d, want 1", len(proc.RootCase.Actions))
	}
	if got := proc.RootCase.Actions[0].Second.String(); got != "\\top.w[7:4]" {
		t.Errorf("default reads %s, want \\top.w[7:4]", got)
	}
}
