package elaborate

import (
	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

// addWires is the pre-pass that gives every value symbol in a body its
// wire, so expression lowering can resolve names in any order. Child
// instances keep to their own modules.
func addWires(ctx *Context, mod *rtlil.Module, body *ast.InstanceBodySymbol) {
	addWiresForMembers(ctx, mod, body.Members)
}

func addWiresForMembers(ctx *Context, mod *rtlil.Module, members []ast.Symbol) {
	for _, m := range members {
		switch sym := m.(type) {
		case *ast.InstanceSymbol:
			// Not ours.
		case *ast.NetSymbol:
			addValueWire(ctx, mod, sym)
		case *ast.VariableSymbol:
			addValueWire(ctx, mod, sym)
		case *ast.GenerateBlockSymbol:
			if !sym.Uninstantiated {
				addWiresForMembers(ctx, mod, sym.Members)
			}
		case *ast.StatementBlockSymbol:
			addWiresForMembers(ctx, mod, sym.Members)
		case *ast.SubroutineSymbol:
			// The return value needs a placeholder wire for function
			// inlining to stage through; arguments bind directly.
			if sym.ReturnValVar != nil {
				addValueWire(ctx, mod, sym.ReturnValVar)
			}
		}
	}
}

func addValueWire(ctx *Context, mod *rtlil.Module, sym ast.ValueSymbol) {
	util.Require(ctx.sm(), sym, sym.Source(), sym.ValueType().IsFixedSize(), "fixed-size value")
	w := mod.AddWire(netID(sym), sym.ValueType().BitstreamWidth())
	ctx.transferAttrs(sym, w)
}

// populator walks an instance body and fills its module with ports,
// connects, child cells and processes.
type populator struct {
	ctx *Context
	mod *rtlil.Module
}

func (p *populator) sm() *ast.SourceManager { return p.ctx.sm() }

func (p *populator) evaluator() *Evaluator { return NewEvaluator(p.ctx, p.mod) }

func (p *populator) visitBody(body *ast.InstanceBodySymbol) {
	p.visitMembers(body.Members)
}

func (p *populator) visitMembers(members []ast.Symbol) {
	for _, m := range members {
		p.visitMember(m)
	}
}

func (p *populator) visitMember(member ast.Symbol) {
	switch sym := member.(type) {
	case *ast.ParameterSymbol, *ast.TypeAliasSymbol, *ast.NetTypeSymbol,
		*ast.TransparentMemberSymbol, *ast.SubroutineSymbol:
		// Nothing to lower.

	case *ast.StatementBlockSymbol:
		p.visitMembers(sym.Members)

	case *ast.GenerateBlockSymbol:
		if sym.Uninstantiated {
			return
		}
		p.visitMembers(sym.Members)

	case *ast.InstanceBodySymbol:
		p.visitMembers(sym.Members)

	case *ast.NetSymbol:
		if sym.Init != nil {
			ev := p.evaluator()
			p.mod.Connect(rtlil.FromWire(p.mod.Wire(netID(sym))), ev.EvaluateRHS(sym.Init, nil))
		}

	case *ast.VariableSymbol:
		p.populateVariable(sym)

	case *ast.PortSymbol:
		p.populatePort(sym)

	case *ast.ContinuousAssignSymbol:
		ev := p.evaluator()
		p.mod.Connect(ev.EvaluateLHS(sym.Assignment.Left), ev.EvaluateRHS(sym.Assignment.Right, nil))

	case *ast.InstanceSymbol:
		p.populateChildInstance(sym)

	case *ast.ProceduralBlockSymbol:
		p.populateProceduralBlock(sym)

	default:
		util.Unsupported(p.sm(), member, member.Source(), "")
	}
}

// populateVariable derives the wire's init attribute: a constant
// initializer when present, the type's default value otherwise. Fully
// undefined defaults carry no information and are dropped.
func (p *populator) populateVariable(sym *ast.VariableSymbol) {
	if !p.ctx.Cfg.IsFeatureEnabled(config.FeatInitAttrs) {
		return
	}
	w := p.mod.Wire(netID(sym))
	if w == nil {
		util.Error(p.sm(), sym.Source(), "no wire for variable %s", ast.HierarchicalPath(sym))
	}
	var defvalue ast.ConstantValue
	if sym.Init != nil {
		cv, ok := ast.TryEval(sym.Init)
		util.Require(p.sm(), sym, sym.Source(), ok, "variable initializer is constant")
		defvalue = cv
	} else {
		defvalue = sym.Type.DefaultValue()
	}
	initval := p.ctx.constConst(defvalue, sym, sym.Source())
	if !initval.IsFullyUndef() {
		w.SetAttribute("init", initval)
	}
}

func (p *populator) populatePort(sym *ast.PortSymbol) {
	if sym.InternalSymbol == nil {
		util.Error(p.sm(), sym.Source(), "port %s has no internal symbol", sym.Name())
	}
	wire := p.mod.Wire(netID(sym.InternalSymbol))
	if wire == nil {
		util.Error(p.sm(), sym.Source(), "no wire for port %s", sym.Name())
	}
	switch sym.Direction {
	case ast.DirIn:
		wire.PortInput = true
	case ast.DirOut:
		wire.PortOutput = true
	case ast.DirInOut:
		wire.PortInput = true
		wire.PortOutput = true
	case ast.DirRef:
		// Neither direction; left as a plain wire.
	}
}

// populateChildInstance adds a cell whose type names the child's own
// module. Output-shaped arguments bind as l-values, everything else as
// r-values.
func (p *populator) populateChildInstance(sym *ast.InstanceSymbol) {
	util.Require(p.sm(), sym, sym.Source(), sym.IsModule(), "child instance is a module")
	modName := ast.HierarchicalPath(sym.Body)
	cell := p.mod.AddCell(escapeID(sym.Name()), escapeID(modName))
	ev := p.evaluator()
	for _, conn := range sym.PortConnections {
		if conn.Expr == nil {
			util.Warn(p.ctx.Cfg, config.WarnUnconnectedPort, p.sm(), sym.Source(),
				"port %s of instance %s is unconnected", conn.Port.Name(), sym.Name())
			continue
		}
		var signal rtlil.SigSpec
		if assign, ok := conn.Expr.(*ast.AssignmentExpr); ok {
			_, empty := assign.Right.(*ast.EmptyArgumentExpr)
			util.Require(p.sm(), conn.Expr, conn.Expr.Source(), empty, "output port binding shape")
			signal = ev.EvaluateLHS(assign.Left)
		} else {
			signal = ev.EvaluateRHS(conn.Expr, nil)
		}
		cell.SetPort(netID(conn.Port.InternalSymbol), signal)
	}
	p.ctx.transferAttrs(sym, cell)
}

// populateSync translates a timing control into sync rules; false means
// the control kind is not supported.
func (p *populator) populateSync(proc *rtlil.Process, timing ast.TimingControl) bool {
	switch tc := timing.(type) {
	case *ast.SignalEventControl:
		ev := p.evaluator()
		sync := &rtlil.SyncRule{}
		proc.Syncs = append(proc.Syncs, sync)
		sig := ev.EvaluateRHS(tc.Expr, nil)
		util.Require(p.sm(), tc, tc.Source(), tc.IffCondition == nil, "no iff qualifier")
		sync.Signal = sig
		switch tc.Edge {
		case ast.EdgeNone:
			util.Warn(p.ctx.Cfg, config.WarnNonEdgeSensitivity, p.sm(), tc.Source(),
				"turning non-edge sensitivity on %s to implicit sensitivity", sig)
			sync.Type = rtlil.SyncAlways
			sync.Signal = rtlil.SigSpec{}
		case ast.EdgePos:
			p.requireOneBit(tc, sig)
			sync.Type = rtlil.SyncPosedge
		case ast.EdgeNeg:
			p.requireOneBit(tc, sig)
			sync.Type = rtlil.SyncNegedge
		case ast.EdgeBoth:
			p.requireOneBit(tc, sig)
			sync.Type = rtlil.SyncBothEdges
		}
		return true

	case *ast.ImplicitEventControl:
		proc.Syncs = append(proc.Syncs, &rtlil.SyncRule{Type: rtlil.SyncAlways})
		return true

	case *ast.EventListControl:
		for _, ev := range tc.Events {
			if !p.populateSync(proc, ev) {
				return false
			}
		}
		return true
	}
	return false
}

func (p *populator) requireOneBit(tc ast.TimingControl, sig rtlil.SigSpec) {
	util.Require(p.sm(), tc, tc.Source(), sig.Size() == 1, "edge signal is one bit")
}

func (p *populator) populateProceduralBlock(sym *ast.ProceduralBlockSymbol) {
	switch sym.Kind {
	case ast.BlockAlways, ast.BlockAlwaysFF:
		proc := p.mod.AddProcess()
		p.ctx.transferAttrs(sym, proc)
		timed, ok := sym.Body.(*ast.TimedStatement)
		util.Require(p.sm(), sym, sym.Source(), ok, "always body is a timed statement")
		if !p.populateSync(proc, timed.Timing) {
			util.Unsupported(p.sm(), timed.Timing, timed.Timing.Source(), "")
		}
		visitor := NewProceduralVisitor(p.ctx, p.mod, proc, ModeAlways)
		visitor.Visit(timed.Stmt)
		visitor.stagingDone()

	case ast.BlockAlwaysComb, ast.BlockAlwaysLatch:
		proc := p.mod.AddProcess()
		p.ctx.transferAttrs(sym, proc)
		proc.Syncs = append(proc.Syncs, &rtlil.SyncRule{Type: rtlil.SyncAlways})
		visitor := NewProceduralVisitor(p.ctx, p.mod, proc, ModeAlways)
		visitor.Visit(sym.Body)
		visitor.stagingDone()

	case ast.BlockInitial:
		// Simulation-only semantics; reject anything that would lower
		// to logic but accept empty stubs.
		rejectInitial(p.ctx, sym.Body)

	case ast.BlockFinal:
		// Ignored entirely.

	default:
		util.Unsupported(p.sm(), sym, sym.Source(), "")
	}
}

// rejectInitial tolerates empty initial blocks and rejects the rest:
// initial semantics beyond nothing-at-all are out of scope.
func rejectInitial(ctx *Context, stmt ast.Statement) {
	switch st := stmt.(type) {
	case *ast.EmptyStatement:
	case *ast.BlockStatement:
		rejectInitial(ctx, st.Body)
	case *ast.StatementList:
		for _, child := range st.List {
			rejectInitial(ctx, child)
		}
	default:
		util.Unsupported(ctx.sm(), stmt, stmt.Source(), "")
	}
}
