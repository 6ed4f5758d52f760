package elaborate

import (
	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

// Mode distinguishes an always-block walk from a function inlining walk.
type Mode int

const (
	ModeAlways Mode = iota
	ModeFunction
)

// ProceduralVisitor lowers one procedure body into a process's case tree.
// Blocking assignments shadow subsequent reads through the procedure
// context; every write lands on a staging wire that stagingDone commits.
type ProceduralVisitor struct {
	ctx  *Context
	mod  *rtlil.Module
	ev   *Evaluator
	proc *rtlil.Process
	mode Mode

	pctx        *ProcedureContext
	currentCase *rtlil.CaseRule

	assignedBlocking    map[rtlil.SigBit]bool
	assignedNonblocking map[rtlil.SigBit]bool

	staging       map[rtlil.SigBit]rtlil.SigBit
	printPriority int
}

// NewProceduralVisitor prepares a visitor whose writes start inside a
// fresh case nested under the process root, so that root-case defaults
// keep lower priority than any procedural action.
func NewProceduralVisitor(ctx *Context, mod *rtlil.Module, proc *rtlil.Process, mode Mode) *ProceduralVisitor {
	v := &ProceduralVisitor{
		ctx:                 ctx,
		mod:                 mod,
		ev:                  NewEvaluator(ctx, mod),
		proc:                proc,
		mode:                mode,
		pctx:                NewProcedureContext(),
		assignedBlocking:    make(map[rtlil.SigBit]bool),
		assignedNonblocking: make(map[rtlil.SigBit]bool),
		staging:             make(map[rtlil.SigBit]rtlil.SigBit),
	}
	topSwitch := &rtlil.SwitchRule{}
	proc.RootCase.Switches = append(proc.RootCase.Switches, topSwitch)
	v.currentCase = &rtlil.CaseRule{}
	topSwitch.Cases = append(topSwitch.Cases, v.currentCase)
	return v
}

// Context exposes the procedure context for function-argument binding.
func (v *ProceduralVisitor) Context() *ProcedureContext { return v.pctx }

// stagingSignal maps destination bits to their per-process staging wires,
// allocating fresh wires chunk-wise on first use. A staging mapping is
// stable for the rest of the process.
func (v *ProceduralVisitor) stagingSignal(lvalue rtlil.SigSpec) rtlil.SigSpec {
	var toCreate rtlil.SigSpec
	for _, bit := range lvalue.Bits() {
		if bit.Wire == nil {
			util.Error(v.ctx.sm(), ast.SourceRange{}, "procedural assignment to a constant bit")
		}
		if _, ok := v.staging[bit]; !ok {
			toCreate = toCreate.Append(rtlil.S(bit))
		}
	}

	toCreate = toCreate.SortAndUnify()
	for _, chunk := range toCreate.Chunks() {
		w := v.mod.AddWire(v.mod.NewID("staging"), chunk.Width)
		spec := chunk.Spec()
		for i := 0; i < chunk.Width; i++ {
			v.staging[spec.Bit(i)] = rtlil.WireBit(w, i)
		}
	}

	return lvalue.Replace(v.staging)
}

// stagingDone publishes the staging layer: the root case defaults every
// staging wire to its destination's current value, and every sync rule
// commits the staging wire back. This realizes both non-blocking "read
// old, write new" and combinational last-write-wins.
func (v *ProceduralVisitor) stagingDone() {
	var allDriven rtlil.SigSpec
	for bit := range v.staging {
		allDriven = allDriven.Append(rtlil.S(bit))
	}
	allDriven = allDriven.SortAndUnify()

	for _, chunk := range allDriven.Chunks() {
		spec := chunk.Spec()
		mapped := spec.Replace(v.staging)
		for _, sync := range v.proc.Syncs {
			sync.Actions = append(sync.Actions, rtlil.SigSig{First: spec, Second: mapped})
		}
		v.proc.RootCase.Actions = append(v.proc.RootCase.Actions,
			rtlil.SigSig{First: mapped, Second: spec})
	}
}

// contextEnable returns a bit that is 1 exactly when control reaches the
// current case branch.
func (v *ProceduralVisitor) contextEnable() rtlil.SigSpec {
	w := v.mod.AddWire(v.mod.NewID("enable"), 1)
	sig := rtlil.FromWire(w)
	v.proc.RootCase.Actions = append(v.proc.RootCase.Actions,
		rtlil.SigSig{First: sig, Second: rtlil.FromConst(rtlil.NewConst(0, 1))})
	v.currentCase.Actions = append(v.currentCase.Actions,
		rtlil.SigSig{First: sig, Second: rtlil.FromConst(rtlil.NewConst(1, 1))})
	return sig
}

// setCellTrigger derives a print cell's trigger list from the enclosing
// process's sync rules and wires its enable to the current branch.
func (v *ProceduralVisitor) setCellTrigger(cell *rtlil.Cell, rng ast.SourceRange) {
	implicit := false
	var triggers rtlil.SigSpec
	var polarity rtlil.Const

	for _, sync := range v.proc.Syncs {
		switch sync.Type {
		case rtlil.SyncPosedge, rtlil.SyncNegedge:
			if sync.Signal.Size() != 1 {
				util.Error(v.ctx.sm(), rng, "edge sync on a %d-bit signal", sync.Signal.Size())
			}
			triggers = triggers.Append(sync.Signal)
			if sync.Type == rtlil.SyncPosedge {
				polarity.Bits = append(polarity.Bits, rtlil.S1)
			} else {
				polarity.Bits = append(polarity.Bits, rtlil.S0)
			}
		case rtlil.SyncAlways:
			implicit = true
		default:
			util.Error(v.ctx.sm(), rng, "unsupported sync type for print cell")
		}
	}

	if triggers.Empty() == !implicit {
		util.Error(v.ctx.sm(), rng, "print cell needs either edge triggers or implicit sensitivity")
	}
	cell.SetParamBool("TRG_ENABLE", !implicit)
	cell.SetParamInt("TRG_WIDTH", triggers.Size())
	cell.SetParam("TRG_POLARITY", polarity)
	cell.SetPort("TRG", triggers)
	cell.SetPort("EN", v.contextEnable())
}

// Visit dispatches one statement.
func (v *ProceduralVisitor) Visit(stmt ast.Statement) {
	switch st := stmt.(type) {
	case *ast.BlockStatement:
		util.Require(v.ctx.sm(), stmt, stmt.Source(), st.Kind == ast.BlockSequential, "sequential block")
		v.Visit(st.Body)

	case *ast.StatementList:
		for _, child := range st.List {
			v.Visit(child)
		}

	case *ast.EmptyStatement, *ast.VariableDeclStatement:
		// Declarations got their wires in the wire-adding pass.

	case *ast.ExpressionStatement:
		v.visitExpressionStatement(st)

	case *ast.ConditionalStatement:
		v.visitConditional(st)

	case *ast.CaseStatement:
		v.visitCase(st)

	case *ast.InvalidStatement:
		util.Error(v.ctx.sm(), stmt.Source(), "invalid statement survived type checking")

	default:
		util.Unsupported(v.ctx.sm(), stmt, stmt.Source(), "")
	}
}

func (v *ProceduralVisitor) visitExpressionStatement(stmt *ast.ExpressionStatement) {
	switch ex := stmt.Expr.(type) {
	case *ast.CallExpr:
		switch ex.SubroutineName() {
		case "empty_statement":
			// Dummy call some frontends insert for labels.
			util.Warn(v.ctx.Cfg, config.WarnEmptyStatement, v.ctx.sm(), stmt.Source(),
				"dropping empty_statement call")
		case "$display":
			v.lowerDisplay(stmt, ex)
		default:
			util.Unsupported(v.ctx.sm(), stmt, stmt.Source(), "")
		}
		return
	case *ast.AssignmentExpr:
		v.lowerAssignment(stmt, ex)
		return
	}
	util.Unsupported(v.ctx.sm(), stmt, stmt.Source(), "")
}

// cropZeroMask removes target positions whose mask bit is constant zero.
func cropZeroMask(mask, target rtlil.SigSpec) rtlil.SigSpec {
	out := target
	for i := mask.Size() - 1; i >= 0; i-- {
		b := mask.Bit(i)
		if b.Wire == nil && b.Data == rtlil.S0 {
			out = out.Remove(i, 1)
		}
	}
	return out
}

// lowerAssignment implements both assignment flavors: the l-value is
// etched outward through selects into a (mask, rvalue) pair over the
// whole destination, cropped back to the touched bits, and staged.
func (v *ProceduralVisitor) lowerAssignment(stmt *ast.ExpressionStatement, assign *ast.AssignmentExpr) {
	blocking := !assign.IsNonBlocking()
	sm := v.ctx.sm()

	rvalue := v.ev.EvaluateRHS(assign.Right, v.pctx)

	rawLexpr := assign.Left
	rawMask := rtlil.FromConst(rtlil.RepeatState(rtlil.S1, rvalue.Size()))
	rawRvalue := rvalue

	for etching := true; etching; {
		switch sel := rawLexpr.(type) {
		case *ast.RangeSelectExpr:
			util.Require(sm, stmt, stmt.Source(), sel.SelectionKind == ast.RangeSimple, "simple range selection")
			left, lok := constIndex(sel.Left)
			right, rok := constIndex(sel.Right)
			util.Require(sm, stmt, stmt.Source(), lok && rok, "range bounds are constant")
			inner := sel.Value.Type().Canonical()
			util.Require(sm, stmt, stmt.Source(), inner.HasFixedRange(), "selected value has fixed range")
			rng := inner.FixedRange()
			rawLeft := rng.TranslateIndex(left)
			rawRight := rng.TranslateIndex(right)
			if inner.BitstreamWidth()%rng.Width() != 0 {
				util.Error(sm, stmt.Source(), "range width does not divide value width")
			}
			stride := inner.BitstreamWidth() / rng.Width()
			elem0 := rtlil.FromConst(rtlil.RepeatState(rtlil.S0, stride))
			elemX := rtlil.FromConst(rtlil.RepeatState(rtlil.Sx, stride))
			rawMask = rtlil.S(elem0.Repeat(rawRight), rawMask, elem0.Repeat(rng.Width()-rawLeft-1))
			rawRvalue = rtlil.S(elemX.Repeat(rawRight), rawRvalue, elemX.Repeat(rng.Width()-rawLeft-1))
			rawLexpr = sel.Value

		case *ast.ElementSelectExpr:
			inner := sel.Value.Type().Canonical()
			util.Require(sm, stmt, stmt.Source(), inner.IsArray() && inner.HasFixedRange(), "fixed-range array")
			rng := inner.FixedRange()
			rawIdx, _ := v.ev.translateIndex(sel.Selector, rng, v.pctx)
			rawMask = v.ev.b.Demux(rawMask, rawIdx)
			rawMask = rawMask.ExtendU0(sel.Value.Type().BitstreamWidth(), false)
			rawRvalue = rawRvalue.Repeat(rng.Width())
			rawLexpr = sel.Value

		case *ast.MemberAccessExpr:
			field, ok := sel.Member.(*ast.FieldSymbol)
			util.Require(sm, stmt, stmt.Source(), ok, "member is a struct field")
			util.Require(sm, stmt, stmt.Source(), field.RandMode == ast.RandNone, "member is not randomized")
			pad := sel.Value.Type().BitstreamWidth() - sel.Type().BitstreamWidth() - field.BitOffset
			rawMask = rtlil.S(rtlil.RepeatState(rtlil.S0, field.BitOffset), rawMask,
				rtlil.RepeatState(rtlil.S0, pad))
			rawRvalue = rtlil.S(rtlil.RepeatState(rtlil.Sx, field.BitOffset), rawRvalue,
				rtlil.RepeatState(rtlil.Sx, pad))
			rawLexpr = sel.Value

		default:
			etching = false
		}

		if rawMask.Size() != rawLexpr.Type().BitstreamWidth() ||
			rawRvalue.Size() != rawLexpr.Type().BitstreamWidth() {
			util.Unsupported(sm, stmt, stmt.Source(), "etched mask covers the destination")
		}
	}

	lvalue := v.ev.EvaluateLHS(rawLexpr)
	lvalue = cropZeroMask(rawMask, lvalue)
	rawRvalue = cropZeroMask(rawMask, rawRvalue)
	rawMask = cropZeroMask(rawMask, rawMask)

	var maskedRvalue rtlil.SigSpec
	if rawMask.IsFullyOnes() {
		maskedRvalue = rawRvalue
	} else {
		sampledLvalue := lvalue.Replace(v.pctx.RValueSubs)
		maskedRvalue = v.ev.b.Bwmux(sampledLvalue, rawRvalue, rawMask)
	}

	if lvalue.Size() != maskedRvalue.Size() {
		util.Error(sm, stmt.Source(), "assignment width mismatch: %d vs %d",
			lvalue.Size(), maskedRvalue.Size())
	}

	if blocking {
		for i := 0; i < lvalue.Size(); i++ {
			if v.assignedNonblocking[lvalue.Bit(i)] {
				util.Error(sm, stmt.Source(), "bit %s assigned both blocking and non-blocking",
					lvalue.Bit(i))
			}
			v.pctx.RValueSubs[lvalue.Bit(i)] = maskedRvalue.Bit(i)
			v.assignedBlocking[lvalue.Bit(i)] = true
		}
	} else {
		for i := 0; i < lvalue.Size(); i++ {
			if v.assignedBlocking[lvalue.Bit(i)] {
				util.Error(sm, stmt.Source(), "bit %s assigned both blocking and non-blocking",
					lvalue.Bit(i))
			}
			v.assignedNonblocking[lvalue.Bit(i)] = true
		}
	}

	v.currentCase.Actions = append(v.currentCase.Actions, rtlil.SigSig{
		First:  v.stagingSignal(lvalue),
		Second: maskedRvalue,
	})
}

// visitConditional lowers if/else onto a one-bit switch, then parks
// follow-up statements inside an empty dummy switch so later writes rank
// above the branch writes.
func (v *ProceduralVisitor) visitConditional(cond *ast.ConditionalStatement) {
	sm := v.ctx.sm()
	util.Require(sm, cond, cond.Source(), len(cond.Conditions) == 1, "single condition")
	util.Require(sm, cond, cond.Source(), cond.Conditions[0].Pattern == nil, "no pattern matching")

	caseSave := v.currentCase
	condition := v.ev.b.ReduceBool(v.ev.EvaluateRHS(cond.Conditions[0].Expr, v.pctx))
	sb := NewSwitchBuilder(v.currentCase, v.pctx.RValueSubs, condition)
	v.ctx.transferAttrs(cond, sb.sw)

	sb.Branch([]rtlil.SigSpec{rtlil.FromConst(rtlil.NewConst(1, 1))}, func(rule *rtlil.CaseRule) {
		v.currentCase = rule
		v.ctx.transferAttrs(cond.IfTrue, rule)
		v.Visit(cond.IfTrue)
	})

	if cond.IfFalse != nil {
		sb.Branch(nil, func(rule *rtlil.CaseRule) {
			v.currentCase = rule
			v.ctx.transferAttrs(cond.IfFalse, rule)
			v.Visit(cond.IfFalse)
		})
	}
	sb.Finish(v.mod)

	v.currentCase = caseSave
	v.descendDummySwitch()
}

func (v *ProceduralVisitor) visitCase(stmt *ast.CaseStatement) {
	sm := v.ctx.sm()
	util.Require(sm, stmt, stmt.Source(), stmt.Condition == ast.CaseNormal, "normal case condition")
	if stmt.Check != ast.CheckNone {
		util.Warn(v.ctx.Cfg, config.WarnPriorityCheck, sm, stmt.Source(), "ignoring priority check")
	}

	caseSave := v.currentCase
	dispatch := v.ev.EvaluateRHS(stmt.Expr, v.pctx)
	sb := NewSwitchBuilder(v.currentCase, v.pctx.RValueSubs, dispatch)
	v.ctx.transferAttrs(stmt, sb.sw)

	for _, item := range stmt.Items {
		var compares []rtlil.SigSpec
		for _, expr := range item.Expressions {
			compare := v.ev.EvaluateRHS(expr, v.pctx)
			if compare.Size() != dispatch.Size() {
				util.Error(sm, stmt.Source(), "case label width %d against %d-bit dispatch",
					compare.Size(), dispatch.Size())
			}
			compares = append(compares, compare)
		}
		util.Require(sm, stmt, stmt.Source(), len(compares) > 0, "case item has labels")
		item := item
		sb.Branch(compares, func(rule *rtlil.CaseRule) {
			v.currentCase = rule
			v.ctx.transferAttrs(item.Stmt, rule)
			v.Visit(item.Stmt)
		})
	}

	if stmt.DefaultCase != nil {
		sb.Branch(nil, func(rule *rtlil.CaseRule) {
			v.currentCase = rule
			v.ctx.transferAttrs(stmt.DefaultCase, rule)
			v.Visit(stmt.DefaultCase)
		})
	}

	sb.Finish(v.mod)

	v.currentCase = caseSave
	v.descendDummySwitch()
}

// descendDummySwitch opens an empty switch and continues inside its only
// case, forcing follow-up actions to outrank the branch actions just
// closed.
func (v *ProceduralVisitor) descendDummySwitch() {
	dummy := &rtlil.SwitchRule{}
	v.currentCase.Switches = append(v.currentCase.Switches, dummy)
	v.currentCase = &rtlil.CaseRule{}
	dummy.Cases = append(dummy.Cases, v.currentCase)
}

// SwitchBuilder builds one switch rule and reconciles the divergent
// blocking-substitution deltas of its branches back into the parent
// scope.
type SwitchBuilder struct {
	parent     *rtlil.CaseRule
	sw         *rtlil.SwitchRule
	rvalueSubs map[rtlil.SigBit]rtlil.SigBit
	saved      map[rtlil.SigBit]rtlil.SigBit

	branchUpdates []branchUpdate
}

type branchUpdate struct {
	rule    *rtlil.CaseRule
	targets rtlil.SigSpec
	sources rtlil.SigSpec
}

func copySubs(m map[rtlil.SigBit]rtlil.SigBit) map[rtlil.SigBit]rtlil.SigBit {
	out := make(map[rtlil.SigBit]rtlil.SigBit, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func NewSwitchBuilder(parent *rtlil.CaseRule, rvalueSubs map[rtlil.SigBit]rtlil.SigBit,
	signal rtlil.SigSpec) *SwitchBuilder {

	sw := &rtlil.SwitchRule{Signal: signal}
	parent.Switches = append(parent.Switches, sw)
	return &SwitchBuilder{
		parent:     parent,
		sw:         sw,
		rvalueSubs: rvalueSubs,
		saved:      copySubs(rvalueSubs),
	}
}

// Branch runs f inside a new case arm, records which substitutions the
// arm changed, and restores the entry snapshot afterwards.
func (b *SwitchBuilder) Branch(compare []rtlil.SigSpec, f func(*rtlil.CaseRule)) {
	rule := &rtlil.CaseRule{Compare: compare}
	b.sw.Cases = append(b.sw.Cases, rule)
	f(rule)

	var update rtlil.SigSpec
	for key, val := range b.rvalueSubs {
		savedVal, had := b.saved[key]
		if !had || savedVal != val {
			update = update.Append(rtlil.S(key))
		}
	}
	update = update.Sort()
	updateMap := update.Replace(b.rvalueSubs)
	b.branchUpdates = append(b.branchUpdates, branchUpdate{rule: rule, targets: update, sources: updateMap})

	for k := range b.rvalueSubs {
		delete(b.rvalueSubs, k)
	}
	for k, val := range b.saved {
		b.rvalueSubs[k] = val
	}
}

// Finish merges the branches: one shadow wire per diverged destination,
// defaulted in the parent to the pre-switch value and overridden per
// branch, with the parent substitution map pointed at the shadows.
func (b *SwitchBuilder) Finish(mod *rtlil.Module) {
	var updatedAnybranch rtlil.SigSpec
	for _, branch := range b.branchUpdates {
		updatedAnybranch = updatedAnybranch.Append(branch.targets)
	}
	updatedAnybranch = updatedAnybranch.SortAndUnify()

	for _, chunk := range updatedAnybranch.Chunks() {
		w := mod.AddWire(mod.NewID(""), chunk.Width)
		spec := chunk.Spec()
		wDefault := spec.Replace(b.rvalueSubs)
		b.parent.Actions = append(b.parent.Actions,
			rtlil.SigSig{First: rtlil.FromWire(w), Second: wDefault})
		for i := 0; i < chunk.Width; i++ {
			b.rvalueSubs[spec.Bit(i)] = rtlil.WireBit(w, i)
		}
	}

	for _, branch := range b.branchUpdates {
		done := 0
		for _, chunk := range branch.targets.Chunks() {
			targetW := chunk.Spec().Replace(b.rvalueSubs)
			branch.rule.Actions = append(branch.rule.Actions,
				rtlil.SigSig{First: targetW, Second: branch.sources.Extract(done, chunk.Width)})
			done += chunk.Width
		}
	}
}

// evaluateFunction inlines a user function call: a fresh combinational
// process runs the body with arguments bound, and the call site reads the
// return-value wire through the staging map.
func (e *Evaluator) evaluateFunction(call *ast.CallExpr, pctx *ProcedureContext) rtlil.SigSpec {
	subr := call.Subroutine
	proc := e.mod.AddProcess()
	visitor := NewProceduralVisitor(e.ctx, e.mod, proc, ModeFunction)

	if len(call.Arguments) != len(subr.Args) {
		util.Error(e.sm(), call.Source(), "call has %d arguments, function %s takes %d",
			len(call.Arguments), subr.Name(), len(subr.Args))
	}
	for i, arg := range call.Arguments {
		visitor.pctx.Args[subr.Args[i]] = e.EvaluateRHS(arg, pctx)
	}
	visitor.Visit(subr.Body)
	visitor.stagingDone()

	// The wire-adding pass created a placeholder wire for the return
	// value symbol; the staged bits carry the computed result.
	retWire := e.mod.Wire(netID(subr.ReturnValVar))
	if retWire == nil {
		util.Error(e.sm(), call.Source(), "no wire for return value of %s", subr.Name())
	}
	return rtlil.FromWire(retWire).Replace(visitor.staging)
}
