// Package elaborate lowers a checked SystemVerilog AST into the netlist
// IR: expressions become bit vectors and primitive cells, procedural
// blocks become case trees with staging wires, instances become modules.
package elaborate

import (
	"strings"

	"github.com/xplshn/svrtl/pkg/ast"
	"github.com/xplshn/svrtl/pkg/config"
	"github.com/xplshn/svrtl/pkg/rtlil"
	"github.com/xplshn/svrtl/pkg/util"
)

// Context bundles the handles every pass needs: the compilation (AST root
// plus source manager), the configuration, and the design under
// construction. It is passed by reference everywhere; there is no global
// state.
type Context struct {
	Comp   *ast.Compilation
	Cfg    *config.Config
	Design *rtlil.Design
}

func (c *Context) sm() *ast.SourceManager { return c.Comp.SourceMgr }

// escapeID turns a user-facing name into a netlist identifier. Public
// names get a backslash prefix; autogenerated names keep their dollar.
func escapeID(name string) string {
	if name == "" || strings.HasPrefix(name, "\\") || strings.HasPrefix(name, "$") {
		return name
	}
	return "\\" + name
}

// netID names the wire belonging to a value symbol by its hierarchical
// path.
func netID(sym ast.Symbol) string {
	return escapeID(ast.HierarchicalPath(sym))
}

// svintConst converts a four-valued AST integer into an IR constant.
func svintConst(v ast.SVInt) rtlil.Const {
	bits := make([]rtlil.State, v.Width())
	for i, b := range v.Bits {
		switch b {
		case ast.L0:
			bits[i] = rtlil.S0
		case ast.L1:
			bits[i] = rtlil.S1
		case ast.LZ:
			bits[i] = rtlil.Sz
		default:
			bits[i] = rtlil.Sx
		}
	}
	return rtlil.Const{Bits: bits}
}

// constConst flattens a constant value (integer, unpacked aggregate or
// string) into an IR constant. Unpacked elements pack with the first
// element in the most significant position, matching the wire layout the
// element-select translation produces.
func (c *Context) constConst(cv ast.ConstantValue, node any, rng ast.SourceRange) rtlil.Const {
	switch {
	case cv.IsInteger():
		return svintConst(cv.Integer())
	case cv.IsUnpacked():
		var bits []rtlil.State
		for _, el := range cv.Elements() {
			piece := c.constConst(el, node, rng)
			bits = append(append([]rtlil.State{}, piece.Bits...), bits...)
		}
		return rtlil.Const{Bits: bits}
	case cv.IsString():
		ret := svintConst(cv.ConvertToInt().Integer())
		ret.Flags |= rtlil.ConstFlagString
		return ret
	default:
		util.Unsupported(c.sm(), node, rng, "constant value kind")
		return rtlil.Const{}
	}
}

// attrTarget is anything an attribute can be copied onto.
type attrTarget interface {
	SetAttribute(name string, value rtlil.Const)
}

type sourced interface {
	Source() ast.SourceRange
}

// transferAttrs copies the src attribute and any user (* ... *)
// annotations from an AST node onto an IR element.
func (c *Context) transferAttrs(from any, to attrTarget) {
	if s, ok := from.(sourced); ok && c.Cfg.IsFeatureEnabled(config.FeatSrcAttrs) {
		if src := c.sm().FormatSrc(s.Source()); src != "" {
			to.SetAttribute("src", stringConst(src))
		}
	}
	for _, attr := range c.Comp.Attributes(from) {
		rng := ast.SourceRange{}
		if s, ok := from.(sourced); ok {
			rng = s.Source()
		}
		util.Require(c.sm(), from, rng, attr.Value.IsInteger(), "attribute value is integer")
		to.SetAttribute(escapeID(attr.Name), svintConst(attr.Value.Integer()))
	}
}

// ceilLog2 is the number of select bits needed to address n slots.
func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	bits := 0
	for v := n - 1; v > 0; v >>= 1 {
		bits++
	}
	return bits
}

// Elaborate lowers every named instance reachable from the design root
// and returns the finished netlist.
func Elaborate(comp *ast.Compilation, cfg *config.Config) *rtlil.Design {
	ctx := &Context{Comp: comp, Cfg: cfg, Design: rtlil.NewDesign()}
	for _, inst := range comp.TopInstances() {
		elaborateInstance(ctx, inst)
	}
	return ctx.Design
}

// elaborateInstance creates the module for one instance and recurses into
// its children; unnamed instances are skipped outright.
func elaborateInstance(ctx *Context, inst *ast.InstanceSymbol) {
	if inst.Name() == "" {
		return
	}
	util.Require(ctx.sm(), inst, inst.Source(), inst.IsModule(), "instance is a module")

	hierName := ast.HierarchicalPath(inst.Body)
	mod := ctx.Design.AddModule(escapeID(hierName))
	ctx.transferAttrs(inst.Body, mod)

	addWires(ctx, mod, inst.Body)

	pop := &populator{ctx: ctx, mod: mod}
	pop.visitBody(inst.Body)

	mod.FixupPorts()
	if ctx.Cfg.IsFeatureEnabled(config.FeatCheck) {
		if err := mod.Check(); err != nil {
			util.Error(ctx.sm(), inst.Source(), "internal consistency check failed: %v", err)
		}
	}

	forEachChildInstance(inst.Body.Members, func(child *ast.InstanceSymbol) {
		elaborateInstance(ctx, child)
	})
}

// forEachChildInstance finds instance symbols nested under a body,
// looking through generate and statement block scopes.
func forEachChildInstance(members []ast.Symbol, f func(*ast.InstanceSymbol)) {
	for _, m := range members {
		switch sym := m.(type) {
		case *ast.InstanceSymbol:
			f(sym)
		case *ast.GenerateBlockSymbol:
			if !sym.Uninstantiated {
				forEachChildInstance(sym.Members, f)
			}
		case *ast.StatementBlockSymbol:
			forEachChildInstance(sym.Members, f)
		}
	}
}
