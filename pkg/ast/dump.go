package ast

import (
	"encoding/json"
	"fmt"
	"io"
)

// DumpJSON serializes a compilation's design tree to pretty-printed JSON,
// the format the --dump-ast flag emits and LoadJSON reads back.
func DumpJSON(w io.Writer, comp *Compilation) error {
	doc := map[string]any{
		"kind":    "Root",
		"members": dumpMembers(comp.Root.Members),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func dumpMembers(members []Symbol) []any {
	out := make([]any, 0, len(members))
	for _, m := range members {
		out = append(out, dumpSymbol(m))
	}
	return out
}

func dumpSymbol(sym Symbol) map[string]any {
	var doc map[string]any
	switch s := sym.(type) {
	case *InstanceSymbol:
		conns := make([]any, 0, len(s.PortConnections))
		for _, conn := range s.PortConnections {
			entry := map[string]any{"port": conn.Port.Name()}
			if conn.Expr != nil {
				entry["expr"] = dumpExpr(conn.Expr)
			}
			conns = append(conns, entry)
		}
		doc = map[string]any{
			"kind":        "Instance",
			"body":        dumpSymbol(s.Body),
			"connections": conns,
		}
	case *InstanceBodySymbol:
		doc = map[string]any{
			"kind":    "InstanceBody",
			"members": dumpMembers(s.Members),
		}
	case *PortSymbol:
		doc = map[string]any{
			"kind":      "Port",
			"direction": dirName(s.Direction),
			"internal":  s.InternalSymbol.Name(),
		}
	case *NetSymbol:
		doc = map[string]any{"kind": "Net", "type": dumpType(s.Type)}
		if s.Init != nil {
			doc["init"] = dumpExpr(s.Init)
		}
	case *VariableSymbol:
		doc = map[string]any{"kind": "Variable", "type": dumpType(s.Type)}
		if s.Init != nil {
			doc["init"] = dumpExpr(s.Init)
		}
	case *ParameterSymbol:
		doc = map[string]any{"kind": "Parameter", "type": dumpType(s.Type)}
		if s.Init != nil {
			doc["init"] = dumpExpr(s.Init)
		}
	case *ContinuousAssignSymbol:
		doc = map[string]any{"kind": "ContinuousAssign", "assignment": dumpExpr(s.Assignment)}
	case *ProceduralBlockSymbol:
		doc = map[string]any{
			"kind":          "ProceduralBlock",
			"procedureKind": procKindName(s.Kind),
			"body":          dumpStmt(s.Body),
		}
	case *GenerateBlockSymbol:
		doc = map[string]any{
			"kind":           "GenerateBlock",
			"uninstantiated": s.Uninstantiated,
			"members":        dumpMembers(s.Members),
		}
	case *StatementBlockSymbol:
		doc = map[string]any{"kind": "StatementBlock", "members": dumpMembers(s.Members)}
	case *SubroutineSymbol:
		args := make([]any, 0, len(s.Args))
		for _, a := range s.Args {
			args = append(args, map[string]any{"name": a.Name(), "type": dumpType(a.Type)})
		}
		doc = map[string]any{
			"kind": "Subroutine",
			"args": args,
			"body": dumpStmt(s.Body),
		}
		if s.ReturnValVar != nil {
			doc["returnType"] = dumpType(s.ReturnValVar.Type)
		}
	case *TransparentMemberSymbol:
		doc = map[string]any{"kind": "TransparentMember"}
	case *TypeAliasSymbol:
		doc = map[string]any{"kind": "TypeAlias"}
	case *NetTypeSymbol:
		doc = map[string]any{"kind": "NetType"}
	default:
		doc = map[string]any{"kind": fmt.Sprintf("%T", sym)}
	}
	if sym.Name() != "" {
		doc["name"] = sym.Name()
	}
	return doc
}

func dirName(d ArgumentDirection) string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirInOut:
		return "inout"
	default:
		return "ref"
	}
}

func procKindName(k ProceduralBlockKind) string {
	switch k {
	case BlockAlways:
		return "always"
	case BlockAlwaysComb:
		return "always_comb"
	case BlockAlwaysLatch:
		return "always_latch"
	case BlockAlwaysFF:
		return "always_ff"
	case BlockInitial:
		return "initial"
	default:
		return "final"
	}
}

func dumpType(t *Type) map[string]any {
	switch t.Kind {
	case TypeIntegral:
		doc := map[string]any{"kind": "integral", "width": t.Width, "signed": t.Signed}
		if t.Range != nil {
			doc["range"] = []int{t.Range.Left, t.Range.Right}
		}
		return doc
	case TypeUnpackedArray:
		return map[string]any{
			"kind":  "array",
			"elem":  dumpType(t.Elem),
			"range": []int{t.Range.Left, t.Range.Right},
		}
	case TypePackedStruct:
		fields := make([]any, 0, len(t.Fields))
		for _, f := range t.Fields {
			fields = append(fields, map[string]any{
				"name":   f.Name(),
				"type":   dumpType(f.Type),
				"offset": f.BitOffset,
			})
		}
		return map[string]any{"kind": "struct", "fields": fields}
	case TypeString:
		return map[string]any{"kind": "string"}
	default:
		return map[string]any{"kind": "void"}
	}
}

var unaryOpNames = map[UnaryOperator]string{
	UnaryPlus:        "plus",
	UnaryMinus:       "minus",
	UnaryBitwiseNot:  "bnot",
	UnaryLogicalNot:  "lnot",
	UnaryBitwiseAnd:  "rand",
	UnaryBitwiseOr:   "ror",
	UnaryBitwiseXor:  "rxor",
	UnaryBitwiseNand: "rnand",
	UnaryBitwiseNor:  "rnor",
	UnaryBitwiseXnor: "rxnor",
}

var binaryOpNames = map[BinaryOperator]string{
	BinaryAdd:                  "add",
	BinarySubtract:             "sub",
	BinaryMultiply:             "mul",
	BinaryDivide:               "div",
	BinaryMod:                  "mod",
	BinaryAnd:                  "and",
	BinaryOr:                   "or",
	BinaryXor:                  "xor",
	BinaryXnor:                 "xnor",
	BinaryEquality:             "eq",
	BinaryInequality:           "ne",
	BinaryCaseEquality:         "eqx",
	BinaryCaseInequality:       "nex",
	BinaryWildcardEquality:     "weq",
	BinaryWildcardInequality:   "wne",
	BinaryGreaterThanEqual:     "ge",
	BinaryGreaterThan:          "gt",
	BinaryLessThanEqual:        "le",
	BinaryLessThan:             "lt",
	BinaryLogicalAnd:           "land",
	BinaryLogicalOr:            "lor",
	BinaryLogicalImplication:   "limp",
	BinaryLogicalEquivalence:   "leqv",
	BinaryLogicalShiftLeft:     "shll",
	BinaryLogicalShiftRight:    "shrl",
	BinaryArithmeticShiftLeft:  "shla",
	BinaryArithmeticShiftRight: "shra",
	BinaryPower:                "pow",
}

func dumpExpr(expr Expression) map[string]any {
	switch e := expr.(type) {
	case *NamedValueExpr:
		return map[string]any{"kind": "named", "symbol": e.Symbol.Name()}
	case *IntegerLiteral:
		return map[string]any{"kind": "literal", "bits": e.Value.String(), "signed": e.Value.Signed}
	case *StringLiteral:
		return map[string]any{"kind": "string", "value": e.Value}
	case *UnaryExpr:
		return map[string]any{
			"kind": "unary", "op": unaryOpNames[e.Op],
			"operand": dumpExpr(e.Operand), "type": dumpType(e.Type()),
		}
	case *BinaryExpr:
		return map[string]any{
			"kind": "binary", "op": binaryOpNames[e.Op],
			"left": dumpExpr(e.Left), "right": dumpExpr(e.Right), "type": dumpType(e.Type()),
		}
	case *ConversionExpr:
		return map[string]any{"kind": "conversion", "operand": dumpExpr(e.Operand), "type": dumpType(e.Type())}
	case *RangeSelectExpr:
		return map[string]any{
			"kind": "rangeselect", "value": dumpExpr(e.Value),
			"left": dumpExpr(e.Left), "right": dumpExpr(e.Right), "type": dumpType(e.Type()),
		}
	case *ElementSelectExpr:
		return map[string]any{
			"kind": "elementselect", "value": dumpExpr(e.Value),
			"selector": dumpExpr(e.Selector), "type": dumpType(e.Type()),
		}
	case *ConcatExpr:
		ops := make([]any, 0, len(e.Operands))
		for _, op := range e.Operands {
			ops = append(ops, dumpExpr(op))
		}
		return map[string]any{"kind": "concat", "operands": ops, "type": dumpType(e.Type())}
	case *ReplicationExpr:
		return map[string]any{
			"kind": "replication", "count": dumpExpr(e.Count),
			"concat": dumpExpr(e.Concat), "type": dumpType(e.Type()),
		}
	case *ConditionalExpr:
		return map[string]any{
			"kind": "conditional", "condition": dumpExpr(e.Conditions[0].Expr),
			"left": dumpExpr(e.Left), "right": dumpExpr(e.Right), "type": dumpType(e.Type()),
		}
	case *MemberAccessExpr:
		return map[string]any{
			"kind": "memberaccess", "value": dumpExpr(e.Value),
			"member": e.Member.Name(), "type": dumpType(e.Type()),
		}
	case *CallExpr:
		args := make([]any, 0, len(e.Arguments))
		for _, a := range e.Arguments {
			args = append(args, dumpExpr(a))
		}
		return map[string]any{
			"kind": "call", "system": e.System,
			"name": e.SubroutineName(), "arguments": args,
		}
	case *AssignmentExpr:
		return map[string]any{
			"kind": "assignment", "nonblocking": e.NonBlocking,
			"left": dumpExpr(e.Left), "right": dumpExpr(e.Right),
		}
	case *EmptyArgumentExpr:
		return map[string]any{"kind": "emptyargument"}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", expr)}
	}
}

func dumpStmt(stmt Statement) map[string]any {
	switch s := stmt.(type) {
	case *BlockStatement:
		return map[string]any{"kind": "block", "body": dumpStmt(s.Body)}
	case *StatementList:
		list := make([]any, 0, len(s.List))
		for _, child := range s.List {
			list = append(list, dumpStmt(child))
		}
		return map[string]any{"kind": "list", "list": list}
	case *ExpressionStatement:
		return map[string]any{"kind": "expression", "expr": dumpExpr(s.Expr)}
	case *ConditionalStatement:
		doc := map[string]any{
			"kind":      "conditional",
			"condition": dumpExpr(s.Conditions[0].Expr),
			"ifTrue":    dumpStmt(s.IfTrue),
		}
		if s.IfFalse != nil {
			doc["ifFalse"] = dumpStmt(s.IfFalse)
		}
		return doc
	case *CaseStatement:
		items := make([]any, 0, len(s.Items))
		for _, item := range s.Items {
			exprs := make([]any, 0, len(item.Expressions))
			for _, e := range item.Expressions {
				exprs = append(exprs, dumpExpr(e))
			}
			items = append(items, map[string]any{
				"expressions": exprs,
				"stmt":        dumpStmt(item.Stmt),
			})
		}
		doc := map[string]any{"kind": "case", "expr": dumpExpr(s.Expr), "items": items}
		if s.DefaultCase != nil {
			doc["default"] = dumpStmt(s.DefaultCase)
		}
		if s.Check != CheckNone {
			doc["check"] = int(s.Check)
		}
		return doc
	case *TimedStatement:
		return map[string]any{
			"kind":   "timed",
			"timing": dumpTiming(s.Timing),
			"stmt":   dumpStmt(s.Stmt),
		}
	case *EmptyStatement:
		return map[string]any{"kind": "empty"}
	case *VariableDeclStatement:
		return map[string]any{"kind": "vardecl", "symbol": s.Symbol.Name()}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", stmt)}
	}
}

func dumpTiming(tc TimingControl) map[string]any {
	switch t := tc.(type) {
	case *SignalEventControl:
		doc := map[string]any{
			"kind": "signalevent",
			"expr": dumpExpr(t.Expr),
			"edge": edgeName(t.Edge),
		}
		if t.IffCondition != nil {
			doc["iff"] = dumpExpr(t.IffCondition)
		}
		return doc
	case *ImplicitEventControl:
		return map[string]any{"kind": "implicit"}
	case *EventListControl:
		events := make([]any, 0, len(t.Events))
		for _, ev := range t.Events {
			events = append(events, dumpTiming(ev))
		}
		return map[string]any{"kind": "eventlist", "events": events}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", tc)}
	}
}

func edgeName(e EdgeKind) string {
	switch e {
	case EdgePos:
		return "posedge"
	case EdgeNeg:
		return "negedge"
	case EdgeBoth:
		return "bothedges"
	default:
		return "none"
	}
}
