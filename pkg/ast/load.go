package ast

import (
	"encoding/json"
	"fmt"
	"io"
)

// LoadJSON reads a design tree in the DumpJSON format. It is the input
// surface of the driver: a compilation exported with --dump-ast loads
// back into an equivalent tree.
func LoadJSON(r io.Reader) (*Compilation, error) {
	var doc map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	ld := &loader{subrs: make(map[string]*SubroutineSymbol)}
	root := NewRoot()
	members, _ := doc["members"].([]any)
	for _, m := range members {
		md, ok := m.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("malformed root member")
		}
		sym, err := ld.loadSymbol(md)
		if err != nil {
			return nil, err
		}
		root.AddMember(sym)
	}
	return NewCompilation(root, NewSourceManager()), nil
}

type loader struct {
	// scopes resolves named value references, innermost last.
	scopes []map[string]ValueSymbol
	subrs  map[string]*SubroutineSymbol
	ports  map[string]*PortSymbol
}

func (ld *loader) pushScope() { ld.scopes = append(ld.scopes, make(map[string]ValueSymbol)) }

func (ld *loader) popScope() { ld.scopes = ld.scopes[:len(ld.scopes)-1] }

func (ld *loader) declare(name string, sym ValueSymbol) {
	ld.scopes[len(ld.scopes)-1][name] = sym
}

func (ld *loader) resolve(name string) (ValueSymbol, bool) {
	for i := len(ld.scopes) - 1; i >= 0; i-- {
		if sym, ok := ld.scopes[i][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func str(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func boolean(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

func integer(doc map[string]any, key string) (int, error) {
	n, ok := doc[key].(json.Number)
	if !ok {
		return 0, fmt.Errorf("missing integer field %q", key)
	}
	v, err := n.Int64()
	return int(v), err
}

func child(doc map[string]any, key string) (map[string]any, bool) {
	c, ok := doc[key].(map[string]any)
	return c, ok
}

func (ld *loader) loadSymbol(doc map[string]any) (Symbol, error) {
	switch kind := str(doc, "kind"); kind {
	case "Instance":
		bodyDoc, ok := child(doc, "body")
		if !ok {
			return nil, fmt.Errorf("instance %q has no body", str(doc, "name"))
		}
		body, conns, err := ld.loadBody(bodyDoc, doc)
		if err != nil {
			return nil, err
		}
		inst := NewInstance(str(doc, "name"), body)
		inst.PortConnections = conns
		return inst, nil
	default:
		return nil, fmt.Errorf("unsupported top-level symbol kind %q", str(doc, "kind"))
	}
}

// loadBody builds an instance body with two passes: declarations first so
// that expressions anywhere in the body resolve, then everything that
// carries expressions or statements.
func (ld *loader) loadBody(doc, instDoc map[string]any) (*InstanceBodySymbol, []*PortConnection, error) {
	body := NewBody(str(doc, "name"))
	ld.pushScope()
	defer ld.popScope()
	prevPorts := ld.ports
	ld.ports = make(map[string]*PortSymbol)
	defer func() { ld.ports = prevPorts }()

	members, _ := doc["members"].([]any)
	docs := make([]map[string]any, 0, len(members))
	for _, m := range members {
		md, ok := m.(map[string]any)
		if !ok {
			return nil, nil, fmt.Errorf("malformed member in body %q", body.Name())
		}
		docs = append(docs, md)
	}

	if err := ld.declareMembers(docs); err != nil {
		return nil, nil, err
	}
	for _, md := range docs {
		sym, err := ld.loadMember(md)
		if err != nil {
			return nil, nil, err
		}
		if sym != nil {
			body.AddMember(sym)
		}
	}

	var conns []*PortConnection
	if connDocs, ok := instDoc["connections"].([]any); ok {
		for _, c := range connDocs {
			cd, ok := c.(map[string]any)
			if !ok {
				return nil, nil, fmt.Errorf("malformed port connection")
			}
			port, ok := ld.ports[str(cd, "port")]
			if !ok {
				return nil, nil, fmt.Errorf("connection to unknown port %q", str(cd, "port"))
			}
			conn := &PortConnection{Port: port}
			if exprDoc, ok := child(cd, "expr"); ok {
				expr, err := ld.loadExpr(exprDoc)
				if err != nil {
					return nil, nil, err
				}
				conn.Expr = expr
			}
			conns = append(conns, conn)
		}
	}
	return body, conns, nil
}

// declareMembers registers every named value and subroutine ahead of the
// expression pass.
func (ld *loader) declareMembers(docs []map[string]any) error {
	for _, md := range docs {
		name := str(md, "name")
		switch str(md, "kind") {
		case "Net":
			typ, err := ld.loadType(md, "type")
			if err != nil {
				return err
			}
			ld.declare(name, NewNet(name, typ))
		case "Variable":
			typ, err := ld.loadType(md, "type")
			if err != nil {
				return err
			}
			ld.declare(name, NewVariable(name, typ))
		case "Parameter":
			typ, err := ld.loadType(md, "type")
			if err != nil {
				return err
			}
			ld.declare(name, NewParameter(name, typ, nil))
		case "Subroutine":
			if err := ld.declareSubroutine(md, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ld *loader) declareSubroutine(md map[string]any, name string) error {
	var args []*FormalArgumentSymbol
	if argDocs, ok := md["args"].([]any); ok {
		for _, a := range argDocs {
			ad, ok := a.(map[string]any)
			if !ok {
				return fmt.Errorf("malformed argument of %q", name)
			}
			typ, err := ld.loadType(ad, "type")
			if err != nil {
				return err
			}
			args = append(args, NewFormalArgument(str(ad, "name"), typ))
		}
	}
	var retVar *VariableSymbol
	if _, ok := child(md, "returnType"); ok {
		typ, err := ld.loadType(md, "returnType")
		if err != nil {
			return err
		}
		retVar = NewVariable(name, typ)
	}
	ld.subrs[name] = NewSubroutine(name, SubroutineFunction, args, nil, retVar)
	return nil
}

func (ld *loader) loadMember(md map[string]any) (Symbol, error) {
	name := str(md, "name")
	switch kind := str(md, "kind"); kind {
	case "Net":
		sym, _ := ld.resolve(name)
		net := sym.(*NetSymbol)
		if initDoc, ok := child(md, "init"); ok {
			init, err := ld.loadExpr(initDoc)
			if err != nil {
				return nil, err
			}
			net.Init = init
		}
		return net, nil

	case "Variable":
		sym, _ := ld.resolve(name)
		v := sym.(*VariableSymbol)
		if initDoc, ok := child(md, "init"); ok {
			init, err := ld.loadExpr(initDoc)
			if err != nil {
				return nil, err
			}
			v.Init = init
		}
		return v, nil

	case "Parameter":
		sym, _ := ld.resolve(name)
		p := sym.(*ParameterSymbol)
		if initDoc, ok := child(md, "init"); ok {
			init, err := ld.loadExpr(initDoc)
			if err != nil {
				return nil, err
			}
			p.Init = init
		}
		return p, nil

	case "Port":
		internal, ok := ld.resolve(str(md, "internal"))
		if !ok {
			return nil, fmt.Errorf("port %q references unknown symbol %q", name, str(md, "internal"))
		}
		var dir ArgumentDirection
		switch str(md, "direction") {
		case "in":
			dir = DirIn
		case "out":
			dir = DirOut
		case "inout":
			dir = DirInOut
		default:
			dir = DirRef
		}
		port := NewPort(name, dir, internal)
		ld.ports[name] = port
		return port, nil

	case "ContinuousAssign":
		assignDoc, ok := child(md, "assignment")
		if !ok {
			return nil, fmt.Errorf("continuous assign without assignment")
		}
		expr, err := ld.loadExpr(assignDoc)
		if err != nil {
			return nil, err
		}
		assign, ok := expr.(*AssignmentExpr)
		if !ok {
			return nil, fmt.Errorf("continuous assign body is not an assignment")
		}
		return NewContinuousAssign(assign), nil

	case "ProceduralBlock":
		bodyDoc, ok := child(md, "body")
		if !ok {
			return nil, fmt.Errorf("procedural block without body")
		}
		stmt, err := ld.loadStmt(bodyDoc)
		if err != nil {
			return nil, err
		}
		var pk ProceduralBlockKind
		switch str(md, "procedureKind") {
		case "always":
			pk = BlockAlways
		case "always_comb":
			pk = BlockAlwaysComb
		case "always_latch":
			pk = BlockAlwaysLatch
		case "always_ff":
			pk = BlockAlwaysFF
		case "initial":
			pk = BlockInitial
		default:
			pk = BlockFinal
		}
		return NewProceduralBlock(pk, stmt), nil

	case "Subroutine":
		subr := ld.subrs[name]
		ld.pushScope()
		for _, arg := range subr.Args {
			ld.declare(arg.Name(), arg)
		}
		if subr.ReturnValVar != nil {
			ld.declare(name, subr.ReturnValVar)
		}
		bodyDoc, ok := child(md, "body")
		if !ok {
			ld.popScope()
			return nil, fmt.Errorf("subroutine %q without body", name)
		}
		stmt, err := ld.loadStmt(bodyDoc)
		ld.popScope()
		if err != nil {
			return nil, err
		}
		subr.Body = stmt
		return subr, nil

	case "Instance":
		return ld.loadSymbol(md)

	case "GenerateBlock":
		gen := NewGenerateBlock(name, boolean(md, "uninstantiated"))
		if memberDocs, ok := md["members"].([]any); ok {
			docs := make([]map[string]any, 0, len(memberDocs))
			for _, m := range memberDocs {
				mdd, ok := m.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed generate member")
				}
				docs = append(docs, mdd)
			}
			if err := ld.declareMembers(docs); err != nil {
				return nil, err
			}
			for _, mdd := range docs {
				sym, err := ld.loadMember(mdd)
				if err != nil {
					return nil, err
				}
				if sym != nil {
					gen.AddMember(sym)
				}
			}
		}
		return gen, nil

	case "TransparentMember", "TypeAlias", "NetType":
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported member kind %q", kind)
	}
}

func (ld *loader) loadType(doc map[string]any, key string) (*Type, error) {
	td, ok := child(doc, key)
	if !ok {
		return nil, fmt.Errorf("missing type field %q", key)
	}
	return ld.decodeType(td)
}

func (ld *loader) decodeType(td map[string]any) (*Type, error) {
	switch kind := str(td, "kind"); kind {
	case "integral":
		width, err := integer(td, "width")
		if err != nil {
			return nil, err
		}
		if rng, ok := td["range"].([]any); ok && len(rng) == 2 {
			left, lerr := asInt(rng[0])
			right, rerr := asInt(rng[1])
			if lerr != nil || rerr != nil {
				return nil, fmt.Errorf("malformed integral range")
			}
			return RangedType(ConstantRange{Left: left, Right: right}, boolean(td, "signed")), nil
		}
		return LogicType(width, boolean(td, "signed")), nil
	case "array":
		elem, err := ld.loadType(td, "elem")
		if err != nil {
			return nil, err
		}
		rng, ok := td["range"].([]any)
		if !ok || len(rng) != 2 {
			return nil, fmt.Errorf("array type without range")
		}
		left, lerr := asInt(rng[0])
		right, rerr := asInt(rng[1])
		if lerr != nil || rerr != nil {
			return nil, fmt.Errorf("malformed array range")
		}
		return ArrayType(elem, ConstantRange{Left: left, Right: right}), nil
	case "struct":
		var fields []*FieldSymbol
		if fieldDocs, ok := td["fields"].([]any); ok {
			for _, f := range fieldDocs {
				fd, ok := f.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed struct field")
				}
				typ, err := ld.loadType(fd, "type")
				if err != nil {
					return nil, err
				}
				offset, err := integer(fd, "offset")
				if err != nil {
					return nil, err
				}
				fields = append(fields, NewField(str(fd, "name"), typ, offset))
			}
		}
		return StructType(fields), nil
	case "string":
		return &Type{Kind: TypeString}, nil
	case "void":
		return &Type{Kind: TypeVoid}, nil
	default:
		return nil, fmt.Errorf("unsupported type kind %q", kind)
	}
}

func asInt(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("not a number")
	}
	i, err := n.Int64()
	return int(i), err
}

var unaryOpByName = invertUnary(unaryOpNames)
var binaryOpByName = invertBinary(binaryOpNames)

func invertUnary(m map[UnaryOperator]string) map[string]UnaryOperator {
	out := make(map[string]UnaryOperator, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func invertBinary(m map[BinaryOperator]string) map[string]BinaryOperator {
	out := make(map[string]BinaryOperator, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func (ld *loader) loadExpr(doc map[string]any) (Expression, error) {
	switch kind := str(doc, "kind"); kind {
	case "named":
		sym, ok := ld.resolve(str(doc, "symbol"))
		if !ok {
			return nil, fmt.Errorf("reference to unknown symbol %q", str(doc, "symbol"))
		}
		return NewNamedValue(sym), nil

	case "literal":
		return NewIntegerLiteral(ParseBits(str(doc, "bits"), boolean(doc, "signed"))), nil

	case "string":
		return NewStringLiteral(str(doc, "value")), nil

	case "unary":
		op, ok := unaryOpByName[str(doc, "op")]
		if !ok {
			return nil, fmt.Errorf("unknown unary op %q", str(doc, "op"))
		}
		operand, err := ld.loadExprField(doc, "operand")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewUnary(op, operand, typ), nil

	case "binary":
		op, ok := binaryOpByName[str(doc, "op")]
		if !ok {
			return nil, fmt.Errorf("unknown binary op %q", str(doc, "op"))
		}
		left, err := ld.loadExprField(doc, "left")
		if err != nil {
			return nil, err
		}
		right, err := ld.loadExprField(doc, "right")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewBinary(op, left, right, typ), nil

	case "conversion":
		operand, err := ld.loadExprField(doc, "operand")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewConversion(operand, typ), nil

	case "rangeselect":
		value, err := ld.loadExprField(doc, "value")
		if err != nil {
			return nil, err
		}
		left, err := ld.loadExprField(doc, "left")
		if err != nil {
			return nil, err
		}
		right, err := ld.loadExprField(doc, "right")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewRangeSelect(value, left, right, typ), nil

	case "elementselect":
		value, err := ld.loadExprField(doc, "value")
		if err != nil {
			return nil, err
		}
		selector, err := ld.loadExprField(doc, "selector")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewElementSelect(value, selector, typ), nil

	case "concat":
		var operands []Expression
		if opDocs, ok := doc["operands"].([]any); ok {
			for _, o := range opDocs {
				od, ok := o.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed concat operand")
				}
				expr, err := ld.loadExpr(od)
				if err != nil {
					return nil, err
				}
				operands = append(operands, expr)
			}
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewConcat(operands, typ), nil

	case "replication":
		count, err := ld.loadExprField(doc, "count")
		if err != nil {
			return nil, err
		}
		concat, err := ld.loadExprField(doc, "concat")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewReplication(count, concat, typ), nil

	case "conditional":
		cond, err := ld.loadExprField(doc, "condition")
		if err != nil {
			return nil, err
		}
		left, err := ld.loadExprField(doc, "left")
		if err != nil {
			return nil, err
		}
		right, err := ld.loadExprField(doc, "right")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		return NewConditional(cond, left, right, typ), nil

	case "memberaccess":
		value, err := ld.loadExprField(doc, "value")
		if err != nil {
			return nil, err
		}
		typ, err := ld.loadType(doc, "type")
		if err != nil {
			return nil, err
		}
		structType := value.Type().Canonical()
		for _, f := range structType.Fields {
			if f.Name() == str(doc, "member") {
				return NewMemberAccess(value, f, typ), nil
			}
		}
		return nil, fmt.Errorf("unknown struct member %q", str(doc, "member"))

	case "call":
		var args []Expression
		if argDocs, ok := doc["arguments"].([]any); ok {
			for _, a := range argDocs {
				ad, ok := a.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed call argument")
				}
				expr, err := ld.loadExpr(ad)
				if err != nil {
					return nil, err
				}
				args = append(args, expr)
			}
		}
		name := str(doc, "name")
		if boolean(doc, "system") {
			var typ *Type
			if len(args) > 0 {
				typ = args[0].Type()
			} else {
				typ = &Type{Kind: TypeVoid}
			}
			call := NewSystemCall(name, args, typ)
			return call, nil
		}
		subr, ok := ld.subrs[name]
		if !ok {
			return nil, fmt.Errorf("call to unknown function %q", name)
		}
		return NewUserCall(subr, args), nil

	case "assignment":
		left, err := ld.loadExprField(doc, "left")
		if err != nil {
			return nil, err
		}
		right, err := ld.loadExprField(doc, "right")
		if err != nil {
			return nil, err
		}
		return NewAssignment(boolean(doc, "nonblocking"), left, right), nil

	case "emptyargument":
		return NewEmptyArgument(), nil

	default:
		return nil, fmt.Errorf("unsupported expression kind %q", kind)
	}
}

func (ld *loader) loadExprField(doc map[string]any, key string) (Expression, error) {
	ed, ok := child(doc, key)
	if !ok {
		return nil, fmt.Errorf("missing expression field %q", key)
	}
	return ld.loadExpr(ed)
}

func (ld *loader) loadStmt(doc map[string]any) (Statement, error) {
	switch kind := str(doc, "kind"); kind {
	case "block":
		body, err := ld.loadStmtField(doc, "body")
		if err != nil {
			return nil, err
		}
		return NewBlockStatement(BlockSequential, body), nil

	case "list":
		var list []Statement
		if docs, ok := doc["list"].([]any); ok {
			for _, s := range docs {
				sd, ok := s.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed statement list entry")
				}
				stmt, err := ld.loadStmt(sd)
				if err != nil {
					return nil, err
				}
				list = append(list, stmt)
			}
		}
		return NewStatementList(list...), nil

	case "expression":
		expr, err := ld.loadExprField(doc, "expr")
		if err != nil {
			return nil, err
		}
		return NewExpressionStatement(expr), nil

	case "conditional":
		cond, err := ld.loadExprField(doc, "condition")
		if err != nil {
			return nil, err
		}
		ifTrue, err := ld.loadStmtField(doc, "ifTrue")
		if err != nil {
			return nil, err
		}
		var ifFalse Statement
		if _, ok := child(doc, "ifFalse"); ok {
			ifFalse, err = ld.loadStmtField(doc, "ifFalse")
			if err != nil {
				return nil, err
			}
		}
		return NewConditionalStatement(cond, ifTrue, ifFalse), nil

	case "case":
		expr, err := ld.loadExprField(doc, "expr")
		if err != nil {
			return nil, err
		}
		var items []CaseItem
		if itemDocs, ok := doc["items"].([]any); ok {
			for _, it := range itemDocs {
				itd, ok := it.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed case item")
				}
				var exprs []Expression
				if exprDocs, ok := itd["expressions"].([]any); ok {
					for _, e := range exprDocs {
						ed, ok := e.(map[string]any)
						if !ok {
							return nil, fmt.Errorf("malformed case label")
						}
						labelExpr, err := ld.loadExpr(ed)
						if err != nil {
							return nil, err
						}
						exprs = append(exprs, labelExpr)
					}
				}
				stmt, err := ld.loadStmtField(itd, "stmt")
				if err != nil {
					return nil, err
				}
				items = append(items, CaseItem{Expressions: exprs, Stmt: stmt})
			}
		}
		var defaultCase Statement
		if _, ok := child(doc, "default"); ok {
			defaultCase, err = ld.loadStmtField(doc, "default")
			if err != nil {
				return nil, err
			}
		}
		cs := NewCaseStatement(expr, items, defaultCase)
		if n, ok := doc["check"].(json.Number); ok {
			v, _ := n.Int64()
			cs.Check = UniquePriorityCheck(v)
		}
		return cs, nil

	case "timed":
		timingDoc, ok := child(doc, "timing")
		if !ok {
			return nil, fmt.Errorf("timed statement without timing")
		}
		timing, err := ld.loadTiming(timingDoc)
		if err != nil {
			return nil, err
		}
		stmt, err := ld.loadStmtField(doc, "stmt")
		if err != nil {
			return nil, err
		}
		return NewTimedStatement(timing, stmt), nil

	case "empty":
		return &EmptyStatement{}, nil

	case "vardecl":
		sym, ok := ld.resolve(str(doc, "symbol"))
		if !ok {
			return nil, fmt.Errorf("vardecl references unknown symbol %q", str(doc, "symbol"))
		}
		v, ok := sym.(*VariableSymbol)
		if !ok {
			return nil, fmt.Errorf("vardecl symbol %q is not a variable", str(doc, "symbol"))
		}
		return &VariableDeclStatement{Symbol: v}, nil

	default:
		return nil, fmt.Errorf("unsupported statement kind %q", kind)
	}
}

func (ld *loader) loadStmtField(doc map[string]any, key string) (Statement, error) {
	sd, ok := child(doc, key)
	if !ok {
		return nil, fmt.Errorf("missing statement field %q", key)
	}
	return ld.loadStmt(sd)
}

func (ld *loader) loadTiming(doc map[string]any) (TimingControl, error) {
	switch kind := str(doc, "kind"); kind {
	case "signalevent":
		expr, err := ld.loadExprField(doc, "expr")
		if err != nil {
			return nil, err
		}
		var edge EdgeKind
		switch str(doc, "edge") {
		case "posedge":
			edge = EdgePos
		case "negedge":
			edge = EdgeNeg
		case "bothedges":
			edge = EdgeBoth
		default:
			edge = EdgeNone
		}
		ev := NewSignalEvent(expr, edge)
		if _, ok := child(doc, "iff"); ok {
			iff, err := ld.loadExprField(doc, "iff")
			if err != nil {
				return nil, err
			}
			ev.IffCondition = iff
		}
		return ev, nil

	case "implicit":
		return NewImplicitEvent(), nil

	case "eventlist":
		var events []TimingControl
		if evDocs, ok := doc["events"].([]any); ok {
			for _, e := range evDocs {
				ed, ok := e.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("malformed event list entry")
				}
				tc, err := ld.loadTiming(ed)
				if err != nil {
					return nil, err
				}
				events = append(events, tc)
			}
		}
		return NewEventList(events...), nil

	default:
		return nil, fmt.Errorf("unsupported timing kind %q", kind)
	}
}
