package rtlil

import (
	"encoding/json"
	"io"
	"sort"
)

// WriteJSON serializes a design in a stable, diff-friendly form. Wire
// references render as "name[offset]" strings and constants as MSB-first
// bit strings, so golden files stay readable.
func WriteJSON(w io.Writer, d *Design) error {
	doc := map[string]any{"modules": dumpModules(d)}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func dumpModules(d *Design) []any {
	mods := make([]any, 0, len(d.ModuleOrder))
	for _, m := range d.ModuleOrder {
		mods = append(mods, dumpModule(m))
	}
	return mods
}

func dumpModule(m *Module) map[string]any {
	wires := make([]any, 0, len(m.WireOrder))
	for _, w := range m.WireOrder {
		wd := map[string]any{"name": w.Name, "width": w.Width}
		if w.PortInput {
			wd["input"] = true
		}
		if w.PortOutput {
			wd["output"] = true
		}
		if w.PortID > 0 {
			wd["port_id"] = w.PortID
		}
		if len(w.Attributes) > 0 {
			wd["attributes"] = dumpAttrs(w.Attributes)
		}
		wires = append(wires, wd)
	}

	cells := make([]any, 0, len(m.Cells))
	for _, c := range m.Cells {
		cells = append(cells, dumpCell(c))
	}

	procs := make([]any, 0, len(m.Processes))
	for _, p := range m.Processes {
		procs = append(procs, dumpProcess(p))
	}

	conns := make([]any, 0, len(m.Connections))
	for _, conn := range m.Connections {
		conns = append(conns, []any{conn.First.String(), conn.Second.String()})
	}

	doc := map[string]any{
		"name":        m.Name,
		"wires":       wires,
		"cells":       cells,
		"processes":   procs,
		"connections": conns,
	}
	if len(m.Attributes) > 0 {
		doc["attributes"] = dumpAttrs(m.Attributes)
	}
	return doc
}

func dumpAttrs(attrs map[string]Const) map[string]string {
	out := make(map[string]string, len(attrs))
	for name, value := range attrs {
		if value.Flags&ConstFlagString != 0 {
			out[name] = value.AsString()
		} else {
			out[name] = value.String()
		}
	}
	return out
}

func dumpCell(c *Cell) map[string]any {
	ports := make(map[string]string, len(c.Ports))
	for name, sig := range c.Ports {
		ports[name] = sig.String()
	}
	params := make(map[string]string, len(c.Parameters))
	var names []string
	for name := range c.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := c.Parameters[name]
		if value.Flags&ConstFlagString != 0 {
			params[name] = value.AsString()
		} else {
			params[name] = value.String()
		}
	}
	doc := map[string]any{
		"name":       c.Name,
		"type":       c.Type,
		"ports":      ports,
		"parameters": params,
	}
	if len(c.Attributes) > 0 {
		doc["attributes"] = dumpAttrs(c.Attributes)
	}
	return doc
}

func dumpProcess(p *Process) map[string]any {
	syncs := make([]any, 0, len(p.Syncs))
	for _, sync := range p.Syncs {
		sd := map[string]any{
			"type":    sync.Type.String(),
			"actions": dumpActions(sync.Actions),
		}
		if !sync.Signal.Empty() {
			sd["signal"] = sync.Signal.String()
		}
		syncs = append(syncs, sd)
	}
	doc := map[string]any{
		"name":      p.Name,
		"root_case": dumpCase(&p.RootCase),
		"syncs":     syncs,
	}
	if len(p.Attributes) > 0 {
		doc["attributes"] = dumpAttrs(p.Attributes)
	}
	return doc
}

func dumpActions(actions []SigSig) []any {
	out := make([]any, 0, len(actions))
	for _, act := range actions {
		out = append(out, []any{act.First.String(), act.Second.String()})
	}
	return out
}

func dumpCase(rule *CaseRule) map[string]any {
	compares := make([]any, 0, len(rule.Compare))
	for _, cmp := range rule.Compare {
		compares = append(compares, cmp.String())
	}
	switches := make([]any, 0, len(rule.Switches))
	for _, sw := range rule.Switches {
		cases := make([]any, 0, len(sw.Cases))
		for _, child := range sw.Cases {
			cases = append(cases, dumpCase(child))
		}
		sd := map[string]any{"cases": cases}
		if !sw.Signal.Empty() {
			sd["signal"] = sw.Signal.String()
		}
		switches = append(switches, sd)
	}
	return map[string]any{
		"compare":  compares,
		"actions":  dumpActions(rule.Actions),
		"switches": switches,
	}
}
