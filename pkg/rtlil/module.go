package rtlil

import (
	"fmt"
	"sort"
)

// Wire is a named fixed-width bundle of bits.
type Wire struct {
	Name       string
	Width      int
	PortInput  bool
	PortOutput bool
	PortID     int
	Attributes map[string]Const
}

func (w *Wire) SetAttribute(name string, value Const) {
	if w.Attributes == nil {
		w.Attributes = make(map[string]Const)
	}
	w.Attributes[name] = value
}

// Cell is a primitive operator instance or a child module instantiation.
type Cell struct {
	Name       string
	Type       string
	Ports      map[string]SigSpec
	Parameters map[string]Const
	Attributes map[string]Const
}

func (c *Cell) SetPort(name string, sig SigSpec) {
	if c.Ports == nil {
		c.Ports = make(map[string]SigSpec)
	}
	c.Ports[name] = sig
}

func (c *Cell) SetParam(name string, value Const) {
	if c.Parameters == nil {
		c.Parameters = make(map[string]Const)
	}
	c.Parameters[name] = value
}

func (c *Cell) SetParamInt(name string, value int) {
	c.SetParam(name, NewConst(int64(value), 32))
}

func (c *Cell) SetParamBool(name string, value bool) {
	v := int64(0)
	if value {
		v = 1
	}
	c.SetParam(name, NewConst(v, 1))
}

func (c *Cell) SetAttribute(name string, value Const) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]Const)
	}
	c.Attributes[name] = value
}

// SyncType classifies a sync rule's sensitivity.
type SyncType int

const (
	SyncAlways SyncType = iota // level sensitive on everything
	SyncPosedge
	SyncNegedge
	SyncBothEdges
)

func (t SyncType) String() string {
	switch t {
	case SyncPosedge:
		return "posedge"
	case SyncNegedge:
		return "negedge"
	case SyncBothEdges:
		return "edge"
	default:
		return "always"
	}
}

// SyncRule triggers its actions on the given signal event.
type SyncRule struct {
	Type    SyncType
	Signal  SigSpec
	Actions []SigSig
}

// CaseRule holds the actions and child switches of one case arm. Compare
// is empty for the default arm. Later actions override earlier ones for
// overlapping bits; switches apply after the actions.
type CaseRule struct {
	Compare    []SigSpec
	Actions    []SigSig
	Switches   []*SwitchRule
	Attributes map[string]Const
}

func (c *CaseRule) SetAttribute(name string, value Const) {
	if c.Attributes == nil {
		c.Attributes = make(map[string]Const)
	}
	c.Attributes[name] = value
}

// SwitchRule dispatches on a signal; the first matching case wins.
type SwitchRule struct {
	Signal     SigSpec
	Cases      []*CaseRule
	Attributes map[string]Const
}

func (s *SwitchRule) SetAttribute(name string, value Const) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]Const)
	}
	s.Attributes[name] = value
}

// Process is a root case tree plus the sync rules that commit it.
type Process struct {
	Name       string
	RootCase   CaseRule
	Syncs      []*SyncRule
	Attributes map[string]Const
}

func (p *Process) SetAttribute(name string, value Const) {
	if p.Attributes == nil {
		p.Attributes = make(map[string]Const)
	}
	p.Attributes[name] = value
}

// Module is one netlist module.
type Module struct {
	Name        string
	Wires       map[string]*Wire
	WireOrder   []*Wire
	Cells       []*Cell
	Processes   []*Process
	Connections []SigSig
	Attributes  map[string]Const

	autoIndex int
}

func NewModule(name string) *Module {
	return &Module{Name: name, Wires: make(map[string]*Wire)}
}

// NewID generates a fresh autogenerated name, optionally suffixed.
func (m *Module) NewID(suffix string) string {
	m.autoIndex++
	if suffix != "" {
		return fmt.Sprintf("$auto$%d$%s", m.autoIndex, suffix)
	}
	return fmt.Sprintf("$auto$%d", m.autoIndex)
}

// AddWire creates and registers a wire. Duplicate names are a developer
// error and panic.
func (m *Module) AddWire(name string, width int) *Wire {
	if _, exists := m.Wires[name]; exists {
		panic(fmt.Sprintf("rtlil: duplicate wire %s in module %s", name, m.Name))
	}
	w := &Wire{Name: name, Width: width}
	m.Wires[name] = w
	m.WireOrder = append(m.WireOrder, w)
	return w
}

// Wire looks up a wire by name, nil when absent.
func (m *Module) Wire(name string) *Wire { return m.Wires[name] }

func (m *Module) AddCell(name, typ string) *Cell {
	if name == "" {
		name = m.NewID("")
	}
	c := &Cell{Name: name, Type: typ}
	m.Cells = append(m.Cells, c)
	return c
}

func (m *Module) AddProcess() *Process {
	p := &Process{Name: m.NewID("proc")}
	m.Processes = append(m.Processes, p)
	return p
}

// Connect adds a continuous connection driving lhs from rhs.
func (m *Module) Connect(lhs, rhs SigSpec) {
	if lhs.Size() != rhs.Size() {
		panic(fmt.Sprintf("rtlil: connect size mismatch %d vs %d in module %s",
			lhs.Size(), rhs.Size(), m.Name))
	}
	m.Connections = append(m.Connections, SigSig{First: lhs, Second: rhs})
}

func (m *Module) SetAttribute(name string, value Const) {
	if m.Attributes == nil {
		m.Attributes = make(map[string]Const)
	}
	m.Attributes[name] = value
}

// FixupPorts assigns deterministic port ids to all port wires, ordered by
// name.
func (m *Module) FixupPorts() {
	var ports []*Wire
	for _, w := range m.WireOrder {
		w.PortID = 0
		if w.PortInput || w.PortOutput {
			ports = append(ports, w)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	for i, w := range ports {
		w.PortID = i + 1
	}
}

// Ports lists the module's port wires in id order. Valid after FixupPorts.
func (m *Module) Ports() []*Wire {
	var ports []*Wire
	for _, w := range m.WireOrder {
		if w.PortID > 0 {
			ports = append(ports, w)
		}
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].PortID < ports[j].PortID })
	return ports
}

var cellPortWidthParams = map[string]string{
	"A": "A_WIDTH",
	"B": "B_WIDTH",
	"S": "S_WIDTH",
	"Y": "Y_WIDTH",
}

// Check validates structural invariants: cell port widths match their
// declared WIDTH parameters and every connection is balanced. It returns
// the first problem found.
func (m *Module) Check() error {
	for _, c := range m.Cells {
		for port, param := range cellPortWidthParams {
			sig, hasPort := c.Ports[port]
			width, hasParam := c.Parameters[param]
			if hasPort && hasParam && sig.Size() != int(width.AsInt(false)) {
				return fmt.Errorf("module %s: cell %s port %s is %d bits, %s says %d",
					m.Name, c.Name, port, sig.Size(), param, width.AsInt(false))
			}
		}
	}
	for _, conn := range m.Connections {
		if conn.First.Size() != conn.Second.Size() {
			return fmt.Errorf("module %s: unbalanced connection %s <- %s",
				m.Name, conn.First, conn.Second)
		}
	}
	for _, p := range m.Processes {
		if err := checkCase(m, &p.RootCase); err != nil {
			return err
		}
		for _, sync := range p.Syncs {
			for _, act := range sync.Actions {
				if act.First.Size() != act.Second.Size() {
					return fmt.Errorf("module %s: unbalanced sync action in %s", m.Name, p.Name)
				}
			}
		}
	}
	return nil
}

func checkCase(m *Module, rule *CaseRule) error {
	for _, act := range rule.Actions {
		if act.First.Size() != act.Second.Size() {
			return fmt.Errorf("module %s: unbalanced case action %s <- %s",
				m.Name, act.First, act.Second)
		}
	}
	for _, sw := range rule.Switches {
		for _, child := range sw.Cases {
			for _, cmp := range child.Compare {
				if cmp.Size() != sw.Signal.Size() {
					return fmt.Errorf("module %s: switch compare width %d against %d-bit signal",
						m.Name, cmp.Size(), sw.Signal.Size())
				}
			}
			if err := checkCase(m, child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Design is the collection of elaborated modules.
type Design struct {
	Modules     map[string]*Module
	ModuleOrder []*Module
}

func NewDesign() *Design {
	return &Design{Modules: make(map[string]*Module)}
}

func (d *Design) AddModule(name string) *Module {
	if _, exists := d.Modules[name]; exists {
		panic(fmt.Sprintf("rtlil: duplicate module %s", name))
	}
	m := NewModule(name)
	d.Modules[name] = m
	d.ModuleOrder = append(d.ModuleOrder, m)
	return m
}

func (d *Design) Module(name string) *Module { return d.Modules[name] }
