/*
Copyright © 2025 Alexis Trouvé

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package host

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AlexisTrouve/vba-mcp-server/vbaparse"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// MockHost is an in-memory Host for tests. It keeps module code per open
// path in a shared MockWorld so that "save, reopen, re-read" flows observe
// persisted state the way a real host round-trip would.
type MockHost struct {
	mu        sync.Mutex
	world     *MockWorld
	family    vbaproject.Family
	alive     bool
	security  int
	visible   bool
	alerts    bool
	calcMode  int
	openDoc   *MockDocument
	RunCalls  []string
	RunResult any
	RunErr    error
	// FailRunFormats lists invocation strings that fail before one succeeds.
	FailRunFormats map[string]bool
}

// MockWorld is the persistent state shared by every MockHost created from
// the same factory: file contents survive close/reopen.
type MockWorld struct {
	mu      sync.Mutex
	Files   map[string]*MockFileState
	created []*MockHost
}

// MockFileState is the persisted state of one container path.
type MockFileState struct {
	Modules map[string]string // name -> code, insertion order tracked separately
	Order   []string
	Sheets  map[string]*MockSheet
	Saved   bool

	// ProcParseErr makes ProcOfLine fail for the named module, simulating
	// the host parser rejecting the code.
	ProcParseErr map[string]error

	// DropOnSave discards the named module's code during Save, simulating
	// a save that silently fails to persist.
	DropOnSave map[string]bool

	// Database-family state.
	DBTables     map[string]*MockDBTable
	DBQueries    []QueryInfo
	Forms        []string
	ExecLog      []string
	SelectLog    []string
	ExecAffected int
	ExecErr      error
}

// MockSheet is one worksheet's cell grid plus its structured tables.
type MockSheet struct {
	Grid   [][]any
	Tables map[string]*MockDataTable
}

// NewMockWorld creates an empty shared world.
func NewMockWorld() *MockWorld {
	return &MockWorld{Files: make(map[string]*MockFileState)}
}

// Factory returns a host.Factory producing MockHosts bound to this world.
func (w *MockWorld) Factory() Factory {
	return func(family vbaproject.Family) (Host, error) {
		h := &MockHost{
			world:          w,
			family:         family,
			alive:          true,
			security:       SecurityByUI,
			calcMode:       CalculationAutomatic,
			FailRunFormats: make(map[string]bool),
		}
		w.mu.Lock()
		w.created = append(w.created, h)
		w.mu.Unlock()
		return h, nil
	}
}

// File returns (creating if needed) the state for a path.
func (w *MockWorld) File(path string) *MockFileState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, ok := w.Files[path]
	if !ok {
		st = &MockFileState{
			Modules: make(map[string]string),
			Sheets:  make(map[string]*MockSheet),
		}
		w.Files[path] = st
	}
	return st
}

// HostCount reports how many hosts the factory created.
func (w *MockWorld) HostCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.created)
}

// Hosts returns every host the factory created, in creation order.
func (w *MockWorld) Hosts() []*MockHost {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*MockHost(nil), w.created...)
}

// Kill marks the host dead: every subsequent probe fails.
func (h *MockHost) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
}

func (h *MockHost) check() error {
	if !h.alive {
		return fmt.Errorf("RPC server is unavailable")
	}
	return nil
}

func (h *MockHost) Family() vbaproject.Family { return h.family }

func (h *MockHost) Name() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(); err != nil {
		return "", err
	}
	return "Microsoft " + string(h.family), nil
}

func (h *MockHost) SetVisible(v bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible = v
	return nil
}

func (h *MockHost) SetDisplayAlerts(v bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = v
	return nil
}

func (h *MockHost) AutomationSecurity() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(); err != nil {
		return 0, err
	}
	return h.security, nil
}

func (h *MockHost) SetAutomationSecurity(level int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(); err != nil {
		return err
	}
	h.security = level
	return nil
}

// SecurityLevel reads the current mock security level for assertions.
func (h *MockHost) SecurityLevel() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.security
}

func (h *MockHost) Calculation() (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calcMode, nil
}

func (h *MockHost) SetCalculation(mode int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calcMode = mode
	return nil
}

func (h *MockHost) Calculate() error { return nil }

func (h *MockHost) Open(path string, readOnly bool) (Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(); err != nil {
		return nil, err
	}
	doc := &MockDocument{host: h, path: path, readOnly: readOnly, state: h.world.File(path)}
	h.openDoc = doc
	return doc, nil
}

func (h *MockHost) Run(macro string, args ...any) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.check(); err != nil {
		return nil, err
	}
	h.RunCalls = append(h.RunCalls, macro)
	if h.RunErr != nil {
		return nil, h.RunErr
	}
	if h.FailRunFormats[macro] {
		return nil, fmt.Errorf("cannot run the macro %q", macro)
	}
	return h.RunResult, nil
}

func (h *MockHost) Quit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alive = false
	return nil
}

func (h *MockHost) Release() {}

// MockDocument is an open container in a MockHost.
type MockDocument struct {
	host     *MockHost
	path     string
	readOnly bool
	state    *MockFileState
	released bool
}

func (d *MockDocument) Name() (string, error) {
	if err := d.host.check(); err != nil {
		return "", err
	}
	parts := strings.Split(strings.ReplaceAll(d.path, "\\", "/"), "/")
	return parts[len(parts)-1], nil
}

func (d *MockDocument) Save() error {
	if d.readOnly {
		return fmt.Errorf("document is read-only")
	}
	d.state.Saved = true
	for name := range d.state.DropOnSave {
		if d.state.DropOnSave[name] {
			d.state.Modules[name] = ""
		}
	}
	return nil
}

func (d *MockDocument) Close(saveChanges bool) error { return nil }

func (d *MockDocument) Project() (Project, error) {
	if err := d.host.check(); err != nil {
		return nil, err
	}
	return &MockProject{state: d.state}, nil
}

func (d *MockDocument) Release() { d.released = true }

// MockProject exposes the mock file's modules as VBA components.
type MockProject struct {
	state *MockFileState
}

func (p *MockProject) Components() ([]Component, error) {
	out := make([]Component, 0, len(p.state.Order))
	for _, name := range p.state.Order {
		out = append(out, &MockComponent{state: p.state, name: name})
	}
	return out, nil
}

func (p *MockProject) AddStandardModule(name string) (Component, error) {
	if _, ok := p.state.Modules[name]; !ok {
		p.state.Order = append(p.state.Order, name)
	}
	p.state.Modules[name] = ""
	return &MockComponent{state: p.state, name: name}, nil
}

func (p *MockProject) RemoveComponent(c Component) error {
	name, _ := c.Name()
	delete(p.state.Modules, name)
	kept := p.state.Order[:0]
	for _, n := range p.state.Order {
		if n != name {
			kept = append(kept, n)
		}
	}
	p.state.Order = kept
	return nil
}

func (p *MockProject) Release() {}

// MockComponent is one module of a mock project.
type MockComponent struct {
	state *MockFileState
	name  string
}

func (c *MockComponent) Name() (string, error) { return c.name, nil }

func (c *MockComponent) Code() CodeModule {
	return &MockCodeModule{state: c.state, name: c.name}
}

// MockCodeModule stores code as the host would: line-addressed, 1-based.
// ProcOfLine maps a line to its procedure with the heuristic parser; it
// fails only for modules listed in ProcParseErr.
type MockCodeModule struct {
	state *MockFileState
	name  string
}

func (cm *MockCodeModule) lines() []string {
	return vbaparse.SplitLines(cm.state.Modules[cm.name])
}

func (cm *MockCodeModule) CountOfLines() (int, error) {
	return len(cm.lines()), nil
}

func (cm *MockCodeModule) Lines(start, count int) (string, error) {
	lines := cm.lines()
	if start < 1 || start+count-1 > len(lines) {
		return "", fmt.Errorf("line range out of bounds")
	}
	return strings.Join(lines[start-1:start+count-1], "\r\n"), nil
}

func (cm *MockCodeModule) DeleteLines(start, count int) error {
	lines := cm.lines()
	if start < 1 || start+count-1 > len(lines) {
		return fmt.Errorf("line range out of bounds")
	}
	kept := append(append([]string{}, lines[:start-1]...), lines[start+count-1:]...)
	cm.state.Modules[cm.name] = strings.Join(kept, "\r\n")
	return nil
}

func (cm *MockCodeModule) AddFromString(code string) error {
	existing := cm.state.Modules[cm.name]
	if existing == "" {
		cm.state.Modules[cm.name] = code
	} else {
		cm.state.Modules[cm.name] = code + "\r\n" + existing
	}
	return nil
}

func (cm *MockCodeModule) ProcOfLine(line int) (string, error) {
	if err := cm.state.ProcParseErr[cm.name]; err != nil {
		return "", err
	}
	for _, p := range vbaparse.ParseProcedures(cm.state.Modules[cm.name]) {
		if line >= p.StartLine && line <= p.EndLine {
			return p.Name, nil
		}
	}
	return "", nil
}
