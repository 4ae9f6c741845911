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

//go:build windows

package host

import (
	"fmt"
	"strings"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// vbext_ct_StdModule
const comStdModule = 1

var progIDs = map[vbaproject.Family]string{
	vbaproject.FamilySpreadsheet: "Excel.Application",
	vbaproject.FamilyWord:        "Word.Application",
	vbaproject.FamilyDatabase:    "Access.Application",
}

// NewHost dispatches the platform binding for the given family. COM is
// initialized here and uninitialized by Release, never nested.
func NewHost(family vbaproject.Family) (Host, error) {
	progID, ok := progIDs[family]
	if !ok {
		return nil, &vbaerr.UnsupportedFormatError{Suffix: string(family)}
	}
	if err := ole.CoInitialize(0); err != nil {
		// S_FALSE means the apartment was already initialized; anything
		// else is fatal.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 1 {
			return nil, fmt.Errorf("COM initialization failed: %w", err)
		}
	}
	unknown, err := oleutil.CreateObject(progID)
	if err != nil {
		ole.CoUninitialize()
		return nil, fmt.Errorf("cannot start %s: %w", progID, err)
	}
	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		return nil, fmt.Errorf("cannot drive %s: %w", progID, err)
	}
	return &comHost{family: family, app: disp}, nil
}

type comHost struct {
	family vbaproject.Family
	app    *ole.IDispatch
}

func (h *comHost) Family() vbaproject.Family { return h.family }

func (h *comHost) Name() (string, error) {
	v, err := oleutil.GetProperty(h.app, "Name")
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func (h *comHost) SetVisible(visible bool) error {
	_, err := oleutil.PutProperty(h.app, "Visible", visible)
	return err
}

func (h *comHost) SetDisplayAlerts(show bool) error {
	_, err := oleutil.PutProperty(h.app, "DisplayAlerts", show)
	return err
}

func (h *comHost) AutomationSecurity() (int, error) {
	v, err := oleutil.GetProperty(h.app, "AutomationSecurity")
	if err != nil {
		return 0, err
	}
	defer v.Clear()
	return int(variantToInt(v)), nil
}

func (h *comHost) SetAutomationSecurity(level int) error {
	_, err := oleutil.PutProperty(h.app, "AutomationSecurity", level)
	return err
}

func (h *comHost) Open(path string, readOnly bool) (Document, error) {
	switch h.family {
	case vbaproject.FamilySpreadsheet:
		books := oleutil.MustGetProperty(h.app, "Workbooks").ToIDispatch()
		defer books.Release()
		v, err := oleutil.CallMethod(books, "Open", path, false, readOnly)
		if err != nil {
			return nil, translateOpenError(path, err)
		}
		return &comDocument{host: h, obj: v.ToIDispatch()}, nil
	case vbaproject.FamilyWord:
		docs := oleutil.MustGetProperty(h.app, "Documents").ToIDispatch()
		defer docs.Release()
		v, err := oleutil.CallMethod(docs, "Open", path, false, readOnly)
		if err != nil {
			return nil, translateOpenError(path, err)
		}
		return &comDocument{host: h, obj: v.ToIDispatch()}, nil
	case vbaproject.FamilyDatabase:
		// The database host opens exclusively unless read-only was asked.
		exclusive := !readOnly
		if _, err := oleutil.CallMethod(h.app, "OpenCurrentDatabase", path, exclusive); err != nil {
			return nil, translateOpenError(path, err)
		}
		h.app.AddRef()
		return &comDatabase{host: h, obj: h.app}, nil
	default:
		return nil, &vbaerr.UnsupportedFormatError{Suffix: string(h.family)}
	}
}

func (h *comHost) Run(macro string, args ...any) (any, error) {
	callArgs := make([]any, 0, len(args)+1)
	callArgs = append(callArgs, macro)
	callArgs = append(callArgs, args...)
	v, err := oleutil.CallMethod(h.app, "Run", callArgs...)
	if err != nil {
		return nil, err
	}
	defer v.Clear()
	return v.Value(), nil
}

func (h *comHost) Quit() error {
	_, err := oleutil.CallMethod(h.app, "Quit")
	return err
}

func (h *comHost) Release() {
	if h.app != nil {
		h.app.Release()
		h.app = nil
	}
	ole.CoUninitialize()
}

// Spreadsheet capability extension.

func (h *comHost) Calculation() (int, error) {
	v, err := oleutil.GetProperty(h.app, "Calculation")
	if err != nil {
		return 0, err
	}
	defer v.Clear()
	return int(variantToInt(v)), nil
}

func (h *comHost) SetCalculation(mode int) error {
	_, err := oleutil.PutProperty(h.app, "Calculation", mode)
	return err
}

func (h *comHost) Calculate() error {
	_, err := oleutil.CallMethod(h.app, "Calculate")
	return err
}

// comDocument is an open workbook or word document.
type comDocument struct {
	host *comHost
	obj  *ole.IDispatch
}

func (d *comDocument) Name() (string, error) {
	v, err := oleutil.GetProperty(d.obj, "Name")
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func (d *comDocument) Save() error {
	_, err := oleutil.CallMethod(d.obj, "Save")
	return err
}

func (d *comDocument) Close(saveChanges bool) error {
	_, err := oleutil.CallMethod(d.obj, "Close", saveChanges)
	return err
}

func (d *comDocument) Project() (Project, error) {
	v, err := oleutil.GetProperty(d.obj, "VBProject")
	if err != nil {
		return nil, translateProjectError(err)
	}
	return &comProject{obj: v.ToIDispatch()}, nil
}

func (d *comDocument) Release() {
	if d.obj != nil {
		d.obj.Release()
		d.obj = nil
	}
}

// comProject wraps a VBProject handle.
type comProject struct {
	obj *ole.IDispatch
}

func (p *comProject) Components() ([]Component, error) {
	coll, err := oleutil.GetProperty(p.obj, "VBComponents")
	if err != nil {
		return nil, translateProjectError(err)
	}
	comps := coll.ToIDispatch()
	defer comps.Release()

	countV, err := oleutil.GetProperty(comps, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	out := make([]Component, 0, count)
	for i := 1; i <= count; i++ {
		item, err := oleutil.GetProperty(comps, "Item", i)
		if err != nil {
			return nil, err
		}
		out = append(out, &comComponent{obj: item.ToIDispatch()})
	}
	return out, nil
}

func (p *comProject) AddStandardModule(name string) (Component, error) {
	coll, err := oleutil.GetProperty(p.obj, "VBComponents")
	if err != nil {
		return nil, translateProjectError(err)
	}
	comps := coll.ToIDispatch()
	defer comps.Release()

	v, err := oleutil.CallMethod(comps, "Add", comStdModule)
	if err != nil {
		return nil, translateProjectError(err)
	}
	comp := &comComponent{obj: v.ToIDispatch()}
	if _, err := oleutil.PutProperty(comp.obj, "Name", name); err != nil {
		return nil, err
	}
	return comp, nil
}

func (p *comProject) RemoveComponent(c Component) error {
	comp, ok := c.(*comComponent)
	if !ok {
		return fmt.Errorf("component does not belong to this binding")
	}
	coll, err := oleutil.GetProperty(p.obj, "VBComponents")
	if err != nil {
		return err
	}
	comps := coll.ToIDispatch()
	defer comps.Release()
	_, err = oleutil.CallMethod(comps, "Remove", comp.obj)
	return err
}

func (p *comProject) Release() {
	if p.obj != nil {
		p.obj.Release()
		p.obj = nil
	}
}

type comComponent struct {
	obj *ole.IDispatch
}

func (c *comComponent) Name() (string, error) {
	v, err := oleutil.GetProperty(c.obj, "Name")
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func (c *comComponent) Code() CodeModule {
	return &comCodeModule{owner: c.obj}
}

type comCodeModule struct {
	owner *ole.IDispatch
}

func (cm *comCodeModule) module() (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(cm.owner, "CodeModule")
	if err != nil {
		return nil, err
	}
	return v.ToIDispatch(), nil
}

func (cm *comCodeModule) CountOfLines() (int, error) {
	mod, err := cm.module()
	if err != nil {
		return 0, err
	}
	defer mod.Release()
	v, err := oleutil.GetProperty(mod, "CountOfLines")
	if err != nil {
		return 0, err
	}
	defer v.Clear()
	return int(variantToInt(v)), nil
}

func (cm *comCodeModule) Lines(start, count int) (string, error) {
	mod, err := cm.module()
	if err != nil {
		return "", err
	}
	defer mod.Release()
	v, err := oleutil.GetProperty(mod, "Lines", start, count)
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func (cm *comCodeModule) DeleteLines(start, count int) error {
	mod, err := cm.module()
	if err != nil {
		return err
	}
	defer mod.Release()
	_, err = oleutil.CallMethod(mod, "DeleteLines", start, count)
	return err
}

func (cm *comCodeModule) AddFromString(code string) error {
	mod, err := cm.module()
	if err != nil {
		return err
	}
	defer mod.Release()
	_, err = oleutil.CallMethod(mod, "AddFromString", code)
	return err
}

func (cm *comCodeModule) ProcOfLine(line int) (string, error) {
	mod, err := cm.module()
	if err != nil {
		return "", err
	}
	defer mod.Release()
	// ProcOfLine takes a ByRef procedure-kind out-param; 0 selects
	// vbext_pk_Proc.
	v, err := oleutil.GetProperty(mod, "ProcOfLine", line, 0)
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

func variantToInt(v *ole.VARIANT) int64 {
	switch val := v.Value().(type) {
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}

func translateOpenError(path string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "in use") || strings.Contains(msg, "locked") ||
		strings.Contains(msg, "opened by another user") {
		return &vbaerr.LockedError{
			Path:   path,
			Reason: "the file is already open in another application, close it and retry",
		}
	}
	return fmt.Errorf("failed to open %s: %w", path, err)
}

func translateProjectError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "permission") || strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "not trusted") {
		return &vbaerr.PermissionDeniedError{
			Reason: "enable 'Trust access to the VBA project object model' in the host's Trust Center",
		}
	}
	return err
}
