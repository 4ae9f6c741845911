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
)

// DAO field type names, keyed by the Type property value.
var daoTypeNames = map[int]string{
	1:  "Boolean",
	2:  "Byte",
	3:  "Integer",
	4:  "Long",
	5:  "Currency",
	6:  "Single",
	7:  "Double",
	8:  "Date/Time",
	10: "Text",
	11: "OLE Object",
	12: "Memo",
	15: "GUID",
}

// acForm
const comAcForm = 2

// comDatabase is the database host acting as its own document: the
// application object and the file handle are the same COM object.
type comDatabase struct {
	host *comHost
	obj  *ole.IDispatch
}

func (d *comDatabase) currentDb() (*ole.IDispatch, error) {
	v, err := oleutil.CallMethod(d.obj, "CurrentDb")
	if err != nil {
		return nil, err
	}
	return v.ToIDispatch(), nil
}

func (d *comDatabase) Name() (string, error) {
	db, err := d.currentDb()
	if err != nil {
		return "", err
	}
	defer db.Release()
	v, err := oleutil.GetProperty(db, "Name")
	if err != nil {
		return "", err
	}
	defer v.Clear()
	return v.ToString(), nil
}

// Save is a no-op: the database host persists object changes as they
// happen.
func (d *comDatabase) Save() error {
	return nil
}

func (d *comDatabase) Close(saveChanges bool) error {
	_, err := oleutil.CallMethod(d.obj, "CloseCurrentDatabase")
	return err
}

func (d *comDatabase) Project() (Project, error) {
	vbe, err := oleutil.GetProperty(d.obj, "VBE")
	if err != nil {
		return nil, translateProjectError(err)
	}
	vbeObj := vbe.ToIDispatch()
	defer vbeObj.Release()
	v, err := oleutil.GetProperty(vbeObj, "ActiveVBProject")
	if err != nil {
		return nil, translateProjectError(err)
	}
	return &comProject{obj: v.ToIDispatch()}, nil
}

func (d *comDatabase) Release() {
	if d.obj != nil {
		d.obj.Release()
		d.obj = nil
	}
}

// Database capability surface.

func (d *comDatabase) TableNames() ([]string, error) {
	db, err := d.currentDb()
	if err != nil {
		return nil, err
	}
	defer db.Release()
	defs, err := oleutil.GetProperty(db, "TableDefs")
	if err != nil {
		return nil, err
	}
	coll := defs.ToIDispatch()
	defer coll.Release()
	return collectionNames(coll)
}

func (d *comDatabase) TableFields(table string) ([]FieldInfo, error) {
	db, err := d.currentDb()
	if err != nil {
		return nil, err
	}
	defer db.Release()
	defs, err := oleutil.GetProperty(db, "TableDefs")
	if err != nil {
		return nil, err
	}
	coll := defs.ToIDispatch()
	defer coll.Release()
	item, err := oleutil.GetProperty(coll, "Item", table)
	if err != nil {
		return nil, fmt.Errorf("table %q not found: %w", table, err)
	}
	def := item.ToIDispatch()
	defer def.Release()

	fieldsV, err := oleutil.GetProperty(def, "Fields")
	if err != nil {
		return nil, err
	}
	fields := fieldsV.ToIDispatch()
	defer fields.Release()

	countV, err := oleutil.GetProperty(fields, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	out := make([]FieldInfo, 0, count)
	for i := 0; i < count; i++ {
		fv, err := oleutil.GetProperty(fields, "Item", i)
		if err != nil {
			return nil, err
		}
		field := fv.ToIDispatch()
		info := FieldInfo{}
		if nameV, err := oleutil.GetProperty(field, "Name"); err == nil {
			info.Name = nameV.ToString()
			nameV.Clear()
		}
		if typeV, err := oleutil.GetProperty(field, "Type"); err == nil {
			code := int(variantToInt(typeV))
			typeV.Clear()
			if name, ok := daoTypeNames[code]; ok {
				info.TypeName = name
			} else {
				info.TypeName = fmt.Sprintf("Type%d", code)
			}
		}
		if sizeV, err := oleutil.GetProperty(field, "Size"); err == nil {
			info.Size = int(variantToInt(sizeV))
			sizeV.Clear()
		}
		if attrV, err := oleutil.GetProperty(field, "Attributes"); err == nil {
			// dbAutoIncrField
			info.AutoIncrement = variantToInt(attrV)&0x10 != 0
			attrV.Clear()
		}
		out = append(out, info)
		field.Release()
	}
	return out, nil
}

func (d *comDatabase) TableRecordCount(table string) (int, bool) {
	headers, rows, err := d.Select("SELECT COUNT(*) FROM ["+table+"]", 1)
	if err != nil || len(headers) == 0 || len(rows) == 0 || len(rows[0]) == 0 {
		return 0, false
	}
	switch v := rows[0][0].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func (d *comDatabase) Queries() ([]QueryInfo, error) {
	db, err := d.currentDb()
	if err != nil {
		return nil, err
	}
	defer db.Release()
	defs, err := oleutil.GetProperty(db, "QueryDefs")
	if err != nil {
		return nil, err
	}
	coll := defs.ToIDispatch()
	defer coll.Release()

	countV, err := oleutil.GetProperty(coll, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	out := make([]QueryInfo, 0, count)
	for i := 0; i < count; i++ {
		qv, err := oleutil.GetProperty(coll, "Item", i)
		if err != nil {
			return nil, err
		}
		q := qv.ToIDispatch()
		info := QueryInfo{}
		if nameV, err := oleutil.GetProperty(q, "Name"); err == nil {
			info.Name = nameV.ToString()
			nameV.Clear()
		}
		if sqlV, err := oleutil.GetProperty(q, "SQL"); err == nil {
			info.SQLPreview = sqlV.ToString()
			sqlV.Clear()
		}
		if typeV, err := oleutil.GetProperty(q, "Type"); err == nil {
			info.TypeName = queryTypeName(int(variantToInt(typeV)))
			typeV.Clear()
		}
		out = append(out, info)
		q.Release()
	}
	return out, nil
}

func queryTypeName(code int) string {
	switch code {
	case 0:
		return "select"
	case 16:
		return "crosstab"
	case 32:
		return "delete"
	case 48:
		return "update"
	case 64:
		return "append"
	case 80:
		return "make-table"
	default:
		return fmt.Sprintf("type%d", code)
	}
}

func (d *comDatabase) QuerySQL(name string) (string, error) {
	queries, err := d.Queries()
	if err != nil {
		return "", err
	}
	for _, q := range queries {
		if strings.EqualFold(q.Name, name) {
			return q.SQLPreview, nil
		}
	}
	return "", fmt.Errorf("query %q not found", name)
}

func (d *comDatabase) Execute(sql string) (int, error) {
	db, err := d.currentDb()
	if err != nil {
		return 0, err
	}
	defer db.Release()
	// dbFailOnError = 128
	if _, err := oleutil.CallMethod(db, "Execute", sql, 128); err != nil {
		return 0, &vbaerr.SQLError{Query: sql, Reason: err.Error()}
	}
	v, err := oleutil.GetProperty(db, "RecordsAffected")
	if err != nil {
		return 0, nil
	}
	defer v.Clear()
	return int(variantToInt(v)), nil
}

func (d *comDatabase) Select(sql string, limit int) ([]string, [][]any, error) {
	db, err := d.currentDb()
	if err != nil {
		return nil, nil, err
	}
	defer db.Release()
	rsV, err := oleutil.CallMethod(db, "OpenRecordset", sql)
	if err != nil {
		return nil, nil, &vbaerr.SQLError{Query: sql, Reason: err.Error()}
	}
	rs := rsV.ToIDispatch()
	defer func() {
		oleutil.CallMethod(rs, "Close")
		rs.Release()
	}()

	fieldsV, err := oleutil.GetProperty(rs, "Fields")
	if err != nil {
		return nil, nil, err
	}
	fields := fieldsV.ToIDispatch()
	defer fields.Release()

	headers, err := collectionNames(fields)
	if err != nil {
		return nil, nil, err
	}

	var rows [][]any
	for {
		eofV, err := oleutil.GetProperty(rs, "EOF")
		if err != nil {
			return nil, nil, err
		}
		eof, _ := eofV.Value().(bool)
		eofV.Clear()
		if eof || (limit > 0 && len(rows) >= limit) {
			break
		}
		row := make([]any, len(headers))
		for i, h := range headers {
			fv, err := oleutil.GetProperty(fields, "Item", h)
			if err != nil {
				return nil, nil, err
			}
			field := fv.ToIDispatch()
			valV, err := oleutil.GetProperty(field, "Value")
			if err == nil {
				row[i] = valV.Value()
				valV.Clear()
			}
			field.Release()
		}
		rows = append(rows, row)
		if _, err := oleutil.CallMethod(rs, "MoveNext"); err != nil {
			return nil, nil, err
		}
	}
	return headers, rows, nil
}

func (d *comDatabase) FormNames() ([]string, error) {
	proj, err := oleutil.GetProperty(d.obj, "CurrentProject")
	if err != nil {
		return nil, err
	}
	projObj := proj.ToIDispatch()
	defer projObj.Release()
	formsV, err := oleutil.GetProperty(projObj, "AllForms")
	if err != nil {
		return nil, err
	}
	forms := formsV.ToIDispatch()
	defer forms.Release()
	return collectionNames(forms)
}

func (d *comDatabase) CreateForm(name, recordSource, formType string) error {
	formV, err := oleutil.CallMethod(d.obj, "CreateForm")
	if err != nil {
		return err
	}
	form := formV.ToIDispatch()
	tempName := ""
	if nameV, err := oleutil.GetProperty(form, "Name"); err == nil {
		tempName = nameV.ToString()
		nameV.Clear()
	}
	if recordSource != "" {
		if _, err := oleutil.PutProperty(form, "RecordSource", recordSource); err != nil {
			form.Release()
			return err
		}
	}
	if formType == "continuous" {
		// acContinuous
		if _, err := oleutil.PutProperty(form, "DefaultView", 1); err != nil {
			form.Release()
			return err
		}
	}
	form.Release()

	docmdV, err := oleutil.GetProperty(d.obj, "DoCmd")
	if err != nil {
		return err
	}
	docmd := docmdV.ToIDispatch()
	defer docmd.Release()
	// Save under the temporary name, close with acSaveYes (1), then rename.
	if _, err := oleutil.CallMethod(docmd, "Save", comAcForm, tempName); err != nil {
		return err
	}
	if _, err := oleutil.CallMethod(docmd, "Close", comAcForm, tempName, 1); err != nil {
		return err
	}
	if tempName != name {
		if _, err := oleutil.CallMethod(docmd, "Rename", name, comAcForm, tempName); err != nil {
			return err
		}
	}
	return nil
}

func (d *comDatabase) DeleteForm(name string) error {
	docmdV, err := oleutil.GetProperty(d.obj, "DoCmd")
	if err != nil {
		return err
	}
	docmd := docmdV.ToIDispatch()
	defer docmd.Release()
	// acDeleteObject with acForm.
	_, err = oleutil.CallMethod(docmd, "DeleteObject", comAcForm, name)
	return err
}

func (d *comDatabase) ExportForm(name, path string) error {
	_, err := oleutil.CallMethod(d.obj, "SaveAsText", comAcForm, name, path)
	return err
}

func (d *comDatabase) ImportForm(name, path string) error {
	_, err := oleutil.CallMethod(d.obj, "LoadFromText", comAcForm, name, path)
	return err
}

// collectionNames walks a COM collection's items and reads each Name.
func collectionNames(coll *ole.IDispatch) ([]string, error) {
	countV, err := oleutil.GetProperty(coll, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		item, err := oleutil.GetProperty(coll, "Item", i)
		if err != nil {
			return nil, err
		}
		obj := item.ToIDispatch()
		if nameV, err := oleutil.GetProperty(obj, "Name"); err == nil {
			names = append(names, nameV.ToString())
			nameV.Clear()
		}
		obj.Release()
	}
	return names, nil
}
