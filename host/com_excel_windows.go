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

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// Workbook capability extension of comDocument.

func (d *comDocument) sheets() (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(d.obj, "Worksheets")
	if err != nil {
		return nil, err
	}
	return v.ToIDispatch(), nil
}

func (d *comDocument) SheetNames() ([]string, error) {
	sheets, err := d.sheets()
	if err != nil {
		return nil, err
	}
	defer sheets.Release()
	countV, err := oleutil.GetProperty(sheets, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	names := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		item, err := oleutil.GetProperty(sheets, "Item", i)
		if err != nil {
			return nil, err
		}
		sheet := item.ToIDispatch()
		nameV, err := oleutil.GetProperty(sheet, "Name")
		if err != nil {
			sheet.Release()
			return nil, err
		}
		names = append(names, nameV.ToString())
		nameV.Clear()
		sheet.Release()
	}
	return names, nil
}

func (d *comDocument) Sheet(name string) (Worksheet, error) {
	sheets, err := d.sheets()
	if err != nil {
		return nil, err
	}
	defer sheets.Release()
	item, err := oleutil.GetProperty(sheets, "Item", name)
	if err != nil {
		return nil, fmt.Errorf("worksheet %q not found: %w", name, err)
	}
	return &comWorksheet{name: name, obj: item.ToIDispatch()}, nil
}

func (d *comDocument) AddSheet(name string) (Worksheet, error) {
	sheets, err := d.sheets()
	if err != nil {
		return nil, err
	}
	defer sheets.Release()
	v, err := oleutil.CallMethod(sheets, "Add")
	if err != nil {
		return nil, err
	}
	sheet := v.ToIDispatch()
	if _, err := oleutil.PutProperty(sheet, "Name", name); err != nil {
		sheet.Release()
		return nil, err
	}
	return &comWorksheet{name: name, obj: sheet}, nil
}

type comWorksheet struct {
	name string
	obj  *ole.IDispatch
}

func (w *comWorksheet) Name() string { return w.name }

func (w *comWorksheet) UsedRange() (Range, error) {
	v, err := oleutil.GetProperty(w.obj, "UsedRange")
	if err != nil {
		return nil, err
	}
	return newCOMRange(v.ToIDispatch())
}

func (w *comWorksheet) Range(address string) (Range, error) {
	v, err := oleutil.GetProperty(w.obj, "Range", address)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", address, err)
	}
	return newCOMRange(v.ToIDispatch())
}

func (w *comWorksheet) Tables() ([]Table, error) {
	coll, err := oleutil.GetProperty(w.obj, "ListObjects")
	if err != nil {
		return nil, err
	}
	objs := coll.ToIDispatch()
	defer objs.Release()
	countV, err := oleutil.GetProperty(objs, "Count")
	if err != nil {
		return nil, err
	}
	count := int(variantToInt(countV))
	countV.Clear()

	out := make([]Table, 0, count)
	for i := 1; i <= count; i++ {
		item, err := oleutil.GetProperty(objs, "Item", i)
		if err != nil {
			return nil, err
		}
		t := item.ToIDispatch()
		nameV, err := oleutil.GetProperty(t, "Name")
		if err != nil {
			t.Release()
			return nil, err
		}
		out = append(out, &comTable{name: nameV.ToString(), obj: t})
		nameV.Clear()
	}
	return out, nil
}

func (w *comWorksheet) Table(name string) (Table, error) {
	tables, err := w.Tables()
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		if t.Name() == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("table %q not found on sheet %q", name, w.name)
}

func (w *comWorksheet) AddTable(address, name string, hasHeaders bool, style string) (Table, error) {
	coll, err := oleutil.GetProperty(w.obj, "ListObjects")
	if err != nil {
		return nil, err
	}
	objs := coll.ToIDispatch()
	defer objs.Release()

	rangeV, err := oleutil.GetProperty(w.obj, "Range", address)
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", address, err)
	}
	rng := rangeV.ToIDispatch()
	defer rng.Release()

	headers := 1 // xlYes
	if !hasHeaders {
		headers = 2 // xlNo
	}
	// xlSrcRange = 1
	v, err := oleutil.CallMethod(objs, "Add", 1, rng, nil, headers)
	if err != nil {
		return nil, err
	}
	table := v.ToIDispatch()
	if _, err := oleutil.PutProperty(table, "Name", name); err != nil {
		table.Release()
		return nil, err
	}
	if style != "" {
		if _, err := oleutil.PutProperty(table, "TableStyle", style); err != nil {
			table.Release()
			return nil, err
		}
	}
	return &comTable{name: name, obj: table}, nil
}

func (w *comWorksheet) InsertRows(position, count int) error {
	address := fmt.Sprintf("%d:%d", position, position+count-1)
	v, err := oleutil.GetProperty(w.obj, "Rows", address)
	if err != nil {
		return err
	}
	rows := v.ToIDispatch()
	defer rows.Release()
	_, err = oleutil.CallMethod(rows, "Insert")
	return err
}

func (w *comWorksheet) DeleteRows(start, end int) error {
	address := fmt.Sprintf("%d:%d", start, end)
	v, err := oleutil.GetProperty(w.obj, "Rows", address)
	if err != nil {
		return err
	}
	rows := v.ToIDispatch()
	defer rows.Release()
	_, err = oleutil.CallMethod(rows, "Delete")
	return err
}

func (w *comWorksheet) InsertColumns(position, count int) error {
	start, err := ColumnNumberToLetter(position)
	if err != nil {
		return err
	}
	end, err := ColumnNumberToLetter(position + count - 1)
	if err != nil {
		return err
	}
	v, err := oleutil.GetProperty(w.obj, "Columns", start+":"+end)
	if err != nil {
		return err
	}
	cols := v.ToIDispatch()
	defer cols.Release()
	_, err = oleutil.CallMethod(cols, "Insert")
	return err
}

func (w *comWorksheet) DeleteColumns(position, count int) error {
	start, err := ColumnNumberToLetter(position)
	if err != nil {
		return err
	}
	end, err := ColumnNumberToLetter(position + count - 1)
	if err != nil {
		return err
	}
	v, err := oleutil.GetProperty(w.obj, "Columns", start+":"+end)
	if err != nil {
		return err
	}
	cols := v.ToIDispatch()
	defer cols.Release()
	_, err = oleutil.CallMethod(cols, "Delete")
	return err
}

type comRange struct {
	obj     *ole.IDispatch
	address string
	rows    int
	cols    int
}

func newCOMRange(obj *ole.IDispatch) (*comRange, error) {
	r := &comRange{obj: obj}
	addrV, err := oleutil.GetProperty(obj, "Address")
	if err != nil {
		return nil, err
	}
	r.address = addrV.ToString()
	addrV.Clear()

	rowsV, err := oleutil.GetProperty(obj, "Rows")
	if err != nil {
		return nil, err
	}
	rowsObj := rowsV.ToIDispatch()
	countV, err := oleutil.GetProperty(rowsObj, "Count")
	if err != nil {
		rowsObj.Release()
		return nil, err
	}
	r.rows = int(variantToInt(countV))
	countV.Clear()
	rowsObj.Release()

	colsV, err := oleutil.GetProperty(obj, "Columns")
	if err != nil {
		return nil, err
	}
	colsObj := colsV.ToIDispatch()
	countV, err = oleutil.GetProperty(colsObj, "Count")
	if err != nil {
		colsObj.Release()
		return nil, err
	}
	r.cols = int(variantToInt(countV))
	countV.Clear()
	colsObj.Release()
	return r, nil
}

func (r *comRange) Address() string { return r.address }
func (r *comRange) Rows() int       { return r.rows }
func (r *comRange) Cols() int       { return r.cols }

func (r *comRange) Values() ([][]any, error) {
	return r.grid("Value")
}

func (r *comRange) Formulas() ([][]any, error) {
	return r.grid("Formula")
}

// grid reads a range property and folds it into a 2-D slice. Safearrays
// store the first dimension fastest, so the flat element order is
// column-major.
func (r *comRange) grid(property string) ([][]any, error) {
	v, err := oleutil.GetProperty(r.obj, property)
	if err != nil {
		return nil, err
	}
	defer v.Clear()
	if v.VT&ole.VT_ARRAY == 0 {
		return NormalizeGrid(v.Value(), r.rows, r.cols), nil
	}
	flat := v.ToArray().ToValueArray()
	out := make([][]any, r.rows)
	for i := range out {
		out[i] = make([]any, r.cols)
	}
	for c := 0; c < r.cols; c++ {
		for row := 0; row < r.rows; row++ {
			idx := c*r.rows + row
			if idx < len(flat) {
				out[row][c] = flat[idx]
			}
		}
	}
	return out, nil
}

func (r *comRange) SetValues(data [][]any) error {
	rows := make([]any, len(data))
	for i, row := range data {
		rows[i] = row
	}
	_, err := oleutil.PutProperty(r.obj, "Value", rows)
	return err
}

func (r *comRange) Clear() error {
	_, err := oleutil.CallMethod(r.obj, "ClearContents")
	return err
}

type comTable struct {
	name string
	obj  *ole.IDispatch
}

func (t *comTable) Name() string { return t.name }

func (t *comTable) headerRange() (*comRange, error) {
	v, err := oleutil.GetProperty(t.obj, "HeaderRowRange")
	if err != nil {
		return nil, err
	}
	return newCOMRange(v.ToIDispatch())
}

func (t *comTable) bodyRange() (*comRange, error) {
	v, err := oleutil.GetProperty(t.obj, "DataBodyRange")
	if err != nil || v.ToIDispatch() == nil {
		return nil, nil
	}
	return newCOMRange(v.ToIDispatch())
}

func (t *comTable) HeaderValues() ([]any, error) {
	hdr, err := t.headerRange()
	if err != nil {
		return nil, err
	}
	grid, err := hdr.Values()
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}
	return grid[0], nil
}

func (t *comTable) BodyValues() ([][]any, error) {
	body, err := t.bodyRange()
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	return body.Values()
}

func (t *comTable) ColumnNames() ([]string, error) {
	headers, err := t.HeaderValues()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = fmt.Sprintf("%v", h)
	}
	return out, nil
}

func (t *comTable) RowCount() (int, error) {
	body, err := t.bodyRange()
	if err != nil {
		return 0, err
	}
	if body == nil {
		return 0, nil
	}
	return body.Rows(), nil
}

func (t *comTable) listRows() (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(t.obj, "ListRows")
	if err != nil {
		return nil, err
	}
	return v.ToIDispatch(), nil
}

func (t *comTable) AppendRows(rows [][]any) error {
	listRows, err := t.listRows()
	if err != nil {
		return err
	}
	defer listRows.Release()
	for _, row := range rows {
		v, err := oleutil.CallMethod(listRows, "Add")
		if err != nil {
			return err
		}
		newRow := v.ToIDispatch()
		rangeV, err := oleutil.GetProperty(newRow, "Range")
		if err != nil {
			newRow.Release()
			return err
		}
		rng, err := newCOMRange(rangeV.ToIDispatch())
		if err != nil {
			newRow.Release()
			return err
		}
		if err := rng.SetValues([][]any{row}); err != nil {
			newRow.Release()
			return err
		}
		newRow.Release()
	}
	return nil
}

func (t *comTable) ReplaceBody(rows [][]any) error {
	body, err := t.bodyRange()
	if err != nil {
		return err
	}
	if body != nil {
		if err := body.Clear(); err != nil {
			return err
		}
	}
	return t.AppendRows(rows)
}

func (t *comTable) InsertRow(position int) error {
	listRows, err := t.listRows()
	if err != nil {
		return err
	}
	defer listRows.Release()
	_, err = oleutil.CallMethod(listRows, "Add", position)
	return err
}

func (t *comTable) DeleteRows(start, count int) error {
	listRows, err := t.listRows()
	if err != nil {
		return err
	}
	defer listRows.Release()
	// Delete bottom-up so positions stay stable.
	for i := start + count - 1; i >= start; i-- {
		item, err := oleutil.GetProperty(listRows, "Item", i)
		if err != nil {
			return err
		}
		row := item.ToIDispatch()
		if _, err := oleutil.CallMethod(row, "Delete"); err != nil {
			row.Release()
			return err
		}
		row.Release()
	}
	return nil
}

func (t *comTable) listColumns() (*ole.IDispatch, error) {
	v, err := oleutil.GetProperty(t.obj, "ListColumns")
	if err != nil {
		return nil, err
	}
	return v.ToIDispatch(), nil
}

func (t *comTable) InsertColumn(position int, header string) error {
	cols, err := t.listColumns()
	if err != nil {
		return err
	}
	defer cols.Release()
	v, err := oleutil.CallMethod(cols, "Add", position)
	if err != nil {
		return err
	}
	col := v.ToIDispatch()
	defer col.Release()
	if header != "" {
		if _, err := oleutil.PutProperty(col, "Name", header); err != nil {
			return err
		}
	}
	return nil
}

func (t *comTable) DeleteColumnByName(name string) error {
	cols, err := t.listColumns()
	if err != nil {
		return err
	}
	defer cols.Release()
	item, err := oleutil.GetProperty(cols, "Item", name)
	if err != nil {
		return fmt.Errorf("table column %q not found: %w", name, err)
	}
	col := item.ToIDispatch()
	defer col.Release()
	_, err = oleutil.CallMethod(col, "Delete")
	return err
}

func (t *comTable) DeleteColumnByIndex(index int) error {
	cols, err := t.listColumns()
	if err != nil {
		return err
	}
	defer cols.Release()
	item, err := oleutil.GetProperty(cols, "Item", index)
	if err != nil {
		return fmt.Errorf("table column %d not found: %w", index, err)
	}
	col := item.ToIDispatch()
	defer col.Release()
	_, err = oleutil.CallMethod(col, "Delete")
	return err
}

func (t *comTable) RangeAddress() (string, error) {
	v, err := oleutil.GetProperty(t.obj, "Range")
	if err != nil {
		return "", err
	}
	rng, err := newCOMRange(v.ToIDispatch())
	if err != nil {
		return "", err
	}
	return rng.Address(), nil
}
