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
	"os"
	"sort"
	"strings"
)

// Mock spreadsheet surface: MockDocument satisfies Workbook, MockHost
// satisfies Spreadsheet (methods in mock.go).

func (d *MockDocument) sheet(name string) (*MockSheet, bool) {
	s, ok := d.state.Sheets[name]
	return s, ok
}

func (d *MockDocument) SheetNames() ([]string, error) {
	names := make([]string, 0, len(d.state.Sheets))
	for name := range d.state.Sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *MockDocument) Sheet(name string) (Worksheet, error) {
	s, ok := d.sheet(name)
	if !ok {
		return nil, fmt.Errorf("worksheet %q not found", name)
	}
	return &MockWorksheet{name: name, sheet: s}, nil
}

func (d *MockDocument) AddSheet(name string) (Worksheet, error) {
	if _, ok := d.state.Sheets[name]; ok {
		return nil, fmt.Errorf("worksheet %q already exists", name)
	}
	s := &MockSheet{Tables: map[string]*MockDataTable{}}
	d.state.Sheets[name] = s
	return &MockWorksheet{name: name, sheet: s}, nil
}

// MockWorksheet implements Worksheet over a MockSheet grid.
type MockWorksheet struct {
	name  string
	sheet *MockSheet
}

func (w *MockWorksheet) Name() string { return w.name }

func (w *MockWorksheet) dims() (rows, cols int) {
	rows = len(w.sheet.Grid)
	for _, r := range w.sheet.Grid {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return rows, cols
}

func (w *MockWorksheet) UsedRange() (Range, error) {
	rows, cols := w.dims()
	if rows == 0 {
		rows, cols = 1, 1
	}
	return &MockRange{sheet: w.sheet, row: 1, col: 1, rows: rows, cols: cols}, nil
}

func (w *MockWorksheet) Range(address string) (Range, error) {
	start, end, found := strings.Cut(address, ":")
	row, col, err := ParseCellAddress(start)
	if err != nil {
		return nil, err
	}
	if !found {
		return &MockRange{sheet: w.sheet, row: row, col: col, rows: 1, cols: 1}, nil
	}
	endRow, endCol, err := ParseCellAddress(end)
	if err != nil {
		return nil, err
	}
	return &MockRange{
		sheet: w.sheet,
		row:   row, col: col,
		rows: endRow - row + 1, cols: endCol - col + 1,
	}, nil
}

func (w *MockWorksheet) Tables() ([]Table, error) {
	names := make([]string, 0, len(w.sheet.Tables))
	for name := range w.sheet.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Table, 0, len(names))
	for _, name := range names {
		out = append(out, w.sheet.Tables[name])
	}
	return out, nil
}

func (w *MockWorksheet) Table(name string) (Table, error) {
	t, ok := w.sheet.Tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q not found on sheet %q", name, w.name)
	}
	return t, nil
}

func (w *MockWorksheet) AddTable(address, name string, hasHeaders bool, style string) (Table, error) {
	if _, ok := w.sheet.Tables[name]; ok {
		return nil, fmt.Errorf("table %q already exists", name)
	}
	rng, err := w.Range(address)
	if err != nil {
		return nil, err
	}
	grid, err := rng.Values()
	if err != nil {
		return nil, err
	}
	t := &MockDataTable{TableName: name, Style: style, Addr: address}
	if hasHeaders && len(grid) > 0 {
		for _, h := range grid[0] {
			t.Headers = append(t.Headers, fmt.Sprintf("%v", h))
		}
		t.Body = grid[1:]
	} else {
		t.Body = grid
	}
	w.sheet.Tables[name] = t
	return t, nil
}

func (w *MockWorksheet) InsertRows(position, count int) error {
	for i := 0; i < count; i++ {
		w.sheet.Grid = append(w.sheet.Grid, nil)
	}
	copy(w.sheet.Grid[position-1+count:], w.sheet.Grid[position-1:])
	for i := 0; i < count; i++ {
		w.sheet.Grid[position-1+i] = nil
	}
	return nil
}

func (w *MockWorksheet) DeleteRows(start, end int) error {
	if start < 1 || end > len(w.sheet.Grid) {
		return fmt.Errorf("row range %d-%d out of bounds", start, end)
	}
	w.sheet.Grid = append(w.sheet.Grid[:start-1], w.sheet.Grid[end:]...)
	return nil
}

func (w *MockWorksheet) InsertColumns(position, count int) error {
	for i, row := range w.sheet.Grid {
		if len(row) < position-1 {
			continue
		}
		blank := make([]any, count)
		expanded := append(append(append([]any{}, row[:position-1]...), blank...), row[position-1:]...)
		w.sheet.Grid[i] = expanded
	}
	return nil
}

func (w *MockWorksheet) DeleteColumns(position, count int) error {
	for i, row := range w.sheet.Grid {
		if len(row) < position {
			continue
		}
		end := position - 1 + count
		if end > len(row) {
			end = len(row)
		}
		w.sheet.Grid[i] = append(append([]any{}, row[:position-1]...), row[end:]...)
	}
	return nil
}

// MockRange is a rectangular window into a MockSheet grid.
type MockRange struct {
	sheet *MockSheet
	row   int
	col   int
	rows  int
	cols  int
}

func (r *MockRange) Address() string {
	start, _ := CellAddress(r.row, r.col)
	end, _ := CellAddress(r.row+r.rows-1, r.col+r.cols-1)
	return start + ":" + end
}

func (r *MockRange) Rows() int { return r.rows }
func (r *MockRange) Cols() int { return r.cols }

func (r *MockRange) Values() ([][]any, error) {
	out := make([][]any, r.rows)
	for i := 0; i < r.rows; i++ {
		out[i] = make([]any, r.cols)
		for j := 0; j < r.cols; j++ {
			gridRow := r.row - 1 + i
			gridCol := r.col - 1 + j
			if gridRow < len(r.sheet.Grid) && gridCol < len(r.sheet.Grid[gridRow]) {
				out[i][j] = r.sheet.Grid[gridRow][gridCol]
			}
		}
	}
	return out, nil
}

func (r *MockRange) Formulas() ([][]any, error) {
	return r.Values()
}

func (r *MockRange) SetValues(data [][]any) error {
	for i, row := range data {
		gridRow := r.row - 1 + i
		for len(r.sheet.Grid) <= gridRow {
			r.sheet.Grid = append(r.sheet.Grid, nil)
		}
		for j, v := range row {
			gridCol := r.col - 1 + j
			for len(r.sheet.Grid[gridRow]) <= gridCol {
				r.sheet.Grid[gridRow] = append(r.sheet.Grid[gridRow], nil)
			}
			r.sheet.Grid[gridRow][gridCol] = v
		}
	}
	return nil
}

func (r *MockRange) Clear() error {
	for i := 0; i < r.rows; i++ {
		gridRow := r.row - 1 + i
		if gridRow >= len(r.sheet.Grid) {
			continue
		}
		for j := 0; j < r.cols; j++ {
			gridCol := r.col - 1 + j
			if gridCol < len(r.sheet.Grid[gridRow]) {
				r.sheet.Grid[gridRow][gridCol] = nil
			}
		}
	}
	return nil
}

// MockDataTable implements Table in memory.
type MockDataTable struct {
	TableName string
	Style     string
	Addr      string
	Headers   []string
	Body      [][]any
}

func (t *MockDataTable) Name() string { return t.TableName }

func (t *MockDataTable) HeaderValues() ([]any, error) {
	out := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		out[i] = h
	}
	return out, nil
}

func (t *MockDataTable) BodyValues() ([][]any, error) {
	return t.Body, nil
}

func (t *MockDataTable) ColumnNames() ([]string, error) {
	return append([]string(nil), t.Headers...), nil
}

func (t *MockDataTable) RowCount() (int, error) {
	return len(t.Body), nil
}

func (t *MockDataTable) AppendRows(rows [][]any) error {
	t.Body = append(t.Body, rows...)
	return nil
}

func (t *MockDataTable) ReplaceBody(rows [][]any) error {
	t.Body = append([][]any{}, rows...)
	return nil
}

func (t *MockDataTable) InsertRow(position int) error {
	if position < 1 || position > len(t.Body)+1 {
		return fmt.Errorf("row position %d out of bounds", position)
	}
	t.Body = append(t.Body, nil)
	copy(t.Body[position:], t.Body[position-1:])
	t.Body[position-1] = make([]any, len(t.Headers))
	return nil
}

func (t *MockDataTable) DeleteRows(start, count int) error {
	if start < 1 || start+count-1 > len(t.Body) {
		return fmt.Errorf("row range out of bounds")
	}
	t.Body = append(t.Body[:start-1], t.Body[start-1+count:]...)
	return nil
}

func (t *MockDataTable) InsertColumn(position int, header string) error {
	if position < 1 || position > len(t.Headers)+1 {
		return fmt.Errorf("column position %d out of bounds", position)
	}
	t.Headers = append(t.Headers, "")
	copy(t.Headers[position:], t.Headers[position-1:])
	t.Headers[position-1] = header
	for i, row := range t.Body {
		row = append(row, nil)
		copy(row[position:], row[position-1:])
		row[position-1] = nil
		t.Body[i] = row
	}
	return nil
}

func (t *MockDataTable) DeleteColumnByName(name string) error {
	for i, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return t.DeleteColumnByIndex(i + 1)
		}
	}
	return fmt.Errorf("table column %q not found", name)
}

func (t *MockDataTable) DeleteColumnByIndex(index int) error {
	if index < 1 || index > len(t.Headers) {
		return fmt.Errorf("table column %d not found", index)
	}
	t.Headers = append(t.Headers[:index-1], t.Headers[index:]...)
	for i, row := range t.Body {
		if index <= len(row) {
			t.Body[i] = append(row[:index-1], row[index:]...)
		}
	}
	return nil
}

func (t *MockDataTable) RangeAddress() (string, error) {
	return t.Addr, nil
}

// Mock database surface: MockDocument satisfies Database for
// database-family hosts.

// MockDBTable is one in-memory database table.
type MockDBTable struct {
	Fields  []FieldInfo
	Headers []string
	Rows    [][]any
}

func (d *MockDocument) dbTables() map[string]*MockDBTable {
	if d.state.DBTables == nil {
		d.state.DBTables = map[string]*MockDBTable{}
	}
	return d.state.DBTables
}

func (d *MockDocument) TableNames() ([]string, error) {
	names := make([]string, 0, len(d.dbTables()))
	for name := range d.dbTables() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (d *MockDocument) TableFields(table string) ([]FieldInfo, error) {
	t, ok := d.dbTables()[table]
	if !ok {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return t.Fields, nil
}

func (d *MockDocument) TableRecordCount(table string) (int, bool) {
	t, ok := d.dbTables()[table]
	if !ok {
		return 0, false
	}
	return len(t.Rows), true
}

func (d *MockDocument) Queries() ([]QueryInfo, error) {
	return d.state.DBQueries, nil
}

func (d *MockDocument) QuerySQL(name string) (string, error) {
	for _, q := range d.state.DBQueries {
		if strings.EqualFold(q.Name, name) {
			return q.SQLPreview, nil
		}
	}
	return "", fmt.Errorf("query %q not found", name)
}

func (d *MockDocument) Execute(sql string) (int, error) {
	d.state.ExecLog = append(d.state.ExecLog, sql)
	if d.state.ExecErr != nil {
		return 0, d.state.ExecErr
	}
	return d.state.ExecAffected, nil
}

func (d *MockDocument) Select(sql string, limit int) ([]string, [][]any, error) {
	d.state.SelectLog = append(d.state.SelectLog, sql)
	table := tableFromSQL(sql)
	t, ok := d.dbTables()[table]
	if !ok {
		return nil, nil, fmt.Errorf("table %q not found", table)
	}
	rows := t.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return t.Headers, rows, nil
}

// tableFromSQL pulls the bracketed table name out of a generated SELECT.
func tableFromSQL(sql string) string {
	_, after, ok := strings.Cut(sql, "FROM [")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(after, "]")
	return name
}

func (d *MockDocument) FormNames() ([]string, error) {
	return append([]string(nil), d.state.Forms...), nil
}

func (d *MockDocument) CreateForm(name, recordSource, formType string) error {
	d.state.Forms = append(d.state.Forms, name)
	return nil
}

func (d *MockDocument) DeleteForm(name string) error {
	kept := d.state.Forms[:0]
	found := false
	for _, f := range d.state.Forms {
		if strings.EqualFold(f, name) {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	d.state.Forms = kept
	if !found {
		return fmt.Errorf("form %q not found", name)
	}
	return nil
}

func (d *MockDocument) ExportForm(name, path string) error {
	return os.WriteFile(path, []byte("Begin Form "+name+"\nEnd Form\n"), 0o644)
}

func (d *MockDocument) ImportForm(name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	d.state.Forms = append(d.state.Forms, name)
	return nil
}
