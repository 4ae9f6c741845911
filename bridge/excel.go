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

package bridge

import (
	"fmt"
	"strings"

	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// RangeData is a rectangular read result.
type RangeData struct {
	Sheet   string  `json:"sheet"`
	Address string  `json:"range,omitempty"`
	Headers []any   `json:"headers,omitempty"`
	Rows    [][]any `json:"rows"`
}

// ReadRange reads a sheet range, or the used range when address is empty.
func ReadRange(sess *session.Session, sheetName, address string, includeFormulas bool) (*RangeData, error) {
	wb, err := workbook(sess)
	if err != nil {
		return nil, err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return nil, err
	}

	var rng host.Range
	if address == "" {
		rng, err = ws.UsedRange()
	} else {
		rng, err = ws.Range(address)
	}
	if err != nil {
		return nil, err
	}

	cells := rng.Rows() * rng.Cols()
	if cells > MaxCells {
		return nil, &vbaerr.RangeTooLargeError{Cells: cells, Limit: MaxCells}
	}

	var grid [][]any
	if includeFormulas {
		grid, err = rng.Formulas()
	} else {
		grid, err = rng.Values()
	}
	if err != nil {
		return nil, err
	}
	return &RangeData{Sheet: sheetName, Address: rng.Address(), Rows: grid}, nil
}

// ReadTable reads a structured table's header and body, optionally
// projecting to the named columns.
func ReadTable(sess *session.Session, sheetName, tableName string, columns []string) (*RangeData, error) {
	wb, err := workbook(sess)
	if err != nil {
		return nil, err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return nil, err
	}
	table, err := ws.Table(tableName)
	if err != nil {
		return nil, err
	}

	headers, err := table.HeaderValues()
	if err != nil {
		return nil, err
	}
	body, err := table.BodyValues()
	if err != nil {
		return nil, err
	}

	if len(columns) > 0 {
		indices, err := columnIndices(headers, columns)
		if err != nil {
			return nil, err
		}
		headers = projectRow(headers, indices)
		projected := make([][]any, len(body))
		for i, row := range body {
			projected[i] = projectRow(row, indices)
		}
		body = projected
	}
	return &RangeData{Sheet: sheetName, Headers: headers, Rows: body}, nil
}

func columnIndices(headers []any, columns []string) ([]int, error) {
	out := make([]int, 0, len(columns))
	for _, want := range columns {
		found := -1
		for i, h := range headers {
			if strings.EqualFold(fmt.Sprintf("%v", h), want) {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("column %q not found in table headers", want)
		}
		out = append(out, found)
	}
	return out, nil
}

func projectRow(row []any, indices []int) []any {
	out := make([]any, len(indices))
	for i, idx := range indices {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}

// WriteRange writes a rectangular block starting at startCell (A1 when
// empty), creating the sheet when absent. The host is switched to manual
// recalculation for the single write call and always switched back.
func WriteRange(sess *session.Session, sheetName string, data [][]any, startCell string, clearExisting bool) (int, error) {
	if err := validateGrid(data); err != nil {
		return 0, err
	}
	wb, err := workbook(sess)
	if err != nil {
		return 0, err
	}
	sh, err := spreadsheetHost(sess)
	if err != nil {
		return 0, err
	}
	ws, err := sheetOrCreate(wb, sheetName)
	if err != nil {
		return 0, err
	}

	if startCell == "" {
		startCell = "A1"
	}
	startRow, startCol, err := host.ParseCellAddress(startCell)
	if err != nil {
		return 0, err
	}
	endAddr, err := host.CellAddress(startRow+len(data)-1, startCol+len(data[0])-1)
	if err != nil {
		return 0, err
	}
	address := startCell + ":" + endAddr

	if clearExisting {
		used, err := ws.UsedRange()
		if err == nil {
			if err := used.Clear(); err != nil {
				return 0, err
			}
		}
	}

	rng, err := ws.Range(address)
	if err != nil {
		return 0, err
	}

	mode, modeErr := sh.Calculation()
	if modeErr == nil {
		if err := sh.SetCalculation(host.CalculationManual); err != nil {
			logging.Debug("could not switch to manual calculation: %v", err)
		}
	}
	defer func() {
		if modeErr == nil {
			if err := sh.SetCalculation(mode); err != nil {
				logging.Warning("could not restore calculation mode: %v", err)
			}
		}
		if err := sh.Calculate(); err != nil {
			logging.Debug("recalculation failed: %v", err)
		}
	}()

	if err := rng.SetValues(data); err != nil {
		return 0, err
	}
	return len(data) * len(data[0]), nil
}

// validateGrid rejects ragged input and over-budget writes.
func validateGrid(data [][]any) error {
	if len(data) == 0 {
		return fmt.Errorf("data must contain at least one row")
	}
	width := len(data[0])
	if width == 0 {
		return fmt.Errorf("rows must contain at least one value")
	}
	for i, row := range data {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, expected %d (all rows must be the same length)",
				i+1, len(row), width)
		}
	}
	if cells := len(data) * width; cells > MaxCells {
		return &vbaerr.RangeTooLargeError{Cells: cells, Limit: MaxCells}
	}
	return nil
}

// WriteTable appends to or replaces the body of a structured table. When
// columns is given, each input row is mapped onto those columns and the
// table's other columns stay blank.
func WriteTable(sess *session.Session, sheetName, tableName string, data [][]any, mode string, columns []string) (int, error) {
	if err := validateGrid(data); err != nil {
		return 0, err
	}
	wb, err := workbook(sess)
	if err != nil {
		return 0, err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return 0, err
	}
	table, err := ws.Table(tableName)
	if err != nil {
		return 0, err
	}

	rows := data
	if len(columns) > 0 {
		headers, err := table.HeaderValues()
		if err != nil {
			return 0, err
		}
		indices, err := columnIndices(headers, columns)
		if err != nil {
			return 0, err
		}
		rows = make([][]any, len(data))
		for i, in := range data {
			full := make([]any, len(headers))
			for j, idx := range indices {
				if j < len(in) {
					full[idx] = in[j]
				}
			}
			rows[i] = full
		}
	}

	switch mode {
	case "", "append":
		if err := table.AppendRows(rows); err != nil {
			return 0, err
		}
	case "replace":
		if err := table.ReplaceBody(rows); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown write mode %q (use append or replace)", mode)
	}
	return len(rows), nil
}

// TableSummary describes one structured table for listings.
type TableSummary struct {
	Name     string   `json:"name"`
	Sheet    string   `json:"sheet"`
	Address  string   `json:"range"`
	Columns  []string `json:"columns"`
	RowCount int      `json:"row_count"`
}

// ListTables enumerates structured tables, on one sheet or the whole
// workbook.
func ListTables(sess *session.Session, sheetName string) ([]TableSummary, error) {
	wb, err := workbook(sess)
	if err != nil {
		return nil, err
	}

	var sheets []string
	if sheetName != "" {
		sheets = []string{sheetName}
	} else {
		if sheets, err = wb.SheetNames(); err != nil {
			return nil, err
		}
	}

	var out []TableSummary
	for _, name := range sheets {
		ws, err := wb.Sheet(name)
		if err != nil {
			return nil, err
		}
		tables, err := ws.Tables()
		if err != nil {
			return nil, err
		}
		for _, t := range tables {
			summary := TableSummary{Name: t.Name(), Sheet: name}
			if addr, err := t.RangeAddress(); err == nil {
				summary.Address = addr
			}
			if cols, err := t.ColumnNames(); err == nil {
				summary.Columns = cols
			}
			if count, err := t.RowCount(); err == nil {
				summary.RowCount = count
			}
			out = append(out, summary)
		}
	}
	return out, nil
}

// CreateTable converts a range into a structured table.
func CreateTable(sess *session.Session, sheetName, address, tableName string, hasHeaders bool, style string) error {
	wb, err := workbook(sess)
	if err != nil {
		return err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	if style == "" {
		style = "TableStyleMedium2"
	}
	_, err = ws.AddTable(address, tableName, hasHeaders, style)
	return err
}

// InsertRows inserts sheet rows, or table rows when tableName is given.
func InsertRows(sess *session.Session, sheetName string, position, count int, tableName string) error {
	wb, err := workbook(sess)
	if err != nil {
		return err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	if count < 1 {
		count = 1
	}
	if tableName != "" {
		table, err := ws.Table(tableName)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := table.InsertRow(position); err != nil {
				return err
			}
		}
		return nil
	}
	return ws.InsertRows(position, count)
}

// DeleteRows deletes sheet rows start..end, or table rows when tableName
// is given.
func DeleteRows(sess *session.Session, sheetName string, start, end int, tableName string) error {
	wb, err := workbook(sess)
	if err != nil {
		return err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	if end < start {
		end = start
	}
	if tableName != "" {
		table, err := ws.Table(tableName)
		if err != nil {
			return err
		}
		return table.DeleteRows(start, end-start+1)
	}
	return ws.DeleteRows(start, end)
}

// InsertColumns inserts columns at a position given as a number or a
// letter; on a table, position is the 1-based column index and headerName
// labels the new column.
func InsertColumns(sess *session.Session, sheetName, position string, count int, tableName, headerName string) error {
	wb, err := workbook(sess)
	if err != nil {
		return err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	pos, err := resolveColumn(position)
	if err != nil {
		return err
	}
	if count < 1 {
		count = 1
	}
	if tableName != "" {
		table, err := ws.Table(tableName)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			if err := table.InsertColumn(pos+i, headerName); err != nil {
				return err
			}
		}
		return nil
	}
	return ws.InsertColumns(pos, count)
}

// DeleteColumns deletes a column addressed by number, letter, or (for
// tables) header name.
func DeleteColumns(sess *session.Session, sheetName, column, tableName string) error {
	wb, err := workbook(sess)
	if err != nil {
		return err
	}
	ws, err := wb.Sheet(sheetName)
	if err != nil {
		return err
	}
	if tableName != "" {
		table, err := ws.Table(tableName)
		if err != nil {
			return err
		}
		names, err := table.ColumnNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			if strings.EqualFold(name, strings.TrimSpace(column)) {
				return table.DeleteColumnByName(name)
			}
		}
		if pos, err := resolveColumn(column); err == nil {
			return table.DeleteColumnByIndex(pos)
		}
		return table.DeleteColumnByName(column)
	}
	pos, err := resolveColumn(column)
	if err != nil {
		return err
	}
	return ws.DeleteColumns(pos, 1)
}

// resolveColumn accepts "3" or "C" and returns the 1-based column number.
func resolveColumn(column string) (int, error) {
	column = strings.TrimSpace(column)
	var n int
	if _, err := fmt.Sscanf(column, "%d", &n); err == nil && n >= 1 {
		return n, nil
	}
	return host.ColumnLetterToNumber(column)
}
