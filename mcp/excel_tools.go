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

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexisTrouve/vba-mcp-server/bridge"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// excelTools are the worksheet and structured-table operations. The
// worksheet-data tools route to the database bridge for database-family
// sessions so one tool name serves both hosts.
func (s *Server) excelTools() []toolDef {
	fileProp := stringProp("Absolute path to the Office file")
	sheetProp := stringProp("Worksheet name (or table name for databases)")

	return []toolDef{
		{
			name:        "get_worksheet_data",
			description: "Read data from a worksheet range, a structured table, or a database table",
			schema: objectSchema([]string{"file", "sheet_name"}, map[string]*jsonschema.Schema{
				"file":             fileProp,
				"sheet_name":       sheetProp,
				"range":            stringProp("Cell range like 'A1:D10'; omit for the used range"),
				"table_name":       stringProp("Structured table name"),
				"sql_query":        stringProp("Ad-hoc SQL (databases only)"),
				"where":            stringProp("WHERE clause (databases only)"),
				"order_by":         stringProp("ORDER BY clause (databases only)"),
				"limit":            intProp("Maximum rows to return (databases only)"),
				"columns":          stringArrayProp("Column names to project"),
				"include_formulas": boolProp("Return formulas instead of values"),
			}),
			handler: s.handleGetWorksheetData,
		},
		{
			name:        "set_worksheet_data",
			description: "Write a 2-D block of data to a worksheet, structured table, or database table",
			schema: objectSchema([]string{"file", "sheet_name", "data"}, map[string]*jsonschema.Schema{
				"file":           fileProp,
				"sheet_name":     sheetProp,
				"data":           gridProp("Rows of values; all rows the same length"),
				"start_cell":     stringProp("Top-left destination cell (default A1)"),
				"table_name":     stringProp("Structured table to write into"),
				"clear_existing": boolProp("Clear the sheet's used range first"),
				"columns":        stringArrayProp("Column names the values map onto"),
				"mode":           enumProp("Write mode", "append", "replace"),
			}),
			handler: s.handleSetWorksheetData,
		},
		{
			name:        "list_tables",
			description: "List structured tables on a sheet or the whole workbook",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"sheet_name": stringProp("Restrict to one worksheet"),
			}),
			handler: s.handleListTables,
		},
		{
			name:        "create_table",
			description: "Convert a range into a named structured table",
			schema: objectSchema([]string{"file", "sheet_name", "range", "table_name"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"sheet_name":  sheetProp,
				"range":       stringProp("Range to convert, like 'A1:D10'"),
				"table_name":  stringProp("Name for the new table"),
				"has_headers": boolProp("First row is a header row (default true)"),
				"style":       stringProp("Table style name (default TableStyleMedium2)"),
			}),
			handler: s.handleCreateTable,
		},
		{
			name:        "insert_rows",
			description: "Insert rows into a worksheet or structured table",
			schema: objectSchema([]string{"file", "sheet_name", "position"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"sheet_name": sheetProp,
				"position":   intProp("1-based row position to insert at"),
				"count":      intProp("Number of rows (default 1)"),
				"table_name": stringProp("Insert into this structured table instead of the sheet"),
			}),
			handler: s.handleInsertRows,
		},
		{
			name:        "delete_rows",
			description: "Delete rows from a worksheet or structured table",
			schema: objectSchema([]string{"file", "sheet_name", "start_row"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"sheet_name": sheetProp,
				"start_row":  intProp("First row to delete (1-based)"),
				"end_row":    intProp("Last row to delete (defaults to start_row)"),
				"table_name": stringProp("Delete from this structured table instead of the sheet"),
			}),
			handler: s.handleDeleteRows,
		},
		{
			name:        "insert_columns",
			description: "Insert columns into a worksheet or structured table",
			schema: objectSchema([]string{"file", "sheet_name", "position"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"sheet_name":  sheetProp,
				"position":    stringProp("Column position as a number or letter"),
				"count":       intProp("Number of columns (default 1)"),
				"table_name":  stringProp("Insert into this structured table instead of the sheet"),
				"header_name": stringProp("Header for the new table column"),
			}),
			handler: s.handleInsertColumns,
		},
		{
			name:        "delete_columns",
			description: "Delete a column addressed by number, letter, or table column name",
			schema: objectSchema([]string{"file", "sheet_name", "column"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"sheet_name": sheetProp,
				"column":     stringProp("Column number, letter, or (for tables) header name"),
				"table_name": stringProp("Delete from this structured table instead of the sheet"),
			}),
			handler: s.handleDeleteColumns,
		},
	}
}

type getDataArgs struct {
	File            string   `json:"file"`
	SheetName       string   `json:"sheet_name"`
	Range           string   `json:"range"`
	TableName       string   `json:"table_name"`
	SQLQuery        string   `json:"sql_query"`
	Where           string   `json:"where"`
	OrderBy         string   `json:"order_by"`
	Limit           int      `json:"limit"`
	Columns         []string `json:"columns"`
	IncludeFormulas bool     `json:"include_formulas"`
}

func (s *Server) handleGetWorksheetData(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[getDataArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, true, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if sess.Family == vbaproject.FamilyDatabase {
		result, err := bridge.ReadDatabaseTable(sess, args.SheetName, args.SQLQuery,
			args.Where, args.OrderBy, args.Limit, args.Columns)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(map[string]any{
			"sql":     result.SQL,
			"headers": result.Headers,
			"rows":    result.Rows,
		})
	}

	var data *bridge.RangeData
	if args.TableName != "" {
		data, err = bridge.ReadTable(sess, args.SheetName, args.TableName, args.Columns)
	} else {
		data, err = bridge.ReadRange(sess, args.SheetName, args.Range, args.IncludeFormulas)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(data)
}

func jsonResult(v any) (*sdk.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(string(raw)), nil
}

type setDataArgs struct {
	File          string   `json:"file"`
	SheetName     string   `json:"sheet_name"`
	Data          [][]any  `json:"data"`
	StartCell     string   `json:"start_cell"`
	TableName     string   `json:"table_name"`
	ClearExisting bool     `json:"clear_existing"`
	Columns       []string `json:"columns"`
	Mode          string   `json:"mode"`
}

func (s *Server) handleSetWorksheetData(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[setDataArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if sess.Family == vbaproject.FamilyDatabase {
		written, err := bridge.WriteDatabaseTable(sess, args.SheetName, args.Columns, args.Data, args.Mode)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("**Data Written**\n\nTable: %s\nRows written: %d",
			args.SheetName, written)), nil
	}

	if args.TableName != "" {
		written, err := bridge.WriteTable(sess, args.SheetName, args.TableName, args.Data, args.Mode, args.Columns)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("**Data Written**\n\nTable: %s\nRows written: %d",
			args.TableName, written)), nil
	}

	cells, err := bridge.WriteRange(sess, args.SheetName, args.Data, args.StartCell, args.ClearExisting)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("**Data Written**\n\nSheet: %s\nCells written: %d",
		args.SheetName, cells)), nil
}

type listTablesArgs struct {
	File      string `json:"file"`
	SheetName string `json:"sheet_name"`
}

func (s *Server) handleListTables(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[listTablesArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, true, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	tables, err := bridge.ListTables(sess, args.SheetName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(tables) == 0 {
		return textResult(fmt.Sprintf("No structured tables in %s", filepath.Base(args.File))), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Tables in %s**\n\n", filepath.Base(args.File))
	for _, t := range tables {
		fmt.Fprintf(&sb, "- **%s** on %s (%s): %d rows, columns: %s\n",
			t.Name, t.Sheet, t.Address, t.RowCount, strings.Join(t.Columns, ", "))
	}
	return textResult(sb.String()), nil
}

type createTableArgs struct {
	File       string `json:"file"`
	SheetName  string `json:"sheet_name"`
	Range      string `json:"range"`
	TableName  string `json:"table_name"`
	HasHeaders *bool  `json:"has_headers"`
	Style      string `json:"style"`
}

func (s *Server) handleCreateTable(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[createTableArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	hasHeaders := args.HasHeaders == nil || *args.HasHeaders
	if err := bridge.CreateTable(sess, args.SheetName, args.Range, args.TableName, hasHeaders, args.Style); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("**Table Created**\n\nName: %s\nSheet: %s\nRange: %s",
		args.TableName, args.SheetName, args.Range)), nil
}

type insertRowsArgs struct {
	File      string `json:"file"`
	SheetName string `json:"sheet_name"`
	Position  int    `json:"position"`
	Count     int    `json:"count"`
	TableName string `json:"table_name"`
}

func (s *Server) handleInsertRows(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[insertRowsArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.InsertRows(sess, args.SheetName, args.Position, args.Count, args.TableName); err != nil {
		return errorResult(err), nil
	}
	count := args.Count
	if count < 1 {
		count = 1
	}
	return textResult(fmt.Sprintf("Inserted %d row(s) at position %d on %s",
		count, args.Position, args.SheetName)), nil
}

type deleteRowsArgs struct {
	File      string `json:"file"`
	SheetName string `json:"sheet_name"`
	StartRow  int    `json:"start_row"`
	EndRow    int    `json:"end_row"`
	TableName string `json:"table_name"`
}

func (s *Server) handleDeleteRows(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[deleteRowsArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.DeleteRows(sess, args.SheetName, args.StartRow, args.EndRow, args.TableName); err != nil {
		return errorResult(err), nil
	}
	end := args.EndRow
	if end < args.StartRow {
		end = args.StartRow
	}
	return textResult(fmt.Sprintf("Deleted rows %d-%d on %s", args.StartRow, end, args.SheetName)), nil
}

type insertColumnsArgs struct {
	File       string `json:"file"`
	SheetName  string `json:"sheet_name"`
	Position   string `json:"position"`
	Count      int    `json:"count"`
	TableName  string `json:"table_name"`
	HeaderName string `json:"header_name"`
}

func (s *Server) handleInsertColumns(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[insertColumnsArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.InsertColumns(sess, args.SheetName, args.Position, args.Count,
		args.TableName, args.HeaderName); err != nil {
		return errorResult(err), nil
	}
	count := args.Count
	if count < 1 {
		count = 1
	}
	return textResult(fmt.Sprintf("Inserted %d column(s) at %s on %s",
		count, args.Position, args.SheetName)), nil
}

type deleteColumnsArgs struct {
	File      string `json:"file"`
	SheetName string `json:"sheet_name"`
	Column    string `json:"column"`
	TableName string `json:"table_name"`
}

func (s *Server) handleDeleteColumns(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[deleteColumnsArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.DeleteColumns(sess, args.SheetName, args.Column, args.TableName); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Deleted column %s on %s", args.Column, args.SheetName)), nil
}
