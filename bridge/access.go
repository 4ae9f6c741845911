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
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// sqlPreviewLimit caps the SQL excerpt shown in query listings.
const sqlPreviewLimit = 150

// actionKeywords classify a statement as an action query: one that
// mutates data or schema and returns an affected-row count.
var actionKeywords = map[string]bool{
	"DELETE":   true,
	"UPDATE":   true,
	"INSERT":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
}

// IsActionSQL reports whether the statement's leading keyword marks an
// action query.
func IsActionSQL(sql string) bool {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return false
	}
	return actionKeywords[strings.ToUpper(fields[0])]
}

// QueryResult is either a selection result (headers and rows) or an
// action result (affected count).
type QueryResult struct {
	SQL          string   `json:"sql"`
	Action       bool     `json:"action"`
	RowsAffected int      `json:"rows_affected,omitempty"`
	Headers      []string `json:"headers,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
}

// RunQuery executes a saved query by name or an ad-hoc SQL statement,
// branching on the statement class.
func RunQuery(sess *session.Session, queryName, sql string, limit int) (*QueryResult, error) {
	db, err := database(sess)
	if err != nil {
		return nil, err
	}

	if sql == "" {
		if queryName == "" {
			return nil, fmt.Errorf("either query_name or sql is required")
		}
		if sql, err = db.QuerySQL(queryName); err != nil {
			return nil, err
		}
	}

	if IsActionSQL(sql) {
		affected, err := db.Execute(sql)
		if err != nil {
			return nil, err
		}
		return &QueryResult{SQL: sql, Action: true, RowsAffected: affected}, nil
	}

	headers, rows, err := db.Select(sql, limit)
	if err != nil {
		return nil, err
	}
	return &QueryResult{SQL: sql, Headers: headers, Rows: rows}, nil
}

// ListQueries lists saved queries, hiding system entries (names starting
// with "~").
func ListQueries(sess *session.Session) ([]host.QueryInfo, error) {
	db, err := database(sess)
	if err != nil {
		return nil, err
	}
	all, err := db.Queries()
	if err != nil {
		return nil, err
	}
	out := make([]host.QueryInfo, 0, len(all))
	for _, q := range all {
		if strings.HasPrefix(q.Name, "~") {
			continue
		}
		if len(q.SQLPreview) > sqlPreviewLimit {
			q.SQLPreview = q.SQLPreview[:sqlPreviewLimit] + "..."
		}
		out = append(out, q)
	}
	return out, nil
}

// AccessTableInfo describes one user table.
type AccessTableInfo struct {
	Name        string           `json:"name"`
	Fields      []host.FieldInfo `json:"fields"`
	RecordCount int              `json:"record_count"`
	CountKnown  bool             `json:"-"`
}

// ListAccessTables lists user tables with field metadata, skipping system
// tables (MSys* and ~ prefixes). Record counts are best-effort.
func ListAccessTables(sess *session.Session) ([]AccessTableInfo, error) {
	db, err := database(sess)
	if err != nil {
		return nil, err
	}
	names, err := db.TableNames()
	if err != nil {
		return nil, err
	}

	var out []AccessTableInfo
	for _, name := range names {
		if strings.HasPrefix(name, "MSys") || strings.HasPrefix(name, "~") {
			continue
		}
		info := AccessTableInfo{Name: name}
		if fields, err := db.TableFields(name); err == nil {
			info.Fields = fields
		}
		if count, ok := db.TableRecordCount(name); ok {
			info.RecordCount = count
			info.CountKnown = true
		}
		out = append(out, info)
	}
	return out, nil
}

// ReadDatabaseTable reads a table or runs a selection statement with
// optional projection, filter, ordering, and row limit.
func ReadDatabaseTable(sess *session.Session, tableName, sql, where, orderBy string, limit int, columns []string) (*QueryResult, error) {
	db, err := database(sess)
	if err != nil {
		return nil, err
	}
	if sql == "" {
		if tableName == "" {
			return nil, fmt.Errorf("either a table name or sql is required")
		}
		sql = buildSelect(tableName, where, orderBy, columns)
	}
	if IsActionSQL(sql) {
		return nil, &vbaerr.SQLError{Query: sql, Reason: "read operations accept selection statements only"}
	}
	headers, rows, err := db.Select(sql, limit)
	if err != nil {
		return nil, err
	}
	return &QueryResult{SQL: sql, Headers: headers, Rows: rows}, nil
}

func buildSelect(table, where, orderBy string, columns []string) string {
	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = "[" + c + "]"
		}
		cols = strings.Join(quoted, ", ")
	}
	sql := fmt.Sprintf("SELECT %s FROM [%s]", cols, table)
	if where != "" {
		sql += " WHERE " + where
	}
	if orderBy != "" {
		sql += " ORDER BY " + orderBy
	}
	return sql
}

// WriteDatabaseTable appends rows to a table, or replaces its contents
// when mode is "replace". Each row maps positionally onto columns.
func WriteDatabaseTable(sess *session.Session, tableName string, columns []string, rows [][]any, mode string) (int, error) {
	db, err := database(sess)
	if err != nil {
		return 0, err
	}
	if tableName == "" {
		return 0, fmt.Errorf("table name is required")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("columns are required for database writes")
	}

	switch mode {
	case "", "append":
	case "replace":
		if _, err := db.Execute(fmt.Sprintf("DELETE FROM [%s]", tableName)); err != nil {
			return 0, err
		}
	default:
		return 0, fmt.Errorf("unknown write mode %q (use append or replace)", mode)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = "[" + c + "]"
	}

	written := 0
	for _, row := range rows {
		if len(row) != len(columns) {
			return written, fmt.Errorf("row has %d values, expected %d", len(row), len(columns))
		}
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = sqlLiteral(v)
		}
		sql := fmt.Sprintf("INSERT INTO [%s] (%s) VALUES (%s)",
			tableName, strings.Join(quoted, ", "), strings.Join(values, ", "))
		if _, err := db.Execute(sql); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// sqlLiteral encodes a Go value as a SQL literal, doubling quotes inside
// strings.
func sqlLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", val), "'", "''") + "'"
	}
}

// ListForms lists the database's forms.
func ListForms(sess *session.Session) ([]string, error) {
	db, err := database(sess)
	if err != nil {
		return nil, err
	}
	return db.FormNames()
}

// CreateForm creates a form bound to an optional record source.
func CreateForm(sess *session.Session, name, recordSource, formType string) error {
	db, err := database(sess)
	if err != nil {
		return err
	}
	return db.CreateForm(name, recordSource, formType)
}

// DeleteForm removes a form.
func DeleteForm(sess *session.Session, name string) error {
	db, err := database(sess)
	if err != nil {
		return err
	}
	return db.DeleteForm(name)
}

// ExportForm writes a form's definition as text produced by the host.
func ExportForm(sess *session.Session, name, path string) error {
	db, err := database(sess)
	if err != nil {
		return err
	}
	return db.ExportForm(name, path)
}

// ImportForm loads a form definition text file into the database.
func ImportForm(sess *session.Session, name, path string) error {
	db, err := database(sess)
	if err != nil {
		return err
	}
	return db.ImportForm(name, path)
}
