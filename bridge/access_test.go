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
package bridge_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/bridge"
	"github.com/AlexisTrouve/vba-mcp-server/host"
)

func TestIsActionSQL(t *testing.T) {
	actions := []string{
		"DELETE FROM t",
		"update t set x = 1",
		"  Insert Into t Values (1)",
		"DROP TABLE t",
		"alter table t add c int",
		"CREATE TABLE t (c int)",
		"TRUNCATE TABLE t",
	}
	for _, sql := range actions {
		assert.True(t, bridge.IsActionSQL(sql), sql)
	}
	selections := []string{
		"SELECT * FROM t",
		"select count(*) from t",
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"",
	}
	for _, sql := range selections {
		assert.False(t, bridge.IsActionSQL(sql), sql)
	}
}

func TestRunQuerySelection(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	f.world.File(sess.Path).DBTables = map[string]*host.MockDBTable{
		"Customers": {
			Headers: []string{"ID", "Name"},
			Rows:    [][]any{{1, "Ada"}, {2, "Grace"}, {3, "Edsger"}},
		},
	}

	result, err := bridge.RunQuery(sess, "", "SELECT * FROM [Customers]", 2)
	require.NoError(t, err)
	assert.False(t, result.Action)
	assert.Equal(t, []string{"ID", "Name"}, result.Headers)
	assert.Len(t, result.Rows, 2, "row limit applies")
}

func TestRunQueryActionReportsAffectedRows(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	f.world.File(sess.Path).ExecAffected = 7

	result, err := bridge.RunQuery(sess, "", "DELETE FROM [Old]", 0)
	require.NoError(t, err)
	assert.True(t, result.Action)
	assert.Equal(t, 7, result.RowsAffected)
	assert.Equal(t, []string{"DELETE FROM [Old]"}, f.world.File(sess.Path).ExecLog)
}

func TestRunQueryByName(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	state := f.world.File(sess.Path)
	state.DBQueries = []host.QueryInfo{
		{Name: "ActiveCustomers", TypeName: "select", SQLPreview: "SELECT * FROM [Customers]"},
	}
	state.DBTables = map[string]*host.MockDBTable{
		"Customers": {Headers: []string{"ID"}, Rows: [][]any{{1}}},
	}

	result, err := bridge.RunQuery(sess, "ActiveCustomers", "", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [Customers]", result.SQL)

	_, err = bridge.RunQuery(sess, "", "", 0)
	assert.Error(t, err, "either query_name or sql is required")
}

func TestListQueriesSkipsSystemEntries(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	f.world.File(sess.Path).DBQueries = []host.QueryInfo{
		{Name: "~sq_chidden", SQLPreview: "SELECT 1"},
		{Name: "Report", TypeName: "select", SQLPreview: strings.Repeat("SELECT x FROM y ", 20)},
	}

	queries, err := bridge.ListQueries(sess)
	require.NoError(t, err)
	require.Len(t, queries, 1)
	assert.Equal(t, "Report", queries[0].Name)
	assert.LessOrEqual(t, len(queries[0].SQLPreview), 153, "preview capped at 150 chars plus ellipsis")
}

func TestListAccessTablesSkipsSystemTables(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	f.world.File(sess.Path).DBTables = map[string]*host.MockDBTable{
		"MSysObjects": {},
		"~TMPCLP":     {},
		"Customers": {
			Fields: []host.FieldInfo{
				{Name: "ID", TypeName: "Long", AutoIncrement: true},
				{Name: "Name", TypeName: "Text", Size: 255},
			},
			Rows: [][]any{{1, "Ada"}},
		},
	}

	tables, err := bridge.ListAccessTables(sess)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Customers", tables[0].Name)
	assert.True(t, tables[0].CountKnown)
	assert.Equal(t, 1, tables[0].RecordCount)
	assert.True(t, tables[0].Fields[0].AutoIncrement)
}

func TestReadDatabaseTableBuildsSQL(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	state := f.world.File(sess.Path)
	state.DBTables = map[string]*host.MockDBTable{
		"Orders": {Headers: []string{"ID", "Total"}, Rows: [][]any{{1, 10.0}}},
	}

	result, err := bridge.ReadDatabaseTable(sess, "Orders", "", "Total > 5", "Total DESC", 10, []string{"ID", "Total"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT [ID], [Total] FROM [Orders] WHERE Total > 5 ORDER BY Total DESC", result.SQL)

	_, err = bridge.ReadDatabaseTable(sess, "", "DELETE FROM [Orders]", "", "", 0, nil)
	assert.Error(t, err, "action statements are rejected on the read path")
}

func TestWriteDatabaseTable(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	state := f.world.File(sess.Path)
	state.DBTables = map[string]*host.MockDBTable{"People": {}}

	n, err := bridge.WriteDatabaseTable(sess, "People",
		[]string{"Name", "Age"},
		[][]any{{"O'Brien", 42}, {"Ada", nil}},
		"append")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, state.ExecLog, 2)
	assert.Equal(t, "INSERT INTO [People] ([Name], [Age]) VALUES ('O''Brien', 42)", state.ExecLog[0])
	assert.Equal(t, "INSERT INTO [People] ([Name], [Age]) VALUES ('Ada', NULL)", state.ExecLog[1])

	state.ExecLog = nil
	_, err = bridge.WriteDatabaseTable(sess, "People", []string{"Name"}, [][]any{{"x"}}, "replace")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM [People]", state.ExecLog[0])
}

func TestFormLifecycle(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")

	require.NoError(t, bridge.CreateForm(sess, "CustomerForm", "Customers", "single"))
	forms, err := bridge.ListForms(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"CustomerForm"}, forms)

	exportPath := filepath.Join(t.TempDir(), "CustomerForm.form.txt")
	require.NoError(t, bridge.ExportForm(sess, "CustomerForm", exportPath))
	require.NoError(t, bridge.DeleteForm(sess, "CustomerForm"))
	require.NoError(t, bridge.ImportForm(sess, "CustomerForm", exportPath))

	forms, err = bridge.ListForms(sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"CustomerForm"}, forms)

	assert.Error(t, bridge.DeleteForm(sess, "NoSuchForm"))
}

func TestDatabaseOperationsRejectSpreadsheetSessions(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	_, err := bridge.RunQuery(sess, "", "SELECT 1", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support database operations")
}
