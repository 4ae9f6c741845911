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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/bridge"
	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/internal/platform"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

func TestMain(m *testing.M) {
	logging.DisableForTests()
	os.Exit(m.Run())
}

type fixture struct {
	world   *host.MockWorld
	manager *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{world: host.NewMockWorld()}
	f.manager = session.NewManager(session.Options{
		Factory:   f.world.Factory(),
		Clock:     platform.NewMockTimeProvider(time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local)),
		LockProbe: func(string) bool { return false },
	})
	t.Cleanup(f.manager.Shutdown)
	return f
}

func (f *fixture) open(t *testing.T, name string) *session.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("container"), 0o644))
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	sess, err := f.manager.GetOrCreate(resolved, false, false)
	require.NoError(t, err)
	return sess
}

func seedSheet(f *fixture, sess *session.Session, name string, grid [][]any) *host.MockSheet {
	sheet := &host.MockSheet{Grid: grid, Tables: map[string]*host.MockDataTable{}}
	f.world.File(sess.Path).Sheets[name] = sheet
	return sheet
}

func TestReadRangeUsedRange(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", [][]any{
		{"Name", "Total"},
		{"Widget", 12},
	})

	data, err := bridge.ReadRange(sess, "Sheet1", "", false)
	require.NoError(t, err)
	assert.Equal(t, "A1:B2", data.Address)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, "Widget", data.Rows[1][0])
}

func TestReadRangeExplicitAddress(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", [][]any{
		{"a", "b", "c"},
		{1, 2, 3},
	})

	data, err := bridge.ReadRange(sess, "Sheet1", "B1:C2", false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"b", "c"}, {2, 3}}, data.Rows)
}

func TestReadRangeMissingSheet(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	_, err := bridge.ReadRange(sess, "Nope", "", false)
	assert.Error(t, err)
}

func TestWriteRangeRoundTrip(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", nil)

	cells, err := bridge.WriteRange(sess, "Sheet1", [][]any{
		{"x", "y"},
		{1, 2},
	}, "B2", false)
	require.NoError(t, err)
	assert.Equal(t, 4, cells)

	data, err := bridge.ReadRange(sess, "Sheet1", "B2:C3", false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"x", "y"}, {1, 2}}, data.Rows)

	// Calculation mode was restored after the write.
	mode, err := f.world.Hosts()[0].Calculation()
	require.NoError(t, err)
	assert.Equal(t, host.CalculationAutomatic, mode)
}

func TestWriteRangeCreatesSheet(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")

	_, err := bridge.WriteRange(sess, "Fresh", [][]any{{"v"}}, "", false)
	require.NoError(t, err)

	data, err := bridge.ReadRange(sess, "Fresh", "A1", false)
	require.NoError(t, err)
	assert.Equal(t, "v", data.Rows[0][0])
}

func TestWriteRangeRejectsRaggedRows(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", nil)

	_, err := bridge.WriteRange(sess, "Sheet1", [][]any{{1, 2}, {3}}, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same length")
}

func TestWriteRangeRejectsOversizedGrid(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", nil)

	wide := make([]any, 1001)
	grid := make([][]any, 1000)
	for i := range grid {
		grid[i] = wide
	}
	_, err := bridge.WriteRange(sess, "Sheet1", grid, "", false)
	var tooLarge *vbaerr.RangeTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, 1_001_000, tooLarge.Cells)
	assert.Equal(t, bridge.MaxCells, tooLarge.Limit)
}

func TestReadTableProjection(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	sheet := seedSheet(f, sess, "Sheet1", nil)
	sheet.Tables["Budget"] = &host.MockDataTable{
		TableName: "Budget",
		Headers:   []string{"Name", "Qty", "Total"},
		Body: [][]any{
			{"Widget", 2, 12.5},
			{"Gadget", 1, 99.0},
		},
	}

	data, err := bridge.ReadTable(sess, "Sheet1", "Budget", []string{"Name", "Total"})
	require.NoError(t, err)
	assert.Equal(t, []any{"Name", "Total"}, data.Headers)
	assert.Equal(t, [][]any{{"Widget", 12.5}, {"Gadget", 99.0}}, data.Rows)

	_, err = bridge.ReadTable(sess, "Sheet1", "Budget", []string{"Missing"})
	assert.Error(t, err)
}

func TestWriteTableModes(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	sheet := seedSheet(f, sess, "Sheet1", nil)
	table := &host.MockDataTable{
		TableName: "Budget",
		Headers:   []string{"Name", "Total"},
		Body:      [][]any{{"Widget", 1}},
	}
	sheet.Tables["Budget"] = table

	n, err := bridge.WriteTable(sess, "Sheet1", "Budget", [][]any{{"Gadget", 2}}, "append", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, table.Body, 2)

	n, err = bridge.WriteTable(sess, "Sheet1", "Budget", [][]any{{"Only", 3}}, "replace", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, [][]any{{"Only", 3}}, table.Body)

	// Column-mapped write leaves unmapped columns blank.
	_, err = bridge.WriteTable(sess, "Sheet1", "Budget", [][]any{{7}}, "append", []string{"Total"})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 7}, table.Body[1])
}

func TestListTablesAcrossSheets(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	s1 := seedSheet(f, sess, "Sheet1", nil)
	s2 := seedSheet(f, sess, "Sheet2", nil)
	s1.Tables["T1"] = &host.MockDataTable{TableName: "T1", Headers: []string{"A"}}
	s2.Tables["T2"] = &host.MockDataTable{TableName: "T2", Headers: []string{"B"}}

	all, err := bridge.ListTables(sess, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := bridge.ListTables(sess, "Sheet2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "T2", one[0].Name)
}

func TestRowAndColumnOperations(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", [][]any{
		{"a", "b"},
		{"c", "d"},
	})

	require.NoError(t, bridge.InsertRows(sess, "Sheet1", 2, 1, ""))
	data, err := bridge.ReadRange(sess, "Sheet1", "A1:B3", false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "b"}, {nil, nil}, {"c", "d"}}, data.Rows)

	require.NoError(t, bridge.DeleteRows(sess, "Sheet1", 2, 2, ""))
	require.NoError(t, bridge.InsertColumns(sess, "Sheet1", "B", 1, "", ""))
	data, err = bridge.ReadRange(sess, "Sheet1", "A1:C1", false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", nil, "b"}}, data.Rows)

	require.NoError(t, bridge.DeleteColumns(sess, "Sheet1", "2", ""))
	data, err = bridge.ReadRange(sess, "Sheet1", "A1:B1", false)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"a", "b"}}, data.Rows)
}

func TestTableColumnOperationsByName(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	sheet := seedSheet(f, sess, "Sheet1", nil)
	sheet.Tables["T"] = &host.MockDataTable{
		TableName: "T",
		Headers:   []string{"Name", "Qty"},
		Body:      [][]any{{"w", 1}},
	}

	require.NoError(t, bridge.InsertColumns(sess, "Sheet1", "2", 1, "T", "Price"))
	cols, err := sheet.Tables["T"].ColumnNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Price", "Qty"}, cols)

	require.NoError(t, bridge.DeleteColumns(sess, "Sheet1", "Price", "T"))
	cols, err = sheet.Tables["T"].ColumnNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Qty"}, cols)
}

func TestCreateTable(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedSheet(f, sess, "Sheet1", [][]any{
		{"Name", "Total"},
		{"Widget", 5},
	})

	require.NoError(t, bridge.CreateTable(sess, "Sheet1", "A1:B2", "Budget", true, ""))
	tables, err := bridge.ListTables(sess, "Sheet1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "Budget", tables[0].Name)
	assert.Equal(t, []string{"Name", "Total"}, tables[0].Columns)
	assert.Equal(t, 1, tables[0].RowCount)
}

func TestWorksheetOperationsRejectDatabaseSessions(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	_, err := bridge.ReadRange(sess, "Sheet1", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support worksheet operations")
}
