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

// Package bridge drives live host sessions: tabular data I/O and
// structured tables on spreadsheets, macro enumeration and invocation,
// and saved and ad-hoc queries on databases.
package bridge

import (
	"fmt"

	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// MaxCells caps range reads and writes to keep host marshalling bounded.
const MaxCells = 1_000_000

// workbook asserts the session's document into the spreadsheet surface.
func workbook(sess *session.Session) (host.Workbook, error) {
	if sess.Family != vbaproject.FamilySpreadsheet {
		return nil, fmt.Errorf("%s does not support worksheet operations", sess.Family)
	}
	wb, ok := sess.Document().(host.Workbook)
	if !ok {
		return nil, fmt.Errorf("host binding does not expose worksheets")
	}
	return wb, nil
}

// spreadsheetHost asserts the session's host into the calculation surface.
func spreadsheetHost(sess *session.Session) (host.Spreadsheet, error) {
	sh, ok := sess.Host().(host.Spreadsheet)
	if !ok {
		return nil, fmt.Errorf("host binding does not expose calculation control")
	}
	return sh, nil
}

// database asserts the session's document into the database surface.
func database(sess *session.Session) (host.Database, error) {
	if sess.Family != vbaproject.FamilyDatabase {
		return nil, fmt.Errorf("%s does not support database operations", sess.Family)
	}
	db, ok := sess.Document().(host.Database)
	if !ok {
		return nil, fmt.Errorf("host binding does not expose the database surface")
	}
	return db, nil
}

// sheetOrCreate resolves a worksheet, adding it when absent.
func sheetOrCreate(wb host.Workbook, name string) (host.Worksheet, error) {
	if ws, err := wb.Sheet(name); err == nil {
		return ws, nil
	}
	return wb.AddSheet(name)
}
