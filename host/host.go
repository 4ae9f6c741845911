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

// Package host defines the narrow capability surface the core requires
// from a live Office application, and provides the platform binding that
// implements it. Everything above this package is written against these
// interfaces; only the Windows binding touches COM.
package host

import (
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// Automation-security levels (msoAutomationSecurity*).
const (
	SecurityLow          = 1
	SecurityByUI         = 2
	SecurityForceDisable = 3
)

// Calculation modes (xlCalculation*).
const (
	CalculationAutomatic = -4105
	CalculationManual    = -4135
)

// Factory creates a host application instance for a container family.
// On platforms without the native automation facility it returns
// vbaerr.ErrUnsupportedPlatform.
type Factory func(family vbaproject.Family) (Host, error)

// Host is a running host application (spreadsheet, word processor, or
// database engine).
type Host interface {
	// Family identifies which application this host is.
	Family() vbaproject.Family

	// Name reads the application name; it doubles as the cheap liveness
	// probe attribute.
	Name() (string, error)

	// SetVisible and SetDisplayAlerts are best-effort: some environments
	// forbid them, and callers tolerate the error.
	SetVisible(visible bool) error
	SetDisplayAlerts(show bool) error

	// AutomationSecurity reads and writes the host's macro-security level
	// for the run-macro bracket.
	AutomationSecurity() (int, error)
	SetAutomationSecurity(level int) error

	// Open opens a container. For the database family the host itself
	// becomes the document; exclusive access derives from !readOnly.
	Open(path string, readOnly bool) (Document, error)

	// Run invokes a named macro with positional arguments.
	Run(macro string, args ...any) (any, error)

	// Quit shuts the application down.
	Quit() error

	// Release drops the host-side object reference. It is the last call
	// in the teardown order and also uninitializes the platform binding.
	Release()
}

// Document is an open container inside a host.
type Document interface {
	// Name reads the document name; part of the liveness probe for the
	// spreadsheet and word families.
	Name() (string, error)

	Save() error
	Close(saveChanges bool) error

	// Project exposes the VBA project. Hosts configured to distrust
	// project-model access return a PermissionDeniedError here.
	Project() (Project, error)

	// Release drops the document reference.
	Release()
}

// Project is the VBA project handle of an open document.
type Project interface {
	Components() ([]Component, error)
	AddStandardModule(name string) (Component, error)
	RemoveComponent(c Component) error
	Release()
}

// Component is one module inside a VBA project.
type Component interface {
	Name() (string, error)
	Code() CodeModule
}

// CodeModule is a component's line-addressed code container. Lines are
// 1-based, matching the host's convention.
type CodeModule interface {
	CountOfLines() (int, error)
	Lines(start, count int) (string, error)
	DeleteLines(start, count int) error
	AddFromString(code string) error

	// ProcOfLine asks the host which procedure a line belongs to, forcing
	// the host's parser over that line.
	ProcOfLine(line int) (string, error)
}

// Spreadsheet is the capability extension a spreadsheet host exposes.
// Obtain it by type-asserting a Host of the spreadsheet family.
type Spreadsheet interface {
	Calculation() (int, error)
	SetCalculation(mode int) error
	Calculate() error
}

// Workbook is the capability extension of a spreadsheet document.
type Workbook interface {
	SheetNames() ([]string, error)
	Sheet(name string) (Worksheet, error)
	AddSheet(name string) (Worksheet, error)
}

// Worksheet is one sheet of an open workbook.
type Worksheet interface {
	Name() string
	UsedRange() (Range, error)
	Range(address string) (Range, error)
	Tables() ([]Table, error)
	Table(name string) (Table, error)
	AddTable(address, name string, hasHeaders bool, style string) (Table, error)
	InsertRows(position, count int) error
	DeleteRows(start, end int) error
	InsertColumns(position, count int) error
	DeleteColumns(position, count int) error
}

// Range is a rectangular region of cells. Values always surface as a
// normalized 2-D grid regardless of the host's return shape.
type Range interface {
	Address() string
	Rows() int
	Cols() int
	Values() ([][]any, error)
	Formulas() ([][]any, error)
	SetValues(data [][]any) error
	Clear() error
}

// Table is a structured table (list object) on a worksheet.
type Table interface {
	Name() string
	HeaderValues() ([]any, error)
	BodyValues() ([][]any, error)
	ColumnNames() ([]string, error)
	RowCount() (int, error)
	AppendRows(rows [][]any) error
	ReplaceBody(rows [][]any) error
	InsertRow(position int) error
	DeleteRows(start, count int) error
	InsertColumn(position int, header string) error
	DeleteColumnByName(name string) error
	DeleteColumnByIndex(index int) error
	RangeAddress() (string, error)
}

// FieldInfo describes one field of a database table.
type FieldInfo struct {
	Name          string
	TypeName      string
	Size          int
	AutoIncrement bool
}

// QueryInfo describes one saved query.
type QueryInfo struct {
	Name       string
	TypeName   string
	SQLPreview string
}

// Database is the capability extension of a database-family document.
type Database interface {
	TableNames() ([]string, error)
	TableFields(table string) ([]FieldInfo, error)
	TableRecordCount(table string) (int, bool)
	Queries() ([]QueryInfo, error)
	QuerySQL(name string) (string, error)

	// Execute runs an action statement and returns the affected-row count.
	Execute(sql string) (int, error)

	// Select runs a selection statement, capping rows at limit when > 0.
	Select(sql string, limit int) (headers []string, rows [][]any, err error)

	FormNames() ([]string, error)
	CreateForm(name, recordSource, formType string) error
	DeleteForm(name string) error
	ExportForm(name, path string) error
	ImportForm(name, path string) error
}
