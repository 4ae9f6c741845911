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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexisTrouve/vba-mcp-server/bridge"
)

// accessTools are the database-family operations: tables, queries, forms.
func (s *Server) accessTools() []toolDef {
	fileProp := stringProp("Absolute path to the database file")

	return []toolDef{
		{
			name:        "list_access_tables",
			description: "List user tables with field metadata and record counts",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleListAccessTables,
		},
		{
			name:        "list_access_queries",
			description: "List saved queries with type and SQL preview",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleListAccessQueries,
		},
		{
			name:        "run_access_query",
			description: "Run a saved query or ad-hoc SQL; action statements report affected rows",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"query_name": stringProp("Saved query name"),
				"sql":        stringProp("Ad-hoc SQL statement"),
				"limit":      intProp("Maximum rows for selection queries"),
			}),
			handler: s.handleRunAccessQuery,
		},
		{
			name:        "list_access_forms",
			description: "List the database's forms",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleListAccessForms,
		},
		{
			name:        "create_access_form",
			description: "Create a form, optionally bound to a record source",
			schema: objectSchema([]string{"file", "form_name"}, map[string]*jsonschema.Schema{
				"file":          fileProp,
				"form_name":     stringProp("Name for the new form"),
				"record_source": stringProp("Table or query the form binds to"),
				"form_type":     enumProp("Form layout", "single", "continuous"),
			}),
			handler: s.handleCreateAccessForm,
		},
		{
			name:        "delete_access_form",
			description: "Delete a form, backing the file up first by default",
			schema: objectSchema([]string{"file", "form_name"}, map[string]*jsonschema.Schema{
				"file":         fileProp,
				"form_name":    stringProp("Form to delete"),
				"backup_first": boolProp("Create a file backup before deleting (default true)"),
			}),
			handler: s.handleDeleteAccessForm,
		},
		{
			name:        "export_form_definition",
			description: "Export a form's definition to a text file produced by the host",
			schema: objectSchema([]string{"file", "form_name"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"form_name":   stringProp("Form to export"),
				"output_path": stringProp("Destination path (defaults next to the database)"),
			}),
			handler: s.handleExportFormDefinition,
		},
		{
			name:        "import_form_definition",
			description: "Import a form definition from a text file",
			schema: objectSchema([]string{"file", "form_name", "definition_path"}, map[string]*jsonschema.Schema{
				"file":            fileProp,
				"form_name":       stringProp("Name for the imported form"),
				"definition_path": stringProp("Definition text file to load"),
				"overwrite":       boolProp("Replace an existing form of the same name"),
			}),
			handler: s.handleImportFormDefinition,
		},
	}
}

func (s *Server) handleListAccessTables(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileOnlyArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	tables, err := bridge.ListAccessTables(sess)
	if err != nil {
		return errorResult(err), nil
	}
	if len(tables) == 0 {
		return textResult(fmt.Sprintf("No user tables in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Tables in %s**\n\n", filepath.Base(args.File))
	for _, t := range tables {
		if t.CountKnown {
			fmt.Fprintf(&sb, "### %s (%d records)\n", t.Name, t.RecordCount)
		} else {
			fmt.Fprintf(&sb, "### %s\n", t.Name)
		}
		for _, f := range t.Fields {
			auto := ""
			if f.AutoIncrement {
				auto = " [auto-increment]"
			}
			if f.Size > 0 {
				fmt.Fprintf(&sb, "- %s: %s(%d)%s\n", f.Name, f.TypeName, f.Size, auto)
			} else {
				fmt.Fprintf(&sb, "- %s: %s%s\n", f.Name, f.TypeName, auto)
			}
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleListAccessQueries(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileOnlyArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	queries, err := bridge.ListQueries(sess)
	if err != nil {
		return errorResult(err), nil
	}
	if len(queries) == 0 {
		return textResult(fmt.Sprintf("No saved queries in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Queries in %s**\n\n", filepath.Base(args.File))
	for _, q := range queries {
		fmt.Fprintf(&sb, "- **%s** (%s): %s\n", q.Name, q.TypeName, q.SQLPreview)
	}
	return textResult(sb.String()), nil
}

type runQueryArgs struct {
	File      string `json:"file"`
	QueryName string `json:"query_name"`
	SQL       string `json:"sql"`
	Limit     int    `json:"limit"`
}

func (s *Server) handleRunAccessQuery(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[runQueryArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	result, err := bridge.RunQuery(sess, args.QueryName, args.SQL, args.Limit)
	if err != nil {
		return errorResult(err), nil
	}
	if result.Action {
		return textResult(fmt.Sprintf("**Query Executed**\n\nSQL: %s\nRows affected: %d",
			result.SQL, result.RowsAffected)), nil
	}
	return jsonResult(map[string]any{
		"sql":     result.SQL,
		"headers": result.Headers,
		"rows":    result.Rows,
	})
}

type formArgs struct {
	File           string `json:"file"`
	FormName       string `json:"form_name"`
	RecordSource   string `json:"record_source"`
	FormType       string `json:"form_type"`
	BackupFirst    *bool  `json:"backup_first"`
	OutputPath     string `json:"output_path"`
	DefinitionPath string `json:"definition_path"`
	Overwrite      bool   `json:"overwrite"`
}

func (s *Server) handleListAccessForms(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileOnlyArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	forms, err := bridge.ListForms(sess)
	if err != nil {
		return errorResult(err), nil
	}
	if len(forms) == 0 {
		return textResult(fmt.Sprintf("No forms in %s", filepath.Base(args.File))), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Forms in %s**\n\n", filepath.Base(args.File))
	for _, f := range forms {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleCreateAccessForm(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[formArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.CreateForm(sess, args.FormName, args.RecordSource, args.FormType); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("**Form Created**\n\nName: %s\nRecord source: %s",
		args.FormName, orDash(args.RecordSource))), nil
}

func (s *Server) handleDeleteAccessForm(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[formArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	backupFirst := args.BackupFirst == nil || *args.BackupFirst
	backupNote := ""
	if backupFirst {
		if _, path, err := s.backups.Create(args.File); err == nil {
			backupNote = "\nBackup: " + filepath.Base(path)
		}
	}

	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	if err := bridge.DeleteForm(sess, args.FormName); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Form '%s' deleted.%s", args.FormName, backupNote)), nil
}

func (s *Server) handleExportFormDefinition(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[formArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	output := args.OutputPath
	if output == "" {
		output = filepath.Join(filepath.Dir(sess.Path), args.FormName+".form.txt")
	}
	if err := bridge.ExportForm(sess, args.FormName, output); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("**Form Exported**\n\nForm: %s\nDefinition: %s",
		args.FormName, output)), nil
}

func (s *Server) handleImportFormDefinition(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[formArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	forms, err := bridge.ListForms(sess)
	if err != nil {
		return errorResult(err), nil
	}
	exists := false
	for _, f := range forms {
		if strings.EqualFold(f, args.FormName) {
			exists = true
			break
		}
	}
	if exists {
		if !args.Overwrite {
			return errorResult(fmt.Errorf("form %q already exists (pass overwrite to replace it)", args.FormName)), nil
		}
		if err := bridge.DeleteForm(sess, args.FormName); err != nil {
			return errorResult(err), nil
		}
	}
	if err := bridge.ImportForm(sess, args.FormName, args.DefinitionPath); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("**Form Imported**\n\nForm: %s\nFrom: %s",
		args.FormName, args.DefinitionPath)), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
