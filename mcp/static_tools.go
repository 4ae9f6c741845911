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
	"github.com/spf13/viper"

	"github.com/AlexisTrouve/vba-mcp-server/analyze"
	"github.com/AlexisTrouve/vba-mcp-server/inject"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaparse"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// staticTools are the file-level operations. All but inject_vba work on the
// container file directly and need no host session; inject_vba edits the
// project through one.
func (s *Server) staticTools() []toolDef {
	fileProp := stringProp("Absolute path to the Office file")
	moduleProp := stringProp("Optional specific module name")

	return []toolDef{
		{
			name:        "extract_vba",
			description: "Extract VBA source code from an Office file (.xlsm, .xlsb, .docm, .pptm, .accdb)",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": moduleProp,
			}),
			handler: s.handleExtractVBA,
		},
		{
			name:        "list_modules",
			description: "List VBA modules in an Office file with kind and line count",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleListModules,
		},
		{
			name:        "analyze_structure",
			description: "Analyze VBA code structure: procedures, complexity, and project metrics",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": moduleProp,
			}),
			handler: s.handleAnalyzeStructure,
		},
		{
			name:        "refactor_vba",
			description: "Suggest refactorings for VBA code, ranked by severity",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": moduleProp,
				"filter":      enumProp("Rule family to apply", "all", "complexity", "naming", "structure"),
			}),
			handler: s.handleRefactorVBA,
		},
		{
			name:        "backup_vba",
			description: "Manage timestamped backups of an Office file",
			schema: objectSchema([]string{"file", "action"}, map[string]*jsonschema.Schema{
				"file":      fileProp,
				"action":    enumProp("Backup action", "create", "list", "restore", "delete"),
				"backup_id": stringProp("Backup identifier for restore and delete"),
			}),
			handler: s.handleBackupVBA,
		},
		{
			name:        "validate_vba_code",
			description: "Validate VBA code without touching any file: character set and block balance",
			schema: objectSchema([]string{"code"}, map[string]*jsonschema.Schema{
				"code":      stringProp("VBA code to validate"),
				"file_type": enumProp("Target host family", "excel", "word"),
			}),
			handler: s.handleValidateVBACode,
		},
		{
			name:        "inject_vba",
			description: "Inject VBA code into an Office file with validation, verification, and rollback",
			schema: objectSchema([]string{"file", "module_name", "code"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": stringProp("Module to update or create"),
				"code":        stringProp("VBA code to inject (ASCII only)"),
				"backup":      boolProp("Create a backup before modification (default true)"),
			}),
			handler: s.handleInjectVBA,
		},
	}
}

// openFiltered opens the container and optionally narrows to one module.
func openFiltered(file, moduleName string) ([]vbaproject.Module, error) {
	project, err := vbaproject.Open(file)
	if err != nil {
		return nil, err
	}
	if moduleName == "" {
		return project.Modules, nil
	}
	m, ok := project.Module(moduleName)
	if !ok {
		return nil, &vbaerr.ModuleNotFoundError{Name: moduleName, Available: project.ModuleNames()}
	}
	return []vbaproject.Module{*m}, nil
}

type fileModuleArgs struct {
	File       string `json:"file"`
	ModuleName string `json:"module_name"`
}

func (s *Server) handleExtractVBA(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileModuleArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	modules, err := openFiltered(args.File, args.ModuleName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(modules) == 0 {
		return textResult(fmt.Sprintf("No VBA code found in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Code: %s**\n\n", filepath.Base(args.File))
	fmt.Fprintf(&sb, "Modules: %d\n\n", len(modules))
	for _, m := range modules {
		fmt.Fprintf(&sb, "### %s (%s, %d lines)\n\n", m.Name, m.Kind, m.LineCount)
		fmt.Fprintf(&sb, "```vba\n%s\n```\n\n", strings.TrimRight(m.Code, "\r\n"))
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleListModules(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileModuleArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	project, err := vbaproject.Open(args.File)
	if err != nil {
		return errorResult(err), nil
	}
	if len(project.Modules) == 0 {
		return textResult(fmt.Sprintf("No VBA modules in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Modules: %s**\n\n", filepath.Base(args.File))
	for _, m := range project.Modules {
		fmt.Fprintf(&sb, "- **%s** (%s) - %d lines\n", m.Name, m.Kind, m.LineCount)
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleAnalyzeStructure(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileModuleArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	modules, err := openFiltered(args.File, args.ModuleName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(modules) == 0 {
		return textResult(fmt.Sprintf("No VBA code to analyze in %s", filepath.Base(args.File))), nil
	}
	report := analyze.Analyze(modules, viper.GetInt("analyze.topOffenders"))
	return textResult(formatAnalysis(filepath.Base(args.File), modules, report)), nil
}

func formatAnalysis(fileName string, modules []vbaproject.Module, report analyze.Report) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Structure Analysis: %s**\n\n", fileName)
	sb.WriteString("### Metrics\n")
	fmt.Fprintf(&sb, "- **Total Modules:** %d\n", report.Metrics.TotalModules)
	fmt.Fprintf(&sb, "- **Total Procedures:** %d\n", report.Metrics.TotalProcedures)
	fmt.Fprintf(&sb, "- **Total Lines:** %d\n", report.Metrics.TotalLines)
	fmt.Fprintf(&sb, "- **Avg Complexity:** %.1f\n", report.Metrics.MeanComplexity)
	fmt.Fprintf(&sb, "- **Max Complexity:** %d\n\n", report.Metrics.MaxComplexity)

	switch report.Metrics.Quality {
	case "good":
		sb.WriteString("Code complexity is **good** - well structured\n\n")
	case "moderate":
		sb.WriteString("Code complexity is **moderate** - consider refactoring complex procedures\n\n")
	default:
		sb.WriteString("Code complexity is **high** - refactoring recommended\n\n")
	}

	if len(report.TopOffenders) > 0 {
		sb.WriteString("### Procedures\n")
		for _, p := range report.TopOffenders {
			calls := ""
			if len(p.Calls) > 0 {
				shown := p.Calls
				if len(shown) > 3 {
					shown = shown[:3]
				}
				calls = " -> Calls: " + strings.Join(shown, ", ")
			}
			fmt.Fprintf(&sb, "- **%s.%s** (%s) Complexity: %d%s\n",
				p.Module, p.Name, p.Kind, p.Complexity, calls)
		}
		sb.WriteString("\n")
	}

	suggestions := analyze.Advise(modules, "all")
	sb.WriteString("### Recommendations\n")
	if len(suggestions) == 0 {
		sb.WriteString("No recommendations - code looks good!\n")
	} else {
		for _, sg := range suggestions {
			fmt.Fprintf(&sb, "- [%s] **%s.%s**: %s\n", sg.Severity, sg.Module, sg.Location, sg.Message)
		}
	}
	return sb.String()
}

type refactorArgs struct {
	File       string `json:"file"`
	ModuleName string `json:"module_name"`
	Filter     string `json:"filter"`
}

func (s *Server) handleRefactorVBA(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[refactorArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	if args.Filter == "" {
		args.Filter = "all"
	}
	modules, err := openFiltered(args.File, args.ModuleName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(modules) == 0 {
		return textResult(fmt.Sprintf("No VBA code to refactor in %s", filepath.Base(args.File))), nil
	}

	suggestions := analyze.Advise(modules, args.Filter)

	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Refactoring Suggestions: %s**\n\n", filepath.Base(args.File))
	fmt.Fprintf(&sb, "Analyzed: %d module(s)\n", len(modules))
	fmt.Fprintf(&sb, "Suggestions found: %d\n\n", len(suggestions))

	if len(suggestions) == 0 {
		sb.WriteString("No refactoring suggestions - code looks good!\n")
		return textResult(sb.String()), nil
	}

	bySeverity := map[analyze.Severity][]analyze.Suggestion{}
	for _, sg := range suggestions {
		bySeverity[sg.Severity] = append(bySeverity[sg.Severity], sg)
	}
	sections := []struct {
		severity analyze.Severity
		title    string
		cap      int
	}{
		{analyze.SeverityHigh, "### High Priority", 0},
		{analyze.SeverityMedium, "### Medium Priority", 0},
		{analyze.SeverityLow, "### Low Priority", 5},
	}
	for _, section := range sections {
		hits := bySeverity[section.severity]
		if len(hits) == 0 {
			continue
		}
		sb.WriteString(section.title + "\n")
		shown := hits
		if section.cap > 0 && len(shown) > section.cap {
			shown = shown[:section.cap]
		}
		for _, sg := range shown {
			fmt.Fprintf(&sb, "- **%s.%s**: %s\n", sg.Module, sg.Location, sg.Message)
		}
		if section.cap > 0 && len(hits) > section.cap {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(hits)-section.cap)
		}
		sb.WriteString("\n")
	}
	return textResult(sb.String()), nil
}

type backupArgs struct {
	File     string `json:"file"`
	Action   string `json:"action"`
	BackupID string `json:"backup_id"`
}

func (s *Server) handleBackupVBA(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[backupArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	fileName := filepath.Base(args.File)

	switch args.Action {
	case "create":
		entry, path, err := s.backups.Create(args.File)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf(
			"**Backup Created**\n\nFile: %s\nBackup ID: %s\nLocation: %s\n\nTo restore: use action='restore' with backup_id='%s'",
			fileName, entry.ID, path, entry.ID)), nil

	case "list":
		entries, err := s.backups.List(args.File)
		if err != nil {
			return errorResult(err), nil
		}
		if len(entries) == 0 {
			return textResult(fmt.Sprintf("No backups found for %s", fileName)), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "**Backups for %s**\n\nTotal: %d backup(s)\n\n", fileName, len(entries))
		for _, e := range entries {
			fmt.Fprintf(&sb, "- **%s** - %s (%d bytes)\n", e.ID, e.Created, e.OriginalSize)
		}
		return textResult(sb.String()), nil

	case "restore":
		if args.BackupID == "" {
			return errorResult(fmt.Errorf("backup_id required for restore action")), nil
		}
		entry, err := s.backups.Restore(args.File, args.BackupID)
		if err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf(
			"**Backup Restored**\n\nFile: %s\nRestored from: %s\nBackup date: %s",
			fileName, entry.ID, entry.Created)), nil

	case "delete":
		if args.BackupID == "" {
			return errorResult(fmt.Errorf("backup_id required for delete action")), nil
		}
		if err := s.backups.Delete(args.File, args.BackupID); err != nil {
			return errorResult(err), nil
		}
		return textResult(fmt.Sprintf("Backup '%s' deleted successfully", args.BackupID)), nil

	default:
		return errorResult(fmt.Errorf("unknown action %q (use create, list, restore, delete)", args.Action)), nil
	}
}

type validateArgs struct {
	Code     string `json:"code"`
	FileType string `json:"file_type"`
}

func (s *Server) handleValidateVBACode(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[validateArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	if bad, detail := inject.DetectNonASCII(args.Code); bad {
		return textResult("### VBA Validation Failed\n\n" + detail), nil
	}
	if ok, detail := inject.CheckBlockBalance(args.Code); !ok {
		return textResult("### VBA Validation Failed\n\n" + detail), nil
	}
	lines := len(vbaparse.SplitLines(args.Code))
	return textResult(fmt.Sprintf(
		"### VBA Code Valid\n\n**Lines:** %d\n**Character set:** ASCII\n**Block structure:** Balanced\n",
		lines)), nil
}

type injectArgs struct {
	File       string `json:"file"`
	ModuleName string `json:"module_name"`
	Code       string `json:"code"`
	Backup     *bool  `json:"backup"`
}

func (s *Server) handleInjectVBA(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[injectArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	createBackup := args.Backup == nil || *args.Backup
	result, err := s.pipeline.Inject(args.File, args.ModuleName, args.Code, createBackup)
	if err != nil {
		return errorResult(err), nil
	}

	var sb strings.Builder
	sb.WriteString("**VBA Injection Successful**\n\n")
	fmt.Fprintf(&sb, "File: %s\n", filepath.Base(args.File))
	fmt.Fprintf(&sb, "Module: %s\n", args.ModuleName)
	fmt.Fprintf(&sb, "Lines of code: %d\n", len(vbaparse.SplitLines(args.Code)))
	fmt.Fprintf(&sb, "Action: %s\n", result.Action)
	fmt.Fprintf(&sb, "Validation: %s\n", passed(result.Validated))
	fmt.Fprintf(&sb, "Verified: %s\n", yesNo(result.Verified))
	if result.BackupPath != "" {
		fmt.Fprintf(&sb, "Backup: %s\n", filepath.Base(result.BackupPath))
	}
	if result.BackupSkipped {
		sb.WriteString("Backup: skipped (file already in use)\n")
	}
	return textResult(sb.String()), nil
}

func passed(b bool) string {
	if b {
		return "Passed"
	}
	return "Skipped"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
