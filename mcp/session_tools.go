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
	"github.com/AlexisTrouve/vba-mcp-server/bridge"
	"github.com/AlexisTrouve/vba-mcp-server/inject"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// sessionTools are the interactive host-automation operations.
func (s *Server) sessionTools() []toolDef {
	fileProp := stringProp("Absolute path to the Office file")

	return []toolDef{
		{
			name:        "open_in_office",
			description: "Open an Office file interactively; the session stays open for further operations",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":      fileProp,
				"read_only": boolProp("Open in read-only mode (default false)"),
			}),
			handler: s.handleOpenInOffice,
		},
		{
			name:        "close_office_file",
			description: "Close an open Office session, saving by default",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":         fileProp,
				"save_changes": boolProp("Save before closing (default true)"),
			}),
			handler: s.handleCloseOfficeFile,
		},
		{
			name:        "list_open_files",
			description: "List all open Office sessions",
			schema:      objectSchema(nil, map[string]*jsonschema.Schema{}),
			handler:     s.handleListOpenFiles,
		},
		{
			name:        "run_macro",
			description: "Execute a VBA macro, temporarily enabling macros unless told otherwise",
			schema: objectSchema([]string{"file", "macro_name"}, map[string]*jsonschema.Schema{
				"file":       fileProp,
				"macro_name": stringProp("Macro as 'ModuleName.ProcedureName' or 'ProcedureName'"),
				"arguments": &jsonschema.Schema{
					Type:        "array",
					Description: "Positional arguments for the macro",
					Items:       &jsonschema.Schema{},
				},
				"enable_macros": boolProp("Lower automation security for the call (default true)"),
			}),
			handler: s.handleRunMacro,
		},
		{
			name:        "list_macros",
			description: "List all public macros in an Office file with signatures",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleListMacros,
		},
		{
			name:        "compile_vba",
			description: "Compile-check the whole VBA project of an open file",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file": fileProp,
			}),
			handler: s.handleCompileVBA,
		},
		{
			name:        "extract_vba_access",
			description: "Extract VBA through a live session (for databases held open by the host)",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": stringProp("Optional specific module name"),
			}),
			handler: s.handleExtractVBALive,
		},
		{
			name:        "analyze_structure_access",
			description: "Analyze VBA structure through a live session",
			schema: objectSchema([]string{"file"}, map[string]*jsonschema.Schema{
				"file":        fileProp,
				"module_name": stringProp("Optional specific module name"),
			}),
			handler: s.handleAnalyzeStructureLive,
		},
	}
}

type openArgs struct {
	File     string `json:"file"`
	ReadOnly bool   `json:"read_only"`
}

func (s *Server) handleOpenInOffice(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[openArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, args.ReadOnly, false)
	if err != nil {
		return errorResult(err), nil
	}

	mode := "Editable"
	if args.ReadOnly {
		mode = "Read-only"
	}
	var sb strings.Builder
	sb.WriteString("**Office File Opened**\n\n")
	fmt.Fprintf(&sb, "File: %s\n", filepath.Base(sess.Path))
	fmt.Fprintf(&sb, "Path: %s\n", sess.Path)
	fmt.Fprintf(&sb, "Application: %s\n", sess.Family)
	fmt.Fprintf(&sb, "Mode: %s\n\n", mode)
	sb.WriteString("The file remains open for interactive use.\n")
	sb.WriteString("You can now:\n")
	sb.WriteString("- Run macros with run_macro\n")
	sb.WriteString("- Read data with get_worksheet_data\n")
	sb.WriteString("- Write data with set_worksheet_data\n")
	sb.WriteString("- Close with close_office_file (or wait for idle auto-close)\n")
	return textResult(sb.String()), nil
}

type closeArgs struct {
	File        string `json:"file"`
	SaveChanges *bool  `json:"save_changes"`
}

func (s *Server) handleCloseOfficeFile(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[closeArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	save := args.SaveChanges == nil || *args.SaveChanges
	if err := s.sessions.CloseSession(args.File, save); err != nil {
		return errorResult(err), nil
	}
	return textResult(fmt.Sprintf("Closed %s (saved: %s)", filepath.Base(args.File), yesNo(save))), nil
}

func (s *Server) handleListOpenFiles(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	infos := s.sessions.List()
	if len(infos) == 0 {
		return textResult("No open Office sessions."), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Open Office Sessions: %d**\n\n", len(infos))
	for _, info := range infos {
		mode := "editable"
		if info.ReadOnly {
			mode = "read-only"
		}
		fmt.Fprintf(&sb, "- **%s** (%s, %s) open %.0fs, idle %.0fs\n",
			info.FileName, info.AppType, mode, info.AgeSeconds, info.IdleSeconds)
	}
	return textResult(sb.String()), nil
}

type runMacroArgs struct {
	File         string `json:"file"`
	MacroName    string `json:"macro_name"`
	Arguments    []any  `json:"arguments"`
	EnableMacros *bool  `json:"enable_macros"`
}

func (s *Server) handleRunMacro(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[runMacroArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	enable := args.EnableMacros == nil || *args.EnableMacros
	result, err := bridge.RunMacro(sess, args.MacroName, args.Arguments, enable)
	if err != nil {
		return errorResult(err), nil
	}

	var sb strings.Builder
	sb.WriteString("**Macro Executed Successfully**\n\n")
	fmt.Fprintf(&sb, "File: %s\n", filepath.Base(args.File))
	fmt.Fprintf(&sb, "Macro: %s\n", args.MacroName)
	fmt.Fprintf(&sb, "Format used: %s\n", result.FormatUsed)
	if result.HasValue {
		fmt.Fprintf(&sb, "Return value: %v\n", result.Value)
	} else {
		sb.WriteString("Type: Sub (no return value)\n")
	}
	return textResult(sb.String()), nil
}

type fileOnlyArgs struct {
	File string `json:"file"`
}

func (s *Server) handleListMacros(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileOnlyArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, true, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	macros, err := bridge.EnumerateMacros(sess)
	if err != nil {
		return errorResult(err), nil
	}
	if len(macros) == 0 {
		return textResult(fmt.Sprintf("No public macros found in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Macros in %s**\n\n", filepath.Base(args.File))
	for _, m := range macros {
		if m.Kind == "Function" {
			fmt.Fprintf(&sb, "- **%s.%s** (Function) %s As %s\n", m.Module, m.Name, m.Signature, m.ReturnType)
		} else {
			fmt.Fprintf(&sb, "- **%s.%s** (Sub) %s\n", m.Module, m.Name, m.Signature)
		}
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleCompileVBA(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileOnlyArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	project, err := sess.Project()
	if err != nil {
		return errorResult(err), nil
	}
	ok, failures := inject.CompileProject(project)
	if ok {
		return textResult(fmt.Sprintf("**VBA Compilation Successful**\n\nFile: %s\nAll modules compile.",
			filepath.Base(args.File))), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Compilation Failed**\n\nFile: %s\n\n", filepath.Base(args.File))
	for _, f := range failures {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	return textResult(sb.String()), nil
}

// liveModules reads the project's modules through an open session rather
// than the container decoders.
func liveModules(sess *session.Session, moduleName string) ([]vbaproject.Module, error) {
	project, err := sess.Project()
	if err != nil {
		return nil, err
	}
	comps, err := project.Components()
	if err != nil {
		return nil, err
	}
	var modules []vbaproject.Module
	var names []string
	for _, comp := range comps {
		name, err := comp.Name()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		if moduleName != "" && !strings.EqualFold(name, moduleName) {
			continue
		}
		cm := comp.Code()
		count, err := cm.CountOfLines()
		if err != nil {
			return nil, err
		}
		code := ""
		if count > 0 {
			if code, err = cm.Lines(1, count); err != nil {
				return nil, err
			}
		}
		modules = append(modules, vbaproject.Module{
			Name:      name,
			Kind:      vbaproject.KindStandard,
			Code:      code,
			LineCount: count,
		})
	}
	if moduleName != "" && len(modules) == 0 {
		return nil, moduleNotFound(moduleName, names)
	}
	return modules, nil
}

func (s *Server) handleExtractVBALive(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileModuleArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	modules, err := liveModules(sess, args.ModuleName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(modules) == 0 {
		return textResult(fmt.Sprintf("No VBA code found in %s", filepath.Base(args.File))), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**VBA Code (live session): %s**\n\n", filepath.Base(args.File))
	for _, m := range modules {
		fmt.Fprintf(&sb, "### %s (%d lines)\n\n```vba\n%s\n```\n\n",
			m.Name, m.LineCount, strings.TrimRight(m.Code, "\r\n"))
	}
	return textResult(sb.String()), nil
}

func (s *Server) handleAnalyzeStructureLive(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
	args, err := parseArgs[fileModuleArgs](req)
	if err != nil {
		return errorResult(err), nil
	}
	sess, err := s.sessions.GetOrCreate(args.File, false, false)
	if err != nil {
		return errorResult(err), nil
	}
	sess.Touch(s.sessions.Clock().Now())

	modules, err := liveModules(sess, args.ModuleName)
	if err != nil {
		return errorResult(err), nil
	}
	if len(modules) == 0 {
		return textResult(fmt.Sprintf("No VBA code to analyze in %s", filepath.Base(args.File))), nil
	}
	report := analyze.Analyze(modules, viper.GetInt("analyze.topOffenders"))
	return textResult(formatAnalysis(filepath.Base(args.File), modules, report)), nil
}
