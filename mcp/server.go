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

// Package mcp exposes the core's operations as a flat set of named tools
// over the Model Context Protocol. All policy lives below; handlers here
// validate arguments, call the component contracts, and format results.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/inject"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// ServerVersion is reported during the MCP handshake.
const ServerVersion = "1.0.0"

// Server is the VBA MCP server.
type Server struct {
	sessions *session.Manager
	backups  *backup.Manager
	pipeline *inject.Pipeline
	server   *sdk.Server
}

// NewServer wires the service surface over its collaborators.
func NewServer(sessions *session.Manager, backups *backup.Manager) (*Server, error) {
	s := &Server{
		sessions: sessions,
		backups:  backups,
		pipeline: inject.NewPipeline(sessions, backups),
		server: sdk.NewServer(&sdk.Implementation{
			Name:    "vba-mcp-server",
			Version: ServerVersion,
		}, nil),
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the stdio transport and the idle-eviction task, and closes
// every session when the context ends.
func (s *Server) Run(ctx context.Context) error {
	s.sessions.StartCleanup(ctx)
	defer s.sessions.Shutdown()
	logging.Info("VBA MCP server listening on stdio")
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// toolDef binds a named tool to its schema and handler.
type toolDef struct {
	name        string
	description string
	schema      *jsonschema.Schema
	handler     sdk.ToolHandler
}

func (s *Server) registerTools() error {
	defs := []toolDef{}
	defs = append(defs, s.staticTools()...)
	defs = append(defs, s.sessionTools()...)
	defs = append(defs, s.excelTools()...)
	defs = append(defs, s.accessTools()...)

	seen := make(map[string]bool, len(defs))
	for _, def := range defs {
		if seen[def.name] {
			return fmt.Errorf("duplicate tool name %q", def.name)
		}
		seen[def.name] = true
		s.server.AddTool(&sdk.Tool{
			Name:        def.name,
			Description: def.description,
			InputSchema: def.schema,
		}, def.handler)
	}
	return nil
}

// parseArgs decodes an MCP request's arguments into T.
func parseArgs[T any](req *sdk.CallToolRequest) (T, error) {
	var args T
	if req.Params.Arguments == nil {
		return args, nil
	}
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

// textResult wraps a formatted report as a tool result.
func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}

// errorResult formats any core error uniformly, leading with its kind.
func errorResult(err error) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: "Error: " + errorKind(err) + " - " + err.Error()}},
	}
}

func errorKind(err error) string {
	var (
		notFound    *vbaerr.NotFoundError
		unsupported *vbaerr.UnsupportedFormatError
		format      *vbaerr.FormatError
		moduleMiss  *vbaerr.ModuleNotFoundError
		validation  *vbaerr.ValidationError
		locked      *vbaerr.LockedError
		permission  *vbaerr.PermissionDeniedError
		dead        *vbaerr.SessionDeadError
		tooLarge    *vbaerr.RangeTooLargeError
		sqlErr      *vbaerr.SQLError
		rollback    *vbaerr.RollbackFailedError
	)
	switch {
	case errors.As(err, &notFound):
		return "NotFound"
	case errors.As(err, &unsupported):
		return "UnsupportedFormat"
	case errors.As(err, &format):
		return "FormatError"
	case errors.As(err, &moduleMiss):
		return "ModuleNotFound"
	case errors.As(err, &validation):
		return "ValidationError"
	case errors.As(err, &locked):
		return "Locked"
	case errors.As(err, &permission):
		return "PermissionDenied"
	case errors.As(err, &dead):
		return "SessionDead"
	case errors.As(err, &tooLarge):
		return "RangeTooLarge"
	case errors.As(err, &sqlErr):
		return "SQLError"
	case errors.As(err, &rollback):
		return "RollbackFailed"
	case errors.Is(err, vbaerr.ErrUnsupportedPlatform):
		return "UnsupportedPlatform"
	case errors.Is(err, vbaerr.ErrNoMacroPayload):
		return "NoMacroPayload"
	default:
		return "OperationFailed"
	}
}

func moduleNotFound(name string, available []string) error {
	return &vbaerr.ModuleNotFoundError{Name: name, Available: available}
}

// Schema construction helpers.

func objectSchema(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func boolProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func intProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func stringArrayProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func gridProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{}},
	}
}

func enumProp(desc string, values ...any) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc, Enum: values}
}
