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
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/cfb/cfbtest"
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

func newTestServer(t *testing.T) (*Server, *host.MockWorld) {
	t.Helper()
	world := host.NewMockWorld()
	clock := platform.NewMockTimeProvider(time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local))
	sessions := session.NewManager(session.Options{
		Factory:   world.Factory(),
		Clock:     clock,
		LockProbe: func(string) bool { return false },
	})
	t.Cleanup(sessions.Shutdown)
	server, err := NewServer(sessions, backup.NewManager(afero.NewOsFs(), clock))
	require.NoError(t, err)
	return server, world
}

func call(t *testing.T, handler sdk.ToolHandler, args map[string]any) *sdk.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), &sdk.CallToolRequest{
		Params: &sdk.CallToolParams{Arguments: args},
	})
	require.NoError(t, err, "handlers report failures inside the result, not as Go errors")
	return result
}

func resultText(t *testing.T, result *sdk.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*sdk.TextContent)
	require.True(t, ok)
	return text.Text
}

// fixtureXLSM writes a macro-enabled workbook holding one module.
func fixtureXLSM(t *testing.T, moduleName, code string) string {
	t.Helper()
	blob := cfbtest.Build(map[string][]byte{
		"PROJECT": []byte("Module=" + moduleName + "\r\n"),
		"VBA/dir": cfbtest.CompressSource(cfbtest.DirStream([]cfbtest.DirModule{
			{Name: moduleName},
		})),
		"VBA/" + moduleName: cfbtest.ModuleStream(0, []byte(code)),
	})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("xl/vbaProject.bin")
	require.NoError(t, err)
	_, err = w.Write(blob)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := filepath.Join(t.TempDir(), "fixture.xlsm")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

const helloWorld = "Public Function HelloWorld() As String\r\n" +
	"    HelloWorld = \"Hello from VBA!\"\r\n" +
	"End Function"

func TestToolRegistrationHasNoDuplicates(t *testing.T) {
	server, _ := newTestServer(t)
	require.NotNil(t, server)
}

func TestExtractVBATool(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	result := call(t, server.handleExtractVBA, map[string]any{"file": file})
	text := resultText(t, result)
	assert.False(t, result.IsError)
	assert.Contains(t, text, "TestModule")
	assert.Contains(t, text, "standard")
	assert.Contains(t, text, "Hello from VBA!")
}

func TestExtractVBAUnknownModule(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	result := call(t, server.handleExtractVBA, map[string]any{
		"file": file, "module_name": "Ghost",
	})
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "ModuleNotFound")
	assert.Contains(t, text, "TestModule", "the error lists available modules")
}

func TestListModulesTool(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	text := resultText(t, call(t, server.handleListModules, map[string]any{"file": file}))
	assert.Contains(t, text, "**TestModule** (standard) - 3 lines")
}

func TestAnalyzeStructureTool(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	text := resultText(t, call(t, server.handleAnalyzeStructure, map[string]any{"file": file}))
	assert.Contains(t, text, "**Total Modules:** 1")
	assert.Contains(t, text, "**Total Procedures:** 1")
	assert.Contains(t, text, "**Total Lines:** 3")
	assert.Contains(t, text, "**Avg Complexity:** 1.0")
	assert.Contains(t, text, "**Max Complexity:** 1")
	assert.Contains(t, text, "complexity is **good**")
	assert.Contains(t, text, "No recommendations")
}

func TestValidateVBACodeTool(t *testing.T) {
	server, _ := newTestServer(t)

	valid := resultText(t, call(t, server.handleValidateVBACode, map[string]any{
		"code": "Sub A()\n    x = 1\nEnd Sub", "file_type": "excel",
	}))
	assert.Contains(t, valid, "VBA Code Valid")

	nonASCII := resultText(t, call(t, server.handleValidateVBACode, map[string]any{
		"code": "MsgBox \"✓\"",
	}))
	assert.Contains(t, nonASCII, "Validation Failed")
	assert.Contains(t, nonASCII, "line 1")

	unbalanced := resultText(t, call(t, server.handleValidateVBACode, map[string]any{
		"code": "Sub A()\n    If x Then\nEnd Sub",
	}))
	assert.Contains(t, unbalanced, "unclosed 'If'")
}

func TestInjectVBAToolEndToEnd(t *testing.T) {
	server, world := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)
	resolved, err := filepath.EvalSymlinks(file)
	require.NoError(t, err)

	code := "Public Function TestFunction() As String\r\n" +
		"    TestFunction = \"OK\"\r\n" +
		"End Function"
	result := call(t, server.handleInjectVBA, map[string]any{
		"file": file, "module_name": "IntegrationTest", "code": code,
	})
	text := resultText(t, result)
	assert.False(t, result.IsError, text)
	assert.Contains(t, text, "Action: created")
	assert.Contains(t, text, "Validation: Passed")
	assert.Contains(t, text, "Verified: Yes")
	assert.Contains(t, text, "Backup:")
	assert.Contains(t, world.File(resolved).Modules["IntegrationTest"], "TestFunction")

	// A backup entry appears in the manifest.
	entries, err := backup.NewOSManager().List(file)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestInjectVBAToolRejectsBadCode(t *testing.T) {
	server, world := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)
	before, err := os.ReadFile(file)
	require.NoError(t, err)

	result := call(t, server.handleInjectVBA, map[string]any{
		"file":        file,
		"module_name": "X",
		"code":        "Public Sub X()\n    If True Then\n        MsgBox \"x\"\nEnd Sub",
		"backup":      false,
	})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "ValidationError")

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, before, after, "the file must be byte-identical after a rejected inject")
	assert.Equal(t, 0, world.HostCount())
}

func TestBackupToolLifecycle(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	created := resultText(t, call(t, server.handleBackupVBA, map[string]any{
		"file": file, "action": "create",
	}))
	assert.Contains(t, created, "Backup Created")

	listed := resultText(t, call(t, server.handleBackupVBA, map[string]any{
		"file": file, "action": "list",
	}))
	assert.Contains(t, listed, "Total: 1 backup(s)")

	missing := call(t, server.handleBackupVBA, map[string]any{
		"file": file, "action": "restore", "backup_id": "19990101_000000",
	})
	assert.True(t, missing.IsError)
}

func TestOpenListCloseTools(t *testing.T) {
	server, _ := newTestServer(t)
	file := fixtureXLSM(t, "TestModule", helloWorld)

	opened := resultText(t, call(t, server.handleOpenInOffice, map[string]any{"file": file}))
	assert.Contains(t, opened, "Office File Opened")
	assert.Contains(t, opened, "Application: Excel")

	listed := resultText(t, call(t, server.handleListOpenFiles, nil))
	assert.Contains(t, listed, "fixture.xlsm")

	closed := resultText(t, call(t, server.handleCloseOfficeFile, map[string]any{"file": file}))
	assert.Contains(t, closed, "Closed fixture.xlsm")

	empty := resultText(t, call(t, server.handleListOpenFiles, nil))
	assert.Contains(t, empty, "No open Office sessions")
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{&vbaerr.NotFoundError{Path: "x"}, "NotFound"},
		{&vbaerr.UnsupportedFormatError{Suffix: ".txt"}, "UnsupportedFormat"},
		{&vbaerr.FormatError{Reason: "r"}, "FormatError"},
		{&vbaerr.ModuleNotFoundError{Name: "m"}, "ModuleNotFound"},
		{&vbaerr.ValidationError{Detail: "d"}, "ValidationError"},
		{&vbaerr.LockedError{Path: "p"}, "Locked"},
		{&vbaerr.PermissionDeniedError{Reason: "r"}, "PermissionDenied"},
		{&vbaerr.SessionDeadError{Path: "p"}, "SessionDead"},
		{&vbaerr.RangeTooLargeError{Cells: 2, Limit: 1}, "RangeTooLarge"},
		{&vbaerr.SQLError{Query: "q"}, "SQLError"},
		{&vbaerr.RollbackFailedError{BackupPath: "b"}, "RollbackFailed"},
		{vbaerr.ErrUnsupportedPlatform, "UnsupportedPlatform"},
		{vbaerr.ErrNoMacroPayload, "NoMacroPayload"},
	}
	for _, test := range tests {
		assert.Equal(t, test.kind, errorKind(test.err))
	}
}
