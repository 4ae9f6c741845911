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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/bridge"
	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/session"
)

func seedModule(f *fixture, sess *session.Session, name, code string) {
	state := f.world.File(sess.Path)
	if _, ok := state.Modules[name]; !ok {
		state.Order = append(state.Order, name)
	}
	state.Modules[name] = code
}

func TestEnumerateMacros(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedModule(f, sess, "Module1", strings.Join([]string{
		"Public Sub RunReport(month As Integer)",
		"End Sub",
		"",
		"Function Total(a, b) As Double",
		"    Total = a + b",
		"End Function",
		"",
		"Function Untyped()",
		"End Function",
		"",
		"Private Sub Hidden()",
		"End Sub",
	}, "\r\n"))

	macros, err := bridge.EnumerateMacros(sess)
	require.NoError(t, err)
	require.Len(t, macros, 3, "private procedures are not macros")

	byName := map[string]bridge.MacroInfo{}
	for _, m := range macros {
		byName[m.Name] = m
	}
	assert.Equal(t, "Sub", byName["RunReport"].Kind)
	assert.Equal(t, "RunReport(month As Integer)", byName["RunReport"].Signature)
	assert.Equal(t, "Double", byName["Total"].ReturnType)
	assert.Equal(t, "Variant", byName["Untyped"].ReturnType, "functions default to Variant")
}

func TestRunMacroTriesSpreadsheetFormats(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	h := f.world.Hosts()[0]
	// The bare Module.Name form fails; the workbook-qualified one works.
	h.FailRunFormats["Module1.DoIt"] = true
	h.RunResult = "done"

	result, err := bridge.RunMacro(sess, "Module1.DoIt", []any{1, "two"}, true)
	require.NoError(t, err)
	assert.Equal(t, "'book.xlsm'!Module1.DoIt", result.FormatUsed)
	assert.Equal(t, "done", result.Value)
	assert.Equal(t, []string{"Module1.DoIt", "'book.xlsm'!Module1.DoIt"}, h.RunCalls)
}

func TestRunMacroDatabaseUsesBareNameOnly(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "app.accdb")
	h := f.world.Hosts()[0]

	_, err := bridge.RunMacro(sess, "Module1.DoIt", nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"DoIt"}, h.RunCalls, "database hosts reject the module-prefixed form")
}

func TestRunMacroSecurityBracketRestores(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	h := f.world.Hosts()[0]
	require.NoError(t, h.SetAutomationSecurity(host.SecurityByUI))

	_, err := bridge.RunMacro(sess, "AnyMacro", nil, true)
	require.NoError(t, err)
	assert.Equal(t, host.SecurityByUI, h.SecurityLevel(),
		"automation security must be restored after the call")
}

func TestRunMacroSecurityBracketRestoresOnFailure(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	h := f.world.Hosts()[0]
	require.NoError(t, h.SetAutomationSecurity(host.SecurityForceDisable))
	for _, format := range []string{"Nope", "'book.xlsm'!Nope"} {
		h.FailRunFormats[format] = true
	}

	_, err := bridge.RunMacro(sess, "Nope", nil, true)
	require.Error(t, err)
	assert.Equal(t, host.SecurityForceDisable, h.SecurityLevel(),
		"automation security must be restored even when every format fails")
}

func TestRunMacroDisabledSecurityLeavesLevelAlone(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	h := f.world.Hosts()[0]
	require.NoError(t, h.SetAutomationSecurity(host.SecurityByUI))

	_, err := bridge.RunMacro(sess, "AnyMacro", nil, false)
	require.NoError(t, err)
	assert.Equal(t, host.SecurityByUI, h.SecurityLevel())
}

func TestRunMacroFailureListsAvailableMacros(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t, "book.xlsm")
	seedModule(f, sess, "Module1", "Public Sub Existing()\r\nEnd Sub")
	h := f.world.Hosts()[0]
	for _, format := range []string{"Ghost", "'book.xlsm'!Ghost"} {
		h.FailRunFormats[format] = true
	}

	_, err := bridge.RunMacro(sess, "Ghost", nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Formats tried: Ghost, 'book.xlsm'!Ghost")
	assert.Contains(t, err.Error(), "Module1.Existing (Sub)")
}
