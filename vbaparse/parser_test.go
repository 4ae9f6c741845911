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
package vbaparse_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/vbaparse"
)

func TestParseSimpleFunction(t *testing.T) {
	code := "Public Function HelloWorld() As String\n" +
		"    HelloWorld = \"Hello from VBA!\"\n" +
		"End Function"

	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 1)

	want := vbaparse.Procedure{
		Name:       "HelloWorld",
		Kind:       "Function",
		Visibility: "Public",
		StartLine:  1,
		EndLine:    3,
		Calls:      []string{},
		Parameters: []string{},
		Complexity: 1,
	}
	if diff := cmp.Diff(want, procs[0]); diff != "" {
		t.Errorf("procedure mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVisibilityAndModifiers(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		kind       string
		visibility string
	}{
		{"implicit public sub", "Sub DoWork()\nEnd Sub", "Sub", "Public"},
		{"private sub", "Private Sub DoWork()\nEnd Sub", "Sub", "Private"},
		{"friend function", "Friend Function Calc()\nEnd Function", "Function", "Friend"},
		{"static sub", "Public Static Sub Cached()\nEnd Sub", "Sub", "Public"},
		{"property get", "Public Property Get Value()\nEnd Property", "Property Get", "Public"},
		{"property let", "Private Property Let Value(v)\nEnd Property", "Property Let", "Private"},
		{"property set", "Property Set Target(o)\nEnd Property", "Property Set", "Public"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			procs := vbaparse.ParseProcedures(test.code)
			require.Len(t, procs, 1)
			assert.Equal(t, test.kind, procs[0].Kind)
			assert.Equal(t, test.visibility, procs[0].Visibility)
		})
	}
}

func TestProcedureSpansDoNotOverlap(t *testing.T) {
	code := strings.Join([]string{
		"Sub First()",
		"    x = 1",
		"End Sub",
		"",
		"Function Second()",
		"    Second = 2",
		"End Function",
	}, "\n")

	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 2)
	assert.Equal(t, 1, procs[0].StartLine)
	assert.Equal(t, 3, procs[0].EndLine)
	assert.Equal(t, 5, procs[1].StartLine)
	assert.Equal(t, 7, procs[1].EndLine)
	assert.Less(t, procs[0].EndLine, procs[1].StartLine)
}

func TestMissingCloserRunsToEndOfModule(t *testing.T) {
	code := "Sub Broken()\n    x = 1\n    y = 2"
	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 1)
	assert.Equal(t, 3, procs[0].EndLine)
}

func TestCallExtraction(t *testing.T) {
	code := strings.Join([]string{
		"Sub Driver()",
		"    result = Calculate(1, 2)",
		"    Cleanup(result)",
		"    If CheckState(result) Then",
		"        MsgBox (result)",
		"    End If",
		"    Calculate(3, 4)",
		"End Sub",
	}, "\n")

	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 1)
	// Sorted, deduplicated, keyword-free.
	assert.Equal(t, []string{"Calculate", "CheckState", "Cleanup", "MsgBox"}, procs[0].Calls)
	for _, call := range procs[0].Calls {
		assert.False(t, vbaparse.IsKeyword(call), "keyword leaked into calls: %s", call)
	}
}

func TestCallExtractionSkipsKeywords(t *testing.T) {
	code := strings.Join([]string{
		"Sub Looper()",
		"    For i = 1 To UBound(arr)",
		"        Call Process(arr(i))",
		"    Next i",
		"    While (x < 10)",
		"        x = x + 1",
		"    Wend",
		"End Sub",
	}, "\n")

	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 1)
	assert.NotContains(t, procs[0].Calls, "Call")
	assert.NotContains(t, procs[0].Calls, "While")
	assert.Contains(t, procs[0].Calls, "Process")
	assert.Contains(t, procs[0].Calls, "UBound")
}

func TestComplexityScoring(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{
			"no decisions",
			"Sub A()\n    x = 1\nEnd Sub",
			1,
		},
		{
			// Whole-word occurrences count, so "End If" scores too.
			"single if",
			"Sub A()\n    If x Then\n        y = 1\n    End If\nEnd Sub",
			3,
		},
		{
			"compound condition counts operators",
			"Sub A()\n    If x And y Or z Then\n        q = 1\n    End If\nEnd Sub",
			5,
		},
		{
			// "Select Case" and "Case 1" each count; "Case Else" does not.
			"case else excluded",
			"Sub A()\n    Select Case x\n        Case 1\n            y = 1\n        Case Else\n            y = 2\n    End Select\nEnd Sub",
			3,
		},
		{
			"loops and elseif",
			"Sub A()\n    For i = 1 To 10\n        If a Then\n            b = 1\n        ElseIf c Then\n            b = 2\n        End If\n    Next i\n    Do While x\n        x = x - 1\n    Loop\nEnd Sub",
			7,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			procs := vbaparse.ParseProcedures(test.code)
			require.Len(t, procs, 1)
			assert.Equal(t, test.want, procs[0].Complexity)
		})
	}
}

func TestComplexityNeverBelowOne(t *testing.T) {
	for _, code := range []string{
		"Sub Empty()\nEnd Sub",
		"Function F()\nEnd Function",
	} {
		procs := vbaparse.ParseProcedures(code)
		require.Len(t, procs, 1)
		assert.GreaterOrEqual(t, procs[0].Complexity, 1)
	}
}

func TestCaseInsensitiveMatching(t *testing.T) {
	code := "PRIVATE SUB shout()\nend sub"
	procs := vbaparse.ParseProcedures(code)
	require.Len(t, procs, 1)
	// Original casing of the name is preserved.
	assert.Equal(t, "shout", procs[0].Name)
	assert.Equal(t, "Private", procs[0].Visibility)
	assert.Equal(t, 2, procs[0].EndLine)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, vbaparse.SplitLines(""))
	assert.Equal(t, []string{"a", "b"}, vbaparse.SplitLines("a\r\nb"))
	assert.Equal(t, []string{"a", "b"}, vbaparse.SplitLines("a\rb"))
	assert.Equal(t, []string{"a", "b"}, vbaparse.SplitLines("a\nb\n"))
}
