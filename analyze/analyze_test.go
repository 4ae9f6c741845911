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
package analyze_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/analyze"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

func module(name, code string) vbaproject.Module {
	return vbaproject.Module{
		Name:      name,
		Kind:      vbaproject.KindStandard,
		Code:      code,
		LineCount: len(strings.Split(code, "\n")),
	}
}

func TestAnalyzeSingleSimpleModule(t *testing.T) {
	m := module("TestModule",
		"Public Function HelloWorld() As String\n"+
			"    HelloWorld = \"Hello from VBA!\"\n"+
			"End Function")

	report := analyze.Analyze([]vbaproject.Module{m}, 0)

	assert.Equal(t, 1, report.Metrics.TotalModules)
	assert.Equal(t, 1, report.Metrics.TotalProcedures)
	assert.Equal(t, 3, report.Metrics.TotalLines)
	assert.Equal(t, 1.0, report.Metrics.MeanComplexity)
	assert.Equal(t, 1, report.Metrics.MaxComplexity)
	assert.Equal(t, "good", report.Metrics.Quality)
	require.Len(t, report.TopOffenders, 1)
	assert.Equal(t, "TestModule", report.TopOffenders[0].Module)
}

func TestQualityThresholds(t *testing.T) {
	// A procedure with exactly n-1 decision keywords scores n.
	procWithComplexity := func(name string, score int) string {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Sub %s()\n", name)
		for i := 0; i < score-1; i++ {
			sb.WriteString("    x = a And b\n")
		}
		sb.WriteString("End Sub")
		return sb.String()
	}

	tests := []struct {
		name    string
		score   int
		quality string
	}{
		{"mean five is good", 5, "good"},
		{"mean six is moderate", 6, "moderate"},
		{"mean ten is moderate", 10, "moderate"},
		{"mean eleven is high", 11, "high"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := module("M", procWithComplexity("P", test.score))
			report := analyze.Analyze([]vbaproject.Module{m}, 0)
			assert.Equal(t, float64(test.score), report.Metrics.MeanComplexity)
			assert.Equal(t, test.quality, report.Metrics.Quality)
		})
	}
}

func TestTopOffendersSortedAndCapped(t *testing.T) {
	var modules []vbaproject.Module
	for i := 1; i <= 20; i++ {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Sub P%02d()\n", i)
		for j := 0; j < i; j++ {
			sb.WriteString("    If a Then\n    End If\n")
		}
		sb.WriteString("End Sub")
		modules = append(modules, module(fmt.Sprintf("M%02d", i), sb.String()))
	}

	report := analyze.Analyze(modules, 0)
	require.Len(t, report.TopOffenders, analyze.DefaultTopOffenders)
	for i := 1; i < len(report.TopOffenders); i++ {
		assert.GreaterOrEqual(t,
			report.TopOffenders[i-1].Complexity,
			report.TopOffenders[i].Complexity,
			"top offenders must be sorted by complexity descending")
	}
	assert.Equal(t, "P20", report.TopOffenders[0].Name)

	capped := analyze.Analyze(modules, 3)
	assert.Len(t, capped.TopOffenders, 3)
}

func TestAnalyzeEmptyProject(t *testing.T) {
	report := analyze.Analyze(nil, 0)
	assert.Equal(t, 0, report.Metrics.TotalProcedures)
	assert.Equal(t, 0.0, report.Metrics.MeanComplexity)
	assert.Equal(t, "good", report.Metrics.Quality)
	assert.Empty(t, report.TopOffenders)
}

func TestAdviseComplexityRules(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Sub Monster()\n")
	for i := 0; i < 16; i++ {
		sb.WriteString("    If a Then\n    End If\n")
	}
	sb.WriteString("End Sub\n")
	sb.WriteString("Sub Warm()\n")
	for i := 0; i < 11; i++ {
		sb.WriteString("    x = a Or b\n")
	}
	sb.WriteString("End Sub")

	suggestions := analyze.Advise([]vbaproject.Module{module("M", sb.String())}, "complexity")
	require.Len(t, suggestions, 2)
	// Ranked by severity: the high split suggestion leads.
	assert.Equal(t, analyze.SeverityHigh, suggestions[0].Severity)
	assert.Equal(t, "Monster", suggestions[0].Location)
	assert.Contains(t, suggestions[0].Message, "Split")
	assert.Equal(t, analyze.SeverityMedium, suggestions[1].Severity)
	assert.Equal(t, "Warm", suggestions[1].Location)
}

func TestAdviseNamingRules(t *testing.T) {
	code := "Sub do()\nEnd Sub\n\nFunction calcTotal()\nEnd Function\n\nSub GoodName()\nEnd Sub"
	suggestions := analyze.Advise([]vbaproject.Module{module("M", code)}, "naming")

	var messages []string
	for _, s := range suggestions {
		messages = append(messages, s.Location+": "+s.Message)
		assert.Equal(t, analyze.SeverityLow, s.Severity)
	}
	// "do" is both short and lowercase; "calcTotal" is lowercase only.
	assert.Len(t, suggestions, 3)
	assert.Contains(t, strings.Join(messages, "\n"), "PascalCase")
}

func TestAdviseStructureRule(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Sub Long()\n")
	for i := 0; i < 60; i++ {
		sb.WriteString("    x = 1\n")
	}
	sb.WriteString("End Sub")

	suggestions := analyze.Advise([]vbaproject.Module{module("M", sb.String())}, "structure")
	require.Len(t, suggestions, 1)
	assert.Equal(t, analyze.SeverityMedium, suggestions[0].Severity)
	assert.Contains(t, suggestions[0].Message, "Long procedure")
}

func TestAdviseFilterSelectsFamily(t *testing.T) {
	code := "Sub x()\nEnd Sub" // short and lowercase: naming hits only
	naming := analyze.Advise([]vbaproject.Module{module("M", code)}, "naming")
	assert.NotEmpty(t, naming)
	complexity := analyze.Advise([]vbaproject.Module{module("M", code)}, "complexity")
	assert.Empty(t, complexity)
	all := analyze.Advise([]vbaproject.Module{module("M", code)}, "all")
	assert.Len(t, all, len(naming))
}
