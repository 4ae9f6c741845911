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

// Package analyze aggregates per-module parse results into project-level
// metrics and rule-based refactoring suggestions.
package analyze

import (
	"fmt"
	"sort"

	"github.com/AlexisTrouve/vba-mcp-server/vbaparse"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// DefaultTopOffenders caps the sorted by-complexity view.
const DefaultTopOffenders = 15

// ModuleProcedure pairs a procedure with its containing module.
type ModuleProcedure struct {
	Module string `json:"module"`
	vbaparse.Procedure
}

// Metrics summarizes a project or a filtered subset of its modules.
type Metrics struct {
	TotalModules    int     `json:"total_modules"`
	TotalProcedures int     `json:"total_procedures"`
	TotalLines      int     `json:"total_lines"`
	MeanComplexity  float64 `json:"mean_complexity"`
	MaxComplexity   int     `json:"max_complexity"`
	Quality         string  `json:"quality"`
}

// Report is the full structure-analysis result.
type Report struct {
	Metrics      Metrics           `json:"metrics"`
	TopOffenders []ModuleProcedure `json:"top_offenders"`
}

// Analyze parses every module and computes project metrics with the
// top-offenders view capped at topN (DefaultTopOffenders when <= 0).
func Analyze(modules []vbaproject.Module, topN int) Report {
	if topN <= 0 {
		topN = DefaultTopOffenders
	}

	var procs []ModuleProcedure
	totalLines := 0
	for _, m := range modules {
		totalLines += m.LineCount
		for _, p := range vbaparse.ParseProcedures(m.Code) {
			procs = append(procs, ModuleProcedure{Module: m.Name, Procedure: p})
		}
	}

	metrics := Metrics{
		TotalModules:    len(modules),
		TotalProcedures: len(procs),
		TotalLines:      totalLines,
	}
	if len(procs) > 0 {
		sum := 0
		for _, p := range procs {
			sum += p.Complexity
			if p.Complexity > metrics.MaxComplexity {
				metrics.MaxComplexity = p.Complexity
			}
		}
		metrics.MeanComplexity = float64(sum) / float64(len(procs))
	}
	metrics.Quality = qualityLabel(metrics.MeanComplexity)

	sorted := make([]ModuleProcedure, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Complexity > sorted[j].Complexity
	})
	if len(sorted) > topN {
		sorted = sorted[:topN]
	}
	return Report{Metrics: metrics, TopOffenders: sorted}
}

// qualityLabel maps mean complexity to the human-readable label. The
// thresholds are contractual: <=5 good, <=10 moderate, else high.
func qualityLabel(mean float64) string {
	switch {
	case mean <= 5:
		return "good"
	case mean <= 10:
		return "moderate"
	default:
		return "high"
	}
}

// Severity ranks a suggestion.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

var severityRank = map[Severity]int{SeverityHigh: 0, SeverityMedium: 1, SeverityLow: 2}

// Suggestion is one rule hit against one procedure.
type Suggestion struct {
	Module   string   `json:"module"`
	Location string   `json:"location"`
	Family   string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RuleFamilies lists the advisor's selectable rule families.
var RuleFamilies = []string{"complexity", "naming", "structure"}

// Advise runs the selected rule family ("all" for every family) over the
// modules and returns suggestions ranked by severity.
func Advise(modules []vbaproject.Module, family string) []Suggestion {
	var out []Suggestion
	for _, m := range modules {
		for _, p := range vbaparse.ParseProcedures(m.Code) {
			out = append(out, adviseProcedure(m.Name, p, family)...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank[out[i].Severity] < severityRank[out[j].Severity]
	})
	return out
}

func adviseProcedure(module string, p vbaparse.Procedure, family string) []Suggestion {
	var out []Suggestion
	selected := func(f string) bool { return family == "all" || family == f }

	if selected("complexity") {
		if p.Complexity > 15 {
			out = append(out, Suggestion{
				Module: module, Location: p.Name, Family: "complexity",
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("Very high complexity (%d). Split into smaller functions.", p.Complexity),
			})
		} else if p.Complexity > 10 {
			out = append(out, Suggestion{
				Module: module, Location: p.Name, Family: "complexity",
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("High complexity (%d). Consider refactoring.", p.Complexity),
			})
		}
	}

	if selected("naming") {
		if len(p.Name) < 3 {
			out = append(out, Suggestion{
				Module: module, Location: p.Name, Family: "naming",
				Severity: SeverityLow,
				Message:  "Very short name. Use descriptive names.",
			})
		}
		if p.Name != "" && p.Name[0] >= 'a' && p.Name[0] <= 'z' &&
			(p.Kind == "Sub" || p.Kind == "Function") {
			out = append(out, Suggestion{
				Module: module, Location: p.Name, Family: "naming",
				Severity: SeverityLow,
				Message:  "Procedure names should start with uppercase (PascalCase).",
			})
		}
	}

	if selected("structure") {
		span := p.EndLine - p.StartLine
		if span > 50 {
			out = append(out, Suggestion{
				Module: module, Location: p.Name, Family: "structure",
				Severity: SeverityMedium,
				Message:  fmt.Sprintf("Long procedure (%d lines). Consider splitting.", span),
			})
		}
	}
	return out
}
