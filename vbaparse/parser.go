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

// Package vbaparse tokenizes recovered VBA source into procedures with
// visibility, spans, call targets, and a cyclomatic-complexity score.
// It is line-oriented and heuristic: good enough for structural listing,
// not a grammar.
package vbaparse

import (
	"regexp"
	"sort"
	"strings"
)

// Procedure is a named span inside a module.
type Procedure struct {
	Name       string   `json:"name"`
	Kind       string   `json:"type"`
	Visibility string   `json:"visibility"`
	StartLine  int      `json:"line_start"`
	EndLine    int      `json:"line_end"`
	Calls      []string `json:"calls"`
	Parameters []string `json:"parameters"`
	Complexity int      `json:"complexity"`
}

var (
	subPattern = regexp.MustCompile(
		`(?i)^\s*(?:(Public|Private|Friend)\s+)?(?:(Static)\s+)?Sub\s+(\w+)\s*\(`)
	functionPattern = regexp.MustCompile(
		`(?i)^\s*(?:(Public|Private|Friend)\s+)?(?:(Static)\s+)?Function\s+(\w+)\s*\(`)
	propertyPattern = regexp.MustCompile(
		`(?i)^\s*(?:(Public|Private|Friend)\s+)?Property\s+(Get|Set|Let)\s+(\w+)\s*\(`)

	callPattern = regexp.MustCompile(`\b(\w+)\s*\(`)

	decisionPattern = regexp.MustCompile(`(?i)\b(ElseIf|If|For|While|Do|Case|And|Or)\b`)
	caseElsePattern = regexp.MustCompile(`(?i)\bCase\s+Else\b`)
)

// keywordDenylist holds the identifiers never reported as call targets:
// control flow, declarations, visibility, and statement keywords such as
// Call and New; built-in functions are not listed. This is the single
// source of truth for every code path that scans calls.
var keywordDenylist = map[string]struct{}{}

func init() {
	for _, kw := range []string{
		"If", "Then", "Else", "ElseIf", "End", "For", "Next", "Do", "Loop",
		"While", "Wend", "Select", "Case", "With", "Exit", "Sub", "Function",
		"Property", "Public", "Private", "Dim", "ReDim", "Const", "Type",
		"Enum", "Class", "New", "Set", "Let", "Get", "Call", "Return",
	} {
		keywordDenylist[strings.ToLower(kw)] = struct{}{}
	}
}

// IsKeyword reports whether word is on the call-target denylist.
func IsKeyword(word string) bool {
	_, ok := keywordDenylist[strings.ToLower(word)]
	return ok
}

// ParseProcedures extracts every Sub, Function, and Property accessor from
// the module source. Line numbers are 1-based; a procedure with no closer
// ends at the last line of the module.
func ParseProcedures(code string) []Procedure {
	lines := SplitLines(code)
	var procs []Procedure

	for i, line := range lines {
		startLine := i + 1
		if m := subPattern.FindStringSubmatch(line); m != nil {
			procs = append(procs, buildProcedure(lines, m[1], "Sub", m[3], startLine, true))
			continue
		}
		if m := functionPattern.FindStringSubmatch(line); m != nil {
			procs = append(procs, buildProcedure(lines, m[1], "Function", m[3], startLine, true))
			continue
		}
		if m := propertyPattern.FindStringSubmatch(line); m != nil {
			kind := "Property " + canonicalAccessor(m[2])
			procs = append(procs, buildProcedure(lines, m[1], kind, m[3], startLine, false))
		}
	}
	return procs
}

func buildProcedure(lines []string, visibility, kind, name string, startLine int, withCalls bool) Procedure {
	closer := kind
	if strings.HasPrefix(kind, "Property") {
		closer = "Property"
	}
	endLine := findEndStatement(lines, startLine, closer)
	span := strings.Join(lines[startLine-1:endLine], "\n")

	calls := []string{}
	if withCalls && endLine > startLine {
		// The opener line's own name parses like a call; skip it.
		calls = extractCalls(strings.Join(lines[startLine:endLine], "\n"))
	}
	return Procedure{
		Name:       name,
		Kind:       kind,
		Visibility: canonicalVisibility(visibility),
		StartLine:  startLine,
		EndLine:    endLine,
		Calls:      calls,
		Parameters: []string{},
		Complexity: complexity(span),
	}
}

// findEndStatement locates the "End Sub|Function|Property" closing the
// procedure opened at startLine. Missing closers run to end of module.
func findEndStatement(lines []string, startLine int, closer string) int {
	endPattern := regexp.MustCompile(`(?i)^\s*End\s+` + closer + `\b`)
	for i := startLine; i <= len(lines); i++ {
		if endPattern.MatchString(lines[i-1]) {
			return i
		}
	}
	return len(lines)
}

// extractCalls collects identifiers immediately followed by an opening
// parenthesis, minus the keyword denylist, sorted and deduplicated.
func extractCalls(span string) []string {
	seen := make(map[string]struct{})
	for _, m := range callPattern.FindAllStringSubmatch(span, -1) {
		name := m[1]
		if IsKeyword(name) {
			continue
		}
		seen[name] = struct{}{}
	}
	calls := make([]string, 0, len(seen))
	for name := range seen {
		calls = append(calls, name)
	}
	sort.Strings(calls)
	return calls
}

// complexity scores a span as 1 plus one per decision-introducing keyword.
// "Case Else" does not open a branch and is excluded.
func complexity(span string) int {
	score := 1 + len(decisionPattern.FindAllString(span, -1))
	score -= len(caseElsePattern.FindAllString(span, -1))
	if score < 1 {
		score = 1
	}
	return score
}

func canonicalVisibility(v string) string {
	switch strings.ToLower(v) {
	case "private":
		return "Private"
	case "friend":
		return "Friend"
	default:
		return "Public"
	}
}

func canonicalAccessor(a string) string {
	switch strings.ToLower(a) {
	case "let":
		return "Let"
	case "set":
		return "Set"
	default:
		return "Get"
	}
}

// SplitLines splits source text on any VBA line-ending convention.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
