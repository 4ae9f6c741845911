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

package inject

import (
	"fmt"
	"strings"
)

// asciiReplacements maps common Unicode characters to the ASCII spelling
// suggested in validation errors.
var asciiReplacements = []struct {
	From string
	To   string
}{
	{"✓", "[OK]"},
	{"✗", "[ERROR]"},
	{"→", "->"},
	{"➤", ">>"},
	{"•", "*"},
	{"—", "-"},
	{"–", "-"},
	{"“", "\""},
	{"”", "\""},
	{"‘", "'"},
	{"’", "'"},
	{"…", "..."},
	{"×", "x"},
	{"÷", "/"},
	{"≤", "<="},
	{"≥", ">="},
	{"≠", "<>"},
}

// DetectNonASCII scans code for characters above codepoint 127. VBA source
// carries no declared encoding and the host rejects anything non-ASCII, so
// the error names each offending character with its line and a suggested
// replacement table.
func DetectNonASCII(code string) (bool, string) {
	type hit struct {
		char rune
		line int
	}
	var hits []hit
	line := 1
	for _, r := range code {
		if r == '\n' {
			line++
			continue
		}
		if r > 127 {
			hits = append(hits, hit{char: r, line: line})
		}
	}
	if len(hits) == 0 {
		return false, ""
	}

	lineLists := make(map[rune][]string)
	var order []rune
	for _, h := range hits {
		l, seen := lineLists[h.char]
		if !seen {
			order = append(order, h.char)
		}
		if n := fmt.Sprint(h.line); len(l) == 0 || l[len(l)-1] != n {
			lineLists[h.char] = append(l, n)
		}
	}
	uniqueList := make([]string, 0, len(order))
	for _, r := range order {
		uniqueList = append(uniqueList, fmt.Sprintf("%q (line %s)", r, strings.Join(lineLists[r], ", ")))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "VBA only supports ASCII characters.\n\n")
	fmt.Fprintf(&sb, "Found %d non-ASCII character(s): %s\n\n",
		len(hits), strings.Join(uniqueList, ", "))
	sb.WriteString("Common replacements:\n")
	for _, r := range asciiReplacements {
		fmt.Fprintf(&sb, "  %s -> %s\n", r.From, r.To)
	}
	fmt.Fprintf(&sb, "\nFirst occurrence at line %d", hits[0].line)
	return true, sb.String()
}

// SuggestASCIIReplacements rewrites common Unicode characters to ASCII and
// describes what changed.
func SuggestASCIIReplacements(code string) (string, string) {
	suggested := code
	var changes []string
	for _, r := range asciiReplacements {
		count := strings.Count(suggested, r.From)
		if count == 0 {
			continue
		}
		suggested = strings.ReplaceAll(suggested, r.From, r.To)
		changes = append(changes, fmt.Sprintf("  %q -> %q (%d occurrence(s))", r.From, r.To, count))
	}
	if len(changes) == 0 {
		return code, "No common Unicode characters found to replace automatically."
	}
	return suggested, "Suggested replacements:\n" + strings.Join(changes, "\n")
}

// blockCounter tracks one opener/closer pair.
type blockCounter struct {
	label  string
	closer string
	count  int
}

// CheckBlockBalance counts block openers and closers line by line and
// rejects any imbalance: a closer without an opener fails immediately with
// its line number, unclosed openers fail at end of input.
func CheckBlockBalance(code string) (bool, string) {
	counters := map[string]*blockCounter{
		"if":       {label: "'If' block(s)", closer: "'End If'"},
		"for":      {label: "'For' loop(s)", closer: "'Next'"},
		"while":    {label: "'While' loop(s)", closer: "'Wend'"},
		"do":       {label: "'Do' loop(s)", closer: "'Loop'"},
		"with":     {label: "'With' block(s)", closer: "'End With'"},
		"select":   {label: "'Select Case' block(s)", closer: "'End Select'"},
		"sub":      {label: "'Sub' procedure(s)", closer: "'End Sub'"},
		"function": {label: "'Function' procedure(s)", closer: "'End Function'"},
	}

	for lineNum, raw := range strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n") {
		stripped := strings.TrimSpace(raw)
		if stripped == "" || strings.HasPrefix(stripped, "'") || strings.HasPrefix(stripped, "Rem ") {
			continue
		}
		// Drop inline comments before matching.
		if idx := strings.Index(stripped, "'"); idx >= 0 {
			stripped = strings.TrimSpace(stripped[:idx])
		}

		switch {
		case isMultiLineIf(stripped):
			counters["if"].count++
		case strings.HasPrefix(stripped, "ElseIf "), stripped == "Else", strings.HasPrefix(stripped, "Else "):
			// Branch keywords do not change nesting.
		case strings.HasPrefix(stripped, "End If"), stripped == "End If":
			if fail := closeBlock(counters["if"], "End If", "If", lineNum+1); fail != "" {
				return false, fail
			}
		case strings.HasPrefix(stripped, "For "):
			counters["for"].count++
		case strings.HasPrefix(stripped, "Next"):
			if fail := closeBlock(counters["for"], "Next", "For", lineNum+1); fail != "" {
				return false, fail
			}
		case strings.HasPrefix(stripped, "While "):
			counters["while"].count++
		case strings.HasPrefix(stripped, "Wend"):
			if fail := closeBlock(counters["while"], "Wend", "While", lineNum+1); fail != "" {
				return false, fail
			}
		case stripped == "Do", strings.HasPrefix(stripped, "Do While"), strings.HasPrefix(stripped, "Do Until"):
			counters["do"].count++
		case strings.HasPrefix(stripped, "Loop"):
			if fail := closeBlock(counters["do"], "Loop", "Do", lineNum+1); fail != "" {
				return false, fail
			}
		case strings.HasPrefix(stripped, "With "):
			counters["with"].count++
		case strings.HasPrefix(stripped, "End With"):
			if fail := closeBlock(counters["with"], "End With", "With", lineNum+1); fail != "" {
				return false, fail
			}
		case strings.HasPrefix(stripped, "Select Case "):
			counters["select"].count++
		case strings.HasPrefix(stripped, "End Select"):
			if fail := closeBlock(counters["select"], "End Select", "Select Case", lineNum+1); fail != "" {
				return false, fail
			}
		case isOpener(stripped, "Sub "):
			counters["sub"].count++
		case strings.HasPrefix(stripped, "End Sub"):
			if fail := closeBlock(counters["sub"], "End Sub", "Sub", lineNum+1); fail != "" {
				return false, fail
			}
		case isOpener(stripped, "Function "):
			counters["function"].count++
		case strings.HasPrefix(stripped, "End Function"):
			if fail := closeBlock(counters["function"], "End Function", "Function", lineNum+1); fail != "" {
				return false, fail
			}
		}
	}

	var errors []string
	for _, key := range []string{"if", "for", "while", "do", "with", "select", "sub", "function"} {
		c := counters[key]
		if c.count > 0 {
			errors = append(errors, fmt.Sprintf("%d unclosed %s - missing %s", c.count, c.label, c.closer))
		}
	}
	if len(errors) > 0 {
		return false, "VBA Syntax Error:\n  " + strings.Join(errors, "\n  ")
	}
	return true, ""
}

func closeBlock(c *blockCounter, closer, opener string, line int) string {
	c.count--
	if c.count < 0 {
		return fmt.Sprintf("Line %d: '%s' without matching '%s'", line, closer, opener)
	}
	return ""
}

// isMultiLineIf recognizes a block If: "If cond Then" with nothing (or
// just a colon) after Then. A single-line If carries its statement on the
// same line and needs no End If.
func isMultiLineIf(stripped string) bool {
	if !strings.HasPrefix(stripped, "If ") || !strings.Contains(stripped, " Then") {
		return false
	}
	if strings.HasSuffix(stripped, " _") {
		return false
	}
	_, after, _ := strings.Cut(stripped, " Then")
	after = strings.TrimSpace(after)
	return after == "" || after == ":"
}

func isOpener(stripped, keyword string) bool {
	return strings.HasPrefix(stripped, keyword) ||
		strings.HasPrefix(stripped, "Public "+keyword) ||
		strings.HasPrefix(stripped, "Private "+keyword)
}

// accessDefaults are lines the database host prepends to new modules.
var accessDefaults = map[string]bool{
	"Option Compare Database": true,
	"Option Compare Text":     true,
	"Option Compare Binary":   true,
}

// NormalizeCode prepares code for persistence comparison: trailing
// whitespace stripped per line, host-injected Option Compare defaults
// dropped, and leading/trailing blank lines removed. Leading whitespace
// stays, indentation is significant to the reader.
func NormalizeCode(code string, stripAccessDefaults bool) string {
	lines := strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n")
	var out []string
	for _, line := range lines {
		if stripAccessDefaults && accessDefaults[strings.TrimSpace(line)] {
			continue
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	for len(out) > 0 && strings.TrimSpace(out[0]) == "" {
		out = out[1:]
	}
	for len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
