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

package bridge

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// MacroInfo describes one invocable public procedure.
type MacroInfo struct {
	Module     string `json:"module"`
	Name       string `json:"name"`
	Kind       string `json:"type"` // Sub or Function
	Signature  string `json:"signature"`
	ReturnType string `json:"return_type,omitempty"`
}

var (
	macroSubPattern = regexp.MustCompile(
		`(?i)^\s*(?:Public\s+)?Sub\s+(\w+)\s*\(([^)]*)\)`)
	macroFunctionPattern = regexp.MustCompile(
		`(?i)^\s*(?:Public\s+)?Function\s+(\w+)\s*\(([^)]*)\)(?:\s+As\s+(\w+))?`)
	privatePrefix = regexp.MustCompile(`(?i)^\s*(Private|Friend)\s`)
)

// EnumerateMacros walks every module's lines and collects public Subs and
// Functions with their signatures. Functions without a declared return
// type default to Variant.
func EnumerateMacros(sess *session.Session) ([]MacroInfo, error) {
	project, err := sess.Project()
	if err != nil {
		return nil, err
	}
	comps, err := project.Components()
	if err != nil {
		return nil, err
	}

	var out []MacroInfo
	for _, comp := range comps {
		moduleName, err := comp.Name()
		if err != nil {
			return nil, err
		}
		cm := comp.Code()
		count, err := cm.CountOfLines()
		if err != nil {
			return nil, err
		}
		if count == 0 {
			continue
		}
		code, err := cm.Lines(1, count)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(strings.ReplaceAll(code, "\r\n", "\n"), "\n") {
			if privatePrefix.MatchString(line) {
				continue
			}
			if m := macroSubPattern.FindStringSubmatch(line); m != nil {
				out = append(out, MacroInfo{
					Module:    moduleName,
					Name:      m[1],
					Kind:      "Sub",
					Signature: fmt.Sprintf("%s(%s)", m[1], strings.TrimSpace(m[2])),
				})
				continue
			}
			if m := macroFunctionPattern.FindStringSubmatch(line); m != nil {
				returnType := m[3]
				if returnType == "" {
					returnType = "Variant"
				}
				out = append(out, MacroInfo{
					Module:     moduleName,
					Name:       m[1],
					Kind:       "Function",
					Signature:  fmt.Sprintf("%s(%s)", m[1], strings.TrimSpace(m[2])),
					ReturnType: returnType,
				})
			}
		}
	}
	return out, nil
}

// RunResult reports a successful macro invocation.
type RunResult struct {
	Macro      string `json:"macro"`
	FormatUsed string `json:"format_used"`
	Value      any    `json:"return_value,omitempty"`
	HasValue   bool   `json:"-"`
}

// RunMacro invokes a macro given as "Module.Name" or "Name", trying the
// family-specific candidate formats in order. With enableMacros the host's
// automation-security level is lowered for the call and restored on every
// exit path.
func RunMacro(sess *session.Session, macroName string, args []any, enableMacros bool) (*RunResult, error) {
	formats, err := invocationFormats(sess, macroName)
	if err != nil {
		return nil, err
	}

	var result *RunResult
	var lastErr error
	run := func() error {
		for _, format := range formats {
			value, err := sess.Host().Run(format, args...)
			if err != nil {
				lastErr = err
				continue
			}
			result = &RunResult{
				Macro:      macroName,
				FormatUsed: format,
				Value:      value,
				HasValue:   value != nil,
			}
			return nil
		}
		return lastErr
	}

	if enableMacros {
		err = withLoweredSecurity(sess.Host(), run)
	} else {
		err = run()
	}
	if result != nil {
		return result, nil
	}

	// Nothing matched: enumerate what does exist so the error is usable.
	detail := fmt.Sprintf("macro %q not found in %s\n\nFormats tried: %s",
		macroName, filepath.Base(sess.Path), strings.Join(formats, ", "))
	if available, listErr := EnumerateMacros(sess); listErr == nil && len(available) > 0 {
		var names []string
		for _, m := range available {
			names = append(names, fmt.Sprintf("  - %s.%s (%s)", m.Module, m.Name, m.Kind))
		}
		detail += "\n\nAvailable macros:\n" + strings.Join(names, "\n")
	}
	if err != nil {
		detail += fmt.Sprintf("\nLast error: %v", err)
	}
	return nil, fmt.Errorf("%s", detail)
}

// invocationFormats builds the candidate invocation strings in the order
// the host family resolves them.
func invocationFormats(sess *session.Session, macroName string) ([]string, error) {
	moduleName, procName, qualified := strings.Cut(macroName, ".")
	if !qualified {
		procName = macroName
		moduleName = ""
	}

	switch sess.Family {
	case vbaproject.FamilySpreadsheet:
		fileName, err := sess.Document().Name()
		if err != nil {
			return nil, err
		}
		if moduleName != "" {
			return []string{
				moduleName + "." + procName,
				fmt.Sprintf("'%s'!%s.%s", fileName, moduleName, procName),
				procName,
				fmt.Sprintf("'%s'!%s", fileName, procName),
			}, nil
		}
		return []string{
			procName,
			fmt.Sprintf("'%s'!%s", fileName, procName),
		}, nil
	case vbaproject.FamilyDatabase:
		// The database host rejects the module-prefixed form.
		return []string{procName}, nil
	default:
		if moduleName != "" {
			return []string{procName, moduleName + "." + procName}, nil
		}
		return []string{procName}, nil
	}
}

// withLoweredSecurity brackets fn between lowering the host's automation
// security and restoring the observed level, including when fn panics.
// Hosts that refuse the property run fn at the current level.
func withLoweredSecurity(h host.Host, fn func() error) error {
	original, err := h.AutomationSecurity()
	if err != nil {
		logging.Warning("cannot read automation security, running at current level: %v", err)
		return fn()
	}
	if err := h.SetAutomationSecurity(host.SecurityLow); err != nil {
		logging.Warning("cannot lower automation security: %v", err)
	}
	defer func() {
		if err := h.SetAutomationSecurity(original); err != nil {
			logging.Warning("cannot restore automation security: %v", err)
		}
	}()
	return fn()
}
