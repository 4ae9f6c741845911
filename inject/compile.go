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

	"github.com/AlexisTrouve/vba-mcp-server/host"
)

// procOfLineCap bounds the per-line parse sweep on very large modules.
const procOfLineCap = 1000

// CompileModule forces the host to parse a module: read every line, run
// the block-balance check, then ask ProcOfLine for each line, which pushes
// the host's own parser over the code. Structural errors come back as a
// (false, detail) pair; "line not inside a procedure" responses are fine.
func CompileModule(comp host.Component) (bool, string) {
	cm := comp.Code()
	count, err := cm.CountOfLines()
	if err != nil {
		return false, fmt.Sprintf("failed to read module: %v", err)
	}
	if count == 0 {
		return true, ""
	}

	full, err := cm.Lines(1, count)
	if err != nil {
		return false, fmt.Sprintf("failed to read code: %v", err)
	}
	if ok, detail := CheckBlockBalance(full); !ok {
		return false, detail
	}

	limit := count
	if limit > procOfLineCap {
		limit = procOfLineCap
	}
	for line := 1; line <= limit; line++ {
		if _, err := cm.ProcOfLine(line); err != nil {
			msg := err.Error()
			if strings.Contains(msg, "Compile error") || strings.Contains(msg, "Syntax error") {
				return false, fmt.Sprintf("Syntax error at line %d: %s", line, msg)
			}
		}
	}

	if _, err := comp.Name(); err != nil {
		return false, fmt.Sprintf("module validation error: %v", err)
	}
	return true, ""
}

// CompileProject runs CompileModule over every component and collects
// failures.
func CompileProject(project host.Project) (bool, []string) {
	comps, err := project.Components()
	if err != nil {
		return false, []string{err.Error()}
	}
	var failures []string
	for _, comp := range comps {
		name, err := comp.Name()
		if err != nil {
			failures = append(failures, err.Error())
			continue
		}
		if ok, detail := CompileModule(comp); !ok {
			failures = append(failures, fmt.Sprintf("%s: %s", name, detail))
		}
	}
	return len(failures) == 0, failures
}
