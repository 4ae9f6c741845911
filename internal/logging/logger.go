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
package logging

import (
	"os"
	"sync"

	"github.com/pterm/pterm"
)

// init configures pterm styles to use foreground colors only (no backgrounds)
func init() {
	pterm.Info = *pterm.Info.WithPrefix(pterm.Prefix{
		Text:  "INFO",
		Style: pterm.NewStyle(pterm.FgBlue),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Success = *pterm.Success.WithPrefix(pterm.Prefix{
		Text:  "SUCCESS",
		Style: pterm.NewStyle(pterm.FgGreen),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Warning = *pterm.Warning.WithPrefix(pterm.Prefix{
		Text:  "WARNING",
		Style: pterm.NewStyle(pterm.FgYellow),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Error = *pterm.Error.WithPrefix(pterm.Prefix{
		Text:  "ERROR",
		Style: pterm.NewStyle(pterm.FgRed),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)

	pterm.Debug = *pterm.Debug.WithPrefix(pterm.Prefix{
		Text:  "DEBUG",
		Style: pterm.NewStyle(pterm.FgCyan),
	}).WithMessageStyle(&pterm.ThemeDefault.DefaultText)
}

var (
	mu       sync.Mutex
	mcpMode  bool
	debugOn  bool
	quietOn  bool
	disabled bool
)

// EnterMCPMode redirects all pterm output to stderr so that the MCP stdio
// transport keeps exclusive ownership of stdout.
func EnterMCPMode() {
	mu.Lock()
	defer mu.Unlock()
	mcpMode = true
	pterm.SetDefaultOutput(os.Stderr)
}

// SetDebugEnabled toggles debug-level output.
func SetDebugEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	debugOn = enabled
	if enabled {
		pterm.EnableDebugMessages()
	} else {
		pterm.DisableDebugMessages()
	}
}

// SetQuietEnabled suppresses info and success output, keeping warnings and
// errors visible.
func SetQuietEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quietOn = enabled
}

// DisableForTests silences all output. Tests that assert on formatted
// results call this to keep the test log readable.
func DisableForTests() {
	mu.Lock()
	defer mu.Unlock()
	disabled = true
}

func suppressed(level pterm.PrefixPrinter) bool {
	mu.Lock()
	defer mu.Unlock()
	if disabled {
		return true
	}
	if quietOn && (level.Prefix.Text == "INFO" || level.Prefix.Text == "SUCCESS") {
		return true
	}
	return false
}

// Debug logs a debug message when debug output is enabled.
func Debug(format string, args ...any) {
	if suppressed(pterm.Debug) {
		return
	}
	pterm.Debug.Printfln(format, args...)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	if suppressed(pterm.Info) {
		return
	}
	pterm.Info.Printfln(format, args...)
}

// Success logs a success message.
func Success(format string, args ...any) {
	if suppressed(pterm.Success) {
		return
	}
	pterm.Success.Printfln(format, args...)
}

// Warning logs a warning message.
func Warning(format string, args ...any) {
	if suppressed(pterm.Warning) {
		return
	}
	pterm.Warning.Printfln(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	if suppressed(pterm.Error) {
		return
	}
	pterm.Error.Printfln(format, args...)
}
