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

// Package vbaerr defines the typed error kinds surfaced by the core.
// Callers branch with errors.As on the concrete types, or errors.Is on
// the sentinels; the service surface formats all of them uniformly.
package vbaerr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMacroPayload marks a valid container that carries no VBA project.
// It is informational: extraction over such a container yields an empty
// project, not a failure.
var ErrNoMacroPayload = errors.New("no VBA project present")

// NotFoundError reports a container path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// UnsupportedFormatError reports a file suffix outside the recognized set.
type UnsupportedFormatError struct {
	Suffix    string
	Supported []string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format: %s (supported: %s)",
		e.Suffix, strings.Join(e.Supported, ", "))
}

// FormatError reports a structural failure while decoding a container,
// compound file, or module stream.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ModuleNotFoundError reports an attempt to address a module that is not
// present in the project. Available carries the names that do exist.
type ModuleNotFoundError struct {
	Name      string
	Available []string
}

func (e *ModuleNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("module %q not found (project has no modules)", e.Name)
	}
	return fmt.Sprintf("module %q not found (available: %s)",
		e.Name, strings.Join(e.Available, ", "))
}

// ValidationError reports a pre-validation (non-ASCII, block imbalance) or
// post-validation (host parser) failure in the edit pipeline.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Detail)
}

// LockedError reports a file held exclusively by an uncontrolled process.
type LockedError struct {
	Path   string
	Reason string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("file locked: %s: %s", e.Path, e.Reason)
}

// PermissionDeniedError reports that the host refuses VBA project-model
// access (the "Trust access to the VBA project object model" setting).
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// ErrUnsupportedPlatform is returned when host automation is requested on a
// platform without the native automation facility. Read-only container
// operations keep working without it.
var ErrUnsupportedPlatform = errors.New(
	"Office automation requires Windows with Microsoft Office installed")

// SessionDeadError reports a liveness probe failure; the caller may retry,
// the registry has already discarded the dead entry.
type SessionDeadError struct {
	Path string
}

func (e *SessionDeadError) Error() string {
	return fmt.Sprintf("session for %s is no longer alive", e.Path)
}

// RangeTooLargeError reports a range read or write over the cell budget.
type RangeTooLargeError struct {
	Cells int
	Limit int
}

func (e *RangeTooLargeError) Error() string {
	return fmt.Sprintf("range too large: %d cells exceeds limit of %d", e.Cells, e.Limit)
}

// SQLError reports a failed query together with the statement that caused it.
type SQLError struct {
	Query  string
	Reason string
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL error: %s (query: %s)", e.Reason, e.Query)
}

// RollbackFailedError reports a post-save mismatch that could not be
// repaired automatically. BackupPath points at the copy to restore by hand.
type RollbackFailedError struct {
	BackupPath string
	Reason     string
}

func (e *RollbackFailedError) Error() string {
	return fmt.Sprintf("rollback failed: %s (backup preserved at %s)", e.Reason, e.BackupPath)
}
