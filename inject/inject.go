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

// Package inject implements the edit pipeline: validate a replacement
// module body, apply it through a live session, recompile, verify that it
// persisted, and roll back on any failure.
package inject

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// Result reports what the pipeline did.
type Result struct {
	Action        string `json:"action"` // created or updated
	Module        string `json:"module"`
	Validated     bool   `json:"validated"`
	Verified      bool   `json:"verified"`
	BackupPath    string `json:"backup_path,omitempty"`
	BackupSkipped bool   `json:"backup_skipped,omitempty"`
}

// Pipeline wires the edit flow to its collaborators.
type Pipeline struct {
	Sessions *session.Manager
	Backups  *backup.Manager
	Fs       afero.Fs
}

// NewPipeline builds a pipeline over the real filesystem.
func NewPipeline(sessions *session.Manager, backups *backup.Manager) *Pipeline {
	return &Pipeline{Sessions: sessions, Backups: backups, Fs: afero.NewOsFs()}
}

// Inject replaces or creates the named module with code.
func (p *Pipeline) Inject(path, moduleName, code string, createBackup bool) (*Result, error) {
	// Pre-validation happens before anything touches the file.
	if bad, detail := DetectNonASCII(code); bad {
		_, suggestions := SuggestASCIIReplacements(code)
		return nil, &vbaerr.ValidationError{Detail: detail + "\n\n" + suggestions}
	}
	if ok, detail := CheckBlockBalance(code); !ok {
		return nil, &vbaerr.ValidationError{Detail: detail}
	}

	result := &Result{Module: moduleName}

	// A container already held by a session can refuse the copy; the
	// pipeline continues without a backup and says so.
	if createBackup {
		_, backupPath, err := p.Backups.Create(path)
		if err != nil {
			logging.Warning("could not create backup for %s: %v", path, err)
			result.BackupSkipped = true
		} else {
			result.BackupPath = backupPath
		}
	}

	sess, err := p.Sessions.GetOrCreate(path, false, false)
	if err != nil {
		return nil, err
	}
	sess.Touch(p.Sessions.Clock().Now())

	project, err := sess.Project()
	if err != nil {
		return nil, err
	}

	comp, oldCode, err := p.mutate(project, moduleName, code, result)
	if err != nil {
		return nil, err
	}

	// Post-validation drives the host's parser over the new module; any
	// failure rolls the mutation back before the file is saved.
	if ok, detail := CompileModule(comp); !ok {
		if rbErr := p.rollbackModule(project, comp, oldCode); rbErr != nil {
			return nil, &vbaerr.RollbackFailedError{
				BackupPath: result.BackupPath,
				Reason:     fmt.Sprintf("validation failed (%s) and restore failed: %v", detail, rbErr),
			}
		}
		restored := "Module not created."
		if oldCode != "" {
			restored = "Old code restored."
		}
		return nil, &vbaerr.ValidationError{
			Detail: fmt.Sprintf("%s\n\nCode was NOT injected. File unchanged.\n%s", detail, restored),
		}
	}
	result.Validated = true

	if err := sess.Document().Save(); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", path, err)
	}

	if err := p.verify(sess, moduleName, code); err != nil {
		return nil, p.recoverFromVerifyFailure(sess, result, err)
	}
	result.Verified = true
	return result, nil
}

// mutate replaces the module body, or creates a standard module when the
// name is absent. It returns the prior body for rollback ("" when the
// module was created).
func (p *Pipeline) mutate(project host.Project, moduleName, code string, result *Result) (host.Component, string, error) {
	comp, err := FindComponent(project, moduleName)
	if err != nil {
		return nil, "", err
	}

	if comp != nil {
		cm := comp.Code()
		oldCode := ""
		count, err := cm.CountOfLines()
		if err != nil {
			return nil, "", err
		}
		if count > 0 {
			if oldCode, err = cm.Lines(1, count); err != nil {
				return nil, "", err
			}
			if err := cm.DeleteLines(1, count); err != nil {
				return nil, "", err
			}
		}
		if err := cm.AddFromString(code); err != nil {
			return nil, "", err
		}
		result.Action = "updated"
		return comp, oldCode, nil
	}

	comp, err = project.AddStandardModule(moduleName)
	if err != nil {
		return nil, "", err
	}
	if err := comp.Code().AddFromString(code); err != nil {
		return nil, "", err
	}
	result.Action = "created"
	return comp, "", nil
}

func (p *Pipeline) rollbackModule(project host.Project, comp host.Component, oldCode string) error {
	if oldCode == "" {
		return project.RemoveComponent(comp)
	}
	cm := comp.Code()
	count, err := cm.CountOfLines()
	if err != nil {
		return err
	}
	if count > 0 {
		if err := cm.DeleteLines(1, count); err != nil {
			return err
		}
	}
	return cm.AddFromString(oldCode)
}

// verify confirms the save persisted. The database host locks its file
// exclusively, so verification reads back through the live session; other
// families reopen the file in a throwaway read-only instance.
func (p *Pipeline) verify(sess *session.Session, moduleName, expected string) error {
	if sess.Family == vbaproject.FamilyDatabase {
		project, err := sess.Project()
		if err != nil {
			return err
		}
		return compareModule(project, moduleName, expected)
	}
	return p.verifyFresh(sess, moduleName, expected)
}

func (p *Pipeline) verifyFresh(sess *session.Session, moduleName, expected string) error {
	h, err := p.Sessions.Factory()(sess.Family)
	if err != nil {
		return err
	}
	defer h.Release()
	if err := h.SetVisible(false); err != nil {
		logging.Debug("verification host visibility: %v", err)
	}
	if err := h.SetDisplayAlerts(false); err != nil {
		logging.Debug("verification host alerts: %v", err)
	}

	doc, err := h.Open(sess.Path, true)
	if err != nil {
		h.Quit()
		return err
	}
	defer func() {
		doc.Close(false)
		doc.Release()
		h.Quit()
	}()

	project, err := doc.Project()
	if err != nil {
		return err
	}
	defer project.Release()
	return compareModule(project, moduleName, expected)
}

func compareModule(project host.Project, moduleName, expected string) error {
	comp, err := FindComponent(project, moduleName)
	if err != nil {
		return err
	}
	if comp == nil {
		return fmt.Errorf("module %q not found in saved file", moduleName)
	}
	cm := comp.Code()
	count, err := cm.CountOfLines()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("module %q exists but is empty", moduleName)
	}
	actual, err := cm.Lines(1, count)
	if err != nil {
		return err
	}
	want := NormalizeCode(expected, true)
	got := NormalizeCode(actual, true)
	if want != got {
		return fmt.Errorf("code mismatch in saved file (expected %d chars, got %d chars)",
			len(want), len(got))
	}
	return nil
}

// recoverFromVerifyFailure restores the backup when the container is not
// exclusively held; otherwise the backup path is reported for manual
// recovery.
func (p *Pipeline) recoverFromVerifyFailure(sess *session.Session, result *Result, cause error) error {
	if result.BackupPath == "" {
		return &vbaerr.ValidationError{Detail: "injection verification failed: " + cause.Error()}
	}
	if sess.Family == vbaproject.FamilyDatabase {
		return &vbaerr.RollbackFailedError{
			BackupPath: result.BackupPath,
			Reason: "verification failed (" + cause.Error() +
				") and the database host holds the file; close it and restore manually",
		}
	}
	if err := p.copyFile(result.BackupPath, sess.Path); err != nil {
		return &vbaerr.RollbackFailedError{
			BackupPath: result.BackupPath,
			Reason:     fmt.Sprintf("verification failed (%v) and restore failed: %v", cause, err),
		}
	}
	return &vbaerr.ValidationError{
		Detail: fmt.Sprintf("injection verification failed: %v\nFile restored from backup: %s",
			cause, result.BackupPath),
	}
}

func (p *Pipeline) copyFile(src, dst string) error {
	in, err := p.Fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := p.Fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// FindComponent locates a project component by case-insensitive name.
// A nil component with nil error means not present.
func FindComponent(project host.Project, name string) (host.Component, error) {
	comps, err := project.Components()
	if err != nil {
		return nil, err
	}
	for _, c := range comps {
		cName, err := c.Name()
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(cName, name) {
			return c, nil
		}
	}
	return nil, nil
}
