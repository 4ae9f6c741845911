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

// Package backup keeps timestamped copies of containers in a sibling
// directory, tracked by a JSON manifest. Every destructive pipeline step
// goes through here first.
package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/AlexisTrouve/vba-mcp-server/internal/platform"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

const (
	// DirName is the hidden sibling directory that holds backups.
	DirName = ".vba_backups"

	manifestName = ".vba_backups.json"

	// IDFormat is the backup id layout: creation time to the second.
	IDFormat = "20060102_150405"
)

// Entry is one backup in the manifest.
type Entry struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Created      string `json:"created"`
	OriginalSize int64  `json:"original_size"`
}

// Manifest enumerates the backups that exist for one container.
type Manifest struct {
	File    string  `json:"file"`
	Backups []Entry `json:"backups"`
}

// Manager creates, lists, restores, and deletes backups.
type Manager struct {
	fs    afero.Fs
	clock platform.TimeProvider
}

// NewManager builds a manager over the given filesystem and clock.
func NewManager(fs afero.Fs, clock platform.TimeProvider) *Manager {
	return &Manager{fs: fs, clock: clock}
}

// NewOSManager builds a manager over the real filesystem and clock.
func NewOSManager() *Manager {
	return NewManager(afero.NewOsFs(), platform.NewRealTimeProvider())
}

// Dir returns the backup directory for a container path.
func Dir(file string) string {
	return filepath.Join(filepath.Dir(file), DirName)
}

func backupName(file, id string) string {
	suffix := filepath.Ext(file)
	stem := strings.TrimSuffix(filepath.Base(file), suffix)
	return fmt.Sprintf("%s_backup_%s%s", stem, id, suffix)
}

// Create copies the container into the backup directory and appends a
// manifest entry. It returns the entry and the absolute backup path.
func (m *Manager) Create(file string) (Entry, string, error) {
	info, err := m.fs.Stat(file)
	if err != nil {
		return Entry{}, "", &vbaerr.NotFoundError{Path: file}
	}

	now := m.clock.Now()
	entry := Entry{
		ID:           now.Format(IDFormat),
		Filename:     backupName(file, now.Format(IDFormat)),
		Created:      now.Format("2006-01-02T15:04:05"),
		OriginalSize: info.Size(),
	}

	dir := Dir(file)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return Entry{}, "", err
	}
	backupPath := filepath.Join(dir, entry.Filename)
	if err := m.copyFile(file, backupPath); err != nil {
		return Entry{}, "", err
	}

	manifest, err := m.loadManifest(file)
	if err != nil {
		return Entry{}, "", err
	}
	manifest.Backups = append(manifest.Backups, entry)
	if err := m.saveManifest(file, manifest); err != nil {
		return Entry{}, "", err
	}
	return entry, backupPath, nil
}

// List returns the backups for a container, most recent first.
func (m *Manager) List(file string) ([]Entry, error) {
	manifest, err := m.loadManifest(file)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(manifest.Backups))
	for i, e := range manifest.Backups {
		out[len(out)-1-i] = e
	}
	return out, nil
}

// Restore overwrites the container with the named backup, after tucking a
// safety copy of the current file into the backup directory.
func (m *Manager) Restore(file, id string) (Entry, error) {
	entry, err := m.find(file, id)
	if err != nil {
		return Entry{}, err
	}
	backupPath := filepath.Join(Dir(file), entry.Filename)
	if ok, _ := afero.Exists(m.fs, backupPath); !ok {
		return Entry{}, &vbaerr.NotFoundError{Path: backupPath}
	}

	if ok, _ := afero.Exists(m.fs, file); ok {
		suffix := filepath.Ext(file)
		stem := strings.TrimSuffix(filepath.Base(file), suffix)
		safety := fmt.Sprintf("%s_pre_restore_%s%s", stem, m.clock.Now().Format(IDFormat), suffix)
		if err := m.copyFile(file, filepath.Join(Dir(file), safety)); err != nil {
			return Entry{}, err
		}
	}

	if err := m.copyFile(backupPath, file); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes a backup file and its manifest entry.
func (m *Manager) Delete(file, id string) error {
	entry, err := m.find(file, id)
	if err != nil {
		return err
	}
	backupPath := filepath.Join(Dir(file), entry.Filename)
	if ok, _ := afero.Exists(m.fs, backupPath); ok {
		if err := m.fs.Remove(backupPath); err != nil {
			return err
		}
	}

	manifest, err := m.loadManifest(file)
	if err != nil {
		return err
	}
	kept := manifest.Backups[:0]
	for _, e := range manifest.Backups {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	manifest.Backups = kept
	return m.saveManifest(file, manifest)
}

func (m *Manager) find(file, id string) (Entry, error) {
	manifest, err := m.loadManifest(file)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range manifest.Backups {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, &vbaerr.NotFoundError{Path: "backup " + id}
}

var backupFilePattern = regexp.MustCompile(`_backup_(\d{8}_\d{6})(\.[^.]+)?$`)

// loadManifest reads the manifest and reconciles it against the directory:
// backup files created before a crash cut off the manifest write are
// re-adopted by scanning for the timestamped naming pattern.
func (m *Manager) loadManifest(file string) (*Manifest, error) {
	manifest := &Manifest{File: filepath.Base(file)}
	manifestPath := filepath.Join(Dir(file), manifestName)

	if ok, _ := afero.Exists(m.fs, manifestPath); ok {
		raw, err := afero.ReadFile(m.fs, manifestPath)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, manifest); err != nil {
			return nil, fmt.Errorf("corrupt backup manifest %s: %w", manifestPath, err)
		}
	}

	known := make(map[string]bool, len(manifest.Backups))
	for _, e := range manifest.Backups {
		known[e.Filename] = true
	}

	suffix := filepath.Ext(file)
	stem := strings.TrimSuffix(filepath.Base(file), suffix)
	entries, err := afero.ReadDir(m.fs, Dir(file))
	if err != nil {
		// No backup directory yet.
		return manifest, nil
	}
	adopted := false
	for _, fi := range entries {
		name := fi.Name()
		if known[name] || !strings.HasPrefix(name, stem+"_backup_") {
			continue
		}
		match := backupFilePattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		manifest.Backups = append(manifest.Backups, Entry{
			ID:           match[1],
			Filename:     name,
			Created:      fi.ModTime().Format("2006-01-02T15:04:05"),
			OriginalSize: fi.Size(),
		})
		adopted = true
	}
	if adopted {
		sort.Slice(manifest.Backups, func(i, j int) bool {
			return manifest.Backups[i].ID < manifest.Backups[j].ID
		})
	}
	return manifest, nil
}

// saveManifest writes the manifest atomically: write to a temp name in the
// same directory, then rename over the old file.
func (m *Manager) saveManifest(file string, manifest *Manifest) error {
	dir := Dir(file)
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, manifestName+".tmp")
	if err := afero.WriteFile(m.fs, tmp, raw, 0o644); err != nil {
		return err
	}
	return m.fs.Rename(tmp, filepath.Join(dir, manifestName))
}

func (m *Manager) copyFile(src, dst string) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := m.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
