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
package backup_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/internal/platform"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

const testFile = "/work/report.xlsm"

func newManager(t *testing.T) (*backup.Manager, afero.Fs, *platform.MockTimeProvider) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/work", 0o755))
	require.NoError(t, afero.WriteFile(fs, testFile, []byte("original contents"), 0o644))
	clock := platform.NewMockTimeProvider(time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local))
	return backup.NewManager(fs, clock), fs, clock
}

func TestCreateAndList(t *testing.T) {
	mgr, fs, clock := newManager(t)

	entry, path, err := mgr.Create(testFile)
	require.NoError(t, err)
	assert.Equal(t, "20250314_092653", entry.ID)
	assert.Equal(t, "report_backup_20250314_092653.xlsm", entry.Filename)
	assert.Equal(t, int64(len("original contents")), entry.OriginalSize)

	copied, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "original contents", string(copied))

	clock.AdvanceTime(90 * time.Second)
	_, _, err = mgr.Create(testFile)
	require.NoError(t, err)

	entries, err := mgr.List(testFile)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Most recent first.
	assert.Equal(t, "20250314_092823", entries[0].ID)
	assert.Equal(t, "20250314_092653", entries[1].ID)
}

func TestCreateMissingFile(t *testing.T) {
	mgr, _, _ := newManager(t)
	_, _, err := mgr.Create("/work/absent.xlsm")
	var notFound *vbaerr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRestoreTakesSafetyCopy(t *testing.T) {
	mgr, fs, clock := newManager(t)

	entry, _, err := mgr.Create(testFile)
	require.NoError(t, err)

	// The file changes after the backup.
	require.NoError(t, afero.WriteFile(fs, testFile, []byte("modified contents"), 0o644))
	clock.AdvanceTime(time.Minute)

	restored, err := mgr.Restore(testFile, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, restored.ID)

	current, err := afero.ReadFile(fs, testFile)
	require.NoError(t, err)
	assert.Equal(t, "original contents", string(current))

	// The pre-restore state is preserved in the backup directory.
	entries, err := afero.ReadDir(fs, backup.Dir(testFile))
	require.NoError(t, err)
	safetyFound := false
	for _, fi := range entries {
		if len(fi.Name()) > 0 && fi.Name() != entry.Filename &&
			filepath.Ext(fi.Name()) == ".xlsm" {
			safetyFound = true
			data, err := afero.ReadFile(fs, filepath.Join(backup.Dir(testFile), fi.Name()))
			require.NoError(t, err)
			assert.Equal(t, "modified contents", string(data))
		}
	}
	assert.True(t, safetyFound, "expected a pre-restore safety copy")
}

func TestRestoreUnknownID(t *testing.T) {
	mgr, _, _ := newManager(t)
	_, err := mgr.Restore(testFile, "19990101_000000")
	var notFound *vbaerr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRestoreMissingBackupFileIsReported(t *testing.T) {
	mgr, fs, _ := newManager(t)
	entry, path, err := mgr.Create(testFile)
	require.NoError(t, err)
	require.NoError(t, fs.Remove(path))

	_, err = mgr.Restore(testFile, entry.ID)
	var notFound *vbaerr.NotFoundError
	require.ErrorAs(t, err, &notFound, "a manifest entry without its file must fail, never silently succeed")
}

func TestDeleteRemovesFileAndEntry(t *testing.T) {
	mgr, fs, _ := newManager(t)
	entry, path, err := mgr.Create(testFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(testFile, entry.ID))

	exists, _ := afero.Exists(fs, path)
	assert.False(t, exists)
	entries, err := mgr.List(testFile)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManifestRecoversOrphanedBackups(t *testing.T) {
	mgr, fs, _ := newManager(t)

	// Simulate a crash between the copy and the manifest append: the
	// backup file exists but no manifest mentions it.
	dir := backup.Dir(testFile)
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	orphan := filepath.Join(dir, "report_backup_20250101_120000.xlsm")
	require.NoError(t, afero.WriteFile(fs, orphan, []byte("orphan"), 0o644))

	entries, err := mgr.List(testFile)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "20250101_120000", entries[0].ID)
}

func TestManifestIsWellFormedJSON(t *testing.T) {
	mgr, fs, _ := newManager(t)
	entry, _, err := mgr.Create(testFile)
	require.NoError(t, err)

	raw, err := afero.ReadFile(fs, filepath.Join(backup.Dir(testFile), ".vba_backups.json"))
	require.NoError(t, err)

	var manifest backup.Manifest
	require.NoError(t, json.Unmarshal(raw, &manifest))
	assert.Equal(t, "report.xlsm", manifest.File)
	require.Len(t, manifest.Backups, 1)
	assert.Equal(t, entry.ID, manifest.Backups[0].ID)
}
