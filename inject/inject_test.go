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
package inject_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/backup"
	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/inject"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/internal/platform"
	"github.com/AlexisTrouve/vba-mcp-server/session"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

func TestMain(m *testing.M) {
	logging.DisableForTests()
	os.Exit(m.Run())
}

type fixture struct {
	world    *host.MockWorld
	clock    *platform.MockTimeProvider
	manager  *session.Manager
	pipeline *inject.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		world: host.NewMockWorld(),
		clock: platform.NewMockTimeProvider(time.Date(2025, 6, 1, 8, 0, 0, 0, time.Local)),
	}
	f.manager = session.NewManager(session.Options{
		Factory:   f.world.Factory(),
		Clock:     f.clock,
		LockProbe: func(string) bool { return false },
	})
	f.pipeline = inject.NewPipeline(f.manager, backup.NewManager(afero.NewOsFs(), f.clock))
	t.Cleanup(f.manager.Shutdown)
	return f
}

func tempContainer(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("container bytes"), 0o644))
	resolved, err := filepath.EvalSymlinks(path)
	require.NoError(t, err)
	return resolved
}

const validBody = "Public Function TestFunction() As String\r\n" +
	"    TestFunction = \"OK\"\r\n" +
	"End Function"

func TestInjectCreatesModule(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	result, err := f.pipeline.Inject(file, "IntegrationTest", validBody, true)
	require.NoError(t, err)

	assert.Equal(t, "created", result.Action)
	assert.True(t, result.Validated)
	assert.True(t, result.Verified)
	assert.NotEmpty(t, result.BackupPath)

	// A backup entry appears in the manifest.
	entries, err := backup.NewManager(afero.NewOsFs(), f.clock).List(file)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The module persisted.
	assert.Contains(t, f.world.File(file).Modules["IntegrationTest"], "TestFunction")
}

func TestInjectUpdatesExistingModule(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	_, err := f.pipeline.Inject(file, "Mod", "Sub Old()\r\nEnd Sub", false)
	require.NoError(t, err)

	result, err := f.pipeline.Inject(file, "MOD", validBody, false)
	require.NoError(t, err)
	assert.Equal(t, "updated", result.Action, "module lookup is case-insensitive")
	assert.Contains(t, f.world.File(file).Modules["Mod"], "TestFunction")
	assert.NotContains(t, f.world.File(file).Modules["Mod"], "Old")
}

func TestInjectIdempotence(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	first, err := f.pipeline.Inject(file, "Mod", validBody, false)
	require.NoError(t, err)
	assert.Equal(t, "created", first.Action)
	stateAfterFirst := f.world.File(file).Modules["Mod"]

	second, err := f.pipeline.Inject(file, "Mod", validBody, false)
	require.NoError(t, err)
	assert.Equal(t, "updated", second.Action)
	assert.Equal(t, stateAfterFirst, f.world.File(file).Modules["Mod"])
}

func TestInjectRejectsNonASCII(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")
	before, err := os.ReadFile(file)
	require.NoError(t, err)

	_, err = f.pipeline.Inject(file, "X", "MsgBox \"✓\"", true)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "line 1")
	assert.Contains(t, validation.Detail, "[OK]", "the replacement table names a suggestion")

	// Nothing was opened or written.
	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, 0, f.world.HostCount())
}

func TestInjectRejectsUnbalancedBlocks(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	code := "Public Sub X()\r\n    If True Then\r\n        MsgBox \"x\"\r\nEnd Sub"
	_, err := f.pipeline.Inject(file, "X", code, false)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "unclosed 'If'")
	assert.Equal(t, 0, f.world.HostCount(), "pre-validation failures never open a session")
}

func TestPostValidationRollsBackUpdate(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	_, err := f.pipeline.Inject(file, "Mod", "Sub Old()\r\nEnd Sub", false)
	require.NoError(t, err)

	f.world.File(file).ProcParseErr = map[string]error{"Mod": errors.New("Compile error: expected End Sub")}
	_, err = f.pipeline.Inject(file, "Mod", validBody, false)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "Old code restored")
	assert.Contains(t, f.world.File(file).Modules["Mod"], "Old")
}

func TestPostValidationRemovesCreatedModule(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	f.world.File(file).ProcParseErr = map[string]error{"Fresh": errors.New("Syntax error in line")}
	_, err := f.pipeline.Inject(file, "Fresh", validBody, false)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "Module not created")
	_, exists := f.world.File(file).Modules["Fresh"]
	assert.False(t, exists)
}

func TestVerifyFailureRestoresBackup(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	// The save silently drops the module: verification must catch it and
	// put the backup copy back.
	f.world.File(file).DropOnSave = map[string]bool{"Mod": true}
	_, err := f.pipeline.Inject(file, "Mod", validBody, true)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "restored from backup")

	restored, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "container bytes", string(restored))
}

func TestVerifyFailureWithoutBackup(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	f.world.File(file).DropOnSave = map[string]bool{"Mod": true}
	_, err := f.pipeline.Inject(file, "Mod", validBody, false)
	var validation *vbaerr.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Detail, "verification failed")
}

func TestRoundTripNormalization(t *testing.T) {
	f := newFixture(t)
	file := tempContainer(t, "book.xlsm")

	// Trailing whitespace and surrounding blank lines survive the host
	// round trip only modulo normalization.
	body := "\r\nPublic Sub Tidy()   \r\n    x = 1\t\r\nEnd Sub\r\n\r\n"
	result, err := f.pipeline.Inject(file, "Tidy", body, false)
	require.NoError(t, err)
	assert.True(t, result.Verified)
}
