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
package cfb_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/cfb"
	"github.com/AlexisTrouve/vba-mcp-server/cfb/cfbtest"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

func TestRoundTripStreams(t *testing.T) {
	big := bytes.Repeat([]byte("0123456789abcdef"), 100) // 1600 bytes, four sectors
	streams := map[string][]byte{
		"PROJECT":     []byte("Module=Module1\r\n"),
		"VBA/dir":     []byte{0x01, 0x02, 0x03},
		"VBA/Module1": big,
	}
	img := cfbtest.Build(streams)

	f, err := cfb.New(img)
	require.NoError(t, err)

	listed := f.Streams()
	require.Len(t, listed, 3)
	paths := make([]string, len(listed))
	for i, s := range listed {
		paths[i] = s.Path
	}
	assert.Equal(t, []string{"PROJECT", "VBA/Module1", "VBA/dir"}, paths)

	for path, want := range streams {
		got, err := f.ReadStream(path)
		require.NoError(t, err, "stream %s", path)
		assert.Equal(t, want, got, "stream %s", path)
	}
}

func TestReadStreamCaseInsensitive(t *testing.T) {
	img := cfbtest.Build(map[string][]byte{"VBA/dir": []byte("x")})
	f, err := cfb.New(img)
	require.NoError(t, err)

	got, err := f.ReadStream("vba/DIR")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	assert.True(t, f.HasStream("VBA/DIR"))
}

func TestNotACompoundFile(t *testing.T) {
	_, err := cfb.New(bytes.Repeat([]byte{0x50}, 1024))
	var formatErr *vbaerr.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Error(), "not a compound file")
}

func TestTruncatedHeader(t *testing.T) {
	_, err := cfb.New([]byte{0xD0, 0xCF, 0x11, 0xE0})
	var formatErr *vbaerr.FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestMissingStream(t *testing.T) {
	img := cfbtest.Build(map[string][]byte{"PROJECT": []byte("x")})
	f, err := cfb.New(img)
	require.NoError(t, err)
	_, err = f.ReadStream("VBA/Nope")
	var formatErr *vbaerr.FormatError
	require.ErrorAs(t, err, &formatErr)
}

func TestCorruptSectorChain(t *testing.T) {
	img := cfbtest.Build(map[string][]byte{
		"VBA/Module1": bytes.Repeat([]byte("a"), 600),
	})
	// Point the stream's first FAT entry back at itself: a cycle.
	// Stream sectors start after the FAT (sector 0) and directory.
	f, err := cfb.New(img)
	require.NoError(t, err)
	streamStart := findStreamStartSector(t, img)
	fatOff := 512 + int(streamStart)*4
	img[fatOff] = byte(streamStart)
	img[fatOff+1] = 0
	img[fatOff+2] = 0
	img[fatOff+3] = 0

	f, err = cfb.New(img)
	require.NoError(t, err)
	_, err = f.ReadStream("VBA/Module1")
	var formatErr *vbaerr.FormatError
	require.ErrorAs(t, err, &formatErr)
}

// findStreamStartSector pulls the module stream's start sector out of the
// directory so the test does not hard-code the builder's layout.
func findStreamStartSector(t *testing.T, img []byte) uint32 {
	t.Helper()
	f, err := cfb.New(img)
	require.NoError(t, err)
	require.True(t, f.HasStream("VBA/Module1"))
	// Directory starts at sector 1 (offset 1024); entry 128 bytes each.
	// Walk entries looking for the stream (object type 2).
	for off := 1024; off+128 <= len(img); off += 128 {
		if img[off+66] == 2 {
			return uint32(img[off+116]) | uint32(img[off+117])<<8 |
				uint32(img[off+118])<<16 | uint32(img[off+119])<<24
		}
	}
	t.Fatal("no stream entry found")
	return 0
}
