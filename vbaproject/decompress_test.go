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
package vbaproject_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexisTrouve/vba-mcp-server/cfb/cfbtest"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

func TestDecompressLiteralChunks(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"short", "Sub A()\r\nEnd Sub"},
		{"empty", ""},
		{"exactly one chunk", string(bytes.Repeat([]byte("x"), 4096))},
		{"two chunks", string(bytes.Repeat([]byte("y"), 5000))},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			compressed := cfbtest.CompressSource([]byte(test.src))
			got, err := vbaproject.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, test.src, string(got))
		})
	}
}

func TestDecompressCopyToken(t *testing.T) {
	// Three literals then a copy token (offset 3, length 3): "abc" -> "abcabc".
	stream := []byte{
		0x01,       // container signature
		0x05, 0xB0, // chunk header: compressed, size 8
		0x08,             // token flags: fourth element is a copy token
		'a', 'b', 'c',    // literals
		0x00, 0x20,       // copy token: offset 3, length 3
	}
	got, err := vbaproject.Decompress(stream)
	require.NoError(t, err)
	assert.Equal(t, "abcabc", string(got))
}

func TestDecompressOverlappingRun(t *testing.T) {
	// One literal then a copy of itself five times over: "a" -> "aaaaaa".
	// Offset 1, length 5: token length bits = 2, offset nibble = 0.
	stream := []byte{
		0x01,
		0x03, 0xB0,
		0x02,       // second element is a copy token
		'a',
		0x02, 0x00, // copy token: offset 1, length 5
	}
	got, err := vbaproject.Decompress(stream)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa", string(got))
}

func TestDecompressRawChunk(t *testing.T) {
	raw := bytes.Repeat([]byte("z"), 4096)
	stream := []byte{0x01, 0xFF, 0x3F} // raw chunk header
	stream = append(stream, raw...)
	got, err := vbaproject.Decompress(stream)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecompressRejectsCorruption(t *testing.T) {
	tests := []struct {
		name   string
		stream []byte
	}{
		{"empty", nil},
		{"bad signature", []byte{0x02, 0x00, 0xB0}},
		{"bad chunk signature", []byte{0x01, 0x00, 0x80}},
		{"truncated chunk", []byte{0x01, 0xFF, 0xB0, 0x00}},
		{"offset before start", []byte{0x01, 0x02, 0xB0, 0x01, 0x00, 0xF0}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := vbaproject.Decompress(test.stream)
			var formatErr *vbaerr.FormatError
			require.ErrorAs(t, err, &formatErr)
			assert.Contains(t, formatErr.Error(), "corrupt compression stream")
		})
	}
}
