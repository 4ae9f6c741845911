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

package vbaproject

import (
	"encoding/binary"
	"math/bits"

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

const (
	containerSignature = 0x01
	chunkSize          = 4096
	chunkSigMask       = 0x7000
	chunkSigValue      = 0x3000
	chunkLenMask       = 0x0FFF
	chunkCompressed    = 0x8000
)

func corrupt(reason string) error {
	return &vbaerr.FormatError{Reason: "corrupt compression stream: " + reason}
}

// Decompress expands a VBA compressed container (the run-length-encoded
// payload that follows each module's performance cache) back into the
// original source bytes.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != containerSignature {
		return nil, corrupt("missing container signature")
	}
	var out []byte
	pos := 1
	for pos < len(data) {
		if pos+2 > len(data) {
			return nil, corrupt("truncated chunk header")
		}
		header := binary.LittleEndian.Uint16(data[pos : pos+2])
		if header&chunkSigMask != chunkSigValue {
			return nil, corrupt("bad chunk signature")
		}
		compressedSize := int(header&chunkLenMask) + 3
		if pos+compressedSize > len(data) {
			return nil, corrupt("chunk overruns stream")
		}
		body := data[pos+2 : pos+compressedSize]
		if header&chunkCompressed == 0 {
			// Raw chunk: 4096 literal bytes.
			if len(body) != chunkSize {
				return nil, corrupt("raw chunk is not 4096 bytes")
			}
			out = append(out, body...)
		} else {
			expanded, err := decompressChunk(body)
			if err != nil {
				return nil, err
			}
			out = append(out, expanded...)
		}
		pos += compressedSize
	}
	return out, nil
}

// decompressChunk expands one compressed chunk. Tokens reference earlier
// bytes of the same chunk; the offset/length bit split widens as the
// decompressed position grows.
func decompressChunk(body []byte) ([]byte, error) {
	out := make([]byte, 0, chunkSize)
	pos := 0
	for pos < len(body) {
		flags := body[pos]
		pos++
		for bit := 0; bit < 8 && pos < len(body); bit++ {
			if flags&(1<<bit) == 0 {
				out = append(out, body[pos])
				pos++
				continue
			}
			if pos+2 > len(body) {
				return nil, corrupt("truncated copy token")
			}
			token := binary.LittleEndian.Uint16(body[pos : pos+2])
			pos += 2
			offBits := copyTokenOffsetBits(len(out))
			lengthMask := uint16(0xFFFF) >> offBits
			length := int(token&lengthMask) + 3
			offset := int(token>>(16-offBits)) + 1
			if offset > len(out) {
				return nil, corrupt("copy token offset before chunk start")
			}
			if len(out)+length > chunkSize {
				return nil, corrupt("copy token overflows chunk")
			}
			// Byte-at-a-time: runs may overlap their own output.
			for i := 0; i < length; i++ {
				out = append(out, out[len(out)-offset])
			}
		}
	}
	return out, nil
}

// copyTokenOffsetBits returns the offset field width for a token emitted
// at the given decompressed position: ceil(log2(pos)), clamped to [4,12].
func copyTokenOffsetBits(pos int) uint {
	if pos <= 16 {
		return 4
	}
	b := uint(bits.Len(uint(pos - 1)))
	if b > 12 {
		return 12
	}
	return b
}
