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

// Package cfbtest builds small compound files in memory for tests. The
// writer keeps to the subset the reader understands: 512-byte sectors, a
// single FAT sector, no mini stream (the cutoff is written as zero so
// every stream lives on regular sectors).
package cfbtest

import (
	"encoding/binary"
	"sort"
	"strings"
	"unicode/utf16"
)

const (
	sectorSize  = 512
	sectFree    = 0xFFFFFFFF
	sectEnd     = 0xFFFFFFFE
	sectFATMark = 0xFFFFFFFD
)

type entry struct {
	name       string
	objectType byte
	child      int
	right      int
	start      uint32
	size       uint32
	data       []byte
}

// Build serializes the given streams into a compound file image. Stream
// paths may contain one storage level ("VBA/dir"); storages are created
// implicitly.
func Build(streams map[string][]byte) []byte {
	// Deterministic layout.
	paths := make([]string, 0, len(streams))
	for p := range streams {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := []*entry{{name: "Root Entry", objectType: 5, child: -1, right: -1}}
	storageIndex := map[string]int{}

	appendChild := func(parent int, idx int) {
		if entries[parent].child < 0 {
			entries[parent].child = idx
			return
		}
		cur := entries[parent].child
		for entries[cur].right >= 0 {
			cur = entries[cur].right
		}
		entries[cur].right = idx
	}

	for _, p := range paths {
		parent := 0
		name := p
		if storage, rest, ok := strings.Cut(p, "/"); ok {
			idx, exists := storageIndex[storage]
			if !exists {
				idx = len(entries)
				entries = append(entries, &entry{name: storage, objectType: 1, child: -1, right: -1})
				storageIndex[storage] = idx
				appendChild(0, idx)
			}
			parent = idx
			name = rest
		}
		idx := len(entries)
		entries = append(entries, &entry{
			name:       name,
			objectType: 2,
			child:      -1,
			right:      -1,
			data:       streams[p],
			size:       uint32(len(streams[p])),
		})
		appendChild(parent, idx)
	}

	// Directory sectors hold four entries each.
	dirSectors := (len(entries) + 3) / 4
	if dirSectors == 0 {
		dirSectors = 1
	}

	// Sector 0 is the FAT; directory follows; stream data after that.
	next := uint32(1 + dirSectors)
	fat := make([]uint32, sectorSize/4)
	for i := range fat {
		fat[i] = sectFree
	}
	fat[0] = sectFATMark
	for i := 0; i < dirSectors; i++ {
		if i == dirSectors-1 {
			fat[1+i] = sectEnd
		} else {
			fat[1+i] = uint32(2 + i)
		}
	}

	for _, e := range entries {
		if e.objectType != 2 || len(e.data) == 0 {
			e.start = sectEnd
			continue
		}
		sectors := (len(e.data) + sectorSize - 1) / sectorSize
		e.start = next
		for i := 0; i < sectors; i++ {
			if i == sectors-1 {
				fat[next] = sectEnd
			} else {
				fat[next] = next + 1
			}
			next++
		}
	}

	total := int(next)
	out := make([]byte, (total+1)*sectorSize)

	// Header.
	copy(out, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	binary.LittleEndian.PutUint16(out[26:28], 3)      // major version
	binary.LittleEndian.PutUint16(out[28:30], 0xFFFE) // byte order
	binary.LittleEndian.PutUint16(out[30:32], 9)      // sector shift
	binary.LittleEndian.PutUint16(out[32:34], 6)      // mini sector shift
	binary.LittleEndian.PutUint32(out[44:48], 1)      // FAT sector count
	binary.LittleEndian.PutUint32(out[48:52], 1)      // first directory sector
	binary.LittleEndian.PutUint32(out[56:60], 0)      // mini cutoff: no mini stream
	binary.LittleEndian.PutUint32(out[60:64], sectEnd)
	binary.LittleEndian.PutUint32(out[64:68], 0)
	binary.LittleEndian.PutUint32(out[68:72], sectEnd)
	binary.LittleEndian.PutUint32(out[72:76], 0)
	binary.LittleEndian.PutUint32(out[76:80], 0) // DIFAT[0] -> FAT at sector 0
	for i := 1; i < 109; i++ {
		binary.LittleEndian.PutUint32(out[76+i*4:80+i*4], sectFree)
	}

	// FAT sector.
	for i, v := range fat {
		binary.LittleEndian.PutUint32(out[sectorSize+i*4:sectorSize+i*4+4], v)
	}

	// Directory sectors.
	dirBase := 2 * sectorSize
	for i, e := range entries {
		off := dirBase + i*128
		units := utf16.Encode([]rune(e.name))
		for j, u := range units {
			binary.LittleEndian.PutUint16(out[off+j*2:off+j*2+2], u)
		}
		binary.LittleEndian.PutUint16(out[off+64:off+66], uint16((len(units)+1)*2))
		out[off+66] = e.objectType
		out[off+67] = 1 // black
		binary.LittleEndian.PutUint32(out[off+68:off+72], sectFree) // left
		right := uint32(sectFree)
		if e.right >= 0 {
			right = uint32(e.right)
		}
		binary.LittleEndian.PutUint32(out[off+72:off+76], right)
		child := uint32(sectFree)
		if e.child >= 0 {
			child = uint32(e.child)
		}
		binary.LittleEndian.PutUint32(out[off+76:off+80], child)
		binary.LittleEndian.PutUint32(out[off+116:off+120], e.start)
		binary.LittleEndian.PutUint32(out[off+120:off+124], e.size)
	}

	// Stream data.
	for _, e := range entries {
		if e.objectType != 2 || len(e.data) == 0 {
			continue
		}
		copy(out[(int(e.start)+1)*sectorSize:], e.data)
	}
	return out
}

// CompressSource wraps source bytes as a VBA compressed container made of
// all-literal token chunks, which decompresses back to the exact input.
func CompressSource(src []byte) []byte {
	out := []byte{0x01}
	for start := 0; start < len(src); start += 4096 {
		end := start + 4096
		if end > len(src) {
			end = len(src)
		}
		chunk := src[start:end]
		var body []byte
		for i := 0; i < len(chunk); i += 8 {
			j := i + 8
			if j > len(chunk) {
				j = len(chunk)
			}
			body = append(body, 0x00) // all-literal flag byte
			body = append(body, chunk[i:j]...)
		}
		header := uint16(0x8000 | 0x3000 | uint16(len(body)+2-3))
		out = append(out, byte(header), byte(header>>8))
		out = append(out, body...)
	}
	return out
}

// ModuleStream prefixes a compressed module body with a performance-cache
// header of the given size, matching the offset the dir stream declares.
func ModuleStream(offset int, src []byte) []byte {
	out := make([]byte, offset)
	return append(out, CompressSource(src)...)
}

// DirStream serializes a minimal project directory stream for the given
// modules: name, stream name, offset, and module type (procedural or
// document) records.
func DirStream(modules []DirModule) []byte {
	var out []byte
	record := func(id uint16, data []byte) {
		var hdr [6]byte
		binary.LittleEndian.PutUint16(hdr[0:2], id)
		binary.LittleEndian.PutUint32(hdr[2:6], uint32(len(data)))
		out = append(out, hdr[:]...)
		out = append(out, data...)
	}

	// PROJECTMODULES count.
	var count [2]byte
	binary.LittleEndian.PutUint16(count[:], uint16(len(modules)))
	record(0x000F, count[:])

	for _, m := range modules {
		record(0x0019, []byte(m.Name))
		streamName := m.StreamName
		if streamName == "" {
			streamName = m.Name
		}
		record(0x001A, []byte(streamName))
		var off [4]byte
		binary.LittleEndian.PutUint32(off[:], m.TextOffset)
		record(0x0031, off[:])
		if m.Document {
			record(0x0022, nil)
		} else {
			record(0x0021, nil)
		}
		record(0x002B, nil)
	}
	record(0x0010, nil)
	return out
}

// DirModule describes one module for DirStream.
type DirModule struct {
	Name       string
	StreamName string
	TextOffset uint32
	Document   bool
}
