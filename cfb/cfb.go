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

// Package cfb parses legacy structured-storage compound files (the OLE2
// container used by the database variant, and by the vbaProject.bin blob
// embedded in the ZIP-packaged variants).
package cfb

import (
	"encoding/binary"
	"os"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

var signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	sectFree       = 0xFFFFFFFF
	sectEndOfChain = 0xFFFFFFFE
	sectFAT        = 0xFFFFFFFD
	sectDIFAT      = 0xFFFFFFFC

	dirEntrySize = 128

	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
)

// File is a parsed compound file. Streams are addressed by their full
// storage path with "/" separators, e.g. "VBA/Module1".
type File struct {
	data           []byte
	sectorSize     int
	miniSectorSize int
	miniCutoff     uint32
	fat            []uint32
	miniFAT        []uint32
	entries        []dirEntry
	miniStream     []byte
	paths          map[string]int
}

type dirEntry struct {
	name        string
	objectType  byte
	left, right uint32
	child       uint32
	startSector uint32
	size        uint32
	path        string
}

// StreamInfo describes one stream in the file.
type StreamInfo struct {
	Path string
	Size uint32
}

// Open reads and parses the compound file at path.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &vbaerr.NotFoundError{Path: path}
		}
		return nil, err
	}
	return New(data)
}

// New parses a compound file held in memory.
func New(data []byte) (*File, error) {
	if len(data) < 512 {
		return nil, &vbaerr.FormatError{Reason: "truncated compound file header"}
	}
	for i, b := range signature {
		if data[i] != b {
			return nil, &vbaerr.FormatError{Reason: "not a compound file"}
		}
	}

	sectorShift := binary.LittleEndian.Uint16(data[30:32])
	miniShift := binary.LittleEndian.Uint16(data[32:34])
	if sectorShift != 9 && sectorShift != 12 {
		return nil, &vbaerr.FormatError{Reason: "invalid sector size"}
	}

	f := &File{
		data:           data,
		sectorSize:     1 << sectorShift,
		miniSectorSize: 1 << miniShift,
		miniCutoff:     binary.LittleEndian.Uint32(data[56:60]),
		paths:          make(map[string]int),
	}

	if err := f.readFAT(); err != nil {
		return nil, err
	}
	if err := f.readDirectory(); err != nil {
		return nil, err
	}
	if err := f.readMiniFAT(); err != nil {
		return nil, err
	}
	return f, nil
}

// maxChainLength bounds sector chain walks so a corrupted circular FAT
// cannot loop forever.
func (f *File) maxChainLength() int {
	return len(f.data)/f.sectorSize + 2
}

func (f *File) sector(id uint32) ([]byte, error) {
	off := (int(id) + 1) * f.sectorSize
	if off+f.sectorSize > len(f.data) {
		return nil, &vbaerr.FormatError{Reason: "sector beyond end of file"}
	}
	return f.data[off : off+f.sectorSize], nil
}

func (f *File) readFAT() error {
	numFAT := binary.LittleEndian.Uint32(f.data[44:48])
	firstDIFAT := binary.LittleEndian.Uint32(f.data[68:72])

	var fatSectors []uint32
	for i := 0; i < 109; i++ {
		id := binary.LittleEndian.Uint32(f.data[76+i*4 : 80+i*4])
		if id == sectFree || id == sectEndOfChain {
			break
		}
		fatSectors = append(fatSectors, id)
	}

	// Chase the DIFAT chain for files with more than 109 FAT sectors.
	difat := firstDIFAT
	perSector := f.sectorSize/4 - 1
	for steps := 0; difat != sectEndOfChain && difat != sectFree; steps++ {
		if steps > f.maxChainLength() {
			return &vbaerr.FormatError{Reason: "DIFAT chain cycle"}
		}
		sec, err := f.sector(difat)
		if err != nil {
			return err
		}
		for i := 0; i < perSector; i++ {
			id := binary.LittleEndian.Uint32(sec[i*4 : i*4+4])
			if id == sectFree || id == sectEndOfChain {
				continue
			}
			fatSectors = append(fatSectors, id)
		}
		difat = binary.LittleEndian.Uint32(sec[len(sec)-4:])
	}

	if uint32(len(fatSectors)) < numFAT {
		return &vbaerr.FormatError{Reason: "FAT sector count mismatch"}
	}

	for _, id := range fatSectors {
		sec, err := f.sector(id)
		if err != nil {
			return err
		}
		for i := 0; i+4 <= len(sec); i += 4 {
			f.fat = append(f.fat, binary.LittleEndian.Uint32(sec[i:i+4]))
		}
	}
	return nil
}

func (f *File) readMiniFAT() error {
	first := binary.LittleEndian.Uint32(f.data[60:64])
	if first == sectEndOfChain || first == sectFree {
		return nil
	}
	raw, err := f.readChain(first, 0)
	if err != nil {
		return err
	}
	for i := 0; i+4 <= len(raw); i += 4 {
		f.miniFAT = append(f.miniFAT, binary.LittleEndian.Uint32(raw[i:i+4]))
	}

	// The root entry's stream is the backing store for mini sectors.
	if len(f.entries) > 0 {
		root := f.entries[0]
		mini, err := f.readChain(root.startSector, 0)
		if err != nil {
			return err
		}
		f.miniStream = mini
	}
	return nil
}

// readChain concatenates a regular sector chain. size of 0 keeps every
// byte of every sector.
func (f *File) readChain(start uint32, size uint32) ([]byte, error) {
	var out []byte
	id := start
	for steps := 0; id != sectEndOfChain; steps++ {
		if steps > f.maxChainLength() {
			return nil, &vbaerr.FormatError{Reason: "sector chain cycle"}
		}
		if id == sectFree || id == sectFAT || id == sectDIFAT {
			return nil, &vbaerr.FormatError{Reason: "sector chain inconsistency"}
		}
		sec, err := f.sector(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sec...)
		if int(id) >= len(f.fat) {
			return nil, &vbaerr.FormatError{Reason: "sector beyond FAT"}
		}
		id = f.fat[id]
	}
	if size > 0 {
		if uint32(len(out)) < size {
			return nil, &vbaerr.FormatError{Reason: "stream truncated"}
		}
		out = out[:size]
	}
	return out, nil
}

func (f *File) readMiniChain(start uint32, size uint32) ([]byte, error) {
	var out []byte
	id := start
	limit := len(f.miniStream)/f.miniSectorSize + 2
	for steps := 0; id != sectEndOfChain; steps++ {
		if steps > limit {
			return nil, &vbaerr.FormatError{Reason: "mini sector chain cycle"}
		}
		off := int(id) * f.miniSectorSize
		if off+f.miniSectorSize > len(f.miniStream) {
			return nil, &vbaerr.FormatError{Reason: "mini sector beyond mini stream"}
		}
		out = append(out, f.miniStream[off:off+f.miniSectorSize]...)
		if int(id) >= len(f.miniFAT) {
			return nil, &vbaerr.FormatError{Reason: "mini sector beyond mini FAT"}
		}
		id = f.miniFAT[id]
	}
	if uint32(len(out)) < size {
		return nil, &vbaerr.FormatError{Reason: "stream truncated"}
	}
	return out[:size], nil
}

func (f *File) readDirectory() error {
	first := binary.LittleEndian.Uint32(f.data[48:52])
	raw, err := f.readChain(first, 0)
	if err != nil {
		return err
	}
	for off := 0; off+dirEntrySize <= len(raw); off += dirEntrySize {
		e := raw[off : off+dirEntrySize]
		nameLen := int(binary.LittleEndian.Uint16(e[64:66]))
		if nameLen < 2 || nameLen > 64 {
			if off == 0 {
				return &vbaerr.FormatError{Reason: "invalid root directory entry"}
			}
			// Free entry.
			f.entries = append(f.entries, dirEntry{objectType: 0})
			continue
		}
		units := make([]uint16, 0, nameLen/2-1)
		for i := 0; i < nameLen-2; i += 2 {
			units = append(units, binary.LittleEndian.Uint16(e[i:i+2]))
		}
		f.entries = append(f.entries, dirEntry{
			name:        string(utf16.Decode(units)),
			objectType:  e[66],
			left:        binary.LittleEndian.Uint32(e[68:72]),
			right:       binary.LittleEndian.Uint32(e[72:76]),
			child:       binary.LittleEndian.Uint32(e[76:80]),
			startSector: binary.LittleEndian.Uint32(e[116:120]),
			size:        binary.LittleEndian.Uint32(e[120:124]),
		})
	}
	if len(f.entries) == 0 || f.entries[0].objectType != typeRoot {
		return &vbaerr.FormatError{Reason: "missing root directory entry"}
	}
	f.buildPaths(0, "")
	return nil
}

// buildPaths walks the directory's sibling tree, assigning each stream a
// "storage/stream" path.
func (f *File) buildPaths(idx int, prefix string) {
	if idx < 0 || idx >= len(f.entries) {
		return
	}
	e := &f.entries[idx]
	if e.objectType == typeRoot {
		f.walkSiblings(e.child, prefix)
		return
	}
	path := e.name
	if prefix != "" {
		path = prefix + "/" + e.name
	}
	e.path = path
	if e.objectType == typeStream {
		f.paths[path] = idx
	}
	if e.objectType == typeStorage {
		f.walkSiblings(e.child, path)
	}
}

func (f *File) walkSiblings(idx uint32, prefix string) {
	if idx == sectFree || int(idx) >= len(f.entries) {
		return
	}
	seen := make(map[uint32]bool)
	var walk func(i uint32)
	walk = func(i uint32) {
		if i == sectFree || int(i) >= len(f.entries) || seen[i] {
			return
		}
		seen[i] = true
		e := f.entries[i]
		walk(e.left)
		f.buildPaths(int(i), prefix)
		walk(e.right)
	}
	walk(idx)
}

// Streams lists every stream in the file, sorted by path.
func (f *File) Streams() []StreamInfo {
	out := make([]StreamInfo, 0, len(f.paths))
	for path, idx := range f.paths {
		out = append(out, StreamInfo{Path: path, Size: f.entries[idx].size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// HasStream reports whether a stream exists at the given path
// (case-insensitive, as storage names are case-preserving but compared
// without case).
func (f *File) HasStream(path string) bool {
	_, ok := f.lookup(path)
	return ok
}

func (f *File) lookup(path string) (int, bool) {
	if idx, ok := f.paths[path]; ok {
		return idx, true
	}
	for p, idx := range f.paths {
		if strings.EqualFold(p, path) {
			return idx, true
		}
	}
	return 0, false
}

// ReadStream returns the full contents of the stream at path.
func (f *File) ReadStream(path string) ([]byte, error) {
	idx, ok := f.lookup(path)
	if !ok {
		return nil, &vbaerr.FormatError{Reason: "stream not found: " + path}
	}
	e := f.entries[idx]
	if e.size < f.miniCutoff {
		return f.readMiniChain(e.startSector, e.size)
	}
	return f.readChain(e.startSector, e.size)
}
