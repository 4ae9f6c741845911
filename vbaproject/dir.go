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
	"bufio"
	"encoding/binary"
	"strings"

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// dir stream record ids (the subset the project model needs).
const (
	recProjectVersion = 0x0009
	recModuleName     = 0x0019
	recStreamName     = 0x001A
	recModuleOffset   = 0x0031
	recTypeProcedural = 0x0021
	recTypeDocument   = 0x0022
	recModuleEnd      = 0x002B
)

// moduleRecord is one module as described by the project directory stream.
type moduleRecord struct {
	Name       string
	StreamName string
	TextOffset uint32
	Procedural bool
	HasType    bool
}

// parseDirStream walks the decompressed dir stream's {id, size, data}
// records and collects the module table. Records the model does not need
// are skipped by size, which keeps the scanner tolerant of project
// features it has never seen.
func parseDirStream(data []byte) ([]moduleRecord, error) {
	var modules []moduleRecord
	var cur *moduleRecord

	pos := 0
	for pos+6 <= len(data) {
		id := binary.LittleEndian.Uint16(data[pos : pos+2])
		size := int(binary.LittleEndian.Uint32(data[pos+2 : pos+6]))
		pos += 6

		// PROJECTVERSION carries six data bytes but declares four.
		if id == recProjectVersion {
			size = 6
		}
		if pos+size > len(data) {
			return nil, &vbaerr.FormatError{Reason: "dir stream record overruns stream"}
		}
		body := data[pos : pos+size]
		pos += size

		switch id {
		case recModuleName:
			if cur != nil {
				modules = append(modules, *cur)
			}
			cur = &moduleRecord{Name: decodeProjectText(body)}
		case recStreamName:
			if cur != nil {
				cur.StreamName = decodeProjectText(body)
			}
		case recModuleOffset:
			if cur != nil && size >= 4 {
				cur.TextOffset = binary.LittleEndian.Uint32(body[:4])
			}
		case recTypeProcedural:
			if cur != nil {
				cur.Procedural = true
				cur.HasType = true
			}
		case recTypeDocument:
			if cur != nil {
				cur.HasType = true
			}
		case recModuleEnd:
			if cur != nil {
				modules = append(modules, *cur)
				cur = nil
			}
		}
	}
	if cur != nil {
		modules = append(modules, *cur)
	}
	return modules, nil
}

// projectInfo is the readable PROJECT stream: "Key=Value" lines that tag
// each module with its component class.
type projectInfo struct {
	modules    map[string]string // lower-cased name -> module|class|document|baseclass
	designated []string
}

func parseProjectStream(data []byte) *projectInfo {
	info := &projectInfo{modules: make(map[string]string)}
	sc := bufio.NewScanner(strings.NewReader(decodeProjectText(data)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		// Document lines carry a trailing "/&H00000000" version suffix.
		if name, _, cut := strings.Cut(value, "/"); cut {
			value = name
		}
		switch key {
		case "module", "class", "document", "baseclass":
			info.modules[strings.ToLower(value)] = key
			info.designated = append(info.designated, value)
		}
	}
	return info
}
