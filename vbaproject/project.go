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

// Package vbaproject reconstructs the macro project embedded in an Office
// container: locating the project blob, decompressing each module stream,
// and yielding modules with name, kind, and source text.
package vbaproject

import (
	"errors"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/AlexisTrouve/vba-mcp-server/cfb"
	"github.com/AlexisTrouve/vba-mcp-server/ooxml"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// ModuleKind labels what a module is attached to. It is informational to
// the parser; only the surfaced label depends on it.
type ModuleKind string

const (
	KindStandard  ModuleKind = "standard"
	KindClass     ModuleKind = "class"
	KindForm      ModuleKind = "form"
	KindDocument  ModuleKind = "document"
	KindWorkbook  ModuleKind = "workbook"
	KindWorksheet ModuleKind = "worksheet"
)

// Module is one named source-code container inside a project.
type Module struct {
	Name      string     `json:"name"`
	Kind      ModuleKind `json:"type"`
	Code      string     `json:"code"`
	LineCount int        `json:"line_count"`
}

// Project is the ordered set of modules recovered from a container.
type Project struct {
	Modules []Module `json:"modules"`
}

// Family groups container suffixes by host application.
type Family string

const (
	FamilySpreadsheet  Family = "Excel"
	FamilyWord         Family = "Word"
	FamilyDatabase     Family = "Access"
	FamilyPresentation Family = "PowerPoint"
)

// suffixes maps each recognized container suffix to its host family.
var suffixes = map[string]Family{
	".xlsm":  FamilySpreadsheet,
	".xlsb":  FamilySpreadsheet,
	".docm":  FamilyWord,
	".pptm":  FamilyPresentation,
	".accdb": FamilyDatabase,
	".mdb":   FamilyDatabase,
}

// SupportedSuffixes returns the recognized container suffixes, sorted.
func SupportedSuffixes() []string {
	out := make([]string, 0, len(suffixes))
	for s := range suffixes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// FamilyForPath resolves the host application family from a file suffix.
func FamilyForPath(p string) (Family, error) {
	suffix := strings.ToLower(filepath.Ext(p))
	fam, ok := suffixes[suffix]
	if !ok {
		return "", &vbaerr.UnsupportedFormatError{Suffix: suffix, Supported: SupportedSuffixes()}
	}
	return fam, nil
}

// IsDatabase reports whether the path names a database-variant container.
func IsDatabase(p string) bool {
	suffix := strings.ToLower(filepath.Ext(p))
	return suffix == ".accdb" || suffix == ".mdb"
}

// Open reads the container at p and reconstructs its macro project. A
// container without a macro payload yields an empty project, not an error.
func Open(p string) (*Project, error) {
	if _, err := FamilyForPath(p); err != nil {
		return nil, err
	}
	if IsDatabase(p) {
		f, err := cfb.Open(p)
		if err != nil {
			return nil, err
		}
		return FromCompound(f)
	}
	payload, err := ooxml.ReadProjectPayload(p)
	if err != nil {
		if errors.Is(err, vbaerr.ErrNoMacroPayload) {
			return &Project{}, nil
		}
		return nil, err
	}
	f, err := cfb.New(payload)
	if err != nil {
		return nil, err
	}
	return FromCompound(f)
}

// FromCompound reconstructs a project from an already-parsed compound file
// (either a vbaProject.bin blob or a whole database container).
func FromCompound(f *cfb.File) (*Project, error) {
	dirPath, ok := findStream(f, "dir")
	if !ok {
		// A compound file with no VBA storage is a macro-free container.
		return &Project{}, nil
	}
	storage := path.Dir(dirPath)

	rawDir, err := f.ReadStream(dirPath)
	if err != nil {
		return nil, err
	}
	dirData, err := Decompress(rawDir)
	if err != nil {
		return nil, err
	}
	records, err := parseDirStream(dirData)
	if err != nil {
		return nil, err
	}

	var info *projectInfo
	if projPath, ok := findStream(f, "PROJECT"); ok {
		if raw, err := f.ReadStream(projPath); err == nil {
			info = parseProjectStream(raw)
		}
	}

	project := &Project{}
	for _, rec := range records {
		streamName := rec.StreamName
		if streamName == "" {
			streamName = rec.Name
		}
		streamPath := storage + "/" + streamName
		raw, err := f.ReadStream(streamPath)
		if err != nil {
			return nil, err
		}
		if int(rec.TextOffset) > len(raw) {
			return nil, &vbaerr.FormatError{Reason: "module text offset beyond stream: " + rec.Name}
		}
		source, err := Decompress(raw[rec.TextOffset:])
		if err != nil {
			return nil, err
		}
		code := decodeProjectText(source)
		project.Modules = append(project.Modules, Module{
			Name:      rec.Name,
			Kind:      moduleKind(rec, info, streamPath),
			Code:      code,
			LineCount: len(splitLines(code)),
		})
	}
	return project, nil
}

// Module returns the named module, matching case-insensitively.
func (p *Project) Module(name string) (*Module, bool) {
	for i := range p.Modules {
		if strings.EqualFold(p.Modules[i].Name, name) {
			return &p.Modules[i], true
		}
	}
	return nil, false
}

// ModuleNames returns the project's module names in order.
func (p *Project) ModuleNames() []string {
	names := make([]string, len(p.Modules))
	for i, m := range p.Modules {
		names[i] = m.Name
	}
	return names
}

// moduleKind resolves a module's kind from the PROJECT stream, then the
// directory's module type record, and finally name inference.
func moduleKind(rec moduleRecord, info *projectInfo, streamPath string) ModuleKind {
	if info != nil {
		switch info.modules[strings.ToLower(rec.Name)] {
		case "class":
			return KindClass
		case "baseclass":
			return KindForm
		case "document":
			return refineDocumentKind(rec.Name)
		case "module":
			return KindStandard
		}
	}
	if rec.HasType && rec.Procedural {
		return KindStandard
	}
	return inferKind(rec.Name, streamPath)
}

// inferKind applies the name-prefix rules used when the directory does not
// tag the module directly.
func inferKind(name, streamPath string) ModuleKind {
	lower := strings.ToLower(name)
	switch {
	case lower == "thisworkbook":
		return KindWorkbook
	case strings.HasPrefix(lower, "sheet"):
		return KindWorksheet
	case strings.HasPrefix(lower, "userform"):
		return KindForm
	case strings.Contains(strings.ToLower(streamPath), "class"):
		return KindClass
	default:
		return KindStandard
	}
}

func refineDocumentKind(name string) ModuleKind {
	lower := strings.ToLower(name)
	switch {
	case lower == "thisworkbook":
		return KindWorkbook
	case strings.HasPrefix(lower, "sheet"):
		return KindWorksheet
	default:
		return KindDocument
	}
}

// findStream locates a stream by base name anywhere in the compound file.
func findStream(f *cfb.File, base string) (string, bool) {
	for _, s := range f.Streams() {
		if strings.EqualFold(path.Base(s.Path), base) {
			return s.Path, true
		}
	}
	return "", false
}

// decodeProjectText decodes VBA project bytes as Windows-1252, replacing
// anything unmappable rather than failing.
func decodeProjectText(b []byte) string {
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return strings.ReplaceAll(string(decoded), "\x00", "")
}

// splitLines splits on any of the line ending conventions VBA emits.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
