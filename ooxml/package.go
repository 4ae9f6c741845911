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

// Package ooxml reads the ZIP-packaged Office container variants and
// locates the embedded VBA project payload.
package ooxml

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
)

// payloadPaths lists the archive entries that may hold the VBA project,
// in preference order per application family.
var payloadPaths = []string{
	"xl/vbaProject.bin",
	"word/vbaProject.bin",
	"ppt/vbaProject.bin",
}

// ReadProjectPayload opens the ZIP container at path and returns the raw
// bytes of its vbaProject.bin entry. A valid container without a VBA
// payload returns vbaerr.ErrNoMacroPayload.
func ReadProjectPayload(path string) ([]byte, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &vbaerr.NotFoundError{Path: path}
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, &vbaerr.FormatError{Reason: "not a valid package", Err: err}
		}
		return nil, err
	}
	defer zr.Close()
	return readPayload(&zr.Reader)
}

// ReadProjectPayloadBytes is the in-memory variant of ReadProjectPayload.
func ReadProjectPayloadBytes(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &vbaerr.FormatError{Reason: "not a valid package", Err: err}
	}
	return readPayload(zr)
}

func readPayload(zr *zip.Reader) ([]byte, error) {
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	for _, want := range payloadPaths {
		f, ok := entries[want]
		if !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &vbaerr.FormatError{Reason: "cannot open " + want, Err: err}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &vbaerr.FormatError{Reason: "cannot read " + want, Err: err}
		}
		return data, nil
	}
	return nil, vbaerr.ErrNoMacroPayload
}
