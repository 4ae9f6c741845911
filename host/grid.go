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

package host

import (
	"fmt"
	"strings"
)

// NormalizeGrid folds the host's heterogeneous range-value shapes (a
// scalar for one cell, a flat vector for one row, a vector of vectors
// otherwise) into a rows x cols 2-D grid.
func NormalizeGrid(value any, rows, cols int) [][]any {
	switch v := value.(type) {
	case nil:
		return emptyGrid(rows, cols)
	case [][]any:
		return v
	case []any:
		if len(v) > 0 {
			if _, nested := v[0].([]any); nested {
				out := make([][]any, 0, len(v))
				for _, row := range v {
					if r, ok := row.([]any); ok {
						out = append(out, r)
					}
				}
				return out
			}
		}
		if rows > 1 && cols == 1 {
			out := make([][]any, len(v))
			for i, cell := range v {
				out[i] = []any{cell}
			}
			return out
		}
		return [][]any{v}
	default:
		return [][]any{{value}}
	}
}

func emptyGrid(rows, cols int) [][]any {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	out := make([][]any, rows)
	for i := range out {
		out[i] = make([]any, cols)
	}
	return out
}

// ColumnLetterToNumber converts a column letter to its 1-based number
// (A=1, Z=26, AA=27).
func ColumnLetterToNumber(letter string) (int, error) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == "" {
		return 0, fmt.Errorf("empty column letter")
	}
	n := 0
	for _, r := range letter {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", letter)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n, nil
}

// ColumnNumberToLetter converts a 1-based column number to letters.
func ColumnNumberToLetter(n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid column number %d", n)
	}
	var sb []byte
	for n > 0 {
		n--
		sb = append([]byte{byte('A' + n%26)}, sb...)
		n /= 26
	}
	return string(sb), nil
}

// CellAddress builds an A1-style address from 1-based row and column.
func CellAddress(row, col int) (string, error) {
	letter, err := ColumnNumberToLetter(col)
	if err != nil {
		return "", err
	}
	if row < 1 {
		return "", fmt.Errorf("invalid row number %d", row)
	}
	return fmt.Sprintf("%s%d", letter, row), nil
}

// ParseCellAddress splits an A1-style address into 1-based row and column.
func ParseCellAddress(address string) (row, col int, err error) {
	address = strings.ToUpper(strings.TrimSpace(address))
	i := 0
	for i < len(address) && address[i] >= 'A' && address[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(address) {
		return 0, 0, fmt.Errorf("invalid cell address %q", address)
	}
	col, err = ColumnLetterToNumber(address[:i])
	if err != nil {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(address[i:], "%d", &row); err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid cell address %q", address)
	}
	return row, col, nil
}
