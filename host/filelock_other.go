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

//go:build !windows

package host

import (
	"os"
)

// ProbeExclusiveLock approximates the exclusive-open probe on platforms
// without mandatory sharing modes: a file we can open for read+write is
// treated as unlocked.
func ProbeExclusiveLock(path string) bool {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return os.IsPermission(err)
	}
	f.Close()
	return false
}
