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

//go:build windows

package host

import (
	"golang.org/x/sys/windows"
)

// ProbeExclusiveLock reports whether another process holds the file so
// that we cannot open it for exclusive read+write. Errors other than a
// sharing violation are treated as "not locked" so they surface later
// through the real open path instead.
func ProbeExclusiveLock(path string) bool {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	h, err := windows.CreateFile(
		p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0, // no sharing
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
	if err != nil {
		return err == windows.ERROR_SHARING_VIOLATION
	}
	windows.CloseHandle(h)
	return false
}
