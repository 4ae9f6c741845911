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

// Package platform provides a small abstraction over the host environment
// (the clock) so that session-lifecycle logic can be tested
// without real delays or real Office installations.
package platform

import (
	"time"
)

// TimeProvider abstracts clock access. The session manager's idle-eviction
// loop sleeps and stamps timestamps exclusively through this interface so
// tests can drive it deterministically.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that delivers the current time after d.
	After(d time.Duration) <-chan time.Time
}

// RealTimeProvider implements TimeProvider using the standard time package.
type RealTimeProvider struct{}

// NewRealTimeProvider creates a time provider backed by the system clock.
func NewRealTimeProvider() *RealTimeProvider {
	return &RealTimeProvider{}
}

func (t *RealTimeProvider) Now() time.Time {
	return time.Now()
}

func (t *RealTimeProvider) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
