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

// Package session manages live host-application sessions: a process-wide
// registry keyed by absolute container path with liveness probing, idle
// eviction, lock detection, and ordered teardown.
package session

import (
	"sync"
	"time"

	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// Session is a live handle to a host application that has opened one
// container. At most one session exists per absolute path.
type Session struct {
	// ID tags the session in listings and log lines.
	ID       string
	Path     string
	Family   vbaproject.Family
	ReadOnly bool
	OpenedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
	h            host.Host
	doc          host.Document
	project      host.Project
}

// Host returns the underlying host application.
func (s *Session) Host() host.Host { return s.h }

// Document returns the open container handle.
func (s *Session) Document() host.Document { return s.doc }

// Project returns the session's VBA project handle, cached after the
// first access.
func (s *Session) Project() (host.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.project != nil {
		return s.project, nil
	}
	p, err := s.doc.Project()
	if err != nil {
		return nil, err
	}
	s.project = p
	return p, nil
}

// Touch refreshes the last-accessed timestamp.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccessed = now
}

// LastAccessed returns the last-accessed timestamp.
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// IsAlive probes the session's host objects with a cheap attribute read.
// Any failure means the session is dead.
func (s *Session) IsAlive() bool {
	if _, err := s.h.Name(); err != nil {
		return false
	}
	switch s.Family {
	case vbaproject.FamilySpreadsheet, vbaproject.FamilyWord:
		if _, err := s.doc.Name(); err != nil {
			return false
		}
	case vbaproject.FamilyDatabase:
		if _, err := s.doc.Name(); err != nil {
			return false
		}
	}
	return true
}

// close releases host-side objects in reverse acquisition order: project,
// then document, then host. Save failures are tolerated; close always
// proceeds to the end.
func (s *Session) close(save bool) {
	s.mu.Lock()
	project := s.project
	s.project = nil
	s.mu.Unlock()

	if save && !s.ReadOnly {
		if err := s.doc.Save(); err != nil {
			warnf("failed to save %s: %v", s.Path, err)
		}
	}
	if err := s.doc.Close(false); err != nil {
		warnf("failed to close %s: %v", s.Path, err)
	}
	if err := s.h.Quit(); err != nil {
		warnf("failed to quit host for %s: %v", s.Path, err)
	}
	if project != nil {
		project.Release()
	}
	s.doc.Release()
	s.h.Release()
}
