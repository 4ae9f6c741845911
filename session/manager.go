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

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlexisTrouve/vba-mcp-server/host"
	"github.com/AlexisTrouve/vba-mcp-server/internal/logging"
	"github.com/AlexisTrouve/vba-mcp-server/internal/platform"
	"github.com/AlexisTrouve/vba-mcp-server/vbaerr"
	"github.com/AlexisTrouve/vba-mcp-server/vbaproject"
)

// Defaults for the eviction policy.
const (
	DefaultTimeout         = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

func warnf(format string, args ...any) {
	logging.Warning(format, args...)
}

// Info is a read-only snapshot of one session for listings.
type Info struct {
	SessionID   string  `json:"session_id"`
	FileName    string  `json:"file_name"`
	FilePath    string  `json:"file_path"`
	AppType     string  `json:"app_type"`
	ReadOnly    bool    `json:"read_only"`
	AgeSeconds  float64 `json:"age_seconds"`
	IdleSeconds float64 `json:"last_accessed_seconds"`
}

// Options configures a Manager.
type Options struct {
	Factory         host.Factory
	Clock           platform.TimeProvider
	Timeout         time.Duration
	CleanupInterval time.Duration

	// LockProbe reports whether another process holds the file
	// exclusively. Defaults to host.ProbeExclusiveLock.
	LockProbe func(path string) bool

	// Visible controls the best-effort visibility of created hosts.
	Visible bool
}

// Manager is the process-wide session registry. All registry mutations
// are serialized by a single lock; host calls happen outside it.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	factory   host.Factory
	clock     platform.TimeProvider
	timeout   time.Duration
	interval  time.Duration
	lockProbe func(string) bool
	visible   bool

	cleanupOnce sync.Once
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewManager builds a session manager. Zero-valued options fall back to
// production defaults.
func NewManager(opts Options) *Manager {
	if opts.Factory == nil {
		opts.Factory = host.NewHost
	}
	if opts.Clock == nil {
		opts.Clock = platform.NewRealTimeProvider()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.LockProbe == nil {
		opts.LockProbe = host.ProbeExclusiveLock
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		factory:   opts.Factory,
		clock:     opts.Clock,
		timeout:   opts.Timeout,
		interval:  opts.CleanupInterval,
		lockProbe: opts.LockProbe,
		visible:   opts.Visible,
	}
}

// Factory exposes the host factory so the edit pipeline can open the
// throwaway read-only verification instance outside the registry.
func (m *Manager) Factory() host.Factory { return m.factory }

// Clock exposes the manager's time source.
func (m *Manager) Clock() platform.TimeProvider { return m.clock }

// normalize resolves the registry key for a path.
func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// GetOrCreate returns the session for path, creating one if needed. A dead
// cached session is discarded without saving and replaced. ForceNew closes
// any existing session first.
func (m *Manager) GetOrCreate(path string, readOnly, forceNew bool) (*Session, error) {
	key, err := normalize(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(key); err != nil {
		return nil, &vbaerr.NotFoundError{Path: key}
	}

	m.mu.Lock()
	existing := m.sessions[key]
	m.mu.Unlock()

	if existing != nil && !forceNew {
		// Probe outside the lock; re-check membership after.
		if existing.IsAlive() {
			existing.Touch(m.clock.Now())
			logging.Debug("reusing session for %s", filepath.Base(key))
			return existing, nil
		}
		logging.Warning("stale session detected for %s, recreating", filepath.Base(key))
		m.discard(key, existing)
	} else if existing != nil && forceNew {
		m.CloseSession(key, false)
	}

	// The file may be held exclusively by someone else. Our own dead
	// session was already discarded above, so a lock here is external.
	if m.lockProbe(key) {
		return nil, &vbaerr.LockedError{
			Path:   key,
			Reason: "the file is open in another application, close it and retry",
		}
	}

	sess, err := m.create(key, readOnly)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if raced, ok := m.sessions[key]; ok {
		// Another task created a session while ours was opening. Keep the
		// registered one to preserve uniqueness.
		go sess.close(false)
		return raced, nil
	}
	m.sessions[key] = sess
	return sess, nil
}

func (m *Manager) create(key string, readOnly bool) (*Session, error) {
	family, err := vbaproject.FamilyForPath(key)
	if err != nil {
		return nil, err
	}

	h, err := m.factory(family)
	if err != nil {
		return nil, err
	}

	// Both properties are best-effort: locked-down environments refuse
	// them and the session still works.
	if err := h.SetVisible(m.visible); err != nil {
		logging.Warning("could not set host visibility: %v", err)
	}
	if err := h.SetDisplayAlerts(false); err != nil {
		logging.Warning("could not suppress host alerts: %v", err)
	}

	doc, err := h.Open(key, readOnly)
	if err != nil {
		h.Quit()
		h.Release()
		return nil, err
	}

	now := m.clock.Now()
	sess := &Session{
		ID:           uuid.NewString(),
		Path:         key,
		Family:       family,
		ReadOnly:     readOnly,
		OpenedAt:     now,
		lastAccessed: now,
		h:            h,
		doc:          doc,
	}
	logging.Info("session %s created for %s (%s)", sess.ID, filepath.Base(key), family)
	return sess, nil
}

// discard removes a dead session without saving.
func (m *Manager) discard(key string, sess *Session) {
	m.mu.Lock()
	if m.sessions[key] == sess {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	sess.close(false)
}

// Lookup returns the live session for path without creating one.
func (m *Manager) Lookup(path string) (*Session, bool) {
	key, err := normalize(path)
	if err != nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	return sess, ok
}

// CloseSession closes the session for path, saving first when asked and
// the session is writable.
func (m *Manager) CloseSession(path string, save bool) error {
	key, err := normalize(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	sess, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no open session for %s", filepath.Base(key))
	}
	sess.close(save)
	logging.Info("session closed for %s", filepath.Base(key))
	return nil
}

// CloseAll closes every session. Used at shutdown; saves by default.
func (m *Manager) CloseAll(save bool) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for key, sess := range m.sessions {
		all = append(all, sess)
		delete(m.sessions, key)
	}
	m.mu.Unlock()
	for _, sess := range all {
		sess.close(save)
	}
}

// List snapshots every active session.
func (m *Manager) List() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	out := make([]Info, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, Info{
			SessionID:   sess.ID,
			FileName:    filepath.Base(sess.Path),
			FilePath:    sess.Path,
			AppType:     string(sess.Family),
			ReadOnly:    sess.ReadOnly,
			AgeSeconds:  now.Sub(sess.OpenedAt).Seconds(),
			IdleSeconds: now.Sub(sess.LastAccessed()).Seconds(),
		})
	}
	return out
}

// StartCleanup launches the idle-eviction task. It runs until the context
// is canceled or Shutdown is called.
func (m *Manager) StartCleanup(ctx context.Context) {
	m.cleanupOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.cleanupLoop(ctx)
	})
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer close(m.done)
	logging.Debug("session cleanup task started")
	for {
		select {
		case <-ctx.Done():
			logging.Debug("session cleanup task stopped")
			return
		case <-m.clock.After(m.interval):
			m.evictStale()
		}
	}
}

// evictStale closes sessions idle past the timeout or failing the
// liveness probe. Eviction saves; dead sessions cannot save and are
// closed without.
func (m *Manager) evictStale() {
	m.mu.Lock()
	candidates := make(map[string]*Session, len(m.sessions))
	for key, sess := range m.sessions {
		candidates[key] = sess
	}
	m.mu.Unlock()

	now := m.clock.Now()
	for key, sess := range candidates {
		idle := now.Sub(sess.LastAccessed())
		switch {
		case idle > m.timeout:
			logging.Info("session for %s idle %.0fs, closing", filepath.Base(key), idle.Seconds())
			m.remove(key, sess, true)
		case !sess.IsAlive():
			logging.Warning("session for %s is dead, removing", filepath.Base(key))
			m.remove(key, sess, false)
		}
	}
}

func (m *Manager) remove(key string, sess *Session, save bool) {
	m.mu.Lock()
	if m.sessions[key] != sess {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, key)
	m.mu.Unlock()
	sess.close(save)
}

// Shutdown stops the cleanup task and closes all sessions with save.
func (m *Manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
	}
	m.CloseAll(true)
}
