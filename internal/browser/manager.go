// File: internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/agent-browser/internal/config"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
	"github.com/xkilldash9x/agent-browser/internal/statestore"
)

// ErrSessionNotFound is returned when a command names a session ID that has
// no live session and did not ask for one to be created.
var ErrSessionNotFound = errors.New("session not found")

// ErrTooManySessions is returned when creating a session would exceed the
// configured pool limit.
var ErrTooManySessions = errors.New("session limit reached")

// Manager owns the session pool. Sessions are created lazily on first use;
// concurrent first commands for the same ID are collapsed through
// singleflight so exactly one session is built per ID.
type Manager struct {
	cfg    *config.Config
	log    *zap.Logger
	engine *Engine
	root   string

	mu       sync.RWMutex
	sessions map[string]*Session
	reserved int
	closed   bool

	group singleflight.Group

	// newPage is the page factory, replaced in tests to avoid launching a
	// real browser.
	newPage func(recordDir string) (playwright.BrowserContext, playwright.Page, error)
}

// NewManager creates a Manager with its engine uninitialized. The sandbox
// root defaults to a directory under the OS temp dir when unconfigured.
func NewManager(cfg *config.Config, log *zap.Logger) *Manager {
	engine := NewEngine(cfg.Browser, log)
	root := cfg.Sandbox.Root
	if root == "" {
		root = filepath.Join(os.TempDir(), "agent-browser")
	}
	return &Manager{
		cfg:      cfg,
		log:      log.Named("sessions"),
		engine:   engine,
		root:     root,
		sessions: make(map[string]*Session),
		newPage:  engine.NewPage,
	}
}

// Root returns the resolved sandbox root directory.
func (m *Manager) Root() string { return m.root }

// SetPageFactory replaces the function that backs new sessions with pages.
// Tests use it to run the pool without a live browser.
func (m *Manager) SetPageFactory(f func(recordDir string) (playwright.BrowserContext, playwright.Page, error)) {
	m.newPage = f
}

// Engine exposes the underlying engine for status reporting.
func (m *Manager) Engine() *Engine { return m.engine }

// EnsureSession returns the live session for id, creating it when missing.
// An empty id gets a fresh UUID. The returned session has been touched.
func (m *Manager) EnsureSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	if s := m.lookup(id); s != nil {
		s.Touch()
		return s, nil
	}

	v, err, _ := m.group.Do(id, func() (interface{}, error) {
		if s := m.lookup(id); s != nil {
			return s, nil
		}
		return m.createSession(id)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := v.(*Session)
	s.Touch()
	return s, nil
}

// GetSession returns the live session for id or ErrSessionNotFound.
func (m *Manager) GetSession(id string) (*Session, error) {
	if s := m.lookup(id); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
}

func (m *Manager) lookup(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *Manager) createSession(id string) (*Session, error) {
	// The pool slot is reserved before the page is built so concurrent
	// creations of different ids cannot overshoot the limit.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("session manager is shut down")
	}
	if len(m.sessions)+m.reserved >= m.cfg.Session.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, m.cfg.Session.MaxSessions)
	}
	m.reserved++
	m.mu.Unlock()

	unreserve := func() {
		m.mu.Lock()
		m.reserved--
		m.mu.Unlock()
	}

	sessionDir := filepath.Join(m.root, "sessions", sandbox.SanitizeFilename(id))
	if err := os.MkdirAll(sessionDir, 0o750); err != nil {
		unreserve()
		return nil, fmt.Errorf("creating session sandbox dir: %w", err)
	}

	browserCtx, page, err := m.newPage("")
	if err != nil {
		unreserve()
		return nil, fmt.Errorf("creating session %q: %w", id, err)
	}

	s := &Session{
		ID:             id,
		CreatedAt:      time.Now().UTC(),
		SandboxDir:     sessionDir,
		DefaultTimeout: m.cfg.Session.DefaultTimeout,
		State:          statestore.New(id, m.cfg.Session.MaxLogEntries),
		engine:         m.engine,
		log:            m.log.Named("session").With(zap.String("session_id", id)),
		browserCtx:     browserCtx,
		page:           page,
		lastUsed:       time.Now(),
		onClose: func(id string) {
			m.mu.Lock()
			delete(m.sessions, id)
			m.mu.Unlock()
		},
	}
	if page != nil {
		page.SetDefaultTimeout(float64(s.DefaultTimeout.Milliseconds()))
		s.wireEvents(page)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.reserved--
	m.mu.Unlock()

	m.log.Info("Session created.", zap.String("session_id", id), zap.String("sandbox", sessionDir))
	return s, nil
}

// CloseSession persists and tears down one session.
func (m *Manager) CloseSession(id string) error {
	s := m.lookup(id)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	m.retire(s)
	return nil
}

// retire persists a session's state (when enabled) and closes it.
func (m *Manager) retire(s *Session) {
	if m.cfg.Sandbox.PersistState {
		if err := s.State.Persist(s.SandboxDir); err != nil {
			m.log.Warn("Failed to persist session state.",
				zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	s.Close()
}

// Info describes one live session for listings and status commands.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastURL      string    `json:"last_url,omitempty"`
	CommandCount int64     `json:"command_count"`
	IdleFor      string    `json:"idle_for"`
	Recording    bool      `json:"recording"`
}

// Sessions lists every live session.
func (m *Manager) Sessions() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		snap := s.State.Snapshot()
		infos = append(infos, Info{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastURL:      snap.LastURL,
			CommandCount: snap.CommandCount,
			IdleFor:      s.IdleFor().Round(time.Second).String(),
			Recording:    s.Recording(),
		})
	}
	return infos
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartJanitor evicts idle sessions on a fixed interval until ctx is done.
func (m *Manager) StartJanitor(ctx context.Context) {
	idle := m.cfg.Session.IdleTimeout
	if idle <= 0 {
		return
	}
	interval := idle / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.evictIdle(idle)
			}
		}
	}()
}

func (m *Manager) evictIdle(idle time.Duration) {
	m.mu.RLock()
	var stale []*Session
	for _, s := range m.sessions {
		if s.IdleFor() > idle {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.log.Info("Evicting idle session.",
			zap.String("session_id", s.ID),
			zap.Duration("idle", s.IdleFor()))
		m.retire(s)
	}
}

// Shutdown retires every session and stops the engine. The manager accepts
// no new sessions afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range all {
			m.retire(s)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn("Session shutdown timed out; closing engine anyway.")
	}

	return m.engine.Shutdown()
}
