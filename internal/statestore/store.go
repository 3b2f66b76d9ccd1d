// File: internal/statestore/store.go

// Package statestore keeps the observable state a session accumulates while
// it runs: console output, network activity, and dialog events in bounded
// ring buffers, plus lightweight metadata. The whole store can be persisted
// to the session's sandbox directory and inspected later.
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ConsoleEntry is one captured console message.
type ConsoleEntry struct {
	Type     string    `json:"type"`
	Text     string    `json:"text"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

// NetworkEntry is one finished or failed request.
type NetworkEntry struct {
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Status       int       `json:"status,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	Failure      string    `json:"failure,omitempty"`
	Time         time.Time `json:"time"`
}

// DialogEntry is one dialog the page raised and how it was answered.
type DialogEntry struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Action  string    `json:"action"`
	Time    time.Time `json:"time"`
}

// Ring is a fixed-capacity buffer that discards the oldest entry when full.
// It is safe for concurrent use.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	size  int
}

// NewRing creates a ring holding at most capacity entries.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add appends an entry, evicting the oldest when the ring is full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = item
		r.size++
		return
	}
	r.buf[r.start] = item
	r.start = (r.start + 1) % len(r.buf)
}

// Items returns the entries oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, r.size)
	for i := 0; i < r.size; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Tail returns the newest n entries, oldest first. n <= 0 returns everything.
func (r *Ring[T]) Tail(n int) []T {
	items := r.Items()
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// Len reports the number of buffered entries.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Clear empties the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.size = 0
}

// Store aggregates everything a single session has observed.
type Store struct {
	mu           sync.RWMutex
	id           string
	createdAt    time.Time
	lastURL      string
	lastTitle    string
	commandCount int64

	console *Ring[ConsoleEntry]
	network *Ring[NetworkEntry]
	dialogs *Ring[DialogEntry]
}

// New creates a Store for the given session with each buffer capped at
// maxEntries.
func New(id string, maxEntries int) *Store {
	return &Store{
		id:        id,
		createdAt: time.Now().UTC(),
		console:   NewRing[ConsoleEntry](maxEntries),
		network:   NewRing[NetworkEntry](maxEntries),
		dialogs:   NewRing[DialogEntry](maxEntries),
	}
}

// RecordConsole buffers a console message.
func (s *Store) RecordConsole(e ConsoleEntry) { s.console.Add(e) }

// RecordNetwork buffers a request outcome.
func (s *Store) RecordNetwork(e NetworkEntry) { s.network.Add(e) }

// RecordDialog buffers a dialog event.
func (s *Store) RecordDialog(e DialogEntry) { s.dialogs.Add(e) }

// RecordCommand bumps the command counter and remembers the page URL and
// title after the command ran.
func (s *Store) RecordCommand(currentURL, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandCount++
	if currentURL != "" {
		s.lastURL = currentURL
		s.lastTitle = title
	}
}

// ConsoleTail returns the newest n console entries, oldest first.
func (s *Store) ConsoleTail(n int) []ConsoleEntry { return s.console.Tail(n) }

// NetworkTail returns the newest n network entries, oldest first.
func (s *Store) NetworkTail(n int) []NetworkEntry { return s.network.Tail(n) }

// DialogTail returns the newest n dialog entries, oldest first.
func (s *Store) DialogTail(n int) []DialogEntry { return s.dialogs.Tail(n) }

// ClearConsole drops all buffered console entries.
func (s *Store) ClearConsole() { s.console.Clear() }

// ClearNetwork drops all buffered network entries.
func (s *Store) ClearNetwork() { s.network.Clear() }

// Snapshot is the persisted session metadata.
type Snapshot struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastURL      string    `json:"last_url,omitempty"`
	LastTitle    string    `json:"last_title,omitempty"`
	CommandCount int64     `json:"command_count"`
	ConsoleCount int       `json:"console_count"`
	NetworkCount int       `json:"network_count"`
	DialogCount  int       `json:"dialog_count"`
	SavedAt      time.Time `json:"saved_at"`
}

// Snapshot captures the store's metadata at a point in time.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:           s.id,
		CreatedAt:    s.createdAt,
		LastURL:      s.lastURL,
		LastTitle:    s.lastTitle,
		CommandCount: s.commandCount,
		ConsoleCount: s.console.Len(),
		NetworkCount: s.network.Len(),
		DialogCount:  s.dialogs.Len(),
		SavedAt:      time.Now().UTC(),
	}
}

// File names written by Persist, relative to the session directory.
const (
	snapshotFile   = "state.json"
	consoleLogFile = "console.log.json"
	networkLogFile = "network.log.json"
)

// Persist writes the snapshot and both log buffers into dir. Files are
// written through a temporary name and renamed so a crashed write never
// leaves a truncated log behind.
func (s *Store) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating session state dir: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, snapshotFile), s.Snapshot()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, consoleLogFile), s.console.Items()); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, networkLogFile), s.network.Items())
}

// LoadSnapshot reads a previously persisted snapshot from dir.
func LoadSnapshot(dir string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if err != nil {
		return nil, fmt.Errorf("reading session snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding session snapshot: %w", err)
	}
	return &snap, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
