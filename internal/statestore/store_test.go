// File: internal/statestore/store_test.go
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_Basic(t *testing.T) {
	r := NewRing[int](3)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	r.Add(1)
	r.Add(2)
	assert.Equal(t, []int{1, 2}, r.Items())
}

func TestRing_EvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Add(i)
	}
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
}

func TestRing_Tail(t *testing.T) {
	r := NewRing[int](10)
	for i := 0; i < 6; i++ {
		r.Add(i)
	}
	assert.Equal(t, []int{4, 5}, r.Tail(2))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, r.Tail(0))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, r.Tail(100))
}

func TestRing_Clear(t *testing.T) {
	r := NewRing[string](2)
	r.Add("a")
	r.Add("b")
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Items())

	r.Add("c")
	assert.Equal(t, []string{"c"}, r.Items())
}

func TestRing_ConcurrentWriters(t *testing.T) {
	r := NewRing[int](50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				r.Add(i)
				_ = r.Items()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}

func TestStore_RecordAndTail(t *testing.T) {
	s := New("sess-1", 200)

	for i := 0; i < 3; i++ {
		s.RecordConsole(ConsoleEntry{Type: "log", Text: fmt.Sprintf("msg %d", i), Time: time.Now()})
	}
	s.RecordNetwork(NetworkEntry{Method: "GET", URL: "https://example.com/", Status: 200, Time: time.Now()})
	s.RecordDialog(DialogEntry{Type: "confirm", Message: "sure?", Action: "accept", Time: time.Now()})

	console := s.ConsoleTail(2)
	require.Len(t, console, 2)
	assert.Equal(t, "msg 1", console[0].Text)
	assert.Equal(t, "msg 2", console[1].Text)

	require.Len(t, s.NetworkTail(0), 1)
	require.Len(t, s.DialogTail(0), 1)
}

func TestStore_CapEnforced(t *testing.T) {
	s := New("sess-cap", 200)
	for i := 0; i < 250; i++ {
		s.RecordConsole(ConsoleEntry{Type: "log", Text: fmt.Sprintf("m%d", i)})
	}
	items := s.ConsoleTail(0)
	require.Len(t, items, 200)
	assert.Equal(t, "m50", items[0].Text)
	assert.Equal(t, "m249", items[len(items)-1].Text)
}

func TestStore_Snapshot(t *testing.T) {
	s := New("sess-snap", 10)
	s.RecordCommand("https://example.com/a", "Page A")
	s.RecordCommand("https://example.com/b", "Page B")
	s.RecordCommand("", "")
	s.RecordConsole(ConsoleEntry{Type: "error", Text: "boom"})

	snap := s.Snapshot()
	assert.Equal(t, "sess-snap", snap.ID)
	assert.Equal(t, int64(3), snap.CommandCount)
	assert.Equal(t, "https://example.com/b", snap.LastURL, "empty URL must not overwrite the last known one")
	assert.Equal(t, "Page B", snap.LastTitle)
	assert.Equal(t, 1, snap.ConsoleCount)
	assert.False(t, snap.SavedAt.IsZero())
}

func TestStore_PersistAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "session-state")
	s := New("sess-persist", 10)
	s.RecordCommand("https://example.com/", "Example")
	s.RecordConsole(ConsoleEntry{Type: "log", Text: "hello"})
	s.RecordNetwork(NetworkEntry{Method: "GET", URL: "https://example.com/", Status: 200})
	s.RecordNetwork(NetworkEntry{Method: "GET", URL: "https://example.com/missing", Failure: "net::ERR_CONNECTION_REFUSED"})

	require.NoError(t, s.Persist(dir))
	assert.FileExists(t, filepath.Join(dir, "state.json"))
	assert.FileExists(t, filepath.Join(dir, "console.log.json"))
	assert.FileExists(t, filepath.Join(dir, "network.log.json"))

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}

	snap, err := LoadSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, "sess-persist", snap.ID)
	assert.Equal(t, int64(1), snap.CommandCount)
	assert.Equal(t, "https://example.com/", snap.LastURL)
}

func TestLoadSnapshot_Missing(t *testing.T) {
	_, err := LoadSnapshot(t.TempDir())
	assert.Error(t, err)
}
