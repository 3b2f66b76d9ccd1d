// File: internal/browser/manager_test.go
package browser

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agent-browser/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newTestManager builds a Manager whose page factory is stubbed out, so no
// browser process is ever launched. Sessions carry a nil page, which is fine
// for pool bookkeeping tests.
func newTestManager(t *testing.T) (*Manager, *atomic.Int32) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Sandbox.Root = t.TempDir()
	cfg.Session.MaxSessions = 3

	m := NewManager(cfg, zaptest.NewLogger(t))
	var created atomic.Int32
	m.newPage = func(recordDir string) (playwright.BrowserContext, playwright.Page, error) {
		created.Add(1)
		return nil, nil, nil
	}
	return m, &created
}

func TestEnsureSession_CreatesAndReuses(t *testing.T) {
	m, created := newTestManager(t)
	ctx := context.Background()

	s1, err := m.EnsureSession(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", s1.ID)
	assert.DirExists(t, s1.SandboxDir)

	s2, err := m.EnsureSession(ctx, "alpha")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), created.Load())
}

func TestEnsureSession_GeneratesID(t *testing.T) {
	m, _ := newTestManager(t)

	s, err := m.EnsureSession(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, m.Count())
}

func TestEnsureSession_ConcurrentFirstUse(t *testing.T) {
	m, created := newTestManager(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EnsureSession(context.Background(), "shared")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load(), "concurrent first commands must build one session")
	assert.Equal(t, 1, m.Count())
}

func TestEnsureSession_PoolLimit(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.EnsureSession(ctx, id)
		require.NoError(t, err)
	}

	_, err := m.EnsureSession(ctx, "d")
	require.ErrorIs(t, err, ErrTooManySessions)

	// Existing sessions stay reachable at the limit.
	_, err = m.EnsureSession(ctx, "a")
	assert.NoError(t, err)
}

func TestEnsureSession_RetryAfterFactoryFailure(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	boom := errors.New("driver launch failed")
	m.newPage = func(string) (playwright.BrowserContext, playwright.Page, error) {
		return nil, nil, boom
	}

	_, err := m.EnsureSession(ctx, "flaky")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Count())

	// The environment recovers; the same id must be creatable again.
	m.newPage = func(string) (playwright.BrowserContext, playwright.Page, error) {
		return nil, nil, nil
	}
	s, err := m.EnsureSession(ctx, "flaky")
	require.NoError(t, err)
	assert.Equal(t, "flaky", s.ID)
}

func TestEnsureSession_FailedCreateReleasesSlot(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	boom := errors.New("no page")
	m.newPage = func(string) (playwright.BrowserContext, playwright.Page, error) {
		return nil, nil, boom
	}
	for _, id := range []string{"x", "y", "z"} {
		_, err := m.EnsureSession(ctx, id)
		require.ErrorIs(t, err, boom)
	}

	// Three failed creations must not consume the three pool slots.
	m.newPage = func(string) (playwright.BrowserContext, playwright.Page, error) {
		return nil, nil, nil
	}
	for _, id := range []string{"a", "b", "c"} {
		_, err := m.EnsureSession(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Count())
}

func TestCloseSession(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.EnsureSession(ctx, "gone")
	require.NoError(t, err)
	require.NoError(t, m.CloseSession("gone"))

	_, err = m.GetSession("gone")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, m.Count())

	// Persisted state lands in the session's sandbox dir.
	assert.FileExists(t, filepath.Join(s.SandboxDir, "state.json"))

	assert.ErrorIs(t, m.CloseSession("gone"), ErrSessionNotFound)
}

func TestSessionIsolation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s1, err := m.EnsureSession(ctx, "one")
	require.NoError(t, err)
	s2, err := m.EnsureSession(ctx, "two")
	require.NoError(t, err)

	assert.NotEqual(t, s1.SandboxDir, s2.SandboxDir)

	s1.State.RecordCommand("https://example.com/", "Example")
	assert.Equal(t, int64(0), s2.State.Snapshot().CommandCount)
}

func TestEvictIdle(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.EnsureSession(ctx, "stale")
	require.NoError(t, err)
	fresh, err := m.EnsureSession(ctx, "fresh")
	require.NoError(t, err)

	s.mu.Lock()
	s.lastUsed = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	m.evictIdle(30 * time.Minute)

	_, err = m.GetSession("stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.GetSession(fresh.ID)
	assert.NoError(t, err)
}

func TestShutdown(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.EnsureSession(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx))
	assert.Equal(t, 0, m.Count())

	_, err = m.EnsureSession(ctx, "y")
	assert.Error(t, err, "manager must reject sessions after shutdown")

	// Second shutdown is a no-op.
	assert.NoError(t, m.Shutdown(ctx))
}

func TestSessionInfoListing(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	s, err := m.EnsureSession(ctx, "listed")
	require.NoError(t, err)
	s.State.RecordCommand("https://example.com/page", "Example Page")

	infos := m.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, "listed", infos[0].ID)
	assert.Equal(t, "https://example.com/page", infos[0].LastURL)
	assert.Equal(t, int64(1), infos[0].CommandCount)
}

func TestDialogActionOneShot(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.EnsureSession(context.Background(), "dlg")
	require.NoError(t, err)

	s.SetNextDialogAction(DialogAction{Action: "accept", Text: "ok"})
	first := s.takeDialogAction()
	assert.Equal(t, "accept", first.Action)
	assert.Equal(t, "ok", first.Text)

	second := s.takeDialogAction()
	assert.Equal(t, "dismiss", second.Action, "dialog answers are one-shot")
}
