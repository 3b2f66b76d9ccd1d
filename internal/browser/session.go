// File: internal/browser/session.go
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/statestore"
)

// DialogAction tells the session how to answer the next page dialog.
type DialogAction struct {
	// Action is "accept" or "dismiss".
	Action string
	// Text is the prompt response when accepting a prompt dialog.
	Text string
}

// Session binds one isolated browser context and page to a caller-visible
// session ID, together with its sandbox directory and observed state.
// Commands against a session are serialized through Acquire/Release; the
// page itself is not safe for concurrent command execution.
type Session struct {
	ID             string
	CreatedAt      time.Time
	SandboxDir     string
	DefaultTimeout time.Duration
	State          *statestore.Store

	engine *Engine
	log    *zap.Logger

	// cmdMu serializes command execution for this session.
	cmdMu sync.Mutex

	// mu guards the fields below; recording swaps the context and page.
	mu         sync.RWMutex
	browserCtx playwright.BrowserContext
	page       playwright.Page
	lastUsed   time.Time
	recording  bool
	recordDir  string

	dialogMu   sync.Mutex
	nextDialog *DialogAction

	closeOnce sync.Once
	onClose   func(id string)
}

// Acquire takes the session's command lock. Every command handler runs
// between Acquire and Release.
func (s *Session) Acquire() { s.cmdMu.Lock() }

// Release drops the command lock.
func (s *Session) Release() { s.cmdMu.Unlock() }

// Page returns the session's current page.
func (s *Session) Page() playwright.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Context returns the session's current browser context.
func (s *Session) Context() playwright.BrowserContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.browserCtx
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// IdleFor reports how long the session has gone without a command.
func (s *Session) IdleFor() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.lastUsed)
}

// Recording reports whether the session's context records video.
func (s *Session) Recording() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recording
}

// SetNextDialogAction arms a one-shot answer for the next dialog the page
// raises. Without one, dialogs are dismissed so a stray alert can never
// stall a command.
func (s *Session) SetNextDialogAction(a DialogAction) {
	s.dialogMu.Lock()
	s.nextDialog = &a
	s.dialogMu.Unlock()
}

func (s *Session) takeDialogAction() DialogAction {
	s.dialogMu.Lock()
	defer s.dialogMu.Unlock()
	if s.nextDialog != nil {
		a := *s.nextDialog
		s.nextDialog = nil
		return a
	}
	return DialogAction{Action: "dismiss"}
}

// wireEvents attaches the observation hooks feeding the session's state
// store. Called for the initial page and again after a recording swap.
func (s *Session) wireEvents(page playwright.Page) {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		entry := statestore.ConsoleEntry{
			Type: msg.Type(),
			Text: msg.Text(),
			Time: time.Now().UTC(),
		}
		if loc := msg.Location(); loc != nil {
			entry.Location = fmt.Sprintf("%s:%d", loc.URL, loc.LineNumber)
		}
		s.State.RecordConsole(entry)
	})

	page.OnRequestFinished(func(req playwright.Request) {
		entry := statestore.NetworkEntry{
			Method:       req.Method(),
			URL:          req.URL(),
			ResourceType: req.ResourceType(),
			Time:         time.Now().UTC(),
		}
		if resp, err := req.Response(); err == nil && resp != nil {
			entry.Status = resp.Status()
		}
		s.State.RecordNetwork(entry)
	})

	page.OnRequestFailed(func(req playwright.Request) {
		entry := statestore.NetworkEntry{
			Method:       req.Method(),
			URL:          req.URL(),
			ResourceType: req.ResourceType(),
			Time:         time.Now().UTC(),
		}
		if ferr := req.Failure(); ferr != nil {
			entry.Failure = ferr.Error()
		}
		s.State.RecordNetwork(entry)
	})

	page.OnDialog(func(dialog playwright.Dialog) {
		action := s.takeDialogAction()
		var err error
		if action.Action == "accept" {
			if action.Text != "" && dialog.Type() == "prompt" {
				err = dialog.Accept(action.Text)
			} else {
				err = dialog.Accept()
			}
		} else {
			err = dialog.Dismiss()
		}
		if err != nil {
			s.log.Warn("Failed to answer page dialog.",
				zap.String("type", dialog.Type()), zap.Error(err))
		}
		s.State.RecordDialog(statestore.DialogEntry{
			Type:    dialog.Type(),
			Message: dialog.Message(),
			Action:  action.Action,
			Time:    time.Now().UTC(),
		})
	})
}

// StartRecording swaps the session onto a fresh context that records video
// into dir. Page state (URL, DOM) does not survive the swap; cookies and
// storage belong to the old context and are dropped with it.
func (s *Session) StartRecording(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return fmt.Errorf("session %q is already recording", s.ID)
	}
	if err := s.swapContextLocked(dir); err != nil {
		return err
	}
	s.recording = true
	s.recordDir = dir
	s.log.Info("Recording started.", zap.String("dir", dir))
	return nil
}

// StopRecording finalizes the video, swaps the session back onto a plain
// context, and returns the recorded file's path.
func (s *Session) StopRecording() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording {
		return "", fmt.Errorf("session %q is not recording", s.ID)
	}

	video := s.page.Video()

	// The video file is finalized when the recording context closes.
	if err := s.swapContextLocked(""); err != nil {
		return "", err
	}
	s.recording = false
	s.recordDir = ""

	if video == nil {
		return "", fmt.Errorf("recording context produced no video")
	}
	path, err := video.Path()
	if err != nil {
		return "", fmt.Errorf("resolving video path: %w", err)
	}
	s.log.Info("Recording stopped.", zap.String("path", path))
	return path, nil
}

// swapContextLocked closes the current context and replaces it with a new
// one, rewiring the observation hooks. Callers hold s.mu.
func (s *Session) swapContextLocked(recordDir string) error {
	newCtx, newPage, err := s.engine.NewPage(recordDir)
	if err != nil {
		return fmt.Errorf("creating replacement context: %w", err)
	}

	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browserCtx != nil {
		_ = s.browserCtx.Close()
	}

	s.browserCtx = newCtx
	s.page = newPage
	newPage.SetDefaultTimeout(float64(s.DefaultTimeout.Milliseconds()))
	s.wireEvents(newPage)
	return nil
}

// Close tears the session down: the page and context are closed and the
// deregistration callback runs. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.page != nil {
			_ = s.page.Close()
			s.page = nil
		}
		if s.browserCtx != nil {
			_ = s.browserCtx.Close()
			s.browserCtx = nil
		}
		s.mu.Unlock()

		if s.onClose != nil {
			s.onClose(s.ID)
		}
		s.log.Info("Session closed.")
	})
}
