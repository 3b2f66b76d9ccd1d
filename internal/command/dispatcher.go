// File: internal/command/dispatcher.go
package command

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/config"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
)

// handlerFunc executes one command against a session (nil for sessionless
// commands) and returns a human-readable message plus structured data.
type handlerFunc func(ctx context.Context, d *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error)

// Dispatcher routes envelopes to command handlers. It owns cross-cutting
// policy: the closed command set, per-session serialization, timeouts, and
// the mapping from errors to result kinds.
type Dispatcher struct {
	cfg       *config.Config
	manager   *browser.Manager
	validator *sandbox.Validator
	log       *zap.Logger
}

// NewDispatcher wires a dispatcher to its session pool and target policy.
func NewDispatcher(cfg *config.Config, manager *browser.Manager, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		manager:   manager,
		validator: sandbox.NewValidator(cfg.Sandbox.AllowPrivate),
		log:       log.Named("dispatch"),
	}
}

// Manager exposes the session pool for transports that list sessions.
func (d *Dispatcher) Manager() *browser.Manager { return d.manager }

// Dispatch runs one command to completion and always returns a structured
// Result; errors become failed results, never panics or transport faults.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) Result {
	start := time.Now()

	fail := func(err error) Result {
		d.log.Debug("Command failed.",
			zap.String("command", string(env.Name)),
			zap.String("session", env.Session),
			zap.Error(err))
		return Result{
			Success:    false,
			Session:    env.Session,
			Command:    env.Name,
			Message:    err.Error(),
			Data:       errorData(err),
			ErrorKind:  Classify(err),
			DurationMs: time.Since(start).Milliseconds(),
		}
	}

	if _, known := ClassOf(env.Name); !known {
		return fail(invalidArg("unknown command %q", env.Name))
	}

	handler := handlerFor(env.Name)

	timeout := d.cfg.Session.DefaultTimeout
	if env.TimeoutMs > 0 {
		timeout = time.Duration(env.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var s *browser.Session
	if needsSession(env.Name) {
		var err error
		if env.Name == CloseSession {
			// Closing never creates what it is about to destroy.
			s, err = d.manager.GetSession(env.Session)
		} else {
			s, err = d.manager.EnsureSession(ctx, env.Session)
		}
		if err != nil {
			return fail(err)
		}
		if env.Session == "" {
			env.Session = s.ID
		}

		s.Acquire()
		defer s.Release()
		s.Touch()
	} else if env.Session != "" {
		// Status-style commands may read an addressed session but never
		// create one.
		s, _ = d.manager.GetSession(env.Session)
	}

	msg, data, err := d.runHandler(ctx, handler, s, env)

	if s != nil && needsSession(env.Name) && env.Name != CloseSession {
		currentURL, title := "", ""
		if page := s.Page(); page != nil {
			currentURL = page.URL()
			title, _ = page.Title()
		}
		s.State.RecordCommand(currentURL, title)
	}

	if err != nil {
		r := fail(err)
		// Handlers may attach recovery data to a failure, e.g. candidate
		// selectors after a NotFound click.
		if len(data) > 0 {
			r.Data = data
		}
		return r
	}

	d.log.Debug("Command completed.",
		zap.String("command", string(env.Name)),
		zap.String("session", env.Session),
		zap.Duration("took", time.Since(start)))

	return Result{
		Success:    true,
		Session:    env.Session,
		Command:    env.Name,
		Message:    msg,
		Data:       data,
		DurationMs: time.Since(start).Milliseconds(),
	}
}

// runHandler executes a handler and converts any panic into an ordinary
// error so a misbehaving command cannot take down the transport.
func (d *Dispatcher) runHandler(ctx context.Context, handler handlerFunc, s *browser.Session, env Envelope) (msg string, data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Command handler panicked.",
				zap.String("command", string(env.Name)),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("internal error executing %s: %v", env.Name, r)
		}
	}()
	return handler(ctx, d, s, jsoniter.RawMessage(env.Args))
}

// handlerFor maps every command in the closed set to its handler.
func handlerFor(n Name) handlerFunc {
	switch n {
	case Goto:
		return handleGoto
	case Back:
		return handleBack
	case Forward:
		return handleForward
	case Reload:
		return handleReload
	case GetURL:
		return handleGetURL
	case Click:
		return handleClick
	case ClickNth:
		return handleClickNth
	case Fill:
		return handleFill
	case Type:
		return handleType
	case Select:
		return handleSelect
	case Hover:
		return handleHover
	case Focus:
		return handleFocus
	case Press:
		return handlePress
	case Upload:
		return handleUpload
	case Scroll:
		return handleScroll
	case Wait:
		return handleWait
	case WaitFor:
		return handleWaitFor
	case WaitForText:
		return handleWaitForText
	case WaitForURL:
		return handleWaitForURL
	case WaitForLoadState:
		return handleWaitForLoadState
	case WaitForChange:
		return handleWaitForChange
	case Screenshot:
		return handleScreenshot
	case Text:
		return handleText
	case Value:
		return handleValue
	case Attr:
		return handleAttr
	case Count:
		return handleCount
	case Evaluate:
		return handleEvaluate
	case FindElements:
		return handleFindElements
	case PageState:
		return handlePageState
	case AssertVisible:
		return handleAssertVisible
	case AssertText:
		return handleAssertText
	case AssertURL:
		return handleAssertURL
	case Viewport:
		return handleViewport
	case Cookies:
		return handleCookies
	case Storage:
		return handleStorage
	case Clear:
		return handleClear
	case Console:
		return handleConsole
	case Network:
		return handleNetwork
	case Dialog:
		return handleDialog
	case BrowserStatus:
		return handleBrowserStatus
	case CheckLocalPort:
		return handleCheckLocalPort
	case AgentGuide:
		return handleAgentGuide
	case StartRecording:
		return handleStartRecording
	case StopRecording:
		return handleStopRecording
	case CloseSession:
		return handleCloseSession
	default:
		// Unreachable: Dispatch validates against ClassOf first.
		return func(context.Context, *Dispatcher, *browser.Session, jsoniter.RawMessage) (string, map[string]any, error) {
			return "", nil, invalidArg("unknown command %q", n)
		}
	}
}

// remainingMs converts the context's remaining budget into the millisecond
// timeouts the browser driver expects.
func remainingMs(ctx context.Context) float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 30000
	}
	ms := time.Until(deadline).Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return float64(ms)
}
