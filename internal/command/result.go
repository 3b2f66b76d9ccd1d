// File: internal/command/result.go
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

// ErrorKind labels a failed result so callers can branch without parsing
// message text.
type ErrorKind string

const (
	KindNotFound             ErrorKind = "NotFound"
	KindTimeout              ErrorKind = "Timeout"
	KindStrictViolation      ErrorKind = "StrictViolation"
	KindPathEscape           ErrorKind = "PathEscape"
	KindPrivateTargetBlocked ErrorKind = "PrivateTargetBlocked"
	KindInvalidArgument      ErrorKind = "InvalidArgument"
	KindEngineError          ErrorKind = "EngineError"
)

// Result is the uniform envelope every command returns. A failed command is
// a structured result, never a transport error.
type Result struct {
	Success    bool           `json:"success"`
	Session    string         `json:"session"`
	Command    Name           `json:"command"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// argError marks a handler failure as the caller's fault.
type argError struct {
	msg string
}

func (e *argError) Error() string { return e.msg }

func invalidArg(format string, args ...any) error {
	return &argError{msg: fmt.Sprintf(format, args...)}
}

// timeoutError reports a wait that ran out of budget, naming the condition
// still unmet when time expired.
type timeoutError struct {
	condition string
}

func (e *timeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s", e.condition)
}

// Classify maps an error to its result kind. Typed errors from the sandbox,
// selector, and session layers carry their own kind; everything else is
// inspected for timeout shapes and falls back to EngineError.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var argErr *argError
	if errors.As(err, &argErr) {
		return KindInvalidArgument
	}
	var parseErr *selector.ParseError
	if errors.As(err, &parseErr) {
		return KindInvalidArgument
	}
	var nfErr *selector.NotFoundError
	if errors.As(err, &nfErr) {
		return KindNotFound
	}
	var strictErr *selector.StrictViolationError
	if errors.As(err, &strictErr) {
		return KindStrictViolation
	}
	var escErr *sandbox.PathEscapeError
	if errors.As(err, &escErr) {
		return KindPathEscape
	}
	var privErr *sandbox.PrivateTargetError
	if errors.As(err, &privErr) {
		return KindPrivateTargetBlocked
	}
	if errors.Is(err, browser.ErrSessionNotFound) {
		return KindNotFound
	}

	var toErr *timeoutError
	if errors.As(err, &toErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "Timeout") ||
		strings.Contains(err.Error(), "timeout") {
		return KindTimeout
	}

	return KindEngineError
}

// errorData attaches structured detail for error kinds that carry it, such
// as strict-violation match listings.
func errorData(err error) map[string]any {
	var strictErr *selector.StrictViolationError
	if errors.As(err, &strictErr) && len(strictErr.Matches) > 0 {
		return map[string]any{
			"match_count": strictErr.Count,
			"matches":     strictErr.Matches,
		}
	}
	return nil
}
