// File: internal/command/result_test.go
package command

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"arg error", invalidArg("bad"), KindInvalidArgument},
		{"selector parse", &selector.ParseError{Selector: "x", Reason: "r"}, KindInvalidArgument},
		{"selector not found", &selector.NotFoundError{Selector: "x"}, KindNotFound},
		{"strict violation", &selector.StrictViolationError{Selector: "x", Count: 2}, KindStrictViolation},
		{"path escape", &sandbox.PathEscapeError{Path: "../x", Root: "/r"}, KindPathEscape},
		{"private target", &sandbox.PrivateTargetError{Target: "http://10.0.0.1", Reason: "private"}, KindPrivateTargetBlocked},
		{"session not found", fmt.Errorf("lookup: %w", browser.ErrSessionNotFound), KindNotFound},
		{"wait budget", &timeoutError{condition: "element to be visible"}, KindTimeout},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"driver timeout text", errors.New("playwright: Timeout 10000ms exceeded"), KindTimeout},
		{"wrapped typed error", fmt.Errorf("outer: %w", &selector.NotFoundError{Selector: "y"}), KindNotFound},
		{"anything else", errors.New("net: connection refused by peer"), KindEngineError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestErrorData_StrictViolation(t *testing.T) {
	err := &selector.StrictViolationError{
		Selector: "a",
		Count:    3,
		Matches:  []string{"nth=0: a#one", "nth=1: a#two"},
	}
	data := errorData(err)
	assert.Equal(t, 3, data["match_count"])
	assert.Len(t, data["matches"], 2)

	assert.Nil(t, errorData(errors.New("plain")))
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &timeoutError{condition: "element position to settle"}
	assert.Contains(t, err.Error(), "timed out waiting for element position to settle")
}
