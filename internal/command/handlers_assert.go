// File: internal/command/handlers_assert.go
package command

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

// Assertions never fail at the protocol level: the check ran, and its
// outcome is [PASS]/[FAIL] in the message plus a boolean in data. Only a
// malformed request or an engine fault produces a failed result.

func handleAssertVisible(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("assert_visible requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectAny)
	if err != nil {
		return "", nil, err
	}
	if res.Count == 0 {
		return fmt.Sprintf("[FAIL] %s is not visible (no match)", args.Selector),
			map[string]any{"visible": false}, nil
	}

	visible, err := res.Locator.First().IsVisible()
	if err != nil {
		return "", nil, fmt.Errorf("checking visibility of %q: %w", args.Selector, err)
	}
	if !visible {
		return fmt.Sprintf("[FAIL] %s is not visible", args.Selector),
			map[string]any{"visible": false}, nil
	}
	return fmt.Sprintf("[PASS] %s is visible", args.Selector),
		map[string]any{"visible": true}, nil
}

func handleAssertText(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Text == "" {
		return "", nil, invalidArg("assert_text requires text")
	}

	page := s.Page()
	where := "page"
	target := page.Locator("body")
	if args.Selector != "" {
		res, err := selector.Resolve(page, args.Selector, selector.ExpectAny)
		if err != nil {
			return "", nil, err
		}
		if res.Count == 0 {
			return fmt.Sprintf("[FAIL] %q not found: %s has no match", args.Text, args.Selector),
				map[string]any{"found": false}, nil
		}
		target = res.Locator.First()
		where = args.Selector
	}

	content, err := target.TextContent()
	if err != nil {
		return "", nil, fmt.Errorf("reading text of %s: %w", where, err)
	}

	if !strings.Contains(content, args.Text) {
		return fmt.Sprintf("[FAIL] %q not found in %s", args.Text, where),
			map[string]any{"found": false, "text": content}, nil
	}
	return fmt.Sprintf("[PASS] %q found in %s", args.Text, where),
		map[string]any{"found": true, "text": content}, nil
}

func handleAssertURL(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Pattern == "" {
		return "", nil, invalidArg("assert_url requires a pattern")
	}

	current := s.Page().URL()
	if !strings.Contains(current, args.Pattern) {
		return fmt.Sprintf("[FAIL] url %q does not contain %q", current, args.Pattern),
			map[string]any{"matched": false, "url": current}, nil
	}
	return fmt.Sprintf("[PASS] url contains %q", args.Pattern),
		map[string]any{"matched": true, "url": current}, nil
}
