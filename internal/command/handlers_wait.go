// File: internal/command/handlers_wait.go
package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

func handleWait(ctx context.Context, _ *Dispatcher, _ *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Ms int `json:"ms"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Ms <= 0 {
		return "", nil, invalidArg("wait requires a positive ms")
	}

	timer := time.NewTimer(time.Duration(args.Ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return fmt.Sprintf("Waited %dms", args.Ms), nil, nil
	case <-ctx.Done():
		return "", nil, &timeoutError{condition: fmt.Sprintf("a %dms pause to finish", args.Ms)}
	}
}

func waitForState(name string) (*playwright.WaitForSelectorState, error) {
	switch name {
	case "", "visible":
		return playwright.WaitForSelectorStateVisible, nil
	case "hidden":
		return playwright.WaitForSelectorStateHidden, nil
	case "attached":
		return playwright.WaitForSelectorStateAttached, nil
	case "detached":
		return playwright.WaitForSelectorStateDetached, nil
	default:
		return nil, invalidArg("unknown wait state %q (use attached, detached, visible, or hidden)", name)
	}
}

func handleWaitFor(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		State    string `json:"state"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("wait_for requires a selector")
	}

	state, err := waitForState(args.State)
	if err != nil {
		return "", nil, err
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectAny)
	if err != nil {
		return "", nil, err
	}
	if err := res.Locator.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   state,
		Timeout: playwright.Float(remainingMs(ctx)),
	}); err != nil {
		return "", nil, &timeoutError{condition: fmt.Sprintf("%q to become %s", args.Selector, *state)}
	}
	return fmt.Sprintf("%s is now %s", args.Selector, *state), nil, nil
}

func handleWaitForText(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Text == "" {
		return "", nil, invalidArg("wait_for_text requires text")
	}

	loc := s.Page().Locator("text=" + args.Text)
	if err := loc.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(remainingMs(ctx)),
	}); err != nil {
		return "", nil, &timeoutError{condition: fmt.Sprintf("text %q to appear", args.Text)}
	}
	return fmt.Sprintf("Text %q is visible", args.Text), nil, nil
}

func handleWaitForURL(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Pattern == "" {
		return "", nil, invalidArg("wait_for_url requires a pattern")
	}

	// A bare substring becomes a glob over the whole URL.
	pattern := args.Pattern
	if !strings.ContainsAny(pattern, "*?") {
		pattern = "**" + pattern + "**"
	}

	page := s.Page()
	if err := page.WaitForURL(pattern, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(remainingMs(ctx)),
	}); err != nil {
		return "", nil, &timeoutError{condition: fmt.Sprintf("url to match %q (currently %s)", args.Pattern, page.URL())}
	}
	return fmt.Sprintf("URL matches %q: %s", args.Pattern, page.URL()),
		map[string]any{"url": page.URL()}, nil
}

func handleWaitForLoadState(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		State string `json:"state"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	var state *playwright.LoadState
	switch args.State {
	case "", "load":
		state = playwright.LoadStateLoad
	case "domcontentloaded":
		state = playwright.LoadStateDomcontentloaded
	case "networkidle":
		state = playwright.LoadStateNetworkidle
	default:
		return "", nil, invalidArg("unknown load state %q", args.State)
	}

	if err := s.Page().WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   state,
		Timeout: playwright.Float(remainingMs(ctx)),
	}); err != nil {
		return "", nil, &timeoutError{condition: fmt.Sprintf("load state %s", *state)}
	}
	return fmt.Sprintf("Load state %s reached", *state), nil, nil
}

func handleWaitForChange(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Attr     string `json:"attr"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("wait_for_change requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}

	read := func() (string, error) {
		if args.Attr != "" {
			v, err := res.Locator.GetAttribute(args.Attr)
			return v, err
		}
		return res.Locator.TextContent()
	}

	initial, err := read()
	if err != nil {
		return "", nil, fmt.Errorf("reading initial state of %q: %w", args.Selector, err)
	}

	what := "text"
	if args.Attr != "" {
		what = fmt.Sprintf("attribute %q", args.Attr)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", nil, &timeoutError{condition: fmt.Sprintf("%s of %q to change", what, args.Selector)}
		case <-ticker.C:
			current, err := read()
			if err != nil {
				// The element may have been replaced; that counts as change.
				return fmt.Sprintf("%s of %s changed (element replaced)", what, args.Selector), nil, nil
			}
			if current != initial {
				return fmt.Sprintf("%s of %s changed", what, args.Selector),
					map[string]any{"before": initial, "after": current}, nil
			}
		}
	}
}
