// File: internal/command/handlers_nav.go
package command

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
)

func waitUntilState(name string) (*playwright.WaitUntilState, error) {
	switch name {
	case "", "load":
		return playwright.WaitUntilStateLoad, nil
	case "domcontentloaded":
		return playwright.WaitUntilStateDomcontentloaded, nil
	case "networkidle":
		return playwright.WaitUntilStateNetworkidle, nil
	case "commit":
		return playwright.WaitUntilStateCommit, nil
	default:
		return nil, invalidArg("unknown wait_until state %q", name)
	}
}

func handleGoto(ctx context.Context, d *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		URL       string `json:"url"`
		WaitUntil string `json:"wait_until"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.URL == "" {
		return "", nil, invalidArg("goto requires a url")
	}

	// Target policy runs before the browser ever sees the URL.
	if err := d.validator.ValidateURL(args.URL); err != nil {
		return "", nil, err
	}

	state, err := waitUntilState(args.WaitUntil)
	if err != nil {
		return "", nil, err
	}

	page := s.Page()
	resp, err := page.Goto(args.URL, playwright.PageGotoOptions{
		WaitUntil: state,
		Timeout:   playwright.Float(remainingMs(ctx)),
	})
	if err != nil {
		return "", nil, fmt.Errorf("navigation to %q failed: %w", args.URL, err)
	}

	data := map[string]any{"url": page.URL()}
	if resp != nil {
		data["status"] = resp.Status()
	}
	return fmt.Sprintf("Navigated to %s", page.URL()), data, nil
}

func handleBack(ctx context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	page := s.Page()
	resp, err := page.GoBack(playwright.PageGoBackOptions{Timeout: playwright.Float(remainingMs(ctx))})
	if err != nil {
		return "", nil, fmt.Errorf("history back failed: %w", err)
	}
	if resp == nil {
		return "No earlier history entry.", map[string]any{"url": page.URL()}, nil
	}
	return fmt.Sprintf("Went back to %s", page.URL()), map[string]any{"url": page.URL()}, nil
}

func handleForward(ctx context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	page := s.Page()
	resp, err := page.GoForward(playwright.PageGoForwardOptions{Timeout: playwright.Float(remainingMs(ctx))})
	if err != nil {
		return "", nil, fmt.Errorf("history forward failed: %w", err)
	}
	if resp == nil {
		return "No later history entry.", map[string]any{"url": page.URL()}, nil
	}
	return fmt.Sprintf("Went forward to %s", page.URL()), map[string]any{"url": page.URL()}, nil
}

func handleReload(ctx context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	page := s.Page()
	if _, err := page.Reload(playwright.PageReloadOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("reload failed: %w", err)
	}
	return fmt.Sprintf("Reloaded %s", page.URL()), map[string]any{"url": page.URL()}, nil
}

func handleGetURL(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	page := s.Page()
	title, _ := page.Title()
	return page.URL(), map[string]any{"url": page.URL(), "title": title}, nil
}
