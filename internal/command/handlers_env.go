// File: internal/command/handlers_env.go
package command

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
)

func handleViewport(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Width <= 0 || args.Height <= 0 {
		return "", nil, invalidArg("viewport requires positive width and height")
	}

	if err := s.Page().SetViewportSize(args.Width, args.Height); err != nil {
		return "", nil, fmt.Errorf("resizing viewport: %w", err)
	}
	return fmt.Sprintf("Viewport set to %dx%d", args.Width, args.Height),
		map[string]any{"width": args.Width, "height": args.Height}, nil
}

func handleCookies(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	cookies, err := s.Context().Cookies()
	if err != nil {
		return "", nil, fmt.Errorf("listing cookies: %w", err)
	}

	out := make([]map[string]any, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, map[string]any{
			"name":      c.Name,
			"value":     sandbox.MaskValue(c.Value, c.Name),
			"domain":    c.Domain,
			"path":      c.Path,
			"http_only": c.HttpOnly,
			"secure":    c.Secure,
		})
	}
	return fmt.Sprintf("%d cookie(s)", len(out)), map[string]any{"cookies": out}, nil
}

const storageJS = `() => {
	const dump = (store) => {
		const out = {};
		for (let i = 0; i < store.length; i++) {
			const k = store.key(i);
			out[k] = store.getItem(k);
		}
		return out;
	};
	return { local: dump(localStorage), session: dump(sessionStorage) };
}`

func handleStorage(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	result, err := s.Page().Evaluate(storageJS)
	if err != nil {
		return "", nil, fmt.Errorf("reading web storage: %w", err)
	}

	stores, _ := result.(map[string]any)
	total := 0
	for _, scope := range []string{"local", "session"} {
		kv, ok := stores[scope].(map[string]any)
		if !ok {
			continue
		}
		total += len(kv)
		for k, v := range kv {
			if str, ok := v.(string); ok {
				kv[k] = sandbox.MaskValue(str, k)
			}
		}
	}
	return fmt.Sprintf("%d storage entr(ies)", total), map[string]any{"storage": stores}, nil
}

func handleClear(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		What string `json:"what"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	what := args.What
	if what == "" {
		what = "all"
	}

	clearCookies := what == "cookies" || what == "all"
	clearStorage := what == "storage" || what == "all"
	if !clearCookies && !clearStorage {
		return "", nil, invalidArg("clear accepts cookies, storage, or all; got %q", args.What)
	}

	if clearCookies {
		if err := s.Context().ClearCookies(); err != nil {
			return "", nil, fmt.Errorf("clearing cookies: %w", err)
		}
	}
	if clearStorage {
		if _, err := s.Page().Evaluate("() => { localStorage.clear(); sessionStorage.clear(); }"); err != nil {
			return "", nil, fmt.Errorf("clearing web storage: %w", err)
		}
	}
	return fmt.Sprintf("Cleared %s", what), nil, nil
}

func handleConsole(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Action string `json:"action"`
		Limit  int    `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	switch args.Action {
	case "clear":
		s.State.ClearConsole()
		return "Console log cleared", nil, nil
	case "", "list":
		limit := args.Limit
		if limit <= 0 {
			limit = 50
		}
		entries := s.State.ConsoleTail(limit)
		return fmt.Sprintf("%d console entr(ies)", len(entries)),
			map[string]any{"entries": entries}, nil
	default:
		return "", nil, invalidArg("console accepts list or clear; got %q", args.Action)
	}
}

func handleNetwork(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Action string `json:"action"`
		Limit  int    `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	switch args.Action {
	case "clear":
		s.State.ClearNetwork()
		return "Network log cleared", nil, nil
	case "", "list":
		limit := args.Limit
		if limit <= 0 {
			limit = 50
		}
		entries := s.State.NetworkTail(limit)
		return fmt.Sprintf("%d network entr(ies)", len(entries)),
			map[string]any{"entries": entries}, nil
	default:
		return "", nil, invalidArg("network accepts list or clear; got %q", args.Action)
	}
}

func handleDialog(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Action string `json:"action"`
		Text   string `json:"text"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Action != "accept" && args.Action != "dismiss" {
		return "", nil, invalidArg("dialog accepts accept or dismiss; got %q", args.Action)
	}

	s.SetNextDialogAction(browser.DialogAction{Action: args.Action, Text: args.Text})
	recent := s.State.DialogTail(5)
	return fmt.Sprintf("Next dialog will be %sed", args.Action),
		map[string]any{"recent": recent}, nil
}

func handleBrowserStatus(_ context.Context, d *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	m := d.manager
	running := m.Engine().Running()

	permissions := []string{"public_internet"}
	if d.cfg.Sandbox.AllowPrivate {
		permissions = append(permissions, "localhost", "private_networks")
	}

	viewport := map[string]any{
		"width":  d.cfg.Browser.ViewportWidth,
		"height": d.cfg.Browser.ViewportHeight,
	}

	// When the envelope addresses a live session, report its page rather
	// than the configured defaults.
	var activePage map[string]any
	if s != nil {
		if page := s.Page(); page != nil {
			activePage = map[string]any{"url": page.URL()}
			if title, err := page.Title(); err == nil {
				activePage["title"] = title
			}
			if vp, err := page.Evaluate("() => ({width: window.innerWidth, height: window.innerHeight})"); err == nil && vp != nil {
				viewport = map[string]any{"actual": vp}
			}
		}
	}

	data := map[string]any{
		"engine_running": running,
		"engine":         "chromium",
		"headless":       d.cfg.Browser.Headless,
		"permissions":    permissions,
		"viewport":       viewport,
		"selector_engines": []string{
			"css", "xpath=", "text=", "placeholder=", ">> nth=",
		},
		"auto_wait":          true,
		"default_timeout_ms": d.cfg.Session.DefaultTimeout.Milliseconds(),
		"session_count":      m.Count(),
		"sessions":           m.Sessions(),
		"sandbox_root":       m.Root(),
		"active_page":        activePage,
	}

	state := "idle (engine launches on first session)"
	if running {
		state = "running"
	}
	return fmt.Sprintf("Engine %s, %d session(s)", state, m.Count()), data, nil
}

func handleCheckLocalPort(ctx context.Context, _ *Dispatcher, _ *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Port int    `json:"port"`
		Path string `json:"path"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Port <= 0 || args.Port > 65535 {
		return "", nil, invalidArg("check_local_port requires a port between 1 and 65535")
	}

	// The probe is loopback-only on purpose; it exists to answer "is my dev
	// server up", not to scan anything.
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", args.Port))
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Sprintf("Port %d is closed", args.Port),
			map[string]any{"port": args.Port, "open": false}, nil
	}
	_ = conn.Close()

	data := map[string]any{"port": args.Port, "open": true}
	msg := fmt.Sprintf("Port %d is open", args.Port)

	urlPath := args.Path
	if urlPath == "" {
		urlPath = "/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://127.0.0.1:%d%s", args.Port, urlPath), nil)
	if err == nil {
		client := &http.Client{Timeout: 3 * time.Second}
		if resp, herr := client.Do(req); herr == nil {
			_ = resp.Body.Close()
			data["http_status"] = resp.StatusCode
			msg = fmt.Sprintf("Port %d is open, GET %s returned %d", args.Port, urlPath, resp.StatusCode)
		}
	}
	return msg, data, nil
}

const agentGuide = `Session model: every command carries a session id; the first command for an
id creates the session. Start with goto, then inspect with page_state or
find_elements before interacting.

Selectors: css by default, plus text=, xpath=, placeholder=, chained with
" >> ". Append " >> nth=N" (negative N counts from the end) when a selector
matches more than one element; strict commands fail with candidates listed.

Recommended loop: goto -> page_state -> fill/click -> wait_for or
wait_for_url -> assert_* to verify the outcome. Use console and network to
debug failures, screenshot to capture evidence (files land in the session
sandbox), and check_local_port to confirm a local dev server is up before
navigating to it.`

func handleAgentGuide(_ context.Context, _ *Dispatcher, _ *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	return agentGuide, nil, nil
}

func handleStartRecording(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	dir := filepath.Join(s.SandboxDir, "recordings")
	if err := s.StartRecording(dir); err != nil {
		return "", nil, err
	}
	return "Recording started (page state was reset onto a fresh context)",
		map[string]any{"dir": dir}, nil
}

func handleStopRecording(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	path, err := s.StopRecording()
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Recording saved to %s", path), map[string]any{"path": path}, nil
}

func handleCloseSession(_ context.Context, d *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	if err := d.manager.CloseSession(s.ID); err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Session %s closed", s.ID), nil, nil
}
