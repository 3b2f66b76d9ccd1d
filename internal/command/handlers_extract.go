// File: internal/command/handlers_extract.go
package command

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

func handleScreenshot(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Path     string `json:"path"`
		FullPage bool   `json:"full_page"`
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	rel := args.Path
	if rel == "" {
		rel = fmt.Sprintf("screenshot-%s.png", time.Now().UTC().Format("20060102-150405"))
	}
	path, err := sandbox.ConfineForWrite(s.SandboxDir, rel)
	if err != nil {
		return "", nil, err
	}

	page := s.Page()
	if args.Selector != "" {
		res, err := selector.Resolve(page, args.Selector, selector.ExpectOne)
		if err != nil {
			return "", nil, err
		}
		if _, err := res.Locator.Screenshot(playwright.LocatorScreenshotOptions{
			Path:    playwright.String(path),
			Timeout: playwright.Float(remainingMs(ctx)),
		}); err != nil {
			return "", nil, fmt.Errorf("element screenshot failed: %w", err)
		}
	} else {
		if _, err := page.Screenshot(playwright.PageScreenshotOptions{
			Path:     playwright.String(path),
			FullPage: playwright.Bool(args.FullPage),
			Timeout:  playwright.Float(remainingMs(ctx)),
		}); err != nil {
			return "", nil, fmt.Errorf("screenshot failed: %w", err)
		}
	}

	return fmt.Sprintf("Screenshot saved to %s", path), map[string]any{"path": path}, nil
}

func handleText(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("text requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	text, err := res.Locator.TextContent()
	if err != nil {
		return "", nil, fmt.Errorf("reading text of %q: %w", args.Selector, err)
	}
	return text, map[string]any{"text": text}, nil
}

func handleValue(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("value requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	value, err := res.Locator.InputValue()
	if err != nil {
		return "", nil, fmt.Errorf("reading value of %q: %w", args.Selector, err)
	}

	shown := sandbox.MaskValue(value, fieldIdentifiers(res.Locator, args.Selector)...)
	return shown, map[string]any{"value": shown}, nil
}

func handleAttr(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Name     string `json:"name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" || args.Name == "" {
		return "", nil, invalidArg("attr requires selector and name")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	value, err := res.Locator.GetAttribute(args.Name)
	if err != nil {
		return "", nil, fmt.Errorf("reading attribute %q of %q: %w", args.Name, args.Selector, err)
	}

	shown := sandbox.MaskValue(value, args.Name)
	return shown, map[string]any{"name": args.Name, "value": shown}, nil
}

func handleCount(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("count requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectAny)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%d element(s) match %s", res.Count, args.Selector),
		map[string]any{"count": res.Count}, nil
}

func handleEvaluate(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Script string `json:"script"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Script == "" {
		return "", nil, invalidArg("evaluate requires a script")
	}

	result, err := s.Page().Evaluate(args.Script)
	if err != nil {
		return "", nil, fmt.Errorf("evaluate failed: %w", err)
	}
	return "Script evaluated", map[string]any{"result": result}, nil
}

func handleFindElements(_ context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector      string `json:"selector"`
		IncludeHidden bool   `json:"include_hidden"`
		Limit         int    `json:"limit"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("find_elements requires a selector")
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 20
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectAny)
	if err != nil {
		return "", nil, err
	}

	elements, visible, hidden := selector.InspectMatches(res.Locator, res.Count, limit, args.IncludeHidden)
	for _, el := range elements {
		value, _ := el["value"].(string)
		if value == "" {
			continue
		}
		name, _ := el["name"].(string)
		id, _ := el["id"].(string)
		typ, _ := el["type"].(string)
		el["value"] = sandbox.MaskValue(value, name, id, typ)
	}

	return fmt.Sprintf("%d element(s) match %s (%d visible, %d hidden)", res.Count, args.Selector, visible, hidden),
		map[string]any{
			"count":    res.Count,
			"visible":  visible,
			"hidden":   hidden,
			"elements": elements,
		}, nil
}

// pageStateJS snapshots the interactive surface of the page: on-screen
// elements with their metadata and a suggested selector for each, so the
// caller can act without a screenshot round trip.
const pageStateJS = `() => {
	const elements = [];
	const selectors = [
		'a[href]', 'button', 'input:not([type="hidden"])', 'select',
		'textarea', '[role="button"]', '[onclick]',
		'[tabindex]:not([tabindex="-1"])',
	];
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			const rect = el.getBoundingClientRect();
			if (rect.width === 0 || rect.height === 0) continue;
			if (rect.top > window.innerHeight || rect.bottom < 0) continue;

			const info = {
				tag: el.tagName.toLowerCase(),
				type: el.type || null,
				text: (el.textContent || '').trim().slice(0, 50),
				id: el.id || null,
				name: el.name || null,
				placeholder: el.placeholder || null,
				value: el.value ? String(el.value).slice(0, 100) : null,
				href: el.href ? el.href.slice(0, 200) : null,
			};
			if (el.id) {
				info.selector = '#' + el.id;
			} else if (el.name) {
				info.selector = '[name="' + el.name + '"]';
			} else if (info.text && info.text.length < 30) {
				info.selector = 'text="' + info.text + '"';
			} else if (el.placeholder) {
				info.selector = '[placeholder="' + el.placeholder + '"]';
			}
			elements.push(info);
			if (elements.length >= 30) break;
		}
		if (elements.length >= 30) break;
	}
	return elements;
}`

func handlePageState(_ context.Context, _ *Dispatcher, s *browser.Session, _ jsoniter.RawMessage) (string, map[string]any, error) {
	page := s.Page()
	title, _ := page.Title()

	result, err := page.Evaluate(pageStateJS)
	if err != nil {
		return "", nil, fmt.Errorf("collecting page state: %w", err)
	}

	elements, _ := result.([]any)
	maskElementValues(elements)

	forms, err := page.Locator("form").Count()
	if err != nil {
		forms = 0
	}

	viewport := map[string]any{}
	if vp, err := page.Evaluate("() => ({width: window.innerWidth, height: window.innerHeight})"); err == nil {
		if m, ok := vp.(map[string]any); ok {
			viewport = m
		}
	}

	data := map[string]any{
		"url":                  page.URL(),
		"title":                title,
		"viewport":             viewport,
		"form_count":           forms,
		"interactive_elements": elements,
		"element_count":        len(elements),
	}
	label := title
	if label == "" {
		label = page.URL()
	}
	return fmt.Sprintf("Page state: %s", label), data, nil
}

// maskElementValues blanks values of elements whose metadata marks them as
// sensitive. Masking happens here, at the result boundary, regardless of
// what the page script emits.
func maskElementValues(elements []any) {
	for _, raw := range elements {
		el, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value, _ := el["value"].(string)
		if value == "" {
			continue
		}
		name, _ := el["name"].(string)
		id, _ := el["id"].(string)
		typ, _ := el["type"].(string)
		el["value"] = sandbox.MaskValue(value, name, id, typ)
	}
}
