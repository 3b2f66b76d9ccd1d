// File: internal/command/handlers_interact.go
package command

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"

	"github.com/xkilldash9x/agent-browser/internal/browser"
	"github.com/xkilldash9x/agent-browser/internal/sandbox"
	"github.com/xkilldash9x/agent-browser/internal/selector"
)

// fieldIdentifiers collects the metadata used to decide whether a field's
// value must be masked in results and logs.
func fieldIdentifiers(loc playwright.Locator, sel string) []string {
	ids := []string{sel}
	for _, attr := range []string{"name", "id", "type", "autocomplete"} {
		if v, err := loc.GetAttribute(attr); err == nil && v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

// withCandidates decorates a NotFound error with live suggestions so the
// caller can correct its selector without another round trip.
func withCandidates(err error, page playwright.Page) (map[string]any, error) {
	var nf *selector.NotFoundError
	if errors.As(err, &nf) {
		if candidates := selector.SuggestCandidates(page); len(candidates) > 0 {
			return map[string]any{"candidates": candidates}, err
		}
	}
	return nil, err
}

func handleClick(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("click requires a selector")
	}

	page := s.Page()
	res, err := selector.Resolve(page, args.Selector, selector.ExpectOne)
	if err != nil {
		data, err := withCandidates(err, page)
		return "", data, err
	}
	if err := waitActionable(ctx, res.Locator, true); err != nil {
		return "", nil, err
	}
	if err := res.Locator.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("click on %q failed: %w", args.Selector, err)
	}
	return fmt.Sprintf("Clicked %s", args.Selector), map[string]any{"url": page.URL()}, nil
}

func handleClickNth(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Index    *int   `json:"index"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" || args.Index == nil {
		return "", nil, invalidArg("click_nth requires selector and index")
	}

	sel := fmt.Sprintf("%s >> nth=%d", args.Selector, *args.Index)
	res, err := selector.Resolve(s.Page(), sel, selector.ExpectOne)
	if err != nil {
		data, err := withCandidates(err, s.Page())
		return "", data, err
	}
	if err := waitActionable(ctx, res.Locator, true); err != nil {
		return "", nil, err
	}
	if err := res.Locator.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("click on %q (index %d) failed: %w", args.Selector, *args.Index, err)
	}
	return fmt.Sprintf("Clicked %s at index %d of %d matches", args.Selector, res.Index, res.Count),
		map[string]any{"index": res.Index, "match_count": res.Count}, nil
}

func handleFill(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Value    string `json:"value"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("fill requires a selector")
	}

	page := s.Page()
	res, err := selector.Resolve(page, args.Selector, selector.ExpectOne)
	if err != nil {
		data, err := withCandidates(err, page)
		return "", data, err
	}
	if err := waitActionable(ctx, res.Locator, true); err != nil {
		return "", nil, err
	}
	if err := res.Locator.Fill(args.Value, playwright.LocatorFillOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("fill on %q failed: %w", args.Selector, err)
	}

	shown := sandbox.MaskValue(args.Value, fieldIdentifiers(res.Locator, args.Selector)...)
	return fmt.Sprintf("Filled %s with %q", args.Selector, shown), nil, nil
}

func handleType(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
		DelayMs  int    `json:"delay_ms"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("type requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		data, err := withCandidates(err, s.Page())
		return "", data, err
	}
	if err := waitActionable(ctx, res.Locator, true); err != nil {
		return "", nil, err
	}

	opts := playwright.LocatorPressSequentiallyOptions{Timeout: playwright.Float(remainingMs(ctx))}
	if args.DelayMs > 0 {
		opts.Delay = playwright.Float(float64(args.DelayMs))
	}
	if err := res.Locator.PressSequentially(args.Text, opts); err != nil {
		return "", nil, fmt.Errorf("typing into %q failed: %w", args.Selector, err)
	}

	shown := sandbox.MaskValue(args.Text, fieldIdentifiers(res.Locator, args.Selector)...)
	return fmt.Sprintf("Typed %q into %s", shown, args.Selector), nil, nil
}

func handleSelect(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
		Value    string `json:"value"`
		Label    string `json:"label"`
		Index    *int   `json:"index"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("select requires a selector")
	}

	var values playwright.SelectOptionValues
	switch {
	case args.Value != "":
		values.Values = &[]string{args.Value}
	case args.Label != "":
		values.Labels = &[]string{args.Label}
	case args.Index != nil:
		values.Indexes = &[]int{*args.Index}
	default:
		return "", nil, invalidArg("select requires one of value, label, or index")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	if err := waitActionable(ctx, res.Locator, true); err != nil {
		return "", nil, err
	}

	selected, err := res.Locator.SelectOption(values, playwright.LocatorSelectOptionOptions{Timeout: playwright.Float(remainingMs(ctx))})
	if err != nil {
		return "", nil, fmt.Errorf("select on %q failed: %w", args.Selector, err)
	}
	return fmt.Sprintf("Selected %v in %s", selected, args.Selector), map[string]any{"selected": selected}, nil
}

func handleHover(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("hover requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	if err := waitActionable(ctx, res.Locator, false); err != nil {
		return "", nil, err
	}
	if err := res.Locator.Hover(playwright.LocatorHoverOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("hover on %q failed: %w", args.Selector, err)
	}
	return fmt.Sprintf("Hovering over %s", args.Selector), nil, nil
}

func handleFocus(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" {
		return "", nil, invalidArg("focus requires a selector")
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	if err := res.Locator.Focus(playwright.LocatorFocusOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("focus on %q failed: %w", args.Selector, err)
	}
	return fmt.Sprintf("Focused %s", args.Selector), nil, nil
}

func handlePress(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Key      string `json:"key"`
		Selector string `json:"selector"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Key == "" {
		return "", nil, invalidArg("press requires a key")
	}

	if args.Selector != "" {
		res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
		if err != nil {
			return "", nil, err
		}
		if err := res.Locator.Press(args.Key, playwright.LocatorPressOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
			return "", nil, fmt.Errorf("pressing %q on %q failed: %w", args.Key, args.Selector, err)
		}
		return fmt.Sprintf("Pressed %s on %s", args.Key, args.Selector), nil, nil
	}

	if err := s.Page().Keyboard().Press(args.Key); err != nil {
		return "", nil, fmt.Errorf("pressing %q failed: %w", args.Key, err)
	}
	return fmt.Sprintf("Pressed %s", args.Key), nil, nil
}

func handleUpload(ctx context.Context, d *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector string   `json:"selector"`
		Files    []string `json:"files"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}
	if args.Selector == "" || len(args.Files) == 0 {
		return "", nil, invalidArg("upload requires selector and files")
	}

	// Upload sources must live inside the session's sandbox.
	confined := make([]string, 0, len(args.Files))
	for _, f := range args.Files {
		path, err := sandbox.Confine(s.SandboxDir, f)
		if err != nil {
			return "", nil, err
		}
		confined = append(confined, path)
	}

	res, err := selector.Resolve(s.Page(), args.Selector, selector.ExpectOne)
	if err != nil {
		return "", nil, err
	}
	if err := res.Locator.SetInputFiles(confined, playwright.LocatorSetInputFilesOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
		return "", nil, fmt.Errorf("upload to %q failed: %w", args.Selector, err)
	}
	return fmt.Sprintf("Uploaded %d file(s) to %s", len(confined), args.Selector),
		map[string]any{"files": confined}, nil
}

func handleScroll(ctx context.Context, _ *Dispatcher, s *browser.Session, raw jsoniter.RawMessage) (string, map[string]any, error) {
	var args struct {
		Selector  string `json:"selector"`
		Direction string `json:"direction"`
		AmountPx  int    `json:"amount_px"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return "", nil, err
	}

	page := s.Page()

	if args.Selector != "" {
		res, err := selector.Resolve(page, args.Selector, selector.ExpectOne)
		if err != nil {
			return "", nil, err
		}
		if err := res.Locator.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: playwright.Float(remainingMs(ctx))}); err != nil {
			return "", nil, fmt.Errorf("scrolling %q into view failed: %w", args.Selector, err)
		}
		return fmt.Sprintf("Scrolled %s into view", args.Selector), nil, nil
	}

	amount := args.AmountPx
	if amount <= 0 {
		amount = 500
	}

	var script string
	switch args.Direction {
	case "down", "":
		script = fmt.Sprintf("() => window.scrollBy(0, %d)", amount)
	case "up":
		script = fmt.Sprintf("() => window.scrollBy(0, -%d)", amount)
	case "top":
		script = "() => window.scrollTo(0, 0)"
	case "bottom":
		script = "() => window.scrollTo(0, document.body.scrollHeight)"
	default:
		return "", nil, invalidArg("unknown scroll direction %q", args.Direction)
	}

	if _, err := page.Evaluate(script); err != nil {
		return "", nil, fmt.Errorf("scroll failed: %w", err)
	}
	if args.Direction == "top" || args.Direction == "bottom" {
		return fmt.Sprintf("Scrolled to %s", args.Direction), nil, nil
	}
	dir := args.Direction
	if dir == "" {
		dir = "down"
	}
	return fmt.Sprintf("Scrolled %s by %dpx", dir, amount), nil, nil
}
