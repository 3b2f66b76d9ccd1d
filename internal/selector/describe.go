// File: internal/selector/describe.go
package selector

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// describeJS summarizes one element as "tag#id.class [name] 'text'".
const describeJS = `el => {
	const tag = el.tagName.toLowerCase();
	const id = el.id ? '#' + el.id : '';
	const cls = el.className && typeof el.className === 'string'
		? '.' + el.className.trim().split(/\s+/).slice(0, 2).join('.') : '';
	const name = el.getAttribute('name') ? ' [name=' + el.getAttribute('name') + ']' : '';
	const text = (el.textContent || '').trim().replace(/\s+/g, ' ').slice(0, 40);
	return tag + id + cls + name + (text ? " '" + text + "'" : '');
}`

// candidatesJS lists interactive elements to suggest after a failed lookup.
const candidatesJS = `() => {
	const sel = 'a, button, input, select, textarea, [role=button], [onclick]';
	return Array.from(document.querySelectorAll(sel)).slice(0, 15).map(el => {
		const tag = el.tagName.toLowerCase();
		const id = el.id ? '#' + el.id : '';
		const name = el.getAttribute('name') ? ' [name=' + el.getAttribute('name') + ']' : '';
		const text = (el.innerText || el.value || el.placeholder || '').trim().replace(/\s+/g, ' ').slice(0, 40);
		return tag + id + name + (text ? " '" + text + "'" : '');
	});
}`

// DescribeMatches renders short descriptions of the first max matches of a
// locator. Failures while describing are swallowed; suggestions are best
// effort and must never mask the original error.
func DescribeMatches(loc playwright.Locator, count, max int) []string {
	if count < max {
		max = count
	}
	var out []string
	for i := 0; i < max; i++ {
		desc, err := loc.Nth(i).Evaluate(describeJS, nil)
		if err != nil {
			continue
		}
		if s, ok := desc.(string); ok && s != "" {
			out = append(out, fmt.Sprintf("nth=%d: %s", i, s))
		}
	}
	return out
}

// detailJS collects full per-element metadata for inspection commands.
const detailJS = `el => {
	const info = {
		tag: el.tagName.toLowerCase(),
		text: (el.textContent || '').trim().replace(/\s+/g, ' ').slice(0, 100),
		enabled: el.disabled === undefined ? true : !el.disabled,
	};
	for (const attr of ['id', 'name', 'class', 'type', 'href', 'placeholder']) {
		const v = el.getAttribute(attr);
		if (v) info[attr] = v.slice(0, 100);
	}
	if (el.value !== undefined && el.value !== '') {
		info.value = String(el.value).slice(0, 100);
	}
	const r = el.getBoundingClientRect();
	if (r.width || r.height) {
		info.position = {
			x: Math.round(r.x), y: Math.round(r.y),
			width: Math.round(r.width), height: Math.round(r.height),
		};
	}
	return info;
}`

// InspectMatches returns detailed metadata for up to max matches, plus the
// visible and hidden totals across the whole match set. Hidden elements are
// skipped unless includeHidden is set. Per-element failures (the element
// detached mid-walk) are skipped rather than failing the inspection.
func InspectMatches(loc playwright.Locator, count, max int, includeHidden bool) (elements []map[string]any, visible, hidden int) {
	for i := 0; i < count; i++ {
		el := loc.Nth(i)
		isVisible, err := el.IsVisible()
		if err != nil {
			continue
		}
		if isVisible {
			visible++
		} else {
			hidden++
			if !includeHidden {
				continue
			}
		}
		if len(elements) >= max {
			continue
		}

		detail, err := el.Evaluate(detailJS, nil)
		if err != nil {
			continue
		}
		info, ok := detail.(map[string]any)
		if !ok {
			continue
		}
		info["index"] = i
		info["visible"] = isVisible
		elements = append(elements, info)
	}
	return elements, visible, hidden
}

// SuggestCandidates lists interactive elements currently on the page. It is
// attached to NotFound results for click and fill so a caller can correct
// its selector without a separate round trip.
func SuggestCandidates(page playwright.Page) []string {
	res, err := page.Evaluate(candidatesJS)
	if err != nil {
		return nil
	}
	items, ok := res.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
