// File: internal/selector/selector.go

// Package selector turns the textual selector dialect accepted by commands
// (css, text=, xpath=, placeholder=, chained with " >> ", with an optional
// trailing nth= ordinal) into resolved page locators, enforcing strict
// single-match semantics where the command requires them.
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Expect states how many matches a command tolerates.
type Expect int

const (
	// ExpectOne requires exactly one match; zero is NotFound and more than
	// one is a strict violation.
	ExpectOne Expect = iota
	// ExpectAny accepts any number of matches, including zero.
	ExpectAny
)

// ParseError reports selector text the dialect cannot express.
type ParseError struct {
	Selector string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid selector %q: %s", e.Selector, e.Reason)
}

// NotFoundError reports a selector (or ordinal) that matched nothing.
type NotFoundError struct {
	Selector string
	Ordinal  *int
}

func (e *NotFoundError) Error() string {
	if e.Ordinal != nil {
		return fmt.Sprintf("selector %q has no match at index %d", e.Selector, *e.Ordinal)
	}
	return fmt.Sprintf("no element matches selector %q", e.Selector)
}

// StrictViolationError reports multiple matches where exactly one was
// required. Matches carries short descriptions of the first few candidates
// so the caller can disambiguate with nth=.
type StrictViolationError struct {
	Selector string
	Count    int
	Matches  []string
}

func (e *StrictViolationError) Error() string {
	return fmt.Sprintf("selector %q matched %d elements, expected exactly one (disambiguate with nth=)", e.Selector, e.Count)
}

// Query is a parsed selector: the engine-ready chain plus an optional
// trailing ordinal.
type Query struct {
	Raw     string
	Chain   string
	Ordinal *int
}

// Parse splits raw into chain segments, translating the dialect's sugar
// into engine syntax and peeling a trailing nth= segment off as the
// ordinal. Negative ordinals count from the end of the match list.
func Parse(raw string) (*Query, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseError{Selector: raw, Reason: "selector is empty"}
	}

	segments := strings.Split(trimmed, " >> ")
	q := &Query{Raw: raw}

	var translated []string
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return nil, &ParseError{Selector: raw, Reason: "empty chain segment"}
		}

		if rest, ok := strings.CutPrefix(seg, "nth="); ok {
			idx, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				return nil, &ParseError{Selector: raw, Reason: fmt.Sprintf("nth= index %q is not an integer", rest)}
			}
			if i == len(segments)-1 {
				q.Ordinal = &idx
				continue
			}
			// Mid-chain ordinals narrow the chain in place; the engine
			// handles them natively but only for non-negative indices.
			if idx < 0 {
				return nil, &ParseError{Selector: raw, Reason: "negative nth= is only supported as the final segment"}
			}
			translated = append(translated, seg)
			continue
		}

		if rest, ok := strings.CutPrefix(seg, "placeholder="); ok {
			translated = append(translated, fmt.Sprintf(`[placeholder=%s]`, quoteAttr(rest)))
			continue
		}

		// text=, xpath=, role=, id= and bare css all pass through unchanged.
		translated = append(translated, seg)
	}

	if len(translated) == 0 {
		return nil, &ParseError{Selector: raw, Reason: "selector has only an ordinal"}
	}
	q.Chain = strings.Join(translated, " >> ")
	return q, nil
}

// quoteAttr wraps an attribute value in double quotes unless the caller
// already quoted it.
func quoteAttr(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v
	}
	return strconv.Quote(v)
}

// Resolution is the outcome of resolving a Query on a live page.
type Resolution struct {
	// Locator points at the selected element, narrowed to the ordinal when
	// one was given.
	Locator playwright.Locator
	// Count is the total number of matches before ordinal narrowing.
	Count int
	// Index is the normalized ordinal, or -1 when none was requested.
	Index int
}

// Resolve parses raw, evaluates it against page, and enforces the expect
// policy. An ordinal always narrows to one element; out-of-range ordinals
// (after normalizing negatives) are NotFound.
func Resolve(page playwright.Page, raw string, expect Expect) (*Resolution, error) {
	q, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	loc := page.Locator(q.Chain)
	count, err := loc.Count()
	if err != nil {
		return nil, fmt.Errorf("counting matches for %q: %w", raw, err)
	}

	if q.Ordinal != nil {
		idx := *q.Ordinal
		if idx < 0 {
			idx += count
		}
		if idx < 0 || idx >= count {
			return nil, &NotFoundError{Selector: raw, Ordinal: q.Ordinal}
		}
		return &Resolution{Locator: loc.Nth(idx), Count: count, Index: idx}, nil
	}

	switch expect {
	case ExpectOne:
		if count == 0 {
			return nil, &NotFoundError{Selector: raw}
		}
		if count > 1 {
			return nil, &StrictViolationError{
				Selector: raw,
				Count:    count,
				Matches:  DescribeMatches(loc, count, 5),
			}
		}
	case ExpectAny:
		// Zero matches is a valid answer for counting commands.
	}

	return &Resolution{Locator: loc, Count: count, Index: -1}, nil
}
