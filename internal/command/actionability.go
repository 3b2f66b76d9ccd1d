// File: internal/command/actionability.go
package command

import (
	"context"
	"time"

	"github.com/playwright-community/playwright-go"
)

// pollInterval is the actionability sampling rate.
const pollInterval = 100 * time.Millisecond

// waitActionable polls until the element is attached, visible, stable (the
// bounding box stops moving between samples), and, when needEnabled is set,
// enabled. On timeout the error names the first condition still unmet.
func waitActionable(ctx context.Context, loc playwright.Locator, needEnabled bool) error {
	var lastBox *playwright.Rect
	lastUnmet := "element to be attached"

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		unmet, box := checkActionable(loc, lastBox, needEnabled)
		if unmet == "" {
			return nil
		}
		lastUnmet = unmet
		lastBox = box

		select {
		case <-ctx.Done():
			return &timeoutError{condition: lastUnmet}
		case <-ticker.C:
		}
	}
}

// checkActionable runs one sample. It returns the unmet condition ("" when
// fully actionable) and the bounding box observed this round.
func checkActionable(loc playwright.Locator, lastBox *playwright.Rect, needEnabled bool) (string, *playwright.Rect) {
	count, err := loc.Count()
	if err != nil || count == 0 {
		return "element to be attached", nil
	}

	visible, err := loc.IsVisible()
	if err != nil || !visible {
		return "element to be visible", nil
	}

	box, err := loc.BoundingBox()
	if err != nil || box == nil {
		return "element to have a layout box", nil
	}
	if lastBox == nil || !sameBox(box, lastBox) {
		return "element position to settle", box
	}

	if needEnabled {
		enabled, err := loc.IsEnabled()
		if err != nil || !enabled {
			return "element to be enabled", box
		}
	}

	return "", box
}

func sameBox(a, b *playwright.Rect) bool {
	return a.X == b.X && a.Y == b.Y && a.Width == b.Width && a.Height == b.Height
}
