// internal/tracker/filters.go
package tracker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/llmutil"
)

// filterHTMLScript collects the filter sidebar's HTML so the selector
// discovery prompt does not have to carry the whole page.
const filterHTMLScript = `(() => {
	const sections = [];
	const keywords = ['filter', 'search', 'checkbox'];
	for (const node of document.querySelectorAll('section, div, form')) {
		const classes = (node.className || '').toString().toLowerCase();
		if (keywords.some(k => classes.includes(k))) {
			sections.push(node.outerHTML);
		}
	}
	for (const label of document.querySelectorAll('label')) {
		const text = (label.textContent || '').toLowerCase();
		if (text.includes('requester') || text.includes('request status') ||
			text.includes('my requests')) {
			const parent = label.closest('section, div, form');
			if (parent) {
				sections.push(parent.outerHTML);
			}
		}
	}
	return Array.from(new Set(sections)).join('\n');
})()`

// ApplyStatusFilters scopes the tracking table to the requester's own
// requests with the configured statuses. The model discovers the checkbox
// selectors from the sidebar HTML; fallback selector chains cover misses.
// Filters are applied with the portal's Ctrl+Enter shortcut.
func (t *Tracker) ApplyStatusFilters(ctx context.Context, statuses []string) error {
	if len(statuses) == 0 {
		statuses = t.cfg.Tracker().Statuses
	}

	analysis, err := t.analyzeFilters(ctx)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(statuses)+1)
	// The Requester checkbox scopes the table to the account's own requests.
	wanted["requester"] = true
	for _, status := range statuses {
		wanted[strings.ToLower(status)] = true
	}

	applied := 0
	for _, box := range analysis.Checkboxes {
		label := strings.ToLower(strings.TrimSpace(box.Label))
		// Status checkboxes the caller did not ask for get cleared.
		desired := wanted[label]
		if box.Checked == desired {
			continue
		}
		if err := t.setCheckbox(ctx, box, label, desired); err != nil {
			t.logger.Warn("Could not set filter checkbox.",
				zap.String("label", box.Label), zap.Error(err))
			continue
		}
		applied++
		_ = t.browser.HumanPause(ctx)
	}

	if err := t.browser.PressCtrlEnter(ctx); err != nil {
		return fmt.Errorf("failed to apply filters: %w", err)
	}
	if err := wait(ctx, t.settle); err != nil {
		return err
	}
	t.logger.Info("Status filters applied.",
		zap.Strings("statuses", statuses), zap.Int("toggled", applied))
	return nil
}

func (t *Tracker) analyzeFilters(ctx context.Context) (*schemas.FilterAnalysis, error) {
	var filterHTML string
	if err := t.browser.Evaluate(ctx, filterHTMLScript, &filterHTML); err != nil || len(filterHTML) < 200 {
		// Sidebar extraction came up empty, fall back to the page head.
		full, herr := t.browser.PageHTML(ctx)
		if herr != nil {
			return nil, fmt.Errorf("failed to read the filter sidebar: %w", herr)
		}
		filterHTML = full
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(filterAnalysisSystemPrompt, llmutil.Truncate(filterHTML, htmlLimit)),
		UserPrompt:   "Find the filter checkboxes and their selectors.",
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("filter analysis request failed: %w", err)
	}
	analysis, err := llmutil.ParseJSONResponse[schemas.FilterAnalysis](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the filter analysis: %w", err)
	}
	if len(analysis.Checkboxes) == 0 {
		return nil, fmt.Errorf("no filter checkboxes found on the page")
	}
	return analysis, nil
}

// setCheckbox toggles one checkbox, trying the discovered selector first
// and common name/id patterns when it misses.
func (t *Tracker) setCheckbox(ctx context.Context, box schemas.CheckboxSelector, label string, desired bool) error {
	if box.Selector != "" {
		if err := t.browser.SetChecked(ctx, box.Selector, desired); err == nil {
			return nil
		}
	}
	fallbacks := []string{
		fmt.Sprintf(`input[type='checkbox'][name*='%s']`, label),
		fmt.Sprintf(`input[type='checkbox'][id*='%s']`, label),
	}
	for _, selector := range fallbacks {
		if err := t.browser.SetChecked(ctx, selector, desired); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no working selector for the '%s' checkbox", box.Label)
}
