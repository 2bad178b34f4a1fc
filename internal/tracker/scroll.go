// internal/tracker/scroll.go
package tracker

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// rowCountScript counts loaded request rows. Rows are recognized by a
// request-number pattern so headers and empty rows don't inflate the count.
const rowCountScript = `(() => {
	const selectors = ['table tbody tr', 'tr[data-request]', '.request-row'];
	const pattern = /\d{2,4}-\d+/;
	let best = 0;
	for (const selector of selectors) {
		let count = 0;
		for (const row of document.querySelectorAll(selector)) {
			const text = (row.textContent || '').trim();
			if (text && pattern.test(text)) {
				count++;
			}
		}
		if (count > best) {
			best = count;
		}
	}
	return best;
})()`

// containerScrollScript scrolls a dedicated table container when the table
// does not live on the window scroller.
const containerScrollScript = `(() => {
	const containers = document.querySelectorAll(
		'.table-container, .scroll-container, .datatable-scroll');
	for (const container of containers) {
		if (container.scrollHeight > container.clientHeight) {
			container.scrollTop = container.scrollHeight;
			return true;
		}
	}
	return false;
})()`

// endOfContentScript checks whether the page shows end-of-list markers with
// no loading spinner still pending.
const endOfContentScript = `(() => {
	const text = (document.body.textContent || '').toLowerCase();
	if (text.includes('no more results') || text.includes('end of list')) {
		return true;
	}
	const atBottom = (window.innerHeight + window.scrollY) >= document.body.offsetHeight;
	const loading = document.querySelector('.loading, .spinner') !== null;
	return atBottom && !loading;
})()`

// totalPattern matches counters like "171 Requests filtered" or
// "23 requests found" in the page text.
var totalPattern = regexp.MustCompile(`(\d+)\s+[Rr]equests`)

// ScrollReport describes one infinite-scroll pass over the request table.
type ScrollReport struct {
	InitialCount  int `json:"initial_count"`
	FinalCount    int `json:"final_count"`
	ExpectedTotal int `json:"expected_total,omitempty"`
	Rounds        int `json:"rounds"`
}

// stableRounds is how many consecutive no-growth rounds end the scroll.
const stableRounds = 3

func (t *Tracker) countRows(ctx context.Context) int {
	var count int
	if err := t.browser.Evaluate(ctx, rowCountScript, &count); err != nil {
		return 0
	}
	return count
}

// detectTotal reads the page's request counter, if it shows one. Counters
// of ten or fewer are ignored since small tables need no scrolling anyway.
func (t *Tracker) detectTotal(ctx context.Context) int {
	text, err := t.browser.VisibleText(ctx)
	if err != nil {
		return 0
	}
	match := totalPattern.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	total, err := strconv.Atoi(match[1])
	if err != nil || total <= 10 {
		return 0
	}
	return total
}

// LoadAllRequests scrolls until the row count stops growing, the page
// reports end of content, or the configured round budget runs out.
func (t *Tracker) LoadAllRequests(ctx context.Context) (ScrollReport, error) {
	tc := t.cfg.Tracker()
	maxRounds := tc.ScrollMaxRounds
	if maxRounds < 1 {
		maxRounds = 20
	}
	pause := tc.ScrollPause
	if pause <= 0 {
		pause = 1500 * time.Millisecond
	}

	report := ScrollReport{
		InitialCount:  t.countRows(ctx),
		ExpectedTotal: t.detectTotal(ctx),
	}
	lastCount := report.InitialCount
	noChange := 0

	for report.Rounds < maxRounds {
		report.Rounds++

		if _, err := t.browser.ScrollToBottom(ctx); err != nil {
			// Window scrolling can fail when the table owns the scroller.
			var scrolled bool
			_ = t.browser.Evaluate(ctx, containerScrollScript, &scrolled)
		}
		if err := wait(ctx, pause); err != nil {
			return report, err
		}

		count := t.countRows(ctx)
		if count > lastCount {
			lastCount = count
			noChange = 0
		} else {
			noChange++
		}
		if noChange >= stableRounds {
			break
		}
		if report.ExpectedTotal > 0 && count >= report.ExpectedTotal {
			break
		}

		var done bool
		if err := t.browser.Evaluate(ctx, endOfContentScript, &done); err == nil && done {
			break
		}
	}

	report.FinalCount = lastCount
	t.logger.Info("Request table loaded.",
		zap.Int("initial", report.InitialCount),
		zap.Int("final", report.FinalCount),
		zap.Int("expected", report.ExpectedTotal),
		zap.Int("rounds", report.Rounds))
	return report, nil
}
