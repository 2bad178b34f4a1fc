// internal/tracker/tracker_test.go
package tracker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

// fakeTableBrowser scripts the browser surface the tracker drives.
type fakeTableBrowser struct {
	currentURL string
	title      string
	pageText   string
	pageHTML   string

	clickableTexts map[string]bool
	failSelectors  map[string]bool

	// Row counts returned by successive row-count evaluations; the last
	// value repeats once the slice is exhausted.
	rowCounts []int
	rowIdx    int

	// Composer disappears after a send when set.
	composerGone bool

	clickedTexts []string
	clicked      []string
	checked      map[string]bool
	ctrlEnter    int
	filled       map[string]string
	backCalls    int
	screenshots  []string

	// Interaction order, for asserting sequencing across operations.
	events []string
}

func newFakeTableBrowser() *fakeTableBrowser {
	return &fakeTableBrowser{
		currentURL:     "https://agency.nextrequest.com/requests",
		title:          "All requests",
		pageText:       "All requests",
		clickableTexts: map[string]bool{},
		failSelectors:  map[string]bool{},
		checked:        map[string]bool{},
		filled:         map[string]string{},
	}
}

func (f *fakeTableBrowser) CurrentURL(context.Context) (string, error) { return f.currentURL, nil }
func (f *fakeTableBrowser) Title(context.Context) (string, error)      { return f.title, nil }
func (f *fakeTableBrowser) VisibleText(context.Context) (string, error) {
	return f.pageText, nil
}
func (f *fakeTableBrowser) PageHTML(context.Context) (string, error) { return f.pageHTML, nil }
func (f *fakeTableBrowser) Screenshot(_ context.Context, name string) (schemas.Screenshot, error) {
	f.screenshots = append(f.screenshots, name)
	return schemas.Screenshot{Name: name, URL: f.currentURL, Title: f.title, Data: "ZmFrZQ=="}, nil
}
func (f *fakeTableBrowser) Click(_ context.Context, selector string) error {
	if f.failSelectors[selector] {
		return fmt.Errorf("element '%s' not clickable", selector)
	}
	f.clicked = append(f.clicked, selector)
	return nil
}
func (f *fakeTableBrowser) ClickAny(_ context.Context, selectors []string) (string, error) {
	for _, selector := range selectors {
		if !f.failSelectors[selector] {
			f.clicked = append(f.clicked, selector)
			return selector, nil
		}
	}
	return "", fmt.Errorf("no clickable element among %d candidate selectors", len(selectors))
}
func (f *fakeTableBrowser) ClickText(_ context.Context, text string) error {
	f.clickedTexts = append(f.clickedTexts, text)
	if f.clickableTexts[text] {
		return nil
	}
	return fmt.Errorf("no link or button with text %q", text)
}
func (f *fakeTableBrowser) Exists(_ context.Context, selector string) (bool, error) {
	return !f.composerGone, nil
}
func (f *fakeTableBrowser) Evaluate(_ context.Context, script string, res interface{}) error {
	switch {
	case strings.Contains(script, "pattern.test"):
		f.events = append(f.events, "count-rows")
		idx := f.rowIdx
		if idx >= len(f.rowCounts) {
			idx = len(f.rowCounts) - 1
		}
		f.rowIdx++
		if len(f.rowCounts) == 0 {
			*(res.(*int)) = 0
			return nil
		}
		*(res.(*int)) = f.rowCounts[idx]
	case strings.Contains(script, "no more results"):
		*(res.(*bool)) = false
	case strings.Contains(script, "scrollTop"):
		*(res.(*bool)) = true
	case strings.Contains(script, "my requests"):
		*(res.(*string)) = "" // Force the PageHTML fallback.
	case strings.Contains(script, "role='textbox'"):
		*(res.(*string)) = f.pageHTML
	default:
		return fmt.Errorf("unscripted evaluate call")
	}
	return nil
}
func (f *fakeTableBrowser) ScrollToBottom(context.Context) (int64, error) { return 4000, nil }
func (f *fakeTableBrowser) SetChecked(_ context.Context, selector string, state bool) error {
	if f.failSelectors[selector] {
		return fmt.Errorf("checkbox '%s' not found", selector)
	}
	f.checked[selector] = state
	f.events = append(f.events, "check:"+selector)
	return nil
}
func (f *fakeTableBrowser) PressCtrlEnter(context.Context) error {
	f.ctrlEnter++
	f.events = append(f.events, "apply-filters")
	return nil
}
func (f *fakeTableBrowser) SetValueDirect(_ context.Context, selector, value string) error {
	f.filled[selector] = value
	return nil
}
func (f *fakeTableBrowser) FillAny(_ context.Context, selectors []string, value string) (string, error) {
	for _, selector := range selectors {
		if !f.failSelectors[selector] {
			f.filled[selector] = value
			return selector, nil
		}
	}
	return "", fmt.Errorf("no fillable element among %d candidate selectors", len(selectors))
}
func (f *fakeTableBrowser) NavigateBack(context.Context) error {
	f.backCalls++
	return nil
}
func (f *fakeTableBrowser) HumanPause(context.Context) error { return nil }

// scriptedTrackerLLM routes responses by distinctive prompt fragments.
type scriptedTrackerLLM struct {
	responses map[string]string
	calls     int
}

func (s *scriptedTrackerLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.calls++
	for marker, response := range s.responses {
		if strings.Contains(req.SystemPrompt, marker) {
			return response, nil
		}
	}
	return "", fmt.Errorf("no scripted response matches prompt")
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func trackerConfigForTest(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.TrackerC.ScrollMaxRounds = 10
	cfg.TrackerC.ScrollPause = time.Millisecond
	cfg.TrackerC.DetailLimit = 1
	cfg.ArtifactsC.Dir = t.TempDir()
	cfg.ArtifactsC.ScreenshotDir = ""
	return cfg
}

func newTestTracker(t *testing.T, b Browser, llm schemas.LLMClient) *Tracker {
	t.Helper()
	tr := New(trackerConfigForTest(t), b, llm, zaptest.NewLogger(t))
	tr.settle = time.Millisecond
	return tr
}

func TestLoadAllRequests_StopsWhenStable(t *testing.T) {
	b := newFakeTableBrowser()
	b.rowCounts = []int{5, 10, 15, 15, 15, 15}
	b.pageText = "171 Requests filtered"

	tr := newTestTracker(t, b, &scriptedTrackerLLM{})
	report, err := tr.LoadAllRequests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.InitialCount)
	assert.Equal(t, 15, report.FinalCount)
	assert.Equal(t, 171, report.ExpectedTotal)
	assert.Equal(t, 5, report.Rounds)
}

func TestLoadAllRequests_StopsAtExpectedTotal(t *testing.T) {
	b := newFakeTableBrowser()
	b.rowCounts = []int{5, 12}
	b.pageText = "12 Requests filtered"

	tr := newTestTracker(t, b, &scriptedTrackerLLM{})
	report, err := tr.LoadAllRequests(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, report.FinalCount)
	assert.Equal(t, 1, report.Rounds)
}

func TestLoadAllRequests_SmallTotalsIgnored(t *testing.T) {
	for _, text := range []string{"3 Requests filtered", "10 Requests filtered"} {
		b := newFakeTableBrowser()
		b.rowCounts = []int{3}
		b.pageText = text

		tr := newTestTracker(t, b, &scriptedTrackerLLM{})
		report, err := tr.LoadAllRequests(context.Background())
		require.NoError(t, err)
		assert.Zero(t, report.ExpectedTotal, "counter %q should be ignored", text)
	}
}

func TestExtractTable(t *testing.T) {
	b := newFakeTableBrowser()
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"request tracking table": mustJSON(t, tableExtraction{Requests: []schemas.RequestRecord{
			{ID: "24-1093", Title: "Body camera footage", Status: "Open"},
			{ID: "", Title: "header artifact"},
			{ID: "23-0877", Title: "Towing contracts", Status: "Closed"},
		}}),
	}}

	tr := newTestTracker(t, b, llm)
	records, err := tr.ExtractTable(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "24-1093", records[0].ID)
	assert.Equal(t, "23-0877", records[1].ID)
	// Row indexes stay contiguous when junk rows get dropped.
	assert.Equal(t, 0, records[0].RowIndex)
	assert.Equal(t, 1, records[1].RowIndex)
}

func TestOpenRequest_UsesInstructionSelector(t *testing.T) {
	b := newFakeTableBrowser()
	b.pageHTML = `<a href="/requests/24-1093">24-1093</a>`
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"open the detail page": mustJSON(t, schemas.ClickInstruction{
			Selector: `a[href='/requests/24-1093']`,
			Text:     "24-1093",
		}),
	}}

	tr := newTestTracker(t, b, llm)
	require.NoError(t, tr.OpenRequest(context.Background(), "24-1093"))
	assert.Contains(t, b.clicked, `a[href='/requests/24-1093']`)
	assert.Contains(t, b.screenshots, "request_detail_24-1093")
}

func TestOpenRequest_FallsBackToLinkText(t *testing.T) {
	b := newFakeTableBrowser()
	b.failSelectors[`a[href='/requests/24-1093']`] = true
	b.clickableTexts["24-1093"] = true
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"open the detail page": mustJSON(t, schemas.ClickInstruction{
			Selector: `a[href='/requests/24-1093']`,
		}),
	}}

	tr := newTestTracker(t, b, llm)
	require.NoError(t, tr.OpenRequest(context.Background(), "24-1093"))
	assert.Contains(t, b.clickedTexts, "24-1093")
}

func TestStatusReport(t *testing.T) {
	b := newFakeTableBrowser()
	b.clickableTexts["All requests"] = true
	b.clickableTexts["24-1093"] = true
	b.rowCounts = []int{2, 2, 2, 2}
	b.pageText = "All requests"

	detail := schemas.RequestDetail{
		ID:          "24-1093",
		Status:      "Open",
		Summary:     "Agency asked for a narrowed date range.",
		NextActions: []string{"Reply with a narrowed date range"},
	}
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"request tracking table": mustJSON(t, tableExtraction{Requests: []schemas.RequestRecord{
			{ID: "24-1093", Title: "Body camera footage", Status: "Open"},
			{ID: "23-0877", Title: "Towing contracts", Status: "Closed"},
		}}),
		"open the detail page":            mustJSON(t, schemas.ClickInstruction{Text: "24-1093"}),
		"detail page of public records":   mustJSON(t, detail),
	}}

	tr := newTestTracker(t, b, llm)
	summary, records, err := tr.StatusReport(context.Background(), nil)
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.ByStatus["Open"])
	assert.Equal(t, 1, summary.ByStatus["Closed"])
	require.Len(t, summary.Details, 1)
	assert.Equal(t, "24-1093", summary.Details[0].ID)
	require.Len(t, summary.Highlights, 1)
	assert.Contains(t, summary.Highlights[0], "narrowed date range")
	assert.Equal(t, 1, b.backCalls)
}

func TestStatusReport_FiltersApplyBeforeTableLoad(t *testing.T) {
	b := newFakeTableBrowser()
	b.clickableTexts["All requests"] = true
	b.rowCounts = []int{1, 1, 1, 1}
	b.pageText = "All requests"
	b.pageHTML = strings.Repeat("<div class='filters'>My requests, Request status</div>", 10)

	llm := &scriptedTrackerLLM{responses: map[string]string{
		"filter sidebar": mustJSON(t, schemas.FilterAnalysis{Checkboxes: []schemas.CheckboxSelector{
			{Selector: "#filter-requester", Label: "Requester", Checked: false},
			{Selector: "input[name='status-open']", Label: "Open", Checked: false},
			{Selector: "input[name='status-closed']", Label: "Closed", Checked: true},
		}}),
		"request tracking table": mustJSON(t, tableExtraction{Requests: []schemas.RequestRecord{
			{ID: "24-1093", Title: "Body camera footage", Status: "Open"},
		}}),
		"open the detail page": mustJSON(t, schemas.ClickInstruction{Text: "24-1093"}),
		"detail page of public records": mustJSON(t, schemas.RequestDetail{
			ID: "24-1093", Status: "Open",
		}),
	}}
	b.clickableTexts["24-1093"] = true

	tr := newTestTracker(t, b, llm)
	summary, records, err := tr.StatusReport(context.Background(), []string{"Open"})
	require.NoError(t, err)

	assert.Len(t, records, 1)
	assert.Equal(t, 1, summary.Total)

	// Open gets checked, Closed gets cleared, and the filter apply lands
	// before the first row count, so the scroll loop reads the filtered
	// table rather than the default view.
	state, ok := b.checked["input[name='status-open']"]
	require.True(t, ok)
	assert.True(t, state)
	state, ok = b.checked["input[name='status-closed']"]
	require.True(t, ok)
	assert.False(t, state)
	require.Equal(t, 1, b.ctrlEnter)

	applyAt, countAt := -1, -1
	for i, event := range b.events {
		if event == "apply-filters" && applyAt == -1 {
			applyAt = i
		}
		if event == "count-rows" && countAt == -1 {
			countAt = i
		}
	}
	require.NotEqual(t, -1, applyAt)
	require.NotEqual(t, -1, countAt)
	assert.Less(t, applyAt, countAt)
}

func TestApplyStatusFilters(t *testing.T) {
	b := newFakeTableBrowser()
	b.pageHTML = strings.Repeat("<div class='filters'>My requests, Request status</div>", 10)
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"filter sidebar": mustJSON(t, schemas.FilterAnalysis{Checkboxes: []schemas.CheckboxSelector{
			{Selector: "#filter-requester", Label: "Requester", Checked: false},
			{Selector: "input[name='status-open']", Label: "Open", Checked: true},
			{Selector: "input[name='status-closed']", Label: "Closed", Checked: true},
		}}),
	}}

	tr := newTestTracker(t, b, llm)
	require.NoError(t, tr.ApplyStatusFilters(context.Background(), []string{"Open"}))

	// Requester gets checked, Closed gets cleared, Open is already right.
	state, ok := b.checked["#filter-requester"]
	require.True(t, ok)
	assert.True(t, state)
	state, ok = b.checked["input[name='status-closed']"]
	require.True(t, ok)
	assert.False(t, state)
	_, touched := b.checked["input[name='status-open']"]
	assert.False(t, touched)
	assert.Equal(t, 1, b.ctrlEnter)
}

func TestApplyStatusFilters_SelectorFallback(t *testing.T) {
	b := newFakeTableBrowser()
	b.pageHTML = strings.Repeat("<div class='filters'>My requests</div>", 10)
	b.failSelectors["#bogus"] = true
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"filter sidebar": mustJSON(t, schemas.FilterAnalysis{Checkboxes: []schemas.CheckboxSelector{
			{Selector: "#bogus", Label: "Requester", Checked: false},
		}}),
	}}

	tr := newTestTracker(t, b, llm)
	require.NoError(t, tr.ApplyStatusFilters(context.Background(), nil))

	state, ok := b.checked[`input[type='checkbox'][name*='requester']`]
	require.True(t, ok)
	assert.True(t, state)
}

func TestSendMessage(t *testing.T) {
	composer := mustJSON(t, schemas.ComposerAnalysis{
		InputSelector:  "[contenteditable='true']",
		SubmitSelector: "button[data-test-id='send-message']",
		Found:          true,
	})

	t.Run("ConfirmedByPageText", func(t *testing.T) {
		b := newFakeTableBrowser()
		b.pageHTML = "<textarea></textarea><button>Send</button>"
		b.pageText = "Message sent to staff."
		llm := &scriptedTrackerLLM{responses: map[string]string{"message composer": composer}}

		tr := newTestTracker(t, b, llm)
		require.NoError(t, tr.SendMessage(context.Background(), "Here is the narrowed date range."))
		assert.Equal(t, "Here is the narrowed date range.", b.filled["[contenteditable='true']"])
		assert.Contains(t, b.clicked, "button[data-test-id='send-message']")
	})

	t.Run("ConfirmedByClosedComposer", func(t *testing.T) {
		b := newFakeTableBrowser()
		b.pageHTML = "<textarea></textarea><button>Send</button>"
		b.composerGone = true
		llm := &scriptedTrackerLLM{responses: map[string]string{"message composer": composer}}

		tr := newTestTracker(t, b, llm)
		require.NoError(t, tr.SendMessage(context.Background(), "Following up on my request."))
	})

	t.Run("NoComposerFound", func(t *testing.T) {
		b := newFakeTableBrowser()
		b.pageHTML = "<p>No composer here</p>"
		llm := &scriptedTrackerLLM{responses: map[string]string{
			"message composer": mustJSON(t, schemas.ComposerAnalysis{Found: false}),
		}}

		tr := newTestTracker(t, b, llm)
		err := tr.SendMessage(context.Background(), "Hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no message composer")
	})

	t.Run("EmptyMessageRejected", func(t *testing.T) {
		tr := newTestTracker(t, newFakeTableBrowser(), &scriptedTrackerLLM{})
		require.Error(t, tr.SendMessage(context.Background(), "  "))
	})
}

func TestDraftReply(t *testing.T) {
	llm := &scriptedTrackerLLM{responses: map[string]string{
		"draft replies": "Thank you for the update. The records from January through March 2026 will do.",
	}}
	tr := newTestTracker(t, newFakeTableBrowser(), llm)

	reply, err := tr.DraftReply(context.Background(), schemas.RequestDetail{
		ID:      "24-1093",
		Status:  "Open",
		Summary: "Agency asked for a narrowed date range.",
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "January through March")
}
