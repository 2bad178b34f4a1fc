// internal/tracker/tracker.go
// Package tracker reads the state of previously filed requests off a
// portal's tracking pages: it loads the full request table through its
// infinite scroll, extracts the rows with the vision tier, opens each
// request's detail view and summarizes status and correspondence.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
	"github.com/foiahound/foiahound/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// pageTextLimit caps how much page text goes into an extraction prompt.
	pageTextLimit = 6000
	// htmlLimit caps raw HTML handed to selector-discovery prompts.
	htmlLimit = 10000
)

var allRequestsTexts = []string{"All requests", "All Requests"}

var allRequestsSelectors = []string{
	`nav a[href*='requests']`,
	`a[href*='requests']`,
}

// Tracker drives the request tracking pages of an authenticated session.
type Tracker struct {
	cfg     config.Interface
	browser Browser
	llm     schemas.LLMClient
	logger  *zap.Logger

	settle time.Duration
}

// New returns a Tracker bound to an authenticated browser session.
func New(cfg config.Interface, b Browser, llm schemas.LLMClient, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		cfg:     cfg,
		browser: b,
		llm:     llm,
		logger:  logger.Named("tracker"),
		settle:  2 * time.Second,
	}
}

// NavigateToRequests opens the "All requests" tracking page.
func (t *Tracker) NavigateToRequests(ctx context.Context) error {
	for _, text := range allRequestsTexts {
		if err := t.browser.ClickText(ctx, text); err == nil {
			t.logger.Info("Opened the request tracking page.", zap.String("link_text", text))
			_ = t.browser.HumanPause(ctx)
			_, _ = t.browser.Screenshot(ctx, "all_requests_page")
			return nil
		}
	}
	if sel, err := t.browser.ClickAny(ctx, allRequestsSelectors); err == nil {
		t.logger.Info("Opened the request tracking page.", zap.String("selector", sel))
		_ = t.browser.HumanPause(ctx)
		_, _ = t.browser.Screenshot(ctx, "all_requests_page")
		return nil
	}
	return fmt.Errorf("could not find an 'All requests' navigation link")
}

// tableExtraction is the wire shape of a table extraction response.
type tableExtraction struct {
	Requests []schemas.RequestRecord `json:"requests"`
}

// ExtractTable reads the loaded request table into records.
func (t *Tracker) ExtractTable(ctx context.Context) ([]schemas.RequestRecord, error) {
	shot, err := t.browser.Screenshot(ctx, "request_table")
	if err != nil {
		return nil, fmt.Errorf("failed to capture the request table: %w", err)
	}
	text, err := t.browser.VisibleText(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read the request table text: %w", err)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(tableExtractionSystemPrompt,
			shot.URL, shot.Title, llmutil.Truncate(text, pageTextLimit)),
		UserPrompt: "Extract the request rows from this tracking table.",
		Images: []schemas.ImagePart{
			{MIMEType: "image/png", Data: shot.Data},
		},
		Tier: schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("table extraction request failed: %w", err)
	}
	extraction, err := llmutil.ParseJSONResponse[tableExtraction](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the table extraction: %w", err)
	}

	records := make([]schemas.RequestRecord, 0, len(extraction.Requests))
	for _, record := range extraction.Requests {
		if strings.TrimSpace(record.ID) == "" {
			continue
		}
		// Index the kept rows, so dropped artifacts leave no gaps.
		record.RowIndex = len(records)
		records = append(records, record)
	}
	t.logger.Info("Request table extracted.", zap.Int("records", len(records)))
	return records, nil
}

// OpenRequest opens one request's detail page. The model proposes the most
// reliable click from the table HTML; link-text and selector chains cover
// for it when the proposal misses.
func (t *Tracker) OpenRequest(ctx context.Context, id string) error {
	if instr, err := t.clickInstruction(ctx, id); err == nil {
		if instr.Selector != "" {
			if err := t.browser.Click(ctx, instr.Selector); err == nil {
				return t.afterOpen(ctx, id, "selector")
			}
		}
		if instr.Text != "" {
			if err := t.browser.ClickText(ctx, instr.Text); err == nil {
				return t.afterOpen(ctx, id, "instruction_text")
			}
		}
	}

	if err := t.browser.ClickText(ctx, id); err == nil {
		return t.afterOpen(ctx, id, "link_text")
	}
	fallbacks := []string{
		fmt.Sprintf(`a[href*='%s']`, id),
		fmt.Sprintf(`td a[href*='%s']`, id),
	}
	if _, err := t.browser.ClickAny(ctx, fallbacks); err == nil {
		return t.afterOpen(ctx, id, "href_fallback")
	}
	return fmt.Errorf("could not open request '%s' from the table", id)
}

func (t *Tracker) afterOpen(ctx context.Context, id, method string) error {
	t.logger.Debug("Opened request detail.", zap.String("id", id), zap.String("method", method))
	_ = t.browser.HumanPause(ctx)
	_, _ = t.browser.Screenshot(ctx, "request_detail_"+id)
	return nil
}

func (t *Tracker) clickInstruction(ctx context.Context, id string) (*schemas.ClickInstruction, error) {
	html, err := t.browser.PageHTML(ctx)
	if err != nil {
		return nil, err
	}
	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(clickInstructionSystemPrompt, id, llmutil.Truncate(html, htmlLimit)),
		UserPrompt:   fmt.Sprintf("How do I open request %s?", id),
		Tier:         schemas.TierFast,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	return llmutil.ParseJSONResponse[schemas.ClickInstruction](raw)
}

// AnalyzeDetail summarizes the currently open request detail page.
func (t *Tracker) AnalyzeDetail(ctx context.Context, id string) (schemas.RequestDetail, error) {
	shot, err := t.browser.Screenshot(ctx, "detail_analysis_"+id)
	if err != nil {
		return schemas.RequestDetail{}, fmt.Errorf("failed to capture request '%s': %w", id, err)
	}
	text, err := t.browser.VisibleText(ctx)
	if err != nil {
		return schemas.RequestDetail{}, fmt.Errorf("failed to read request '%s': %w", id, err)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(detailAnalysisSystemPrompt,
			id, shot.URL, llmutil.Truncate(text, pageTextLimit), id),
		UserPrompt: "Summarize the state of this request.",
		Images: []schemas.ImagePart{
			{MIMEType: "image/png", Data: shot.Data},
		},
		Tier: schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return schemas.RequestDetail{}, fmt.Errorf("detail analysis request failed for '%s': %w", id, err)
	}
	detail, err := llmutil.ParseJSONResponse[schemas.RequestDetail](raw)
	if err != nil {
		return schemas.RequestDetail{}, fmt.Errorf("failed to parse the detail analysis for '%s': %w", id, err)
	}
	if detail.ID == "" {
		detail.ID = id
	}
	return *detail, nil
}

// StatusReport runs the full tracking pass: load the table, extract the
// rows, and analyze detail pages up to the configured limit. Requests whose
// analysis fails are skipped so one broken page doesn't sink the run.
// Status filters have to apply here, after the table navigation and before
// the scroll loop; navigating to "All requests" reloads the default
// checkbox state, so filters applied beforehand would be lost. The
// extracted rows come back alongside the summary so callers can persist
// the snapshot.
func (t *Tracker) StatusReport(ctx context.Context, statuses []string) (schemas.RequestSummary, []schemas.RequestRecord, error) {
	if err := t.NavigateToRequests(ctx); err != nil {
		return schemas.RequestSummary{}, nil, err
	}
	if len(statuses) > 0 {
		if err := t.ApplyStatusFilters(ctx, statuses); err != nil {
			return schemas.RequestSummary{}, nil, fmt.Errorf("failed to apply status filters: %w", err)
		}
	}
	if _, err := t.LoadAllRequests(ctx); err != nil {
		return schemas.RequestSummary{}, nil, err
	}
	records, err := t.ExtractTable(ctx)
	if err != nil {
		return schemas.RequestSummary{}, nil, err
	}

	summary := schemas.RequestSummary{
		Total:    len(records),
		ByStatus: map[string]int{},
	}
	for _, record := range records {
		status := record.Status
		if status == "" {
			status = "Unknown"
		}
		summary.ByStatus[status]++
	}

	limit := t.cfg.Tracker().DetailLimit
	if limit < 1 {
		limit = 5
	}
	for i, record := range records {
		if i >= limit {
			break
		}
		if err := t.OpenRequest(ctx, record.ID); err != nil {
			t.logger.Warn("Skipping request, could not open it.",
				zap.String("id", record.ID), zap.Error(err))
			continue
		}
		detail, err := t.AnalyzeDetail(ctx, record.ID)
		if err != nil {
			t.logger.Warn("Skipping request, analysis failed.",
				zap.String("id", record.ID), zap.Error(err))
		} else {
			summary.Details = append(summary.Details, detail)
			for _, action := range detail.NextActions {
				summary.Highlights = append(summary.Highlights,
					fmt.Sprintf("%s: %s", detail.ID, action))
			}
		}
		if err := t.browser.NavigateBack(ctx); err != nil {
			// Re-enter through navigation when history is unusable.
			if err := t.NavigateToRequests(ctx); err != nil {
				return summary, records, fmt.Errorf("lost the request table after '%s': %w", record.ID, err)
			}
		}
		_ = t.browser.HumanPause(ctx)
	}

	t.logger.Info("Status report complete.",
		zap.Int("total", summary.Total),
		zap.Int("analyzed", len(summary.Details)),
		zap.Int("highlights", len(summary.Highlights)))
	return summary, records, nil
}

// wait sleeps for d unless the context is cancelled first.
func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
