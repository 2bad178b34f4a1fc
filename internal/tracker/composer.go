// internal/tracker/composer.go
package tracker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/llmutil"
)

// composerHTMLScript collects the elements a message composer could be
// built from: textareas, contenteditable regions, textbox roles and the
// buttons around them.
const composerHTMLScript = `(() => {
	const parts = [];
	const clip = (html) => html.length > 400 ? html.slice(0, 400) + '...' : html;
	for (const node of document.querySelectorAll(
		"textarea, [contenteditable='true'], [contenteditable=''], [role='textbox']")) {
		const rect = node.getBoundingClientRect();
		if (rect.width > 0 && rect.height > 0) {
			parts.push(clip(node.outerHTML));
		}
	}
	for (const button of document.querySelectorAll('button, input[type=submit]')) {
		const text = ((button.textContent || button.value) || '').toLowerCase();
		const attrs = (button.outerHTML || '').toLowerCase();
		if (text.includes('send') || text.includes('message') || text.includes('post') ||
			attrs.includes('send') || attrs.includes('message')) {
			parts.push(clip(button.outerHTML));
		}
	}
	return parts.join('\n');
})()`

// Phrases the portal renders once a message goes through.
var sendSuccessIndicators = []string{
	"message sent", "successfully sent", "message delivered",
	"message posted", "sent successfully",
}

// DraftReply writes a reply for a request from its detail analysis.
func (t *Tracker) DraftReply(ctx context.Context, detail schemas.RequestDetail) (string, error) {
	state, err := json.Marshal(detail)
	if err != nil {
		return "", fmt.Errorf("failed to encode the request state: %w", err)
	}
	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(replyDraftSystemPrompt, string(state)),
		UserPrompt:   fmt.Sprintf("Draft a reply for request %s.", detail.ID),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0.4},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reply drafting failed for '%s': %w", detail.ID, err)
	}
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", fmt.Errorf("reply drafting produced no text for '%s'", detail.ID)
	}
	return reply, nil
}

// SendMessage posts a message on the currently open request detail page.
// The model locates the composer from its HTML; rich text editors are
// filled through direct value injection so their change events still fire.
func (t *Tracker) SendMessage(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message is empty")
	}

	analysis, err := t.analyzeComposer(ctx)
	if err != nil {
		return err
	}

	if _, err := t.browser.FillAny(ctx, []string{analysis.InputSelector}, message); err != nil {
		// Contenteditable editors reject keyboard fill, set the value directly.
		if err := t.browser.SetValueDirect(ctx, analysis.InputSelector, message); err != nil {
			return fmt.Errorf("could not fill the message composer: %w", err)
		}
	}
	_ = t.browser.HumanPause(ctx)

	if err := t.browser.Click(ctx, analysis.SubmitSelector); err != nil {
		return fmt.Errorf("could not click the send button: %w", err)
	}
	if err := wait(ctx, t.settle); err != nil {
		return err
	}
	_, _ = t.browser.Screenshot(ctx, "after_message_send")

	if text, err := t.browser.VisibleText(ctx); err == nil {
		lowered := strings.ToLower(text)
		for _, indicator := range sendSuccessIndicators {
			if strings.Contains(lowered, indicator) {
				t.logger.Info("Message sent.", zap.String("indicator", indicator))
				return nil
			}
		}
	}
	// No confirmation phrase. NextRequest closes the compose modal on
	// success, so a vanished composer also counts.
	if present, err := t.browser.Exists(ctx, analysis.InputSelector); err == nil && !present {
		t.logger.Info("Message sent, composer closed.")
		return nil
	}
	return fmt.Errorf("no send confirmation detected on the page")
}

func (t *Tracker) analyzeComposer(ctx context.Context) (*schemas.ComposerAnalysis, error) {
	var composerHTML string
	if err := t.browser.Evaluate(ctx, composerHTMLScript, &composerHTML); err != nil || strings.TrimSpace(composerHTML) == "" {
		full, herr := t.browser.PageHTML(ctx)
		if herr != nil {
			return nil, fmt.Errorf("failed to read the message composer: %w", herr)
		}
		composerHTML = full
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(composerAnalysisSystemPrompt, llmutil.Truncate(composerHTML, htmlLimit)),
		UserPrompt:   "Find the message input and send button.",
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}
	raw, err := t.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("composer analysis request failed: %w", err)
	}
	analysis, err := llmutil.ParseJSONResponse[schemas.ComposerAnalysis](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the composer analysis: %w", err)
	}
	if !analysis.Found || analysis.InputSelector == "" || analysis.SubmitSelector == "" {
		return nil, fmt.Errorf("no message composer found on this page")
	}
	return analysis, nil
}
