// internal/request/submitter.go
package request

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// settleAfterSubmit gives the portal time to render the confirmation page
// before it is scraped.
const settleAfterSubmit = 4 * time.Second

// descriptionFillScript locates the request description field and fills it.
// It prefers the editor APIs rich text widgets expose, then falls back to
// scoring visible textareas so the request body never lands in an address
// box. Returns the method name that worked, or an empty string.
const descriptionFillScript = `(() => {
	const requestText = %s;

	try {
		if (typeof tinymce !== 'undefined' && tinymce.editors && tinymce.editors.length > 0) {
			tinymce.editors[0].setContent(requestText);
			return 'tinymce-api';
		}
	} catch (e) {}

	try {
		if (typeof CKEDITOR !== 'undefined') {
			for (const instance in CKEDITOR.instances) {
				CKEDITOR.instances[instance].setData(requestText);
				return 'ckeditor-api';
			}
		}
	} catch (e) {}

	const candidates = Array.from(document.querySelectorAll('textarea')).map(ta => {
		const rect = ta.getBoundingClientRect();
		const area = rect.width * rect.height;
		const parentText = ((ta.parentElement && ta.parentElement.textContent) || '').toLowerCase();
		const isAddress = parentText.includes('street') || parentText.includes('address');
		const placeholder = (ta.placeholder || '').toLowerCase();
		const isRequest = placeholder.includes('request') || placeholder.includes('enter your');
		return {
			element: ta,
			isAddress: isAddress,
			score: area * (isRequest ? 2 : 1) * (isAddress ? 0.1 : 1),
			area: area,
		};
	}).filter(c => c.area > 5000);

	candidates.sort((a, b) => b.score - a.score);

	if (candidates.length > 0 && !candidates[0].isAddress) {
		const best = candidates[0].element;
		best.focus();
		best.value = requestText;
		best.dispatchEvent(new Event('input', { bubbles: true }));
		best.dispatchEvent(new Event('change', { bubbles: true }));
		return 'textarea-smart';
	}

	return '';
})()`

// labelFillScript resolves the description field through its label. Only
// labels whose text matches a request-description phrase are considered.
const labelFillScript = `(() => {
	const requestText = %s;
	const phrases = ['request description', 'description', 'request', 'enter your request'];

	for (const phrase of phrases) {
		for (const label of document.querySelectorAll('label')) {
			const text = (label.textContent || '').toLowerCase();
			if (!text.includes(phrase)) {
				continue;
			}
			let field = null;
			const forAttr = label.getAttribute('for');
			if (forAttr) {
				field = document.getElementById(forAttr);
			}
			if (!field) {
				field = label.querySelector('textarea, input') ||
					(label.parentElement && label.parentElement.querySelector('textarea'));
			}
			if (!field) {
				continue;
			}
			field.focus();
			if (field.isContentEditable) {
				field.textContent = requestText;
			} else {
				field.value = requestText;
			}
			field.dispatchEvent(new Event('input', { bubbles: true }));
			field.dispatchEvent(new Event('change', { bubbles: true }));
			return true;
		}
	}
	return false;
})()`

// contentEditableProbeScript picks a substantial contenteditable region that
// does not look like an address field and returns a selector path for it.
const contentEditableProbeScript = `(() => {
	const nodes = document.querySelectorAll("[contenteditable='true'], [contenteditable]");
	for (const node of nodes) {
		const rect = node.getBoundingClientRect();
		if (rect.height <= 100) {
			continue;
		}
		const context = ((node.parentElement && node.parentElement.textContent) || '').toLowerCase() +
			' ' + ((node.getAttribute('name') || '') + ' ' + (node.id || '')).toLowerCase();
		if (context.includes('request') || context.includes('description') || context.includes('enter your')) {
			if (node.id) { return '#' + node.id; }
			return "[contenteditable]";
		}
		if (context.includes('street') || context.includes('address') || context.includes('addr') || context.includes('mailing')) {
			continue;
		}
		if (node.id) { return '#' + node.id; }
		return "[contenteditable]";
	}
	return '';
})()`

// fieldFillScript fills the first matching contact field in a selector
// chain. Fields the portal pre-populated from the account profile are left
// alone. Returns 'filled', 'skipped' or 'missing'.
const fieldFillScript = `(() => {
	const selectors = %s;
	const value = %s;

	for (const selector of selectors) {
		let field = null;
		try {
			field = document.querySelector(selector);
		} catch (e) {
			continue;
		}
		if (!field) {
			continue;
		}
		if (field.value && field.value.trim() !== '') {
			return 'skipped';
		}
		field.focus();
		field.value = value;
		field.dispatchEvent(new Event('input', { bubbles: true }));
		field.dispatchEvent(new Event('change', { bubbles: true }));
		return 'filled';
	}
	return 'missing';
})()`

// descriptionLengthScript reports how much text the description field holds,
// used to verify a fill strategy actually landed.
const descriptionLengthScript = `(() => {
	let longest = 0;
	for (const node of document.querySelectorAll("textarea, [contenteditable='true'], [contenteditable]")) {
		const content = node.value || node.textContent || '';
		if (content.length > longest) {
			longest = content.length;
		}
	}
	return longest;
})()`

// Submitter drives the portal's request form.
type Submitter struct {
	cfg     config.Interface
	browser Browser
	logger  *zap.Logger

	settle time.Duration
}

// NewSubmitter returns a Submitter bound to an authenticated browser session.
func NewSubmitter(cfg config.Interface, b Browser, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		cfg:     cfg,
		browser: b,
		logger:  logger.Named("request_submitter"),
		settle:  settleAfterSubmit,
	}
}

// NavigateToForm opens the request form from the portal landing page.
func (s *Submitter) NavigateToForm(ctx context.Context) error {
	for _, text := range makeRequestTexts {
		if err := s.browser.ClickText(ctx, text); err == nil {
			s.logger.Info("Opened the request form.", zap.String("link_text", text))
			_ = s.browser.HumanPause(ctx)
			_, _ = s.browser.Screenshot(ctx, "request_form_loaded")
			return nil
		}
	}
	if sel, err := s.browser.ClickAny(ctx, makeRequestSelectors); err == nil {
		s.logger.Info("Opened the request form.", zap.String("selector", sel))
		_ = s.browser.HumanPause(ctx)
		_, _ = s.browser.Screenshot(ctx, "request_form_loaded")
		return nil
	}
	return fmt.Errorf("could not find a 'Make Request' link on the portal page")
}

// FillDescription writes the request letter into the description field,
// trying progressively less targeted strategies. It returns the name of the
// strategy that worked.
func (s *Submitter) FillDescription(ctx context.Context, letter string) (string, error) {
	if strings.TrimSpace(letter) == "" {
		return "", fmt.Errorf("request letter is empty")
	}

	if _, err := s.browser.FillAny(ctx, descriptionPlaceholderSelectors, letter); err == nil {
		if s.verifyDescription(ctx) {
			s.logger.Info("Filled the request description.", zap.String("method", "placeholder"))
			return "placeholder", nil
		}
	}

	var method string
	script := fmt.Sprintf(descriptionFillScript, jsonEncode(letter))
	if err := s.browser.Evaluate(ctx, script, &method); err == nil && method != "" {
		s.logger.Info("Filled the request description.", zap.String("method", method))
		return method, nil
	}

	var selector string
	if err := s.browser.Evaluate(ctx, contentEditableProbeScript, &selector); err == nil && selector != "" {
		if err := s.browser.SetValueDirect(ctx, selector, letter); err == nil && s.verifyDescription(ctx) {
			s.logger.Info("Filled the request description.", zap.String("method", "contenteditable"))
			return "contenteditable", nil
		}
	}

	var viaLabel bool
	script = fmt.Sprintf(labelFillScript, jsonEncode(letter))
	if err := s.browser.Evaluate(ctx, script, &viaLabel); err == nil && viaLabel && s.verifyDescription(ctx) {
		s.logger.Info("Filled the request description.", zap.String("method", "label-association"))
		return "label-association", nil
	}

	return "", fmt.Errorf("could not locate a request description field on the form")
}

// verifyDescription confirms the description field holds substantial text.
// Short contents usually mean the value landed in the wrong field.
func (s *Submitter) verifyDescription(ctx context.Context) bool {
	var length int
	if err := s.browser.Evaluate(ctx, descriptionLengthScript, &length); err != nil {
		// The fill itself reported success, trust it.
		return true
	}
	return length > 100
}

// FillContact fills the contact fields the form exposes. Fields the portal
// pre-populated from the account profile are skipped, and only textarea
// selectors scoped to address attributes receive the street address so the
// request body is never overwritten.
func (s *Submitter) FillContact(ctx context.Context, contact schemas.ContactInfo) (filled, skipped int) {
	fields := []struct {
		name      string
		selectors []string
		value     string
	}{
		{"email", emailFieldSelectors, contact.Email},
		{"name", nameFieldSelectors, contact.Name},
		{"phone", phoneFieldSelectors, contact.Phone},
		{"address", addressFieldSelectors, contact.Address},
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}
		script := fmt.Sprintf(fieldFillScript, jsonEncode(field.selectors), jsonEncode(field.value))
		var outcome string
		if err := s.browser.Evaluate(ctx, script, &outcome); err != nil {
			s.logger.Warn("Contact field fill failed.", zap.String("field", field.name), zap.Error(err))
			continue
		}
		switch outcome {
		case "filled":
			filled++
			s.logger.Debug("Filled contact field.", zap.String("field", field.name))
		case "skipped":
			skipped++
			s.logger.Debug("Contact field already populated.", zap.String("field", field.name))
		}
	}
	return filled, skipped
}

// Submit clicks the form's submit control and scrapes the confirmation page.
func (s *Submitter) Submit(ctx context.Context) (schemas.SubmissionResult, error) {
	_, _ = s.browser.Screenshot(ctx, "before_form_submission")

	clicked := false
	for _, text := range submitTexts {
		if err := s.browser.ClickText(ctx, text); err == nil {
			clicked = true
			break
		}
	}
	if !clicked {
		if _, err := s.browser.ClickAny(ctx, submitFormSelectors); err != nil {
			return schemas.SubmissionResult{}, fmt.Errorf("could not find the form submit button: %w", err)
		}
	}

	if err := wait(ctx, s.settle); err != nil {
		return schemas.SubmissionResult{}, err
	}
	_, _ = s.browser.Screenshot(ctx, "after_form_submission")

	result := schemas.SubmissionResult{
		Submitted:   true,
		SubmittedAt: time.Now().UTC(),
	}
	if url, err := s.browser.CurrentURL(ctx); err == nil {
		result.URL = url
	}
	result.Confirmation = s.confirmation(ctx, result.URL)
	return result, nil
}

// confirmationIndicators are phrases NextRequest renders on the page that
// follows a successful submission.
var confirmationIndicators = []string{
	"confirmation", "submitted", "request number", "thank you",
	"received", "successfully", "request has been", "your request",
}

var urlConfirmationIndicators = []string{"thank", "confirm", "success", "submitted"}

func (s *Submitter) confirmation(ctx context.Context, currentURL string) string {
	if text, err := s.browser.VisibleText(ctx); err == nil {
		lowered := strings.ToLower(text)
		for _, indicator := range confirmationIndicators {
			if !strings.Contains(lowered, indicator) {
				continue
			}
			for _, line := range strings.Split(text, "\n") {
				trimmed := strings.TrimSpace(line)
				if len(trimmed) > 10 && strings.Contains(strings.ToLower(trimmed), indicator) {
					return trimmed
				}
			}
			return fmt.Sprintf("confirmation phrase present: %q", indicator)
		}
	}

	loweredURL := strings.ToLower(currentURL)
	for _, indicator := range urlConfirmationIndicators {
		if strings.Contains(loweredURL, indicator) {
			return fmt.Sprintf("url indicates success: %s", currentURL)
		}
	}

	if title, err := s.browser.Title(ctx); err == nil {
		loweredTitle := strings.ToLower(title)
		for _, indicator := range urlConfirmationIndicators {
			if strings.Contains(loweredTitle, indicator) {
				return fmt.Sprintf("page title indicates success: %s", title)
			}
		}
	}
	return ""
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

func jsonEncode(v interface{}) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(encoded)
}
