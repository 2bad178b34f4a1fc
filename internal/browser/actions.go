// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/internal/llmutil"
)

const (
	probeTimeout  = 5 * time.Second
	actionTimeout = 15 * time.Second
)

// Exists reports whether a selector matches a visible element right now.
// Probing must not block, so the check polls once via JS instead of waiting.
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	script := fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		return style.display !== 'none' && style.visibility !== 'hidden';
	})()`, jsonEncode(selector))

	var visible bool
	if err := s.Evaluate(probeCtx, script, &visible); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	return visible, nil
}

// Click clicks the element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))

	clickCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	action := chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	}
	if err := s.runActions(clickCtx, action); err != nil {
		return fmt.Errorf("click failed for selector '%s': %w", selector, err)
	}
	return nil
}

// ClickAny tries each selector in order and clicks the first one that is
// present. Portal markup varies between deployments, so callers pass the
// whole chain of known variants.
func (s *Session) ClickAny(ctx context.Context, selectors []string) (string, error) {
	for _, sel := range selectors {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if err := s.Click(ctx, sel); err != nil {
			s.logger.Debug("Candidate selector failed to click, trying next.",
				zap.String("selector", sel), zap.Error(err))
			continue
		}
		return sel, nil
	}
	return "", fmt.Errorf("no clickable element among %d candidate selectors", len(selectors))
}

// ClickText clicks the first link or button whose visible text contains the
// given string. Covers the portals whose controls carry no stable
// attributes, only labels like "Sign in".
func (s *Session) ClickText(ctx context.Context, text string) error {
	s.logger.Debug("Clicking element by text", zap.String("text", text))

	clickCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	xpath := fmt.Sprintf(`//a[contains(normalize-space(.), %s)] | //button[contains(normalize-space(.), %s)]`,
		xpathLiteral(text), xpathLiteral(text))
	action := chromedp.Tasks{
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Click(xpath, chromedp.BySearch),
	}
	if err := s.runActions(clickCtx, action); err != nil {
		return fmt.Errorf("click by text failed for %q: %w", text, err)
	}
	return nil
}

// xpathLiteral quotes a string for embedding in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	// Mixed quotes need concat().
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Fill types text into the element matching the selector, replacing any
// existing value.
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	s.logger.Debug("Filling element",
		zap.String("selector", selector), zap.Int("value_length", len(value)))

	fillCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	action := chromedp.Tasks{
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	}
	if err := s.runActions(fillCtx, action); err != nil {
		return fmt.Errorf("fill failed for selector '%s': %w", selector, err)
	}
	return nil
}

// FillVerified fills the element and reads the value back. Some portal forms
// attach JS handlers that clear inputs on focus, which silently swallows the
// keystrokes; verification catches that.
func (s *Session) FillVerified(ctx context.Context, selector, value string) error {
	if err := s.Fill(ctx, selector, value); err != nil {
		return err
	}

	var got string
	if err := s.runActions(ctx, chromedp.Value(selector, &got, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to read back value for '%s': %w", selector, err)
	}
	if got != value {
		return fmt.Errorf("value verification failed for '%s': wrote %d chars, element holds %q",
			selector, len(value), llmutil.Truncate(got, 60))
	}
	return nil
}

// FillAny fills the first present selector from the chain.
func (s *Session) FillAny(ctx context.Context, selectors []string, value string) (string, error) {
	for _, sel := range selectors {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if err := s.FillVerified(ctx, sel, value); err != nil {
			s.logger.Debug("Candidate selector failed to fill, trying next.",
				zap.String("selector", sel), zap.Error(err))
			continue
		}
		return sel, nil
	}
	return "", fmt.Errorf("no fillable element among %d candidate selectors", len(selectors))
}

// SetValueDirect assigns the value through the DOM property and dispatches
// input/change events. Used for contenteditable regions and inputs that
// reject synthetic keystrokes.
func (s *Session) SetValueDirect(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.isContentEditable) {
			el.textContent = %s;
		} else {
			el.value = %s;
		}
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, jsonEncode(selector), jsonEncode(value), jsonEncode(value))

	var ok bool
	if err := s.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("direct value assignment failed for '%s': %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("element not found for direct value assignment: '%s'", selector)
	}
	return nil
}

// SetChecked toggles a checkbox to the desired state, firing change events
// only when the state actually flips.
func (s *Session) SetChecked(ctx context.Context, selector string, checked bool) error {
	script := fmt.Sprintf(`(function() {
		const el = document.querySelector(%s);
		if (!el) return false;
		if (el.checked !== %t) {
			el.click();
		}
		return el.checked === %t;
	})()`, jsonEncode(selector), checked, checked)

	var ok bool
	if err := s.Evaluate(ctx, script, &ok); err != nil {
		return fmt.Errorf("checkbox toggle failed for '%s': %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("checkbox '%s' did not reach desired state", selector)
	}
	return nil
}

// PressCtrlEnter sends Ctrl+Enter to the focused element. Message composers
// on the portals use it as the send shortcut.
func (s *Session) PressCtrlEnter(ctx context.Context) error {
	keyCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	action := chromedp.KeyEvent(kb.Enter, chromedp.KeyModifiers(input.ModifierCtrl))
	if err := s.runActions(keyCtx, action); err != nil {
		return fmt.Errorf("failed to send Ctrl+Enter: %w", err)
	}
	return nil
}

// ScrollToBottom scrolls the page to its full height and reports the new
// scroll height, letting callers detect when infinite scroll stops growing.
func (s *Session) ScrollToBottom(ctx context.Context) (int64, error) {
	scrollCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var height int64
	script := `(function() {
		window.scrollTo({top: document.body.scrollHeight, behavior: 'instant'});
		return document.body.scrollHeight;
	})()`
	if err := s.Evaluate(scrollCtx, script, &height); err != nil {
		return 0, fmt.Errorf("scroll to bottom failed: %w", err)
	}
	return height, nil
}

// NavigateBack returns to the previous history entry, used to get back to
// a request list after opening a detail page.
func (s *Session) NavigateBack(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("failed to navigate back: %w", err)
	}
	return s.stabilize(ctx)
}

// ScrollBy scrolls the viewport vertically by the given pixel amount.
func (s *Session) ScrollBy(ctx context.Context, pixels int) error {
	scrollCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	script := fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'smooth'});`, pixels)
	if err := s.Evaluate(scrollCtx, script, nil); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}
