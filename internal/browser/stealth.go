// internal/browser/stealth.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	jsoniter "github.com/json-iterator/go"

	"github.com/foiahound/foiahound/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// evasionsScript patches the properties that headless Chrome leaks.
// CivicPlus portals sit behind bot detection that inspects these before
// serving the login form.
const evasionsScript = `
(() => {
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	window.chrome = window.chrome || { runtime: {} };
	Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
	Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
})();
`

// applyStealth builds the CDP actions that make the tab present as a
// user-operated browser.
func applyStealth(cfg config.BrowserConfig, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth profile", zap.String("user_agent", cfg.UserAgent))

	tasks := chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(evasionsScript).Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),
	}

	if cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(cfg.UserAgent))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		tasks = append(tasks, emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1.0, false))
	}

	return tasks
}

// jsonEncode marshals a value to its JSON representation for safe injection
// into JavaScript snippets. Selectors arrive from LLM output and may contain
// quotes.
func jsonEncode(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(data)
}
