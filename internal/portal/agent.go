// internal/portal/agent.go
package portal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
	"github.com/foiahound/foiahound/internal/llmutil"
)

// pageTextLimit caps how much rendered text accompanies a screenshot in the
// vision prompt.
const pageTextLimit = 3000

// Agent drives access to a records portal: navigation, page understanding
// through the vision model, and authentication.
type Agent struct {
	cfg     config.Interface
	browser Browser
	llm     schemas.LLMClient
	logger  *zap.Logger

	mu    sync.Mutex
	shots []schemas.Screenshot
}

// NavigationResult captures the outcome of opening the portal.
type NavigationResult struct {
	Success    bool                 `json:"success"`
	Blocked    bool                 `json:"blocked"`
	URL        string               `json:"url"`
	Title      string               `json:"title"`
	Analysis   schemas.PageAnalysis `json:"analysis"`
	Screenshot schemas.Screenshot   `json:"-"`
	Err        string               `json:"error,omitempty"`
}

// LoginResult captures the outcome of an authentication attempt.
type LoginResult struct {
	Outcome      schemas.LoginOutcome `json:"outcome"`
	Attempts     int                  `json:"attempts"`
	FinalURL     string               `json:"final_url"`
	PreAnalysis  schemas.PageAnalysis `json:"pre_login_analysis"`
	PostAnalysis schemas.PageAnalysis `json:"post_login_analysis"`
}

// New creates a portal agent over an open browser session.
func New(cfg config.Interface, b Browser, llm schemas.LLMClient, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:     cfg,
		browser: b,
		llm:     llm,
		logger:  logger.Named("portal"),
	}
}

// Screenshots returns every screenshot captured during the session, in
// capture order.
func (a *Agent) Screenshots() []schemas.Screenshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]schemas.Screenshot, len(a.shots))
	copy(out, a.shots)
	return out
}

// Open navigates to the configured portal and analyzes the landing page.
// Stored session cookies are restored first when they are still fresh, so a
// recent login can be reused without re-authenticating.
func (a *Agent) Open(ctx context.Context) (*NavigationResult, error) {
	portalURL := a.cfg.Portal().URL
	if portalURL == "" {
		return nil, fmt.Errorf("portal URL is not configured")
	}

	if err := a.browser.Warmup(ctx); err != nil {
		return nil, fmt.Errorf("session warmup failed: %w", err)
	}

	cookieFile := a.cfg.Portal().CookieFile
	if cookieFile != "" {
		if fresh, err := SessionFresh(cookieFile, time.Now()); err != nil {
			a.logger.Debug("Could not evaluate stored session cookies.", zap.Error(err))
		} else if fresh {
			if n, err := a.browser.LoadCookies(ctx, cookieFile); err != nil {
				a.logger.Warn("Failed to restore stored session cookies.", zap.Error(err))
			} else if n > 0 {
				a.logger.Info("Restored portal session cookies.", zap.Int("count", n))
			}
		}
	}

	a.logger.Info("Opening portal.", zap.String("url", portalURL))
	if err := a.browser.Navigate(ctx, portalURL); err != nil {
		return &NavigationResult{Success: false, URL: portalURL, Err: err.Error()}, err
	}
	if err := a.browser.HumanPause(ctx); err != nil {
		return nil, err
	}

	currentURL, err := a.browser.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read post-navigation URL: %w", err)
	}

	analysis, shot, err := a.AnalyzePage(ctx, "initial_portal_view")
	if err != nil {
		return &NavigationResult{Success: false, URL: currentURL, Err: err.Error()}, err
	}

	result := &NavigationResult{
		Success:    true,
		URL:        currentURL,
		Title:      shot.Title,
		Analysis:   analysis,
		Screenshot: shot,
	}

	if isBlockRedirect(currentURL) {
		a.logger.Warn("Redirected to a blocking page.", zap.String("url", currentURL))
		result.Success = false
		result.Blocked = true
		result.Analysis.PageType = schemas.PageTypeBlocked
		result.Err = fmt.Sprintf("access blocked: redirected to %s", currentURL)
	}

	return result, nil
}

// AnalyzePage screenshots the current page and asks the vision model to
// classify it.
func (a *Agent) AnalyzePage(ctx context.Context, label string) (schemas.PageAnalysis, schemas.Screenshot, error) {
	shot, err := a.browser.Screenshot(ctx, label)
	if err != nil {
		return schemas.PageAnalysis{}, shot, fmt.Errorf("failed to capture page for analysis: %w", err)
	}
	a.recordScreenshot(shot)

	pageText, err := a.browser.VisibleText(ctx)
	if err != nil {
		a.logger.Debug("Could not read page text, analyzing screenshot alone.", zap.Error(err))
		pageText = ""
	}

	req := schemas.GenerationRequest{
		SystemPrompt: fmt.Sprintf(pageAnalysisSystemPrompt,
			shot.URL, shot.Title, label, llmutil.Truncate(pageText, pageTextLimit)),
		UserPrompt: "Analyze this page and report the page state.",
		Images: []schemas.ImagePart{
			{MIMEType: "image/png", Data: shot.Data},
		},
		Tier: schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}

	raw, err := a.llm.Generate(ctx, req)
	if err != nil {
		return schemas.PageAnalysis{}, shot, fmt.Errorf("page analysis request failed: %w", err)
	}

	analysis, err := llmutil.ParseJSONResponse[schemas.PageAnalysis](raw)
	if err != nil {
		return schemas.PageAnalysis{}, shot, fmt.Errorf("failed to parse page analysis: %w", err)
	}

	a.logger.Info("Page analyzed.",
		zap.String("label", label),
		zap.String("page_type", string(analysis.PageType)),
		zap.Bool("login_required", analysis.LoginRequired),
		zap.Float64("confidence", analysis.Confidence))
	return *analysis, shot, nil
}

// Login authenticates against the portal, retrying up to the configured
// attempt count. Session cookies are persisted on success.
func (a *Agent) Login(ctx context.Context, creds schemas.Credentials) (*LoginResult, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, fmt.Errorf("portal credentials are not set (hint: check FOIAHOUND_PORTAL_EMAIL / FOIAHOUND_PORTAL_PASSWORD)")
	}

	attempts := a.cfg.Portal().LoginAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastResult *LoginResult
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		a.logger.Info("Attempting portal login.", zap.Int("attempt", attempt))

		result, err := a.loginOnce(ctx, creds)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("Login attempt errored.", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		result.Attempts = attempt
		if result.Outcome.Success {
			cookieFile := a.cfg.Portal().CookieFile
			if cookieFile != "" {
				if err := a.browser.SaveCookies(ctx, cookieFile); err != nil {
					a.logger.Warn("Could not persist session cookies after login.", zap.Error(err))
				}
			}
			a.logger.Info("Login successful.",
				zap.Int("attempt", attempt), zap.String("indicator", result.Outcome.Indicator))
			return result, nil
		}
		lastResult = result
		a.logger.Warn("Login attempt rejected.",
			zap.Int("attempt", attempt), zap.String("error_text", result.Outcome.ErrorText))
	}

	if lastResult != nil {
		return lastResult, nil
	}
	return nil, fmt.Errorf("all %d login attempts failed: %w", attempts, lastErr)
}

// loginOnce runs one full login pass: reach the form, fill it, submit, and
// evaluate the page that comes back.
func (a *Agent) loginOnce(ctx context.Context, creds schemas.Credentials) (*LoginResult, error) {
	a.clickSignIn(ctx)

	preAnalysis, _, err := a.AnalyzePage(ctx, "after_sign_in_click")
	if err != nil {
		return nil, err
	}

	if _, err := a.browser.FillAny(ctx, usernameSelectors, creds.Email); err != nil {
		return nil, fmt.Errorf("could not find a username field: %w", err)
	}
	if err := a.browser.HumanPause(ctx); err != nil {
		return nil, err
	}
	if _, err := a.browser.FillAny(ctx, passwordSelectors, creds.Password); err != nil {
		return nil, fmt.Errorf("could not find a password field: %w", err)
	}
	if err := a.browser.HumanPause(ctx); err != nil {
		return nil, err
	}

	if _, err := a.browser.ClickAny(ctx, submitSelectors); err != nil {
		return nil, fmt.Errorf("could not find a submit button: %w", err)
	}

	if err := wait(ctx, a.loginSettle()); err != nil {
		return nil, err
	}

	postAnalysis, postShot, err := a.AnalyzePage(ctx, "after_login_attempt")
	if err != nil {
		return nil, err
	}

	finalURL, err := a.browser.CurrentURL(ctx)
	if err != nil {
		finalURL = postShot.URL
	}

	return &LoginResult{
		Outcome:      EvaluateLoginSuccess(postAnalysis, postShot),
		FinalURL:     finalURL,
		PreAnalysis:  preAnalysis,
		PostAnalysis: postAnalysis,
	}, nil
}

// clickSignIn walks the sign-in chains. Finding nothing is tolerated; the
// session may already be sitting on the login form.
func (a *Agent) clickSignIn(ctx context.Context) {
	for _, text := range signInTexts {
		if err := a.browser.ClickText(ctx, text); err == nil {
			a.logger.Debug("Clicked sign-in control by text.", zap.String("text", text))
			return
		}
	}
	if sel, err := a.browser.ClickAny(ctx, signInSelectors); err == nil {
		a.logger.Debug("Clicked sign-in control by selector.", zap.String("selector", sel))
		return
	}
	a.logger.Debug("No sign-in control found; assuming the login form is already present.")
}

// EvaluateLoginSuccess decides whether the post-login page shows an
// authenticated state. Error indicators veto success indicators.
func EvaluateLoginSuccess(analysis schemas.PageAnalysis, shot schemas.Screenshot) schemas.LoginOutcome {
	titleLower := strings.ToLower(shot.Title)
	urlLower := strings.ToLower(shot.URL)

	for _, elem := range analysis.KeyElements {
		lower := strings.ToLower(elem)
		for _, bad := range []string{"invalid", "incorrect", "failed"} {
			if strings.Contains(lower, bad) {
				return schemas.LoginOutcome{
					Success:    false,
					ErrorText:  elem,
					Confidence: analysis.Confidence,
				}
			}
		}
	}
	if analysis.PageType == schemas.PageTypeError || strings.Contains(titleLower, "error") {
		return schemas.LoginOutcome{
			Success:    false,
			ErrorText:  "error page after login attempt",
			Confidence: analysis.Confidence,
		}
	}

	type indicator struct {
		ok   bool
		name string
	}
	indicators := []indicator{
		{analysis.PageType == schemas.PageTypeDashboard, "dashboard page type"},
		{strings.Contains(titleLower, "dashboard"), "dashboard in title"},
		{strings.Contains(urlLower, "welcome"), "welcome in URL"},
		{!analysis.LoginRequired, "login no longer required"},
	}
	for _, elem := range analysis.KeyElements {
		if strings.Contains(strings.ToLower(elem), "make request") {
			indicators = append(indicators, indicator{true, "make request element visible"})
			break
		}
	}

	for _, ind := range indicators {
		if ind.ok {
			return schemas.LoginOutcome{
				Success:    true,
				Indicator:  ind.name,
				Confidence: analysis.Confidence,
			}
		}
	}
	return schemas.LoginOutcome{
		Success:    false,
		ErrorText:  "no authenticated-state indicators on the page",
		Confidence: analysis.Confidence,
	}
}

func (a *Agent) loginSettle() time.Duration {
	if settle := a.cfg.Portal().LoginSettle; settle > 0 {
		return settle
	}
	return 3 * time.Second
}

func (a *Agent) recordScreenshot(shot schemas.Screenshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shots = append(a.shots, shot)
}

func isBlockRedirect(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, "block.php") || strings.Contains(lower, "civicplus.com")
}

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
