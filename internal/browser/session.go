// internal/browser/session.go
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

// fullScreenshotQuality must stay 100: chromedp captures PNG only at
// quality 100 and switches to JPEG below it, which would break the
// image/png parts fed to the vision model and the .png artifact files.
const fullScreenshotQuality = 100

// Session represents an active browser tab.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.Interface

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

// NewSession creates a new Session wrapper around a chromedp tab context.
func NewSession(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg config.Interface,
	logger *zap.Logger,
) (*Session, error) {
	sessionID := uuid.New().String()
	s := &Session{
		id:     sessionID,
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With(zap.String("session_id", sessionID)),
		cfg:    cfg,
	}
	return s, nil
}

// Initialize connects the tab and applies the stealth profile.
func (s *Session) Initialize(ctx context.Context) error {
	// Ensure the target (tab) is created and CDP is connected.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to initialize browser context/target connection: %w", err)
	}

	if err := s.runActions(ctx, applyStealth(s.cfg.Browser(), s.logger)); err != nil {
		return fmt.Errorf("failed to apply stealth profile: %w", err)
	}

	s.logger.Debug("Session initialized.")
	return nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Context returns the underlying chromedp tab context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close terminates the browser tab.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

// Navigate loads the URL and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.cfg.Browser().NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if err := s.stabilize(opCtx); err != nil {
		if opCtx.Err() != nil {
			return opCtx.Err()
		}
		s.logger.Warn("Page stabilization failed after navigation (non-critical).", zap.Error(err))
	}

	return nil
}

// stabilize waits for the DOM to be ready plus the configured settle period.
// Portal pages load request tables and login widgets asynchronously, so a
// plain load event is not enough.
func (s *Session) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	settle := s.cfg.Browser().PostLoadWait
	if settle <= 0 {
		settle = 1500 * time.Millisecond
	}
	return chromedp.Run(stabCtx, chromedp.Sleep(settle))
}

// CurrentURL returns the URL of the active page.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := s.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current location: %w", err)
	}
	return url, nil
}

// Title returns the title of the active page.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

// PageHTML returns the serialized DOM of the active page.
func (s *Session) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.runActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// VisibleText returns the rendered text content of the page body.
func (s *Session) VisibleText(ctx context.Context) (string, error) {
	var text string
	if err := s.runActions(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page text: %w", err)
	}
	return text, nil
}

// Evaluate runs a JavaScript snippet in the page and optionally unmarshals
// the result into res.
func (s *Session) Evaluate(ctx context.Context, script string, res interface{}) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// Screenshot captures the full page. The image is written under the
// configured screenshot directory and returned with its metadata so it can
// be fed to vision analysis.
func (s *Session) Screenshot(ctx context.Context, name string) (schemas.Screenshot, error) {
	var buf []byte
	shot := schemas.Screenshot{Name: name}

	shotCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	err := s.runActions(shotCtx,
		chromedp.Location(&shot.URL),
		chromedp.Title(&shot.Title),
		chromedp.FullScreenshot(&buf, fullScreenshotQuality),
	)
	if err != nil {
		return shot, fmt.Errorf("failed to capture screenshot '%s': %w", name, err)
	}

	shot.Data = base64.StdEncoding.EncodeToString(buf)
	shot.CapturedAt = time.Now().UTC()

	dir := s.cfg.Artifacts().ScreenshotDir
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return shot, fmt.Errorf("failed to create screenshot directory: %w", err)
		}
		shot.Path = filepath.Join(dir, fmt.Sprintf("%s_%s.png", name, time.Now().UTC().Format("20060102T150405")))
		if err := os.WriteFile(shot.Path, buf, 0o644); err != nil {
			return shot, fmt.Errorf("failed to write screenshot file: %w", err)
		}
	}

	s.logger.Debug("Screenshot captured.",
		zap.String("name", name),
		zap.String("path", shot.Path),
		zap.Int("bytes", len(buf)))
	return shot, nil
}

// runActions executes chromedp actions, respecting both the session lifetime
// (s.ctx) and the incoming request context (ctx).
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

// CombineContext creates a context that is canceled when either parent is
// canceled. Required because chromedp actions must run on the tab context,
// while callers carry their own deadlines.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
