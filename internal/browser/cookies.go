// internal/browser/cookies.go
package browser

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SaveCookies snapshots the tab's cookies to a JSON file so later runs can
// resume an authenticated portal session without logging in again.
func (s *Session) SaveCookies(ctx context.Context, path string) error {
	var cookies []*network.Cookie
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return fmt.Errorf("failed to read cookies from browser: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	// Session cookies grant account access, keep the file owner-only.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	s.logger.Debug("Cookies saved.", zap.String("path", path), zap.Int("count", len(cookies)))
	return nil
}

// LoadCookies restores cookies from a previous run into the tab. A missing
// file is not an error; the caller falls back to a fresh login.
func (s *Session) LoadCookies(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return 0, fmt.Errorf("failed to parse cookie file '%s': %w", path, err)
	}

	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if c.Expires > 0 {
			expires := cdpTimeSinceEpoch(c.Expires)
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err = s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return network.SetCookies(params).Do(c)
	}))
	if err != nil {
		return 0, fmt.Errorf("failed to restore cookies into browser: %w", err)
	}

	s.logger.Debug("Cookies restored.", zap.String("path", path), zap.Int("count", len(params)))
	return len(params), nil
}

func cdpTimeSinceEpoch(seconds float64) cdp.TimeSinceEpoch {
	sec, frac := math.Modf(seconds)
	return cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
}
