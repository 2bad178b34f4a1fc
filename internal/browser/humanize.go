// internal/browser/humanize.go
package browser

import (
	"context"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/foiahound/foiahound/internal/config"
)

// Warmup visits a neutral page and scrolls through it before the first
// portal navigation. A tab whose very first request hits the target with
// zero prior activity is an easy bot signal.
func (s *Session) Warmup(ctx context.Context) error {
	hc := s.cfg.Browser().Humanize
	if !hc.Enabled || hc.WarmupURL == "" {
		return nil
	}

	s.logger.Debug("Warming up session.", zap.String("url", hc.WarmupURL))
	if err := s.Navigate(ctx, hc.WarmupURL); err != nil {
		// Warmup is best effort; a blocked warmup page must not kill the run.
		s.logger.Warn("Warmup navigation failed (continuing).", zap.Error(err))
		return nil
	}

	for i := 0; i < hc.ScrollSteps; i++ {
		if err := s.ScrollBy(ctx, hc.ScrollStepPx); err != nil {
			return err
		}
		if err := s.HumanPause(ctx); err != nil {
			return err
		}
	}
	return nil
}

// HumanPause sleeps for a jittered delay drawn from the humanize config.
// Returns early with the context error if canceled mid-pause.
func (s *Session) HumanPause(ctx context.Context) error {
	hc := s.cfg.Browser().Humanize
	if !hc.Enabled {
		return nil
	}
	return s.runActions(ctx, chromedp.Sleep(jitteredDelay(hc, rand.Float64)))
}

// jitteredDelay picks a duration between the configured bounds and applies
// the jitter factor. The rng parameter is injected for deterministic tests.
func jitteredDelay(hc config.HumanizeConfig, rng func() float64) time.Duration {
	minMs, maxMs := hc.MinDelayMs, hc.MaxDelayMs
	if maxMs <= minMs {
		maxMs = minMs + 1
	}

	base := float64(minMs) + rng()*float64(maxMs-minMs)
	jitter := 1.0 + hc.JitterFactor*(rng()*2.0-1.0)
	ms := base * jitter
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}
