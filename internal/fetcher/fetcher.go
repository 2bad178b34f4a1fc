package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/foiahound/foiahound/internal/config"
)

// Fetcher retrieves pages as LLM-friendly markdown through a reader gateway
// (r.jina.ai by default). Requests are rate limited and retried with
// exponential backoff; oversized pages are truncated to a token budget.
type Fetcher struct {
	cfg        config.FetcherConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	counter    *TokenCounter
	logger     *zap.Logger
}

// New builds a Fetcher from configuration.
func New(cfg config.FetcherConfig, logger *zap.Logger) (*Fetcher, error) {
	counter, err := NewTokenCounter(cfg.TokenEncoding, cfg.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("initializing token counter: %w", err)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Fetcher{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(limit, burst),
		counter:    counter,
		logger:     logger.Named("fetcher"),
	}, nil
}

// Fetch retrieves the given URL through the reader gateway and returns its
// markdown rendering, truncated to the token budget when necessary.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	pageURL = RepairURL(pageURL)

	if err := f.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter interrupted: %w", err)
	}

	gatewayURL := strings.TrimRight(f.cfg.GatewayURL, "/") + "/" + pageURL

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialBackoff
	retries := uint64(f.cfg.MaxRetries)

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gatewayURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "text/plain")

		resp, err := f.httpClient.Do(req)
		if err != nil {
			f.logger.Warn("Fetch failed, retrying...", zap.String("url", pageURL), zap.Error(err))
			return fmt.Errorf("failed to execute request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			content = string(body)
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			f.logger.Warn("Gateway returned transient error",
				zap.String("url", pageURL),
				zap.Int("status", resp.StatusCode))
			return fmt.Errorf("gateway error: status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("gateway error: status %d, body: %s", resp.StatusCode, string(body[:min(len(body), 200)])))
		}
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)); err != nil {
		return "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}

	truncated, wasTruncated := f.counter.Truncate(content)
	if wasTruncated {
		f.logger.Info("Page content truncated to token budget",
			zap.String("url", pageURL),
			zap.Int("max_tokens", f.cfg.MaxTokens))
	}
	return truncated, nil
}

// WasTruncated reports whether the given content carries the truncation
// notice appended by the token counter.
func (f *Fetcher) WasTruncated(content string) bool {
	return strings.Contains(content, TruncationNotice)
}

// RepairURL fixes the scheme typos that show up in LLM-extracted links,
// most commonly a missing colon after https.
func RepairURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "https//") {
		return "https://" + strings.TrimPrefix(u, "https//")
	}
	if strings.HasPrefix(u, "http//") {
		return "http://" + strings.TrimPrefix(u, "http//")
	}
	return u
}
