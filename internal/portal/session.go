// internal/portal/session.go
package portal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/foiahound/foiahound/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ScreenshotMeta is the screenshot metadata written to session artifacts.
// The base64 payload is dropped; the PNG already lives on disk.
type ScreenshotMeta struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	CapturedAt time.Time `json:"captured_at"`
}

// SessionResult is the persisted record of one portal access session.
type SessionResult struct {
	Timestamp   time.Time         `json:"session_timestamp"`
	PortalURL   string            `json:"portal_url"`
	Navigation  *NavigationResult `json:"navigation,omitempty"`
	Login       *LoginResult      `json:"login,omitempty"`
	Screenshots []ScreenshotMeta  `json:"screenshots_metadata"`
}

// NewSessionResult assembles the artifact record from the run's pieces.
func NewSessionResult(portalURL string, nav *NavigationResult, login *LoginResult, shots []schemas.Screenshot) *SessionResult {
	r := &SessionResult{
		Timestamp:  time.Now().UTC(),
		PortalURL:  portalURL,
		Navigation: nav,
		Login:      login,
	}
	for _, s := range shots {
		r.Screenshots = append(r.Screenshots, ScreenshotMeta{
			Name:       s.Name,
			Path:       s.Path,
			URL:        s.URL,
			Title:      s.Title,
			CapturedAt: s.CapturedAt,
		})
	}
	return r
}

// WriteArtifacts persists the session record as JSON plus a human-readable
// summary. Returns the JSON path.
func WriteArtifacts(result *SessionResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	stamp := result.Timestamp.Format("20060102_150405")
	jsonPath := filepath.Join(dir, fmt.Sprintf("portal_session_%s.json", stamp))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal session result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write session result: %w", err)
	}

	txtPath := filepath.Join(dir, fmt.Sprintf("portal_summary_%s.txt", stamp))
	if err := os.WriteFile(txtPath, []byte(summarize(result)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write session summary: %w", err)
	}

	return jsonPath, nil
}

func summarize(r *SessionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== PORTAL SESSION ===\n")
	fmt.Fprintf(&b, "Timestamp:  %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Portal URL: %s\n", r.PortalURL)
	fmt.Fprintf(&b, "Screenshots: %d\n\n", len(r.Screenshots))

	if nav := r.Navigation; nav != nil {
		fmt.Fprintf(&b, "NAVIGATION:\n")
		fmt.Fprintf(&b, "- Success: %t\n", nav.Success)
		fmt.Fprintf(&b, "- Final URL: %s\n", nav.URL)
		fmt.Fprintf(&b, "- Page Title: %s\n", nav.Title)
		if nav.Blocked {
			fmt.Fprintf(&b, "- BLOCKED: yes, redirected to %s\n", nav.URL)
		}
		fmt.Fprintf(&b, "- Page Type: %s\n", nav.Analysis.PageType)
		fmt.Fprintf(&b, "- Login Required: %t\n", nav.Analysis.LoginRequired)
		if len(nav.Analysis.KeyElements) > 0 {
			fmt.Fprintf(&b, "- Key Elements: %s\n", strings.Join(nav.Analysis.KeyElements, "; "))
		}
		if len(nav.Analysis.NextSteps) > 0 {
			fmt.Fprintf(&b, "- Next Steps: %s\n", strings.Join(nav.Analysis.NextSteps, "; "))
		}
		if nav.Err != "" {
			fmt.Fprintf(&b, "- Error: %s\n", nav.Err)
		}
		b.WriteString("\n")
	}

	if login := r.Login; login != nil {
		fmt.Fprintf(&b, "LOGIN:\n")
		fmt.Fprintf(&b, "- Success: %t\n", login.Outcome.Success)
		fmt.Fprintf(&b, "- Attempts: %d\n", login.Attempts)
		if login.Outcome.Indicator != "" {
			fmt.Fprintf(&b, "- Indicator: %s\n", login.Outcome.Indicator)
		}
		if login.Outcome.ErrorText != "" {
			fmt.Fprintf(&b, "- Error: %s\n", login.Outcome.ErrorText)
		}
		fmt.Fprintf(&b, "- Final URL: %s\n", login.FinalURL)
	}

	return b.String()
}
