package crawler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/foiahound/foiahound/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteArtifacts persists a crawl result to disk: the full result as JSON
// plus a human-readable summary. Returns the JSON path.
func WriteArtifacts(result *schemas.CrawlResult, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifacts dir: %w", err)
	}

	base := fmt.Sprintf("crawl_%s", result.RunID)
	jsonPath := filepath.Join(dir, base+".json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling crawl result: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing crawl result: %w", err)
	}

	txtPath := filepath.Join(dir, base+".txt")
	if err := os.WriteFile(txtPath, []byte(summarize(result)), 0o644); err != nil {
		return "", fmt.Errorf("writing crawl summary: %w", err)
	}

	return jsonPath, nil
}

// summarize renders the result as a short plain-text report.
func summarize(result *schemas.CrawlResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Portal Discovery Run %s\n", result.RunID)
	fmt.Fprintf(&sb, "Seed URL:  %s\n", result.SeedURL)
	fmt.Fprintf(&sb, "Started:   %s\n", result.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Finished:  %s\n", result.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Pages:     %d\n\n", len(result.VisitedURLs))

	if result.Found {
		fmt.Fprintf(&sb, "RESULT: portal found\n")
		fmt.Fprintf(&sb, "Portal URL: %s\n", result.PortalURL)
		fmt.Fprintf(&sb, "Winning agent: %d\n", result.WinnerAgent)
		if result.Validation != nil {
			fmt.Fprintf(&sb, "Confidence: %.2f (%s)\n", result.Validation.Confidence, result.Validation.PageType)
			if result.Validation.Reason != "" {
				fmt.Fprintf(&sb, "Reason: %s\n", result.Validation.Reason)
			}
		}
	} else {
		sb.WriteString("RESULT: no portal found\n")
	}

	sb.WriteString("\nAttempts:\n")
	for _, a := range result.Attempts {
		status := "fetched"
		if a.Err != "" {
			status = "error: " + a.Err
		} else if a.Validation != nil {
			status = fmt.Sprintf("confidence %.2f", a.Validation.Confidence)
		}
		fmt.Fprintf(&sb, "  [%02d] agent %d depth %d %s (%s)\n", a.Attempt, a.AgentID, a.Depth, a.URL, status)
	}

	return sb.String()
}
