package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// ModelTier selects a large language model based on a preference for speed
// versus capability. Link triage runs on the fast tier; page validation and
// orchestration decisions run on the powerful tier.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, cheaper model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, slower model.
)

// GenerationOptions controls the text generation process of the LLM.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
}

// ImagePart carries an inline image (base64 payload plus MIME type) so that
// page screenshots can be attached to a generation request.
type ImagePart struct {
	MIMEType string `json:"mime_type"` // e.g. "image/png".
	Data     string `json:"data"`      // Base64-encoded image bytes.
}

// GenerationRequest encapsulates a complete request to the LLM: the system
// and user prompts, optional inline images, the desired model tier, and
// generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input.
	Images       []ImagePart       `json:"images,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large
// Language Model, abstracting the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// -- Content Fetching --

// ContentFetcher retrieves a page as LLM-friendly text (markdown) through a
// rendering gateway. Implementations own retry and rate-limiting policy.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// -- Persistence --

// Store is the persistence boundary for crawl runs and portal sessions.
// File artifacts are always written; a Store is optional and only wired
// when a database URL is configured.
type Store interface {
	// PersistCrawlResult saves a finished crawl run and all of its attempts.
	PersistCrawlResult(ctx context.Context, result *CrawlResult) error
	// PersistRequestSnapshot saves the request records extracted from a
	// portal during a status run.
	PersistRequestSnapshot(ctx context.Context, sessionID string, records []RequestRecord) error
	// GetCrawlAttempts retrieves all attempts recorded for a crawl run.
	GetCrawlAttempts(ctx context.Context, runID string) ([]CrawlAttempt, error)
}
