package schemas

import "time"

// -- Crawler Schemas --

// CrawlAction is the action an orchestration decision assigns to the next
// round of the crawl.
type CrawlAction string

const (
	// ActionTerminate ends the crawl because a winning page was found or
	// no viable paths remain.
	ActionTerminate CrawlAction = "terminate"
	// ActionExploreNew restarts an agent from a fresh unvisited candidate.
	ActionExploreNew CrawlAction = "explore_new"
	// ActionExploreDeeper continues an agent down its current path.
	ActionExploreDeeper CrawlAction = "explore_deeper"
)

// ExtractedLink is a candidate hyperlink pulled from a fetched page,
// scored by the LLM for how likely it leads toward a records-request
// portal. DepthValue is in [0,1]; higher means more promising.
type ExtractedLink struct {
	URL        string  `json:"url"`
	Text       string  `json:"text"`
	DepthValue float64 `json:"depth_value"`
	Reason     string  `json:"reason,omitempty"`
}

// ValidationResult is the LLM's judgement of whether a fetched page is the
// target portal. Confidence is in [0,1].
type ValidationResult struct {
	IsTarget   bool    `json:"is_target"`
	PageType   string  `json:"page_type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// AgentState is the per-agent view the orchestrator decides over: where the
// agent is, how deep it has gone, and what it last concluded.
type AgentState struct {
	AgentID    int               `json:"agent_id"`
	CurrentURL string            `json:"current_url"`
	Depth      int               `json:"depth"`
	Path       []string          `json:"path"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Links      []ExtractedLink   `json:"links,omitempty"`
	Exhausted  bool              `json:"exhausted"`
}

// CrawlDecision is the orchestrator's ruling after each round: one action
// per agent, and if terminating, which agent won.
type CrawlDecision struct {
	Actions       map[int]CrawlAction `json:"actions"`
	WinnerAgentID int                 `json:"winner_agent_id"` // -1 when no winner.
	Reason        string              `json:"reason,omitempty"`
}

// CrawlAttempt records a single page visit by one agent during a crawl run.
type CrawlAttempt struct {
	RunID      string            `json:"run_id"`
	AgentID    int               `json:"agent_id"`
	Attempt    int               `json:"attempt"`
	URL        string            `json:"url"`
	Depth      int               `json:"depth"`
	Validation *ValidationResult `json:"validation,omitempty"`
	FetchedAt  time.Time         `json:"fetched_at"`
	Err        string            `json:"error,omitempty"`
}

// CrawlResult is the final outcome of a crawl run.
type CrawlResult struct {
	RunID       string            `json:"run_id"`
	SeedURL     string            `json:"seed_url"`
	Found       bool              `json:"found"`
	PortalURL   string            `json:"portal_url,omitempty"`
	Validation  *ValidationResult `json:"validation,omitempty"`
	WinnerAgent int               `json:"winner_agent,omitempty"`
	Attempts    []CrawlAttempt    `json:"attempts"`
	VisitedURLs []string          `json:"visited_urls"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
}
