package schemas

import "time"

// -- Records Request Schemas --

// RequestOption is one candidate records request generated from a user's
// topic. RequestText is empty until the option is rendered into the full
// request letter.
type RequestOption struct {
	Title        string   `json:"title"`
	BulletPoints []string `json:"bullet_points"`
	Context      string   `json:"context"`
	RequestText  string   `json:"request_text,omitempty"`
}

// RequestOptions is the set of candidates the generator produces.
type RequestOptions struct {
	Topic          string          `json:"topic,omitempty"`
	Options        []RequestOption `json:"options"`
	Recommendation string          `json:"recommendation,omitempty"`
}

// ContactInfo is the requester identity filled into submission forms.
type ContactInfo struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// SubmissionResult reports the outcome of submitting a request form.
type SubmissionResult struct {
	Submitted    bool      `json:"submitted"`
	Confirmation string    `json:"confirmation,omitempty"` // Tracking id scraped from the confirmation page.
	URL          string    `json:"url,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// RequestRecord is one row extracted from a portal's request-tracking table.
type RequestRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Department  string `json:"department,omitempty"`
	DateCreated string `json:"date_created,omitempty"`
	RowIndex    int    `json:"row_index"`
}

// ClickInstruction tells the browser layer how to open one request's
// detail view from the tracking table.
type ClickInstruction struct {
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// MessageEntry is one correspondence item on a request detail page.
type MessageEntry struct {
	From string `json:"from"`
	Date string `json:"date,omitempty"`
	Body string `json:"body"`
}

// RequestDetail is the LLM's structured read of a request detail page.
type RequestDetail struct {
	ID          string         `json:"id"`
	Status      string         `json:"status"`
	Summary     string         `json:"summary"`
	Messages    []MessageEntry `json:"messages,omitempty"`
	Documents   []string       `json:"documents,omitempty"`
	NextActions []string       `json:"next_actions,omitempty"`
}

// RequestSummary aggregates the state of several requests into one report.
type RequestSummary struct {
	Total      int             `json:"total"`
	ByStatus   map[string]int  `json:"by_status"`
	Highlights []string        `json:"highlights,omitempty"`
	Details    []RequestDetail `json:"details,omitempty"`
}

// CheckboxSelector identifies one filter checkbox and its desired state.
type CheckboxSelector struct {
	Selector string `json:"selector"`
	Label    string `json:"label"`
	Checked  bool   `json:"checked"`
}

// FilterAnalysis is the LLM's plan for applying status filters to the
// tracking table.
type FilterAnalysis struct {
	Checkboxes []CheckboxSelector `json:"checkboxes"`
	ApplyHint  string             `json:"apply_hint,omitempty"`
}

// ComposerAnalysis is the LLM's read of a message composer on a detail
// page: where to type and how to send.
type ComposerAnalysis struct {
	InputSelector  string `json:"input_selector"`
	SubmitSelector string `json:"submit_selector"`
	Found          bool   `json:"found"`
}
