package schemas

import "time"

// -- Portal Interaction Schemas --

// PageType classifies what a portal screenshot shows.
type PageType string

const (
	PageTypePortalHome PageType = "portal_home"
	PageTypeLoginForm  PageType = "login_form"
	PageTypeDashboard  PageType = "dashboard"
	PageTypeBlocked    PageType = "blocked"
	PageTypeError      PageType = "error"
	PageTypeOther      PageType = "other"
)

// LoginElements reports which login-related controls the vision analysis
// located on the page.
type LoginElements struct {
	UsernameField bool `json:"username_field"`
	PasswordField bool `json:"password_field"`
	SubmitButton  bool `json:"submit_button"`
	SignInLink    bool `json:"sign_in_link"`
}

// PageAnalysis is the structured result of a vision-model pass over a
// portal screenshot.
type PageAnalysis struct {
	PageType      PageType      `json:"page_type"`
	LoginRequired bool          `json:"login_required"`
	LoginElements LoginElements `json:"login_elements_found"`
	KeyElements   []string      `json:"key_elements"`
	NextSteps     []string      `json:"next_steps"`
	Confidence    float64       `json:"confidence"`
}

// Credentials holds a portal account login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Screenshot is a captured page image plus capture metadata. Data is the
// base64-encoded PNG so it can be handed directly to the vision model.
type Screenshot struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Data       string    `json:"data,omitempty"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	CapturedAt time.Time `json:"captured_at"`
}

// LoginOutcome is the evaluated result of a login attempt.
type LoginOutcome struct {
	Success    bool    `json:"success"`
	Indicator  string  `json:"indicator,omitempty"` // What on the page decided the outcome.
	ErrorText  string  `json:"error_text,omitempty"`
	Confidence float64 `json:"confidence"`
}
