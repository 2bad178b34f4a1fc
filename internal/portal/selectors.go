// internal/portal/selectors.go
package portal

// Selector chains observed across NextRequest deployments. Markup varies
// between agencies, so every lookup walks a chain of known variants before
// giving up.

var signInTexts = []string{
	"Sign in",
	"Sign In",
	"Login",
	"Log in",
}

var signInSelectors = []string{
	`a[href*='sign']`,
	`a[href*='login']`,
	`button[data-test-id='sign-in']`,
	`.sign-in-button`,
	`.login-button`,
}

var usernameSelectors = []string{
	`input[type="email"]`,
	`input[name="email"]`,
	`input[name="username"]`,
	`input[placeholder*="email" i]`,
	`input[placeholder*="username" i]`,
	`input[id*="email"]`,
	`input[id*="username"]`,
}

var passwordSelectors = []string{
	`input[type="password"]`,
	`input[name="password"]`,
	`input[id*="password"]`,
}

var submitSelectors = []string{
	`button[type="submit"]`,
	`input[type="submit"]`,
	`[data-test-id="login-submit"]`,
	`.login-submit`,
	`.submit-button`,
}
