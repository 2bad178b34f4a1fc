// internal/request/selectors.go
package request

// Link texts tried before falling back to CSS selectors when opening the
// request form. NextRequest portals label the button "Make Request" on the
// landing page and "Make request" on the form itself.
var makeRequestTexts = []string{
	"Make Request",
	"Make a Request",
	"Submit a Request",
}

var makeRequestSelectors = []string{
	`a[href*='request']`,
	`button[data-test-id='make-request']`,
	`.make-request-button`,
}

// Description fields carry portal-specific placeholder text. These are tried
// first so a busy form never routes the request body into an address box.
var descriptionPlaceholderSelectors = []string{
	`textarea[placeholder*='Enter your request - please include all information']`,
	`textarea[placeholder*='Enter your request']`,
	`[contenteditable][placeholder*='Enter your request']`,
	`textarea[placeholder*='please include all information']`,
}

var submitTexts = []string{
	"Make request",
	"Submit",
}

var submitFormSelectors = []string{
	`button[type='submit']`,
	`input[type='submit']`,
}

var emailFieldSelectors = []string{
	`input[type='email']`,
	`input[name*='email']`,
	`input[id*='email']`,
}

var nameFieldSelectors = []string{
	`input[name*='name']`,
	`input[id*='name']`,
	`input[placeholder*='Name']`,
}

var phoneFieldSelectors = []string{
	`input[name*='phone']`,
	`input[id*='phone']`,
	`input[type='tel']`,
}

var addressFieldSelectors = []string{
	`textarea[name*='address']`,
	`textarea[id*='address']`,
	`textarea[placeholder*='street']`,
}
