// internal/portal/agent_test.go
package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

// fakeBrowser scripts the browser surface the agent drives.
type fakeBrowser struct {
	currentURL string
	title      string
	pageText   string

	// URL to report after the submit button is clicked.
	postLoginURL string

	failFill   bool
	failSubmit bool

	filled      map[string]string
	clickedText []string
	savedPath   string
	loaded      int
	warmedUp    bool
}

func newFakeBrowser(url string) *fakeBrowser {
	return &fakeBrowser{
		currentURL: url,
		title:      "Public Records",
		pageText:   "Open Public Records. Make Request. Sign in.",
		filled:     map[string]string{},
	}
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	if f.postLoginURL == "" && f.currentURL == "" {
		f.currentURL = url
	}
	return nil
}
func (f *fakeBrowser) CurrentURL(context.Context) (string, error) { return f.currentURL, nil }
func (f *fakeBrowser) Title(context.Context) (string, error)      { return f.title, nil }
func (f *fakeBrowser) VisibleText(context.Context) (string, error) {
	return f.pageText, nil
}
func (f *fakeBrowser) Screenshot(_ context.Context, name string) (schemas.Screenshot, error) {
	return schemas.Screenshot{
		Name:       name,
		URL:        f.currentURL,
		Title:      f.title,
		Data:       "ZmFrZQ==",
		CapturedAt: time.Now().UTC(),
	}, nil
}
func (f *fakeBrowser) Click(_ context.Context, selector string) error { return nil }
func (f *fakeBrowser) ClickAny(_ context.Context, selectors []string) (string, error) {
	if f.failSubmit {
		return "", fmt.Errorf("no clickable element among %d candidate selectors", len(selectors))
	}
	// Submitting moves the page to its post-login state.
	if f.postLoginURL != "" && selectors[0] == submitSelectors[0] {
		f.currentURL = f.postLoginURL
		f.title = "Dashboard"
	}
	return selectors[0], nil
}
func (f *fakeBrowser) ClickText(_ context.Context, text string) error {
	f.clickedText = append(f.clickedText, text)
	return nil
}
func (f *fakeBrowser) FillAny(_ context.Context, selectors []string, value string) (string, error) {
	if f.failFill {
		return "", fmt.Errorf("no fillable element among %d candidate selectors", len(selectors))
	}
	f.filled[selectors[0]] = value
	return selectors[0], nil
}
func (f *fakeBrowser) Exists(context.Context, string) (bool, error) { return true, nil }
func (f *fakeBrowser) Warmup(context.Context) error {
	f.warmedUp = true
	return nil
}
func (f *fakeBrowser) HumanPause(context.Context) error { return nil }
func (f *fakeBrowser) SaveCookies(_ context.Context, path string) error {
	f.savedPath = path
	return nil
}
func (f *fakeBrowser) LoadCookies(_ context.Context, path string) (int, error) {
	return f.loaded, nil
}

// scriptedVisionLLM routes page analyses by the screenshot label embedded in
// the system prompt.
type scriptedVisionLLM struct {
	analyses map[string]schemas.PageAnalysis // keyed by label substring
	calls    int
}

func (s *scriptedVisionLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.calls++
	if len(req.Images) == 0 {
		return "", fmt.Errorf("expected a screenshot image part")
	}
	for label, analysis := range s.analyses {
		if strings.Contains(req.SystemPrompt, label) {
			data, err := json.Marshal(analysis)
			return string(data), err
		}
	}
	return "", fmt.Errorf("no scripted analysis matches prompt")
}

func portalConfigForTest(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.PortalC.URL = "https://agency.nextrequest.com/"
	cfg.PortalC.CookieFile = ""
	cfg.PortalC.LoginAttempts = 2
	cfg.PortalC.LoginSettle = 5 * time.Millisecond
	cfg.ArtifactsC.Dir = t.TempDir()
	cfg.ArtifactsC.ScreenshotDir = ""
	return cfg
}

func homeAnalysis() schemas.PageAnalysis {
	return schemas.PageAnalysis{
		PageType:      schemas.PageTypePortalHome,
		LoginRequired: true,
		LoginElements: schemas.LoginElements{SignInLink: true},
		KeyElements:   []string{"Make Request button", "Sign in link"},
		NextSteps:     []string{"Click Sign in"},
		Confidence:    0.9,
	}
}

func TestOpen_AnalyzesLandingPage(t *testing.T) {
	cfg := portalConfigForTest(t)
	b := newFakeBrowser(cfg.PortalC.URL)
	llm := &scriptedVisionLLM{analyses: map[string]schemas.PageAnalysis{
		"initial_portal_view": homeAnalysis(),
	}}

	agent := New(cfg, b, llm, zaptest.NewLogger(t))
	result, err := agent.Open(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Blocked)
	assert.True(t, b.warmedUp)
	assert.Equal(t, schemas.PageTypePortalHome, result.Analysis.PageType)
	assert.Len(t, agent.Screenshots(), 1)
}

func TestOpen_DetectsBlockRedirect(t *testing.T) {
	cfg := portalConfigForTest(t)
	b := newFakeBrowser("https://www.civicplus.com/block.php?ref=agency")
	llm := &scriptedVisionLLM{analyses: map[string]schemas.PageAnalysis{
		"initial_portal_view": {PageType: schemas.PageTypeOther, Confidence: 0.5},
	}}

	agent := New(cfg, b, llm, zaptest.NewLogger(t))
	result, err := agent.Open(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Blocked)
	assert.Equal(t, schemas.PageTypeBlocked, result.Analysis.PageType)
	assert.Contains(t, result.Err, "access blocked")
}

func TestLogin_SucceedsAndPersistsCookies(t *testing.T) {
	cfg := portalConfigForTest(t)
	cfg.PortalC.CookieFile = filepath.Join(t.TempDir(), "cookies.json")

	b := newFakeBrowser(cfg.PortalC.URL)
	b.postLoginURL = "https://agency.nextrequest.com/requests"
	llm := &scriptedVisionLLM{analyses: map[string]schemas.PageAnalysis{
		"after_sign_in_click": {
			PageType:      schemas.PageTypeLoginForm,
			LoginRequired: true,
			LoginElements: schemas.LoginElements{UsernameField: true, PasswordField: true, SubmitButton: true},
			Confidence:    0.95,
		},
		"after_login_attempt": {
			PageType:    schemas.PageTypeDashboard,
			KeyElements: []string{"Make Request button", "Your requests"},
			Confidence:  0.9,
		},
	}}

	agent := New(cfg, b, llm, zaptest.NewLogger(t))
	result, err := agent.Login(context.Background(), schemas.Credentials{
		Email:    "requester@example.org",
		Password: "hunter2",
	})
	require.NoError(t, err)

	assert.True(t, result.Outcome.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "dashboard page type", result.Outcome.Indicator)
	assert.Equal(t, "requester@example.org", b.filled[usernameSelectors[0]])
	assert.Equal(t, "hunter2", b.filled[passwordSelectors[0]])
	assert.Equal(t, cfg.PortalC.CookieFile, b.savedPath)
	assert.Equal(t, "https://agency.nextrequest.com/requests", result.FinalURL)
}

func TestLogin_MissingFormFields(t *testing.T) {
	cfg := portalConfigForTest(t)
	b := newFakeBrowser(cfg.PortalC.URL)
	b.failFill = true
	llm := &scriptedVisionLLM{analyses: map[string]schemas.PageAnalysis{
		"after_sign_in_click": {PageType: schemas.PageTypeOther, Confidence: 0.4},
	}}

	agent := New(cfg, b, llm, zaptest.NewLogger(t))
	_, err := agent.Login(context.Background(), schemas.Credentials{
		Email:    "requester@example.org",
		Password: "hunter2",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find a username field")
}

func TestLogin_RequiresCredentials(t *testing.T) {
	cfg := portalConfigForTest(t)
	agent := New(cfg, newFakeBrowser(cfg.PortalC.URL), &scriptedVisionLLM{}, zaptest.NewLogger(t))

	_, err := agent.Login(context.Background(), schemas.Credentials{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOIAHOUND_PORTAL_EMAIL")
}

func TestEvaluateLoginSuccess(t *testing.T) {
	shot := schemas.Screenshot{Title: "Records Portal", URL: "https://agency.nextrequest.com/"}

	t.Run("ErrorIndicatorVetoes", func(t *testing.T) {
		analysis := schemas.PageAnalysis{
			PageType:    schemas.PageTypeDashboard,
			KeyElements: []string{"Make Request button", "Invalid email or password"},
			Confidence:  0.9,
		}
		outcome := EvaluateLoginSuccess(analysis, shot)
		assert.False(t, outcome.Success)
		assert.Contains(t, outcome.ErrorText, "Invalid")
	})

	t.Run("DashboardWins", func(t *testing.T) {
		analysis := schemas.PageAnalysis{PageType: schemas.PageTypeDashboard, LoginRequired: true, Confidence: 0.8}
		outcome := EvaluateLoginSuccess(analysis, shot)
		assert.True(t, outcome.Success)
		assert.Equal(t, "dashboard page type", outcome.Indicator)
	})

	t.Run("MakeRequestElementWins", func(t *testing.T) {
		analysis := schemas.PageAnalysis{
			PageType:      schemas.PageTypeOther,
			LoginRequired: true,
			KeyElements:   []string{"Make Request button"},
			Confidence:    0.7,
		}
		outcome := EvaluateLoginSuccess(analysis, shot)
		assert.True(t, outcome.Success)
	})

	t.Run("NothingAuthenticated", func(t *testing.T) {
		analysis := schemas.PageAnalysis{
			PageType:      schemas.PageTypeLoginForm,
			LoginRequired: true,
			Confidence:    0.85,
		}
		outcome := EvaluateLoginSuccess(analysis, shot)
		assert.False(t, outcome.Success)
	})
}

func TestSessionFresh(t *testing.T) {
	signedToken := func(exp time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "requester",
			"exp": exp.Unix(),
		})
		s, err := token.SignedString([]byte("test-key"))
		require.NoError(t, err)
		return s
	}

	writeCookies := func(t *testing.T, cookies []cookieRecord) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "cookies.json")
		data, err := json.Marshal(cookies)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o600))
		return path
	}

	now := time.Now()

	t.Run("MissingFile", func(t *testing.T) {
		fresh, err := SessionFresh(filepath.Join(t.TempDir(), "nope.json"), now)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("ValidSessionToken", func(t *testing.T) {
		path := writeCookies(t, []cookieRecord{
			{Name: "_session", Value: signedToken(now.Add(2 * time.Hour))},
		})
		fresh, err := SessionFresh(path, now)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("ExpiredSessionToken", func(t *testing.T) {
		path := writeCookies(t, []cookieRecord{
			{Name: "_session", Value: signedToken(now.Add(-time.Hour))},
		})
		fresh, err := SessionFresh(path, now)
		require.NoError(t, err)
		assert.False(t, fresh)
	})

	t.Run("NonJWTCookieExpiryFallback", func(t *testing.T) {
		path := writeCookies(t, []cookieRecord{
			{Name: "prefs", Value: "abc", Expires: float64(now.Add(time.Hour).Unix())},
		})
		fresh, err := SessionFresh(path, now)
		require.NoError(t, err)
		assert.True(t, fresh)
	})

	t.Run("EmptyFileIsStale", func(t *testing.T) {
		path := writeCookies(t, []cookieRecord{})
		fresh, err := SessionFresh(path, now)
		require.NoError(t, err)
		assert.False(t, fresh)
	})
}
