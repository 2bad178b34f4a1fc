package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiahound/foiahound/api/schemas"
)

// TestCrawlActionConstants verifies the wire values of the crawl actions,
// which must match what the orchestration prompt instructs the model to emit.
func TestCrawlActionConstants(t *testing.T) {
	assert.Equal(t, schemas.CrawlAction("terminate"), schemas.ActionTerminate)
	assert.Equal(t, schemas.CrawlAction("explore_new"), schemas.ActionExploreNew)
	assert.Equal(t, schemas.CrawlAction("explore_deeper"), schemas.ActionExploreDeeper)
}

// TestCrawlDecisionUnmarshal ensures a decision in the shape the model is
// prompted to produce decodes cleanly, including integer agent keys.
func TestCrawlDecisionUnmarshal(t *testing.T) {
	input := `{
		"actions": {"0": "terminate", "1": "explore_new", "2": "explore_deeper"},
		"winner_agent_id": 0,
		"reason": "agent 0 reached a submission portal"
	}`

	var decision schemas.CrawlDecision
	require.NoError(t, json.Unmarshal([]byte(input), &decision))

	assert.Equal(t, schemas.ActionTerminate, decision.Actions[0])
	assert.Equal(t, schemas.ActionExploreNew, decision.Actions[1])
	assert.Equal(t, schemas.ActionExploreDeeper, decision.Actions[2])
	assert.Equal(t, 0, decision.WinnerAgentID)
}

// TestPageAnalysisUnmarshal mirrors the JSON contract the vision prompt
// specifies for screenshot analysis.
func TestPageAnalysisUnmarshal(t *testing.T) {
	input := `{
		"page_type": "login_form",
		"login_required": true,
		"login_elements_found": {
			"username_field": true,
			"password_field": true,
			"submit_button": true,
			"sign_in_link": false
		},
		"key_elements": ["email input", "password input", "Sign In button"],
		"next_steps": ["fill credentials", "click Sign In"],
		"confidence": 0.92
	}`

	var analysis schemas.PageAnalysis
	require.NoError(t, json.Unmarshal([]byte(input), &analysis))

	assert.Equal(t, schemas.PageTypeLoginForm, analysis.PageType)
	assert.True(t, analysis.LoginRequired)
	assert.True(t, analysis.LoginElements.UsernameField)
	assert.False(t, analysis.LoginElements.SignInLink)
	assert.InDelta(t, 0.92, analysis.Confidence, 1e-9)
}

// TestExtractedLinkDefaults checks zero values that the crawler relies on
// when the model omits optional fields.
func TestExtractedLinkDefaults(t *testing.T) {
	var link schemas.ExtractedLink
	require.NoError(t, json.Unmarshal([]byte(`{"url":"https://example.gov/records","text":"Public Records"}`), &link))

	assert.Equal(t, "https://example.gov/records", link.URL)
	assert.Zero(t, link.DepthValue)
	assert.Empty(t, link.Reason)
}
