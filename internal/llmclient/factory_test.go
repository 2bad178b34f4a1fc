package llmclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

func routerConfigForTest() config.LLMRouterConfig {
	return config.LLMRouterConfig{
		DefaultFastModel:     "gemini-2.5-flash",
		DefaultPowerfulModel: "gemini-2.5-pro",
		Models: map[string]config.LLMModelConfig{
			"gemini-2.5-flash": {
				Provider:   config.ProviderGemini,
				APIKey:     "key-fast",
				APITimeout: 30 * time.Second,
			},
			"gemini-2.5-pro": {
				Provider:   config.ProviderGemini,
				APIKey:     "key-powerful",
				APITimeout: 60 * time.Second,
			},
		},
	}
}

func TestNewRouterFromConfig_Success(t *testing.T) {
	logger := setupTestLogger(t)

	router, err := NewRouterFromConfig(routerConfigForTest(), logger)
	require.NoError(t, err)
	require.NotNil(t, router)

	fast, ok := router.clients[schemas.TierFast].(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "key-fast", fast.apiKey)
	assert.Contains(t, fast.endpoint, "gemini-2.5-flash")

	powerful, ok := router.clients[schemas.TierPowerful].(*GeminiClient)
	require.True(t, ok)
	assert.Equal(t, "key-powerful", powerful.apiKey)
	assert.Contains(t, powerful.endpoint, "gemini-2.5-pro")
}

func TestNewRouterFromConfig_APIKeyFromEnv(t *testing.T) {
	logger := setupTestLogger(t)
	t.Setenv("FOIAHOUND_GEMINI_API_KEY", "env-key")

	// No model entries at all; both tiers fall back to bare configs with
	// the ambient key.
	cfg := config.LLMRouterConfig{
		DefaultFastModel:     "gemini-2.5-flash",
		DefaultPowerfulModel: "gemini-2.5-pro",
	}

	router, err := NewRouterFromConfig(cfg, logger)
	require.NoError(t, err)

	fast := router.clients[schemas.TierFast].(*GeminiClient)
	assert.Equal(t, "env-key", fast.apiKey)
}

func TestNewRouterFromConfig_MissingModelName(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := routerConfigForTest()
	cfg.DefaultFastModel = ""

	router, err := NewRouterFromConfig(cfg, logger)
	assert.Error(t, err)
	assert.Nil(t, router)
	assert.Contains(t, err.Error(), "model name must not be empty")
}

func TestNewRouterFromConfig_UnsupportedProvider(t *testing.T) {
	logger := setupTestLogger(t)
	cfg := routerConfigForTest()
	entry := cfg.Models["gemini-2.5-pro"]
	entry.Provider = "llama-farm"
	cfg.Models["gemini-2.5-pro"] = entry

	router, err := NewRouterFromConfig(cfg, logger)
	assert.Error(t, err)
	assert.Nil(t, router)
	assert.Contains(t, err.Error(), "unknown or unsupported LLM provider")
}
