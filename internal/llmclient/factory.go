package llmclient

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
)

// NewRouterFromConfig builds an LLMRouter with one client per tier from the
// routing configuration. Model entries come from cfg.Models, keyed by model
// name; a model with no entry gets a bare config with just its name and the
// ambient API key.
func NewRouterFromConfig(cfg config.LLMRouterConfig, logger *zap.Logger) (*LLMRouter, error) {
	fastClient, err := newClientForModel(cfg, cfg.DefaultFastModel, logger)
	if err != nil {
		return nil, fmt.Errorf("building fast tier client: %w", err)
	}

	powerfulClient, err := newClientForModel(cfg, cfg.DefaultPowerfulModel, logger)
	if err != nil {
		return nil, fmt.Errorf("building powerful tier client: %w", err)
	}

	return NewLLMRouter(logger, fastClient, powerfulClient)
}

func newClientForModel(cfg config.LLMRouterConfig, model string, logger *zap.Logger) (schemas.LLMClient, error) {
	if model == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}

	modelCfg, ok := cfg.Models[model]
	if !ok {
		modelCfg = config.LLMModelConfig{Provider: config.ProviderGemini, Model: model}
	}
	if modelCfg.Model == "" {
		modelCfg.Model = model
	}
	if modelCfg.APIKey == "" {
		modelCfg.APIKey = apiKeyFromEnv()
	}

	switch modelCfg.Provider {
	case config.ProviderGemini, "":
		return NewGeminiClient(modelCfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", modelCfg.Provider, config.ProviderGemini)
	}
}

func apiKeyFromEnv() string {
	if key := os.Getenv("FOIAHOUND_GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}
