package reply

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"honeypot/internal/config"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// New selects the generator for the configured provider. Without a usable provider
// the scripted persona is used.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Generator, error) {
	provider := cfg.Reply.Provider
	provCfg := cfg.Providers[provider]
	modelName := cfg.Reply.Model
	if modelName == "" {
		modelName = provCfg.Model
	}

	switch provider {
	case "", "canned":
		return Canned{}, nil
	case "ollama":
		client, err := ollamaClient(provCfg)
		if err != nil {
			return nil, err
		}
		return NewOllamaGenerator(client, modelName, cfg.Reply.MaxChars), nil
	case "openai", "gemini", "claude":
		if provCfg.APIKey == "" {
			logger.Warn("llm provider has no api key, using scripted replies", zap.String("provider", provider))
			return Canned{}, nil
		}
		m, err := NewChatModel(ctx, provider, provCfg, modelName)
		if err != nil {
			return nil, fmt.Errorf("init %s chat model: %w", provider, err)
		}
		return NewChatModelGenerator(m, cfg.Reply.MaxChars), nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

func ollamaClient(provCfg config.ProviderConfig) (*api.Client, error) {
	if provCfg.BaseURL == "" {
		return api.ClientFromEnvironment()
	}
	base, err := url.Parse(provCfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama base url: %w", err)
	}
	return api.NewClient(base, http.DefaultClient), nil
}
