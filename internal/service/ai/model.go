package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"sociofi/internal/config"
)

const defaultMaxTokens = 3000

// NewChatModel builds the chat model named by cfg.Provider. Credentials and
// base URLs come from the matching providers entry.
func NewChatModel(ctx context.Context, cfg config.AssistantConfig, providers map[string]config.ProviderConfig) (model.BaseChatModel, error) {
	provCfg, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", cfg.Provider)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = provCfg.Model
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch cfg.Provider {
	case "openai":
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   provCfg.BaseURL,
			Model:     modelName,
			APIKey:    provCfg.APIKey,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai chat model: %w", err)
		}
		return m, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  provCfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		m, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:    client,
			Model:     modelName,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini chat model: %w", err)
		}
		return m, nil
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		m, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude chat model: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}
