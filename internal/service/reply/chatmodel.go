package reply

import (
	"context"
	"fmt"

	"honeypot/internal/config"
	"honeypot/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const replyMaxTokens = 200

// NewChatModel builds the eino chat model for a hosted provider.
func NewChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig, modelName string) (model.BaseChatModel, error) {
	if modelName == "" {
		modelName = provCfg.Model
	}
	if provCfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s has no api key", provider)
	}

	switch provider {
	case "openai":
		maxTokens := replyMaxTokens
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   provCfg.BaseURL,
			Model:     modelName,
			APIKey:    provCfg.APIKey,
			MaxTokens: &maxTokens,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: replyMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// ChatModelGenerator drives any eino chat model with the persona prompt.
type ChatModelGenerator struct {
	model    model.BaseChatModel
	maxChars int
}

func NewChatModelGenerator(m model.BaseChatModel, maxChars int) *ChatModelGenerator {
	return &ChatModelGenerator{model: m, maxChars: maxChars}
}

func (g *ChatModelGenerator) Next(ctx context.Context, history []models.Message, intel models.Intelligence) (string, error) {
	resp, err := g.model.Generate(ctx, convertMessages(history, intel))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrGeneration)
	}
	return clean(resp.Content, g.maxChars)
}

// convertMessages maps the conversation onto chat roles: the persona's side is the
// assistant and the scammer is the user.
func convertMessages(history []models.Message, intel models.Intelligence) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: SystemPrompt(history, intel),
	})
	for _, msg := range history {
		role := schema.User
		if msg.Persona() {
			role = schema.Assistant
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Text,
		})
	}
	return messages
}
