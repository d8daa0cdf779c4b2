package reply

import (
	"context"
	"fmt"

	"honeypot/internal/models"

	"github.com/ollama/ollama/api"
)

// OllamaGenerator uses a locally served model.
type OllamaGenerator struct {
	client   *api.Client
	model    string
	maxChars int
}

func NewOllamaGenerator(client *api.Client, model string, maxChars int) *OllamaGenerator {
	return &OllamaGenerator{client: client, model: model, maxChars: maxChars}
}

func (g *OllamaGenerator) Next(ctx context.Context, history []models.Message, intel models.Intelligence) (string, error) {
	msgs := convertMessages(history, intel)
	req := &api.ChatRequest{
		Model:    g.model,
		Messages: make([]api.Message, 0, len(msgs)),
		Stream:   new(bool),
		Options:  map[string]any{"temperature": 0.7, "num_predict": replyMaxTokens},
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, api.Message{Role: string(m.Role), Content: m.Content})
	}

	var content string
	err := g.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat: %v", ErrGeneration, err)
	}
	return clean(content, g.maxChars)
}
