package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/notemind/internal/apperr"
	"github.com/starford/notemind/internal/models"
)

const chatPrompt = `You answer questions about the user's note below. Stay grounded in its content.

NOTE:
%s`

// Chat answers prompt in the context of a note and the prior conversation.
func (c *Client) Chat(ctx context.Context, noteContent string, history []models.ChatMessage, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", apperr.ErrEmptyInput
	}
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: "system", Content: fmt.Sprintf(chatPrompt, noteContent)})
	for _, m := range history {
		role := "user"
		if m.Role == "model" || m.Role == "assistant" {
			role = "assistant"
		}
		msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	reply, err := c.complete(ctx, chatRequest{Model: c.cfg.ChatModel, Messages: msgs, Temperature: 0.7})
	if err != nil {
		return "", fmt.Errorf("ai: chat: %w", err)
	}
	return reply, nil
}
