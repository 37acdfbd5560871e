package services

import (
	"context"
	"fmt"

	"github.com/entrans/backend/src/logger"
	openai "github.com/sashabaranov/go-openai"
)

type assistantServiceImpl struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewAssistantService creates the chat-completion proxy. With an empty
// API key the returned service reports ErrAssistantUnavailable on every
// call instead of failing at startup.
func NewAssistantService(apiKey, model string, temperature float64) AssistantService {
	var client *openai.Client
	if apiKey != "" {
		client = openai.NewClient(apiKey)
	}
	return &assistantServiceImpl{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}
}

func (s *assistantServiceImpl) Complete(ctx context.Context, systemPrompt string, messages []AssistantMessage) (string, error) {
	if s.client == nil {
		return "", ErrAssistantUnavailable
	}

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    chatMessages,
		Temperature: s.temperature,
	})
	if err != nil {
		logger.L.Error("Chat completion request failed", "model", s.model, "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
