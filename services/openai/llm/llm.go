// Package openai backs the cognition stage with any OpenAI-compatible
// chat endpoint. It is the hosted alternative to the local Ollama
// service; both satisfy the same completion contract.
package openai

import (
	"context"
	"fmt"

	"companionkit/core"

	goopenai "github.com/sashabaranov/go-openai"
)

// Config holds the API settings. BaseURL may point at any
// OpenAI-compatible server.
type Config struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
}

type Service struct {
	config Config
	client *goopenai.Client
	logger *core.Logger
}

func NewService(config Config, logger *core.Logger) *Service {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		config: config,
		logger: logger.With(map[string]any{"service": "openai", "model": config.Model}),
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	if s.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}
	clientConfig := goopenai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	s.client = goopenai.NewClientWithConfig(clientConfig)
	return nil
}

func (s *Service) Cleanup() error {
	s.client = nil
	return nil
}

func (s *Service) Reset() error {
	return nil
}

// Complete runs one non-streaming chat completion over the full message
// history and returns the assistant reply.
func (s *Service) Complete(ctx context.Context, messages []core.LLMMessage) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("openai service not initialized")
	}

	converted := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, goopenai.ChatCompletionMessage{
			Role:    convertRole(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := s.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       s.config.Model,
		Messages:    converted,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Warmup is a no-op for hosted endpoints; there is no model to load.
func (s *Service) Warmup(ctx context.Context) error {
	return nil
}

// Unload is a no-op for hosted endpoints.
func (s *Service) Unload(ctx context.Context) error {
	return nil
}

func convertRole(role core.LLMMessageRole) string {
	switch role {
	case core.LLMMessageRoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	case core.LLMMessageRoleSystem:
		return goopenai.ChatMessageRoleSystem
	default:
		return goopenai.ChatMessageRoleUser
	}
}
