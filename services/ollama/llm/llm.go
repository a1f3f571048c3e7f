// Package ollama is the HTTP client for a local Ollama server. It runs
// non-streaming chat completions and can load/unload the model so the
// GPU is free while the companion is idle.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"companionkit/core"

	"github.com/bytedance/sonic"
)

// Config holds the connection and sampling settings.
type Config struct {
	BaseURL     string        `json:"base_url"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p"`
	Timeout     time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://127.0.0.1:11434",
		Model:       "qwen2.5:7b",
		Temperature: 0.8,
		TopP:        0.9,
		Timeout:     60 * time.Second,
	}
}

type Service struct {
	config Config
	client *http.Client
	logger *core.Logger
}

type chatRequest struct {
	Model     string             `json:"model"`
	Messages  []core.LLMMessage  `json:"messages"`
	Stream    bool               `json:"stream"`
	Options   map[string]float64 `json:"options,omitempty"`
	KeepAlive *int               `json:"keep_alive,omitempty"`
}

type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func NewService(config Config, logger *core.Logger) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(map[string]any{"service": "ollama", "model": config.Model}),
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("ollama base URL is required")
	}
	if s.config.Model == "" {
		return fmt.Errorf("ollama model name is required")
	}
	return nil
}

func (s *Service) Cleanup() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Service) Reset() error {
	return nil
}

// Complete runs one non-streaming chat completion over the full message
// history and returns the assistant reply.
func (s *Service) Complete(ctx context.Context, messages []core.LLMMessage) (string, error) {
	req := chatRequest{
		Model:    s.config.Model,
		Messages: messages,
		Stream:   false,
		Options: map[string]float64{
			"temperature": s.config.Temperature,
			"top_p":       s.config.TopP,
		},
	}
	resp, err := s.chat(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// Warmup pulls the model into memory so the first real turn does not
// pay the load latency.
func (s *Service) Warmup(ctx context.Context) error {
	_, err := s.chat(ctx, chatRequest{
		Model:    s.config.Model,
		Messages: []core.LLMMessage{{Role: core.LLMMessageRoleUser, Content: "hi"}},
		Stream:   false,
	})
	if err != nil {
		return fmt.Errorf("model warmup: %w", err)
	}
	s.logger.Info("model warmed up")
	return nil
}

// Unload asks the server to evict the model immediately (keep_alive 0).
func (s *Service) Unload(ctx context.Context) error {
	zero := 0
	_, err := s.chat(ctx, chatRequest{
		Model:     s.config.Model,
		Messages:  []core.LLMMessage{},
		Stream:    false,
		KeepAlive: &zero,
	})
	if err != nil {
		return fmt.Errorf("model unload: %w", err)
	}
	s.logger.Info("model unloaded")
	return nil
}

func (s *Service) chat(ctx context.Context, payload chatRequest) (chatResponse, error) {
	var parsed chatResponse

	body, err := sonic.Marshal(payload)
	if err != nil {
		return parsed, fmt.Errorf("encode chat request: %w", err)
	}

	url := s.config.BaseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return parsed, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return parsed, fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return parsed, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}
	if err := sonic.Unmarshal(respBody, &parsed); err != nil {
		return parsed, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != "" {
		return parsed, fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return parsed, nil
}
