// Package sensevoice is the HTTP client for a SenseVoice recognition
// server. The model emits inline <|tag|> markers for language, emotion
// and paralinguistic events; this client returns the raw tagged
// transcript and leaves tag parsing to the perception stage.
package sensevoice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"companionkit/core"
	"companionkit/utils/audio"

	"github.com/bytedance/sonic"
)

// Config holds the connection settings for the recognition server.
type Config struct {
	BaseURL  string        `json:"base_url"`
	Language string        `json:"language"`
	Timeout  time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:  "http://127.0.0.1:8000",
		Language: "auto",
		Timeout:  30 * time.Second,
	}
}

type Service struct {
	config Config
	client *http.Client
	logger *core.Logger
}

type transcribeResponse struct {
	Result []struct {
		Text string `json:"text"`
	} `json:"result"`
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
		logger: logger.With(map[string]any{"service": "sensevoice"}),
	}
}

func (s *Service) Initialize(ctx context.Context) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("sensevoice base URL is required")
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

// Transcribe sends one utterance as a WAV payload and returns the raw
// tagged transcript. An empty transcript is not an error; silence and
// non-speech noise legitimately recognize to nothing.
func (s *Service) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(samples, sampleRate)

	url := fmt.Sprintf("%s/asr?lang=%s", s.config.BaseURL, s.config.Language)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(wav))
	if err != nil {
		return "", fmt.Errorf("build recognition request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read recognition response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognition server returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed transcribeResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode recognition response: %w", err)
	}
	if len(parsed.Result) == 0 {
		return "", nil
	}

	s.logger.Debug("utterance recognized",
		"latency_ms", time.Since(started).Milliseconds(),
		"samples", len(samples))
	return parsed.Result[0].Text, nil
}
