// Package gptsovits is the HTTP client for a GPT-SoVITS synthesis
// server. Synthesis is voice-cloning: every request carries a reference
// audio path plus its transcript, and the server renders the target
// text in that voice.
package gptsovits

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"companionkit/core"
	"companionkit/utils/audio"
)

// Voice is one cloned voice: a reference clip on the synthesis server's
// filesystem and the transcript of what it says.
type Voice struct {
	RefAudioPath string `json:"ref_audio_path"`
	PromptText   string `json:"prompt_text"`
	PromptLang   string `json:"prompt_lang"`
}

// Config holds the connection settings for the synthesis server and
// the voice every request is rendered in.
type Config struct {
	BaseURL  string `json:"base_url"`
	TextLang string `json:"text_lang"`
	Voice    Voice  `json:"voice"`
	// FallbackRate is assumed when the server returns raw PCM instead
	// of a WAV container.
	FallbackRate int           `json:"fallback_rate"`
	Timeout      time.Duration `json:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://127.0.0.1:9880",
		TextLang:     "zh",
		FallbackRate: 32000,
		Timeout:      30 * time.Second,
	}
}

type Service struct {
	config Config
	client *http.Client
	logger *core.Logger
}

func NewService(config Config, logger *core.Logger) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.FallbackRate <= 0 {
		config.FallbackRate = DefaultConfig().FallbackRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Service{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With(map[string]any{"service": "gptsovits"}),
	}
}

// Initialize probes the synthesis server. An unreachable server is a
// warning, not a failure: the companion starts mute and each turn
// reports its own synthesis error until the server comes up.
func (s *Service) Initialize(ctx context.Context) error {
	if s.config.BaseURL == "" {
		return fmt.Errorf("gptsovits base URL is required")
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.config.BaseURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("synthesis server unreachable, voice disabled until it responds", "error", err)
		return nil
	}
	resp.Body.Close()
	return nil
}

func (s *Service) Cleanup() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Service) Reset() error {
	return nil
}

// Synthesize renders text in the configured voice and returns a
// decoded playback clip.
func (s *Service) Synthesize(ctx context.Context, text string) (core.AudioClip, error) {
	return s.SynthesizeVoice(ctx, text, s.config.Voice)
}

// SynthesizeVoice renders text in an explicit voice, bypassing the
// configured default.
func (s *Service) SynthesizeVoice(ctx context.Context, text string, voice Voice) (core.AudioClip, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("text_lang", s.config.TextLang)
	params.Set("ref_audio_path", voice.RefAudioPath)
	params.Set("prompt_text", voice.PromptText)
	params.Set("prompt_lang", voice.PromptLang)

	reqURL := fmt.Sprintf("%s/tts?%s", s.config.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("build synthesis request: %w", err)
	}

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("read synthesis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.AudioClip{}, fmt.Errorf("synthesis server returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	clip, err := audio.DecodeAudio(body, s.config.FallbackRate)
	if err != nil {
		return core.AudioClip{}, fmt.Errorf("decode synthesized audio: %w", err)
	}

	s.logger.Debug("text synthesized",
		"latency_ms", time.Since(started).Milliseconds(),
		"clip_seconds", clip.Duration().Seconds())
	return clip, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
