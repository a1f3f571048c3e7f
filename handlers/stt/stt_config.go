package stt

import "time"

type STTConfig struct {
	RequestTimeout time.Duration `json:"request_timeout"` // Per-utterance recognition deadline.
}

// DefaultConfig returns an STTConfig with sensible defaults.
func DefaultConfig() STTConfig {
	return STTConfig{
		RequestTimeout: 30 * time.Second,
	}
}
