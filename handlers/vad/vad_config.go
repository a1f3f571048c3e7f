package vad

import "time"

type VADConfig struct {
	SampleRate      int           `json:"sample_rate"`      // Sample rate the engine expects. Transport audio is resampled to this.
	FrameSize       int           `json:"frame_size"`       // Samples per engine frame.
	MinConfidence   float32       `json:"min_confidence"`   // Probability at or above which a frame counts as speech.
	SilenceDuration time.Duration `json:"silence_duration"` // Trailing silence that ends an utterance.
	MaxUtterance    time.Duration `json:"max_utterance"`    // Hard cap on utterance length; 0 disables it.
}

// DefaultConfig returns a VADConfig with sensible defaults.
func DefaultConfig() VADConfig {
	return VADConfig{
		SampleRate:      16000,
		FrameSize:       512,
		MinConfidence:   0.5,
		SilenceDuration: 800 * time.Millisecond,
		MaxUtterance:    30 * time.Second,
	}
}
