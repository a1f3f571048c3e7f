package tts

import "time"

type TTSConfig struct {
	BlockSize      int           `json:"block_size"`      // Samples per playback block; the lip-sync amplitude updates once per block.
	NoiseFloor     float64       `json:"noise_floor"`     // RMS below this maps to a fully closed mouth.
	Gain           float64       `json:"gain"`            // RMS multiplier before clamping to [0, 1].
	RequestTimeout time.Duration `json:"request_timeout"` // Per-synthesis deadline.
}

// DefaultConfig returns a TTSConfig with sensible defaults.
func DefaultConfig() TTSConfig {
	return TTSConfig{
		BlockSize:      1024,
		NoiseFloor:     0.002,
		Gain:           4.0,
		RequestTimeout: 30 * time.Second,
	}
}
