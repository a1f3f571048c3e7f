// Package energy implements a pure-Go voice activity engine based on
// RMS energy with hysteresis. It needs no model files, which makes it
// the fallback when the silero ONNX runtime is unavailable.
package energy

import (
	"companionkit/utils/audio"
)

// Config tunes the hysteresis. Two thresholds keep the detector from
// flickering at the boundary: speech must exceed SpeechThreshold for
// SpeechFrames consecutive frames to start, and fall below
// SilenceThreshold for SilenceFrames frames to stop.
type Config struct {
	SpeechThreshold  float64 `json:"speech_threshold"`
	SilenceThreshold float64 `json:"silence_threshold"`
	SpeechFrames     int     `json:"speech_frames"`
	SilenceFrames    int     `json:"silence_frames"`
}

// DefaultConfig is tuned for 16 kHz 32 ms frames.
func DefaultConfig() Config {
	return Config{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     2,
		SilenceFrames:    12,
	}
}

type Engine struct {
	config Config

	inSpeech     bool
	speechCount  int
	silenceCount int
}

func New(config Config) *Engine {
	return &Engine{config: config}
}

// Probability returns 1 while the hysteresis considers the stream to be
// inside speech and 0 otherwise. The binary output plays well with the
// segmenter's probability threshold.
func (e *Engine) Probability(frame []float32) (float32, error) {
	level := audio.RMS(frame)

	if e.inSpeech {
		if level < e.config.SilenceThreshold {
			e.silenceCount++
			e.speechCount = 0
			if e.silenceCount >= e.config.SilenceFrames {
				e.inSpeech = false
				e.silenceCount = 0
			}
		} else {
			e.silenceCount = 0
		}
	} else {
		if level >= e.config.SpeechThreshold {
			e.speechCount++
			e.silenceCount = 0
			if e.speechCount >= e.config.SpeechFrames {
				e.inSpeech = true
				e.speechCount = 0
			}
		} else {
			e.speechCount = 0
		}
	}

	if e.inSpeech {
		return 1, nil
	}
	return 0, nil
}

// Reset clears internal state.
func (e *Engine) Reset() {
	e.inSpeech = false
	e.speechCount = 0
	e.silenceCount = 0
}
