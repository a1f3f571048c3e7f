// Package vad defines the frame-level voice activity contract shared by
// the energy and silero engines.
package vad

// FrameSize is the number of mono 16 kHz samples the engines score per
// call (32 ms).
const FrameSize = 512

// Engine scores one frame of mono 16 kHz float32 samples and returns
// the probability that it contains speech. Engines keep internal state
// across frames; Reset clears it between utterances.
type Engine interface {
	Probability(frame []float32) (float32, error)
	Reset()
}
