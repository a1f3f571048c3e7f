package energy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toneFrame(amplitude float32) []float32 {
	frame := make([]float32, 512)
	for i := range frame {
		frame[i] = amplitude * float32(math.Sin(2*math.Pi*float64(i)/32.0))
	}
	return frame
}

func TestEngineHysteresis(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)

	loud := toneFrame(0.3)
	quiet := toneFrame(0.001)

	// A single loud frame is not enough to enter speech.
	p, err := e.Probability(loud)
	require.NoError(t, err)
	assert.Equal(t, float32(0), p)

	// After SpeechFrames consecutive loud frames the engine latches on.
	for i := 0; i < cfg.SpeechFrames; i++ {
		p, err = e.Probability(loud)
		require.NoError(t, err)
	}
	assert.Equal(t, float32(1), p)

	// A short dip does not end speech.
	for i := 0; i < cfg.SilenceFrames-1; i++ {
		p, err = e.Probability(quiet)
		require.NoError(t, err)
		assert.Equal(t, float32(1), p)
	}

	// One loud frame resets the silence counter.
	p, err = e.Probability(loud)
	require.NoError(t, err)
	assert.Equal(t, float32(1), p)

	// Sustained silence ends the speech run.
	for i := 0; i < cfg.SilenceFrames; i++ {
		p, err = e.Probability(quiet)
		require.NoError(t, err)
	}
	assert.Equal(t, float32(0), p)
}

func TestEngineIntermediateLevelKeepsState(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)

	// A level between the two thresholds never starts speech.
	mid := toneFrame(float32(cfg.SilenceThreshold) * 1.5 * math.Sqrt2)
	for i := 0; i < 50; i++ {
		p, err := e.Probability(mid)
		require.NoError(t, err)
		assert.Equal(t, float32(0), p)
	}
}

func TestEngineReset(t *testing.T) {
	cfg := DefaultConfig()
	e := New(cfg)
	loud := toneFrame(0.3)

	for i := 0; i <= cfg.SpeechFrames; i++ {
		_, err := e.Probability(loud)
		require.NoError(t, err)
	}
	e.Reset()

	p, err := e.Probability(loud)
	require.NoError(t, err)
	assert.Equal(t, float32(0), p)
}
