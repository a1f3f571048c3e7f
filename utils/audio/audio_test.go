package audio

import (
	"math"
	"testing"

	"companionkit/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCMFloat32RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999, -1.0}
	pcm := Float32ToPCMBytes(in)
	out, err := PCMBytesToFloat32(pcm)
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1.0/32768.0, "sample %d", i)
	}
}

func TestFloat32ToPCMBytesClips(t *testing.T) {
	pcm := Float32ToPCMBytes([]float32{2.0, -2.0})
	out, err := PCMBytesToFloat32(pcm)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0], 0.001)
	assert.InDelta(t, -1.0, out[1], 0.001)
}

func TestPCMBytesToFloat32OddLength(t *testing.T) {
	_, err := PCMBytesToFloat32([]byte{0x01})
	assert.Error(t, err)
}

func TestMixdownToMono(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := MixdownToMono(stereo, 2)
	require.Len(t, mono, 3)
	assert.InDelta(t, 0.5, mono[0], 1e-6)
	assert.InDelta(t, 0.5, mono[1], 1e-6)
	assert.InDelta(t, 0.0, mono[2], 1e-6)
}

func TestResampleLinear(t *testing.T) {
	in := make([]float32, 480) // 10ms at 48kHz
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * float64(i) / 48.0))
	}
	out := ResampleLinear(in, 48000, 16000)
	assert.Len(t, out, 160)

	// Same rate is a no-op.
	same := ResampleLinear(in, 48000, 48000)
	assert.Equal(t, in, same)
}

func TestRMS(t *testing.T) {
	assert.Equal(t, 0.0, RMS(nil))
	assert.InDelta(t, 0.5, RMS([]float32{0.5, -0.5, 0.5, -0.5}), 1e-6)

	// A full-scale sine has RMS 1/sqrt(2).
	sine := make([]float32, 1600)
	for i := range sine {
		sine[i] = float32(math.Sin(2 * math.Pi * float64(i) / 16.0))
	}
	assert.InDelta(t, 1.0/math.Sqrt2, RMS(sine), 0.01)
}

func TestWAVRoundTrip(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = float32(math.Sin(2*math.Pi*float64(i)/32.0)) * 0.8
	}
	data := EncodeWAV(in, 16000)

	clip, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, clip.SampleRate)
	require.Len(t, clip.Samples, len(in))
	for i := 0; i < len(in); i += 100 {
		assert.InDelta(t, in[i], clip.Samples[i], 1.0/32768.0)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not a wav file, far too short anyway"))
	assert.Error(t, err)
}

func TestDecodeAudioSniffsFormat(t *testing.T) {
	samples := []float32{0.1, 0.2, 0.3, 0.4}

	wav, err := DecodeAudio(EncodeWAV(samples, 32000), 16000)
	require.NoError(t, err)
	assert.Equal(t, 32000, wav.SampleRate)

	raw, err := DecodeAudio(Float32ToPCMBytes(samples), 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, raw.SampleRate)
	assert.Len(t, raw.Samples, 4)
}

func TestChunkToFloat32(t *testing.T) {
	pcm := Float32ToPCMBytes([]float32{0.25, 0.25, -0.25, -0.25})
	chunk := core.AudioChunk{
		Data:       &pcm,
		SampleRate: 16000,
		Channels:   1,
		Format:     core.PCM,
	}
	samples, err := ChunkToFloat32(chunk, 16000)
	require.NoError(t, err)
	assert.Len(t, samples, 4)

	chunk.Data = nil
	_, err = ChunkToFloat32(chunk, 16000)
	assert.Error(t, err)
}
