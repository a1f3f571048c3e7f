// Package audio holds the pure-Go sample plumbing shared by the
// perception and synthesis stages: format conversion between the
// transport encodings and the 16 kHz mono float frames the VAD and
// recognizer consume, WAV framing for the HTTP services, and the RMS
// primitive the lip-sync amplitude is derived from.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"companionkit/core"

	"github.com/zaf/g711"
)

// PCM constants
const (
	pcmMax = 32767  // Max 16-bit PCM value
	pcmMin = -32768 // Min 16-bit PCM value
)

// ULawBytesToPCM converts µ-law bytes to 16-bit PCM bytes using the
// ITU-T G.711 standard.
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts A-law bytes to 16-bit PCM bytes.
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToULaw converts 16-bit PCM bytes to µ-law.
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	return g711.EncodeUlaw(pcm), nil
}

// PCMBytesToFloat32 converts 16-bit little-endian PCM bytes to
// normalized float32 samples in [-1, 1].
func PCMBytesToFloat32(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM byte slice length must be even (16-bit samples)")
	}
	out := make([]float32, len(pcm)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(s) / 32768.0
	}
	return out, nil
}

// Float32ToPCMBytes converts normalized float32 samples to 16-bit
// little-endian PCM bytes, clipping out-of-range values.
func Float32ToPCMBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		v := int(math.Round(float64(f) * 32768.0))
		if v > pcmMax {
			v = pcmMax
		}
		if v < pcmMin {
			v = pcmMin
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// MixdownToMono averages interleaved multi-channel samples into mono.
func MixdownToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// ResampleLinear converts mono samples between sample rates with linear
// interpolation. Good enough for speech frames; the recognizer and VAD
// are tolerant of the mild rolloff.
func ResampleLinear(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// RMS returns the root-mean-square amplitude of a block of normalized
// samples. Empty blocks have zero amplitude.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ChunkToFloat32 decodes a transport audio chunk into mono float32
// samples at the target sample rate. ULAW/ALAW are decoded to PCM
// first; multi-channel audio is mixed down.
func ChunkToFloat32(chunk core.AudioChunk, targetRate int) ([]float32, error) {
	if chunk.Data == nil {
		return nil, errors.New("audio chunk has no data")
	}
	pcm := *chunk.Data
	switch chunk.Format {
	case core.PCM:
	case core.ULAW:
		pcm = ULawBytesToPCM(pcm)
	case core.ALAW:
		pcm = ALawBytesToPCM(pcm)
	default:
		return nil, fmt.Errorf("unsupported audio format %d", chunk.Format)
	}
	samples, err := PCMBytesToFloat32(pcm)
	if err != nil {
		return nil, err
	}
	samples = MixdownToMono(samples, chunk.Channels)
	return ResampleLinear(samples, chunk.SampleRate, targetRate), nil
}
