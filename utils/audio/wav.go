package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"companionkit/core"
)

var wavMagic = []byte("RIFF")

// EncodeWAV frames mono float32 samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	pcm := Float32ToPCMBytes(samples)
	var buf bytes.Buffer
	dataLen := uint32(len(pcm))
	byteRate := uint32(sampleRate * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))   // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))    // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))    // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(2))    // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16))   // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV parses a 16-bit PCM WAV file into a playback-ready clip.
// Multi-channel files are mixed down to mono.
func DecodeWAV(data []byte) (core.AudioClip, error) {
	if len(data) < 44 || !bytes.HasPrefix(data, wavMagic) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return core.AudioClip{}, errors.New("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; fmt must precede data.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return core.AudioClip{}, errors.New("wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != 1 {
				return core.AudioClip{}, fmt.Errorf("wav: unsupported format code %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits = int(binary.LittleEndian.Uint16(data[body+14:]))
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		pos = body + size + size%2
	}

	if sampleRate == 0 || pcm == nil {
		return core.AudioClip{}, errors.New("wav: missing fmt or data chunk")
	}
	if bits != 16 {
		return core.AudioClip{}, fmt.Errorf("wav: unsupported bit depth %d", bits)
	}

	samples, err := PCMBytesToFloat32(pcm)
	if err != nil {
		return core.AudioClip{}, err
	}
	return core.AudioClip{
		Samples:    MixdownToMono(samples, channels),
		SampleRate: sampleRate,
	}, nil
}

// DecodeAudio sniffs the payload returned by a synthesis endpoint. WAV
// is detected by its RIFF header; anything else is treated as raw
// 16-bit mono PCM at the fallback rate.
func DecodeAudio(data []byte, fallbackRate int) (core.AudioClip, error) {
	if bytes.HasPrefix(data, wavMagic) {
		return DecodeWAV(data)
	}
	samples, err := PCMBytesToFloat32(data)
	if err != nil {
		return core.AudioClip{}, err
	}
	return core.AudioClip{Samples: samples, SampleRate: fallbackRate}, nil
}
