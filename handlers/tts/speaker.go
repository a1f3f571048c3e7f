// Package tts is the speech stage. The Speaker cleans the reply text,
// asks the synthesis service for a clip, and plays it block by block at
// wall-clock rate, driving the avatar's mouth from each block's RMS
// just before the block is written. The mouth always closes when
// playback stops, however it stops.
package tts

import (
	"context"
	"fmt"
	"time"

	"companionkit/core"
	"companionkit/utils/audio"
	"companionkit/utils/text"
)

type TTSService interface {
	core.IService
	Synthesize(ctx context.Context, text string) (core.AudioClip, error)
}

// AudioSink receives playback blocks. The websocket transport is the
// production sink; tests use a recording stub.
type AudioSink interface {
	WriteBlock(samples []float32, sampleRate int) error
}

// MouthDriver receives the lip-sync amplitude, one value per block.
type MouthDriver interface {
	SetMouthOpen(value float64)
}

type Speaker struct {
	service TTSService
	sink    AudioSink
	mouth   MouthDriver
	config  TTSConfig
	logger  *core.Logger
}

func NewSpeaker(service TTSService, sink AudioSink, mouth MouthDriver, config TTSConfig, logger *core.Logger) *Speaker {
	if config.BlockSize <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Speaker{
		service: service,
		sink:    sink,
		mouth:   mouth,
		config:  config,
		logger:  logger.With(map[string]any{"component": "speaker"}),
	}
}

// Speak voices one reply. Text that cleans down to nothing is skipped
// without touching the synthesis service. started, when non-nil, runs
// right before the first block plays; callers use it to time
// expression changes to audible speech rather than to the synthesis
// request, which can lag by many seconds.
func (s *Speaker) Speak(ctx context.Context, reply string, started func()) error {
	// The mouth closes whichever way Speak exits, including the paths
	// where no audio ever played.
	defer s.mouth.SetMouthOpen(0)

	cleaned := text.CleanForSpeech(reply)
	if cleaned == text.SpeechPlaceholder {
		s.logger.Debug("nothing speakable in reply", "reply", reply)
		return nil
	}

	synthCtx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	clip, err := s.service.Synthesize(synthCtx, cleaned)
	cancel()
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if len(clip.Samples) == 0 || clip.SampleRate <= 0 {
		return fmt.Errorf("synthesis returned an empty clip")
	}

	if started != nil {
		started()
	}
	return s.play(ctx, clip)
}

func (s *Speaker) play(ctx context.Context, clip core.AudioClip) error {
	deadline := time.Now()
	for offset := 0; offset < len(clip.Samples); offset += s.config.BlockSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := offset + s.config.BlockSize
		if end > len(clip.Samples) {
			end = len(clip.Samples)
		}
		block := clip.Samples[offset:end]

		// Mouth moves before the block is audible, not after.
		s.mouth.SetMouthOpen(LipSyncAmplitude(block, s.config.NoiseFloor, s.config.Gain))

		if err := s.sink.WriteBlock(block, clip.SampleRate); err != nil {
			return fmt.Errorf("write playback block: %w", err)
		}

		deadline = deadline.Add(time.Duration(float64(len(block)) / float64(clip.SampleRate) * float64(time.Second)))
		if wait := time.Until(deadline); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil
}

// LipSyncAmplitude maps a playback block to a mouth-open value in
// [0, 1]. RMS under the noise floor closes the mouth entirely so hiss
// in pauses does not flutter the avatar.
func LipSyncAmplitude(block []float32, noiseFloor, gain float64) float64 {
	rms := audio.RMS(block)
	if rms < noiseFloor {
		return 0
	}
	amp := rms * gain
	if amp > 1 {
		return 1
	}
	return amp
}
