// Package vad segments the incoming audio stream into complete user
// utterances. Frames are scored by a pluggable engine; an utterance
// starts when a frame crosses the confidence threshold and ends after
// a trailing-silence window. While the listen gate is closed (the
// companion is speaking) all audio is discarded so the companion never
// hears itself.
package vad

import (
	"companionkit/core"
	transportevents "companionkit/events/transport"
	vadevents "companionkit/events/vad"
	"companionkit/utils/audio"
	enginevad "companionkit/vad"
)

type VADHandler struct {
	core.BaseHandler
	engine enginevad.Engine
	gate   *core.ListenGate
	config VADConfig

	pending   []float32 // Samples not yet forming a full engine frame.
	utterance []float32 // Samples of the utterance in progress.
	speaking  bool
	silence   int // Consecutive silence samples since the last speech frame.
}

func NewVADHandler(engine enginevad.Engine, gate *core.ListenGate, config VADConfig, logger *core.Logger) *VADHandler {
	if config.SampleRate <= 0 {
		config = DefaultConfig()
	}
	h := &VADHandler{
		BaseHandler: *core.NewBaseHandler(nil, logger),
		engine:      engine,
		gate:        gate,
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *VADHandler) HandleEvent(packet *core.EventPacket) error {
	event, ok := packet.Event.(*transportevents.TransportAudioInputEvent)
	if !ok {
		h.SendPacket(packet)
		return nil
	}

	if !h.gate.Active() {
		// Mid-utterance close means the segment was the companion's own
		// voice bleeding in; drop it rather than transcribe it.
		if h.speaking || len(h.pending) > 0 {
			h.dropSegment()
		}
		return nil
	}

	samples, err := audio.ChunkToFloat32(event.AudioChunk, h.config.SampleRate)
	if err != nil {
		return err
	}

	h.pending = append(h.pending, samples...)
	for len(h.pending) >= h.config.FrameSize {
		frame := h.pending[:h.config.FrameSize]
		h.pending = h.pending[h.config.FrameSize:]
		if err := h.processFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (h *VADHandler) processFrame(frame []float32) error {
	prob, err := h.engine.Probability(frame)
	if err != nil {
		return err
	}
	isSpeech := prob >= h.config.MinConfidence

	if !h.speaking {
		if !isSpeech {
			return nil
		}
		h.speaking = true
		h.silence = 0
		h.utterance = h.utterance[:0]
		h.SendPacket(core.NewEventPacket(&vadevents.VadUserSpeechStartedEvent{},
			core.EventRelayDestinationNextService, "VADHandler"))
	}

	h.utterance = append(h.utterance, frame...)

	if isSpeech {
		h.silence = 0
	} else {
		h.silence += len(frame)
	}

	silenceLimit := int(h.config.SilenceDuration.Seconds() * float64(h.config.SampleRate))
	if h.silence >= silenceLimit {
		h.finishUtterance()
		return nil
	}

	if h.config.MaxUtterance > 0 {
		maxSamples := int(h.config.MaxUtterance.Seconds() * float64(h.config.SampleRate))
		if len(h.utterance) >= maxSamples {
			h.finishUtterance()
		}
	}
	return nil
}

func (h *VADHandler) finishUtterance() {
	samples := make([]float32, len(h.utterance))
	copy(samples, h.utterance)

	h.speaking = false
	h.silence = 0
	h.utterance = h.utterance[:0]
	h.engine.Reset()

	h.Logger.Debug("utterance segmented",
		"seconds", float64(len(samples))/float64(h.config.SampleRate))

	h.SendPacket(core.NewEventPacket(&vadevents.VadUserSpeechEndedEvent{},
		core.EventRelayDestinationNextService, "VADHandler"))
	h.SendPacket(core.NewEventPacket(&vadevents.VadUtteranceEvent{
		Samples:    samples,
		SampleRate: h.config.SampleRate,
	}, core.EventRelayDestinationNextService, "VADHandler"))
}

func (h *VADHandler) dropSegment() {
	h.pending = h.pending[:0]
	h.utterance = h.utterance[:0]
	h.speaking = false
	h.silence = 0
	h.engine.Reset()
}

func (h *VADHandler) Reset() error {
	h.dropSegment()
	return h.BaseHandler.Reset()
}
