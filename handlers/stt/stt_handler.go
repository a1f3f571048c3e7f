// Package stt turns segmented utterances into structured perceptions.
// Recognition runs in a worker goroutine per utterance so the audio
// pipeline never blocks on the recognition server.
package stt

import (
	"context"

	"companionkit/core"
	sttevents "companionkit/events/stt"
	vadevents "companionkit/events/vad"
)

type ISTTService interface {
	core.IService
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

type STTHandler struct {
	core.BaseHandler
	config STTConfig
}

func NewSTTHandler(service ISTTService, config STTConfig, logger *core.Logger) *STTHandler {
	if config.RequestTimeout <= 0 {
		config = DefaultConfig()
	}
	h := &STTHandler{
		BaseHandler: *core.NewBaseHandler(service, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *STTHandler) HandleEvent(packet *core.EventPacket) error {
	event, ok := packet.Event.(*vadevents.VadUtteranceEvent)
	if !ok {
		h.SendPacket(packet)
		return nil
	}

	go h.transcribe(event)
	return nil
}

func (h *STTHandler) transcribe(event *vadevents.VadUtteranceEvent) {
	ctx, cancel := context.WithTimeout(h.Ctx, h.config.RequestTimeout)
	defer cancel()

	raw, err := h.Service.(ISTTService).Transcribe(ctx, event.Samples, event.SampleRate)
	if err != nil {
		h.FatalServiceErrorChan <- err
		return
	}

	perception := ParseTranscript(raw)
	if isTrivial(perception) {
		h.Logger.Debug("discarding trivial perception", "raw", raw)
		return
	}

	h.SendPacket(core.NewEventPacket(&sttevents.STTPerceptionEvent{
		Perception: perception,
	}, core.EventRelayDestinationNextService, "STTHandler"))
}

// isTrivial reports whether a perception carries nothing worth reacting
// to: no transcript and no actionable paralinguistic event. A bare
// "Speech" tag with an empty transcript is noise the recognizer could
// not make words of.
func isTrivial(p core.Perception) bool {
	return p.Text == "" && (p.Event == "" || p.Event == "Speech")
}
