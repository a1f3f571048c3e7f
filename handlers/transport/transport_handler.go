// Package transport is the pipeline's outbound stage: it translates
// internal events into UI protocol envelopes. Events nobody subscribes
// to are dropped here, at the end of the chain.
package transport

import (
	"time"

	"companionkit/core"
	agentevents "companionkit/events/agent"
	ttsevents "companionkit/events/tts"
	vadevents "companionkit/events/vad"
	"companionkit/protocol"
)

// Sender is the write half of the UI transport.
type Sender interface {
	SendEnvelope(msgType protocol.MessageType, payload any) error
}

type TransportHandler struct {
	core.BaseHandler
	sender Sender
}

func NewTransportHandler(sender Sender, logger *core.Logger) *TransportHandler {
	h := &TransportHandler{
		BaseHandler: *core.NewBaseHandler(nil, logger),
		sender:      sender,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *TransportHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *vadevents.VadUserSpeechStartedEvent:
		h.send(protocol.MsgState, statePayload("hearing_user"))

	case *agentevents.AgentThinkingStartedEvent:
		h.send(protocol.MsgState, statePayload("thinking"))
		h.send(protocol.MsgPerception, protocol.PerceptionPayload{
			Text:    event.Perception.Text,
			Emotion: event.Perception.Emotion,
			Event:   event.Perception.Event,
			Lang:    event.Perception.Lang,
		})

	case *agentevents.AgentThinkingDoneEvent:
		h.send(protocol.MsgThought, protocol.ThoughtPayload{
			Text:      event.Thought.Text,
			Emotion:   event.Thought.Emotion,
			LatencyMs: event.Thought.Latency.Milliseconds(),
		})

	case *ttsevents.TTSSpeakingStartedEvent:
		h.send(protocol.MsgState, statePayload("speaking"))

	case *ttsevents.TTSSpeakingEndedEvent:
		h.send(protocol.MsgState, statePayload("idle"))

	case *agentevents.AgentTurnErrorEvent:
		h.send(protocol.MsgTurnError, protocol.TurnErrorPayload{
			Stage: event.Stage,
			Error: event.Err,
		})

	default:
		// End of the chain; unhandled events stop here.
	}
	return nil
}

func (h *TransportHandler) send(msgType protocol.MessageType, payload any) {
	if err := h.sender.SendEnvelope(msgType, payload); err != nil {
		h.Logger.Debug("ui send failed", "type", string(msgType), "error", err)
	}
}

func statePayload(phase string) protocol.StatePayload {
	return protocol.StatePayload{Phase: phase, Timestamp: time.Now()}
}
