// Package agent is the turn coordinator. One turn runs at a time:
// perceive, think, emote, speak. A perception arriving while a turn is
// in flight is dropped, not queued; by the time the companion finished
// talking the moment has passed. The listen gate stays closed from the
// start of the turn until a guard interval after playback so the
// companion never transcribes itself.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"companionkit/core"
	agentevents "companionkit/events/agent"
	sttevents "companionkit/events/stt"
	transportevents "companionkit/events/transport"
	ttsevents "companionkit/events/tts"
	utiltext "companionkit/utils/text"
)

type Thinker interface {
	Think(ctx context.Context, stimulus string) *core.Thought
}

type Voice interface {
	// Speak voices text and calls started when playback actually
	// begins, which may be well after the call itself.
	Speak(ctx context.Context, text string, started func()) error
}

type Face interface {
	SetExpression(name string)
}

type AgentHandler struct {
	core.BaseHandler
	thinker Thinker
	voice   Voice
	face    Face
	gate    *core.ListenGate
	config  AgentConfig

	turnMu sync.Mutex
}

func NewAgentHandler(thinker Thinker, voice Voice, face Face, gate *core.ListenGate, config AgentConfig, logger *core.Logger) *AgentHandler {
	if config.GuardDelay <= 0 {
		config = DefaultConfig()
	}
	h := &AgentHandler{
		BaseHandler: *core.NewBaseHandler(nil, logger),
		thinker:     thinker,
		voice:       voice,
		face:        face,
		gate:        gate,
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *AgentHandler) HandleEvent(packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *sttevents.STTPerceptionEvent:
		h.startTurn(event.Perception)
	case *transportevents.TransportTextInputEvent:
		if strings.TrimSpace(event.Text) == "" {
			return nil
		}
		h.startTurn(core.Perception{Text: event.Text})
	case *ttsevents.TTSSpeakEvent:
		if strings.TrimSpace(event.Text) == "" {
			return nil
		}
		h.startScriptedSpeech(event.Text)
	default:
		h.SendPacket(packet)
	}
	return nil
}

// startTurn launches the turn worker unless one is already running.
func (h *AgentHandler) startTurn(perception core.Perception) {
	if !h.turnMu.TryLock() {
		h.Logger.Debug("turn in flight, dropping perception", "text", perception.Text)
		return
	}

	go func() {
		defer h.turnMu.Unlock()

		h.gate.SetActive(false)
		defer func() {
			// Room echo of the tail of playback still reaches the mic
			// for a moment after the last block.
			time.Sleep(h.config.GuardDelay)
			h.gate.SetActive(true)
		}()

		h.runTurn(perception)
	}()
}

func (h *AgentHandler) runTurn(perception core.Perception) {
	h.SendPacket(core.NewEventPacket(&agentevents.AgentThinkingStartedEvent{
		Perception: perception,
	}, core.EventRelayDestinationNextService, "AgentHandler"))

	stimulus := composeStimulus(perception)
	thought := h.thinker.Think(h.Ctx, stimulus)
	if thought == nil {
		h.reportError("think", "cognition failed")
		return
	}

	h.SendPacket(core.NewEventPacket(&agentevents.AgentThinkingDoneEvent{
		Thought: *thought,
	}, core.EventRelayDestinationNextService, "AgentHandler"))

	h.SendPacket(core.NewEventPacket(&ttsevents.TTSSpeakingStartedEvent{},
		core.EventRelayDestinationNextService, "AgentHandler"))

	// The expression switches when audio starts, not when synthesis is
	// requested, so face and voice change together.
	err := h.voice.Speak(h.Ctx, thought.Text, func() {
		h.face.SetExpression(thought.Emotion)
	})

	h.SendPacket(core.NewEventPacket(&ttsevents.TTSSpeakingEndedEvent{},
		core.EventRelayDestinationNextService, "AgentHandler"))

	// Expressions live for the duration of the spoken reply.
	h.face.SetExpression("neutral")

	if err != nil {
		h.reportError("speak", err.Error())
		return
	}

	h.SendPacket(core.NewEventPacket(&agentevents.AgentSpeakingDoneEvent{},
		core.EventRelayDestinationNextService, "AgentHandler"))
}

// startScriptedSpeech voices a fixed line, bypassing cognition. The
// greeting uses it. The turn lock and listen gate apply exactly as for
// a full turn, so a scripted line cannot overlap a reply.
func (h *AgentHandler) startScriptedSpeech(line string) {
	if !h.turnMu.TryLock() {
		h.Logger.Debug("turn in flight, dropping scripted speech")
		return
	}

	go func() {
		defer h.turnMu.Unlock()

		h.gate.SetActive(false)
		defer func() {
			time.Sleep(h.config.GuardDelay)
			h.gate.SetActive(true)
		}()

		emotion, rest := utiltext.ExtractLeadingEmotion(line)

		h.SendPacket(core.NewEventPacket(&ttsevents.TTSSpeakingStartedEvent{},
			core.EventRelayDestinationNextService, "AgentHandler"))

		err := h.voice.Speak(h.Ctx, rest, func() {
			h.face.SetExpression(emotion)
		})

		h.SendPacket(core.NewEventPacket(&ttsevents.TTSSpeakingEndedEvent{},
			core.EventRelayDestinationNextService, "AgentHandler"))
		h.face.SetExpression("neutral")

		if err != nil {
			h.reportError("speak", err.Error())
			return
		}
		h.SendPacket(core.NewEventPacket(&agentevents.AgentSpeakingDoneEvent{},
			core.EventRelayDestinationNextService, "AgentHandler"))
	}()
}

func (h *AgentHandler) reportError(stage, message string) {
	h.Logger.Error("turn abandoned", "stage", stage, "error", message)
	h.SendPacket(core.NewEventPacket(&agentevents.AgentTurnErrorEvent{
		Stage: stage,
		Err:   message,
	}, core.EventRelayDestinationNextService, "AgentHandler"))
}

// eventPhrases render actionable paralinguistic events as stage
// directions the model can react to.
var eventPhrases = map[string]string{
	"Laughter": "(user laughed)",
	"Cry":      "(user sobbed)",
	"Cough":    "(user coughed)",
	"Sneeze":   "(user sneezed)",
	"Applause": "(user applauded)",
	"Breath":   "(user sighed)",
	"Music":    "(music is playing nearby)",
}

// composeStimulus turns a perception into the user message for the
// model. An actionable event outranks the emotion tag; the emotion tag
// outranks bare text.
func composeStimulus(p core.Perception) string {
	if p.Event != "" && p.Event != "Speech" {
		phrase, ok := eventPhrases[p.Event]
		if !ok {
			phrase = fmt.Sprintf("(%s heard from user)", strings.ToLower(p.Event))
		}
		if p.Text == "" {
			return phrase
		}
		return phrase + " " + p.Text
	}
	if p.Emotion != "" && p.Emotion != "NEUTRAL" {
		return fmt.Sprintf("(user sounded %s) %s", strings.ToLower(p.Emotion), p.Text)
	}
	return p.Text
}
