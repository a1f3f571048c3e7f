package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"companionkit/core"
	agentevents "companionkit/events/agent"
	sttevents "companionkit/events/stt"
	transportevents "companionkit/events/transport"
	ttsevents "companionkit/events/tts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubThinker struct {
	mu       sync.Mutex
	stimuli  []string
	thought  *core.Thought
	thinking time.Duration
	calls    atomic.Int32
}

func (s *stubThinker) Think(ctx context.Context, stimulus string) *core.Thought {
	s.calls.Add(1)
	s.mu.Lock()
	s.stimuli = append(s.stimuli, stimulus)
	s.mu.Unlock()
	if s.thinking > 0 {
		time.Sleep(s.thinking)
	}
	return s.thought
}

type stubVoice struct {
	mu       sync.Mutex
	spoken   []string
	speaking time.Duration
	gate     *core.ListenGate
	gateOpen atomic.Bool // records whether the gate was open during Speak
}

func (s *stubVoice) Speak(ctx context.Context, text string, started func()) error {
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	if started != nil {
		started()
	}
	if s.gate != nil && s.gate.Active() {
		s.gateOpen.Store(true)
	}
	if s.speaking > 0 {
		time.Sleep(s.speaking)
	}
	return nil
}

// silentVoice fails before playback ever begins and never invokes the
// started hook.
type silentVoice struct{ err error }

func (v *silentVoice) Speak(ctx context.Context, text string, started func()) error {
	return v.err
}

type stubFace struct {
	mu          sync.Mutex
	expressions []string
}

func (s *stubFace) SetExpression(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expressions = append(s.expressions, name)
}

func newTestAgent(t *testing.T, thinker *stubThinker, voice Voice, face *stubFace, gate *core.ListenGate) (*AgentHandler, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GuardDelay = 20 * time.Millisecond

	in := make(chan *core.EventPacket, 8)
	next := make(chan *core.EventPacket, 32)
	top := make(chan *core.EventPacket, 8)

	h := NewAgentHandler(thinker, voice, face, gate, cfg, core.NewDevelopmentLogger())
	require.NoError(t, h.Initialize(in, next, top, context.Background()))
	return h, in, next
}

func perceptionPacket(p core.Perception) *core.EventPacket {
	return core.NewEventPacket(&sttevents.STTPerceptionEvent{Perception: p},
		core.EventRelayDestinationNextService, "test")
}

func collectEvents(next chan *core.EventPacket, n int, timeout time.Duration) []core.IEvent {
	var events []core.IEvent
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case p := <-next:
			events = append(events, p.Event)
		case <-deadline:
			return events
		}
	}
	return events
}

func TestTurnHappyPath(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{thought: &core.Thought{Text: "你好呀！", Emotion: "happy"}}
	voice := &stubVoice{gate: gate}
	face := &stubFace{}
	h, _, next := newTestAgent(t, thinker, voice, face, gate)

	require.NoError(t, h.HandleEvent(perceptionPacket(core.Perception{Text: "你好", Emotion: "NEUTRAL"})))

	events := collectEvents(next, 5, time.Second)
	require.Len(t, events, 5)
	assert.IsType(t, &agentevents.AgentThinkingStartedEvent{}, events[0])
	assert.IsType(t, &agentevents.AgentThinkingDoneEvent{}, events[1])
	assert.IsType(t, &ttsevents.TTSSpeakingStartedEvent{}, events[2])
	assert.IsType(t, &ttsevents.TTSSpeakingEndedEvent{}, events[3])
	assert.IsType(t, &agentevents.AgentSpeakingDoneEvent{}, events[4])

	assert.Equal(t, []string{"你好"}, thinker.stimuli)
	assert.Equal(t, []string{"你好呀！"}, voice.spoken)
	assert.Equal(t, []string{"happy", "neutral"}, face.expressions)
	assert.False(t, voice.gateOpen.Load(), "gate must be closed while speaking")

	// The gate reopens after the guard delay.
	assert.Eventually(t, gate.Active, time.Second, 5*time.Millisecond)
}

func TestConcurrentPerceptionDropped(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{thought: &core.Thought{Text: "reply", Emotion: "neutral"}, thinking: 100 * time.Millisecond}
	voice := &stubVoice{}
	h, _, next := newTestAgent(t, thinker, voice, &stubFace{}, gate)

	require.NoError(t, h.HandleEvent(perceptionPacket(core.Perception{Text: "first"})))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, h.HandleEvent(perceptionPacket(core.Perception{Text: "second"})))

	collectEvents(next, 5, time.Second)
	assert.Equal(t, int32(1), thinker.calls.Load(), "second perception must be dropped, not queued")
	assert.Equal(t, []string{"first"}, thinker.stimuli)
}

func TestFailedThinkReopensGate(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{thought: nil}
	voice := &stubVoice{}
	h, _, next := newTestAgent(t, thinker, voice, &stubFace{}, gate)

	require.NoError(t, h.HandleEvent(perceptionPacket(core.Perception{Text: "hello"})))

	events := collectEvents(next, 2, time.Second)
	require.Len(t, events, 2)
	turnErr, ok := events[1].(*agentevents.AgentTurnErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "think", turnErr.Stage)
	assert.Empty(t, voice.spoken)

	assert.Eventually(t, gate.Active, time.Second, 5*time.Millisecond)
}

func TestTextInputStartsTurn(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{thought: &core.Thought{Text: "typed reply", Emotion: "neutral"}}
	voice := &stubVoice{}
	h, _, next := newTestAgent(t, thinker, voice, &stubFace{}, gate)

	require.NoError(t, h.HandleEvent(core.NewEventPacket(
		&transportevents.TransportTextInputEvent{Text: "hello there"},
		core.EventRelayDestinationNextService, "test")))

	events := collectEvents(next, 5, time.Second)
	assert.Len(t, events, 5)
	assert.Equal(t, []string{"hello there"}, thinker.stimuli)

	// Blank text input is ignored entirely.
	require.NoError(t, h.HandleEvent(core.NewEventPacket(
		&transportevents.TransportTextInputEvent{Text: "   "},
		core.EventRelayDestinationNextService, "test")))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), thinker.calls.Load())
}

// When playback never starts the face must not emote; only the neutral
// reset at turn end runs.
func TestNoExpressionWhenPlaybackNeverStarts(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{thought: &core.Thought{Text: "reply", Emotion: "happy"}}
	voice := &silentVoice{err: errors.New("synthesis failed")}
	face := &stubFace{}
	h, _, next := newTestAgent(t, thinker, voice, face, gate)

	require.NoError(t, h.HandleEvent(perceptionPacket(core.Perception{Text: "hi"})))
	collectEvents(next, 5, time.Second)

	face.mu.Lock()
	defer face.mu.Unlock()
	assert.Equal(t, []string{"neutral"}, face.expressions)
}

func TestSpeakEventBypassesCognition(t *testing.T) {
	gate := core.NewListenGate(true)
	thinker := &stubThinker{}
	voice := &stubVoice{gate: gate}
	face := &stubFace{}
	h, _, next := newTestAgent(t, thinker, voice, face, gate)

	require.NoError(t, h.HandleEvent(core.NewEventPacket(
		&ttsevents.TTSSpeakEvent{Text: "[happy] 今天也要加油哦！"},
		core.EventRelayDestinationNextService, "test")))

	events := collectEvents(next, 3, time.Second)
	require.Len(t, events, 3)
	assert.IsType(t, &ttsevents.TTSSpeakingStartedEvent{}, events[0])
	assert.IsType(t, &ttsevents.TTSSpeakingEndedEvent{}, events[1])
	assert.IsType(t, &agentevents.AgentSpeakingDoneEvent{}, events[2])

	assert.Zero(t, thinker.calls.Load(), "scripted speech must not reach the model")
	assert.Equal(t, []string{"今天也要加油哦！"}, voice.spoken)
	assert.Equal(t, []string{"happy", "neutral"}, face.expressions)
	assert.False(t, voice.gateOpen.Load(), "gate must be closed while the line plays")
	assert.Eventually(t, gate.Active, time.Second, 5*time.Millisecond)
}

func TestComposeStimulus(t *testing.T) {
	cases := []struct {
		name string
		in   core.Perception
		want string
	}{
		{"bare text", core.Perception{Text: "hi", Emotion: "NEUTRAL", Event: "Speech"}, "hi"},
		{"emotion colors text", core.Perception{Text: "hi", Emotion: "HAPPY", Event: "Speech"}, "(user sounded happy) hi"},
		{"event outranks emotion", core.Perception{Text: "hi", Emotion: "HAPPY", Event: "Laughter"}, "(user laughed) hi"},
		{"event without text", core.Perception{Emotion: "NEUTRAL", Event: "Cough"}, "(user coughed)"},
		{"unknown event", core.Perception{Event: "Yawn"}, "(yawn heard from user)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, composeStimulus(tc.in))
		})
	}
}
