package stt

import (
	"context"
	"testing"
	"time"

	"companionkit/core"
	sttevents "companionkit/events/stt"
	vadevents "companionkit/events/vad"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSTTService struct {
	transcript string
	err        error
}

func (s *stubSTTService) Initialize(ctx context.Context) error { return nil }
func (s *stubSTTService) Cleanup() error                       { return nil }
func (s *stubSTTService) Reset() error                         { return nil }

func (s *stubSTTService) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	return s.transcript, s.err
}

func startHandler(t *testing.T, svc ISTTService) (*STTHandler, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	in := make(chan *core.EventPacket, 8)
	next := make(chan *core.EventPacket, 8)
	top := make(chan *core.EventPacket, 8)

	h := NewSTTHandler(svc, DefaultConfig(), core.NewDevelopmentLogger())
	require.NoError(t, h.Initialize(in, next, top, context.Background()))
	require.NoError(t, h.Start())
	return h, in, next
}

func TestHandlerEmitsPerception(t *testing.T) {
	svc := &stubSTTService{transcript: "<|zh|><|HAPPY|><|Speech|>你好"}
	_, in, next := startHandler(t, svc)

	in <- core.NewEventPacket(&vadevents.VadUtteranceEvent{
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	}, core.EventRelayDestinationNextService, "test")

	select {
	case packet := <-next:
		event, ok := packet.Event.(*sttevents.STTPerceptionEvent)
		require.True(t, ok, "expected a perception event, got %T", packet.Event)
		assert.Equal(t, "你好", event.Perception.Text)
		assert.Equal(t, "HAPPY", event.Perception.Emotion)
	case <-time.After(time.Second):
		t.Fatal("no perception emitted")
	}
}

func TestHandlerDiscardsTrivialPerception(t *testing.T) {
	svc := &stubSTTService{transcript: "<|zh|><|NEUTRAL|><|Speech|>"}
	_, in, next := startHandler(t, svc)

	in <- core.NewEventPacket(&vadevents.VadUtteranceEvent{
		Samples:    make([]float32, 16000),
		SampleRate: 16000,
	}, core.EventRelayDestinationNextService, "test")

	select {
	case packet := <-next:
		t.Fatalf("trivial perception should be dropped, got %T", packet.Event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHandlerForwardsUnrelatedEvents(t *testing.T) {
	_, in, next := startHandler(t, &stubSTTService{})

	in <- core.NewEventPacket(&vadevents.VadUserSpeechStartedEvent{},
		core.EventRelayDestinationNextService, "test")

	select {
	case packet := <-next:
		_, ok := packet.Event.(*vadevents.VadUserSpeechStartedEvent)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}
