package tts

// started and ended events
type TTSSpeakingStartedEvent struct{}

func (e *TTSSpeakingStartedEvent) GetId() string {
	return "tts.speaking_started"
}

type TTSSpeakingEndedEvent struct{}

func (e *TTSSpeakingEndedEvent) GetId() string {
	return "tts.speaking_ended"
}

// TTSSpeakEvent makes the coordinator voice the given text directly,
// bypassing the cognition stage. The greeting is injected this way.
type TTSSpeakEvent struct {
	Text string
}

func (e *TTSSpeakEvent) GetId() string {
	return "tts.speak"
}
