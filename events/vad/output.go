package vad

type VadUserSpeechStartedEvent struct {
}

func (e *VadUserSpeechStartedEvent) GetId() string {
	return "vad.user_speech.started"
}

// VadUtteranceEvent carries one complete user utterance, emitted after
// the trailing-silence window elapses. Samples are mono 16 kHz floats.
type VadUtteranceEvent struct {
	Samples    []float32
	SampleRate int
}

func (e *VadUtteranceEvent) GetId() string {
	return "vad.utterance"
}

type VadUserSpeechEndedEvent struct {
}

func (e *VadUserSpeechEndedEvent) GetId() string {
	return "vad.user_speech.ended"
}
