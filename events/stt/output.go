package stt

import "companionkit/core"

// STTPerceptionEvent is the recognizer's structured output for one
// utterance: the transcript plus the emotion, paralinguistic event and
// language pulled out of the model's inline tags.
type STTPerceptionEvent struct {
	Perception core.Perception
}

func (e *STTPerceptionEvent) GetId() string {
	return "stt.perception"
}
