package core

import "time"

// Perception is the result of transcribing one finalized utterance.
// Produced once per detected speech segment and consumed exactly once
// by the turn coordinator.
type Perception struct {
	Text    string // Clean transcript with all inline tags stripped.
	Emotion string // Emotion tag, "NEUTRAL" when nothing stronger was heard.
	Event   string // Paralinguistic event tag ("Laughter", "Cough", ...); empty when none.
	Lang    string // Detected language code ("zh", "en", ...); "zh" when untagged.
	Raw     string // Raw tagged transcript as returned by the recognizer.
}

// HasEvent reports whether the recognizer tagged a paralinguistic event.
// "Speech" is a recognized event tag but carries no information beyond
// the transcript itself; callers that filter noise should treat it the
// same as no event.
func (p *Perception) HasEvent() bool {
	return p.Event != ""
}

// Thought is the result of one cognition call.
type Thought struct {
	Text    string        // Display text with the leading tag and stage directions stripped.
	Emotion string        // Leading [tag] emotion marker, "neutral" when absent.
	Latency time.Duration // Wall time of the completion call.
	Raw     string        // Unmodified model reply.
}
