// Package protocol defines the JSON wire format between the companion
// process and its UI client. Audio rides as binary websocket frames;
// everything else is a typed envelope.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates all UI-channel message types.
type MessageType string

const (
	// UI -> companion
	MsgHello     MessageType = "hello"      // Declares the mic format; must precede audio frames.
	MsgTextInput MessageType = "text_input" // Typed chat input, bypasses the audio path.

	// Companion -> UI
	MsgAudio      MessageType = "audio" // Header for the binary playback frame that follows.
	MsgState      MessageType = "state"
	MsgPerception MessageType = "perception"
	MsgThought    MessageType = "thought"
	MsgTurnError  MessageType = "turn_error"
)

// Envelope is the outer JSON wrapper for all text websocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- UI -> companion payloads ---

// HelloPayload declares the format of the binary mic frames the client
// will send. Encoding is "pcm16" (default), "mulaw" or "alaw".
type HelloPayload struct {
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding,omitempty"`
}

type TextInputPayload struct {
	Text string `json:"text"`
}

// --- Companion -> UI payloads ---

// AudioPayload describes the binary playback frame sent immediately
// after this envelope: 16-bit little-endian mono PCM.
type AudioPayload struct {
	SampleRate int `json:"sample_rate"`
	Samples    int `json:"samples"`
}

// StatePayload reports a phase change of the perceptual loop.
type StatePayload struct {
	Phase     string    `json:"phase"` // "idle", "hearing_user", "thinking", "speaking"
	Timestamp time.Time `json:"timestamp"`
}

// PerceptionPayload mirrors what the companion heard.
type PerceptionPayload struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion,omitempty"`
	Event   string `json:"event,omitempty"`
	Lang    string `json:"lang,omitempty"`
}

// ThoughtPayload mirrors the companion's reply.
type ThoughtPayload struct {
	Text      string `json:"text"`
	Emotion   string `json:"emotion"`
	LatencyMs int64  `json:"latency_ms"`
}

// TurnErrorPayload reports an abandoned turn. The loop keeps running.
type TurnErrorPayload struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}
