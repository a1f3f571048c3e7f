package core

type LLMMessageRole string

const (
	LLMMessageRoleUser      LLMMessageRole = "user"
	LLMMessageRoleAssistant LLMMessageRole = "assistant"
	LLMMessageRoleSystem    LLMMessageRole = "system"
)

// LLMMessage represents a message exchanged with the chat-completion backend.
type LLMMessage struct {
	Role    LLMMessageRole `json:"role"`
	Content string         `json:"content"`
}
