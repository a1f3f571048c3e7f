package llm

import "time"

type LLMConfig struct {
	MaxHistoryTurns int           `json:"max_history_turns"` // User/assistant pairs kept in the rolling window; the system prompt is never evicted.
	RequestTimeout  time.Duration `json:"request_timeout"`   // Per-completion deadline.
}

// DefaultConfig returns an LLMConfig with sensible defaults.
func DefaultConfig() LLMConfig {
	return LLMConfig{
		MaxHistoryTurns: 20,
		RequestTimeout:  60 * time.Second,
	}
}
