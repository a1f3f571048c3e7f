// Package llm is the cognition stage. The Brain owns the conversation
// history and turns one stimulus into one Thought per call; it is the
// only component that mutates the message list.
package llm

import (
	"context"
	"sync"
	"time"

	"companionkit/core"
	"companionkit/utils/text"
)

type LLMService interface {
	core.IService
	Complete(ctx context.Context, messages []core.LLMMessage) (string, error)
	Warmup(ctx context.Context) error
	Unload(ctx context.Context) error
}

type Brain struct {
	mu      sync.Mutex
	service LLMService
	config  LLMConfig
	logger  *core.Logger

	systemPrompt string
	history      []core.LLMMessage
}

func NewBrain(service LLMService, systemPrompt string, config LLMConfig, logger *core.Logger) *Brain {
	if config.MaxHistoryTurns <= 0 {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Brain{
		service:      service,
		config:       config,
		logger:       logger.With(map[string]any{"component": "brain"}),
		systemPrompt: systemPrompt,
	}
}

// Think runs one completion over the accumulated history plus the new
// stimulus. On success the reply is committed to history and returned
// as a Thought; on failure nil is returned and the user turn stays in
// history, so the model still sees what was said even though it never
// answered.
func (b *Brain) Think(ctx context.Context, stimulus string) *core.Thought {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, core.LLMMessage{
		Role:    core.LLMMessageRoleUser,
		Content: stimulus,
	})

	ctx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()

	started := time.Now()
	reply, err := b.service.Complete(ctx, b.messages())
	latency := time.Since(started)
	if err != nil {
		b.logger.Error("completion failed", "error", err)
		return nil
	}

	b.history = append(b.history, core.LLMMessage{
		Role:    core.LLMMessageRoleAssistant,
		Content: reply,
	})

	emotion, rest := text.ExtractLeadingEmotion(reply)
	return &core.Thought{
		Text:    rest,
		Emotion: emotion,
		Latency: latency,
		Raw:     reply,
	}
}

// Warmup preloads the underlying model.
func (b *Brain) Warmup(ctx context.Context) error {
	return b.service.Warmup(ctx)
}

// Unload evicts the underlying model, freeing memory while idle.
func (b *Brain) Unload(ctx context.Context) error {
	return b.service.Unload(ctx)
}

// History returns a copy of the full conversation, without the system
// prompt. Entries are append-only for the life of a session; only the
// request payload is windowed.
func (b *Brain) History() []core.LLMMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.LLMMessage, len(b.history))
	copy(out, b.history)
	return out
}

// Forget clears the conversation but keeps the system prompt.
func (b *Brain) Forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// messages assembles the request payload: the system prompt plus a
// sliding window over the newest turns. The window starts on a user
// message so the model never sees an orphaned reply.
func (b *Brain) messages() []core.LLMMessage {
	window := b.history
	if max := b.config.MaxHistoryTurns * 2; len(window) > max {
		window = window[len(window)-max:]
		if window[0].Role == core.LLMMessageRoleAssistant {
			window = window[1:]
		}
	}

	msgs := make([]core.LLMMessage, 0, len(window)+1)
	if b.systemPrompt != "" {
		msgs = append(msgs, core.LLMMessage{
			Role:    core.LLMMessageRoleSystem,
			Content: b.systemPrompt,
		})
	}
	return append(msgs, window...)
}
