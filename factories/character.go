package factories

import (
	"fmt"
	"os"
	"strings"

	gptsovits "companionkit/services/gptsovits/tts"

	"github.com/bytedance/sonic"
)

// CharacterConfig defines who the companion is: the persona prompt,
// the cloned voice, and how emotions map onto avatar expressions.
type CharacterConfig struct {
	Name         string            `json:"name"`
	SystemPrompt string            `json:"system_prompt"`
	Knowledge    []string          `json:"knowledge,omitempty"` // Facts the persona knows, folded into the prompt.
	Examples     []string          `json:"examples,omitempty"`  // Sample replies showing the expected register.
	Greeting     string            `json:"greeting,omitempty"`  // Spoken once on startup when set.
	Voice        gptsovits.Voice   `json:"voice"`
	EmotionMap   map[string]string `json:"emotion_map,omitempty"` // Overrides face.DefaultEmotionMap when set.
}

// PromptText folds the persona's knowledge and example replies into the
// system prompt handed to the model.
func (c CharacterConfig) PromptText() string {
	var b strings.Builder
	b.WriteString(c.SystemPrompt)
	if len(c.Knowledge) > 0 {
		b.WriteString("\n\nThings you know:")
		for _, fact := range c.Knowledge {
			b.WriteString("\n- ")
			b.WriteString(fact)
		}
	}
	if len(c.Examples) > 0 {
		b.WriteString("\n\nExample replies:")
		for _, example := range c.Examples {
			b.WriteString("\n- ")
			b.WriteString(example)
		}
	}
	return b.String()
}

// DefaultCharacterConfig is the fallback persona used when no character
// file is found. No greeting and no cloned voice reference; synthesis
// still works with whatever default voice the server is configured for.
func DefaultCharacterConfig() CharacterConfig {
	return CharacterConfig{
		Name: "Companion",
		SystemPrompt: "You are a friendly virtual companion living on the user's desktop. " +
			"Keep replies short and conversational. Begin every reply with an emotion tag " +
			"in square brackets, one of [happy], [sad], [angry], [surprised], [thinking] " +
			"or [neutral].",
	}
}

// CharacterConfigFromFile reads and parses a character file.
func CharacterConfigFromFile(path string) (CharacterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CharacterConfig{}, fmt.Errorf("character: read %q: %w", path, err)
	}
	var cfg CharacterConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return CharacterConfig{}, fmt.Errorf("character: %w", err)
	}
	if cfg.SystemPrompt == "" {
		return CharacterConfig{}, fmt.Errorf("character: system_prompt is required")
	}
	return cfg, nil
}
