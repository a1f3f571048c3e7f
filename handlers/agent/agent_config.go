package agent

import "time"

type AgentConfig struct {
	GuardDelay time.Duration `json:"guard_delay"` // How long the listen gate stays closed after playback ends, covering room echo of the companion's own voice.
}

// DefaultConfig returns an AgentConfig with sensible defaults.
func DefaultConfig() AgentConfig {
	return AgentConfig{
		GuardDelay: 300 * time.Millisecond,
	}
}
