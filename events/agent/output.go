package agent

import "companionkit/core"

// Turn phase events. The UI transport forwards these so a client can
// show what the companion is doing.

type AgentThinkingStartedEvent struct {
	Perception core.Perception
}

func (e *AgentThinkingStartedEvent) GetId() string {
	return "agent.thinking_started"
}

type AgentThinkingDoneEvent struct {
	Thought core.Thought
}

func (e *AgentThinkingDoneEvent) GetId() string {
	return "agent.thinking_done"
}

type AgentSpeakingDoneEvent struct {
}

func (e *AgentSpeakingDoneEvent) GetId() string {
	return "agent.speaking_done"
}

// AgentTurnErrorEvent reports a turn that was abandoned mid-way. The
// loop itself keeps running.
type AgentTurnErrorEvent struct {
	Stage string
	Err   string
}

func (e *AgentTurnErrorEvent) GetId() string {
	return "agent.turn_error"
}
