package agent

// AgentState is what the dialogue loop is doing right now.
type AgentState string

const (
	StateInactive  AgentState = "inactive"
	StateGreeting  AgentState = "greeting"
	StateListening AgentState = "listening"
	StateThinking  AgentState = "thinking"
	StateSpeaking  AgentState = "speaking"
	StateExecuting AgentState = "executing"
	StatePaused    AgentState = "paused"
)

func (s AgentState) String() string { return string(s) }
