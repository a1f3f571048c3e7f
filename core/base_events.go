package core

type CriticalErrorEvent struct {
	Error string
}

func (e *CriticalErrorEvent) GetId() string {
	return "shared.critical_error"
}

type WarningEvent struct {
	Error string
}

func (e *WarningEvent) GetId() string {
	return "shared.warning"
}

// ShutdownEvent is fired when the companion is asked to terminate.
// The runner handles it by stopping the pipeline gracefully.
type ShutdownEvent struct {
	Reason string
}

func (e *ShutdownEvent) GetId() string {
	return "shared.shutdown"
}
