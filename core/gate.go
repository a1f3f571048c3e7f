package core

import "sync/atomic"

// ListenGate is the shared listening-active flag. The turn coordinator
// closes it for the full duration of audio playback plus a trailing
// guard interval so the companion never transcribes its own voice; the
// utterance segmenter discards buffered audio whenever it is closed.
type ListenGate struct {
	active atomic.Bool
}

// NewListenGate returns a gate in the given initial state.
func NewListenGate(active bool) *ListenGate {
	g := &ListenGate{}
	g.active.Store(active)
	return g
}

func (g *ListenGate) SetActive(active bool) {
	g.active.Store(active)
}

func (g *ListenGate) Active() bool {
	return g.active.Load()
}
