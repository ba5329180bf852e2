package discovery

import (
	"log/slog"
	"slices"
)

// State is a discovery request's position in the pipeline.
type State int

const (
	StateIdle State = iota
	StateAcquiringLocation
	StateFiltering
	StateRanking
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringLocation:
		return "acquiring_location"
	case StateFiltering:
		return "filtering"
	case StateRanking:
		return "ranking"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// transitions lists the legal successor of each state. Error is reachable
// only while acquiring a location; filtering and ranking cannot fail.
var transitions = map[State][]State{
	StateIdle:              {StateAcquiringLocation},
	StateAcquiringLocation: {StateFiltering, StateError},
	StateFiltering:         {StateRanking},
	StateRanking:           {StateComplete},
}

func canTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// StateObserver is told about every transition of every request.
type StateObserver func(requestID string, from, to State)

// tracker follows one request through the state machine.
type tracker struct {
	requestID string
	state     State
	logger    *slog.Logger
	observer  StateObserver
}

func (t *tracker) to(next State) {
	if !canTransition(t.state, next) {
		t.logger.Error("illegal discovery state transition",
			"request_id", t.requestID, "from", t.state, "to", next)
		return
	}
	t.logger.Debug("discovery state transition",
		"request_id", t.requestID, "from", t.state, "to", next)
	if t.observer != nil {
		t.observer(t.requestID, t.state, next)
	}
	t.state = next
}
