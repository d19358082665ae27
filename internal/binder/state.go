package binder

import "fmt"

// State is the step a run is in.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateNormalizing
	StateMerging
	StateScaling
	StateWriting
	StateCleanup
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateValidating:  "validating",
	StateNormalizing: "normalizing",
	StateMerging:     "merging",
	StateScaling:     "scaling",
	StateWriting:     "writing",
	StateCleanup:     "cleanup",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}
