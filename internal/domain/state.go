package domain

// State is the lifecycle state of an execution. Transitions only move
// forward; the engine never writes an earlier state over a later one.
type State string

const (
	ExecutionSubmitted State = "ExecutionSubmitted"
	ExecutionStarted   State = "ExecutionStarted"
	StepStarted        State = "StepStarted"
	StepFailed         State = "StepFailed"
	StepSucceeded      State = "StepSucceeded"
	ExecutionSucceeded State = "ExecutionSucceeded"
	ExecutionFailed    State = "ExecutionFailed"
)

// States lists every valid state, in lifecycle order.
var States = []State{
	ExecutionSubmitted,
	ExecutionStarted,
	StepStarted,
	StepFailed,
	StepSucceeded,
	ExecutionSucceeded,
	ExecutionFailed,
}

// Terminal reports whether no further processing follows this state.
func (s State) Terminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed
}

// Valid reports whether s is a member of the state enum.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// NonTerminalStates returns the states an in-flight execution may hold.
// Used as the expected-state set for conditional store updates.
func NonTerminalStates() []State {
	return []State{ExecutionSubmitted, ExecutionStarted, StepStarted, StepSucceeded}
}
