// Package runstate provides the state machine of the agent turn loop.
//
// A run is a single request, potentially including multiple tool call
// iterations. It progresses through the machine until it terminates:
//
//	init -> call_model              (request accepted)
//	call_model -> route             (model response received)
//	route -> execute_tools          (response requests tools)
//	route -> terminated             (no tool requests, or end of turn)
//	execute_tools -> call_model     (all tool results appended)
//	* -> terminated                 (error, cancellation, iteration cap)
//
// Terminated is final and carries a Reason.
package runstate

import (
	"fmt"
)

// State is a loop state.
type State string

const (
	// StateInit is the state before the first model call. The cache and
	// cost guard are consulted here.
	StateInit State = "init"

	// StateCallModel prepares the context and calls the reasoning engine.
	StateCallModel State = "call_model"

	// StateRoute decides between executing tools and terminating.
	StateRoute State = "route"

	// StateExecuteTools runs the requested tools and appends their results.
	StateExecuteTools State = "execute_tools"

	// StateTerminated is the final state.
	StateTerminated State = "terminated"
)

// AllStates returns all loop states.
func AllStates() []State {
	return []State{
		StateInit,
		StateCallModel,
		StateRoute,
		StateExecuteTools,
		StateTerminated,
	}
}

// IsValid returns true if the state is a known State value.
func (s State) IsValid() bool {
	switch s {
	case StateInit, StateCallModel, StateRoute, StateExecuteTools, StateTerminated:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for StateTerminated.
func (s State) IsTerminal() bool {
	return s == StateTerminated
}

// CanTransitionTo returns true if moving from s to target is allowed. Any
// non-terminal state may terminate; self transitions are never valid.
func (s State) CanTransitionTo(target State) bool {
	if s.IsTerminal() || s == target || !target.IsValid() {
		return false
	}
	if target == StateTerminated {
		return true
	}

	switch s {
	case StateInit:
		return target == StateCallModel
	case StateCallModel:
		return target == StateRoute
	case StateRoute:
		return target == StateExecuteTools
	case StateExecuteTools:
		return target == StateCallModel
	}
	return false
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Transition is a state change.
type Transition struct {
	From State
	To   State
}

// Validate returns an error if the transition is invalid.
func (t Transition) Validate() error {
	if !t.From.IsValid() {
		return fmt.Errorf("runstate: invalid source state %q", t.From)
	}
	if !t.To.IsValid() {
		return fmt.Errorf("runstate: invalid target state %q", t.To)
	}
	if !t.From.CanTransitionTo(t.To) {
		return fmt.Errorf("runstate: invalid transition from %q to %q", t.From, t.To)
	}
	return nil
}

// ValidTransitions returns all valid state transitions.
func ValidTransitions() []Transition {
	return []Transition{
		{From: StateInit, To: StateCallModel},
		{From: StateInit, To: StateTerminated},
		{From: StateCallModel, To: StateRoute},
		{From: StateCallModel, To: StateTerminated},
		{From: StateRoute, To: StateExecuteTools},
		{From: StateRoute, To: StateTerminated},
		{From: StateExecuteTools, To: StateCallModel},
		{From: StateExecuteTools, To: StateTerminated},
	}
}

// Reason explains why a run terminated.
type Reason string

const (
	// ReasonDone means the model produced a final answer.
	ReasonDone Reason = "done"

	// ReasonMaxIterations means the iteration cap was reached.
	ReasonMaxIterations Reason = "max_iterations"

	// ReasonError means a model call or another required step failed.
	ReasonError Reason = "error"

	// ReasonCancelled means the caller's context was cancelled.
	ReasonCancelled Reason = "cancelled"

	// ReasonBudgetRejected means the cost guard refused the request.
	ReasonBudgetRejected Reason = "budget_rejected"

	// ReasonCached means the answer was served from the response cache.
	ReasonCached Reason = "cached"
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	return string(r)
}

// IsFailure returns true if the run terminated without an answer.
func (r Reason) IsFailure() bool {
	switch r {
	case ReasonError, ReasonCancelled, ReasonBudgetRejected:
		return true
	default:
		return false
	}
}

// Route picks the state that follows StateRoute. A response without tool
// requests, or one that ended its turn, terminates.
func Route(stopReason string, toolRequests int) State {
	if toolRequests == 0 || stopReason == "end_turn" {
		return StateTerminated
	}
	return StateExecuteTools
}

// Machine tracks the current state of one run. It is not safe for
// concurrent use; each run owns its own Machine.
type Machine struct {
	state  State
	reason Reason
	steps  int
}

// NewMachine returns a Machine in StateInit.
func NewMachine() *Machine {
	return &Machine{state: StateInit}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Reason returns the terminal reason, empty until terminated.
func (m *Machine) Reason() Reason {
	return m.reason
}

// Steps returns the number of transitions taken.
func (m *Machine) Steps() int {
	return m.steps
}

// Advance moves to target. Use Terminate to reach StateTerminated.
func (m *Machine) Advance(target State) error {
	if target == StateTerminated {
		return fmt.Errorf("runstate: terminate requires a reason")
	}
	if err := (Transition{From: m.state, To: target}).Validate(); err != nil {
		return err
	}
	m.state = target
	m.steps++
	return nil
}

// Terminate moves to StateTerminated with reason.
func (m *Machine) Terminate(reason Reason) error {
	if err := (Transition{From: m.state, To: StateTerminated}).Validate(); err != nil {
		return err
	}
	m.state = StateTerminated
	m.reason = reason
	m.steps++
	return nil
}
