package runstate

import (
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		state State
		valid bool
	}{
		{StateInit, true},
		{StateCallModel, true},
		{StateRoute, true},
		{StateExecuteTools, true},
		{StateTerminated, true},
		{State("pending_api"), false},
		{State(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_CanTransitionTo(t *testing.T) {
	valid := make(map[Transition]bool)
	for _, tr := range ValidTransitions() {
		valid[tr] = true
	}

	for _, from := range AllStates() {
		for _, to := range AllStates() {
			tr := Transition{From: from, To: to}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				if got := from.CanTransitionTo(to); got != valid[tr] {
					t.Errorf("CanTransitionTo() = %v, want %v", got, valid[tr])
				}
				if err := tr.Validate(); (err == nil) != valid[tr] {
					t.Errorf("Validate() error = %v, want valid = %v", err, valid[tr])
				}
			})
		}
	}
}

func TestTransition_ValidateUnknownStates(t *testing.T) {
	if err := (Transition{From: "bogus", To: StateRoute}).Validate(); err == nil {
		t.Error("unknown source state should be rejected")
	}
	if err := (Transition{From: StateInit, To: "bogus"}).Validate(); err == nil {
		t.Error("unknown target state should be rejected")
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name       string
		stopReason string
		tools      int
		want       State
	}{
		{"final answer", "end_turn", 0, StateTerminated},
		{"tool use", "tool_use", 2, StateExecuteTools},
		{"end turn wins over stray tool blocks", "end_turn", 1, StateTerminated},
		{"max tokens without tools", "max_tokens", 0, StateTerminated},
		{"max tokens with tools", "max_tokens", 1, StateExecuteTools},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.stopReason, tt.tools); got != tt.want {
				t.Errorf("Route(%q, %d) = %s, want %s", tt.stopReason, tt.tools, got, tt.want)
			}
		})
	}
}

func TestMachine(t *testing.T) {
	m := NewMachine()
	steps := []State{StateCallModel, StateRoute, StateExecuteTools, StateCallModel, StateRoute}
	for _, s := range steps {
		if err := m.Advance(s); err != nil {
			t.Fatalf("Advance(%s) error = %v", s, err)
		}
	}
	if err := m.Advance(StateCallModel); err == nil {
		t.Error("route -> call_model should be rejected")
	}
	if err := m.Advance(StateTerminated); err == nil {
		t.Error("Advance(terminated) should require Terminate")
	}
	if err := m.Terminate(ReasonDone); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if m.State() != StateTerminated || m.Reason() != ReasonDone {
		t.Errorf("state = %s, reason = %s", m.State(), m.Reason())
	}
	if m.Steps() != len(steps)+1 {
		t.Errorf("Steps() = %d, want %d", m.Steps(), len(steps)+1)
	}
	if err := m.Terminate(ReasonError); err == nil {
		t.Error("terminated machine should not transition again")
	}
}

func TestReason_IsFailure(t *testing.T) {
	tests := map[Reason]bool{
		ReasonDone:           false,
		ReasonMaxIterations:  false,
		ReasonCached:         false,
		ReasonError:          true,
		ReasonCancelled:      true,
		ReasonBudgetRejected: true,
	}
	for r, want := range tests {
		if got := r.IsFailure(); got != want {
			t.Errorf("%s.IsFailure() = %v, want %v", r, got, want)
		}
	}
}
