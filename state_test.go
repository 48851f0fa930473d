package asynctrack

import "testing"

func TestFastStateTryTransition(t *testing.T) {
	s := NewFastState()
	if s.Load() != StateAwake {
		t.Fatalf("initial state = %v, want Awake", s.Load())
	}

	if !s.TryTransition(StateAwake, StateRunning) {
		t.Fatal("TryTransition(Awake->Running) should succeed from the initial state")
	}
	if s.TryTransition(StateAwake, StateRunning) {
		t.Fatal("TryTransition(Awake->Running) should fail once already Running")
	}
	if s.Load() != StateRunning {
		t.Fatalf("state = %v, want Running", s.Load())
	}
}

func TestFastStateTransitionAny(t *testing.T) {
	s := NewFastState()
	s.Store(StateSleeping)

	if !s.TransitionAny([]LoopState{StateRunning, StateSleeping}, StateTerminating) {
		t.Fatal("TransitionAny should succeed when the current state is in validFrom")
	}
	if s.Load() != StateTerminating {
		t.Fatalf("state = %v, want Terminating", s.Load())
	}
}

func TestFastStateIsRunningAndCanAcceptWork(t *testing.T) {
	s := NewFastState()
	if !s.CanAcceptWork() {
		t.Fatal("a freshly created FastState should accept work")
	}
	if s.IsRunning() {
		t.Fatal("Awake is not a running state")
	}

	s.Store(StateRunning)
	if !s.IsRunning() || !s.CanAcceptWork() {
		t.Fatal("Running should be both IsRunning and CanAcceptWork")
	}

	s.Store(StateTerminated)
	if s.IsRunning() || s.CanAcceptWork() {
		t.Fatal("Terminated must reject both IsRunning and CanAcceptWork")
	}
	if !s.IsTerminal() {
		t.Fatal("IsTerminal should be true once Terminated")
	}
}

func TestLoopStateString(t *testing.T) {
	cases := map[LoopState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		LoopState(99):    "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("LoopState(%d).String() = %q, want %q", state, got, want)
		}
	}
}
