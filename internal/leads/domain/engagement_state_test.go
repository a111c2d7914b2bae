package domain

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	path := []State{
		StatePending, StateDialing, StateInProgress, StateMissed,
		StateRetrying, StateDialing, StateInProgress, StateAnswered,
		StateCompleted,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", path[i], path[i+1])
		}
	}
}

func TestCanTransitionEscalationChain(t *testing.T) {
	chain := []State{StateMissed, StateEscalatingChat, StateEscalatingEmail, StateExhausted}
	for i := 0; i < len(chain)-1; i++ {
		if !CanTransition(chain[i], chain[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", chain[i], chain[i+1])
		}
	}
}

func TestCanTransitionRejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StatePending, StateInProgress},
		{StatePending, StateAnswered},
		{StateCompleted, StateDialing},
		{StateExhausted, StateDialing},
		{StateAnswered, StateDialing},
		{StateEscalatingEmail, StateEscalatingChat},
		{StateRetrying, StateMissed},
	}
	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestInvalidPhoneSkipsRetryLoop(t *testing.T) {
	if !CanTransition(StateDialing, StateEscalatingChat) {
		t.Error("dialing must be able to escalate directly on permanent failure")
	}
}

func TestRepliesResolveEscalatedLeads(t *testing.T) {
	for _, from := range []State{StateEscalatingChat, StateEscalatingEmail, StateExhausted} {
		if !CanTransition(from, StateAnswered) {
			t.Errorf("a reply should resolve a lead in %s", from)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []State{StateAnswered, StateCompleted, StateExhausted}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	active := []State{StatePending, StateDialing, StateInProgress, StateMissed, StateRetrying, StateEscalatingChat, StateEscalatingEmail}
	for _, s := range active {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNextEscalation(t *testing.T) {
	cases := []struct {
		from        State
		wantState   State
		wantChannel Channel
	}{
		{StateMissed, StateEscalatingChat, ChannelChat},
		{StateDialing, StateEscalatingChat, ChannelChat},
		{StateEscalatingChat, StateEscalatingEmail, ChannelEmail},
		{StateEscalatingEmail, StateExhausted, ""},
	}
	for _, tc := range cases {
		gotState, gotChannel, ok := NextEscalation(tc.from)
		if !ok {
			t.Errorf("NextEscalation(%s) should succeed", tc.from)
			continue
		}
		if gotState != tc.wantState || gotChannel != tc.wantChannel {
			t.Errorf("NextEscalation(%s) = (%s, %s), want (%s, %s)", tc.from, gotState, gotChannel, tc.wantState, tc.wantChannel)
		}
	}
	if _, _, ok := NextEscalation(StateCompleted); ok {
		t.Error("completed leads must not escalate")
	}
}
