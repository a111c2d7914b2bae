// Package domain provides core business rules for the leads bounded context.
package domain

// State is the engagement lifecycle state of a lead.
type State string

const (
	// StatePending means the lead is registered and waiting for its first call.
	StatePending State = "pending"
	// StateDialing means a call placement is being handed to the gateway.
	StateDialing State = "dialing"
	// StateInProgress means the gateway accepted the call and it is live.
	StateInProgress State = "in_progress"
	// StateAnswered means the lead picked up and engaged.
	StateAnswered State = "answered"
	// StateMissed means the call ended without the lead engaging.
	StateMissed State = "missed"
	// StateRetrying means a missed lead is waiting for its next call attempt.
	StateRetrying State = "retrying"
	// StateEscalatingChat means call attempts are exhausted and a chat
	// message is the active channel.
	StateEscalatingChat State = "escalating_chat"
	// StateEscalatingEmail means chat was tried and email is the active channel.
	StateEscalatingEmail State = "escalating_email"
	// StateExhausted means every channel was tried without a response.
	StateExhausted State = "exhausted"
	// StateCompleted means the engagement finished with a full call report.
	StateCompleted State = "completed"
)

// Channel identifies an engagement channel.
type Channel string

const (
	ChannelCall  Channel = "call"
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

var knownStates = map[State]struct{}{
	StatePending: {}, StateDialing: {}, StateInProgress: {}, StateAnswered: {},
	StateMissed: {}, StateRetrying: {}, StateEscalatingChat: {},
	StateEscalatingEmail: {}, StateExhausted: {}, StateCompleted: {},
}

// IsKnownState reports whether s is a recognized engagement state.
func IsKnownState(s State) bool {
	_, ok := knownStates[s]
	return ok
}

// allowedTransitions is the exhaustive transition table. A lead may only
// move along these edges; everything else is an invariant violation.
var allowedTransitions = map[State]map[State]struct{}{
	StatePending: {
		StateDialing: {},
	},
	StateDialing: {
		StateInProgress: {},
		StateMissed:     {},
		// Invalid destination numbers skip the retry loop entirely.
		StateEscalatingChat: {},
	},
	StateInProgress: {
		StateAnswered:  {},
		StateMissed:    {},
		StateCompleted: {},
	},
	StateMissed: {
		StateRetrying:       {},
		StateEscalatingChat: {},
	},
	StateRetrying: {
		StateDialing: {},
	},
	StateEscalatingChat: {
		StateEscalatingEmail: {},
		// A chat reply resolves the lead.
		StateAnswered: {},
	},
	StateEscalatingEmail: {
		StateExhausted: {},
		// An email reply resolves the lead.
		StateAnswered: {},
	},
	StateExhausted: {
		// A late reply can still resolve an exhausted lead.
		StateAnswered: {},
	},
	StateAnswered: {
		StateCompleted: {},
		// A lead that asked to be called back re-enters the retry loop.
		StateRetrying: {},
	},
	StateCompleted: {
		// A callback request extracted from the call report re-engages.
		StateRetrying: {},
	},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// IsTerminal reports whether no further outbound engagement should happen.
// Answered leads keep accepting the end-of-call report but are never dialed
// again.
func IsTerminal(s State) bool {
	switch s {
	case StateAnswered, StateCompleted, StateExhausted:
		return true
	}
	return false
}

// IsCallInFlight reports whether the lead has a call with the gateway that
// has not reached a terminal outcome yet. The reconciler watches these.
func IsCallInFlight(s State) bool {
	return s == StateDialing || s == StateInProgress
}

// NextEscalation returns the state that follows when the given channel
// fails to reach the lead, and the channel that state engages.
func NextEscalation(from State) (State, Channel, bool) {
	switch from {
	case StateMissed, StateDialing:
		return StateEscalatingChat, ChannelChat, true
	case StateEscalatingChat:
		return StateEscalatingEmail, ChannelEmail, true
	case StateEscalatingEmail:
		return StateExhausted, "", true
	}
	return "", "", false
}
