package domain

import "testing"

func TestClassifyCallEndExplicitStatuses(t *testing.T) {
	if got := ClassifyCallEnd("answered", "", false); got != OutcomeAnswered {
		t.Errorf("answered: got %s", got)
	}
	if got := ClassifyCallEnd("missed", "", false); got != OutcomeMissed {
		t.Errorf("missed: got %s", got)
	}
	if got := ClassifyCallEnd("failed", "", false); got != OutcomeMissed {
		t.Errorf("failed: got %s", got)
	}
}

func TestClassifyCallEndByReason(t *testing.T) {
	missed := []string{
		"customer-no-answer", "busy", "rejected", "timeout",
		"call-cancelled", "sip-486", "sip-487", "sip-480",
		"provider-failed", "providerfault", "server-error", "503",
	}
	for _, reason := range missed {
		if got := ClassifyCallEnd("ended", reason, true); got != OutcomeMissed {
			t.Errorf("ended/%s: got %s, want missed", reason, got)
		}
	}
	if got := ClassifyCallEnd("ended", "customer-ended-call", true); got != OutcomeCompleted {
		t.Errorf("clean hangup should complete, got %s", got)
	}
}

func TestClassifyCallEndNeverConnected(t *testing.T) {
	// An ended call that never connected is missed regardless of reason.
	if got := ClassifyCallEnd("ended", "customer-ended-call", false); got != OutcomeMissed {
		t.Errorf("unconnected ended call: got %s, want missed", got)
	}
}

func TestClassifyCallEndUnknown(t *testing.T) {
	if got := ClassifyCallEnd("ringing", "", false); got != OutcomeUnknown {
		t.Errorf("ringing: got %s, want unknown", got)
	}
}

func TestClassifyGatewayStatus(t *testing.T) {
	cases := map[string]Outcome{
		"completed": OutcomeCompleted,
		"ended":     OutcomeCompleted,
		"failed":    OutcomeMissed,
		"busy":      OutcomeMissed,
		"no-answer": OutcomeMissed,
		"ringing":   OutcomeUnknown,
		"queued":    OutcomeUnknown,
	}
	for status, want := range cases {
		if got := ClassifyGatewayStatus(status); got != want {
			t.Errorf("ClassifyGatewayStatus(%q) = %s, want %s", status, got, want)
		}
	}
}
