package domain

import "strings"

// Outcome is the terminal result of a single call attempt.
type Outcome string

const (
	// OutcomeAnswered means the lead picked up and engaged.
	OutcomeAnswered Outcome = "answered"
	// OutcomeMissed means the lead did not engage: no answer, busy,
	// rejected, or a provider-side failure. All of these feed the retry loop.
	OutcomeMissed Outcome = "missed"
	// OutcomeCompleted means an answered call ran to its natural end.
	OutcomeCompleted Outcome = "completed"
	// OutcomeUnknown means the status could not be classified.
	OutcomeUnknown Outcome = "unknown"
)

// missedReasons are end-reason fragments that mean the lead never engaged.
// SIP codes 486 (busy), 487 (cancelled), 480 (unavailable) included.
var missedReasons = []string{
	"no-answer", "noanswer", "rejected", "busy", "timeout",
	"cancelled", "canceled", "unavailable", "486", "487", "480",
}

// failedReasons are end-reason fragments that mean the provider failed.
// Treated the same as missed: the lead was not reached, so retry.
var failedReasons = []string{
	"failed", "error", "providerfault", "server-error", "503", "500",
}

// ClassifyCallEnd maps a gateway status update to a call outcome.
// answered tells whether the call ever connected; an ended call that never
// connected is missed no matter what the reason text says.
func ClassifyCallEnd(status, endedReason string, answered bool) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "answered":
		return OutcomeAnswered
	case "missed", "failed":
		return OutcomeMissed
	case "ended", "completed":
		if !answered {
			return OutcomeMissed
		}
		reason := strings.ToLower(endedReason)
		for _, k := range missedReasons {
			if strings.Contains(reason, k) {
				return OutcomeMissed
			}
		}
		for _, k := range failedReasons {
			if strings.Contains(reason, k) {
				return OutcomeMissed
			}
		}
		return OutcomeCompleted
	}
	return OutcomeUnknown
}

// ClassifyGatewayStatus maps a gateway call-detail status, as returned by
// a reconciliation poll, to an outcome. Calls still ringing or live return
// OutcomeUnknown so the reconciler leaves them alone.
func ClassifyGatewayStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "ended":
		return OutcomeCompleted
	case "failed", "busy", "no-answer":
		return OutcomeMissed
	}
	return OutcomeUnknown
}
