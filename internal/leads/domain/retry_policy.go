package domain

import "time"

// Default retry parameters. Three call attempts with short, growing gaps.
const DefaultMaxAttempts = 3

// DefaultRetryDelays is the gap before each retry attempt: attempt 2 fires
// 2 minutes after the first miss, attempt 3 fires 4 minutes after the
// second, and so on.
var DefaultRetryDelays = []time.Duration{
	2 * time.Minute,
	4 * time.Minute,
	6 * time.Minute,
}

// RetryPolicy decides whether and when a missed call is retried.
// It is pure and deterministic: the same inputs always give the same answer.
type RetryPolicy struct {
	// MaxAttempts is the total number of call attempts, the first included.
	MaxAttempts int
	// Delays holds the wait before each retry. Delays[0] applies after the
	// first miss.
	Delays []time.Duration
	// RepeatLast keeps reusing the final delay when attempts outnumber
	// delays. When false, running past the list exhausts the policy.
	RepeatLast bool
}

// DefaultRetryPolicy returns the stock three-attempt policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delays:      DefaultRetryDelays,
	}
}

// NextDelay returns the wait before the next call given the number of
// attempts already made. The second return is false when the lead has no
// attempts left.
func (p RetryPolicy) NextDelay(attemptsMade int) (time.Duration, bool) {
	if attemptsMade < 1 || attemptsMade >= p.MaxAttempts {
		return 0, false
	}
	idx := attemptsMade - 1
	if idx >= len(p.Delays) {
		if !p.RepeatLast || len(p.Delays) == 0 {
			return 0, false
		}
		idx = len(p.Delays) - 1
	}
	return p.Delays[idx], true
}

// CanRetry reports whether another call attempt is allowed.
func (p RetryPolicy) CanRetry(attemptsMade int) bool {
	_, ok := p.NextDelay(attemptsMade)
	return ok
}
