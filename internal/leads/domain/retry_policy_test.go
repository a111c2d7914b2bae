package domain

import (
	"testing"
	"time"
)

func TestDefaultRetryPolicySchedule(t *testing.T) {
	p := DefaultRetryPolicy()

	// Attempt 1 missed: retry after 2 minutes.
	d, ok := p.NextDelay(1)
	if !ok || d != 2*time.Minute {
		t.Fatalf("after first miss: got (%v, %v), want (2m, true)", d, ok)
	}

	// Attempt 2 missed: retry after 4 minutes.
	d, ok = p.NextDelay(2)
	if !ok || d != 4*time.Minute {
		t.Fatalf("after second miss: got (%v, %v), want (4m, true)", d, ok)
	}

	// Attempt 3 missed: exhausted.
	if _, ok := p.NextDelay(3); ok {
		t.Fatal("three attempts should exhaust the default policy")
	}
}

func TestNextDelayDeterministic(t *testing.T) {
	p := DefaultRetryPolicy()
	first, _ := p.NextDelay(2)
	second, _ := p.NextDelay(2)
	if first != second {
		t.Fatalf("NextDelay is not deterministic: %v vs %v", first, second)
	}
}

func TestNextDelayRepeatLast(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 6,
		Delays:      []time.Duration{time.Minute, 5 * time.Minute},
		RepeatLast:  true,
	}
	d, ok := p.NextDelay(4)
	if !ok || d != 5*time.Minute {
		t.Fatalf("repeat-last should reuse the final delay: got (%v, %v)", d, ok)
	}

	strict := p
	strict.RepeatLast = false
	if _, ok := strict.NextDelay(4); ok {
		t.Fatal("without repeat-last, running past the delay list exhausts the policy")
	}
}

func TestNextDelayBounds(t *testing.T) {
	p := DefaultRetryPolicy()
	if _, ok := p.NextDelay(0); ok {
		t.Error("zero attempts made is not a valid retry input")
	}
	if _, ok := p.NextDelay(-1); ok {
		t.Error("negative attempts made is not a valid retry input")
	}
	if p.CanRetry(p.MaxAttempts) {
		t.Error("reaching max attempts must stop retries")
	}
}
