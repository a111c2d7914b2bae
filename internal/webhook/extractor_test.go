package webhook

import (
	"testing"
	"time"
)

func TestCallbackTimeRelative(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	var x IntentExtractor

	cases := []struct {
		text string
		want time.Time
	}{
		{"Asked to call me back in 30 minutes.", now.Add(30 * time.Minute)},
		{"Please call back in 2 hours", now.Add(2 * time.Hour)},
		{"Lead requested we call him back in 3 days.", now.AddDate(0, 0, 3)},
	}
	for _, tc := range cases {
		got := x.CallbackTime(tc.text, now)
		if got == nil {
			t.Errorf("%q: no callback extracted", tc.text)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestCallbackTimeClock(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	var x IntentExtractor

	cases := []struct {
		text string
		want time.Time
	}{
		{"call me back at 3pm", time.Date(2026, 8, 31, 15, 0, 0, 0, time.UTC)},
		{"call back at 15:30", time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)},
		{"call me back tomorrow at 10:30", time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)},
		// 9am already passed today, so next day.
		{"call me back at 9am", time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)},
		{"call me back at 12pm", time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got := x.CallbackTime(tc.text, now)
		if got == nil {
			t.Errorf("%q: no callback extracted", tc.text)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("%q: got %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestCallbackTimeNoIntent(t *testing.T) {
	now := time.Now()
	var x IntentExtractor

	cases := []string{
		"",
		"Lead was not interested.",
		"Asked about pricing and said goodbye at 3pm.",
		"call me back at 3", // ambiguous bare hour
		"call me back in 0 hours",
	}
	for _, text := range cases {
		if got := x.CallbackTime(text, now); got != nil {
			t.Errorf("%q: extracted %v, want none", text, got)
		}
	}
}
