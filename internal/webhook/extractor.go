package webhook

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IntentExtractor scans call summaries for an explicit callback request
// via best-effort pattern matching. Extraction is deliberately
// conservative: anything ambiguous yields no callback rather than a
// wrong one.
type IntentExtractor struct{}

// Callback request patterns. The gateway's summaries phrase these as
// "asked to be called back at 3pm", "call me back in 2 hours",
// "call back tomorrow at 10:30".
var (
	relativeCallbackRegex = regexp.MustCompile(`(?i)call(?:ed)?\s+(?:me\s+|him\s+|her\s+|them\s+)?back\s+in\s+(\d{1,3})\s+(minute|hour|day)s?`)
	clockCallbackRegex    = regexp.MustCompile(`(?i)call(?:ed)?\s+(?:me\s+|him\s+|her\s+|them\s+)?back\s+(tomorrow\s+)?(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// CallbackTime extracts a requested callback time from free text, relative
// to now. Returns nil when no callback request is found.
func (IntentExtractor) CallbackTime(text string, now time.Time) *time.Time {
	if text == "" {
		return nil
	}

	if m := relativeCallbackRegex.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return nil
		}
		var d time.Duration
		switch strings.ToLower(m[2]) {
		case "minute":
			d = time.Duration(n) * time.Minute
		case "hour":
			d = time.Duration(n) * time.Hour
		case "day":
			d = time.Duration(n) * 24 * time.Hour
		}
		at := now.Add(d)
		return &at
	}

	if m := clockCallbackRegex.FindStringSubmatch(text); m != nil {
		hour, err := strconv.Atoi(m[2])
		if err != nil {
			return nil
		}
		minute := 0
		if m[3] != "" {
			minute, err = strconv.Atoi(m[3])
			if err != nil || minute > 59 {
				return nil
			}
		}

		meridiem := strings.ToLower(strings.TrimSpace(m[4]))
		switch meridiem {
		case "pm":
			if hour < 1 || hour > 12 {
				return nil
			}
			if hour != 12 {
				hour += 12
			}
		case "am":
			if hour < 1 || hour > 12 {
				return nil
			}
			if hour == 12 {
				hour = 0
			}
		default:
			if hour > 23 {
				return nil
			}
			// A bare small hour without minutes or meridiem ("at 3") is
			// too ambiguous to act on.
			if m[3] == "" && hour < 8 {
				return nil
			}
		}

		at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if m[1] != "" {
			at = at.AddDate(0, 0, 1)
		} else if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return &at
	}

	return nil
}
