package diary

import (
	"testing"
	"time"

	"github.com/stellarlinkco/daybook/internal/config"
)

func TestShouldTriggerModes(t *testing.T) {
	now := time.Date(2026, 3, 4, 18, 0, 0, 0, time.Local)
	recent := now.Add(-time.Hour)
	stale := now.Add(-8 * time.Hour)

	policy := func(mode string) config.PolicyConfig {
		return config.PolicyConfig{Mode: mode, MessageThreshold: 10, TimeIntervalHours: 6}
	}

	cases := []struct {
		name        string
		mode        string
		pending     int
		lastSummary time.Time
		want        bool
	}{
		{"message mode above threshold", "message", 12, recent, true},
		{"message mode below threshold", "message", 3, stale, false},
		{"time mode interval elapsed", "time", 0, stale, true},
		{"time mode interval not elapsed", "time", 100, recent, false},
		{"time mode no prior summary", "time", 0, time.Time{}, true},
		{"both requires both", "both", 12, recent, false},
		{"both satisfied", "both", 12, stale, true},
		{"any on messages alone", "any", 12, recent, true},
		{"any on time alone", "any", 0, stale, true},
		{"any neither", "any", 3, recent, false},
		{"empty mode defaults to any", "", 12, recent, true},
		{"unknown mode fails closed", "sometimes", 100, stale, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := shouldTrigger(tc.pending, tc.lastSummary, now, policy(tc.mode))
			if got != tc.want {
				t.Fatalf("shouldTrigger = %v, want %v", got, tc.want)
			}
		})
	}
}

// both never fires when any doesn't: its trigger set is a subset.
func TestBothSubsetOfAny(t *testing.T) {
	now := time.Date(2026, 3, 4, 18, 0, 0, 0, time.Local)
	lastTimes := []time.Time{{}, now.Add(-time.Hour), now.Add(-6 * time.Hour), now.Add(-24 * time.Hour)}

	for pending := 0; pending <= 20; pending += 5 {
		for _, last := range lastTimes {
			both := shouldTrigger(pending, last, now, config.PolicyConfig{Mode: "both", MessageThreshold: 10, TimeIntervalHours: 6})
			any := shouldTrigger(pending, last, now, config.PolicyConfig{Mode: "any", MessageThreshold: 10, TimeIntervalHours: 6})
			if both && !any {
				t.Fatalf("both fired without any (pending=%d last=%v)", pending, last)
			}
		}
	}
}
