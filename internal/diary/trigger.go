package diary

import (
	"log"
	"time"

	"github.com/stellarlinkco/daybook/internal/config"
)

// shouldTrigger decides whether the today tier is due for regeneration.
// It is a pure function of the pending count, the last successful
// summary time (zero means none yet) and the policy.
//
// Modes: "message" fires on volume alone, "time" on elapsed interval
// alone, "both" requires both, "any" either. An unknown mode fails
// closed with a warning.
func shouldTrigger(pending int, lastSummary, now time.Time, policy config.PolicyConfig) bool {
	messageReady := pending >= policy.MessageThreshold
	timeReady := lastSummary.IsZero() ||
		now.Sub(lastSummary) >= time.Duration(policy.TimeIntervalHours)*time.Hour

	switch policy.Mode {
	case "message":
		return messageReady
	case "time":
		return timeReady
	case "both":
		return messageReady && timeReady
	case "any", "":
		return messageReady || timeReady
	default:
		log.Printf("[diary] unknown trigger mode %q, not triggering", policy.Mode)
		return false
	}
}
