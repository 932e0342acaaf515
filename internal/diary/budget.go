package diary

import (
	"time"

	"github.com/stellarlinkco/daybook/internal/config"
)

// budgetFor returns the static word budget for a chat type and tier.
func budgetFor(cfg *config.Config, chatType, tier string) int {
	budget := cfg.Diary.GroupBudget
	if chatType == "private" {
		budget = cfg.Diary.PrivateBudget
	}
	switch tier {
	case TierToday:
		return budget.Today
	case TierYesterday:
		return budget.Yesterday
	case TierOlder:
		return budget.Older
	}
	return 0
}

// timeOfDayRatio scales the today budget with the local clock so a
// morning summary stays short and an evening one may use the full
// allowance. Applied to the today tier only.
func timeOfDayRatio(now time.Time) float64 {
	switch h := now.Hour(); {
	case h < 8:
		return 0.33
	case h < 16:
		return 0.67
	default:
		return 1.0
	}
}

// effectiveBudget applies the time-of-day ratio for the today tier and
// leaves archival tiers untouched.
func effectiveBudget(cfg *config.Config, chatType, tier string, now time.Time) int {
	base := budgetFor(cfg, chatType, tier)
	if tier != TierToday {
		return base
	}
	return int(float64(base) * timeOfDayRatio(now))
}
