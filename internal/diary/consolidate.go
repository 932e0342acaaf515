package diary

import (
	"context"
	"log"
	"time"
)

// Consolidate is the nightly rollover: for every known conversation it
// archives the prior day's today content into that day's yesterday
// tier, the day before's into an older tier, and copies both forward
// into the current date's document so reads stay single-file. The
// sweep is idempotent; days with nothing to archive are skipped.
func (m *Manager) Consolidate(ctx context.Context) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	infos, err := m.store.Conversations()
	if err != nil {
		log.Printf("[diary] consolidation scan: %v", err)
		return
	}

	archived := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			log.Printf("[diary] consolidation aborted: %v", err)
			return
		}
		if m.consolidateOne(ctx, info) {
			archived++
		}
	}
	log.Printf("[diary] consolidation complete: %d/%d conversations archived", archived, len(infos))
}

func (m *Manager) consolidateOne(ctx context.Context, info ConversationInfo) bool {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	did := m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -1)), TierYesterday, false)
	m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -2)), TierOlder, false)
	m.copyForwardLocked(info, now)
	return did
}

// copyForwardLocked mirrors the prior dates' archived tiers into the
// current date's document so CombinedContext can usually answer from
// one file. The caller holds the conversation lock.
func (m *Manager) copyForwardLocked(info ConversationInfo, now time.Time) {
	yesterdayDoc := m.loadQuiet(info, formatDate(now.AddDate(0, 0, -1)))
	dayBeforeDoc := m.loadQuiet(info, formatDate(now.AddDate(0, 0, -2)))

	var fromYesterday, fromDayBefore *TierVersion
	if yesterdayDoc != nil && !yesterdayDoc.YesterdayVersion.Empty() {
		fromYesterday = yesterdayDoc.YesterdayVersion
	}
	if dayBeforeDoc != nil && !dayBeforeDoc.OlderVersion.Empty() {
		fromDayBefore = dayBeforeDoc.OlderVersion
	}
	if fromYesterday == nil && fromDayBefore == nil {
		return
	}

	cur := m.loadQuiet(info, formatDate(now))
	if cur == nil {
		return
	}
	changed := false
	if fromYesterday != nil && cur.YesterdayVersion.Empty() {
		copied := *fromYesterday
		cur.YesterdayVersion = &copied
		changed = true
	}
	if fromDayBefore != nil && cur.OlderVersion.Empty() {
		copied := *fromDayBefore
		cur.OlderVersion = &copied
		changed = true
	}
	if !changed {
		return
	}
	if err := m.store.Save(info, cur); err != nil {
		log.Printf("[diary] save %s %s: %v", info.Key, cur.Date, err)
	}
}
