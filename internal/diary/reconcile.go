package diary

import (
	"context"
	"log"
	"strings"

	"github.com/stellarlinkco/daybook/internal/oracle"
)

// StartupCheck scans the whole store once at process start and
// backfills any missing yesterday/older tiers for conversations that
// already have today content. Safe to call more than once; already
// present tiers are never regenerated.
func (m *Manager) StartupCheck(ctx context.Context) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	infos, err := m.store.Conversations()
	if err != nil {
		log.Printf("[diary] startup scan: %v", err)
		return
	}

	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			log.Printf("[diary] startup check aborted: %v", err)
			return
		}
		unlock := m.locks.Lock(info.Key)
		m.ensureHistoryLocked(ctx, info)
		unlock()
	}
	log.Printf("[diary] startup check complete (%d conversations)", len(infos))
}

// ensureHistoryLocked backfills the yesterday and older tiers for one
// conversation, at most once per process lifetime. The caller holds
// the conversation lock.
func (m *Manager) ensureHistoryLocked(ctx context.Context, info ConversationInfo) {
	m.checkedMu.Lock()
	done := m.checked[info.Key]
	if !done {
		m.checked[info.Key] = true
	}
	m.checkedMu.Unlock()
	if done {
		return
	}

	now := m.now()
	m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -1)), TierYesterday, false)
	m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -2)), TierOlder, false)
}

// ensureTierLocked makes sure the named archival tier exists on the
// document for date. It prefers compacting finer-grained content
// already in that document; failing that it re-fetches the day's raw
// messages and summarizes them fresh. With force set an existing tier
// is rebuilt. Returns whether the tier holds content afterwards.
func (m *Manager) ensureTierLocked(ctx context.Context, info ConversationInfo, date, tier string, force bool) bool {
	doc := m.loadQuiet(info, date)
	if doc == nil {
		return false
	}
	if !force && !doc.Tier(tier).Empty() {
		return true
	}

	var sourceText string
	switch tier {
	case TierYesterday:
		sourceText = firstContent(doc, TierToday)
	case TierOlder:
		sourceText = firstContent(doc, TierYesterday, TierToday)
	default:
		return false
	}

	if sourceText != "" {
		return m.compressIntoLocked(ctx, info, doc, tier, sourceText)
	}
	return m.generateLocked(ctx, info, doc, tier, m.now())
}

// compressIntoLocked shrinks existing content into a coarser tier slot
// and persists the document.
func (m *Manager) compressIntoLocked(ctx context.Context, info ConversationInfo, doc *DailyDocument, tier, content string) bool {
	persona, err := m.identity.Identity(info.Key, info.ChatType)
	if err != nil {
		log.Printf("[diary] identity for %s: %v", info.Key, err)
		return false
	}
	if strings.TrimSpace(persona) == "" {
		log.Printf("[diary] no identity configured, compaction disabled for %s", info.Key)
		return false
	}

	budget := budgetFor(m.cfg, info.ChatType, tier)
	compressed, err := m.oracle.Compress(ctx, oracle.CompressRequest{
		Content:    content,
		Identity:   persona,
		WordBudget: budget,
		Tier:       tier,
	})
	if err != nil {
		log.Printf("[diary] compress %s %s %s: %v", info.Key, doc.Date, tier, err)
		return false
	}

	ts := m.now()
	version := &TierVersion{
		Content:   compressed,
		WordCount: wordCount(compressed),
		CreatedAt: &ts,
	}
	switch tier {
	case TierYesterday:
		doc.YesterdayVersion = version
	case TierOlder:
		doc.OlderVersion = version
	default:
		return false
	}

	if err := m.store.Save(info, doc); err != nil {
		log.Printf("[diary] save %s %s: %v", info.Key, doc.Date, err)
	}
	log.Printf("[diary] archived %s tier for %s %s (%d words)", tier, info.Key, doc.Date, version.WordCount)
	return true
}
