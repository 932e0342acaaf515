package diary

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/daybook/internal/config"
	"github.com/stellarlinkco/daybook/internal/identity"
	"github.com/stellarlinkco/daybook/internal/oracle"
	"github.com/stellarlinkco/daybook/internal/source"
)

// Manager owns the tier lifecycle for every conversation: trigger
// evaluation, today-tier regeneration, the nightly rollover and the
// self-healing of missing history. All document mutation happens under
// a per-conversation lock; store-wide sweeps additionally hold a global
// one.
type Manager struct {
	cfg      *config.Config
	store    *Store
	fetcher  source.Fetcher
	oracle   oracle.Oracle
	identity identity.Provider

	locks   *lockPool
	sweepMu sync.Mutex

	checkedMu sync.Mutex
	checked   map[string]bool

	now func() time.Time
}

func NewManager(cfg *config.Config, store *Store, fetcher source.Fetcher, o oracle.Oracle, id identity.Provider) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		oracle:   o,
		identity: id,
		locks:    newLockPool(),
		checked:  make(map[string]bool),
		now:      time.Now,
	}
}

func (m *Manager) contextLimit() int {
	return m.cfg.Diary.ContextLimitK * 1000
}

func (m *Manager) policyFor(chatType string) config.PolicyConfig {
	if chatType == "private" {
		return m.cfg.Diary.Private
	}
	return m.cfg.Diary.Group
}

// periodFor shares buckets with the time-of-day budget ratio.
func periodFor(now time.Time) string {
	switch h := now.Hour(); {
	case h < 8:
		return "morning"
	case h < 16:
		return "midday"
	default:
		return "evening"
	}
}

// CheckAndTrigger evaluates the trigger policy for a conversation and,
// when due, regenerates the today tier. Returns whether a generation
// ran and succeeded. All failures are logged and reported as false;
// nothing is mutated on failure, so the next trigger retries the same
// expanded window.
func (m *Manager) CheckAndTrigger(ctx context.Context, info ConversationInfo) bool {
	if !m.cfg.Diary.Enabled || !m.cfg.ChatTypeEnabled(info.ChatType) {
		return false
	}

	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	doc, err := m.store.Load(info, formatDate(now))
	if err != nil {
		log.Printf("[diary] load %s: %v", info.Key, err)
		return false
	}

	pending, err := m.pendingLocked(ctx, doc, info, now)
	if err != nil {
		log.Printf("[diary] pending count %s: %v", info.Key, err)
		return false
	}

	var lastSummary time.Time
	if doc.LastSummaryTime != nil {
		lastSummary = *doc.LastSummaryTime
	}
	if !shouldTrigger(pending, lastSummary, now, m.policyFor(info.ChatType)) {
		return false
	}

	return m.generateLocked(ctx, info, doc, TierToday, now)
}

// Trigger regenerates the today tier immediately, bypassing the
// policy. Used by the administrative surface.
func (m *Manager) Trigger(ctx context.Context, info ConversationInfo) bool {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	doc, err := m.store.Load(info, formatDate(now))
	if err != nil {
		log.Printf("[diary] load %s: %v", info.Key, err)
		return false
	}
	return m.generateLocked(ctx, info, doc, TierToday, now)
}

// TriggerDetached runs CheckAndTrigger in a background goroutine with
// its own error boundary, so a panic or failure there can never affect
// the caller.
func (m *Manager) TriggerDetached(info ConversationInfo) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[diary] background trigger for %s panicked: %v", info.Key, r)
			}
		}()
		m.CheckAndTrigger(context.Background(), info)
	}()
}

// generateLocked regenerates one tier of doc from that date's full raw
// window. The caller holds the conversation lock. LastSummaryTime only
// advances after a successful today-tier generation.
func (m *Manager) generateLocked(ctx context.Context, info ConversationInfo, doc *DailyDocument, tier string, now time.Time) bool {
	persona, err := m.identity.Identity(info.Key, info.ChatType)
	if err != nil {
		log.Printf("[diary] identity for %s: %v", info.Key, err)
		return false
	}
	if strings.TrimSpace(persona) == "" {
		log.Printf("[diary] no identity configured, generation disabled for %s", info.Key)
		return false
	}

	day, err := time.ParseInLocation(dateLayout, doc.Date, now.Location())
	if err != nil {
		log.Printf("[diary] bad document date %q for %s", doc.Date, info.Key)
		return false
	}
	start := startOfDay(day)
	end := start.AddDate(0, 0, 1)
	period := "history"
	if formatDate(now) == doc.Date {
		end = now
		period = periodFor(now)
	}

	msgs, err := source.FetchWindow(ctx, m.fetcher, info.Key, start, end)
	if err != nil {
		log.Printf("[diary] fetch %s: %v", info.Key, err)
		return false
	}
	if len(msgs) == 0 {
		return false
	}

	budget := effectiveBudget(m.cfg, info.ChatType, tier, now)
	content, err := summarizeBatch(ctx, m.oracle, msgs, persona, info.ChatType, tier, period, budget, m.contextLimit())
	if err != nil {
		log.Printf("[diary] summarize %s %s: %v", info.Key, tier, err)
		return false
	}

	version := &TierVersion{
		Content:   content,
		WordCount: wordCount(content),
	}
	switch tier {
	case TierToday:
		ts := now
		version.UpdatedAt = &ts
		version.MessageCount = len(msgs)
		doc.TodayVersion = version
		if doc.LastSummaryTime == nil || now.After(*doc.LastSummaryTime) {
			doc.LastSummaryTime = &ts
		}
	case TierYesterday:
		ts := now
		version.CreatedAt = &ts
		doc.YesterdayVersion = version
	case TierOlder:
		ts := now
		version.CreatedAt = &ts
		doc.OlderVersion = version
	default:
		log.Printf("[diary] unknown tier %q", tier)
		return false
	}
	doc.Metadata.Identity = persona

	if err := m.store.Save(info, doc); err != nil {
		log.Printf("[diary] save %s %s: %v", info.Key, doc.Date, err)
	}
	log.Printf("[diary] generated %s tier for %s (%d messages, %d words)", tier, info.Key, len(msgs), version.WordCount)
	return true
}

// pendingLocked counts messages since the last successful summary, or
// since the start of the day when none exists yet.
func (m *Manager) pendingLocked(ctx context.Context, doc *DailyDocument, info ConversationInfo, now time.Time) (int, error) {
	start := startOfDay(now)
	if doc.LastSummaryTime != nil && doc.LastSummaryTime.After(start) {
		start = *doc.LastSummaryTime
	}
	return source.CountWindow(ctx, m.fetcher, info.Key, start, now)
}

// PendingCount reports how many messages have arrived since the last
// successful summary. Failures show as zero.
func (m *Manager) PendingCount(ctx context.Context, info ConversationInfo) int {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	doc, err := m.store.Load(info, formatDate(now))
	if err != nil {
		log.Printf("[diary] load %s: %v", info.Key, err)
		return 0
	}
	pending, err := m.pendingLocked(ctx, doc, info, now)
	if err != nil {
		log.Printf("[diary] pending count %s: %v", info.Key, err)
		return 0
	}
	return pending
}

// CombinedContext assembles the three tiers into one block for prompt
// injection. Missing archival steps fall back to finer-grained content
// from the same document, so a skipped rollover never leaves a hard
// gap. The first call per conversation in a process lifetime backfills
// missing history before answering.
func (m *Manager) CombinedContext(ctx context.Context, info ConversationInfo) string {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	m.ensureHistoryLocked(ctx, info)

	now := m.now()
	today := m.loadQuiet(info, formatDate(now))
	yesterday := m.loadQuiet(info, formatDate(now.AddDate(0, 0, -1)))
	dayBefore := m.loadQuiet(info, formatDate(now.AddDate(0, 0, -2)))

	var sections []string
	if today != nil && !today.TodayVersion.Empty() {
		sections = append(sections, "【today】\n"+today.TodayVersion.Content)
	}
	if text := firstContent(yesterday, TierYesterday, TierToday); text != "" {
		sections = append(sections, "【yesterday】\n"+text)
	}
	if text := firstContent(dayBefore, TierOlder, TierYesterday, TierToday); text != "" {
		sections = append(sections, "【older】\n"+text)
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func (m *Manager) loadQuiet(info ConversationInfo, date string) *DailyDocument {
	doc, err := m.store.Load(info, date)
	if err != nil {
		log.Printf("[diary] load %s %s: %v", info.Key, date, err)
		return nil
	}
	return doc
}

// firstContent walks the fallback chain for a document and returns the
// first non-empty tier's content.
func firstContent(doc *DailyDocument, tiers ...string) string {
	if doc == nil {
		return ""
	}
	for _, tier := range tiers {
		if v := doc.Tier(tier); !v.Empty() {
			return v.Content
		}
	}
	return ""
}

// Clear removes every persisted document for a conversation.
func (m *Manager) Clear(info ConversationInfo) error {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	if err := m.store.RemoveConversation(info); err != nil {
		return fmt.Errorf("clear %s: %w", info.Key, err)
	}
	m.checkedMu.Lock()
	delete(m.checked, info.Key)
	m.checkedMu.Unlock()
	return nil
}

// RefreshAll force-regenerates all three tiers for a conversation:
// today from today's raw window, yesterday and older by rebuilding the
// prior dates' archives. Returns how many of the three tiers were
// rebuilt successfully.
func (m *Manager) RefreshAll(ctx context.Context, info ConversationInfo) int {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	refreshed := 0
	if doc := m.loadQuiet(info, formatDate(now)); doc != nil && m.generateLocked(ctx, info, doc, TierToday, now) {
		refreshed++
	}
	if m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -1)), TierYesterday, true) {
		refreshed++
	}
	if m.ensureTierLocked(ctx, info, formatDate(now.AddDate(0, 0, -2)), TierOlder, true) {
		refreshed++
	}
	m.copyForwardLocked(info, now)
	return refreshed
}

// Status renders a per-tier summary line for the administrative
// surface.
func (m *Manager) Status(info ConversationInfo) string {
	unlock := m.locks.Lock(info.Key)
	defer unlock()

	now := m.now()
	doc := m.loadQuiet(info, formatDate(now))
	if doc == nil {
		return "no diary data"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "date: %s\n", doc.Date)
	b.WriteString(tierStatus(doc, TierToday))
	b.WriteString(tierStatus(doc, TierYesterday))
	b.WriteString(tierStatus(doc, TierOlder))
	if doc.LastSummaryTime != nil {
		fmt.Fprintf(&b, "last summary: %s\n", doc.LastSummaryTime.Format("15:04:05"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func tierStatus(doc *DailyDocument, tier string) string {
	v := doc.Tier(tier)
	if v.Empty() {
		if alt := populatedSibling(doc, tier); alt != "" {
			return fmt.Sprintf("%s: empty (%s available)\n", tier, alt)
		}
		return fmt.Sprintf("%s: empty\n", tier)
	}
	extra := ""
	if v.MessageCount > 0 {
		extra = fmt.Sprintf(", %d messages", v.MessageCount)
	}
	return fmt.Sprintf("%s: %d words%s\n", tier, v.WordCount, extra)
}

// populatedSibling names the first other tier in the document that
// holds content, so a missing tier's status can point readers at it.
func populatedSibling(doc *DailyDocument, tier string) string {
	for _, t := range []string{TierToday, TierYesterday, TierOlder} {
		if t != tier && !doc.Tier(t).Empty() {
			return t
		}
	}
	return ""
}

// PruneExpired removes dated documents older than the retention window
// for every known conversation, then drops the same span from the raw
// message log when the source supports it. Runs only when explicitly
// invoked.
func (m *Manager) PruneExpired(ctx context.Context) (int, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	infos, err := m.store.Conversations()
	if err != nil {
		return 0, err
	}

	now := m.now()
	total := 0
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		unlock := m.locks.Lock(info.Key)
		n, err := m.store.PruneExpired(info, m.cfg.Diary.RetentionDays, now)
		unlock()
		if err != nil {
			log.Printf("[diary] prune %s: %v", info.Key, err)
			continue
		}
		total += n
	}
	if total > 0 {
		log.Printf("[diary] pruned %d expired documents", total)
	}

	if pruner, ok := m.fetcher.(source.Pruner); ok {
		cutoff := startOfDay(now).AddDate(0, 0, -m.cfg.Diary.RetentionDays)
		n, err := pruner.Prune(cutoff)
		if err != nil {
			log.Printf("[diary] prune message log: %v", err)
		} else if n > 0 {
			log.Printf("[diary] pruned %d expired messages", n)
		}
	}
	return total, nil
}
