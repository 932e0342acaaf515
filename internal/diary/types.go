// Package diary maintains, per conversation, a rolling three-tier
// summary of recent dialogue: a "today" tier regenerated through the
// day, and "yesterday"/"older" tiers produced by the nightly rollover.
package diary

import (
	"time"
	"unicode/utf8"
)

const (
	TierToday     = "today"
	TierYesterday = "yesterday"
	TierOlder     = "older"
)

const dateLayout = "2006-01-02"

// TierVersion is one tier's content plus bookkeeping. UpdatedAt moves
// with every regeneration of the today tier; CreatedAt is set once when
// a tier is archived. MessageCount is tracked for the today tier only.
type TierVersion struct {
	Content      string     `json:"content"`
	WordCount    int        `json:"word_count"`
	MessageCount int        `json:"message_count,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

func (v *TierVersion) Empty() bool {
	return v == nil || v.Content == ""
}

// Metadata ties a document back to its conversation and the persona it
// was written under.
type Metadata struct {
	Identity     string `json:"identity,omitempty"`
	ChatType     string `json:"chat_type"`
	Conversation string `json:"conversation"`
}

// DailyDocument is the unit of persistence, one per conversation per
// calendar date. LastSummaryTime marks the end of the window already
// folded into the today tier; it only advances after a successful
// generation.
type DailyDocument struct {
	Date             string       `json:"date"`
	TodayVersion     *TierVersion `json:"today_version,omitempty"`
	YesterdayVersion *TierVersion `json:"yesterday_version,omitempty"`
	OlderVersion     *TierVersion `json:"older_version,omitempty"`
	LastSummaryTime  *time.Time   `json:"last_summary_time,omitempty"`
	Metadata         Metadata     `json:"metadata"`
}

func NewDailyDocument(date string, meta Metadata) *DailyDocument {
	return &DailyDocument{Date: date, Metadata: meta}
}

// Tier returns the named tier slot, nil when absent or unknown.
func (d *DailyDocument) Tier(name string) *TierVersion {
	switch name {
	case TierToday:
		return d.TodayVersion
	case TierYesterday:
		return d.YesterdayVersion
	case TierOlder:
		return d.OlderVersion
	}
	return nil
}

// ConversationInfo identifies a conversation on disk. StableID never
// changes; DisplayName may, and the resolver follows renames.
type ConversationInfo struct {
	Key         string
	ChatType    string
	StableID    string
	DisplayName string
}

// wordCount is the derived length stored alongside tier content.
func wordCount(s string) int {
	return utf8.RuneCountInString(s)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
