package diary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()

	updated := time.Date(2026, 3, 4, 15, 30, 0, 0, time.Local)
	created := time.Date(2026, 3, 4, 0, 10, 0, 0, time.Local)
	doc := NewDailyDocument("2026-03-04", Metadata{
		Identity:     "Core personality: attentive",
		ChatType:     "group",
		Conversation: info.Key,
	})
	doc.TodayVersion = &TierVersion{Content: "wrote some code", WordCount: 15, MessageCount: 42, UpdatedAt: &updated}
	doc.YesterdayVersion = &TierVersion{Content: "planned the week", WordCount: 16, CreatedAt: &created}
	ts := updated
	doc.LastSummaryTime = &ts

	if err := store.Save(info, doc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(info, "2026-03-04")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Date != doc.Date {
		t.Fatalf("date = %q", got.Date)
	}
	if got.TodayVersion.Content != doc.TodayVersion.Content ||
		got.TodayVersion.WordCount != doc.TodayVersion.WordCount ||
		got.TodayVersion.MessageCount != doc.TodayVersion.MessageCount {
		t.Fatalf("today tier mismatch: %+v", got.TodayVersion)
	}
	if !got.TodayVersion.UpdatedAt.Equal(updated) {
		t.Fatalf("updated_at = %v", got.TodayVersion.UpdatedAt)
	}
	if got.YesterdayVersion.Content != doc.YesterdayVersion.Content || !got.YesterdayVersion.CreatedAt.Equal(created) {
		t.Fatalf("yesterday tier mismatch: %+v", got.YesterdayVersion)
	}
	if got.OlderVersion != nil {
		t.Fatal("older tier should be absent")
	}
	if !got.LastSummaryTime.Equal(updated) {
		t.Fatalf("last_summary_time = %v", got.LastSummaryTime)
	}
	if got.Metadata != doc.Metadata {
		t.Fatalf("metadata mismatch: %+v", got.Metadata)
	}
}

func TestStoreLoadAbsentIsEmpty(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()

	doc, err := store.Load(info, "2026-03-04")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !doc.TodayVersion.Empty() || doc.LastSummaryTime != nil {
		t.Fatalf("expected empty document, got %+v", doc)
	}
	if doc.Metadata.Conversation != info.Key || doc.Metadata.ChatType != info.ChatType {
		t.Fatalf("metadata not initialized: %+v", doc.Metadata)
	}
}

func TestStoreQuarantinesCorruptFile(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	info := testInfo()

	dir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	path := documentPath(dir, "2026-03-04")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	doc, err := store.Load(info, "2026-03-04")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !doc.TodayVersion.Empty() {
		t.Fatal("corrupt file should yield a fresh document")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("corrupt file still in place")
	}

	entries, _ := os.ReadDir(dir)
	quarantined := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt.") {
			quarantined = true
		}
	}
	if !quarantined {
		t.Fatal("corrupt file was not quarantined")
	}
}

func TestStorePruneIncludesQuarantined(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)

	dir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	stale := formatDate(now.AddDate(0, 0, -9)) + ".json.corrupt.1700000000"
	fresh := formatDate(now) + ".json.corrupt.1700000001"
	for _, name := range []string{stale, fresh} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	removed, err := store.PruneExpired(info, 3, now)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() == stale {
			t.Fatal("expired quarantined file survived the sweep")
		}
	}
}

func TestStoreMigratesLegacyDocument(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()

	dir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	legacy := `{"summary": "an old flat diary entry", "updated_at": "2026-03-01T20:00:00+08:00"}`
	if err := os.WriteFile(documentPath(dir, "2026-03-01"), []byte(legacy), 0644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	doc, err := store.Load(info, "2026-03-01")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.TodayVersion.Empty() || doc.TodayVersion.Content != "an old flat diary entry" {
		t.Fatalf("legacy summary not migrated: %+v", doc.TodayVersion)
	}
	if doc.TodayVersion.WordCount != wordCount("an old flat diary entry") {
		t.Fatalf("word count = %d", doc.TodayVersion.WordCount)
	}
}

func TestConversationsScan(t *testing.T) {
	store := NewStore(t.TempDir())
	a := ConversationInfo{Key: "g-1", ChatType: "group", StableID: "1", DisplayName: "alpha"}
	b := ConversationInfo{Key: "p-2", ChatType: "private", StableID: "2", DisplayName: "bob"}

	for _, info := range []ConversationInfo{a, b} {
		doc, err := store.Load(info, "2026-03-04")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		doc.TodayVersion = &TierVersion{Content: "entry", WordCount: 5}
		if err := store.Save(info, doc); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	infos, err := store.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("found %d conversations, want 2", len(infos))
	}
	keys := map[string]bool{}
	for _, info := range infos {
		keys[info.Key] = true
	}
	if !keys["g-1"] || !keys["p-2"] {
		t.Fatalf("keys not recovered from metadata: %+v", infos)
	}
}

func TestWordCountIsRuneCount(t *testing.T) {
	if got := wordCount("今天写了代码"); got != 6 {
		t.Fatalf("wordCount = %d, want 6", got)
	}
	if got := wordCount("hello"); got != 5 {
		t.Fatalf("wordCount = %d, want 5", got)
	}
}
