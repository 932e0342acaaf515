package diary

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Store persists one DailyDocument per conversation per date as a JSON
// file under {root}/{chat_type}/{stableId}_{displayName}/.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// legacyDocument is the pre-tiered file shape: a single flat summary.
// Loading one migrates it into the today tier.
type legacyDocument struct {
	Summary   string     `json:"summary"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Load reads the document for (conversation, date). An absent file
// yields a fresh empty document. An unparsable file is quarantined
// under a .corrupt suffix and likewise yields a fresh document.
func (s *Store) Load(info ConversationInfo, date string) (*DailyDocument, error) {
	dir, err := s.resolveDir(info)
	if err != nil {
		return nil, err
	}
	path := documentPath(dir, date)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDailyDocument(date, metadataFor(info)), nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc DailyDocument
	if err := json.Unmarshal(data, &doc); err != nil || doc.Date == "" {
		if migrated := migrateLegacy(data, date, info); migrated != nil {
			log.Printf("[diary] migrated legacy document %s", path)
			return migrated, nil
		}
		s.quarantine(path)
		return NewDailyDocument(date, metadataFor(info)), nil
	}

	// Older files may predate metadata; fill it in so consolidation
	// sweeps can identify the conversation from the file alone.
	if doc.Metadata.Conversation == "" {
		doc.Metadata = metadataFor(info)
	}
	return &doc, nil
}

// Save writes the document for (conversation, date). Callers on the
// read path log and continue on failure; nothing here retries.
func (s *Store) Save(info ConversationInfo, doc *DailyDocument) error {
	dir, err := s.resolveDir(info)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(documentPath(dir, doc.Date), data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// quarantine moves a corrupt file aside instead of deleting it, so the
// evidence survives reinitialization.
func (s *Store) quarantine(path string) {
	dest := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
	if err := os.Rename(path, dest); err != nil {
		log.Printf("[diary] quarantine %s failed: %v", path, err)
		return
	}
	log.Printf("[diary] quarantined corrupt document %s -> %s", path, filepath.Base(dest))
}

func migrateLegacy(data []byte, date string, info ConversationInfo) *DailyDocument {
	var legacy legacyDocument
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil
	}
	if strings.TrimSpace(legacy.Summary) == "" {
		return nil
	}
	doc := NewDailyDocument(date, metadataFor(info))
	updatedAt := legacy.UpdatedAt
	if updatedAt == nil {
		now := time.Now()
		updatedAt = &now
	}
	doc.TodayVersion = &TierVersion{
		Content:   legacy.Summary,
		WordCount: wordCount(legacy.Summary),
		UpdatedAt: updatedAt,
	}
	return doc
}

func metadataFor(info ConversationInfo) Metadata {
	return Metadata{ChatType: info.ChatType, Conversation: info.Key}
}

// RemoveConversation deletes the whole folder for a conversation.
func (s *Store) RemoveConversation(info ConversationInfo) error {
	dir, err := s.resolveDir(info)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// Conversations scans the store and returns one ConversationInfo per
// persisted folder, reconstructed from the folder layout. Used by the
// consolidation sweep and the startup reconciler.
func (s *Store) Conversations() ([]ConversationInfo, error) {
	typeDirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan store root: %w", err)
	}

	var infos []ConversationInfo
	for _, td := range typeDirs {
		if !td.IsDir() {
			continue
		}
		chatType := td.Name()
		convDirs, err := os.ReadDir(filepath.Join(s.root, chatType))
		if err != nil {
			log.Printf("[diary] scan %s: %v", chatType, err)
			continue
		}
		for _, cd := range convDirs {
			if !cd.IsDir() {
				continue
			}
			stableID, displayName, ok := strings.Cut(cd.Name(), "_")
			if !ok {
				continue
			}
			info := ConversationInfo{
				ChatType:    chatType,
				StableID:    stableID,
				DisplayName: displayName,
			}
			// The true conversation key lives in document metadata;
			// recover it from the most recent file when present.
			if key := s.recoverKey(filepath.Join(s.root, chatType, cd.Name())); key != "" {
				info.Key = key
			} else {
				info.Key = stableID
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

func (s *Store) recoverKey(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var doc DailyDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		if doc.Metadata.Conversation != "" {
			return doc.Metadata.Conversation
		}
	}
	return ""
}

// PruneExpired removes per-date files older than the retention window,
// including quarantined copies, which keep their dated prefix. It never
// touches folders, only dated files, and only when asked.
func (s *Store) PruneExpired(info ConversationInfo, retentionDays int, now time.Time) (int, error) {
	dir, err := s.resolveDir(info)
	if err != nil {
		return 0, err
	}
	cutoff := startOfDay(now).AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan conversation dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		dateStr, ok := pruneDate(name)
		if !ok {
			continue
		}
		day, err := time.ParseInLocation(dateLayout, dateStr, now.Location())
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				log.Printf("[diary] prune %s: %v", name, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// pruneDate extracts the date part of a document or quarantine file
// name ("2026-03-04.json" or "2026-03-04.json.corrupt.<ts>").
func pruneDate(name string) (string, bool) {
	if before, _, found := strings.Cut(name, ".json.corrupt."); found {
		return before, true
	}
	if strings.HasSuffix(name, ".json") {
		return strings.TrimSuffix(name, ".json"), true
	}
	return "", false
}
