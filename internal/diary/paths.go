package diary

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const maxDisplayNameLen = 50

var unsafePathChars = []string{"<", ">", ":", "\"", "/", "\\", "|", "?", "*"}

func sanitizeName(s string) string {
	for _, c := range unsafePathChars {
		s = strings.ReplaceAll(s, c, "_")
	}
	return s
}

func truncateName(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// folderName builds the expected on-disk folder for a conversation:
// {stableId}_{displayName}, filesystem-safe.
func folderName(info ConversationInfo) string {
	name := sanitizeName(truncateName(info.DisplayName, maxDisplayNameLen))
	return sanitizeName(info.StableID) + "_" + name
}

// resolveDir maps a conversation to its folder, following display-name
// renames without losing history. The stable-ID prefix is the anchor:
// an existing folder with the right prefix but a stale name is renamed
// in place, and a rename conflict keeps the old folder rather than
// overwrite anything.
func (s *Store) resolveDir(info ConversationInfo) (string, error) {
	typeDir := filepath.Join(s.root, sanitizeName(info.ChatType))
	if err := os.MkdirAll(typeDir, 0755); err != nil {
		return "", fmt.Errorf("create type dir: %w", err)
	}

	prefix := sanitizeName(info.StableID) + "_"
	entries, err := os.ReadDir(typeDir)
	if err != nil {
		return "", fmt.Errorf("scan type dir: %w", err)
	}

	type match struct {
		name    string
		modTime time.Time
	}
	var matches []match
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		matches = append(matches, match{name: e.Name(), modTime: fi.ModTime()})
	}

	expected := folderName(info)
	expectedPath := filepath.Join(typeDir, expected)

	switch len(matches) {
	case 0:
		if err := os.MkdirAll(expectedPath, 0755); err != nil {
			return "", fmt.Errorf("create conversation dir: %w", err)
		}
		return expectedPath, nil
	case 1:
		// fall through
	default:
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].modTime.After(matches[j].modTime)
		})
		log.Printf("[diary] %d folders match prefix %s under %s, using most recent %s", len(matches), prefix, typeDir, matches[0].name)
	}

	current := matches[0].name
	currentPath := filepath.Join(typeDir, current)
	if current == expected {
		return currentPath, nil
	}

	if _, err := os.Stat(expectedPath); err == nil {
		log.Printf("[diary] rename conflict: %s already exists, keeping %s", expected, current)
		return currentPath, nil
	}
	if err := os.Rename(currentPath, expectedPath); err != nil {
		log.Printf("[diary] rename %s -> %s failed: %v, keeping old name", current, expected, err)
		return currentPath, nil
	}
	log.Printf("[diary] renamed conversation folder %s -> %s", current, expected)
	return expectedPath, nil
}

func documentPath(dir, date string) string {
	return filepath.Join(dir, date+".json")
}
