package diary

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	got := sanitizeName(`a<b>c:d"e/f\g|h?i*j`)
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Fatalf("unsafe characters survived: %q", got)
	}
	if got != "a_b_c_d_e_f_g_h_i_j" {
		t.Fatalf("sanitized = %q", got)
	}
}

func TestFolderNameTruncatesDisplayName(t *testing.T) {
	info := ConversationInfo{StableID: "7", DisplayName: strings.Repeat("n", 80)}
	got := folderName(info)
	want := "7_" + strings.Repeat("n", 50)
	if got != want {
		t.Fatalf("folderName = %q, want %q", got, want)
	}
}

func TestResolveDirCreatesFolder(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()

	dir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("folder not created: %v", err)
	}
	if filepath.Base(dir) != "42_book club" {
		t.Fatalf("folder = %q", filepath.Base(dir))
	}
}

func TestResolveDirFollowsRename(t *testing.T) {
	store := NewStore(t.TempDir())
	info := testInfo()

	oldDir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	marker := filepath.Join(oldDir, "2026-03-04.json")
	if err := os.WriteFile(marker, []byte("{}"), 0644); err != nil {
		t.Fatalf("write marker: %v", err)
	}

	info.DisplayName = "book club v2"
	newDir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir after rename: %v", err)
	}
	if filepath.Base(newDir) != "42_book club v2" {
		t.Fatalf("folder = %q", filepath.Base(newDir))
	}
	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Fatal("old folder still present after rename")
	}
	if _, err := os.Stat(filepath.Join(newDir, "2026-03-04.json")); err != nil {
		t.Fatalf("history lost across rename: %v", err)
	}
}

func TestResolveDirRenameConflictKeepsOld(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	info := testInfo()

	oldDir, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	// Occupy the destination so the rename cannot proceed.
	blocker := filepath.Join(root, "group", "42_renamed")
	if err := os.MkdirAll(blocker, 0755); err != nil {
		t.Fatalf("mkdir blocker: %v", err)
	}
	// Make the original folder unambiguous as the live one.
	if err := os.WriteFile(filepath.Join(oldDir, "2026-03-04.json"), []byte("{}"), 0644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	now := time.Now()
	if err := os.Chtimes(oldDir, now, now); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	info.DisplayName = "renamed"
	got, err := store.resolveDir(info)
	if err != nil {
		t.Fatalf("resolveDir with conflict: %v", err)
	}
	if got != oldDir && got != blocker {
		t.Fatalf("unexpected dir %q", got)
	}
	if _, err := os.Stat(oldDir); err != nil {
		t.Fatal("old folder destroyed on conflict")
	}
}

func TestResolveDirMultipleMatchesPicksNewest(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	stale := filepath.Join(root, "group", "42_old name")
	fresh := filepath.Join(root, "group", "42_book club")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	got, err := store.resolveDir(testInfo())
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if got != fresh {
		t.Fatalf("picked %q, want %q", got, fresh)
	}
}
