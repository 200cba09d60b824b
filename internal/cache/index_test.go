package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadReturnsEmptyIndexWhenMissing(t *testing.T) {
	store := newTestStore(t)

	idx, err := store.Load()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", idx.Len())
	}
	if _, err := os.Stat(store.IndexPath()); !os.IsNotExist(err) {
		t.Fatalf("load must not create the index file, stat err=%v", err)
	}
}

func TestLoadReturnsSameInstance(t *testing.T) {
	store := newTestStore(t)

	first, err := store.Load()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	first.Set("http://example.com/a.txt", Entry{File: "cache/example.com/a.txt"})

	second, err := store.Load()
	if err != nil {
		t.Fatalf("second load error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical index instance")
	}
	if _, ok := second.Get("http://example.com/a.txt"); !ok {
		t.Fatalf("mutation through first handle not visible through second")
	}
}

func TestLoadDoesNotRereadDisk(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Load(); err != nil {
		t.Fatalf("load error: %v", err)
	}

	writeIndexFile(t, store, `{"http://example.com/x": {"headers": {}, "file": "cache/example.com/x"}}`)

	idx, err := store.Load()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("index must not be re-read mid-process, got %d entries", idx.Len())
	}
}

func TestLoadParsesExistingDocument(t *testing.T) {
	store := newTestStore(t)
	writeIndexFile(t, store, `{
  "http://www.unicode.org/Public/6.2.0/ucd/Scripts.txt": {
    "headers": {"etag": "\"abc\"", "last-modified": "Mon, 01 Jan 2024 00:00:00 GMT"},
    "file": "cache/www.unicode.org/Public/6.2.0/ucd/Scripts.txt"
  },
  "http://www.unicode.org/gone.txt": null
}`)

	idx, err := store.Load()
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected null entries to be skipped, got %d", idx.Len())
	}
	entry, ok := idx.Get("http://www.unicode.org/Public/6.2.0/ucd/Scripts.txt")
	if !ok {
		t.Fatalf("entry not loaded")
	}
	if entry.ETag() != `"abc"` {
		t.Fatalf("unexpected etag %q", entry.ETag())
	}
	if entry.ModifiedSince() != "Mon, 01 Jan 2024 00:00:00 GMT" {
		t.Fatalf("unexpected modified-since %q", entry.ModifiedSince())
	}
}

func TestLoadFailsOnCorruptDocument(t *testing.T) {
	store := newTestStore(t)
	writeIndexFile(t, store, `{not json`)

	if _, err := store.Load(); err == nil {
		t.Fatalf("expected parse error for corrupt index")
	}
}

func TestPersistWritesPrettyJSON(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	store, err := NewStore(root)
	if err != nil {
		t.Fatalf("new store error: %v", err)
	}
	if err := os.RemoveAll(root); err != nil {
		t.Fatalf("remove root error: %v", err)
	}

	err = store.Update(func(idx *Index) error {
		idx.Set("http://example.com/a.txt", Entry{
			Headers: map[string]string{"etag": "v1"},
			File:    "cache/example.com/a.txt",
		})
		return nil
	})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}

	data, err := os.ReadFile(store.IndexPath())
	if err != nil {
		t.Fatalf("read index error: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"http://example.com/a.txt\"") {
		t.Fatalf("expected indented json, got %s", string(data))
	}

	var decoded map[string]Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if decoded["http://example.com/a.txt"].Headers["etag"] != "v1" {
		t.Fatalf("etag not persisted: %+v", decoded)
	}

	reopened, err := NewStore(root)
	if err != nil {
		t.Fatalf("reopen store error: %v", err)
	}
	idx, err := reopened.Load()
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if entry, ok := idx.Get("http://example.com/a.txt"); !ok || entry.File != "cache/example.com/a.txt" {
		t.Fatalf("entry not round-tripped: %+v", entry)
	}
}

func TestModifyDoesNotPersist(t *testing.T) {
	store := newTestStore(t)
	err := store.Update(func(idx *Index) error {
		idx.Set("http://example.com/a.txt", Entry{File: "cache/example.com/a.txt"})
		return nil
	})
	if err != nil {
		t.Fatalf("update error: %v", err)
	}

	err = store.Modify(func(idx *Index) error {
		idx.Delete("http://example.com/a.txt")
		return nil
	})
	if err != nil {
		t.Fatalf("modify error: %v", err)
	}

	data, err := os.ReadFile(store.IndexPath())
	if err != nil {
		t.Fatalf("read index error: %v", err)
	}
	if !strings.Contains(string(data), "http://example.com/a.txt") {
		t.Fatalf("modify must not rewrite the index document")
	}
}

func TestIndexGetReturnsCopy(t *testing.T) {
	idx := newIndex()
	idx.Set("u", Entry{Headers: map[string]string{"etag": "v1"}, File: "f"})

	entry, _ := idx.Get("u")
	entry.Headers["etag"] = "mutated"

	again, _ := idx.Get("u")
	if again.ETag() != "v1" {
		t.Fatalf("Get must return an isolated copy, got %q", again.ETag())
	}
}

func TestCaptureHeadersLowercasesNames(t *testing.T) {
	captured := CaptureHeaders(map[string][]string{
		"Etag":          {`"v1"`},
		"Last-Modified": {"Mon, 01 Jan 2024 00:00:00 GMT"},
		"Vary":          {"Accept", "Origin"},
		"Empty":         {},
	})
	if captured["etag"] != `"v1"` {
		t.Fatalf("unexpected etag %q", captured["etag"])
	}
	if captured["vary"] != "Accept, Origin" {
		t.Fatalf("multi-value headers should be joined, got %q", captured["vary"])
	}
	if _, ok := captured["empty"]; ok {
		t.Fatalf("empty header should be skipped")
	}
}

func writeIndexFile(t *testing.T, store *Store, content string) {
	t.Helper()
	if err := os.WriteFile(store.IndexPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write index error: %v", err)
	}
}

// newTestStore returns a Store rooted at a temporary directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
