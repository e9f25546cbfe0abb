package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLLMCache_SaveGetByStage(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	ctx := context.Background()
	key := Key("model", "system", "Day 1: Xi'an")
	if err := c.Save(ctx, key, Entry{Stage: "structure", Model: "model", Content: `{"days":[]}`}); err != nil {
		t.Fatalf("save: %v", err)
	}
	e, ok, err := c.Get(ctx, "structure", key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if e.Content != `{"days":[]}` || e.Saved.IsZero() {
		t.Fatalf("entry=%+v", e)
	}
	if _, ok, _ := c.Get(ctx, "research", key); ok {
		t.Fatal("stages must not share entries")
	}
	if _, ok, _ := c.Get(ctx, "structure", Key("model", "system", "Day 2")); ok {
		t.Fatal("expected miss for different prompt")
	}
}

func TestKey_SeparatesParts(t *testing.T) {
	if Key("m", "ab", "c") == Key("m", "a", "bc") {
		t.Fatal("prompt boundary must be part of the key")
	}
}

func TestLLMCache_RejectsStageEscapes(t *testing.T) {
	c := &LLMCache{Dir: t.TempDir()}
	if err := c.Save(context.Background(), "k", Entry{Stage: "../x"}); err == nil {
		t.Fatal("expected invalid stage error")
	}
	var nilCache *LLMCache
	if _, _, err := nilCache.Get(context.Background(), "structure", "k"); err == nil {
		t.Fatal("expected error for unconfigured cache")
	}
}

func TestLLMCache_StrictPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "llm")
	c := &LLMCache{Dir: dir, StrictPerms: true}
	key := Key("model", "s", "u")
	if err := c.Save(context.Background(), key, Entry{Stage: "trip-info"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	for _, d := range []string{dir, filepath.Join(dir, "trip-info")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("stat dir: %v", err)
		}
		if got := info.Mode() & 0o777; got != 0o700 {
			t.Fatalf("%s mode = %o, want 0700", d, got)
		}
	}
	finfo, err := os.Stat(filepath.Join(dir, "trip-info", key+".json"))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
}

func TestPurgeByAge(t *testing.T) {
	dir := t.TempDir()
	c := &LLMCache{Dir: dir}
	ctx := context.Background()
	oldKey, newKey := Key("m", "s", "old"), Key("m", "s", "new")
	for _, k := range []string{oldKey, newKey} {
		if err := c.Save(ctx, k, Entry{Stage: "research"}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "research", oldKey+".json"), past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeByAge(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}
	if _, ok, _ := c.Get(ctx, "research", newKey); !ok {
		t.Fatal("fresh entry should survive")
	}
	if n, err := PurgeByAge(filepath.Join(dir, "missing"), time.Hour); err != nil || n != 0 {
		t.Fatalf("missing dir: n=%d err=%v", n, err)
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
	if err := ClearDir("  "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}
