package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one remembered model answer.
type Entry struct {
	Stage   string    `json:"stage"`
	Model   string    `json:"model"`
	Saved   time.Time `json:"saved"`
	Content string    `json:"content"`
}

// LLMCache keeps model answers on disk, one subdirectory per pipeline stage
// (structure, trip-info, research), so re-running over the same pasted text
// does not pay for another round trip.
type LLMCache struct {
	Dir string
	// StrictPerms enforces 0700 on directories and 0600 on entries.
	StrictPerms bool
}

// Key digests the model and both prompt halves.
func Key(model, system, user string) string {
	h := sha256.New()
	for _, part := range []string{model, system, user} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *LLMCache) stageDir(stage string) (string, error) {
	if c == nil || c.Dir == "" {
		return "", errors.New("cache dir not configured")
	}
	stage = strings.TrimSpace(stage)
	if stage == "" || strings.ContainsAny(stage, `/\.`) {
		return "", fmt.Errorf("invalid cache stage %q", stage)
	}
	dir := filepath.Join(c.Dir, stage)
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return "", err
	}
	// MkdirAll leaves existing directories alone
	if c.StrictPerms {
		for _, d := range []string{c.Dir, dir} {
			if info, err := os.Stat(d); err == nil && info.Mode()&0o777 != 0o700 {
				_ = os.Chmod(d, 0o700)
			}
		}
	}
	return dir, nil
}

// Get returns the entry for key under stage. A miss, or an entry that no
// longer decodes, is reported as ok=false without an error.
func (c *LLMCache) Get(_ context.Context, stage, key string) (Entry, bool, error) {
	dir, err := c.stageDir(stage)
	if err != nil {
		return Entry{}, false, err
	}
	p := filepath.Join(dir, key+".json")
	b, err := os.ReadFile(p)
	if err != nil {
		return Entry{}, false, nil
	}
	var e Entry
	if json.Unmarshal(b, &e) != nil {
		return Entry{}, false, nil
	}
	// touch so age-based purges keep entries still in use
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e, true, nil
}

// Save writes e under key. Saved is stamped when unset.
func (c *LLMCache) Save(_ context.Context, key string, e Entry) error {
	dir, err := c.stageDir(e.Stage)
	if err != nil {
		return err
	}
	if e.Saved.IsZero() {
		e.Saved = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	return os.WriteFile(filepath.Join(dir, key+".json"), b, mode)
}
