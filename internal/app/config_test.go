package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LLM_PROVIDER", "LLM_BASE_URL", "LLM_MODEL", "LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"DATA_DIR", "CACHE_DIR", "IMAGE_SEARCH_URL", "STRATEGY", "LISTEN_ADDR", "THROTTLE", "CACHE_MAX_AGE",
		"ALLOWED_ORIGINS", "VERBOSE", "STRICT_PERMS", "CACHE_CLEAR", "LLM_CACHE_ONLY"} {
		t.Setenv(k, "")
	}
}

func TestResolve_Precedence(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "itinerary.yaml")
	yml := `strategy: llm
llm:
  model: file-model
  base: http://file-llm/v1
data:
  dir: /from/file
throttle: 2s
cache:
  maxAge: 24h
server:
  allowedOrigins: ["http://editor"]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := Resolve(Config{DataDir: "/from/flag"}, path)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.DataDir != "/from/flag" {
		t.Fatalf("flag lost: %q", cfg.DataDir)
	}
	if cfg.LLMModel != "env-model" {
		t.Fatalf("env should beat file: %q", cfg.LLMModel)
	}
	if cfg.LLMBaseURL != "http://file-llm/v1" || cfg.Strategy != "llm" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Throttle != 2*time.Second || cfg.CacheMaxAge != 24*time.Hour {
		t.Fatalf("durations: %v %v", cfg.Throttle, cfg.CacheMaxAge)
	}
	if cfg.ListenAddr != defaultListenAddr || cfg.CacheDir != defaultCacheDir {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 1 {
		t.Fatalf("origins=%v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"llm":{"provider":"gemini"},"throttle":"750ms"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.LLM.Provider != "gemini" || time.Duration(fc.Throttle) != 750*time.Millisecond {
		t.Fatalf("fc=%+v", fc)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"heuristic needs no llm", Config{Strategy: "heuristic", DataDir: "d"}, ""},
		{"llm needs model", Config{Strategy: "llm", DataDir: "d"}, "llm.model"},
		{"gemini has default model", Config{Strategy: "llm", LLMProvider: "gemini", DataDir: "d"}, ""},
		{"unknown strategy", Config{Strategy: "magic", DataDir: "d"}, "unknown strategy"},
		{"unknown provider", Config{LLMProvider: "acme", DataDir: "d"}, "unknown llm provider"},
		{"data dir", Config{}, "data directory"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestResolve_PromptFile(t *testing.T) {
	clearConfigEnv(t)
	p := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(p, []byte("custom prompt"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Resolve(Config{StructurePromptFile: p}, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.StructurePrompt != "custom prompt" {
		t.Fatalf("prompt=%q", cfg.StructurePrompt)
	}
}
