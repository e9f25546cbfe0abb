package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	// Command inputs and outputs; meaning depends on the subcommand.
	InputPath  string
	OutputPath string
	Format     string

	// LLM
	LLMProvider  string // "openai" (default, any compatible server) or "gemini"
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	GeminiAPIKey string
	// StructurePrompt replaces the built-in structuring system prompt.
	StructurePrompt     string
	StructurePromptFile string

	// Strategy picks the extractor: "heuristic" or "llm".
	Strategy string

	// Data
	DataDir     string
	StrictPerms bool

	// Images
	ImageSearchURL  string
	ImageSearchFile string
	UserAgent       string

	// Throttle spaces out image downloads and POI research calls.
	Throttle time.Duration

	// Server
	ListenAddr     string
	AllowedOrigins []string

	// Cache
	CacheDir     string
	CacheMaxAge  time.Duration
	CacheClear   bool
	LLMCacheOnly bool

	Verbose bool
}

const (
	defaultDataDir    = "data"
	defaultCacheDir   = ".itinerary-cache"
	defaultThrottle   = 500 * time.Millisecond
	defaultListenAddr = ":8787"
	defaultStrategy   = "heuristic"
	defaultUserAgent  = "itinerary/1.0 (+https://github.com/hyperifyio/itinerary)"
)

// ApplyDefaults fills whatever is still unset after flags, env and the
// config file have been applied.
func ApplyDefaults(cfg *Config) {
	if cfg.LLMProvider == "" {
		cfg.LLMProvider = "openai"
	}
	if cfg.Strategy == "" {
		cfg.Strategy = defaultStrategy
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = defaultCacheDir
	}
	if cfg.Throttle == 0 {
		cfg.Throttle = defaultThrottle
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
}
