package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Strategy string `yaml:"strategy" json:"strategy"`

	LLM struct {
		Provider   string `yaml:"provider" json:"provider"`
		BaseURL    string `yaml:"base" json:"base"`
		Model      string `yaml:"model" json:"model"`
		APIKey     string `yaml:"key" json:"key"`
		GeminiKey  string `yaml:"geminiKey" json:"geminiKey"`
		Prompt     string `yaml:"structurePrompt" json:"structurePrompt"`
		PromptFile string `yaml:"structurePromptFile" json:"structurePromptFile"`
	} `yaml:"llm" json:"llm"`

	Data struct {
		Dir         string `yaml:"dir" json:"dir"`
		StrictPerms bool   `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"data" json:"data"`

	Images struct {
		SearchURL  string `yaml:"searchURL" json:"searchURL"`
		SearchFile string `yaml:"searchFile" json:"searchFile"`
		UserAgent  string `yaml:"ua" json:"ua"`
	} `yaml:"images" json:"images"`

	Throttle Duration `yaml:"throttle" json:"throttle"`

	Server struct {
		Listen         string   `yaml:"listen" json:"listen"`
		AllowedOrigins []string `yaml:"allowedOrigins" json:"allowedOrigins"`
	} `yaml:"server" json:"server"`

	Cache struct {
		Dir       string   `yaml:"dir" json:"dir"`
		MaxAge    Duration `yaml:"maxAge" json:"maxAge"`
		Clear     bool     `yaml:"clear" json:"clear"`
		CacheOnly bool     `yaml:"llmCacheOnly" json:"llmCacheOnly"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// Duration accepts "500ms"-style strings in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.parse(n.Value)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"500ms\": %w", err)
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for fields that are still
// unset, so flags and env keep precedence.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	fill(&cfg.Strategy, fc.Strategy)
	fill(&cfg.LLMProvider, fc.LLM.Provider)
	fill(&cfg.LLMBaseURL, fc.LLM.BaseURL)
	fill(&cfg.LLMModel, fc.LLM.Model)
	fill(&cfg.LLMAPIKey, fc.LLM.APIKey)
	fill(&cfg.GeminiAPIKey, fc.LLM.GeminiKey)
	fill(&cfg.StructurePrompt, fc.LLM.Prompt)
	fill(&cfg.StructurePromptFile, fc.LLM.PromptFile)
	fill(&cfg.DataDir, fc.Data.Dir)
	fill(&cfg.ImageSearchURL, fc.Images.SearchURL)
	fill(&cfg.ImageSearchFile, fc.Images.SearchFile)
	fill(&cfg.UserAgent, fc.Images.UserAgent)
	fill(&cfg.ListenAddr, fc.Server.Listen)
	fill(&cfg.CacheDir, fc.Cache.Dir)

	if len(cfg.AllowedOrigins) == 0 && len(fc.Server.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = append([]string{}, fc.Server.AllowedOrigins...)
	}
	if cfg.Throttle == 0 && fc.Throttle != 0 {
		cfg.Throttle = time.Duration(fc.Throttle)
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge)
	}
	cfg.StrictPerms = cfg.StrictPerms || fc.Data.StrictPerms
	cfg.CacheClear = cfg.CacheClear || fc.Cache.Clear
	cfg.LLMCacheOnly = cfg.LLMCacheOnly || fc.Cache.CacheOnly
	cfg.Verbose = cfg.Verbose || fc.Verbose
}

// ValidateConfig performs minimal validation of the resolved configuration.
// LLM settings are only required when the llm strategy is selected.
func ValidateConfig(cfg Config) error {
	switch strings.ToLower(cfg.LLMProvider) {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown llm provider %q (want openai or gemini)", cfg.LLMProvider)
	}
	switch strings.ToLower(cfg.Strategy) {
	case "", "heuristic":
	case "llm":
		if strings.TrimSpace(cfg.LLMModel) == "" && !strings.EqualFold(cfg.LLMProvider, "gemini") {
			return errors.New("config: llm.model is required for the llm strategy (or set LLM_MODEL)")
		}
	default:
		return fmt.Errorf("config: unknown strategy %q (want heuristic or llm)", cfg.Strategy)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("config: data directory is required")
	}
	if cfg.CacheMaxAge < 0 {
		return errors.New("config: negative cache max age is not allowed")
	}
	return nil
}

// Resolve merges cfg (holding explicitly set flags) with env, the optional
// config file and defaults, in that order of precedence, and validates it.
func Resolve(cfg Config, configPath string) (Config, error) {
	ApplyEnvToConfig(&cfg)
	if strings.TrimSpace(configPath) != "" {
		fc, err := LoadConfigFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		ApplyFileConfig(&cfg, fc)
	}
	ApplyDefaults(&cfg)
	if p := strings.TrimSpace(cfg.StructurePromptFile); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return cfg, fmt.Errorf("read structure prompt: %w", err)
		}
		cfg.StructurePrompt = string(b)
	}
	return cfg, ValidateConfig(cfg)
}
