package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	RelayModeProcess   = "process"
	RelayModeInProcess = "inprocess"

	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

type Config struct {
	Port string

	LlmProvider  string
	OllamaURL    string
	GeminiAPIKey string
	GeminiModel  string
	ModelTimeout time.Duration

	RelayMode           string
	RelayTimeout        time.Duration
	AgentCommand        []string
	MaxConcurrentAgents int
	RateLimitPerSecond  float64
	CORSOrigins         []string

	SerpAPIKey    string
	SearchModel   string
	SearchTimeout time.Duration

	PromptCacheEnabled bool
	PromptCacheSize    int

	JWTSecret      string
	APIKey         string
	APISecret      string
	JWTExpiry      time.Duration
	PersonasFile   string
	DefaultPersona string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = gotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a getenv-style lookup.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		Port:                r.str("PORT", "5000"),
		LlmProvider:         strings.ToLower(r.str("LLM_PROVIDER", ProviderOllama)),
		OllamaURL:           r.str("OLLAMA_URL", "http://127.0.0.1:11434"),
		GeminiAPIKey:        r.str("GEMINI_API_KEY", ""),
		GeminiModel:         r.str("GEMINI_MODEL", ""),
		ModelTimeout:        r.duration("MODEL_TIMEOUT", 300*time.Second),
		RelayMode:           strings.ToLower(r.str("RELAY_MODE", RelayModeProcess)),
		RelayTimeout:        r.duration("RELAY_TIMEOUT", 330*time.Second),
		AgentCommand:        strings.Fields(r.str("AGENT_COMMAND", "")),
		MaxConcurrentAgents: r.integer("MAX_CONCURRENT_AGENTS", 10),
		RateLimitPerSecond:  r.float("RATE_LIMIT_PER_SECOND", 20),
		CORSOrigins:         r.list("CORS_ORIGINS", []string{"*"}),
		SerpAPIKey:          r.str("SERPAPI_KEY", ""),
		SearchModel:         r.str("SEARCH_MODEL", "deepseek-r1:latest"),
		SearchTimeout:       r.duration("SEARCH_TIMEOUT", 10*time.Second),
		PromptCacheEnabled:  r.boolean("PROMPT_CACHE_ENABLED", false),
		PromptCacheSize:     r.integer("PROMPT_CACHE_SIZE", 4),
		JWTSecret:           r.str("AUTH_JWT_SECRET", ""),
		APIKey:              r.str("AUTH_API_KEY", ""),
		APISecret:           r.str("AUTH_API_SECRET", ""),
		JWTExpiry:           r.duration("AUTH_JWT_EXPIRY", 24*time.Hour),
		PersonasFile:        r.str("PERSONAS_FILE", ""),
		DefaultPersona:      r.str("DEFAULT_PERSONA", ""),
	}
	if r.err != nil {
		return nil, r.err
	}

	switch cfg.RelayMode {
	case RelayModeProcess, RelayModeInProcess:
	default:
		return nil, fmt.Errorf("RELAY_MODE must be %q or %q, got %q", RelayModeProcess, RelayModeInProcess, cfg.RelayMode)
	}
	switch cfg.LlmProvider {
	case ProviderOllama, ProviderGemini:
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOllama, ProviderGemini, cfg.LlmProvider)
	}
	if cfg.MaxConcurrentAgents < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_AGENTS must be positive")
	}
	return cfg, nil
}

// AuthEnabled reports whether routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return f
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return b
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
