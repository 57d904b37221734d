package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"codeberg.org/snonux/translateassist/internal/cache"
	"codeberg.org/snonux/translateassist/internal/pipeline"
	"codeberg.org/snonux/translateassist/internal/provider"
	"codeberg.org/snonux/translateassist/internal/scheduler"
)

// EnvPrefix is the prefix of environment variables mapped onto keys.
const EnvPrefix = "TRANSLATEASSIST"

// Config is the validated application configuration.
type Config struct {
	RequestTimeout time.Duration

	CircuitCooldown  time.Duration
	FailureThreshold int
	Limits           map[scheduler.Provider]scheduler.Limits

	MTTTL               time.Duration
	LLMTTL              time.Duration
	MaintenanceInterval time.Duration
	EnforceTTLOnRead    bool
	MaxCacheEntries     int

	DatabasePath string

	SourceLang string
	TargetLang string

	Persona             string
	Domains             []string
	EscalationThreshold float64
	RetryDelay          time.Duration

	GoogleAPIKey  string
	GeminiAPIKey  string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	TatoebaURL    string
}

// limitKeys maps providers onto their config section and env aliases. The
// aliases are named after the backend that serves the provider: Gemini for
// the fast model, the Groq/OpenAI compatible endpoint for the capable one.
var limitKeys = []struct {
	provider scheduler.Provider
	section  string
	aliases  [3]string
	defaults scheduler.Limits
}{
	{scheduler.FastLLM, "limits.fast_llm", [3]string{"GEMINI_RPM", "GEMINI_TPM", "GEMINI_RPD"}, scheduler.Limits{RequestsPerMinute: 30, CostPerMinute: 15000, RequestsPerDay: 14400}},
	{scheduler.CapableLLM, "limits.capable_llm", [3]string{"GROQ_RPM", "GROQ_TPM", "GROQ_RPD"}, scheduler.Limits{RequestsPerMinute: 30, CostPerMinute: 6000, RequestsPerDay: 14400}},
	{scheduler.MachineTranslator, "limits.machine_translator", [3]string{"GOOGLE_TRANSLATE_RPM", "GOOGLE_TRANSLATE_CPM", "GOOGLE_TRANSLATE_CPD"}, scheduler.Limits{RequestsPerMinute: 30, CostPerMinute: 100000, RequestsPerDay: 50000}},
}

// aliases are plain environment names honoured next to the prefixed ones.
var aliases = map[string][]string{
	"request_timeout_ms":            {"REQUEST_TIMEOUT_MS"},
	"scheduler.circuit_cooldown_ms": {"CIRCUIT_BREAKER_COOLDOWN_MS"},
	"cache.mt_ttl_s":                {"CACHE_MT_TTL_S"},
	"cache.llm_ttl_s":               {"CACHE_LLM_TTL_S"},
	"cache.maintenance_min":         {"CACHE_MAINTENANCE_MIN"},
	"cache.enforce_ttl_on_read":     {"CACHE_ENFORCE_TTL_ON_READS"},
	"providers.google.api_key":      {"GOOGLE_TRANSLATE_API_KEY"},
	"providers.gemini.api_key":      {"GEMINI_API_KEY"},
	"providers.gemini.model":        {"GEMINI_MODEL_ID"},
	"providers.openai.api_key":      {"GROQ_API_KEY", "OPENAI_API_KEY"},
}

// DefaultDatabasePath returns ~/.local/state/translateassist/translateassist.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "translateassist.db"
	}
	return filepath.Join(home, ".local", "state", "translateassist", "translateassist.db")
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("request_timeout_ms", 7000)
	v.SetDefault("scheduler.circuit_cooldown_ms", 60000)
	v.SetDefault("scheduler.failure_threshold", 3)
	for _, l := range limitKeys {
		v.SetDefault(l.section+".rpm", l.defaults.RequestsPerMinute)
		v.SetDefault(l.section+".cpm", l.defaults.CostPerMinute)
		v.SetDefault(l.section+".rpd", l.defaults.RequestsPerDay)
	}
	v.SetDefault("cache.mt_ttl_s", 86400)
	v.SetDefault("cache.llm_ttl_s", 86400)
	v.SetDefault("cache.maintenance_min", 30)
	v.SetDefault("cache.enforce_ttl_on_read", true)
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("languages.source", "")
	v.SetDefault("languages.target", "fa")
	v.SetDefault("pipeline.persona", "")
	v.SetDefault("pipeline.domains", "AI/CS,Business")
	v.SetDefault("pipeline.escalation_threshold", 0.65)
	v.SetDefault("pipeline.retry_delay_ms", 2000)
	v.SetDefault("providers.google.api_key", "")
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.model", provider.DefaultGeminiModel)
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", provider.DefaultOpenAIBaseURL)
	v.SetDefault("providers.openai.model", provider.DefaultOpenAIModel)
	v.SetDefault("providers.tatoeba.base_url", provider.DefaultTatoebaURL)
}

// BindEnv makes TRANSLATEASSIST_<KEY> and the plain aliases override keys.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bind := func(key string, names ...string) error {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(append([]string{key, prefixed}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
		return nil
	}
	for key, names := range aliases {
		if err := bind(key, names...); err != nil {
			return err
		}
	}
	for _, l := range limitKeys {
		for i, dim := range []string{"rpm", "cpm", "rpd"} {
			if err := bind(l.section+"."+dim, l.aliases[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		RequestTimeout:      ms(v.GetInt("request_timeout_ms")),
		CircuitCooldown:     ms(v.GetInt("scheduler.circuit_cooldown_ms")),
		FailureThreshold:    v.GetInt("scheduler.failure_threshold"),
		Limits:              make(map[scheduler.Provider]scheduler.Limits),
		MTTTL:               time.Duration(v.GetInt("cache.mt_ttl_s")) * time.Second,
		LLMTTL:              time.Duration(v.GetInt("cache.llm_ttl_s")) * time.Second,
		MaintenanceInterval: time.Duration(v.GetInt("cache.maintenance_min")) * time.Minute,
		EnforceTTLOnRead:    parseBool(v.GetString("cache.enforce_ttl_on_read")),
		MaxCacheEntries:     v.GetInt("cache.max_entries"),
		DatabasePath:        expandHome(v.GetString("database.path")),
		SourceLang:          strings.ToLower(strings.TrimSpace(v.GetString("languages.source"))),
		TargetLang:          strings.ToLower(strings.TrimSpace(v.GetString("languages.target"))),
		Persona:             v.GetString("pipeline.persona"),
		Domains:             splitList(v.GetString("pipeline.domains")),
		EscalationThreshold: v.GetFloat64("pipeline.escalation_threshold"),
		RetryDelay:          ms(v.GetInt("pipeline.retry_delay_ms")),
		GoogleAPIKey:        v.GetString("providers.google.api_key"),
		GeminiAPIKey:        v.GetString("providers.gemini.api_key"),
		GeminiModel:         v.GetString("providers.gemini.model"),
		OpenAIAPIKey:        v.GetString("providers.openai.api_key"),
		OpenAIBaseURL:       v.GetString("providers.openai.base_url"),
		OpenAIModel:         v.GetString("providers.openai.model"),
		TatoebaURL:          v.GetString("providers.tatoeba.base_url"),
	}
	for _, l := range limitKeys {
		cfg.Limits[l.provider] = scheduler.Limits{
			RequestsPerMinute: v.GetInt(l.section + ".rpm"),
			CostPerMinute:     v.GetInt(l.section + ".cpm"),
			RequestsPerDay:    v.GetInt(l.section + ".rpd"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.RequestTimeout <= 0:
		return fmt.Errorf("request_timeout_ms must be positive")
	case c.TargetLang == "":
		return fmt.Errorf("languages.target must not be empty")
	case c.EscalationThreshold < 0 || c.EscalationThreshold > 1:
		return fmt.Errorf("pipeline.escalation_threshold must be within [0,1], got %v", c.EscalationThreshold)
	case c.MTTTL < 0 || c.LLMTTL < 0:
		return fmt.Errorf("cache TTLs must not be negative")
	case c.DatabasePath == "":
		return fmt.Errorf("database.path must not be empty")
	}
	return c.SchedulerConfig().Validate()
}

// SchedulerConfig derives the scheduler configuration.
func (c *Config) SchedulerConfig() scheduler.Config {
	sc := scheduler.DefaultConfig()
	sc.CircuitCooldown = c.CircuitCooldown
	sc.FailureThreshold = c.FailureThreshold
	sc.CallTimeout = c.RequestTimeout
	for p, l := range c.Limits {
		sc.Limits[p] = l
	}
	return sc
}

// CacheConfig derives the cache configuration.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		MTTTL:               c.MTTTL,
		LLMTTL:              c.LLMTTL,
		EnforceTTLOnRead:    c.EnforceTTLOnRead,
		MaxEntries:          c.MaxCacheEntries,
		MaintenanceInterval: c.MaintenanceInterval,
	}
}

// PipelineConfig derives the orchestrator configuration.
func (c *Config) PipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.EscalationThreshold = c.EscalationThreshold
	pc.RetryDelay = c.RetryDelay
	pc.RequestTimeout = c.RequestTimeout
	if len(c.Domains) > 0 {
		pc.DefaultDomains = c.Domains
	}
	return pc
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// parseBool accepts the 1/0 style of the plain env aliases as well as
// true/false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
