// Package config loads agentctx configuration from YAML files.
//
// A file mirrors the programmatic options of the agentctx package:
//
//	anthropic:
//	  model: claude-sonnet-4-5
//	  api_key: ${ANTHROPIC_API_KEY}
//	system_prompt: You are a helpful assistant.
//	strategy: hybrid
//	window:
//	  max_tokens: 200000
//	  target_tokens: 150000
//	storage:
//	  driver: sqlite
//	  path: ./agentctx.db
//	cache:
//	  backend: memory
//
// Environment references are expanded before parsing. AGENTCTX_API_KEY,
// AGENTCTX_MODEL and AGENTCTX_DATABASE_URL override the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/youssefsiam38/agentctx"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/strategy"
	"github.com/youssefsiam38/agentctx/tool"
	"github.com/youssefsiam38/agentctx/window"
)

// Environment variables that override file values.
const (
	EnvAPIKey      = "AGENTCTX_API_KEY"
	EnvModel       = "AGENTCTX_MODEL"
	EnvDatabaseURL = "AGENTCTX_DATABASE_URL"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Cache backends. An empty backend disables the response cache.
const (
	CacheNone   = ""
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// DefaultModel is used when neither the file nor the environment names one.
const DefaultModel = "claude-sonnet-4-5"

// DefaultSearchPaths returns the config file search order:
// ./agentctx.yaml, then ~/.config/agentctx/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"agentctx.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "agentctx", "config.yaml"))
	}
	return paths
}

// FindConfig locates a config file. An explicit path must exist; otherwise
// the first existing entry of DefaultSearchPaths is returned.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// File is the full configuration of an agent process.
type File struct {
	Anthropic     AnthropicConfig  `yaml:"anthropic"`
	SystemPrompt  string           `yaml:"system_prompt"`
	MaxIterations int              `yaml:"max_iterations"`
	ModelTimeout  time.Duration    `yaml:"model_timeout"`
	Strategy      strategy.Kind    `yaml:"strategy"`
	Window        window.Config    `yaml:"window"`
	Compaction    CompactionConfig `yaml:"compaction"`
	Retrieval     RetrievalConfig  `yaml:"retrieval"`
	Budget        BudgetConfig     `yaml:"budget"`
	Tools         ToolsConfig      `yaml:"tools"`
	Storage       StorageConfig    `yaml:"storage"`
	Cache         CacheConfig      `yaml:"cache"`
	Log           LogConfig        `yaml:"log"`
}

// AnthropicConfig selects the model and its generation limits.
type AnthropicConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	ThinkingBudget  int    `yaml:"thinking_budget"`
}

// CompactionConfig configures compression. Compression is on unless
// Disabled is set.
type CompactionConfig struct {
	Disabled bool `yaml:"disabled"`

	compaction.Config `yaml:",inline"`

	// Breaker wraps the summarizer in a circuit breaker when
	// MaxFailures is positive.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the summarizer circuit breaker.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// RetrievalConfig configures retrieval. It only takes effect with a store.
type RetrievalConfig struct {
	Disabled bool `yaml:"disabled"`
}

// BudgetConfig holds the token ceiling and cost accounting.
type BudgetConfig struct {
	// LimitTokens caps a single model call. Zero uses window.max_tokens.
	LimitTokens int `yaml:"limit_tokens"`

	// CostPerMillionTokens overrides the model price in dollars.
	CostPerMillionTokens float64 `yaml:"cost_per_million_tokens"`

	// CostGuard enables per-user monthly cost ceilings. It needs a
	// persistent store.
	CostGuard bool `yaml:"cost_guard"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	Policy  tool.Policy   `yaml:"policy"`
	Timeout time.Duration `yaml:"timeout"`
}

// StorageConfig selects the message store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
}

// CacheConfig selects the response cache.
type CacheConfig struct {
	Backend  string        `yaml:"backend"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`

	// SweepInterval is how often expired entries are pruned in the
	// background. Zero disables the sweeper.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used for fields a file leaves unset.
func Default() *File {
	return &File{
		Anthropic:     AnthropicConfig{Model: DefaultModel},
		MaxIterations: agentctx.DefaultMaxIterations,
		ModelTimeout:  agentctx.DefaultModelTimeout,
		Strategy:      strategy.Hybrid,
		Window:        window.DefaultConfig(),
		Compaction:    CompactionConfig{Config: *compaction.DefaultConfig()},
		Tools:         ToolsConfig{Policy: tool.Sequential, Timeout: tool.DefaultTimeout},
		Storage:       StorageConfig{Driver: DriverMemory},
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads, expands, overrides and validates the configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML data the way Load does.
func Parse(data []byte) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", agentctx.ErrInvalidConfig, err)
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *File) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Anthropic.APIKey = v
	}
	if v, ok := lookup(EnvModel); ok && v != "" {
		c.Anthropic.Model = v
	}
	if v, ok := lookup(EnvDatabaseURL); ok && v != "" {
		c.Storage.DatabaseURL = v
		if c.Storage.Driver == DriverMemory {
			c.Storage.Driver = DriverPostgres
		}
	}
}

// ApplyDefaults fills zero-valued fields that a file may have cleared.
func (c *File) ApplyDefaults() {
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = DefaultModel
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = agentctx.DefaultMaxIterations
	}
	if c.ModelTimeout == 0 {
		c.ModelTimeout = agentctx.DefaultModelTimeout
	}
	if c.Tools.Timeout == 0 {
		c.Tools.Timeout = tool.DefaultTimeout
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	c.Window.ApplyDefaults()
	c.Compaction.Config.ApplyDefaults()
}

// Validate checks the configuration. Every error wraps
// agentctx.ErrInvalidConfig.
func (c *File) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", agentctx.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.MaxIterations < 1 {
		return invalid("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.ModelTimeout < 0 {
		return invalid("model_timeout cannot be negative")
	}
	if c.Anthropic.MaxOutputTokens < 0 || c.Anthropic.ThinkingBudget < 0 {
		return invalid("anthropic token limits cannot be negative")
	}
	if !c.Strategy.IsValid() {
		return invalid("unknown strategy %d", int(c.Strategy))
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("%w: %w", agentctx.ErrInvalidConfig, err)
	}
	if err := c.Compaction.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", agentctx.ErrInvalidConfig, err)
	}
	if c.Budget.LimitTokens < 0 {
		return invalid("budget.limit_tokens cannot be negative, got %d", c.Budget.LimitTokens)
	}
	if c.Budget.CostPerMillionTokens < 0 {
		return invalid("budget.cost_per_million_tokens cannot be negative")
	}
	if c.Tools.Timeout < 0 {
		return invalid("tools.timeout cannot be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			return invalid("storage.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return invalid("storage.database_url is required for the postgres driver")
		}
	default:
		return invalid("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return invalid("cache.redis_url is required for the redis backend")
		}
	default:
		return invalid("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Capacity < 0 || c.Cache.TTL < 0 || c.Cache.SweepInterval < 0 {
		return invalid("cache capacity, ttl and sweep_interval cannot be negative")
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", agentctx.ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// AgentOptions translates the file into agent options. Store, cache, cost
// guard and logger are opened separately; see OpenStore and OpenCache.
func (c *File) AgentOptions() []agentctx.Option {
	compactionCfg := c.Compaction.Config
	opts := []agentctx.Option{
		agentctx.WithMaxIterations(c.MaxIterations),
		agentctx.WithModelTimeout(c.ModelTimeout),
		agentctx.WithStrategy(c.Strategy),
		agentctx.WithWindow(c.Window),
		agentctx.WithCompaction(&compactionCfg),
		agentctx.WithCompression(!c.Compaction.Disabled),
		agentctx.WithRetrieval(!c.Retrieval.Disabled),
		agentctx.WithToolPolicy(c.Tools.Policy),
		agentctx.WithToolTimeout(c.Tools.Timeout),
	}
	if c.Anthropic.MaxOutputTokens > 0 {
		opts = append(opts, agentctx.WithMaxOutputTokens(c.Anthropic.MaxOutputTokens))
	}
	if c.Anthropic.ThinkingBudget > 0 {
		opts = append(opts, agentctx.WithThinkingBudget(c.Anthropic.ThinkingBudget))
	}
	if c.Budget.LimitTokens > 0 {
		opts = append(opts, agentctx.WithBudgetLimit(c.Budget.LimitTokens))
	}
	if c.Budget.CostPerMillionTokens > 0 {
		opts = append(opts, agentctx.WithCostPerMillionTokens(c.Budget.CostPerMillionTokens))
	}
	return opts
}
