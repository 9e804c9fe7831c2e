package compaction

import (
	"fmt"
	"time"
)

// Strategy represents a compression strategy.
type Strategy string

const (
	// StrategySimple extracts key sentences with regular expressions.
	StrategySimple Strategy = "simple"

	// StrategyAISummarization delegates to a Summarizer and falls back to simple.
	StrategyAISummarization Strategy = "ai-summarization"

	// StrategyHybrid runs simple first and summarizes when the result is still long.
	StrategyHybrid Strategy = "hybrid"
)

// Default configuration values.
const (
	DefaultStrategy               = StrategyHybrid
	DefaultShortMessageChars      = 50
	DefaultLongMessageChars       = 200
	DefaultLongMessagePrefix      = 150
	DefaultKeySentenceMaxLen      = 200
	DefaultHybridMessageThreshold = 5
	DefaultSummarizerMaxTokens    = 1024
	DefaultSummarizerTimeout      = 30 * time.Second
	DefaultSummaryImportance      = 0.9
)

// Config holds compressor configuration.
type Config struct {
	// Strategy is the strategy Compress uses.
	// Default: StrategyHybrid
	Strategy Strategy `yaml:"strategy"`

	// ShortMessageChars marks messages shorter than this as preserved.
	// Default: 50
	ShortMessageChars int `yaml:"short_message_chars"`

	// LongMessageChars is the length above which a message without key
	// sentences contributes its prefix to the summary.
	// Default: 200
	LongMessageChars int `yaml:"long_message_chars"`

	// LongMessagePrefix is the prefix length taken from long messages.
	// Default: 150
	LongMessagePrefix int `yaml:"long_message_prefix"`

	// KeySentenceMaxLen caps each extracted sentence.
	// Default: 200
	KeySentenceMaxLen int `yaml:"key_sentence_max_len"`

	// HybridMessageThreshold is the message count above which hybrid
	// escalates to AI summarization.
	// Default: 5
	HybridMessageThreshold int `yaml:"hybrid_message_threshold"`

	// SummarizerTimeout bounds a single summarizer call.
	// Default: 30s
	SummarizerTimeout time.Duration `yaml:"summarizer_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Strategy:               DefaultStrategy,
		ShortMessageChars:      DefaultShortMessageChars,
		LongMessageChars:       DefaultLongMessageChars,
		LongMessagePrefix:      DefaultLongMessagePrefix,
		KeySentenceMaxLen:      DefaultKeySentenceMaxLen,
		HybridMessageThreshold: DefaultHybridMessageThreshold,
		SummarizerTimeout:      DefaultSummarizerTimeout,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = DefaultStrategy
	}
	if c.ShortMessageChars == 0 {
		c.ShortMessageChars = DefaultShortMessageChars
	}
	if c.LongMessageChars == 0 {
		c.LongMessageChars = DefaultLongMessageChars
	}
	if c.LongMessagePrefix == 0 {
		c.LongMessagePrefix = DefaultLongMessagePrefix
	}
	if c.KeySentenceMaxLen == 0 {
		c.KeySentenceMaxLen = DefaultKeySentenceMaxLen
	}
	if c.HybridMessageThreshold == 0 {
		c.HybridMessageThreshold = DefaultHybridMessageThreshold
	}
	if c.SummarizerTimeout == 0 {
		c.SummarizerTimeout = DefaultSummarizerTimeout
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategySimple, StrategyAISummarization, StrategyHybrid:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}
	if c.ShortMessageChars < 0 {
		return fmt.Errorf("%w: short_message_chars cannot be negative", ErrInvalidConfig)
	}
	if c.LongMessagePrefix <= 0 || c.LongMessagePrefix > c.LongMessageChars {
		return fmt.Errorf("%w: long_message_prefix must be in (0, long_message_chars], got %d",
			ErrInvalidConfig, c.LongMessagePrefix)
	}
	if c.KeySentenceMaxLen <= 3 {
		return fmt.Errorf("%w: key_sentence_max_len must be greater than 3, got %d",
			ErrInvalidConfig, c.KeySentenceMaxLen)
	}
	if c.HybridMessageThreshold < 1 {
		return fmt.Errorf("%w: hybrid_message_threshold must be at least 1", ErrInvalidConfig)
	}
	if c.SummarizerTimeout < 0 {
		return fmt.Errorf("%w: summarizer_timeout cannot be negative", ErrInvalidConfig)
	}
	return nil
}
