package window

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates an invalid window configuration.
var ErrInvalidConfig = errors.New("invalid window configuration")

// Default configuration values.
const (
	DefaultMaxTokens            = 200000
	DefaultTargetTokens         = 150000
	DefaultPreserveMessages     = 10
	DefaultCompressionThreshold = 120000
	DefaultRetrievalThreshold   = 100000

	// HybridRatio is the share of MaxTokens at which AnalyzeContext
	// recommends the hybrid strategy.
	HybridRatio = 0.9
)

// Config holds the token thresholds that drive window management.
type Config struct {
	// MaxTokens is the hard context window of the model.
	// Default: 200000
	MaxTokens int `yaml:"max_tokens"`

	// TargetTokens is what truncation and the hybrid pass aim for.
	// Must be strictly less than MaxTokens.
	// Default: 150000
	TargetTokens int `yaml:"target_tokens"`

	// PreserveMessages is the number of newest messages that are never
	// dropped or paraphrased.
	// Default: 10
	PreserveMessages int `yaml:"preserve_messages"`

	// CompressionThreshold is the total above which compression is needed.
	// Default: 120000
	CompressionThreshold int `yaml:"compression_threshold"`

	// RetrievalThreshold is the total above which retrieval-augmented
	// selection is recommended. Must not exceed CompressionThreshold.
	// Default: 100000
	RetrievalThreshold int `yaml:"retrieval_threshold"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxTokens:            DefaultMaxTokens,
		TargetTokens:         DefaultTargetTokens,
		PreserveMessages:     DefaultPreserveMessages,
		CompressionThreshold: DefaultCompressionThreshold,
		RetrievalThreshold:   DefaultRetrievalThreshold,
	}
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.TargetTokens == 0 {
		c.TargetTokens = min(DefaultTargetTokens, c.MaxTokens*3/4)
	}
	if c.PreserveMessages == 0 {
		c.PreserveMessages = DefaultPreserveMessages
	}
	if c.CompressionThreshold == 0 {
		c.CompressionThreshold = c.TargetTokens * 4 / 5
	}
	if c.RetrievalThreshold == 0 {
		c.RetrievalThreshold = c.CompressionThreshold * 5 / 6
	}
}

// Validate checks the threshold ordering
// RetrievalThreshold <= CompressionThreshold <= TargetTokens < MaxTokens.
func (c Config) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	if c.TargetTokens <= 0 {
		return fmt.Errorf("%w: target_tokens must be positive, got %d", ErrInvalidConfig, c.TargetTokens)
	}
	if c.TargetTokens >= c.MaxTokens {
		return fmt.Errorf("%w: target_tokens (%d) must be less than max_tokens (%d)",
			ErrInvalidConfig, c.TargetTokens, c.MaxTokens)
	}
	if c.PreserveMessages < 0 {
		return fmt.Errorf("%w: preserve_messages cannot be negative, got %d", ErrInvalidConfig, c.PreserveMessages)
	}
	if c.CompressionThreshold < 0 || c.RetrievalThreshold < 0 {
		return fmt.Errorf("%w: thresholds cannot be negative", ErrInvalidConfig)
	}
	if c.CompressionThreshold > c.TargetTokens {
		return fmt.Errorf("%w: compression_threshold (%d) must not exceed target_tokens (%d)",
			ErrInvalidConfig, c.CompressionThreshold, c.TargetTokens)
	}
	if c.RetrievalThreshold > c.CompressionThreshold {
		return fmt.Errorf("%w: retrieval_threshold (%d) must not exceed compression_threshold (%d)",
			ErrInvalidConfig, c.RetrievalThreshold, c.CompressionThreshold)
	}
	return nil
}
