package window

import (
	"fmt"
	"strings"
)

// Strategy is the closed set of context strategies. AnalyzeContext
// recommends one; the strategy package runs it.
type Strategy int

const (
	StrategySlidingWindow Strategy = iota
	StrategySummarization
	StrategyRetrievalAugmented
	StrategyHybrid
)

var strategyNames = [...]string{
	StrategySlidingWindow:      "sliding-window",
	StrategySummarization:      "summarization",
	StrategyRetrievalAugmented: "retrieval-augmented",
	StrategyHybrid:             "hybrid",
}

// String returns the canonical name.
func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// IsValid reports whether s is one of the declared strategies.
func (s Strategy) IsValid() bool {
	return s >= 0 && int(s) < len(strategyNames)
}

// ParseStrategy resolves a canonical name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: invalid strategy %d", ErrInvalidConfig, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which also covers
// YAML decoding of scalar strategy names.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
