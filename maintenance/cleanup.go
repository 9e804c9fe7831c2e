// Package maintenance runs periodic background housekeeping, such as
// dropping expired response cache entries.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultCleanupInterval is how often a Cleanup sweeps when unconfigured.
const DefaultCleanupInterval = 1 * time.Minute

// Pruner removes expired state and reports how much it removed.
// *cache.Memory and *cache.Redis implement it.
type Pruner interface {
	PruneExpired(ctx context.Context) (int, error)
}

// Target is one named pruner swept by a Cleanup.
type Target struct {
	Name   string
	Pruner Pruner
}

// CleanupConfig holds configuration for the cleanup service.
type CleanupConfig struct {
	// Interval is how often to sweep.
	// Default: 1 minute
	Interval time.Duration

	// OnPruned is called after a target removed at least one item.
	OnPruned func(target string, count int)

	// OnError is called when a target fails to prune.
	OnError func(err error)
}

// DefaultCleanupConfig returns the default cleanup configuration.
func DefaultCleanupConfig() *CleanupConfig {
	return &CleanupConfig{Interval: DefaultCleanupInterval}
}

// CleanupResult holds the outcome of one sweep.
type CleanupResult struct {
	// Pruned maps each target name to the number of items removed.
	Pruned map[string]int

	// Errors contains any errors that occurred during the sweep.
	Errors []error
}

// Total returns the number of items removed across all targets.
func (r *CleanupResult) Total() int {
	n := 0
	for _, c := range r.Pruned {
		n += c
	}
	return n
}

// Cleanup periodically sweeps its targets.
type Cleanup struct {
	targets []Target
	config  *CleanupConfig

	started atomic.Bool
	done    chan struct{}
	cancel  context.CancelFunc
}

// NewCleanup creates a cleanup service over targets.
func NewCleanup(config *CleanupConfig, targets ...Target) *Cleanup {
	if config == nil {
		config = DefaultCleanupConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultCleanupInterval
	}
	return &Cleanup{targets: targets, config: config}
}

// Start begins the sweep loop. It returns immediately and sweeps in a
// goroutine, once right away and then every Interval.
func (c *Cleanup) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	c.done = make(chan struct{})
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)

	return nil
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (c *Cleanup) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return ErrNotStarted
	}

	c.cancel()
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.started.Store(false)
	return nil
}

func (c *Cleanup) run(ctx context.Context) {
	defer close(c.done)

	c.sweep(ctx)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleanup) sweep(ctx context.Context) {
	result := c.RunOnce(ctx)

	if c.config.OnPruned != nil {
		for _, t := range c.targets {
			if n := result.Pruned[t.Name]; n > 0 {
				c.config.OnPruned(t.Name, n)
			}
		}
	}
	if c.config.OnError != nil {
		for _, err := range result.Errors {
			c.config.OnError(err)
		}
	}
}

// RunOnce sweeps every target once. A failing target does not stop the
// others.
func (c *Cleanup) RunOnce(ctx context.Context) *CleanupResult {
	result := &CleanupResult{Pruned: make(map[string]int, len(c.targets))}

	for _, t := range c.targets {
		n, err := t.Pruner.PruneExpired(ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("prune %s: %w", t.Name, err))
			continue
		}
		result.Pruned[t.Name] = n
	}

	return result
}

// IsRunning returns true if the cleanup service is running.
func (c *Cleanup) IsRunning() bool {
	return c.started.Load()
}
