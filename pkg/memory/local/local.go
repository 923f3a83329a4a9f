// Package local provides an in-memory implementation of the memory.Driver
// interface.
//
// Turns are kept per scope in arrival order. Recall ignores the query and
// returns the most recent facts, which is enough for local development and
// tests; the semantic driver ranks by similarity.
package local

import (
	"context"
	"sync"

	"github.com/xeleb-ai/xeleb/pkg/memory"
)

// Config holds configuration for the local memory driver.
type Config struct {
	// Enabled controls whether the driver stores and recalls facts.
	// When false, Store is a no-op and Recall returns nil.
	Enabled bool

	// MaxPerScope caps remembered turns per scope. Zero means 100.
	MaxPerScope int
}

// Driver implements memory.Driver using in-process data structures.
type Driver struct {
	config Config

	mu    sync.RWMutex
	facts map[memory.Scope][]memory.Fact
}

// NewDriver creates a local in-memory memory driver.
func NewDriver(config Config) *Driver {
	if config.MaxPerScope <= 0 {
		config.MaxPerScope = 100
	}
	return &Driver{
		config: config,
		facts:  make(map[memory.Scope][]memory.Fact),
	}
}

// Store appends the turn to its scope, evicting the oldest fact when the
// scope is full.
func (d *Driver) Store(_ context.Context, turn memory.Turn) error {
	if !d.config.Enabled {
		return nil
	}
	if turn.Question == "" && turn.Answer == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	scope := turn.Scope()
	facts := append(d.facts[scope], memory.Fact{
		Content:  turn.Text(),
		ThreadID: turn.ThreadID,
		At:       turn.At,
	})
	if over := len(facts) - d.config.MaxPerScope; over > 0 {
		facts = facts[over:]
	}
	d.facts[scope] = facts
	return nil
}

// Recall returns the newest facts of scope, newest first.
func (d *Driver) Recall(_ context.Context, scope memory.Scope, _ string, limit int) ([]memory.Fact, error) {
	if !d.config.Enabled || limit <= 0 {
		return nil, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	facts := d.facts[scope]
	n := min(limit, len(facts))
	result := make([]memory.Fact, 0, n)
	for i := len(facts) - 1; i >= len(facts)-n; i-- {
		result = append(result, facts[i])
	}
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
