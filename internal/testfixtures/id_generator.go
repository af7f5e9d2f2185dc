package testfixtures

import (
	"fmt"
	"sync"

	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
)

// IDGenerator produces deterministic key ids so that generated key and
// certificate names are stable across runs.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator returns a generator yielding "<prefix>-1", "<prefix>-2", ...
// An empty prefix defaults to "k".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "k"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%d", g.prefix, g.counter)
}

// NextFunc exposes Next for WithKeyIDGenerator style options.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// KeyName predicts the key name the n-th generated id yields under identity.
func (g *IDGenerator) KeyName(identity ndn.Name, n uint64) ndn.Name {
	g.mu.Lock()
	defer g.mu.Unlock()
	return identity.AppendString("KEY", fmt.Sprintf("%s-%d", g.prefix, n))
}

// Reset restarts the sequence at 1.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counter = 0
	g.mu.Unlock()
}
