package testfixtures

import (
	"fmt"
	"sync"
)

// minSessionIDLength mirrors the shortest session identifier the services
// accept.
const minSessionIDLength = 6

// IDGenerator hands out predictable session identifiers: prefix-1, prefix-2
// and so on.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued uint64
}

// NewIDGenerator returns a generator for prefix. An empty prefix becomes
// "session". Short prefixes are padded so every identifier is long enough
// to pass session id validation.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "session"
	}
	for len(prefix)+2 < minSessionIDLength {
		prefix += "x"
	}
	return &IDGenerator{prefix: prefix}
}

// Next issues the following identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return fmt.Sprintf("%s-%d", g.prefix, g.issued)
}

// NextFunc returns Next for injection into services.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers have been handed out.
func (g *IDGenerator) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued
}

// Reset restarts the sequence so the next identifier ends in 1.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued = 0
}
