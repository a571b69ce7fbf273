// Package testutil holds deterministic stand-ins used by tests and golden
// scenarios.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceNamer generates layer names of the form "<prefix>-<n>" from a
// single counter, so the same construction always yields the same names.
//
// Safe for concurrent use.
type SequenceNamer struct {
	mu  sync.Mutex
	seq int
}

// NewSequenceNamer creates a namer whose first name ends in -1.
func NewSequenceNamer() *SequenceNamer {
	return &SequenceNamer{}
}

// Name returns the next name for prefix.
func (n *SequenceNamer) Name(prefix string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	return fmt.Sprintf("%s-%d", prefix, n.seq)
}

// Reset restarts the counter.
func (n *SequenceNamer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq = 0
}
