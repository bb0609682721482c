package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs hands out predictable run identifiers for tests:
// "run-1", "run-2", ...
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialRunIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialRunIDs creates a generator whose first ID is "run-1".
func NewSequentialRunIDs() *SequentialRunIDs {
	return &SequentialRunIDs{}
}

// Next returns the next run ID.
func (g *SequentialRunIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("run-%d", g.seq)
}

// Issued returns how many IDs have been handed out.
func (g *SequentialRunIDs) Issued() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
