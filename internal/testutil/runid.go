package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates run IDs of the form "<prefix>-0001",
// "<prefix>-0002" and so on, so golden snapshots of stored runs are
// byte-identical.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// NewRunID returns the next ID.
func (g *SequentialRunIDs) NewRunID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
