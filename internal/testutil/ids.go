package testutil

import (
	"fmt"
	"sync"
)

// SeqIDs generates prefixed sequential identifiers: "s1", "s2", and so on.
//
// Unlike a fixed-list generator it never exhausts, so tests that create an
// unbounded number of sessions or records can still assert exact ids.
//
// Safe for concurrent use.
type SeqIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqIDs creates a generator with the given prefix. An empty prefix
// yields bare numbers.
func NewSeqIDs(prefix string) *SeqIDs {
	return &SeqIDs{prefix: prefix}
}

// Generate returns the next identifier in the sequence.
func (g *SeqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset the next Generate returns the
// first id again.
func (g *SeqIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
