package checkout

import (
	"sync"

	"github.com/google/uuid"
)

// AttemptGenerator produces checkout attempt IDs.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type AttemptGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 attempt IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined attempt IDs in order.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next id. Panics once all ids are consumed, which
// catches tests that run more passes than they expect.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all attempt ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
