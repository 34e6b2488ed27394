package ident

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces message identifiers that sort lexicographically in
// generation order. Identifiers are ULIDs: a millisecond timestamp prefix
// with monotonic random entropy, so two calls in the same millisecond still
// order correctly.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator constructs a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Next returns a new identifier. It never fails and never blocks beyond
// reading a few bytes of entropy.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := ulid.Timestamp(time.Now())
	id, err := ulid.New(now, g.entropy)
	if err != nil {
		// Monotonic overflow within a single millisecond is the only
		// failure mode; retrying on the next tick resolves it.
		id = ulid.MustNew(ulid.Timestamp(time.Now().Add(time.Millisecond)), g.entropy)
	}
	return id.String()
}
