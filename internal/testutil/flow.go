package testutil

// DefaultAttemptID is what FixedAttempt returns when given no id.
const DefaultAttemptID = "attempt-default"

// FixedAttempt returns the same checkout attempt id every time.
//
// Unlike checkout.FixedGenerator, which hands out ids in sequence and
// panics when they run out, FixedAttempt never runs dry, which suits
// golden traces where every pass should carry the same id.
//
// Thread-safety: FixedAttempt is stateless and safe for concurrent use.
type FixedAttempt struct {
	id string
}

// NewFixedAttempt creates a generator for id.
//
// The id is typically set in the scenario YAML:
//
//	attempt_id: "attempt-00000000-0000-0000-0000-000000000001"
func NewFixedAttempt(id string) *FixedAttempt {
	if id == "" {
		id = DefaultAttemptID
	}
	return &FixedAttempt{id: id}
}

// Generate returns the fixed id. Implements checkout.AttemptGenerator.
func (g *FixedAttempt) Generate() string {
	return g.id
}
