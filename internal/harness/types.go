package harness

import (
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// Trace event types.
const (
	EventState    = "state"
	EventRequest  = "request"
	EventResponse = "response"
	EventOutcome  = "outcome"
)

// TraceEvent is one observable step of a checkout pass: a state
// transition, a request the stub backend received, the response it sent,
// or the final outcome.
type TraceEvent struct {
	Seq            int64  `json:"seq"`
	Type           string `json:"type"`
	State          string `json:"state,omitempty"`
	Request        string `json:"request,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Status         int    `json:"status,omitempty"`
	Body           any    `json:"body,omitempty"`
	Target         string `json:"target,omitempty"`
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Cart and Selection are the persisted state after the pass.
	Cart      cart.Cart `json:"cart"`
	Selection []shop.ID `json:"selection"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Cart:      cart.Cart{},
		Selection: []shop.ID{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
