// Package checkout turns a cart selection into submitted orders and a
// payment redirect.
//
// A checkout pass is a linear state machine:
//
//	Idle → Validating → SubmittingOrders → CreatingPayment → Redirecting
//
// Any stage may fail back to Idle with a user-visible message. Nothing is
// retried and already-created orders are never rolled back; when orders
// exist but no payment page could be reached, the message points the user
// to their order history instead of asking them to order again.
//
// Order submission sits behind OrderSubmitter so the orchestrator does not
// care whether the backend speaks the all-or-nothing batch contract or the
// legacy one-order-per-request contract. Both produce a SubmitResult that
// Normalize folds into a single BatchResult.
//
// Passes are single-flight per Orchestrator. Each pass gets an attempt ID
// (UUIDv7) that is logged and, when enabled, sent as an Idempotency-Key
// header; no server-side deduplication is assumed.
package checkout
