// Package cart owns the client-side shopping cart and the checkout selection.
//
// Store is the only writer of the persisted cart. Every mutation is a
// read-modify-write against a kv.Store followed by a synchronous
// notification of subscribed observers:
//
//	store.Subscribe(func(c cart.Cart) { badge.Set(c.TotalQuantity()) })
//	store.Add(ctx, item) // persist, then notify, then return
//
// Invariants maintained on every write:
//   - at most one line per product id
//   - no line with quantity 0 is ever persisted
//   - quantity never exceeds the line's known stock (clamped, best effort)
//
// Corrupted persisted data is logged and read as an empty cart.
package cart
