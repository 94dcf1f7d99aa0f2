// Package harness runs checkout scenarios against a stub backend.
//
// A scenario seeds a cart and selection, scripts the backend's responses,
// runs one checkout pass and checks the outcome, the requests the backend
// saw, and the cart and selection left behind.
//
// # Scenario Format
//
//	name: batch_happy_path
//	description: "What this scenario validates"
//	contract: batch            # or legacy
//	attempt_id: attempt-1
//	setup:
//	  cart:
//	    - { productId: "1", price: "19.99", qty: 3 }
//	  selection: ["1"]
//	backend:
//	  - request: POST /order/add/batch
//	    body: { code: 200, msg: ok, data: ["101"] }
//	  - request: POST /payment/create
//	    body: { paymentNo: PN1 }
//	checkout:
//	  user_id: 1
//	expect:
//	  outcome: redirected
//	  redirect: /payment/redirect/PN1
//	assertions:
//	  - type: request_count
//	    request: POST /payment/create
//	    count: 1
//
// # Assertion Types
//
//   - request_contains: the backend received the request with matching body fields
//   - request_order: requests arrived in the given order
//   - request_count: a request arrived exactly N times
//   - final_cart: the cart holds exactly these lines
//   - final_selection: the selection holds exactly these ids
//
// # Deterministic Testing
//
// Every scenario runs with a fixed attempt id, a fake wall clock
// (testutil.Clock) and a monotonic event sequence (testutil.Sequence), so
// the trace is byte-identical across runs and can be compared against a
// golden file with RunWithGolden.
package harness
