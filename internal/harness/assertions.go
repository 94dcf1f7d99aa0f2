package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nRequests:\n")
		for _, event := range e.Trace {
			if event.Type == EventRequest {
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Request, event.Body)
			}
		}
	}

	return buf.String()
}

func requests(trace []TraceEvent) []TraceEvent {
	var out []TraceEvent
	for _, event := range trace {
		if event.Type == EventRequest {
			out = append(out, event)
		}
	}
	return out
}

// assertRequestContains checks that the backend received the request with
// a body matching the expected fields (subset match).
func assertRequestContains(trace []TraceEvent, assertion Assertion) error {
	expected := normalizeJSON(assertion.Body)
	for _, event := range requests(trace) {
		if event.Request == assertion.Request && matchBody(event.Body, expected) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertRequestContains,
		Expected: fmt.Sprintf("request %s with body %v", assertion.Request, assertion.Body),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertRequestOrder checks that requests arrived in the given order.
// Requests don't need to be consecutive; each expected request is matched
// to the next occurrence after the previous match.
func assertRequestOrder(trace []TraceEvent, assertion Assertion) error {
	reqs := requests(trace)
	pos := 0
	for _, want := range assertion.Requests {
		found := false
		for pos < len(reqs) {
			pos++
			if reqs[pos-1].Request == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertRequestOrder,
				Expected: fmt.Sprintf("requests in order: %v", assertion.Requests),
				Actual:   fmt.Sprintf("%s missing or out of order", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertRequestCount checks the request was received exactly Count times.
func assertRequestCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range requests(trace) {
		if event.Request == assertion.Request {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Request),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalCart checks the persisted cart holds exactly the expected
// lines, in order.
func assertFinalCart(c cart.Cart, assertion Assertion) error {
	got := make([]string, 0, len(c))
	for _, li := range c {
		got = append(got, fmt.Sprintf("%s:%d", li.ProductID, li.Quantity))
	}
	want := make([]string, 0, len(assertion.Lines))
	for _, l := range assertion.Lines {
		want = append(want, fmt.Sprintf("%s:%d", shop.NewID(l.ProductID), l.Qty))
	}

	if strings.Join(got, ",") != strings.Join(want, ",") {
		return &AssertionError{
			Type:     AssertFinalCart,
			Expected: fmt.Sprintf("cart %v", want),
			Actual:   fmt.Sprintf("cart %v", got),
		}
	}
	return nil
}

// assertFinalSelection checks the selection holds exactly the expected ids.
func assertFinalSelection(ids []shop.ID, assertion Assertion) error {
	got := make([]string, 0, len(ids))
	for _, id := range ids {
		got = append(got, id.String())
	}

	if strings.Join(got, ",") != strings.Join(assertion.IDs, ",") {
		return &AssertionError{
			Type:     AssertFinalSelection,
			Expected: fmt.Sprintf("selection %v", assertion.IDs),
			Actual:   fmt.Sprintf("selection %v", got),
		}
	}
	return nil
}

// normalizeJSON round-trips v through encoding/json so YAML-decoded
// expectations compare equal to JSON-decoded request bodies (all numbers
// become float64).
func normalizeJSON(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// matchBody checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored. Nested values must match exactly.
func matchBody(actual, expected any) bool {
	expectedMap, ok := expected.(map[string]any)
	if !ok || len(expectedMap) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expectedMap {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !reflect.DeepEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRequestContains:
			err = assertRequestContains(result.Trace, assertion)
		case AssertRequestOrder:
			err = assertRequestOrder(result.Trace, assertion)
		case AssertRequestCount:
			err = assertRequestCount(result.Trace, assertion)
		case AssertFinalCart:
			err = assertFinalCart(result.Cart, assertion)
		case AssertFinalSelection:
			err = assertFinalSelection(result.Selection, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
