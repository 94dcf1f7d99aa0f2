package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a checkout scenario.
// A scenario seeds a cart and selection, scripts the backend's responses,
// runs one checkout pass and checks what happened.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Contract is "batch" (default) or "legacy".
	Contract string `yaml:"contract,omitempty"`

	// AttemptID is the fixed attempt id for the pass.
	// If empty, defaults to "attempt-default" for deterministic golden files.
	AttemptID string `yaml:"attempt_id,omitempty"`

	// IdempotencyHeader sends the attempt id as an Idempotency-Key header.
	IdempotencyHeader bool `yaml:"idempotency_header,omitempty"`

	// Prune overrides the prune-on-success default (true).
	Prune *bool `yaml:"prune,omitempty"`

	// SelectionTTL bounds how long the selection survives. Zero keeps it
	// forever.
	SelectionTTL time.Duration `yaml:"selection_ttl,omitempty"`

	// Setup establishes the cart and selection before checkout.
	Setup Setup `yaml:"setup"`

	// Backend scripts the stub backend's responses.
	Backend []StubResponse `yaml:"backend,omitempty"`

	// Checkout holds the request for the pass.
	Checkout CheckoutStep `yaml:"checkout"`

	// Expect describes how the pass should end.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the trace and final state.
	// Supported types: request_contains, request_order, request_count,
	// final_cart, final_selection
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Setup seeds storage before the pass.
type Setup struct {
	// Cart lines are added in order through the cart store.
	Cart []SetupLine `yaml:"cart"`

	// Selection is the list of selected product ids.
	Selection []string `yaml:"selection"`

	// Elapsed advances the clock after seeding, to expire the selection.
	Elapsed time.Duration `yaml:"elapsed,omitempty"`
}

// SetupLine is a cart line in scenario form.
type SetupLine struct {
	ProductID string `yaml:"productId"`
	Name      string `yaml:"productName,omitempty"`
	Price     string `yaml:"price"`
	Stock     *int   `yaml:"stock,omitempty"`
	Qty       int    `yaml:"qty"`
}

// StubResponse is one scripted backend response. Responses for the same
// request are served in order; the last one repeats.
type StubResponse struct {
	// Request is "METHOD /path", e.g. "POST /order/add/batch".
	Request string `yaml:"request"`

	// Status is the HTTP status. Defaults to 200.
	Status int `yaml:"status,omitempty"`

	// Body is encoded as JSON.
	Body any `yaml:"body,omitempty"`

	// Raw is sent verbatim instead of Body, e.g. to simulate a malformed
	// response.
	Raw string `yaml:"raw,omitempty"`
}

// CheckoutStep is the checkout request.
type CheckoutStep struct {
	UserID   int64  `yaml:"user_id"`
	Address  string `yaml:"address,omitempty"`
	Provider string `yaml:"provider,omitempty"`
}

// Outcomes a pass can end in.
const (
	OutcomeRedirected = "redirected"
	OutcomeFailed     = "failed"
)

// ExpectClause specifies how the pass ends.
type ExpectClause struct {
	// Outcome is "redirected" or "failed".
	Outcome string `yaml:"outcome"`

	// Stage is the state a failed pass stopped in, e.g. "submitting_orders".
	Stage string `yaml:"stage,omitempty"`

	// Message must appear in the user-visible message.
	Message string `yaml:"message,omitempty"`

	// Redirect is the expected navigation target.
	Redirect string `yaml:"redirect,omitempty"`

	// Orders are the expected created order ids, in order.
	Orders []string `yaml:"orders,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "request_contains": a request was received with a matching body
	// - "request_order": requests were received in order
	// - "request_count": a request was received exactly N times
	// - "final_cart": the cart holds exactly these lines
	// - "final_selection": the selection holds exactly these ids
	Type string `yaml:"type"`

	// Request is "METHOD /path" (request_contains, request_count).
	Request string `yaml:"request,omitempty"`

	// Body is the expected request body (request_contains).
	// Subset match - only specified fields are validated.
	Body map[string]any `yaml:"body,omitempty"`

	// Count is the expected number of requests (request_count).
	Count int `yaml:"count,omitempty"`

	// Requests is the expected request order (request_order).
	Requests []string `yaml:"requests,omitempty"`

	// Lines are the expected cart lines (final_cart).
	Lines []ExpectedLine `yaml:"lines,omitempty"`

	// IDs are the expected selected ids (final_selection).
	IDs []string `yaml:"ids,omitempty"`
}

// ExpectedLine is a cart line as checked by final_cart.
type ExpectedLine struct {
	ProductID string `yaml:"productId"`
	Qty       int    `yaml:"qty"`
}

// Assertion type constants.
const (
	AssertRequestContains = "request_contains"
	AssertRequestOrder    = "request_order"
	AssertRequestCount    = "request_count"
	AssertFinalCart       = "final_cart"
	AssertFinalSelection  = "final_selection"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Contract {
	case "", "batch", "legacy":
	default:
		return fmt.Errorf("contract must be batch or legacy, got %q", s.Contract)
	}

	for i, line := range s.Setup.Cart {
		if line.ProductID == "" {
			return fmt.Errorf("setup.cart[%d]: productId is required", i)
		}
		if line.Price == "" {
			return fmt.Errorf("setup.cart[%d]: price is required", i)
		}
	}

	for i, r := range s.Backend {
		if _, _, ok := splitRequest(r.Request); !ok {
			return fmt.Errorf("backend[%d]: request must look like \"POST /path\", got %q", i, r.Request)
		}
		if r.Body != nil && r.Raw != "" {
			return fmt.Errorf("backend[%d]: body and raw are mutually exclusive", i)
		}
	}

	switch s.Expect.Outcome {
	case OutcomeRedirected:
	case OutcomeFailed:
		if s.Expect.Stage == "" {
			return fmt.Errorf("expect: stage is required for a failed outcome")
		}
	default:
		return fmt.Errorf("expect: outcome must be %q or %q", OutcomeRedirected, OutcomeFailed)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRequestContains:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_contains", index)
		}
	case AssertRequestOrder:
		if len(a.Requests) == 0 {
			return fmt.Errorf("assertions[%d]: requests list is required for request_order", index)
		}
	case AssertRequestCount:
		if a.Request == "" {
			return fmt.Errorf("assertions[%d]: request is required for request_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for request_count", index)
		}
	case AssertFinalCart, AssertFinalSelection:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func splitRequest(req string) (method, path string, ok bool) {
	method, path, ok = strings.Cut(strings.TrimSpace(req), " ")
	if !ok || method == "" || !strings.HasPrefix(path, "/") {
		return "", "", false
	}
	return method, path, true
}
