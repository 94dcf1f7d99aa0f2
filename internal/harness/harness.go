package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/checkout"
	"github.com/roach88/shopcart/internal/kv"
	"github.com/roach88/shopcart/internal/shop"
	"github.com/roach88/shopcart/internal/testutil"
)

// Harness holds the per-scenario wiring: in-memory storage on a fake clock,
// a stub backend, and a trace recorder with a deterministic sequence.
type Harness struct {
	mu     sync.Mutex
	seq    *testutil.Sequence
	clock  *testutil.Clock
	result *Result
	logger *slog.Logger

	cart      *cart.Store
	selection *cart.Selection
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against fresh in-memory storage and its own stub
// backend for isolation.
//
// Execution flow:
// 1. Seed cart and selection, then advance the clock by setup.elapsed
// 2. Start the stub backend with the scripted responses
// 3. Run one checkout pass, recording every state change and exchange
// 4. Check the expect clause and assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	h := &Harness{
		seq:    testutil.NewSequence(),
		clock:  testutil.NewClock(),
		result: NewResult(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	mem := kv.NewMemory(kv.WithClock(h.clock.Now))
	h.cart = cart.NewStore(mem, cart.WithLogger(h.logger))
	h.selection = cart.NewSelection(kv.WithTTL(mem, scenario.SelectionTTL), cart.WithSelectionLogger(h.logger))

	if err := h.seed(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	h.clock.Advance(scenario.Setup.Elapsed)

	backend := newStubBackend(scenario.Backend, h.record)
	defer backend.Close()

	client := api.New(backend.URL(), api.WithLogger(h.logger))

	var submitter checkout.OrderSubmitter = checkout.NewBatchSubmitter(client)
	if scenario.Contract == "legacy" {
		submitter = checkout.NewPerItemSubmitter(client)
	}

	prune := true
	if scenario.Prune != nil {
		prune = *scenario.Prune
	}

	o := checkout.New(h.cart, h.selection, submitter, client,
		checkout.NavigatorFunc(func(context.Context, string) error { return nil }),
		checkout.WithLogger(h.logger),
		checkout.WithAttemptGenerator(testutil.NewFixedAttempt(scenario.AttemptID)),
		checkout.WithIdempotencyKeys(scenario.IdempotencyHeader),
		checkout.WithPruneOnSuccess(prune),
		checkout.WithStateHook(func(_, to checkout.State) {
			h.record(TraceEvent{Type: EventState, State: to.String()})
		}),
	)

	out, err := o.Checkout(ctx, checkout.Request{
		UserID:   scenario.Checkout.UserID,
		Address:  scenario.Checkout.Address,
		Provider: scenario.Checkout.Provider,
	})
	h.record(outcomeEvent(out, err))

	result := h.result
	for _, e := range checkExpect(scenario.Expect, out, err) {
		result.AddError(e)
	}

	result.Cart = h.cart.Get(ctx)
	result.Selection = h.selection.IDs(ctx)

	for _, e := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(e)
	}
	return result, nil
}

func (h *Harness) record(ev TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev.Seq = h.seq.Next()
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) seed(ctx context.Context, setup Setup) error {
	for i, line := range setup.Cart {
		price, err := shop.ParseMoney(line.Price)
		if err != nil {
			return fmt.Errorf("cart[%d]: %w", i, err)
		}
		_, err = h.cart.Add(ctx, cart.LineItem{
			ProductID:   shop.NewID(line.ProductID),
			ProductName: line.Name,
			UnitPrice:   price,
			Stock:       line.Stock,
			Quantity:    line.Qty,
		})
		if err != nil {
			return fmt.Errorf("cart[%d]: %w", i, err)
		}
	}

	if len(setup.Selection) == 0 {
		return nil
	}
	ids := make([]shop.ID, 0, len(setup.Selection))
	for _, id := range setup.Selection {
		ids = append(ids, shop.NewID(id))
	}
	return h.selection.Set(ctx, ids)
}

func outcomeEvent(out *checkout.Outcome, err error) TraceEvent {
	ev := TraceEvent{Type: EventOutcome}
	if out != nil {
		ev.Target = out.RedirectURL
		ev.Message = out.Message
	}

	var ce *checkout.Error
	if errors.As(err, &ce) {
		ev.State = ce.Stage.String()
		ev.Message = ce.Message
		if ce.Reason != nil {
			ev.Error = ce.Reason.Error()
		}
	} else if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// checkExpect compares a pass against the expect clause.
func checkExpect(exp ExpectClause, out *checkout.Outcome, err error) []string {
	var errs []string

	var ce *checkout.Error
	failed := errors.As(err, &ce)

	message := ""
	switch {
	case failed:
		message = ce.Message
	case out != nil:
		message = out.Message
	}

	switch exp.Outcome {
	case OutcomeRedirected:
		if err != nil {
			errs = append(errs, fmt.Sprintf("expected redirect, got error: %v", err))
		}
	case OutcomeFailed:
		if !failed {
			errs = append(errs, fmt.Sprintf("expected failure in %s, got %v", exp.Stage, err))
		} else if ce.Stage.String() != exp.Stage {
			errs = append(errs, fmt.Sprintf("expected failure in %s, failed in %s", exp.Stage, ce.Stage))
		}
	}

	if exp.Message != "" && !strings.Contains(message, exp.Message) {
		errs = append(errs, fmt.Sprintf("expected message containing %q, got %q", exp.Message, message))
	}

	if exp.Redirect != "" {
		got := ""
		if out != nil {
			got = out.RedirectURL
		}
		if got != exp.Redirect {
			errs = append(errs, fmt.Sprintf("expected redirect to %q, got %q", exp.Redirect, got))
		}
	}

	if exp.Orders != nil {
		var got []string
		if out != nil {
			for _, id := range out.Orders.OrderIDs() {
				got = append(got, id.String())
			}
		}
		if strings.Join(got, ",") != strings.Join(exp.Orders, ",") {
			errs = append(errs, fmt.Sprintf("expected orders %v, got %v", exp.Orders, got))
		}
	}
	return errs
}
