package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []cart.LineItem
		want  string
	}{
		{name: "empty", lines: nil, want: "0.00"},
		{name: "mixed", lines: []cart.LineItem{line("1", "19.99", 3), line("2", "0.10", 1)}, want: "60.07"},
		{name: "no float drift", lines: []cart.LineItem{line("1", "0.10", 1), line("2", "0.20", 1)}, want: "0.30"},
		{name: "whole", lines: []cart.LineItem{line("1", "5", 2)}, want: "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeTotal(tt.lines))
		})
	}
}

func TestNormalizeAtomicSuccess(t *testing.T) {
	res := SubmitResult{
		Kind:     KindAtomic,
		Items:    []shop.OrderItem{{ProductID: "1", Num: 3}, {ProductID: "2", Num: 1}},
		OrderIDs: []shop.ID{"101", "102"},
	}

	got := Normalize(res)
	assert.Equal(t, []OrderRef{{ProductID: "1", OrderID: "101"}, {ProductID: "2", OrderID: "102"}}, got.Success)
	assert.Empty(t, got.Failed)
	assert.Equal(t, []shop.ID{"101", "102"}, got.OrderIDs())
}

func TestNormalizeAtomicShortIDList(t *testing.T) {
	res := SubmitResult{
		Kind:     KindAtomic,
		Items:    []shop.OrderItem{{ProductID: "1", Num: 1}, {ProductID: "2", Num: 1}},
		OrderIDs: []shop.ID{"101"},
	}

	got := Normalize(res)
	assert.Equal(t, []OrderRef{{ProductID: "1", OrderID: "101"}}, got.Success)
	assert.Equal(t, []OrderFailure{{ProductID: "2", Reason: "no order id returned"}}, got.Failed)
}

func TestNormalizeAtomicFailure(t *testing.T) {
	res := SubmitResult{
		Kind:  KindAtomic,
		Items: []shop.OrderItem{{ProductID: "1", Num: 1}, {ProductID: "2", Num: 1}},
		Err:   &api.Error{Kind: api.KindRejected, Code: 400, Message: "stock insufficient"},
	}

	got := Normalize(res)
	assert.Empty(t, got.Success)
	assert.Equal(t, "1:stock insufficient; 2:stock insufficient", got.FailureSummary())
}

func TestNormalizePerItem(t *testing.T) {
	res := SubmitResult{
		Kind: KindPerItem,
		Outcomes: []ItemOutcome{
			{ProductID: "1", OrderID: "501"},
			{ProductID: "2", Err: errors.New("boom")},
			{ProductID: "3"},
		},
	}

	got := Normalize(res)
	assert.Equal(t, []OrderRef{{ProductID: "1", OrderID: "501"}}, got.Success)
	assert.Equal(t, []OrderFailure{
		{ProductID: "2", Reason: "boom"},
		{ProductID: "3", Reason: "no order id returned"},
	}, got.Failed)
	assert.EqualError(t, res.FirstErr(), "boom")
}

func TestNormalizeEmptyListsAreNonNil(t *testing.T) {
	got := Normalize(SubmitResult{Kind: KindPerItem})
	assert.NotNil(t, got.Success)
	assert.NotNil(t, got.Failed)
}

func TestPerItemSubmitterStopsCallingOnCancel(t *testing.T) {
	orders := &fakeOrders{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewPerItemSubmitter(orders).Submit(ctx, 1, []cart.LineItem{line("1", "1.00", 1), line("2", "1.00", 1)})
	assert.Empty(t, orders.singleReqs)
	require.Len(t, res.Outcomes, 2)
	assert.ErrorIs(t, res.Outcomes[0].Err, context.Canceled)
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "submitting_orders", StateSubmittingOrders.String())
	assert.Equal(t, "unknown", State(42).String())
}
