package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// BatchOrderer creates several orders in one all-or-nothing request.
// *api.Client implements it.
type BatchOrderer interface {
	CreateOrderBatch(ctx context.Context, req shop.BatchOrderRequest, opts ...api.CallOption) ([]shop.ID, error)
}

// SingleOrderer creates one order per request. *api.Client implements it.
type SingleOrderer interface {
	CreateOrder(ctx context.Context, req shop.OrderRequest, opts ...api.CallOption) (shop.ID, error)
}

// OrderSubmitter turns checkout lines into backend orders.
type OrderSubmitter interface {
	Submit(ctx context.Context, userID int64, lines []cart.LineItem, opts ...api.CallOption) SubmitResult
}

// ResultKind tags a SubmitResult.
type ResultKind int

const (
	// KindAtomic results come from a single request that either created
	// every order or none.
	KindAtomic ResultKind = iota + 1

	// KindPerItem results carry one outcome per submitted line.
	KindPerItem
)

func (k ResultKind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindPerItem:
		return "per_item"
	default:
		return "unknown"
	}
}

// SubmitResult is what an OrderSubmitter reports.
//
// For KindAtomic, OrderIDs holds the created ids in Items order, or Err is
// set and nothing was created. For KindPerItem, Outcomes holds one entry
// per item.
type SubmitResult struct {
	Kind  ResultKind
	Items []shop.OrderItem

	OrderIDs []shop.ID
	Err      error

	Outcomes []ItemOutcome
}

// FirstErr returns the first failure cause, or nil.
func (r SubmitResult) FirstErr() error {
	if r.Err != nil {
		return r.Err
	}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// ItemOutcome is the result of submitting one line.
type ItemOutcome struct {
	ProductID shop.ID
	OrderID   shop.ID
	Err       error
}

// OrderRef is a created order.
type OrderRef struct {
	ProductID shop.ID `json:"productId"`
	OrderID   shop.ID `json:"orderId"`
}

// OrderFailure is a line that produced no order.
type OrderFailure struct {
	ProductID shop.ID `json:"productId"`
	Reason    string  `json:"reason"`
}

// BatchResult is the normalized outcome of order submission.
type BatchResult struct {
	Success []OrderRef     `json:"success"`
	Failed  []OrderFailure `json:"failed"`
}

// OrderIDs returns the created order ids in success order.
func (r BatchResult) OrderIDs() []shop.ID {
	ids := make([]shop.ID, 0, len(r.Success))
	for _, s := range r.Success {
		ids = append(ids, s.OrderID)
	}
	return ids
}

// ProductIDs returns the product ids of the created orders.
func (r BatchResult) ProductIDs() []shop.ID {
	ids := make([]shop.ID, 0, len(r.Success))
	for _, s := range r.Success {
		ids = append(ids, s.ProductID)
	}
	return ids
}

// FailureSummary renders failures as "productId:reason" pairs joined by
// "; ".
func (r BatchResult) FailureSummary() string {
	parts := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		parts = append(parts, fmt.Sprintf("%s:%s", f.ProductID, f.Reason))
	}
	return strings.Join(parts, "; ")
}

// Normalize folds either kind of SubmitResult into a BatchResult.
func Normalize(res SubmitResult) BatchResult {
	out := BatchResult{Success: []OrderRef{}, Failed: []OrderFailure{}}

	switch res.Kind {
	case KindAtomic:
		if res.Err != nil {
			reason := api.UserMessage(res.Err)
			for _, it := range res.Items {
				out.Failed = append(out.Failed, OrderFailure{ProductID: it.ProductID, Reason: reason})
			}
			return out
		}
		for i, it := range res.Items {
			if i < len(res.OrderIDs) && !res.OrderIDs[i].IsZero() {
				out.Success = append(out.Success, OrderRef{ProductID: it.ProductID, OrderID: res.OrderIDs[i]})
				continue
			}
			out.Failed = append(out.Failed, OrderFailure{ProductID: it.ProductID, Reason: "no order id returned"})
		}
	case KindPerItem:
		for _, o := range res.Outcomes {
			switch {
			case o.Err != nil:
				out.Failed = append(out.Failed, OrderFailure{ProductID: o.ProductID, Reason: api.UserMessage(o.Err)})
			case o.OrderID.IsZero():
				out.Failed = append(out.Failed, OrderFailure{ProductID: o.ProductID, Reason: "no order id returned"})
			default:
				out.Success = append(out.Success, OrderRef{ProductID: o.ProductID, OrderID: o.OrderID})
			}
		}
	}
	return out
}

func orderItems(lines []cart.LineItem) []shop.OrderItem {
	items := make([]shop.OrderItem, 0, len(lines))
	for _, li := range lines {
		items = append(items, shop.OrderItem{ProductID: li.ProductID, Num: li.Quantity})
	}
	return items
}

// BatchSubmitter submits every line in one POST /order/add/batch.
type BatchSubmitter struct {
	Orders BatchOrderer
}

// NewBatchSubmitter creates a BatchSubmitter.
func NewBatchSubmitter(orders BatchOrderer) *BatchSubmitter {
	return &BatchSubmitter{Orders: orders}
}

// Submit implements OrderSubmitter.
func (s *BatchSubmitter) Submit(ctx context.Context, userID int64, lines []cart.LineItem, opts ...api.CallOption) SubmitResult {
	items := orderItems(lines)
	ids, err := s.Orders.CreateOrderBatch(ctx, shop.BatchOrderRequest{UserID: userID, Items: items}, opts...)
	return SubmitResult{Kind: KindAtomic, Items: items, OrderIDs: ids, Err: err}
}

// PerItemSubmitter submits one POST /order/add per line, in order. A
// failure does not stop the remaining lines.
type PerItemSubmitter struct {
	Orders SingleOrderer
}

// NewPerItemSubmitter creates a PerItemSubmitter.
func NewPerItemSubmitter(orders SingleOrderer) *PerItemSubmitter {
	return &PerItemSubmitter{Orders: orders}
}

// Submit implements OrderSubmitter.
func (s *PerItemSubmitter) Submit(ctx context.Context, userID int64, lines []cart.LineItem, opts ...api.CallOption) SubmitResult {
	items := orderItems(lines)
	res := SubmitResult{Kind: KindPerItem, Items: items, Outcomes: make([]ItemOutcome, 0, len(items))}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			res.Outcomes = append(res.Outcomes, ItemOutcome{ProductID: it.ProductID, Err: err})
			continue
		}
		id, err := s.Orders.CreateOrder(ctx, shop.OrderRequest{UserID: userID, ProductID: it.ProductID, Num: it.Num}, opts...)
		res.Outcomes = append(res.Outcomes, ItemOutcome{ProductID: it.ProductID, OrderID: id, Err: err})
	}
	return res
}
