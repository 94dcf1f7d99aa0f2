package checkout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/kv"
	"github.com/roach88/shopcart/internal/shop"
)

type fakeOrders struct {
	mu sync.Mutex

	batchIDs []shop.ID
	batchErr error
	single   map[shop.ID]error

	batchReqs  []shop.BatchOrderRequest
	singleReqs []shop.OrderRequest
	keys       []string
	nextID     int64
}

func (f *fakeOrders) CreateOrderBatch(_ context.Context, req shop.BatchOrderRequest, opts ...api.CallOption) ([]shop.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchReqs = append(f.batchReqs, req)
	f.keys = append(f.keys, idempotencyKey(opts))
	return f.batchIDs, f.batchErr
}

func (f *fakeOrders) CreateOrder(_ context.Context, req shop.OrderRequest, opts ...api.CallOption) (shop.ID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.singleReqs = append(f.singleReqs, req)
	f.keys = append(f.keys, idempotencyKey(opts))
	if err := f.single[req.ProductID]; err != nil {
		return "", err
	}
	f.nextID++
	return shop.IDFromInt(500 + f.nextID), nil
}

type fakePayments struct {
	mu sync.Mutex

	session shop.PaymentSession
	err     error
	entered chan struct{}
	release chan struct{}

	reqs []shop.PaymentRequest
	keys []string
}

func (f *fakePayments) CreatePayment(_ context.Context, req shop.PaymentRequest, opts ...api.CallOption) (shop.PaymentSession, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.keys = append(f.keys, idempotencyKey(opts))
	return f.session, f.err
}

func (f *fakePayments) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type recordingNavigator struct {
	targets []string
	err     error
}

func (n *recordingNavigator) Navigate(_ context.Context, target string) error {
	n.targets = append(n.targets, target)
	return n.err
}

type recordingControl struct {
	mu     sync.Mutex
	events []string
}

func (c *recordingControl) Disable() { c.record("disable") }
func (c *recordingControl) Enable()  { c.record("enable") }

func (c *recordingControl) record(e string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func idempotencyKey(opts []api.CallOption) string {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for _, opt := range opts {
		opt(req)
	}
	return req.Header.Get("Idempotency-Key")
}

type fixture struct {
	cart      *cart.Store
	selection *cart.Selection
	orders    *fakeOrders
	payments  *fakePayments
	nav       *recordingNavigator
	control   *recordingControl
	states    []State
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := kv.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		cart:      cart.NewStore(mem, cart.WithLogger(logger)),
		selection: cart.NewSelection(mem, cart.WithSelectionLogger(logger)),
		orders:    &fakeOrders{},
		payments:  &fakePayments{},
		nav:       &recordingNavigator{},
		control:   &recordingControl{},
	}
}

func (f *fixture) orchestrator(sub OrderSubmitter, opts ...Option) *Orchestrator {
	base := []Option{
		WithControl(f.control),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAttemptGenerator(NewFixedGenerator("attempt-1", "attempt-2", "attempt-3")),
		WithStateHook(func(_, to State) { f.states = append(f.states, to) }),
	}
	return New(f.cart, f.selection, sub, f.payments, f.nav, append(base, opts...)...)
}

func (f *fixture) seed(t *testing.T, items ...cart.LineItem) {
	t.Helper()
	ctx := context.Background()
	ids := make([]shop.ID, 0, len(items))
	for _, it := range items {
		ok, err := f.cart.Add(ctx, it)
		require.NoError(t, err)
		require.True(t, ok)
		ids = append(ids, it.ProductID)
	}
	require.NoError(t, f.selection.Set(ctx, ids))
}

func line(id string, price string, qty int) cart.LineItem {
	p, err := shop.ParseMoney(price)
	if err != nil {
		panic(err)
	}
	return cart.LineItem{ProductID: shop.NewID(id), ProductName: "product " + id, UnitPrice: p, Quantity: qty}
}

func TestCheckoutBatchHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "19.99", 3), line("2", "0.10", 1))
	f.orders.batchIDs = []shop.ID{"101", "102"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN1"}

	o := f.orchestrator(NewBatchSubmitter(f.orders))
	out, err := o.Checkout(ctx, Request{UserID: 1, Address: "addr"})
	require.NoError(t, err)

	require.Len(t, f.orders.batchReqs, 1)
	assert.Equal(t, shop.BatchOrderRequest{
		UserID: 1,
		Items:  []shop.OrderItem{{ProductID: "1", Num: 3}, {ProductID: "2", Num: 1}},
	}, f.orders.batchReqs[0])

	require.Len(t, f.payments.reqs, 1)
	assert.Equal(t, shop.PaymentRequest{
		UserID:   1,
		OrderIDs: []shop.ID{"101", "102"},
		Amount:   "60.07",
		Provider: "ALIPAY",
		Address:  "addr",
	}, f.payments.reqs[0])

	assert.Equal(t, []string{"/payment/redirect/PN1"}, f.nav.targets)
	assert.Equal(t, "attempt-1", out.AttemptID)
	assert.Equal(t, "60.07", out.Amount)
	assert.Equal(t, []OrderRef{{ProductID: "1", OrderID: "101"}, {ProductID: "2", OrderID: "102"}}, out.Orders.Success)
	assert.Empty(t, out.Orders.Failed)
	assert.Empty(t, out.Message)
	assert.Equal(t, "/payment/redirect/PN1", out.RedirectURL)

	assert.Equal(t, []string{"disable"}, f.control.events, "control stays disabled after navigation")
	assert.Equal(t, []State{StateValidating, StateSubmittingOrders, StateCreatingPayment, StateRedirecting, StateIdle}, f.states)
	assert.Equal(t, StateIdle, o.State())

	assert.Empty(t, f.cart.Get(ctx), "ordered lines are pruned")
	assert.Empty(t, f.selection.IDs(ctx))
}

func TestCheckoutPrefersPaymentURL(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "5.00", 1))
	f.orders.batchIDs = []shop.ID{"9"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN1", PaymentURL: "https://pay.example/x"}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://pay.example/x"}, f.nav.targets)
}

func TestCheckoutEscapesPaymentNo(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "5.00", 1))
	f.orders.batchIDs = []shop.ID{"9"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN 1/2"}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"/payment/redirect/PN%201%2F2"}, f.nav.targets)
}

func TestCheckoutBatchRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "19.99", 3), line("2", "0.10", 1))
	f.orders.batchErr = &api.Error{Kind: api.KindRejected, Op: "POST /order/add/batch", Status: 400, Code: 400, Message: "stock insufficient"}

	o := f.orchestrator(NewBatchSubmitter(f.orders))
	out, err := o.Checkout(ctx, Request{UserID: 1})
	require.Error(t, err)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StateSubmittingOrders, ce.Stage)
	assert.Equal(t, "stock insufficient", ce.Message)
	assert.ErrorIs(t, err, ErrOrdersRejected)
	assert.True(t, api.IsRejected(err))
	assert.False(t, OrdersCreated(err))

	assert.Equal(t, 0, f.payments.calls(), "payment must not be requested")
	assert.Empty(t, f.nav.targets)
	assert.Equal(t, []OrderFailure{
		{ProductID: "1", Reason: "stock insufficient"},
		{ProductID: "2", Reason: "stock insufficient"},
	}, out.Orders.Failed)

	assert.Equal(t, []string{"disable", "enable"}, f.control.events)
	assert.Equal(t, StateIdle, o.State())
	assert.Len(t, f.cart.Get(ctx), 2, "cart untouched on failure")
	assert.Len(t, f.selection.IDs(ctx), 2)
}

func TestCheckoutTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchErr = &api.Error{Kind: api.KindTransport, Op: "POST /order/add/batch", Err: errors.New("connection refused")}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.Error(t, err)
	assert.Equal(t, "cannot reach backend: connection refused", UserMessage(err))
	assert.True(t, api.IsTransport(err))
	assert.Equal(t, 0, f.payments.calls())
}

func TestCheckoutLegacyPartialSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "2.00", 1), line("2", "3.00", 2), line("3", "1.50", 1))
	f.orders.single = map[shop.ID]error{
		"2": &api.Error{Kind: api.KindRejected, Op: "POST /order/add", Code: 500, Message: "out of stock"},
	}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN7"}

	o := f.orchestrator(NewPerItemSubmitter(f.orders))
	out, err := o.Checkout(ctx, Request{UserID: 4})
	require.NoError(t, err)

	assert.Len(t, f.orders.singleReqs, 3, "a failed item does not stop the rest")
	assert.Equal(t, []OrderRef{{ProductID: "1", OrderID: "501"}, {ProductID: "3", OrderID: "502"}}, out.Orders.Success)
	assert.Equal(t, "some items could not be ordered: 2:out of stock", out.Message)

	require.Len(t, f.payments.reqs, 1)
	assert.Equal(t, []shop.ID{"501", "502"}, f.payments.reqs[0].OrderIDs)
	assert.Equal(t, "3.50", f.payments.reqs[0].Amount, "amount covers only the ordered lines")
	assert.Equal(t, "3.50", out.Amount)

	remaining := f.cart.Get(ctx)
	require.Len(t, remaining, 1)
	assert.Equal(t, shop.ID("2"), remaining[0].ProductID)
	assert.Equal(t, []shop.ID{"2"}, f.selection.IDs(ctx))
}

func TestCheckoutLegacyAllFailedUsesFirstReason(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "2.00", 1), line("2", "3.00", 1))
	f.orders.single = map[shop.ID]error{
		"1": &api.Error{Kind: api.KindRejected, Code: 500, Message: "first"},
		"2": &api.Error{Kind: api.KindRejected, Code: 500, Message: "second"},
	}

	_, err := f.orchestrator(NewPerItemSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 4})
	require.Error(t, err)
	assert.Equal(t, "first", UserMessage(err))
	assert.Equal(t, 0, f.payments.calls())
}

func TestCheckoutValidation(t *testing.T) {
	tests := []struct {
		name   string
		seed   bool
		userID int64
		want   error
	}{
		{name: "empty selection", seed: false, userID: 1, want: ErrNoSelection},
		{name: "zero user", seed: true, userID: 0, want: ErrInvalidUser},
		{name: "negative user", seed: true, userID: -3, want: ErrInvalidUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.seed {
				f.seed(t, line("1", "1.00", 1))
			}

			_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: tt.userID})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.want.Error(), UserMessage(err))
			assert.Empty(t, f.orders.batchReqs, "no network call on validation failure")
			assert.Equal(t, []string{"disable", "enable"}, f.control.events)
		})
	}
}

func TestCheckoutSelectionOutsideCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	require.NoError(t, f.selection.Set(ctx, []shop.ID{"99"}))

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(ctx, Request{UserID: 1})
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestCheckoutOnlySelectedLines(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1), line("2", "2.00", 1))
	require.NoError(t, f.selection.Set(ctx, []shop.ID{"2"}))
	f.orders.batchIDs = []shop.ID{"7"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}

	out, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(ctx, Request{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "2.00", out.Amount)
	assert.Equal(t, []shop.OrderItem{{ProductID: "2", Num: 1}}, f.orders.batchReqs[0].Items)

	remaining := f.cart.Get(ctx)
	require.Len(t, remaining, 1)
	assert.Equal(t, shop.ID("1"), remaining[0].ProductID)
}

func TestCheckoutPaymentFailureKeepsOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.err = &api.Error{Kind: api.KindMalformed, Op: "POST /payment/create", Status: 200, Err: errors.New("bad json")}

	o := f.orchestrator(NewBatchSubmitter(f.orders))
	out, err := o.Checkout(ctx, Request{UserID: 1})
	require.Error(t, err)

	var ce *Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StateCreatingPayment, ce.Stage)
	assert.ErrorIs(t, err, ErrPaymentFailed)
	assert.True(t, api.IsMalformed(err))
	assert.True(t, OrdersCreated(err))
	assert.Contains(t, ce.Message, "order history")
	assert.NotContains(t, ce.Message, "try again")

	assert.Equal(t, []shop.ID{"11"}, out.Orders.OrderIDs())
	assert.Empty(t, f.nav.targets)
	assert.Equal(t, []string{"disable", "enable"}, f.control.events)
	assert.Empty(t, f.cart.Get(ctx), "created orders are pruned even when payment fails")
}

func TestCheckoutNoPaymentDestination(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}

	out, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPaymentDestination)
	assert.True(t, OrdersCreated(err))
	assert.Contains(t, UserMessage(err), "order history")
	assert.Equal(t, []shop.ID{"11"}, out.Orders.OrderIDs())
	assert.Empty(t, f.nav.targets)
	assert.Equal(t, []string{"disable", "enable"}, f.control.events)
}

func TestCheckoutNavigationFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}
	f.nav.err = errors.New("no browser")

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNavigation)
	assert.Equal(t, StateRedirecting, err.(*Error).Stage)
	assert.Equal(t, []string{"disable", "enable"}, f.control.events)
}

func TestCheckoutWithoutPrune(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders), WithPruneOnSuccess(false)).Checkout(ctx, Request{UserID: 1})
	require.NoError(t, err)
	assert.Len(t, f.cart.Get(ctx), 1)
	assert.Equal(t, []shop.ID{"1"}, f.selection.IDs(ctx))
}

func TestCheckoutProvider(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}

	o := f.orchestrator(NewBatchSubmitter(f.orders), WithProvider("WECHAT"), WithPruneOnSuccess(false))
	_, err := o.Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	_, err = o.Checkout(context.Background(), Request{UserID: 1, Provider: "STRIPE"})
	require.NoError(t, err)

	require.Len(t, f.payments.reqs, 2)
	assert.Equal(t, "WECHAT", f.payments.reqs[0].Provider)
	assert.Equal(t, "STRIPE", f.payments.reqs[1].Provider)
}

func TestCheckoutIdempotencyKeys(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders), WithIdempotencyKeys(true)).Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"attempt-1"}, f.orders.keys)
	assert.Equal(t, []string{"attempt-1"}, f.payments.keys)
}

func TestCheckoutNoIdempotencyKeysByDefault(t *testing.T) {
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}

	_, err := f.orchestrator(NewBatchSubmitter(f.orders)).Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, f.orders.keys)
}

func TestCheckoutSingleFlight(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, line("1", "1.00", 1))
	f.orders.batchIDs = []shop.ID{"11"}
	f.payments.session = shop.PaymentSession{PaymentNo: "PN"}
	f.payments.entered = make(chan struct{})
	f.payments.release = make(chan struct{})

	o := f.orchestrator(NewBatchSubmitter(f.orders))

	done := make(chan error, 1)
	go func() {
		_, err := o.Checkout(ctx, Request{UserID: 1})
		done <- err
	}()

	select {
	case <-f.payments.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first checkout never reached payment")
	}

	out, err := o.Checkout(ctx, Request{UserID: 1})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrInProgress)
	var cerr *Error
	assert.False(t, errors.As(err, &cerr), "in-progress is reported bare, not as *Error")

	close(f.payments.release)
	require.NoError(t, <-done)
	assert.Len(t, f.orders.batchReqs, 1, "second pass submitted nothing")
	assert.Equal(t, StateIdle, o.State())
}

// End to end against the real client and an HTTP backend.
func TestCheckoutOverHTTP(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/order/add/batch":
			_, _ = io.WriteString(w, `{"code":200,"msg":"ok","data":["101","102"]}`)
		case "/payment/create":
			_, _ = io.WriteString(w, `{"paymentNo":"PN1"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := api.New(srv.URL)
	f := newFixture(t)
	f.seed(t, line("1", "19.99", 3), line("2", "0.10", 1))

	o := New(f.cart, f.selection, NewBatchSubmitter(client), client, f.nav,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	out, err := o.Checkout(context.Background(), Request{UserID: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /order/add/batch", "POST /payment/create"}, paths)
	assert.Equal(t, []shop.ID{"101", "102"}, out.Orders.OrderIDs())
	assert.Equal(t, []string{"/payment/redirect/PN1"}, f.nav.targets)
	assert.Equal(t, srv.URL+"/payment/redirect/PN1", client.ResolveURL(out.RedirectURL))
	assert.Len(t, out.AttemptID, 36)
}
