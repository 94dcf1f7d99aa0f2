package checkout

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/shopcart/internal/api"
	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// DefaultProvider is used when neither the request nor the orchestrator
// names a payment provider.
const DefaultProvider = "ALIPAY"

// CartSource is the part of the cart the orchestrator reads and prunes.
// *cart.Store implements it.
type CartSource interface {
	Get(ctx context.Context) cart.Cart
	RemoveMany(ctx context.Context, ids []shop.ID) (int, error)
}

// SelectionSource holds the ids chosen for checkout.
// *cart.Selection implements it.
type SelectionSource interface {
	IDs(ctx context.Context) []shop.ID
	Set(ctx context.Context, ids []shop.ID) error
	Clear(ctx context.Context) error
}

// PaymentCreator opens a payment session. *api.Client implements it.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, req shop.PaymentRequest, opts ...api.CallOption) (shop.PaymentSession, error)
}

// Navigator sends the user to the payment page. A nil error means the
// user has left the checkout and the pass is over.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, target string) error {
	return f(ctx, target)
}

// Control is the trigger that starts a pass, e.g. a checkout button.
// It is disabled while a pass runs.
type Control interface {
	Disable()
	Enable()
}

type noopControl struct{}

func (noopControl) Disable() {}
func (noopControl) Enable()  {}

// Request carries the per-pass inputs.
type Request struct {
	UserID   int64
	Address  string
	Provider string
}

// Outcome describes a pass. It is returned alongside errors too, so the
// caller can see which orders exist even when payment failed.
type Outcome struct {
	AttemptID   string              `json:"attemptId"`
	Lines       cart.Cart           `json:"lines"`
	Amount      string              `json:"amount"`
	Orders      BatchResult         `json:"orders"`
	Payment     shop.PaymentSession `json:"payment"`
	RedirectURL string              `json:"redirectUrl,omitempty"`

	// Message is a non-fatal notice, set on partial order failure.
	Message string `json:"message,omitempty"`
}

// Orchestrator runs checkout passes.
//
// Thread-safety: Checkout may be called from any goroutine; concurrent
// calls on one Orchestrator are rejected with ErrInProgress.
type Orchestrator struct {
	cart      CartSource
	selection SelectionSource
	submitter OrderSubmitter
	payments  PaymentCreator
	navigator Navigator

	control     Control
	logger      *slog.Logger
	attempts    AttemptGenerator
	provider    string
	prune       bool
	idempotency bool
	onState     func(from, to State)

	running atomic.Bool
	state   atomic.Int32
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithControl sets the control that is disabled during a pass.
func WithControl(c Control) Option {
	return func(o *Orchestrator) {
		o.control = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithAttemptGenerator overrides the UUIDv7 attempt id generator.
func WithAttemptGenerator(g AttemptGenerator) Option {
	return func(o *Orchestrator) {
		o.attempts = g
	}
}

// WithProvider sets the payment provider used when a Request names none.
func WithProvider(p string) Option {
	return func(o *Orchestrator) {
		o.provider = p
	}
}

// WithPruneOnSuccess controls whether ordered lines are removed from the
// cart and selection once their orders exist. Default: true.
func WithPruneOnSuccess(prune bool) Option {
	return func(o *Orchestrator) {
		o.prune = prune
	}
}

// WithIdempotencyKeys sends the attempt id as an Idempotency-Key header on
// order and payment requests.
func WithIdempotencyKeys(enabled bool) Option {
	return func(o *Orchestrator) {
		o.idempotency = enabled
	}
}

// WithStateHook registers fn to observe every state transition. fn runs on
// the checkout goroutine.
func WithStateHook(fn func(from, to State)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// New creates an Orchestrator.
func New(c CartSource, sel SelectionSource, sub OrderSubmitter, pay PaymentCreator, nav Navigator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cart:      c,
		selection: sel,
		submitter: sub,
		payments:  pay,
		navigator: nav,
		control:   noopControl{},
		logger:    slog.Default(),
		attempts:  UUIDv7Generator{},
		provider:  DefaultProvider,
		prune:     true,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(to State) {
	from := State(o.state.Swap(int32(to)))
	if from == to {
		return
	}
	o.logger.Debug("checkout state", "from", from.String(), "to", to.String())
	if o.onState != nil {
		o.onState(from, to)
	}
}

// Checkout runs one pass.
//
// On success the user has been navigated to the payment page and the
// control stays disabled. A pass started while another is running returns
// ErrInProgress and a nil Outcome. Any other failure is a *Error, and the
// Outcome records whatever was done before the failure.
//
// Outcome.Amount starts as the total of the selected lines. When only some
// of them become orders it is narrowed to the ordered lines, so the amount
// sent with the payment request matches its order ids.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Outcome, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer o.running.Store(false)
	defer o.setState(StateIdle)

	out := &Outcome{AttemptID: o.attempts.Generate()}
	log := o.logger.With("attempt", out.AttemptID)

	o.control.Disable()
	navigated := false
	defer func() {
		if !navigated {
			o.control.Enable()
		}
	}()

	o.setState(StateValidating)
	lines, err := o.collect(ctx, req)
	if err != nil {
		log.Info("checkout rejected", "error", err)
		return out, &Error{Stage: StateValidating, Message: err.Error(), Reason: err}
	}
	out.Lines = lines
	out.Amount = ComputeTotal(lines)

	var callOpts []api.CallOption
	if o.idempotency {
		callOpts = append(callOpts, api.IdempotencyKey(out.AttemptID))
	}

	o.setState(StateSubmittingOrders)
	log.Info("submitting orders", "user", req.UserID, "lines", len(lines), "amount", out.Amount)
	res := o.submitter.Submit(ctx, req.UserID, lines, callOpts...)
	batch := Normalize(res)
	out.Orders = batch

	if len(batch.Success) == 0 {
		msg := ErrOrdersRejected.Error()
		if len(batch.Failed) > 0 && batch.Failed[0].Reason != "" {
			msg = batch.Failed[0].Reason
		}
		log.Warn("order submission failed", "reason", msg)
		return out, &Error{Stage: StateSubmittingOrders, Message: msg, Reason: ErrOrdersRejected, Err: res.FirstErr()}
	}
	if len(batch.Failed) > 0 {
		out.Amount = ComputeTotal(lines.Select(batch.ProductIDs()))
		out.Message = "some items could not be ordered: " + batch.FailureSummary()
		log.Warn("partial order failure", "created", len(batch.Success), "failed", len(batch.Failed))
	}
	if o.prune {
		o.pruneOrdered(ctx, log, batch.ProductIDs())
	}

	o.setState(StateCreatingPayment)
	provider := req.Provider
	if provider == "" {
		provider = o.provider
	}
	session, err := o.payments.CreatePayment(ctx, shop.PaymentRequest{
		UserID:   req.UserID,
		OrderIDs: batch.OrderIDs(),
		Amount:   out.Amount,
		Provider: provider,
		Address:  req.Address,
	}, callOpts...)
	if err != nil {
		log.Error("payment creation failed", "orders", len(batch.Success), "error", err)
		return out, &Error{
			Stage:   StateCreatingPayment,
			Message: "payment could not be started (" + api.UserMessage(err) + "); your orders were created, check your order history",
			Reason:  ErrPaymentFailed,
			Err:     err,
		}
	}
	out.Payment = session

	target := session.PaymentURL
	if target == "" && session.PaymentNo != "" {
		target = api.RedirectPath(session.PaymentNo)
	}
	if target == "" {
		log.Error("payment session has no destination", "orders", len(batch.Success))
		return out, &Error{
			Stage:   StateCreatingPayment,
			Message: "payment was created without a payment page; your orders were created, check your order history",
			Reason:  ErrNoPaymentDestination,
		}
	}

	o.setState(StateRedirecting)
	if err := o.navigator.Navigate(ctx, target); err != nil {
		log.Error("navigation failed", "target", target, "error", err)
		return out, &Error{
			Stage:   StateRedirecting,
			Message: "could not open the payment page " + target + "; your orders were created, check your order history",
			Reason:  ErrNavigation,
			Err:     err,
		}
	}
	navigated = true
	out.RedirectURL = target
	log.Info("redirected to payment", "paymentNo", session.PaymentNo, "target", target)
	return out, nil
}

func (o *Orchestrator) collect(ctx context.Context, req Request) (cart.Cart, error) {
	lines := o.cart.Get(ctx).Select(o.selection.IDs(ctx))
	if len(lines) == 0 {
		return nil, ErrNoSelection
	}
	if req.UserID <= 0 {
		return nil, ErrInvalidUser
	}
	return lines, nil
}

// pruneOrdered drops ordered products from the cart and the selection.
// Failures are logged only: the orders already exist.
func (o *Orchestrator) pruneOrdered(ctx context.Context, log *slog.Logger, ordered []shop.ID) {
	if _, err := o.cart.RemoveMany(ctx, ordered); err != nil {
		log.Warn("could not prune cart", "error", err)
	}

	remaining := make([]shop.ID, 0)
	for _, id := range o.selection.IDs(ctx) {
		if !shop.ContainsID(ordered, id) {
			remaining = append(remaining, id)
		}
	}
	var err error
	if len(remaining) == 0 {
		err = o.selection.Clear(ctx)
	} else {
		err = o.selection.Set(ctx, remaining)
	}
	if err != nil {
		log.Warn("could not prune selection", "error", err)
	}
}
