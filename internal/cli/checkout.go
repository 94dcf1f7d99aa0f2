package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcart/internal/checkout"
	"github.com/roach88/shopcart/internal/config"
	"github.com/roach88/shopcart/internal/shop"
)

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	UserID   int64
	Address  string
	Provider string

	// Attempts allows overriding the attempt id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Attempts checkout.AttemptGenerator
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Order the selected lines and start payment",
		Long: `Order the selected cart lines and start payment.

Places the orders for the selected lines, opens a payment session and
prints the payment page to continue in a browser. Ordered lines leave
the cart.

Exit codes:
  0 - Payment page ready
  1 - Checkout failed (the message says whether orders were created)
  2 - Command error (bad config, unreachable store)

Example:
  shopcart select 1 2
  shopcart checkout --user 7 --address "1 Main St"`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user id placing the orders (required)")
	cmd.Flags().StringVar(&opts.Address, "address", "", "shipping address")
	cmd.Flags().StringVar(&opts.Provider, "provider", "", "payment provider (overrides config)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// CheckoutView is the JSON shape of a checkout result.
type CheckoutView struct {
	*checkout.Outcome
	PaymentPage string `json:"paymentPage,omitempty"`
}

func runCheckout(opts *CheckoutOptions, cmd *cobra.Command) error {
	e, err := newEnv(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	if err := e.openCart(cmd); err != nil {
		return err
	}
	defer e.Close()

	// Stop cleanly on Ctrl-C; requests in flight see the cancellation.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var page string
	navigator := checkout.NavigatorFunc(func(_ context.Context, target string) error {
		page = e.client.ResolveURL(target)
		e.logger.Info("payment page ready", "url", page)
		return nil
	})

	attempts := opts.Attempts
	if attempts == nil {
		attempts = checkout.UUIDv7Generator{}
	}

	o := checkout.New(e.cart, e.selection, newSubmitter(e), e.client, navigator,
		checkout.WithLogger(e.logger),
		checkout.WithControl(progressControl{out: e.out}),
		checkout.WithAttemptGenerator(attempts),
		checkout.WithProvider(e.cfg.Provider),
		checkout.WithIdempotencyKeys(e.cfg.IdempotencyHeader),
	)

	out, err := o.Checkout(ctx, checkout.Request{
		UserID:   opts.UserID,
		Address:  opts.Address,
		Provider: opts.Provider,
	})
	if err != nil {
		return e.out.Fail(err, checkoutDetails(out, err))
	}

	if e.out.JSON() {
		return e.out.Success(CheckoutView{Outcome: out, PaymentPage: page})
	}

	w := e.out.Writer
	fmt.Fprintf(w, "Attempt: %s\n", out.AttemptID)
	fmt.Fprintf(w, "Orders:  %s\n", joinIDs(out.Orders.OrderIDs()))
	fmt.Fprintf(w, "Amount:  %s\n", out.Amount)
	if out.Message != "" {
		fmt.Fprintf(w, "! %s\n", out.Message)
	}
	fmt.Fprintf(w, "✓ Continue to payment: %s\n", page)
	return nil
}

// newSubmitter picks the order submission strategy for the configured
// backend contract.
func newSubmitter(e *env) checkout.OrderSubmitter {
	if e.cfg.Contract == config.ContractLegacy {
		return checkout.NewPerItemSubmitter(e.client)
	}
	return checkout.NewBatchSubmitter(e.client)
}

// checkoutDetails lists what a failed pass left behind, so the user knows
// whether orders exist.
func checkoutDetails(out *checkout.Outcome, err error) any {
	var ce *checkout.Error
	if out == nil || !errors.As(err, &ce) {
		return nil
	}
	details := map[string]any{
		"attemptId": out.AttemptID,
		"stage":     ce.Stage.String(),
	}
	if checkout.OrdersCreated(err) {
		details["orderIds"] = out.Orders.OrderIDs()
	}
	if len(out.Orders.Failed) > 0 {
		details["failed"] = out.Orders.Failed
	}
	return details
}

func joinIDs(ids []shop.ID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ", ")
}

// progressControl reports the pass starting and finishing in verbose mode.
type progressControl struct {
	out *OutputFormatter
}

func (c progressControl) Disable() {
	c.out.VerboseLog("checkout in progress...")
}

func (c progressControl) Enable() {
	c.out.VerboseLog("checkout ended")
}
