package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/checkout"
	"github.com/roach88/shopcart/internal/shop"
)

// SelectionView is the JSON shape of the checkout selection.
type SelectionView struct {
	IDs     []shop.ID `json:"ids"`
	Lines   cart.Cart `json:"lines"`
	Amount  string    `json:"amount"`
	Missing []shop.ID `json:"missing,omitempty"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "select [productId...]",
		Short: "Choose the cart lines to check out",
		Long: `Choose the cart lines to check out.

With ids, replaces the selection. Without ids, shows it. The selection
expires after the configured storage.selection_ttl.

Examples:
  shopcart select 1 2
  shopcart select --clear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearAll && len(args) > 0 {
				return NewExitError(ExitCommandError, "--clear takes no product ids")
			}
			return withCart(rootOpts, cmd, func(e *env) error {
				return runSelect(e, cmd, args, clearAll)
			})
		},
	}

	cmd.Flags().BoolVar(&clearAll, "clear", false, "clear the selection")
	return cmd
}

func runSelect(e *env, cmd *cobra.Command, args []string, clearAll bool) error {
	ctx := cmd.Context()

	switch {
	case clearAll:
		if err := e.selection.Clear(ctx); err != nil {
			return e.out.Fail(err, nil)
		}
	case len(args) > 0:
		ids := make([]shop.ID, 0, len(args))
		for _, a := range args {
			ids = append(ids, shop.NewID(a))
		}
		if err := e.selection.Set(ctx, ids); err != nil {
			return e.out.Fail(err, nil)
		}
	}

	ids := e.selection.IDs(ctx)
	c := e.cart.Get(ctx)
	lines := c.Select(ids)

	view := SelectionView{
		IDs:    ids,
		Lines:  lines,
		Amount: checkout.ComputeTotal(lines),
	}
	if view.IDs == nil {
		view.IDs = []shop.ID{}
	}
	if view.Lines == nil {
		view.Lines = cart.Cart{}
	}
	for _, id := range ids {
		if _, ok := c.Find(id); !ok {
			view.Missing = append(view.Missing, id)
		}
	}

	if e.out.JSON() {
		return e.out.Success(view)
	}

	w := e.out.Writer
	if len(ids) == 0 {
		fmt.Fprintln(w, "Nothing selected.")
		return nil
	}
	if len(lines) > 0 {
		writeLines(w, lines)
		fmt.Fprintf(w, "\nSelected: %d line(s)  Amount: %s\n", len(lines), view.Amount)
	}
	for _, id := range view.Missing {
		fmt.Fprintf(w, "! %s is not in the cart\n", id)
	}
	return nil
}
