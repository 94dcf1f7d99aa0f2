package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcart/internal/cart"
	"github.com/roach88/shopcart/internal/shop"
)

// CartView is the JSON shape of a cart listing.
type CartView struct {
	Lines         cart.Cart `json:"lines"`
	TotalQuantity int       `json:"totalQuantity"`
	TotalPrice    string    `json:"totalPrice"`
}

func newCartView(c cart.Cart) CartView {
	if c == nil {
		c = cart.Cart{}
	}
	return CartView{
		Lines:         c,
		TotalQuantity: c.TotalQuantity(),
		TotalPrice:    c.TotalPrice().String(),
	}
}

// NewCartCommand creates the cart command group.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the persisted cart",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the cart",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(rootOpts, cmd, func(e *env) error {
				return printCart(e, e.cart.Get(cmd.Context()))
			})
		},
	})

	var qty int
	add := &cobra.Command{
		Use:   "add <productId>",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart.

The product is fetched from the backend first for its name, price and
stock. Adding a product already in the cart sums the quantities, capped
at the stock.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(rootOpts, cmd, func(e *env) error {
				return runCartAdd(e, cmd, shop.NewID(args[0]), qty)
			})
		},
	}
	add.Flags().IntVar(&qty, "qty", 1, "quantity to add")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "update <productId> <qty>",
		Short: "Set a line's quantity (0 removes it)",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid quantity", err)
			}
			return withCart(rootOpts, cmd, func(e *env) error {
				if err := e.cart.UpdateQuantity(cmd.Context(), shop.NewID(args[0]), n); err != nil {
					return e.out.Fail(err, nil)
				}
				return printCart(e, e.cart.Get(cmd.Context()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <productId>",
		Short: "Remove a line from the cart",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(rootOpts, cmd, func(e *env) error {
				if err := e.cart.Remove(cmd.Context(), shop.NewID(args[0])); err != nil {
					return e.out.Fail(err, nil)
				}
				return printCart(e, e.cart.Get(cmd.Context()))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCart(rootOpts, cmd, func(e *env) error {
				if err := e.cart.Clear(cmd.Context()); err != nil {
					return e.out.Fail(err, nil)
				}
				if e.out.JSON() {
					return e.out.Success(newCartView(nil))
				}
				fmt.Fprintln(e.out.Writer, "✓ Cart cleared")
				return nil
			})
		},
	})

	return cmd
}

// withCart runs fn with the config loaded and the cart storage open.
func withCart(opts *RootOptions, cmd *cobra.Command, fn func(*env) error) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}
	if err := e.openCart(cmd); err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func runCartAdd(e *env, cmd *cobra.Command, id shop.ID, qty int) error {
	ctx := cmd.Context()

	p, err := e.client.GetProduct(ctx, id)
	if err != nil {
		return e.out.Fail(err, map[string]string{"productId": id.String()})
	}
	if p.ID.IsZero() {
		p.ID = id
	}

	added, err := e.cart.Add(ctx, cart.LineItem{
		ProductID:   p.ID,
		ProductName: p.ProductName,
		UnitPrice:   p.Price,
		Stock:       p.Stock,
		Quantity:    qty,
	})
	if err != nil {
		return e.out.Fail(err, nil)
	}
	if !added {
		_ = e.out.Error(ErrCodeOutOfStock, fmt.Sprintf("%s is out of stock", p.ProductName), map[string]string{"productId": p.ID.String()})
		return &ExitError{Code: ExitFailure, Message: "out of stock", Reported: true}
	}

	return printCart(e, e.cart.Get(ctx))
}

func printCart(e *env, c cart.Cart) error {
	if e.out.JSON() {
		return e.out.Success(newCartView(c))
	}
	if len(c) == 0 {
		fmt.Fprintln(e.out.Writer, "Cart is empty.")
		return nil
	}
	writeLines(e.out.Writer, c)
	fmt.Fprintf(e.out.Writer, "\nItems: %d  Total: %s\n", c.TotalQuantity(), c.TotalPrice())
	return nil
}

func writeLines(w io.Writer, c cart.Cart) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tSUBTOTAL")
	for _, li := range c {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", li.ProductID, li.ProductName, li.UnitPrice, li.Quantity, li.Subtotal())
	}
	_ = tw.Flush()
}
