package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcart/internal/shop"
)

// ProductAddOptions holds flags for products add.
type ProductAddOptions struct {
	*RootOptions
	Name        string
	Price       string
	Stock       int
	Description string
}

// NewProductsCommand creates the products command group.
func NewProductsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse and add catalog products",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all products",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsList(rootOpts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <productId>",
		Short: "Show one product",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsShow(rootOpts, shop.NewID(args[0]), cmd)
		},
	})

	cmd.AddCommand(newProductsAddCommand(rootOpts))
	return cmd
}

func newProductsAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product to the catalog",
		Long: `Add a product to the catalog.

Example:
  shopcart products add --name "Blue mug" --price 12.50 --stock 40`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProductsAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "product name (required)")
	cmd.Flags().StringVar(&opts.Price, "price", "", "unit price, e.g. 12.50 (required)")
	cmd.Flags().IntVar(&opts.Stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&opts.Description, "description", "", "product description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func runProductsList(opts *RootOptions, cmd *cobra.Command) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}

	products, err := e.client.ListProducts(cmd.Context())
	if err != nil {
		return e.out.Fail(err, nil)
	}

	if e.out.JSON() {
		return e.out.Success(products)
	}
	if len(products) == 0 {
		fmt.Fprintln(e.out.Writer, "No products.")
		return nil
	}
	writeProducts(e.out.Writer, products)
	return nil
}

func runProductsShow(opts *RootOptions, id shop.ID, cmd *cobra.Command) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}

	p, err := e.client.GetProduct(cmd.Context(), id)
	if err != nil {
		return e.out.Fail(err, map[string]string{"productId": id.String()})
	}

	if e.out.JSON() {
		return e.out.Success(p)
	}
	w := e.out.Writer
	fmt.Fprintf(w, "ID:          %s\n", p.ID)
	fmt.Fprintf(w, "Name:        %s\n", p.ProductName)
	fmt.Fprintf(w, "Price:       %s\n", p.Price)
	fmt.Fprintf(w, "Stock:       %s\n", stockText(p.Stock))
	if p.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", p.Description)
	}
	return nil
}

func runProductsAdd(opts *ProductAddOptions, cmd *cobra.Command) error {
	e, err := newEnv(cmd, opts.RootOptions)
	if err != nil {
		return err
	}

	price, err := shop.ParseMoney(opts.Price)
	if err != nil {
		return e.out.CommandFail(ErrCodeUsage, "invalid --price", err)
	}
	if opts.Stock < 0 {
		return e.out.CommandFail(ErrCodeUsage, "--stock must not be negative", nil)
	}

	stock := opts.Stock
	id, err := e.client.AddProduct(cmd.Context(), shop.Product{
		ProductName: opts.Name,
		Price:       price,
		Stock:       &stock,
		Description: opts.Description,
	})
	if err != nil {
		return e.out.Fail(err, nil)
	}

	if e.out.JSON() {
		return e.out.Success(map[string]any{"id": id})
	}
	fmt.Fprintf(e.out.Writer, "✓ Added product %s (%s)\n", id, opts.Name)
	return nil
}

func writeProducts(w io.Writer, products []shop.Product) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.ProductName, p.Price, stockText(p.Stock))
	}
	_ = tw.Flush()
}

func stockText(stock *int) string {
	if stock == nil {
		return "-"
	}
	return fmt.Sprint(*stock)
}
