package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect created orders",
	}

	var userID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's orders",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(rootOpts, userID, cmd)
		},
	}
	list.Flags().Int64Var(&userID, "user", 0, "user id (required)")
	_ = list.MarkFlagRequired("user")
	cmd.AddCommand(list)

	return cmd
}

func runOrdersList(opts *RootOptions, userID int64, cmd *cobra.Command) error {
	e, err := newEnv(cmd, opts)
	if err != nil {
		return err
	}
	if userID <= 0 {
		return e.out.CommandFail(ErrCodeUsage, "--user must be a positive id", nil)
	}

	orders, err := e.client.ListOrders(cmd.Context(), userID)
	if err != nil {
		return e.out.Fail(err, nil)
	}

	if e.out.JSON() {
		return e.out.Success(orders)
	}
	if len(orders) == 0 {
		fmt.Fprintln(e.out.Writer, "No orders.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tNUM\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", o.ID, o.ProductID, o.Num, o.TotalPrice, o.CreateTime)
	}
	return tw.Flush()
}
