// Command shopcart is a command-line shopping client: a persistent cart,
// checkout selection and the order-then-pay checkout flow.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/shopcart/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
