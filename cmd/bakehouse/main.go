// Command bakehouse is the stock ledger CLI and API server.
package main

import (
	"context"
	"os"

	"github.com/roach88/bakehouse/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
