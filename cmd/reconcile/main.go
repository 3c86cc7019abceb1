// Command reconcile pairs manual entries with bank lines, matches supplier
// invoices to payments and reports anomalies for one snapshot of the books.
//
//	reconcile -input books.json -bank-csv statement.csv -as-of 2026-03-31
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/ledger-reconciler/internal/cli"
)

func main() {
	flags, err := cli.ParseReconcileFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		os.Exit(2)
	}

	// Ctrl-C stops the run between stages
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.RunReconcile(ctx, flags, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		stop()
		os.Exit(1)
	}
}
