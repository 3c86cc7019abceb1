package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/eshaffer321/ledger-reconciler/internal/cli"
)

func main() {
	flags, err := cli.ParseAuditFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if err := cli.RunAudit(context.Background(), flags, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "audit-report: %v\n", err)
		os.Exit(1)
	}
}
