package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/opic-systems/opic/core/pkg/witness"
)

func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: opic verify <witness-log>")
		return 2
	}

	log, err := witness.NewFileLog(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	entries, err := log.List(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	if err := witness.VerifyChain(entries); err != nil {
		var ce *witness.ChainError
		if errors.As(err, &ce) {
			_, _ = fmt.Fprintf(stderr, "BROKEN: %v\n", ce)
		} else {
			_, _ = fmt.Fprintf(stderr, "BROKEN: %v\n", err)
		}
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "OK: %d witnesses, chain intact\n", len(entries))
	return 0
}
