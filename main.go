// prt7 decodes PRT-7 rotor-cipher transmissions from a serial line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"prt7/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "prt7: %v\n", err)
		os.Exit(1)
	}
}
