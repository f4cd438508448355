// Command chaindict manages append-only dictionary chains.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stdin).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
