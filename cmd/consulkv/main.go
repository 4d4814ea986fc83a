// Command consulkv reads and writes the Consul key/value store, manages agent
// service registrations and runs a local sandbox agent.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("consulkv failed", "error", err)
		stop()
		os.Exit(1)
	}
}
