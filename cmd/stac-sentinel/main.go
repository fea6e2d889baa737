// Command stac-sentinel converts Sentinel-1 and Sentinel-2 scene metadata into STAC Items.
//
// The root command walks a collection's inventory and forwards every Item to the
// configured sinks. Subcommands run the HTTP transform service and manage the
// item index schema.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information, overridden at build time with -ldflags "-X main.version=...".
var (
	version = "0.1.0-dev"
	name    = "stac-sentinel"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
