// Command pontopology serves the PON topology (OLT, ODP and ONU tiers) built
// from the management inventory, and prints snapshots and tables from the
// command line.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"pontopology/internal/observability"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		observability.GetLogger().Error("command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}
