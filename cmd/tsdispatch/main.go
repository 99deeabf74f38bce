package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// consumer factories
	_ "github.com/rbaliyan/tsdispatch/sink/kafka"
	_ "github.com/rbaliyan/tsdispatch/sink/logging"
	_ "github.com/rbaliyan/tsdispatch/sink/mongo"
	_ "github.com/rbaliyan/tsdispatch/sink/nats"
	_ "github.com/rbaliyan/tsdispatch/sink/redis"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tsdispatch",
		Short: "Inspect and exercise the event dispatch engine",
		Long: `tsdispatch drives the in-process dispatch engine outside a host:
it lists the event kinds and their audiences, and runs a load test
against the configured consumers.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("tsdispatch version %s\nCommit: %s\n", Version, Commit))
	root.AddCommand(newKindsCmd())
	root.AddCommand(newConsumersCmd())
	root.AddCommand(newBenchCmd())
	return root
}
