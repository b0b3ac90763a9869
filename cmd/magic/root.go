package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "magic",
		Short:         "Magic Database",
		Long:          "magic is an in-memory key-value server spoken over plain text, with a reflect mode that fans requests out to other servers.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newSetupCmd(),
		newStartCmd(),
		newVersionCmd(),
	)

	return rootCmd
}
