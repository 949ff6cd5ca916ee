package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacksonlee411/tableform/internal/config"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "tableform",
		Short:         "tableform serves conditional forms that write into Airtable tables",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	config.SetFlags(cmd.PersistentFlags())

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(lintCmd())
	cmd.AddCommand(evaluateCmd())
	return cmd
}
