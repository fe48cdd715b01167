package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for ebcrawl.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebcrawl",
		Short: "Incremental crawler for the ebanoe.it blog",
		Long: `ebcrawl mirrors the ebanoe.it blog into a local SQLite database.

Every run walks the listing pages from the newest post and stops at the
newest post already stored, so repeated runs only fetch what is new.
Transient failures are retried, and a session that the site starts to
reject is replaced with a fresh one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context
// handed to every subcommand.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
