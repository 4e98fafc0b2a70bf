package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for serialmirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serialmirror",
		Short: "Mirror a web serial into a local offline archive",
		Long: `serialmirror follows a web serial chapter by chapter through its
rel="next" links, caches every page locally and keeps a JSON index of the
series. The cached pages are then rendered into a self-contained archive.

The crawl is polite by default: a random 5-15 second pause precedes every
request, failed requests are retried up to three times, and pages already
in the cache are never fetched again unless --force is given.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: "+configFileName+" in current or home directory)")
	cmd.PersistentFlags().StringP("workdir", "w", ".",
		"Directory holding the cache, the index and the output")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON lines")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewFormatCmd())
	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context; a running crawl stops before the next page.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
