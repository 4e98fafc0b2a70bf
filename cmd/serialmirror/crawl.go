package main

import (
	"github.com/nao1215/serialmirror/internal/config"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Download the series into the local cache",
		Long: `Crawl follows the series from its resume point through rel="next" links.

Each page is stored in the cache directory and recorded in the index. A run
resumes from the second-to-last indexed page. Pages already in the cache are
not requested again, so the cached last chapter keeps ending the chain. To
pick up chapters published since the last run, refetch with --force, or
with --resume-from <last-id> --force to request only the tail.

Examples:
  # Start a new mirror
  serialmirror crawl --start https://example.com/2017/03/03/rw1-00/

  # Continue an interrupted crawl
  serialmirror crawl

  # Check for chapters published since the last run
  serialmirror crawl --resume-from rw1-12 --force

  # Refresh everything from a given chapter on, at most 20 pages
  serialmirror crawl --resume-from rw1-05 --force --max-pages 20

  # Crawl through a local SOCKS proxy
  serialmirror crawl --proxy 127.0.0.1:9050`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}
	addCrawlFlags(cmd)
	addHistoryFlag(cmd)
	return cmd
}

func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("start", "s", "",
		"URL of the first page, used when the index is empty")
	cmd.Flags().StringP("resume-from", "r", "",
		"Page id to resume from instead of the index tail")
	cmd.Flags().Bool("force", false,
		"Refetch pages even when they are cached")
	cmd.Flags().IntP("max-pages", "p", 0,
		"Stop after this many pages (0 for no limit)")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().Duration("delay-min", config.DefaultDelayMin,
		"Minimum pause before each request")
	cmd.Flags().Duration("delay-max", config.DefaultDelayMax,
		"Maximum pause before each request")
	cmd.Flags().Int("retries", config.DefaultMaxAttempts,
		"Attempts per page before the crawl aborts")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (host:port or socks5://host:port)")
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runStages(cmd, cfg, "crawl", stages{crawl: true})
}
