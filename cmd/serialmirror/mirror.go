package main

import (
	"github.com/spf13/cobra"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Crawl the series and render the archive",
		Long: `Mirror runs crawl followed by format with a single configuration.

By default format is skipped when the crawl aborts. With --keep-going the
pages crawled so far are formatted anyway and the crawl error is still
reported.

Examples:
  serialmirror mirror --start https://example.com/2017/03/03/rw1-00/
  serialmirror mirror --keep-going --max-pages 50`,
		Args: cobra.NoArgs,
		RunE: runMirrorCmd,
	}
	addCrawlFlags(cmd)
	addFormatFlags(cmd)
	addHistoryFlag(cmd)
	cmd.Flags().Bool("keep-going", false,
		"Format the archive even when the crawl aborts")
	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	keepGoing, err := cmd.Flags().GetBool("keep-going")
	if err != nil {
		return err
	}
	return runStages(cmd, cfg, "mirror", stages{crawl: true, format: true, keepGoing: keepGoing})
}
