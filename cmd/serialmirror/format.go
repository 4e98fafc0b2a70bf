package main

import (
	"github.com/nao1215/serialmirror/internal/config"
	"github.com/spf13/cobra"
)

// NewFormatCmd creates the format command.
func NewFormatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Render the cached series into an offline archive",
		Long: `Format renders every indexed page from the cache into the output directory.

Each chapter becomes <id>.html with links to its neighbours, next to a
table of contents (index.html), a stylesheet and a Markdown index. The
network is never used. A page that cannot be rendered is reported and
skipped; the rest of the archive is still written.

Examples:
  # Render with the built-in template
  serialmirror format

  # Use a custom template and stylesheet
  serialmirror format --template page.html --stylesheet dark.css -o archive`,
		Args: cobra.NoArgs,
		RunE: runFormatCmd,
	}
	addFormatFlags(cmd)
	addHistoryFlag(cmd)
	return cmd
}

func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().String("template", "",
		"HTML page template (default: built-in)")
	cmd.Flags().String("stylesheet", "",
		"Stylesheet copied into the archive (default: built-in)")
	cmd.Flags().StringP("output", "o", config.DefaultOutDir,
		"Output directory, relative to the work directory")
	cmd.Flags().String("title", "",
		"Title of the table of contents")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of pages rendered in parallel")
}

func addHistoryFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-history", false,
		"Do not record this run in the history database")
}

// runFormatCmd executes the format command.
func runFormatCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return runStages(cmd, cfg, "format", stages{format: true})
}
