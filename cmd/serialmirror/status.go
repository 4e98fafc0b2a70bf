package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/serialmirror/internal/cache"
	"github.com/nao1215/serialmirror/internal/format"
	"github.com/nao1215/serialmirror/internal/index"
	"github.com/nao1215/serialmirror/internal/report"
	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show what has been mirrored so far",
		Long: `Status reads the index and the cache and prints one line per page:
its id, title, cache size and whether it has been formatted.

Examples:
  # Human-readable summary
  serialmirror status

  # Full listing with source URLs
  serialmirror status -v

  # Markdown report written to a file
  serialmirror status --markdown -f status.md`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("file", "f", "",
		"Also write the report to the specified file (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runStatusCmd executes the status command.
func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	file, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}

	idx, err := index.Load(cfg.IndexPath())
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	store := cache.NewFileStore(cfg.CachePath())

	title := cfg.Title
	if title == "" {
		title = format.DefaultTitle
	}
	summary := report.NewSummary(title, idx.Records(), store.Size)

	w := newStatusWriter(cmd.OutOrStdout(), jsonOut, markdownOut, cfg.Verbose)
	if file != "" {
		f, err := createReportFile(file)
		if err != nil {
			return err
		}
		defer f.Close()
		w = report.NewMultiWriter(w, newStatusWriter(f, jsonOut, markdownOut, cfg.Verbose))
	}
	_, err = w.Write(summary)
	return err
}

func newStatusWriter(output io.Writer, jsonOut, markdownOut, verbose bool) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case markdownOut:
		return report.NewMarkdownWriter(output, report.WithProgressChart())
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// createReportFile creates or truncates path with owner-only permissions.
func createReportFile(path string) (io.WriteCloser, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // G304: report path chosen by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
