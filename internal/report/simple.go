package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// SimpleWriter outputs a plain text listing for terminal display.
type SimpleWriter struct {
	baseWriter

	// verbose adds the URL and cache path of every page.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable form.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, s)
	w.writePages(&sb, s)

	return w.output.Write([]byte(sb.String()))
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(s.Title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Pages:        %d\n", len(s.Pages))
	fmt.Fprintf(sb, "Formatted:    %d\n", s.FormattedCount())
	fmt.Fprintf(sb, "Words:        %s\n", humanize.Comma(int64(s.TotalWords())))
	fmt.Fprintf(sb, "Cache size:   %s\n", humanize.IBytes(uint64(s.TotalCacheSize()))) //nolint:gosec // sizes are non-negative
	if last := s.LastScraped(); !last.IsZero() {
		fmt.Fprintf(sb, "Last scraped: %s (%s)\n", last.Format("2006-01-02 15:04:05 MST"), humanize.Time(last))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, s *Summary) {
	if len(s.Pages) == 0 {
		sb.WriteString("  No pages mirrored yet\n")
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	for i, p := range s.Pages {
		size := "not cached"
		if n, ok := s.CacheSizes[p.ID]; ok {
			size = humanize.IBytes(uint64(n)) //nolint:gosec // sizes are non-negative
		}
		fmt.Fprintf(sb, "%4d. %-40s %10s  %s\n", i+1, displayTitle(p), size, p.DateScraped)
		if w.verbose {
			fmt.Fprintf(sb, "      url:  %s\n", p.URL)
			fmt.Fprintf(sb, "      raw:  %s\n", p.Raw)
			if p.Out != "" {
				fmt.Fprintf(sb, "      out:  %s (%s words)\n", p.Out, humanize.Comma(int64(p.WordCount)))
			}
		}
	}
}
