package report

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as a Markdown table of contents.
// Page titles link to the rendered documents next to the Markdown file.
type MarkdownWriter struct {
	baseWriter

	// chart adds a mermaid pie chart of formatted versus pending pages.
	chart bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithProgressChart adds a chart of formatted versus pending pages.
func WithProgressChart() MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.chart = true
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1(s.Title)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Pages", strconv.Itoa(len(s.Pages))},
			{"Formatted", strconv.Itoa(s.FormattedCount())},
			{"Words", humanize.Comma(int64(s.TotalWords()))},
			{"Generated", s.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	if w.chart && len(s.Pages) > 0 {
		w.writeChart(md, s)
	}

	md.H2("Contents")
	md.PlainText("")

	if len(s.Pages) == 0 {
		md.PlainText("No pages mirrored yet.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	rows := make([][]string, 0, len(s.Pages))
	for i, p := range s.Pages {
		words := ""
		if p.WordCount > 0 {
			words = humanize.Comma(int64(p.WordCount))
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			pageLink(p.ID, displayTitle(p), p.Out),
			escapeCell(p.DatePublished),
			words,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Chapter", "Published", "Words"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeChart(md *markdown.Markdown, s *Summary) {
	formatted := s.FormattedCount()
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Formatting progress"),
		piechart.WithShowData(true),
	)
	pending := len(s.Pages) - formatted
	chart.LabelAndIntValue("Formatted", uint64(formatted)) //nolint:gosec // counts are non-negative
	chart.LabelAndIntValue("Pending", uint64(pending))     //nolint:gosec // counts are non-negative

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// pageLink links to the rendered document when there is one.
func pageLink(id, title, out string) string {
	title = escapeCell(title)
	if out == "" {
		return title
	}
	return fmt.Sprintf("[%s](./%s)", title, path.Base(strings.ReplaceAll(out, `\`, "/")))
}

// escapeCell keeps table cells on one line and away from column separators.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
