package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/serialmirror/internal/cache"
	"github.com/nao1215/serialmirror/internal/event"
	"github.com/nao1215/serialmirror/internal/fsutil"
	"github.com/nao1215/serialmirror/internal/index"
	"github.com/nao1215/serialmirror/internal/model"
	"github.com/nao1215/serialmirror/internal/report"
)

// Output file names written next to the chapter documents.
const (
	StylesheetName = "style.css"
	TOCName        = "index.html"
	MarkdownName   = "toc.md"
)

// DefaultTitle heads the table of contents when none is configured.
const DefaultTitle = "Table of Contents"

// Result summarizes a format run.
type Result struct {
	// Formatted lists the ids of rendered pages in index order.
	Formatted []string

	// Skipped maps the id of every page that could not be rendered to
	// the reason.
	Skipped map[string]error

	// OutDir is the directory the archive was written to.
	OutDir string

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Formatter renders every indexed page into the output directory.
type Formatter struct {
	store       cache.Store
	index       *index.Index
	extractor   Extractor
	renderer    *Renderer
	outDir      string
	stylesheet  []byte
	title       string
	concurrency int
	logger      *slog.Logger
	observer    event.Observer
}

// Option configures a Formatter.
type Option func(*Formatter)

// WithExtractor replaces the default SelectorExtractor.
func WithExtractor(x Extractor) Option {
	return func(f *Formatter) {
		if x != nil {
			f.extractor = x
		}
	}
}

// WithRenderer replaces the renderer built from the embedded template.
func WithRenderer(r *Renderer) Option {
	return func(f *Formatter) {
		if r != nil {
			f.renderer = r
		}
	}
}

// WithStylesheet replaces the embedded stylesheet.
func WithStylesheet(css []byte) Option {
	return func(f *Formatter) {
		if css != nil {
			f.stylesheet = css
		}
	}
}

// WithTitle sets the table of contents title.
func WithTitle(title string) Option {
	return func(f *Formatter) {
		if title != "" {
			f.title = title
		}
	}
}

// WithConcurrency sets how many pages are rendered at once.
func WithConcurrency(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

// WithLogger sets the logger for skipped pages.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Formatter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithObserver sets the observer that receives per-page events.
func WithObserver(o event.Observer) Option {
	return func(f *Formatter) {
		if o != nil {
			f.observer = o
		}
	}
}

// NewFormatter creates a Formatter writing to outDir.
func NewFormatter(store cache.Store, idx *index.Index, outDir string, opts ...Option) (*Formatter, error) {
	f := &Formatter{
		store:       store,
		index:       idx,
		outDir:      outDir,
		title:       DefaultTitle,
		concurrency: 4,
		logger:      slog.Default(),
		observer:    event.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.extractor == nil {
		f.extractor = NewSelectorExtractor(DefaultSelectors())
	}
	if f.renderer == nil {
		r, err := NewRenderer(DefaultTemplate())
		if err != nil {
			return nil, err
		}
		f.renderer = r
	}
	if f.stylesheet == nil {
		f.stylesheet = DefaultStylesheet()
	}
	return f, nil
}

// rendered is the outcome for one page.
type rendered struct {
	ex  model.Extracted
	out string
	err error
}

// Run renders all pages, writes the table of contents and stylesheet,
// merges the extracted fields into the index and saves it.
//
// Design decision: Pages that cannot be read, extracted or rendered are
// skipped and reported in Result.Skipped. Only failures to write the
// output or the index abort the run, since those affect every page.
func (f *Formatter) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	records := f.index.Records()

	if err := os.MkdirAll(f.outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	f.logger.Info("formatting pages",
		"pages", len(records),
		"out", f.outDir,
		"concurrency", f.concurrency,
	)

	outcomes := make([]rendered, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, rec := range records {
		meta := model.PageMeta{ID: rec.ID, DateScraped: rec.DateScraped}
		if i > 0 {
			meta.PrevID = records[i-1].ID
		}
		if i+1 < len(records) {
			meta.NextID = records[i+1].ID
		}

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			out, ex, err := f.renderOne(meta)

			outcomes[i] = rendered{ex: ex, out: out, err: err}

			if err == nil {
				f.emit(event.Event{Kind: event.KindFormatted, PageID: rec.ID, URL: rec.URL})
				return nil
			}
			if isWriteError(err) {
				return err
			}
			f.logger.Warn("skipping page", "id", rec.ID, "error", err)
			f.emit(event.Event{Kind: event.KindFormatSkip, PageID: rec.ID, URL: rec.URL, Err: err})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Skipped: make(map[string]error), OutDir: f.outDir}
	for i, rec := range records {
		o := outcomes[i]
		if o.err != nil {
			res.Skipped[rec.ID] = o.err
			continue
		}
		res.Formatted = append(res.Formatted, rec.ID)
		if err := f.index.Update(rec.ID, func(r *model.PageRecord) {
			r.Title = o.ex.Title
			r.DatePublished = o.ex.DatePublished
			r.WordCount = o.ex.WordCount
			r.Out = o.out
		}); err != nil {
			return nil, err
		}
	}

	if err := f.writeArchiveFiles(); err != nil {
		return nil, err
	}
	if err := f.index.Save(); err != nil {
		return nil, err
	}

	res.Elapsed = time.Since(start)
	f.logger.Info("formatting complete",
		"formatted", len(res.Formatted),
		"skipped", len(res.Skipped),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// writeError marks failures to write the output directory.
type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

func isWriteError(err error) bool {
	var we *writeError
	return errors.As(err, &we)
}

// renderOne reads, extracts, renders and writes a single page.
func (f *Formatter) renderOne(meta model.PageMeta) (string, model.Extracted, error) {
	content, err := f.store.Read(meta.ID)
	if err != nil {
		return "", model.Extracted{}, err
	}
	ex, err := f.extractor.Extract(content, meta)
	if err != nil {
		return "", model.Extracted{}, err
	}
	page, err := f.renderer.Render(meta, ex)
	if err != nil {
		return "", model.Extracted{}, err
	}

	out := filepath.Join(f.outDir, meta.ID+".html")
	if err := fsutil.WriteFileAtomic(out, page, 0o644); err != nil { //nolint:gosec // the archive is meant to be readable
		return "", model.Extracted{}, &writeError{err: err}
	}
	return out, ex, nil
}

// writeArchiveFiles writes the stylesheet and both tables of contents.
func (f *Formatter) writeArchiveFiles() error {
	records := f.index.Records()

	if err := fsutil.WriteFileAtomic(filepath.Join(f.outDir, StylesheetName), f.stylesheet, 0o644); err != nil { //nolint:gosec // public asset
		return fmt.Errorf("failed to write stylesheet: %w", err)
	}

	toc, err := f.renderer.RenderTOC(f.title, records)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(f.outDir, TOCName), toc, 0o644); err != nil { //nolint:gosec // public asset
		return fmt.Errorf("failed to write table of contents: %w", err)
	}

	var md bytes.Buffer
	summary := report.NewSummary(f.title, records, nil)
	if _, err := report.NewMarkdownWriter(&md).Write(summary); err != nil {
		return fmt.Errorf("failed to build markdown table of contents: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(f.outDir, MarkdownName), md.Bytes(), 0o644); err != nil { //nolint:gosec // public asset
		return fmt.Errorf("failed to write markdown table of contents: %w", err)
	}
	return nil
}

func (f *Formatter) emit(e event.Event) {
	f.observer.Observe(event.Stamp(e))
}
