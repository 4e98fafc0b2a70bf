package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/serialmirror/internal/cache"
	"github.com/nao1215/serialmirror/internal/config"
	"github.com/nao1215/serialmirror/internal/crawler"
	"github.com/nao1215/serialmirror/internal/database"
	"github.com/nao1215/serialmirror/internal/event"
	"github.com/nao1215/serialmirror/internal/fetcher"
	"github.com/nao1215/serialmirror/internal/format"
	"github.com/nao1215/serialmirror/internal/index"
	applog "github.com/nao1215/serialmirror/internal/log"
	"github.com/nao1215/serialmirror/internal/pipeline"
	"github.com/spf13/cobra"
)

// stages selects which pipeline steps a command runs.
type stages struct {
	crawl     bool
	format    bool
	keepGoing bool
}

// runStages executes the selected stages over the work directory, records
// the run in the history database and prints a summary.
func runStages(cmd *cobra.Command, cfg *config.Config, name string, st stages) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	logger := setupLogger(cmd, cfg)

	idx, err := index.Load(cfg.IndexPath())
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	store := cache.NewFileStore(cfg.CachePath())

	observers := []event.Observer{applog.Observer(logger), newProgress(out)}

	history, runID := openHistory(ctx, cfg, name, logger)
	if history != nil {
		defer history.Close()
		observers = append(observers, history.Observer(ctx, runID, logger))
	}
	observer := event.Multi(observers...)

	p := pipeline.New(
		pipeline.WithLogger(logger),
		pipeline.WithContinueOnError(st.keepGoing),
	)
	if st.crawl {
		step, err := newCrawlStep(cfg, store, idx, observer)
		if err != nil {
			return err
		}
		p.AddStep(step)
	}
	if st.format {
		step, err := newFormatStep(cfg, store, idx, observer, logger)
		if err != nil {
			return err
		}
		p.AddStep(step)
	}

	start := time.Now()
	a := &pipeline.Archive{Index: idx}
	runErr := p.Execute(ctx, a)

	if history != nil {
		if err := history.FinishRun(context.WithoutCancel(ctx), runID, outcome(a, runErr)); err != nil {
			logger.Warn("failed to record run", "run", runID, "error", err)
		}
	}

	printSummary(out, a, time.Since(start))
	return runErr
}

// openHistory opens the history database and starts a run. History is
// optional: a failure is logged and the command continues without it.
func openHistory(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) (*database.HistoryDB, string) {
	if cfg.NoHistory {
		return nil, ""
	}
	db, err := database.Open(cfg.HistoryDir, database.DefaultOptions())
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		return nil, ""
	}
	runID, err := db.StartRun(ctx, command, cfg.WorkDir, cfg.StartURL)
	if err != nil {
		logger.Warn("run history disabled", "error", err)
		_ = db.Close() //nolint:errcheck // already failing
		return nil, ""
	}
	logger.Debug("recording run", "run", runID, "db", db.Path())
	return db, runID
}

func newCrawlStep(cfg *config.Config, store cache.Store, idx *index.Index, observer event.Observer) (*pipeline.CrawlStep, error) {
	client, err := fetcher.NewHTTPClient(cfg.Timeout, cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	opts := []fetcher.Option{
		fetcher.WithHTTPClient(client),
		fetcher.WithDelay(cfg.DelayMin, cfg.DelayMax),
		fetcher.WithMaxAttempts(cfg.MaxAttempts),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
		fetcher.WithObserver(observer),
	}
	if h := cfg.RequestHeaders(); h != nil {
		opts = append(opts, fetcher.WithHeaders(h))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, fetcher.WithUserAgent(cfg.UserAgent))
	}

	engine := crawler.NewEngine(store, idx, fetcher.New(opts...),
		crawler.WithObserver(observer),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithStartURL(cfg.StartURL),
	)
	return pipeline.NewCrawlStep(engine,
		pipeline.WithResumeFrom(cfg.ResumeFrom),
		pipeline.WithForce(cfg.Force),
	), nil
}

func newFormatStep(cfg *config.Config, store cache.Store, idx *index.Index, observer event.Observer, logger *slog.Logger) (*pipeline.FormatStep, error) {
	opts := []format.Option{
		format.WithExtractor(format.NewSelectorExtractor(selectors(cfg.Selectors))),
		format.WithConcurrency(cfg.Concurrency),
		format.WithLogger(logger),
		format.WithObserver(observer),
	}
	if cfg.Title != "" {
		opts = append(opts, format.WithTitle(cfg.Title))
	}
	if cfg.Template != "" {
		r, err := format.LoadRenderer(cfg.Template)
		if err != nil {
			return nil, err
		}
		opts = append(opts, format.WithRenderer(r))
	}
	if cfg.Stylesheet != "" {
		css, err := os.ReadFile(cfg.Stylesheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read stylesheet: %w", err)
		}
		opts = append(opts, format.WithStylesheet(css))
	}

	f, err := format.NewFormatter(store, idx, cfg.OutPath(), opts...)
	if err != nil {
		return nil, err
	}
	return pipeline.NewFormatStep(f), nil
}

// selectors overlays the configured selectors on the defaults.
func selectors(s config.Selectors) format.Selectors {
	sel := format.DefaultSelectors()
	if s.Title != "" {
		sel.Title = s.Title
	}
	if s.Date != "" {
		sel.Date = s.Date
	}
	if s.Content != "" {
		sel.Content = s.Content
	}
	if s.TrimTrailing != nil {
		sel.TrimTrailing = *s.TrimTrailing
	}
	return sel
}

// outcome maps a pipeline result to the recorded run status.
func outcome(a *pipeline.Archive, err error) database.RunOutcome {
	o := database.RunOutcome{Status: database.RunCompleted, Pages: a.Index.Len(), Err: err}
	if a.Crawl != nil {
		o.Fetched = a.Crawl.Fetched
		o.Cached = a.Crawl.Cached
		if a.Crawl.Limited {
			o.Status = database.RunLimited
		}
	}
	if a.Format != nil {
		o.Formatted = len(a.Format.Formatted)
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		o.Status = database.RunCancelled
	case err != nil:
		o.Status = database.RunFailed
	}
	return o
}

func printSummary(w io.Writer, a *pipeline.Archive, elapsed time.Duration) {
	fmt.Fprintln(w)
	if c := a.Crawl; c != nil {
		fmt.Fprintf(w, "Crawl %s: %d pages visited, %d fetched, %d from cache",
			c.Final, len(c.Visited), c.Fetched, c.Cached)
		if c.Fallbacks > 0 {
			fmt.Fprintf(w, " (%d fallbacks)", c.Fallbacks)
		}
		fmt.Fprintln(w)
		if c.Limited {
			fmt.Fprintf(w, "Stopped at the page limit; the next run resumes from %s\n", c.LastURL)
		}
	}
	if f := a.Format; f != nil {
		fmt.Fprintf(w, "Formatted %d pages into %s", len(f.Formatted), f.OutDir)
		if len(f.Skipped) > 0 {
			fmt.Fprintf(w, " (%d skipped)", len(f.Skipped))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "%s pages indexed, finished in %s\n",
		humanize.Comma(int64(a.Index.Len())), elapsed.Round(time.Millisecond))
}
