package pipeline

import (
	"context"

	"github.com/nao1215/serialmirror/internal/crawler"
	"github.com/nao1215/serialmirror/internal/format"
)

// CrawlStep walks the series from its resume point.
type CrawlStep struct {
	engine     *crawler.Engine
	resumeFrom string
	force      bool
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithResumeFrom resumes at the given page id instead of the index tail.
func WithResumeFrom(id string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.resumeFrom = id
	}
}

// WithForce refetches pages that are already cached.
func WithForce(force bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.force = force
	}
}

// NewCrawlStep creates a crawl step around a configured engine. The engine
// must have been built over the same index as the Archive.
func NewCrawlStep(engine *crawler.Engine, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the engine and stores its result, also when it aborted.
func (s *CrawlStep) Do(ctx context.Context, a *Archive) error {
	res, err := s.engine.Resume(ctx, s.resumeFrom, s.force)
	a.Crawl = res
	return err
}

// FormatStep renders every indexed page into the output directory.
type FormatStep struct {
	formatter *format.Formatter
}

// NewFormatStep creates a format step around a configured formatter.
func NewFormatStep(f *format.Formatter) *FormatStep {
	return &FormatStep{formatter: f}
}

// Name returns the step name.
func (s *FormatStep) Name() string {
	return "format"
}

// Do runs the formatter and stores its result.
func (s *FormatStep) Do(ctx context.Context, a *Archive) error {
	res, err := s.formatter.Run(ctx)
	a.Format = res
	return err
}
